package derivative

import "testing"

func TestGenerator_CheckBudgetTripsExactlyOnceAtThreshold(t *testing.T) {
	g := &Generator{networkDriveErrorThreshold: 3}

	var tripped int
	g.OnNetworkDriveErrorBudgetExceeded(func() { tripped++ })

	g.networkDriveErrorsSeen = 2
	g.checkBudget()
	if tripped != 0 {
		t.Fatalf("expected no trip below threshold, got %d", tripped)
	}

	g.networkDriveErrorsSeen = 3
	g.checkBudget()
	if tripped != 1 {
		t.Fatalf("expected exactly one trip at threshold, got %d", tripped)
	}

	g.networkDriveErrorsSeen = 9
	g.checkBudget()
	if tripped != 1 {
		t.Fatalf("expected checkBudget to stay tripped (no repeat calls), got %d", tripped)
	}
}
