package derivative_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/derivative"
	"github.com/imagevault/core/store"
)

func TestPickCoverImage_PrefersWidescreenSweetSpotSize(t *testing.T) {
	images := []store.Image{
		{ID: "square", Width: 1000, Height: 1000, ByteSize: 2 * 1024 * 1024},
		{ID: "widescreen", Width: 1920, Height: 1080, ByteSize: 2 * 1024 * 1024},
		{ID: "tiny", Width: 100, Height: 100, ByteSize: 1024},
	}

	best, ok := derivative.PickCoverImage(images)
	require.True(t, ok)
	require.Equal(t, store.ID("widescreen"), best.ID)
}

func TestPickCoverImage_ExcludesBelowMinimumUnlessNoneQualify(t *testing.T) {
	images := []store.Image{
		{ID: "small1", Width: 100, Height: 100, ByteSize: 1024},
		{ID: "small2", Width: 200, Height: 150, ByteSize: 2048},
	}

	best, ok := derivative.PickCoverImage(images)
	require.True(t, ok)
	require.Contains(t, []store.ID{"small1", "small2"}, best.ID)
}

func TestPickCoverImage_EmptyCollection(t *testing.T) {
	_, ok := derivative.PickCoverImage(nil)
	require.False(t, ok)
}

func TestScoreCoverCandidate_Monotonic(t *testing.T) {
	widescreenSweetSpot := derivative.ScoreCoverCandidate(store.Image{Width: 1920, Height: 1080, ByteSize: 2 * 1024 * 1024})
	widescreenTooSmallFile := derivative.ScoreCoverCandidate(store.Image{Width: 1920, Height: 1080, ByteSize: 1024})

	require.Greater(t, widescreenSweetSpot, widescreenTooSmallFile)
}
