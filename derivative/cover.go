package derivative

import (
	"math"

	"github.com/imagevault/core/store"
)

const (
	targetAspectRatio   = 16.0 / 9.0
	maxScoredWidth      = 1920
	maxScoredHeight     = 1080
	sweetSpotMinBytes   = 512 * 1024
	sweetSpotMaxBytes   = 5 * 1024 * 1024
	minCoverWidth       = 300
	minCoverHeight      = 200
	coverPositionalBase = 50.0

	weightAspect     = 0.40
	weightResolution = 0.30
	weightFileSize   = 0.20
	weightPositional = 0.10
)

// ScoreCoverCandidate implements spec §4.6's collection-cover scoring
// function: 40% proximity to 16:9 aspect, 30% resolution capped at
// 1920x1080, 20% file-size sweet spot (0.5-5MB), 10% positional base.
// The positional base is a flat nonzero constant: the data model carries
// no per-image ordering signal strong enough to weight by position, so a
// constant satisfies the stated weight without inventing one.
func ScoreCoverCandidate(img store.Image) float64 {
	return weightAspect*aspectScore(img.Width, img.Height) +
		weightResolution*resolutionScore(img.Width, img.Height) +
		weightFileSize*fileSizeScore(img.ByteSize) +
		weightPositional*coverPositionalBase
}

func aspectScore(w, h int) float64 {
	if h == 0 {
		return 0
	}

	ratio := float64(w) / float64(h)
	diff := math.Abs(ratio - targetAspectRatio)

	score := 100 - (diff/targetAspectRatio)*100
	if score < 0 {
		score = 0
	}

	return score
}

func resolutionScore(w, h int) float64 {
	effW, effH := w, h
	if effW > maxScoredWidth {
		effW = maxScoredWidth
	}

	if effH > maxScoredHeight {
		effH = maxScoredHeight
	}

	capPixels := float64(maxScoredWidth * maxScoredHeight)
	score := (float64(effW*effH) / capPixels) * 100

	if score > 100 {
		score = 100
	}

	return score
}

func fileSizeScore(byteSize int64) float64 {
	switch {
	case byteSize >= sweetSpotMinBytes && byteSize <= sweetSpotMaxBytes:
		return 100
	case byteSize < sweetSpotMinBytes:
		if byteSize <= 0 {
			return 0
		}

		return 100 * float64(byteSize) / float64(sweetSpotMinBytes)
	default:
		over := float64(byteSize-sweetSpotMaxBytes) / float64(sweetSpotMaxBytes)
		score := 100 - over*100

		if score < 0 {
			score = 0
		}

		return score
	}
}

// PickCoverImage selects the best-scoring image for a collection's cover
// thumbnail, excluding images below 300x200 unless the collection has no
// image that meets the minimum (spec §4.6).
func PickCoverImage(images []store.Image) (store.Image, bool) {
	if len(images) == 0 {
		return store.Image{}, false
	}

	eligible := make([]store.Image, 0, len(images))

	for _, img := range images {
		if img.Width >= minCoverWidth && img.Height >= minCoverHeight {
			eligible = append(eligible, img)
		}
	}

	pool := eligible
	if len(pool) == 0 {
		pool = images
	}

	best := pool[0]
	bestScore := ScoreCoverCandidate(best)

	for _, img := range pool[1:] {
		if s := ScoreCoverCandidate(img); s > bestScore {
			best, bestScore = img, s
		}
	}

	return best, true
}
