package verify

import (
	"fmt"
	"math"

	"github.com/itkulocom-bit/attendance/internal/feature"
	"github.com/itkulocom-bit/attendance/pkg/imaging"
)

// Sub-score weights for the classical tier: histogram correlation carries
// more signal than raw pixel overlap.
const (
	classicalHistWeight  = 0.6
	classicalPixelWeight = 0.4
)

// Score computes a 0-100 confidence between two representations of the same
// tier. Comparing representations of different tiers is a programming error,
// not a runtime policy branch, and always returns an error.
func Score(a, b *feature.Representation, metric string) (float64, error) {
	if a.Tier != b.Tier {
		return 0, fmt.Errorf("cannot compare %s and %s representations", a.Tier, b.Tier)
	}

	switch a.Tier {
	case feature.TierEmbedding:
		return scoreEmbedding(a.Embedding, b.Embedding, metric), nil
	case feature.TierClassical:
		return scoreClassical(a, b), nil
	case feature.TierRawPixel:
		return scoreRawPixel(a.Pixels, b.Pixels), nil
	default:
		return 0, fmt.Errorf("unknown tier %s", a.Tier)
	}
}

// scoreEmbedding converts a vector distance to a confidence percentage.
// With the dlib descriptor convention a euclidean distance of 0.4 or less
// indicates the same person, which lands at confidence 60 and above.
func scoreEmbedding(a, b []float32, metric string) float64 {
	var dist float64
	if metric == "cosine" {
		dist = 1 - cosineSimilarity32(a, b)
	} else {
		dist = euclideanDistance(a, b)
	}
	return imaging.Clamp(100-dist*100, 0, 100)
}

// scoreClassical blends histogram correlation with pixel cosine similarity.
func scoreClassical(a, b *feature.Representation) float64 {
	// Pearson correlation sits in [-1, 1]; rescale to [0, 100].
	hist := (pearsonCorrelation(a.Histogram, b.Histogram) + 1) / 2 * 100

	pix := cosineSimilarity(a.Pixels, b.Pixels)
	if pix < 0 {
		pix = 0
	}

	return imaging.Clamp(hist*classicalHistWeight+pix*100*classicalPixelWeight, 0, 100)
}

// scoreRawPixel expresses the cosine similarity of two flattened, normalized
// pixel vectors as a percentage.
func scoreRawPixel(a, b []float64) float64 {
	sim := cosineSimilarity(a, b)
	if sim < 0 {
		sim = 0
	}
	return imaging.Clamp(sim*100, 0, 100)
}

// cosineSimilarity returns the cosine of the angle between two vectors.
// Degenerate zero-norm vectors score 0 rather than dividing by zero.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func cosineSimilarity32(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func euclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.MaxFloat64
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// pearsonCorrelation computes the Pearson correlation coefficient of two
// equal-length vectors. Zero-variance inputs correlate to 0.
func pearsonCorrelation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
