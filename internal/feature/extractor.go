// Package feature turns a located face (or whole frame) into a comparable
// representation. Three independently usable extraction tiers exist, in
// decreasing order of reliability: a learned embedding from a pretrained
// dlib model, a handcrafted histogram + pixel bundle, and a raw downsampled
// pixel vector requiring no detection at all.
package feature

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/itkulocom-bit/attendance/internal/config"
	"github.com/itkulocom-bit/attendance/internal/detect"
	"github.com/itkulocom-bit/attendance/pkg/imaging"
)

// Tier identifies an extraction strategy.
type Tier int

const (
	TierNone      Tier = iota // no tier executed
	TierEmbedding             // pretrained embedding model
	TierClassical             // histogram + pixel intensity bundle
	TierRawPixel              // downsampled whole-frame pixels
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "None"
	case TierEmbedding:
		return "EmbeddingModel"
	case TierClassical:
		return "ClassicalDetector"
	case TierRawPixel:
		return "RawPixel"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Representation is a tier-tagged feature bundle. Only the fields belonging
// to the tagged tier are populated; comparisons across tiers are invalid.
type Representation struct {
	Tier      Tier
	Embedding []float32 // TierEmbedding
	Pixels    []float64 // TierClassical, TierRawPixel
	Histogram []float64 // TierClassical
}

// Extractor produces a representation from a normalized image. The region is
// the quality-gate detection when one is available and nil in detector-free
// mode; extractors that do not need it ignore it.
type Extractor interface {
	Tier() Tier
	Extract(img *imaging.NormalizedImage, region *detect.Region) (*Representation, error)
}

// ErrNoUsableFace is returned when the embedding model cannot isolate a
// single face in the input.
var ErrNoUsableFace = errors.New("embedding model found no single usable face")

// EmbeddingExtractor runs the pretrained dlib resnet model via go-face and
// returns a 128-dimensional descriptor. The recognizer holds a cgo handle
// and is serialized behind a mutex; everything else about it is read-only.
type EmbeddingExtractor struct {
	rec *face.Recognizer
	mu  sync.Mutex
}

// NewEmbeddingExtractor loads the dlib models (shape predictor and resnet
// descriptor network) from modelsDir.
func NewEmbeddingExtractor(modelsDir string) (*EmbeddingExtractor, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding models: %w", err)
	}
	return &EmbeddingExtractor{rec: rec}, nil
}

func (e *EmbeddingExtractor) Tier() Tier { return TierEmbedding }

// Extract runs the model over the encoded JPEG form of the image. The model
// performs its own face alignment, so the quality-gate region is not needed
// here; single-face enforcement still applies.
func (e *EmbeddingExtractor) Extract(img *imaging.NormalizedImage, _ *detect.Region) (*Representation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.rec.RecognizeSingle(img.Encoded)
	if err != nil {
		return nil, fmt.Errorf("embedding extraction failed: %w", err)
	}
	if f == nil {
		return nil, ErrNoUsableFace
	}

	emb := make([]float32, len(f.Descriptor))
	copy(emb, f.Descriptor[:])

	return &Representation{Tier: TierEmbedding, Embedding: emb}, nil
}

// Close releases the dlib recognizer resources.
func (e *EmbeddingExtractor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
}

// ClassicalExtractor computes a normalized grayscale intensity histogram and
// a flattened 0-1 pixel vector from the face crop, or from the whole frame
// when no detection is available.
type ClassicalExtractor struct {
	cfg config.ClassicalConfig
}

func NewClassicalExtractor(cfg config.ClassicalConfig) *ClassicalExtractor {
	return &ClassicalExtractor{cfg: cfg}
}

func (e *ClassicalExtractor) Tier() Tier { return TierClassical }

func (e *ClassicalExtractor) Extract(img *imaging.NormalizedImage, region *detect.Region) (*Representation, error) {
	var src = img.RGBA
	if region != nil {
		crop := imaging.Crop(img.RGBA, region.X, region.Y, region.Width, region.Height)
		if crop.Bounds().Dx() < 1 || crop.Bounds().Dy() < 1 {
			return nil, fmt.Errorf("face crop is empty")
		}
		src = crop
	}

	return &Representation{
		Tier:      TierClassical,
		Pixels:    imaging.GrayVector(src, e.cfg.PixelSize),
		Histogram: imaging.Histogram(src, e.cfg.HistogramBins),
	}, nil
}

// RawPixelExtractor downsamples the whole frame to a small grayscale grid.
// It has no detection step and cannot fail on a valid normalized image,
// which makes it the last-resort tier.
type RawPixelExtractor struct {
	cfg config.RawPixelConfig
}

func NewRawPixelExtractor(cfg config.RawPixelConfig) *RawPixelExtractor {
	return &RawPixelExtractor{cfg: cfg}
}

func (e *RawPixelExtractor) Tier() Tier { return TierRawPixel }

func (e *RawPixelExtractor) Extract(img *imaging.NormalizedImage, _ *detect.Region) (*Representation, error) {
	return &Representation{
		Tier:   TierRawPixel,
		Pixels: imaging.GrayVector(img.RGBA, e.cfg.GridSize),
	}, nil
}
