// Package verify implements the tiered face verification engine: the
// similarity scorer and the admission policy that turns two photographs into
// an auditable verdict.
package verify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/itkulocom-bit/attendance/internal/config"
	"github.com/itkulocom-bit/attendance/internal/detect"
	"github.com/itkulocom-bit/attendance/internal/feature"
	"github.com/itkulocom-bit/attendance/pkg/imaging"
)

// Locator is the quality gate consumed by the engine. A nil locator means
// detector-free mode: the gate is skipped and tiers run on whole frames.
type Locator interface {
	Locate(img *imaging.NormalizedImage) (detect.Region, error)
}

// Person is the enrollment record the engine reads. The reference image is
// the stored enrollment photo, empty when none exists.
type Person struct {
	IdentityKey string
	DisplayName string
	GroupLabel  string
	Reference   []byte
}

// Directory looks up enrolled people. The engine only ever reads through it;
// ownership of the records stays with the storage collaborator.
type Directory interface {
	GetEnrolledPerson(ctx context.Context, identityKey string) (*Person, error)
}

// Engine orchestrates the verification pipeline. It is stateless per request
// and safe for concurrent use: every intermediate value is request-local, and
// the locator and extractors are read-only after construction.
type Engine struct {
	cfg        *config.Config
	logger     *logrus.Logger
	locator    Locator
	extractors []feature.Extractor
	embedding  *feature.EmbeddingExtractor
}

// NewEngine assembles the locator and the ordered extraction tiers from the
// capability flags in cfg. An unavailable detector or embedding model
// degrades the engine rather than failing construction: the quality gate is
// skipped, or the tier is simply never attempted.
func NewEngine(cfg *config.Config, logger *logrus.Logger) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		logger: logger,
	}

	if cfg.Detection.Enabled {
		locator, err := detect.NewLocator(cfg.Detection)
		if err != nil {
			logger.Warnf("Face detector unavailable, quality gate disabled: %v", err)
		} else {
			e.locator = locator
		}
	}

	if cfg.Embedding.Enabled {
		emb, err := feature.NewEmbeddingExtractor(cfg.Embedding.ModelsDir)
		if err != nil {
			logger.Warnf("Embedding model unavailable, tier skipped: %v", err)
		} else {
			e.embedding = emb
			e.extractors = append(e.extractors, emb)
		}
	}

	if cfg.Classical.Enabled {
		e.extractors = append(e.extractors, feature.NewClassicalExtractor(cfg.Classical))
	}

	if cfg.RawPixel.Enabled {
		e.extractors = append(e.extractors, feature.NewRawPixelExtractor(cfg.RawPixel))
	}

	if len(e.extractors) == 0 {
		return nil, fmt.Errorf("no extraction tier available, check tier availability flags")
	}

	return e, nil
}

// Close releases the embedding model resources.
func (e *Engine) Close() error {
	if e.embedding != nil {
		e.embedding.Close()
	}
	return nil
}

// Verify decides whether the reference and captured photographs depict the
// same person. Undecodable inputs propagate as hard errors; every other
// result, including mismatches and quality rejections, is an ordinary
// Outcome the caller branches on.
func (e *Engine) Verify(reference, capture []byte) (*Outcome, error) {
	ref, err := imaging.Normalize(reference, e.cfg.Normalizer.MaxEdge, e.cfg.Normalizer.Quality)
	if err != nil {
		return nil, fmt.Errorf("reference photo: %w", err)
	}

	capt, err := imaging.Normalize(capture, e.cfg.Normalizer.MaxEdge, e.cfg.Normalizer.Quality)
	if err != nil {
		return nil, fmt.Errorf("captured photo: %w", err)
	}

	// Quality-gate both images before any tier runs: an unreadable capture
	// can never support a positive identity claim, and a reference that
	// fails the same gate is equally unusable as a baseline.
	var refRegion, capRegion *detect.Region
	if e.locator != nil {
		r, err := e.locator.Locate(ref)
		if err != nil {
			return e.qualityRejection("reference photo", err), nil
		}
		refRegion = &r

		c, err := e.locator.Locate(capt)
		if err != nil {
			return e.qualityRejection("captured photo", err), nil
		}
		capRegion = &c
	}

	// Tiers run in fixed fallback order; the first tier that produces a
	// score commits the decision. Later tiers are never consulted.
	for _, ex := range e.extractors {
		repRef, err := ex.Extract(ref, refRegion)
		if err != nil {
			e.logger.Debugf("Tier %s skipped on reference: %v", ex.Tier(), err)
			continue
		}

		repCap, err := ex.Extract(capt, capRegion)
		if err != nil {
			e.logger.Debugf("Tier %s skipped on capture: %v", ex.Tier(), err)
			continue
		}

		confidence, err := Score(repRef, repCap, e.cfg.Embedding.Metric)
		if err != nil {
			e.logger.Warnf("Tier %s scoring failed: %v", ex.Tier(), err)
			continue
		}

		outcome := e.decide(ex.Tier(), confidence)
		e.logger.Infof("Verification %s via %s tier (confidence: %.1f)",
			outcome.Status, ex.Tier(), confidence)
		return outcome, nil
	}

	return &Outcome{
		Status:    StatusInputError,
		Rationale: "no extraction tier could produce a comparable representation",
	}, nil
}

// VerifyEnrolled looks up the claimed identity and verifies the capture
// against the stored reference photo. A missing reference is a data issue,
// not a verification failure; the caller decides what, if anything, to
// record in that case.
func (e *Engine) VerifyEnrolled(ctx context.Context, dir Directory, identityKey string, capture []byte) (*Outcome, error) {
	person, err := dir.GetEnrolledPerson(ctx, identityKey)
	if err != nil {
		return nil, fmt.Errorf("enrollment lookup failed: %w", err)
	}

	if len(person.Reference) == 0 {
		return &Outcome{
			Status:    StatusNoReferencePhoto,
			Rationale: fmt.Sprintf("no reference photo on file for %s", identityKey),
		}, nil
	}

	return e.Verify(person.Reference, capture)
}

// decide applies the per-tier accept threshold and reject floor.
func (e *Engine) decide(tier feature.Tier, confidence float64) *Outcome {
	accept, floor := e.thresholdsFor(tier)

	switch {
	case confidence >= accept:
		return &Outcome{
			Status:     StatusAccepted,
			Confidence: confidence,
			Tier:       tier,
			Rationale: fmt.Sprintf("%s tier matched with confidence %.1f (accept threshold %.0f)",
				tier, confidence, accept),
		}
	case confidence >= floor:
		return &Outcome{
			Status:     StatusBorderlineNeedsOverride,
			Confidence: confidence,
			Tier:       tier,
			Rationale: fmt.Sprintf("%s tier confidence %.1f is below accept threshold %.0f but above reject floor %.0f",
				tier, confidence, accept, floor),
		}
	default:
		return &Outcome{
			Status:     StatusRejected,
			Confidence: confidence,
			Tier:       tier,
			Rationale: fmt.Sprintf("%s tier confidence %.1f is below reject floor %.0f",
				tier, confidence, floor),
		}
	}
}

func (e *Engine) thresholdsFor(tier feature.Tier) (accept, floor float64) {
	switch tier {
	case feature.TierEmbedding:
		return e.cfg.Embedding.AcceptThreshold, e.cfg.Embedding.RejectFloor
	case feature.TierClassical:
		return e.cfg.Classical.AcceptThreshold, e.cfg.Classical.RejectFloor
	default:
		return e.cfg.RawPixel.AcceptThreshold, e.cfg.RawPixel.RejectFloor
	}
}

func (e *Engine) qualityRejection(which string, err error) *Outcome {
	e.logger.Infof("Verification rejected before any tier ran: %s: %v", which, err)
	return &Outcome{
		Status:     StatusRejected,
		Confidence: 0,
		Rationale:  fmt.Sprintf("%s failed quality gate: %v", which, err),
	}
}
