// Package detect provides face location and framing quality checks.
// The locator runs a pigo frontal-face cascade over the grayscale form of a
// normalized image and enforces the quality policy: exactly one face, neither
// too small nor too large relative to the frame.
package detect

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/itkulocom-bit/attendance/internal/config"
	"github.com/itkulocom-bit/attendance/pkg/imaging"
)

// Reason identifies why an image failed the quality gate.
type Reason string

const (
	NoFaceFound        Reason = "NoFaceFound"
	MultipleFacesFound Reason = "MultipleFacesFound"
	FaceTooSmall       Reason = "FaceTooSmall"
	FaceTooLarge       Reason = "FaceTooLarge"
)

// QualityError reports a structurally valid image with unusable face framing.
// It is an expected outcome, not a system fault; callers typically prompt for
// a retake.
type QualityError struct {
	Reason    Reason
	Count     int     // Detected face count, set for MultipleFacesFound
	AreaRatio float64 // Face area / frame area, set for size rejections
}

func (e *QualityError) Error() string {
	switch e.Reason {
	case MultipleFacesFound:
		return fmt.Sprintf("%s: %d faces detected, exactly one required", e.Reason, e.Count)
	case FaceTooSmall:
		return fmt.Sprintf("%s: face covers %.1f%% of frame", e.Reason, e.AreaRatio*100)
	case FaceTooLarge:
		return fmt.Sprintf("%s: face covers %.1f%% of frame", e.Reason, e.AreaRatio*100)
	default:
		return string(e.Reason)
	}
}

// Region locates a detected face inside a normalized image.
type Region struct {
	X         int
	Y         int
	Width     int
	Height    int
	AreaRatio float64
}

// Locator wraps a pigo cascade classifier. Safe for concurrent use after
// construction; the classifier is read-only.
type Locator struct {
	classifier *pigo.Pigo
	cfg        config.DetectionConfig
}

// NewLocator loads the cascade file and prepares the classifier.
func NewLocator(cfg config.DetectionConfig) (*Locator, error) {
	data, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}

	return &Locator{
		classifier: classifier,
		cfg:        cfg,
	}, nil
}

// Locate finds exactly one acceptable face region in the image. Zero
// detections, multiple detections, and out-of-bounds face sizes all return a
// *QualityError; ambiguity about which face belongs to the claimed identity
// is never resolved silently.
func (l *Locator) Locate(img *imaging.NormalizedImage) (Region, error) {
	src := pigo.ImgToNRGBA(img.RGBA)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	maxSize := cols
	if rows < maxSize {
		maxSize = rows
	}
	minSize := l.cfg.MinWindow
	if minSize > maxSize {
		minSize = maxSize
	}

	params := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: l.cfg.ShiftFactor,
		ScaleFactor: l.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := l.classifier.RunCascade(params, 0.0)
	dets = l.classifier.ClusterDetections(dets, l.cfg.IoUThreshold)

	// The cluster quality score plays the role of a neighbor-vote
	// threshold: weak isolated detections are discarded as false positives.
	var faces []pigo.Detection
	for _, d := range dets {
		if d.Q >= l.cfg.QualityThreshold {
			faces = append(faces, d)
		}
	}

	if len(faces) == 0 {
		return Region{}, &QualityError{Reason: NoFaceFound}
	}
	if len(faces) > 1 {
		return Region{}, &QualityError{Reason: MultipleFacesFound, Count: len(faces)}
	}

	d := faces[0]
	region := Region{
		X:      d.Col - d.Scale/2,
		Y:      d.Row - d.Scale/2,
		Width:  d.Scale,
		Height: d.Scale,
	}
	region.AreaRatio = float64(region.Width*region.Height) / float64(cols*rows)

	return CheckFraming(region, l.cfg.MinAreaRatio, l.cfg.MaxAreaRatio)
}

// CheckFraming applies the face-area bounds to a located region.
func CheckFraming(region Region, minRatio, maxRatio float64) (Region, error) {
	if region.AreaRatio < minRatio {
		return Region{}, &QualityError{Reason: FaceTooSmall, AreaRatio: region.AreaRatio}
	}
	if region.AreaRatio > maxRatio {
		return Region{}, &QualityError{Reason: FaceTooLarge, AreaRatio: region.AreaRatio}
	}
	return region, nil
}
