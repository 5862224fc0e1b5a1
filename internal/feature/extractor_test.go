package feature

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/itkulocom-bit/attendance/internal/config"
	"github.com/itkulocom-bit/attendance/internal/detect"
	"github.com/itkulocom-bit/attendance/pkg/imaging"
)

func testImage(w, h int) *imaging.NormalizedImage {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 128,
				A: 255,
			})
		}
	}
	return &imaging.NormalizedImage{RGBA: img, Width: w, Height: h}
}

func TestTierString(t *testing.T) {
	cases := map[Tier]string{
		TierNone:      "None",
		TierEmbedding: "EmbeddingModel",
		TierClassical: "ClassicalDetector",
		TierRawPixel:  "RawPixel",
	}
	for tier, want := range cases {
		if got := tier.String(); got != want {
			t.Errorf("Expected '%s', got '%s'", want, got)
		}
	}
}

func TestClassicalExtractor(t *testing.T) {
	cfg := config.DefaultConfig().Classical
	ex := NewClassicalExtractor(cfg)

	if ex.Tier() != TierClassical {
		t.Errorf("Expected ClassicalDetector tier, got %s", ex.Tier())
	}

	t.Run("WholeFrame", func(t *testing.T) {
		rep, err := ex.Extract(testImage(200, 160), nil)
		if err != nil {
			t.Fatalf("Extraction failed: %v", err)
		}

		if rep.Tier != TierClassical {
			t.Errorf("Representation carries wrong tier: %s", rep.Tier)
		}
		if len(rep.Pixels) != cfg.PixelSize*cfg.PixelSize {
			t.Errorf("Expected %d pixels, got %d", cfg.PixelSize*cfg.PixelSize, len(rep.Pixels))
		}
		if len(rep.Histogram) != cfg.HistogramBins {
			t.Errorf("Expected %d histogram bins, got %d", cfg.HistogramBins, len(rep.Histogram))
		}

		var sum float64
		for _, v := range rep.Histogram {
			sum += v
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("Histogram should sum to 1, got %f", sum)
		}
	})

	t.Run("FaceRegionCrop", func(t *testing.T) {
		region := &detect.Region{X: 40, Y: 30, Width: 80, Height: 80}

		rep, err := ex.Extract(testImage(200, 160), region)
		if err != nil {
			t.Fatalf("Extraction failed: %v", err)
		}

		whole, err := ex.Extract(testImage(200, 160), nil)
		if err != nil {
			t.Fatalf("Extraction failed: %v", err)
		}

		same := true
		for i := range rep.Pixels {
			if rep.Pixels[i] != whole.Pixels[i] {
				same = false
				break
			}
		}
		if same {
			t.Error("Cropped extraction should differ from whole-frame extraction")
		}
	})

	t.Run("EmptyRegion", func(t *testing.T) {
		region := &detect.Region{X: 500, Y: 500, Width: 50, Height: 50}

		if _, err := ex.Extract(testImage(200, 160), region); err == nil {
			t.Fatal("Expected error for a region outside the frame")
		}
	})
}

func TestRawPixelExtractor(t *testing.T) {
	cfg := config.DefaultConfig().RawPixel
	ex := NewRawPixelExtractor(cfg)

	if ex.Tier() != TierRawPixel {
		t.Errorf("Expected RawPixel tier, got %s", ex.Tier())
	}

	rep, err := ex.Extract(testImage(200, 160), nil)
	if err != nil {
		t.Fatalf("Extraction failed: %v", err)
	}

	if len(rep.Pixels) != cfg.GridSize*cfg.GridSize {
		t.Errorf("Expected %d pixels, got %d", cfg.GridSize*cfg.GridSize, len(rep.Pixels))
	}
	for i, v := range rep.Pixels {
		if v < 0 || v > 1 {
			t.Fatalf("Pixel %d out of range: %f", i, v)
		}
	}
}
