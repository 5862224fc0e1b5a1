// Package imaging provides image normalization and pixel utilities for the
// verification pipeline. Every captured or uploaded image passes through
// Normalize before any downstream component sees it, so detectors and
// extractors can assume a consistent memory and channel layout.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// DecodeError indicates the input bytes are not a supported image format.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unable to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NormalizedImage is the canonical in-memory form of an input image: a plain
// three-channel RGBA bitmap plus its JPEG-encoded bytes for storage and
// transport. Never mutated after creation.
type NormalizedImage struct {
	RGBA    *image.RGBA
	Encoded []byte
	Width   int
	Height  int
}

// Normalize decodes raw image bytes, coerces them to RGBA, bounds the long
// edge to maxEdge pixels and re-encodes as JPEG at the given quality. Images
// already within the bound keep their native size.
func Normalize(data []byte, maxEdge, quality int) (*NormalizedImage, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 1 || height < 1 {
		return nil, &DecodeError{Err: fmt.Errorf("empty image %dx%d", width, height)}
	}

	dstW, dstH := width, height
	if maxEdge > 0 && (width > maxEdge || height > maxEdge) {
		if width >= height {
			dstW = maxEdge
			dstH = height * maxEdge / width
		} else {
			dstH = maxEdge
			dstW = width * maxEdge / height
		}
		if dstW < 1 {
			dstW = 1
		}
		if dstH < 1 {
			dstH = 1
		}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	if dstW == width && dstH == height {
		// Coerce palette/alpha formats to plain RGBA without resampling
		draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(rgba, rgba.Bounds(), src, bounds, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode normalized image: %w", err)
	}

	return &NormalizedImage{
		RGBA:    rgba,
		Encoded: buf.Bytes(),
		Width:   dstW,
		Height:  dstH,
	}, nil
}

// Resize scales an image to the exact target size using CatmullRom filtering.
func Resize(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Grayscale converts an image to grayscale using the luminance formula.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			gray.SetGray(x, y, color.Gray{Y: uint8(luma / 256)})
		}
	}

	return gray
}

// Crop extracts a rectangular region from an image, clamped to its bounds.
func Crop(img image.Image, x, y, width, height int) *image.RGBA {
	bounds := img.Bounds()

	if x < bounds.Min.X {
		width -= bounds.Min.X - x
		x = bounds.Min.X
	}
	if y < bounds.Min.Y {
		height -= bounds.Min.Y - y
		y = bounds.Min.Y
	}
	if x+width > bounds.Max.X {
		width = bounds.Max.X - x
	}
	if y+height > bounds.Max.Y {
		height = bounds.Max.Y - y
	}
	if width < 1 || height < 1 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	cropped := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(cropped, cropped.Bounds(), img, image.Pt(x, y), draw.Src)
	return cropped
}

// GrayVector resizes an image to a size x size grayscale grid and flattens it
// to a row-major vector with values normalized to [0, 1].
func GrayVector(img image.Image, size int) []float64 {
	resized := Resize(img, size, size)
	gray := Grayscale(resized)

	vec := make([]float64, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			vec[y*size+x] = float64(gray.GrayAt(x, y).Y) / 255.0
		}
	}
	return vec
}

// Histogram computes a normalized grayscale intensity histogram with the
// given number of bins. Bin counts are divided by the pixel count so the
// histogram sums to 1 for any non-empty image.
func Histogram(img image.Image, bins int) []float64 {
	gray := Grayscale(img)
	bounds := gray.Bounds()

	hist := make([]float64, bins)
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return hist
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			bin := int(gray.GrayAt(x, y).Y) * bins / 256
			if bin >= bins {
				bin = bins - 1
			}
			hist[bin]++
		}
	}

	for i := range hist {
		hist[i] /= float64(total)
	}
	return hist
}

// Clamp clamps a value between min and max.
func Clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
