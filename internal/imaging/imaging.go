// Package imaging holds the decode, resample, crop and JPEG encode steps
// shared by rasterization, segmentation and analysis.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	_ "image/png"

	"golang.org/x/image/draw"
)

func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Exceeds reports whether either side of img is larger than maxDim.
func Exceeds(img image.Image, maxDim int) bool {
	b := img.Bounds()
	return maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim)
}

// FitWithin scales img down, keeping its aspect ratio, so neither side is
// larger than maxDim. Images already within the bound are returned as is.
func FitWithin(img image.Image, maxDim int) image.Image {
	if !Exceeds(img, maxDim) {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Crop copies rect out of img into a new image anchored at the origin.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func SaveJPEG(path string, img image.Image, quality int) error {
	data, err := EncodeJPEG(img, quality)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
