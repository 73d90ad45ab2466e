package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// RenditionCount is the fixed number of images every product carries.
const RenditionCount = 4

// JPEGQuality is used for every rendition.
const JPEGQuality = 85

// Rendition is one encoded product image.
type Rendition struct {
	Name          string
	Data          []byte
	ContentType   string
	Width, Height int
}

// renditionSpec describes a rendition. Square renditions are letterboxed
// onto white; the others keep the aspect ratio within MaxDim.
type renditionSpec struct {
	Name   string
	MaxDim int
	Square bool
}

// renditionSpecs are the four product images, in the order the product page
// shows them.
var renditionSpecs = [RenditionCount]renditionSpec{
	{Name: "main", MaxDim: 1600},
	{Name: "square", MaxDim: 1080, Square: true},
	{Name: "display", MaxDim: 800},
	{Name: "thumb", MaxDim: 320, Square: true},
}

// Renditions decodes a photo (JPEG, PNG, GIF or WebP) and encodes the four
// product renditions as JPEG. Transparent areas, such as those left by
// background removal, become white.
func Renditions(data []byte) ([]Rendition, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	out := make([]Rendition, 0, RenditionCount)
	for _, spec := range renditionSpecs {
		img := render(src, spec)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode %s rendition: %w", spec.Name, err)
		}
		out = append(out, Rendition{
			Name:        spec.Name,
			Data:        buf.Bytes(),
			ContentType: "image/jpeg",
			Width:       img.Bounds().Dx(),
			Height:      img.Bounds().Dy(),
		})
	}

	log.Debug().
		Str("format", format).
		Int("orig_width", b.Dx()).
		Int("orig_height", b.Dy()).
		Int("renditions", len(out)).
		Msg("Renditions generated")
	return out, nil
}

// render scales src into the canvas for spec over a white background.
func render(src image.Image, spec renditionSpec) *image.RGBA {
	b := src.Bounds()
	w, h := fitDimensions(b.Dx(), b.Dy(), spec.MaxDim)

	canvasW, canvasH := w, h
	if spec.Square {
		canvasW, canvasH = spec.MaxDim, spec.MaxDim
	}
	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	x0 := (canvasW - w) / 2
	y0 := (canvasH - h) / 2
	dst := image.Rect(x0, y0, x0+w, y0+h)
	draw.CatmullRom.Scale(canvas, dst, src, b, draw.Over, nil)
	return canvas
}

// fitDimensions scales width x height so the longer side equals maxDim,
// preserving the aspect ratio. Images are scaled up as well as down so every
// rendition has a predictable size. Neither side drops below 1.
func fitDimensions(width, height, maxDim int) (int, int) {
	if width >= height {
		h := int(float64(height) * float64(maxDim) / float64(width))
		return maxDim, max(h, 1)
	}
	w := int(float64(width) * float64(maxDim) / float64(height))
	return max(w, 1), maxDim
}
