package estimator

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode reports bytes that could not be decoded into a raster.
	ErrDecode = errors.New("image could not be decoded")
	// ErrEmptyImage reports a raster with zero pixels.
	ErrEmptyImage = errors.New("image has no pixels")
)

// Raster is a decoded bitmap stored row-major with 3 (RGB) or 4 (RGBA) samples per pixel.
// It is read-only once built.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewRaster validates that pix holds exactly width*height*channels samples.
func NewRaster(width, height, channels int, pix []uint8) (*Raster, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if channels != 3 && channels != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if want := width * height * channels; len(pix) != want {
		return nil, fmt.Errorf("raster %dx%dx%d needs %d samples, got %d", width, height, channels, want, len(pix))
	}
	return &Raster{Width: width, Height: height, Channels: channels, Pix: pix}, nil
}

// FromImage flattens img into non-premultiplied RGBA samples, matching what a
// browser canvas reports for the same file.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	r := &Raster{Width: w, Height: h, Channels: 4}

	if src, ok := img.(*image.NRGBA); ok && src.Stride == w*4 && src.Rect.Min == (image.Point{}) {
		r.Pix = src.Pix[:w*h*4]
		return r
	}

	r.Pix = make([]uint8, 0, w*h*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			r.Pix = append(r.Pix, c.R, c.G, c.B, c.A)
		}
	}
	return r
}

// Decode turns encoded image bytes (PNG, JPEG, GIF, TIFF, BMP, WEBP) into a Raster.
func Decode(data []byte) (*Raster, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrDecode)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return FromImage(img), format, nil
}

// Pixels returns width*height.
func (r *Raster) Pixels() int {
	if r == nil {
		return 0
	}
	return r.Width * r.Height
}

// RGB returns the colour channels of pixel i in row-major order. Alpha is ignored.
func (r *Raster) RGB(i int) (uint8, uint8, uint8) {
	off := i * r.Channels
	return r.Pix[off], r.Pix[off+1], r.Pix[off+2]
}
