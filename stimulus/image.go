// Package stimulus renders the images shown on each trial and writes them as
// 8-bit greyscale PNG files.
package stimulus

import (
	"image"
	"image/png"
	"math"
	"os"
)

// Image is a greyscale picture with intensities in [0, 1].
type Image struct {
	W, H int
	Pix  []float64
}

func NewImage(w, h int, fill float64) *Image {
	im := &Image{W: w, H: h, Pix: make([]float64, w*h)}
	for i := range im.Pix {
		im.Pix[i] = fill
	}
	return im
}

func (im *Image) At(x, y int) float64 { return im.Pix[y*im.W+x] }

func (im *Image) Set(x, y int, v float64) { im.Pix[y*im.W+x] = v }

func (im *Image) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, im.W, im.H))
	for i, v := range im.Pix {
		g.Pix[i] = toByte(v)
	}
	return g
}

func toByte(v float64) uint8 {
	v = math.Round(v * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func (im *Image) WritePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, im.Gray()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
