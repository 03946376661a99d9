package stimulus

import (
	"fmt"
	"math"
)

// Params describes the White's illusion grating. Sizes are in degrees of
// visual angle unless noted.
type Params struct {
	PPD          float64 `yaml:"ppd"`
	Height       float64 `yaml:"height"`
	Width        float64 `yaml:"width"`
	Bars         int     `yaml:"bars"`
	TargetHeight float64 `yaml:"target_height"`
	LeftBar      int     `yaml:"left_bar"`
	RightBar     int     `yaml:"right_bar"`
	Background   float64 `yaml:"background"`
	CropColumns  int     `yaml:"crop_columns"`
	MarkerRows   int     `yaml:"marker_rows"`
	MarkerStart  int     `yaml:"marker_start"`
	Workers      int     `yaml:"workers"`
}

func DefaultParams() Params {
	return Params{
		PPD:          34,
		Height:       12,
		Width:        16,
		Bars:         18,
		TargetHeight: 5,
		LeftBar:      6,
		RightBar:     12,
		Background:   0.5,
		CropColumns:  7,
		MarkerRows:   30,
		MarkerStart:  20,
	}
}

func (p Params) validate() error {
	switch {
	case p.PPD <= 0 || p.Height <= 0 || p.Width <= 0:
		return fmt.Errorf("stimulus: sizes must be positive")
	case p.Bars < 2:
		return fmt.Errorf("stimulus: need at least two bars, got %d", p.Bars)
	case p.MarkerStart < 0 || p.MarkerStart > p.MarkerRows:
		return fmt.Errorf("stimulus: marker start %d outside strip of %d rows", p.MarkerStart, p.MarkerRows)
	}
	return nil
}

func (p Params) pixels(deg float64) int {
	return int(math.Round(deg * p.PPD))
}

// White renders a square-wave grating of black and white bars, starting with
// black on the left, with two grey targets. Context 0 puts a target on a black
// bar, context 1 on the white bar right after it. Below the grating a strip of
// background carries black markers under both targets.
func White(p Params, lumLeft, lumRight, ctxLeft, ctxRight float64) (*Image, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	h, w := p.pixels(p.Height), p.pixels(p.Width)
	barW := int(math.Round(float64(w) / float64(p.Bars)))
	if barW < 1 {
		return nil, fmt.Errorf("stimulus: bars narrower than a pixel")
	}
	outW := w - p.CropColumns
	if outW <= 0 {
		return nil, fmt.Errorf("stimulus: cropping %d columns leaves nothing", p.CropColumns)
	}

	targets := []struct {
		bar int
		lum float64
	}{
		{p.LeftBar + int(ctxLeft), lumLeft},
		{p.RightBar + int(ctxRight), lumRight},
	}
	for _, t := range targets {
		if t.bar < 0 || (t.bar+1)*barW > w {
			return nil, fmt.Errorf("stimulus: target bar %d outside grating", t.bar)
		}
	}

	th := p.pixels(p.TargetHeight)
	top := (h - th) / 2

	im := NewImage(outW, h+p.MarkerRows, p.Background)
	mask := make([]int, outW)
	for x := 0; x < outW; x++ {
		bar := x / barW
		v := float64(bar % 2)
		for y := 0; y < h; y++ {
			im.Set(x, y, v)
		}
		for i, t := range targets {
			if bar != t.bar {
				continue
			}
			mask[x] = i + 1
			for y := top; y < top+th; y++ {
				im.Set(x, y, t.lum)
			}
		}
	}

	for x, m := range mask {
		if m == 0 {
			continue
		}
		for y := h + p.MarkerStart; y < h+p.MarkerRows; y++ {
			im.Set(x, y, 0)
		}
	}
	return im, nil
}
