package stimulus

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var ErrPlacement = errors.New("stimulus: could not place dot without overlap")

type Point struct{ X, Y float64 }

// DotParams describes the numerosity stimuli: a cloud of black dots on a grey
// square, coordinates in [-Limit, Limit].
type DotParams struct {
	Size        int     `yaml:"size"`
	Radius      float64 `yaml:"radius"`
	Limit       float64 `yaml:"limit"`
	MinDistance float64 `yaml:"min_distance"`
	Background  float64 `yaml:"background"`
	MaxAttempts int     `yaml:"max_attempts"`
}

func DefaultDotParams() DotParams {
	return DotParams{
		Size:        400,
		Radius:      7,
		Limit:       1.1,
		MinDistance: 0.125,
		Background:  0.5,
		MaxAttempts: 10000,
	}
}

// randomInCircle draws a point uniformly from the unit disc.
func randomInCircle(rng *rand.Rand) Point {
	r := math.Sqrt(rng.Float64())
	theta := 2 * math.Pi * rng.Float64()
	return Point{r * math.Cos(theta), r * math.Sin(theta)}
}

// DotCloud places n points in the unit disc, each farther than minDist from
// every other.
func DotCloud(n int, minDist float64, maxAttempts int, rng *rand.Rand) ([]Point, error) {
	if n < 1 {
		return nil, fmt.Errorf("stimulus: dot count must be positive, got %d", n)
	}
	pts := []Point{randomInCircle(rng)}
	for len(pts) < n {
		placed := false
		for attempt := 0; attempt < maxAttempts; attempt++ {
			c := randomInCircle(rng)
			if isClear(pts, c, minDist) {
				pts = append(pts, c)
				placed = true
				break
			}
		}
		if !placed {
			return nil, fmt.Errorf("%w: %d of %d placed", ErrPlacement, len(pts), n)
		}
	}
	return pts, nil
}

func isClear(pts []Point, c Point, minDist float64) bool {
	for _, p := range pts {
		if math.Hypot(p.X-c.X, p.Y-c.Y) <= minDist {
			return false
		}
	}
	return true
}

func Dots(p DotParams, pts []Point) *Image {
	im := NewImage(p.Size, p.Size, p.Background)
	scale := float64(p.Size) / (2 * p.Limit)
	r := p.Radius
	for _, pt := range pts {
		cx := (pt.X + p.Limit) * scale
		cy := (p.Limit - pt.Y) * scale
		x0, x1 := int(math.Floor(cx-r)), int(math.Ceil(cx+r))
		y0, y1 := int(math.Floor(cy-r)), int(math.Ceil(cy+r))
		for y := max(y0, 0); y < min(y1, p.Size); y++ {
			for x := max(x0, 0); x < min(x1, p.Size); x++ {
				dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
				if dx*dx+dy*dy <= r*r {
					im.Set(x, y, 0)
				}
			}
		}
	}
	return im
}
