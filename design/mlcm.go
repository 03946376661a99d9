// Package design builds the randomised blocks of trials presented in a
// session: pairs of White's-illusion targets for MLCM, and triads of
// numerosities for MLDS.
package design

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path"
	"strconv"
	"strings"
)

var ErrLevels = errors.New("design: not enough stimulus levels")

// Stimulus is one point of the two-dimensional MLCM stimulus space: target
// luminance and the context bar it sits on (0 black, 1 white).
type Stimulus struct {
	Lum     float64
	Context float64
}

type Pair [2]Stimulus

type Params struct {
	Blocks    int       `yaml:"blocks"`
	LumStart  float64   `yaml:"lum_start"`
	LumStop   float64   `yaml:"lum_stop"`
	LumSteps  int       `yaml:"lum_steps"`
	Decimals  int       `yaml:"decimals"`
	Contexts  []float64 `yaml:"contexts"`
	Reduced   bool      `yaml:"reduced"`
	ImagesDir string    `yaml:"images_dir"`
	Seed      int64     `yaml:"seed"`
}

func DefaultParams() Params {
	return Params{
		Blocks:    5,
		LumStart:  0.25,
		LumStop:   0.75,
		LumSteps:  7,
		Decimals:  2,
		Contexts:  []float64{0, 1},
		ImagesDir: "imgs",
	}
}

// Linspace returns n evenly spaced values from start to stop inclusive,
// rounded to the given number of decimals.
func Linspace(start, stop float64, n, decimals int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{Round(start, decimals)}
	}
	step := (stop - start) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = Round(start+float64(i)*step, decimals)
	}
	out[n-1] = Round(stop, decimals)
	return out
}

func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*p) / p
}

func (p Params) Luminances() []float64 {
	return Linspace(p.LumStart, p.LumStop, p.LumSteps, p.Decimals)
}

// Stimuli is the full stimulus space, luminance-major.
func (p Params) Stimuli() []Stimulus {
	var out []Stimulus
	for _, l := range p.Luminances() {
		for _, c := range p.Contexts {
			out = append(out, Stimulus{Lum: l, Context: c})
		}
	}
	return out
}

// Pairs lists every unordered pair of stimuli. A reduced design keeps only
// pairs across contexts and presents each of them twice.
func (p Params) Pairs() ([]Pair, error) {
	stim := p.Stimuli()
	if len(stim) < 2 {
		return nil, ErrLevels
	}
	var pairs []Pair
	for i := 0; i < len(stim); i++ {
		for j := i + 1; j < len(stim); j++ {
			pairs = append(pairs, Pair{stim[i], stim[j]})
		}
	}
	if !p.Reduced {
		return pairs, nil
	}
	across := pairs[:0]
	for _, pr := range pairs {
		if pr[0].Context != pr[1].Context {
			across = append(across, pr)
		}
	}
	if len(across) == 0 {
		return nil, fmt.Errorf("%w: reduced design needs at least two contexts", ErrLevels)
	}
	return append(across, across...), nil
}

type Trial struct {
	Index int
	Left  Stimulus
	Right Stimulus
	Image string
}

// Block puts every pair in random left/right order and shuffles the trials.
func (p Params) Block(rng *rand.Rand) ([]Trial, error) {
	pairs, err := p.Pairs()
	if err != nil {
		return nil, err
	}
	out := make([]Trial, len(pairs))
	for i, pr := range pairs {
		left, right := pr[0], pr[1]
		if rng.Intn(2) == 0 {
			left, right = right, left
		}
		out[i] = Trial{
			Left:  left,
			Right: right,
			Image: path.Join(p.ImagesDir, WhiteName(left, right)),
		}
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	for i := range out {
		out[i].Index = i
	}
	return out, nil
}

func WhiteName(left, right Stimulus) string {
	return fmt.Sprintf("white_%s_%s_%s_%s.png",
		FormatFloat(left.Lum), FormatFloat(right.Lum),
		FormatFloat(left.Context), FormatFloat(right.Context))
}

// FormatFloat writes v in its shortest form, keeping a trailing ".0" on whole
// numbers so file names read 0.0 and 1.0 rather than 0 and 1.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

var MLCMColumns = []string{"trial", "lum1", "lum2", "c1", "c2", "im"}

func (t Trial) Record() []string {
	return []string{
		strconv.Itoa(t.Index),
		FormatFloat(t.Left.Lum),
		FormatFloat(t.Right.Lum),
		FormatFloat(t.Left.Context),
		FormatFloat(t.Right.Context),
		t.Image,
	}
}
