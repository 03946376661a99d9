package design

import (
	"fmt"
	"math/rand"
	"strconv"
)

// MLDSParams describes the numerosity experiment judged with the method of
// triads.
type MLDSParams struct {
	Blocks       int   `yaml:"blocks"`
	Levels       []int `yaml:"levels"`
	Realizations int   `yaml:"realizations"`
	Seed         int64 `yaml:"seed"`
}

func DefaultMLDSParams() MLDSParams {
	return MLDSParams{
		Blocks:       5,
		Levels:       []int{5, 10, 15, 20, 25, 30, 40, 50, 60},
		Realizations: 10,
	}
}

type Triad struct {
	Index  int
	Levels [3]int
	Images [3]string
}

// Triads lists every combination of three levels in the given order.
func Triads(levels []int) ([][3]int, error) {
	if len(levels) < 3 {
		return nil, ErrLevels
	}
	var out [][3]int
	for i := 0; i < len(levels); i++ {
		for j := i + 1; j < len(levels); j++ {
			for k := j + 1; k < len(levels); k++ {
				out = append(out, [3]int{levels[i], levels[j], levels[k]})
			}
		}
	}
	return out, nil
}

// Block draws a realization for each member of every triad, presents the
// triad in ascending or descending order at random, and shuffles the trials.
func (p MLDSParams) Block(rng *rand.Rand) ([]Triad, error) {
	if p.Realizations < 1 {
		return nil, fmt.Errorf("design: realizations must be positive, got %d", p.Realizations)
	}
	triads, err := Triads(p.Levels)
	if err != nil {
		return nil, err
	}
	out := make([]Triad, len(triads))
	for i, t := range triads {
		var r [3]int
		for j := range r {
			r[j] = rng.Intn(p.Realizations) + 1
		}
		if rng.Intn(2) == 0 {
			t[0], t[2] = t[2], t[0]
		}
		out[i] = Triad{Levels: t}
		for j := range t {
			out[i].Images[j] = DotsName(t[j], r[j])
		}
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	for i := range out {
		out[i].Index = i
	}
	return out, nil
}

func DotsName(n, realization int) string {
	return fmt.Sprintf("s_%d_r_%d.png", n, realization)
}

var MLDSColumns = []string{"trial", "s1", "s2", "s3", "im1", "im2", "im3"}

func (t Triad) Record() []string {
	return []string{
		strconv.Itoa(t.Index),
		strconv.Itoa(t.Levels[0]),
		strconv.Itoa(t.Levels[1]),
		strconv.Itoa(t.Levels[2]),
		t.Images[0],
		t.Images[1],
		t.Images[2],
	}
}
