package design

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

type recorder interface {
	Record() []string
}

func writeCSV[T recorder](w io.Writer, columns []string, rows []T) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteMLCM(w io.Writer, trials []Trial) error {
	return writeCSV(w, MLCMColumns, trials)
}

func WriteMLDS(w io.Writer, triads []Triad) error {
	return writeCSV(w, MLDSColumns, triads)
}

func BlockFile(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("block_%d.csv", n))
}

// NewRand seeds from the clock when seed is zero.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// WriteBlocks writes block_1.csv to block_<Blocks>.csv, each an independent
// randomisation of the same design.
func (p Params) WriteBlocks(dir string, rng *rand.Rand) ([]string, error) {
	return writeBlocks(dir, p.Blocks, func(w io.Writer) error {
		block, err := p.Block(rng)
		if err != nil {
			return err
		}
		return WriteMLCM(w, block)
	})
}

func (p MLDSParams) WriteBlocks(dir string, rng *rand.Rand) ([]string, error) {
	return writeBlocks(dir, p.Blocks, func(w io.Writer) error {
		block, err := p.Block(rng)
		if err != nil {
			return err
		}
		return WriteMLDS(w, block)
	})
}

func writeBlocks(dir string, n int, write func(io.Writer) error) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("design: blocks must be positive, got %d", n)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for i := 1; i <= n; i++ {
		path := BlockFile(dir, i)
		f, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		if err := write(f); err != nil {
			f.Close()
			return paths, fmt.Errorf("%s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
