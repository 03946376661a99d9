package stimulus

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/design"
)

type job struct {
	name   string
	render func() (*Image, error)
}

func run(ctx context.Context, dir string, workers int, jobs []job, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	paths := make([]string, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			im, err := j.render()
			if err != nil {
				return fmt.Errorf("%s: %w", j.name, err)
			}
			path := filepath.Join(dir, j.name)
			if err := im.WritePNG(path); err != nil {
				return err
			}
			logger.Debug("stimulus written", zap.String("path", path))
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// GenerateWhites writes one image per ordered pair of distinct stimuli, so
// every trial of any block finds its picture whichever side each target was
// drawn on.
func GenerateWhites(ctx context.Context, dir string, dp design.Params, p Params, logger *zap.Logger) ([]string, error) {
	all := dp
	all.Reduced = false
	pairs, err := all.Pairs()
	if err != nil {
		return nil, err
	}
	var jobs []job
	for _, pr := range pairs {
		for _, o := range []design.Pair{pr, {pr[1], pr[0]}} {
			left, right := o[0], o[1]
			jobs = append(jobs, job{
				name: design.WhiteName(left, right),
				render: func() (*Image, error) {
					return White(p, left.Lum, right.Lum, left.Context, right.Context)
				},
			})
		}
	}
	return run(ctx, dir, p.Workers, jobs, logger)
}

// GenerateDots writes Realizations dot clouds for every numerosity level.
// Each image gets its own random source drawn from rng up front, so the result
// does not depend on worker scheduling.
func GenerateDots(ctx context.Context, dir string, mp design.MLDSParams, p DotParams, workers int, rng *rand.Rand, logger *zap.Logger) ([]string, error) {
	if mp.Realizations < 1 {
		return nil, fmt.Errorf("stimulus: realizations must be positive, got %d", mp.Realizations)
	}
	var jobs []job
	for _, n := range mp.Levels {
		for r := 1; r <= mp.Realizations; r++ {
			seed := rng.Int63()
			jobs = append(jobs, job{
				name: design.DotsName(n, r),
				render: func() (*Image, error) {
					pts, err := DotCloud(n, p.MinDistance, p.MaxAttempts, design.NewRand(seed))
					if err != nil {
						return nil, err
					}
					return Dots(p, pts), nil
				},
			})
		}
	}
	return run(ctx, dir, workers, jobs, logger)
}
