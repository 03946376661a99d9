package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/design"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/stimulus"
)

var (
	paradigm string
	outDir   string
	seed     int64
	workers  int
)

var designCmd = &cobra.Command{
	Use:   "design",
	Short: "Write randomised block files (block_1.csv, block_2.csv, ...)",
	Long: `Writes one condition file per block. For mlcm every row is a pair of
targets (luminance and context) with the name of its stimulus image; for mlds
every row is a triad of dot numerosities.`,
	RunE: runDesign,
}

var stimuliCmd = &cobra.Command{
	Use:   "stimuli",
	Short: "Render the stimulus images used by the block files",
	RunE:  runStimuli,
}

func init() {
	for _, c := range []*cobra.Command{designCmd, stimuliCmd} {
		c.Flags().StringVarP(&paradigm, "paradigm", "p", "mlcm", "mlcm or mlds")
		c.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default from the project file)")
		c.Flags().Int64Var(&seed, "seed", 0, "random seed, 0 for a fresh one")
	}
	stimuliCmd.Flags().IntVarP(&workers, "workers", "j", 0, "parallel renderers, 0 for one per CPU")
}

func checkParadigm() error {
	if paradigm != "mlcm" && paradigm != "mlds" {
		return fmt.Errorf("unknown paradigm %q (want mlcm or mlds)", paradigm)
	}
	return nil
}

func runDesign(cmd *cobra.Command, args []string) error {
	if err := checkParadigm(); err != nil {
		return err
	}
	dir := outDir
	var paths []string
	var err error
	switch paradigm {
	case "mlcm":
		if dir == "" {
			dir = proj.Session.ConditionsDir
		}
		p := proj.Design
		if seed != 0 {
			p.Seed = seed
		}
		paths, err = p.WriteBlocks(dir, design.NewRand(p.Seed))
	case "mlds":
		if dir == "" {
			dir = proj.Session.ConditionsDir + "_mlds"
		}
		p := proj.MLDS
		if seed != 0 {
			p.Seed = seed
		}
		paths, err = p.WriteBlocks(dir, design.NewRand(p.Seed))
	}
	if err != nil {
		return err
	}
	logger.Info("design written", zap.String("paradigm", paradigm), zap.Int("blocks", len(paths)), zap.String("dir", dir))
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

func runStimuli(cmd *cobra.Command, args []string) error {
	if err := checkParadigm(); err != nil {
		return err
	}
	dir := outDir
	var paths []string
	var err error
	switch paradigm {
	case "mlcm":
		if dir == "" {
			dir = filepath.Join(proj.Session.StimuliDir, proj.Design.ImagesDir)
		}
		p := proj.Stimulus
		if workers != 0 {
			p.Workers = workers
		}
		paths, err = stimulus.GenerateWhites(cmd.Context(), dir, proj.Design, p, logger)
	case "mlds":
		if dir == "" {
			dir = proj.Session.StimuliDir
		}
		s := proj.MLDS.Seed
		if seed != 0 {
			s = seed
		}
		paths, err = stimulus.GenerateDots(cmd.Context(), dir, proj.MLDS, proj.Dots, workers, design.NewRand(s), logger)
	}
	if err != nil {
		return err
	}
	logger.Info("stimuli written", zap.String("paradigm", paradigm), zap.Int("images", len(paths)), zap.String("dir", dir))
	fmt.Fprintf(cmd.OutOrStdout(), "%d images in %s\n", len(paths), dir)
	return nil
}
