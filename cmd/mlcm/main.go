package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/Zyko0/go-sdl3/bin/binimg"
	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/Zyko0/go-sdl3/bin/binttf"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/config"
)

func init() {
	// SDL3 requires the main thread for some operations.
	runtime.LockOSThread()
}

var (
	configPath string
	verbose    bool

	logger *zap.Logger
	proj   *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mlcm",
	Short: "White's illusion MLCM experiment",
	Long: `mlcm builds and runs a maximum likelihood conjoint measurement (MLCM)
experiment on White's illusion: it writes randomised blocks of target pairs,
renders the stimulus images and presents one block per session.

A numerosity MLDS design (dot clouds) can be generated alongside it with
--paradigm mlds.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if cmd == initCmd {
			return nil
		}
		proj, err = config.Load(configPath)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a project file with the default settings",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := config.Default().Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "project file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(initCmd, designCmd, stimuliCmd, runCmd)
}

func execute() int {
	defer binsdl.Load().Unload()
	defer binimg.Load().Unload()
	defer binttf.Load().Unload()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute())
}
