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
	"go.uber.org/zap"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/config"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/engine"
)

func init() {
	runtime.LockOSThread()
}

func run() int {
	defer binsdl.Load().Unload()
	defer binimg.Load().Unload()
	defer binttf.Load().Unload()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	cfg := engine.DefaultConfig()
	if err := cfg.LoadCache(engine.CacheFile); err != nil {
		logger.Warn("cache unreadable", zap.String("path", engine.CacheFile), zap.Error(err))
	}
	cfg.Dialog = true

	ok, err := engine.RunSessionDialog(cfg)
	if err != nil {
		logger.Error("session dialog", zap.Error(err))
		return 1
	}
	if !ok {
		return 0
	}
	// the dialog already ran
	cfg.Dialog = false

	proj, err := config.Load(cfg.ProjectFile)
	if err != nil {
		logger.Error("project file", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := engine.Run(ctx, cfg, proj, logger)
	if res != nil && res.DataFile != "" {
		fmt.Printf("\nResults saved to %s\n", res.DataFile)
	}
	if err != nil {
		logger.Error("session failed", zap.Error(err))
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
