package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"
	"go.uber.org/zap"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/config"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/experiment"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/trials"
)

var ErrNoFont = errors.New("no font found; pass one with --font")

// sessionDialog is swapped out in tests, which have no display.
var sessionDialog = RunSessionDialog

// Run opens the experiment window and runs one session. When cfg.Dialog is
// set the session dialog comes first; cancelling it ends the session before
// the window opens, and a project file picked there replaces proj.
func Run(ctx context.Context, cfg *Config, proj *config.Config, logger *zap.Logger) (*experiment.Result, error) {
	info := experiment.Info{Participant: cfg.Participant, Session: cfg.Session, Confirmed: true}
	if cfg.Dialog {
		loaded := cfg.ProjectFile
		ok, err := sessionDialog(cfg)
		if err != nil {
			return nil, fmt.Errorf("session dialog: %w", err)
		}
		if !ok {
			logger.Info("session dialog cancelled")
			return &experiment.Result{Message: "cancelled"}, nil
		}
		info.Participant, info.Session = cfg.Participant, cfg.Session
		if proj, err = reloadProject(proj, loaded, cfg.ProjectFile); err != nil {
			return nil, err
		}
	}
	if info.Participant == "" {
		return nil, errors.New("participant is required")
	}

	opts, err := proj.Options()
	if err != nil {
		return nil, err
	}

	fontPath := cfg.FontFile
	if fontPath == "" {
		fontPath = GetDefaultFontPath()
	}
	if fontPath == "" {
		return nil, ErrNoFont
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("SDL_Init: %w", err)
	}
	defer sdl.Quit()

	if err := ttf.Init(); err != nil {
		return nil, fmt.Errorf("TTF_Init: %w", err)
	}
	defer ttf.Quit()

	win, err := NewWindow(cfg, fontPath, logger)
	if err != nil {
		return nil, err
	}
	defer win.Close()

	if cfg.DLPDevice != "" {
		dlp, err := NewDLPIO8G(cfg.DLPDevice, cfg.DLPBaud)
		if err != nil {
			logger.Warn("trigger box unavailable", zap.String("device", cfg.DLPDevice), zap.Error(err))
		} else {
			defer dlp.Close()
			opts.Trigger = dlp
		}
	}

	preload(win, opts, info.Session, logger)

	opts.Logger = logger
	opts.Progress = os.Stdout
	return experiment.New(win, info, opts).Run(ctx)
}

// reloadProject loads the project file picked in the session dialog when it
// is not the one proj was read from.
func reloadProject(proj *config.Config, loaded, chosen string) (*config.Config, error) {
	if proj != nil && (chosen == "" || chosen == loaded) {
		return proj, nil
	}
	if chosen == "" {
		chosen = config.DefaultFile
	}
	return config.Load(chosen)
}

// preload loads the block's images up front. Failures are only logged: the
// trial that needs a missing image reports it.
func preload(win *Window, opts experiment.Options, session string, logger *zap.Logger) {
	conds, err := trials.LoadConditions(experiment.ConditionsFile(opts.ConditionsDir, session))
	if err != nil {
		return
	}
	col := opts.ImageColumn
	if col == "" {
		col = "im"
	}
	var paths []string
	seen := map[string]bool{}
	for _, row := range conds.Rows {
		im := row.String(col)
		if im == "" || seen[im] {
			continue
		}
		seen[im] = true
		paths = append(paths, filepath.Join(opts.StimuliDir, filepath.FromSlash(im)))
	}
	if err := win.Preload(paths...); err != nil {
		logger.Warn("preload", zap.Error(err))
	}
}
