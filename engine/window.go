package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"
	"go.uber.org/zap"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/clock"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/component"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/experiment"
	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/keyboard"
)

var _ experiment.Window = (*Window)(nil)

// Window is an SDL window whose auto-drawn visuals are repainted on every
// vsync'd flip. Sizes handed to NewText and NewImage are fractions of the
// screen height, positions are centred.
type Window struct {
	cfg      *Config
	window   *sdl.Window
	renderer *sdl.Renderer
	fontPath string
	logger   *zap.Logger

	list   *component.DrawList
	onFlip []func()
	images *TextureCache
	owned  [][]*Texture
	rate   float64
	closed bool
}

func NewWindow(cfg *Config, fontPath string, logger *zap.Logger) (*Window, error) {
	windowFlags := sdl.WINDOW_RESIZABLE
	if cfg.Fullscreen {
		windowFlags |= sdl.WINDOW_FULLSCREEN
	}

	window, renderer, err := sdl.CreateWindowAndRenderer("MLCM White's illusion", cfg.ScreenWidth, cfg.ScreenHeight, windowFlags)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	if cfg.VSync {
		renderer.SetVSync(1)
	} else {
		renderer.SetVSync(0)
	}

	w := &Window{
		cfg:      cfg,
		window:   window,
		renderer: renderer,
		fontPath: fontPath,
		logger:   logger,
		list:     component.NewDrawList(),
		images:   NewTextureCache(renderer),
		rate:     60,
	}
	display := sdl.GetDisplayForWindow(window)
	mode, err := display.CurrentDisplayMode()
	if err == nil && mode.RefreshRate > 0 {
		w.rate = float64(mode.RefreshRate)
	} else {
		logger.Warn("refresh rate unknown, assuming 60 Hz", zap.Error(err))
	}
	return w, nil
}

func (w *Window) height() float32 { return float32(w.cfg.ScreenHeight) }

type textDrawer struct {
	w     *Window
	lines []*Texture
}

func (d *textDrawer) Draw() error {
	var total float32
	for _, l := range d.lines {
		total += l.H
	}
	y := (d.w.height() - total) / 2
	for _, l := range d.lines {
		if l.Tex != nil {
			dst := sdl.FRect{X: (float32(d.w.cfg.ScreenWidth) - l.W) / 2, Y: y, W: l.W, H: l.H}
			if err := d.w.renderer.RenderTexture(l.Tex, nil, &dst); err != nil {
				return err
			}
		}
		y += l.H
	}
	return nil
}

// NewText renders text once, centred line by line, with letters letterHeight
// screen heights tall.
func (w *Window) NewText(name, text string, letterHeight float64) (*component.Visual, error) {
	size := float32(math.Round(letterHeight * float64(w.height())))
	font, err := ttf.OpenFont(w.fontPath, size)
	if err != nil {
		return nil, fmt.Errorf("%s: open font %s: %w", name, w.fontPath, err)
	}
	defer font.Close()

	lines, err := renderLines(w.renderer, font, text, w.cfg.TextColor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	w.owned = append(w.owned, lines)
	return w.list.NewVisual(name, &textDrawer{w: w, lines: lines}), nil
}

type imageDrawer struct {
	w    *Window
	size [2]float64
	tex  *Texture
}

func (d *imageDrawer) SetImage(path string) error {
	t, err := d.w.images.Load(path)
	if err != nil {
		return err
	}
	d.tex = t
	return nil
}

func (d *imageDrawer) Draw() error {
	if d.tex == nil {
		return errors.New("no image set")
	}
	h := d.w.height()
	dw, dh := float32(d.size[0])*h, float32(d.size[1])*h
	dst := sdl.FRect{
		X: (float32(d.w.cfg.ScreenWidth) - dw) / 2.0,
		Y: (h - dh) / 2.0,
		W: dw,
		H: dh,
	}
	return d.w.renderer.RenderTexture(d.tex.Tex, nil, &dst)
}

// NewImage creates an image stimulus stretched to width x height screen
// heights. Its picture is chosen with SetImage.
func (w *Window) NewImage(name string, width, height float64) (*component.Visual, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%s: image size must be positive", name)
	}
	return w.list.NewVisual(name, &imageDrawer{w: w, size: [2]float64{width, height}}), nil
}

// Preload decodes images ahead of the first trial so that SetImage never
// touches the disk mid-block.
func (w *Window) Preload(paths ...string) error {
	for _, p := range paths {
		if _, err := w.images.Load(p); err != nil {
			return err
		}
	}
	w.logger.Debug("images preloaded", zap.Int("textures", w.images.Len()))
	return nil
}

func (w *Window) CallOnFlip(fn func()) { w.onFlip = append(w.onFlip, fn) }

// Flip draws every auto-drawn visual and waits for the vertical retrace.
// Callbacks registered with CallOnFlip run right after the swap.
func (w *Window) Flip() error {
	bg := w.cfg.BGColor
	w.renderer.SetDrawColor(bg.R, bg.G, bg.B, bg.A)
	w.renderer.Clear()
	if err := w.list.Draw(); err != nil {
		return err
	}
	w.renderer.Present()

	fns := w.onFlip
	w.onFlip = nil
	for _, fn := range fns {
		fn()
	}
	if !w.cfg.VSync {
		sdl.Delay(1)
	}
	return nil
}

// PollKeys drains the SDL event queue. Closing the window counts as escape.
func (w *Window) PollKeys() []keyboard.Event {
	var out []keyboard.Event
	for {
		var ev sdl.Event
		if !sdl.PollEvent(&ev) {
			break
		}
		switch ev.Type {
		case sdl.EVENT_QUIT, sdl.EVENT_WINDOW_CLOSE_REQUESTED:
			out = append(out, keyboard.Event{Name: "escape", Down: true, At: w.now()})
		case sdl.EVENT_KEY_DOWN, sdl.EVENT_KEY_UP:
			ke := ev.KeyboardEvent()
			out = append(out, keyboard.Event{
				Name:   ke.Key.KeyName(),
				Down:   ev.Type == sdl.EVENT_KEY_DOWN,
				Repeat: ke.Repeat,
				At:     time.Duration(ke.Timestamp),
			})
		}
	}
	return out
}

func (w *Window) now() time.Duration { return time.Duration(sdl.TicksNS()) }

// Clock shares SDL's nanosecond tick counter, the time base of key events.
func (w *Window) Clock() clock.Source { return clock.SourceFunc(w.now) }

func (w *Window) FrameRate() float64 { return w.rate }

func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.images.Destroy()
	for _, lines := range w.owned {
		destroyAll(lines)
	}
	w.renderer.Destroy()
	w.window.Destroy()
	return nil
}
