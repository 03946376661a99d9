package engine

import (
	"errors"
	"fmt"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"
)

type dialogField struct {
	label  string
	target *string
	browse bool
}

func drawLabel(renderer *sdl.Renderer, font *ttf.Font, text string, color sdl.Color, x, y float32) {
	if text == "" {
		return
	}
	surf, err := font.RenderTextBlended(text, color)
	if err != nil || surf == nil {
		return
	}
	tex, err := renderer.CreateTextureFromSurface(surf)
	if err == nil {
		r := sdl.FRect{X: x, Y: y, W: float32(surf.W), H: float32(surf.H)}
		renderer.RenderTexture(tex, nil, &r)
		tex.Destroy()
	}
	surf.Destroy()
}

func inside(mx, my float32, r sdl.FRect) bool {
	return mx >= r.X && mx <= r.X+r.W && my >= r.Y && my <= r.Y+r.H
}

// RunSessionDialog asks for participant and session. It reports false when
// the dialog was cancelled or closed; on OK the settings are cached.
func RunSessionDialog(cfg *Config) (bool, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return false, fmt.Errorf("SDL_Init: %w", err)
	}
	defer sdl.Quit()

	if err := ttf.Init(); err != nil {
		return false, fmt.Errorf("TTF_Init: %w", err)
	}
	defer ttf.Quit()

	window, renderer, err := sdl.CreateWindowAndRenderer("mlcm_experiment_whites_illusion", 700, 420, 0)
	if err != nil {
		return false, fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()
	defer renderer.Destroy()

	fontPath := cfg.FontFile
	if fontPath == "" {
		fontPath = GetDefaultFontPath()
	}
	if fontPath == "" {
		return false, errors.New("no font found for the session dialog")
	}
	guiFont, err := ttf.OpenFont(fontPath, 18)
	if err != nil {
		return false, fmt.Errorf("open font %s: %w", fontPath, err)
	}
	defer guiFont.Close()

	fields := []dialogField{
		{label: "participant", target: &cfg.Participant},
		{label: "session", target: &cfg.Session},
		{label: "project file", target: &cfg.ProjectFile, browse: true},
	}
	box := func(i int) sdl.FRect { return sdl.FRect{X: 50, Y: float32(50 + i*70), W: 520, H: 30} }
	browseBtn := func(i int) sdl.FRect { return sdl.FRect{X: 580, Y: float32(50 + i*70), W: 70, H: 30} }
	fullCheck := sdl.FRect{X: 50, Y: 270, W: 20, H: 20}
	okBtn := sdl.FRect{X: 230, Y: 340, W: 100, H: 40}
	cancelBtn := sdl.FRect{X: 370, Y: 340, W: 100, H: 40}

	focusBox := 0
	var msg string

	window.StartTextInput()
	defer window.StopTextInput()

	for {
		var e sdl.Event
		for sdl.PollEvent(&e) {
			switch e.Type {
			case sdl.EVENT_QUIT:
				return false, nil
			case sdl.EVENT_MOUSE_BUTTON_DOWN:
				me := e.MouseButtonEvent()
				mx, my := me.X, me.Y
				focusBox = -1
				for i, f := range fields {
					if inside(mx, my, box(i)) {
						focusBox = i
					}
					if f.browse && inside(mx, my, browseBtn(i)) {
						target := f.target
						filters := []sdl.DialogFileFilter{{Name: "Project files", Pattern: "yaml;yml"}}
						cb := sdl.NewDialogFileCallback(func(fileList []string, filter int32) {
							if len(fileList) > 0 {
								*target = fileList[0]
							}
						})
						sdl.ShowOpenFileDialog(cb, window, filters, "", false)
					}
				}
				if inside(mx, my, fullCheck) {
					cfg.Fullscreen = !cfg.Fullscreen
				}
				if inside(mx, my, cancelBtn) {
					return false, nil
				}
				if inside(mx, my, okBtn) {
					if cfg.Participant == "" || cfg.Session == "" {
						msg = "participant and session are required"
						break
					}
					if err := cfg.SaveCache(CacheFile); err != nil {
						return true, fmt.Errorf("save %s: %w", CacheFile, err)
					}
					return true, nil
				}
			case sdl.EVENT_TEXT_INPUT:
				if focusBox != -1 {
					*fields[focusBox].target += e.TextInputEvent().Text
				}
			case sdl.EVENT_KEY_DOWN:
				ke := e.KeyboardEvent()
				switch {
				case ke.Key == sdl.K_ESCAPE:
					return false, nil
				case ke.Key == sdl.K_TAB:
					focusBox = (focusBox + 1) % len(fields)
				case ke.Key == sdl.K_BACKSPACE && focusBox != -1:
					t := fields[focusBox].target
					if len(*t) > 0 {
						*t = (*t)[:len(*t)-1]
					}
				}
			}
		}

		renderer.SetDrawColor(240, 240, 240, 255)
		renderer.Clear()
		black := sdl.Color{R: 0, G: 0, B: 0, A: 255}
		white := sdl.Color{R: 255, G: 255, B: 255, A: 255}

		for i, f := range fields {
			b := box(i)
			drawLabel(renderer, guiFont, f.label+":", black, 50, b.Y-30)
			renderer.SetDrawColor(255, 255, 255, 255)
			renderer.RenderFillRect(&b)
			if focusBox == i {
				renderer.SetDrawColor(0, 120, 255, 255)
			} else {
				renderer.SetDrawColor(180, 180, 180, 255)
			}
			renderer.RenderRect(&b)
			drawLabel(renderer, guiFont, *f.target, black, b.X+5, b.Y+5)

			if f.browse {
				btn := browseBtn(i)
				renderer.SetDrawColor(200, 200, 200, 255)
				renderer.RenderFillRect(&btn)
				renderer.SetDrawColor(0, 0, 0, 255)
				renderer.RenderRect(&btn)
				drawLabel(renderer, guiFont, "...", black, btn.X+25, btn.Y+5)
			}
		}

		renderer.SetDrawColor(255, 255, 255, 255)
		renderer.RenderFillRect(&fullCheck)
		renderer.SetDrawColor(0, 0, 0, 255)
		renderer.RenderRect(&fullCheck)
		if cfg.Fullscreen {
			mark := sdl.FRect{X: fullCheck.X + 4, Y: fullCheck.Y + 4, W: 12, H: 12}
			renderer.SetDrawColor(0, 150, 0, 255)
			renderer.RenderFillRect(&mark)
		}
		drawLabel(renderer, guiFont, "Fullscreen mode", black, 80, fullCheck.Y)

		renderer.SetDrawColor(0, 150, 0, 255)
		renderer.RenderFillRect(&okBtn)
		drawLabel(renderer, guiFont, "OK", white, okBtn.X+38, okBtn.Y+10)
		renderer.SetDrawColor(150, 0, 0, 255)
		renderer.RenderFillRect(&cancelBtn)
		drawLabel(renderer, guiFont, "Cancel", white, cancelBtn.X+22, cancelBtn.Y+10)

		if msg != "" {
			drawLabel(renderer, guiFont, msg, sdl.Color{R: 180, G: 0, B: 0, A: 255}, 50, 300)
		}

		renderer.Present()
		sdl.Delay(10)
	}
}
