package engine

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Zyko0/go-sdl3/sdl"
)

// Config describes the display and the session. Project settings (design,
// stimuli, timing) live in the YAML project file named by ProjectFile.
type Config struct {
	ProjectFile  string
	Participant  string
	Session      string
	FontFile     string
	DLPDevice    string
	DLPBaud      int
	ScreenWidth  int
	ScreenHeight int
	Fullscreen   bool
	VSync        bool
	// Dialog asks for participant and session before the window opens.
	Dialog    bool
	BGColor   sdl.Color
	TextColor sdl.Color
}

// ParseColor reads "R,G,B" or "R,G,B,A"; alpha defaults to opaque.
func ParseColor(s string) (sdl.Color, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return sdl.Color{}, fmt.Errorf("color %q: want R,G,B[,A]", s)
	}
	v := [4]uint8{0, 0, 0, 255}
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return sdl.Color{}, fmt.Errorf("color %q: %w", s, err)
		}
		v[i] = uint8(n)
	}
	return sdl.Color{R: v[0], G: v[1], B: v[2], A: v[3]}, nil
}

const CacheFile = ".mlcm_cache"

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// SaveCache remembers the last session's settings for the next launch.
func (cfg *Config) SaveCache(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "project_file=%s\n", cfg.ProjectFile)
	fmt.Fprintf(w, "participant=%s\n", cfg.Participant)
	fmt.Fprintf(w, "session=%s\n", cfg.Session)
	fmt.Fprintf(w, "font_file=%s\n", cfg.FontFile)
	fmt.Fprintf(w, "dlp_device=%s\n", cfg.DLPDevice)
	fmt.Fprintf(w, "screen_w=%d\n", cfg.ScreenWidth)
	fmt.Fprintf(w, "screen_h=%d\n", cfg.ScreenHeight)
	fmt.Fprintf(w, "fullscreen=%s\n", boolString(cfg.Fullscreen))
	fmt.Fprintf(w, "bg_color=%d,%d,%d\n", cfg.BGColor.R, cfg.BGColor.G, cfg.BGColor.B)
	fmt.Fprintf(w, "text_color=%d,%d,%d\n", cfg.TextColor.R, cfg.TextColor.G, cfg.TextColor.B)
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// LoadCache applies a cache written by SaveCache. A missing file is not an
// error; unknown keys and malformed values are skipped.
func (cfg *Config) LoadCache(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)

		switch key {
		case "project_file":
			cfg.ProjectFile = val
		case "participant":
			cfg.Participant = val
		case "session":
			cfg.Session = val
		case "font_file":
			cfg.FontFile = val
		case "dlp_device":
			cfg.DLPDevice = val
		case "screen_w":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.ScreenWidth = n
			}
		case "screen_h":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.ScreenHeight = n
			}
		case "fullscreen":
			cfg.Fullscreen = val != "0"
		case "bg_color":
			if c, err := ParseColor(val); err == nil {
				cfg.BGColor = c
			}
		case "text_color":
			if c, err := ParseColor(val); err == nil {
				cfg.TextColor = c
			}
		}
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		ProjectFile:  "mlcm.yaml",
		Session:      "1",
		DLPBaud:      9600,
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		Fullscreen:   true,
		VSync:        true,
		BGColor:      sdl.Color{R: 128, G: 128, B: 128, A: 255},
		TextColor:    sdl.Color{R: 255, G: 255, B: 255, A: 255},
	}
}
