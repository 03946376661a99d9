package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Zyko0/go-sdl3/img"
	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"
)

func GetDefaultFontPath() string {
	// Check local fonts directory
	entries, err := os.ReadDir("fonts")
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				ext := strings.ToLower(filepath.Ext(entry.Name()))
				if ext == ".ttf" || ext == ".ttc" {
					return filepath.Join("fonts", entry.Name())
				}
			}
		}
	}

	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{"C:\\Windows\\Fonts\\arial.ttf"}
	case "darwin":
		paths = []string{"/System/Library/Fonts/Helvetica.ttc"}
	default:
		paths = []string{
			"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/TTF/DejaVuSans.ttf",
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

type Texture struct {
	Tex  *sdl.Texture
	W, H float32
}

// TextureCache keeps every image texture loaded during a session, keyed by
// path, so repeated stimuli are decoded once.
type TextureCache struct {
	renderer *sdl.Renderer
	entries  map[string]*Texture
}

func NewTextureCache(renderer *sdl.Renderer) *TextureCache {
	return &TextureCache{renderer: renderer, entries: make(map[string]*Texture)}
}

func (c *TextureCache) Load(path string) (*Texture, error) {
	if t, ok := c.entries[path]; ok {
		return t, nil
	}
	tex, err := img.LoadTexture(c.renderer, path)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	w, h, err := tex.Size()
	if err != nil {
		tex.Destroy()
		return nil, fmt.Errorf("size of %s: %w", path, err)
	}
	t := &Texture{Tex: tex, W: w, H: h}
	c.entries[path] = t
	return t, nil
}

func (c *TextureCache) Len() int { return len(c.entries) }

func (c *TextureCache) Destroy() {
	for _, t := range c.entries {
		t.Tex.Destroy()
	}
	c.entries = map[string]*Texture{}
}

// renderLines renders each line of text as its own texture. Empty lines keep
// their height.
func renderLines(renderer *sdl.Renderer, font *ttf.Font, text string, color sdl.Color) ([]*Texture, error) {
	var out []*Texture
	blank := float32(font.Height())
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			out = append(out, &Texture{H: blank})
			continue
		}
		surf, err := font.RenderTextBlended(line, color)
		if err != nil {
			destroyAll(out)
			return nil, fmt.Errorf("render %q: %w", line, err)
		}
		tex, err := renderer.CreateTextureFromSurface(surf)
		w, h := float32(surf.W), float32(surf.H)
		surf.Destroy()
		if err != nil {
			destroyAll(out)
			return nil, err
		}
		out = append(out, &Texture{Tex: tex, W: w, H: h})
	}
	return out, nil
}

func destroyAll(ts []*Texture) {
	for _, t := range ts {
		if t.Tex != nil {
			t.Tex.Destroy()
		}
	}
}
