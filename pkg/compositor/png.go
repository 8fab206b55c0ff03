package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/view"
)

const (
	pngMargin     = 8
	pngLineHeight = 16
)

var (
	pngBackground = color.RGBA{R: 0xF9, G: 0xFA, B: 0xFB, A: 0xFF}
	pngInk        = color.RGBA{R: 0x1F, G: 0x29, B: 0x37, A: 0xFF}
)

// PNG writes each window's screen to Dir as window-<id>.png, replacing
// the previous image of that window.
type PNG struct {
	Dir string

	mu      sync.Mutex
	written []string
}

// Composite implements core.Compositor.
func (p *PNG) Composite(frames []core.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	done := make(map[int]bool)
	for _, f := range frames {
		if f.Window == nil || done[f.Window.ID()] {
			continue
		}
		done[f.Window.ID()] = true
		path := filepath.Join(p.Dir, fmt.Sprintf("window-%d.png", f.Window.ID()))
		if err := WritePNGFile(path, f.Screen); err != nil {
			return err
		}
		p.written = append(p.written, path)
	}
	return nil
}

// Written returns the paths written so far, in order.
func (p *PNG) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

// WritePNGFile rasterizes n into a PNG file at path.
func WritePNGFile(path string, n view.Node) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("compositor: create %s: %w", path, err)
	}
	if err := EncodePNG(f, n); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodePNG rasterizes n and writes it as PNG.
func EncodePNG(w io.Writer, n view.Node) error {
	if err := png.Encode(w, Rasterize(n)); err != nil {
		return fmt.Errorf("compositor: encode png: %w", err)
	}
	return nil
}

// Rasterize draws the tree outline of n with a fixed-width bitmap font.
func Rasterize(n view.Node) *image.RGBA {
	face := basicfont.Face7x13
	lines := strings.Split(strings.TrimRight(n.String(), "\n"), "\n")

	width := 0
	for _, line := range lines {
		width = max(width, font.MeasureString(face, line).Ceil())
	}
	bounds := image.Rect(0, 0, width+2*pngMargin, len(lines)*pngLineHeight+2*pngMargin)
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, image.NewUniform(pngBackground), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(pngInk),
		Face: face,
	}
	ascent := face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		d.Dot = fixed.P(pngMargin, pngMargin+i*pngLineHeight+ascent)
		d.DrawString(line)
	}
	return img
}
