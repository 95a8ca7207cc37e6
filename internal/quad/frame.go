package quad

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/webp"
)

// Frame is the pixel size of the reference frame the user clicks on.
type Frame struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DecodeFrame reads only the image header to learn the frame dimensions.
// JPEG, PNG and WebP are supported.
func DecodeFrame(r io.Reader) (Frame, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode reference frame: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Frame{}, fmt.Errorf("reference frame %s has empty bounds", format)
	}
	return Frame{Width: cfg.Width, Height: cfg.Height}, nil
}

// LoadFrame opens path and decodes its dimensions.
func LoadFrame(path string) (Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to open reference frame: %w", err)
	}
	defer f.Close()
	return DecodeFrame(f)
}

// Normalize maps a pixel click to [0,1]x[0,1], clamping clicks that land on the edge
// or just outside it.
func (f Frame) Normalize(px, py float64) (x, y float64) {
	return clamp01(px / float64(f.Width)), clamp01(py / float64(f.Height))
}

// Pixel maps a normalized point back onto the frame.
func (f Frame) Pixel(x, y float64) (px, py int) {
	return int(x * float64(f.Width)), int(y * float64(f.Height))
}

// AddClick normalizes a pixel click on frame and adds it to the collector.
func (c *Collector) AddClick(f Frame, px, py float64) bool {
	if f.Width <= 0 || f.Height <= 0 {
		return false
	}
	x, y := f.Normalize(px, py)
	return c.AddPoint(x, y)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
