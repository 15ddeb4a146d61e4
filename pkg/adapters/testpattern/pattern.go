package testpattern

import (
	"fmt"
	"image/color"
	"time"

	"github.com/user/framegrab/pkg/ports"
)

// Pattern identifiers, usable as device ids.
const (
	PatternBars     = "bars"
	PatternGradient = "gradient"
	PatternChecker  = "checker"
)

var patterns = []struct {
	id, name, description string
}{
	{PatternBars, "Color bars", "Seven vertical color bars"},
	{PatternGradient, "Gradient", "Horizontal luminance ramp"},
	{PatternChecker, "Checkerboard", "Moving 8x8 checkerboard"},
}

func knownPattern(id string) bool {
	for _, p := range patterns {
		if p.id == id {
			return true
		}
	}
	return false
}

var barColors = []color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

func drawPattern(c ports.Canvas, pattern string, width, height int, frame uint64) {
	switch pattern {
	case PatternGradient:
		steps := 32
		for i := 0; i < steps; i++ {
			x0 := i * width / steps
			x1 := (i + 1) * width / steps
			v := uint8(i * 255 / (steps - 1))
			c.DrawRect(x0, 0, x1-x0, height, color.RGBA{v, v, v, 255})
		}
	case PatternChecker:
		cell := max(width/8, 1)
		shift := int(frame % uint64(2*cell))
		for y := 0; y < height; y += cell {
			for x := -2 * cell; x < width; x += cell {
				if ((x+2*cell)/cell+y/cell)%2 == 0 {
					c.DrawRect(x+shift, y, cell, cell, color.White)
				}
			}
		}
	default:
		n := len(barColors)
		for i, col := range barColors {
			x0 := i * width / n
			x1 := (i + 1) * width / n
			c.DrawRect(x0, 0, x1-x0, height, col)
		}
	}
}

// drawOverlay draws a sweeping line and the frame counter so consecutive
// frames always differ.
func drawOverlay(c ports.Canvas, width, height int, frame uint64, position time.Duration) {
	x := int(frame % uint64(width))
	c.DrawLine(x, 0, x, height, color.White, 2)

	if height < 20 || width < 80 {
		return
	}
	boxH := 20
	y := height - boxH - 4
	c.DrawRect(0, y, width, boxH, color.RGBA{0, 0, 0, 200})
	c.DrawText(overlayText(frame, position), width/2, y+boxH/2, ports.TextStyle{
		Color: color.White,
		Align: ports.AlignCenter,
	})
}

func overlayText(frame uint64, position time.Duration) string {
	ms := position.Milliseconds()
	return fmt.Sprintf("frame %06d  %02d:%02d:%02d.%03d",
		frame, ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
