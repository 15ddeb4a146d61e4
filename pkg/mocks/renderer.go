package mocks

import (
	"image"
	"image/color"

	"github.com/user/framegrab/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
type Renderer struct {
	CreateCanvasFunc func(width, height int, bg color.Color) ports.Canvas
	FrameImageFunc   func(data []byte, width, height int, format ports.PixelFormat) (image.Image, error)
	EncodeImageFunc  func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error)
	ResizeImageFunc  func(img image.Image, width, height int) image.Image
}

func (m *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	if m.CreateCanvasFunc != nil {
		return m.CreateCanvasFunc(width, height, bg)
	}
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (m *Renderer) FrameImage(data []byte, width, height int, format ports.PixelFormat) (image.Image, error) {
	if m.FrameImageFunc != nil {
		return m.FrameImageFunc(data, width, height, format)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

func (m *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(img, format, quality)
	}
	return []byte{}, nil
}

func (m *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	if m.ResizeImageFunc != nil {
		return m.ResizeImageFunc(img, width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

var _ ports.Renderer = (*Renderer)(nil)

// Canvas is a mock implementation of ports.Canvas that records text.
type Canvas struct {
	img   *image.RGBA
	Texts []string
	Rects int
	Lines int
}

func (c *Canvas) DrawImageScaled(img image.Image, x, y, width, height int) {}

func (c *Canvas) DrawRect(x, y, w, h int, col color.Color) {
	c.Rects++
}

func (c *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	c.Texts = append(c.Texts, text)
}

func (c *Canvas) DrawLine(x1, y1, x2, y2 int, col color.Color, width float64) {
	c.Lines++
}

func (c *Canvas) RGBA() *image.RGBA {
	return c.img
}

var _ ports.Canvas = (*Canvas)(nil)
