// Package ggrenderer provides a renderer implementation using the gg library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"

	"github.com/user/framegrab/pkg/ports"
)

// Renderer implements ports.Renderer using the gg library.
type Renderer struct{}

// New creates a new Renderer.
func New() *Renderer {
	return &Renderer{}
}

// CreateCanvas creates a new drawing canvas.
func (r *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	dc := gg.NewContext(width, height)
	dc.SetColor(bg)
	dc.Clear()
	return &Canvas{dc: dc}
}

// FrameImage wraps raw frame bytes without copying. RGBA frames become
// *image.RGBA and I420 frames *image.YCbCr.
func (r *Renderer) FrameImage(data []byte, width, height int, format ports.PixelFormat) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	need := format.BytesPerFrame(width, height)
	if need == 0 {
		return nil, fmt.Errorf("frame image from %s: %w", format, ports.ErrUnsupported)
	}
	if len(data) < need {
		return nil, fmt.Errorf("frame has %d bytes, %s %dx%d needs %d", len(data), format, width, height, need)
	}

	rect := image.Rect(0, 0, width, height)
	switch format {
	case ports.PixelRGBA:
		return &image.RGBA{Pix: data[:need], Stride: width * 4, Rect: rect}, nil
	default:
		cw := (width + 1) / 2
		ch := (height + 1) / 2
		ySize := width * height
		cSize := cw * ch
		return &image.YCbCr{
			Y:              data[:ySize],
			Cb:             data[ySize : ySize+cSize],
			Cr:             data[ySize+cSize : ySize+2*cSize],
			YStride:        width,
			CStride:        cw,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}, nil
	}
}

// EncodeImage encodes an image to the specified format.
func (r *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ports.FormatJPEG:
		opts := &jpeg.Options{Quality: quality}
		if err := jpeg.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case ports.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %d", format)
	}

	return buf.Bytes(), nil
}

// ResizeImage resizes an image to the specified dimensions.
func (r *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// Ensure Renderer implements ports.Renderer
var _ ports.Renderer = (*Renderer)(nil)

// Canvas implements ports.Canvas using gg.Context.
type Canvas struct {
	dc       *gg.Context
	fontPath string
	fontSize float64
}

// DrawImageScaled draws an image scaled to the specified dimensions.
func (c *Canvas) DrawImageScaled(img image.Image, x, y, width, height int) {
	c.dc.Push()
	defer c.dc.Pop()

	bounds := img.Bounds()
	scaleX := float64(width) / float64(bounds.Dx())
	scaleY := float64(height) / float64(bounds.Dy())

	c.dc.Translate(float64(x), float64(y))
	c.dc.Scale(scaleX, scaleY)
	c.dc.DrawImage(img, 0, 0)
}

// DrawRect draws a filled rectangle.
func (c *Canvas) DrawRect(x, y, w, h int, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.dc.Fill()
}

// DrawText draws text at the specified position. Without a font file the
// built-in 7x13 bitmap face is used and FontSize is ignored.
func (c *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	c.dc.SetColor(style.Color)
	c.setFont(style)

	ax := 0.0
	switch style.Align {
	case ports.AlignCenter:
		ax = 0.5
	case ports.AlignRight:
		ax = 1.0
	}

	c.dc.DrawStringAnchored(text, float64(x), float64(y), ax, 0.5)
}

func (c *Canvas) setFont(style ports.TextStyle) {
	if style.FontPath == c.fontPath && style.FontSize == c.fontSize && c.fontPath != "" {
		return
	}
	if style.FontPath != "" {
		if err := c.dc.LoadFontFace(style.FontPath, style.FontSize); err == nil {
			c.fontPath, c.fontSize = style.FontPath, style.FontSize
			return
		}
	}
	c.dc.SetFontFace(basicfont.Face7x13)
	c.fontPath, c.fontSize = "", 0
}

// DrawLine draws a line between two points.
func (c *Canvas) DrawLine(x1, y1, x2, y2 int, col color.Color, width float64) {
	c.dc.SetColor(col)
	c.dc.SetLineWidth(width)
	c.dc.DrawLine(float64(x1), float64(y1), float64(x2), float64(y2))
	c.dc.Stroke()
}

// RGBA returns the canvas pixels. The image aliases the canvas.
func (c *Canvas) RGBA() *image.RGBA {
	if rgba, ok := c.dc.Image().(*image.RGBA); ok {
		return rgba
	}
	img := c.dc.Image()
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

// Ensure Canvas implements ports.Canvas
var _ ports.Canvas = (*Canvas)(nil)
