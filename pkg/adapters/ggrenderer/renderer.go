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

	"github.com/user/screenshow/pkg/ports"
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

// DecodeImage decodes image data into an image.Image.
func (r *Renderer) DecodeImage(data []byte, format ports.ImageFormat) (image.Image, error) {
	reader := bytes.NewReader(data)

	switch format {
	case ports.FormatJPEG:
		return jpeg.Decode(reader)
	case ports.FormatPNG:
		return png.Decode(reader)
	default:
		// Try to auto-detect
		img, _, err := image.Decode(reader)
		return img, err
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

// BlurImage returns a box-blurred copy of the image. Three passes
// approximate a Gaussian closely enough for background softening.
func (r *Renderer) BlurImage(img image.Image, radius int) image.Image {
	if radius <= 0 {
		return img
	}

	b := img.Bounds()
	src := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)

	tmp := image.NewRGBA(src.Bounds())
	for pass := 0; pass < 3; pass++ {
		boxBlurHorizontal(src, tmp, radius)
		boxBlurVertical(tmp, src, radius)
	}
	return src
}

func boxBlurHorizontal(src, dst *image.RGBA, radius int) {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	window := float64(2*radius + 1)

	for y := 0; y < h; y++ {
		var sr, sg, sb, sa float64
		for x := -radius; x <= radius; x++ {
			i := src.PixOffset(clampInt(x, 0, w-1), y)
			sr += float64(src.Pix[i])
			sg += float64(src.Pix[i+1])
			sb += float64(src.Pix[i+2])
			sa += float64(src.Pix[i+3])
		}
		for x := 0; x < w; x++ {
			o := dst.PixOffset(x, y)
			dst.Pix[o] = uint8(sr / window)
			dst.Pix[o+1] = uint8(sg / window)
			dst.Pix[o+2] = uint8(sb / window)
			dst.Pix[o+3] = uint8(sa / window)

			add := src.PixOffset(clampInt(x+radius+1, 0, w-1), y)
			sub := src.PixOffset(clampInt(x-radius, 0, w-1), y)
			sr += float64(src.Pix[add]) - float64(src.Pix[sub])
			sg += float64(src.Pix[add+1]) - float64(src.Pix[sub+1])
			sb += float64(src.Pix[add+2]) - float64(src.Pix[sub+2])
			sa += float64(src.Pix[add+3]) - float64(src.Pix[sub+3])
		}
	}
}

func boxBlurVertical(src, dst *image.RGBA, radius int) {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	window := float64(2*radius + 1)

	for x := 0; x < w; x++ {
		var sr, sg, sb, sa float64
		for y := -radius; y <= radius; y++ {
			i := src.PixOffset(x, clampInt(y, 0, h-1))
			sr += float64(src.Pix[i])
			sg += float64(src.Pix[i+1])
			sb += float64(src.Pix[i+2])
			sa += float64(src.Pix[i+3])
		}
		for y := 0; y < h; y++ {
			o := dst.PixOffset(x, y)
			dst.Pix[o] = uint8(sr / window)
			dst.Pix[o+1] = uint8(sg / window)
			dst.Pix[o+2] = uint8(sb / window)
			dst.Pix[o+3] = uint8(sa / window)

			add := src.PixOffset(x, clampInt(y+radius+1, 0, h-1))
			sub := src.PixOffset(x, clampInt(y-radius, 0, h-1))
			sr += float64(src.Pix[add]) - float64(src.Pix[sub])
			sg += float64(src.Pix[add+1]) - float64(src.Pix[sub+1])
			sb += float64(src.Pix[add+2]) - float64(src.Pix[sub+2])
			sa += float64(src.Pix[add+3]) - float64(src.Pix[sub+3])
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Ensure Renderer implements ports.Renderer
var _ ports.Renderer = (*Renderer)(nil)

// Canvas implements ports.Canvas using gg.Context.
type Canvas struct {
	dc *gg.Context
}

// DrawImage draws an image at the specified position.
func (c *Canvas) DrawImage(img image.Image, x, y int) {
	c.dc.DrawImage(img, x, y)
}

// DrawImageScaled draws an image scaled to the specified dimensions.
func (c *Canvas) DrawImageScaled(img image.Image, x, y, width, height float64) {
	c.dc.Push()
	defer c.dc.Pop()

	bounds := img.Bounds()
	scaleX := width / float64(bounds.Dx())
	scaleY := height / float64(bounds.Dy())

	c.dc.Translate(x, y)
	c.dc.Scale(scaleX, scaleY)
	c.dc.DrawImage(img, 0, 0)
}

// DrawRect draws a filled rectangle.
func (c *Canvas) DrawRect(x, y, w, h float64, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRectangle(x, y, w, h)
	c.dc.Fill()
}

// DrawRoundedRect draws a filled rounded rectangle.
func (c *Canvas) DrawRoundedRect(x, y, w, h, radius float64, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRoundedRectangle(x, y, w, h, radius)
	c.dc.Fill()
}

// DrawRoundedRectStroke draws a rounded rectangle outline.
func (c *Canvas) DrawRoundedRectStroke(x, y, w, h, radius float64, col color.Color, strokeWidth float64) {
	c.dc.SetColor(col)
	c.dc.SetLineWidth(strokeWidth)
	c.dc.DrawRoundedRectangle(x, y, w, h, radius)
	c.dc.Stroke()
}

// FillLinearGradient fills a rectangle with a two-stop linear gradient.
func (c *Canvas) FillLinearGradient(x, y, w, h, x0, y0, x1, y1 float64, c0, c1 color.Color) {
	grad := gg.NewLinearGradient(x0, y0, x1, y1)
	grad.AddColorStop(0, c0)
	grad.AddColorStop(1, c1)
	c.dc.SetFillStyle(grad)
	c.dc.DrawRectangle(x, y, w, h)
	c.dc.Fill()
}

// PushRoundedRectClip restricts drawing to a rounded rectangle.
func (c *Canvas) PushRoundedRectClip(x, y, w, h, radius float64) {
	c.dc.Push()
	c.dc.DrawRoundedRectangle(x, y, w, h, radius)
	c.dc.Clip()
}

// PushCircleClip restricts drawing to a circle.
func (c *Canvas) PushCircleClip(cx, cy, r float64) {
	c.dc.Push()
	c.dc.DrawCircle(cx, cy, r)
	c.dc.Clip()
}

// PopClip removes the most recent clip.
func (c *Canvas) PopClip() {
	c.dc.ResetClip()
	c.dc.Pop()
}

// ToImage returns the canvas as an image.Image.
func (c *Canvas) ToImage() image.Image {
	return c.dc.Image()
}

// Ensure Canvas implements ports.Canvas
var _ ports.Canvas = (*Canvas)(nil)
