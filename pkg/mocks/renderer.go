package mocks

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/user/screenshow/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
type Renderer struct {
	CreateCanvasFunc func(width, height int, bg color.Color) ports.Canvas
	DecodeImageFunc  func(data []byte, format ports.ImageFormat) (image.Image, error)
	EncodeImageFunc  func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error)
	ResizeImageFunc  func(img image.Image, width, height int) image.Image
	BlurImageFunc    func(img image.Image, radius int) image.Image
}

func (m *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	if m.CreateCanvasFunc != nil {
		return m.CreateCanvasFunc(width, height, bg)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return &Canvas{img: img}
}

func (m *Renderer) DecodeImage(data []byte, format ports.ImageFormat) (image.Image, error) {
	if m.DecodeImageFunc != nil {
		return m.DecodeImageFunc(data, format)
	}
	return image.NewRGBA(image.Rect(0, 0, 100, 100)), nil
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

func (m *Renderer) BlurImage(img image.Image, radius int) image.Image {
	if m.BlurImageFunc != nil {
		return m.BlurImageFunc(img, radius)
	}
	return img
}

var _ ports.Renderer = (*Renderer)(nil)

// CanvasOp records one drawing call on the mock canvas.
type CanvasOp struct {
	Name string
	X, Y float64
	W, H float64
}

// Canvas is a mock implementation of ports.Canvas. It records the sequence
// of drawing operations for verification.
type Canvas struct {
	img *image.RGBA
	Ops []CanvasOp
}

func (m *Canvas) DrawImage(img image.Image, x, y int) {
	m.Ops = append(m.Ops, CanvasOp{Name: "DrawImage", X: float64(x), Y: float64(y)})
}

func (m *Canvas) DrawImageScaled(img image.Image, x, y, width, height float64) {
	m.Ops = append(m.Ops, CanvasOp{Name: "DrawImageScaled", X: x, Y: y, W: width, H: height})
}

func (m *Canvas) DrawRect(x, y, w, h float64, c color.Color) {
	m.Ops = append(m.Ops, CanvasOp{Name: "DrawRect", X: x, Y: y, W: w, H: h})
}

func (m *Canvas) DrawRoundedRect(x, y, w, h, radius float64, c color.Color) {
	m.Ops = append(m.Ops, CanvasOp{Name: "DrawRoundedRect", X: x, Y: y, W: w, H: h})
}

func (m *Canvas) DrawRoundedRectStroke(x, y, w, h, radius float64, c color.Color, strokeWidth float64) {
	m.Ops = append(m.Ops, CanvasOp{Name: "DrawRoundedRectStroke", X: x, Y: y, W: w, H: h})
}

func (m *Canvas) FillLinearGradient(x, y, w, h, x0, y0, x1, y1 float64, c0, c1 color.Color) {
	m.Ops = append(m.Ops, CanvasOp{Name: "FillLinearGradient", X: x, Y: y, W: w, H: h})
}

func (m *Canvas) PushRoundedRectClip(x, y, w, h, radius float64) {
	m.Ops = append(m.Ops, CanvasOp{Name: "PushRoundedRectClip", X: x, Y: y, W: w, H: h})
}

func (m *Canvas) PushCircleClip(cx, cy, r float64) {
	m.Ops = append(m.Ops, CanvasOp{Name: "PushCircleClip", X: cx, Y: cy, W: r})
}

func (m *Canvas) PopClip() {
	m.Ops = append(m.Ops, CanvasOp{Name: "PopClip"})
}

func (m *Canvas) ToImage() image.Image {
	if m.img != nil {
		return m.img
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1))
}

// FindOp returns the first recorded operation with the given name.
func (m *Canvas) FindOp(name string) (CanvasOp, bool) {
	for _, op := range m.Ops {
		if op.Name == name {
			return op, true
		}
	}
	return CanvasOp{}, false
}

var _ ports.Canvas = (*Canvas)(nil)
