package ports

import (
	"image"
	"image/color"
)

// Renderer abstracts image processing operations.
type Renderer interface {
	// CreateCanvas creates a new drawing canvas with the specified
	// dimensions and background color.
	CreateCanvas(width, height int, bg color.Color) Canvas

	// DecodeImage decodes image data into an image.Image.
	DecodeImage(data []byte, format ImageFormat) (image.Image, error)

	// EncodeImage encodes an image to the specified format.
	EncodeImage(img image.Image, format ImageFormat, quality int) ([]byte, error)

	// ResizeImage resizes an image to the specified dimensions.
	ResizeImage(img image.Image, width, height int) image.Image

	// BlurImage returns a blurred copy of the image. radius <= 0 returns
	// the input unchanged.
	BlurImage(img image.Image, radius int) image.Image
}

// Canvas provides drawing operations for compositing frames.
type Canvas interface {
	// DrawImage draws an image at the specified position.
	DrawImage(img image.Image, x, y int)

	// DrawImageScaled draws an image scaled to the specified dimensions.
	DrawImageScaled(img image.Image, x, y, width, height float64)

	// DrawRect draws a filled rectangle.
	DrawRect(x, y, w, h float64, c color.Color)

	// DrawRoundedRect draws a filled rounded rectangle.
	DrawRoundedRect(x, y, w, h, radius float64, c color.Color)

	// DrawRoundedRectStroke draws a rounded rectangle outline.
	DrawRoundedRectStroke(x, y, w, h, radius float64, c color.Color, strokeWidth float64)

	// FillLinearGradient fills the rectangle with a two-stop linear gradient
	// running from (x0,y0) to (x1,y1).
	FillLinearGradient(x, y, w, h, x0, y0, x1, y1 float64, c0, c1 color.Color)

	// PushRoundedRectClip restricts subsequent drawing to a rounded
	// rectangle. Must be balanced with PopClip.
	PushRoundedRectClip(x, y, w, h, radius float64)

	// PushCircleClip restricts subsequent drawing to a circle.
	// Must be balanced with PopClip.
	PushCircleClip(cx, cy, r float64)

	// PopClip removes the most recent clip.
	PopClip()

	// ToImage returns the canvas as an image.Image.
	ToImage() image.Image
}

// ImageFormat specifies image encoding format.
type ImageFormat int

const (
	FormatJPEG ImageFormat = iota
	FormatPNG
)
