package compositor

import (
	"image"
	"image/color"

	"github.com/user/screenshow/pkg/config"
	"github.com/user/screenshow/pkg/ports"
)

// renderBackground pre-renders the background layer once per export.
// A missing or undecodable background image degrades to the solid color
// with a warning; it never aborts the export.
func renderBackground(cfg *config.RenderConfig, width, height int, renderer ports.Renderer, fs ports.FileSystem, log ports.Logger) image.Image {
	base, _ := config.ParseHexColor(cfg.Background.Color)

	var img image.Image
	switch cfg.Background.Kind {
	case config.BackgroundGradient:
		from, _ := config.ParseHexColor(cfg.Background.GradientFrom)
		to, _ := config.ParseHexColor(cfg.Background.GradientTo)
		canvas := renderer.CreateCanvas(width, height, from)
		canvas.FillLinearGradient(0, 0, float64(width), float64(height),
			0, 0, float64(width), float64(height), from, to)
		img = canvas.ToImage()

	case config.BackgroundImage:
		img = loadBackgroundImage(cfg.Background.ImagePath, width, height, base, renderer, fs, log)

	default:
		img = solidCanvas(width, height, base, renderer)
	}

	if cfg.BlurEnabled && cfg.BlurRadius > 0 {
		img = renderer.BlurImage(img, cfg.BlurRadius)
	}
	return img
}

func loadBackgroundImage(path string, width, height int, fallback color.Color, renderer ports.Renderer, fs ports.FileSystem, log ports.Logger) image.Image {
	data, err := fs.ReadFile(path)
	if err != nil {
		log.Warn("Background image %s unreadable, using solid color", path)
		return solidCanvas(width, height, fallback, renderer)
	}
	decoded, err := renderer.DecodeImage(data, ports.FormatPNG)
	if err != nil {
		// Retry as JPEG before giving up; the config does not carry a format.
		decoded, err = renderer.DecodeImage(data, ports.FormatJPEG)
	}
	if err != nil {
		log.Warn("Background image %s undecodable, using solid color", path)
		return solidCanvas(width, height, fallback, renderer)
	}

	// Scale to cover the output, center-cropping the overflow.
	b := decoded.Bounds()
	scale := float64(width) / float64(b.Dx())
	if s := float64(height) / float64(b.Dy()); s > scale {
		scale = s
	}
	scaledW := int(float64(b.Dx())*scale + 0.5)
	scaledH := int(float64(b.Dy())*scale + 0.5)
	scaled := renderer.ResizeImage(decoded, scaledW, scaledH)

	canvas := renderer.CreateCanvas(width, height, fallback)
	canvas.DrawImage(scaled, -(scaledW-width)/2, -(scaledH-height)/2)
	return canvas.ToImage()
}

func solidCanvas(width, height int, c color.Color, renderer ports.Renderer) image.Image {
	return renderer.CreateCanvas(width, height, c).ToImage()
}
