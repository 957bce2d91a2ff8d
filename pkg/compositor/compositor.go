// Package compositor renders one decoded source frame into one output
// frame: crop and fit, zoom/pan animation, rounded-rect masking, background
// compositing, drop shadow, and the optional picture-in-picture overlay.
//
// Rendering is deterministic: the same (frame, timestamp, configuration)
// on a fresh Compositor produces bit-identical output. Each render worker
// owns its own instance; the only shared input is the immutable
// configuration.
package compositor

import (
	"fmt"
	"image"
	"image/color"

	"github.com/user/screenshow/pkg/config"
	"github.com/user/screenshow/pkg/framepool"
	"github.com/user/screenshow/pkg/pipeline"
	"github.com/user/screenshow/pkg/ports"
)

// Compositor renders decoded frames for one worker.
type Compositor struct {
	cfg      config.RenderConfig
	outW     int
	outH     int
	uiScale  float64
	renderer ports.Renderer
	pool     *framepool.Pool
	log      ports.Logger

	background image.Image
	anim       *zoomAnimator
}

// New creates a Compositor and pre-renders the background layer.
// frameDurUs is the output frame interval used to step the zoom filter.
func New(cfg config.RenderConfig, outW, outH int, frameDurUs int64, renderer ports.Renderer, pool *framepool.Pool, fs ports.FileSystem, log ports.Logger) (*Compositor, error) {
	if cfg.SourceWidth <= 0 || cfg.SourceHeight <= 0 {
		return nil, fmt.Errorf("%w: source dimensions %dx%d", pipeline.ErrConfigInvalid, cfg.SourceWidth, cfg.SourceHeight)
	}
	if outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("%w: output dimensions %dx%d", pipeline.ErrConfigInvalid, outW, outH)
	}

	c := &Compositor{
		cfg:      cfg,
		outW:     outW,
		outH:     outH,
		uiScale:  float64(outW) / float64(cfg.ReferenceWidth),
		renderer: renderer,
		pool:     pool,
		log:      log.WithComponent("compositor"),
		anim:     newZoomAnimator(cfg.ZoomRegions, frameDurUs),
	}
	c.background = renderBackground(&cfg, outW, outH, renderer, fs, log)
	return c, nil
}

// Render composites one frame. The source frame handle (and the overlay
// handle, when present) is released as soon as its pixels have been drawn;
// on error the caller still owns whatever was not consumed.
func (c *Compositor) Render(frame *pipeline.DecodedFrame, overlay *pipeline.DecodedFrame) (*pipeline.RenderedFrame, error) {
	src, err := c.pool.Image(frame.Handle)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame.Index, err)
	}

	canvas := c.renderer.CreateCanvas(c.outW, c.outH, color.Black)
	canvas.DrawImage(c.background, 0, 0)

	zoom := c.anim.StateAt(frame.Index)
	g := c.geometry(zoom)

	if c.cfg.ShadowEnabled && c.cfg.ShadowIntensity > 0 {
		c.drawShadow(canvas, g)
	}

	// Draw the full source scaled so the crop rectangle lands exactly on
	// the mask; everything outside is clipped. No intermediate crop copy.
	canvas.PushRoundedRectClip(g.maskX, g.maskY, g.maskW, g.maskH, g.radius)
	canvas.DrawImageScaled(src, g.imgX, g.imgY, g.imgW, g.imgH)
	canvas.PopClip()

	// The source pixels are consumed; release the handle before the
	// remaining layers are drawn.
	if err := c.pool.Release(frame.Handle); err != nil {
		return nil, fmt.Errorf("release frame %d: %w", frame.Index, err)
	}

	if overlay != nil {
		if err := c.drawOverlay(canvas, overlay); err != nil {
			return nil, err
		}
	}

	return &pipeline.RenderedFrame{
		Index:       frame.Index,
		TimestampUs: frame.TimestampUs,
		Image:       canvas.ToImage(),
	}, nil
}

// frameGeometry is the per-frame placement of the masked source within the
// output canvas.
type frameGeometry struct {
	maskX, maskY, maskW, maskH float64
	imgX, imgY, imgW, imgH     float64
	radius                     float64
}

// geometry computes the crop-to-viewport layout and applies the zoom
// transform about the focus point, clamped so the zoomed image always
// covers the mask.
func (c *Compositor) geometry(zoom zoomState) frameGeometry {
	srcW := float64(c.cfg.SourceWidth)
	srcH := float64(c.cfg.SourceHeight)
	cropX := c.cfg.Crop.X * srcW
	cropY := c.cfg.Crop.Y * srcH
	cropW := c.cfg.Crop.W * srcW
	cropH := c.cfg.Crop.H * srcH

	pad := c.cfg.Padding * c.uiScale
	vpW := float64(c.outW) - 2*pad
	vpH := float64(c.outH) - 2*pad

	fit := vpW / cropW
	if s := vpH / cropH; s < fit {
		fit = s
	}
	maskW := cropW * fit
	maskH := cropH * fit
	maskX := pad + (vpW-maskW)/2
	maskY := pad + (vpH-maskH)/2

	drawW := maskW * zoom.Scale
	drawH := maskH * zoom.Scale

	// Pull the focus point toward the mask center, keeping the mask fully
	// covered.
	x := maskX + maskW/2 - zoom.FocusX*drawW
	y := maskY + maskH/2 - zoom.FocusY*drawH
	x = clamp(x, maskX+maskW-drawW, maskX)
	y = clamp(y, maskY+maskH-drawH, maskY)

	// Expand the crop placement to the full source image.
	px := drawW / cropW
	py := drawH / cropH

	return frameGeometry{
		maskX: maskX, maskY: maskY, maskW: maskW, maskH: maskH,
		imgX: x - cropX*px,
		imgY: y - cropY*py,
		imgW: srcW * px,
		imgH: srcH * py,
		radius: c.cfg.CornerRadius * c.uiScale,
	}
}

// drawShadow renders a soft multi-layer drop shadow under the mask rect.
func (c *Compositor) drawShadow(canvas ports.Canvas, g frameGeometry) {
	const layers = 4
	for i := layers; i >= 1; i-- {
		spread := float64(i) * 3 * c.uiScale
		offsetY := float64(i) * 2 * c.uiScale
		alpha := c.cfg.ShadowIntensity * 0.18 / float64(i)
		canvas.DrawRoundedRect(
			g.maskX-spread,
			g.maskY-spread+offsetY,
			g.maskW+2*spread,
			g.maskH+2*spread,
			g.radius+spread,
			color.NRGBA{A: uint8(alpha * 255)},
		)
	}
}

// drawOverlay composites the picture-in-picture frame at the configured
// corner. The overlay handle is released after its pixels are drawn.
func (c *Compositor) drawOverlay(canvas ports.Canvas, overlay *pipeline.DecodedFrame) error {
	img, err := c.pool.Image(overlay.Handle)
	if err != nil {
		return fmt.Errorf("overlay frame %d: %w", overlay.Index, err)
	}

	pip := c.cfg.PiP
	b := img.Bounds()
	ow := float64(b.Dx())
	oh := float64(b.Dy())

	w := float64(c.outW) * pip.Size.SizeFraction()
	h := w * oh / ow
	if pip.Shape != config.ShapeRectangle {
		// Square and circle force 1:1, center-cropping the overflow.
		h = w
	}

	margin := 24 * c.uiScale
	x := margin
	y := margin
	switch pip.Corner {
	case config.CornerTopRight:
		x = float64(c.outW) - margin - w
	case config.CornerBottomLeft:
		y = float64(c.outH) - margin - h
	case config.CornerBottomRight:
		x = float64(c.outW) - margin - w
		y = float64(c.outH) - margin - h
	}

	radius := pip.CornerRadius * c.uiScale
	if pip.Shape == config.ShapeCircle {
		radius = w / 2
		canvas.PushCircleClip(x+w/2, y+h/2, w/2)
	} else {
		canvas.PushRoundedRectClip(x, y, w, h, radius)
	}

	// Scale to cover the overlay box, centered.
	scale := w / ow
	if s := h / oh; s > scale {
		scale = s
	}
	dw := ow * scale
	dh := oh * scale
	canvas.DrawImageScaled(img, x-(dw-w)/2, y-(dh-h)/2, dw, dh)
	canvas.PopClip()

	canvas.DrawRoundedRectStroke(x, y, w, h, radius, color.White, 3*c.uiScale)

	if err := c.pool.Release(overlay.Handle); err != nil {
		return fmt.Errorf("release overlay frame %d: %w", overlay.Index, err)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if lo > hi {
		// Degenerate when the drawn image is smaller than the mask; keep
		// it pinned to the mask origin.
		return hi
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
