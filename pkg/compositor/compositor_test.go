package compositor

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/user/screenshow/pkg/adapters/logger"
	"github.com/user/screenshow/pkg/config"
	"github.com/user/screenshow/pkg/framepool"
	"github.com/user/screenshow/pkg/mocks"
	"github.com/user/screenshow/pkg/pipeline"
	"github.com/user/screenshow/pkg/ports"
)

func testConfig() config.RenderConfig {
	cfg := config.Defaults()
	cfg.SourceWidth = 1920
	cfg.SourceHeight = 1080
	return cfg
}

// recordingRenderer hands every CreateCanvas call a fresh recording canvas
// and remembers them, so tests can tell the background pre-render canvas
// apart from per-frame canvases.
type recordingRenderer struct {
	mocks.Renderer
	canvases []*mocks.Canvas
}

func newRecordingRenderer() *recordingRenderer {
	r := &recordingRenderer{}
	r.CreateCanvasFunc = func(w, h int, bg color.Color) ports.Canvas {
		c := &mocks.Canvas{}
		r.canvases = append(r.canvases, c)
		return c
	}
	return r
}

// last returns the most recently created canvas, the one Render drew on.
func (r *recordingRenderer) last(t *testing.T) *mocks.Canvas {
	t.Helper()
	if len(r.canvases) == 0 {
		t.Fatal("no canvas was created")
	}
	return r.canvases[len(r.canvases)-1]
}

func newTestCompositor(t *testing.T, cfg config.RenderConfig) (*Compositor, *framepool.Pool, *recordingRenderer) {
	t.Helper()
	pool, err := framepool.New(8)
	if err != nil {
		t.Fatalf("framepool.New failed: %v", err)
	}
	renderer := newRecordingRenderer()
	c, err := New(cfg, 1280, 720, testFrameDur, renderer, pool, mocks.NewFileSystem(), logger.NewNoop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, pool, renderer
}

func acquireFrame(t *testing.T, pool *framepool.Pool, index int64) *pipeline.DecodedFrame {
	t.Helper()
	h, err := pool.Acquire(image.NewRGBA(image.Rect(0, 0, 1920, 1080)))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	return &pipeline.DecodedFrame{
		Index:       index,
		TimestampUs: index * testFrameDur,
		Handle:      h,
	}
}

func TestCompositor_RejectsMissingDimensions(t *testing.T) {
	pool, _ := framepool.New(2)
	cfg := config.Defaults() // source dimensions left zero

	_, err := New(cfg, 1280, 720, testFrameDur, newRecordingRenderer(), pool, mocks.NewFileSystem(), logger.NewNoop())
	if err == nil {
		t.Error("expected error for zero source dimensions")
	}
}

func TestCompositor_RenderReleasesFrameHandle(t *testing.T) {
	c, pool, _ := newTestCompositor(t, testConfig())
	frame := acquireFrame(t, pool, 0)

	out, err := c.Render(frame, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.Index != 0 || out.TimestampUs != 0 {
		t.Errorf("expected index 0 ts 0, got %d %d", out.Index, out.TimestampUs)
	}
	if out.Image == nil {
		t.Error("expected a rendered image")
	}
	if pool.Valid(frame.Handle) {
		t.Error("expected frame handle released after render")
	}
	if pool.Outstanding() != 0 {
		t.Errorf("expected 0 outstanding handles, got %d", pool.Outstanding())
	}
}

func TestCompositor_RenderRejectsStaleHandle(t *testing.T) {
	c, pool, _ := newTestCompositor(t, testConfig())
	frame := acquireFrame(t, pool, 0)
	pool.Release(frame.Handle)

	if _, err := c.Render(frame, nil); err == nil {
		t.Error("expected error for stale handle")
	}
}

func TestCompositor_FrameIsClippedToRoundedMask(t *testing.T) {
	c, pool, renderer := newTestCompositor(t, testConfig())
	frame := acquireFrame(t, pool, 0)

	if _, err := c.Render(frame, nil); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	canvas := renderer.last(t)
	clip, ok := canvas.FindOp("PushRoundedRectClip")
	if !ok {
		t.Fatal("expected the source frame to be drawn under a rounded clip")
	}
	draw, ok := canvas.FindOp("DrawImageScaled")
	if !ok {
		t.Fatal("expected DrawImageScaled for the source frame")
	}
	// 48px padding at 1920 reference scales to 32 in a 1280x720 output,
	// leaving a 1216x656 viewport; the 16:9 crop fits to 1166.2x656.
	wantW := 1920 * (656.0 / 1080)
	if math.Abs(clip.W-wantW) > 0.01 || math.Abs(clip.H-656) > 0.01 {
		t.Errorf("expected mask %.1fx656, got %gx%g", wantW, clip.W, clip.H)
	}
	// Full crop at rest: the image fills the mask exactly.
	if math.Abs(draw.W-clip.W) > 1e-6 || math.Abs(draw.H-clip.H) > 1e-6 {
		t.Errorf("expected image drawn at mask size %gx%g, got %gx%g", clip.W, clip.H, draw.W, draw.H)
	}
}

func TestCompositor_ShadowLayersUnderMask(t *testing.T) {
	cfg := testConfig()
	cfg.ShadowEnabled = true
	cfg.ShadowIntensity = 0.8
	c, pool, renderer := newTestCompositor(t, cfg)

	if _, err := c.Render(acquireFrame(t, pool, 0), nil); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	canvas := renderer.last(t)
	var shadows int
	for _, op := range canvas.Ops {
		if op.Name == "DrawRoundedRect" {
			shadows++
		}
		// The shadow must be painted before the clipped frame.
		if op.Name == "PushRoundedRectClip" {
			break
		}
	}
	if shadows != 4 {
		t.Errorf("expected 4 shadow layers before the frame, got %d", shadows)
	}
}

func TestCompositor_ShadowDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.ShadowEnabled = false
	c, pool, renderer := newTestCompositor(t, cfg)

	if _, err := c.Render(acquireFrame(t, pool, 0), nil); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if _, ok := renderer.last(t).FindOp("DrawRoundedRect"); ok {
		t.Error("expected no shadow layers when shadow is disabled")
	}
}

func TestCompositor_ZoomEnlargesDrawnImage(t *testing.T) {
	cfg := testConfig()
	cfg.ZoomRegions = []config.ZoomRegion{
		{StartMs: 0, EndMs: 60_000, FocusX: 0.5, FocusY: 0.5, Scale: 2},
	}
	c, pool, renderer := newTestCompositor(t, cfg)

	// Deep into the region the filter has converged on scale 2.
	if _, err := c.Render(acquireFrame(t, pool, 300), nil); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	canvas := renderer.last(t)
	clip, _ := canvas.FindOp("PushRoundedRectClip")
	draw, _ := canvas.FindOp("DrawImageScaled")
	if draw.W < clip.W*1.9 {
		t.Errorf("expected drawn width ~2x mask width %g, got %g", clip.W, draw.W)
	}
	// The zoomed image must still cover the mask.
	if draw.X > clip.X || draw.X+draw.W < clip.X+clip.W {
		t.Errorf("zoomed image does not cover the mask horizontally: img [%g,%g] mask [%g,%g]",
			draw.X, draw.X+draw.W, clip.X, clip.X+clip.W)
	}
}

func TestCompositor_DeterministicAcrossInstances(t *testing.T) {
	cfg := testConfig()
	cfg.ZoomRegions = []config.ZoomRegion{
		{StartMs: 500, EndMs: 3000, FocusX: 0.3, FocusY: 0.6, Scale: 2.5},
	}

	// One compositor renders every frame up to 60; a second fresh one
	// renders frame 60 directly. The drawing calls for frame 60 must match.
	seqComp, seqPool, seqRenderer := newTestCompositor(t, cfg)
	for i := int64(0); i <= 60; i++ {
		if _, err := seqComp.Render(acquireFrame(t, seqPool, i), nil); err != nil {
			t.Fatalf("sequential render %d failed: %v", i, err)
		}
	}
	seqOps := seqRenderer.last(t).Ops

	freshComp, freshPool, freshRenderer := newTestCompositor(t, cfg)
	if _, err := freshComp.Render(acquireFrame(t, freshPool, 60), nil); err != nil {
		t.Fatalf("fresh render failed: %v", err)
	}
	freshOps := freshRenderer.last(t).Ops

	if len(seqOps) != len(freshOps) {
		t.Fatalf("op count differs: sequential %d, fresh %d", len(seqOps), len(freshOps))
	}
	for i := range seqOps {
		if seqOps[i] != freshOps[i] {
			t.Errorf("op %d differs: sequential %+v, fresh %+v", i, seqOps[i], freshOps[i])
		}
	}
}

func TestCompositor_CircleOverlayUsesCircleClip(t *testing.T) {
	cfg := testConfig()
	cfg.PiP.Enabled = true
	cfg.PiP.SourcePath = "cam.mp4"
	cfg.PiP.Shape = config.ShapeCircle
	c, pool, renderer := newTestCompositor(t, cfg)

	frame := acquireFrame(t, pool, 0)
	overlay := acquireFrame(t, pool, 0)

	if _, err := c.Render(frame, overlay); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	canvas := renderer.last(t)
	if _, ok := canvas.FindOp("PushCircleClip"); !ok {
		t.Error("expected circle clip for the circular overlay")
	}
	if _, ok := canvas.FindOp("DrawRoundedRectStroke"); !ok {
		t.Error("expected a border stroke around the overlay")
	}
	if pool.Valid(overlay.Handle) {
		t.Error("expected overlay handle released after render")
	}
}

func TestCompositor_RectangleOverlayBottomRight(t *testing.T) {
	cfg := testConfig()
	cfg.PiP.Enabled = true
	cfg.PiP.SourcePath = "cam.mp4"
	cfg.PiP.Shape = config.ShapeRectangle
	cfg.PiP.Corner = config.CornerBottomRight
	cfg.PiP.Size = config.SizeSmall
	c, pool, renderer := newTestCompositor(t, cfg)

	if _, err := c.Render(acquireFrame(t, pool, 0), acquireFrame(t, pool, 0)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	canvas := renderer.last(t)
	if _, ok := canvas.FindOp("PushCircleClip"); ok {
		t.Error("expected no circle clip for a rectangular overlay")
	}
	stroke, ok := canvas.FindOp("DrawRoundedRectStroke")
	if !ok {
		t.Fatal("expected a border stroke around the overlay")
	}
	// Small tier: 18% of 1280 = 230.4 wide, anchored to the bottom right.
	if stroke.W != 1280*0.18 {
		t.Errorf("expected overlay width %g, got %g", 1280*0.18, stroke.W)
	}
	if stroke.X < 640 || stroke.Y < 360 {
		t.Errorf("expected bottom-right placement, got (%g,%g)", stroke.X, stroke.Y)
	}
}

func TestCompositor_RenderWithoutOverlayWhenNil(t *testing.T) {
	cfg := testConfig()
	cfg.PiP.Enabled = true
	cfg.PiP.SourcePath = "cam.mp4"
	c, pool, renderer := newTestCompositor(t, cfg)

	// A nil overlay means the overlay track ran out; the frame renders
	// without the layer.
	if _, err := c.Render(acquireFrame(t, pool, 0), nil); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if _, ok := renderer.last(t).FindOp("PushCircleClip"); ok {
		t.Error("expected no overlay drawing for a nil overlay frame")
	}
}

func TestCompositor_BackgroundDrawnFirst(t *testing.T) {
	c, pool, renderer := newTestCompositor(t, testConfig())

	if _, err := c.Render(acquireFrame(t, pool, 0), nil); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	ops := renderer.last(t).Ops
	if len(ops) == 0 || ops[0].Name != "DrawImage" {
		t.Errorf("expected the background layer drawn first, got %v", ops)
	}
}

func TestCompositor_GradientBackgroundPreRendered(t *testing.T) {
	cfg := testConfig()
	cfg.Background = config.Background{
		Kind:         config.BackgroundGradient,
		GradientFrom: "#102030",
		GradientTo:   "#a0b0c0",
	}
	_, _, renderer := newTestCompositor(t, cfg)

	// The gradient is painted once at construction, on its own canvas.
	if len(renderer.canvases) != 1 {
		t.Fatalf("expected 1 background canvas, got %d", len(renderer.canvases))
	}
	if _, ok := renderer.canvases[0].FindOp("FillLinearGradient"); !ok {
		t.Error("expected FillLinearGradient on the background canvas")
	}
}

func TestCompositor_MissingBackgroundImageDegradesToColor(t *testing.T) {
	cfg := testConfig()
	cfg.Background = config.Background{
		Kind:      config.BackgroundImage,
		Color:     "#1a1a2e",
		ImagePath: "missing.png",
	}
	pool, _ := framepool.New(4)
	renderer := newRecordingRenderer()

	c, err := New(cfg, 1280, 720, testFrameDur, renderer, pool, mocks.NewFileSystem(), logger.NewNoop())
	if err != nil {
		t.Fatalf("expected degraded construction, got %v", err)
	}
	if c.background == nil {
		t.Error("expected a fallback background image")
	}
}
