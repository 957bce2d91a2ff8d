package compositor

import (
	"math"
	"testing"

	"github.com/user/screenshow/pkg/config"
)

const testFrameDur = int64(1000000 / 30)

func TestRegionStrength_RampShape(t *testing.T) {
	z := config.ZoomRegion{StartMs: 1000, EndMs: 4000, Scale: 2}

	cases := []struct {
		tsMs int64
		want float64
	}{
		{500, 0},    // before the window
		{1000, 0},   // window start
		{1250, 0.5}, // smoothstep(0.5) = 0.5
		{1500, 1},   // ramp complete
		{2500, 1},   // plateau
		{3500, 1},   // exit ramp begins here
		{3750, 0.5},
		{4000, 0},
		{4500, 0}, // after the window
	}
	for _, c := range cases {
		got := regionStrength(z, c.tsMs*1000)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("strength at %dms: expected %g, got %g", c.tsMs, c.want, got)
		}
	}
}

func TestRegionStrength_MonotonicOnRamp(t *testing.T) {
	z := config.ZoomRegion{StartMs: 0, EndMs: 10_000, Scale: 2}

	prev := -1.0
	for ts := int64(0); ts <= 500_000; ts += 10_000 {
		s := regionStrength(z, ts)
		if s < prev {
			t.Fatalf("strength not monotonic on entry ramp at %dus: %g < %g", ts, s, prev)
		}
		prev = s
	}
	if math.Abs(prev-1) > 1e-9 {
		t.Errorf("expected strength 1 at ramp end, got %g", prev)
	}
}

func TestRegionStrength_ShortWindowShrinksRamp(t *testing.T) {
	// 600ms window: the ramp shrinks to 300ms so entry and exit still meet.
	z := config.ZoomRegion{StartMs: 0, EndMs: 600, Scale: 2}

	mid := regionStrength(z, 300_000)
	if math.Abs(mid-1) > 1e-9 {
		t.Errorf("expected full strength at window midpoint, got %g", mid)
	}
	if s := regionStrength(z, 0); s != 0 {
		t.Errorf("expected 0 at window start, got %g", s)
	}
}

func TestTargetAt_DominantRegionWins(t *testing.T) {
	a := newZoomAnimator([]config.ZoomRegion{
		{StartMs: 0, EndMs: 5200, FocusX: 0.2, FocusY: 0.2, Scale: 2},
		{StartMs: 4000, EndMs: 6000, FocusX: 0.8, FocusY: 0.8, Scale: 3},
	}, testFrameDur)

	// At 5s the first region is fading out while the second is mid-window
	// at full strength, so the second must dominate the scale.
	target := a.targetAt(5_000_000)
	if math.Abs(target.Scale-3) > 1e-9 {
		t.Errorf("expected dominant scale 3, got %g", target.Scale)
	}
	// Focus blends between the two regions.
	if target.FocusX <= 0.2 || target.FocusX >= 0.8 {
		t.Errorf("expected blended focus in (0.2,0.8), got %g", target.FocusX)
	}
}

func TestTargetAt_RestOutsideRegions(t *testing.T) {
	a := newZoomAnimator([]config.ZoomRegion{
		{StartMs: 5000, EndMs: 6000, FocusX: 0.5, FocusY: 0.5, Scale: 2},
	}, testFrameDur)

	target := a.targetAt(1_000_000)
	if target != restState {
		t.Errorf("expected rest state outside regions, got %+v", target)
	}
}

func TestStateAt_ConvergesToTarget(t *testing.T) {
	regions := []config.ZoomRegion{
		{StartMs: 0, EndMs: 60_000, FocusX: 0.3, FocusY: 0.7, Scale: 2},
	}
	a := newZoomAnimator(regions, testFrameDur)

	// Deep inside the plateau the filter must have converged.
	s := a.StateAt(300) // 10s in
	if math.Abs(s.Scale-2) > 0.01 {
		t.Errorf("expected scale ~2, got %g", s.Scale)
	}
	if math.Abs(s.FocusX-0.3) > 0.01 || math.Abs(s.FocusY-0.7) > 0.01 {
		t.Errorf("expected focus ~(0.3,0.7), got (%g,%g)", s.FocusX, s.FocusY)
	}
}

func TestStateAt_ReplayMatchesSequential(t *testing.T) {
	regions := []config.ZoomRegion{
		{StartMs: 1000, EndMs: 3000, FocusX: 0.25, FocusY: 0.25, Scale: 2},
		{StartMs: 2500, EndMs: 5000, FocusX: 0.75, FocusY: 0.75, Scale: 3},
	}

	// One animator steps every frame; the other visits a sparse subset,
	// as a worker rendering every 7th frame would.
	seq := newZoomAnimator(regions, testFrameDur)
	sparse := newZoomAnimator(regions, testFrameDur)

	var want []zoomState
	for i := int64(0); i <= 210; i++ {
		want = append(want, seq.StateAt(i))
	}
	for i := int64(0); i <= 210; i += 7 {
		got := sparse.StateAt(i)
		if got != want[i] {
			t.Fatalf("frame %d: sparse animator diverged: got %+v, want %+v", i, got, want[i])
		}
	}
}

func TestStateAt_BackwardIndexRestarts(t *testing.T) {
	regions := []config.ZoomRegion{
		{StartMs: 0, EndMs: 5000, FocusX: 0.5, FocusY: 0.5, Scale: 2},
	}
	a := newZoomAnimator(regions, testFrameDur)
	b := newZoomAnimator(regions, testFrameDur)

	a.StateAt(100)
	// Going backward must replay from zero, not continue the filter.
	if got, want := a.StateAt(10), b.StateAt(10); got != want {
		t.Errorf("backward replay diverged: got %+v, want %+v", got, want)
	}
}

func TestStepValue_SnapsNearTarget(t *testing.T) {
	if got := stepValue(1.0005, 1.0); got != 1.0 {
		t.Errorf("expected snap to target, got %g", got)
	}
	got := stepValue(1.0, 2.0)
	want := 1.0 + smoothingFactor
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected one filter step to %g, got %g", want, got)
	}
}
