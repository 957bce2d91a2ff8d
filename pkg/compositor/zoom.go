package compositor

import (
	"math"

	"github.com/user/screenshow/pkg/config"
)

// Animation tuning. The ramp gives each zoom window a soft entry and exit;
// the smoothing filter removes per-frame discontinuities; the snap
// threshold stops the filter from drifting asymptotically near the target.
const (
	rampUs          = 500_000
	smoothingFactor = 0.22
	snapThreshold   = 1e-3
)

// zoomState is the interpolated zoom/pan state for one frame.
type zoomState struct {
	Scale  float64
	FocusX float64
	FocusY float64
}

var restState = zoomState{Scale: 1, FocusX: 0.5, FocusY: 0.5}

// zoomAnimator computes the zoom state per frame index.
//
// The exponential filter is stateful, so to stay deterministic when a
// worker renders a non-contiguous subset of frames the animator replays
// the filter over any skipped indices at the nominal frame interval.
// Every worker therefore computes the identical state for a given index,
// no matter which frames it rendered before.
type zoomAnimator struct {
	regions    []config.ZoomRegion
	frameDurUs int64

	lastIndex int64
	state     zoomState
}

func newZoomAnimator(regions []config.ZoomRegion, frameDurUs int64) *zoomAnimator {
	return &zoomAnimator{
		regions:    regions,
		frameDurUs: frameDurUs,
		lastIndex:  -1,
		state:      restState,
	}
}

// StateAt returns the animation state for the given frame index.
func (a *zoomAnimator) StateAt(index int64) zoomState {
	start := a.lastIndex + 1
	if index <= a.lastIndex {
		start = 0
		a.state = restState
	}
	for i := start; i <= index; i++ {
		target := a.targetAt(i * a.frameDurUs)
		a.state = stepToward(a.state, target)
	}
	a.lastIndex = index
	return a.state
}

// targetAt blends the active zoom regions at tsUs. The region with the
// highest instantaneous strength dominates the scale; focus blends across
// all active regions weighted by strength so handoffs between overlapping
// regions stay continuous.
func (a *zoomAnimator) targetAt(tsUs int64) zoomState {
	var (
		domStrength float64
		domScale    = 1.0
		focusX      float64
		focusY      float64
		weightSum   float64
	)
	for _, z := range a.regions {
		s := regionStrength(z, tsUs)
		if s <= 0 {
			continue
		}
		if s > domStrength {
			domStrength = s
			domScale = z.Scale
		}
		focusX += s * z.FocusX
		focusY += s * z.FocusY
		weightSum += s
	}
	if weightSum == 0 {
		return restState
	}
	return zoomState{
		Scale:  1 + domStrength*(domScale-1),
		FocusX: focusX / weightSum,
		FocusY: focusY / weightSum,
	}
}

// regionStrength is 0 outside [start,end], ramps up over the first rampUs
// inside the window, holds 1 in the middle, and ramps back down before the
// end. Windows shorter than two ramps shrink the ramp to half the window.
func regionStrength(z config.ZoomRegion, tsUs int64) float64 {
	startUs := int64(z.StartMs) * 1000
	endUs := int64(z.EndMs) * 1000
	if tsUs < startUs || tsUs > endUs {
		return 0
	}
	ramp := int64(rampUs)
	if half := (endUs - startUs) / 2; half < ramp {
		ramp = half
	}
	if ramp <= 0 {
		return 1
	}
	in := float64(tsUs-startUs) / float64(ramp)
	out := float64(endUs-tsUs) / float64(ramp)
	edge := math.Min(math.Min(in, out), 1)
	return smoothstep(edge)
}

func smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// stepToward advances the filter one frame: previous + (target-previous) *
// smoothingFactor, snapping when within the minimum-delta threshold.
func stepToward(s, target zoomState) zoomState {
	return zoomState{
		Scale:  stepValue(s.Scale, target.Scale),
		FocusX: stepValue(s.FocusX, target.FocusX),
		FocusY: stepValue(s.FocusY, target.FocusY),
	}
}

func stepValue(v, target float64) float64 {
	d := target - v
	if math.Abs(d) < snapThreshold {
		return target
	}
	return v + d*smoothingFactor
}
