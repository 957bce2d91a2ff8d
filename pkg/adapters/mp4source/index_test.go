package mp4source

import (
	"math"
	"testing"
)

// evenIndex builds a synthetic 30fps track with count samples at the given
// timescale, keyframes every gop samples.
func evenIndex(count int, timescale uint32, gop int) *trackIndex {
	idx := &trackIndex{
		width:     1920,
		height:    1080,
		codec:     "avc1",
		timescale: timescale,
	}
	durTicks := uint64(timescale) / 30
	var decodeTime uint64
	for i := 0; i < count; i++ {
		idx.samples = append(idx.samples, sampleMeta{
			tsUs:  scaleToUs(decodeTime, timescale),
			durUs: scaleToUs(durTicks, timescale),
			sync:  i%gop == 0,
		})
		decodeTime += durTicks
	}
	idx.durationUs = scaleToUs(decodeTime, timescale)
	return idx
}

func TestSampleAt_CoversDisplayIntervals(t *testing.T) {
	idx := evenIndex(300, 30_000, 60) // 10s at 30fps

	cases := []struct {
		tsUs int64
		want int
	}{
		{0, 0},
		{1, 0},
		{33_332, 0},      // still inside sample 0
		{33_333, 1},      // sample 1 starts at 33333us
		{5_000_000, 150}, // mid-track
		{9_999_999, 299}, // last sample
	}
	for _, c := range cases {
		if got := idx.sampleAt(c.tsUs); got != c.want {
			t.Errorf("sampleAt(%d) = %d, want %d", c.tsUs, got, c.want)
		}
	}
}

func TestSampleAt_PastEnd(t *testing.T) {
	idx := evenIndex(300, 30_000, 60)

	if got := idx.sampleAt(idx.durationUs); got != -1 {
		t.Errorf("expected -1 at track end, got %d", got)
	}
	if got := idx.sampleAt(idx.durationUs + 1_000_000); got != -1 {
		t.Errorf("expected -1 past track end, got %d", got)
	}
}

func TestSampleAt_NegativeClampsToStart(t *testing.T) {
	idx := evenIndex(10, 30_000, 10)
	if got := idx.sampleAt(-500); got != 0 {
		t.Errorf("expected 0 for a negative timestamp, got %d", got)
	}
}

func TestInfo_DerivesFPSFromSampleCount(t *testing.T) {
	idx := evenIndex(300, 30_000, 60)
	info := idx.info()

	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("unexpected dimensions %dx%d", info.Width, info.Height)
	}
	if info.FrameCount != 300 {
		t.Errorf("expected 300 frames, got %d", info.FrameCount)
	}
	if math.Abs(info.FPS-30) > 0.01 {
		t.Errorf("expected ~30 fps, got %g", info.FPS)
	}
	if info.Codec != "avc1" {
		t.Errorf("expected codec avc1, got %s", info.Codec)
	}
}

func TestInfo_EmptyTrackHasZeroFPS(t *testing.T) {
	idx := &trackIndex{timescale: 1000}
	if fps := idx.info().FPS; fps != 0 {
		t.Errorf("expected 0 fps for an empty track, got %g", fps)
	}
}

func TestScaleToUs(t *testing.T) {
	cases := []struct {
		ticks     uint64
		timescale uint32
		want      int64
	}{
		{90_000, 90_000, 1_000_000}, // one second in 90kHz ticks
		{1_000, 1_000, 1_000_000},
		{500, 1_000, 500_000},
		{0, 90_000, 0},
		{42, 0, 42}, // degenerate timescale passes through
	}
	for _, c := range cases {
		if got := scaleToUs(c.ticks, c.timescale); got != c.want {
			t.Errorf("scaleToUs(%d, %d) = %d, want %d", c.ticks, c.timescale, got, c.want)
		}
	}
}

func TestProbe_MissingFile(t *testing.T) {
	if _, err := Probe("no-such-file.mp4"); err == nil {
		t.Error("expected error for a missing file")
	}
}
