package config

import (
	"errors"
	"image/color"
	"testing"

	"github.com/user/screenshow/pkg/mocks"
	"github.com/user/screenshow/pkg/pipeline"
)

func TestValidate_DefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RenderConfig)
	}{
		{"zero crop width", func(c *RenderConfig) { c.Crop.W = 0 }},
		{"crop outside unit square", func(c *RenderConfig) { c.Crop = Rect{X: 0.5, Y: 0, W: 0.6, H: 1} }},
		{"zoom start after end", func(c *RenderConfig) {
			c.ZoomRegions = []ZoomRegion{{StartMs: 2000, EndMs: 1000, Scale: 2}}
		}},
		{"zoom scale below one", func(c *RenderConfig) {
			c.ZoomRegions = []ZoomRegion{{StartMs: 0, EndMs: 1000, Scale: 0.5}}
		}},
		{"zoom focus outside unit square", func(c *RenderConfig) {
			c.ZoomRegions = []ZoomRegion{{StartMs: 0, EndMs: 1000, FocusX: 1.5, Scale: 2}}
		}},
		{"bad background color", func(c *RenderConfig) { c.Background.Color = "teal" }},
		{"unknown background kind", func(c *RenderConfig) { c.Background.Kind = "plasma" }},
		{"gradient missing stops", func(c *RenderConfig) {
			c.Background = Background{Kind: BackgroundGradient}
		}},
		{"image background without path", func(c *RenderConfig) {
			c.Background = Background{Kind: BackgroundImage}
		}},
		{"shadow intensity above one", func(c *RenderConfig) { c.ShadowIntensity = 1.5 }},
		{"negative padding", func(c *RenderConfig) { c.Padding = -1 }},
		{"zero reference width", func(c *RenderConfig) { c.ReferenceWidth = 0 }},
		{"pip without source path", func(c *RenderConfig) { c.PiP.Enabled = true }},
		{"pip bad corner", func(c *RenderConfig) {
			c.PiP.Enabled = true
			c.PiP.SourcePath = "cam.mp4"
			c.PiP.Corner = "center"
		}},
		{"pip bad size", func(c *RenderConfig) {
			c.PiP.Enabled = true
			c.PiP.SourcePath = "cam.mp4"
			c.PiP.Size = "huge"
		}},
		{"pip bad shape", func(c *RenderConfig) {
			c.PiP.Enabled = true
			c.PiP.SourcePath = "cam.mp4"
			c.PiP.Shape = "hexagon"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, pipeline.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestValidate_SortsZoomRegions(t *testing.T) {
	cfg := Defaults()
	cfg.ZoomRegions = []ZoomRegion{
		{StartMs: 5000, EndMs: 6000, Scale: 2},
		{StartMs: 1000, EndMs: 2000, Scale: 2},
		{StartMs: 3000, EndMs: 4000, Scale: 2},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	for i := 1; i < len(cfg.ZoomRegions); i++ {
		if cfg.ZoomRegions[i].StartMs < cfg.ZoomRegions[i-1].StartMs {
			t.Fatalf("regions not sorted: %v", cfg.ZoomRegions)
		}
	}
}

func TestLoad_AppliesDefaultsForAbsentFields(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.SetFile("render.yaml", []byte(`
crop:
  x: 0.1
  y: 0.1
  w: 0.8
  h: 0.8
zoom_regions:
  - start_ms: 1000
    end_ms: 3000
    focus_x: 0.5
    focus_y: 0.5
    scale: 2
`))

	cfg, err := Load(fs, "render.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Crop.W != 0.8 {
		t.Errorf("expected crop width 0.8, got %g", cfg.Crop.W)
	}
	if len(cfg.ZoomRegions) != 1 || cfg.ZoomRegions[0].Scale != 2 {
		t.Errorf("unexpected zoom regions: %v", cfg.ZoomRegions)
	}
	// Untouched fields keep their defaults.
	if !cfg.ShadowEnabled || cfg.Background.Color != "#1a1a2e" {
		t.Error("expected absent fields to keep defaults")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(mocks.NewFileSystem(), "absent.yaml"); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.SetFile("render.yaml", []byte("crop: [not a mapping"))

	_, err := Load(fs, "render.yaml")
	if !errors.Is(err, pipeline.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestSizeFraction_Tiers(t *testing.T) {
	if f := SizeSmall.SizeFraction(); f != 0.18 {
		t.Errorf("small: expected 0.18, got %g", f)
	}
	if f := SizeMedium.SizeFraction(); f != 0.25 {
		t.Errorf("medium: expected 0.25, got %g", f)
	}
	if f := SizeLarge.SizeFraction(); f != 0.33 {
		t.Errorf("large: expected 0.33, got %g", f)
	}
}

func TestParseHexColor(t *testing.T) {
	cases := []struct {
		in   string
		want color.RGBA
		ok   bool
	}{
		{"#1a2b3c", color.RGBA{R: 0x1a, G: 0x2b, B: 0x3c, A: 0xff}, true},
		{"#fff", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, true},
		{"#10203080", color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0x80}, true},
		{" #abc ", color.RGBA{R: 0xaa, G: 0xbb, B: 0xcc, A: 0xff}, true},
		{"1a2b3c", color.RGBA{R: 0x1a, G: 0x2b, B: 0x3c, A: 0xff}, true},
		{"", color.RGBA{}, false},
		{"#12345", color.RGBA{}, false},
		{"#gghhii", color.RGBA{}, false},
	}
	for _, tc := range cases {
		got, err := ParseHexColor(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseHexColor(%q) failed: %v", tc.in, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("ParseHexColor(%q): expected error", tc.in)
			}
			continue
		}
		if got != tc.want {
			t.Errorf("ParseHexColor(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
