// Package config provides the render configuration: the immutable
// per-export snapshot of every visual effect the compositor applies.
package config

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/screenshow/pkg/pipeline"
	"github.com/user/screenshow/pkg/ports"
)

// Rect is a rectangle in normalized [0,1] coordinates of the source frame.
type Rect struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

// ZoomRegion describes one timed zoom/pan segment.
type ZoomRegion struct {
	StartMs int     `yaml:"start_ms"`
	EndMs   int     `yaml:"end_ms"`
	FocusX  float64 `yaml:"focus_x"` // normalized focus point within the crop
	FocusY  float64 `yaml:"focus_y"`
	Scale   float64 `yaml:"scale"` // depth tier, >= 1.0
}

// BackgroundKind selects the background descriptor variant.
type BackgroundKind string

const (
	BackgroundColor    BackgroundKind = "color"
	BackgroundGradient BackgroundKind = "gradient"
	BackgroundImage    BackgroundKind = "image"
)

// Background describes the layer the frame is composited onto. It is
// pre-rendered once per export, not per frame.
type Background struct {
	Kind         BackgroundKind `yaml:"kind"`
	Color        string         `yaml:"color"`         // hex, e.g. "#1a1a2e"
	GradientFrom string         `yaml:"gradient_from"` // hex
	GradientTo   string         `yaml:"gradient_to"`   // hex
	ImagePath    string         `yaml:"image_path"`
}

// PiPCorner positions the picture-in-picture overlay.
type PiPCorner string

const (
	CornerTopLeft     PiPCorner = "top-left"
	CornerTopRight    PiPCorner = "top-right"
	CornerBottomLeft  PiPCorner = "bottom-left"
	CornerBottomRight PiPCorner = "bottom-right"
)

// PiPShape selects the overlay mask shape.
type PiPShape string

const (
	ShapeRectangle PiPShape = "rectangle"
	ShapeSquare    PiPShape = "square"
	ShapeCircle    PiPShape = "circle"
)

// PiPSize selects the overlay size tier as a fraction of output width.
type PiPSize string

const (
	SizeSmall  PiPSize = "small"
	SizeMedium PiPSize = "medium"
	SizeLarge  PiPSize = "large"
)

// PiP describes the picture-in-picture overlay track.
type PiP struct {
	Enabled      bool      `yaml:"enabled"`
	SourcePath   string    `yaml:"source_path"`
	Corner       PiPCorner `yaml:"corner"`
	Size         PiPSize   `yaml:"size"`
	Shape        PiPShape  `yaml:"shape"`
	CornerRadius float64   `yaml:"corner_radius"`
}

// RenderConfig is the immutable per-export effect snapshot. The
// orchestrator owns it and shares it read-only with every render worker
// at initialization; a new export re-sends a new configuration.
type RenderConfig struct {
	// Source video native dimensions. Filled from the source track when
	// left zero.
	SourceWidth  int `yaml:"source_width"`
	SourceHeight int `yaml:"source_height"`

	// Crop rectangle in normalized coordinates. Must lie within [0,1]².
	Crop Rect `yaml:"crop"`

	// Zoom regions, ordered by start time. Overlaps are allowed and blend
	// by strength.
	ZoomRegions []ZoomRegion `yaml:"zoom_regions"`

	Background Background `yaml:"background"`

	ShadowEnabled   bool    `yaml:"shadow"`
	ShadowIntensity float64 `yaml:"shadow_intensity"` // 0..1

	BlurEnabled bool `yaml:"blur"` // blurs the background layer only
	BlurRadius  int  `yaml:"blur_radius"`

	CornerRadius float64 `yaml:"corner_radius"` // at reference resolution
	Padding      float64 `yaml:"padding"`       // at reference resolution

	// Reference resolution the radius/padding values were authored at.
	// They scale proportionally to the actual output resolution.
	ReferenceWidth  int `yaml:"reference_width"`
	ReferenceHeight int `yaml:"reference_height"`

	PiP PiP `yaml:"pip"`
}

// Defaults returns a RenderConfig with default values.
func Defaults() RenderConfig {
	return RenderConfig{
		Crop: Rect{X: 0, Y: 0, W: 1, H: 1},
		Background: Background{
			Kind:  BackgroundColor,
			Color: "#1a1a2e",
		},
		ShadowEnabled:   true,
		ShadowIntensity: 0.6,
		BlurRadius:      14,
		CornerRadius:    12,
		Padding:         48,
		ReferenceWidth:  1920,
		ReferenceHeight: 1080,
		PiP: PiP{
			Corner:       CornerBottomRight,
			Size:         SizeSmall,
			Shape:        ShapeCircle,
			CornerRadius: 12,
		},
	}
}

// Load reads a render configuration from a YAML file, applying defaults
// for absent fields.
func Load(fs ports.FileSystem, path string) (RenderConfig, error) {
	cfg := Defaults()
	data, err := fs.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse config: %v", pipeline.ErrConfigInvalid, err)
	}
	return cfg, nil
}

// Validate checks every invariant the hot render loop relies on. It runs
// once at configuration-ingestion time, sorts zoom regions by start time,
// and fails fast so a bad configuration never starts any work.
func (c *RenderConfig) Validate() error {
	if c.Crop.W <= 0 || c.Crop.H <= 0 {
		return fmt.Errorf("%w: crop size %gx%g", pipeline.ErrConfigInvalid, c.Crop.W, c.Crop.H)
	}
	if c.Crop.X < 0 || c.Crop.Y < 0 || c.Crop.X+c.Crop.W > 1 || c.Crop.Y+c.Crop.H > 1 {
		return fmt.Errorf("%w: crop rectangle outside [0,1]", pipeline.ErrConfigInvalid)
	}

	sort.SliceStable(c.ZoomRegions, func(i, j int) bool {
		return c.ZoomRegions[i].StartMs < c.ZoomRegions[j].StartMs
	})
	for i, z := range c.ZoomRegions {
		if z.StartMs >= z.EndMs {
			return fmt.Errorf("%w: zoom region %d has start %dms >= end %dms", pipeline.ErrConfigInvalid, i, z.StartMs, z.EndMs)
		}
		if z.Scale < 1 {
			return fmt.Errorf("%w: zoom region %d scale %g < 1", pipeline.ErrConfigInvalid, i, z.Scale)
		}
		if z.FocusX < 0 || z.FocusX > 1 || z.FocusY < 0 || z.FocusY > 1 {
			return fmt.Errorf("%w: zoom region %d focus outside [0,1]", pipeline.ErrConfigInvalid, i)
		}
	}

	switch c.Background.Kind {
	case BackgroundColor:
		if _, err := ParseHexColor(c.Background.Color); err != nil {
			return fmt.Errorf("%w: background color: %v", pipeline.ErrConfigInvalid, err)
		}
	case BackgroundGradient:
		if _, err := ParseHexColor(c.Background.GradientFrom); err != nil {
			return fmt.Errorf("%w: gradient from: %v", pipeline.ErrConfigInvalid, err)
		}
		if _, err := ParseHexColor(c.Background.GradientTo); err != nil {
			return fmt.Errorf("%w: gradient to: %v", pipeline.ErrConfigInvalid, err)
		}
	case BackgroundImage:
		if c.Background.ImagePath == "" {
			return fmt.Errorf("%w: background image path empty", pipeline.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: background kind %q", pipeline.ErrConfigInvalid, c.Background.Kind)
	}

	if c.ShadowIntensity < 0 || c.ShadowIntensity > 1 {
		return fmt.Errorf("%w: shadow intensity %g", pipeline.ErrConfigInvalid, c.ShadowIntensity)
	}
	if c.CornerRadius < 0 || c.Padding < 0 || c.BlurRadius < 0 {
		return fmt.Errorf("%w: negative radius or padding", pipeline.ErrConfigInvalid)
	}
	if c.ReferenceWidth <= 0 || c.ReferenceHeight <= 0 {
		return fmt.Errorf("%w: reference resolution %dx%d", pipeline.ErrConfigInvalid, c.ReferenceWidth, c.ReferenceHeight)
	}

	if c.PiP.Enabled {
		if c.PiP.SourcePath == "" {
			return fmt.Errorf("%w: pip enabled without source path", pipeline.ErrConfigInvalid)
		}
		switch c.PiP.Corner {
		case CornerTopLeft, CornerTopRight, CornerBottomLeft, CornerBottomRight:
		default:
			return fmt.Errorf("%w: pip corner %q", pipeline.ErrConfigInvalid, c.PiP.Corner)
		}
		switch c.PiP.Size {
		case SizeSmall, SizeMedium, SizeLarge:
		default:
			return fmt.Errorf("%w: pip size %q", pipeline.ErrConfigInvalid, c.PiP.Size)
		}
		switch c.PiP.Shape {
		case ShapeRectangle, ShapeSquare, ShapeCircle:
		default:
			return fmt.Errorf("%w: pip shape %q", pipeline.ErrConfigInvalid, c.PiP.Shape)
		}
	}

	return nil
}

// SizeFraction returns the PiP width as a fraction of output width.
func (s PiPSize) SizeFraction() float64 {
	switch s {
	case SizeMedium:
		return 0.25
	case SizeLarge:
		return 0.33
	default:
		return 0.18
	}
}

// ParseHexColor parses "#rgb", "#rrggbb" or "#rrggbbaa" into a color.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6, 8:
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	c := color.RGBA{A: 0xff}
	if len(s) == 8 {
		c.A = uint8(v)
		v >>= 8
	}
	c.B = uint8(v)
	c.G = uint8(v >> 8)
	c.R = uint8(v >> 16)
	return c, nil
}
