package loader

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine/quad"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/uniform"
	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// SupportedVersions is the descriptor schema range this loader understands.
const SupportedVersions = ">= 1.0.0, < 3.0.0"

var supportedConstraint = func() *semver.Constraints {
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		panic(err)
	}
	return c
}()

// EffectType is the kind of content an effect supplies.
type EffectType string

const (
	// EffectImage is an element backed by an image file.
	EffectImage EffectType = "image"
	// EffectText is an element whose image is rendered by the host and supplied at runtime.
	EffectText EffectType = "text"
)

// Frame is a pixel rectangle that decodes from either [x, y, w, h] or a {x, y, w, h} mapping.
type Frame common.Rect

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Frame) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var v []float32
		if err := value.Decode(&v); err != nil {
			return err
		}
		if len(v) != 4 {
			return fmt.Errorf("%w: frame needs 4 values, got %d (line %d)", common.ErrConfiguration, len(v), value.Line)
		}
		*f = Frame{X: v[0], Y: v[1], W: v[2], H: v[3]}
		return nil
	}
	var r common.Rect
	if err := value.Decode(&r); err != nil {
		return err
	}
	*f = Frame(r)
	return nil
}

// Rect returns the frame as a common.Rect.
func (f Frame) Rect() common.Rect {
	return common.Rect(f)
}

// Effect describes one element texture referenced by per-frame element lists.
type Effect struct {
	ID     string     `yaml:"id"`
	Type   EffectType `yaml:"type"`
	Tag    string     `yaml:"tag"`
	Width  int        `yaml:"width"`
	Height int        `yaml:"height"`
	// Image is the image path for EffectImage, resolved relative to the descriptor file.
	Image string `yaml:"image"`
}

// Element places an effect inside one frame.
type Element struct {
	EffectID    string `yaml:"effect"`
	RenderFrame Frame  `yaml:"render"`
	OutputFrame Frame  `yaml:"output"`
}

// FrameData lists the elements drawn on one frame index.
type FrameData struct {
	Index    int       `yaml:"index"`
	Elements []Element `yaml:"elements"`
}

// SourceDescriptor describes how a dual-stream source frame is laid out.
type SourceDescriptor struct {
	Version    string      `yaml:"version"`
	Width      int         `yaml:"width"`
	Height     int         `yaml:"height"`
	FPS        float64     `yaml:"fps"`
	RGBFrame   Frame       `yaml:"rgb"`
	AlphaFrame Frame       `yaml:"alpha"`
	Effects    []Effect    `yaml:"effects"`
	Frames     []FrameData `yaml:"frames"`

	// source is the file the descriptor was read from, empty for readers.
	source string
	// frameIndex maps frame index to its position in Frames.
	frameIndex map[int]int
}

// Layout returns the frame layout consumed by the geometry builder.
func (d *SourceDescriptor) Layout() *quad.Layout {
	if d == nil {
		return nil
	}
	return &quad.Layout{
		Width:  d.Width,
		Height: d.Height,
		RGB:    d.RGBFrame.Rect(),
		Alpha:  d.AlphaFrame.Rect(),
	}
}

// Source returns the path the descriptor was loaded from.
func (d *SourceDescriptor) Source() string {
	return d.source
}

// HasElements reports whether any frame carries multi-region elements.
func (d *SourceDescriptor) HasElements() bool {
	return d != nil && len(d.Frames) > 0
}

// Reference returns the resolution element rectangles are relative to.
func (d *SourceDescriptor) Reference() uniform.Reference {
	return uniform.Reference{
		Width:  float32(d.Width),
		Height: float32(d.Height),
		RGBX:   d.RGBFrame.X,
		RGBY:   d.RGBFrame.Y,
	}
}

// ElementsAt returns the elements placed on a frame index, or nil when the frame has none.
//
// Parameters:
//   - frame: the frame index
//
// Returns:
//   - []uniform.Element: the frame's elements
func (d *SourceDescriptor) ElementsAt(frame int) []uniform.Element {
	if d == nil {
		return nil
	}
	pos, ok := d.frameIndex[frame]
	if !ok {
		return nil
	}
	src := d.Frames[pos].Elements
	out := make([]uniform.Element, len(src))
	for i, e := range src {
		out[i] = uniform.Element{
			EffectID: e.EffectID,
			Render:   e.RenderFrame.Rect(),
			Output:   e.OutputFrame.Rect(),
		}
	}
	return out
}

// Effect returns the effect with the given id.
func (d *SourceDescriptor) Effect(id string) (Effect, bool) {
	for _, e := range d.Effects {
		if e.ID == id {
			return e, true
		}
	}
	return Effect{}, false
}

// Validate checks the descriptor and builds the frame lookup. Every failure wraps ErrConfiguration.
//
// Returns:
//   - error: the first problem found, or nil
func (d *SourceDescriptor) Validate() error {
	if d.Version == "" {
		d.Version = "1.0.0"
	}
	v, err := semver.NewVersion(d.Version)
	if err != nil {
		return fmt.Errorf("%w: descriptor version %q: %v", common.ErrConfiguration, d.Version, err)
	}
	if !supportedConstraint.Check(v) {
		return fmt.Errorf("%w: descriptor version %s outside %s", common.ErrConfiguration, v, SupportedVersions)
	}

	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: descriptor size %dx%d must be positive", common.ErrConfiguration, d.Width, d.Height)
	}
	if d.RGBFrame.Rect().Empty() {
		return fmt.Errorf("%w: rgb frame %+v is empty", common.ErrConfiguration, d.RGBFrame)
	}
	if d.AlphaFrame.Rect().Empty() {
		return fmt.Errorf("%w: alpha frame %+v is empty", common.ErrConfiguration, d.AlphaFrame)
	}
	if d.AlphaFrame.H > float32(d.Height) {
		return fmt.Errorf("%w: alpha frame height %v exceeds descriptor height %d", common.ErrConfiguration, d.AlphaFrame.H, d.Height)
	}

	effects := make(map[string]struct{}, len(d.Effects))
	for _, e := range d.Effects {
		if e.ID == "" {
			return fmt.Errorf("%w: effect without id", common.ErrConfiguration)
		}
		if _, dup := effects[e.ID]; dup {
			return fmt.Errorf("%w: duplicate effect id %q", common.ErrConfiguration, e.ID)
		}
		switch e.Type {
		case EffectImage, EffectText:
		case "":
			return fmt.Errorf("%w: effect %q has no type", common.ErrConfiguration, e.ID)
		default:
			return fmt.Errorf("%w: effect %q has unknown type %q", common.ErrConfiguration, e.ID, e.Type)
		}
		effects[e.ID] = struct{}{}
	}

	sort.SliceStable(d.Frames, func(i, j int) bool { return d.Frames[i].Index < d.Frames[j].Index })
	d.frameIndex = make(map[int]int, len(d.Frames))
	for i, f := range d.Frames {
		if f.Index < 0 {
			return fmt.Errorf("%w: negative frame index %d", common.ErrConfiguration, f.Index)
		}
		if _, dup := d.frameIndex[f.Index]; dup {
			return fmt.Errorf("%w: frame %d listed twice", common.ErrConfiguration, f.Index)
		}
		for _, e := range f.Elements {
			if _, ok := effects[e.EffectID]; !ok {
				return fmt.Errorf("%w: frame %d references unknown effect %q", common.ErrConfiguration, f.Index, e.EffectID)
			}
		}
		d.frameIndex[f.Index] = i
	}
	return nil
}
