// Package fit resolves how a source frame is scaled onto a differently shaped canvas and
// how the canvas itself is sized inside its container.
package fit

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/Carmen-Shannon/alphavid/common"
)

// Mode is the policy mapping the source aspect ratio onto the canvas.
type Mode int

const (
	// ModeNone leaves the quad unscaled.
	ModeNone Mode = iota

	// ModeAspectFill scales x by sourceAspect/canvasAspect.
	ModeAspectFill

	// ModeAspectFit scales y by canvasAspect/sourceAspect.
	ModeAspectFit

	// ModeStretchVertical behaves like ModeAspectFill.
	ModeStretchVertical

	// ModeStretchHorizontal behaves like ModeAspectFit.
	ModeStretchHorizontal

	// ModeCover fills the canvas, overflowing on one axis.
	ModeCover

	// ModeContain fits inside the canvas, letterboxing on one axis.
	ModeContain
)

var modeNames = map[Mode]string{
	ModeNone:              "none",
	ModeAspectFill:        "aspect-fill",
	ModeAspectFit:         "aspect-fit",
	ModeStretchVertical:   "stretch-vertical",
	ModeStretchHorizontal: "stretch-horizontal",
	ModeCover:             "cover",
	ModeContain:           "contain",
}

// modeAliases holds the short names used by existing player configs.
var modeAliases = map[string]Mode{
	"":           ModeNone,
	"vertical":   ModeStretchVertical,
	"horizontal": ModeStretchHorizontal,
	"fill":       ModeCover,
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a fit mode name. Matching is case-insensitive.
//
// Parameters:
//   - s: the mode name, e.g. "contain" or "aspect-fill"
//
// Returns:
//   - Mode: the parsed mode
//   - error: ErrConfiguration if the name is unknown
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m, ok := modeAliases[s]; ok {
		return m, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeNone, fmt.Errorf("%w: unknown fit mode %q", common.ErrConfiguration, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scale is the non-uniform clip-space scale applied to the quad in the vertex stage.
type Scale struct {
	X, Y float32
}

// Identity is the scale used when no fit mode is configured.
var Identity = Scale{X: 1, Y: 1}

// Bytes encodes the scale as the two little-endian float32 values of the scale uniform.
func (s Scale) Bytes() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(s.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(s.Y))
	return b
}

// Resolve computes the quad scale for a fit mode. It is a pure function of its inputs.
//
// Parameters:
//   - mode: the configured fit mode
//   - canvasAspect: canvas display width divided by height
//   - sourceAspect: source width divided by height
//
// Returns:
//   - Scale: the resolved scale, Identity for ModeNone
func Resolve(mode Mode, canvasAspect, sourceAspect float32) Scale {
	s := Identity
	switch mode {
	case ModeAspectFill, ModeStretchVertical:
		s.X = sourceAspect / canvasAspect
	case ModeAspectFit, ModeStretchHorizontal:
		s.Y = canvasAspect / sourceAspect
	case ModeContain:
		s.X = sourceAspect / canvasAspect
		if s.X > 1 {
			s.Y = 1 / s.X
			s.X = 1
		}
	case ModeCover:
		s.X = sourceAspect / canvasAspect
		if s.X < 1 {
			s.Y = 1 / s.X
			s.X = 1
		}
	}
	return s
}

// ResolveSize is Resolve on pixel sizes. It rejects non-positive dimensions.
//
// Parameters:
//   - mode: the configured fit mode
//   - canvasW, canvasH: canvas display size in pixels
//   - sourceW, sourceH: source size in pixels
//
// Returns:
//   - Scale: the resolved scale
//   - error: ErrConfiguration if any dimension is not positive
func ResolveSize(mode Mode, canvasW, canvasH, sourceW, sourceH float32) (Scale, error) {
	if canvasW <= 0 || canvasH <= 0 || sourceW <= 0 || sourceH <= 0 {
		return Identity, fmt.Errorf("%w: canvas %vx%v and source %vx%v must be positive",
			common.ErrConfiguration, canvasW, canvasH, sourceW, sourceH)
	}
	return Resolve(mode, canvasW/canvasH, sourceW/sourceH), nil
}
