package fit

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/alphavid/common"
)

// ResizePolicy controls how the canvas is sized inside its container.
type ResizePolicy int

const (
	// ResizeNone keeps the canvas at its natural size.
	ResizeNone ResizePolicy = iota

	// ResizePercent fits the canvas inside the container, keeping the aspect ratio.
	ResizePercent

	// ResizePercentWidth matches the container width and derives the height.
	ResizePercentWidth

	// ResizePercentHeight matches the container height and derives the width.
	ResizePercentHeight
)

var policyNames = map[ResizePolicy]string{
	ResizeNone:          "none",
	ResizePercent:       "percent",
	ResizePercentWidth:  "percent-width",
	ResizePercentHeight: "percent-height",
}

func (p ResizePolicy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("ResizePolicy(%d)", int(p))
}

// ParseResizePolicy parses a policy name. "percentW" and "percentH" are accepted as aliases.
//
// Parameters:
//   - s: the policy name
//
// Returns:
//   - ResizePolicy: the parsed policy
//   - error: ErrConfiguration if the name is unknown
func ParseResizePolicy(s string) (ResizePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ResizeNone, nil
	case "percent":
		return ResizePercent, nil
	case "percent-width", "percentw":
		return ResizePercentWidth, nil
	case "percent-height", "percenth":
		return ResizePercentHeight, nil
	}
	return ResizeNone, fmt.Errorf("%w: unknown resize policy %q", common.ErrConfiguration, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p ResizePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ResizePolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseResizePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// CanvasSize returns the natural canvas size for a source. Without a descriptor the frame
// holds RGB and alpha side by side, so the canvas is half the frame width.
//
// Parameters:
//   - frameW, frameH: decoded frame size in pixels
//   - rgb: the descriptor RGB rectangle, or nil when no descriptor is present
//
// Returns:
//   - int, int: the canvas width and height
func CanvasSize(frameW, frameH int, rgb *common.Rect) (int, int) {
	if rgb != nil {
		return int(rgb.W), int(rgb.H)
	}
	return frameW / 2, frameH
}

// DisplaySize applies a resize policy to a canvas of the given natural size inside a container.
//
// Parameters:
//   - policy: the resize policy
//   - canvasW, canvasH: the natural canvas size
//   - containerW, containerH: the container size
//
// Returns:
//   - int, int: the display width and height
func DisplaySize(policy ResizePolicy, canvasW, canvasH, containerW, containerH int) (int, int) {
	if canvasW <= 0 || canvasH <= 0 || containerW <= 0 || containerH <= 0 {
		return canvasW, canvasH
	}
	aspect := float64(canvasW) / float64(canvasH)
	switch policy {
	case ResizePercent:
		if float64(containerW)/float64(containerH) > aspect {
			return int(float64(containerH) * aspect), containerH
		}
		return containerW, int(float64(containerW) / aspect)
	case ResizePercentWidth:
		return containerW, int(float64(containerW) / aspect)
	case ResizePercentHeight:
		return int(float64(containerH) * aspect), containerH
	default:
		return canvasW, canvasH
	}
}
