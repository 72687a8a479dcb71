// Package uniform packs per-frame element placements into the flat float array consumed by
// the multi-region shader. Each element occupies ElementStride floats: the element's texture
// index, the mapped render rectangle and the mapped output rectangle.
package uniform

import (
	"fmt"

	"github.com/Carmen-Shannon/alphavid/common"
)

// ElementStride is the number of floats encoded per element.
const ElementStride = 9

// Element is one sprite-style placement inside a frame.
type Element struct {
	// EffectID is the stable texture identifier, resolved through a TextureIndex.
	EffectID string
	// Render is where the element's mask lives in the video frame, relative to the RGB region.
	Render common.Rect
	// Output is where the element is drawn, relative to the reference size.
	Output common.Rect
}

// Reference is the resolution and RGB-region origin the element rectangles are relative to.
type Reference struct {
	Width, Height float32
	RGBX, RGBY    float32
}

// Limits are the device limits that bound the element array.
type Limits struct {
	// MaxTextureDimension2D sets the slot count: MaxTextureDimension2D-1 elements.
	MaxTextureDimension2D uint32
	// MaxBufferBindingSize is the largest buffer binding the device accepts, in bytes. Zero disables the check.
	MaxBufferBindingSize uint64
}

// Slots returns the number of element slots the padded array holds.
func (l Limits) Slots() int {
	if l.MaxTextureDimension2D < 2 {
		return 0
	}
	return int(l.MaxTextureDimension2D - 1)
}

// PaddedLen returns the exact float count of the padded element array for the given limits.
func PaddedLen(limits Limits) int {
	return limits.Slots() * ElementStride
}

// ByteSize returns the byte size of the padded element array.
func ByteSize(limits Limits) uint64 {
	return uint64(PaddedLen(limits)) * 4
}

// CheckLimits verifies the padded array fits the device before any buffer is allocated.
//
// Parameters:
//   - limits: the device limits
//
// Returns:
//   - error: ErrConfiguration for a degenerate texture limit, ErrResourceExhausted when the array exceeds the binding size
func CheckLimits(limits Limits) error {
	if limits.Slots() == 0 {
		return fmt.Errorf("%w: max texture dimension %d leaves no element slots",
			common.ErrConfiguration, limits.MaxTextureDimension2D)
	}
	if limits.MaxBufferBindingSize > 0 && ByteSize(limits) > limits.MaxBufferBindingSize {
		return fmt.Errorf("%w: element array needs %d bytes, device allows %d",
			common.ErrResourceExhausted, ByteSize(limits), limits.MaxBufferBindingSize)
	}
	return nil
}

// Validate checks that dst is exactly the padded length for limits.
//
// Parameters:
//   - dst: the element array
//   - limits: the device limits
//
// Returns:
//   - error: ErrConfiguration for an oversized or undersized array
func Validate(dst []float32, limits Limits) error {
	if len(dst) != PaddedLen(limits) {
		return fmt.Errorf("%w: element array has %d floats, device capacity requires exactly %d",
			common.ErrConfiguration, len(dst), PaddedLen(limits))
	}
	return nil
}

// Build allocates the padded element array and fills it. See BuildInto.
//
// Parameters:
//   - elements: the frame's elements
//   - ref: the reference resolution
//   - idx: resolves effect ids to texture indices
//   - limits: the device limits
//
// Returns:
//   - []float32: the padded array
//   - error: any error returned by CheckLimits or BuildInto
func Build(elements []Element, ref Reference, idx *TextureIndex, limits Limits) ([]float32, error) {
	if err := CheckLimits(limits); err != nil {
		return nil, err
	}
	dst := make([]float32, PaddedLen(limits))
	if err := BuildInto(dst, elements, ref, idx, limits); err != nil {
		return nil, err
	}
	return dst, nil
}

// BuildInto encodes elements into dst and zeroes the remaining slots. dst must be exactly
// PaddedLen(limits) long; any other length is a configuration error.
//
// Parameters:
//   - dst: the destination array
//   - elements: the frame's elements
//   - ref: the reference resolution
//   - idx: resolves effect ids to texture indices
//   - limits: the device limits
//
// Returns:
//   - error: ErrConfiguration for a wrong destination size, bad reference or unknown effect id,
//     ErrResourceExhausted when there are more elements than slots
func BuildInto(dst []float32, elements []Element, ref Reference, idx *TextureIndex, limits Limits) error {
	if err := CheckLimits(limits); err != nil {
		return err
	}
	if err := Validate(dst, limits); err != nil {
		return err
	}
	if len(elements) > limits.Slots() {
		return fmt.Errorf("%w: %d elements exceed %d slots",
			common.ErrResourceExhausted, len(elements), limits.Slots())
	}
	if ref.Width <= 0 || ref.Height <= 0 {
		return fmt.Errorf("%w: reference size %vx%v must be positive", common.ErrConfiguration, ref.Width, ref.Height)
	}

	clear(dst)
	for i, e := range elements {
		texIndex, ok := idx.Lookup(e.EffectID)
		if !ok {
			return fmt.Errorf("%w: element %d references unknown effect %q", common.ErrConfiguration, i, e.EffectID)
		}
		render := common.MapCoord(e.Render.X+ref.RGBX, e.Render.Y+ref.RGBY, e.Render.W, e.Render.H, ref.Width, ref.Height).Array()
		output := common.MapCoord(e.Output.X, e.Output.Y, e.Output.W, e.Output.H, ref.Width, ref.Height).Array()

		slot := dst[i*ElementStride : (i+1)*ElementStride]
		slot[0] = float32(texIndex)
		copy(slot[1:5], render[:])
		copy(slot[5:9], output[:])
	}
	return nil
}
