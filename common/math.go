package common

import (
	"fmt"
	"unsafe"
)

// Rect is a pixel-space rectangle with a top-left origin.
type Rect struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
	W float32 `yaml:"w" json:"w"`
	H float32 `yaml:"h" json:"h"`
}

// TexCoord is a rectangle in normalized texture space with a bottom-left origin.
type TexCoord struct {
	Left, Right, Bottom, Top float32
}

// MapCoord converts a pixel-space rectangle into normalized texture coordinates relative to a
// reference resolution. The vertical axis is flipped so a top-left pixel origin becomes a
// bottom-left texture origin. The reference size must be positive; MapCoord does not check it.
//
// Parameters:
//   - x, y: top-left corner of the rectangle in pixels
//   - w, h: width and height of the rectangle in pixels
//   - refW, refH: reference width and height in pixels
//
// Returns:
//   - TexCoord: the mapped left, right, bottom and top coordinates
func MapCoord(x, y, w, h, refW, refH float32) TexCoord {
	return TexCoord{
		Left:   x / refW,
		Right:  (x + w) / refW,
		Bottom: (refH - y - h) / refH,
		Top:    (refH - y) / refH,
	}
}

// Map is the checked form of MapCoord. It rejects non-positive reference sizes with ErrConfiguration.
//
// Parameters:
//   - refW, refH: reference width and height in pixels
//
// Returns:
//   - TexCoord: the mapped coordinates
//   - error: ErrConfiguration if either reference dimension is not positive
func (r Rect) Map(refW, refH float32) (TexCoord, error) {
	if refW <= 0 || refH <= 0 {
		return TexCoord{}, fmt.Errorf("%w: reference size %vx%v must be positive", ErrConfiguration, refW, refH)
	}
	return MapCoord(r.X, r.Y, r.W, r.H, refW, refH), nil
}

// Offset returns the rectangle translated by dx, dy.
func (r Rect) Offset(dx, dy float32) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Array returns the coordinates in left, right, bottom, top order.
func (t TexCoord) Array() [4]float32 {
	return [4]float32{t.Left, t.Right, t.Bottom, t.Top}
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}
