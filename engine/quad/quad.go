// Package quad builds the full-screen two-triangle quad whose vertices carry the clip-space
// position together with the RGB-region and alpha-region texture coordinates.
package quad

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/Carmen-Shannon/alphavid/common"
)

const (
	// VertexCount is the number of vertices in a quad: two triangles, no index buffer.
	VertexCount = 6

	// FloatsPerVertex is the number of float32 values per vertex.
	FloatsPerVertex = 6

	// VertexStride is the byte stride of one vertex.
	VertexStride = FloatsPerVertex * 4

	// ByteSize is the size of the encoded quad in bytes.
	ByteSize = VertexCount * VertexStride
)

// Attribute byte offsets inside a vertex.
const (
	PositionOffset = 0
	RGBOffset      = 8
	AlphaOffset    = 16
)

// AlphaSide names the half of the decoded frame that holds the alpha mask when no descriptor is present.
type AlphaSide int

const (
	// AlphaRight places the alpha mask in the right half. This is the default.
	AlphaRight AlphaSide = iota

	// AlphaLeft places the alpha mask in the left half.
	AlphaLeft
)

func (s AlphaSide) String() string {
	if s == AlphaLeft {
		return "left"
	}
	return "right"
}

// ParseAlphaSide parses "left" or "right". An empty string means right.
func ParseAlphaSide(s string) (AlphaSide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "right":
		return AlphaRight, nil
	case "left":
		return AlphaLeft, nil
	}
	return AlphaRight, fmt.Errorf("%w: unknown alpha side %q", common.ErrConfiguration, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s AlphaSide) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AlphaSide) UnmarshalText(text []byte) error {
	parsed, err := ParseAlphaSide(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Layout is the explicit frame layout supplied by a source descriptor.
type Layout struct {
	Width, Height int
	RGB, Alpha    common.Rect
}

// Regions are the resolved RGB and alpha rectangles and the reference size they are relative to.
type Regions struct {
	RGB, Alpha common.Rect
	RefW, RefH float32
}

// Vertex is clip x, clip y, rgb u, rgb v, alpha u, alpha v.
type Vertex [FloatsPerVertex]float32

// Quad is the six vertices of the two triangles covering clip space.
type Quad [VertexCount]Vertex

// ResolveRegions picks the RGB and alpha rectangles for a frame.
//
// With a layout the rectangles come from it, except that the alpha rectangle's y origin is
// replaced by layout height minus alpha height. Authored assets depend on that adjustment and
// it must stay as is. Without a layout the decoded frame is split in half horizontally and
// side selects the alpha half.
//
// Parameters:
//   - layout: the descriptor layout, or nil for the side-by-side fallback
//   - frameW, frameH: the decoded frame size in pixels
//   - side: the alpha half used by the fallback
//
// Returns:
//   - Regions: the resolved rectangles
//   - error: ErrConfiguration if the reference size is not positive
func ResolveRegions(layout *Layout, frameW, frameH int, side AlphaSide) (Regions, error) {
	if layout != nil {
		if layout.Width <= 0 || layout.Height <= 0 {
			return Regions{}, fmt.Errorf("%w: descriptor size %dx%d must be positive",
				common.ErrConfiguration, layout.Width, layout.Height)
		}
		alpha := layout.Alpha
		alpha.Y = float32(layout.Height) - alpha.H
		return Regions{
			RGB:   layout.RGB,
			Alpha: alpha,
			RefW:  float32(layout.Width),
			RefH:  float32(layout.Height),
		}, nil
	}

	if frameW <= 0 || frameH <= 0 {
		return Regions{}, fmt.Errorf("%w: frame size %dx%d must be positive, wait for metadata before drawing",
			common.ErrConfiguration, frameW, frameH)
	}
	w, h := float32(frameW), float32(frameH)
	left := common.Rect{X: 0, Y: 0, W: w / 2, H: h}
	right := common.Rect{X: w / 2, Y: 0, W: w / 2, H: h}

	r := Regions{RefW: w, RefH: h}
	if side == AlphaRight {
		r.RGB, r.Alpha = left, right
	} else {
		r.RGB, r.Alpha = right, left
	}
	return r, nil
}

// Build produces the quad for the given regions. Both rectangles go through common.MapCoord
// against the same reference size.
//
// Parameters:
//   - r: the resolved regions
//
// Returns:
//   - Quad: the six vertices
func Build(r Regions) Quad {
	rgb := common.MapCoord(r.RGB.X, r.RGB.Y, r.RGB.W, r.RGB.H, r.RefW, r.RefH)
	a := common.MapCoord(r.Alpha.X, r.Alpha.Y, r.Alpha.W, r.Alpha.H, r.RefW, r.RefH)

	return Quad{
		{1, 1, rgb.Right, rgb.Bottom, a.Right, a.Bottom},
		{1, -1, rgb.Right, rgb.Top, a.Right, a.Top},
		{-1, -1, rgb.Left, rgb.Top, a.Left, a.Top},
		{1, 1, rgb.Right, rgb.Bottom, a.Right, a.Bottom},
		{-1, -1, rgb.Left, rgb.Top, a.Left, a.Top},
		{-1, 1, rgb.Left, rgb.Bottom, a.Left, a.Bottom},
	}
}

// Bytes encodes the quad as little-endian float32 values ready for a vertex buffer upload.
func (q Quad) Bytes() []byte {
	b := make([]byte, 0, ByteSize)
	for _, v := range q {
		for _, f := range v {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
		}
	}
	return b
}

// Extent returns the RGB region's size relative to the reference size. The vertex stage scales
// canvas positions by it to place element output rectangles.
func (r Regions) Extent() [2]float32 {
	if r.RefW <= 0 || r.RefH <= 0 {
		return [2]float32{1, 1}
	}
	return [2]float32{r.RGB.W / r.RefW, r.RGB.H / r.RefH}
}
