package uniform

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bigLimits = Limits{MaxTextureDimension2D: 8192, MaxBufferBindingSize: 1 << 30}

func TestBuildPadsToDeviceCapacity(t *testing.T) {
	idx := NewTextureIndex(16)
	_, err := idx.Assign("avatar")
	require.NoError(t, err)

	elements := []Element{{
		EffectID: "avatar",
		Render:   common.Rect{X: 10, Y: 20, W: 100, H: 100},
		Output:   common.Rect{X: 300, Y: 400, W: 200, H: 200},
	}}
	out, err := Build(elements, Reference{Width: 1000, Height: 1000}, idx, bigLimits)
	require.NoError(t, err)

	require.Len(t, out, (8192-1)*ElementStride)
	assert.Equal(t, 73719, len(out))
	for i, v := range out[ElementStride:] {
		if v != 0 {
			t.Fatalf("slot value %d beyond the encoded element is %v", i+ElementStride, v)
		}
	}
}

func TestBuildEncodesElement(t *testing.T) {
	idx := NewTextureIndex(4)
	_, _ = idx.Assign("first")
	_, _ = idx.Assign("second")

	elements := []Element{{
		EffectID: "second",
		Render:   common.Rect{X: 0, Y: 0, W: 50, H: 50},
		Output:   common.Rect{X: 0, Y: 50, W: 100, H: 50},
	}}
	limits := Limits{MaxTextureDimension2D: 3}
	ref := Reference{Width: 200, Height: 100, RGBX: 100, RGBY: 0}

	out, err := Build(elements, ref, idx, limits)
	require.NoError(t, err)
	require.Len(t, out, 2*ElementStride)

	assert.Equal(t, float32(1), out[0])
	// render rect offset by the RGB origin
	assert.Equal(t, []float32{0.5, 0.75, 0.5, 1}, out[1:5])
	assert.Equal(t, []float32{0, 0.5, 0, 0.5}, out[5:9])
	assert.Equal(t, make([]float32, ElementStride), out[ElementStride:])
}

func TestBuildIntoRejectsWrongDestination(t *testing.T) {
	limits := Limits{MaxTextureDimension2D: 4}
	ref := Reference{Width: 10, Height: 10}
	for _, n := range []int{PaddedLen(limits) - 1, PaddedLen(limits) + 1, 0} {
		err := BuildInto(make([]float32, n), nil, ref, NewTextureIndex(1), limits)
		assert.True(t, errors.Is(err, common.ErrConfiguration), "len %d", n)
	}
	assert.NoError(t, BuildInto(make([]float32, PaddedLen(limits)), nil, ref, NewTextureIndex(1), limits))
}

func TestBuildRejectsBeforeAllocation(t *testing.T) {
	_, err := Build(nil, Reference{Width: 1, Height: 1}, nil, Limits{MaxTextureDimension2D: 8192, MaxBufferBindingSize: 65536})
	assert.True(t, errors.Is(err, common.ErrResourceExhausted))

	_, err = Build(nil, Reference{Width: 1, Height: 1}, nil, Limits{MaxTextureDimension2D: 1})
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestBuildRejectsTooManyElements(t *testing.T) {
	idx := NewTextureIndex(1)
	_, _ = idx.Assign("a")
	elements := []Element{{EffectID: "a"}, {EffectID: "a"}, {EffectID: "a"}}
	_, err := Build(elements, Reference{Width: 1, Height: 1}, idx, Limits{MaxTextureDimension2D: 3})
	assert.True(t, errors.Is(err, common.ErrResourceExhausted))
}

func TestBuildRejectsUnknownEffect(t *testing.T) {
	_, err := Build([]Element{{EffectID: "ghost"}}, Reference{Width: 1, Height: 1}, NewTextureIndex(1), Limits{MaxTextureDimension2D: 3})
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestBuildRejectsBadReference(t *testing.T) {
	_, err := Build(nil, Reference{Width: 0, Height: 1}, nil, Limits{MaxTextureDimension2D: 3})
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestValidate(t *testing.T) {
	limits := Limits{MaxTextureDimension2D: 4}
	assert.NoError(t, Validate(make([]float32, 27), limits))
	assert.ErrorIs(t, Validate(make([]float32, 26), limits), common.ErrConfiguration)
	assert.ErrorIs(t, Validate(make([]float32, 28), limits), common.ErrConfiguration)
}
