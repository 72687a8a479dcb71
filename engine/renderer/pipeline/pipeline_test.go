package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/alphavid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorDefaults(t *testing.T) {
	s, err := shader.Load(shader.VariantComposite)
	require.NoError(t, err)

	p := NewPipeline("composite", s)
	assert.Nil(t, p.Pipeline())
	assert.Equal(t, OpaqueBlack, p.ClearColor())

	d := p.Descriptor(nil, nil, wgpu.TextureFormatBGRA8Unorm)
	assert.Equal(t, "composite", d.Label)
	assert.Equal(t, "vertMain", d.Vertex.EntryPoint)
	require.Len(t, d.Vertex.Buffers, 1)
	assert.Equal(t, uint64(24), d.Vertex.Buffers[0].ArrayStride)

	require.NotNil(t, d.Fragment)
	assert.Equal(t, "fragMain", d.Fragment.EntryPoint)
	require.Len(t, d.Fragment.Targets, 1)
	target := d.Fragment.Targets[0]
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm, target.Format)
	require.NotNil(t, target.Blend)
	assert.Equal(t, wgpu.BlendFactorOne, target.Blend.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, target.Blend.Color.DstFactor)
	assert.Equal(t, wgpu.ColorWriteMaskAll, target.WriteMask)

	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, d.Primitive.Topology)
	assert.Equal(t, uint32(1), d.Multisample.Count)
}

func TestOptions(t *testing.T) {
	s, err := shader.Load(shader.VariantComposite)
	require.NoError(t, err)

	white := wgpu.Color{R: 1, G: 1, B: 1, A: 1}
	p := NewPipeline("opaque", s,
		WithBlendEnabled(false),
		WithCullMode(wgpu.CullModeBack),
		WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
		WithWriteMask(wgpu.ColorWriteMaskRed),
		WithClearColor(white),
	)
	assert.Nil(t, p.BlendState())
	assert.Nil(t, p.Descriptor(nil, nil, wgpu.TextureFormatRGBA8Unorm).Fragment.Targets[0].Blend)
	assert.Equal(t, wgpu.CullModeBack, p.CullMode())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleStrip, p.Topology())
	assert.Equal(t, wgpu.ColorWriteMaskRed, p.WriteMask())
	assert.Equal(t, white, p.ClearColor())

	custom := &wgpu.BlendState{}
	p = NewPipeline("custom", s, WithBlendState(custom))
	assert.Same(t, custom, p.BlendState())
}

func TestDefaultBlendIsCopied(t *testing.T) {
	s, err := shader.Load(shader.VariantComposite)
	require.NoError(t, err)

	p := NewPipeline("a", s)
	p.BlendState().Color.SrcFactor = wgpu.BlendFactorZero
	assert.Equal(t, wgpu.BlendFactorOne, PremultipliedBlend.Color.SrcFactor)
}
