package pipeline

import (
	"github.com/Carmen-Shannon/alphavid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PremultipliedBlend composites premultiplied color over the destination: out = src + dst*(1-srcA).
var PremultipliedBlend = wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
}

// OpaqueBlack is the clear color of every frame.
var OpaqueBlack = wgpu.Color{R: 0, G: 0, B: 0, A: 1}

// pipeline is the implementation of the Pipeline interface.
// It holds the compositing render pipeline and the state it is created from.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used as the GPU object label
	pipelineKey string

	// shader provides the vertex and fragment entry points, vertex layouts and bind group layout
	shader shader.Shader

	renderPipeline *wgpu.RenderPipeline

	// The following properties configure the pipeline during creation and are set with the builder options.

	blendEnabled bool
	blendState   *wgpu.BlendState
	cullMode     wgpu.CullMode
	topology     wgpu.PrimitiveTopology
	frontFace    wgpu.FrontFace
	writeMask    wgpu.ColorWriteMask
	clearColor   wgpu.Color
}

// Pipeline defines the compositing render pipeline: a vertex + fragment shader pair, blend and
// primitive state, and the clear color of the pass that draws with it.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the shader module source the pipeline is built from.
	//
	// Returns:
	//   - shader.Shader: the pipeline's shader
	Shader() shader.Shader

	// Pipeline returns the GPU render pipeline, nil until SetRenderPipeline is called.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the render pipeline
	Pipeline() *wgpu.RenderPipeline

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// BlendState returns the blend state configured for this pipeline.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state, or nil if blending is not enabled
	BlendState() *wgpu.BlendState

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline
	Topology() wgpu.PrimitiveTopology

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask for this pipeline
	WriteMask() wgpu.ColorWriteMask

	// ClearColor returns the color the render pass clears to before drawing.
	//
	// Returns:
	//   - wgpu.Color: the clear color
	ClearColor() wgpu.Color

	// Descriptor assembles the render pipeline descriptor for a compiled shader module.
	//
	// Parameters:
	//   - layout: the pipeline layout holding the shader's bind group layout
	//   - module: the compiled shader module
	//   - format: the surface texture format the pipeline renders into
	//
	// Returns:
	//   - *wgpu.RenderPipelineDescriptor: the descriptor to create the render pipeline from
	Descriptor(layout *wgpu.PipelineLayout, module *wgpu.ShaderModule, format wgpu.TextureFormat) *wgpu.RenderPipelineDescriptor

	// SetRenderPipeline sets the render pipeline
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	SetRenderPipeline(p *wgpu.RenderPipeline)
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a render pipeline description for a shader. Blending defaults to
// PremultipliedBlend over a triangle list.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - s: the shader providing both entry points
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, s shader.Shader, opts ...PipelineBuilderOption) Pipeline {
	blend := PremultipliedBlend
	p := &pipeline{
		pipelineKey:  pipelineKey,
		shader:       s,
		blendEnabled: true,
		blendState:   &blend,
		cullMode:     wgpu.CullModeNone,
		topology:     wgpu.PrimitiveTopologyTriangleList,
		frontFace:    wgpu.FrontFaceCCW,
		writeMask:    wgpu.ColorWriteMaskAll,
		clearColor:   OpaqueBlack,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) Pipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	if !p.blendEnabled {
		return nil
	}
	return p.blendState
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) ClearColor() wgpu.Color {
	return p.clearColor
}

func (p *pipeline) Descriptor(layout *wgpu.PipelineLayout, module *wgpu.ShaderModule, format wgpu.TextureFormat) *wgpu.RenderPipelineDescriptor {
	return &wgpu.RenderPipelineDescriptor{
		Label:  p.pipelineKey,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: p.shader.VertexEntry(),
			Buffers:    p.shader.VertexLayout(0),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: p.shader.FragmentEntry(),
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					Blend:     p.BlendState(),
					WriteMask: p.writeMask,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.topology,
			FrontFace: p.frontFace,
			CullMode:  p.cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}
