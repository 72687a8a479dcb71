package renderer

import (
	"github.com/Carmen-Shannon/alphavid/engine/renderer/pipeline"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithShaderValidation compiles the WGSL source with naga before the pipeline is built so that
// shader errors surface as ErrConfiguration instead of a device error.
//
// Parameters:
//   - validate: true to validate
//
// Returns:
//   - RendererBuilderOption: a function that applies the validation option to a renderer
func WithShaderValidation(validate bool) RendererBuilderOption {
	return func(r *renderer) {
		r.validateShaders = validate
	}
}

// WithRegions selects the multi-region pipeline and sizes its element texture array.
//
// Parameters:
//   - layers: the number of element texture layers
//   - size: the edge length in pixels of every layer
//
// Returns:
//   - RendererBuilderOption: a function that enables regions on a renderer
func WithRegions(layers, size int) RendererBuilderOption {
	return func(r *renderer) {
		r.regions = true
		r.elementLayers = layers
		r.elementSize = size
	}
}

// WithBackend replaces the backend NewRenderer would create.
func WithBackend(backend RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = backend
	}
}

// WithPipelineOptions forwards options to the pipeline built during Initialize.
func WithPipelineOptions(options ...pipeline.PipelineBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.pipelineOptions = append(r.pipelineOptions, options...)
	}
}
