package compositor

import (
	"github.com/Carmen-Shannon/alphavid/engine/loader"
	"github.com/Carmen-Shannon/alphavid/engine/renderer"
)

// CompositorBuilderOption is a functional option applied to a compositor during construction via NewCompositor.
type CompositorBuilderOption func(*compositor)

// WithDescriptor sets the layout descriptor. Without one the frame is split side by side.
//
// Parameters:
//   - desc: the validated descriptor
//
// Returns:
//   - CompositorBuilderOption: a function that applies the descriptor to a compositor
func WithDescriptor(desc *loader.SourceDescriptor) CompositorBuilderOption {
	return func(c *compositor) {
		c.desc = desc
	}
}

// WithRenderer replaces the renderer NewCompositor would create.
func WithRenderer(r renderer.Renderer) CompositorBuilderOption {
	return func(c *compositor) {
		c.r = r
	}
}

// WithDisplaySize sets the initial surface size. It defaults to the natural canvas size.
//
// Parameters:
//   - width, height: the surface size in pixels
//
// Returns:
//   - CompositorBuilderOption: a function that applies the size to a compositor
func WithDisplaySize(width, height int) CompositorBuilderOption {
	return func(c *compositor) {
		c.displayW, c.displayH = width, height
	}
}

// WithSession overrides the generated session id.
func WithSession(id string) CompositorBuilderOption {
	return func(c *compositor) {
		c.session = id
	}
}
