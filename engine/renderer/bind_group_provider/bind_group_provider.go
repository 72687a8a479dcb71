package bind_group_provider

import (
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// The following fields are GPU allocated resources owned by the provider and released with it.
	// They are populated by the renderer backend, never by callers.

	// bindGroup is rebuilt whenever a resource changes, nil until the first Rebuild.
	bindGroup       *wgpu.BindGroup
	bindGroupLayout *wgpu.BindGroupLayout
	// buffers are keyed by binding index.
	buffers      map[int]*wgpu.Buffer
	textureViews map[int]*wgpu.TextureView
	samplers     map[int]*wgpu.Sampler

	// vertexBuffer holds the quad; it is not part of the bind group but shares its lifetime.
	vertexBuffer *wgpu.Buffer
	// stale is set when a resource changed after the bind group was built.
	stale bool
}

// BindGroupProvider tracks the resources of the single compositing bind group. The uniform
// buffer, sampler and region resources are set once; the frame texture view is replaced for every
// drawn frame, which marks the bind group stale until the backend rebuilds it.
//
// Usage pattern:
//  1. The backend creates the layout from the shader and stores it via SetBindGroupLayout()
//  2. It creates buffers and the sampler and stores them with SetBuffer()/SetSampler()
//  3. Each frame it calls ReplaceTextureView() with the imported frame's view
//  4. If Stale(), it creates a bind group from Entries() and stores it via SetBindGroup()
type BindGroupProvider interface {
	// Release releases every GPU resource held by this provider.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group, or nil before the first build.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the bind group layout, or nil before the pipeline is built.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the bind group layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the buffer stored at a binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// TextureView returns the texture view stored at a binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.TextureView: the texture view or nil
	TextureView(binding int) *wgpu.TextureView

	// Sampler returns the sampler stored at a binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler or nil
	Sampler(binding int) *wgpu.Sampler

	// VertexBuffer returns the quad vertex buffer, or nil.
	//
	// Returns:
	//   - *wgpu.Buffer: the vertex buffer or nil
	VertexBuffer() *wgpu.Buffer

	// SetBindGroup stores a freshly built bind group, releasing the previous one and clearing Stale.
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg *wgpu.BindGroup)

	// SetBindGroupLayout stores the bind group layout.
	//
	// Parameters:
	//   - bgl: the created bind group layout
	SetBindGroupLayout(bgl *wgpu.BindGroupLayout)

	// SetBuffer stores a buffer at a binding and marks the bind group stale.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the created buffer
	SetBuffer(binding int, buf *wgpu.Buffer)

	// SetSampler stores a sampler at a binding and marks the bind group stale.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler to store
	SetSampler(binding int, s *wgpu.Sampler)

	// ReplaceTextureView stores a texture view at a binding, releasing the view it replaces,
	// and marks the bind group stale.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view to store
	ReplaceTextureView(binding int, tv *wgpu.TextureView)

	// SetVertexBuffer stores the quad vertex buffer.
	//
	// Parameters:
	//   - buf: the created vertex buffer
	SetVertexBuffer(buf *wgpu.Buffer)

	// Stale reports whether a resource changed since the bind group was built.
	//
	// Returns:
	//   - bool: true if the bind group must be rebuilt before drawing
	Stale() bool

	// Entries returns the bind group entries for every stored resource, sorted by binding.
	//
	// Returns:
	//   - []wgpu.BindGroupEntry: the entries to create the bind group from
	Entries() []wgpu.BindGroupEntry

	// Missing returns the bindings a layout declares that have no stored resource.
	//
	// Parameters:
	//   - layout: the layout descriptor the bind group must satisfy
	//
	// Returns:
	//   - []uint32: the unbound binding indices in ascending order
	Missing(layout wgpu.BindGroupLayoutDescriptor) []uint32
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[int]*wgpu.Buffer),
		textureViews: make(map[int]*wgpu.TextureView),
		samplers:     make(map[int]*wgpu.Sampler),
		stale:        true,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) VertexBuffer() *wgpu.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) Stale() bool {
	return p.stale || p.bindGroup == nil
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	if p.bindGroup != nil && p.bindGroup != bg {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
	p.stale = false
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl *wgpu.BindGroupLayout) {
	p.bindGroupLayout = bgl
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers[binding] = buf
	p.stale = true
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler) {
	p.samplers[binding] = s
	p.stale = true
}

func (p *bindGroupProvider) ReplaceTextureView(binding int, tv *wgpu.TextureView) {
	if old := p.textureViews[binding]; old != nil && old != tv {
		old.Release()
	}
	p.textureViews[binding] = tv
	p.stale = true
}

func (p *bindGroupProvider) SetVertexBuffer(buf *wgpu.Buffer) {
	p.vertexBuffer = buf
}

func (p *bindGroupProvider) Entries() []wgpu.BindGroupEntry {
	entries := make([]wgpu.BindGroupEntry, 0, len(p.buffers)+len(p.samplers)+len(p.textureViews))
	for b, buf := range p.buffers {
		if buf != nil {
			entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(b), Buffer: buf, Size: wgpu.WholeSize})
		}
	}
	for b, s := range p.samplers {
		if s != nil {
			entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(b), Sampler: s})
		}
	}
	for b, tv := range p.textureViews {
		if tv != nil {
			entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(b), TextureView: tv})
		}
	}
	slices.SortFunc(entries, func(a, b wgpu.BindGroupEntry) int {
		return int(a.Binding) - int(b.Binding)
	})
	return entries
}

func (p *bindGroupProvider) Missing(layout wgpu.BindGroupLayoutDescriptor) []uint32 {
	bound := make(map[uint32]struct{})
	for _, e := range p.Entries() {
		bound[e.Binding] = struct{}{}
	}
	var missing []uint32
	for _, e := range layout.Entries {
		if _, ok := bound[e.Binding]; !ok {
			missing = append(missing, e.Binding)
		}
	}
	slices.Sort(missing)
	return missing
}

func (p *bindGroupProvider) Release() {
	for i, tv := range p.textureViews {
		if tv != nil {
			tv.Release()
		}
		delete(p.textureViews, i)
	}
	for i, s := range p.samplers {
		if s != nil {
			s.Release()
		}
		delete(p.samplers, i)
	}
	for i, buf := range p.buffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.buffers, i)
	}

	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
	if p.vertexBuffer != nil {
		p.vertexBuffer.Release()
		p.vertexBuffer = nil
	}
	p.stale = true
}
