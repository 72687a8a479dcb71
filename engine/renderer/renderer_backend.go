package renderer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

var presentModeNames = map[PresentMode]string{
	PresentModeVSync:    "vsync",
	PresentModeUncapped: "uncapped",
}

// String returns the config name of the present mode.
func (m PresentMode) String() string {
	if name, ok := presentModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("PresentMode(%d)", int(m))
}

// ParsePresentMode parses "vsync" or "uncapped", case-insensitively.
func ParsePresentMode(s string) (PresentMode, error) {
	for m, name := range presentModeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return PresentModeVSync, fmt.Errorf("%w: unknown present mode %q", common.ErrConfiguration, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m PresentMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *PresentMode) UnmarshalText(text []byte) error {
	parsed, err := ParsePresentMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Limits are the device limits the compositor sizes its resources against.
type Limits struct {
	MaxTextureDimension2D       uint32
	MaxTextureArrayLayers       uint32
	MaxStorageBufferBindingSize uint64
}

// Uniform converts the device limits into the limits bounding the element array.
func (l Limits) Uniform() uniform.Limits {
	return uniform.Limits{
		MaxTextureDimension2D: l.MaxTextureDimension2D,
		MaxBufferBindingSize:  l.MaxStorageBufferBindingSize,
	}
}

// BuildOptions size the resources created alongside the render pipeline.
type BuildOptions struct {
	// Width and Height are the initial surface size in pixels.
	Width, Height int
	// RegionBytes is the byte size of the element array buffer. Zero when regions are disabled.
	RegionBytes uint64
	// ElementLayers and ElementSize describe the element texture array. Zero when regions are disabled.
	ElementLayers uint32
	ElementSize   uint32
}

// RendererBackend is the GPU-facing half of the Renderer. The Renderer owns ordering and state;
// the backend only performs the device work for each step and owns every GPU object it creates.
type RendererBackend interface {
	// AcquireContext creates the API instance and the window surface.
	//
	// Parameters:
	//   - surface: the platform surface descriptor of the canvas
	//
	// Returns:
	//   - error: error if the instance or surface cannot be created
	AcquireContext(surface *wgpu.SurfaceDescriptor) error

	// RequestDevice selects an adapter compatible with the surface and opens a device on it.
	//
	// Parameters:
	//   - ctx: cancels the wait for the adapter and device
	//
	// Returns:
	//   - error: error if no adapter or device is available
	RequestDevice(ctx context.Context) error

	// Limits returns the limits of the opened device.
	//
	// Returns:
	//   - Limits: the device limits
	Limits() Limits

	// BuildPipeline configures the surface and creates the sampler, layouts, shader module,
	// render pipeline and the vertex, uniform and optional region resources.
	//
	// Parameters:
	//   - p: the pipeline description
	//   - opts: the resource sizes
	//
	// Returns:
	//   - error: error if any GPU object cannot be created
	BuildPipeline(p pipeline.Pipeline, opts BuildOptions) error

	// ConfigureSurface reconfigures the surface for a new size.
	//
	// Parameters:
	//   - width, height: the new surface size in pixels
	//
	// Returns:
	//   - error: error if the surface cannot be configured
	ConfigureSurface(width, height int) error

	// WriteVertices uploads the quad vertex data.
	//
	// Parameters:
	//   - data: the vertex bytes
	WriteVertices(data []byte)

	// WriteUniform uploads bytes into the frame uniform buffer.
	//
	// Parameters:
	//   - offset: the byte offset into the buffer
	//   - data: the bytes to write
	WriteUniform(offset uint64, data []byte)

	// WriteRegions uploads the padded element array.
	//
	// Parameters:
	//   - data: the element array bytes
	//
	// Returns:
	//   - error: error if no region buffer exists
	WriteRegions(data []byte) error

	// WriteElementLayer uploads one element image into the element texture array.
	//
	// Parameters:
	//   - staging: the pixels and destination layer
	//
	// Returns:
	//   - error: error if no element texture exists or the image does not match the layer size
	WriteElementLayer(staging common.TextureStagingData) error

	// ImportFrame uploads a decoded video frame into the frame texture, reallocating the texture
	// when the frame size changes, and refreshes the frame binding.
	//
	// Parameters:
	//   - staging: the frame pixels
	//
	// Returns:
	//   - error: error if the texture cannot be created or written
	ImportFrame(staging common.TextureStagingData) error

	// DrawQuad acquires the surface texture, clears it, draws the quad with the current bind group,
	// submits and presents.
	//
	// Parameters:
	//   - p: the built pipeline
	//
	// Returns:
	//   - error: error if the surface texture or command encoding fails
	DrawQuad(p pipeline.Pipeline) error

	// Release destroys every GPU object the backend holds. Safe to call at any stage.
	Release()
}
