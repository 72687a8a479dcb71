package renderer

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine/fit"
	"github.com/Carmen-Shannon/alphavid/engine/quad"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/shader"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
)

// State is a step of the renderer lifecycle. Transitions only move forward, one step at a time.
type State int

const (
	StateUninitialized State = iota
	StateContextAcquired
	StateDeviceReady
	StatePipelineBuilt
	StateDestroyed
)

var stateNames = [...]string{"uninitialized", "context-acquired", "device-ready", "pipeline-built", "destroyed"}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Byte offsets inside the frame uniform buffer.
const (
	scaleOffset  = 0
	extentOffset = 8
	// UniformSize is the byte size of the frame uniform: scale then RGB extent, two vec2<f32>.
	UniformSize = 16
)

// Surface is the canvas the renderer presents into.
type Surface interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Close()
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	state   State
	surface Surface

	backendType RendererBackendType
	backend     RendererBackend
	pipeline    pipeline.Pipeline

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	validateShaders      bool
	regions              bool
	elementLayers        int
	elementSize          int
	pipelineOptions      []pipeline.PipelineBuilderOption
}

// Renderer drives the GPU side of compositing through a fixed lifecycle:
// uninitialized, context acquired, device ready, pipeline built, destroyed.
//
// Every method checks the current state first and returns common.ErrInvalidState when called
// out of order. GPU resources are only ever created by the lifecycle transitions.
type Renderer interface {
	// State returns the current lifecycle state.
	//
	// Returns:
	//   - State: the current state
	State() State

	// Initialize walks the remaining transitions up to StatePipelineBuilt: acquire the context,
	// request the device, then build the pipeline. After a failure the state stays at the last
	// completed step and a later Initialize resumes from there.
	//
	// Parameters:
	//   - ctx: cancels initialization between steps and while waiting for the device
	//   - width, height: the initial surface size in pixels
	//
	// Returns:
	//   - error: ErrCapabilityUnsupported when no adapter or device is available, ErrConfiguration
	//     for bad sizes or an invalid shader, ErrResourceExhausted when the element array does not
	//     fit the device, ErrInvalidState when already built or destroyed
	Initialize(ctx context.Context, width, height int) error

	// WriteGeometry uploads the quad.
	//
	// Parameters:
	//   - q: the quad to upload
	//
	// Returns:
	//   - error: ErrInvalidState unless the pipeline is built
	WriteGeometry(q quad.Quad) error

	// WriteExtent uploads the RGB region's size relative to the reference size.
	//
	// Parameters:
	//   - extent: the relative width and height
	//
	// Returns:
	//   - error: ErrInvalidState unless the pipeline is built
	WriteExtent(extent [2]float32) error

	// WriteScale uploads the scale uniform.
	//
	// Parameters:
	//   - s: the resolved scale
	//
	// Returns:
	//   - error: ErrInvalidState unless the pipeline is built
	WriteScale(s fit.Scale) error

	// WriteRegions uploads the padded element array.
	//
	// Parameters:
	//   - data: the array built by uniform.Build for this device's limits
	//
	// Returns:
	//   - error: ErrInvalidState unless built with regions, ErrConfiguration for a wrongly sized array
	WriteRegions(data []float32) error

	// WriteElementLayer uploads an element image into one layer of the element texture array.
	//
	// Parameters:
	//   - layer: the texture index assigned to the element
	//   - img: the image, already scaled to ElementSize
	//
	// Returns:
	//   - error: ErrInvalidState unless built with regions, ErrConfiguration for a bad layer or size
	WriteElementLayer(layer int, img *image.RGBA) error

	// Submit imports a frame into the frame texture and draws it: clear to opaque black, bind,
	// draw six vertices, submit and present.
	//
	// Parameters:
	//   - frame: the decoded frame
	//
	// Returns:
	//   - error: ErrInvalidState unless the pipeline is built, ErrConfiguration for an empty frame,
	//     or the backend's import or draw error
	Submit(frame *image.RGBA) error

	// Resize reconfigures the surface.
	//
	// Parameters:
	//   - width, height: the new surface size in pixels
	//
	// Returns:
	//   - error: ErrInvalidState unless the pipeline is built, ErrConfiguration for a non-positive size
	Resize(width, height int) error

	// Limits returns the device limits.
	//
	// Returns:
	//   - Limits: the device limits, zero before StateDeviceReady
	Limits() Limits

	// RegionsEnabled reports whether the pipeline carries the multi-region bindings.
	//
	// Returns:
	//   - bool: true when built with WithRegions
	RegionsEnabled() bool

	// ElementSize returns the edge length of each element texture layer in pixels.
	//
	// Returns:
	//   - int: the layer size, zero when regions are disabled
	ElementSize() int

	// ElementLayers returns the number of element texture layers.
	//
	// Returns:
	//   - int: the layer count, zero when regions are disabled
	ElementLayers() int

	// Destroy releases every GPU resource and closes the canvas.
	//
	// Returns:
	//   - error: ErrInvalidState on a second call
	Destroy() error
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer in StateUninitialized. No GPU work happens until Initialize.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., BackendTypeWGPU)
//   - surface: the canvas to present into, typically a window.Window
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, surface Surface, options ...RendererBuilderOption) Renderer {
	if surface == nil {
		panic("renderer: surface must not be nil")
	}
	r := &renderer{
		mu:          &sync.Mutex{},
		state:       StateUninitialized,
		surface:     surface,
		backendType: backendType,
		presentMode: PresentModeVSync,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend is created.
	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		switch backendType {
		case BackendTypeWGPU:
			fallthrough
		default:
			r.backend = newWGPURendererBackend(r.forceFallbackAdapter, r.presentMode)
		}
	}
	return r
}

func (r *renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *renderer) Initialize(ctx context.Context, width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StatePipelineBuilt || r.state == StateDestroyed {
		return fmt.Errorf("%w: initialize in state %s", common.ErrInvalidState, r.state)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d must be positive", common.ErrConfiguration, width, height)
	}

	if r.state == StateUninitialized {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.backend.AcquireContext(r.surface.SurfaceDescriptor()); err != nil {
			return fmt.Errorf("%w: acquire context: %v", common.ErrCapabilityUnsupported, err)
		}
		r.state = StateContextAcquired
	}

	if r.state == StateContextAcquired {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.backend.RequestDevice(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: request device: %v", common.ErrCapabilityUnsupported, err)
		}
		r.state = StateDeviceReady
		common.Logger().Info("gpu device ready",
			"max_texture_2d", r.backend.Limits().MaxTextureDimension2D,
			"max_array_layers", r.backend.Limits().MaxTextureArrayLayers)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.buildPipeline(width, height); err != nil {
		return err
	}
	r.state = StatePipelineBuilt
	common.Logger().Info("pipeline built", "key", r.pipeline.PipelineKey(), "width", width, "height", height)
	return nil
}

// buildPipeline loads the shader variant and sizes the region resources against the device
// before asking the backend to create anything.
func (r *renderer) buildPipeline(width, height int) error {
	variant := shader.VariantComposite
	if r.regions {
		variant = shader.VariantRegions
	}
	s, err := shader.Load(variant)
	if err != nil {
		return err
	}
	if r.validateShaders {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	opts := BuildOptions{Width: width, Height: height}
	if r.regions {
		limits := r.backend.Limits()
		if err := uniform.CheckLimits(limits.Uniform()); err != nil {
			return err
		}
		if r.elementLayers <= 0 || r.elementSize <= 0 {
			return fmt.Errorf("%w: element array needs positive layers and size, got %d and %d",
				common.ErrConfiguration, r.elementLayers, r.elementSize)
		}
		if uint32(r.elementLayers) > limits.MaxTextureArrayLayers {
			return fmt.Errorf("%w: %d element layers exceed device limit %d",
				common.ErrResourceExhausted, r.elementLayers, limits.MaxTextureArrayLayers)
		}
		if uint32(r.elementSize) > limits.MaxTextureDimension2D {
			return fmt.Errorf("%w: element size %d exceeds device limit %d",
				common.ErrResourceExhausted, r.elementSize, limits.MaxTextureDimension2D)
		}
		opts.RegionBytes = uniform.ByteSize(limits.Uniform())
		opts.ElementLayers = uint32(r.elementLayers)
		opts.ElementSize = uint32(r.elementSize)
	}

	p := pipeline.NewPipeline(s.Key(), s, r.pipelineOptions...)
	if err := r.backend.BuildPipeline(p, opts); err != nil {
		return fmt.Errorf("build pipeline %s: %w", p.PipelineKey(), err)
	}
	r.pipeline = p
	return nil
}

// requireBuilt must be called with mu held.
func (r *renderer) requireBuilt(op string) error {
	if r.state != StatePipelineBuilt {
		return fmt.Errorf("%w: %s in state %s", common.ErrInvalidState, op, r.state)
	}
	return nil
}

func (r *renderer) WriteGeometry(q quad.Quad) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireBuilt("write geometry"); err != nil {
		return err
	}
	r.backend.WriteVertices(q.Bytes())
	return nil
}

func (r *renderer) WriteExtent(extent [2]float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireBuilt("write extent"); err != nil {
		return err
	}
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(extent[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(extent[1]))
	r.backend.WriteUniform(extentOffset, b)
	return nil
}

func (r *renderer) WriteScale(s fit.Scale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireBuilt("write scale"); err != nil {
		return err
	}
	r.backend.WriteUniform(scaleOffset, s.Bytes())
	return nil
}

func (r *renderer) WriteRegions(data []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireBuilt("write regions"); err != nil {
		return err
	}
	if !r.regions {
		return fmt.Errorf("%w: write regions without a region pipeline", common.ErrInvalidState)
	}
	if err := uniform.Validate(data, r.backend.Limits().Uniform()); err != nil {
		return err
	}
	return r.backend.WriteRegions(common.SliceToBytes(data))
}

func (r *renderer) WriteElementLayer(layer int, img *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireBuilt("write element layer"); err != nil {
		return err
	}
	if !r.regions {
		return fmt.Errorf("%w: write element layer without a region pipeline", common.ErrInvalidState)
	}
	if layer < 0 || layer >= r.elementLayers {
		return fmt.Errorf("%w: element layer %d outside [0, %d)", common.ErrConfiguration, layer, r.elementLayers)
	}
	if img == nil || img.Bounds().Dx() != r.elementSize || img.Bounds().Dy() != r.elementSize {
		return fmt.Errorf("%w: element image must be %dx%d", common.ErrConfiguration, r.elementSize, r.elementSize)
	}
	return r.backend.WriteElementLayer(common.StagingFromRGBA(img, uint32(layer)))
}

func (r *renderer) Submit(frame *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireBuilt("submit"); err != nil {
		return err
	}
	if frame == nil || frame.Bounds().Empty() {
		return fmt.Errorf("%w: empty frame", common.ErrConfiguration)
	}
	if err := r.backend.ImportFrame(common.StagingFromRGBA(frame, 0)); err != nil {
		return fmt.Errorf("import frame: %w", err)
	}
	if err := r.backend.DrawQuad(r.pipeline); err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	return nil
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireBuilt("resize"); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d must be positive", common.ErrConfiguration, width, height)
	}
	return r.backend.ConfigureSurface(width, height)
}

func (r *renderer) Limits() Limits {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state < StateDeviceReady || r.state == StateDestroyed {
		return Limits{}
	}
	return r.backend.Limits()
}

func (r *renderer) RegionsEnabled() bool {
	return r.regions
}

func (r *renderer) ElementSize() int {
	if !r.regions {
		return 0
	}
	return r.elementSize
}

func (r *renderer) ElementLayers() int {
	if !r.regions {
		return 0
	}
	return r.elementLayers
}

func (r *renderer) Destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateDestroyed {
		return fmt.Errorf("%w: already destroyed", common.ErrInvalidState)
	}
	r.backend.Release()
	r.pipeline = nil
	r.state = StateDestroyed
	r.surface.Close()
	common.Logger().Info("renderer destroyed")
	return nil
}
