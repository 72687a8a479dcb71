// Package compositor drives one playback session: it turns a frame index into a presented,
// alpha-composited frame and rebuilds geometry and scale when the canvas or config changes.
package compositor

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine/config"
	"github.com/Carmen-Shannon/alphavid/engine/fit"
	"github.com/Carmen-Shannon/alphavid/engine/loader"
	"github.com/Carmen-Shannon/alphavid/engine/quad"
	"github.com/Carmen-Shannon/alphavid/engine/renderer"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/uniform"
	"github.com/google/uuid"
)

// NoFrame is the current frame before anything has been drawn.
const NoFrame = -1

// FrameSource supplies decoded frames by index.
type FrameSource interface {
	Frame(index int) (*image.RGBA, error)
	Size() (int, int)
}

// compositor is the implementation of the Compositor interface.
type compositor struct {
	session string
	log     *slog.Logger

	r      renderer.Renderer
	source FrameSource
	cfg    config.RenderConfig
	desc   *loader.SourceDescriptor

	currentFrame int
	frameW       int
	frameH       int
	displayW     int
	displayH     int

	regions quad.Regions
	scale   fit.Scale

	atlas        *ElementAtlas
	index        *uniform.TextureIndex
	regionBuf    []float32
	regionsDirty bool
}

// Compositor composites one dual-stream video onto a canvas.
//
// A Compositor is driven from a single goroutine. None of its methods are safe for concurrent use.
type Compositor interface {
	// Session returns the id that tags this session's log lines.
	//
	// Returns:
	//   - string: the session id
	Session() string

	// Initialize brings the renderer to the pipeline-built state and uploads the initial geometry,
	// scale and element layers.
	//
	// Parameters:
	//   - ctx: cancels device acquisition
	//
	// Returns:
	//   - error: ErrConfiguration when the source reports a zero size, or any renderer error
	Initialize(ctx context.Context) error

	// Draw presents a frame. Drawing the index that is already on screen does nothing.
	//
	// Parameters:
	//   - frameIndex: the non-negative frame index
	//
	// Returns:
	//   - error: ErrConfiguration for a negative index, ErrInvalidState before Initialize or after
	//     Destroy, or the source, upload or draw error
	Draw(frameIndex int) error

	// Resize reconfigures the surface and recomputes the scale for a new display size.
	// The next Draw redraws even when the frame index has not changed.
	//
	// Parameters:
	//   - displayW, displayH: the new surface size in pixels
	//
	// Returns:
	//   - error: ErrConfiguration for a non-positive size, ErrInvalidState when not initialized
	Resize(displayW, displayH int) error

	// Reconfigure applies a new config and descriptor. Everything is computed before anything is
	// written, so a failure leaves the previous config, descriptor, geometry and scale in place.
	//
	// Parameters:
	//   - cfg: the new config
	//   - desc: the new descriptor, or nil for the side-by-side split
	//
	// Returns:
	//   - error: ErrConfiguration for an invalid config, a regions toggle or unusable descriptor,
	//     ErrResourceExhausted when the effects do not fit, ErrInvalidState when not initialized
	Reconfigure(cfg config.RenderConfig, desc *loader.SourceDescriptor) error

	// SetElementImage replaces the layer of an effect, typically a text effect rendered by the host.
	//
	// Parameters:
	//   - id: the effect id
	//   - img: the new image, scaled to the layer size
	//
	// Returns:
	//   - error: ErrInvalidState without regions, ErrConfiguration for an unknown id
	SetElementImage(id string, img image.Image) error

	// CurrentFrame returns the last drawn frame index, or NoFrame.
	//
	// Returns:
	//   - int: the frame index
	CurrentFrame() int

	// Config returns the active config.
	//
	// Returns:
	//   - config.RenderConfig: the config
	Config() config.RenderConfig

	// Scale returns the active scale uniform.
	//
	// Returns:
	//   - fit.Scale: the scale
	Scale() fit.Scale

	// CanvasSize returns the natural canvas size: the RGB rectangle with a descriptor, half the
	// frame width otherwise.
	//
	// Returns:
	//   - int, int: the width and height
	CanvasSize() (int, int)

	// Destroy releases the renderer.
	//
	// Returns:
	//   - error: ErrInvalidState on a second call
	Destroy() error
}

var _ Compositor = &compositor{}

// NewCompositor creates a Compositor. The renderer is created from cfg unless WithRenderer is given.
//
// Parameters:
//   - surface: the canvas
//   - source: the frame source
//   - cfg: the render config
//   - opts: variadic list of CompositorBuilderOption functions
//
// Returns:
//   - Compositor: the compositor, not yet initialized
func NewCompositor(surface renderer.Surface, source FrameSource, cfg config.RenderConfig, opts ...CompositorBuilderOption) Compositor {
	if source == nil {
		panic("compositor: source must not be nil")
	}
	c := &compositor{
		session:      uuid.NewString(),
		source:       source,
		cfg:          cfg,
		currentFrame: NoFrame,
		scale:        fit.Identity,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = common.Logger().With("session", c.session)

	if c.r == nil {
		rOpts := []renderer.RendererBuilderOption{
			renderer.WithPresentMode(cfg.PresentMode),
			renderer.WithForceSoftwareRenderer(cfg.ForceSoftware),
			renderer.WithShaderValidation(cfg.ValidateShaders),
		}
		if cfg.Regions {
			rOpts = append(rOpts, renderer.WithRegions(cfg.ElementLayers, cfg.ElementSize))
		}
		c.r = renderer.NewRenderer(renderer.BackendTypeWGPU, surface, rOpts...)
	}
	return c
}

func (c *compositor) Session() string {
	return c.session
}

func (c *compositor) Initialize(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	c.frameW, c.frameH = c.source.Size()
	if c.frameW <= 0 || c.frameH <= 0 {
		return fmt.Errorf("%w: source size %dx%d, wait for metadata before initializing",
			common.ErrConfiguration, c.frameW, c.frameH)
	}
	regions, err := quad.ResolveRegions(c.desc.Layout(), c.frameW, c.frameH, c.cfg.AlphaSide)
	if err != nil {
		return err
	}

	if c.displayW <= 0 || c.displayH <= 0 {
		c.displayW, c.displayH = c.canvasSize(c.desc)
	}
	if err := c.r.Initialize(ctx, c.displayW, c.displayH); err != nil {
		return err
	}

	scale, err := c.resolveScale(c.cfg.FitMode, c.desc, c.displayW, c.displayH)
	if err != nil {
		return err
	}
	if err := c.writeGeometry(regions); err != nil {
		return err
	}
	if err := c.writeScale(scale); err != nil {
		return err
	}

	if c.r.RegionsEnabled() {
		c.atlas = NewElementAtlas(c.r.ElementSize(), c.r.ElementLayers(), c.cfg.Workers)
		c.regionBuf = make([]float32, uniform.PaddedLen(c.r.Limits().Uniform()))
		if err := c.loadEffects(c.desc); err != nil {
			return err
		}
	}

	c.log.Info("compositor initialized",
		"frame", fmt.Sprintf("%dx%d", c.frameW, c.frameH),
		"display", fmt.Sprintf("%dx%d", c.displayW, c.displayH),
		"fit", c.cfg.FitMode, "regions", c.r.RegionsEnabled())
	return nil
}

// loadEffects prepares and uploads the effects of desc and swaps in the new index.
func (c *compositor) loadEffects(desc *loader.SourceDescriptor) error {
	var effects []loader.Effect
	if desc != nil {
		effects = desc.Effects
	}
	images, err := c.atlas.Prepare(effects)
	if err != nil {
		return err
	}
	idx, err := c.atlas.Upload(c.r, images)
	if err != nil {
		return err
	}
	c.index = idx
	c.regionsDirty = true
	return nil
}

func (c *compositor) canvasSize(desc *loader.SourceDescriptor) (int, int) {
	var rgb *common.Rect
	if desc != nil {
		r := desc.RGBFrame.Rect()
		rgb = &r
	}
	return fit.CanvasSize(c.frameW, c.frameH, rgb)
}

func (c *compositor) resolveScale(mode fit.Mode, desc *loader.SourceDescriptor, displayW, displayH int) (fit.Scale, error) {
	canvasW, canvasH := c.canvasSize(desc)
	return fit.ResolveSize(mode, float32(displayW), float32(displayH), float32(canvasW), float32(canvasH))
}

func (c *compositor) writeGeometry(regions quad.Regions) error {
	if err := c.r.WriteGeometry(quad.Build(regions)); err != nil {
		return err
	}
	if err := c.r.WriteExtent(regions.Extent()); err != nil {
		return err
	}
	c.regions = regions
	return nil
}

func (c *compositor) writeScale(s fit.Scale) error {
	if err := c.r.WriteScale(s); err != nil {
		return err
	}
	c.scale = s
	return nil
}

func (c *compositor) Draw(frameIndex int) error {
	if frameIndex < 0 {
		return fmt.Errorf("%w: negative frame index %d", common.ErrConfiguration, frameIndex)
	}
	if s := c.r.State(); s != renderer.StatePipelineBuilt {
		return fmt.Errorf("%w: draw in state %s", common.ErrInvalidState, s)
	}
	if frameIndex == c.currentFrame {
		return nil
	}

	frame, err := c.source.Frame(frameIndex)
	if err != nil {
		return fmt.Errorf("frame %d: %w", frameIndex, err)
	}
	if err := c.followFrameSize(frame); err != nil {
		return err
	}
	if c.r.RegionsEnabled() {
		if err := c.writeRegions(frameIndex); err != nil {
			return err
		}
	}
	if err := c.r.Submit(frame); err != nil {
		return fmt.Errorf("frame %d: %w", frameIndex, err)
	}
	c.currentFrame = frameIndex
	c.log.Debug("frame drawn", "index", frameIndex)
	return nil
}

// followFrameSize rebuilds the split geometry when a source without a descriptor changes size.
func (c *compositor) followFrameSize(frame *image.RGBA) error {
	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()
	if w == c.frameW && h == c.frameH {
		return nil
	}
	if c.desc != nil {
		c.frameW, c.frameH = w, h
		return nil
	}
	regions, err := quad.ResolveRegions(nil, w, h, c.cfg.AlphaSide)
	if err != nil {
		return err
	}
	prevW, prevH := c.frameW, c.frameH
	c.frameW, c.frameH = w, h
	scale, err := c.resolveScale(c.cfg.FitMode, nil, c.displayW, c.displayH)
	if err != nil {
		c.frameW, c.frameH = prevW, prevH
		return err
	}
	if err := c.writeGeometry(regions); err != nil {
		c.frameW, c.frameH = prevW, prevH
		return err
	}
	c.log.Debug("frame size changed", "width", w, "height", h)
	return c.writeScale(scale)
}

func (c *compositor) writeRegions(frameIndex int) error {
	var elements []uniform.Element
	if c.desc != nil {
		elements = c.desc.ElementsAt(frameIndex)
	}
	if len(elements) == 0 && !c.regionsDirty {
		return nil
	}
	ref := uniform.Reference{Width: c.regions.RefW, Height: c.regions.RefH, RGBX: c.regions.RGB.X, RGBY: c.regions.RGB.Y}
	if err := uniform.BuildInto(c.regionBuf, elements, ref, c.index, c.r.Limits().Uniform()); err != nil {
		return fmt.Errorf("frame %d elements: %w", frameIndex, err)
	}
	if err := c.r.WriteRegions(c.regionBuf); err != nil {
		return err
	}
	// An empty upload clears the previous frame's elements; after that nothing needs writing.
	c.regionsDirty = len(elements) > 0
	return nil
}

func (c *compositor) Resize(displayW, displayH int) error {
	if displayW <= 0 || displayH <= 0 {
		return fmt.Errorf("%w: display size %dx%d must be positive", common.ErrConfiguration, displayW, displayH)
	}
	if s := c.r.State(); s != renderer.StatePipelineBuilt {
		return fmt.Errorf("%w: resize in state %s", common.ErrInvalidState, s)
	}
	scale, err := c.resolveScale(c.cfg.FitMode, c.desc, displayW, displayH)
	if err != nil {
		return err
	}
	if err := c.r.Resize(displayW, displayH); err != nil {
		return err
	}
	c.displayW, c.displayH = displayW, displayH
	if err := c.writeScale(scale); err != nil {
		return err
	}
	c.currentFrame = NoFrame
	c.log.Debug("display resized", "width", displayW, "height", displayH, "scale", scale)
	return nil
}

func (c *compositor) Reconfigure(cfg config.RenderConfig, desc *loader.SourceDescriptor) error {
	if s := c.r.State(); s != renderer.StatePipelineBuilt {
		return fmt.Errorf("%w: reconfigure in state %s", common.ErrInvalidState, s)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Regions != c.r.RegionsEnabled() {
		return fmt.Errorf("%w: toggling regions needs a new session", common.ErrConfiguration)
	}
	if desc != nil {
		if err := desc.Validate(); err != nil {
			return err
		}
	}

	regions, err := quad.ResolveRegions(desc.Layout(), c.frameW, c.frameH, cfg.AlphaSide)
	if err != nil {
		return err
	}
	scale, err := c.resolveScale(cfg.FitMode, desc, c.displayW, c.displayH)
	if err != nil {
		return err
	}
	var images []ElementImage
	if c.atlas != nil && desc != c.desc {
		var effects []loader.Effect
		if desc != nil {
			effects = desc.Effects
		}
		if images, err = c.atlas.Prepare(effects); err != nil {
			return err
		}
	}

	var idx *uniform.TextureIndex
	if images != nil {
		if idx, err = c.atlas.Upload(c.r, images); err != nil {
			return err
		}
	}
	prevRegions, prevScale := c.regions, c.scale
	if err := c.writeGeometry(regions); err != nil {
		c.restoreGeometry(prevRegions, prevScale)
		return err
	}
	if err := c.writeScale(scale); err != nil {
		c.restoreGeometry(prevRegions, prevScale)
		return err
	}
	if idx != nil {
		c.index = idx
		c.regionsDirty = true
	}

	c.cfg = cfg
	c.desc = desc
	c.currentFrame = NoFrame
	c.log.Info("compositor reconfigured", "fit", cfg.FitMode, "alpha_side", cfg.AlphaSide, "descriptor", desc != nil)
	return nil
}

// restoreGeometry puts the previous quad and scale back after a partially applied reconfigure.
func (c *compositor) restoreGeometry(regions quad.Regions, s fit.Scale) {
	if err := c.writeGeometry(regions); err != nil {
		c.log.Warn("geometry restore failed", "err", err)
	}
	if err := c.writeScale(s); err != nil {
		c.log.Warn("scale restore failed", "err", err)
	}
	c.regions, c.scale = regions, s
}

func (c *compositor) SetElementImage(id string, img image.Image) error {
	if c.atlas == nil || c.index == nil {
		return fmt.Errorf("%w: element images need regions", common.ErrInvalidState)
	}
	layer, ok := c.index.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: unknown effect %q", common.ErrConfiguration, id)
	}
	if err := c.r.WriteElementLayer(layer, c.atlas.Scale(img)); err != nil {
		return err
	}
	c.currentFrame = NoFrame
	return nil
}

func (c *compositor) CurrentFrame() int {
	return c.currentFrame
}

func (c *compositor) Config() config.RenderConfig {
	return c.cfg
}

func (c *compositor) Scale() fit.Scale {
	return c.scale
}

func (c *compositor) CanvasSize() (int, int) {
	return c.canvasSize(c.desc)
}

func (c *compositor) Destroy() error {
	if err := c.r.Destroy(); err != nil {
		return err
	}
	c.currentFrame = NoFrame
	c.log.Info("compositor destroyed")
	return nil
}
