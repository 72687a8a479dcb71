package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine/config"
	"github.com/Carmen-Shannon/alphavid/engine/fit"
	"github.com/Carmen-Shannon/alphavid/engine/loader"
	"github.com/Carmen-Shannon/alphavid/engine/quad"
	"github.com/Carmen-Shannon/alphavid/engine/renderer"
	"github.com/Carmen-Shannon/alphavid/engine/renderer/uniform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	state   renderer.State
	regions bool
	size    int
	layers  int
	limits  renderer.Limits
	initErr error

	geometry     []quad.Quad
	extents      [][2]float32
	scales       []fit.Scale
	regionWrites [][]float32
	layerWrites  map[int]*image.RGBA
	submits      []*image.RGBA
	resizes      [][2]int
	initSize     [2]int

	geometryErr error
	scaleErr    error
	layerErr    error
}

func newFakeRenderer(regions bool) *fakeRenderer {
	f := &fakeRenderer{
		regions:     regions,
		limits:      renderer.Limits{MaxTextureDimension2D: 8, MaxTextureArrayLayers: 4, MaxStorageBufferBindingSize: 1 << 16},
		layerWrites: map[int]*image.RGBA{},
	}
	if regions {
		f.size, f.layers = 4, 4
	}
	return f
}

func (f *fakeRenderer) built(op string) error {
	if f.state != renderer.StatePipelineBuilt {
		return fmt.Errorf("%w: %s", common.ErrInvalidState, op)
	}
	return nil
}

func (f *fakeRenderer) State() renderer.State { return f.state }

func (f *fakeRenderer) Initialize(_ context.Context, w, h int) error {
	if f.state == renderer.StatePipelineBuilt || f.state == renderer.StateDestroyed {
		return common.ErrInvalidState
	}
	if f.initErr != nil {
		return f.initErr
	}
	f.initSize = [2]int{w, h}
	f.state = renderer.StatePipelineBuilt
	return nil
}

func (f *fakeRenderer) WriteGeometry(q quad.Quad) error {
	if err := f.built("geometry"); err != nil {
		return err
	}
	if f.geometryErr != nil {
		return f.geometryErr
	}
	f.geometry = append(f.geometry, q)
	return nil
}

func (f *fakeRenderer) WriteExtent(e [2]float32) error {
	if err := f.built("extent"); err != nil {
		return err
	}
	f.extents = append(f.extents, e)
	return nil
}

func (f *fakeRenderer) WriteScale(s fit.Scale) error {
	if err := f.built("scale"); err != nil {
		return err
	}
	if f.scaleErr != nil {
		return f.scaleErr
	}
	f.scales = append(f.scales, s)
	return nil
}

func (f *fakeRenderer) WriteRegions(data []float32) error {
	if err := uniform.Validate(data, f.limits.Uniform()); err != nil {
		return err
	}
	f.regionWrites = append(f.regionWrites, append([]float32(nil), data...))
	return nil
}

func (f *fakeRenderer) WriteElementLayer(layer int, img *image.RGBA) error {
	if f.layerErr != nil {
		return f.layerErr
	}
	if img.Bounds().Dx() != f.size {
		return common.ErrConfiguration
	}
	f.layerWrites[layer] = img
	return nil
}

func (f *fakeRenderer) Submit(frame *image.RGBA) error {
	if err := f.built("submit"); err != nil {
		return err
	}
	f.submits = append(f.submits, frame)
	return nil
}

func (f *fakeRenderer) Resize(w, h int) error {
	if err := f.built("resize"); err != nil {
		return err
	}
	f.resizes = append(f.resizes, [2]int{w, h})
	return nil
}

func (f *fakeRenderer) Limits() renderer.Limits { return f.limits }
func (f *fakeRenderer) RegionsEnabled() bool    { return f.regions }
func (f *fakeRenderer) ElementSize() int        { return f.size }
func (f *fakeRenderer) ElementLayers() int      { return f.layers }

func (f *fakeRenderer) Destroy() error {
	if f.state == renderer.StateDestroyed {
		return common.ErrInvalidState
	}
	f.state = renderer.StateDestroyed
	return nil
}

type fakeSource struct {
	w, h   int
	count  int
	frames map[int]*image.RGBA
	reads  int
}

func (s *fakeSource) Size() (int, int) { return s.w, s.h }

func (s *fakeSource) Frame(i int) (*image.RGBA, error) {
	s.reads++
	if i >= s.count {
		return nil, errors.New("out of range")
	}
	if img, ok := s.frames[i]; ok {
		return img, nil
	}
	return image.NewRGBA(image.Rect(0, 0, s.w, s.h)), nil
}

func newSession(t *testing.T, cfg config.RenderConfig, fr *fakeRenderer, opts ...CompositorBuilderOption) (Compositor, *fakeSource) {
	t.Helper()
	src := &fakeSource{w: 200, h: 100, count: 10}
	c := NewCompositor(nil, src, cfg, append([]CompositorBuilderOption{WithRenderer(fr)}, opts...)...)
	return c, src
}

func testDescriptor() *loader.SourceDescriptor {
	d := &loader.SourceDescriptor{
		Width:      300,
		Height:     100,
		RGBFrame:   loader.Frame{X: 0, Y: 0, W: 150, H: 100},
		AlphaFrame: loader.Frame{X: 150, Y: 0, W: 150, H: 100},
		Effects:    []loader.Effect{{ID: "badge", Type: loader.EffectText}},
		Frames: []loader.FrameData{
			{Index: 2, Elements: []loader.Element{{
				EffectID:    "badge",
				RenderFrame: loader.Frame{X: 10, Y: 10, W: 20, H: 20},
				OutputFrame: loader.Frame{X: 40, Y: 40, W: 20, H: 20},
			}}},
		},
	}
	if err := d.Validate(); err != nil {
		panic(err)
	}
	return d
}

func TestDrawBeforeInitialize(t *testing.T) {
	fr := newFakeRenderer(false)
	c, src := newSession(t, config.Default(), fr)
	assert.ErrorIs(t, c.Draw(0), common.ErrInvalidState)
	assert.Zero(t, src.reads)
	assert.Empty(t, fr.submits)
}

func TestDrawAfterDestroy(t *testing.T) {
	fr := newFakeRenderer(false)
	c, _ := newSession(t, config.Default(), fr)
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Draw(0))
	require.NoError(t, c.Destroy())

	assert.ErrorIs(t, c.Draw(1), common.ErrInvalidState)
	assert.ErrorIs(t, c.Draw(0), common.ErrInvalidState)
	assert.ErrorIs(t, c.Destroy(), common.ErrInvalidState)
	assert.Len(t, fr.submits, 1)
}

func TestDrawSuppressesRepeatedFrame(t *testing.T) {
	fr := newFakeRenderer(false)
	c, src := newSession(t, config.Default(), fr)
	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, NoFrame, c.CurrentFrame())

	require.NoError(t, c.Draw(3))
	require.NoError(t, c.Draw(3))
	require.NoError(t, c.Draw(3))
	assert.Len(t, fr.submits, 1)
	assert.Equal(t, 1, src.reads)

	require.NoError(t, c.Draw(4))
	require.NoError(t, c.Draw(3))
	assert.Len(t, fr.submits, 3)
	assert.Equal(t, 3, c.CurrentFrame())
}

func TestDrawRejectsNegativeIndex(t *testing.T) {
	fr := newFakeRenderer(false)
	c, _ := newSession(t, config.Default(), fr)
	require.NoError(t, c.Initialize(context.Background()))
	assert.ErrorIs(t, c.Draw(-1), common.ErrConfiguration)
	assert.Empty(t, fr.submits)
}

func TestDrawSourceErrorKeepsFrame(t *testing.T) {
	fr := newFakeRenderer(false)
	c, _ := newSession(t, config.Default(), fr)
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Draw(1))
	require.Error(t, c.Draw(99))
	assert.Equal(t, 1, c.CurrentFrame())
}

func TestInitializeSplitGeometry(t *testing.T) {
	fr := newFakeRenderer(false)
	c, _ := newSession(t, config.Default(), fr)
	require.NoError(t, c.Initialize(context.Background()))

	w, h := c.CanvasSize()
	assert.Equal(t, [2]int{100, 100}, [2]int{w, h})
	assert.Equal(t, [2]int{100, 100}, fr.initSize)

	want, err := quad.ResolveRegions(nil, 200, 100, quad.AlphaRight)
	require.NoError(t, err)
	require.Len(t, fr.geometry, 1)
	assert.Equal(t, quad.Build(want), fr.geometry[0])
	assert.Equal(t, []fit.Scale{fit.Identity}, fr.scales)
}

func TestInitializeZeroSource(t *testing.T) {
	fr := newFakeRenderer(false)
	src := &fakeSource{}
	c := NewCompositor(nil, src, config.Default(), WithRenderer(fr))
	assert.ErrorIs(t, c.Initialize(context.Background()), common.ErrConfiguration)
	assert.Equal(t, renderer.StateUninitialized, fr.state)
}

func TestInitializeRendererError(t *testing.T) {
	fr := newFakeRenderer(false)
	fr.initErr = fmt.Errorf("%w: no adapter", common.ErrCapabilityUnsupported)
	c, _ := newSession(t, config.Default(), fr)
	assert.ErrorIs(t, c.Initialize(context.Background()), common.ErrCapabilityUnsupported)
}

func TestResizeRecomputesScale(t *testing.T) {
	fr := newFakeRenderer(false)
	cfg := config.Default()
	cfg.FitMode = fit.ModeContain
	c, _ := newSession(t, cfg, fr)
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Draw(0))

	require.NoError(t, c.Resize(200, 100))
	assert.Equal(t, [][2]int{{200, 100}}, fr.resizes)
	want := fit.Resolve(fit.ModeContain, 2, 1)
	assert.Equal(t, want, c.Scale())
	assert.Equal(t, want, fr.scales[len(fr.scales)-1])

	// The surface was reconfigured, so the same index draws again.
	require.NoError(t, c.Draw(0))
	assert.Len(t, fr.submits, 2)

	assert.ErrorIs(t, c.Resize(0, 10), common.ErrConfiguration)
}

func TestReconfigureAppliesFitMode(t *testing.T) {
	fr := newFakeRenderer(false)
	c, _ := newSession(t, config.Default(), fr, WithDisplaySize(300, 100))
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Draw(0))

	cfg := config.Default()
	cfg.FitMode = fit.ModeCover
	require.NoError(t, c.Reconfigure(cfg, nil))
	assert.Equal(t, fit.ModeCover, c.Config().FitMode)
	assert.Equal(t, fit.Resolve(fit.ModeCover, 3, 1), c.Scale())
	assert.Equal(t, NoFrame, c.CurrentFrame())
}

func TestReconfigureRollsBack(t *testing.T) {
	fr := newFakeRenderer(false)
	c, _ := newSession(t, config.Default(), fr)
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Draw(0))
	geometry, scales := len(fr.geometry), len(fr.scales)
	prevScale := c.Scale()

	bad := config.Default()
	bad.FitMode = fit.ModeCover
	bad.Workers = 0
	assert.ErrorIs(t, c.Reconfigure(bad, nil), common.ErrConfiguration)

	badDesc := testDescriptor()
	badDesc.Width = 0
	cfg := config.Default()
	cfg.FitMode = fit.ModeCover
	assert.ErrorIs(t, c.Reconfigure(cfg, badDesc), common.ErrConfiguration)

	toggled := config.Default()
	toggled.Regions = true
	assert.ErrorIs(t, c.Reconfigure(toggled, nil), common.ErrConfiguration)

	assert.Equal(t, config.Default(), c.Config())
	assert.Equal(t, prevScale, c.Scale())
	assert.Len(t, fr.geometry, geometry)
	assert.Len(t, fr.scales, scales)
	assert.Equal(t, 0, c.CurrentFrame())
}

func TestReconfigureBeforeInitialize(t *testing.T) {
	fr := newFakeRenderer(false)
	c, _ := newSession(t, config.Default(), fr)
	assert.ErrorIs(t, c.Reconfigure(config.Default(), nil), common.ErrInvalidState)
}

func TestReconfigureDescriptor(t *testing.T) {
	fr := newFakeRenderer(false)
	c, _ := newSession(t, config.Default(), fr)
	require.NoError(t, c.Initialize(context.Background()))

	desc := testDescriptor()
	require.NoError(t, c.Reconfigure(config.Default(), desc))
	w, h := c.CanvasSize()
	assert.Equal(t, 150, w)
	assert.Equal(t, 100, h)
	assert.Equal(t, [2]float32{0.5, 1}, fr.extents[len(fr.extents)-1])
}

func TestRegionsUploadPerFrame(t *testing.T) {
	fr := newFakeRenderer(true)
	cfg := config.Default()
	cfg.Regions = true
	c, _ := newSession(t, cfg, fr, WithDescriptor(testDescriptor()))
	require.NoError(t, c.Initialize(context.Background()))
	require.Contains(t, fr.layerWrites, 0, "text effect gets a layer")

	require.NoError(t, c.Draw(0))
	require.Len(t, fr.regionWrites, 1, "first draw clears the array")

	require.NoError(t, c.Draw(1))
	assert.Len(t, fr.regionWrites, 1, "no elements and nothing to clear")

	require.NoError(t, c.Draw(2))
	require.Len(t, fr.regionWrites, 2)
	slot := fr.regionWrites[1][:uniform.ElementStride]
	assert.Equal(t, float32(0), slot[0])
	assert.NotZero(t, slot[3])

	require.NoError(t, c.Draw(3))
	require.Len(t, fr.regionWrites, 3)
	assert.Equal(t, make([]float32, len(fr.regionWrites[2])), fr.regionWrites[2])
}

func TestSetElementImage(t *testing.T) {
	fr := newFakeRenderer(true)
	cfg := config.Default()
	cfg.Regions = true
	c, _ := newSession(t, cfg, fr, WithDescriptor(testDescriptor()))
	require.NoError(t, c.Initialize(context.Background()))

	require.NoError(t, c.SetElementImage("badge", image.NewRGBA(image.Rect(0, 0, 16, 8))))
	assert.Equal(t, 4, fr.layerWrites[0].Bounds().Dx())
	assert.ErrorIs(t, c.SetElementImage("nope", image.NewRGBA(image.Rect(0, 0, 1, 1))), common.ErrConfiguration)

	plain := newFakeRenderer(false)
	c2, _ := newSession(t, config.Default(), plain)
	require.NoError(t, c2.Initialize(context.Background()))
	assert.ErrorIs(t, c2.SetElementImage("badge", image.NewRGBA(image.Rect(0, 0, 1, 1))), common.ErrInvalidState)
}

func TestFrameSizeChangeRebuildsSplit(t *testing.T) {
	fr := newFakeRenderer(false)
	c, src := newSession(t, config.Default(), fr)
	require.NoError(t, c.Initialize(context.Background()))
	src.frames = map[int]*image.RGBA{1: image.NewRGBA(image.Rect(0, 0, 400, 100))}

	require.NoError(t, c.Draw(1))
	require.Len(t, fr.geometry, 2)
	want, err := quad.ResolveRegions(nil, 400, 100, quad.AlphaRight)
	require.NoError(t, err)
	assert.Equal(t, quad.Build(want), fr.geometry[1])
}

func TestFrameSizeChangeGeometryFailureKeepsSize(t *testing.T) {
	fr := newFakeRenderer(false)
	c, src := newSession(t, config.Default(), fr)
	require.NoError(t, c.Initialize(context.Background()))
	src.frames = map[int]*image.RGBA{
		1: image.NewRGBA(image.Rect(0, 0, 400, 100)),
		2: image.NewRGBA(image.Rect(0, 0, 400, 100)),
	}

	fr.geometryErr = errors.New("write failed")
	require.Error(t, c.Draw(1))
	impl := c.(*compositor)
	assert.Equal(t, 200, impl.frameW)
	assert.Equal(t, 100, impl.frameH)
	assert.Equal(t, 0, len(fr.submits))

	fr.geometryErr = nil
	require.NoError(t, c.Draw(2))
	require.Len(t, fr.geometry, 2, "the new size is applied once the write succeeds")
	assert.Equal(t, 400, impl.frameW)
}

func TestReconfigureScaleFailureRestoresGeometry(t *testing.T) {
	fr := newFakeRenderer(false)
	c, _ := newSession(t, config.Default(), fr, WithDisplaySize(300, 100))
	require.NoError(t, c.Initialize(context.Background()))
	original := fr.geometry[len(fr.geometry)-1]
	prevScale := c.Scale()

	fr.scaleErr = errors.New("write failed")
	cfg := config.Default()
	cfg.FitMode = fit.ModeCover
	cfg.AlphaSide = quad.AlphaLeft
	require.Error(t, c.Reconfigure(cfg, nil))

	assert.Equal(t, config.Default(), c.Config())
	assert.Equal(t, prevScale, c.Scale())
	assert.Equal(t, original, fr.geometry[len(fr.geometry)-1])
	assert.Equal(t, fr.extents[0], fr.extents[len(fr.extents)-1])
}

func TestReconfigureUploadFailureLeavesGeometry(t *testing.T) {
	fr := newFakeRenderer(true)
	cfg := config.Default()
	cfg.Regions = true
	c, _ := newSession(t, cfg, fr, WithDescriptor(testDescriptor()))
	require.NoError(t, c.Initialize(context.Background()))
	geometry, scales := len(fr.geometry), len(fr.scales)
	prevScale := c.Scale()

	fr.layerErr = errors.New("upload failed")
	next := cfg
	next.FitMode = fit.ModeCover
	require.Error(t, c.Reconfigure(next, testDescriptor()))

	assert.Equal(t, cfg, c.Config())
	assert.Equal(t, prevScale, c.Scale())
	assert.Len(t, fr.geometry, geometry)
	assert.Len(t, fr.scales, scales)
}

func TestSessionID(t *testing.T) {
	fr := newFakeRenderer(false)
	c, _ := newSession(t, config.Default(), fr)
	assert.Len(t, c.Session(), 36)

	c2, _ := newSession(t, config.Default(), newFakeRenderer(false), WithSession("fixed"))
	assert.Equal(t, "fixed", c2.Session())
}
