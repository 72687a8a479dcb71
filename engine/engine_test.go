package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"testing"
	"time"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine/compositor"
	"github.com/Carmen-Shannon/alphavid/engine/config"
	"github.com/Carmen-Shannon/alphavid/engine/fit"
	"github.com/Carmen-Shannon/alphavid/engine/loader"
	"github.com/Carmen-Shannon/alphavid/engine/videosource"
	"github.com/Carmen-Shannon/alphavid/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	onResize  func(int, int)
	onKeyDown func(uint32)
	title     string
	closed    int
	requested bool
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) SetUpdateCallback(func())                   {}
func (w *fakeWindow) SetResizeCallback(cb func(int, int))        { w.onResize = cb }
func (w *fakeWindow) SetKeyDownCallback(cb func(uint32))         { w.onKeyDown = cb }
func (w *fakeWindow) SetTitle(title string)                      { w.title = title }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *fakeWindow) IsRunning() bool                            { return !w.requested && w.closed == 0 }
func (w *fakeWindow) RequestClose()                              { w.requested = true }
func (w *fakeWindow) Close()                                     { w.closed++ }
func (w *fakeWindow) ProcessMessages()                           {}
func (w *fakeWindow) Width() int                                 { return 100 }
func (w *fakeWindow) Height() int                                { return 100 }

// fakeSource has count frames. With hidden set FrameCount reports 0 so the end is only found by decoding.
type fakeSource struct {
	count  int
	hidden bool
	rate   float64
	drops  uint64
	closed bool
}

func (s *fakeSource) Frame(index int) (*image.RGBA, error) {
	if index >= s.count {
		return nil, fmt.Errorf("%w: frame %d", videosource.ErrEndOfStream, index)
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 2)), nil
}

func (s *fakeSource) Size() (int, int) { return 4, 2 }

func (s *fakeSource) FrameCount() int {
	if s.hidden {
		return 0
	}
	return s.count
}

func (s *fakeSource) FrameRate() float64 { return s.rate }
func (s *fakeSource) Drops() uint64      { return s.drops }

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeCompositor struct {
	source      *fakeSource
	current     int
	draws       []int
	resizes     [][2]int
	reconfigs   []config.RenderConfig
	descs       []*loader.SourceDescriptor
	reconfigErr error
	initErr     error
	drawErr     error
	destroyed   int
	cfg         config.RenderConfig
}

var _ compositor.Compositor = &fakeCompositor{}

func newFakeCompositor(src *fakeSource) *fakeCompositor {
	return &fakeCompositor{source: src, current: compositor.NoFrame}
}

func (c *fakeCompositor) Session() string                           { return "test-session" }
func (c *fakeCompositor) Initialize(context.Context) error          { return c.initErr }
func (c *fakeCompositor) CurrentFrame() int                         { return c.current }
func (c *fakeCompositor) Config() config.RenderConfig               { return c.cfg }
func (c *fakeCompositor) Scale() fit.Scale                          { return fit.Scale{X: 1, Y: 1} }
func (c *fakeCompositor) CanvasSize() (int, int)                    { return 2, 2 }
func (c *fakeCompositor) SetElementImage(string, image.Image) error { return nil }

func (c *fakeCompositor) Draw(index int) error {
	if c.drawErr != nil {
		return c.drawErr
	}
	if index == c.current {
		return nil
	}
	if _, err := c.source.Frame(index); err != nil {
		return err
	}
	c.draws = append(c.draws, index)
	c.current = index
	return nil
}

func (c *fakeCompositor) Resize(w, h int) error {
	c.resizes = append(c.resizes, [2]int{w, h})
	c.current = compositor.NoFrame
	return nil
}

func (c *fakeCompositor) Reconfigure(cfg config.RenderConfig, desc *loader.SourceDescriptor) error {
	if c.reconfigErr != nil {
		return c.reconfigErr
	}
	c.reconfigs = append(c.reconfigs, cfg)
	c.descs = append(c.descs, desc)
	c.cfg = cfg
	c.current = compositor.NoFrame
	return nil
}

func (c *fakeCompositor) Destroy() error {
	c.destroyed++
	return nil
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPlayer(t *testing.T, src *fakeSource, cfg config.RenderConfig) (*player, *fakeCompositor, *fakeWindow, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Unix(1000, 0)}
	comp := newFakeCompositor(src)
	win := &fakeWindow{}
	p := NewPlayer(src, cfg, WithWindow(win), WithCompositor(comp), WithClock(clock.now)).(*player)
	return p, comp, win, clock
}

func TestNewPlayerPanicsOnNilSource(t *testing.T) {
	assert.Panics(t, func() { NewPlayer(nil, config.Default()) })
}

func TestFrameRateResolution(t *testing.T) {
	src := &fakeSource{count: 10, rate: 24}
	p, _, _, _ := newTestPlayer(t, src, config.Default())
	assert.Equal(t, 24.0, p.frameRate)

	cfg := config.Default()
	cfg.FPS = 10
	p, _, _, _ = newTestPlayer(t, src, cfg)
	assert.Equal(t, 10.0, p.frameRate)

	p, _, _, _ = newTestPlayer(t, &fakeSource{count: 1}, config.Default())
	assert.Equal(t, videosource.DefaultFrameRate, p.frameRate)
}

func TestStepAdvancesWithClock(t *testing.T) {
	src := &fakeSource{count: 10, rate: 10}
	p, comp, _, clock := newTestPlayer(t, src, config.Default())

	require.NoError(t, p.step(clock.now()))
	clock.advance(50 * time.Millisecond)
	require.NoError(t, p.step(clock.now()))
	clock.advance(60 * time.Millisecond)
	require.NoError(t, p.step(clock.now()))
	clock.advance(300 * time.Millisecond)
	require.NoError(t, p.step(clock.now()))

	assert.Equal(t, []int{0, 1, 4}, comp.draws)
}

func TestStepLoopsOnKnownCount(t *testing.T) {
	src := &fakeSource{count: 5, rate: 10}
	p, comp, _, clock := newTestPlayer(t, src, config.Default())

	require.NoError(t, p.step(clock.now()))
	clock.advance(720 * time.Millisecond)
	require.NoError(t, p.step(clock.now()))
	assert.Equal(t, []int{0, 2}, comp.draws)
}

func TestStepHoldsLastFrameWithoutLoop(t *testing.T) {
	cfg := config.Default()
	cfg.Loop = false
	src := &fakeSource{count: 5, rate: 10}
	p, comp, _, clock := newTestPlayer(t, src, cfg)

	require.NoError(t, p.step(clock.now()))
	clock.advance(2 * time.Second)
	require.NoError(t, p.step(clock.now()))
	assert.Equal(t, []int{0, 4}, comp.draws)
}

func TestStepRestartsOnEndOfStream(t *testing.T) {
	src := &fakeSource{count: 3, hidden: true, rate: 10}
	p, comp, _, clock := newTestPlayer(t, src, config.Default())

	require.NoError(t, p.step(clock.now()))
	clock.advance(250 * time.Millisecond)
	require.NoError(t, p.step(clock.now()))
	clock.advance(150 * time.Millisecond)
	require.NoError(t, p.step(clock.now()))
	clock.advance(100 * time.Millisecond)
	require.NoError(t, p.step(clock.now()))

	assert.Equal(t, []int{0, 2, 0, 1}, comp.draws)
}

func TestStepStopsAtEndWithoutLoop(t *testing.T) {
	cfg := config.Default()
	cfg.Loop = false
	src := &fakeSource{count: 3, hidden: true, rate: 10}
	p, comp, _, clock := newTestPlayer(t, src, cfg)

	require.NoError(t, p.step(clock.now()))
	clock.advance(time.Second)
	require.NoError(t, p.step(clock.now()))
	clock.advance(time.Second)
	require.NoError(t, p.step(clock.now()))

	assert.True(t, p.ended)
	assert.Equal(t, []int{0}, comp.draws)
}

func TestStepReturnsDrawError(t *testing.T) {
	src := &fakeSource{count: 3, rate: 10}
	p, comp, _, clock := newTestPlayer(t, src, config.Default())
	comp.drawErr = fmt.Errorf("draw: %w", common.ErrInvalidState)

	err := p.step(clock.now())
	assert.True(t, errors.Is(err, common.ErrInvalidState))
}

func TestPauseHoldsFrame(t *testing.T) {
	src := &fakeSource{count: 100, rate: 10}
	p, comp, win, clock := newTestPlayer(t, src, config.Default())

	require.NoError(t, p.step(clock.now()))
	clock.advance(200 * time.Millisecond)
	win.onKeyDown(common.KeySpace)
	require.NoError(t, p.step(clock.now()))
	clock.advance(time.Second)
	require.NoError(t, p.step(clock.now()))
	assert.Equal(t, []int{0, 2}, comp.draws)

	win.onKeyDown(common.KeySpace)
	require.NoError(t, p.step(clock.now()))
	clock.advance(100 * time.Millisecond)
	require.NoError(t, p.step(clock.now()))
	assert.Equal(t, []int{0, 2, 3}, comp.draws)
}

func TestRestartKey(t *testing.T) {
	src := &fakeSource{count: 100, rate: 10}
	p, comp, win, clock := newTestPlayer(t, src, config.Default())

	require.NoError(t, p.step(clock.now()))
	clock.advance(500 * time.Millisecond)
	require.NoError(t, p.step(clock.now()))
	win.onKeyDown(common.KeyR)
	require.NoError(t, p.step(clock.now()))
	assert.Equal(t, []int{0, 5, 0}, comp.draws)
}

func TestFitModeKeyReconfigures(t *testing.T) {
	src := &fakeSource{count: 100, rate: 10}
	p, comp, win, clock := newTestPlayer(t, src, config.Default())

	win.onKeyDown(common.Key7)
	win.onKeyDown(uint32('Q'))
	require.NoError(t, p.step(clock.now()))

	require.Len(t, comp.reconfigs, 1)
	assert.Equal(t, fit.ModeContain, comp.reconfigs[0].FitMode)
	assert.Equal(t, fit.ModeContain, p.cfg.FitMode)
	assert.Contains(t, win.title, "contain")
}

func TestRejectedReconfigureKeepsConfig(t *testing.T) {
	src := &fakeSource{count: 100, rate: 10}
	p, comp, _, clock := newTestPlayer(t, src, config.Default())
	comp.reconfigErr = fmt.Errorf("%w: bad", common.ErrConfiguration)

	p.SetFitMode(fit.ModeCover)
	require.NoError(t, p.step(clock.now()))
	assert.Equal(t, fit.ModeNone, p.cfg.FitMode)
}

func TestResizeKeepsLatest(t *testing.T) {
	src := &fakeSource{count: 100, rate: 10}
	p, comp, win, clock := newTestPlayer(t, src, config.Default())

	require.NoError(t, p.step(clock.now()))
	win.onResize(300, 200)
	win.onResize(640, 480)
	win.onResize(0, 0)
	require.NoError(t, p.step(clock.now()))
	assert.Empty(t, comp.resizes)

	win.onResize(640, 480)
	require.NoError(t, p.step(clock.now()))
	assert.Equal(t, [][2]int{{640, 480}}, comp.resizes)
	assert.Equal(t, []int{0, 0}, comp.draws)
}

func TestReloadAppliesLatestConfig(t *testing.T) {
	src := &fakeSource{count: 100, rate: 10}
	p, comp, _, clock := newTestPlayer(t, src, config.Default())

	first := config.Default()
	first.FitMode = fit.ModeCover
	second := config.Default()
	second.FitMode = fit.ModeAspectFit
	second.FPS = 5
	p.Reload(first)
	p.Reload(second)
	require.NoError(t, p.step(clock.now()))

	require.Len(t, comp.reconfigs, 1)
	assert.Equal(t, fit.ModeAspectFit, comp.reconfigs[0].FitMode)
	assert.Equal(t, 5.0, p.frameRate)
}

func TestReloadReadsDescriptor(t *testing.T) {
	src := &fakeSource{count: 100, rate: 10}
	p, comp, _, clock := newTestPlayer(t, src, config.Default())

	cfg := config.Default()
	cfg.Descriptor = "testdata/missing.yaml"
	p.Reload(cfg)
	require.NoError(t, p.step(clock.now()))
	assert.Empty(t, comp.reconfigs)
	assert.Empty(t, p.cfg.Descriptor)
}

func TestReloadChangesLogLevel(t *testing.T) {
	src := &fakeSource{count: 100, rate: 10}
	level := new(slog.LevelVar)
	clock := &testClock{t: time.Unix(1000, 0)}
	comp := newFakeCompositor(src)
	p := NewPlayer(src, config.Default(), WithWindow(&fakeWindow{}), WithCompositor(comp),
		WithClock(clock.now), WithLevelVar(level)).(*player)

	cfg := config.Default()
	cfg.LogLevel = "debug"
	p.Reload(cfg)
	require.NoError(t, p.step(clock.now()))
	assert.Equal(t, "DEBUG", level.Level().String())
}

func TestProfilerCountsDrops(t *testing.T) {
	src := &fakeSource{count: 100, rate: 10}
	cfg := config.Default()
	cfg.ProfileInterval = 1
	p, _, _, clock := newTestPlayer(t, src, cfg)
	require.NotNil(t, p.profiler)

	src.drops = 3
	require.NoError(t, p.step(clock.now()))
	src.drops = 5
	clock.advance(100 * time.Millisecond)
	require.NoError(t, p.step(clock.now()))
	assert.Equal(t, uint64(5), p.lastDrops)
}

func TestRunInitializeFailureReleases(t *testing.T) {
	src := &fakeSource{count: 100, rate: 10}
	p, comp, win, _ := newTestPlayer(t, src, config.Default())
	comp.initErr = fmt.Errorf("%w: no adapter", common.ErrCapabilityUnsupported)

	err := p.Run(context.Background())
	assert.True(t, errors.Is(err, common.ErrCapabilityUnsupported))
	assert.Equal(t, 1, comp.destroyed)
	assert.Equal(t, 1, win.closed)
	assert.True(t, src.closed)
}

func TestRunStopsOnQuit(t *testing.T) {
	src := &fakeSource{count: 100, rate: 1000}
	p, comp, win, _ := newTestPlayer(t, src, config.Default())
	p.now = time.Now
	p.Quit()
	p.Quit()

	require.NoError(t, p.Run(context.Background()))
	assert.True(t, win.requested)
	assert.Equal(t, 1, comp.destroyed)
	assert.True(t, src.closed)
}

func TestWindowTitle(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "alphavid [none]", windowTitle(cfg, nil))
	cfg.Source = "clip.mp4"
	cfg.FitMode = fit.ModeCover
	assert.Equal(t, "alphavid - clip.mp4 [cover]", windowTitle(cfg, nil))
}
