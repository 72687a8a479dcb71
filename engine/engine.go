// Package engine drives playback. It owns the canvas window, turns elapsed time into frame
// indices for the compositor and routes resize, reload and key events onto the render goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine/compositor"
	"github.com/Carmen-Shannon/alphavid/engine/config"
	"github.com/Carmen-Shannon/alphavid/engine/fit"
	"github.com/Carmen-Shannon/alphavid/engine/loader"
	"github.com/Carmen-Shannon/alphavid/engine/profiler"
	"github.com/Carmen-Shannon/alphavid/engine/videosource"
	"github.com/Carmen-Shannon/alphavid/engine/window"
)

type commandKind int

const (
	commandTogglePause commandKind = iota
	commandRestart
	commandFitMode
)

type playerCommand struct {
	kind commandKind
	mode fit.Mode
}

// dropCounter is implemented by sources that discard decoded frames the player skipped.
type dropCounter interface {
	Drops() uint64
}

// Player is the playback driver. It is the only caller of the compositor's Draw, Resize and
// Reconfigure, all of which run on its render goroutine.
type Player interface {
	// Window returns the canvas window.
	Window() window.Window

	// Compositor returns the compositor the player draws with.
	Compositor() compositor.Compositor

	// Run initializes the compositor, starts the render goroutine and the config watcher, and
	// runs the window message loop on the calling goroutine until the window closes, ctx is
	// cancelled or Quit is called. GPU resources and the source are released before it returns.
	// It must be called from the main thread.
	//
	// Parameters:
	//   - ctx: cancels device acquisition and playback
	//
	// Returns:
	//   - error: the initialization error or the error that stopped playback
	Run(ctx context.Context) error

	// TogglePause pauses or resumes playback. The displayed frame is held while paused.
	TogglePause()

	// Restart seeks back to frame 0.
	Restart()

	// SetFitMode switches the fit mode through the compositor's Reconfigure.
	//
	// Parameters:
	//   - mode: the new fit mode
	SetFitMode(mode fit.Mode)

	// Reload applies a new configuration on the render goroutine. A pending reload that has not
	// been applied yet is replaced.
	//
	// Parameters:
	//   - cfg: the new configuration
	Reload(cfg config.RenderConfig)

	// Quit stops playback. Safe to call multiple times.
	Quit()
}

type player struct {
	window window.Window
	comp   compositor.Compositor
	source videosource.Source
	loader loader.Loader
	log    *slog.Logger
	level  *slog.LevelVar

	cfg        config.RenderConfig
	desc       *loader.SourceDescriptor
	configPath string
	overrides  []func(*config.RenderConfig)

	resizeChannel  chan [2]int
	reloadChannel  chan config.RenderConfig
	commandChannel chan playerCommand

	quitChannel chan struct{}
	quitOnce    sync.Once
	wg          sync.WaitGroup

	profiler  *profiler.Profiler
	lastDrops uint64

	frameRate float64
	now       func() time.Time
	started   bool
	start     time.Time
	pausedAt  time.Time
	paused    bool
	ended     bool

	err error
}

var _ Player = &player{}

// NewPlayer creates a player for source. Unless WithWindow and WithCompositor are given it opens
// a canvas window sized by the resize policy and builds a compositor presenting to it.
// It panics on a nil source.
//
// Parameters:
//   - source: the frame source, closed by Run
//   - cfg: the render configuration
//   - options: functional options for player configuration
//
// Returns:
//   - Player: the newly created player
func NewPlayer(source videosource.Source, cfg config.RenderConfig, options ...PlayerBuilderOption) Player {
	if source == nil {
		panic("engine: nil source")
	}
	p := &player{
		source:         source,
		cfg:            cfg,
		loader:         loader.NewLoader(loader.BackendTypeYAML),
		log:            common.Logger(),
		resizeChannel:  make(chan [2]int, 1),
		reloadChannel:  make(chan config.RenderConfig, 1),
		commandChannel: make(chan playerCommand, 8),
		quitChannel:    make(chan struct{}),
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}

	p.frameRate = p.resolveFrameRate(cfg)
	if cfg.ProfileInterval > 0 {
		p.profiler = profiler.NewProfiler(
			profiler.WithInterval(time.Duration(cfg.ProfileInterval*float64(time.Second))),
			profiler.WithClock(p.now),
		)
	}

	if p.window == nil {
		cw, ch := p.canvasSize()
		policy := cfg.ResizePolicy
		p.window = window.NewWindow(
			window.WithTitle(windowTitle(cfg, p.desc)),
			window.WithSize(cw, ch),
			window.WithSizeFunc(func(monitorW, monitorH int) (int, int) {
				return fit.DisplaySize(policy, cw, ch, monitorW, monitorH)
			}),
		)
	}
	if p.comp == nil {
		p.comp = compositor.NewCompositor(p.window, source, cfg,
			compositor.WithDescriptor(p.desc),
			compositor.WithDisplaySize(p.window.Width(), p.window.Height()),
		)
	}
	p.log = p.log.With("session", p.comp.Session())

	p.window.SetResizeCallback(p.postResize)
	p.window.SetKeyDownCallback(p.handleKey)
	return p
}

func (p *player) Window() window.Window {
	return p.window
}

func (p *player) Compositor() compositor.Compositor {
	return p.comp
}

func (p *player) Run(ctx context.Context) error {
	if err := p.comp.Initialize(ctx); err != nil {
		p.release()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if p.configPath != "" {
		p.wg.Add(1)
		go p.handleWatch(ctx)
	}
	p.wg.Add(2)
	go p.handleRender()
	go p.handleQuit(ctx)

	p.window.ProcessMessages()

	p.Quit()
	cancel()
	p.wg.Wait()
	p.release()
	return p.err
}

// release destroys the compositor, which closes the window, then closes the source.
func (p *player) release() {
	if err := p.comp.Destroy(); err != nil && !errors.Is(err, common.ErrInvalidState) {
		p.log.Warn("compositor destroy failed", "err", err)
	}
	p.window.Close()
	if err := p.source.Close(); err != nil {
		p.log.Warn("source close failed", "err", err)
	}
}

func (p *player) Quit() {
	p.quitOnce.Do(func() {
		close(p.quitChannel)
		p.window.RequestClose()
	})
}

// handleQuit turns context cancellation into Quit.
func (p *player) handleQuit(ctx context.Context) {
	defer p.wg.Done()
	select {
	case <-ctx.Done():
		p.Quit()
	case <-p.quitChannel:
	}
}

// handleWatch reloads the config file on change and forwards it to the render goroutine.
func (p *player) handleWatch(ctx context.Context) {
	defer p.wg.Done()
	err := config.Watch(ctx, p.configPath, func(cfg config.RenderConfig, err error) {
		if err != nil {
			return
		}
		for _, override := range p.overrides {
			override(&cfg)
		}
		p.Reload(cfg)
	})
	if err != nil {
		p.log.Warn("config watch stopped", "path", p.configPath, "err", err)
	}
}

// handleRender runs the frame loop until quit, pacing iterations to the frame rate.
// A panic or a fatal draw error stops playback.
func (p *player) handleRender() {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.err = fmt.Errorf("render goroutine panic: %v", r)
			p.log.Error("render goroutine recovered from panic", "panic", r)
			p.Quit()
		}
	}()

	for {
		select {
		case <-p.quitChannel:
			return
		default:
		}

		iterStart := p.now()
		if err := p.step(iterStart); err != nil {
			p.err = err
			p.log.Error("playback stopped", "err", err)
			p.Quit()
			return
		}

		if remaining := p.frameDuration() - p.now().Sub(iterStart); remaining > 0 {
			select {
			case <-p.quitChannel:
				return
			case <-time.After(remaining):
			}
		}
	}
}

// step runs one render iteration: it applies pending events, then draws the frame due at now.
func (p *player) step(now time.Time) error {
	if !p.started {
		p.start = now
		p.started = true
	}
	p.drainEvents(now)

	before := p.comp.CurrentFrame()
	index, ok := p.frameIndex(now)
	if ok {
		err := p.comp.Draw(index)
		if errors.Is(err, videosource.ErrEndOfStream) {
			err = p.endOfStream(now)
		}
		if err != nil {
			return err
		}
	}
	p.tickProfiler(p.comp.CurrentFrame() != before)
	return nil
}

// endOfStream handles a source whose frame count was unknown until decoding hit its end.
func (p *player) endOfStream(now time.Time) error {
	if !p.cfg.Loop {
		p.ended = true
		return nil
	}
	p.start = now
	if err := p.comp.Draw(0); err != nil && !errors.Is(err, videosource.ErrEndOfStream) {
		return err
	}
	return nil
}

// frameIndex maps the playback clock to a frame index. It reports false when nothing should be drawn.
func (p *player) frameIndex(now time.Time) (int, bool) {
	if p.ended {
		return 0, false
	}
	if p.paused {
		now = p.pausedAt
	}
	index := int(now.Sub(p.start).Seconds() * p.frameRate)
	if count := p.source.FrameCount(); count > 0 && index >= count {
		if !p.cfg.Loop {
			return count - 1, true
		}
		index %= count
	}
	return index, true
}

func (p *player) frameDuration() time.Duration {
	return time.Duration(float64(time.Second) / p.frameRate)
}

// drainEvents applies queued resize, reload and key events in that order.
func (p *player) drainEvents(now time.Time) {
	select {
	case size := <-p.resizeChannel:
		if size[0] > 0 && size[1] > 0 {
			if err := p.comp.Resize(size[0], size[1]); err != nil {
				p.log.Warn("resize failed", "width", size[0], "height", size[1], "err", err)
			}
		}
	default:
	}

	select {
	case cfg := <-p.reloadChannel:
		p.applyConfig(cfg, true)
	default:
	}

	for {
		select {
		case cmd := <-p.commandChannel:
			p.applyCommand(cmd, now)
		default:
			return
		}
	}
}

func (p *player) applyCommand(cmd playerCommand, now time.Time) {
	switch cmd.kind {
	case commandTogglePause:
		if p.paused {
			p.start = p.start.Add(now.Sub(p.pausedAt))
			p.paused = false
		} else {
			p.pausedAt = now
			p.paused = true
		}
		p.log.Info("playback paused", "paused", p.paused)
	case commandRestart:
		p.start = now
		p.pausedAt = now
		p.ended = false
		p.log.Info("playback restarted")
	case commandFitMode:
		cfg := p.cfg
		cfg.FitMode = cmd.mode
		p.applyConfig(cfg, false)
	}
}

// applyConfig reconfigures the compositor. With reloadDescriptor set the named descriptor is read
// from disk again. A rejected config leaves playback unchanged.
func (p *player) applyConfig(cfg config.RenderConfig, reloadDescriptor bool) {
	desc := p.desc
	if cfg.Descriptor != "" && reloadDescriptor {
		p.loader.Invalidate(cfg.Descriptor)
		d, err := p.loader.Load(cfg.Descriptor)
		if err != nil {
			p.log.Warn("descriptor reload failed", "path", cfg.Descriptor, "err", err)
			return
		}
		desc = d
	} else if cfg.Descriptor == "" && p.cfg.Descriptor != "" {
		desc = nil
	}

	if err := p.comp.Reconfigure(cfg, desc); err != nil {
		p.log.Warn("reconfigure rejected", "err", err)
		return
	}
	p.cfg = cfg
	p.desc = desc
	p.frameRate = p.resolveFrameRate(cfg)
	if p.level != nil {
		if level, err := cfg.Level(); err == nil {
			p.level.Set(level)
		}
	}
	p.log.Info("config applied", "fit", cfg.FitMode, "fps", p.frameRate)
	p.window.SetTitle(windowTitle(cfg, desc))
}

func (p *player) tickProfiler(drawn bool) {
	if p.profiler == nil {
		return
	}
	if dc, ok := p.source.(dropCounter); ok {
		drops := dc.Drops()
		p.profiler.AddDropped(drops - p.lastDrops)
		p.lastDrops = drops
	}
	p.profiler.Tick(drawn)
}

// postResize queues a resize, replacing one that has not been applied yet.
func (p *player) postResize(width, height int) {
	size := [2]int{width, height}
	select {
	case p.resizeChannel <- size:
	default:
		select {
		case <-p.resizeChannel:
		default:
		}
		select {
		case p.resizeChannel <- size:
		default:
		}
	}
}

func (p *player) Reload(cfg config.RenderConfig) {
	select {
	case p.reloadChannel <- cfg:
	default:
		select {
		case <-p.reloadChannel:
		default:
		}
		select {
		case p.reloadChannel <- cfg:
		default:
		}
	}
}

// postCommand queues a command. Commands arriving faster than the render loop drains them are dropped.
func (p *player) postCommand(cmd playerCommand) {
	select {
	case p.commandChannel <- cmd:
	default:
		p.log.Debug("command dropped", "kind", cmd.kind)
	}
}

func (p *player) TogglePause() {
	p.postCommand(playerCommand{kind: commandTogglePause})
}

func (p *player) Restart() {
	p.postCommand(playerCommand{kind: commandRestart})
}

func (p *player) SetFitMode(mode fit.Mode) {
	p.postCommand(playerCommand{kind: commandFitMode, mode: mode})
}

// handleKey maps the playback keys: space pauses, R restarts and 1-7 select a fit mode.
func (p *player) handleKey(keyCode uint32) {
	switch {
	case keyCode == common.KeySpace:
		p.TogglePause()
	case keyCode == common.KeyR:
		p.Restart()
	case keyCode >= common.Key1 && keyCode <= common.Key7:
		p.SetFitMode(fit.Mode(keyCode - common.Key1))
	}
}

func (p *player) resolveFrameRate(cfg config.RenderConfig) float64 {
	var descFPS float64
	if p.desc != nil {
		descFPS = p.desc.FPS
	}
	return common.Coalesce(cfg.FPS, descFPS, p.source.FrameRate(), videosource.DefaultFrameRate)
}

// canvasSize is the natural canvas size before any resize policy is applied.
func (p *player) canvasSize() (int, int) {
	w, h := p.source.Size()
	if p.desc != nil {
		rgb := p.desc.RGBFrame.Rect()
		return fit.CanvasSize(w, h, &rgb)
	}
	return fit.CanvasSize(w, h, nil)
}

func windowTitle(cfg config.RenderConfig, desc *loader.SourceDescriptor) string {
	name := cfg.Source
	if desc != nil && desc.Source() != "" {
		name = desc.Source()
	}
	if name == "" {
		return fmt.Sprintf("alphavid [%s]", cfg.FitMode)
	}
	return fmt.Sprintf("alphavid - %s [%s]", name, cfg.FitMode)
}
