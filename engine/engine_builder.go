package engine

import (
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/alphavid/engine/compositor"
	"github.com/Carmen-Shannon/alphavid/engine/config"
	"github.com/Carmen-Shannon/alphavid/engine/loader"
	"github.com/Carmen-Shannon/alphavid/engine/window"
)

// PlayerBuilderOption is a functional option for configuring a Player.
// Use the With* functions to create options that are applied directly to the player instance.
type PlayerBuilderOption func(*player)

// WithWindow sets a pre-configured window instead of letting the player open one.
//
// Parameters:
//   - w: the window to present to
//
// Returns:
//   - PlayerBuilderOption: option function to apply
func WithWindow(w window.Window) PlayerBuilderOption {
	return func(p *player) {
		p.window = w
	}
}

// WithCompositor sets the compositor instead of building one over the window.
//
// Parameters:
//   - c: the compositor, which must present to the player's window
//
// Returns:
//   - PlayerBuilderOption: option function to apply
func WithCompositor(c compositor.Compositor) PlayerBuilderOption {
	return func(p *player) {
		p.comp = c
	}
}

// WithDescriptor sets the source descriptor used for the initial layout and canvas size.
//
// Parameters:
//   - desc: the descriptor, or nil for the side-by-side split
//
// Returns:
//   - PlayerBuilderOption: option function to apply
func WithDescriptor(desc *loader.SourceDescriptor) PlayerBuilderOption {
	return func(p *player) {
		p.desc = desc
	}
}

// WithConfigWatch reloads the configuration from path whenever the file changes.
// Each override is applied to a reloaded config before it reaches the compositor.
//
// Parameters:
//   - path: the config file to watch
//   - overrides: adjustments re-applied on every reload, such as command line flags
//
// Returns:
//   - PlayerBuilderOption: option function to apply
func WithConfigWatch(path string, overrides ...func(*config.RenderConfig)) PlayerBuilderOption {
	return func(p *player) {
		p.configPath = path
		p.overrides = overrides
	}
}

// WithClock replaces time.Now for the playback clock.
func WithClock(now func() time.Time) PlayerBuilderOption {
	return func(p *player) {
		p.now = now
	}
}

// WithLevelVar lets config reloads change the log level of the handler using v.
func WithLevelVar(v *slog.LevelVar) PlayerBuilderOption {
	return func(p *player) {
		p.level = v
	}
}
