// Command alphavid plays a dual-stream RGB+alpha video in a transparent-composited window.
//
// Usage:
//
//	alphavid [flags] [source]
//
// The source is a still image, a directory of numbered frames or a video file. Flags override
// values from the config file; with -watch the config file is reloaded while playing.
//
// Keys: space pauses, R restarts, 1-7 select the fit mode, Esc quits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine"
	"github.com/Carmen-Shannon/alphavid/engine/config"
	"github.com/Carmen-Shannon/alphavid/engine/fit"
	"github.com/Carmen-Shannon/alphavid/engine/loader"
	"github.com/Carmen-Shannon/alphavid/engine/quad"
	"github.com/Carmen-Shannon/alphavid/engine/videosource"
)

type flags struct {
	configPath string
	source     string
	descriptor string
	fitMode    string
	alphaSide  string
	resize     string
	fps        float64
	software   bool
	validate   bool
	watch      bool
	logLevel   string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	f, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg := config.Default()
	if f.configPath != "" {
		if cfg, err = config.Load(f.configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	if err := f.apply(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	level, _ := cfg.Level()
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})))
	log := common.Logger()

	if cfg.Source == "" {
		log.Error("no source given")
		return 2
	}

	var desc *loader.SourceDescriptor
	if cfg.Descriptor != "" {
		if desc, err = loader.LoadDescriptor(cfg.Descriptor); err != nil {
			log.Error("failed to load descriptor", "path", cfg.Descriptor, "err", err)
			return 1
		}
	}

	src, err := videosource.Open(cfg.Source)
	if err != nil {
		log.Error("failed to open source", "path", cfg.Source, "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	options := []engine.PlayerBuilderOption{
		engine.WithDescriptor(desc),
		engine.WithLevelVar(levelVar),
	}
	if f.configPath != "" && f.watch {
		options = append(options, engine.WithConfigWatch(f.configPath, func(c *config.RenderConfig) {
			_ = f.apply(c)
		}))
	}

	player := engine.NewPlayer(src, cfg, options...)
	if err := player.Run(ctx); err != nil {
		log.Error("playback failed", "err", err)
		return 1
	}
	return 0
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("alphavid", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "render config file (.yaml, .yml or .toml)")
	fs.StringVar(&f.source, "source", "", "image, frame directory or video file")
	fs.StringVar(&f.descriptor, "descriptor", "", "source descriptor manifest (.yaml or .json)")
	fs.StringVar(&f.fitMode, "fit", "", "fit mode: none, aspect-fill, aspect-fit, stretch-vertical, stretch-horizontal, cover, contain")
	fs.StringVar(&f.alphaSide, "alpha", "", "side carrying the alpha mask without a descriptor: left or right")
	fs.StringVar(&f.resize, "resize", "", "initial window sizing: none, percent, percent-width, percent-height")
	fs.Float64Var(&f.fps, "fps", 0, "playback frame rate, 0 uses the source rate")
	fs.BoolVar(&f.software, "software", false, "force the software (fallback) adapter")
	fs.BoolVar(&f.validate, "validate-shaders", false, "validate WGSL with naga before pipeline creation")
	fs.BoolVar(&f.watch, "watch", true, "reload the config file when it changes")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.source == "" && fs.NArg() > 0 {
		f.source = fs.Arg(0)
	}
	return f, nil
}

// apply overrides cfg with every flag that was set.
func (f *flags) apply(cfg *config.RenderConfig) error {
	if f.source != "" {
		cfg.Source = f.source
	}
	if f.descriptor != "" {
		cfg.Descriptor = f.descriptor
	}
	if f.fitMode != "" {
		mode, err := fit.ParseMode(f.fitMode)
		if err != nil {
			return err
		}
		cfg.FitMode = mode
	}
	if f.alphaSide != "" {
		side, err := quad.ParseAlphaSide(f.alphaSide)
		if err != nil {
			return err
		}
		cfg.AlphaSide = side
	}
	if f.resize != "" {
		policy, err := fit.ParseResizePolicy(f.resize)
		if err != nil {
			return err
		}
		cfg.ResizePolicy = policy
	}
	if f.fps > 0 {
		cfg.FPS = f.fps
	}
	if f.software {
		cfg.ForceSoftware = true
	}
	if f.validate {
		cfg.ValidateShaders = true
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return nil
}
