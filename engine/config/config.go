// Package config loads the render configuration of a playback session from YAML or TOML and
// watches it for edits.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/Carmen-Shannon/alphavid/engine/fit"
	"github.com/Carmen-Shannon/alphavid/engine/quad"
	"github.com/Carmen-Shannon/alphavid/engine/renderer"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a config file encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFromPath picks the format from a file extension.
//
// Parameters:
//   - path: the config file path
//
// Returns:
//   - Format: the matching format
//   - error: ErrConfiguration for an unknown extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return FormatYAML, fmt.Errorf("%w: unsupported config extension %q", common.ErrConfiguration, filepath.Ext(path))
	}
}

// RenderConfig is the per-session render configuration.
type RenderConfig struct {
	FitMode      fit.Mode             `yaml:"fit_mode" toml:"fit_mode"`
	AlphaSide    quad.AlphaSide       `yaml:"alpha_side" toml:"alpha_side"`
	ResizePolicy fit.ResizePolicy     `yaml:"resize_policy" toml:"resize_policy"`
	PresentMode  renderer.PresentMode `yaml:"present_mode" toml:"present_mode"`

	// Source is the video file, image or image-sequence directory to play.
	Source string `yaml:"source" toml:"source"`
	// Descriptor is the optional layout descriptor. Empty selects the side-by-side split.
	Descriptor string `yaml:"descriptor" toml:"descriptor"`

	ForceSoftware   bool `yaml:"force_software" toml:"force_software"`
	ValidateShaders bool `yaml:"validate_shaders" toml:"validate_shaders"`

	// Regions enables multi-region element compositing.
	Regions       bool `yaml:"regions" toml:"regions"`
	ElementSize   int  `yaml:"element_size" toml:"element_size"`
	ElementLayers int  `yaml:"element_layers" toml:"element_layers"`
	Workers       int  `yaml:"workers" toml:"workers"`

	// FPS overrides the source frame rate when positive.
	FPS  float64 `yaml:"fps" toml:"fps"`
	Loop bool    `yaml:"loop" toml:"loop"`

	LogLevel string `yaml:"log_level" toml:"log_level"`
	// ProfileInterval is how often playback stats are logged, in seconds. Zero disables it.
	ProfileInterval float64 `yaml:"profile_interval" toml:"profile_interval"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() RenderConfig {
	return RenderConfig{
		FitMode:       fit.ModeNone,
		AlphaSide:     quad.AlphaRight,
		ResizePolicy:  fit.ResizeNone,
		PresentMode:   renderer.PresentModeVSync,
		ElementSize:   256,
		ElementLayers: 16,
		Workers:       4,
		Loop:          true,
		LogLevel:      "info",
	}
}

// Level parses LogLevel.
func (c RenderConfig) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log level %q", common.ErrConfiguration, c.LogLevel)
	}
	return l, nil
}

// Validate checks field ranges. Every failure wraps ErrConfiguration.
func (c RenderConfig) Validate() error {
	if c.Regions {
		if c.ElementSize <= 0 {
			return fmt.Errorf("%w: element_size %d must be positive", common.ErrConfiguration, c.ElementSize)
		}
		if c.ElementLayers <= 0 {
			return fmt.Errorf("%w: element_layers %d must be positive", common.ErrConfiguration, c.ElementLayers)
		}
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers %d must be positive", common.ErrConfiguration, c.Workers)
	}
	if c.FPS < 0 {
		return fmt.Errorf("%w: fps %v must not be negative", common.ErrConfiguration, c.FPS)
	}
	if c.ProfileInterval < 0 {
		return fmt.Errorf("%w: profile_interval %v must not be negative", common.ErrConfiguration, c.ProfileInterval)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Decode reads a config over the defaults and validates it.
//
// Parameters:
//   - r: the encoded config
//   - format: the encoding
//
// Returns:
//   - RenderConfig: the decoded config
//   - error: ErrConfiguration for unknown fields, bad values or a failed validation
func Decode(r io.Reader, format Format) (RenderConfig, error) {
	cfg := Default()
	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, err
	}

	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	if err != nil {
		return Default(), fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Load reads and validates a config file. Relative Source and Descriptor paths are resolved
// against the config file's directory.
//
// Parameters:
//   - path: the config file
//
// Returns:
//   - RenderConfig: the loaded config
//   - error: a read error, or ErrConfiguration
func Load(path string) (RenderConfig, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Default(), err
	}
	f, err := os.Open(path)
	if err != nil {
		return Default(), fmt.Errorf("failed to read config %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := Decode(f, format)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	cfg.Source = resolve(dir, cfg.Source)
	cfg.Descriptor = resolve(dir, cfg.Descriptor)
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
