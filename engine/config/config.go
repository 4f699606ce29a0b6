// Package config loads engine, window, renderer and logging settings from TOML or YAML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned when a configuration file extension or format name is not recognized.
var ErrUnknownFormat = errors.New("config: unknown format")

// Format names a configuration encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Config is the root configuration document.
type Config struct {
	Window   WindowConfig   `toml:"window" yaml:"window"`
	Renderer RendererConfig `toml:"renderer" yaml:"renderer"`
	Engine   EngineConfig   `toml:"engine" yaml:"engine"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

// WindowConfig configures the OS window used as the frame driver.
type WindowConfig struct {
	Title  string `toml:"title" yaml:"title"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
}

// RendererConfig configures the graphics backend.
type RendererConfig struct {
	// Backend is "webgpu" or "headless".
	Backend string `toml:"backend" yaml:"backend"`
	// PresentMode is "vsync" or "uncapped".
	PresentMode          string `toml:"present_mode" yaml:"present_mode"`
	ForceFallbackAdapter bool   `toml:"force_fallback_adapter" yaml:"force_fallback_adapter"`
}

// EngineConfig configures the engine loops.
type EngineConfig struct {
	TickRate   float64 `toml:"tick_rate" yaml:"tick_rate"`
	FrameLimit float64 `toml:"frame_limit" yaml:"frame_limit"`
	Profiling  bool    `toml:"profiling" yaml:"profiling"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error" or "off".
	Level string `toml:"level" yaml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format" yaml:"format"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:  "oxy-zen",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			Backend:     "webgpu",
			PresentMode: "vsync",
		},
		Engine: EngineConfig{
			TickRate: 60,
		},
		Log: LogConfig{
			Level:  "off",
			Format: "text",
		},
	}
}

// Load reads a configuration file. The encoding is chosen from the file extension
// (.toml, .yaml or .yml). Fields missing from the file keep their Default values.
//
// Parameters:
//   - path: the configuration file path
//
// Returns:
//   - Config: the decoded and validated configuration
//   - error: error if the file cannot be read, decoded or validated
func Load(path string) (Config, error) {
	var f Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		f = FormatTOML
	case ".yaml", ".yml":
		f = FormatYAML
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return Decode(data, f)
}

// Decode decodes configuration bytes in the given format on top of Default.
//
// Parameters:
//   - data: the encoded configuration
//   - f: the encoding of data
//
// Returns:
//   - Config: the decoded and validated configuration
//   - error: error if decoding or validation fails
func Decode(data []byte, f Format) (Config, error) {
	cfg := Default()
	var err error
	switch f {
	case FormatTOML:
		err = toml.Unmarshal(data, &cfg)
	case FormatYAML:
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to decode %s: %w", f, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
//
// Returns:
//   - error: the first invalid field found, or nil
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("config: window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	switch c.Renderer.Backend {
	case "webgpu", "headless":
	default:
		return fmt.Errorf("config: unknown renderer backend %q", c.Renderer.Backend)
	}
	switch c.Renderer.PresentMode {
	case "vsync", "uncapped":
	default:
		return fmt.Errorf("config: unknown present mode %q", c.Renderer.PresentMode)
	}
	if c.Engine.TickRate < 0 || c.Engine.FrameLimit < 0 {
		return errors.New("config: tick rate and frame limit must not be negative")
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json", "":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "off", "":
		return slog.LevelError + 1, nil
	}
	return 0, fmt.Errorf("config: unknown log level %q", l.Level)
}

// NewLogger builds a slog.Logger writing to w at the configured level and format.
// Returns nil when the level is "off", which logger.SetLogger treats as silent.
//
// Parameters:
//   - w: the destination writer
//
// Returns:
//   - *slog.Logger: the configured logger, or nil when logging is off
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := l.level()
	if err != nil || strings.EqualFold(l.Level, "off") || l.Level == "" {
		return nil
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
