package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	PresentMode   string `toml:"present_mode"`
	SurfaceFormat string `toml:"surface_format"`
	Validation    bool   `toml:"validation"`
	// Offscreen draw image size; zero follows the window.
	DrawWidth  uint32 `toml:"draw_width"`
	DrawHeight uint32 `toml:"draw_height"`
	// 0 waits forever.
	FenceTimeoutMs uint64 `toml:"fence_timeout_ms"`
}

type DescriptorConfig struct {
	FrameInitialSets uint32 `toml:"frame_initial_sets"`
	GlobalMaxSets    uint32 `toml:"global_max_sets"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Window      WindowConfig     `toml:"window"`
	Renderer    RendererConfig   `toml:"renderer"`
	Descriptors DescriptorConfig `toml:"descriptors"`
	Log         LogConfig        `toml:"log"`
}

var presentModes = map[string]vulkan.PresentMode{
	"immediate":    vulkan.PresentModeImmediate,
	"mailbox":      vulkan.PresentModeMailbox,
	"fifo":         vulkan.PresentModeFifo,
	"fifo_relaxed": vulkan.PresentModeFifoRelaxed,
}

var surfaceFormats = map[string]vulkan.Format{
	"b8g8r8a8_unorm": vulkan.FormatB8g8r8a8Unorm,
	"b8g8r8a8_srgb":  vulkan.FormatB8g8r8a8Srgb,
	"r8g8b8a8_unorm": vulkan.FormatR8g8b8a8Unorm,
}

var logLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "framekit",
			X:      100,
			Y:      100,
			Width:  1700,
			Height: 900,
		},
		Renderer: RendererConfig{
			PresentMode:   "fifo",
			SurfaceFormat: "b8g8r8a8_unorm",
		},
		Descriptors: DescriptorConfig{
			FrameInitialSets: 1000,
			GlobalMaxSets:    10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load overlays the TOML file at path on the defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			core.LogWarn("config file `%s` not found, using defaults", path)
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config `%s`", path)
	}
	if err := Decode(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config `%s`", path)
	}
	return cfg, nil
}

// Decode overlays data on cfg and validates the result.
func Decode(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return errors.Wrapf(err, "line %d column %d", row, col)
		}
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	c.Renderer.PresentMode = strings.ToLower(c.Renderer.PresentMode)
	c.Renderer.SurfaceFormat = strings.ToLower(c.Renderer.SurfaceFormat)
	c.Log.Level = strings.ToLower(c.Log.Level)

	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Newf("window size %dx%d must be non-zero", c.Window.Width, c.Window.Height)
	}
	if _, ok := presentModes[c.Renderer.PresentMode]; !ok {
		return errors.Newf("unknown present mode `%s`", c.Renderer.PresentMode)
	}
	if _, ok := surfaceFormats[c.Renderer.SurfaceFormat]; !ok {
		return errors.Newf("unknown surface format `%s`", c.Renderer.SurfaceFormat)
	}
	if (c.Renderer.DrawWidth == 0) != (c.Renderer.DrawHeight == 0) {
		return errors.New("draw_width and draw_height must be set together")
	}
	if c.Descriptors.FrameInitialSets == 0 || c.Descriptors.GlobalMaxSets == 0 {
		return errors.New("descriptor set counts must be at least 1")
	}
	if _, ok := logLevels[c.Log.Level]; !ok {
		return errors.Newf("unknown log level `%s`", c.Log.Level)
	}
	return nil
}

// PresentMode is only meaningful on a validated config.
func (c *Config) PresentMode() vulkan.PresentMode {
	return presentModes[c.Renderer.PresentMode]
}

func (c *Config) SurfaceFormat() vulkan.SurfaceFormat {
	return vulkan.SurfaceFormat{
		Format:     surfaceFormats[c.Renderer.SurfaceFormat],
		ColorSpace: vulkan.ColorSpaceSrgbNonlinear,
	}
}

// FenceTimeout is in nanoseconds, with zero meaning unbounded.
func (c *Config) FenceTimeout() uint64 {
	return c.Renderer.FenceTimeoutMs * 1_000_000
}
