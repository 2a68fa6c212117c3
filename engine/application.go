package engine

import (
	"github.com/spaghettifunk/framekit/engine/config"
	"github.com/spaghettifunk/framekit/engine/renderer"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan/driver"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name string
	// File the config was read from; watched for changes when set.
	ConfigPath string

	Config *config.Config
}

// LoadApplicationConfig reads the config at path, falling back to defaults
// when the file does not exist.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	app := NewApplicationConfig(cfg)
	app.ConfigPath = path
	return app, nil
}

func NewApplicationConfig(cfg *config.Config) *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:   cfg.Window.X,
		StartPosY:   cfg.Window.Y,
		StartWidth:  cfg.Window.Width,
		StartHeight: cfg.Window.Height,
		Name:        cfg.Window.Title,
		Config:      cfg,
	}
}

// RendererConfig sizes the swapchain for a framebuffer of width x height.
func (a *ApplicationConfig) RendererConfig(width, height uint32) renderer.Config {
	rc := renderer.DefaultConfig()
	rc.Width = width
	rc.Height = height
	rc.DrawWidth = a.Config.Renderer.DrawWidth
	rc.DrawHeight = a.Config.Renderer.DrawHeight
	rc.SurfaceFormat = a.Config.SurfaceFormat()
	rc.PresentMode = a.Config.PresentMode()
	rc.FrameDescriptorSets = a.Config.Descriptors.FrameInitialSets
	rc.GlobalDescriptorSets = a.Config.Descriptors.GlobalMaxSets
	rc.FenceTimeout = a.Config.FenceTimeout()
	return rc
}

func (a *ApplicationConfig) DriverOptions() driver.Options {
	return driver.Options{
		ApplicationName: a.Name,
		Validation:      a.Config.Renderer.Validation,
	}
}
