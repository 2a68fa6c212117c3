package engine

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framekit/engine/config"
	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/platform"
	"github.com/spaghettifunk/framekit/engine/renderer"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan/driver"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Everything has been released
	EngineStageShutdown
)

// Idle time per iteration while the window is minimized or hidden.
const pausedSleep = 100 * time.Millisecond

// Window is the part of the platform layer the main loop drives.
type Window interface {
	PumpMessages() bool
	Shutdown()
}

type Engine struct {
	currentStage Stage
	app          *ApplicationConfig

	platform *platform.Platform
	window   Window
	renderer renderer.RendererBackend
	watcher  *config.Watcher

	isRunning atomic.Bool
	width     uint32
	height    uint32

	clock          *core.Clock
	metrics        *core.Metrics
	lastMetricsLog time.Duration
	sleep          func(time.Duration)
}

func New(app *ApplicationConfig) *Engine {
	return &Engine{
		currentStage: EngineStageUninitialized,
		app:          app,
		width:        app.StartWidth,
		height:       app.StartHeight,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		sleep:        time.Sleep,
	}
}

// Initialize opens the window, brings up the device and the renderer and
// starts watching the config file. On failure whatever was created is left
// for Shutdown to release.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	core.SetLogLevel(e.app.Config.Log.Level)

	e.platform = platform.New()
	if err := e.platform.Startup(e.app.Name, e.app.StartPosX, e.app.StartPosY, e.app.StartWidth, e.app.StartHeight); err != nil {
		return err
	}
	e.window = e.platform

	// high-DPI displays report a framebuffer larger than the window
	e.width, e.height = e.platform.FramebufferSize()

	dev, err := driver.New(e.platform, e.app.DriverOptions())
	if err != nil {
		return errors.Wrap(err, "vulkan device")
	}
	r, err := renderer.New(dev, e.app.RendererConfig(e.width, e.height), renderer.NewClearPass())
	if err != nil {
		return errors.Wrap(err, "renderer")
	}

	return e.attach(r)
}

// attach registers the event handlers and the config watcher around an
// already constructed window and renderer.
func (e *Engine) attach(r renderer.RendererBackend) error {
	e.renderer = r

	if !core.EventInitialize() {
		return errors.New("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_OCCLUDED, e, e.onOccluded)
	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, e, e.onConfigReloaded)

	if e.app.ConfigPath != "" {
		w, err := config.NewWatcher(e.app.ConfigPath)
		if err != nil {
			// reloading is a convenience; run without it
			core.LogWarn("config changes will not be picked up: %s", err)
		} else {
			e.watcher = w
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives the renderer until the window closes or a quit event arrives.
// A renderer error is fatal: the loop stops and the error is returned.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return core.ErrNotInitialized
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)
	e.clock.Start()

	for e.isRunning.Load() {
		if !e.window.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		e.pollConfig()

		e.clock.Update()
		frameStart := e.clock.Elapsed()

		outcome, err := e.renderer.DrawFrame()
		if err != nil {
			e.isRunning.Store(false)
			core.LogError("rendering stopped: %+v", err)
			return errors.Wrap(err, "draw frame")
		}
		if outcome == renderer.FramePaused {
			// nothing to present; give the time back to the OS
			e.sleep(pausedSleep)
			continue
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - frameStart)
		if e.clock.Elapsed()-e.lastMetricsLog >= time.Second {
			fps, frameMS := e.metrics.Frame()
			core.LogDebug("%.0f fps, %.3f ms/frame", fps, frameMS)
			e.lastMetricsLog = e.clock.Elapsed()
		}
	}
	return nil
}

// Stop asks the loop to exit after the current iteration. Safe to call from
// any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown stops watching the config, tears the renderer down in order and
// closes the window last, since the surface must go before it. Calling it
// again does nothing.
func (e *Engine) Shutdown() {
	if e.currentStage == EngineStageShuttingDown || e.currentStage == EngineStageShutdown {
		return
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			core.LogWarn("closing config watcher: %s", err)
		}
		e.watcher = nil
	}
	if e.renderer != nil {
		e.renderer.Shutdown()
	}
	core.EventShutdown()
	if e.window != nil {
		e.window.Shutdown()
	}
	e.clock.Stop()
	e.currentStage = EngineStageShutdown
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// pollConfig hands reloads from the watcher goroutine to the main loop.
func (e *Engine) pollConfig() {
	if e.watcher == nil {
		return
	}
	select {
	case cfg := <-e.watcher.Reloaded:
		ctx := core.EventContext{}
		ctx.Data.Payload = cfg
		core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, e, ctx)
	case err := <-e.watcher.Errors:
		core.LogWarn("keeping previous config: %s", err)
	default:
	}
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("window resized: %d, %d", width, height)
	// applied at the top of the next frame
	e.renderer.Resize(width, height)
	return false
}

func (e *Engine) onOccluded(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if data.Data.B {
		core.LogInfo("window occluded, pausing rendering")
	} else {
		core.LogInfo("window visible again, resuming rendering")
	}
	e.renderer.SetOccluded(data.Data.B)
	return false
}

// onConfigReloaded applies the settings that can change at runtime. Window
// size, descriptor counts and validation need a restart.
func (e *Engine) onConfigReloaded(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	cfg, ok := data.Data.Payload.(*config.Config)
	if !ok {
		core.LogError("config reload event without a config payload")
		return false
	}
	old := e.app.Config
	e.app.Config = cfg

	if cfg.Log.Level != old.Log.Level {
		core.SetLogLevel(cfg.Log.Level)
		core.LogInfo("log level set to %s", cfg.Log.Level)
	}
	if cfg.PresentMode() != old.PresentMode() {
		e.renderer.SetPresentMode(cfg.PresentMode())
	}
	if cfg.Window != old.Window || cfg.Descriptors != old.Descriptors ||
		cfg.Renderer.Validation != old.Renderer.Validation ||
		cfg.Renderer.SurfaceFormat != old.Renderer.SurfaceFormat {
		core.LogWarn("some config changes only take effect after a restart")
	}
	return false
}
