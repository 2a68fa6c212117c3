package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framekit/engine/config"
	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

type fakeWindow struct {
	pumps    int
	closeAt  int
	onPump   func(n int)
	shutdown int
}

func (w *fakeWindow) PumpMessages() bool {
	w.pumps++
	if w.onPump != nil {
		w.onPump(w.pumps)
	}
	return w.closeAt == 0 || w.pumps < w.closeAt
}

func (w *fakeWindow) Shutdown() { w.shutdown++ }

type fakeRenderer struct {
	outcomes    []renderer.FrameOutcome
	err         error
	draws       int
	resized     [][2]uint32
	occluded    []bool
	presentMode []vulkan.PresentMode
	shutdowns   int
}

func (r *fakeRenderer) DrawFrame() (renderer.FrameOutcome, error) {
	r.draws++
	if r.err != nil {
		return renderer.FrameSkipped, r.err
	}
	if len(r.outcomes) == 0 {
		return renderer.FramePresented, nil
	}
	o := r.outcomes[0]
	r.outcomes = r.outcomes[1:]
	return o, nil
}

func (r *fakeRenderer) Resize(width, height uint32) {
	r.resized = append(r.resized, [2]uint32{width, height})
}

func (r *fakeRenderer) SetOccluded(occluded bool) {
	r.occluded = append(r.occluded, occluded)
}

func (r *fakeRenderer) SetPresentMode(mode vulkan.PresentMode) {
	r.presentMode = append(r.presentMode, mode)
}

func (r *fakeRenderer) Shutdown() { r.shutdowns++ }

func newTestEngine(t *testing.T, w *fakeWindow, r *fakeRenderer) *Engine {
	t.Helper()
	e := New(NewApplicationConfig(config.Default()))
	e.window = w
	e.sleep = func(time.Duration) {}
	require.NoError(t, e.attach(r))
	t.Cleanup(e.Shutdown)
	return e
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	w := &fakeWindow{closeAt: 4}
	r := &fakeRenderer{}
	e := newTestEngine(t, w, r)

	require.NoError(t, e.Run())
	assert.Equal(t, 3, r.draws)
}

func TestQuitEventStopsLoop(t *testing.T) {
	r := &fakeRenderer{}
	w := &fakeWindow{}
	w.onPump = func(n int) {
		if n == 2 {
			core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		}
	}
	e := newTestEngine(t, w, r)

	require.NoError(t, e.Run())
	// the frame of the pump that fired quit still runs
	assert.Equal(t, 2, r.draws)
}

func TestRunBeforeInitialize(t *testing.T) {
	e := New(NewApplicationConfig(config.Default()))
	assert.ErrorIs(t, e.Run(), core.ErrNotInitialized)
}

func TestFatalDrawErrorIsReturned(t *testing.T) {
	r := &fakeRenderer{err: errors.WithStack(core.ErrDeviceLost)}
	w := &fakeWindow{}
	e := newTestEngine(t, w, r)

	err := e.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.Equal(t, 1, r.draws)
}

func TestPausedFramesSleep(t *testing.T) {
	r := &fakeRenderer{outcomes: []renderer.FrameOutcome{renderer.FramePaused, renderer.FramePaused, renderer.FramePresented}}
	w := &fakeWindow{closeAt: 4}
	e := newTestEngine(t, w, r)

	var slept []time.Duration
	e.sleep = func(d time.Duration) { slept = append(slept, d) }

	require.NoError(t, e.Run())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, slept)
}

func TestWindowEventsReachRenderer(t *testing.T) {
	r := &fakeRenderer{}
	e := newTestEngine(t, &fakeWindow{}, r)

	resize := core.EventContext{}
	resize.Data.U32[0] = 1920
	resize.Data.U32[1] = 1080
	core.EventFire(core.EVENT_CODE_RESIZED, nil, resize)
	// same size again is ignored
	core.EventFire(core.EVENT_CODE_RESIZED, nil, resize)

	occluded := core.EventContext{}
	occluded.Data.B = true
	core.EventFire(core.EVENT_CODE_OCCLUDED, nil, occluded)
	core.EventFire(core.EVENT_CODE_OCCLUDED, nil, core.EventContext{})

	assert.Equal(t, [][2]uint32{{1920, 1080}}, r.resized)
	assert.Equal(t, []bool{true, false}, r.occluded)

	w, h := e.GetFramebufferSize()
	assert.Equal(t, uint32(1920), w)
	assert.Equal(t, uint32(1080), h)
}

func TestConfigReloadAppliesPresentMode(t *testing.T) {
	r := &fakeRenderer{}
	e := newTestEngine(t, &fakeWindow{}, r)

	next := config.Default()
	next.Renderer.PresentMode = "mailbox"
	ctx := core.EventContext{}
	ctx.Data.Payload = next
	core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, nil, ctx)

	assert.Equal(t, []vulkan.PresentMode{vulkan.PresentModeMailbox}, r.presentMode)
	assert.Same(t, next, e.app.Config)

	// unchanged mode is not pushed again
	core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, nil, ctx)
	assert.Len(t, r.presentMode, 1)
}

func TestConfigFileChangeReachesRenderer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framekit.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\npresent_mode = \"fifo\"\n"), 0o644))

	app, err := LoadApplicationConfig(path)
	require.NoError(t, err)

	r := &fakeRenderer{}
	w := &fakeWindow{}
	e := New(app)
	e.window = w
	e.sleep = func(time.Duration) {}
	require.NoError(t, e.attach(r))
	t.Cleanup(e.Shutdown)
	require.NotNil(t, e.watcher)

	require.NoError(t, os.WriteFile(path, []byte("[renderer]\npresent_mode = \"immediate\"\n"), 0o644))

	deadline := time.Now().Add(5 * time.Second)
	w.onPump = func(int) {
		if len(r.presentMode) > 0 || time.Now().After(deadline) {
			e.Stop()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, e.Run())
	assert.Equal(t, []vulkan.PresentMode{vulkan.PresentModeImmediate}, r.presentMode)
}

func TestShutdownIsIdempotent(t *testing.T) {
	r := &fakeRenderer{}
	w := &fakeWindow{}
	e := newTestEngine(t, w, r)

	e.Shutdown()
	e.Shutdown()

	assert.Equal(t, 1, r.shutdowns)
	assert.Equal(t, 1, w.shutdown)
	// the event bus is gone with the engine
	assert.False(t, core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{}))
}
