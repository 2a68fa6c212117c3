package renderer_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan/vulkantest"
)

func newRenderer(t *testing.T, passes ...renderer.Pass) (*vulkantest.Device, *renderer.Renderer) {
	t.Helper()
	dev := vulkantest.New()
	cfg := renderer.DefaultConfig()
	cfg.FrameDescriptorSets = 16
	r, err := renderer.New(dev, cfg, passes...)
	require.NoError(t, err)
	return dev, r
}

// frameSubmits are the submissions that waited on an acquisition semaphore.
func frameSubmits(dev *vulkantest.Device) []vulkan.SubmitInfo {
	var out []vulkan.SubmitInfo
	for _, s := range dev.Submits {
		if s.WaitSemaphore != 0 {
			out = append(out, s)
		}
	}
	return out
}

func TestRendererFramesCycleThroughRing(t *testing.T) {
	dev, r := newRenderer(t, renderer.NewClearPass())

	for i := 0; i < 5; i++ {
		outcome, err := r.DrawFrame()
		require.NoError(t, err)
		assert.Equal(t, renderer.FramePresented, outcome)
	}

	stats := r.Stats()
	assert.Equal(t, uint64(5), stats.FrameNumber)
	assert.Equal(t, 1, stats.Slot)
	assert.Equal(t, uint64(5), stats.Presented)

	submits := frameSubmits(dev)
	require.Len(t, submits, 5)
	slots := r.Frames()
	for i, s := range submits {
		frame := slots.Slot(i % vulkan.FRAMES_IN_FLIGHT)
		assert.Equal(t, frame.Command.Handle, s.CommandBuffer, "frame %d", i)
		assert.Equal(t, frame.SwapchainSemaphore, s.WaitSemaphore, "frame %d", i)
		assert.Equal(t, vulkan.PipelineStageAllCommands, s.WaitStage)
	}
	assert.Len(t, dev.Presents, 5)
	assert.Equal(t, 5, dev.Count("CmdClearColorImage"))
	assert.Equal(t, 5, dev.Count("CmdBlitImage"))

	r.Shutdown()
	assert.Empty(t, dev.Violations)
	assert.Empty(t, dev.LeakedAtDestroy)
}

func TestRendererWaitsBeforeReusingSlot(t *testing.T) {
	dev, r := newRenderer(t)
	for i := 0; i < 6; i++ {
		_, err := r.DrawFrame()
		require.NoError(t, err)
	}

	for slot := 0; slot < vulkan.FRAMES_IN_FLIGHT; slot++ {
		frame := r.Frames().Slot(slot)
		fence := uint64(frame.RenderFence.Handle)
		cmd := uint64(frame.Command.Handle)

		var ops []string
		for _, c := range dev.Calls {
			switch {
			case (c.Op == "WaitForFence" || c.Op == "ResetFence") && c.Handle == fence:
				ops = append(ops, c.Op)
			case (c.Op == "ResetCommandBuffer" || c.Op == "QueueSubmit") && c.Handle == cmd:
				ops = append(ops, c.Op)
			}
		}
		cycle := []string{"WaitForFence", "ResetFence", "ResetCommandBuffer", "QueueSubmit"}
		require.Len(t, ops, 3*len(cycle), "slot %d", slot)
		for i, op := range ops {
			assert.Equal(t, cycle[i%len(cycle)], op, "slot %d call %d", slot, i)
		}
	}

	r.Shutdown()
	assert.Empty(t, dev.Violations)
}

func TestRendererSignalsSemaphoreOfAcquiredImage(t *testing.T) {
	dev, r := newRenderer(t)
	dev.ScriptAcquire(
		vulkantest.AcquireStep{Index: 2, Result: vulkan.Success},
		vulkantest.AcquireStep{Index: 0, Result: vulkan.Success},
		vulkantest.AcquireStep{Index: 1, Result: vulkan.Success},
	)

	for i := 0; i < 3; i++ {
		_, err := r.DrawFrame()
		require.NoError(t, err)
	}

	sc := r.Swapchain()
	submits := frameSubmits(dev)
	require.Len(t, submits, 3)
	for i, idx := range []uint32{2, 0, 1} {
		assert.Equal(t, sc.RenderSemaphores[idx], submits[i].SignalSemaphore)
		assert.Equal(t, idx, dev.Presents[i].ImageIndex)
		assert.Equal(t, sc.RenderSemaphores[idx], dev.Presents[i].WaitSemaphore)
	}

	r.Shutdown()
	assert.Empty(t, dev.Violations)
}

func TestRendererOutOfDateAcquireSkipsFrame(t *testing.T) {
	dev, r := newRenderer(t)
	dev.ScriptAcquire(vulkantest.AcquireStep{Result: vulkan.ErrorOutOfDate})

	outcome, err := r.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FrameSkipped, outcome)
	assert.Equal(t, uint64(0), r.Stats().FrameNumber, "a skipped acquire does not advance")
	assert.Empty(t, frameSubmits(dev))
	assert.True(t, r.Frames().Current().RenderFence.IsSignaled, "fence stays signaled")

	outcome, err = r.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FramePresented, outcome)
	assert.Equal(t, 2, dev.Count("CreateSwapchain"))

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Skipped)
	assert.Equal(t, uint64(1), stats.Recreations)

	r.Shutdown()
	assert.Empty(t, dev.Violations)
	assert.Empty(t, dev.LeakedAtDestroy)
}

func TestRendererSuboptimalAcquireReplacesSemaphore(t *testing.T) {
	dev, r := newRenderer(t)
	dev.ScriptAcquire(vulkantest.AcquireStep{Index: 1, Result: vulkan.Suboptimal})
	before := r.Frames().Current().SwapchainSemaphore

	outcome, err := r.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FrameSkipped, outcome)

	outcome, err = r.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FramePresented, outcome)
	assert.NotEqual(t, before, r.Frames().Slot(0).SwapchainSemaphore)
	assert.Contains(t, dev.CallsOf("DestroySemaphore"), uint64(before))

	r.Shutdown()
	assert.Empty(t, dev.Violations)
	assert.Empty(t, dev.LeakedAtDestroy)
}

func TestRendererStalePresentAdvancesAndRecreates(t *testing.T) {
	dev, r := newRenderer(t)
	dev.ScriptPresent(vulkan.ErrorOutOfDate)

	outcome, err := r.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FrameSkipped, outcome)
	assert.Equal(t, uint64(1), r.Stats().FrameNumber, "submitted work still advances the ring")

	for i := 0; i < 3; i++ {
		outcome, err = r.DrawFrame()
		require.NoError(t, err)
		assert.Equal(t, renderer.FramePresented, outcome)
	}
	assert.Equal(t, 2, dev.Count("CreateSwapchain"))

	r.Shutdown()
	assert.Empty(t, dev.Violations)
}

func TestRendererResize(t *testing.T) {
	dev, r := newRenderer(t)
	_, err := r.DrawFrame()
	require.NoError(t, err)

	r.Resize(0, 0)
	outcome, err := r.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FramePaused, outcome)

	r.Resize(800, 600)
	outcome, err = r.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FramePresented, outcome)
	assert.Equal(t, vulkan.Extent2D{Width: 800, Height: 600}, r.Swapchain().Extent)

	// the draw image keeps its size; the blit covers the overlap
	assert.Equal(t, vulkan.Extent2D{Width: 1280, Height: 720}, r.DrawImage().Extent2D())

	r.Shutdown()
	assert.Empty(t, dev.Violations)
}

func TestRendererPresentModeChange(t *testing.T) {
	dev, r := newRenderer(t)
	assert.Equal(t, vulkan.PresentModeFifo, r.Swapchain().PresentMode)

	r.SetPresentMode(vulkan.PresentModeMailbox)
	_, err := r.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, vulkan.PresentModeMailbox, r.Swapchain().PresentMode)
	assert.Equal(t, 2, dev.Count("CreateSwapchain"))

	r.SetPresentMode(vulkan.PresentModeMailbox)
	_, err = r.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, 2, dev.Count("CreateSwapchain"), "same mode does not recreate")

	r.Shutdown()
}

func TestRendererPausedWhileOccluded(t *testing.T) {
	dev, r := newRenderer(t)
	r.SetOccluded(true)

	for i := 0; i < 3; i++ {
		outcome, err := r.DrawFrame()
		require.NoError(t, err)
		assert.Equal(t, renderer.FramePaused, outcome)
	}
	assert.Zero(t, dev.Count("AcquireNextImage"))

	r.SetOccluded(false)
	outcome, err := r.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, renderer.FramePresented, outcome)

	r.Shutdown()
}

func TestRendererFrameBarriers(t *testing.T) {
	dev, r := newRenderer(t)
	_, err := r.DrawFrame()
	require.NoError(t, err)

	draw := r.DrawImage().Handle
	swap := r.Swapchain().Images[0]
	want := []struct {
		image    vulkan.Image
		old, new vulkan.ImageLayout
	}{
		{draw, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutGeneral},
		{draw, vulkan.ImageLayoutGeneral, vulkan.ImageLayoutColorAttachmentOptimal},
		{draw, vulkan.ImageLayoutColorAttachmentOptimal, vulkan.ImageLayoutTransferSrcOptimal},
		{swap, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal},
		{swap, vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutColorAttachmentOptimal},
		{swap, vulkan.ImageLayoutColorAttachmentOptimal, vulkan.ImageLayoutPresentSrc},
	}
	require.GreaterOrEqual(t, len(dev.Barriers), len(want))
	got := dev.Barriers[len(dev.Barriers)-len(want):]
	for i, w := range want {
		assert.Equal(t, w.image, got[i].Image, "barrier %d", i)
		assert.Equal(t, w.old, got[i].OldLayout, "barrier %d", i)
		assert.Equal(t, w.new, got[i].NewLayout, "barrier %d", i)
	}

	r.Shutdown()
}

type immediatePass struct {
	r   *renderer.Renderer
	err error
}

func (p *immediatePass) Name() string              { return "immediate" }
func (p *immediatePass) Stage() renderer.PassStage { return renderer.StageOverlay }
func (p *immediatePass) Record(*renderer.FrameContext) error {
	p.err = p.r.ImmediateSubmit(func(vulkan.CommandBuffer) error { return nil })
	return nil
}

func TestRendererRefusesImmediateSubmitDuringFrame(t *testing.T) {
	dev, r := newRenderer(t)
	pass := &immediatePass{r: r}
	r.AddPass(pass)

	_, err := r.DrawFrame()
	require.NoError(t, err)
	assert.True(t, errors.Is(pass.err, core.ErrImmediateDuringFrame))

	// outside a frame it runs
	require.NoError(t, r.ImmediateSubmit(func(vulkan.CommandBuffer) error { return nil }))

	r.Shutdown()
	assert.Empty(t, dev.Violations)
}

type uploadPass struct {
	r   *renderer.Renderer
	buf *vulkan.AllocatedBuffer
	err error
}

func (p *uploadPass) Name() string              { return "upload" }
func (p *uploadPass) Stage() renderer.PassStage { return renderer.StageBackground }
func (p *uploadPass) Record(*renderer.FrameContext) error {
	p.buf, p.err = p.r.Allocator().UploadBuffer(make([]byte, 64), vulkan.BufferUsageStorage)
	return nil
}

func TestRendererRefusesAllocatorUploadDuringFrame(t *testing.T) {
	dev, r := newRenderer(t)
	pass := &uploadPass{r: r}
	r.AddPass(pass)

	buffersBefore, _ := r.Allocator().Live()
	submitsBefore := len(dev.Submits)

	_, err := r.DrawFrame()
	require.NoError(t, err)
	assert.True(t, errors.Is(pass.err, core.ErrImmediateDuringFrame))
	assert.Nil(t, pass.buf)
	// only the frame itself reached the queue
	assert.Len(t, dev.Submits, submitsBefore+1)
	buffersAfter, _ := r.Allocator().Live()
	assert.Equal(t, buffersBefore, buffersAfter, "staging and destination are released")

	// the same upload works between frames
	buf, err := r.Allocator().UploadBuffer(make([]byte, 64), vulkan.BufferUsageStorage)
	require.NoError(t, err)
	require.NoError(t, r.Allocator().DestroyBuffer(buf))

	r.Shutdown()
	assert.Empty(t, dev.Violations)
}

type descriptorPass struct {
	layout vulkan.DescriptorSetLayout
	sets   []vulkan.DescriptorSet
}

func (p *descriptorPass) Name() string              { return "descriptors" }
func (p *descriptorPass) Stage() renderer.PassStage { return renderer.StageGeometry }
func (p *descriptorPass) Record(ctx *renderer.FrameContext) error {
	for i := 0; i < 20; i++ {
		set, err := ctx.AllocateDescriptorSet(p.layout)
		if err != nil {
			return err
		}
		p.sets = append(p.sets, set)
	}
	return nil
}

func TestRendererPerFrameDescriptorsAreReclaimed(t *testing.T) {
	dev, r := newRenderer(t)
	pass := &descriptorPass{layout: r.DrawImageLayout()}
	r.AddPass(pass)

	for i := 0; i < 4; i++ {
		_, err := r.DrawFrame()
		require.NoError(t, err)
	}
	require.Len(t, pass.sets, 80)

	// 16 then 24 sets hold a frame's 20; the pools are reset, not regrown
	for slot := 0; slot < vulkan.FRAMES_IN_FLIGHT; slot++ {
		ready, full := r.Frames().Slot(slot).Descriptors.PoolCounts()
		assert.Equal(t, 2, ready+full, "slot %d", slot)
	}
	assert.Equal(t, 2*vulkan.FRAMES_IN_FLIGHT+1, dev.LiveCount("descriptor pool"), "frame pools plus the global pool")

	r.Shutdown()
	assert.Empty(t, dev.Violations)
}

func TestRendererFenceTimeoutIsFatal(t *testing.T) {
	dev, r := newRenderer(t)
	dev.FailOn("WaitForFence", 1, vulkan.Timeout)

	_, err := r.DrawFrame()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrFenceTimeout))

	r.Shutdown()
	assert.Empty(t, dev.LeakedAtDestroy)
}

func TestRendererDeviceLostIsFatal(t *testing.T) {
	dev, r := newRenderer(t)
	dev.FailOn("QueueSubmit", 1, vulkan.ErrorDeviceLost)

	_, err := r.DrawFrame()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDeviceLost))

	r.Shutdown()
	assert.Empty(t, dev.LeakedAtDestroy)
}

func TestRendererShutdownReleasesEverything(t *testing.T) {
	dev, r := newRenderer(t)
	for i := 0; i < 3; i++ {
		_, err := r.DrawFrame()
		require.NoError(t, err)
	}

	r.Shutdown()
	r.Shutdown()

	assert.True(t, dev.Destroyed)
	assert.Equal(t, 1, dev.Count("Destroy"))
	assert.Empty(t, dev.LeakedAtDestroy)
	assert.Empty(t, dev.Violations)

	calls := dev.CallsOf("DestroySwapchain")
	assert.Len(t, calls, 1)

	_, err := r.DrawFrame()
	assert.True(t, errors.Is(err, core.ErrNotInitialized))
}

func TestRendererConstructionFailureTearsDown(t *testing.T) {
	dev := vulkantest.New()
	dev.FailOn("CreateImage", 1, vulkan.ErrorOutOfDeviceMemory)

	_, err := renderer.New(dev, renderer.DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draw image")
	assert.True(t, dev.Destroyed)
	assert.Empty(t, dev.LeakedAtDestroy)
	assert.Empty(t, dev.Violations)
}

func TestRendererDefaultImages(t *testing.T) {
	dev, r := newRenderer(t)
	d := r.Defaults()
	require.NotNil(t, d)
	assert.Equal(t, vulkan.Extent3D{Width: 1, Height: 1, Depth: 1}, d.White.Extent)
	assert.Equal(t, vulkan.Extent3D{Width: 16, Height: 16, Depth: 1}, d.Checkerboard.Extent)

	// draw image plus four defaults
	_, images := r.Allocator().Live()
	assert.Equal(t, 5, images)
	assert.Equal(t, 4, dev.Count("CmdCopyBufferToImage"))

	r.Shutdown()
	_, images = r.Allocator().Live()
	assert.Zero(t, images)
}
