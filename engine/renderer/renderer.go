package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

// DrawImageFormat is the format of the offscreen image every frame renders into.
const DrawImageFormat = vulkan.FormatR16g16b16a16Sfloat

type Config struct {
	Width  uint32
	Height uint32
	// Size of the offscreen draw image. Zero uses the window size.
	DrawWidth  uint32
	DrawHeight uint32

	SurfaceFormat vulkan.SurfaceFormat
	PresentMode   vulkan.PresentMode

	// Sets in the first pool of each frame's growable allocator.
	FrameDescriptorSets uint32
	// Sets in the fixed allocator for long-lived descriptors.
	GlobalDescriptorSets uint32
	// Fence wait timeout in nanoseconds. Zero waits forever.
	FenceTimeout uint64
}

func DefaultConfig() Config {
	return Config{
		Width:                1280,
		Height:               720,
		SurfaceFormat:        vulkan.DefaultSurfaceFormat,
		PresentMode:          vulkan.PresentModeFifo,
		FrameDescriptorSets:  1000,
		GlobalDescriptorSets: 10,
	}
}

type Stats struct {
	FrameNumber uint64
	Slot        int
	Presented   uint64
	Skipped     uint64
	Recreations uint64
}

// Renderer owns every GPU object of the frame core and drives the per-frame
// state machine. It takes ownership of the device it is created with.
type Renderer struct {
	device vulkan.Device
	info   vulkan.DeviceInfo
	config Config

	swapchain         *vulkan.VulkanSwapchain
	frames            *vulkan.FrameRing
	immediate         *vulkan.ImmediateSubmit
	allocator         *vulkan.ResourceAllocator
	globalDescriptors *vulkan.DescriptorAllocator
	deletion          *vulkan.DeletionQueue

	drawImage            *vulkan.AllocatedImage
	drawImageLayout      vulkan.DescriptorSetLayout
	drawImageDescriptors vulkan.DescriptorSet
	defaults             *DefaultImages

	passes [3][]Pass

	windowExtent  vulkan.Extent2D
	needsRecreate bool
	occluded      bool
	// slot whose acquisition semaphore was signaled by an abandoned acquire
	orphanedSlot int
	destroyed    bool

	stats Stats
}

// New builds the frame core in dependency order. On failure everything built
// so far is torn down, the device included.
func New(device vulkan.Device, config Config, passes ...Pass) (r *Renderer, err error) {
	r = &Renderer{
		device:       device,
		info:         device.Info(),
		config:       config,
		deletion:     vulkan.NewDeletionQueue(),
		windowExtent: vulkan.Extent2D{Width: config.Width, Height: config.Height},
		orphanedSlot: -1,
	}
	defer func() {
		if err != nil {
			r.Shutdown()
			r = nil
		}
	}()

	timeout := config.FenceTimeout
	if timeout == 0 {
		timeout = vulkan.MaxTimeout
	}
	r.config.FenceTimeout = timeout

	if r.swapchain, err = vulkan.NewSwapchain(device, config.Width, config.Height, vulkan.SwapchainPreferences{
		Format:      config.SurfaceFormat,
		PresentMode: config.PresentMode,
	}); err != nil {
		return nil, errors.Wrap(err, "swapchain")
	}
	if r.frames, err = vulkan.NewFrameRing(device, r.info.GraphicsQueueFamily, config.FrameDescriptorSets); err != nil {
		return nil, errors.Wrap(err, "frame ring")
	}
	if r.immediate, err = vulkan.NewImmediateSubmit(device, r.info.GraphicsQueueFamily, r.info.GraphicsQueue, timeout); err != nil {
		return nil, errors.Wrap(err, "immediate submit")
	}
	r.allocator = vulkan.NewResourceAllocator(device, r.immediate)

	if r.globalDescriptors, err = vulkan.NewDescriptorAllocator(device, config.GlobalDescriptorSets, []vulkan.PoolSizeRatio{
		{Type: vulkan.DescriptorTypeStorageImage, Ratio: 1},
	}); err != nil {
		return nil, errors.Wrap(err, "global descriptors")
	}

	if err = r.createDrawImage(); err != nil {
		return nil, errors.Wrap(err, "draw image")
	}
	if r.defaults, err = createDefaultImages(r.allocator, r.deletion); err != nil {
		return nil, errors.Wrap(err, "default images")
	}

	for _, p := range passes {
		r.AddPass(p)
	}

	core.LogInfo("renderer initialized on %s: %d frames in flight", r.info.Name, vulkan.FRAMES_IN_FLIGHT)
	return r, nil
}

func (r *Renderer) createDrawImage() error {
	extent := vulkan.Extent2D{Width: r.config.DrawWidth, Height: r.config.DrawHeight}
	if extent.IsZero() {
		extent = r.windowExtent
	}
	img, err := r.allocator.CreateImage(DrawImageFormat, extent.To3D(),
		vulkan.ImageUsageTransferSrc|vulkan.ImageUsageTransferDst|vulkan.ImageUsageStorage|vulkan.ImageUsageColorAttachment,
		vulkan.ImageAspectColor)
	if err != nil {
		return err
	}
	r.drawImage = img
	r.deletion.Push("draw image", func() { _ = r.allocator.DestroyImage(img) })

	var builder vulkan.DescriptorLayoutBuilder
	layout, err := builder.AddBinding(0, vulkan.DescriptorTypeStorageImage).Build(r.device, vulkan.ShaderStageCompute)
	if err != nil {
		return err
	}
	r.drawImageLayout = layout
	r.deletion.Push("draw image layout", func() { r.device.DestroyDescriptorSetLayout(layout) })

	set, err := r.globalDescriptors.Allocate(r.device, layout)
	if err != nil {
		return err
	}
	r.drawImageDescriptors = set

	var writer vulkan.DescriptorWriter
	writer.WriteImage(0, img.View, 0, vulkan.ImageLayoutGeneral, vulkan.DescriptorTypeStorageImage)
	writer.UpdateSet(r.device, set)
	return nil
}

func (r *Renderer) AddPass(p Pass) {
	r.passes[p.Stage()] = append(r.passes[p.Stage()], p)
	core.LogDebug("render pass `%s` registered", p.Name())
}

// Resize flags the swapchain for recreation on the next DrawFrame.
func (r *Renderer) Resize(width, height uint32) {
	r.windowExtent = vulkan.Extent2D{Width: width, Height: height}
	r.needsRecreate = true
}

// SetOccluded pauses or resumes drawing without touching GPU state.
func (r *Renderer) SetOccluded(occluded bool) {
	r.occluded = occluded
}

// SetPresentMode takes effect with the next swapchain recreation, which is
// requested right away.
func (r *Renderer) SetPresentMode(mode vulkan.PresentMode) {
	if r.swapchain == nil || r.swapchain.PresentMode == mode {
		return
	}
	r.swapchain.SetPresentMode(mode)
	r.needsRecreate = true
}

func (r *Renderer) Stats() Stats {
	s := r.stats
	if r.frames != nil {
		s.FrameNumber = r.frames.FrameNumber()
		s.Slot = r.frames.Index()
	}
	return s
}

func (r *Renderer) Swapchain() *vulkan.VulkanSwapchain {
	return r.swapchain
}

func (r *Renderer) Frames() *vulkan.FrameRing {
	return r.frames
}

func (r *Renderer) DrawImage() *vulkan.AllocatedImage {
	return r.drawImage
}

func (r *Renderer) DrawImageLayout() vulkan.DescriptorSetLayout {
	return r.drawImageLayout
}

func (r *Renderer) Defaults() *DefaultImages {
	return r.defaults
}

func (r *Renderer) Allocator() *vulkan.ResourceAllocator {
	return r.allocator
}

// ImmediateSubmit runs setup work synchronously. It is refused while a frame
// is being recorded, as are allocator uploads.
func (r *Renderer) ImmediateSubmit(fn vulkan.RecordFunc) error {
	if r.destroyed {
		return errors.WithStack(core.ErrNotInitialized)
	}
	return r.immediate.Submit(r.device, fn)
}

// DrawFrame runs one iteration of
// WaitPreviousFrame -> AcquireImage -> RecordCommands -> Submit -> Present -> Advance.
// A stale swapchain skips the rest of the iteration and is rebuilt on the
// next call. Returned errors are fatal.
func (r *Renderer) DrawFrame() (FrameOutcome, error) {
	if r.destroyed {
		return FramePaused, errors.WithStack(core.ErrNotInitialized)
	}
	if r.occluded {
		return FramePaused, nil
	}
	if r.needsRecreate {
		if err := r.recreateSwapchain(); err != nil {
			if errors.Is(err, core.ErrSurfaceZeroExtent) {
				// minimized; try again once the window has a size
				return FramePaused, nil
			}
			return FrameSkipped, err
		}
	}

	// WaitPreviousFrame
	frame := r.frames.Current()
	if err := frame.Wait(r.device, r.config.FenceTimeout); err != nil {
		core.LogError("frame %d: %v", r.frames.FrameNumber(), err)
		return FrameSkipped, errors.Wrap(err, "wait previous frame")
	}

	// AcquireImage
	imageIndex, stale, err := r.swapchain.Acquire(r.device, frame.SwapchainSemaphore)
	if err != nil {
		return FrameSkipped, errors.Wrap(err, "acquire image")
	}
	if stale {
		// NeedsResize
		r.needsRecreate = true
		// a suboptimal acquire signaled the semaphore; nothing will wait on it
		r.orphanedSlot = r.frames.Index()
		r.stats.Skipped++
		return FrameSkipped, nil
	}

	// Only reset once work is certain to be submitted, so a skipped frame
	// never leaves an unsignaled fence behind.
	if err := frame.Reset(r.device); err != nil {
		return FrameSkipped, errors.Wrap(err, "reset frame")
	}

	// RecordCommands
	r.immediate.SetFrameRecording(true)
	err = r.record(frame, imageIndex)
	r.immediate.SetFrameRecording(false)
	if err != nil {
		return FrameSkipped, errors.Wrap(err, "record commands")
	}

	// Submit
	submit := vulkan.SubmitInfo{
		WaitSemaphore:   frame.SwapchainSemaphore,
		WaitStage:       vulkan.PipelineStageAllCommands,
		CommandBuffer:   frame.Command.Handle,
		SignalSemaphore: r.swapchain.RenderSemaphore(imageIndex),
	}
	if res := r.device.QueueSubmit(r.info.GraphicsQueue, submit, frame.RenderFence.Handle); res != vulkan.Success {
		return FrameSkipped, errors.Wrap(vulkan.NewError("queue submit", res), "submit")
	}
	frame.Command.UpdateSubmitted()

	// Present
	stale, err = r.swapchain.Present(r.device, r.info.PresentQueue, imageIndex)

	// Advance; the slot's work is in flight either way.
	r.frames.Advance()

	if err != nil {
		return FrameSkipped, errors.Wrap(err, "present")
	}
	if stale {
		r.needsRecreate = true
		r.stats.Skipped++
		return FrameSkipped, nil
	}
	r.stats.Presented++
	return FramePresented, nil
}

func (r *Renderer) recreateSwapchain() error {
	if r.windowExtent.IsZero() {
		return errors.WithStack(core.ErrSurfaceZeroExtent)
	}
	if res := r.device.WaitIdle(); res != vulkan.Success {
		return vulkan.NewError("wait idle", res)
	}
	if r.orphanedSlot >= 0 {
		if err := r.frames.Slot(r.orphanedSlot).ReplaceSemaphore(r.device); err != nil {
			return err
		}
		r.orphanedSlot = -1
	}
	if err := r.swapchain.Recreate(r.device, r.windowExtent.Width, r.windowExtent.Height); err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}
	r.needsRecreate = false
	r.stats.Recreations++
	return nil
}

func (r *Renderer) record(frame *vulkan.FrameData, imageIndex uint32) error {
	cmd := frame.Command
	if err := cmd.Begin(r.device, true); err != nil {
		return err
	}

	draw := r.drawImage
	swapImage := r.swapchain.Images[imageIndex]
	ctx := &FrameContext{
		Device:               r.device,
		Cmd:                  cmd.Handle,
		FrameNumber:          r.frames.FrameNumber(),
		Slot:                 r.frames.Index(),
		Descriptors:          frame.Descriptors,
		Deletion:             frame.Deletion,
		DrawImage:            draw,
		DrawImageDescriptors: r.drawImageDescriptors,
		DrawExtent: vulkan.Extent2D{
			Width:  min(draw.Extent.Width, r.swapchain.Extent.Width),
			Height: min(draw.Extent.Height, r.swapchain.Extent.Height),
		},
		ImageIndex:      imageIndex,
		SwapchainImage:  swapImage,
		SwapchainView:   r.swapchain.Views[imageIndex],
		SwapchainExtent: r.swapchain.Extent,
	}

	vulkan.TransitionImage(r.device, cmd.Handle, draw.Handle, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutGeneral)
	if err := r.runPasses(StageBackground, ctx); err != nil {
		return err
	}

	vulkan.TransitionImage(r.device, cmd.Handle, draw.Handle, vulkan.ImageLayoutGeneral, vulkan.ImageLayoutColorAttachmentOptimal)
	if err := r.runPasses(StageGeometry, ctx); err != nil {
		return err
	}

	vulkan.TransitionImage(r.device, cmd.Handle, draw.Handle, vulkan.ImageLayoutColorAttachmentOptimal, vulkan.ImageLayoutTransferSrcOptimal)
	vulkan.TransitionImage(r.device, cmd.Handle, swapImage, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal)
	vulkan.BlitImage(r.device, cmd.Handle, draw.Handle, ctx.DrawExtent, swapImage, r.swapchain.Extent)

	vulkan.TransitionImage(r.device, cmd.Handle, swapImage, vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutColorAttachmentOptimal)
	if err := r.runPasses(StageOverlay, ctx); err != nil {
		return err
	}
	vulkan.TransitionImage(r.device, cmd.Handle, swapImage, vulkan.ImageLayoutColorAttachmentOptimal, vulkan.ImageLayoutPresentSrc)

	return cmd.End(r.device)
}

func (r *Renderer) runPasses(stage PassStage, ctx *FrameContext) error {
	for _, p := range r.passes[stage] {
		if err := p.Record(ctx); err != nil {
			return errors.Wrapf(err, "pass `%s`", p.Name())
		}
	}
	return nil
}

// Shutdown waits for the device to go idle and destroys everything in
// dependency order: frame ring, immediate context, renderer-owned images and
// layouts, the resource allocator, descriptor allocators, the swapchain and
// finally the device. Calling it again does nothing.
func (r *Renderer) Shutdown() {
	if r.destroyed {
		return
	}
	r.destroyed = true

	if res := r.device.WaitIdle(); res != vulkan.Success {
		core.LogError("wait idle before shutdown: %s", vulkan.ResultString(res, true))
	}

	if r.frames != nil {
		r.frames.Destroy(r.device)
	}
	if r.immediate != nil {
		r.immediate.Destroy(r.device)
	}
	r.deletion.Flush()
	if r.allocator != nil {
		r.allocator.Destroy()
	}
	if r.globalDescriptors != nil {
		r.globalDescriptors.Destroy(r.device)
	}
	if r.swapchain != nil {
		r.swapchain.Destroy(r.device)
	}
	r.device.Destroy()

	core.LogInfo("renderer shut down after %d frames", r.stats.Presented)
}
