// Package vulkantest provides an in-memory vulkan.Device that models fence,
// semaphore, descriptor pool and swapchain behavior closely enough to catch
// ordering mistakes in the frame core.
package vulkantest

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

// Call is one entry of the device call log.
type Call struct {
	Op     string
	Handle uint64
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%d)", c.Op, c.Handle)
}

// AcquireStep scripts one AcquireNextImage result.
type AcquireStep struct {
	Index  uint32
	Result vulkan.Result
}

type failure struct {
	nth int
	res vulkan.Result
}

type fenceState struct {
	signaled bool
	pending  bool
}

type poolState struct {
	capacity uint32
	sets     map[vulkan.DescriptorSet]struct{}
}

type swapchainState struct {
	info     vulkan.SwapchainCreateInfo
	images   []vulkan.Image
	acquired map[uint32]bool
}

// Device is a fake vulkan.Device. The zero value is not usable; call New.
type Device struct {
	mu sync.Mutex

	next uint64
	// live child objects, handle -> kind
	live map[uint64]string

	fences     map[vulkan.Fence]*fenceState
	semaphores map[vulkan.Semaphore]bool
	cmdPools   map[vulkan.CommandPool][]vulkan.CommandBuffer
	inFlight   map[vulkan.CommandBuffer]vulkan.Fence
	pools      map[vulkan.DescriptorPool]*poolState
	sets       map[vulkan.DescriptorSet]vulkan.DescriptorPool
	swapchains map[vulkan.SwapchainKHR]*swapchainState
	memory     map[vulkan.DeviceMemory][]byte

	failures map[string][]failure
	counts   map[string]int

	acquireScript []AcquireStep
	presentScript []vulkan.Result
	nextImage     uint32

	info    vulkan.DeviceInfo
	support vulkan.SurfaceSupport

	Calls          []Call
	Submits        []vulkan.SubmitInfo
	Presents       []vulkan.PresentInfo
	Barriers       []vulkan.ImageBarrier
	Views          []vulkan.ImageViewCreateInfo
	PoolCapacities []uint32
	// API misuse observed while running, in order.
	Violations []string
	// Child objects still alive when Destroy was called.
	LeakedAtDestroy []string
	Destroyed       bool
}

func New() *Device {
	d := &Device{
		next:       100,
		live:       make(map[uint64]string),
		fences:     make(map[vulkan.Fence]*fenceState),
		semaphores: make(map[vulkan.Semaphore]bool),
		cmdPools:   make(map[vulkan.CommandPool][]vulkan.CommandBuffer),
		inFlight:   make(map[vulkan.CommandBuffer]vulkan.Fence),
		pools:      make(map[vulkan.DescriptorPool]*poolState),
		sets:       make(map[vulkan.DescriptorSet]vulkan.DescriptorPool),
		swapchains: make(map[vulkan.SwapchainKHR]*swapchainState),
		memory:     make(map[vulkan.DeviceMemory][]byte),
		failures:   make(map[string][]failure),
		counts:     make(map[string]int),
	}
	d.info = vulkan.DeviceInfo{
		Name:                "fake device",
		GraphicsQueue:       vulkan.Queue(1),
		PresentQueue:        vulkan.Queue(1),
		GraphicsQueueFamily: 0,
		PresentQueueFamily:  0,
		Limits: vulkan.DeviceLimits{
			MaxImageDimension2D:       16384,
			MaxBoundDescriptorSets:    8,
			MinUniformBufferAlignment: 256,
			NonCoherentAtomSize:       64,
		},
	}
	d.support = vulkan.SurfaceSupport{
		MinImageCount:  2,
		MaxImageCount:  3,
		CurrentExtent:  vulkan.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vulkan.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vulkan.Extent2D{Width: 4096, Height: 4096},
		Formats: []vulkan.SurfaceFormat{
			{Format: vulkan.FormatB8g8r8a8Srgb, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
			{Format: vulkan.FormatB8g8r8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vulkan.PresentMode{vulkan.PresentModeFifo, vulkan.PresentModeMailbox},
	}
	return d
}

// SetSurfaceSupport replaces what the surface reports.
func (d *Device) SetSurfaceSupport(s vulkan.SurfaceSupport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.support = s
}

// FailOn makes the nth (1-based) call of op return res.
func (d *Device) FailOn(op string, nth int, res vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = append(d.failures[op], failure{nth: d.counts[op] + nth, res: res})
}

// ScriptAcquire queues results for the following AcquireNextImage calls.
func (d *Device) ScriptAcquire(steps ...AcquireStep) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireScript = append(d.acquireScript, steps...)
}

// ScriptPresent queues results for the following QueuePresent calls.
func (d *Device) ScriptPresent(results ...vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentScript = append(d.presentScript, results...)
}

// CallsOf returns the handles passed to every call of op, in order.
func (d *Device) CallsOf(op string) []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []uint64
	for _, c := range d.Calls {
		if c.Op == op {
			out = append(out, c.Handle)
		}
	}
	return out
}

// Count returns how many times op was called.
func (d *Device) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[op]
}

// LiveCount returns the number of live child objects of the given kind, or
// of every kind when kind is empty.
func (d *Device) LiveCount(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if kind == "" || k == kind {
			n++
		}
	}
	return n
}

// PoolOf returns the descriptor pool a live set was allocated from.
func (d *Device) PoolOf(set vulkan.DescriptorSet) (vulkan.DescriptorPool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.sets[set]
	return p, ok
}

// FenceSignaled reports the device-side state of a fence.
func (d *Device) FenceSignaled(f vulkan.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	fs, ok := d.fences[f]
	return ok && (fs.signaled || fs.pending)
}

// call logs op and returns an injected failure, if one is due. Caller holds mu.
func (d *Device) call(op string, handle uint64) (vulkan.Result, bool) {
	d.Calls = append(d.Calls, Call{Op: op, Handle: handle})
	d.counts[op]++
	for i, f := range d.failures[op] {
		if f.nth == d.counts[op] {
			d.failures[op] = append(d.failures[op][:i], d.failures[op][i+1:]...)
			return f.res, true
		}
	}
	return vulkan.Success, false
}

func (d *Device) violation(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) create(kind string) uint64 {
	if d.Destroyed {
		d.violation("create %s after device destroy", kind)
	}
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *Device) release(kind string, handle uint64) bool {
	if handle == 0 {
		return false
	}
	if d.Destroyed {
		d.violation("destroy %s %d after device destroy", kind, handle)
	}
	if k, ok := d.live[handle]; !ok || k != kind {
		d.violation("destroy of unknown %s %d", kind, handle)
		return false
	}
	delete(d.live, handle)
	return true
}

func (d *Device) Info() vulkan.DeviceInfo {
	return d.info
}

func (d *Device) WaitIdle() vulkan.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("WaitIdle", 0); failed {
		return res
	}
	// all submitted work completes
	for _, fs := range d.fences {
		if fs.pending {
			fs.pending = false
			fs.signaled = true
		}
	}
	d.inFlight = make(map[vulkan.CommandBuffer]vulkan.Fence)
	return vulkan.Success
}

func (d *Device) CreateFence(signaled bool) (vulkan.Fence, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("CreateFence", 0); failed {
		return 0, res
	}
	f := vulkan.Fence(d.create("fence"))
	d.fences[f] = &fenceState{signaled: signaled}
	return f, vulkan.Success
}

// WaitForFence completes pending work instantly. Waiting on a fence with no
// pending submission that is not signaled would hang a real device; the fake
// reports Timeout instead.
func (d *Device) WaitForFence(fence vulkan.Fence, timeout uint64) vulkan.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("WaitForFence", uint64(fence)); failed {
		return res
	}
	fs, ok := d.fences[fence]
	if !ok {
		d.violation("wait on unknown fence %d", fence)
		return vulkan.ErrorDeviceLost
	}
	if fs.pending {
		fs.pending = false
		fs.signaled = true
	}
	if !fs.signaled {
		d.violation("wait on fence %d that will never signal", fence)
		return vulkan.Timeout
	}
	for cmd, f := range d.inFlight {
		if f == fence {
			delete(d.inFlight, cmd)
		}
	}
	return vulkan.Success
}

func (d *Device) ResetFence(fence vulkan.Fence) vulkan.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("ResetFence", uint64(fence)); failed {
		return res
	}
	fs, ok := d.fences[fence]
	if !ok {
		d.violation("reset of unknown fence %d", fence)
		return vulkan.ErrorDeviceLost
	}
	if fs.pending {
		d.violation("reset of fence %d still in use by a submission", fence)
	}
	fs.signaled = false
	fs.pending = false
	return vulkan.Success
}

func (d *Device) DestroyFence(fence vulkan.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyFence", uint64(fence))
	if d.release("fence", uint64(fence)) {
		if d.fences[fence].pending {
			d.violation("destroy of fence %d still in use", fence)
		}
		delete(d.fences, fence)
	}
}

func (d *Device) CreateSemaphore() (vulkan.Semaphore, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("CreateSemaphore", 0); failed {
		return 0, res
	}
	s := vulkan.Semaphore(d.create("semaphore"))
	d.semaphores[s] = false
	return s, vulkan.Success
}

func (d *Device) DestroySemaphore(semaphore vulkan.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroySemaphore", uint64(semaphore))
	if d.release("semaphore", uint64(semaphore)) {
		delete(d.semaphores, semaphore)
	}
}

func (d *Device) CreateCommandPool(queueFamily uint32) (vulkan.CommandPool, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("CreateCommandPool", 0); failed {
		return 0, res
	}
	p := vulkan.CommandPool(d.create("command pool"))
	d.cmdPools[p] = nil
	return p, vulkan.Success
}

func (d *Device) DestroyCommandPool(pool vulkan.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyCommandPool", uint64(pool))
	if d.release("command pool", uint64(pool)) {
		for _, cmd := range d.cmdPools[pool] {
			if _, busy := d.inFlight[cmd]; busy {
				d.violation("destroy of command pool %d with buffer %d in flight", pool, cmd)
			}
		}
		delete(d.cmdPools, pool)
	}
}

func (d *Device) AllocateCommandBuffer(pool vulkan.CommandPool) (vulkan.CommandBuffer, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("AllocateCommandBuffer", uint64(pool)); failed {
		return 0, res
	}
	if _, ok := d.cmdPools[pool]; !ok {
		d.violation("allocate from unknown command pool %d", pool)
		return 0, vulkan.ErrorOutOfDeviceMemory
	}
	d.next++
	cmd := vulkan.CommandBuffer(d.next)
	d.cmdPools[pool] = append(d.cmdPools[pool], cmd)
	return cmd, vulkan.Success
}

func (d *Device) BeginCommandBuffer(cmd vulkan.CommandBuffer, oneTimeSubmit bool) vulkan.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("BeginCommandBuffer", uint64(cmd)); failed {
		return res
	}
	if _, busy := d.inFlight[cmd]; busy {
		d.violation("begin of command buffer %d still in flight", cmd)
	}
	return vulkan.Success
}

func (d *Device) EndCommandBuffer(cmd vulkan.CommandBuffer) vulkan.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, _ := d.call("EndCommandBuffer", uint64(cmd))
	return res
}

func (d *Device) ResetCommandBuffer(cmd vulkan.CommandBuffer) vulkan.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("ResetCommandBuffer", uint64(cmd)); failed {
		return res
	}
	if _, busy := d.inFlight[cmd]; busy {
		d.violation("reset of command buffer %d still in flight", cmd)
	}
	return vulkan.Success
}

func (d *Device) QueueSubmit(queue vulkan.Queue, submit vulkan.SubmitInfo, fence vulkan.Fence) vulkan.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("QueueSubmit", uint64(submit.CommandBuffer)); failed {
		return res
	}
	if submit.WaitSemaphore != 0 {
		if !d.semaphores[submit.WaitSemaphore] {
			d.violation("submit waits on unsignaled semaphore %d", submit.WaitSemaphore)
		}
		d.semaphores[submit.WaitSemaphore] = false
	}
	if submit.SignalSemaphore != 0 {
		if d.semaphores[submit.SignalSemaphore] {
			d.violation("submit signals already signaled semaphore %d", submit.SignalSemaphore)
		}
		d.semaphores[submit.SignalSemaphore] = true
	}
	if fence != 0 {
		fs, ok := d.fences[fence]
		if !ok {
			d.violation("submit with unknown fence %d", fence)
		} else {
			if fs.signaled || fs.pending {
				d.violation("submit with fence %d that was not reset", fence)
			}
			fs.pending = true
		}
		d.inFlight[submit.CommandBuffer] = fence
	}
	d.Submits = append(d.Submits, submit)
	return vulkan.Success
}

func (d *Device) CmdPipelineBarrier(cmd vulkan.CommandBuffer, barrier vulkan.ImageBarrier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdPipelineBarrier", uint64(barrier.Image))
	d.Barriers = append(d.Barriers, barrier)
}

func (d *Device) CmdClearColorImage(cmd vulkan.CommandBuffer, image vulkan.Image, layout vulkan.ImageLayout, color [4]float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdClearColorImage", uint64(image))
}

func (d *Device) CmdBlitImage(cmd vulkan.CommandBuffer, src vulkan.Image, srcSize vulkan.Extent2D, dst vulkan.Image, dstSize vulkan.Extent2D, filter vulkan.Filter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdBlitImage", uint64(dst))
}

func (d *Device) CmdCopyBuffer(cmd vulkan.CommandBuffer, src, dst vulkan.Buffer, size uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdCopyBuffer", uint64(dst))
}

func (d *Device) CmdCopyBufferToImage(cmd vulkan.CommandBuffer, src vulkan.Buffer, dst vulkan.Image, extent vulkan.Extent3D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CmdCopyBufferToImage", uint64(dst))
}

func (d *Device) CreateDescriptorPool(maxSets uint32, ratios []vulkan.PoolSizeRatio) (vulkan.DescriptorPool, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("CreateDescriptorPool", 0); failed {
		return 0, res
	}
	p := vulkan.DescriptorPool(d.create("descriptor pool"))
	d.pools[p] = &poolState{capacity: maxSets, sets: make(map[vulkan.DescriptorSet]struct{})}
	d.PoolCapacities = append(d.PoolCapacities, maxSets)
	return p, vulkan.Success
}

func (d *Device) ResetDescriptorPool(pool vulkan.DescriptorPool) vulkan.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("ResetDescriptorPool", uint64(pool)); failed {
		return res
	}
	ps, ok := d.pools[pool]
	if !ok {
		d.violation("reset of unknown descriptor pool %d", pool)
		return vulkan.ErrorUnknown
	}
	for set := range ps.sets {
		delete(d.sets, set)
	}
	ps.sets = make(map[vulkan.DescriptorSet]struct{})
	return vulkan.Success
}

func (d *Device) DestroyDescriptorPool(pool vulkan.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyDescriptorPool", uint64(pool))
	if d.release("descriptor pool", uint64(pool)) {
		for set := range d.pools[pool].sets {
			delete(d.sets, set)
		}
		delete(d.pools, pool)
	}
}

func (d *Device) CreateDescriptorSetLayout(bindings []vulkan.DescriptorBinding) (vulkan.DescriptorSetLayout, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("CreateDescriptorSetLayout", 0); failed {
		return 0, res
	}
	return vulkan.DescriptorSetLayout(d.create("descriptor set layout")), vulkan.Success
}

func (d *Device) DestroyDescriptorSetLayout(layout vulkan.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyDescriptorSetLayout", uint64(layout))
	d.release("descriptor set layout", uint64(layout))
}

// AllocateDescriptorSet fails with ErrorOutOfPoolMemory once a pool holds
// as many sets as it was created for.
func (d *Device) AllocateDescriptorSet(pool vulkan.DescriptorPool, layout vulkan.DescriptorSetLayout) (vulkan.DescriptorSet, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("AllocateDescriptorSet", uint64(pool)); failed {
		return 0, res
	}
	ps, ok := d.pools[pool]
	if !ok {
		d.violation("allocate from unknown descriptor pool %d", pool)
		return 0, vulkan.ErrorUnknown
	}
	if uint32(len(ps.sets)) >= ps.capacity {
		return 0, vulkan.ErrorOutOfPoolMemory
	}
	d.next++
	set := vulkan.DescriptorSet(d.next)
	ps.sets[set] = struct{}{}
	d.sets[set] = pool
	return set, vulkan.Success
}

func (d *Device) UpdateDescriptorSet(set vulkan.DescriptorSet, writes []vulkan.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("UpdateDescriptorSet", uint64(set))
	if _, ok := d.sets[set]; !ok {
		d.violation("update of unknown descriptor set %d", set)
	}
}

func (d *Device) SurfaceSupport() (vulkan.SurfaceSupport, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("SurfaceSupport", 0); failed {
		return vulkan.SurfaceSupport{}, res
	}
	return d.support, vulkan.Success
}

func (d *Device) CreateSwapchain(info vulkan.SwapchainCreateInfo) (vulkan.SwapchainKHR, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("CreateSwapchain", 0); failed {
		return 0, res
	}
	sc := vulkan.SwapchainKHR(d.create("swapchain"))
	state := &swapchainState{info: info, acquired: make(map[uint32]bool)}
	for i := uint32(0); i < info.MinImageCount; i++ {
		d.next++
		state.images = append(state.images, vulkan.Image(d.next))
	}
	d.swapchains[sc] = state
	d.nextImage = 0
	return sc, vulkan.Success
}

func (d *Device) GetSwapchainImages(swapchain vulkan.SwapchainKHR) ([]vulkan.Image, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("GetSwapchainImages", uint64(swapchain)); failed {
		return nil, res
	}
	state, ok := d.swapchains[swapchain]
	if !ok {
		d.violation("images of unknown swapchain %d", swapchain)
		return nil, vulkan.ErrorSurfaceLost
	}
	return append([]vulkan.Image(nil), state.images...), vulkan.Success
}

// AcquireNextImage returns scripted steps first, then images in round robin.
func (d *Device) AcquireNextImage(swapchain vulkan.SwapchainKHR, timeout uint64, semaphore vulkan.Semaphore) (uint32, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("AcquireNextImage", uint64(swapchain)); failed {
		return 0, res
	}
	state, ok := d.swapchains[swapchain]
	if !ok {
		d.violation("acquire from unknown swapchain %d", swapchain)
		return 0, vulkan.ErrorSurfaceLost
	}

	step := AcquireStep{Index: d.nextImage % uint32(len(state.images)), Result: vulkan.Success}
	if len(d.acquireScript) > 0 {
		step = d.acquireScript[0]
		d.acquireScript = d.acquireScript[1:]
	} else {
		d.nextImage++
	}

	if step.Result == vulkan.Success || step.Result == vulkan.Suboptimal {
		if d.semaphores[semaphore] {
			d.violation("acquire signals already signaled semaphore %d", semaphore)
		}
		d.semaphores[semaphore] = true
		state.acquired[step.Index] = true
	}
	return step.Index, step.Result
}

func (d *Device) QueuePresent(queue vulkan.Queue, present vulkan.PresentInfo) vulkan.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("QueuePresent", uint64(present.Swapchain)); failed {
		return res
	}
	state, ok := d.swapchains[present.Swapchain]
	if !ok {
		d.violation("present to unknown swapchain %d", present.Swapchain)
		return vulkan.ErrorSurfaceLost
	}
	if !state.acquired[present.ImageIndex] {
		d.violation("present of image %d that was not acquired", present.ImageIndex)
	}
	delete(state.acquired, present.ImageIndex)
	if present.WaitSemaphore != 0 {
		if !d.semaphores[present.WaitSemaphore] {
			d.violation("present waits on unsignaled semaphore %d", present.WaitSemaphore)
		}
		d.semaphores[present.WaitSemaphore] = false
	}
	d.Presents = append(d.Presents, present)

	if len(d.presentScript) > 0 {
		res := d.presentScript[0]
		d.presentScript = d.presentScript[1:]
		return res
	}
	return vulkan.Success
}

func (d *Device) DestroySwapchain(swapchain vulkan.SwapchainKHR) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroySwapchain", uint64(swapchain))
	if d.release("swapchain", uint64(swapchain)) {
		delete(d.swapchains, swapchain)
	}
}

func (d *Device) CreateBuffer(info vulkan.BufferCreateInfo) (vulkan.Buffer, vulkan.DeviceMemory, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("CreateBuffer", 0); failed {
		return 0, 0, res
	}
	b := vulkan.Buffer(d.create("buffer"))
	mem := vulkan.DeviceMemory(d.create("memory"))
	d.memory[mem] = make([]byte, info.Size)
	return b, mem, vulkan.Success
}

func (d *Device) DestroyBuffer(buffer vulkan.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyBuffer", uint64(buffer))
	d.release("buffer", uint64(buffer))
}

func (d *Device) CreateImage(info vulkan.ImageCreateInfo) (vulkan.Image, vulkan.DeviceMemory, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("CreateImage", 0); failed {
		return 0, 0, res
	}
	img := vulkan.Image(d.create("image"))
	mem := vulkan.DeviceMemory(d.create("memory"))
	d.memory[mem] = nil
	return img, mem, vulkan.Success
}

func (d *Device) DestroyImage(image vulkan.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyImage", uint64(image))
	d.release("image", uint64(image))
}

func (d *Device) CreateImageView(info vulkan.ImageViewCreateInfo) (vulkan.ImageView, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("CreateImageView", uint64(info.Image)); failed {
		return 0, res
	}
	d.Views = append(d.Views, info)
	return vulkan.ImageView(d.create("image view")), vulkan.Success
}

func (d *Device) DestroyImageView(view vulkan.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyImageView", uint64(view))
	d.release("image view", uint64(view))
}

func (d *Device) MapMemory(memory vulkan.DeviceMemory, size uint64) ([]byte, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, failed := d.call("MapMemory", uint64(memory)); failed {
		return nil, res
	}
	buf, ok := d.memory[memory]
	if !ok || uint64(len(buf)) < size {
		return nil, vulkan.ErrorMemoryMapFailed
	}
	return buf[:size], vulkan.Success
}

func (d *Device) UnmapMemory(memory vulkan.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("UnmapMemory", uint64(memory))
}

// MemoryContents returns the bytes last written to a mapped allocation.
func (d *Device) MemoryContents(memory vulkan.DeviceMemory) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.memory[memory]...)
}

func (d *Device) FreeMemory(memory vulkan.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("FreeMemory", uint64(memory))
	if d.release("memory", uint64(memory)) {
		delete(d.memory, memory)
	}
}

// Destroy records every child object still alive as a leak.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("Destroy", 0)
	if d.Destroyed {
		d.violation("device destroyed twice")
		return
	}
	handles := make([]uint64, 0, len(d.live))
	for h := range d.live {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		d.LeakedAtDestroy = append(d.LeakedAtDestroy, fmt.Sprintf("%s %d", d.live[h], h))
	}
	if len(d.LeakedAtDestroy) > 0 {
		d.violation("device destroyed with %d live children", len(d.LeakedAtDestroy))
	}
	d.Destroyed = true
}

var _ vulkan.Device = (*Device)(nil)
