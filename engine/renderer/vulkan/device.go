package vulkan

// DeviceInfo is read once from the bootstrap collaborator and never
// re-queried while the loop runs.
type DeviceInfo struct {
	Name                string
	GraphicsQueue       Queue
	PresentQueue        Queue
	GraphicsQueueFamily uint32
	PresentQueueFamily  uint32
	Limits              DeviceLimits
}

type DeviceLimits struct {
	MaxImageDimension2D       uint32
	MaxBoundDescriptorSets    uint32
	MinUniformBufferAlignment uint64
	NonCoherentAtomSize       uint64
}

// SurfaceSupport is what the presentation engine accepts for the current surface.
type SurfaceSupport struct {
	MinImageCount  uint32
	MaxImageCount  uint32 // 0 means no limit
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
	Formats        []SurfaceFormat
	PresentModes   []PresentMode
}

type SwapchainCreateInfo struct {
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode
	Usage         ImageUsageFlags
	OldSwapchain  SwapchainKHR
}

// SubmitInfo describes a single command buffer submission. Zero semaphores are skipped.
type SubmitInfo struct {
	WaitSemaphore   Semaphore
	WaitStage       PipelineStageFlags
	CommandBuffer   CommandBuffer
	SignalSemaphore Semaphore
}

type PresentInfo struct {
	Swapchain     SwapchainKHR
	ImageIndex    uint32
	WaitSemaphore Semaphore
}

type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcStage  PipelineStageFlags
	SrcAccess AccessFlags
	DstStage  PipelineStageFlags
	DstAccess AccessFlags
	Aspect    ImageAspectFlags
}

type PoolSizeRatio struct {
	Type  DescriptorType
	Ratio float32
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStageFlags
}

type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// DescriptorWrite updates one binding; exactly one of Image or Buffer is set.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	Image   *DescriptorImageInfo
	Buffer  *DescriptorBufferInfo
}

type BufferCreateInfo struct {
	Size   uint64
	Usage  BufferUsageFlags
	Memory MemoryPropertyFlags
}

type ImageCreateInfo struct {
	Format Format
	Extent Extent3D
	Usage  ImageUsageFlags
	Memory MemoryPropertyFlags
}

type ImageViewCreateInfo struct {
	Image  Image
	Format Format
	Aspect ImageAspectFlags
}

// Device is the logical device and queue context the frame core runs on.
// Implementations return device results untouched; callers turn them into errors.
type Device interface {
	Info() DeviceInfo
	WaitIdle() Result

	CreateFence(signaled bool) (Fence, Result)
	WaitForFence(fence Fence, timeout uint64) Result
	ResetFence(fence Fence) Result
	DestroyFence(fence Fence)

	CreateSemaphore() (Semaphore, Result)
	DestroySemaphore(semaphore Semaphore)

	CreateCommandPool(queueFamily uint32) (CommandPool, Result)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffer(pool CommandPool) (CommandBuffer, Result)
	BeginCommandBuffer(cmd CommandBuffer, oneTimeSubmit bool) Result
	EndCommandBuffer(cmd CommandBuffer) Result
	ResetCommandBuffer(cmd CommandBuffer) Result
	QueueSubmit(queue Queue, submit SubmitInfo, fence Fence) Result

	CmdPipelineBarrier(cmd CommandBuffer, barrier ImageBarrier)
	CmdClearColorImage(cmd CommandBuffer, image Image, layout ImageLayout, color [4]float32)
	CmdBlitImage(cmd CommandBuffer, src Image, srcSize Extent2D, dst Image, dstSize Extent2D, filter Filter)
	CmdCopyBuffer(cmd CommandBuffer, src, dst Buffer, size uint64)
	CmdCopyBufferToImage(cmd CommandBuffer, src Buffer, dst Image, extent Extent3D)

	CreateDescriptorPool(maxSets uint32, ratios []PoolSizeRatio) (DescriptorPool, Result)
	ResetDescriptorPool(pool DescriptorPool) Result
	DestroyDescriptorPool(pool DescriptorPool)
	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, Result)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, Result)
	UpdateDescriptorSet(set DescriptorSet, writes []DescriptorWrite)

	SurfaceSupport() (SurfaceSupport, Result)
	CreateSwapchain(info SwapchainCreateInfo) (SwapchainKHR, Result)
	GetSwapchainImages(swapchain SwapchainKHR) ([]Image, Result)
	AcquireNextImage(swapchain SwapchainKHR, timeout uint64, semaphore Semaphore) (uint32, Result)
	QueuePresent(queue Queue, present PresentInfo) Result
	DestroySwapchain(swapchain SwapchainKHR)

	CreateBuffer(info BufferCreateInfo) (Buffer, DeviceMemory, Result)
	DestroyBuffer(buffer Buffer)
	CreateImage(info ImageCreateInfo) (Image, DeviceMemory, Result)
	DestroyImage(image Image)
	CreateImageView(info ImageViewCreateInfo) (ImageView, Result)
	DestroyImageView(view ImageView)
	MapMemory(memory DeviceMemory, size uint64) ([]byte, Result)
	UnmapMemory(memory DeviceMemory)
	FreeMemory(memory DeviceMemory)

	// Destroy releases the logical device, then the surface, the debug
	// messenger and the instance.
	Destroy()
}
