package driver

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

func (d *Driver) CreateCommandPool(queueFamily uint32) (vulkan.CommandPool, vulkan.Result) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.device, &info, nil, &pool); res != vk.Success {
		return 0, vulkan.Result(res)
	}
	return vulkan.CommandPool(d.commandPools.acquire(&commandPool{handle: pool})), vulkan.Success
}

// DestroyCommandPool also frees every command buffer allocated from the pool.
func (d *Driver) DestroyCommandPool(pool vulkan.CommandPool) {
	p, err := d.commandPools.release(uint64(pool))
	if err != nil {
		core.LogWarn("destroy command pool: %s", err)
		return
	}
	for _, id := range p.buffers {
		d.commandBuffers.release(id)
	}
	vk.DestroyCommandPool(d.device, p.handle, nil)
}

func (d *Driver) AllocateCommandBuffer(pool vulkan.CommandPool) (vulkan.CommandBuffer, vulkan.Result) {
	p := d.commandPools.get(uint64(pool))
	if p == nil {
		return 0, vulkan.ErrorInitializationFailed
	}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.device, &info, buffers); res != vk.Success {
		return 0, vulkan.Result(res)
	}
	id := d.commandBuffers.acquire(buffers[0])
	p.buffers = append(p.buffers, id)
	return vulkan.CommandBuffer(id), vulkan.Success
}

func (d *Driver) BeginCommandBuffer(cmd vulkan.CommandBuffer, oneTimeSubmit bool) vulkan.Result {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		info.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return vulkan.Result(vk.BeginCommandBuffer(d.commandBuffers.get(uint64(cmd)), &info))
}

func (d *Driver) EndCommandBuffer(cmd vulkan.CommandBuffer) vulkan.Result {
	return vulkan.Result(vk.EndCommandBuffer(d.commandBuffers.get(uint64(cmd))))
}

func (d *Driver) ResetCommandBuffer(cmd vulkan.CommandBuffer) vulkan.Result {
	return vulkan.Result(vk.ResetCommandBuffer(d.commandBuffers.get(uint64(cmd)), 0))
}

func (d *Driver) QueueSubmit(queue vulkan.Queue, submit vulkan.SubmitInfo, fence vulkan.Fence) vulkan.Result {
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{d.commandBuffers.get(uint64(submit.CommandBuffer))},
	}
	if submit.WaitSemaphore != 0 {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{d.semaphores.get(uint64(submit.WaitSemaphore))}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(submit.WaitStage)}
	}
	if submit.SignalSemaphore != 0 {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{d.semaphores.get(uint64(submit.SignalSemaphore))}
	}
	var f vk.Fence
	if fence != 0 {
		f = d.fences.get(uint64(fence))
	}
	return vulkan.Result(vk.QueueSubmit(d.queues.get(uint64(queue)), 1, []vk.SubmitInfo{info}, f))
}

func colorSubresource(aspect vk.ImageAspectFlags) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     aspect,
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func colorLayers() vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LayerCount: 1,
	}
}

func (d *Driver) CmdPipelineBarrier(cmd vulkan.CommandBuffer, barrier vulkan.ImageBarrier) {
	b := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(barrier.SrcAccess),
		DstAccessMask:       vk.AccessFlags(barrier.DstAccess),
		OldLayout:           vk.ImageLayout(barrier.OldLayout),
		NewLayout:           vk.ImageLayout(barrier.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               d.images.get(uint64(barrier.Image)),
		SubresourceRange:    colorSubresource(vk.ImageAspectFlags(barrier.Aspect)),
	}
	vk.CmdPipelineBarrier(
		d.commandBuffers.get(uint64(cmd)),
		vk.PipelineStageFlags(barrier.SrcStage), vk.PipelineStageFlags(barrier.DstStage),
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{b},
	)
}

func (d *Driver) CmdClearColorImage(cmd vulkan.CommandBuffer, image vulkan.Image, layout vulkan.ImageLayout, color [4]float32) {
	var clear vk.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&clear)) = color
	ranges := []vk.ImageSubresourceRange{colorSubresource(vk.ImageAspectFlags(vk.ImageAspectColorBit))}
	vk.CmdClearColorImage(d.commandBuffers.get(uint64(cmd)), d.images.get(uint64(image)), vk.ImageLayout(layout), &clear, 1, ranges)
}

// CmdBlitImage copies src into dst, scaling between the two extents. src must
// be in TRANSFER_SRC and dst in TRANSFER_DST layout.
func (d *Driver) CmdBlitImage(cmd vulkan.CommandBuffer, src vulkan.Image, srcSize vulkan.Extent2D, dst vulkan.Image, dstSize vulkan.Extent2D, filter vulkan.Filter) {
	region := vk.ImageBlit{
		SrcSubresource: colorLayers(),
		SrcOffsets: [2]vk.Offset3D{
			{},
			{X: int32(srcSize.Width), Y: int32(srcSize.Height), Z: 1},
		},
		DstSubresource: colorLayers(),
		DstOffsets: [2]vk.Offset3D{
			{},
			{X: int32(dstSize.Width), Y: int32(dstSize.Height), Z: 1},
		},
	}
	vk.CmdBlitImage(
		d.commandBuffers.get(uint64(cmd)),
		d.images.get(uint64(src)), vk.ImageLayoutTransferSrcOptimal,
		d.images.get(uint64(dst)), vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{region},
		vk.Filter(filter),
	)
}

func (d *Driver) CmdCopyBuffer(cmd vulkan.CommandBuffer, src, dst vulkan.Buffer, size uint64) {
	region := vk.BufferCopy{Size: vk.DeviceSize(size)}
	vk.CmdCopyBuffer(d.commandBuffers.get(uint64(cmd)), d.buffers.get(uint64(src)), d.buffers.get(uint64(dst)), 1, []vk.BufferCopy{region})
}

// CmdCopyBufferToImage expects dst in TRANSFER_DST layout.
func (d *Driver) CmdCopyBufferToImage(cmd vulkan.CommandBuffer, src vulkan.Buffer, dst vulkan.Image, extent vulkan.Extent3D) {
	region := vk.BufferImageCopy{
		ImageSubresource: colorLayers(),
		ImageExtent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  extent.Depth,
		},
	}
	vk.CmdCopyBufferToImage(
		d.commandBuffers.get(uint64(cmd)),
		d.buffers.get(uint64(src)),
		d.images.get(uint64(dst)),
		vk.ImageLayoutTransferDstOptimal,
		1, []vk.BufferImageCopy{region},
	)
}
