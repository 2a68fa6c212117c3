package driver

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

func extent2D(e vk.Extent2D) vulkan.Extent2D {
	e.Deref()
	return vulkan.Extent2D{Width: e.Width, Height: e.Height}
}

// SurfaceSupport queries the surface every call; capabilities change with
// the window.
func (d *Driver) SurfaceSupport() (vulkan.SurfaceSupport, vulkan.Result) {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, d.surface, &caps); res != vk.Success {
		return vulkan.SurfaceSupport{}, vulkan.Result(res)
	}
	caps.Deref()
	support := vulkan.SurfaceSupport{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  extent2D(caps.CurrentExtent),
		MinImageExtent: extent2D(caps.MinImageExtent),
		MaxImageExtent: extent2D(caps.MaxImageExtent),
	}

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &formatCount, nil); res != vk.Success {
		return vulkan.SurfaceSupport{}, vulkan.Result(res)
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	if res := vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &formatCount, formats); res != vk.Success {
		return vulkan.SurfaceSupport{}, vulkan.Result(res)
	}
	for i := range formats {
		formats[i].Deref()
		support.Formats = append(support.Formats, vulkan.SurfaceFormat{
			Format:     vulkan.Format(formats[i].Format),
			ColorSpace: vulkan.ColorSpace(formats[i].ColorSpace),
		})
	}

	var modeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.surface, &modeCount, nil); res != vk.Success {
		return vulkan.SurfaceSupport{}, vulkan.Result(res)
	}
	modes := make([]vk.PresentMode, modeCount)
	if res := vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.surface, &modeCount, modes); res != vk.Success {
		return vulkan.SurfaceSupport{}, vulkan.Result(res)
	}
	for _, m := range modes {
		support.PresentModes = append(support.PresentModes, vulkan.PresentMode(m))
	}
	return support, vulkan.Success
}

func (d *Driver) CreateSwapchain(info vulkan.SwapchainCreateInfo) (vulkan.SwapchainKHR, vulkan.Result) {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, d.surface, &caps); res != vk.Success {
		return 0, vulkan.Result(res)
	}
	caps.Deref()

	createInfo := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         d.surface,
		MinImageCount:   info.MinImageCount,
		ImageFormat:     vk.Format(info.Format.Format),
		ImageColorSpace: vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
		},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(info.Usage),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vk.True,
	}
	if d.info.GraphicsQueueFamily != d.info.PresentQueueFamily {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{d.info.GraphicsQueueFamily, d.info.PresentQueueFamily}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}
	if old := d.swapchains.get(uint64(info.OldSwapchain)); old != nil {
		createInfo.OldSwapchain = old.handle
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(d.device, &createInfo, nil, &handle); res != vk.Success {
		return 0, vulkan.Result(res)
	}
	return vulkan.SwapchainKHR(d.swapchains.acquire(&swapchain{handle: handle})), vulkan.Success
}

// GetSwapchainImages returns the same handles on every call; the images
// belong to the swapchain and go away with it.
func (d *Driver) GetSwapchainImages(sc vulkan.SwapchainKHR) ([]vulkan.Image, vulkan.Result) {
	s := d.swapchains.get(uint64(sc))
	if s == nil {
		return nil, vulkan.ErrorSurfaceLost
	}
	if s.images == nil {
		var count uint32
		if res := vk.GetSwapchainImages(d.device, s.handle, &count, nil); res != vk.Success {
			return nil, vulkan.Result(res)
		}
		images := make([]vk.Image, count)
		if res := vk.GetSwapchainImages(d.device, s.handle, &count, images); res != vk.Success {
			return nil, vulkan.Result(res)
		}
		for _, img := range images {
			s.images = append(s.images, d.images.acquire(img))
		}
	}
	out := make([]vulkan.Image, len(s.images))
	for i, id := range s.images {
		out[i] = vulkan.Image(id)
	}
	return out, vulkan.Success
}

func (d *Driver) AcquireNextImage(sc vulkan.SwapchainKHR, timeout uint64, semaphore vulkan.Semaphore) (uint32, vulkan.Result) {
	s := d.swapchains.get(uint64(sc))
	if s == nil {
		return 0, vulkan.ErrorOutOfDate
	}
	var index uint32
	res := vk.AcquireNextImage(d.device, s.handle, timeout, d.semaphores.get(uint64(semaphore)), vk.NullFence, &index)
	return index, vulkan.Result(res)
}

func (d *Driver) QueuePresent(queue vulkan.Queue, present vulkan.PresentInfo) vulkan.Result {
	s := d.swapchains.get(uint64(present.Swapchain))
	if s == nil {
		return vulkan.ErrorOutOfDate
	}
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{s.handle},
		PImageIndices:  []uint32{present.ImageIndex},
	}
	if present.WaitSemaphore != 0 {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{d.semaphores.get(uint64(present.WaitSemaphore))}
	}
	return vulkan.Result(vk.QueuePresent(d.queues.get(uint64(queue)), &info))
}

func (d *Driver) DestroySwapchain(sc vulkan.SwapchainKHR) {
	s, err := d.swapchains.release(uint64(sc))
	if err != nil {
		core.LogWarn("destroy swapchain: %s", err)
		return
	}
	for _, id := range s.images {
		d.images.release(id)
	}
	vk.DestroySwapchain(d.device, s.handle, nil)
}
