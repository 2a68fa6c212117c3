package driver

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

// findMemoryIndex returns the first memory type allowed by typeFilter that has
// all of propertyFlags, or -1.
func (d *Driver) findMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && d.memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

func (d *Driver) allocate(requirements vk.MemoryRequirements, properties vulkan.MemoryPropertyFlags) (vk.DeviceMemory, vk.Result) {
	requirements.Deref()
	index := d.findMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyFlags(properties))
	if index < 0 {
		return nil, vk.ErrorOutOfDeviceMemory
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	res := vk.AllocateMemory(d.device, &info, nil, &memory)
	return memory, res
}

func (d *Driver) CreateBuffer(info vulkan.BufferCreateInfo) (vulkan.Buffer, vulkan.DeviceMemory, vulkan.Result) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.Size),
		Usage:       vk.BufferUsageFlags(info.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(d.device, &createInfo, nil, &buffer); res != vk.Success {
		return 0, 0, vulkan.Result(res)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &requirements)
	memory, res := d.allocate(requirements, info.Memory)
	if res != vk.Success {
		vk.DestroyBuffer(d.device, buffer, nil)
		return 0, 0, vulkan.Result(res)
	}
	if res := vk.BindBufferMemory(d.device, buffer, memory, 0); res != vk.Success {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyBuffer(d.device, buffer, nil)
		return 0, 0, vulkan.Result(res)
	}
	return vulkan.Buffer(d.buffers.acquire(buffer)),
		vulkan.DeviceMemory(d.allocations.acquire(&allocation{memory: memory})),
		vulkan.Success
}

func (d *Driver) DestroyBuffer(buffer vulkan.Buffer) {
	b, err := d.buffers.release(uint64(buffer))
	if err != nil {
		core.LogWarn("destroy buffer: %s", err)
		return
	}
	vk.DestroyBuffer(d.device, b, nil)
}

func (d *Driver) CreateImage(info vulkan.ImageCreateInfo) (vulkan.Image, vulkan.DeviceMemory, vulkan.Result) {
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  info.Extent.Depth,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if res := vk.CreateImage(d.device, &createInfo, nil, &image); res != vk.Success {
		return 0, 0, vulkan.Result(res)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &requirements)
	memory, res := d.allocate(requirements, info.Memory)
	if res != vk.Success {
		vk.DestroyImage(d.device, image, nil)
		return 0, 0, vulkan.Result(res)
	}
	if res := vk.BindImageMemory(d.device, image, memory, 0); res != vk.Success {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyImage(d.device, image, nil)
		return 0, 0, vulkan.Result(res)
	}
	return vulkan.Image(d.images.acquire(image)),
		vulkan.DeviceMemory(d.allocations.acquire(&allocation{memory: memory})),
		vulkan.Success
}

func (d *Driver) DestroyImage(image vulkan.Image) {
	img, err := d.images.release(uint64(image))
	if err != nil {
		core.LogWarn("destroy image: %s", err)
		return
	}
	vk.DestroyImage(d.device, img, nil)
}

func (d *Driver) CreateImageView(info vulkan.ImageViewCreateInfo) (vulkan.ImageView, vulkan.Result) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    d.images.get(uint64(info.Image)),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(info.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(info.Aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.device, &createInfo, nil, &view); res != vk.Success {
		return 0, vulkan.Result(res)
	}
	return vulkan.ImageView(d.views.acquire(view)), vulkan.Success
}

func (d *Driver) DestroyImageView(view vulkan.ImageView) {
	v, err := d.views.release(uint64(view))
	if err != nil {
		core.LogWarn("destroy image view: %s", err)
		return
	}
	vk.DestroyImageView(d.device, v, nil)
}

// MapMemory exposes the first size bytes of a host visible allocation.
func (d *Driver) MapMemory(memory vulkan.DeviceMemory, size uint64) ([]byte, vulkan.Result) {
	a := d.allocations.get(uint64(memory))
	if a == nil {
		return nil, vulkan.ErrorMemoryMapFailed
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(d.device, a.memory, 0, vk.DeviceSize(size), 0, &data); res != vk.Success {
		return nil, vulkan.Result(res)
	}
	a.mapped = true
	return unsafe.Slice((*byte)(data), size), vulkan.Success
}

func (d *Driver) UnmapMemory(memory vulkan.DeviceMemory) {
	a := d.allocations.get(uint64(memory))
	if a == nil || !a.mapped {
		return
	}
	vk.UnmapMemory(d.device, a.memory)
	a.mapped = false
}

func (d *Driver) FreeMemory(memory vulkan.DeviceMemory) {
	a, err := d.allocations.release(uint64(memory))
	if err != nil {
		core.LogWarn("free memory: %s", err)
		return
	}
	if a.mapped {
		vk.UnmapMemory(d.device, a.memory)
	}
	vk.FreeMemory(d.device, a.memory, nil)
}
