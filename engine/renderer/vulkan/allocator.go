package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spaghettifunk/framekit/engine/core"
)

type AllocatedBuffer struct {
	ID     uuid.UUID
	Handle Buffer
	Memory DeviceMemory
	Size   uint64
	Usage  MemoryUsage
}

type AllocatedImage struct {
	ID     uuid.UUID
	Handle Image
	View   ImageView
	Memory DeviceMemory
	Format Format
	Extent Extent3D
	Aspect ImageAspectFlags
}

func (ai *AllocatedImage) Extent2D() Extent2D {
	return Extent2D{Width: ai.Extent.Width, Height: ai.Extent.Height}
}

// ResourceAllocator creates buffers and images and tracks them until they are
// released. Anything still alive is released by Destroy.
type ResourceAllocator struct {
	device    Device
	immediate *ImmediateSubmit
	buffers   map[uuid.UUID]*AllocatedBuffer
	images    map[uuid.UUID]*AllocatedImage
}

func NewResourceAllocator(device Device, immediate *ImmediateSubmit) *ResourceAllocator {
	return &ResourceAllocator{
		device:    device,
		immediate: immediate,
		buffers:   make(map[uuid.UUID]*AllocatedBuffer),
		images:    make(map[uuid.UUID]*AllocatedImage),
	}
}

func (ra *ResourceAllocator) CreateBuffer(size uint64, usage BufferUsageFlags, memoryUsage MemoryUsage) (*AllocatedBuffer, error) {
	if size == 0 {
		return nil, errors.New("buffer size must be greater than zero")
	}
	handle, memory, res := ra.device.CreateBuffer(BufferCreateInfo{
		Size:   size,
		Usage:  usage,
		Memory: memoryUsage.Properties(),
	})
	if res != Success {
		return nil, NewError("create buffer", res)
	}
	b := &AllocatedBuffer{
		ID:     uuid.New(),
		Handle: handle,
		Memory: memory,
		Size:   size,
		Usage:  memoryUsage,
	}
	ra.buffers[b.ID] = b
	return b, nil
}

// DestroyBuffer releases the buffer object, then its memory.
func (ra *ResourceAllocator) DestroyBuffer(b *AllocatedBuffer) error {
	if _, ok := ra.buffers[b.ID]; !ok {
		return errors.Wrapf(core.ErrAlreadyDestroyed, "buffer %s", b.ID)
	}
	delete(ra.buffers, b.ID)
	ra.device.DestroyBuffer(b.Handle)
	ra.device.FreeMemory(b.Memory)
	return nil
}

// Write copies data into a host visible buffer.
func (ra *ResourceAllocator) Write(b *AllocatedBuffer, data []byte) error {
	if b.Usage == MemoryUsageGPUOnly {
		return errors.Newf("buffer %s is not host visible", b.ID)
	}
	if uint64(len(data)) > b.Size {
		return errors.Newf("write of %d bytes into a %d byte buffer", len(data), b.Size)
	}
	mapped, res := ra.device.MapMemory(b.Memory, b.Size)
	if res != Success {
		return NewError("map memory", res)
	}
	copy(mapped, data)
	ra.device.UnmapMemory(b.Memory)
	return nil
}

// CreateImage creates an image, its memory and a view over the given aspect.
func (ra *ResourceAllocator) CreateImage(format Format, extent Extent3D, usage ImageUsageFlags, aspect ImageAspectFlags) (*AllocatedImage, error) {
	handle, memory, res := ra.device.CreateImage(ImageCreateInfo{
		Format: format,
		Extent: extent,
		Usage:  usage,
		Memory: MemoryPropertyDeviceLocal,
	})
	if res != Success {
		return nil, NewError("create image", res)
	}

	view, res := ra.device.CreateImageView(ImageViewCreateInfo{
		Image:  handle,
		Format: format,
		Aspect: aspect,
	})
	if res != Success {
		ra.device.DestroyImage(handle)
		ra.device.FreeMemory(memory)
		return nil, NewError("create image view", res)
	}

	img := &AllocatedImage{
		ID:     uuid.New(),
		Handle: handle,
		View:   view,
		Memory: memory,
		Format: format,
		Extent: extent,
		Aspect: aspect,
	}
	ra.images[img.ID] = img
	return img, nil
}

// DestroyImage releases the view, the image and then its memory.
func (ra *ResourceAllocator) DestroyImage(img *AllocatedImage) error {
	if _, ok := ra.images[img.ID]; !ok {
		return errors.Wrapf(core.ErrAlreadyDestroyed, "image %s", img.ID)
	}
	delete(ra.images, img.ID)
	ra.device.DestroyImageView(img.View)
	ra.device.DestroyImage(img.Handle)
	ra.device.FreeMemory(img.Memory)
	return nil
}

func (ra *ResourceAllocator) staging(data []byte) (*AllocatedBuffer, error) {
	staging, err := ra.CreateBuffer(uint64(len(data)), BufferUsageTransferSrc, MemoryUsageCPUToGPU)
	if err != nil {
		return nil, err
	}
	if err := ra.Write(staging, data); err != nil {
		_ = ra.DestroyBuffer(staging)
		return nil, err
	}
	return staging, nil
}

// UploadBuffer creates a GPU-only buffer holding data. It blocks until the
// copy has completed.
func (ra *ResourceAllocator) UploadBuffer(data []byte, usage BufferUsageFlags) (*AllocatedBuffer, error) {
	staging, err := ra.staging(data)
	if err != nil {
		return nil, err
	}
	defer ra.DestroyBuffer(staging)

	dst, err := ra.CreateBuffer(staging.Size, usage|BufferUsageTransferDst, MemoryUsageGPUOnly)
	if err != nil {
		return nil, err
	}
	err = ra.immediate.Submit(ra.device, func(cmd CommandBuffer) error {
		ra.device.CmdCopyBuffer(cmd, staging.Handle, dst.Handle, staging.Size)
		return nil
	})
	if err != nil {
		_ = ra.DestroyBuffer(dst)
		return nil, err
	}
	return dst, nil
}

// UploadImage creates an image from tightly packed pixel data and leaves it
// in ShaderReadOnly layout. It blocks until the copy has completed.
func (ra *ResourceAllocator) UploadImage(data []byte, format Format, extent Extent3D, usage ImageUsageFlags) (*AllocatedImage, error) {
	staging, err := ra.staging(data)
	if err != nil {
		return nil, err
	}
	defer ra.DestroyBuffer(staging)

	img, err := ra.CreateImage(format, extent, usage|ImageUsageTransferDst, ImageAspectColor)
	if err != nil {
		return nil, err
	}
	err = ra.immediate.Submit(ra.device, func(cmd CommandBuffer) error {
		TransitionImage(ra.device, cmd, img.Handle, ImageLayoutUndefined, ImageLayoutTransferDstOptimal)
		ra.device.CmdCopyBufferToImage(cmd, staging.Handle, img.Handle, extent)
		TransitionImage(ra.device, cmd, img.Handle, ImageLayoutTransferDstOptimal, ImageLayoutShaderReadOnlyOptimal)
		return nil
	})
	if err != nil {
		_ = ra.DestroyImage(img)
		return nil, err
	}
	return img, nil
}

// Live returns the number of buffers and images not yet released.
func (ra *ResourceAllocator) Live() (int, int) {
	return len(ra.buffers), len(ra.images)
}

// Destroy releases everything still alive. The device must be idle.
func (ra *ResourceAllocator) Destroy() {
	for _, b := range ra.buffers {
		core.LogWarn("buffer %s (%d bytes) still alive at shutdown", b.ID, b.Size)
		_ = ra.DestroyBuffer(b)
	}
	for _, img := range ra.images {
		core.LogWarn("image %s (%dx%d) still alive at shutdown", img.ID, img.Extent.Width, img.Extent.Height)
		_ = ra.DestroyImage(img)
	}
}
