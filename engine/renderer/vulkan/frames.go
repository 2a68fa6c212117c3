package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/framekit/engine/core"
)

// FRAMES_IN_FLIGHT bounds how many frames the CPU may record ahead of the GPU.
const FRAMES_IN_FLIGHT = 2

// FrameDescriptorRatios sizes the per-frame descriptor pools.
var FrameDescriptorRatios = []PoolSizeRatio{
	{Type: DescriptorTypeStorageImage, Ratio: 3},
	{Type: DescriptorTypeStorageBuffer, Ratio: 3},
	{Type: DescriptorTypeUniformBuffer, Ratio: 3},
	{Type: DescriptorTypeCombinedImageSampler, Ratio: 4},
}

// FrameData is one slot of the frame ring. Its fence guards reuse of the
// command context and descriptor pools.
type FrameData struct {
	Command            *CommandContext
	RenderFence        *VulkanFence
	SwapchainSemaphore Semaphore
	Descriptors        *DescriptorAllocatorGrowable
	// objects released once this slot's fence has signaled again
	Deletion *DeletionQueue
}

func newFrameData(device Device, queueFamily uint32, descriptorSets uint32) (fd *FrameData, err error) {
	fd = &FrameData{Deletion: NewDeletionQueue()}
	defer func() {
		if err != nil {
			fd.Destroy(device)
			fd = nil
		}
	}()

	if fd.Command, err = NewCommandContext(device, queueFamily); err != nil {
		return
	}
	if fd.RenderFence, err = NewFence(device, true); err != nil {
		return
	}
	if fd.SwapchainSemaphore, err = NewSemaphore(device); err != nil {
		return
	}
	fd.Descriptors, err = NewDescriptorAllocatorGrowable(device, descriptorSets, FrameDescriptorRatios)
	return
}

// Wait blocks until the GPU finished the work last submitted from this slot.
func (fd *FrameData) Wait(device Device, timeout uint64) error {
	return fd.RenderFence.Wait(device, timeout)
}

// Reset prepares the slot for recording: fence, then command buffer, then
// per-frame descriptors, then deferred deletions.
func (fd *FrameData) Reset(device Device) error {
	if err := fd.RenderFence.Reset(device); err != nil {
		return err
	}
	if err := fd.Command.Reset(device); err != nil {
		return err
	}
	if err := fd.Descriptors.ClearPools(device); err != nil {
		return err
	}
	fd.Deletion.Flush()
	return nil
}

// ReplaceSemaphore swaps the acquisition semaphore for a fresh one. Used when
// an acquire signaled it but the frame was abandoned before a submit waited on
// it. The device must be idle.
func (fd *FrameData) ReplaceSemaphore(device Device) error {
	sem, err := NewSemaphore(device)
	if err != nil {
		return err
	}
	device.DestroySemaphore(fd.SwapchainSemaphore)
	fd.SwapchainSemaphore = sem
	return nil
}

func (fd *FrameData) Destroy(device Device) {
	if fd.Deletion != nil {
		fd.Deletion.Flush()
	}
	if fd.Command != nil {
		fd.Command.Destroy(device)
	}
	if fd.RenderFence != nil {
		fd.RenderFence.Destroy(device)
	}
	if fd.SwapchainSemaphore != 0 {
		device.DestroySemaphore(fd.SwapchainSemaphore)
		fd.SwapchainSemaphore = 0
	}
	if fd.Descriptors != nil {
		fd.Descriptors.DestroyPools(device)
	}
}

// FrameRing owns the frame slots for the lifetime of the renderer.
type FrameRing struct {
	frames      [FRAMES_IN_FLIGHT]*FrameData
	frameNumber uint64
	destroyed   bool
}

// NewFrameRing creates every slot. Any failure releases what was created and
// aborts, since the ring size is fixed.
func NewFrameRing(device Device, queueFamily uint32, descriptorSets uint32) (*FrameRing, error) {
	ring := &FrameRing{}
	for i := range ring.frames {
		fd, err := newFrameData(device, queueFamily, descriptorSets)
		if err != nil {
			ring.Destroy(device)
			return nil, errors.Wrapf(err, "frame slot %d", i)
		}
		ring.frames[i] = fd
	}
	core.LogDebug("frame ring created with %d slots", FRAMES_IN_FLIGHT)
	return ring, nil
}

// Current returns the slot for the current frame number.
func (r *FrameRing) Current() *FrameData {
	return r.frames[r.Index()]
}

func (r *FrameRing) Index() int {
	return int(r.frameNumber % FRAMES_IN_FLIGHT)
}

func (r *FrameRing) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *FrameRing) Slot(i int) *FrameData {
	return r.frames[i]
}

func (r *FrameRing) Advance() {
	r.frameNumber++
}

// Destroy releases every slot. The device must be idle.
func (r *FrameRing) Destroy(device Device) {
	if r.destroyed {
		return
	}
	for i, fd := range r.frames {
		if fd != nil {
			fd.Destroy(device)
			r.frames[i] = nil
		}
	}
	r.destroyed = true
}
