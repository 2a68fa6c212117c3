package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/framekit/engine/core"
)

type VulkanFence struct {
	Handle Fence
	// IsSignaled is true once the CPU has observed the fence signaled and
	// until it is reset.
	IsSignaled bool
}

func NewFence(device Device, createSignaled bool) (*VulkanFence, error) {
	handle, res := device.CreateFence(createSignaled)
	if res != Success {
		return nil, NewError("create fence", res)
	}
	return &VulkanFence{
		Handle:     handle,
		IsSignaled: createSignaled,
	}, nil
}

// Wait blocks until the fence signals. Timeouts and device loss are returned
// as errors and must not be retried.
func (vf *VulkanFence) Wait(device Device, timeoutNs uint64) error {
	res := device.WaitForFence(vf.Handle, timeoutNs)
	switch res {
	case Success:
		vf.IsSignaled = true
		return nil
	case Timeout:
		core.LogError("fence wait timed out after %dns", timeoutNs)
	case ErrorDeviceLost:
		core.LogError("fence wait - VK_ERROR_DEVICE_LOST.")
	case ErrorOutOfHostMemory, ErrorOutOfDeviceMemory:
		core.LogError("fence wait - %s", ResultString(res, false))
	default:
		core.LogError("fence wait - an unknown error has occurred: %s", ResultString(res, false))
	}
	return NewError("wait for fence", res)
}

// Reset puts the fence back to unsignaled. Resetting a fence that has not
// been waited on is refused.
func (vf *VulkanFence) Reset(device Device) error {
	if !vf.IsSignaled {
		return errors.New("fence reset before it was waited on")
	}
	if res := device.ResetFence(vf.Handle); res != Success {
		return NewError("reset fence", res)
	}
	vf.IsSignaled = false
	return nil
}

func (vf *VulkanFence) Destroy(device Device) {
	if vf.Handle != 0 {
		device.DestroyFence(vf.Handle)
		vf.Handle = 0
	}
	vf.IsSignaled = false
}

func NewSemaphore(device Device) (Semaphore, error) {
	sem, res := device.CreateSemaphore()
	if res != Success {
		return 0, NewError("create semaphore", res)
	}
	return sem, nil
}
