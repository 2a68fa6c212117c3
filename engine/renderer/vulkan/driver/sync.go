package driver

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

func (d *Driver) CreateFence(signaled bool) (vulkan.Fence, vulkan.Result) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(d.device, &info, nil, &fence); res != vk.Success {
		return 0, vulkan.Result(res)
	}
	return vulkan.Fence(d.fences.acquire(fence)), vulkan.Success
}

func (d *Driver) WaitForFence(fence vulkan.Fence, timeout uint64) vulkan.Result {
	f := d.fences.get(uint64(fence))
	return vulkan.Result(vk.WaitForFences(d.device, 1, []vk.Fence{f}, vk.True, timeout))
}

func (d *Driver) ResetFence(fence vulkan.Fence) vulkan.Result {
	f := d.fences.get(uint64(fence))
	return vulkan.Result(vk.ResetFences(d.device, 1, []vk.Fence{f}))
}

func (d *Driver) DestroyFence(fence vulkan.Fence) {
	f, err := d.fences.release(uint64(fence))
	if err != nil {
		core.LogWarn("destroy fence: %s", err)
		return
	}
	vk.DestroyFence(d.device, f, nil)
}

func (d *Driver) CreateSemaphore() (vulkan.Semaphore, vulkan.Result) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if res := vk.CreateSemaphore(d.device, &info, nil, &sem); res != vk.Success {
		return 0, vulkan.Result(res)
	}
	return vulkan.Semaphore(d.semaphores.acquire(sem)), vulkan.Success
}

func (d *Driver) DestroySemaphore(semaphore vulkan.Semaphore) {
	s, err := d.semaphores.release(uint64(semaphore))
	if err != nil {
		core.LogWarn("destroy semaphore: %s", err)
		return
	}
	vk.DestroySemaphore(d.device, s, nil)
}
