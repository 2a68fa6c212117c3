// Package driver implements the frame core's device contract on top of the
// goki/vulkan bindings.
package driver

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

// Window is what the driver needs from the platform layer to present.
type Window interface {
	RequiredInstanceExtensions() []string
	CreateSurface(instance interface{}) (uintptr, error)
}

type Options struct {
	ApplicationName string
	Validation      bool
}

type commandPool struct {
	handle  vk.CommandPool
	buffers []uint64
}

type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []uint64
}

type swapchain struct {
	handle vk.Swapchain
	images []uint64
}

type allocation struct {
	memory vk.DeviceMemory
	mapped bool
}

// Driver owns the instance, surface and logical device. Every object it
// creates is reachable through a handle table until destroyed.
type Driver struct {
	instance       vk.Instance
	debugMessenger vk.DebugReportCallback
	surface        vk.Surface

	physicalDevice vk.PhysicalDevice
	device         vk.Device
	memory         vk.PhysicalDeviceMemoryProperties
	info           vulkan.DeviceInfo

	queues          handleTable[vk.Queue]
	fences          handleTable[vk.Fence]
	semaphores      handleTable[vk.Semaphore]
	commandPools    handleTable[*commandPool]
	commandBuffers  handleTable[vk.CommandBuffer]
	descriptorPools handleTable[*descriptorPool]
	descriptorSets  handleTable[vk.DescriptorSet]
	setLayouts      handleTable[vk.DescriptorSetLayout]
	swapchains      handleTable[*swapchain]
	images          handleTable[vk.Image]
	views           handleTable[vk.ImageView]
	buffers         handleTable[vk.Buffer]
	allocations     handleTable[*allocation]
}

var _ vulkan.Device = (*Driver)(nil)

// New brings up the instance, surface, physical and logical device. On
// failure everything created so far is released again.
func New(window Window, opts Options) (d *Driver, err error) {
	d = &Driver{}
	defer func() {
		if err != nil {
			d.Destroy()
			d = nil
		}
	}()

	if err := d.createInstance(window, opts); err != nil {
		return nil, err
	}
	if opts.Validation {
		if err := d.createDebugMessenger(); err != nil {
			return nil, err
		}
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateSurface(d.instance)
	if err != nil {
		return nil, err
	}
	d.surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	selected, err := d.selectPhysicalDevice()
	if err != nil {
		return nil, err
	}
	if err := d.createLogicalDevice(selected); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) Info() vulkan.DeviceInfo {
	return d.info
}

func (d *Driver) WaitIdle() vulkan.Result {
	return vulkan.Result(vk.DeviceWaitIdle(d.device))
}

// Destroy releases the logical device, then the surface, the debug messenger
// and the instance. Objects still registered in the handle tables at this
// point are leaks and get logged.
func (d *Driver) Destroy() {
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
		d.reportLeaks()
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	d.physicalDevice = nil

	if d.surface != vk.NullSurface {
		core.LogInfo("Destroying Vulkan surface...")
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
	}
	if d.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(d.instance, d.debugMessenger, nil)
		d.debugMessenger = vk.NullDebugReportCallback
	}
	if d.instance != nil {
		core.LogInfo("Destroying Vulkan instance...")
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

func (d *Driver) reportLeaks() {
	leaks := map[string]int{
		"fence":                 d.fences.live(),
		"semaphore":             d.semaphores.live(),
		"command pool":          d.commandPools.live(),
		"descriptor pool":       d.descriptorPools.live(),
		"descriptor set layout": d.setLayouts.live(),
		"swapchain":             d.swapchains.live(),
		"image view":            d.views.live(),
		"buffer":                d.buffers.live(),
		"device memory":         d.allocations.live(),
	}
	for kind, n := range leaks {
		if n > 0 {
			core.LogWarn("%d %s object(s) still alive at device destruction", n, kind)
		}
	}
}

func (d *Driver) checkResult(op string, res vk.Result) error {
	if res == vk.Success {
		return nil
	}
	return vulkan.NewError(op, vulkan.Result(res))
}

var errNoDevice = errors.New("no physical device meets the requirements")
