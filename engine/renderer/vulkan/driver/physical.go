package driver

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

const portabilitySubset = "VK_KHR_portability_subset"

type queueFamilies struct {
	graphics int32
	present  int32
}

func (q queueFamilies) complete() bool {
	return q.graphics >= 0 && q.present >= 0
}

type candidate struct {
	device     vk.PhysicalDevice
	properties vk.PhysicalDeviceProperties
	families   queueFamilies
	extensions map[string]struct{}
}

// selectPhysicalDevice takes the first device with graphics and present
// queues, the swapchain extension and at least one surface format and
// present mode. Discrete GPUs win over the rest.
func (d *Driver) selectPhysicalDevice() (*candidate, error) {
	var count uint32
	if err := d.checkResult("enumerate physical devices", vk.EnumeratePhysicalDevices(d.instance, &count, nil)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.New("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := d.checkResult("enumerate physical devices", vk.EnumeratePhysicalDevices(d.instance, &count, devices)); err != nil {
		return nil, err
	}

	var selected *candidate
	for _, pd := range devices {
		c, ok := d.meetsRequirements(pd)
		if !ok {
			continue
		}
		if selected == nil || (c.properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu &&
			selected.properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu) {
			selected = c
		}
	}
	if selected == nil {
		return nil, errNoDevice
	}

	core.LogInfo("Selected device: '%s'.", vk.ToString(selected.properties.DeviceName[:]))
	switch selected.properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	api := vk.Version(selected.properties.ApiVersion)
	core.LogInfo("Vulkan API version: %d.%d.%d", api.Major(), api.Minor(), api.Patch())
	return selected, nil
}

func (d *Driver) meetsRequirements(pd vk.PhysicalDevice) (*candidate, bool) {
	c := &candidate{device: pd, families: queueFamilies{graphics: -1, present: -1}}
	vk.GetPhysicalDeviceProperties(pd, &c.properties)
	c.properties.Deref()
	name := vk.ToString(c.properties.DeviceName[:])

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)

	for i := range families {
		families[i].Deref()
		if c.families.graphics < 0 && families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			c.families.graphics = int32(i)
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), d.surface, &supportsPresent); res != vk.Success {
			return nil, false
		}
		// prefer a family that does both
		if supportsPresent == vk.True && (c.families.present < 0 || int32(i) == c.families.graphics) {
			c.families.present = int32(i)
		}
	}
	if !c.families.complete() {
		core.LogInfo("Device '%s' lacks graphics or present queues, skipping.", name)
		return nil, false
	}

	var extCount uint32
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, nil); res != vk.Success {
		return nil, false
	}
	available := make([]vk.ExtensionProperties, extCount)
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, available); res != vk.Success {
		return nil, false
	}
	c.extensions = make(map[string]struct{}, extCount)
	for i := range available {
		available[i].Deref()
		c.extensions[vk.ToString(available[i].ExtensionName[:])] = struct{}{}
	}
	if _, ok := c.extensions[vk.KhrSwapchainExtensionName]; !ok {
		core.LogInfo("Required extension not found: '%s', skipping device '%s'.", vk.KhrSwapchainExtensionName, name)
		return nil, false
	}

	var formatCount, modeCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(pd, d.surface, &formatCount, nil)
	vk.GetPhysicalDeviceSurfacePresentModes(pd, d.surface, &modeCount, nil)
	if formatCount == 0 || modeCount == 0 {
		core.LogInfo("Required swapchain support not present, skipping device '%s'.", name)
		return nil, false
	}

	core.LogDebug("Device '%s' graphics family %d, present family %d", name, c.families.graphics, c.families.present)
	return c, true
}

func (d *Driver) createLogicalDevice(c *candidate) error {
	core.LogInfo("Creating logical device...")

	indices := []uint32{uint32(c.families.graphics)}
	if c.families.present != c.families.graphics {
		indices = append(indices, uint32(c.families.present))
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, family := range indices {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if _, ok := c.extensions[portabilitySubset]; ok {
		core.LogInfo("Adding required extension '%s'.", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	var device vk.Device
	if err := d.checkResult("create device", vk.CreateDevice(c.device, &createInfo, nil, &device)); err != nil {
		return err
	}
	d.device = device
	d.physicalDevice = c.device
	core.LogInfo("Logical device created.")

	vk.GetPhysicalDeviceMemoryProperties(c.device, &d.memory)
	d.memory.Deref()

	var graphics, present vk.Queue
	vk.GetDeviceQueue(d.device, uint32(c.families.graphics), 0, &graphics)
	vk.GetDeviceQueue(d.device, uint32(c.families.present), 0, &present)

	limits := c.properties.Limits
	limits.Deref()
	d.info = vulkan.DeviceInfo{
		Name:                vk.ToString(c.properties.DeviceName[:]),
		GraphicsQueue:       vulkan.Queue(d.queues.acquire(graphics)),
		PresentQueue:        vulkan.Queue(d.queues.acquire(present)),
		GraphicsQueueFamily: uint32(c.families.graphics),
		PresentQueueFamily:  uint32(c.families.present),
		Limits: vulkan.DeviceLimits{
			MaxImageDimension2D:       limits.MaxImageDimension2D,
			MaxBoundDescriptorSets:    limits.MaxBoundDescriptorSets,
			MinUniformBufferAlignment: uint64(limits.MinUniformBufferOffsetAlignment),
			NonCoherentAtomSize:       uint64(limits.NonCoherentAtomSize),
		},
	}
	core.LogInfo("Queues obtained.")
	return nil
}
