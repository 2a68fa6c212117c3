package driver

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

// poolSizes turns per-set ratios into absolute descriptor counts. Every type
// gets at least one descriptor.
func poolSizes(maxSets uint32, ratios []vulkan.PoolSizeRatio) []vk.DescriptorPoolSize {
	sizes := make([]vk.DescriptorPoolSize, 0, len(ratios))
	for _, r := range ratios {
		count := uint32(r.Ratio * float32(maxSets))
		if count == 0 {
			count = 1
		}
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(r.Type),
			DescriptorCount: count,
		})
	}
	return sizes
}

func (d *Driver) CreateDescriptorPool(maxSets uint32, ratios []vulkan.PoolSizeRatio) (vulkan.DescriptorPool, vulkan.Result) {
	sizes := poolSizes(maxSets, ratios)
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.device, &info, nil, &pool); res != vk.Success {
		return 0, vulkan.Result(res)
	}
	return vulkan.DescriptorPool(d.descriptorPools.acquire(&descriptorPool{handle: pool})), vulkan.Success
}

// ResetDescriptorPool returns every set allocated from the pool to it; their
// handles become invalid.
func (d *Driver) ResetDescriptorPool(pool vulkan.DescriptorPool) vulkan.Result {
	p := d.descriptorPools.get(uint64(pool))
	if p == nil {
		return vulkan.ErrorUnknown
	}
	d.releaseSets(p)
	return vulkan.Result(vk.ResetDescriptorPool(d.device, p.handle, 0))
}

func (d *Driver) DestroyDescriptorPool(pool vulkan.DescriptorPool) {
	p, err := d.descriptorPools.release(uint64(pool))
	if err != nil {
		core.LogWarn("destroy descriptor pool: %s", err)
		return
	}
	d.releaseSets(p)
	vk.DestroyDescriptorPool(d.device, p.handle, nil)
}

func (d *Driver) releaseSets(p *descriptorPool) {
	for _, id := range p.sets {
		d.descriptorSets.release(id)
	}
	p.sets = p.sets[:0]
}

func (d *Driver) CreateDescriptorSetLayout(bindings []vulkan.DescriptorBinding) (vulkan.DescriptorSetLayout, vulkan.Result) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.device, &info, nil, &layout); res != vk.Success {
		return 0, vulkan.Result(res)
	}
	return vulkan.DescriptorSetLayout(d.setLayouts.acquire(layout)), vulkan.Success
}

func (d *Driver) DestroyDescriptorSetLayout(layout vulkan.DescriptorSetLayout) {
	l, err := d.setLayouts.release(uint64(layout))
	if err != nil {
		core.LogWarn("destroy descriptor set layout: %s", err)
		return
	}
	vk.DestroyDescriptorSetLayout(d.device, l, nil)
}

// AllocateDescriptorSet passes pool exhaustion (OUT_OF_POOL_MEMORY or
// FRAGMENTED_POOL) through untouched so the growable allocator can react.
func (d *Driver) AllocateDescriptorSet(pool vulkan.DescriptorPool, layout vulkan.DescriptorSetLayout) (vulkan.DescriptorSet, vulkan.Result) {
	p := d.descriptorPools.get(uint64(pool))
	if p == nil {
		return 0, vulkan.ErrorOutOfPoolMemory
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.setLayouts.get(uint64(layout))},
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(d.device, &info, &set); res != vk.Success {
		return 0, vulkan.Result(res)
	}
	id := d.descriptorSets.acquire(set)
	p.sets = append(p.sets, id)
	return vulkan.DescriptorSet(id), vulkan.Success
}

func (d *Driver) UpdateDescriptorSet(set vulkan.DescriptorSet, writes []vulkan.DescriptorWrite) {
	dst := d.descriptorSets.get(uint64(set))
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          dst,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorType(w.Type),
		}
		switch {
		case w.Image != nil:
			write.PImageInfo = []vk.DescriptorImageInfo{{
				ImageView:   d.views.get(uint64(w.Image.View)),
				ImageLayout: vk.ImageLayout(w.Image.Layout),
			}}
		case w.Buffer != nil:
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: d.buffers.get(uint64(w.Buffer.Buffer)),
				Offset: vk.DeviceSize(w.Buffer.Offset),
				Range:  vk.DeviceSize(w.Buffer.Range),
			}}
		default:
			core.LogWarn("descriptor write for binding %d has neither image nor buffer", w.Binding)
			continue
		}
		vkWrites = append(vkWrites, write)
	}
	if len(vkWrites) == 0 {
		return
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(vkWrites)), vkWrites, 0, nil)
}
