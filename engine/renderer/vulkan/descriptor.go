package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/framekit/engine/core"
)

// MAX_SETS_PER_POOL caps the size of pools created by the growable allocator.
const MAX_SETS_PER_POOL uint32 = 4092

func growCapacity(c uint32) uint32 {
	return min(c+c/2, MAX_SETS_PER_POOL)
}

func createPool(device Device, setCount uint32, ratios []PoolSizeRatio) (DescriptorPool, error) {
	pool, res := device.CreateDescriptorPool(setCount, ratios)
	if res != Success {
		return 0, NewError("create descriptor pool", res)
	}
	return pool, nil
}

// DescriptorAllocator owns one pool sized up front, for long-lived sets.
type DescriptorAllocator struct {
	Pool DescriptorPool
}

func NewDescriptorAllocator(device Device, maxSets uint32, ratios []PoolSizeRatio) (*DescriptorAllocator, error) {
	pool, err := createPool(device, maxSets, ratios)
	if err != nil {
		return nil, err
	}
	return &DescriptorAllocator{Pool: pool}, nil
}

func (da *DescriptorAllocator) Allocate(device Device, layout DescriptorSetLayout) (DescriptorSet, error) {
	set, res := device.AllocateDescriptorSet(da.Pool, layout)
	if res != Success {
		return 0, NewError("allocate descriptor set", res)
	}
	return set, nil
}

// Clear returns every set allocated from the pool.
func (da *DescriptorAllocator) Clear(device Device) error {
	if res := device.ResetDescriptorPool(da.Pool); res != Success {
		return NewError("reset descriptor pool", res)
	}
	return nil
}

func (da *DescriptorAllocator) Destroy(device Device) {
	if da.Pool != 0 {
		device.DestroyDescriptorPool(da.Pool)
		da.Pool = 0
	}
}

// DescriptorAllocatorGrowable hands out sets from a list of pools, creating
// larger pools as the existing ones run out. A pool is in exactly one of the
// ready or full lists; it moves to full when an allocation from it fails and
// back to ready only on ClearPools.
type DescriptorAllocatorGrowable struct {
	ratios []PoolSizeRatio
	ready  []DescriptorPool
	full   []DescriptorPool
	// size of the next pool to be created
	capacity uint32
}

func NewDescriptorAllocatorGrowable(device Device, initialSets uint32, ratios []PoolSizeRatio) (*DescriptorAllocatorGrowable, error) {
	if initialSets == 0 {
		return nil, errors.New("growable descriptor allocator needs at least one set per pool")
	}
	initialSets = min(initialSets, MAX_SETS_PER_POOL)
	pool, err := createPool(device, initialSets, ratios)
	if err != nil {
		return nil, err
	}
	return &DescriptorAllocatorGrowable{
		ratios:   append([]PoolSizeRatio(nil), ratios...),
		ready:    []DescriptorPool{pool},
		capacity: growCapacity(initialSets),
	}, nil
}

func (dg *DescriptorAllocatorGrowable) getPool(device Device) (DescriptorPool, error) {
	if n := len(dg.ready); n > 0 {
		pool := dg.ready[n-1]
		dg.ready = dg.ready[:n-1]
		return pool, nil
	}
	pool, err := createPool(device, dg.capacity, dg.ratios)
	if err != nil {
		return 0, err
	}
	core.LogDebug("descriptor allocator created a pool of %d sets", dg.capacity)
	dg.capacity = growCapacity(dg.capacity)
	return pool, nil
}

// Allocate returns a set for the layout. An exhausted or fragmented pool is
// retired to the full list and the allocation is retried once on another pool.
func (dg *DescriptorAllocatorGrowable) Allocate(device Device, layout DescriptorSetLayout) (DescriptorSet, error) {
	pool, err := dg.getPool(device)
	if err != nil {
		return 0, err
	}

	set, res := device.AllocateDescriptorSet(pool, layout)
	if isPoolExhausted(res) {
		dg.full = append(dg.full, pool)
		if pool, err = dg.getPool(device); err != nil {
			return 0, err
		}
		set, res = device.AllocateDescriptorSet(pool, layout)
	}
	if res != Success {
		if isPoolExhausted(res) {
			dg.full = append(dg.full, pool)
		} else {
			dg.ready = append(dg.ready, pool)
		}
		return 0, NewError("allocate descriptor set", res)
	}

	dg.ready = append(dg.ready, pool)
	return set, nil
}

// ClearPools resets every pool and moves all of them to the ready list.
// Pool objects are kept.
func (dg *DescriptorAllocatorGrowable) ClearPools(device Device) error {
	for _, p := range dg.ready {
		if res := device.ResetDescriptorPool(p); res != Success {
			return NewError("reset descriptor pool", res)
		}
	}
	for len(dg.full) > 0 {
		p := dg.full[len(dg.full)-1]
		if res := device.ResetDescriptorPool(p); res != Success {
			return NewError("reset descriptor pool", res)
		}
		dg.full = dg.full[:len(dg.full)-1]
		dg.ready = append(dg.ready, p)
	}
	return nil
}

func (dg *DescriptorAllocatorGrowable) DestroyPools(device Device) {
	for _, p := range dg.ready {
		device.DestroyDescriptorPool(p)
	}
	dg.ready = nil
	for _, p := range dg.full {
		device.DestroyDescriptorPool(p)
	}
	dg.full = nil
}

// PoolCounts returns the number of ready and full pools.
func (dg *DescriptorAllocatorGrowable) PoolCounts() (int, int) {
	return len(dg.ready), len(dg.full)
}

// NextCapacity is the set count the next created pool will have.
func (dg *DescriptorAllocatorGrowable) NextCapacity() uint32 {
	return dg.capacity
}

type DescriptorLayoutBuilder struct {
	bindings []DescriptorBinding
}

func (b *DescriptorLayoutBuilder) AddBinding(binding uint32, descriptorType DescriptorType) *DescriptorLayoutBuilder {
	b.bindings = append(b.bindings, DescriptorBinding{
		Binding: binding,
		Type:    descriptorType,
		Count:   1,
	})
	return b
}

func (b *DescriptorLayoutBuilder) Clear() {
	b.bindings = b.bindings[:0]
}

// Build creates the layout with every binding visible to the given stages.
func (b *DescriptorLayoutBuilder) Build(device Device, stages ShaderStageFlags) (DescriptorSetLayout, error) {
	bindings := make([]DescriptorBinding, len(b.bindings))
	for i, binding := range b.bindings {
		binding.Stages |= stages
		bindings[i] = binding
	}
	layout, res := device.CreateDescriptorSetLayout(bindings)
	if res != Success {
		return 0, NewError("create descriptor set layout", res)
	}
	return layout, nil
}

// DescriptorWriter batches descriptor writes for a single set update.
type DescriptorWriter struct {
	writes []DescriptorWrite
}

func (w *DescriptorWriter) WriteImage(binding uint32, view ImageView, sampler Sampler, layout ImageLayout, descriptorType DescriptorType) *DescriptorWriter {
	w.writes = append(w.writes, DescriptorWrite{
		Binding: binding,
		Type:    descriptorType,
		Image: &DescriptorImageInfo{
			Sampler: sampler,
			View:    view,
			Layout:  layout,
		},
	})
	return w
}

func (w *DescriptorWriter) WriteBuffer(binding uint32, buffer Buffer, size, offset uint64, descriptorType DescriptorType) *DescriptorWriter {
	w.writes = append(w.writes, DescriptorWrite{
		Binding: binding,
		Type:    descriptorType,
		Buffer: &DescriptorBufferInfo{
			Buffer: buffer,
			Offset: offset,
			Range:  size,
		},
	})
	return w
}

func (w *DescriptorWriter) Clear() {
	w.writes = w.writes[:0]
}

func (w *DescriptorWriter) UpdateSet(device Device, set DescriptorSet) {
	if len(w.writes) == 0 {
		return
	}
	device.UpdateDescriptorSet(set, w.writes)
}
