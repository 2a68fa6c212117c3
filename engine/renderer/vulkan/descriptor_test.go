package vulkan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan/vulkantest"
)

func newLayout(t *testing.T, dev vulkan.Device) vulkan.DescriptorSetLayout {
	t.Helper()
	var b vulkan.DescriptorLayoutBuilder
	layout, err := b.AddBinding(0, vulkan.DescriptorTypeStorageImage).Build(dev, vulkan.ShaderStageCompute)
	require.NoError(t, err)
	return layout
}

func TestGrowableCapacitySequence(t *testing.T) {
	dev := vulkantest.New()
	layout := newLayout(t, dev)

	alloc, err := vulkan.NewDescriptorAllocatorGrowable(dev, 10, vulkan.FrameDescriptorRatios)
	require.NoError(t, err)
	assert.Equal(t, uint32(15), alloc.NextCapacity())

	for len(dev.PoolCapacities) < 20 {
		_, err := alloc.Allocate(dev, layout)
		require.NoError(t, err)
	}

	expected := []uint32{10, 15, 22, 33, 49, 73, 109, 163, 244, 366, 549, 823, 1234, 1851, 2776, 4092, 4092, 4092, 4092, 4092}
	assert.Equal(t, expected, dev.PoolCapacities)
}

func TestGrowableNeverLosesSets(t *testing.T) {
	dev := vulkantest.New()
	layout := newLayout(t, dev)

	alloc, err := vulkan.NewDescriptorAllocatorGrowable(dev, 4, vulkan.FrameDescriptorRatios)
	require.NoError(t, err)

	seen := make(map[vulkan.DescriptorSet]bool)
	for i := 0; i < 200; i++ {
		set, err := alloc.Allocate(dev, layout)
		require.NoError(t, err)
		require.NotZero(t, set)
		require.False(t, seen[set], "set %d handed out twice", set)
		seen[set] = true

		_, ok := dev.PoolOf(set)
		require.True(t, ok, "set %d is not backed by a live pool", set)

		ready, full := alloc.PoolCounts()
		require.Equal(t, len(dev.PoolCapacities), ready+full, "every pool is in exactly one list")
	}
	assert.Empty(t, dev.Violations)
}

func TestGrowableClearPoolsReusesPools(t *testing.T) {
	dev := vulkantest.New()
	layout := newLayout(t, dev)

	alloc, err := vulkan.NewDescriptorAllocatorGrowable(dev, 2, vulkan.FrameDescriptorRatios)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := alloc.Allocate(dev, layout)
		require.NoError(t, err)
	}
	ready, full := alloc.PoolCounts()
	require.Positive(t, full)
	pools := ready + full

	require.NoError(t, alloc.ClearPools(dev))
	ready, full = alloc.PoolCounts()
	assert.Equal(t, pools, ready)
	assert.Zero(t, full)
	assert.Equal(t, pools, dev.LiveCount("descriptor pool"), "pools are reset, not destroyed")

	created := len(dev.PoolCapacities)
	for i := 0; i < 6; i++ {
		_, err := alloc.Allocate(dev, layout)
		require.NoError(t, err)
	}
	assert.Len(t, dev.PoolCapacities, created, "reclaimed pools serve the same load")

	alloc.DestroyPools(dev)
	assert.Zero(t, dev.LiveCount("descriptor pool"))
}

func TestGrowableSecondFailurePropagates(t *testing.T) {
	dev := vulkantest.New()
	layout := newLayout(t, dev)

	alloc, err := vulkan.NewDescriptorAllocatorGrowable(dev, 8, vulkan.FrameDescriptorRatios)
	require.NoError(t, err)

	dev.FailOn("AllocateDescriptorSet", 1, vulkan.ErrorFragmentedPool)
	dev.FailOn("AllocateDescriptorSet", 2, vulkan.ErrorOutOfPoolMemory)

	_, err = alloc.Allocate(dev, layout)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
	res, ok := vulkan.ResultOf(err)
	require.True(t, ok)
	assert.Equal(t, vulkan.ErrorOutOfPoolMemory, res)

	ready, full := alloc.PoolCounts()
	assert.Equal(t, 0, ready)
	assert.Equal(t, 2, full, "both failing pools are retired, none leaked")

	// the next request gets a fresh pool
	_, err = alloc.Allocate(dev, layout)
	require.NoError(t, err)
}

func TestGrowableOtherErrorsAreNotRetried(t *testing.T) {
	dev := vulkantest.New()
	layout := newLayout(t, dev)

	alloc, err := vulkan.NewDescriptorAllocatorGrowable(dev, 8, vulkan.FrameDescriptorRatios)
	require.NoError(t, err)

	dev.FailOn("AllocateDescriptorSet", 1, vulkan.ErrorOutOfDeviceMemory)
	_, err = alloc.Allocate(dev, layout)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrPoolExhausted)
	assert.Equal(t, 1, dev.Count("AllocateDescriptorSet"))

	ready, full := alloc.PoolCounts()
	assert.Equal(t, 1, ready)
	assert.Equal(t, 0, full)
}

func TestGrowableRejectsZeroSets(t *testing.T) {
	_, err := vulkan.NewDescriptorAllocatorGrowable(vulkantest.New(), 0, vulkan.FrameDescriptorRatios)
	require.Error(t, err)
}

func TestFixedAllocator(t *testing.T) {
	dev := vulkantest.New()
	layout := newLayout(t, dev)

	alloc, err := vulkan.NewDescriptorAllocator(dev, 2, []vulkan.PoolSizeRatio{{Type: vulkan.DescriptorTypeStorageImage, Ratio: 1}})
	require.NoError(t, err)

	_, err = alloc.Allocate(dev, layout)
	require.NoError(t, err)
	_, err = alloc.Allocate(dev, layout)
	require.NoError(t, err)
	_, err = alloc.Allocate(dev, layout)
	require.ErrorIs(t, err, core.ErrPoolExhausted, "fixed pools do not grow")

	require.NoError(t, alloc.Clear(dev))
	_, err = alloc.Allocate(dev, layout)
	require.NoError(t, err)

	alloc.Destroy(dev)
	alloc.Destroy(dev)
	assert.Zero(t, dev.LiveCount("descriptor pool"))
	assert.Empty(t, dev.Violations)
}

func TestDescriptorWriter(t *testing.T) {
	dev := vulkantest.New()
	layout := newLayout(t, dev)
	alloc, err := vulkan.NewDescriptorAllocator(dev, 1, []vulkan.PoolSizeRatio{{Type: vulkan.DescriptorTypeStorageImage, Ratio: 1}})
	require.NoError(t, err)
	set, err := alloc.Allocate(dev, layout)
	require.NoError(t, err)

	var w vulkan.DescriptorWriter
	w.UpdateSet(dev, set)
	assert.Zero(t, dev.Count("UpdateDescriptorSet"), "empty writers do not touch the device")

	w.WriteImage(0, vulkan.ImageView(7), 0, vulkan.ImageLayoutGeneral, vulkan.DescriptorTypeStorageImage).
		WriteBuffer(1, vulkan.Buffer(8), 64, 0, vulkan.DescriptorTypeUniformBuffer)
	w.UpdateSet(dev, set)
	assert.Equal(t, []uint64{uint64(set)}, dev.CallsOf("UpdateDescriptorSet"))
	assert.Empty(t, dev.Violations)
}
