package vulkan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan/vulkantest"
)

func newAllocator(t *testing.T) (*vulkantest.Device, *vulkan.ImmediateSubmit, *vulkan.ResourceAllocator) {
	t.Helper()
	dev := vulkantest.New()
	is := newImmediate(t, dev)
	return dev, is, vulkan.NewResourceAllocator(dev, is)
}

func TestAllocatorBufferLifecycle(t *testing.T) {
	dev, is, ra := newAllocator(t)
	defer is.Destroy(dev)

	b, err := ra.CreateBuffer(16, vulkan.BufferUsageUniform, vulkan.MemoryUsageCPUToGPU)
	require.NoError(t, err)
	require.NoError(t, ra.Write(b, []byte("framekit")))
	assert.Equal(t, []byte("framekit"), dev.MemoryContents(b.Memory)[:8])

	require.Error(t, ra.Write(b, make([]byte, 17)))

	require.NoError(t, ra.DestroyBuffer(b))
	require.ErrorIs(t, ra.DestroyBuffer(b), core.ErrAlreadyDestroyed)

	_, err = ra.CreateBuffer(0, vulkan.BufferUsageUniform, vulkan.MemoryUsageGPUOnly)
	require.Error(t, err)

	gpu, err := ra.CreateBuffer(16, vulkan.BufferUsageStorage, vulkan.MemoryUsageGPUOnly)
	require.NoError(t, err)
	require.Error(t, ra.Write(gpu, []byte{1}), "device local memory is not mapped")
	require.NoError(t, ra.DestroyBuffer(gpu))

	assert.Equal(t, []string{"DestroyBuffer", "FreeMemory"}, lastOps(dev, 2), "object released before its memory")
	assert.Empty(t, dev.Violations)
}

func TestAllocatorUploadBuffer(t *testing.T) {
	dev, is, ra := newAllocator(t)
	defer is.Destroy(dev)

	b, err := ra.UploadBuffer([]byte{1, 2, 3, 4}, vulkan.BufferUsageVertex)
	require.NoError(t, err)
	assert.Equal(t, vulkan.MemoryUsageGPUOnly, b.Usage)
	assert.Equal(t, []uint64{uint64(b.Handle)}, dev.CallsOf("CmdCopyBuffer"))
	assert.Equal(t, 1, dev.Count("QueueSubmit"))

	buffers, images := ra.Live()
	assert.Equal(t, 1, buffers, "staging buffer released")
	assert.Zero(t, images)
}

func TestAllocatorUploadImage(t *testing.T) {
	dev, is, ra := newAllocator(t)
	defer is.Destroy(dev)

	extent := vulkan.Extent3D{Width: 2, Height: 2, Depth: 1}
	img, err := ra.UploadImage(make([]byte, 16), vulkan.FormatR8g8b8a8Unorm, extent, vulkan.ImageUsageSampled)
	require.NoError(t, err)
	assert.Equal(t, vulkan.Extent2D{Width: 2, Height: 2}, img.Extent2D())

	require.Len(t, dev.Barriers, 2)
	assert.Equal(t, vulkan.ImageLayoutUndefined, dev.Barriers[0].OldLayout)
	assert.Equal(t, vulkan.ImageLayoutTransferDstOptimal, dev.Barriers[0].NewLayout)
	assert.Equal(t, vulkan.ImageLayoutShaderReadOnlyOptimal, dev.Barriers[1].NewLayout)
	assert.Equal(t, []uint64{uint64(img.Handle)}, dev.CallsOf("CmdCopyBufferToImage"))

	require.NoError(t, ra.DestroyImage(img))
	assert.Equal(t, []string{"DestroyImageView", "DestroyImage", "FreeMemory"}, lastOps(dev, 3))
	require.ErrorIs(t, ra.DestroyImage(img), core.ErrAlreadyDestroyed)
}

func TestAllocatorDestroyReleasesLeftovers(t *testing.T) {
	dev, is, ra := newAllocator(t)

	_, err := ra.CreateBuffer(8, vulkan.BufferUsageUniform, vulkan.MemoryUsageCPUToGPU)
	require.NoError(t, err)
	_, err = ra.CreateImage(vulkan.FormatD32Sfloat, vulkan.Extent3D{Width: 4, Height: 4, Depth: 1}, vulkan.ImageUsageDepthStencilAttachment, vulkan.ImageAspectDepth)
	require.NoError(t, err)

	ra.Destroy()
	is.Destroy(dev)
	dev.Destroy()
	assert.Empty(t, dev.LeakedAtDestroy)
	assert.Empty(t, dev.Violations)
}

func TestAllocatorImageViewUsesRequestedAspect(t *testing.T) {
	dev, is, ra := newAllocator(t)
	defer is.Destroy(dev)

	extent := vulkan.Extent3D{Width: 4, Height: 4, Depth: 1}
	depth, err := ra.CreateImage(vulkan.FormatD32Sfloat, extent, vulkan.ImageUsageDepthStencilAttachment, vulkan.ImageAspectDepth)
	require.NoError(t, err)
	color, err := ra.CreateImage(vulkan.FormatR8g8b8a8Unorm, extent, vulkan.ImageUsageSampled, vulkan.ImageAspectColor)
	require.NoError(t, err)

	require.Len(t, dev.Views, 2)
	assert.Equal(t, depth.Handle, dev.Views[0].Image)
	assert.Equal(t, vulkan.ImageAspectDepth, dev.Views[0].Aspect)
	assert.Equal(t, vulkan.ImageAspectDepth, depth.Aspect)
	assert.Equal(t, color.Handle, dev.Views[1].Image)
	assert.Equal(t, vulkan.ImageAspectColor, dev.Views[1].Aspect)

	ra.Destroy()
}

func TestAllocatorImageViewFailure(t *testing.T) {
	dev, is, ra := newAllocator(t)
	defer is.Destroy(dev)

	dev.FailOn("CreateImageView", 1, vulkan.ErrorOutOfHostMemory)
	_, err := ra.CreateImage(vulkan.FormatR8g8b8a8Unorm, vulkan.Extent3D{Width: 1, Height: 1, Depth: 1}, vulkan.ImageUsageSampled, vulkan.ImageAspectColor)
	require.Error(t, err)
	assert.Zero(t, dev.LiveCount("image"))
	assert.Zero(t, dev.LiveCount("memory"))
}

func lastOps(dev *vulkantest.Device, n int) []string {
	var ops []string
	for _, c := range dev.Calls[len(dev.Calls)-n:] {
		ops = append(ops, c.Op)
	}
	return ops
}
