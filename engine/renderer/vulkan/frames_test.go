package vulkan_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan/vulkantest"
)

func TestFrameRingCyclesWithPeriod(t *testing.T) {
	dev := vulkantest.New()
	ring, err := vulkan.NewFrameRing(dev, 0, 16)
	require.NoError(t, err)

	first := ring.Current()
	for n := 0; n < 7; n++ {
		assert.Equal(t, n%vulkan.FRAMES_IN_FLIGHT, ring.Index())
		assert.Equal(t, uint64(n), ring.FrameNumber())
		assert.Same(t, ring.Slot(ring.Index()), ring.Current())
		ring.Advance()
	}
	ring.Advance()
	assert.Same(t, first, ring.Current())

	ring.Destroy(dev)
	ring.Destroy(dev)
	assert.Zero(t, dev.LiveCount(""))
	assert.Empty(t, dev.Violations)
}

func TestFrameRingSlotsAreDistinct(t *testing.T) {
	dev := vulkantest.New()
	ring, err := vulkan.NewFrameRing(dev, 0, 16)
	require.NoError(t, err)
	defer ring.Destroy(dev)

	a, b := ring.Slot(0), ring.Slot(1)
	assert.NotEqual(t, a.RenderFence.Handle, b.RenderFence.Handle)
	assert.NotEqual(t, a.Command.Pool, b.Command.Pool)
	assert.NotEqual(t, a.SwapchainSemaphore, b.SwapchainSemaphore)
	assert.True(t, a.RenderFence.IsSignaled, "fences start signaled")
	assert.True(t, dev.FenceSignaled(a.RenderFence.Handle))
}

func TestFrameRingConstructionFailureReleasesEverything(t *testing.T) {
	dev := vulkantest.New()
	dev.FailOn("CreateSemaphore", 2, vulkan.ErrorOutOfHostMemory)

	_, err := vulkan.NewFrameRing(dev, 0, 16)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame slot 1")
	assert.Zero(t, dev.LiveCount(""))
	assert.Empty(t, dev.Violations)
}

func TestFrameResetRequiresWait(t *testing.T) {
	dev := vulkantest.New()
	ring, err := vulkan.NewFrameRing(dev, 0, 16)
	require.NoError(t, err)
	defer ring.Destroy(dev)

	fd := ring.Current()
	require.NoError(t, fd.Wait(dev, vulkan.MaxTimeout))
	require.NoError(t, fd.Reset(dev))

	// not submitted and not waited: a second reset is refused
	require.Error(t, fd.Reset(dev))
	assert.Equal(t, 1, dev.Count("ResetFence"))
}

func TestFrameResetOrder(t *testing.T) {
	dev := vulkantest.New()
	ring, err := vulkan.NewFrameRing(dev, 0, 16)
	require.NoError(t, err)
	defer ring.Destroy(dev)

	fd := ring.Current()
	var flushed bool
	fd.Deletion.Push("scratch", func() { flushed = true })

	start := len(dev.Calls)
	require.NoError(t, fd.Wait(dev, vulkan.MaxTimeout))
	require.NoError(t, fd.Reset(dev))

	var ops []string
	for _, c := range dev.Calls[start:] {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{"WaitForFence", "ResetFence", "ResetCommandBuffer", "ResetDescriptorPool"}, ops)
	assert.True(t, flushed)
	assert.Zero(t, fd.Deletion.Len())
}

func TestFrameWaitOnUnsubmittedFenceFails(t *testing.T) {
	dev := vulkantest.New()
	ring, err := vulkan.NewFrameRing(dev, 0, 16)
	require.NoError(t, err)
	defer ring.Destroy(dev)

	fd := ring.Current()
	require.NoError(t, fd.Wait(dev, vulkan.MaxTimeout))
	require.NoError(t, fd.Reset(dev))

	err = fd.Wait(dev, vulkan.MaxTimeout)
	require.Error(t, err)
	res, ok := vulkan.ResultOf(err)
	require.True(t, ok)
	assert.Equal(t, vulkan.Timeout, res)
}

func TestFrameReplaceSemaphore(t *testing.T) {
	dev := vulkantest.New()
	ring, err := vulkan.NewFrameRing(dev, 0, 16)
	require.NoError(t, err)
	defer ring.Destroy(dev)

	fd := ring.Current()
	old := fd.SwapchainSemaphore
	require.NoError(t, fd.ReplaceSemaphore(dev))
	assert.NotEqual(t, old, fd.SwapchainSemaphore)
	assert.Equal(t, vulkan.FRAMES_IN_FLIGHT, dev.LiveCount("semaphore"))
}

func leakedKinds(dev *vulkantest.Device) map[string]int {
	kinds := map[string]int{}
	for _, leak := range dev.LeakedAtDestroy {
		// "<kind> <handle>"
		kinds[leak[:strings.LastIndex(leak, " ")]]++
	}
	return kinds
}

func TestDeviceDestroyedBeforeFrameRingIsDetected(t *testing.T) {
	dev := vulkantest.New()
	ring, err := vulkan.NewFrameRing(dev, 0, 16)
	require.NoError(t, err)

	dev.Destroy()
	ring.Destroy(dev)

	kinds := leakedKinds(dev)
	assert.Equal(t, vulkan.FRAMES_IN_FLIGHT, kinds["command pool"])
	assert.Equal(t, vulkan.FRAMES_IN_FLIGHT, kinds["fence"])
	assert.Equal(t, vulkan.FRAMES_IN_FLIGHT, kinds["semaphore"])
	assert.Equal(t, vulkan.FRAMES_IN_FLIGHT, kinds["descriptor pool"])

	require.NotEmpty(t, dev.Violations)
	assert.Contains(t, dev.Violations[0], "device destroyed with")
	var lateDestroys int
	for _, v := range dev.Violations {
		if strings.Contains(v, "after device destroy") {
			lateDestroys++
		}
	}
	assert.Positive(t, lateDestroys)
}

func TestFrameRingDestroyedBeforeDeviceIsClean(t *testing.T) {
	dev := vulkantest.New()
	ring, err := vulkan.NewFrameRing(dev, 0, 16)
	require.NoError(t, err)

	ring.Destroy(dev)
	dev.Destroy()

	assert.Empty(t, dev.LeakedAtDestroy)
	assert.Empty(t, dev.Violations)
}
