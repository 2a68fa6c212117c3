package driver

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

func TestPoolSizes(t *testing.T) {
	sizes := poolSizes(10, []vulkan.PoolSizeRatio{
		{Type: vulkan.DescriptorTypeStorageImage, Ratio: 3},
		{Type: vulkan.DescriptorTypeUniformBuffer, Ratio: 0.5},
		{Type: vulkan.DescriptorTypeSampler, Ratio: 0.01},
	})

	assert.Equal(t, []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: 30},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 5},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: 1},
	}, sizes)
}

func TestSafeStrings(t *testing.T) {
	in := []string{"VK_KHR_surface", "done\x00", ""}
	out := safeStrings(in)

	assert.Equal(t, []string{"VK_KHR_surface\x00", "done\x00", "\x00"}, out)
	assert.Equal(t, "VK_KHR_surface", in[0], "input is left untouched")
}
