package vulkan_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/framekit/engine/core"
	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

func TestResultErrorSentinels(t *testing.T) {
	tests := []struct {
		res      vulkan.Result
		sentinel error
	}{
		{vulkan.ErrorDeviceLost, core.ErrDeviceLost},
		{vulkan.Timeout, core.ErrFenceTimeout},
		{vulkan.ErrorOutOfPoolMemory, core.ErrPoolExhausted},
		{vulkan.ErrorFragmentedPool, core.ErrPoolExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.res.String(), func(t *testing.T) {
			err := errors.Wrap(vulkan.NewError("op", tt.res), "outer")
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, errors.Is(err, tt.sentinel))
			res, ok := vulkan.ResultOf(err)
			assert.True(t, ok)
			assert.Equal(t, tt.res, res)
		})
	}

	assert.NotErrorIs(t, vulkan.NewError("op", vulkan.ErrorOutOfHostMemory), core.ErrDeviceLost)
	_, ok := vulkan.ResultOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestResultStrings(t *testing.T) {
	assert.Equal(t, "VK_SUBOPTIMAL_KHR", vulkan.ResultString(vulkan.Suboptimal, false))
	assert.Contains(t, vulkan.ResultString(vulkan.ErrorOutOfDate, true), "no longer compatible")
	assert.Equal(t, "VK_RESULT(42)", vulkan.Result(42).String())
	assert.True(t, vulkan.ResultIsSuccess(vulkan.Suboptimal))
	assert.False(t, vulkan.ResultIsSuccess(vulkan.ErrorOutOfDate))
	assert.Equal(t, "op: VK_ERROR_DEVICE_LOST", vulkan.NewError("op", vulkan.ErrorDeviceLost).Error())
}
