package renderer

import (
	"math"

	"github.com/spaghettifunk/framekit/engine/renderer/vulkan"
)

type PassStage int

const (
	// Draw image in General layout; compute dispatches and clears.
	StageBackground PassStage = iota
	// Draw image in ColorAttachment layout.
	StageGeometry
	// Swapchain image in ColorAttachment layout, after the draw image blit.
	StageOverlay
)

// Pass records part of a frame. Passes run in registration order within
// their stage and must not submit work themselves.
type Pass interface {
	Name() string
	Stage() PassStage
	Record(ctx *FrameContext) error
}

// FrameContext is what a pass sees while the frame is recording.
type FrameContext struct {
	Device      vulkan.Device
	Cmd         vulkan.CommandBuffer
	FrameNumber uint64
	Slot        int

	// Per-frame descriptors, reclaimed when the slot is reused.
	Descriptors *vulkan.DescriptorAllocatorGrowable
	// Released after the slot's fence signals again.
	Deletion *vulkan.DeletionQueue

	DrawImage            *vulkan.AllocatedImage
	DrawImageDescriptors vulkan.DescriptorSet
	DrawExtent           vulkan.Extent2D

	ImageIndex      uint32
	SwapchainImage  vulkan.Image
	SwapchainView   vulkan.ImageView
	SwapchainExtent vulkan.Extent2D
}

// AllocateDescriptorSet allocates a set that lives until this slot is reused.
func (fc *FrameContext) AllocateDescriptorSet(layout vulkan.DescriptorSetLayout) (vulkan.DescriptorSet, error) {
	return fc.Descriptors.Allocate(fc.Device, layout)
}

// ClearPass fills the draw image with a slowly pulsing color.
type ClearPass struct {
	Color [3]float32
	// frames per pulse
	Period float64
}

func NewClearPass() *ClearPass {
	return &ClearPass{
		Color:  [3]float32{0, 0, 1},
		Period: 120,
	}
}

func (cp *ClearPass) Name() string {
	return "clear"
}

func (cp *ClearPass) Stage() PassStage {
	return StageBackground
}

func (cp *ClearPass) ClearColor(frameNumber uint64) [4]float32 {
	flash := float32(math.Abs(math.Sin(float64(frameNumber) / cp.Period)))
	return [4]float32{cp.Color[0] * flash, cp.Color[1] * flash, cp.Color[2] * flash, 1}
}

func (cp *ClearPass) Record(ctx *FrameContext) error {
	ctx.Device.CmdClearColorImage(ctx.Cmd, ctx.DrawImage.Handle, vulkan.ImageLayoutGeneral, cp.ClearColor(ctx.FrameNumber))
	return nil
}
