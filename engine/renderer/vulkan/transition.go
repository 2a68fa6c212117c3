package vulkan

type layoutUsage struct {
	stage  PipelineStageFlags
	access AccessFlags
}

// layoutUsages maps each layout to the stages and accesses that touch an
// image while it is in that layout.
var layoutUsages = map[ImageLayout]layoutUsage{
	ImageLayoutUndefined: {PipelineStageTopOfPipe, AccessNone},
	ImageLayoutGeneral: {
		PipelineStageComputeShader | PipelineStageTransfer,
		AccessShaderRead | AccessShaderWrite | AccessTransferRead | AccessTransferWrite,
	},
	ImageLayoutColorAttachmentOptimal: {
		PipelineStageColorAttachmentOutput,
		AccessColorAttachmentRead | AccessColorAttachmentWrite,
	},
	ImageLayoutDepthStencilAttachmentOptimal: {
		PipelineStageEarlyFragmentTests | PipelineStageLateFragmentTests,
		AccessDepthStencilAttachmentRead | AccessDepthStencilAttachmentWrite,
	},
	ImageLayoutShaderReadOnlyOptimal: {
		PipelineStageFragmentShader | PipelineStageComputeShader,
		AccessShaderRead,
	},
	ImageLayoutTransferSrcOptimal: {PipelineStageTransfer, AccessTransferRead},
	ImageLayoutTransferDstOptimal: {PipelineStageTransfer, AccessTransferWrite},
	ImageLayoutPresentSrc:         {PipelineStageBottomOfPipe, AccessNone},
}

func usageOf(layout ImageLayout) layoutUsage {
	if u, ok := layoutUsages[layout]; ok {
		return u
	}
	return layoutUsage{PipelineStageAllCommands, AccessMemoryRead | AccessMemoryWrite}
}

func isDepthLayout(layout ImageLayout) bool {
	return layout == ImageLayoutDepthStencilAttachmentOptimal
}

// TransitionBarrier builds the barrier moving an image from old to new layout.
func TransitionBarrier(image Image, oldLayout, newLayout ImageLayout) ImageBarrier {
	src, dst := usageOf(oldLayout), usageOf(newLayout)
	aspect := ImageAspectColor
	if isDepthLayout(oldLayout) || isDepthLayout(newLayout) {
		aspect = ImageAspectDepth
	}
	return ImageBarrier{
		Image:     image,
		OldLayout: oldLayout,
		NewLayout: newLayout,
		SrcStage:  src.stage,
		SrcAccess: src.access,
		DstStage:  dst.stage,
		DstAccess: dst.access,
		Aspect:    aspect,
	}
}

// TransitionImage records a layout transition.
func TransitionImage(device Device, cmd CommandBuffer, image Image, oldLayout, newLayout ImageLayout) {
	device.CmdPipelineBarrier(cmd, TransitionBarrier(image, oldLayout, newLayout))
}

// BlitImage copies the color contents of src into dst, scaling to fit.
// src must be in TransferSrc and dst in TransferDst layout.
func BlitImage(device Device, cmd CommandBuffer, src Image, srcSize Extent2D, dst Image, dstSize Extent2D) {
	device.CmdBlitImage(cmd, src, srcSize, dst, dstSize, FilterLinear)
}
