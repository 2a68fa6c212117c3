package renderer

import "github.com/spaghettifunk/framekit/engine/renderer/vulkan"

// RendererBackend is what the engine loop drives every iteration.
type RendererBackend interface {
	DrawFrame() (FrameOutcome, error)
	Resize(width, height uint32)
	SetOccluded(occluded bool)
	SetPresentMode(mode vulkan.PresentMode)
	Shutdown()
}

// FrameOutcome tells the caller what a DrawFrame call did.
type FrameOutcome int

const (
	// The frame was recorded, submitted and presented.
	FramePresented FrameOutcome = iota
	// The swapchain was stale; the frame was skipped or its presentation
	// failed and recreation is pending.
	FrameSkipped
	// The window is occluded or minimized; nothing was done.
	FramePaused
)

func (o FrameOutcome) String() string {
	switch o {
	case FramePresented:
		return "presented"
	case FrameSkipped:
		return "skipped"
	case FramePaused:
		return "paused"
	}
	return "unknown"
}

var _ RendererBackend = (*Renderer)(nil)
