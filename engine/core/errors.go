package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrSwapchainBooting     = errors.New("swapchain resized or recreated, booting")
	ErrUnknown              = errors.New("unknown")
	ErrDeviceLost           = errors.New("device lost")
	ErrFenceTimeout         = errors.New("fence wait timed out")
	ErrPoolExhausted        = errors.New("descriptor pool exhausted")
	ErrImmediateBusy        = errors.New("immediate submission already in progress")
	ErrImmediateDuringFrame = errors.New("immediate submission requested while a frame is recording")
	ErrSurfaceZeroExtent    = errors.New("surface has a zero extent")
	ErrNotInitialized       = errors.New("not initialized")
	ErrAlreadyDestroyed     = errors.New("already destroyed")
)
