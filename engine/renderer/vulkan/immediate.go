package vulkan

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/framekit/engine/core"
)

// RecordFunc records commands into an open command buffer.
type RecordFunc func(cmd CommandBuffer) error

// ImmediateSubmit runs one-off GPU work synchronously, outside the frame
// ring. It is neither reentrant nor pipelined.
type ImmediateSubmit struct {
	command *CommandContext
	fence   *VulkanFence
	queue   Queue
	timeout uint64
	busy    atomic.Bool
	// set while a frame is being recorded; Submit would stall the pipeline
	frameRecording atomic.Bool
}

func NewImmediateSubmit(device Device, queueFamily uint32, queue Queue, timeout uint64) (*ImmediateSubmit, error) {
	command, err := NewCommandContext(device, queueFamily)
	if err != nil {
		return nil, err
	}
	fence, err := NewFence(device, true)
	if err != nil {
		command.Destroy(device)
		return nil, err
	}
	return &ImmediateSubmit{
		command: command,
		fence:   fence,
		queue:   queue,
		timeout: timeout,
	}, nil
}

// Submit resets the context, records fn, submits it and blocks until the
// GPU has finished.
func (is *ImmediateSubmit) Submit(device Device, fn RecordFunc) (err error) {
	if is.frameRecording.Load() {
		return errors.WithStack(core.ErrImmediateDuringFrame)
	}
	if !is.busy.CompareAndSwap(false, true) {
		return errors.WithStack(core.ErrImmediateBusy)
	}
	defer is.busy.Store(false)

	submitted := false
	defer func() {
		if err != nil && !submitted {
			is.renewFence(device)
		}
	}()

	if err = is.fence.Reset(device); err != nil {
		return err
	}
	if err = is.command.Reset(device); err != nil {
		return err
	}
	if err = is.command.Begin(device, true); err != nil {
		return err
	}
	if err = fn(is.command.Handle); err != nil {
		return errors.Wrap(err, "immediate submit record")
	}
	if err = is.command.End(device); err != nil {
		return err
	}

	if res := device.QueueSubmit(is.queue, SubmitInfo{CommandBuffer: is.command.Handle}, is.fence.Handle); res != Success {
		return NewError("immediate queue submit", res)
	}
	submitted = true
	is.command.UpdateSubmitted()

	return is.fence.Wait(device, is.timeout)
}

// SetFrameRecording marks whether a frame is currently being recorded.
// Submissions are refused while it is set, whichever path they come from.
func (is *ImmediateSubmit) SetFrameRecording(recording bool) {
	is.frameRecording.Store(recording)
}

// renewFence replaces a fence that was reset but never submitted, which would
// otherwise never signal again.
func (is *ImmediateSubmit) renewFence(device Device) {
	if is.fence.IsSignaled {
		return
	}
	fence, err := NewFence(device, true)
	if err != nil {
		core.LogError("immediate submit: failed to replace fence: %v", err)
		return
	}
	is.fence.Destroy(device)
	is.fence = fence
}

func (is *ImmediateSubmit) Destroy(device Device) {
	if is.command != nil {
		is.command.Destroy(device)
	}
	if is.fence != nil {
		is.fence.Destroy(device)
	}
}
