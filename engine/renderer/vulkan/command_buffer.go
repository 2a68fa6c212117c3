package vulkan

import (
	"github.com/cockroachdb/errors"
)

type CommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY CommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

func (s CommandBufferState) String() string {
	switch s {
	case COMMAND_BUFFER_STATE_READY:
		return "ready"
	case COMMAND_BUFFER_STATE_RECORDING:
		return "recording"
	case COMMAND_BUFFER_STATE_RECORDING_ENDED:
		return "recording-ended"
	case COMMAND_BUFFER_STATE_SUBMITTED:
		return "submitted"
	}
	return "not-allocated"
}

// CommandContext is a command pool with its single primary buffer.
type CommandContext struct {
	Pool   CommandPool
	Handle CommandBuffer
	// Command buffer state.
	State CommandBufferState
}

func NewCommandContext(device Device, queueFamily uint32) (*CommandContext, error) {
	pool, res := device.CreateCommandPool(queueFamily)
	if res != Success {
		return nil, NewError("create command pool", res)
	}
	cmd, res := device.AllocateCommandBuffer(pool)
	if res != Success {
		device.DestroyCommandPool(pool)
		return nil, NewError("allocate command buffer", res)
	}
	return &CommandContext{
		Pool:   pool,
		Handle: cmd,
		State:  COMMAND_BUFFER_STATE_READY,
	}, nil
}

func (c *CommandContext) Begin(device Device, singleUse bool) error {
	if c.State != COMMAND_BUFFER_STATE_READY {
		return errors.Newf("command buffer begin in state %s", c.State)
	}
	if res := device.BeginCommandBuffer(c.Handle, singleUse); res != Success {
		return NewError("begin command buffer", res)
	}
	c.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (c *CommandContext) End(device Device) error {
	if c.State != COMMAND_BUFFER_STATE_RECORDING {
		return errors.Newf("command buffer end in state %s", c.State)
	}
	if res := device.EndCommandBuffer(c.Handle); res != Success {
		return NewError("end command buffer", res)
	}
	c.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (c *CommandContext) UpdateSubmitted() {
	c.State = COMMAND_BUFFER_STATE_SUBMITTED
}

// Reset returns the buffer to the initial state. The fence guarding its last
// submission must already have been waited on.
func (c *CommandContext) Reset(device Device) error {
	if res := device.ResetCommandBuffer(c.Handle); res != Success {
		return NewError("reset command buffer", res)
	}
	c.State = COMMAND_BUFFER_STATE_READY
	return nil
}

// Destroy frees the pool, which frees the buffer with it.
func (c *CommandContext) Destroy(device Device) {
	if c.Pool != 0 {
		device.DestroyCommandPool(c.Pool)
		c.Pool = 0
	}
	c.Handle = 0
	c.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}
