package vulkan

import "github.com/spaghettifunk/framekit/engine/core"

type deletion struct {
	name string
	fn   func()
}

// DeletionQueue runs destroy callbacks newest first.
type DeletionQueue struct {
	items []deletion
}

func NewDeletionQueue() *DeletionQueue {
	return &DeletionQueue{}
}

func (dq *DeletionQueue) Push(name string, fn func()) {
	dq.items = append(dq.items, deletion{name: name, fn: fn})
}

func (dq *DeletionQueue) Len() int {
	return len(dq.items)
}

// Flush runs and forgets every queued callback.
func (dq *DeletionQueue) Flush() {
	for i := len(dq.items) - 1; i >= 0; i-- {
		core.LogDebug("destroying %s", dq.items[i].name)
		dq.items[i].fn()
	}
	dq.items = dq.items[:0]
}
