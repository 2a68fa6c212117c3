package driver

import "github.com/cockroachdb/errors"

// handleTable hands out the opaque ids the frame core passes around and maps
// them back to the underlying objects. Id 0 is the null handle. Released ids
// are reused before the table grows.
type handleTable[T any] struct {
	owners []T
	used   []bool
	free   []uint64
}

func (h *handleTable[T]) acquire(owner T) uint64 {
	if n := len(h.free); n > 0 {
		id := h.free[n-1]
		h.free = h.free[:n-1]
		h.owners[id-1] = owner
		h.used[id-1] = true
		return id
	}
	h.owners = append(h.owners, owner)
	h.used = append(h.used, true)
	return uint64(len(h.owners))
}

// get returns the zero value for the null handle and for released ids.
func (h *handleTable[T]) get(id uint64) T {
	var zero T
	if id == 0 || id > uint64(len(h.owners)) || !h.used[id-1] {
		return zero
	}
	return h.owners[id-1]
}

func (h *handleTable[T]) release(id uint64) (T, error) {
	var zero T
	if id == 0 || id > uint64(len(h.owners)) {
		return zero, errors.Newf("handle %d out of range (max=%d)", id, len(h.owners))
	}
	if !h.used[id-1] {
		return zero, errors.Newf("handle %d released twice", id)
	}
	owner := h.owners[id-1]
	h.owners[id-1] = zero
	h.used[id-1] = false
	h.free = append(h.free, id)
	return owner, nil
}

func (h *handleTable[T]) live() int {
	return len(h.owners) - len(h.free)
}

// each visits every live entry.
func (h *handleTable[T]) each(fn func(id uint64, owner T)) {
	for i, u := range h.used {
		if u {
			fn(uint64(i+1), h.owners[i])
		}
	}
}
