package playback

import "sync/atomic"

// IDAllocator hands out engine ids. Ids start at 0, strictly increase in
// allocation order and are never reused. Safe for concurrent use.
type IDAllocator struct {
	next atomic.Int64
}

// NewIDAllocator creates an allocator whose first id is 0
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns the next unused id
func (a *IDAllocator) Next() int {
	return int(a.next.Add(1) - 1)
}
