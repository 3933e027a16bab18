package replacer

import (
	"container/list"
)

// LRU is the reference replacement policy: least-recently-used over the set
// of resident, unpinned frames. Unpin inserts (or moves) a frame to the
// most-recently-used end; Pin removes it; Victim evicts from the
// least-recently-used end.
//
// Adapted from the teacher repo's pkg/cache.LRUManager (container/list
// wrapping a mutex) into the Policy contract: the buffer pool already
// serializes all access under its own mutex, so LRU itself needs no lock.
type LRU struct {
	order *list.List
	elems map[int]*list.Element
}

var _ Policy = (*LRU)(nil)

func NewLRU() *LRU {
	return &LRU{
		order: list.New(),
		elems: make(map[int]*list.Element),
	}
}

func (l *LRU) Victim() (int, bool) {
	back := l.order.Back()
	if back == nil {
		return 0, false
	}
	frameID := back.Value.(int)
	l.order.Remove(back)
	delete(l.elems, frameID)
	return frameID, true
}

func (l *LRU) Pin(frameID int) {
	if e, ok := l.elems[frameID]; ok {
		l.order.Remove(e)
		delete(l.elems, frameID)
	}
}

func (l *LRU) Unpin(frameID int) {
	if _, ok := l.elems[frameID]; ok {
		// Already tracked (e.g. double-unpin from a caller bug); ignore.
		return
	}
	l.elems[frameID] = l.order.PushFront(frameID)
}
