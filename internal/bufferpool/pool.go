// Package bufferpool owns a fixed array of frames, maps page identifiers to
// frames, enforces pin counts, and flushes dirty pages through a disk
// manager. Victim selection is delegated to a replacer.Policy so the
// eviction algorithm is swappable behind a stable contract.
//
// Adapted from the teacher repo's internal/bufferpool.Pool: the free-slot
// search, the slog.Debug call sites, and the "never call a public op while
// holding the lock" discipline all come from there. The teacher inlines
// CLOCK directly in Pool; here it is factored out to the replacer package,
// and NewPage/DeletePage/Flush are added to round out the full operation
// set a page cache over a record/index storage layer needs.
package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tuannm99/rmdb/internal/replacer"
	"github.com/tuannm99/rmdb/internal/storage"
)

var logDebugPrefix = "bufferpool: "

// ErrNoFreeFrame is returned when every resident frame is pinned and no
// victim can be produced.
var ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")

// Frame holds one page's bytes plus the metadata the pool needs to track
// pinning, dirtiness, and residency.
type Frame struct {
	PageID storage.PageID
	Buf    []byte
	Dirty  bool
	Pin    int32
}

// Pool is a fixed-size buffer pool bound to one disk manager.
type Pool struct {
	dm       *storage.Manager
	policy   replacer.Policy
	capacity int

	mu        sync.Mutex
	frames    []*Frame
	freeList  []int
	pageTable map[storage.PageID]int
}

// New creates a buffer pool of the given capacity (number of frames) over
// dm, using policy to select eviction victims among unpinned frames.
func New(dm *storage.Manager, policy replacer.Policy, capacity int) *Pool {
	if capacity <= 0 {
		capacity = 16
	}
	frames := make([]*Frame, capacity)
	freeList := make([]int, capacity)
	for i := range frames {
		frames[i] = &Frame{
			PageID: storage.PageID{Fd: -1, PageNo: storage.InvalidPageNo},
			Buf:    make([]byte, storage.PageSize),
		}
		freeList[i] = capacity - 1 - i // pop from the back -> hand out frame 0 first
	}
	return &Pool{
		dm:        dm,
		policy:    policy,
		capacity:  capacity,
		frames:    frames,
		freeList:  freeList,
		pageTable: make(map[storage.PageID]int),
	}
}

// Fetch returns the frame holding pageID, pinning it. If the page is not
// resident it is loaded from disk into a free or victim frame.
func (p *Pool) Fetch(pageID storage.PageID) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[pageID]; ok {
		f := p.frames[idx]
		f.Pin++
		p.policy.Pin(idx)
		slog.Debug(logDebugPrefix+"found page in buffer", "pageID", pageID, "frameIdx", idx, "pin", f.Pin)
		return f, nil
	}

	idx, err := p.obtainVictimLocked()
	if err != nil {
		return nil, err
	}
	f := p.frames[idx]
	if err := p.evictLocked(f); err != nil {
		return nil, err
	}

	for i := range f.Buf {
		f.Buf[i] = 0
	}
	if err := p.dm.ReadPage(pageID.Fd, pageID.PageNo, f.Buf); err != nil {
		return nil, fmt.Errorf("bufferpool: fetch %+v: %w", pageID, err)
	}
	f.PageID = pageID
	f.Dirty = false
	f.Pin = 1
	p.pageTable[pageID] = idx
	p.policy.Pin(idx)
	slog.Debug(logDebugPrefix+"loaded page into frame", "pageID", pageID, "frameIdx", idx)
	return f, nil
}

// Unpin decreases pageID's pin count and, if markDirty is true, sets the
// dirty flag (which is never cleared here). Returns false if the page is
// not resident or its pin count is already zero.
func (p *Pool) Unpin(pageID storage.PageID, markDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		slog.Debug(logDebugPrefix+"unpin ignored, page not in pool", "pageID", pageID)
		return false
	}
	f := p.frames[idx]
	if f.Pin <= 0 {
		slog.Warn(logDebugPrefix+"unpin of zero-pin page", "pageID", pageID)
		return false
	}
	f.Pin--
	if markDirty {
		f.Dirty = true
	}
	if f.Pin == 0 {
		p.policy.Unpin(idx)
	}
	return true
}

// Flush unconditionally writes pageID's frame to disk and clears its dirty
// flag. Returns false if the page is not resident.
func (p *Pool) Flush(pageID storage.PageID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.pageTable[pageID]
	if !ok {
		return false, nil
	}
	f := p.frames[idx]
	if err := p.dm.WritePage(f.PageID.Fd, f.PageID.PageNo, f.Buf); err != nil {
		return false, fmt.Errorf("bufferpool: flush %+v: %w", pageID, err)
	}
	f.Dirty = false
	return true, nil
}

// FlushAll writes every resident dirty frame belonging to fd to disk.
func (p *Pool) FlushAll(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	slog.Debug(logDebugPrefix+"flushAll started", "fd", fd)
	for _, f := range p.frames {
		if f.PageID.Fd != fd || !f.PageID.Valid() || !f.Dirty {
			continue
		}
		if err := p.dm.WritePage(f.PageID.Fd, f.PageID.PageNo, f.Buf); err != nil {
			return fmt.Errorf("bufferpool: flushAll fd=%d: %w", fd, err)
		}
		f.Dirty = false
	}
	return nil
}

// NewPage allocates a fresh page number in fd, installs it into a free or
// victim frame zeroed out and pinned, and returns the frame and its id.
func (p *Pool) NewPage(fd int) (*Frame, storage.PageID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.obtainVictimLocked()
	if err != nil {
		return nil, storage.PageID{}, err
	}
	f := p.frames[idx]
	if err := p.evictLocked(f); err != nil {
		return nil, storage.PageID{}, err
	}

	pageID := storage.PageID{Fd: fd, PageNo: p.dm.AllocatePage(fd)}
	for i := range f.Buf {
		f.Buf[i] = 0
	}
	f.PageID = pageID
	f.Dirty = false
	f.Pin = 1
	p.pageTable[pageID] = idx
	p.policy.Pin(idx)
	slog.Debug(logDebugPrefix+"allocated new page", "pageID", pageID, "frameIdx", idx)
	return f, pageID, nil
}

// DeletePage removes pageID from the buffer (flushing it first if dirty)
// and returns its frame to the free list. Returns true if the page was not
// resident (nothing to do) or deletion succeeded, false if the page is
// resident but still pinned.
func (p *Pool) DeletePage(pageID storage.PageID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		return true, nil
	}
	f := p.frames[idx]
	if f.Pin != 0 {
		slog.Debug(logDebugPrefix+"deletePage: page is pinned", "pageID", pageID, "pin", f.Pin)
		return false, nil
	}

	if f.Dirty {
		if err := p.dm.WritePage(f.PageID.Fd, f.PageID.PageNo, f.Buf); err != nil {
			return false, fmt.Errorf("bufferpool: deletePage flush %+v: %w", pageID, err)
		}
	}
	p.policy.Pin(idx) // drop any stale evictable entry for this frame
	delete(p.pageTable, pageID)
	for i := range f.Buf {
		f.Buf[i] = 0
	}
	f.PageID = storage.PageID{Fd: -1, PageNo: storage.InvalidPageNo}
	f.Dirty = false
	f.Pin = 0
	p.freeList = append(p.freeList, idx)
	return true, nil
}

// obtainVictimLocked returns a frame index to reuse: a free-list slot
// (never used, or released by DeletePage) first, else a frame the policy
// judges evictable.
func (p *Pool) obtainVictimLocked() (int, error) {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return idx, nil
	}
	idx, ok := p.policy.Victim()
	if !ok {
		slog.Debug(logDebugPrefix + "no victim available (all pinned)")
		return 0, ErrNoFreeFrame
	}
	return idx, nil
}

// evictLocked writes f to disk if dirty and removes its current identity
// from the page table, leaving f ready to be repurposed for a new page.
// The old identity must leave the mapping before the new one enters it so
// the mapping never transiently holds two identities for the same frame.
func (p *Pool) evictLocked(f *Frame) error {
	if f.PageID.Valid() {
		if f.Dirty {
			if err := p.dm.WritePage(f.PageID.Fd, f.PageID.PageNo, f.Buf); err != nil {
				return fmt.Errorf("bufferpool: evict flush %+v: %w", f.PageID, err)
			}
			f.Dirty = false
		}
		delete(p.pageTable, f.PageID)
	}
	return nil
}
