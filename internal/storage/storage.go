// Package storage implements the disk manager: fixed-size page I/O and
// page-number allocation per open file, grounded on the teacher repo's
// internal/storage.StorageManager (ReadPage/WritePage over a FileSet) but
// simplified to one backing *os.File per file handle instead of segmented
// files, since nothing in this module needs multi-gigabyte single files.
package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/tuannm99/rmdb/internal/alias/util"
)

// PageSize is the fixed compile-time page size for every file this module
// manages, shared by record files and index files alike.
const PageSize = 4096

// InvalidPageNo is the distinguished sentinel for "no such page".
const InvalidPageNo int32 = -1

var (
	ErrFileNotOpen  = errors.New("storage: file handle is not open")
	ErrShortPageIO  = errors.New("storage: short page read or write")
	ErrWrongPageLen = errors.New("storage: page buffer must be exactly PageSize bytes")
)

// PageID identifies a page by the file handle (fd) that owns it and a page
// number within that file. Page number 0 is reserved for the file's own
// header page.
type PageID struct {
	Fd     int
	PageNo int32
}

func (id PageID) Valid() bool { return id.PageNo != InvalidPageNo }

// Manager is the disk manager: it owns open file handles and hands out
// fresh page numbers, and performs the actual fixed-size page reads and
// writes the buffer pool relies on.
type Manager struct {
	mu      sync.Mutex
	files   map[int]*os.File
	nextNo  map[int]int32 // fd -> next page number AllocatePage will hand out
	nextFd  int
}

func NewManager() *Manager {
	return &Manager{
		files:  make(map[int]*os.File),
		nextNo: make(map[int]int32),
	}
}

// OpenFile opens (creating if needed) the file at path and returns a fresh
// fd for it. The page-number counter resumes from the file's current size.
func (m *Manager) OpenFile(path string) (int, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("storage: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("storage: stat %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	fd := m.nextFd
	m.nextFd++
	m.files[fd] = f
	m.nextNo[fd] = int32(info.Size() / PageSize)
	slog.Debug("storage: opened file", "path", path, "fd", fd, "pages", m.nextNo[fd])
	return fd, nil
}

// CloseFile closes the underlying *os.File for fd.
func (m *Manager) CloseFile(fd int) error {
	m.mu.Lock()
	f, ok := m.files[fd]
	if ok {
		delete(m.files, fd)
		delete(m.nextNo, fd)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	util.CloseFileFunc(f)
	return nil
}

// ReadPage reads exactly PageSize bytes at page pageNo of fd into dst.
// Reads past the current end of file are zero-filled, so a page that was
// allocated but never written reads back as all-zero.
func (m *Manager) ReadPage(fd int, pageNo int32, dst []byte) error {
	if len(dst) != PageSize {
		return ErrWrongPageLen
	}
	f, err := m.fileFor(fd)
	if err != nil {
		return err
	}
	off := int64(pageNo) * PageSize
	n, err := f.ReadAt(dst, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("storage: read fd=%d page=%d: %w", fd, pageNo, err)
	}
	for i := n; i < PageSize; i++ {
		dst[i] = 0
	}
	return nil
}

// WritePage writes exactly PageSize bytes from src to page pageNo of fd.
func (m *Manager) WritePage(fd int, pageNo int32, src []byte) error {
	if len(src) != PageSize {
		return ErrWrongPageLen
	}
	f, err := m.fileFor(fd)
	if err != nil {
		return err
	}
	off := int64(pageNo) * PageSize
	n, err := f.WriteAt(src, off)
	if err != nil {
		return fmt.Errorf("storage: write fd=%d page=%d: %w", fd, pageNo, err)
	}
	if n != PageSize {
		return ErrShortPageIO
	}
	return nil
}

// AllocatePage hands out the next page number for fd. It does not touch
// disk; the caller is expected to write the page before relying on it.
func (m *Manager) AllocatePage(fd int) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	no := m.nextNo[fd]
	m.nextNo[fd] = no + 1
	return no
}

// DeallocatePage releases a page number back to the file. This reference
// disk manager only logs the call: it does not reclaim or compact file
// space, and AllocatePage never hands the released number out again.
func (m *Manager) DeallocatePage(fd int, pageNo int32) error {
	slog.Debug("storage: deallocate page (no-op beyond bookkeeping)", "fd", fd, "page", pageNo)
	return nil
}

func (m *Manager) fileFor(fd int) (*os.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fd]
	if !ok {
		return nil, ErrFileNotOpen
	}
	return f, nil
}
