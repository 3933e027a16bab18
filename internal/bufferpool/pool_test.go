package bufferpool

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/rmdb/internal/replacer"
	"github.com/tuannm99/rmdb/internal/storage"
)

// newTestPool creates a temporary file and a buffer pool of the given
// capacity over it, backed by a CLOCK policy. It returns the pool, the fd,
// and a cleanup function.
func newTestPool(t *testing.T, capacity int) (*Pool, int, func()) {
	t.Helper()

	dir := t.TempDir()
	dm := storage.NewManager()
	fd, err := dm.OpenFile(dir + "/testfile.db")
	require.NoError(t, err)

	pool := New(dm, replacer.NewClock(capacity), capacity)
	cleanup := func() {
		_ = os.RemoveAll(dir)
	}
	return pool, fd, cleanup
}

func TestPool_Fetch_LoadsAndPins(t *testing.T) {
	pool, fd, cleanup := newTestPool(t, 4)
	defer cleanup()

	pageID := storage.PageID{Fd: fd, PageNo: 0}

	f1, err := pool.Fetch(pageID)
	require.NoError(t, err)
	require.NotNil(t, f1)
	require.Equal(t, pageID, f1.PageID)
	require.Equal(t, int32(1), f1.Pin)
	require.False(t, f1.Dirty)

	f2, err := pool.Fetch(pageID)
	require.NoError(t, err)
	require.Same(t, f1, f2)
	require.Equal(t, int32(2), f2.Pin)
}

func TestPool_Fetch_Full_NoFreeFrameError(t *testing.T) {
	pool, fd, cleanup := newTestPool(t, 1)
	defer cleanup()

	_, err := pool.Fetch(storage.PageID{Fd: fd, PageNo: 0})
	require.NoError(t, err)

	_, err = pool.Fetch(storage.PageID{Fd: fd, PageNo: 1})
	require.ErrorIs(t, err, ErrNoFreeFrame)
}

func TestPool_EvictDirtyFrameFlushesToDisk(t *testing.T) {
	pool, fd, cleanup := newTestPool(t, 1)
	defer cleanup()

	p0 := storage.PageID{Fd: fd, PageNo: 0}
	p1 := storage.PageID{Fd: fd, PageNo: 1}

	f0, err := pool.Fetch(p0)
	require.NoError(t, err)
	f0.Buf[0] = 42

	require.True(t, pool.Unpin(p0, true))
	require.Equal(t, int32(0), f0.Pin)
	require.True(t, f0.Dirty)

	// Forces eviction of page 0 since the pool has only one frame.
	_, err = pool.Fetch(p1)
	require.NoError(t, err)

	raw := make([]byte, storage.PageSize)
	require.NoError(t, pool.dm.ReadPage(fd, 0, raw))
	require.Equal(t, byte(42), raw[0])
}

func TestPool_FlushAll_WritesDirtyFrames(t *testing.T) {
	pool, fd, cleanup := newTestPool(t, 2)
	defer cleanup()

	p0 := storage.PageID{Fd: fd, PageNo: 0}
	p1 := storage.PageID{Fd: fd, PageNo: 1}

	f0, err := pool.Fetch(p0)
	require.NoError(t, err)
	f1, err := pool.Fetch(p1)
	require.NoError(t, err)

	f0.Buf[10] = 11
	f1.Buf[20] = 22

	require.True(t, pool.Unpin(p0, true))
	require.True(t, pool.Unpin(p1, true))

	require.NoError(t, pool.FlushAll(fd))
	require.False(t, f0.Dirty)
	require.False(t, f1.Dirty)

	raw := make([]byte, storage.PageSize)
	require.NoError(t, pool.dm.ReadPage(fd, 0, raw))
	require.Equal(t, byte(11), raw[10])
	require.NoError(t, pool.dm.ReadPage(fd, 1, raw))
	require.Equal(t, byte(22), raw[20])
}

func TestPool_NewPage_AllocatesAndPins(t *testing.T) {
	pool, fd, cleanup := newTestPool(t, 2)
	defer cleanup()

	f, pageID, err := pool.NewPage(fd)
	require.NoError(t, err)
	require.Equal(t, int32(0), pageID.PageNo)
	require.Equal(t, int32(1), f.Pin)

	f2, pageID2, err := pool.NewPage(fd)
	require.NoError(t, err)
	require.Equal(t, int32(1), pageID2.PageNo)
	require.NotSame(t, f, f2)
}

func TestPool_DeletePage_RefusesWhilePinned(t *testing.T) {
	pool, fd, cleanup := newTestPool(t, 1)
	defer cleanup()

	pageID := storage.PageID{Fd: fd, PageNo: 0}
	_, err := pool.Fetch(pageID)
	require.NoError(t, err)

	ok, err := pool.DeletePage(pageID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPool_DeletePage_FreesFrameForReuse(t *testing.T) {
	pool, fd, cleanup := newTestPool(t, 1)
	defer cleanup()

	p0 := storage.PageID{Fd: fd, PageNo: 0}
	_, err := pool.Fetch(p0)
	require.NoError(t, err)
	require.True(t, pool.Unpin(p0, false))

	ok, err := pool.DeletePage(p0)
	require.NoError(t, err)
	require.True(t, ok)

	p1 := storage.PageID{Fd: fd, PageNo: 1}
	_, err = pool.Fetch(p1)
	require.NoError(t, err)
}

func TestNewPool_DefaultCapacity(t *testing.T) {
	dir := t.TempDir()
	dm := storage.NewManager()
	fd, err := dm.OpenFile(dir + "/testfile.db")
	require.NoError(t, err)

	pool := New(dm, replacer.NewClock(0), 0)
	require.Equal(t, 16, pool.capacity)

	_, err = pool.Fetch(storage.PageID{Fd: fd, PageNo: 0})
	require.NoError(t, err)
}
