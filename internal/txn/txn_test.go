package txn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/rmdb/internal/bufferpool"
	"github.com/tuannm99/rmdb/internal/replacer"
	"github.com/tuannm99/rmdb/internal/rmfile"
	"github.com/tuannm99/rmdb/internal/storage"
)

func newTestFile(t *testing.T) *rmfile.File {
	t.Helper()
	dir := t.TempDir()
	dm := storage.NewManager()
	pool := bufferpool.New(dm, replacer.NewClock(8), 8)
	f, err := rmfile.Create(dm, pool, dir+"/test.rec", 16)
	require.NoError(t, err)
	return f
}

func TestBeginCommit_ClearsWriteSet(t *testing.T) {
	tx := Begin()
	tx.RecordWrite(WriteInsert, rmfile.Rid{PageNo: 1, SlotNo: 0}, nil)
	require.NoError(t, Commit(tx))
	require.Equal(t, StateCommitted, tx.State())
	require.Empty(t, tx.writes)

	require.ErrorIs(t, Commit(tx), ErrAlreadyFinished)
}

func TestLookup_FindsBegunTransaction(t *testing.T) {
	tx := Begin()
	found, ok := Lookup(tx.ID())
	require.True(t, ok)
	require.Same(t, tx, found)
}

func TestAbort_UndoesInsertByDeleting(t *testing.T) {
	f := newTestFile(t)
	tx := Begin()

	buf := make([]byte, 16)
	copy(buf, "inserted-record!")
	rid, err := f.InsertRecord(buf)
	require.NoError(t, err)
	tx.RecordWrite(WriteInsert, rid, nil)

	require.NoError(t, Abort(tx, f))
	require.Equal(t, StateAborted, tx.State())

	_, err = f.GetRecord(rid)
	require.ErrorIs(t, err, rmfile.ErrRecordNotExist)
}

func TestAbort_UndoesDeleteByReinserting(t *testing.T) {
	f := newTestFile(t)
	orig := make([]byte, 16)
	copy(orig, "original-bytes!!")
	rid, err := f.InsertRecord(orig)
	require.NoError(t, err)

	tx := Begin()
	rec, err := f.GetRecord(rid)
	require.NoError(t, err)
	require.NoError(t, f.DeleteRecord(rid))
	tx.RecordWrite(WriteDelete, rid, rec.Data)

	require.NoError(t, Abort(tx, f))

	rec2, err := f.GetRecord(rid)
	require.NoError(t, err)
	require.Equal(t, orig, rec2.Data)
}

func TestAbort_UndoesUpdateByRestoringOldBytes(t *testing.T) {
	f := newTestFile(t)
	orig := make([]byte, 16)
	copy(orig, "original-bytes!!")
	rid, err := f.InsertRecord(orig)
	require.NoError(t, err)

	tx := Begin()
	rec, err := f.GetRecord(rid)
	require.NoError(t, err)
	updated := make([]byte, 16)
	copy(updated, "updated-bytes!!!")
	require.NoError(t, f.UpdateRecord(rid, updated))
	tx.RecordWrite(WriteUpdate, rid, rec.Data)

	require.NoError(t, Abort(tx, f))

	rec2, err := f.GetRecord(rid)
	require.NoError(t, err)
	require.Equal(t, orig, rec2.Data)
}

func TestAbort_UndoesMultipleWritesInReverseOrder(t *testing.T) {
	f := newTestFile(t)
	orig := make([]byte, 16)
	copy(orig, "original-bytes!!")
	rid0, err := f.InsertRecord(orig)
	require.NoError(t, err)

	tx := Begin()

	// Two successive updates of rid0: undoing them most-recent-first ends
	// on the original bytes, oldest-first would leave the middle version.
	mid := make([]byte, 16)
	copy(mid, "middle-version!!")
	require.NoError(t, f.UpdateRecord(rid0, mid))
	tx.RecordWrite(WriteUpdate, rid0, orig)
	last := make([]byte, 16)
	copy(last, "latest-version!!")
	require.NoError(t, f.UpdateRecord(rid0, last))
	tx.RecordWrite(WriteUpdate, rid0, mid)

	buf1 := make([]byte, 16)
	copy(buf1, "first-record!!!!")
	rid1, err := f.InsertRecord(buf1)
	require.NoError(t, err)
	tx.RecordWrite(WriteInsert, rid1, nil)

	buf2 := make([]byte, 16)
	copy(buf2, "second-record!!!")
	rid2, err := f.InsertRecord(buf2)
	require.NoError(t, err)
	tx.RecordWrite(WriteInsert, rid2, nil)

	require.NoError(t, Abort(tx, f))

	_, err = f.GetRecord(rid1)
	require.ErrorIs(t, err, rmfile.ErrRecordNotExist)
	_, err = f.GetRecord(rid2)
	require.ErrorIs(t, err, rmfile.ErrRecordNotExist)
	rec0, err := f.GetRecord(rid0)
	require.NoError(t, err)
	require.Equal(t, orig, rec0.Data)
}

func TestAbort_AlreadyFinished_Errors(t *testing.T) {
	f := newTestFile(t)
	tx := Begin()
	require.NoError(t, Commit(tx))
	require.ErrorIs(t, Abort(tx, f), ErrAlreadyFinished)
}
