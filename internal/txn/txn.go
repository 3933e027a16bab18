// Package txn is a thin transaction manager: it tracks each transaction's
// write-set so Abort can undo it through the record file's idempotent
// rollback primitives. There is no lock manager, no isolation levels, and
// no WAL integration here — serialization across record-file operations is
// the caller's job.
//
// Grounded on original_source's transaction_manager.cpp (Begin/Commit/Abort
// walking a write-set of WriteRecord{type, rid, old_buf} in reverse), which
// the distilled spec dropped; reintroduced here in the teacher's style
// (process-wide table guarded by a mutex, sync/atomic id counter).
package txn

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tuannm99/rmdb/internal/rmfile"
)

// WriteKind tags what kind of record mutation a WriteRecord undoes.
type WriteKind int

const (
	WriteInsert WriteKind = iota
	WriteDelete
	WriteUpdate
)

// WriteRecord is one entry in a transaction's write-set: enough to undo a
// single record mutation via the record file's rollback-form operations.
type WriteRecord struct {
	Kind   WriteKind
	Rid    rmfile.Rid
	OldBuf []byte // pre-mutation bytes; nil for WriteInsert (nothing existed before)
}

// State is a transaction's lifecycle stage.
type State int

const (
	StateRunning State = iota
	StateCommitted
	StateAborted
)

// ErrAlreadyFinished is returned by Commit/Abort on a transaction that has
// already left the running state.
var ErrAlreadyFinished = errors.New("txn: transaction is already committed or aborted")

// Transaction accumulates a write-set for rollback and is otherwise inert:
// it carries no locks and enforces no isolation level.
type Transaction struct {
	id int64

	mu     sync.Mutex
	state  State
	writes []WriteRecord
}

func (t *Transaction) ID() int64 { return t.id }

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RecordWrite appends an undo entry to the write-set. Call it before
// applying the corresponding mutation so the old bytes are captured for
// abort. oldBuf is copied; callers may reuse their buffer afterward.
func (t *Transaction) RecordWrite(kind WriteKind, rid rmfile.Rid, oldBuf []byte) {
	var cp []byte
	if oldBuf != nil {
		cp = make([]byte, len(oldBuf))
		copy(cp, oldBuf)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, WriteRecord{Kind: kind, Rid: rid, OldBuf: cp})
}

var nextID int64

var (
	tableMu sync.Mutex
	table   = make(map[int64]*Transaction)
)

// Begin allocates a transaction id and registers it in the process-wide
// transaction table.
func Begin() *Transaction {
	id := atomic.AddInt64(&nextID, 1)
	t := &Transaction{id: id, state: StateRunning}
	tableMu.Lock()
	table[id] = t
	tableMu.Unlock()
	slog.Debug("txn: began", "id", id)
	return t
}

// Lookup returns the transaction registered under id, if it is still known
// to the process-wide table.
func Lookup(id int64) (*Transaction, bool) {
	tableMu.Lock()
	defer tableMu.Unlock()
	t, ok := table[id]
	return t, ok
}

// Commit discards the write-set (nothing left to undo) and marks txn
// committed.
func Commit(txn *Transaction) error {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	if txn.state != StateRunning {
		return ErrAlreadyFinished
	}
	txn.writes = nil
	txn.state = StateCommitted
	slog.Debug("txn: committed", "id", txn.id)
	return nil
}

// Abort walks txn's write-set in reverse, undoing each entry through rf's
// rollback-form operations, and marks txn aborted. Undo order matters: a
// later write may have touched a page an earlier write also touched, so
// entries must be reverted most-recent-first.
func Abort(txn *Transaction, rf *rmfile.File) error {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	if txn.state != StateRunning {
		return ErrAlreadyFinished
	}
	for i := len(txn.writes) - 1; i >= 0; i-- {
		w := txn.writes[i]
		var err error
		switch w.Kind {
		case WriteInsert:
			err = rf.DeleteRecord(w.Rid)
		case WriteDelete:
			err = rf.InsertRecordAt(w.Rid, w.OldBuf)
		case WriteUpdate:
			err = rf.UpdateRecord(w.Rid, w.OldBuf)
		default:
			err = fmt.Errorf("txn: unknown write kind %d", w.Kind)
		}
		if err != nil {
			return fmt.Errorf("txn: abort id=%d undo entry %d: %w", txn.id, i, err)
		}
	}
	txn.writes = nil
	txn.state = StateAborted
	slog.Debug("txn: aborted", "id", txn.id)
	return nil
}
