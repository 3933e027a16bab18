// Command storageshell is an interactive REPL over the storage engine's
// record file and B+-tree index, for poking at the access-path layer
// directly without a SQL front end. Adapted from the teacher repo's
// cmd/client REPL (readline + file-backed history + meta-command
// dispatch), retargeted from SQL statements onto record/index operations.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/sourcegraph/conc"
	uberatomic "go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/tuannm99/rmdb/internal/bufferpool"
	"github.com/tuannm99/rmdb/internal/config"
	"github.com/tuannm99/rmdb/internal/ixbtree"
	"github.com/tuannm99/rmdb/internal/record"
	"github.com/tuannm99/rmdb/internal/replacer"
	"github.com/tuannm99/rmdb/internal/rmfile"
	"github.com/tuannm99/rmdb/internal/storage"
	"github.com/tuannm99/rmdb/internal/txn"
)

// demoRowSchema is a fixed two-column schema (an int32 id, a text label)
// used by the row-insert/row-get commands to exercise internal/record's
// codec from the shell, the way a real front end would encode application
// rows before handing them to the record file.
var demoRowSchema = record.Schema{Cols: []record.Column{
	{Name: "id", Type: record.ColInt32},
	{Name: "label", Type: record.ColText, Nullable: true, Width: 32},
}}

// session bundles the engine handles a single shell interacts with, plus a
// statement counter that counts dispatched statements (go.uber.org/atomic
// rather than sync/atomic, matching the teacher's client.Client.id field).
type session struct {
	dm    *storage.Manager
	pool  *bufferpool.Pool
	rec   *rmfile.File
	idx   *ixbtree.Index
	stmts uberatomic.Int64
	curTx *txn.Transaction
}

func newSession(cfg *config.Config) (*session, error) {
	dm := storage.NewManager()

	var policy replacer.Policy
	if cfg.BufferPool.Policy == "lru" {
		policy = replacer.NewLRU()
	} else {
		policy = replacer.NewClock(cfg.BufferPool.Capacity)
	}
	pool := bufferpool.New(dm, policy, cfg.BufferPool.Capacity)

	recPath := cfg.Record.DataDir
	if recPath == "" {
		recPath = "./rmdb-data/records.rec"
	}
	rec, err := openOrCreateRecordFile(dm, pool, recPath)
	if err != nil {
		return nil, fmt.Errorf("storageshell: open record file: %w", err)
	}

	idxPath := cfg.Index.DataDir
	if idxPath == "" {
		idxPath = "./rmdb-data/records.idx"
	}
	order := cfg.Index.Order
	if order <= 0 {
		order = 32
	}
	idx, err := openOrCreateIndex(dm, pool, idxPath, order)
	if err != nil {
		return nil, fmt.Errorf("storageshell: open index: %w", err)
	}

	return &session{dm: dm, pool: pool, rec: rec, idx: idx}, nil
}

// openOrCreateRecordFile sizes a new record file's slots to exactly
// demoRowSchema.RowSize(), so row-insert's EncodeRow output is always a
// valid InsertRecord argument. The raw `insert <hex>` command must supply
// buffers of that same fixed size.
func openOrCreateRecordFile(dm *storage.Manager, pool *bufferpool.Pool, path string) (*rmfile.File, error) {
	if _, err := os.Stat(path); err == nil {
		return rmfile.Open(dm, pool, path)
	}
	return rmfile.Create(dm, pool, path, int32(demoRowSchema.RowSize()))
}

func openOrCreateIndex(dm *storage.Manager, pool *bufferpool.Pool, path string, order int32) (*ixbtree.Index, error) {
	if _, err := os.Stat(path); err == nil {
		return ixbtree.Open(dm, pool, path)
	}
	return ixbtree.Create(dm, pool, path, 4, order, 0)
}

// close flushes and closes every open handle, combining any failures with
// go.uber.org/multierr so the caller sees every problem, not just the
// first.
func (s *session) close() error {
	var err error
	err = multierr.Append(err, s.rec.Close())
	err = multierr.Append(err, s.idx.Close())
	return err
}

func keyOf(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to a YAML config file (optional)")
		histPath = flag.String("history", defaultHistoryPath(), "history file path")
		histMax  = flag.Int("history-max", 2000, "max history lines loaded into memory")
	)
	flag.Parse()

	cfg := &config.Config{}
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg.BufferPool.Capacity = config.DefaultBufferPoolCapacity
		cfg.BufferPool.Policy = "clock"
	}

	sess, err := newSession(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// A background flusher keeps dirty pages bounded between interactive
	// commands. conc.WaitGroup re-panics on Wait if the goroutine panics,
	// instead of silently losing it the way a bare `go func(){}()` would.
	var wg conc.WaitGroup
	stop := make(chan struct{})
	wg.Go(func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = sess.rec.Flush()
				_ = sess.idx.Flush()
			}
		}
	})

	defer func() {
		close(stop)
		wg.Wait()
		if err := sess.close(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	h := newHistory(*histPath)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rmdb> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()
	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	fmt.Println("rmdb storage shell. type \\help for commands.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "\\q" || line == "quit" || line == "exit" {
			return
		}
		_ = h.Append(line)
		_ = rl.SaveHistory(line)
		sess.stmts.Inc()
		dispatch(sess, h, line)
	}
}

func dispatch(s *session, h *history, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd := fields[0]
	args := fields[1:]

	var err error
	switch cmd {
	case "\\help":
		printHelp()
	case "\\history":
		h.Print(50)
	case "begin":
		s.curTx = txn.Begin()
		fmt.Printf("began txn %d\n", s.curTx.ID())
	case "commit":
		err = cmdCommit(s)
	case "abort":
		err = cmdAbort(s)
	case "insert":
		err = cmdInsert(s, args)
	case "row-insert":
		err = cmdRowInsert(s, args)
	case "row-get":
		err = cmdRowGet(s, args)
	case "get":
		err = cmdGet(s, args)
	case "delete":
		err = cmdDelete(s, args)
	case "update":
		err = cmdUpdate(s, args)
	case "idx-put":
		err = cmdIdxPut(s, args)
	case "idx-get":
		err = cmdIdxGet(s, args)
	case "idx-del":
		err = cmdIdxDel(s, args)
	case "scan":
		err = cmdScan(s)
	default:
		fmt.Printf("unknown command: %s (try \\help)\n", cmd)
		return
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func printHelp() {
	fmt.Println(`commands:
  insert <hex>                  insert a record (must decode to exactly the file's record size)
  row-insert <id> <label>       encode (id int32, label text) and insert it
  row-get <page> <slot>         fetch a record and decode it with the demo schema
  get <page> <slot>             fetch a record by rid
  delete <page> <slot>          delete a record by rid
  update <page> <slot> <hex>    overwrite a record in place
  idx-put <key:uint32> <page> <slot>   insert into the index
  idx-get <key:uint32>          look up a key
  idx-del <key:uint32>          delete a key
  scan                          list every (key, rid) in ascending order
  begin / commit / abort        demo transaction write-set rollback
  \history                      show command history
  \help                         this message
  quit | exit | \q              leave`)
}

func cmdCommit(s *session) error {
	if s.curTx == nil {
		return fmt.Errorf("no transaction in progress")
	}
	err := txn.Commit(s.curTx)
	s.curTx = nil
	return err
}

func cmdAbort(s *session) error {
	if s.curTx == nil {
		return fmt.Errorf("no transaction in progress")
	}
	err := txn.Abort(s.curTx, s.rec)
	s.curTx = nil
	return err
}

func cmdInsert(s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: insert <hex>")
	}
	buf, err := hex.DecodeString(args[0])
	if err != nil {
		return err
	}
	rid, err := s.rec.InsertRecord(buf)
	if err != nil {
		return err
	}
	if s.curTx != nil {
		s.curTx.RecordWrite(txn.WriteInsert, rid, nil)
	}
	fmt.Printf("rid=%d:%d\n", rid.PageNo, rid.SlotNo)
	return nil
}

func cmdRowInsert(s *session, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: row-insert <id:int32> <label>")
	}
	id, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return err
	}
	buf, err := record.EncodeRow(demoRowSchema, []any{int32(id), args[1]})
	if err != nil {
		return err
	}
	rid, err := s.rec.InsertRecord(buf)
	if err != nil {
		return err
	}
	if s.curTx != nil {
		s.curTx.RecordWrite(txn.WriteInsert, rid, nil)
	}
	fmt.Printf("rid=%d:%d\n", rid.PageNo, rid.SlotNo)
	return nil
}

func cmdRowGet(s *session, args []string) error {
	rid, err := parseRid(args)
	if err != nil {
		return err
	}
	rec, err := s.rec.GetRecord(rid)
	if err != nil {
		return err
	}
	values, err := record.DecodeRow(demoRowSchema, rec.Data)
	if err != nil {
		return err
	}
	fmt.Printf("id=%v label=%v\n", values[0], values[1])
	return nil
}

func parseRid(args []string) (rmfile.Rid, error) {
	if len(args) < 2 {
		return rmfile.Rid{}, fmt.Errorf("expected <page> <slot>")
	}
	page, err := strconv.Atoi(args[0])
	if err != nil {
		return rmfile.Rid{}, err
	}
	slot, err := strconv.Atoi(args[1])
	if err != nil {
		return rmfile.Rid{}, err
	}
	return rmfile.Rid{PageNo: int32(page), SlotNo: int32(slot)}, nil
}

func cmdGet(s *session, args []string) error {
	rid, err := parseRid(args)
	if err != nil {
		return err
	}
	rec, err := s.rec.GetRecord(rid)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(rec.Data))
	return nil
}

func cmdDelete(s *session, args []string) error {
	rid, err := parseRid(args)
	if err != nil {
		return err
	}
	if s.curTx != nil {
		old, err := s.rec.GetRecord(rid)
		if err == nil {
			s.curTx.RecordWrite(txn.WriteDelete, rid, old.Data)
		}
	}
	return s.rec.DeleteRecord(rid)
}

func cmdUpdate(s *session, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: update <page> <slot> <hex>")
	}
	rid, err := parseRid(args[:2])
	if err != nil {
		return err
	}
	buf, err := hex.DecodeString(args[2])
	if err != nil {
		return err
	}
	if s.curTx != nil {
		old, err := s.rec.GetRecord(rid)
		if err == nil {
			s.curTx.RecordWrite(txn.WriteUpdate, rid, old.Data)
		}
	}
	return s.rec.UpdateRecord(rid, buf)
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	return uint32(n), err
}

func cmdIdxPut(s *session, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: idx-put <key> <page> <slot>")
	}
	key, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	rid, err := parseRid(args[1:])
	if err != nil {
		return err
	}
	inserted, err := s.idx.Insert(keyOf(key), rid)
	if err != nil {
		return err
	}
	if !inserted {
		fmt.Println("duplicate key, not inserted")
	}
	return nil
}

func cmdIdxGet(s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: idx-get <key>")
	}
	key, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	rid, found, err := s.idx.GetValue(keyOf(key))
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("not found")
		return nil
	}
	fmt.Printf("rid=%d:%d\n", rid.PageNo, rid.SlotNo)
	return nil
}

func cmdIdxDel(s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: idx-del <key>")
	}
	key, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	deleted, err := s.idx.Delete(keyOf(key))
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Println("not found")
	}
	return nil
}

func cmdScan(s *session) error {
	keys, rids, err := s.idx.ScanAscending()
	if err != nil {
		return err
	}
	for i, k := range keys {
		fmt.Printf("%d -> rid=%d:%d\n", binary.BigEndian.Uint32(k), rids[i].PageNo, rids[i].SlotNo)
	}
	return nil
}
