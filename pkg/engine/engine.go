// Package engine provides the embedded graph data engine behind elograph.
//
// It stores typed nodes and directed edges with schema-checked key/value
// payloads, keeps the adjacency, type and geospatial indices transactionally
// consistent with the tables they derive from, and answers recommendation
// and proximity queries over consistent snapshots.
//
// Basic usage:
//
//	opts := engine.DefaultOptions("./data")
//	eng, err := engine.Open(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elodb/elograph/pkg/core"
	"github.com/elodb/elograph/pkg/persistence"
)

// Options configures the engine, including persistence paths and automatic
// maintenance policies.
type Options struct {
	// DataDir is the directory where the journal file is stored.
	// It is created automatically if it does not exist.
	DataDir string

	// AofFilename is the name of the append-only journal file
	// (default: "elograph.aof").
	AofFilename string

	// AofRewritePercentage triggers an automatic journal compaction when
	// the file size exceeds the post-load size by this percentage.
	// E.g., 100 means rewrite when size doubles. Set to 0 to disable.
	AofRewritePercentage int

	// MaintenanceInterval defines how often the background maintenance
	// check runs. Default: 10 seconds.
	MaintenanceInterval time.Duration
}

// DefaultOptions returns a standard configuration suitable for most use cases.
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:              dataDir,
		AofFilename:          "elograph.aof",
		AofRewritePercentage: 100,
		MaintenanceInterval:  10 * time.Second,
	}
}

// Engine is the main entry point for the graph store. It coordinates the
// in-memory transactional tree and the on-disk journal.
//
// Use Open() to initialize an Engine and Close() to shut it down gracefully.
type Engine struct {
	store *core.Store
	aof   *persistence.AOFWriter

	opts        Options
	aofPath     string
	aofBaseSize int64

	// dirtyCounter tracks committed transactions since startup.
	dirtyCounter int64

	// adminMu serializes administrative tasks (journal rewrite).
	adminMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// aofJournal adapts the AOF writer to the store's Journal contract: one
// committed transaction becomes one CRC-framed record.
type aofJournal struct {
	aof *persistence.AOFWriter
}

func (j aofJournal) Append(ops []core.Op) error {
	return j.aof.AppendFrame(persistence.EncodeOps(ops))
}

// Open initializes an Engine:
//  1. Creates DataDir if missing.
//  2. Replays the journal to recover the previous state.
//  3. Starts the background maintenance goroutine.
//
// It blocks until the graph is fully loaded and ready.
func Open(opts Options) (*Engine, error) {
	if opts.AofFilename == "" {
		opts.AofFilename = "elograph.aof"
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	aofPath := filepath.Join(opts.DataDir, opts.AofFilename)
	aof, err := persistence.NewAOFWriter(aofPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:   core.NewStore(aofJournal{aof: aof}),
		aof:     aof,
		opts:    opts,
		aofPath: aofPath,
		closed:  make(chan struct{}),
	}

	if err := e.replayJournal(); err != nil {
		_ = aof.Close()
		return nil, fmt.Errorf("failed to replay journal: %w", err)
	}

	if size, err := aof.Size(); err == nil {
		e.aofBaseSize = size
	}

	e.wg.Add(1)
	go e.backgroundTasks()

	return e, nil
}

// Close performs a clean shutdown: it stops background maintenance and
// syncs and closes the journal. All committed data is already on disk.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closed)
		e.wg.Wait()
		if e.aof != nil {
			err = e.aof.Close()
		}
	})
	return err
}

// replayJournal loads the journal frame by frame into the store. A torn or
// corrupt tail frame (crash mid-commit) is cut off; the transaction it
// belonged to was never acknowledged, so dropping it is correct.
func (e *Engine) replayJournal() error {
	f, err := os.Open(e.aofPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var offset int64
	var frames int
	for {
		payload, n, err := persistence.ReadFrame(f)
		if err == io.EOF {
			break
		}
		if errors.Is(err, persistence.ErrIncompleteFrame) ||
			errors.Is(err, persistence.ErrChecksumMismatch) ||
			errors.Is(err, persistence.ErrInvalidMagic) {
			slog.Warn("journal tail corrupt, truncating",
				"offset", offset, "error", err)
			if terr := e.aof.Truncate(offset); terr != nil {
				return fmt.Errorf("failed to truncate corrupt journal tail: %w", terr)
			}
			break
		}
		if err != nil {
			return err
		}

		ops, err := persistence.DecodeOps(payload)
		if err != nil {
			return err
		}
		e.store.Apply(ops)
		offset += int64(n)
		frames++
	}

	if frames > 0 {
		slog.Info("journal replayed", "transactions", frames, "keys", e.store.Len())
	}
	return nil
}

// backgroundTasks periodically fsyncs the journal and checks the
// compaction policy. (Unexported: internal use only)
func (e *Engine) backgroundTasks() {
	defer e.wg.Done()

	syncTicker := time.NewTicker(1 * time.Second)
	defer syncTicker.Stop()

	interval := e.opts.MaintenanceInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	maintTicker := time.NewTicker(interval)
	defer maintTicker.Stop()

	for {
		select {
		case <-e.closed:
			return
		case <-syncTicker.C:
			if err := e.aof.Sync(); err != nil {
				slog.Error("background journal sync failed", "error", err)
			}
		case <-maintTicker.C:
			e.checkMaintenance()
		}
	}
}

// checkMaintenance evaluates whether a journal rewrite is due.
func (e *Engine) checkMaintenance() {
	if e.opts.AofRewritePercentage <= 0 {
		return
	}
	size, err := e.aof.Size()
	if err != nil {
		return
	}
	threshold := e.aofBaseSize + e.aofBaseSize*int64(e.opts.AofRewritePercentage)/100
	// Min threshold 1MB to avoid rewriting tiny files constantly.
	if threshold < 1024*1024 {
		threshold = 1024 * 1024
	}
	if e.aofBaseSize > 0 && size > threshold {
		if err := e.RewriteAOF(); err != nil {
			slog.Error("background journal rewrite failed", "error", err)
		}
	}
}

// rewriteBatchSize bounds the ops per frame during compaction.
const rewriteBatchSize = 1024

// RewriteAOF compacts the journal by dumping the current snapshot as a
// fresh sequence of set frames and atomically swapping the file. Commits
// occurring during the rewrite are serialized after the snapshot and are
// re-appended to the new file by the journal as usual.
func (e *Engine) RewriteAOF() error {
	e.adminMu.Lock()
	defer e.adminMu.Unlock()

	// Hold the write lock across the dump so no commit lands in the old
	// file after our snapshot and gets lost in the swap.
	tx := e.store.Write()
	defer tx.Discard()
	sn := tx.Snapshot()

	tmpPath := e.aofPath + ".rewrite"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create rewrite file: %w", err)
	}
	fw := persistence.NewFrameWriter(f)

	batch := make([]core.Op, 0, rewriteBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fw.WriteFrame(persistence.EncodeOps(batch)); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	var dumpErr error
	sn.AscendPrefix("", func(key string, value []byte) bool {
		batch = append(batch, core.Op{Kind: core.OpSet, Key: key, Value: value})
		if len(batch) == rewriteBatchSize {
			if dumpErr = flush(); dumpErr != nil {
				return false
			}
		}
		return true
	})
	if dumpErr == nil {
		dumpErr = flush()
	}
	if dumpErr == nil {
		dumpErr = f.Sync()
	}
	if cerr := f.Close(); dumpErr == nil {
		dumpErr = cerr
	}
	if dumpErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal rewrite failed: %w", dumpErr)
	}

	if err := e.aof.ReplaceWith(tmpPath); err != nil {
		return err
	}
	if size, err := e.aof.Size(); err == nil {
		e.aofBaseSize = size
	}
	slog.Info("journal rewritten", "keys", sn.Len())
	return nil
}

// commit finalizes a write transaction, mapping journal failures onto the
// store failure sentinel.
func (e *Engine) commit(tx *core.Txn) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	atomic.AddInt64(&e.dirtyCounter, 1)
	return nil
}

// Stats reports coarse engine counters, used by the health endpoint.
type Stats struct {
	Keys     int   `json:"keys"`
	Commits  int64 `json:"commits"`
	AofSizeB int64 `json:"aof_size_bytes"`
}

// Stats returns current engine counters.
func (e *Engine) Stats() Stats {
	size, _ := e.aof.Size()
	return Stats{
		Keys:     e.store.Len(),
		Commits:  atomic.LoadInt64(&e.dirtyCounter),
		AofSizeB: size,
	}
}
