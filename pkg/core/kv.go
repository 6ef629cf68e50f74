// Package core provides the fundamental storage layer for the elograph engine.
//
// This file implements a transactional, ordered key-value store built on a
// copy-on-write B-Tree. Readers obtain immutable snapshots that are never
// blocked by writers; writers are serialized with respect to each other and
// publish their staged mutations atomically, so a snapshot can never observe
// a half-applied transaction.
package core

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"
)

// Item is a single key-value pair stored in the ordered tree.
type Item struct {
	Key   string
	Value []byte
}

func lessItem(a, b Item) bool {
	return a.Key < b.Key
}

// OpKind identifies the type of a staged mutation.
type OpKind byte

const (
	// OpSet adds or replaces the value for a key.
	OpSet OpKind = iota + 1
	// OpDelete removes a key.
	OpDelete
)

// Op is one staged mutation of a write transaction. The full op list of a
// committed transaction is handed to the Journal as a single atomic record.
type Op struct {
	Kind  OpKind
	Key   string
	Value []byte
}

// Journal receives the complete op list of a committing transaction before
// the ops become visible in memory. If Append returns an error the commit is
// aborted and none of the ops are applied.
//
// The engine wires this to the append-only file; passing nil disables
// durability (useful in tests).
type Journal interface {
	Append(ops []Op) error
}

// Store is the transactional key-value store.
//
// The published tree is treated as immutable: readers load the current root
// and keep it for the lifetime of their snapshot, while a committing writer
// clones the root, applies its ops to the clone and swaps the root pointer.
type Store struct {
	// writeMu serializes write transactions from Write() until
	// Commit/Discard. At most one commit is ever in flight.
	writeMu sync.Mutex

	root    atomic.Pointer[btree.BTreeG[Item]]
	journal Journal
}

// NewStore creates an empty Store. journal may be nil.
func NewStore(journal Journal) *Store {
	s := &Store{journal: journal}
	s.root.Store(btree.NewBTreeG(lessItem))
	return s
}

// Read returns a consistent snapshot of the store. Snapshots are cheap: no
// data is copied and the caller never blocks writers or other readers.
func (s *Store) Read() *Snapshot {
	return &Snapshot{tree: s.root.Load()}
}

// Write begins a write transaction. It blocks until any other write
// transaction has finished; the caller must end it with Commit or Discard.
func (s *Store) Write() *Txn {
	s.writeMu.Lock()
	return &Txn{
		store:  s,
		base:   &Snapshot{tree: s.root.Load()},
		staged: make(map[string]Op),
	}
}

// Apply installs ops directly, bypassing the journal. It is used when
// replaying the journal at startup, where each record was already written
// as one atomic frame.
func (s *Store) Apply(ops []Op) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.publish(ops)
}

func (s *Store) publish(ops []Op) {
	next := s.root.Load().Copy()
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			next.Set(Item{Key: op.Key, Value: op.Value})
		case OpDelete:
			next.Delete(Item{Key: op.Key})
		}
	}
	s.root.Store(next)
}

// Len returns the number of keys in the current published tree.
func (s *Store) Len() int {
	return s.root.Load().Len()
}

// Snapshot is an immutable, point-in-time view of the store.
type Snapshot struct {
	tree *btree.BTreeG[Item]
}

// Get retrieves the value for a key.
func (sn *Snapshot) Get(key string) ([]byte, bool) {
	item, found := sn.tree.Get(Item{Key: key})
	if !found {
		return nil, false
	}
	return item.Value, true
}

// AscendPrefix visits, in ascending key order, every pair whose key starts
// with prefix. Iteration stops early when fn returns false.
func (sn *Snapshot) AscendPrefix(prefix string, fn func(key string, value []byte) bool) {
	sn.tree.Ascend(Item{Key: prefix}, func(item Item) bool {
		if !strings.HasPrefix(item.Key, prefix) {
			return false
		}
		return fn(item.Key, item.Value)
	})
}

// Len returns the number of keys visible in the snapshot.
func (sn *Snapshot) Len() int {
	return sn.tree.Len()
}

// Txn is a write transaction. Reads observe the snapshot taken at Write()
// plus the transaction's own staged mutations.
type Txn struct {
	store  *Store
	base   *Snapshot
	ops    []Op
	staged map[string]Op
	done   bool
}

// Get reads a key through the transaction (read-your-writes).
func (t *Txn) Get(key string) ([]byte, bool) {
	if op, ok := t.staged[key]; ok {
		if op.Kind == OpDelete {
			return nil, false
		}
		return op.Value, true
	}
	return t.base.Get(key)
}

// Snapshot exposes the transaction's base snapshot for range scans. Keys
// staged inside the transaction are NOT visible through it.
func (t *Txn) Snapshot() *Snapshot {
	return t.base
}

// Set stages a key-value write.
func (t *Txn) Set(key string, value []byte) {
	op := Op{Kind: OpSet, Key: key, Value: value}
	t.ops = append(t.ops, op)
	t.staged[key] = op
}

// Delete stages a key removal.
func (t *Txn) Delete(key string) {
	op := Op{Kind: OpDelete, Key: key}
	t.ops = append(t.ops, op)
	t.staged[key] = op
}

// Pending reports how many ops the transaction has staged.
func (t *Txn) Pending() int {
	return len(t.ops)
}

// Commit journals the staged ops as one atomic record and publishes them.
// On a journal error nothing is applied and the error is returned; the
// transaction is finished either way.
func (t *Txn) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	defer t.store.writeMu.Unlock()

	if len(t.ops) == 0 {
		return nil
	}
	if t.store.journal != nil {
		if err := t.store.journal.Append(t.ops); err != nil {
			return fmt.Errorf("journal append failed: %w", err)
		}
	}
	t.store.publish(t.ops)
	return nil
}

// Discard ends the transaction without applying anything. Calling it after
// Commit is a no-op, so it is safe to defer.
func (t *Txn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.store.writeMu.Unlock()
}
