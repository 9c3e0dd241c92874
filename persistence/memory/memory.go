// Package memory provides a non-durable Backend, useful for tests and
// for transport/local-based multi-node simulations where no process
// restart ever has to recover state.
package memory

import (
	"context"
	"sync"

	raft "github.com/gitter-badger/raft"
)

type record struct {
	meta    raft.Meta
	hasMeta bool
	applied uint64
	state   map[uint64][]byte // naive "state machine": index -> command
}

// Backend is an in-memory raft.Backend keyed by node id. A single
// Backend instance may back several nodes, matching the per-nodeID
// partitioning raft.Backend's contract requires.
type Backend struct {
	mu      sync.Mutex
	records map[string]*record
	apply   raft.ApplyFunc
}

// Option configures a Backend at construction.
type Option func(*Backend)

// WithApplyFunc installs the state-machine hook ApplyLog invokes for
// every entry, before its watermark advances. Without one, a Backend
// still records the raw command bytes under their index (see record),
// a "naive state machine" useful on its own for tests.
func WithApplyFunc(fn raft.ApplyFunc) Option {
	return func(b *Backend) { b.apply = fn }
}

// New returns an empty in-memory Backend.
func New(opts ...Option) *Backend {
	b := &Backend{records: make(map[string]*record)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) recordFor(nodeID string) *record {
	r, ok := b.records[nodeID]
	if !ok {
		r = &record{state: make(map[uint64][]byte)}
		b.records[nodeID] = r
	}
	return r
}

func (b *Backend) LoadMeta(_ context.Context, nodeID string) (raft.Meta, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.records[nodeID]
	if !ok || !r.hasMeta {
		return raft.Meta{}, false, nil
	}
	return r.meta, true, nil
}

func (b *Backend) LastAppliedCommitIndex(_ context.Context, nodeID string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.records[nodeID]
	if !ok {
		return 0, nil
	}
	return r.applied, nil
}

func (b *Backend) SaveMeta(_ context.Context, nodeID string, meta raft.Meta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.recordFor(nodeID)
	r.meta = meta
	r.hasMeta = true
	return nil
}

func (b *Backend) ApplyLog(_ context.Context, nodeID string, index uint64, entry raft.LogEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.apply != nil {
		if err := b.apply(index, entry.Command); err != nil {
			return err
		}
	}
	r := b.recordFor(nodeID)
	r.state[index] = entry.Command
	if index > r.applied {
		r.applied = index
	}
	return nil
}
