// Package bolt is the durable raft.Backend, grounded on go.etcd.io/bbolt
// the way this codebase's neighboring storage layers use it: one
// writable mmap'd file, one bucket per node id, gob-encoded records, and
// every write committed inside a single bbolt transaction so SaveMeta
// and ApplyLog are each atomic with respect to a crash.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	raft "github.com/gitter-badger/raft"
)

var (
	metaKey    = []byte("meta")
	appliedKey = []byte("applied")
)

// Backend persists every node's Meta and applied-index watermark in its
// own top-level bucket of a single bbolt database file.
type Backend struct {
	db    *bolt.DB
	apply raft.ApplyFunc
}

// Option configures a Backend at construction.
type Option func(*Backend)

// WithApplyFunc installs the state-machine hook ApplyLog invokes for
// every entry, inside the same bbolt transaction that advances the
// applied watermark. Without one, a Backend still records the raw
// command bytes under a sortable per-index key.
func WithApplyFunc(fn raft.ApplyFunc) Option {
	return func(b *Backend) { b.apply = fn }
}

// Open opens (creating if necessary) a bbolt database at path.
func Open(path string, opts ...Option) (*Backend, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "raft/persistence/bolt: open")
	}
	b := &Backend{db: db}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Close releases the underlying database file.
func (b *Backend) Close() error {
	return b.db.Close()
}

func bucketName(nodeID string) []byte { return []byte("node:" + nodeID) }

func (b *Backend) LoadMeta(_ context.Context, nodeID string) (raft.Meta, bool, error) {
	var meta raft.Meta
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketName(nodeID))
		if bkt == nil {
			return nil
		}
		raw := bkt.Get(metaKey)
		if raw == nil {
			return nil
		}
		found = true
		return gob.NewDecoder(bytes.NewReader(raw)).Decode(&meta)
	})
	if err != nil {
		return raft.Meta{}, false, errors.Wrap(err, "raft/persistence/bolt: load meta")
	}
	return meta, found, nil
}

func (b *Backend) LastAppliedCommitIndex(_ context.Context, nodeID string) (uint64, error) {
	var applied uint64
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketName(nodeID))
		if bkt == nil {
			return nil
		}
		raw := bkt.Get(appliedKey)
		if raw == nil {
			return nil
		}
		applied = binary.BigEndian.Uint64(raw)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "raft/persistence/bolt: load applied index")
	}
	return applied, nil
}

func (b *Backend) SaveMeta(_ context.Context, nodeID string, meta raft.Meta) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(meta); err != nil {
		return errors.Wrap(err, "raft/persistence/bolt: encode meta")
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(bucketName(nodeID))
		if err != nil {
			return err
		}
		return bkt.Put(metaKey, buf.Bytes())
	})
	if err != nil {
		return errors.Wrap(err, "raft/persistence/bolt: save meta")
	}
	return nil
}

// ApplyLog records the command under its index and advances the
// applied watermark in one transaction -- the "atomically" half of
// raft.Backend's contract.
func (b *Backend) ApplyLog(_ context.Context, nodeID string, index uint64, entry raft.LogEntry) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		if b.apply != nil {
			if err := b.apply(index, entry.Command); err != nil {
				return err
			}
		}
		bkt, err := tx.CreateBucketIfNotExists(bucketName(nodeID))
		if err != nil {
			return err
		}
		if err := bkt.Put([]byte(fmt.Sprintf("applied-entry:%020d", index)), entry.Command); err != nil {
			return err
		}
		var raw [8]byte
		binary.BigEndian.PutUint64(raw[:], index)
		return bkt.Put(appliedKey, raw[:])
	})
	if err != nil {
		return errors.Wrap(err, "raft/persistence/bolt: apply log")
	}
	return nil
}
