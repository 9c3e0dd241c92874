package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	raft "github.com/gitter-badger/raft"
	raftbolt "github.com/gitter-badger/raft/persistence/bolt"
)

func TestBoltSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.db")
	b, err := raftbolt.Open(path)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	meta := raft.Meta{CurrentTerm: 7, VotedFor: "n3", Log: []raft.LogEntry{{Term: 1, Command: []byte("x")}}}
	require.NoError(t, b.SaveMeta(ctx, "n1", meta))

	loaded, found, err := b.LoadMeta(ctx, "n1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, meta, loaded)
}

func TestBoltApplyFuncReceivesEveryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.db")
	var got []string
	b, err := raftbolt.Open(path, raftbolt.WithApplyFunc(func(index uint64, command []byte) error {
		got = append(got, string(command))
		return nil
	}))
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.ApplyLog(ctx, "n1", 1, raft.LogEntry{Term: 1, Command: []byte("a")}))
	require.NoError(t, b.ApplyLog(ctx, "n1", 2, raft.LogEntry{Term: 1, Command: []byte("b")}))

	require.Equal(t, []string{"a", "b"}, got)
}

func TestBoltApplyLogPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.db")
	ctx := context.Background()

	b, err := raftbolt.Open(path)
	require.NoError(t, err)
	require.NoError(t, b.ApplyLog(ctx, "n1", 1, raft.LogEntry{Term: 1, Command: []byte("a")}))
	require.NoError(t, b.Close())

	reopened, err := raftbolt.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	applied, err := reopened.LastAppliedCommitIndex(ctx, "n1")
	require.NoError(t, err)
	require.EqualValues(t, 1, applied)
}
