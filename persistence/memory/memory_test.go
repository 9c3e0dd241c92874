package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	raft "github.com/gitter-badger/raft"
	"github.com/gitter-badger/raft/persistence/memory"
)

func TestSaveAndLoadMeta(t *testing.T) {
	b := memory.New()
	ctx := context.Background()

	_, found, err := b.LoadMeta(ctx, "n1")
	require.NoError(t, err)
	require.False(t, found)

	meta := raft.Meta{CurrentTerm: 3, VotedFor: "n2", Log: []raft.LogEntry{{Term: 1}}}
	require.NoError(t, b.SaveMeta(ctx, "n1", meta))

	loaded, found, err := b.LoadMeta(ctx, "n1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, meta, loaded)
}

func TestApplyLogAdvancesAppliedIndex(t *testing.T) {
	b := memory.New()
	ctx := context.Background()

	require.NoError(t, b.ApplyLog(ctx, "n1", 1, raft.LogEntry{Term: 1, Command: []byte("a")}))
	require.NoError(t, b.ApplyLog(ctx, "n1", 2, raft.LogEntry{Term: 1, Command: []byte("b")}))

	applied, err := b.LastAppliedCommitIndex(ctx, "n1")
	require.NoError(t, err)
	require.EqualValues(t, 2, applied)
}

func TestApplyFuncReceivesEveryCommand(t *testing.T) {
	var got []string
	b := memory.New(memory.WithApplyFunc(func(index uint64, command []byte) error {
		got = append(got, string(command))
		return nil
	}))
	ctx := context.Background()

	require.NoError(t, b.ApplyLog(ctx, "n1", 1, raft.LogEntry{Term: 1, Command: []byte("a")}))
	require.NoError(t, b.ApplyLog(ctx, "n1", 2, raft.LogEntry{Term: 1, Command: []byte("b")}))

	require.Equal(t, []string{"a", "b"}, got)
}

func TestApplyFuncErrorFailsApplyLog(t *testing.T) {
	boom := errors.New("boom")
	b := memory.New(memory.WithApplyFunc(func(index uint64, command []byte) error {
		return boom
	}))

	err := b.ApplyLog(context.Background(), "n1", 1, raft.LogEntry{Term: 1, Command: []byte("a")})
	require.ErrorIs(t, err, boom)

	applied, err := b.LastAppliedCommitIndex(context.Background(), "n1")
	require.NoError(t, err)
	require.EqualValues(t, 0, applied, "watermark must not advance when ApplyFunc fails")
}

func TestBackendPartitionsByNodeID(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	require.NoError(t, b.SaveMeta(ctx, "n1", raft.Meta{CurrentTerm: 5}))

	_, found, err := b.LoadMeta(ctx, "n2")
	require.NoError(t, err)
	require.False(t, found)
}
