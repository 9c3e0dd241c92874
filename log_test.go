package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogPushAndAt(t *testing.T) {
	l := NewLog()
	require.EqualValues(t, 0, l.LastIndex())
	idx := l.Push(LogEntry{Term: 1, Command: []byte("a")})
	require.EqualValues(t, 1, idx)
	require.EqualValues(t, 1, l.LastIndex())
	require.Equal(t, LogEntry{Term: 1, Command: []byte("a")}, l.At(1))
}

func TestLogTermAtZeroIsSentinel(t *testing.T) {
	l := NewLog()
	require.EqualValues(t, 0, l.TermAt(0))
}

func TestLogTruncateFrom(t *testing.T) {
	l := NewLog()
	l.Push(LogEntry{Term: 1})
	l.Push(LogEntry{Term: 1})
	l.Push(LogEntry{Term: 2})
	l.TruncateFrom(2)
	require.EqualValues(t, 1, l.LastIndex())
}

func TestLogEntriesFrom(t *testing.T) {
	l := NewLog()
	l.Push(LogEntry{Term: 1})
	l.Push(LogEntry{Term: 2})
	l.Push(LogEntry{Term: 3})
	entries := l.EntriesFrom(2)
	require.Len(t, entries, 2)
	require.EqualValues(t, 2, entries[0].Term)
}

func TestLogIsUpToDate(t *testing.T) {
	l := NewLog()
	l.Push(LogEntry{Term: 2})
	require.True(t, l.IsUpToDate(2, 1))
	require.True(t, l.IsUpToDate(3, 0))
	require.False(t, l.IsUpToDate(1, 5))
	require.False(t, l.IsUpToDate(2, 0))
}

func TestLogRestoreAndSnapshot(t *testing.T) {
	l := NewLog()
	l.Restore([]LogEntry{{Term: 1}, {Term: 1}, {Term: 2}})
	require.EqualValues(t, 3, l.Length())
	snap := l.Snapshot()
	snap[0].Term = 9
	require.EqualValues(t, 1, l.At(1).Term, "Snapshot must be a defensive copy")
}
