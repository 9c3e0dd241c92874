package raft

import "fmt"

// LogEntry is one position in the replicated log. Index is assigned by
// position (1-based) and is never stored on the entry itself, keeping
// the Log the sole source of truth for indexing.
type LogEntry struct {
	Term    uint64
	Command []byte
}

// Log is an append-only ordered sequence of entries, 1-based indexed.
// It has no internal locking: it is mutated only by the owning Node's
// single run-loop goroutine, which serialises all access to it.
type Log struct {
	entries []LogEntry // entries[0] is index 1
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Length reports the number of entries, i.e. the index of the last entry.
func (l *Log) Length() uint64 {
	return uint64(len(l.entries))
}

// Push appends a single entry, assigning it the next index.
func (l *Log) Push(e LogEntry) uint64 {
	l.entries = append(l.entries, e)
	return uint64(len(l.entries))
}

// At returns the entry at a 1-based index. Reading index 0, or any index
// beyond Length, is undefined behavior and panics here to surface
// programming errors early rather than silently return a zero entry.
func (l *Log) At(index uint64) LogEntry {
	if index == 0 || index > uint64(len(l.entries)) {
		panic(fmt.Sprintf("raft: log index %d out of range (length %d)", index, len(l.entries)))
	}
	return l.entries[index-1]
}

// Contains reports whether a 1-based index currently exists.
func (l *Log) Contains(index uint64) bool {
	return index >= 1 && index <= uint64(len(l.entries))
}

// EntriesFrom returns a copy of every entry at or after the given
// 1-based index. An index of Length()+1 returns an empty slice.
func (l *Log) EntriesFrom(index uint64) []LogEntry {
	if index == 0 {
		index = 1
	}
	if index > uint64(len(l.entries)) {
		return nil
	}
	out := make([]LogEntry, len(l.entries)-int(index)+1)
	copy(out, l.entries[index-1:])
	return out
}

// TruncateFrom drops the entry at index and everything after it. It is
// used only by Followers applying an authoritative AppendEntries whose
// prevLog check passed but whose suffix conflicts with ours -- never by
// a Leader, which only ever appends (invariant 4).
func (l *Log) TruncateFrom(index uint64) {
	if index == 0 || index > uint64(len(l.entries)) {
		return
	}
	l.entries = l.entries[:index-1]
}

// LastIndex is the index of the last entry, 0 if the log is empty.
func (l *Log) LastIndex() uint64 {
	return uint64(len(l.entries))
}

// LastTerm is the term of the last entry, 0 if the log is empty.
func (l *Log) LastTerm() uint64 {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Term
}

// TermAt returns the term of the entry at index, or 0 if index is 0
// (the sentinel "before the log" position every AppendEntries check must
// handle).
func (l *Log) TermAt(index uint64) uint64 {
	if index == 0 {
		return 0
	}
	return l.At(index).Term
}

// Snapshot returns a defensive copy of every entry, for persistence.
func (l *Log) Snapshot() []LogEntry {
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Restore replaces the log wholesale -- used only when loading persisted
// Meta at startup.
func (l *Log) Restore(entries []LogEntry) {
	l.entries = append([]LogEntry(nil), entries...)
}

// IsUpToDate reports whether a candidate whose log ends at
// (candidateLastTerm, candidateLastIndex) is at least as up-to-date as
// this log, the rule a Follower applies when deciding RequestVote.
func (l *Log) IsUpToDate(candidateLastTerm, candidateLastIndex uint64) bool {
	ourTerm, ourIndex := l.LastTerm(), l.LastIndex()
	if candidateLastTerm != ourTerm {
		return candidateLastTerm > ourTerm
	}
	return candidateLastIndex >= ourIndex
}
