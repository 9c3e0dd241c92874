package raft

import "sync"

// roleKind tags the four role variants a Node can be in. The core
// dispatches on it with a switch in Node.runLoop rather than a full
// polymorphic Role interface -- the set is closed and fixed for the
// lifetime of a Node.
type roleKind int

const (
	RoleIdle roleKind = iota
	RoleFollower
	RoleCandidate
	RoleLeader
)

func (r roleKind) String() string {
	switch r {
	case RoleIdle:
		return "Idle"
	case RoleFollower:
		return "Follower"
	case RoleCandidate:
		return "Candidate"
	case RoleLeader:
		return "Leader"
	default:
		return "Unknown"
	}
}

// Stats is a read-only snapshot of a Node's state, safe to read from any
// goroutine (Node.Stats() hands out a copy).
type Stats struct {
	ID          string
	Role        string
	Term        uint64
	LeaderID    string
	CommitIndex uint64
	LastApplied uint64
	LogLength   uint64
}

// commonState holds the data partitioned into volatile and persisted
// fields, shared by Node and whichever role is currently
// active. Only the run-loop goroutine ever mutates it; the snapMu/snap
// pair exists solely so Stats() can be called concurrently by operators
// and the prometheus collector without entering the run loop.
type commonState struct {
	// persisted
	currentTerm uint64
	votedFor    string
	log         *Log

	// volatile
	leaderID    string
	commitIndex uint64
	lastApplied uint64
	role        roleKind

	// dirty is set whenever a handler mutates currentTerm/votedFor/log
	// during the processing of one event, and cleared once that mutation
	// has been durably saved. It lets Node skip a redundant SaveMeta when
	// nothing persisted actually changed, the one deliberate deviation
	// deviation from a naive "save on every reply" approach, noted in
	// DESIGN.md.
	dirty bool

	snapMu sync.RWMutex
	snap   Stats
}

func newCommonState(id string) *commonState {
	cs := &commonState{log: NewLog(), role: RoleIdle}
	cs.snap = Stats{ID: id}
	return cs
}

// publish refreshes the externally-visible snapshot. Call it at the end
// of every run-loop iteration that may have changed observable state.
func (cs *commonState) publish(id string) {
	cs.snapMu.Lock()
	cs.snap = Stats{
		ID:          id,
		Role:        cs.role.String(),
		Term:        cs.currentTerm,
		LeaderID:    cs.leaderID,
		CommitIndex: cs.commitIndex,
		LastApplied: cs.lastApplied,
		LogLength:   cs.log.Length(),
	}
	cs.snapMu.Unlock()
}

func (cs *commonState) snapshot() Stats {
	cs.snapMu.RLock()
	defer cs.snapMu.RUnlock()
	return cs.snap
}

// adoptTerm unconditionally moves currentTerm forward and clears
// votedFor, per the Follower/Candidate/Leader "discovers higher term"
// rules. It never moves currentTerm backward (invariant 1).
func (cs *commonState) adoptTerm(term uint64) {
	if term <= cs.currentTerm {
		return
	}
	cs.currentTerm = term
	cs.votedFor = ""
	cs.dirty = true
}

// recordVote persists a vote for candidate in the current term.
func (cs *commonState) recordVote(candidate string) {
	cs.votedFor = candidate
	cs.dirty = true
}

func (cs *commonState) meta() Meta {
	return Meta{CurrentTerm: cs.currentTerm, VotedFor: cs.votedFor, Log: cs.log.Snapshot()}
}
