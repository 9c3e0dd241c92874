package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdoptTermNeverMovesBackward(t *testing.T) {
	cs := newCommonState("n1")
	cs.adoptTerm(5)
	require.EqualValues(t, 5, cs.currentTerm)
	cs.dirty = false

	cs.adoptTerm(3)
	require.EqualValues(t, 5, cs.currentTerm, "adoptTerm must not move currentTerm backward")
	require.False(t, cs.dirty)
}

func TestAdoptTermClearsVote(t *testing.T) {
	cs := newCommonState("n1")
	cs.recordVote("n2")
	cs.adoptTerm(2)
	require.Empty(t, cs.votedFor)
}

func TestSnapshotReflectsPublish(t *testing.T) {
	cs := newCommonState("n1")
	cs.adoptTerm(4)
	cs.role = RoleCandidate
	cs.publish("n1")

	snap := cs.snapshot()
	require.Equal(t, "n1", snap.ID)
	require.Equal(t, "Candidate", snap.Role)
	require.EqualValues(t, 4, snap.Term)
}
