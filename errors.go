package raft

import "github.com/pkg/errors"

// ErrNotLeader is returned from Command when the node is not the Leader.
// LeaderID carries the last-known leader, if any.
type ErrNotLeader struct {
	LeaderID string
}

func (e *ErrNotLeader) Error() string {
	if e.LeaderID == "" {
		return "raft: not the leader (leader unknown)"
	}
	return "raft: not the leader (leader is " + e.LeaderID + ")"
}

// ErrTransport wraps a failure at the transport level for one peer RPC.
// The role decides how to react: the Leader retries on the next
// heartbeat, the Candidate simply counts it as a non-vote.
type ErrTransport struct {
	PeerID string
	Cause  error
}

func (e *ErrTransport) Error() string {
	return "raft: transport error talking to " + e.PeerID + ": " + e.Cause.Error()
}

func (e *ErrTransport) Unwrap() error { return e.Cause }

// ErrPersistence marks a durable-storage failure. Unlike transport
// errors, these are never absorbed locally -- they're surfaced to the
// configured Observer because they endanger safety.
type ErrPersistence struct {
	Op    string
	Cause error
}

func (e *ErrPersistence) Error() string {
	return errors.Wrap(e.Cause, "raft: persistence failure during "+e.Op).Error()
}

func (e *ErrPersistence) Unwrap() error { return e.Cause }

func newPersistenceError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &ErrPersistence{Op: op, Cause: errors.WithStack(cause)}
}

// ErrConfig marks an invalid Options value, detected at first use.
type ErrConfig struct {
	Reason string
}

func (e *ErrConfig) Error() string { return "raft: invalid configuration: " + e.Reason }

// ErrUnknownRPC is surfaced to the Observer when a peer invokes an RPC
// type the core doesn't recognise.
type ErrUnknownRPC struct {
	Type RPCType
}

func (e *ErrUnknownRPC) Error() string { return "raft: unknown RPC type invoked by peer" }

// ErrStopped is returned from Command/HandleRPC when the node has
// already been asked to Stop.
var ErrStopped = errors.New("raft: node is stopped")
