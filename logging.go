package raft

import "go.uber.org/zap"

// newNodeLogger derives a per-node SugaredLogger carrying the node's id
// on every line. A nil base installs zap's no-op logger so call sites
// never need a nil-check.
func newNodeLogger(base *zap.Logger, id string) *zap.SugaredLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return base.Sugar().With("id", id)
}

func withRole(l *zap.SugaredLogger, role roleKind) *zap.SugaredLogger {
	return l.With("role", role.String())
}

func withTerm(l *zap.SugaredLogger, term uint64) *zap.SugaredLogger {
	return l.With("term", term)
}
