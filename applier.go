package raft

import "context"

// applyResult is how a completed (or failed) ApplyLog call re-enters
// the Node's single run-loop goroutine.
type applyResult struct {
	index uint64
	entry LogEntry
	err   error
}

// LogApplier serialises state-machine application. It owns exactly one
// boolean, persisting, and guarantees: entries are applied in strict
// index order; at most one application is ever in flight; application
// survives crashes because the backend durably records the side effect
// and the new lastApplied index atomically.
//
// maybePersist must only ever be called from the owning Node's run-loop
// goroutine -- it reads the Log directly (fetch), which is safe only
// because the run loop is the Log's sole mutator. The actual backend
// call runs on its own goroutine so a slow ApplyFunc never blocks the
// run loop; its result re-enters via resultCh.
type LogApplier struct {
	nodeID  string
	backend Backend
	ctx     context.Context

	commitIndex func() uint64
	lastApplied func() uint64
	fetch       func(index uint64) (LogEntry, bool)

	persisting bool
	resultCh   chan applyResult
}

func newLogApplier(ctx context.Context, nodeID string, backend Backend, commitIndex, lastApplied func() uint64, fetch func(uint64) (LogEntry, bool)) *LogApplier {
	return &LogApplier{
		nodeID:      nodeID,
		backend:     backend,
		ctx:         ctx,
		commitIndex: commitIndex,
		lastApplied: lastApplied,
		fetch:       fetch,
		resultCh:    make(chan applyResult, 1),
	}
}

// maybePersist applies the next committed-but-unapplied entry if one
// exists and nothing is already in flight.
func (a *LogApplier) maybePersist() {
	if a.persisting {
		return
	}
	commit, applied := a.commitIndex(), a.lastApplied()
	if commit <= applied {
		return
	}
	index := applied + 1
	entry, ok := a.fetch(index)
	if !ok {
		return
	}
	a.persisting = true
	go func() {
		err := a.backend.ApplyLog(a.ctx, a.nodeID, index, entry)
		a.resultCh <- applyResult{index: index, entry: entry, err: err}
	}()
}

// results is the channel the run loop selects on to learn of completion.
func (a *LogApplier) results() <-chan applyResult { return a.resultCh }
