package raft

// Observer receives the only two externally-visible events the core
// emits on its own initiative: a log entry being applied to the state
// machine, and an error that endangers safety (persistence failures,
// unknown RPC types) and therefore must never be swallowed. Role
// transitions, vote grants, and RPC traffic are observable only through
// structured log lines and metrics, not through this interface.
type Observer interface {
	OnApplied(index uint64, entry LogEntry)
	OnError(err error)
}

// noopObserver discards everything. Installed when Options.Observer is
// nil so call sites never need to check for one.
type noopObserver struct{}

func (noopObserver) OnApplied(uint64, LogEntry) {}
func (noopObserver) OnError(error)              {}
