package raft

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// rpcRequest is how an inbound RPC crosses from a PeerTransport's server
// side into the run loop.
type rpcRequest struct {
	rpcType RPCType
	args    any
	reply   chan rpcResult
}

type rpcResult struct {
	reply any
	err   error
}

// loadResult carries the outcome of the asynchronous Backend.LoadMeta /
// LastAppliedCommitIndex pair issued while the node is Idle.
type loadResult struct {
	meta    Meta
	found   bool
	applied uint64
	err     error
}

// Node is the coordinator: a single run-loop goroutine owns commonState
// and every role's private fields, dispatches inbound RPCs and client
// commands to whichever role is currently active, and is the only
// writer any role or handler ever needs. Command and HandleRPC hand
// work to that goroutine over a channel; Join only runs before Start,
// and Stop cancels the run loop's context.
type Node struct {
	id   string
	opts Options

	peers   Peers
	backend Backend

	state   *commonState
	applier *LogApplier

	log      *zap.SugaredLogger
	metrics  *Metrics
	observer Observer

	rpcCh  chan rpcRequest
	cmdCh  chan commandRequest
	loadCh chan loadResult

	pendingRPCs     []rpcRequest
	pendingCommands map[uint64]*CommandFuture

	// Candidate/Follower timing.
	electionDeadline time.Time

	// Leader-only replication bookkeeping, reset fresh by becomeLeader on
	// every election win.
	nextIndex     map[string]uint64
	matchIndex    map[string]uint64
	inFlightLast  map[string]uint64
	replicating   map[string]bool
	leaderResults chan leaderPeerResult

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   chan struct{}
}

// NewNode wires a Node against its remote peers and configuration. The
// node does not start running until Start is called.
func NewNode(peers map[string]PeerTransport, opts Options) (*Node, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	id := opts.ID
	if id == "" {
		id = opts.IDGen()
	}
	ps := make(Peers, len(peers))
	for pid, t := range peers {
		ps[pid] = NewPeer(pid, t)
	}
	n := &Node{
		id:              id,
		opts:            opts,
		peers:           ps,
		backend:         opts.Persistence,
		state:           newCommonState(id),
		observer:        opts.Observer,
		log:             newNodeLogger(opts.Logger, id),
		metrics:         NewMetrics(opts.Registerer, id),
		rpcCh:           make(chan rpcRequest),
		cmdCh:           make(chan commandRequest),
		loadCh:          make(chan loadResult, 1),
		pendingCommands: make(map[uint64]*CommandFuture),
		stopped:         make(chan struct{}),
	}
	n.state.publish(id)
	return n, nil
}

// ID returns the node's identity, generated or supplied at construction.
func (n *Node) ID() string { return n.id }

// Join adds a peer to the cluster's peer set. Membership changes
// (joint consensus) are out of scope: Join is only valid before Start,
// rendering "nodes join the cluster at construction with a fixed peer
// set" as a constructor-time-or-earlier operation rather than a
// runtime protocol message.
func (n *Node) Join(id string, transport PeerTransport) error {
	if n.ctx != nil {
		return &ErrConfig{Reason: "Join must be called before Start"}
	}
	if _, exists := n.peers[id]; exists {
		return &ErrConfig{Reason: "peer " + id + " has already joined"}
	}
	n.peers[id] = NewPeer(id, transport)
	return nil
}

// Start launches the run-loop goroutine. Safe to call once; subsequent
// calls are no-ops. ctx bounds the node's whole lifetime -- cancelling
// it has the same effect as calling Stop.
func (n *Node) Start(ctx context.Context) {
	n.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		n.ctx = runCtx
		n.cancel = cancel
		n.applier = newLogApplier(runCtx, n.id, n.backend, n.getCommitIndex, n.getLastApplied, n.fetchEntry)
		go n.loadPersisted(runCtx)
		go n.runLoop(runCtx)
	})
}

// Stop requests shutdown and blocks until the run loop has exited.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
	})
	<-n.stopped
}

// Stats returns a point-in-time, concurrency-safe snapshot.
func (n *Node) Stats() Stats { return n.state.snapshot() }

// Command submits a command for replication. It returns as soon as the
// entry is enqueued onto the run loop; the returned CommandFuture
// resolves once the entry is committed, applied, and persisted, or with
// *ErrNotLeader if this node never gets there.
func (n *Node) Command(ctx context.Context, cmd []byte) (*CommandFuture, error) {
	future := newCommandFuture()
	select {
	case n.cmdCh <- commandRequest{cmd: cmd, future: future}:
		return future, nil
	case <-n.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HandleRPC is the entry point a PeerTransport server implementation
// calls when it receives an inbound AppendEntries/RequestVote from a
// peer. It blocks until the run loop has produced a reply.
func (n *Node) HandleRPC(ctx context.Context, rpcType RPCType, args any) (any, error) {
	reply := make(chan rpcResult, 1)
	select {
	case n.rpcCh <- rpcRequest{rpcType: rpcType, args: args, reply: reply}:
	case <-n.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.reply, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *Node) loadPersisted(ctx context.Context) {
	meta, found, err := n.backend.LoadMeta(ctx, n.id)
	if err != nil {
		n.loadCh <- loadResult{err: err}
		return
	}
	applied, err := n.backend.LastAppliedCommitIndex(ctx, n.id)
	if err != nil {
		n.loadCh <- loadResult{err: err}
		return
	}
	n.loadCh <- loadResult{meta: meta, found: found, applied: applied}
}

func (n *Node) runLoop(ctx context.Context) {
	defer close(n.stopped)
	n.runIdle(ctx)
	for ctx.Err() == nil {
		switch n.state.role {
		case RoleFollower:
			n.runFollower(ctx)
		case RoleCandidate:
			n.runCandidate(ctx)
		case RoleLeader:
			n.runLeader(ctx)
		default:
			return
		}
	}
}

// dispatchRPC applies the uniform RequestVote/AppendEntries safety
// rules -- identical regardless of which of Follower/Candidate/Leader
// is currently active, per the core Raft-family rule that any role
// steps down to Follower on seeing a later term -- then persists before
// replying, satisfying invariant 7 (never reply on state not yet
// durable). AppendEntries can advance commitIndex on any role that
// isn't Leader, so maybePersist is poked unconditionally afterward --
// it is a no-op unless there is a newly committed entry to apply.
func (n *Node) dispatchRPC(req rpcRequest) {
	var reply any
	switch req.rpcType {
	case RPCRequestVote:
		args, _ := req.args.(*RequestVoteArgs)
		reply = n.handleRequestVote(args)
		n.metrics.observeRPC(RPCRequestVote, "handled")
	case RPCAppendEntries:
		args, _ := req.args.(*AppendEntriesArgs)
		reply = n.handleAppendEntries(args)
		n.metrics.observeRPC(RPCAppendEntries, "handled")
	default:
		err := &ErrUnknownRPC{Type: req.rpcType}
		n.observer.OnError(err)
		req.reply <- rpcResult{err: err}
		return
	}
	n.persistIfDirty("rpc")
	if n.state.dirty {
		// The save failed and fatal has begun shutdown: no reply built on
		// state that is not durable goes out.
		req.reply <- rpcResult{err: ErrStopped}
		return
	}
	n.applier.maybePersist()
	req.reply <- rpcResult{reply: reply}
}

func (n *Node) handleRequestVote(args *RequestVoteArgs) *RequestVoteReply {
	if args.Term > n.state.currentTerm {
		n.becomeFollower(args.Term, "")
	}
	reply := &RequestVoteReply{Term: n.state.currentTerm}
	if args.Term < n.state.currentTerm {
		return reply
	}
	canVote := n.state.votedFor == "" || n.state.votedFor == args.CandidateID
	if canVote && n.state.log.IsUpToDate(args.LastLogTerm, args.LastLogIndex) {
		n.state.recordVote(args.CandidateID)
		reply.VoteGranted = true
		n.resetElectionDeadline()
	}
	return reply
}

func (n *Node) handleAppendEntries(args *AppendEntriesArgs) *AppendEntriesReply {
	if args.Term > n.state.currentTerm {
		n.becomeFollower(args.Term, args.LeaderID)
	}
	reply := &AppendEntriesReply{Term: n.state.currentTerm}
	if args.Term < n.state.currentTerm {
		return reply
	}
	if n.state.role != RoleFollower {
		n.becomeFollower(n.state.currentTerm, args.LeaderID)
	}
	n.state.leaderID = args.LeaderID
	n.resetElectionDeadline()

	if args.PrevLogIndex > 0 {
		if !n.state.log.Contains(args.PrevLogIndex) || n.state.log.TermAt(args.PrevLogIndex) != args.PrevLogTerm {
			return reply
		}
	}
	for i, e := range args.Entries {
		idx := args.PrevLogIndex + uint64(i) + 1
		if n.state.log.Contains(idx) {
			if n.state.log.TermAt(idx) != e.Term {
				n.state.log.TruncateFrom(idx)
				n.state.log.Push(e)
				n.state.dirty = true
			}
			continue
		}
		n.state.log.Push(e)
		n.state.dirty = true
	}
	if args.LeaderCommit > n.state.commitIndex {
		n.state.commitIndex = min(args.LeaderCommit, n.state.log.LastIndex())
	}
	reply.Success = true
	return reply
}

// becomeFollower is the one transition every role can trigger: on
// discovering a later term, or on recognising a legitimate leader for
// the current one. Any commands left pending from a just-ended
// leadership term fail with *ErrNotLeader rather than hang forever.
func (n *Node) becomeFollower(term uint64, leaderID string) {
	wasLeader := n.state.role == RoleLeader
	n.state.adoptTerm(term)
	n.state.role = RoleFollower
	n.state.leaderID = leaderID
	n.resetElectionDeadline()
	if wasLeader {
		n.failPendingCommands(&ErrNotLeader{LeaderID: leaderID})
	}
	n.metrics.observeRole(RoleFollower)
	n.metrics.observeTerm(n.state.currentTerm)
	n.state.publish(n.id)
}

func (n *Node) failPendingCommands(err error) {
	for idx, f := range n.pendingCommands {
		f.respond(0, err)
		delete(n.pendingCommands, idx)
	}
}

// persistIfDirty flushes currentTerm/votedFor/log if the current event
// changed any of them. A synchronous save blocks the run loop, trading
// throughput for the simplicity of a literal save-before-reply --
// acceptable because Backend implementations are expected to be local
// and fast (see DESIGN.md).
func (n *Node) persistIfDirty(op string) {
	if !n.state.dirty {
		return
	}
	if err := n.backend.SaveMeta(n.ctx, n.id, n.state.meta()); err != nil {
		n.fatal(newPersistenceError(op, err))
		return
	}
	n.state.dirty = false
}

// handleApplyResult re-enters the run loop when a LogApplier's
// background ApplyLog call completes. It resolves any CommandFuture
// waiting on that index and immediately asks the applier to chain the
// next one, if any is now eligible.
func (n *Node) handleApplyResult(res applyResult) {
	n.applier.persisting = false
	if res.err != nil {
		n.fatal(newPersistenceError("apply", res.err))
		return
	}
	n.state.lastApplied = res.index
	n.metrics.observeApplied()
	n.metrics.observeCommit(n.state.commitIndex, n.state.lastApplied)
	n.observer.OnApplied(res.index, res.entry)
	if future, ok := n.pendingCommands[res.index]; ok {
		future.respond(res.index, nil)
		delete(n.pendingCommands, res.index)
	}
	n.applier.maybePersist()
}

// fatal marks an unrecoverable local failure: it is handed to the
// Observer (never swallowed, per the ambient error-handling rules),
// fails every outstanding command, and begins shutdown.
func (n *Node) fatal(err error) {
	n.observer.OnError(err)
	n.log.Errorw("fatal error, stopping node", "error", err)
	n.failPendingCommands(err)
	if n.cancel != nil {
		n.cancel()
	}
}

func (n *Node) getCommitIndex() uint64 { return n.state.commitIndex }
func (n *Node) getLastApplied() uint64 { return n.state.lastApplied }

func (n *Node) fetchEntry(index uint64) (LogEntry, bool) {
	if !n.state.log.Contains(index) {
		return LogEntry{}, false
	}
	return n.state.log.At(index), true
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
