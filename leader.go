package raft

import (
	"context"
	"sort"
	"time"
)

// leaderPeerResult tags one peer's AppendEntries outcome so runLeader
// can consume both the first, uniform heartbeat (fanned out via
// Broadcast, since every peer's nextIndex is identical the instant an
// election is won) and every later, per-peer replication call through
// the same channel.
type leaderPeerResult struct {
	peerID string
	reply  *AppendEntriesReply
	err    error
}

// becomeLeader initialises every peer's nextIndex to one past this
// node's own last log position and its matchIndex to 0, and issues the
// first round of AppendEntries immediately rather than waiting a full
// heartbeat interval.
func (n *Node) becomeLeader(ctx context.Context) {
	n.state.role = RoleLeader
	n.state.leaderID = n.id
	last := n.state.log.LastIndex()
	n.nextIndex = make(map[string]uint64, len(n.peers))
	n.matchIndex = make(map[string]uint64, len(n.peers))
	n.inFlightLast = make(map[string]uint64, len(n.peers))
	n.replicating = make(map[string]bool, len(n.peers))
	n.leaderResults = make(chan leaderPeerResult, len(n.peers))
	for id := range n.peers {
		n.nextIndex[id] = last + 1
		n.matchIndex[id] = 0
	}
	n.metrics.observeRole(RoleLeader)
	n.metrics.observeTerm(n.state.currentTerm)
	n.state.publish(n.id)
	n.log = withTerm(withRole(n.log, RoleLeader), n.state.currentTerm)
	n.log.Infow("elected leader")

	n.initialHeartbeat(ctx)
}

// initialHeartbeat is the one point where a Leader uses the generic
// Broadcast helper instead of per-peer calls: at the moment of election
// every peer's nextIndex is the same value, so one shared args struct is
// correct for all of them. A bridging goroutine retags each Broadcast
// response onto leaderResults so runLeader has a single channel to
// select on regardless of which path produced the result.
func (n *Node) initialHeartbeat(ctx context.Context) {
	last := n.state.log.LastIndex()
	args := &AppendEntriesArgs{
		Term:         n.state.currentTerm,
		LeaderID:     n.id,
		PrevLogIndex: last,
		PrevLogTerm:  n.state.log.TermAt(last),
		LeaderCommit: n.state.commitIndex,
	}
	for id := range n.peers {
		n.replicating[id] = true
		n.inFlightLast[id] = last
	}
	bc := NewBroadcast(ctx, n.peers, RPCAppendEntries, args)
	results := n.leaderResults
	go func() {
		defer bc.Cancel()
		remaining := len(n.peers)
		for remaining > 0 {
			select {
			case <-ctx.Done():
				return
			case resp, ok := <-bc.Responses():
				if !ok {
					return
				}
				remaining--
				reply, _ := resp.Reply.(*AppendEntriesReply)
				select {
				case results <- leaderPeerResult{peerID: resp.PeerID, reply: reply, err: resp.Err}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// replicateTo issues one AppendEntries tailored to peerID's current
// nextIndex. It is a no-op if a call to that peer is already in flight.
func (n *Node) replicateTo(ctx context.Context, peerID string) {
	if n.replicating[peerID] {
		return
	}
	peer, ok := n.peers[peerID]
	if !ok {
		return
	}
	next := n.nextIndex[peerID]
	prevIndex := next - 1
	entries := n.state.log.EntriesFrom(next)
	args := &AppendEntriesArgs{
		Term:         n.state.currentTerm,
		LeaderID:     n.id,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  n.state.log.TermAt(prevIndex),
		Entries:      entries,
		LeaderCommit: n.state.commitIndex,
	}
	n.replicating[peerID] = true
	n.inFlightLast[peerID] = prevIndex + uint64(len(entries))
	results := n.leaderResults
	go func() {
		reply, err := peer.invoke(ctx, RPCAppendEntries, args)
		ae, _ := reply.(*AppendEntriesReply)
		select {
		case results <- leaderPeerResult{peerID: peerID, reply: ae, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (n *Node) replicateAll(ctx context.Context) {
	for id := range n.peers {
		n.replicateTo(ctx, id)
	}
}

// handleLeaderResult applies one peer's AppendEntries outcome: advances
// or backs off nextIndex/matchIndex, steps down on a later term, and
// otherwise leaves the next attempt to the heartbeat ticker.
func (n *Node) handleLeaderResult(ctx context.Context, res leaderPeerResult) {
	n.replicating[res.peerID] = false
	n.metrics.observeRPC(RPCAppendEntries, outcomeLabel(res.err))
	if res.err != nil {
		n.log.Debugw("append entries failed", "peer", res.peerID, "error", res.err)
		return
	}
	if res.reply == nil {
		return
	}
	if res.reply.Term > n.state.currentTerm {
		n.becomeFollower(res.reply.Term, "")
		n.persistIfDirty("leader-step-down")
		return
	}
	if res.reply.Success {
		matched := n.inFlightLast[res.peerID]
		if matched > n.matchIndex[res.peerID] {
			n.matchIndex[res.peerID] = matched
		}
		n.nextIndex[res.peerID] = matched + 1
		n.advanceCommitIndex()
		n.applier.maybePersist()
		return
	}
	if n.nextIndex[res.peerID] > 1 {
		n.nextIndex[res.peerID]--
	}
}

// advanceCommitIndex recomputes commitIndex as the highest index
// replicated to a quorum, restricted to entries from the current term
// (the Leader Completeness safety rule: a leader must never commit an
// older term's entry purely by replication count).
func (n *Node) advanceCommitIndex() {
	indices := make([]uint64, 0, len(n.peers)+1)
	indices = append(indices, n.state.log.LastIndex())
	for _, m := range n.matchIndex {
		indices = append(indices, m)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] > indices[j] })
	majority := indices[n.peers.Quorum()-1]
	if majority > n.state.commitIndex &&
		n.state.log.Contains(majority) &&
		n.state.log.TermAt(majority) == n.state.currentTerm {
		n.state.commitIndex = majority
	}
}

// handleCommand appends a new entry on behalf of a client, persists it,
// and kicks off replication to every peer not already mid-flight.
func (n *Node) handleCommand(ctx context.Context, cr commandRequest) {
	if n.state.role != RoleLeader {
		cr.future.respond(0, &ErrNotLeader{LeaderID: n.state.leaderID})
		return
	}
	entry := LogEntry{Term: n.state.currentTerm, Command: cr.cmd}
	index := n.state.log.Push(entry)
	n.state.dirty = true
	n.persistIfDirty("command")
	n.pendingCommands[index] = cr.future
	n.advanceCommitIndex() // covers the zero-peer cluster: quorum is self alone
	n.applier.maybePersist()
	n.replicateAll(ctx)
}

// runLeader drives replication for as long as this node remains Leader:
// a heartbeat ticker periodically retries idle peers, and every
// replication result, inbound RPC, client command, and applier
// completion re-enters here.
func (n *Node) runLeader(ctx context.Context) {
	ticker := time.NewTicker(n.opts.HeartbeatInterval)
	defer ticker.Stop()

	for n.state.role == RoleLeader {
		select {
		case <-ctx.Done():
			return
		case req := <-n.rpcCh:
			n.dispatchRPC(req)
		case cr := <-n.cmdCh:
			n.handleCommand(ctx, cr)
		case res := <-n.applier.results():
			n.handleApplyResult(res)
		case res := <-n.leaderResults:
			n.handleLeaderResult(ctx, res)
		case <-ticker.C:
			n.replicateAll(ctx)
		}
		n.state.publish(n.id)
	}
}
