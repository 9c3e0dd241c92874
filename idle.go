package raft

import "context"

// runIdle is the startup phase: the node has not
// yet learned its persisted term, vote, and log from the Backend. Any
// RPC arriving during this window is queued rather than answered, since
// answering it correctly requires state we don't have yet; once loading
// completes the node becomes a Follower and the queue is replayed in
// arrival order.
func (n *Node) runIdle(ctx context.Context) {
	n.log = withRole(n.log, RoleIdle)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-n.rpcCh:
			n.pendingRPCs = append(n.pendingRPCs, req)
		case cr := <-n.cmdCh:
			cr.future.respond(0, &ErrNotLeader{})
		case res := <-n.loadCh:
			n.finishLoading(res)
			return
		}
	}
}

func (n *Node) finishLoading(res loadResult) {
	if res.err != nil {
		n.fatal(newPersistenceError("load", res.err))
		return
	}
	if res.found {
		n.state.currentTerm = res.meta.CurrentTerm
		n.state.votedFor = res.meta.VotedFor
		n.state.log.Restore(res.meta.Log)
	}
	n.state.lastApplied = res.applied
	n.state.commitIndex = res.applied
	n.state.role = RoleFollower
	n.state.leaderID = ""
	n.resetElectionDeadline()
	n.metrics.observeRole(RoleFollower)
	n.metrics.observeTerm(n.state.currentTerm)
	n.metrics.observeCommit(n.state.commitIndex, n.state.lastApplied)
	n.state.publish(n.id)
	n.log = withTerm(n.log, n.state.currentTerm)
	n.log.Infow("loaded persisted state, becoming follower", "logLength", n.state.log.Length())

	pending := n.pendingRPCs
	n.pendingRPCs = nil
	for _, req := range pending {
		n.dispatchRPC(req)
	}
}
