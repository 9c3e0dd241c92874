package raft

import (
	"context"
	"math/rand"
	"time"
)

// resetElectionDeadline rolls a fresh randomised election deadline,
// jittered between minElectionTimeout and maxElectionTimeout. Called
// whenever the node hears from a legitimate
// leader, grants a vote, or starts a new election.
func (n *Node) resetElectionDeadline() {
	lo, hi := n.opts.MinElectionTimeout, n.opts.MaxElectionTimeout
	jitter := lo
	if hi > lo {
		jitter += time.Duration(rand.Int63n(int64(hi - lo + 1)))
	}
	n.electionDeadline = time.Now().Add(jitter)
}

// runFollower waits for a legitimate RPC to arrive (each one resets the
// deadline on success) or for the election timeout to elapse, at which
// point it starts a new election.
func (n *Node) runFollower(ctx context.Context) {
	n.log = withTerm(withRole(n.log, RoleFollower), n.state.currentTerm)
	for n.state.role == RoleFollower {
		timer := time.NewTimer(time.Until(n.electionDeadline))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case req := <-n.rpcCh:
			timer.Stop()
			n.dispatchRPC(req)
		case cr := <-n.cmdCh:
			timer.Stop()
			cr.future.respond(0, &ErrNotLeader{LeaderID: n.state.leaderID})
		case res := <-n.applier.results():
			timer.Stop()
			n.handleApplyResult(res)
		case <-timer.C:
			n.becomeCandidate()
			return
		}
		n.state.publish(n.id)
	}
}
