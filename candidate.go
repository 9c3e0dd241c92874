package raft

import (
	"context"
	"time"
)

// becomeCandidate starts a new election: term+1, vote for self. It does
// not itself fan out RequestVote --
// runCandidate does that every time it is (re-)entered, which also
// covers the retry-on-timeout case since runLoop re-invokes runCandidate
// for as long as the role stays Candidate.
func (n *Node) becomeCandidate() {
	n.state.role = RoleCandidate
	n.state.adoptTerm(n.state.currentTerm + 1)
	n.state.recordVote(n.id)
	n.state.leaderID = ""
	n.resetElectionDeadline()
	n.persistIfDirty("election")
	n.metrics.observeRole(RoleCandidate)
	n.metrics.observeTerm(n.state.currentTerm)
	n.state.publish(n.id)
	n.log = withTerm(withRole(n.log, RoleCandidate), n.state.currentTerm)
	n.log.Infow("starting election")
}

// runCandidate fans RequestVote out to every peer and waits for either a
// majority of grants (becomes Leader), a reply or RPC carrying a later
// term (steps down to Follower), or its own election timeout (starts a
// fresh election in the next term).
func (n *Node) runCandidate(ctx context.Context) {
	args := &RequestVoteArgs{
		Term:         n.state.currentTerm,
		CandidateID:  n.id,
		LastLogIndex: n.state.log.LastIndex(),
		LastLogTerm:  n.state.log.LastTerm(),
	}
	votes := 1 // vote for self
	if votes >= n.peers.Quorum() {
		n.becomeLeader(ctx)
		return
	}

	bc := NewBroadcast(ctx, n.peers, RPCRequestVote, args)
	defer bc.Cancel()

	for n.state.role == RoleCandidate {
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
			cr.future.respond(0, &ErrNotLeader{})
		case res := <-n.applier.results():
			timer.Stop()
			n.handleApplyResult(res)
		case resp := <-bc.Responses():
			timer.Stop()
			n.metrics.observeRPC(RPCRequestVote, outcomeLabel(resp.Err))
			if resp.Err != nil {
				n.log.Debugw("vote request failed", "peer", resp.PeerID, "error", resp.Err)
				break
			}
			reply, ok := resp.Reply.(*RequestVoteReply)
			if !ok {
				break
			}
			if reply.Term > n.state.currentTerm {
				n.becomeFollower(reply.Term, "")
				n.persistIfDirty("election")
				return
			}
			if reply.VoteGranted {
				votes++
				if votes >= n.peers.Quorum() {
					n.becomeLeader(ctx)
					return
				}
			}
		case <-timer.C:
			n.becomeCandidate()
			return
		}
		n.state.publish(n.id)
	}
}
