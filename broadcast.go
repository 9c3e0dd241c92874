package raft

import (
	"context"
	"sync"
)

// BroadcastResponse tags one peer's reply (or transport error) to a
// Broadcast RPC.
type BroadcastResponse struct {
	PeerID string
	Reply  any
	Err    error
}

// Broadcast fans one RPC -- same type, same args -- out to every peer
// and collects responses as they arrive. It is a
// tool only: quorum accounting lives in the Candidate/Leader roles that
// consume Responses(). It is ephemeral, constructed fresh for each
// fan-out (a RequestVote canvass, or the Leader's first heartbeat).
type Broadcast struct {
	responses chan BroadcastResponse
	done      chan struct{}
	once      sync.Once
}

// NewBroadcast starts invoking rpcType/args against every peer
// concurrently and returns immediately; responses stream out of
// Responses() as they arrive, each tagged with its origin peer.
func NewBroadcast(ctx context.Context, peers Peers, rpcType RPCType, args any) *Broadcast {
	b := &Broadcast{
		responses: make(chan BroadcastResponse, len(peers)),
		done:      make(chan struct{}),
	}
	for _, peer := range peers {
		peer := peer
		go func() {
			reply, err := peer.invoke(ctx, rpcType, args)
			select {
			case b.responses <- BroadcastResponse{PeerID: peer.ID(), Reply: reply, Err: err}:
			case <-b.done:
				// Cancelled: in-flight RPC may still complete server-side,
				// but nobody is listening for the reply any more.
			}
		}()
	}
	return b
}

// Responses is the channel of per-peer replies, one per peer, in
// arrival order.
func (b *Broadcast) Responses() <-chan BroadcastResponse { return b.responses }

// Cancel detaches all listeners. Safe to call more than once.
func (b *Broadcast) Cancel() {
	b.once.Do(func() { close(b.done) })
}
