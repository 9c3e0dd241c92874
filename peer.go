package raft

import (
	"context"
	"sync"
	"sync/atomic"
)

// PeerTransport is the external transport collaborator for one remote
// participant. Connect must be idempotent. Invoke
// sends one RPC and blocks until a response or a transport-level error
// is available -- the Go rendering of "eventually delivers either a
// response or a transport error to replyHandler": here the reply
// handler is simply the function's return, with ctx providing
// cancellation in place of a separate timeout callback.
type PeerTransport interface {
	Connect(ctx context.Context) error
	Invoke(ctx context.Context, rpcType RPCType, args any) (reply any, err error)
}

// Peer represents one remote participant: {id, connection state, pending
// calls}, owned by the Node for its whole
// lifetime. It does not retry on transport failure -- the calling role
// (Leader, Candidate) decides whether and when to re-invoke.
type Peer struct {
	id        string
	transport PeerTransport

	mu        sync.Mutex
	connected bool

	inFlight int64
}

// NewPeer wraps a transport as a named cluster participant.
func NewPeer(id string, transport PeerTransport) *Peer {
	return &Peer{id: id, transport: transport}
}

func (p *Peer) ID() string { return p.id }

func (p *Peer) PendingCalls() int64 { return atomic.LoadInt64(&p.inFlight) }

func (p *Peer) connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil
	}
	if err := p.transport.Connect(ctx); err != nil {
		return &ErrTransport{PeerID: p.id, Cause: err}
	}
	p.connected = true
	return nil
}

// invoke issues an outgoing RPC and waits for
// the "response" event, surfacing transport failures as *ErrTransport.
func (p *Peer) invoke(ctx context.Context, rpcType RPCType, args any) (any, error) {
	if err := p.connect(ctx); err != nil {
		return nil, err
	}
	atomic.AddInt64(&p.inFlight, 1)
	defer atomic.AddInt64(&p.inFlight, -1)

	reply, err := p.transport.Invoke(ctx, rpcType, args)
	if err != nil {
		return nil, &ErrTransport{PeerID: p.id, Cause: err}
	}
	return reply, nil
}

// Peers is the cluster's remote-participant set, keyed by id. The owning
// Node is never a member of this map; quorum math always adds 1 for
// self, matching "N is peer count (self included)" in the glossary.
type Peers map[string]*Peer

// ClusterSize is the total node count, self included.
func (p Peers) ClusterSize() int { return len(p) + 1 }

// Quorum is ceil((N+1)/2) where N = ClusterSize(), per the glossary.
func (p Peers) Quorum() int { return p.ClusterSize()/2 + 1 }

func (p Peers) ids() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	return ids
}
