// Package local provides an in-process raft.PeerTransport, letting a
// multi-node cluster run as one test binary with no sockets involved --
// the same role a channel-backed fake transport plays in this
// codebase's own concurrency tests.
package local

import (
	"context"
	"sync"

	raft "github.com/gitter-badger/raft"
)

// Handler is whatever knows how to answer an inbound RPC -- in practice
// a *raft.Node's HandleRPC method.
type Handler func(ctx context.Context, rpcType raft.RPCType, args any) (any, error)

// Network is a shared registry every node in a simulated cluster
// registers itself into; Dial looks peers up by id against it.
type Network struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewNetwork returns an empty registry.
func NewNetwork() *Network {
	return &Network{handlers: make(map[string]Handler)}
}

// Register makes id reachable via Dial.
func (n *Network) Register(id string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[id] = h
}

// Deregister makes id unreachable, simulating a partitioned or crashed
// node for fault-injection tests.
func (n *Network) Deregister(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.handlers, id)
}

// Dial returns a PeerTransport that calls directly into the target's
// handler, skipping serialisation entirely.
func (n *Network) Dial(targetID string) raft.PeerTransport {
	return &transport{network: n, targetID: targetID}
}

type transport struct {
	network  *Network
	targetID string
}

func (t *transport) Connect(ctx context.Context) error {
	return nil
}

func (t *transport) Invoke(ctx context.Context, rpcType raft.RPCType, args any) (any, error) {
	t.network.mu.RLock()
	h, ok := t.network.handlers[t.targetID]
	t.network.mu.RUnlock()
	if !ok {
		return nil, &raft.ErrTransport{PeerID: t.targetID, Cause: errUnreachable(t.targetID)}
	}
	return h(ctx, rpcType, args)
}

type errUnreachable string

func (e errUnreachable) Error() string { return "raft/transport/local: " + string(e) + " is unreachable" }
