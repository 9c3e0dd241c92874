package raft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	reply any
	err   error
	delay time.Duration
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }

func (f *fakeTransport) Invoke(ctx context.Context, rpcType RPCType, args any) (any, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.reply, f.err
}

func TestBroadcastCollectsEveryPeer(t *testing.T) {
	peers := Peers{
		"a": NewPeer("a", &fakeTransport{reply: &RequestVoteReply{Term: 1, VoteGranted: true}}),
		"b": NewPeer("b", &fakeTransport{reply: &RequestVoteReply{Term: 1, VoteGranted: false}}),
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	bc := NewBroadcast(ctx, peers, RPCRequestVote, &RequestVoteArgs{Term: 1})
	defer bc.Cancel()

	seen := map[string]bool{}
	for i := 0; i < len(peers); i++ {
		resp := <-bc.Responses()
		require.NoError(t, resp.Err)
		seen[resp.PeerID] = true
	}
	require.Len(t, seen, 2)
}

func TestBroadcastCancelBeforeResponseIsSafe(t *testing.T) {
	peers := Peers{
		"a": NewPeer("a", &fakeTransport{reply: &RequestVoteReply{}, delay: 50 * time.Millisecond}),
	}
	ctx := context.Background()
	bc := NewBroadcast(ctx, peers, RPCRequestVote, &RequestVoteArgs{})
	bc.Cancel()
	// No assertion beyond "does not panic or hang" -- Cancel must be safe
	// to call before any response has arrived.
	time.Sleep(75 * time.Millisecond)
}
