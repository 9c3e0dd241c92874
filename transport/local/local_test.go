package local_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	raft "github.com/gitter-badger/raft"
	"github.com/gitter-badger/raft/transport/local"
)

func TestDialReachesRegisteredHandler(t *testing.T) {
	network := local.NewNetwork()
	network.Register("n1", func(ctx context.Context, rpcType raft.RPCType, args any) (any, error) {
		return &raft.RequestVoteReply{Term: 1, VoteGranted: true}, nil
	})

	transport := network.Dial("n1")
	reply, err := transport.Invoke(context.Background(), raft.RPCRequestVote, &raft.RequestVoteArgs{Term: 1})
	require.NoError(t, err)
	require.Equal(t, &raft.RequestVoteReply{Term: 1, VoteGranted: true}, reply)
}

func TestDialUnregisteredPeerFails(t *testing.T) {
	network := local.NewNetwork()
	transport := network.Dial("ghost")
	_, err := transport.Invoke(context.Background(), raft.RPCRequestVote, &raft.RequestVoteArgs{})
	require.Error(t, err)
}

func TestDeregisterMakesPeerUnreachable(t *testing.T) {
	network := local.NewNetwork()
	network.Register("n1", func(ctx context.Context, rpcType raft.RPCType, args any) (any, error) {
		return nil, nil
	})
	network.Deregister("n1")

	transport := network.Dial("n1")
	_, err := transport.Invoke(context.Background(), raft.RPCRequestVote, &raft.RequestVoteArgs{})
	require.Error(t, err)
}
