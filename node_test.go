package raft_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	raft "github.com/gitter-badger/raft"
	"github.com/gitter-badger/raft/persistence/memory"
	"github.com/gitter-badger/raft/transport/local"
)

// cluster wires up N in-process nodes sharing one local.Network, each
// backed by its own memory.Backend, for deterministic multi-node tests
// that never touch a real socket.
type cluster struct {
	nodes   []*raft.Node
	cancels []context.CancelFunc
}

func newCluster(t *testing.T, n int) *cluster {
	t.Helper()
	network := local.NewNetwork()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}

	c := &cluster{}
	for _, id := range ids {
		peers := map[string]raft.PeerTransport{}
		for _, other := range ids {
			if other != id {
				peers[other] = network.Dial(other)
			}
		}
		node, err := raft.NewNode(peers, raft.Options{
			ID:                 id,
			Persistence:        memory.New(),
			MinElectionTimeout: 60 * time.Millisecond,
			MaxElectionTimeout: 120 * time.Millisecond,
			HeartbeatInterval:  15 * time.Millisecond,
		})
		require.NoError(t, err)
		network.Register(id, node.HandleRPC)

		ctx, cancel := context.WithCancel(context.Background())
		node.Start(ctx)
		c.nodes = append(c.nodes, node)
		c.cancels = append(c.cancels, cancel)
	}
	return c
}

func (c *cluster) stop() {
	for i, n := range c.nodes {
		n.Stop()
		c.cancels[i]()
	}
}

func (c *cluster) awaitLeader(t *testing.T, timeout time.Duration) *raft.Node {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, n := range c.nodes {
			if n.Stats().Role == "Leader" {
				return n
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no leader elected in time")
	return nil
}

func TestClusterElectsASingleLeader(t *testing.T) {
	c := newCluster(t, 3)
	defer c.stop()

	leader := c.awaitLeader(t, 2*time.Second)
	require.NotNil(t, leader)

	time.Sleep(50 * time.Millisecond)
	leaders := 0
	for _, n := range c.nodes {
		if n.Stats().Role == "Leader" {
			leaders++
		}
	}
	require.Equal(t, 1, leaders)
}

func TestClusterReplicatesACommand(t *testing.T) {
	c := newCluster(t, 3)
	defer c.stop()

	leader := c.awaitLeader(t, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	future, err := leader.Command(ctx, []byte("set x 1"))
	require.NoError(t, err)
	require.NoError(t, future.Wait(ctx))
	require.Greater(t, future.Index(), uint64(0))

	require.Eventually(t, func() bool {
		return leader.Stats().LastApplied >= future.Index()
	}, time.Second, 10*time.Millisecond)
}

func TestFollowersApplyReplicatedCommands(t *testing.T) {
	c := newCluster(t, 3)
	defer c.stop()

	leader := c.awaitLeader(t, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	future, err := leader.Command(ctx, []byte("set x 1"))
	require.NoError(t, err)
	require.NoError(t, future.Wait(ctx))

	for _, n := range c.nodes {
		if n.Stats().Role == "Leader" {
			continue
		}
		node := n
		require.Eventually(t, func() bool {
			return node.Stats().LastApplied >= future.Index()
		}, time.Second, 10*time.Millisecond, "follower %s never applied index %d", node.ID(), future.Index())
	}
}

func TestJoinBeforeStartAddsAPeer(t *testing.T) {
	node, err := raft.NewNode(nil, raft.Options{
		ID:          "solo",
		Persistence: memory.New(),
	})
	require.NoError(t, err)

	require.NoError(t, node.Join("late", local.NewNetwork().Dial("late")))
	require.Error(t, node.Join("late", local.NewNetwork().Dial("late")))
}

func TestJoinAfterStartFails(t *testing.T) {
	c := newCluster(t, 1)
	defer c.stop()

	err := c.nodes[0].Join("late", local.NewNetwork().Dial("late"))
	require.Error(t, err)
	var cfgErr *raft.ErrConfig
	require.ErrorAs(t, err, &cfgErr)
}

func TestCommandOnFollowerFailsWithNotLeader(t *testing.T) {
	c := newCluster(t, 3)
	defer c.stop()

	c.awaitLeader(t, 2*time.Second)

	var follower *raft.Node
	for _, n := range c.nodes {
		if n.Stats().Role != "Leader" {
			follower = n
			break
		}
	}
	require.NotNil(t, follower)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	future, err := follower.Command(ctx, []byte("x"))
	require.NoError(t, err)
	err = future.Wait(ctx)
	require.Error(t, err)
	var notLeader *raft.ErrNotLeader
	require.ErrorAs(t, err, &notLeader)
}
