package it

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/zephyrmesh/pkg/broadcast"
	"github.com/ryandielhenn/zephyrmesh/pkg/discovery"
)

type eventLog struct {
	mu     sync.Mutex
	events []discovery.Event
}

func (l *eventLog) OnEvent(e discovery.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) leavesFor(id discovery.NodeID) []discovery.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []discovery.Event
	for _, e := range l.events {
		if e.Type == discovery.Leave && e.Node.ID == id {
			out = append(out, e)
		}
	}
	return out
}

// TestClusterLifecycle runs the full discovery lifecycle across three
// providers on one shared channel: mutual discovery, a clean departure, and
// eviction of the departed node by the survivors.
func TestClusterLifecycle(t *testing.T) {
	hub := broadcast.NewHub()
	cfg := discovery.Config{
		BroadcastInterval: 25 * time.Millisecond,
		FailureThreshold:  10,
		FailureTimeout:    300 * time.Millisecond,
	}

	nodes := []discovery.Node{
		{ID: "a", Address: "10.0.0.1:7946"},
		{ID: "b", Address: "10.0.0.2:7946"},
		{ID: "c", Address: "10.0.0.3:7946"},
	}
	providers := make([]*discovery.Broadcast, len(nodes))
	logs := make([]*eventLog, len(nodes))
	for i := range nodes {
		p, err := discovery.NewBroadcast(cfg, hub)
		require.NoError(t, err)
		logs[i] = &eventLog{}
		p.AddListener(logs[i])
		require.NoError(t, p.Join(nodes[i]))
		providers[i] = p
	}
	defer func() {
		for i, p := range providers {
			_ = p.Leave(nodes[i])
		}
	}()

	// Everyone converges on the full membership set.
	require.Eventually(t, func() bool {
		for _, p := range providers {
			if len(p.Nodes()) != len(nodes) {
				return false
			}
		}
		return true
	}, 3*time.Second, 10*time.Millisecond, "providers never converged")

	// C departs; it stops advertising, and the survivors must evict it.
	require.NoError(t, providers[2].Leave(nodes[2]))

	require.Eventually(t, func() bool {
		return len(providers[0].Nodes()) == 2 && len(providers[1].Nodes()) == 2
	}, 5*time.Second, 10*time.Millisecond, "survivors never evicted the departed node")

	for i := 0; i < 2; i++ {
		leaves := logs[i].leavesFor("c")
		require.Len(t, leaves, 1, "provider %s: LEAVE events for c", nodes[i].ID)
		assert.Equal(t, nodes[2], leaves[0].Node, "LEAVE must carry c's prior node value")
	}

	// The survivors keep seeing each other.
	for i := 0; i < 2; i++ {
		assert.Len(t, providers[i].Nodes(), 2)
	}
}
