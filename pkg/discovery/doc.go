// Package discovery implements the membership-discovery layer of zephyrmesh.
// Each node periodically advertises itself over a shared broadcast channel and
// ingests advertisements from peers to build an eventually-consistent view of
// which nodes are alive. A phi-accrual failure detector per peer decides when a
// silent peer should be evicted from that view.
//
// Typical usage:
//
//	ch := broadcast.NewHub()
//	p, _ := discovery.NewBroadcast(discovery.Config{}, ch)
//	p.AddListener(discovery.ListenerFunc(func(e discovery.Event) {
//	    log.Println(e.Type, e.Node.ID)
//	}))
//	p.Join(ctx, discovery.Node{ID: "node1", Address: "10.0.0.1:7946"})
//	defer p.Leave(ctx, discovery.Node{ID: "node1", Address: "10.0.0.1:7946"})
//
// The view is eventually consistent: under partition two nodes may disagree
// about membership, and convergence resumes once broadcasts flow again.
// Alternative strategies (static peer list, etcd registry) are available
// through New and their respective config types.
package discovery
