package discovery

import (
	"sync"

	"go.uber.org/zap"
)

// StaticConfig configures a fixed-membership provider.
type StaticConfig struct {
	// Peers is the full set of remote nodes. The local node is added at Join
	// time and does not need to be listed.
	Peers []Node
}

// Static is a discovery provider with a fixed peer list. There is no failure
// detection: the configured peers are assumed reachable for the lifetime of
// the session. Useful for small fixed deployments and tests.
type Static struct {
	cfg    StaticConfig
	log    *zap.Logger
	table  *Table
	events *dispatcher

	mu sync.Mutex
}

// NewStatic builds a static provider.
func NewStatic(cfg StaticConfig, opts ...Option) *Static {
	o := buildOptions(opts)
	return &Static{
		cfg:    cfg,
		log:    o.log,
		table:  NewTable(),
		events: newDispatcher(o.log),
	}
}

// Join registers the local node and the configured peers, emitting a JOIN for
// each. Idempotent.
func (p *Static) Join(local Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.table.Get(local.Address); ok {
		return nil
	}

	p.table.Upsert(local)
	p.events.post(Event{Type: Join, Node: local})
	for _, peer := range p.cfg.Peers {
		if peer.Address == local.Address {
			continue
		}
		if _, existed := p.table.Upsert(peer); !existed {
			p.events.post(Event{Type: Join, Node: peer})
		}
	}
	p.log.Info("joined static membership",
		zap.String("id", string(local.ID)),
		zap.Int("peers", len(p.cfg.Peers)),
	)
	return nil
}

// Leave deregisters the local node and emits LEAVE for it. Idempotent.
func (p *Static) Leave(local Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.table.Get(local.Address); !ok {
		return nil
	}
	p.table.Remove(local.Address)
	p.events.post(Event{Type: Leave, Node: local})
	return nil
}

// Nodes returns a snapshot of the membership view.
func (p *Static) Nodes() []Node {
	return p.table.Snapshot()
}

func (p *Static) AddListener(l Listener)    { p.events.add(l) }
func (p *Static) RemoveListener(l Listener) { p.events.remove(l) }
