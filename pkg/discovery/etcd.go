package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const (
	defaultEtcdPrefix      = "/zephyrmesh/nodes/"
	defaultEtcdLeaseTTL    = 10
	defaultEtcdDialTimeout = 5 * time.Second
)

// EtcdConfig configures an etcd-registry discovery provider.
type EtcdConfig struct {
	// Endpoints of the etcd cluster, e.g. []string{"http://etcd:2379"}.
	Endpoints []string
	// Prefix under which nodes register. Defaults to "/zephyrmesh/nodes/".
	Prefix string
	// LeaseTTL is the registration lease in seconds; a node that dies without
	// leaving disappears from the registry when its lease expires. Defaults
	// to 10.
	LeaseTTL int64
	// DialTimeout for the etcd client. Defaults to 5s.
	DialTimeout time.Duration
}

func (c *EtcdConfig) withDefaults() EtcdConfig {
	out := *c
	if out.Prefix == "" {
		out.Prefix = defaultEtcdPrefix
	}
	if !strings.HasSuffix(out.Prefix, "/") {
		out.Prefix += "/"
	}
	if out.LeaseTTL == 0 {
		out.LeaseTTL = defaultEtcdLeaseTTL
	}
	if out.DialTimeout == 0 {
		out.DialTimeout = defaultEtcdDialTimeout
	}
	return out
}

// Etcd is a discovery provider backed by an etcd registry instead of a
// broadcast channel. Joining puts the local node under the prefix with a
// kept-alive lease; membership changes arrive through a prefix watch. Failure
// detection is delegated to lease expiry.
type Etcd struct {
	cfg    EtcdConfig
	cli    *clientv3.Client
	codec  Codec
	log    *zap.Logger
	table  *Table
	events *dispatcher

	mu      sync.Mutex
	local   Node
	active  bool
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEtcd connects to the etcd cluster and returns the provider. Call Close
// to release the client.
func NewEtcd(cfg EtcdConfig, opts ...Option) (*Etcd, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("discovery: etcd endpoints are required")
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: etcd client: %w", err)
	}
	o := buildOptions(opts)
	return &Etcd{
		cfg:    cfg,
		cli:    cli,
		codec:  o.codec,
		log:    o.log,
		table:  NewTable(),
		events: newDispatcher(o.log),
	}, nil
}

// Close releases the etcd client. Leave first if the node is still joined.
func (p *Etcd) Close() error {
	return p.cli.Close()
}

// Join registers the local node under the prefix with a kept-alive lease,
// seeds the membership view from the current registry contents, and starts
// watching for changes. Idempotent.
func (p *Etcd) Join(local Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.table.Get(local.Address); ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	lease, err := p.cli.Grant(ctx, p.cfg.LeaseTTL)
	if err != nil {
		cancel()
		return fmt.Errorf("discovery: etcd lease: %w", err)
	}
	payload, err := p.codec.Encode(local)
	if err != nil {
		cancel()
		return fmt.Errorf("discovery: encode node: %w", err)
	}
	if _, err := p.cli.Put(ctx, nodeKey(p.cfg.Prefix, local.ID), string(payload), clientv3.WithLease(lease.ID)); err != nil {
		cancel()
		return fmt.Errorf("discovery: etcd register: %w", err)
	}
	keepAlive, err := p.cli.KeepAlive(ctx, lease.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("discovery: etcd keepalive: %w", err)
	}

	resp, err := p.cli.Get(ctx, p.cfg.Prefix, clientv3.WithPrefix())
	if err != nil {
		cancel()
		return fmt.Errorf("discovery: etcd bootstrap: %w", err)
	}

	p.local = local
	p.active = true
	p.leaseID = lease.ID
	p.cancel = cancel

	p.table.Upsert(local)
	p.events.post(Event{Type: Join, Node: local})
	for _, kv := range resp.Kvs {
		n, err := p.codec.Decode(kv.Value)
		if err != nil {
			p.log.Warn("skipping undecodable registry entry",
				zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		p.apply(n)
	}

	p.wg.Add(2)
	go p.drainKeepAlive(keepAlive)
	go p.watch(ctx, resp.Header.Revision+1)

	p.log.Info("joined etcd registry",
		zap.String("id", string(local.ID)),
		zap.String("prefix", p.cfg.Prefix),
	)
	return nil
}

// Leave deletes the local registration, revokes the lease, and stops the
// watch. Idempotent.
func (p *Etcd) Leave(local Node) error {
	p.mu.Lock()
	if _, ok := p.table.Get(local.Address); !ok {
		p.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.DialTimeout)
	defer cancel()
	if _, err := p.cli.Delete(ctx, nodeKey(p.cfg.Prefix, local.ID)); err != nil {
		p.log.Warn("failed to delete registration, relying on lease expiry", zap.Error(err))
	}
	if _, err := p.cli.Revoke(ctx, p.leaseID); err != nil {
		p.log.Warn("failed to revoke lease", zap.Error(err))
	}

	p.table.Remove(local.Address)
	p.active = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.events.post(Event{Type: Leave, Node: local})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Nodes returns a snapshot of the membership view.
func (p *Etcd) Nodes() []Node {
	return p.table.Snapshot()
}

func (p *Etcd) AddListener(l Listener)    { p.events.add(l) }
func (p *Etcd) RemoveListener(l Listener) { p.events.remove(l) }

// apply folds one registry entry into the view. Caller holds p.mu.
func (p *Etcd) apply(n Node) {
	if n.Address == p.local.Address {
		return
	}
	prev, existed := p.table.Upsert(n)
	switch {
	case !existed:
		p.events.post(Event{Type: Join, Node: n})
	case prev.ID != n.ID:
		p.events.post(Event{Type: Leave, Node: prev})
		p.events.post(Event{Type: Join, Node: n})
	}
}

func (p *Etcd) drainKeepAlive(ch <-chan *clientv3.LeaseKeepAliveResponse) {
	defer p.wg.Done()
	for range ch {
	}
}

func (p *Etcd) watch(ctx context.Context, fromRev int64) {
	defer p.wg.Done()
	rch := p.cli.Watch(ctx, p.cfg.Prefix, clientv3.WithPrefix(), clientv3.WithRev(fromRev))
	for resp := range rch {
		if err := resp.Err(); err != nil {
			p.log.Warn("etcd watch error", zap.Error(err))
			continue
		}
		for _, ev := range resp.Events {
			p.handleWatchEvent(ev)
		}
	}
}

func (p *Etcd) handleWatchEvent(ev *clientv3.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}

	switch ev.Type {
	case mvccpb.PUT:
		n, err := p.codec.Decode(ev.Kv.Value)
		if err != nil {
			p.log.Warn("skipping undecodable registry update",
				zap.ByteString("key", ev.Kv.Key), zap.Error(err))
			return
		}
		p.apply(n)
	case mvccpb.DELETE:
		id := idFromKey(p.cfg.Prefix, string(ev.Kv.Key))
		if id == p.local.ID {
			return
		}
		for _, n := range p.table.Snapshot() {
			if n.ID == id {
				p.table.Remove(n.Address)
				p.events.post(Event{Type: Leave, Node: n})
				return
			}
		}
	}
}

func nodeKey(prefix string, id NodeID) string {
	return prefix + string(id)
}

func idFromKey(prefix, key string) NodeID {
	return NodeID(strings.TrimPrefix(key, prefix))
}
