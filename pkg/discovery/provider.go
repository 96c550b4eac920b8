package discovery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrmesh/internal/telemetry"
	"github.com/ryandielhenn/zephyrmesh/pkg/broadcast"
)

// Provider maintains an eventually-consistent membership view and notifies
// listeners of JOIN/LEAVE transitions. Join and Leave are idempotent and
// return without waiting on any network round trip; there is no
// acknowledgment phase in the protocol.
type Provider interface {
	Join(local Node) error
	Leave(local Node) error
	Nodes() []Node
	AddListener(Listener)
	RemoveListener(Listener)
}

// Option adjusts provider construction.
type Option func(*options)

type options struct {
	log   *zap.Logger
	codec Codec
}

// WithLogger sets the structured logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithCodec sets the advertisement codec. Defaults to JSONCodec.
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop(), codec: JSONCodec{}}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Broadcast is the multicast-style discovery provider. The local node
// advertises itself on a shared broadcast channel every BroadcastInterval,
// builds its membership view from peers' advertisements, and evicts peers
// whose phi-accrual failure detector declares them unreachable.
type Broadcast struct {
	cfg     Config
	channel broadcast.Channel
	codec   Codec
	log     *zap.Logger
	table   *Table
	events  *dispatcher

	// mu guards the lifecycle fields below and makes peer eviction a single
	// critical section over the table and the detector registry.
	mu        sync.Mutex
	detectors map[NodeID]*Detector
	local     Node
	active    bool
	cancel    context.CancelFunc
	unsub     func()
	wg        sync.WaitGroup

	// newDetector is a seam for tests.
	newDetector func() *Detector
}

// NewBroadcast builds a broadcast discovery provider over ch. Zero-valued
// Config fields take the documented defaults; explicitly non-positive values
// are rejected.
func NewBroadcast(cfg Config, ch broadcast.Channel, opts ...Option) (*Broadcast, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Broadcast{
		cfg:         cfg,
		channel:     ch,
		codec:       o.codec,
		log:         o.log,
		table:       NewTable(),
		events:      newDispatcher(o.log),
		detectors:   make(map[NodeID]*Detector),
		newDetector: NewDetector,
	}, nil
}

// Join registers local in the membership table, emits JOIN, subscribes the
// ingestion handler, starts the advertise and failure-check loops, and sends
// one immediate advertisement. A second Join while the local address is
// already registered is a no-op.
func (p *Broadcast) Join(local Node) error {
	p.mu.Lock()
	if _, ok := p.table.Get(local.Address); ok {
		p.mu.Unlock()
		return nil
	}

	p.local = local
	p.active = true
	p.table.Upsert(local)
	telemetry.Peers.Set(float64(p.table.Len()))
	p.events.post(Event{Type: Join, Node: local})

	p.unsub = p.channel.Subscribe(p.handleAdvertisement)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(2)
	go p.advertiseLoop(ctx, local)
	go p.failureLoop(ctx)
	p.mu.Unlock()

	// Outside the lock: the channel may deliver our own advertisement back
	// synchronously, and the ingestion handler needs the lock.
	p.advertise(local)
	p.log.Info("joined discovery",
		zap.String("id", string(local.ID)),
		zap.String("address", string(local.Address)),
	)
	return nil
}

// Leave removes local from the table, emits LEAVE, unsubscribes the ingestion
// handler, and stops both loops. After Leave returns no further ticks run and
// no further events are emitted. A Leave for an unregistered address is a
// no-op. A later Join starts a fresh session with no residual detector state.
func (p *Broadcast) Leave(local Node) error {
	p.mu.Lock()
	if _, ok := p.table.Get(local.Address); !ok {
		p.mu.Unlock()
		return nil
	}

	p.table.Remove(local.Address)
	telemetry.Peers.Set(float64(p.table.Len()))
	p.active = false
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.detectors = make(map[NodeID]*Detector)
	p.events.post(Event{Type: Leave, Node: local})
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("left discovery",
		zap.String("id", string(local.ID)),
		zap.String("address", string(local.Address)),
	)
	return nil
}

// Nodes returns a point-in-time snapshot of the membership view, local node
// included.
func (p *Broadcast) Nodes() []Node {
	return p.table.Snapshot()
}

func (p *Broadcast) AddListener(l Listener)    { p.events.add(l) }
func (p *Broadcast) RemoveListener(l Listener) { p.events.remove(l) }

func (p *Broadcast) advertiseLoop(ctx context.Context, local Node) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.advertise(local)
		}
	}
}

func (p *Broadcast) advertise(local Node) {
	payload, err := p.codec.Encode(local)
	if err != nil {
		p.log.Error("failed to encode advertisement", zap.Error(err))
		return
	}
	if err := p.channel.Broadcast(payload); err != nil {
		// The channel owns retry and backpressure; the next tick tries again.
		p.log.Warn("broadcast failed", zap.Error(err))
		return
	}
	telemetry.AdvertisementsSent.Inc()
}

// handleAdvertisement ingests one message off the broadcast channel. It runs
// on the channel's execution context.
func (p *Broadcast) handleAdvertisement(payload []byte) {
	n, err := p.codec.Decode(payload)
	if err != nil {
		telemetry.DecodeFailures.Inc()
		p.log.Warn("dropping undecodable advertisement", zap.Error(err))
		return
	}
	telemetry.AdvertisementsReceived.Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}

	// Feed the peer's failure detector at receipt time so phi reflects the
	// advertisement immediately rather than on the next failure-check tick.
	if n.Address != p.local.Address {
		d := p.detectors[n.ID]
		if d == nil {
			d = p.newDetector()
			p.detectors[n.ID] = d
		}
		d.Observe(time.Now())
	}

	prev, existed := p.table.Upsert(n)
	telemetry.Peers.Set(float64(p.table.Len()))
	switch {
	case !existed:
		p.log.Info("discovered peer",
			zap.String("id", string(n.ID)),
			zap.String("address", string(n.Address)),
		)
		p.events.post(Event{Type: Join, Node: n})
	case prev.ID != n.ID:
		// Address reuse by a different identity, e.g. a process restart.
		delete(p.detectors, prev.ID)
		p.log.Info("peer identity changed",
			zap.String("address", string(n.Address)),
			zap.String("old_id", string(prev.ID)),
			zap.String("new_id", string(n.ID)),
		)
		p.events.post(Event{Type: Leave, Node: prev})
		p.events.post(Event{Type: Join, Node: n})
	}
}

func (p *Broadcast) failureLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.BroadcastInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.detectFailures()
		}
	}
}

// detectFailures evaluates every non-local peer against the failure policy
// and evicts the ones declared unreachable. Table and detector registry are
// updated together under p.mu.
func (p *Broadcast) detectFailures() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}

	now := time.Now()
	for _, n := range p.table.Snapshot() {
		if n.Address == p.local.Address {
			continue
		}
		d := p.detectors[n.ID]
		if d == nil {
			d = p.newDetector()
			p.detectors[n.ID] = d
		}
		phi := d.Phi(now)
		telemetry.PeerPhi.Observe(phi)
		last := d.LastUpdated()

		failed := phi >= p.cfg.FailureThreshold ||
			(phi == 0.0 && !last.IsZero() && now.Sub(last) > p.cfg.FailureTimeout)
		if !failed {
			continue
		}

		p.table.Remove(n.Address)
		delete(p.detectors, n.ID)
		telemetry.Evictions.Inc()
		telemetry.Peers.Set(float64(p.table.Len()))
		p.log.Info("lost contact with peer",
			zap.String("id", string(n.ID)),
			zap.String("address", string(n.Address)),
			zap.Float64("phi", phi),
		)
		p.events.post(Event{Type: Leave, Node: n})
	}
}
