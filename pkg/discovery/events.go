package discovery

import (
	"sync"

	"go.uber.org/zap"
)

// EventType classifies a membership transition.
type EventType uint8

const (
	// Join indicates a node was added to the membership view.
	Join EventType = iota
	// Leave indicates a node was removed, either voluntarily or by eviction.
	Leave
)

func (t EventType) String() string {
	switch t {
	case Join:
		return "JOIN"
	case Leave:
		return "LEAVE"
	default:
		return "UNKNOWN"
	}
}

// Event is a single membership transition. For a given node, listeners observe
// events in the order the provider posted them.
type Event struct {
	Type EventType
	Node Node
}

// Listener receives membership events. Implementations must return promptly:
// delivery is synchronous with the poster, and a listener that blocks stalls
// the provider's loops. Listeners must not call back into the posting
// provider's Join or Leave.
type Listener interface {
	OnEvent(Event)
}

type listenerFunc struct {
	fn func(Event)
}

func (l *listenerFunc) OnEvent(e Event) { l.fn(e) }

// ListenerFunc adapts a function to the Listener interface. The returned
// value is comparable, so it can later be passed to RemoveListener.
func ListenerFunc(fn func(Event)) Listener {
	return &listenerFunc{fn: fn}
}

// dispatcher fans events out to registered listeners in registration order.
// Registration and removal are safe concurrently with delivery; each post
// uses a stable snapshot of the listener set.
type dispatcher struct {
	mu        sync.Mutex
	listeners []Listener
	log       *zap.Logger
}

func newDispatcher(log *zap.Logger) *dispatcher {
	return &dispatcher{log: log}
}

func (d *dispatcher) add(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *dispatcher) remove(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, cur := range d.listeners {
		if cur == l {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

// post delivers e to every listener registered at the time of the call and
// returns once all of them ran. A panicking listener is isolated so the rest
// still receive the event.
func (d *dispatcher) post(e Event) {
	d.mu.Lock()
	snapshot := make([]Listener, len(d.listeners))
	copy(snapshot, d.listeners)
	d.mu.Unlock()

	for _, l := range snapshot {
		d.deliver(l, e)
	}
}

func (d *dispatcher) deliver(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("discovery listener panicked",
				zap.String("event", e.Type.String()),
				zap.String("node", string(e.Node.ID)),
				zap.Any("panic", r),
			)
		}
	}()
	l.OnEvent(e)
}
