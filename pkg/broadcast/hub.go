package broadcast

import "sync"

// Hub is an in-memory Channel. Every broadcast is delivered synchronously to
// all handlers subscribed at post time, including the sender's own.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]Handler
	nextID int

	// drop, when set, is consulted per delivery; returning true drops the
	// message for that subscriber. Used to simulate loss in tests.
	drop func() bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]Handler)}
}

// SetDrop installs a loss-injection hook. Pass nil to restore lossless
// delivery.
func (h *Hub) SetDrop(fn func() bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop = fn
}

func (h *Hub) Broadcast(payload []byte) error {
	h.mu.Lock()
	handlers := make([]Handler, 0, len(h.subs))
	for _, fn := range h.subs {
		handlers = append(handlers, fn)
	}
	drop := h.drop
	h.mu.Unlock()

	for _, fn := range handlers {
		if drop != nil && drop() {
			continue
		}
		fn(payload)
	}
	return nil
}

func (h *Hub) Subscribe(fn Handler) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}
