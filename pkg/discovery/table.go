package discovery

import "sync"

// Table is the thread-safe registry of currently-known peers, keyed by
// address. Callers use Upsert's previous-entry return to decide whether an
// advertisement is a JOIN, an identity change, or a refresh.
type Table struct {
	mu    sync.RWMutex
	nodes map[Address]Node
}

// NewTable returns an empty membership table.
func NewTable() *Table {
	return &Table{nodes: make(map[Address]Node)}
}

// Upsert inserts or replaces the entry for n.Address and returns the previous
// entry, if any.
func (t *Table) Upsert(n Node) (prev Node, existed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, existed = t.nodes[n.Address]
	t.nodes[n.Address] = n
	return prev, existed
}

// Remove deletes and returns the entry for addr.
func (t *Table) Remove(addr Address) (Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[addr]
	if ok {
		delete(t.nodes, addr)
	}
	return n, ok
}

// Get returns the entry for addr.
func (t *Table) Get(addr Address) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[addr]
	return n, ok
}

// Snapshot returns a point-in-time copy of all entries. The slice is owned by
// the caller; iterating it never blocks writers.
func (t *Table) Snapshot() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}
