package discovery

import "testing"

func TestStatic_JoinRegistersConfiguredPeers(t *testing.T) {
	p := NewStatic(StaticConfig{Peers: []Node{
		{ID: "p1", Address: "10.0.0.2:1"},
		{ID: "p2", Address: "10.0.0.3:1"},
	}})
	rec := &recorder{}
	p.AddListener(rec)

	local := Node{ID: "n1", Address: "10.0.0.1:1"}
	if err := p.Join(local); err != nil {
		t.Fatalf("Join: %v", err)
	}

	if got := len(p.Nodes()); got != 3 {
		t.Fatalf("Nodes = %d, want 3", got)
	}
	for _, id := range []NodeID{"n1", "p1", "p2"} {
		if got := rec.count(Join, id); got != 1 {
			t.Fatalf("JOIN events for %s = %d, want 1", id, got)
		}
	}
}

func TestStatic_JoinIdempotent(t *testing.T) {
	p := NewStatic(StaticConfig{Peers: []Node{{ID: "p1", Address: "10.0.0.2:1"}}})
	rec := &recorder{}
	p.AddListener(rec)

	local := Node{ID: "n1", Address: "10.0.0.1:1"}
	if err := p.Join(local); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := p.Join(local); err != nil {
		t.Fatalf("second Join: %v", err)
	}

	if got := rec.count(Join, "n1"); got != 1 {
		t.Fatalf("JOIN events = %d, want 1", got)
	}
}

func TestStatic_LeaveIdempotent(t *testing.T) {
	p := NewStatic(StaticConfig{})
	rec := &recorder{}
	p.AddListener(rec)

	local := Node{ID: "n1", Address: "10.0.0.1:1"}
	if err := p.Join(local); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := p.Leave(local); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if err := p.Leave(local); err != nil {
		t.Fatalf("second Leave: %v", err)
	}

	if got := rec.count(Leave, "n1"); got != 1 {
		t.Fatalf("LEAVE events = %d, want 1", got)
	}
}

func TestStatic_LocalAddressNotDuplicatedByPeerList(t *testing.T) {
	// The local node also appearing in the peer list must not double-join.
	p := NewStatic(StaticConfig{Peers: []Node{{ID: "n1", Address: "10.0.0.1:1"}}})
	rec := &recorder{}
	p.AddListener(rec)

	local := Node{ID: "n1", Address: "10.0.0.1:1"}
	if err := p.Join(local); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got := rec.count(Join, "n1"); got != 1 {
		t.Fatalf("JOIN events = %d, want 1", got)
	}
	if got := len(p.Nodes()); got != 1 {
		t.Fatalf("Nodes = %d, want 1", got)
	}
}
