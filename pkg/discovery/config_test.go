package discovery

import (
	"errors"
	"testing"
	"time"

	"github.com/ryandielhenn/zephyrmesh/pkg/broadcast"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := (&Config{}).withDefaults()
	if cfg.BroadcastInterval != DefaultBroadcastInterval {
		t.Fatalf("BroadcastInterval = %v, want %v", cfg.BroadcastInterval, DefaultBroadcastInterval)
	}
	if cfg.FailureThreshold != DefaultFailureThreshold {
		t.Fatalf("FailureThreshold = %v, want %v", cfg.FailureThreshold, DefaultFailureThreshold)
	}
	if cfg.FailureTimeout != DefaultFailureTimeout {
		t.Fatalf("FailureTimeout = %v, want %v", cfg.FailureTimeout, DefaultFailureTimeout)
	}
}

func TestNewBroadcast_RejectsBadConfig(t *testing.T) {
	hub := broadcast.NewHub()
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"negative interval", Config{BroadcastInterval: -time.Second}, ErrNonPositiveInterval},
		{"negative threshold", Config{FailureThreshold: -1}, ErrNonPositiveThreshold},
		{"negative timeout", Config{FailureTimeout: -time.Second}, ErrNonPositiveTimeout},
	}
	for _, tc := range cases {
		if _, err := NewBroadcast(tc.cfg, hub); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestNewBroadcast_RejectsNilChannel(t *testing.T) {
	if _, err := NewBroadcast(Config{}, nil); !errors.Is(err, ErrNilChannel) {
		t.Fatalf("err = %v, want %v", err, ErrNilChannel)
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	if _, err := New("carrier-pigeon", Options{}); err == nil {
		t.Fatalf("unknown strategy accepted")
	}
}

func TestNew_BroadcastStrategy(t *testing.T) {
	p, err := New(StrategyBroadcast, Options{Channel: broadcast.NewHub()})
	if err != nil {
		t.Fatalf("New(broadcast): %v", err)
	}
	if _, ok := p.(*Broadcast); !ok {
		t.Fatalf("New(broadcast) = %T, want *Broadcast", p)
	}
}

func TestNew_StaticStrategy(t *testing.T) {
	p, err := New(StrategyStatic, Options{Static: StaticConfig{
		Peers: []Node{{ID: "a", Address: "1.1.1.1:1"}},
	}})
	if err != nil {
		t.Fatalf("New(static): %v", err)
	}
	if _, ok := p.(*Static); !ok {
		t.Fatalf("New(static) = %T, want *Static", p)
	}
}
