package discovery

import (
	"errors"
	"time"
)

const (
	// DefaultBroadcastInterval is how often the local node advertises itself.
	DefaultBroadcastInterval = 100 * time.Millisecond
	// DefaultFailureThreshold is the phi value above which a peer is declared
	// unreachable.
	DefaultFailureThreshold = 10.0
	// DefaultFailureTimeout bounds how long a peer may stay silent while its
	// failure detector has too few samples for phi to be meaningful.
	DefaultFailureTimeout = 10 * time.Second
)

var (
	ErrNonPositiveInterval  = errors.New("discovery: broadcast interval must be positive")
	ErrNonPositiveThreshold = errors.New("discovery: failure threshold must be positive")
	ErrNonPositiveTimeout   = errors.New("discovery: failure timeout must be positive")
	ErrNilChannel           = errors.New("discovery: broadcast channel is required")
)

// Config configures a broadcast discovery provider. The zero value is valid
// and picks the documented defaults. Immutable after the provider is built.
type Config struct {
	// BroadcastInterval is the period of the advertise loop. The failure
	// check loop runs at half this period.
	BroadcastInterval time.Duration

	// FailureThreshold is the phi suspicion level at which a peer is evicted.
	FailureThreshold float64

	// FailureTimeout evicts a peer whose detector is still in its bootstrap
	// phase (phi == 0) but that has been silent for at least this long.
	FailureTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BroadcastInterval == 0 {
		out.BroadcastInterval = DefaultBroadcastInterval
	}
	if out.FailureThreshold == 0 {
		out.FailureThreshold = DefaultFailureThreshold
	}
	if out.FailureTimeout == 0 {
		out.FailureTimeout = DefaultFailureTimeout
	}
	return out
}

// Validate rejects non-positive settings. Zero values are allowed on the way
// in because withDefaults fills them first.
func (c Config) Validate() error {
	if c.BroadcastInterval <= 0 {
		return ErrNonPositiveInterval
	}
	if c.FailureThreshold <= 0 {
		return ErrNonPositiveThreshold
	}
	if c.FailureTimeout <= 0 {
		return ErrNonPositiveTimeout
	}
	return nil
}
