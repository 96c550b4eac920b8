package discovery

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrmesh/pkg/broadcast"
)

// Strategy names accepted by New.
const (
	StrategyBroadcast = "broadcast"
	StrategyStatic    = "static"
	StrategyEtcd      = "etcd"
)

// Options carries the strategy-specific inputs for New. Only the fields for
// the selected strategy are consulted.
type Options struct {
	Broadcast Config
	Channel   broadcast.Channel
	Static    StaticConfig
	Etcd      EtcdConfig

	Logger *zap.Logger
	Codec  Codec
}

// New selects a discovery strategy by name.
func New(strategy string, o Options) (Provider, error) {
	var opts []Option
	if o.Logger != nil {
		opts = append(opts, WithLogger(o.Logger))
	}
	if o.Codec != nil {
		opts = append(opts, WithCodec(o.Codec))
	}

	switch strategy {
	case StrategyBroadcast:
		return NewBroadcast(o.Broadcast, o.Channel, opts...)
	case StrategyStatic:
		return NewStatic(o.Static, opts...), nil
	case StrategyEtcd:
		return NewEtcd(o.Etcd, opts...)
	default:
		return nil, fmt.Errorf("discovery: unknown strategy %q", strategy)
	}
}
