package main

import (
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrmesh/internal/telemetry"
	"github.com/ryandielhenn/zephyrmesh/pkg/broadcast"
	"github.com/ryandielhenn/zephyrmesh/pkg/discovery"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 1. Identity and strategy come from the environment.
	id := envOr("SELF_ID", hostnameID())
	addr := envOr("SELF_ADDR", "127.0.0.1:7946")
	strategy := envOr("DISCOVERY", discovery.StrategyBroadcast)
	local := discovery.Node{ID: discovery.NodeID(id), Address: discovery.Address(addr)}

	opts := discovery.Options{Logger: log.Named("discovery")}

	var mc *broadcast.Multicast
	switch strategy {
	case discovery.StrategyBroadcast:
		group := envOr("MULTICAST_GROUP", "239.77.77.77:7946")
		mc, err = broadcast.NewMulticast(group, log.Named("multicast"))
		if err != nil {
			log.Fatal("failed to join multicast group", zap.Error(err))
		}
		defer mc.Close()
		opts.Channel = mc
	case discovery.StrategyStatic:
		peers, err := parsePeers(os.Getenv("STATIC_PEERS"))
		if err != nil {
			log.Fatal("bad STATIC_PEERS", zap.Error(err))
		}
		opts.Static = discovery.StaticConfig{Peers: peers}
	case discovery.StrategyEtcd:
		opts.Etcd = discovery.EtcdConfig{
			Endpoints: strings.Split(envOr("ETCD_ENDPOINTS", "http://etcd:2379"), ","),
		}
	}

	provider, err := discovery.New(strategy, opts)
	if err != nil {
		log.Fatal("failed to build discovery provider", zap.Error(err))
	}

	// 2. Log every membership transition.
	provider.AddListener(discovery.ListenerFunc(func(e discovery.Event) {
		log.Info("membership event",
			zap.String("type", e.Type.String()),
			zap.String("id", string(e.Node.ID)),
			zap.String("address", string(e.Node.Address)),
		)
	}))

	if err := provider.Join(local); err != nil {
		log.Fatal("join failed", zap.Error(err))
	}

	// 3. Status endpoints.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/nodes", func(w http.ResponseWriter, _ *http.Request) {
		data, _ := json.Marshal(provider.Nodes())
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	mux.Handle("/metrics", telemetry.MetricsHandler())

	httpAddr := envOr("HTTP_ADDR", ":8080")
	srv := &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		log.Info("meshnode listening", zap.String("addr", httpAddr), zap.String("strategy", strategy))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 4. Leave cleanly on shutdown so peers see LEAVE instead of an eviction.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if err := provider.Leave(local); err != nil {
		log.Warn("leave failed", zap.Error(err))
	}
	srv.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func hostnameID() string {
	h, err := os.Hostname()
	if err != nil {
		return "meshnode"
	}
	return h
}

// parsePeers parses "id1=addr1,id2=addr2" into nodes.
func parsePeers(s string) ([]discovery.Node, error) {
	if s == "" {
		return nil, nil
	}
	var peers []discovery.Node
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return nil, &peerParseError{part}
		}
		peers = append(peers, discovery.Node{
			ID:      discovery.NodeID(strings.TrimSpace(kv[0])),
			Address: discovery.Address(strings.TrimSpace(kv[1])),
		})
	}
	return peers, nil
}

type peerParseError struct{ part string }

func (e *peerParseError) Error() string {
	return "invalid peer (expected id=addr): " + e.part
}
