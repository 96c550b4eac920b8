package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	AdvertisementsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zephyrmesh",
			Name:      "advertisements_sent_total",
			Help:      "Total advertisements broadcast by the local node.",
		},
	)

	AdvertisementsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zephyrmesh",
			Name:      "advertisements_received_total",
			Help:      "Total advertisements ingested from the broadcast channel.",
		},
	)

	DecodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zephyrmesh",
			Name:      "decode_failures_total",
			Help:      "Advertisements dropped because they failed to decode.",
		},
	)

	Evictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zephyrmesh",
			Name:      "evictions_total",
			Help:      "Peers evicted by the failure detector.",
		},
	)

	Peers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zephyrmesh",
			Name:      "membership_size",
			Help:      "Current number of nodes in the membership table, local node included.",
		},
	)

	PeerPhi = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "zephyrmesh",
			Name:      "peer_phi",
			Help:      "Phi suspicion values observed during failure checks.",
			// Threshold defaults to 10; cover the healthy range and well past it.
			Buckets: prometheus.ExponentialBuckets(0.125, 2, 10),
		},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zephyrmesh",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "zephyrmesh",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		AdvertisementsSent,
		AdvertisementsReceived,
		DecodeFailures,
		Evictions,
		Peers,
		PeerPhi,
		buildInfo,
		uptime,
	)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}
