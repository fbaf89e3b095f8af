// Package metrics exposes Prometheus instrumentation for the channels and
// pools that drive symbolizer coprocesses: restart counts, latched
// failures, addr2line pool evictions, and round-trip latency. A long
// fuzzing campaign linking this library wants these numbers without
// recompiling anything, the same way k3s's own subsystems each keep a
// package-level set of collectors and a MustRegister entry point.
//
// Grounded on k3s-io/k3s's pkg/agent/loadbalancer/metrics.go.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ChannelRestarts counts kill-and-relaunch cycles per backend kind
	// ("llvm" or "addr2line").
	ChannelRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "go_symbolizer_channel_restarts_total",
		Help: "Number of times a symbolizer channel killed and relaunched its child process.",
	}, []string{"backend"})

	// ChannelFailedToStart counts channels that exhausted their restart
	// budget and latched failedToStart.
	ChannelFailedToStart = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "go_symbolizer_channel_failed_total",
		Help: "Number of times a symbolizer channel exhausted its restart budget without a successful reply.",
	}, []string{"backend"})

	// PoolEvictions counts addr2line pool overflow events: every pooled
	// child killed at once to make room for a new module.
	PoolEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "go_symbolizer_addr2line_pool_evictions_total",
		Help: "Number of times the addr2line pool killed every pooled child because inserting a new one would exceed its bound.",
	})

	// SendDuration observes wall-clock time for one Channel.Send call,
	// including any restarts it triggered.
	SendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "go_symbolizer_send_duration_seconds",
		Help:    "Time taken for a single request/response round trip with a symbolizer child, including restarts.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})
)

// MustRegister registers every go-symbolizer collector with registerer, the
// way loadbalancer.MustRegister wires k3s's own metrics into its registry.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(ChannelRestarts, ChannelFailedToStart, PoolEvictions, SendDuration)
}
