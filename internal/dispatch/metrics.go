package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Dispatcher's self-observability counters.
type Metrics struct {
	Sent     *prometheus.CounterVec
	Failed   *prometheus.CounterVec
	Dropped  *prometheus.CounterVec
	InFlight prometheus.Gauge
}

// NewMetrics creates the dispatcher metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Sent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plexapm",
			Name:      "samples_sent_total",
			Help:      "Samples accepted by the collector, by resource path.",
		}, []string{"resource"}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plexapm",
			Name:      "samples_failed_total",
			Help:      "Samples that could not be delivered, by resource path.",
		}, []string{"resource"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plexapm",
			Name:      "samples_dropped_total",
			Help:      "Samples discarded because the dispatcher was closed, by resource path.",
		}, []string{"resource"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "plexapm",
			Name:      "transmissions_in_flight",
			Help:      "Transmissions registered and not yet completed.",
		}),
	}
}
