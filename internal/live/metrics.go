package live

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message type labels. Unknown types share one label to bound cardinality.
const (
	labelTaskUpdate = "task_update"
	labelOther      = "other"
	labelInvalid    = "invalid"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the live channel.
type Metrics struct {
	MessagesTotal *prometheus.CounterVec
	ReloadsTotal  *prometheus.CounterVec
	Connected     prometheus.Gauge
}

// NewMetrics returns the process-wide live metrics, registering them with
// the default registry on first use.
//
// Metrics:
//   - taskdeck_live_messages_total{type} - push messages received
//   - taskdeck_live_reloads_total{result} - reconcile reloads, ok or error
//   - taskdeck_live_connected - 1 while a socket is open
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			MessagesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskdeck_live_messages_total",
					Help: "Total number of push messages received",
				},
				[]string{"type"}, // "task_update", "other" or "invalid"
			),
			ReloadsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskdeck_live_reloads_total",
					Help: "Total number of reloads triggered by push messages",
				},
				[]string{"result"},
			),
			Connected: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "taskdeck_live_connected",
					Help: "Whether the push socket is connected",
				},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) recordMessage(label string) {
	m.MessagesTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) recordReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ReloadsTotal.WithLabelValues(result).Inc()
}
