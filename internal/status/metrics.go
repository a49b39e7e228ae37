package status

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/release"
)

const metricsNamespace = "updater"

// MetricsPublisher exposes published state as Prometheus metrics.
type MetricsPublisher struct {
	state          *prometheus.GaugeVec
	fetchAvailable prometheus.Gauge
	updateReady    prometheus.Gauge
	transitions    *prometheus.CounterVec
	buildInfo      *prometheus.GaugeVec
	channels       prometheus.Gauge
}

// NewMetricsPublisher creates the updater metrics and registers them with reg.
func NewMetricsPublisher(reg prometheus.Registerer) (*MetricsPublisher, error) {
	m := &MetricsPublisher{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "state",
			Help:      "1 for the current updater state, 0 for the others.",
		}, []string{"state"}),
		fetchAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "fetch_available",
			Help:      "Whether a newer release is available remotely and not yet downloaded.",
		}),
		updateReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "update_ready",
			Help:      "Whether a finalized update is ready on disk.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transitions_total",
			Help:      "Published state transitions by target state.",
		}, []string{"state"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "build_info",
			Help:      "Identity of the current and new builds; always 1.",
		}, []string{"slot", "channel", "version", "commit"}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "available_channels",
			Help:      "Number of channels served by the remote API.",
		}),
	}
	collectors := map[string]prometheus.Collector{
		"state":              m.state,
		"fetch_available":    m.fetchAvailable,
		"update_ready":       m.updateReady,
		"transitions_total":  m.transitions,
		"build_info":         m.buildInfo,
		"available_channels": m.channels,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf(messages.StatusRegisterMetricFmt, name, err)
		}
	}
	for _, s := range States {
		m.state.WithLabelValues(string(s)).Set(0)
	}
	return m, nil
}

// PublishStatus implements Publisher.
func (m *MetricsPublisher) PublishStatus(s Snapshot) error {
	for _, candidate := range States {
		m.state.WithLabelValues(string(candidate)).Set(boolValue(candidate == s.State))
	}
	m.fetchAvailable.Set(boolValue(s.FetchAvailable))
	m.updateReady.Set(boolValue(s.UpdateReady))
	m.transitions.WithLabelValues(string(s.State)).Inc()
	return nil
}

// PublishCurrentBuild implements Publisher.
func (m *MetricsPublisher) PublishCurrentBuild(id release.Identity) error {
	m.setBuild("current", id)
	return nil
}

// PublishNewBuild implements Publisher.
func (m *MetricsPublisher) PublishNewBuild(id release.Identity) error {
	m.setBuild("new", id)
	return nil
}

// PublishChannels implements Publisher.
func (m *MetricsPublisher) PublishChannels(channels []string) error {
	m.channels.Set(float64(len(channels)))
	return nil
}

func (m *MetricsPublisher) setBuild(slot string, id release.Identity) {
	m.buildInfo.DeletePartialMatch(prometheus.Labels{"slot": slot})
	m.buildInfo.WithLabelValues(slot, id.Channel, id.Version, id.Commit).Set(1)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
