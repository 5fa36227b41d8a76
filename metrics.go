package transactions

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "redistxn"

type metrics struct {
	registerer prometheus.Registerer

	roundTrips *prometheus.CounterVec
	conflicts  *prometheus.CounterVec
	executions *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		registerer: registerer,
		roundTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "round_trips_total",
			Help:      "Number of pipeline flushes performed on the unprotected channel.",
		}, []string{"kind"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "conflicts_total",
			Help:      "Number of attempts discarded because a watched key changed.",
		}, []string{"kind"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "executions_total",
			Help:      "Number of finished executions by outcome.",
		}, []string{"kind", "outcome"}),
	}

	if registerer == nil {
		return m, nil
	}

	for idx, collector := range m.collectors() {
		if err := registerer.Register(collector); err != nil {
			for _, registered := range m.collectors()[:idx] {
				registerer.Unregister(registered)
			}
			return nil, err
		}
	}

	return m, nil
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.roundTrips, m.conflicts, m.executions}
}

func (m *metrics) unregister() {
	if m.registerer == nil {
		return
	}
	for _, collector := range m.collectors() {
		m.registerer.Unregister(collector)
	}
}

func (m *metrics) roundTrip(kind string) {
	m.roundTrips.WithLabelValues(kind).Inc()
}

func (m *metrics) conflict(kind string) {
	m.conflicts.WithLabelValues(kind).Inc()
}

func (m *metrics) finished(kind string, err error) {
	outcome := outcomeCommitted
	if err != nil {
		outcome = errorClassToString(classifyError(err))
	}
	m.executions.WithLabelValues(kind, outcome).Inc()
}
