package echoweb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/trezcool/learnlog/core/session"
)

// metrics lives on its own registry so that several servers (tests) can coexist.
type metrics struct {
	registry       *prometheus.Registry
	gateDecisions  *prometheus.CounterVec
	identityChecks *prometheus.CounterVec
	backendErrors  *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnlog",
			Name:      "gate_decisions_total",
			Help:      "Authorization gate decisions by required role and outcome.",
		}, []string{"role", "decision"}),
		identityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnlog",
			Name:      "identity_checks_total",
			Help:      "Role shell identity re-verifications by role and result.",
		}, []string{"role", "result"}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnlog",
			Name:      "backend_errors_total",
			Help:      "Failed backend calls by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.gateDecisions,
		m.identityChecks,
		m.backendErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) gateDecision(required session.Role, d session.Decision) {
	m.gateDecisions.WithLabelValues(required.String(), d.Kind.String()).Inc()
}

func (m *metrics) identityCheck(role session.Role, result string) {
	m.identityChecks.WithLabelValues(role.String(), result).Inc()
}

func (m *metrics) backendError(kind string) {
	m.backendErrors.WithLabelValues(kind).Inc()
}
