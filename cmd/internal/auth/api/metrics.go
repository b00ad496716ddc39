package authapi

import "github.com/prometheus/client_golang/prometheus"

// Lookup results and token outcomes used as metric labels.
const (
	resultFound     = "found"
	resultAbsent    = "absent"
	resultError     = "error"
	resultDuplicate = "duplicate"

	outcomeIssued    = "issued"
	outcomeNoCookie  = "no_cookie"
	outcomeNoSession = "no_session"
	outcomeMisconfig = "misconfigured"
	outcomeFailed    = "failed"
)

// Metrics counts endpoint outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	lookups *prometheus.CounterVec
	tokens  *prometheus.CounterVec
}

// NewMetrics registers the endpoint counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskbridge_session_lookups_total",
			Help: "Session resolutions by result.",
		}, []string{"result"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskbridge_token_issuance_total",
			Help: "Bearer token requests by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.lookups, m.tokens)
	}
	return m
}

func (m *Metrics) lookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) token(outcome string) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(outcome).Inc()
}
