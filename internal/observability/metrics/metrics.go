package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the WhatsApp agent.
type ConversationMetrics struct {
	turnsTotal     *prometheus.CounterVec
	handoffsTotal  prometheus.Counter
	leadsTotal     *prometheus.CounterVec
	webhookTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	turnLatency    prometheus.Histogram
	duplicateTotal *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odonto",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Conversation turns by state before and after the turn",
		}, []string{"from_state", "to_state"}),
		handoffsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "odonto",
			Subsystem: "dialogue",
			Name:      "handoffs_total",
			Help:      "Turns answered with the attendant handoff link",
		}),
		leadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odonto",
			Subsystem: "leads",
			Name:      "persisted_total",
			Help:      "Confirmed bookings handed to the lead sink",
		}, []string{"status"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odonto",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound channel webhooks",
		}, []string{"provider", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odonto",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound sends through the channel API",
		}, []string{"provider", "status"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "odonto",
			Subsystem: "dialogue",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full turn including lead persistence",
			Buckets:   prometheus.DefBuckets,
		}),
		duplicateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odonto",
			Subsystem: "messaging",
			Name:      "duplicate_webhook_total",
			Help:      "Redelivered webhooks dropped by message id",
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.handoffsTotal, m.leadsTotal, m.webhookTotal, m.outboundTotal, m.turnLatency, m.duplicateTotal)
	return m
}

func (m *ConversationMetrics) ObserveTurn(fromState, toState string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(fromState, toState).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *ConversationMetrics) ObserveHandoff() {
	if m == nil {
		return
	}
	m.handoffsTotal.Inc()
}

// ObserveLead records a sink outcome: "persisted", "failed" or "skipped".
func (m *ConversationMetrics) ObserveLead(status string) {
	if m == nil {
		return
	}
	m.leadsTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveInbound(provider, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(provider, status).Inc()
}

func (m *ConversationMetrics) ObserveOutbound(provider, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(provider, status).Inc()
}

func (m *ConversationMetrics) ObserveDuplicate(provider string) {
	if m == nil {
		return
	}
	m.duplicateTotal.WithLabelValues(provider).Inc()
}
