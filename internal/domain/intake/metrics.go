package intake

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dispatcher's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	intakes         *prometheus.CounterVec
	claims          *prometheus.CounterVec
	staleTokens     *prometheus.CounterVec
	requeues        *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	transfers       *prometheus.CounterVec
	persistFailures prometheus.Counter
	queueLength     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		intakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicenter", Subsystem: "intake", Name: "records_total",
			Help: "Records accepted into a facility queue, by triage severity.",
		}, []string{"facility", "severity"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicenter", Subsystem: "intake", Name: "claims_total",
			Help: "Tokens handed to clinicians.",
		}, []string{"facility"}),
		staleTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicenter", Subsystem: "intake", Name: "stale_tokens_total",
			Help: "Tokens discarded at claim time because their record was confirmed or moved.",
		}, []string{"facility"}),
		requeues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicenter", Subsystem: "intake", Name: "requeues_total",
			Help: "Claimed tokens returned to the tail of a queue.",
		}, []string{"facility", "reason"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicenter", Subsystem: "intake", Name: "confirmations_total",
			Help: "Clinician confirmations.",
		}, []string{"facility"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicenter", Subsystem: "intake", Name: "transfers_total",
			Help: "Records moved between facilities.",
		}, []string{"from", "to"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medicenter", Subsystem: "intake", Name: "persist_failures_total",
			Help: "Saves that still failed after all retries.",
		}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "medicenter", Subsystem: "intake", Name: "queue_length",
			Help: "Tokens currently queued per facility.",
		}, []string{"facility"}),
	}
	if reg != nil {
		reg.MustRegister(m.intakes, m.claims, m.staleTokens, m.requeues,
			m.confirmations, m.transfers, m.persistFailures, m.queueLength)
	}
	return m
}

func (m *Metrics) recordIntake(facilityID, severity string) {
	if m == nil {
		return
	}
	m.intakes.WithLabelValues(facilityID, severity).Inc()
}

func (m *Metrics) recordClaim(facilityID string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(facilityID).Inc()
}

func (m *Metrics) recordStale(facilityID string) {
	if m == nil {
		return
	}
	m.staleTokens.WithLabelValues(facilityID).Inc()
}

func (m *Metrics) recordRequeue(facilityID, reason string) {
	if m == nil {
		return
	}
	m.requeues.WithLabelValues(facilityID, reason).Inc()
}

func (m *Metrics) recordConfirmation(facilityID string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(facilityID).Inc()
}

func (m *Metrics) recordTransfer(from, to string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(from, to).Inc()
}

func (m *Metrics) recordPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) setQueueLength(facilityID string, n int) {
	if m == nil {
		return
	}
	m.queueLength.WithLabelValues(facilityID).Set(float64(n))
}
