package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the custom Prometheus metrics for the advisory engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	GatewayRequests *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec

	AdvisorFeedback      *prometheus.CounterVec
	GoalProgressDetected prometheus.Counter
	AttributesExtracted  prometheus.Counter
	AttributeEvictions   prometheus.Counter
	SummitTurns          *prometheus.CounterVec
	BackgroundInFlight   prometheus.Gauge
}

// NewMetrics registers the engine metrics on reg (use prometheus.DefaultRegisterer in main)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Gateway calls by model and outcome kind (ok, auth, network, status, decode)
		GatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "advisorjournal_gateway_requests_total",
			Help: "Language model gateway calls by model and outcome",
		}, []string{"model", "outcome"}),

		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "advisorjournal_gateway_request_duration_seconds",
			Help:    "Language model gateway latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120}, // long completions are normal
		}, []string{"model"}),

		AdvisorFeedback: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "advisorjournal_advisor_feedback_total",
			Help: "Per-advisor feedback results by status",
		}, []string{"advisor", "status"}),

		GoalProgressDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "advisorjournal_goal_progress_detected_total",
			Help: "Goal progress verdicts that reported progress",
		}),

		AttributesExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "advisorjournal_attributes_extracted_total",
			Help: "Durable traits extracted from entries",
		}),

		AttributeEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "advisorjournal_attribute_evictions_total",
			Help: "Attributes evicted to stay under the per-user capacity",
		}),

		SummitTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "advisorjournal_summit_turns_total",
			Help: "Summit turns generated by outcome",
		}, []string{"outcome"}),

		BackgroundInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "advisorjournal_background_groups_in_flight",
			Help: "Entry submissions whose background groups are still running",
		}),
	}
}

func (m *Metrics) observeGateway(model, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(model, outcome).Inc()
	m.GatewayLatency.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) recordFeedback(feedback map[string]string) {
	if m == nil {
		return
	}
	for advisor, status := range feedback {
		m.AdvisorFeedback.WithLabelValues(advisor, status).Inc()
	}
}

func (m *Metrics) incGoalProgress() {
	if m != nil {
		m.GoalProgressDetected.Inc()
	}
}

func (m *Metrics) incAttributeExtracted() {
	if m != nil {
		m.AttributesExtracted.Inc()
	}
}

func (m *Metrics) incEviction() {
	if m != nil {
		m.AttributeEvictions.Inc()
	}
}

func (m *Metrics) incSummit(outcome string) {
	if m != nil {
		m.SummitTurns.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) trackBackground(delta float64) {
	if m != nil {
		m.BackgroundInFlight.Add(delta)
	}
}
