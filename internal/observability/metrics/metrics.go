package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the ingestion pipeline.
type PipelineMetrics struct {
	inboundTotal   *prometheus.CounterVec
	replyTotal     *prometheus.CounterVec
	bookingTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrail",
			Subsystem: "pipeline",
			Name:      "inbound_total",
			Help:      "Total inbound events by channel and disposition",
		}, []string{"channel", "status"}),
		replyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrail",
			Subsystem: "pipeline",
			Name:      "reply_total",
			Help:      "Total outbound replies by channel and status",
		}, []string{"channel", "status"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrail",
			Subsystem: "pipeline",
			Name:      "booking_total",
			Help:      "Booking candidate outcomes by channel",
		}, []string{"channel", "outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadrail",
			Subsystem: "pipeline",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.replyTotal, m.bookingTotal, m.webhookLatency)
	return m
}

func (m *PipelineMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *PipelineMetrics) ObserveReply(channel, status string) {
	if m == nil {
		return
	}
	m.replyTotal.WithLabelValues(channel, status).Inc()
}

func (m *PipelineMetrics) ObserveBooking(channel, outcome string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *PipelineMetrics) ObserveWebhookLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(channel).Observe(seconds)
}
