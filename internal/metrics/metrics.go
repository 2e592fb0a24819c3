package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for scans, probes and inbound mail.
type Metrics struct {
	// Finished scans by campaign verdict
	ScansTotal *prometheus.CounterVec

	// Individual HTTP probes by cache mode and outcome
	ProbeSamples *prometheus.CounterVec

	// Wall time from scan creation to report
	ScanDuration prometheus.Histogram

	// Inbound verification messages by handling result
	InboundMessages *prometheus.CounterVec
}

// New registers all metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campaignready_scans_total",
			Help: "Total finished scans by campaign verdict",
		}, []string{"verdict"}),

		ProbeSamples: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campaignready_probe_samples_total",
			Help: "Total website probe samples by cache mode and outcome",
		}, []string{"mode", "ok"}),

		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "campaignready_scan_duration_seconds",
			Help:    "Duration of a full scan including website sampling and report generation",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),

		InboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campaignready_inbound_messages_total",
			Help: "Total inbound verification messages by handling result",
		}, []string{"result"}), // result: "applied", "unmatched", "unknown_scan", "error"
	}
}

func (m *Metrics) IncrementScan(verdict string) {
	if m != nil {
		m.ScansTotal.WithLabelValues(verdict).Inc()
	}
}

func (m *Metrics) IncrementProbeSample(mode string, ok bool) {
	if m != nil {
		m.ProbeSamples.WithLabelValues(mode, strconv.FormatBool(ok)).Inc()
	}
}

func (m *Metrics) ObserveScanDuration(d time.Duration) {
	if m != nil {
		m.ScanDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementInbound(result string) {
	if m != nil {
		m.InboundMessages.WithLabelValues(result).Inc()
	}
}
