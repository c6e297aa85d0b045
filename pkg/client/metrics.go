package client

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a purely observational set of counters and gauges describing
// submission engine activity. No behavior depends on these values; they
// exist to be scraped, not consulted.
type Metrics struct {
	Registry         *prometheus.Registry
	SubmissionsTotal *prometheus.CounterVec
	MultiplexOpen    prometheus.Gauge
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gradio_client_submissions_total",
		Help: "Submissions completed, labeled by transport and terminal stage.",
	}, []string{"transport", "stage"})

	open := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gradio_client_multiplex_open_events",
		Help: "Number of event_ids currently registered on the SSE multiplex stream.",
	})

	reg.MustRegister(submissions, open)

	return &Metrics{
		Registry:         reg,
		SubmissionsTotal: submissions,
		MultiplexOpen:    open,
	}
}

func (m *Metrics) recordTerminal(transport Transport, stage Stage) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(string(transport), string(stage)).Inc()
}

func (m *Metrics) setOpenEvents(n int) {
	if m == nil {
		return
	}
	m.MultiplexOpen.Set(float64(n))
}
