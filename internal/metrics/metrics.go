package metrics

import "github.com/prometheus/client_golang/prometheus"

// WorkerMetrics holds the Prometheus collectors for the document
// processing loop.
type WorkerMetrics struct {
	CyclesTotal        *prometheus.CounterVec
	DocumentsGenerated *prometheus.CounterVec
	DocumentFailures   *prometheus.CounterVec
}

// New creates the worker metrics and registers them on the given registry.
func New(reg prometheus.Registerer) (*WorkerMetrics, error) {
	m := &WorkerMetrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "processing_cycles_total",
				Help: "Total number of document processing cycles, by result.",
			},
			[]string{"result"},
		),
		DocumentsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_generated_total",
				Help: "Total number of documents generated, uploaded and confirmed.",
			},
			[]string{"kind"},
		),
		DocumentFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "document_failures_total",
				Help: "Total number of per-request pipeline failures, by stage.",
			},
			[]string{"kind", "stage"},
		),
	}

	for _, c := range []prometheus.Collector{m.CyclesTotal, m.DocumentsGenerated, m.DocumentFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
