package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// Metrics holds the ledger's Prometheus collectors.
type Metrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	events            *prometheus.CounterVec
	pendingRequests   prometheus.Gauge
	fulfillments      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "civbuilder",
				Name:      "ledger_operations_total",
				Help:      "Number of ledger operations by outcome code",
			},
			[]string{"operation", "code"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "civbuilder",
				Name:      "ledger_operation_duration_seconds",
				Help:      "Latency of ledger operations including the SQL transaction",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "civbuilder",
				Name:      "ledger_events_total",
				Help:      "Number of committed ledger events by kind",
			},
			[]string{"kind"},
		),
		pendingRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "civbuilder",
				Name:      "decryption_requests_pending",
				Help:      "Number of decryption requests awaiting a callback",
			},
		),
		fulfillments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "civbuilder",
				Name:      "decryption_fulfillments_total",
				Help:      "Number of decryption callbacks accepted by target kind",
			},
			[]string{"target_kind"},
		),
	}

	registerer.MustRegister(m.operations)
	registerer.MustRegister(m.operationDuration)
	registerer.MustRegister(m.events)
	registerer.MustRegister(m.pendingRequests)
	registerer.MustRegister(m.fulfillments)

	return &m
}

func (m *Metrics) observe(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := "OK"
	if err != nil {
		code = string(CodeOf(err))
		if code == "" {
			code = "INTERNAL"
		}
	}
	m.operations.WithLabelValues(operation, code).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) committed(events []ir.Event, pendingDelta int) {
	if m == nil {
		return
	}
	for _, e := range events {
		m.events.WithLabelValues(string(e.Kind)).Inc()
		if e.Kind == ir.EventDecryptionCompleted {
			var p ir.DecryptionPayload
			if e.Decode(&p) == nil {
				m.fulfillments.WithLabelValues(string(p.TargetKind)).Inc()
			}
		}
	}
	m.pendingRequests.Add(float64(pendingDelta))
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pendingRequests.Set(float64(n))
}
