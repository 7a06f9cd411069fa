package keeper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the keeper's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	cycles         *prometheus.CounterVec
	batches        *prometheus.CounterVec
	streamsSettled prometheus.Counter
	activeStreams  prometheus.Gauge
	lastProfit     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streampay", Subsystem: "keeper", Name: "cycles_total",
			Help: "Keeper cycles by action.",
		}, []string{"action"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streampay", Subsystem: "keeper", Name: "batches_total",
			Help: "Submitted settlement batches by outcome.",
		}, []string{"status"}),
		streamsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streampay", Subsystem: "keeper", Name: "streams_settled_total",
			Help: "Streams realized by this keeper's batches.",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streampay", Subsystem: "keeper", Name: "active_streams",
			Help: "Active streams seen by the last cycle.",
		}),
		lastProfit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streampay", Subsystem: "keeper", Name: "last_profit_estimate",
			Help: "Estimated profit of the last evaluated cycle in token units.",
		}),
	}
	reg.MustRegister(m.cycles, m.batches, m.streamsSettled, m.activeStreams, m.lastProfit)
	return m
}

func (m *Metrics) observeCycle(rec CycleRecord, profit float64, evaluated bool) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(string(rec.Action)).Inc()
	if rec.Action == ActionSkippedBusy {
		return
	}
	m.activeStreams.Set(float64(rec.ActiveCount))
	if evaluated {
		m.lastProfit.Set(profit)
	}
}

func (m *Metrics) observeBatch(status string, settled int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(status).Inc()
	m.streamsSettled.Add(float64(settled))
}
