package chain

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the node's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	blocks        prometheus.Counter
	height        prometheus.Gauge
	txs           *prometheus.CounterVec
	mempool       prometheus.Gauge
	activeStreams prometheus.Gauge
	feePrice      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streampay", Subsystem: "node", Name: "blocks_total",
			Help: "Blocks produced.",
		}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streampay", Subsystem: "node", Name: "height",
			Help: "Height of the latest block.",
		}),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streampay", Subsystem: "node", Name: "transactions_total",
			Help: "Included transactions by method and status.",
		}, []string{"method", "status"}),
		mempool: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streampay", Subsystem: "node", Name: "mempool_size",
			Help: "Transactions waiting for inclusion.",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streampay", Subsystem: "ledger", Name: "active_streams",
			Help: "Streams in the active-stream index.",
		}),
		feePrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streampay", Subsystem: "node", Name: "fee_price",
			Help: "Current fee price in token units per gas.",
		}),
	}
	reg.MustRegister(m.blocks, m.height, m.txs, m.mempool, m.activeStreams, m.feePrice)
	return m
}

func (m *Metrics) observeBlock(height int64, mempool, active int, feePrice float64) {
	if m == nil {
		return
	}
	m.blocks.Inc()
	m.height.Set(float64(height))
	m.mempool.Set(float64(mempool))
	m.activeStreams.Set(float64(active))
	m.feePrice.Set(feePrice)
}

func (m *Metrics) observeTx(method string, status string) {
	if m == nil {
		return
	}
	m.txs.WithLabelValues(method, status).Inc()
}

func (m *Metrics) observeMempool(size int) {
	if m == nil {
		return
	}
	m.mempool.Set(float64(size))
}
