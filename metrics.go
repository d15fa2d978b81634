package portaros

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the App's instruments. A nil *metrics is valid and records
// nothing, so call sites never branch on whether metrics are enabled.
type metrics struct {
	activeConnections  prometheus.Gauge
	handshakesTotal    *prometheus.CounterVec
	dispatchesTotal    *prometheus.CounterVec
	cacheSize          prometheus.GaugeFunc
	cacheEvictions     prometheus.Counter
	broadcastDelivered prometheus.Counter
}

// newMetrics creates and registers the instruments. A nil registerer
// disables metrics by returning nil.
func newMetrics(reg prometheus.Registerer, cacheSize func() int) *metrics {
	if reg == nil {
		return nil
	}

	m := &metrics{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portaros",
			Name:      "active_connections",
			Help:      "Number of currently established WebSocket connections",
		}),
		handshakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portaros",
			Name:      "handshakes_total",
			Help:      "Handshake outcomes",
		}, []string{"outcome"}),
		dispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portaros",
			Name:      "dispatches_total",
			Help:      "Message dispatch outcomes",
		}, []string{"outcome"}),
		cacheSize: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "portaros",
			Name:      "callback_cache_entries",
			Help:      "Entries currently held by the callback cache",
		}, func() float64 { return float64(cacheSize()) }),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portaros",
			Name:      "callback_cache_evictions_total",
			Help:      "Callback cache entries evicted to stay within capacity",
		}),
		broadcastDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portaros",
			Name:      "broadcast_deliveries_total",
			Help:      "Messages delivered by group and global broadcasts",
		}),
	}

	reg.MustRegister(
		m.activeConnections,
		m.handshakesTotal,
		m.dispatchesTotal,
		m.cacheSize,
		m.cacheEvictions,
		m.broadcastDelivered,
	)
	return m
}

func (m *metrics) connOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *metrics) connClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *metrics) handshake(outcome string) {
	if m == nil {
		return
	}
	m.handshakesTotal.WithLabelValues(outcome).Inc()
}

func (m *metrics) dispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatchesTotal.WithLabelValues(outcome).Inc()
}

func (m *metrics) evicted() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}

func (m *metrics) delivered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.broadcastDelivered.Add(float64(n))
}
