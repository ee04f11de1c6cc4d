package server

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics collects the Prometheus metrics of one server
type serverMetrics struct {
	set       *metrics.Set
	errors    *metrics.Counter
	flushes   *metrics.Counter
	streamLen *metrics.Histogram
}

func newServerMetrics() *serverMetrics {
	set := metrics.NewSet()
	return &serverMetrics{
		set:       set,
		errors:    set.NewCounter("cellwire_request_errors_total"),
		flushes:   set.NewCounter("cellwire_mutator_flushes_total"),
		streamLen: set.NewHistogram("cellwire_cell_stream_bytes"),
	}
}

// request counts a handled request by message type
func (m *serverMetrics) request(t common.MessageType, failed bool) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`cellwire_requests_total{type=%q}`, t.String())).Inc()
	if failed {
		m.errors.Inc()
	}
}

func (m *serverMetrics) cellsApplied(namespace uint64, n int) {
	if n > 0 {
		m.set.GetOrCreateCounter(fmt.Sprintf(`cellwire_cells_applied_total{namespace="%d"}`, namespace)).Add(n)
	}
}

func (m *serverMetrics) streamSize(n int) {
	m.streamLen.Update(float64(n))
}

func (m *serverMetrics) flush() {
	m.flushes.Inc()
}

// registerNamespace adds the gauges that are read from the namespace on every scrape
func (m *serverMetrics) registerNamespace(ns *Namespace) {
	m.set.NewGauge(fmt.Sprintf(`cellwire_open_mutators{namespace="%d"}`, ns.id), func() float64 {
		return float64(ns.OpenMutators())
	})
	m.set.NewGauge(fmt.Sprintf(`cellwire_tables{namespace="%d"}`, ns.id), func() float64 {
		return float64(ns.tables.Size())
	})
}

// writePrometheus writes all server metrics and the process metrics
func (m *serverMetrics) writePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}
