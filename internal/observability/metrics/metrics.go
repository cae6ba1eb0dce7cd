package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	namespace = "appointments"
	subsystem = "store"

	operationsMetric = namespace + "_" + subsystem + "_operations_total"
)

// StoreMetrics exposes counters/gauges/histograms for appointment store operations.
type StoreMetrics struct {
	operationsTotal *prometheus.CounterVec
	records         prometheus.Gauge
	flushLatency    *prometheus.HistogramVec
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operations_total",
			Help:      "Total appointment store operations by outcome",
		}, []string{"operation", "result"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records",
			Help:      "Appointments currently held in memory",
		}),
		flushLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flush_duration_seconds",
			Help:      "Latency of rewriting the appointments document",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.records, m.flushLatency)
	return m
}

func (m *StoreMetrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, result).Inc()
}

func (m *StoreMetrics) SetRecordCount(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}

func (m *StoreMetrics) ObserveFlush(seconds float64, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.flushLatency.WithLabelValues(result).Observe(seconds)
}

// OperationCounts gathers the operations counter and returns its values keyed
// by "operation/result".
func OperationCounts(gatherer prometheus.Gatherer) (map[string]float64, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}

	counts := make(map[string]float64)
	for _, mf := range mfs {
		if mf.GetName() != operationsMetric {
			continue
		}
		for _, metric := range mf.GetMetric() {
			key := labelValue(metric, "operation") + "/" + labelValue(metric, "result")
			counts[key] = metric.GetCounter().GetValue()
		}
	}
	return counts, nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
