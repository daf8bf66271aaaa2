package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
	"github.com/taoyao-code/xbee-digimesh/internal/radio"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 帧引擎与事件下游指标，实现 radio.Observer
type AppMetrics struct {
	FramesTotal         *prometheus.CounterVec // labels: type
	TxFramesTotal       *prometheus.CounterVec // labels: type
	DiagnosticsTotal    *prometheus.CounterVec // labels: kind
	DiscardedBytesTotal prometheus.Counter
	SerialBytesReceived prometheus.Counter
	PendingGauge        prometheus.Gauge
	QueueFullTotal      prometheus.Counter
	EventsDroppedTotal  prometheus.Counter
	SinkErrorsTotal     *prometheus.CounterVec // labels: sink
}

var _ radio.Observer = (*AppMetrics)(nil)

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xbee_frames_total",
			Help: "Inbound API frames decoded, by frame type.",
		}, []string{"type"}),
		TxFramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xbee_tx_frames_total",
			Help: "Outbound API frames written and drained, by frame type.",
		}, []string{"type"}),
		DiagnosticsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xbee_diagnostics_total",
			Help: "Non-fatal protocol diagnostics, by kind.",
		}, []string{"kind"}),
		DiscardedBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xbee_discarded_bytes_total",
			Help: "Bytes discarded while hunting for a start delimiter.",
		}),
		SerialBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xbee_serial_bytes_received_total",
			Help: "Total bytes read from the serial link.",
		}),
		PendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xbee_pending_requests",
			Help: "Frame ids currently awaiting a response.",
		}),
		QueueFullTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xbee_queue_full_total",
			Help: "Requests rejected because all 255 frame ids were in use.",
		}),
		EventsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xbee_events_dropped_total",
			Help: "Events dropped because the event channel was full.",
		}),
		SinkErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xbee_sink_errors_total",
			Help: "Event sink failures, by sink.",
		}, []string{"sink"}),
	}
	reg.MustRegister(m.FramesTotal, m.TxFramesTotal, m.DiagnosticsTotal, m.DiscardedBytesTotal,
		m.SerialBytesReceived, m.PendingGauge, m.QueueFullTotal, m.EventsDroppedTotal, m.SinkErrorsTotal)
	return m
}

func (m *AppMetrics) FrameReceived(t xbee.FrameType) { m.FramesTotal.WithLabelValues(t.String()).Inc() }
func (m *AppMetrics) FrameSent(t xbee.FrameType)     { m.TxFramesTotal.WithLabelValues(t.String()).Inc() }
func (m *AppMetrics) Diagnostic(kind string)         { m.DiagnosticsTotal.WithLabelValues(kind).Inc() }
func (m *AppMetrics) BytesReceived(n int)            { m.SerialBytesReceived.Add(float64(n)) }
func (m *AppMetrics) DiscardedBytes(n int)           { m.DiscardedBytesTotal.Add(float64(n)) }
func (m *AppMetrics) PendingRequests(n int)          { m.PendingGauge.Set(float64(n)) }
func (m *AppMetrics) QueueFull()                     { m.QueueFullTotal.Inc() }
func (m *AppMetrics) EventDropped()                  { m.EventsDroppedTotal.Inc() }

// SinkError 记录事件下游失败
func (m *AppMetrics) SinkError(sink string) { m.SinkErrorsTotal.WithLabelValues(sink).Inc() }
