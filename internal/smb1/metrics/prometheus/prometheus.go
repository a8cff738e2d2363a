// Package prometheus provides the Prometheus-backed implementation of
// metrics.Metrics. Importing this package (even with a blank import)
// registers its constructor with the metrics package via init; metrics.NewMetrics
// then returns an instance of it once metrics.InitRegistry has been called.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opencifs/smb1ipc/internal/smb1/metrics"
)

func init() {
	metrics.RegisterConstructor(func(reg *prometheus.Registry) metrics.Metrics {
		return newMetrics(reg)
	})
}

type ipcMetrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	rpcCallsTotal       *prometheus.CounterVec
	rpcCallDuration     *prometheus.HistogramVec
	bufferOverflowTotal *prometheus.CounterVec
	bufferOverflowBytes *prometheus.HistogramVec
	openPipes           prometheus.Gauge
	protocolViolations  *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *ipcMetrics {
	return &ipcMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "smb1ipc_requests_total",
				Help: "Total number of SMB1 commands processed against the IPC$ tree, by command and status",
			},
			[]string{"command", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "smb1ipc_request_duration_milliseconds",
				Help: "Duration of SMB1 command processing in milliseconds",
				Buckets: []float64{
					0.1, 0.5, 1, 5, 10, 50, 100, 500,
				},
			},
			[]string{"command"},
		),
		rpcCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "smb1ipc_rpc_calls_total",
				Help: "Total number of DCE/RPC REQUEST/RESPONSE round trips, by pipe kind and opnum",
			},
			[]string{"pipe", "opnum"},
		),
		rpcCallDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "smb1ipc_rpc_call_duration_milliseconds",
				Help: "Duration of DCE/RPC REQUEST/RESPONSE round trips in milliseconds",
				Buckets: []float64{
					0.1, 0.5, 1, 5, 10, 50, 100, 500,
				},
			},
			[]string{"pipe"},
		),
		bufferOverflowTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "smb1ipc_buffer_overflow_total",
				Help: "Total number of Transact-NmPipe replies chunked with STATUS_BUFFER_OVERFLOW, by pipe kind",
			},
			[]string{"pipe"},
		),
		bufferOverflowBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "smb1ipc_buffer_overflow_bytes",
				Help: "Total reply size of a chunked Transact-NmPipe reply, by pipe kind",
				Buckets: []float64{
					4280, 8192, 16384, 65536, 262144, 1048576,
				},
			},
			[]string{"pipe"},
		),
		openPipes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "smb1ipc_open_pipes",
				Help: "Current number of open named-pipe handles",
			},
		),
		protocolViolations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "smb1ipc_protocol_violations_total",
				Help: "Total number of requests rejected for violating named-pipe protocol, by violation kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *ipcMetrics) RecordRequest(command string, status uint32, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(command, strconv.FormatUint(uint64(status), 16)).Inc()
	m.requestDuration.WithLabelValues(command).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *ipcMetrics) RecordRPCCall(pipeKind string, opNum uint16, duration time.Duration) {
	if m == nil {
		return
	}
	opnum := strconv.Itoa(int(opNum))
	m.rpcCallsTotal.WithLabelValues(pipeKind, opnum).Inc()
	m.rpcCallDuration.WithLabelValues(pipeKind).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *ipcMetrics) RecordBufferOverflow(pipeKind string, totalBytes int) {
	if m == nil {
		return
	}
	m.bufferOverflowTotal.WithLabelValues(pipeKind).Inc()
	m.bufferOverflowBytes.WithLabelValues(pipeKind).Observe(float64(totalBytes))
}

func (m *ipcMetrics) SetOpenPipes(count int) {
	if m == nil {
		return
	}
	m.openPipes.Set(float64(count))
}

func (m *ipcMetrics) RecordProtocolViolation(kind string) {
	if m == nil {
		return
	}
	m.protocolViolations.WithLabelValues(kind).Inc()
}
