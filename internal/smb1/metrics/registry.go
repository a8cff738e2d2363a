// Package metrics defines the observability surface for the IPC$/DCE-RPC
// core and the machinery to enable a Prometheus-backed implementation of it
// without the core importing prometheus directly.
//
// Metrics is optional everywhere it's threaded through: passing nil
// disables collection with zero overhead, matching every call site's
// nil-check convention.
//
// # Import-cycle avoidance
//
// metrics/prometheus can't be imported directly from this package
// (prometheus.go would need to import metrics for the Metrics interface,
// and metrics would need prometheus for the constructor — a cycle). Instead
// the prometheus package registers its constructor here via
// RegisterConstructor during its own package init, and NewMetrics calls
// whatever was registered. Callers only ever import metrics; wiring the
// prometheus subpackage in (with a blank import) is what activates it.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the observability interface the IPC$/DCE-RPC core calls
// through. Pass nil anywhere one is accepted to disable collection.
type Metrics interface {
	// RecordRequest records one completed SMB1 command against the IPC$
	// tree: its command name, outcome NT status, and processing duration.
	RecordRequest(command string, status uint32, duration time.Duration)

	// RecordRPCCall records one DCE/RPC REQUEST/RESPONSE round trip against
	// a named-pipe endpoint: the pipe kind, opnum, and duration.
	RecordRPCCall(pipeKind string, opNum uint16, duration time.Duration)

	// RecordBufferOverflow records a Transact-NmPipe reply answered with
	// STATUS_BUFFER_OVERFLOW, i.e. longer than the client's declared
	// MaxDataCount less dcerpc.RequestHeaderSize.
	RecordBufferOverflow(pipeKind string, totalBytes int)

	// SetOpenPipes updates the current count of open named-pipe handles.
	SetOpenPipes(count int)

	// RecordProtocolViolation records a request rejected for violating the
	// pipe protocol (e.g. a write before bind, an overwrite of a pending
	// reply), tagged with the violation's kind.
	RecordProtocolViolation(kind string)
}

var (
	mu       sync.Mutex
	enabled  bool
	registry *prometheus.Registry

	// newMetrics is registered by metrics/prometheus's package init.
	newMetrics func(*prometheus.Registry) Metrics
)

// InitRegistry enables metrics collection and returns the Prometheus
// registry constructed for it. Call before NewMetrics; calling it again
// replaces the registry (existing collectors registered against the old one
// become orphaned, as with any Prometheus registry swap).
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
	registry = prometheus.NewRegistry()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the registry created by InitRegistry, or nil if
// metrics aren't enabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// RegisterConstructor records the Prometheus-backed Metrics constructor.
// Called from metrics/prometheus's package init; core code never calls
// this directly.
func RegisterConstructor(constructor func(*prometheus.Registry) Metrics) {
	mu.Lock()
	defer mu.Unlock()
	newMetrics = constructor
}

// NewMetrics returns a Metrics backed by the registered constructor, or nil
// if metrics aren't enabled or no constructor has been registered (the
// metrics/prometheus package was never imported). A nil return is safe
// to pass anywhere Metrics is accepted.
func NewMetrics() Metrics {
	mu.Lock()
	defer mu.Unlock()
	if !enabled || newMetrics == nil {
		return nil
	}
	return newMetrics(registry)
}
