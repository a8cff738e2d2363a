// Package pktpool provides a tiered buffer pool for the byte slices that
// back SMB1 frames and DCE/RPC PDUs as they move through the IPC$ core.
//
// The pool uses three size tiers to balance memory efficiency with reuse:
//   - Small buffers (default 4KB): SMB1 control messages, BIND/BIND_ACK PDUs
//   - Medium buffers (default 64KB): single-fragment Transact replies
//   - Large buffers (default 1MB): chunked BUFFER_OVERFLOW reply bodies
//
// Buffers larger than the large tier are allocated directly and not pooled,
// to avoid keeping oversized buffers around indefinitely.
//
// Packet adds one capability bufpool doesn't need: a one-way link from a
// derived buffer back to the packet it was split from. The remainder of a
// Transact-NmPipe reply truncated at MaxDataCount is kept alive as a
// separate Packet for later READ calls to drain, but it is allocated with
// no parent, since the reply PDU it is cut from is not itself a Packet.
// The parent is never asked to track or release its children; the
// link exists purely so a derived Packet can be traced back to its origin
// in logs and metrics.
package pktpool

import "sync"

// Default buffer size classes.
const (
	DefaultSmallSize  = 4 << 10
	DefaultMediumSize = 64 << 10
	DefaultLargeSize  = 1 << 20
)

// Pool manages a set of byte slice pools organized by size class.
type Pool struct {
	small      sync.Pool
	medium     sync.Pool
	large      sync.Pool
	smallSize  int
	mediumSize int
	largeSize  int
}

// Config holds the size thresholds for a custom Pool.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

// NewPool creates a Pool with the given configuration. A nil cfg, or any
// zero-valued field within it, falls back to the matching default.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		defaultCfg := DefaultConfig()
		cfg = &defaultCfg
	}
	if cfg.SmallSize <= 0 {
		cfg.SmallSize = DefaultSmallSize
	}
	if cfg.MediumSize <= 0 {
		cfg.MediumSize = DefaultMediumSize
	}
	if cfg.LargeSize <= 0 {
		cfg.LargeSize = DefaultLargeSize
	}

	p := &Pool{
		smallSize:  cfg.SmallSize,
		mediumSize: cfg.MediumSize,
		largeSize:  cfg.LargeSize,
	}
	p.small = sync.Pool{New: func() any { buf := make([]byte, p.smallSize); return &buf }}
	p.medium = sync.Pool{New: func() any { buf := make([]byte, p.mediumSize); return &buf }}
	p.large = sync.Pool{New: func() any { buf := make([]byte, p.largeSize); return &buf }}
	return p
}

// getRaw returns a byte slice of at least size bytes from the appropriate
// tier, or a direct allocation if size exceeds every tier.
func (p *Pool) getRaw(size int) []byte {
	var bufPtr *[]byte
	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.mediumSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}
	buf := *bufPtr
	return buf[:size]
}

// putRaw returns buf to the tier matching its capacity. Buffers whose
// capacity doesn't match a tier exactly (including oversized direct
// allocations) are left for the garbage collector.
func (p *Pool) putRaw(buf []byte) {
	if buf == nil {
		return
	}
	switch cap(buf) {
	case p.smallSize:
		full := buf[:cap(buf)]
		p.small.Put(&full)
	case p.mediumSize:
		full := buf[:cap(buf)]
		p.medium.Put(&full)
	case p.largeSize:
		full := buf[:cap(buf)]
		p.large.Put(&full)
	}
}

// Packet is a pooled buffer plus the bookkeeping needed to return it to the
// right tier and to trace it back to the packet it was split from, if any.
type Packet struct {
	buf    []byte
	pool   *Pool
	parent *Packet
}

// Allocate returns a Packet backed by a size-byte buffer drawn from pool.
// If parent is non-nil and preservePrefix > 0, the first preservePrefix
// bytes of parent's buffer are copied into the new Packet before it's
// returned, so the new buffer starts with its parent's leading bytes. The
// new Packet records parent for
// tracing; parent is otherwise untouched and must still be released by its
// own owner.
func (p *Pool) Allocate(size int, parent *Packet, preservePrefix int) *Packet {
	buf := p.getRaw(size)
	if parent != nil && preservePrefix > 0 {
		n := preservePrefix
		if n > len(parent.buf) {
			n = len(parent.buf)
		}
		if n > len(buf) {
			n = len(buf)
		}
		copy(buf[:n], parent.buf[:n])
	}
	return &Packet{buf: buf, pool: p, parent: parent}
}

// Bytes returns the Packet's backing buffer.
func (pk *Packet) Bytes() []byte {
	return pk.buf
}

// Parent returns the Packet this one was split from, or nil if it was
// allocated standalone.
func (pk *Packet) Parent() *Packet {
	return pk.parent
}

// Release returns the Packet's buffer to its pool. It does not release
// Parent — the one-way link means a child never controls its parent's
// lifetime. Release is a no-op on a nil Packet or one already released.
func (pk *Packet) Release() {
	if pk == nil || pk.buf == nil {
		return
	}
	pk.pool.putRaw(pk.buf)
	pk.buf = nil
}

// =============================================================================
// Global pool
// =============================================================================

var globalPool = NewPool(nil)

// Allocate draws a Packet from the global pool. See Pool.Allocate.
func Allocate(size int, parent *Packet, preservePrefix int) *Packet {
	return globalPool.Allocate(size, parent, preservePrefix)
}
