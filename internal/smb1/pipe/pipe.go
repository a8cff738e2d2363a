// Package pipe models the server-side state of a single open named-pipe
// file handle: which well-known RPC service it is bound to, the
// fragmentation limits (defaults at open, renegotiated by BIND), the
// pipe-state mode bits,
// and the single pending DCE/RPC reply buffered for the client's next
// READ.
//
// A pipe holds at most one pending reply at a time. Named-pipe RPC clients
// write a request then read the response before writing again; a second
// write arriving while a reply is still buffered is a client protocol
// violation, not silently dropped or overwritten data.
package pipe

import (
	"fmt"
	"sync"

	"github.com/opencifs/smb1ipc/internal/smb1/dcebuf"
	"github.com/opencifs/smb1ipc/internal/smb1/pktpool"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// defaultMaxFragment is the fragment size this server negotiates when a
// client doesn't request a smaller one.
const defaultMaxFragment = 4280

// File is the server-side state of one open \PIPE\<name> handle.
type File struct {
	mu sync.Mutex

	kind          types.PipeKind
	grantedAccess uint32
	maxTxFragment uint16
	maxRxFragment uint16
	stateBits     uint16
	bound         bool

	pending       *dcebuf.Buffer
	pendingPacket *pktpool.Packet
}

// New creates a File for the given pipe kind with default fragment limits
// and the server-endpoint, blocking, byte-mode state bits set.
func New(kind types.PipeKind, grantedAccess uint32) *File {
	return &File{
		kind:          kind,
		grantedAccess: grantedAccess,
		maxTxFragment: defaultMaxFragment,
		maxRxFragment: defaultMaxFragment,
		stateBits:     types.PipeStateBlocking | types.PipeStateEndpointServer,
	}
}

// Kind returns the resolved RPC service this pipe is bound to.
func (f *File) Kind() types.PipeKind {
	return f.kind
}

// GrantedAccess returns the access mask granted when the pipe was opened.
func (f *File) GrantedAccess() uint32 {
	return f.grantedAccess
}

// MaxTxFragment returns the maximum fragment size the server will send.
func (f *File) MaxTxFragment() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxTxFragment
}

// MaxRxFragment returns the maximum fragment size the server will accept.
func (f *File) MaxRxFragment() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxRxFragment
}

// SetFragmentLimits negotiates the transmit/receive fragment sizes, e.g.
// from a BIND PDU's MaxXmitFrag/MaxRecvFrag.
func (f *File) SetFragmentLimits(maxTx, maxRx uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxTxFragment = maxTx
	f.maxRxFragment = maxRx
}

// StateBits returns the current pipe-state mode bits
// (TRANS_SET_NMPIPE_STATE / TRANS_QUERY_NMPIPE_STATE).
func (f *File) StateBits() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateBits
}

// SetStateBits overwrites the pipe-state mode bits.
func (f *File) SetStateBits(bits uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateBits = bits
}

// IsBound reports whether a DCE/RPC BIND has completed successfully on
// this handle. A REQUEST PDU written before BIND completes is a protocol
// violation the dispatcher answers with ACCESS_DENIED rather than routing
// to an endpoint.
func (f *File) IsBound() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bound
}

// SetBound records that BIND has completed (or, passing false, that the
// handle should be treated as unbound again).
func (f *File) SetBound(bound bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound = bound
}

// HasBufferedData reports whether a reply is waiting to be read.
func (f *File) HasBufferedData() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending != nil
}

// SetBufferedData stores buf as the pending reply. It fails with a
// ProtocolViolation if a reply is already pending — the client must drain
// the current reply with a READ before writing again.
func (f *File) SetBufferedData(buf *dcebuf.Buffer) error {
	return f.setBuffered(buf, nil)
}

// SetBufferedPacket stores buf as the pending reply the same way
// SetBufferedData does, additionally recording pk as the pktpool.Packet
// backing it. ReleasePendingPacket returns pk to its pool once the reply
// has been fully drained and copied out; callers that didn't source buf
// from pktpool should keep using SetBufferedData.
func (f *File) SetBufferedPacket(buf *dcebuf.Buffer, pk *pktpool.Packet) error {
	return f.setBuffered(buf, pk)
}

func (f *File) setBuffered(buf *dcebuf.Buffer, pk *pktpool.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending != nil {
		return fmt.Errorf("pipe: reply already pending for kind %s: %w", f.kind, types.ErrProtocolViolation)
	}
	f.pending = buf
	f.pendingPacket = pk
	return nil
}

// PeekBufferedData returns the pending reply without consuming it, or nil
// if none is pending.
func (f *File) PeekBufferedData() *dcebuf.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// TakeBufferedData returns and clears the pending reply, or nil if none is
// pending. A reply consumed over several READs is read through
// dcebuf.Buffer's own cursor: ipc's drainPending takes only as much as
// each READ asks for and calls TakeBufferedData once the reply is fully
// drained.
func (f *File) TakeBufferedData() *dcebuf.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := f.pending
	f.pending = nil
	return buf
}

// ReleasePendingPacket returns the pktpool.Packet backing the reply most
// recently cleared by TakeBufferedData, if any, to its pool. Callers must
// only invoke this after copying the drained bytes elsewhere — the
// Packet's backing array can be handed to a new Allocate caller as soon as
// it's released. A no-op when the pending reply wasn't pool-backed.
func (f *File) ReleasePendingPacket() {
	f.mu.Lock()
	pk := f.pendingPacket
	f.pendingPacket = nil
	f.mu.Unlock()
	pk.Release()
}
