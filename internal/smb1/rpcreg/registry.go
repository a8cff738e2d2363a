// Package rpcreg is the RPC Endpoint Registry: a lookup table mapping a
// resolved named-pipe kind to the Endpoint capable of servicing DCE/RPC
// REQUEST PDUs bound to it. The dcerpc handler consults the registry once
// a BIND has succeeded; an unregistered pipe kind means the server answers
// every REQUEST with ACCESS_DENIED rather than crashing.
package rpcreg

import (
	"context"
	"fmt"
	"sync"

	"github.com/opencifs/smb1ipc/internal/smb1/pipe"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// Request carries everything an Endpoint needs to service one DCE/RPC
// operation.
type Request struct {
	Pipe   *pipe.File
	CallID uint32
	OpNum  uint16
	Stub   []byte
}

// Response is the stub data an Endpoint wants carried back in the
// RESPONSE PDU.
type Response struct {
	Stub []byte
}

// Endpoint services DCE/RPC requests for one named-pipe kind (e.g. SRVSVC).
// Implementations dispatch on Request.OpNum and return the NDR-encoded
// reply stub, or a ProtocolError (typically KindUnsupportedFunction) for
// operation numbers they don't implement.
type Endpoint interface {
	ProcessRequest(ctx context.Context, req *Request) (*Response, error)
}

// Registry maps named-pipe kinds to the Endpoint servicing them.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[types.PipeKind]Endpoint
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[types.PipeKind]Endpoint)}
}

// Register binds an Endpoint to kind, replacing any Endpoint previously
// registered for it.
func (r *Registry) Register(kind types.PipeKind, ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[kind] = ep
}

// Lookup returns the Endpoint registered for kind, if any.
func (r *Registry) Lookup(kind types.PipeKind) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[kind]
	return ep, ok
}

// ErrNoSuchEndpoint is returned by callers that want a uniform error for
// an unbound pipe kind rather than branching on the Lookup bool.
func ErrNoSuchEndpoint(kind types.PipeKind) error {
	return fmt.Errorf("rpcreg: no endpoint registered for pipe kind %s: %w", kind, types.ErrUnsupportedFunction)
}
