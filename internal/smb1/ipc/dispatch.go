package ipc

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/opencifs/smb1ipc/internal/logger"
	"github.com/opencifs/smb1ipc/internal/smb1/frame"
	"github.com/opencifs/smb1ipc/internal/smb1/metrics"
	"github.com/opencifs/smb1ipc/internal/smb1/rpcreg"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// Dispatcher routes SMB1 requests against the IPC$ tree to the handler for
// their command code. Logging goes through the package-level logger API,
// matching every other protocol handler in this codebase rather than a
// per-instance logger.
type Dispatcher struct {
	registry  *rpcreg.Registry
	lanman    PipeLanmanHandler
	metrics   metrics.Metrics
	openPipes int64
}

// NewDispatcher builds a Dispatcher. lanman may be nil, in which case
// \PIPE\LANMAN transactions are answered with NOT_SUPPORTED.
func NewDispatcher(registry *rpcreg.Registry, lanman PipeLanmanHandler) *Dispatcher {
	return &Dispatcher{registry: registry, lanman: lanman}
}

// SetMetrics attaches m as the Dispatcher's metrics sink. Passing nil
// (the zero value) disables collection; every metrics call site on
// Dispatcher already tolerates a nil Metrics, so this is safe to skip.
func (d *Dispatcher) SetMetrics(m metrics.Metrics) {
	d.metrics = m
}

// Process handles one SMB1 request against the IPC$ tree, returning the
// response frame to send back. It never returns an error for a
// protocol-level failure — those are encoded as SMB error responses in the
// returned frame; a non-nil error means the request was too malformed to
// even build an error response (e.g. the frame itself is corrupt) and the
// caller should tear down the connection.
func (d *Dispatcher) Process(ctx context.Context, sess Session, req *frame.Frame) (*frame.Frame, error) {
	start := time.Now()
	resp, err := d.dispatch(ctx, sess, req)
	if d.metrics != nil && resp != nil {
		d.metrics.RecordRequest(req.Command().String(), statusOf(resp), time.Since(start))
	}
	return resp, err
}

func (d *Dispatcher) dispatch(ctx context.Context, sess Session, req *frame.Frame) (*frame.Frame, error) {
	logger.Debug("ipc: dispatch", logger.Protocol("smb1"), slog.String("command", req.Command().String()), logger.TreeID(req.TreeID()))
	switch req.Command() {
	case types.CommandNTCreateAndX:
		return d.handleNTCreateAndX(sess, req)
	case types.CommandOpenAndX:
		return d.handleOpenAndX(sess, req)
	case types.CommandOpen:
		return d.handleOpen(sess, req)
	case types.CommandReadAndX:
		return d.handleReadAndX(ctx, sess, req)
	case types.CommandRead:
		return d.handleRead(ctx, sess, req)
	case types.CommandWriteAndX:
		return d.handleWriteAndX(ctx, sess, req)
	case types.CommandWrite:
		return d.handleWrite(ctx, sess, req)
	case types.CommandClose:
		return d.handleClose(sess, req)
	case types.CommandTransaction, types.CommandTransaction2, types.CommandNTTransact:
		return d.handleTransaction(ctx, sess, req)
	default:
		logger.Debug("ipc: unrecognized command", logger.Protocol("smb1"), slog.String("command", req.Command().String()))
		return d.errorResponse(req, types.ErrUnsupportedFunction), nil
	}
}

// errorResponse builds a zero-parameter, zero-data SMB1 response carrying
// protoErr's NT status. The legacy (class, code) pair held in
// protoErr.Legacy is not written to the response.
func (d *Dispatcher) errorResponse(req *frame.Frame, err error) *frame.Frame {
	var protoErr *types.ProtocolError
	if !errors.As(err, &protoErr) {
		protoErr = types.NewProtocolError(types.KindProtocolViolation, types.StatusUnsuccessful)
	}
	logger.Warn("ipc: protocol error", logger.Protocol("smb1"), slog.String("kind", protoErr.Kind.String()), slog.Any("status", protoErr.Status))
	if d.metrics != nil && protoErr.Kind == types.KindProtocolViolation {
		d.metrics.RecordProtocolViolation(protoErr.Kind.String())
	}
	resp := frame.NewResponse(req, 0, 0)
	resp.SetLongErrorCode(protoErr.Status)
	return resp
}

// trackPipeOpened updates the open-pipe gauge after a successful
// NTCreateAndX/OpenAndX/Open. No-op when metrics are disabled.
func (d *Dispatcher) trackPipeOpened() {
	if d.metrics == nil {
		return
	}
	d.metrics.SetOpenPipes(int(atomic.AddInt64(&d.openPipes, 1)))
}

// trackPipeClosed updates the open-pipe gauge after Close releases a
// handle. No-op when metrics are disabled.
func (d *Dispatcher) trackPipeClosed() {
	if d.metrics == nil {
		return
	}
	d.metrics.SetOpenPipes(int(atomic.AddInt64(&d.openPipes, -1)))
}

// statusOf extracts the NT status a response frame carries, for metrics
// labeling. ipc_test.go reads response statuses through this same function.
func statusOf(f *frame.Frame) uint32 {
	b := f.Bytes()
	if len(b) < 9 {
		return types.StatusSuccess
	}
	return uint32(b[5]) | uint32(b[6])<<8 | uint32(b[7])<<16 | uint32(b[8])<<24
}
