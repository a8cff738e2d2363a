package dcerpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opencifs/smb1ipc/internal/logger"
	"github.com/opencifs/smb1ipc/internal/smb1/dcebuf"
	"github.com/opencifs/smb1ipc/internal/smb1/pipe"
	"github.com/opencifs/smb1ipc/internal/smb1/rpcreg"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// serverAssocGroupID is the fixed association group this server hands back
// in every BIND_ACK, regardless of what the client proposed. Real RPC
// runtimes mint these per association; a single fixed value is enough for a
// server that never multiplexes contexts across separate BIND calls.
const serverAssocGroupID uint32 = 0x53F0

// ProcessPDU dispatches a single DCE/RPC PDU written to a named-pipe
// handle: BIND negotiates fragment sizes and transfer syntax and replies
// with BIND_ACK; REQUEST is routed through registry by the pipe's resolved
// kind and replies with RESPONSE or FAULT; anything else replies with
// ACCESS_DENIED, matching a real RPC runtime's refusal to process a PDU
// out of sequence.
func ProcessPDU(ctx context.Context, in *dcebuf.Buffer, pf *pipe.File, registry *rpcreg.Registry) (*dcebuf.Buffer, error) {
	switch in.PacketType() {
	case types.PDUBind:
		return processBind(in, pf)
	case types.PDURequest:
		return processRequest(ctx, in, pf, registry)
	default:
		return BuildFaultPDU(in.CallID(), types.StatusAccessDenied), nil
	}
}

func processBind(in *dcebuf.Buffer, pf *pipe.File) (*dcebuf.Buffer, error) {
	req, err := ParseBindRequest(in)
	if err != nil {
		return nil, err
	}

	negotiatedXmit := minU16(req.MaxRecvFrag, pf.MaxTxFragment())
	negotiatedRecv := minU16(req.MaxXmitFrag, pf.MaxRxFragment())
	pf.SetFragmentLimits(negotiatedXmit, negotiatedRecv)

	secAddr := `\PIPE\` + pf.Kind().String()
	logger.Debug("dcerpc: bind", logger.PipeKind(pf.Kind().String()), logger.CallID(in.CallID()),
		slog.Any("xmit_frag", negotiatedXmit), slog.Any("recv_frag", negotiatedRecv))
	return BuildBindAck(in.CallID(), negotiatedXmit, negotiatedRecv, serverAssocGroupID, secAddr, req.Contexts), nil
}

func processRequest(ctx context.Context, in *dcebuf.Buffer, pf *pipe.File, registry *rpcreg.Registry) (*dcebuf.Buffer, error) {
	ep, ok := registry.Lookup(pf.Kind())
	if !ok {
		logger.Warn("dcerpc: no endpoint for pipe kind", logger.PipeKind(pf.Kind().String()), logger.CallID(in.CallID()))
		return BuildFaultPDU(in.CallID(), types.StatusAccessDenied), nil
	}

	req, err := ParseRequestPDU(in)
	if err != nil {
		return nil, err
	}

	resp, err := ep.ProcessRequest(ctx, &rpcreg.Request{
		Pipe:   pf,
		CallID: in.CallID(),
		OpNum:  req.OpNum,
		Stub:   req.Stub,
	})
	if err != nil {
		var protoErr *types.ProtocolError
		if errors.As(err, &protoErr) {
			logger.Warn("dcerpc: endpoint fault", logger.PipeKind(pf.Kind().String()), logger.CallID(in.CallID()),
				logger.OpNum(req.OpNum), slog.Any("status", protoErr.Status))
			return BuildFaultPDU(in.CallID(), protoErr.Status), nil
		}
		return nil, fmt.Errorf("dcerpc: endpoint for %s opnum %d: %w", pf.Kind(), req.OpNum, err)
	}

	logger.Debug("dcerpc: request", logger.PipeKind(pf.Kind().String()), logger.CallID(in.CallID()), logger.OpNum(req.OpNum))
	return BuildResponsePDU(in.CallID(), req.ContextID, resp.Stub), nil
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}
