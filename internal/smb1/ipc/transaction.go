package ipc

import (
	"context"
	"fmt"
	"time"

	"github.com/opencifs/smb1ipc/internal/smb1/dcebuf"
	"github.com/opencifs/smb1ipc/internal/smb1/dcerpc"
	"github.com/opencifs/smb1ipc/internal/smb1/frame"
	"github.com/opencifs/smb1ipc/internal/smb1/pktpool"
	"github.com/opencifs/smb1ipc/internal/smb1/transact"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
	"github.com/opencifs/smb1ipc/internal/smb1/wire"
)

// Transaction fixed request parameter offsets, common to TRANSACTION and
// TRANSACTION2 (NT_TRANSACT uses wider longword counts but the same shape).
const (
	transOffTotalParamCount = 0
	transOffTotalDataCount  = 2
	transOffMaxParamCount   = 4
	transOffMaxDataCount    = 6
	transOffParamCount      = 12
	transOffParamOffset     = 14
	transOffDataCount       = 16
	transOffDataOffset      = 18
	transOffSetupCount      = 20
	transOffSetup           = 21
	transRequestMinBytes    = 22
)

func (d *Dispatcher) handleTransaction(ctx context.Context, sess Session, req *frame.Frame) (*frame.Frame, error) {
	params := req.ParameterBytes()
	if len(params) < transRequestMinBytes {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	totalParamCount, _ := wire.ReadU16(params, transOffTotalParamCount)
	totalDataCount, _ := wire.ReadU16(params, transOffTotalDataCount)
	maxParamCount, _ := wire.ReadU16(params, transOffMaxParamCount)
	maxDataCount, _ := wire.ReadU16(params, transOffMaxDataCount)
	paramCount, _ := wire.ReadU16(params, transOffParamCount)
	paramOffset, _ := wire.ReadU16(params, transOffParamOffset)
	dataCount, _ := wire.ReadU16(params, transOffDataCount)
	dataOffset, _ := wire.ReadU16(params, transOffDataOffset)
	setupCount := params[transOffSetupCount]

	full := req.Bytes()
	if int(paramOffset)+int(paramCount) > len(full) || int(dataOffset)+int(dataCount) > len(full) {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	setup := make([]uint16, 0, setupCount)
	for i := 0; i < int(setupCount); i++ {
		off := transOffSetup + i*2
		if off+2 > len(params) {
			return d.errorResponse(req, types.ErrMalformedFrame), nil
		}
		w, _ := wire.ReadU16(params, off)
		setup = append(setup, w)
	}

	var function types.TransactFunction
	if len(setup) > 0 {
		function = types.TransactFunction(setup[0])
	}

	acc := transact.NewAccumulator(req.TreeID(), function, req.IsUnicode(), int(totalParamCount), int(totalDataCount))
	acc.AddSetup(setup)
	acc.SetLimits(maxParamCount, maxDataCount)
	if err := acc.AddParameterFragment(0, full[paramOffset:int(paramOffset)+int(paramCount)]); err != nil {
		return d.errorResponse(req, err), nil
	}
	if err := acc.AddDataFragment(0, full[dataOffset:int(dataOffset)+int(dataCount)]); err != nil {
		return d.errorResponse(req, err), nil
	}

	// This core only accepts single-fragment transactions from clients: a
	// request whose declared totals exceed what the primary request itself
	// carried would need secondary TRANSACTION_SECONDARY requests to
	// complete, which named-pipe RPC clients don't send in practice.
	if !acc.Complete() {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	txn := acc.Transaction()

	var fileID uint16
	if txn.Function != types.PipeLanman {
		if len(txn.Parameter) < 2 {
			return d.errorResponse(req, types.ErrMalformedFrame), nil
		}
		fileID, _ = wire.ReadU16(txn.Parameter, 0)
	}

	reply, err := d.dispatchTransaction(ctx, sess, req, fileID, txn)
	if err != nil {
		return d.errorResponse(req, err), nil
	}
	return reply, nil
}

func (d *Dispatcher) dispatchTransaction(ctx context.Context, sess Session, req *frame.Frame, fileID uint16, txn *transact.Transaction) (*frame.Frame, error) {
	switch txn.Function {
	case types.TransactNmPipe:
		return d.transactNmPipe(ctx, sess, req, fileID, txn)
	case types.TransactSetNmPHandState:
		return d.transactSetNmPHandState(sess, req, fileID, txn)
	case types.TransactQueryNmPHandState:
		return d.transactQueryNmPHandState(sess, req, fileID)
	case types.Trans2QueryFile:
		return buildTransactReply(req, nil, nil, types.StatusSuccess), nil
	case types.TransactWaitNmPipe:
		return buildTransactReply(req, nil, nil, types.StatusNotSupported), nil
	case types.PipeLanman:
		return d.transactPipeLanman(req, txn)
	default:
		return buildTransactReply(req, nil, nil, types.StatusNotSupported), nil
	}
}

// transactNmPipe carries a DCE/RPC PDU through the pipe's handler. Overflow
// is judged against MaxDataCount minus dcerpc.RequestHeaderSize (the fixed
// RESPONSE PDU header every reply already carries): if the reply is longer
// than that, it is answered with STATUS_BUFFER_OVERFLOW and at most
// MaxDataCount bytes are returned; any bytes beyond MaxDataCount are
// buffered on the pipe for subsequent ReadAndX calls to drain.
func (d *Dispatcher) transactNmPipe(ctx context.Context, sess Session, req *frame.Frame, fileID uint16, txn *transact.Transaction) (*frame.Frame, error) {
	pf, ok := sess.LookupPipe(req.TreeID(), fileID)
	if !ok {
		return nil, types.ErrInvalidHandle
	}

	in := dcebuf.New(txn.Data)
	if in.PacketType() == types.PDURequest && !pf.IsBound() {
		return nil, types.NewProtocolError(types.KindProtocolViolation, types.StatusAccessDenied)
	}

	var opNum uint16
	isRequest := in.PacketType() == types.PDURequest
	if isRequest {
		if parsed, err := dcerpc.ParseRequestPDU(in); err == nil {
			opNum = parsed.OpNum
		}
	}

	start := time.Now()
	out, err := dcerpc.ProcessPDU(ctx, in, pf, d.registry)
	if isRequest && d.metrics != nil {
		d.metrics.RecordRPCCall(pf.Kind().String(), opNum, time.Since(start))
	}
	if err != nil {
		return nil, types.ErrMalformedFrame
	}
	if in.PacketType() == types.PDUBind && out.PacketType() == types.PDUBindAck {
		pf.SetBound(true)
	}

	reply := out.Bytes()
	limit := int(txn.MaxDataCount)
	maxData := limit - dcerpc.RequestHeaderSize
	if limit > 0 && len(reply) > maxData {
		sent := len(reply)
		if sent > limit {
			sent = limit
		}
		if sent < len(reply) {
			remainderLen := len(reply) - sent
			pk := pktpool.Allocate(remainderLen, nil, 0)
			copy(pk.Bytes(), reply[sent:])
			remainder := dcebuf.New(pk.Bytes())
			if err := pf.SetBufferedPacket(remainder, pk); err != nil {
				pk.Release()
				return nil, err
			}
		}
		if d.metrics != nil {
			d.metrics.RecordBufferOverflow(pf.Kind().String(), len(reply))
		}
		return buildTransactReply(req, nil, reply[:sent], types.StatusBufferOverflow), nil
	}
	return buildTransactReply(req, nil, reply, types.StatusSuccess), nil
}

func (d *Dispatcher) transactSetNmPHandState(sess Session, req *frame.Frame, fileID uint16, txn *transact.Transaction) (*frame.Frame, error) {
	pf, ok := sess.LookupPipe(req.TreeID(), fileID)
	if !ok {
		return nil, types.ErrInvalidHandle
	}
	if len(txn.Parameter) < 4 {
		return nil, types.ErrMalformedFrame
	}
	state, _ := wire.ReadU16(txn.Parameter, 2)
	pf.SetStateBits(state)
	return buildTransactReply(req, nil, nil, types.StatusSuccess), nil
}

func (d *Dispatcher) transactQueryNmPHandState(sess Session, req *frame.Frame, fileID uint16) (*frame.Frame, error) {
	pf, ok := sess.LookupPipe(req.TreeID(), fileID)
	if !ok {
		return nil, types.ErrInvalidHandle
	}
	paramOut := make([]byte, 2)
	_ = wire.PutU16(paramOut, 0, pf.StateBits())
	return buildTransactReply(req, paramOut, nil, types.StatusSuccess), nil
}

func (d *Dispatcher) transactPipeLanman(req *frame.Frame, txn *transact.Transaction) (*frame.Frame, error) {
	if d.lanman == nil {
		return buildTransactReply(req, nil, nil, types.StatusNotSupported), nil
	}
	out, err := d.lanman.HandleLanman(req.TreeID(), txn)
	if err != nil {
		return nil, fmt.Errorf("ipc: lanman transaction: %w", err)
	}
	return buildTransactReply(req, out.Parameter, out.Data, types.StatusSuccess), nil
}

// Transaction response fixed parameter layout: 10 words (TotalParamCount,
// TotalDataCount, Reserved, ParamCount, ParamOffset, ParamDisplacement,
// DataCount, DataOffset, DataDisplacement, SetupCount) followed by zero
// setup words.
const transRespWordCount = 10

func buildTransactReply(req *frame.Frame, param, data []byte, status uint32) *frame.Frame {
	byteCount := len(param) + len(data)
	resp := frame.NewResponse(req, transRespWordCount, byteCount)
	resp.SetLongErrorCode(status)

	respParams := resp.ParameterBytes()
	_ = wire.PutU16(respParams, 0, uint16(len(param)))
	_ = wire.PutU16(respParams, 2, uint16(len(data)))
	_ = wire.PutU16(respParams, 6, uint16(len(param)))
	paramOffset := resp.ByteOffset()
	_ = wire.PutU16(respParams, 8, uint16(paramOffset))
	_ = wire.PutU16(respParams, 10, 0)
	_ = wire.PutU16(respParams, 12, uint16(len(data)))
	_ = wire.PutU16(respParams, 14, uint16(paramOffset+len(param)))
	_ = wire.PutU16(respParams, 16, 0)

	region := resp.ByteRegion()
	copy(region, param)
	copy(region[len(param):], data)

	return resp
}
