package ipc

import (
	"context"
	"time"

	"github.com/opencifs/smb1ipc/internal/smb1/dcebuf"
	"github.com/opencifs/smb1ipc/internal/smb1/dcerpc"
	"github.com/opencifs/smb1ipc/internal/smb1/frame"
	"github.com/opencifs/smb1ipc/internal/smb1/pipe"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
	"github.com/opencifs/smb1ipc/internal/smb1/wire"
)

// ReadAndX fixed request parameter offsets (24-byte block).
const (
	readAndXOffFID       = 4
	readAndXOffMaxCount  = 10
	readAndXRequestBytes = 24
)

// ReadAndX fixed response parameter layout (12-word / 24-byte block).
const (
	readAndXRespWordCount  = 12
	readAndXRespOffDataLen = 10
	readAndXRespOffDataOff = 12
)

// readAndXBaseByteOffset is the frame-relative offset of the byte region in
// a ReadAndX response, which is fixed once readAndXRespWordCount is: header
// + word-count byte + parameter words + 2-byte ByteCount field.
const readAndXBaseByteOffset = types.HeaderSize + 1 + readAndXRespWordCount*2 + 2

func (d *Dispatcher) handleReadAndX(ctx context.Context, sess Session, req *frame.Frame) (*frame.Frame, error) {
	params := req.ParameterBytes()
	if len(params) < readAndXRequestBytes {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	fileID, err := wire.ReadU16(params, readAndXOffFID)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	maxCount, err := wire.ReadU16(params, readAndXOffMaxCount)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	pf, ok := sess.LookupPipe(req.TreeID(), fileID)
	if !ok {
		return d.errorResponse(req, types.ErrInvalidHandle), nil
	}

	data := drainPending(pf, int(maxCount))
	return buildReadAndXResponse(req, data), nil
}

func (d *Dispatcher) handleRead(ctx context.Context, sess Session, req *frame.Frame) (*frame.Frame, error) {
	params := req.ParameterBytes()
	if len(params) < 2 {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	fileID, err := wire.ReadU16(params, 0)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	maxCount := 0
	if len(params) >= 4 {
		mc, _ := wire.ReadU16(params, 2)
		maxCount = int(mc)
	}

	pf, ok := sess.LookupPipe(req.TreeID(), fileID)
	if !ok {
		return d.errorResponse(req, types.ErrInvalidHandle), nil
	}

	data := drainPending(pf, maxCount)

	// SMB_COM_READ response: 5 words (Count, 4 reserved), data follows.
	resp := frame.NewResponse(req, 5, len(data)+3) // +3: buffer-format byte + 2-byte data length
	respParams := resp.ParameterBytes()
	_ = wire.PutU16(respParams, 0, uint16(len(data)))

	byteRegion := resp.ByteRegion()
	byteRegion[0] = 0x01 // buffer format: data block
	_ = wire.PutU16(byteRegion, 1, uint16(len(data)))
	copy(byteRegion[3:], data)

	return resp, nil
}

// drainPending returns up to maxCount bytes from pf's pending reply,
// consuming them, and clears the pending reply once fully drained. The
// bytes are copied out of buf's backing array before any pktpool.Packet
// behind it is released, so a reused pool buffer can never alias data a
// caller is still reading.
func drainPending(pf *pipe.File, maxCount int) []byte {
	buf := pf.PeekBufferedData()
	if buf == nil {
		return nil
	}
	n := maxCount
	if remaining := buf.Remaining(); n > remaining {
		n = remaining
	}
	chunk, err := buf.GetBytes(n)
	if err != nil {
		return nil
	}
	data := append([]byte(nil), chunk...)
	if buf.Remaining() == 0 {
		pf.TakeBufferedData()
		pf.ReleasePendingPacket()
	}
	return data
}

// buildReadAndXResponse builds a ReadAndX reply. With no pending data it's
// all 12 parameter words zero except AndXCommand=0xFF (no DataLength,
// DataOffset, or byte region at all). With data, the data is placed at the
// next longword-aligned offset past the byte region's base, and ByteCount
// covers the padding plus the data: (dataOffset+len(data)) - baseOffset.
func buildReadAndXResponse(req *frame.Frame, data []byte) *frame.Frame {
	if len(data) == 0 {
		resp := frame.NewResponse(req, readAndXRespWordCount, 0)
		resp.ParameterBytes()[0] = 0xFF // AndXCommand: no further chained command
		return resp
	}

	pad := (4 - readAndXBaseByteOffset%4) % 4
	resp := frame.NewResponse(req, readAndXRespWordCount, pad+len(data))
	respParams := resp.ParameterBytes()
	respParams[0] = 0xFF // AndXCommand: no further chained command
	dataOffset := readAndXBaseByteOffset + pad
	_ = wire.PutU16(respParams, readAndXRespOffDataLen, uint16(len(data)))
	_ = wire.PutU16(respParams, readAndXRespOffDataOff, uint16(dataOffset))
	copy(resp.ByteRegion()[pad:], data)
	return resp
}

// WriteAndX fixed request parameter layout. DataLength/DataOffset sit at
// fixed offsets in every dialect this core targets; callers with
// WriteMode/Remaining fields we don't use leave them untouched.
const (
	writeAndXOffFID        = 4
	writeAndXOffDataLength = 20
	writeAndXOffDataOffset = 22
	writeAndXRequestBytes  = 24
)

func (d *Dispatcher) handleWriteAndX(ctx context.Context, sess Session, req *frame.Frame) (*frame.Frame, error) {
	params := req.ParameterBytes()
	if len(params) < writeAndXRequestBytes {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	fileID, err := wire.ReadU16(params, writeAndXOffFID)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	dataLength, err := wire.ReadU16(params, writeAndXOffDataLength)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	dataOffset, err := wire.ReadU16(params, writeAndXOffDataOffset)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	full := req.Bytes()
	if int(dataOffset)+int(dataLength) > len(full) {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	writeData := full[dataOffset : int(dataOffset)+int(dataLength)]

	pf, ok := sess.LookupPipe(req.TreeID(), fileID)
	if !ok {
		return d.errorResponse(req, types.ErrInvalidHandle), nil
	}

	if err := d.processPipeWrite(ctx, pf, writeData); err != nil {
		return d.errorResponse(req, err), nil
	}

	// WRITE_ANDX response: 6 words (Count, Remaining, CountHigh, Reserved).
	resp := frame.NewResponse(req, 6, 0)
	respParams := resp.ParameterBytes()
	respParams[0] = 0xFF
	_ = wire.PutU16(respParams, 2, uint16(len(writeData)))
	return resp, nil
}

func (d *Dispatcher) handleWrite(ctx context.Context, sess Session, req *frame.Frame) (*frame.Frame, error) {
	params := req.ParameterBytes()
	if len(params) < 4 {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	fileID, err := wire.ReadU16(params, 0)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	count, err := wire.ReadU16(params, 2)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	region := req.ByteRegion()
	if len(region) < 3+int(count) {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	writeData := region[3 : 3+int(count)]

	pf, ok := sess.LookupPipe(req.TreeID(), fileID)
	if !ok {
		return d.errorResponse(req, types.ErrInvalidHandle), nil
	}

	if err := d.processPipeWrite(ctx, pf, writeData); err != nil {
		return d.errorResponse(req, err), nil
	}

	resp := frame.NewResponse(req, 1, 0)
	_ = wire.PutU16(resp.ParameterBytes(), 0, uint16(len(writeData)))
	return resp, nil
}

// processPipeWrite feeds writeData — a DCE/RPC PDU the client wrote
// directly to the pipe — through the dcerpc handler and buffers its reply.
// A REQUEST PDU arriving before BIND has completed is refused outright
// with ACCESS_DENIED rather than forwarded to an endpoint.
func (d *Dispatcher) processPipeWrite(ctx context.Context, pf *pipe.File, writeData []byte) error {
	in := dcebuf.New(writeData)
	if in.PacketType() == types.PDURequest && !pf.IsBound() {
		return types.NewProtocolError(types.KindProtocolViolation, types.StatusAccessDenied)
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
		return types.ErrMalformedFrame
	}
	if in.PacketType() == types.PDUBind && out.PacketType() == types.PDUBindAck {
		pf.SetBound(true)
	}
	return pf.SetBufferedData(out)
}
