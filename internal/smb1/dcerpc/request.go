package dcerpc

import (
	"fmt"

	"github.com/opencifs/smb1ipc/internal/smb1/dcebuf"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// RequestHeaderSize is the fixed size preceding stub data in a
// REQUEST/RESPONSE PDU: the 16-byte common header plus alloc_hint(4) +
// context_id(2) + opnum_or_cancel(2), 24 bytes in all.
// This is the OPERATIONDATA overhead a Transact-NmPipe reply's declared
// return_data_limit must leave room for beyond the stub payload itself.
const RequestHeaderSize = dcebuf.HeaderSize + 8

// RequestPDU is a parsed REQUEST PDU.
type RequestPDU struct {
	AllocHint uint32
	ContextID uint16
	OpNum     uint16
	Stub      []byte
}

// ParseRequestPDU parses the body of a REQUEST PDU. buf's read cursor must
// be positioned at offset 0; ParseRequestPDU seeks past the common header.
func ParseRequestPDU(buf *dcebuf.Buffer) (*RequestPDU, error) {
	if buf.PacketType() != types.PDURequest {
		return nil, fmt.Errorf("dcerpc: not a request PDU: type %d: %w", buf.PacketType(), types.ErrMalformedFrame)
	}

	buf.Seek(dcebuf.HeaderSize)
	allocHint, err := buf.GetInt()
	if err != nil {
		return nil, fmt.Errorf("dcerpc: request alloc_hint: %w", err)
	}
	contextID, err := buf.GetShort()
	if err != nil {
		return nil, fmt.Errorf("dcerpc: request context_id: %w", err)
	}
	opNum, err := buf.GetShort()
	if err != nil {
		return nil, fmt.Errorf("dcerpc: request opnum: %w", err)
	}

	stubEnd := int(buf.FragLength()) - int(buf.AuthLength())
	if stubEnd < RequestHeaderSize || stubEnd > buf.Len() {
		return nil, fmt.Errorf("dcerpc: request stub bounds [%d,%d) invalid: %w", RequestHeaderSize, stubEnd, types.ErrMalformedFrame)
	}

	return &RequestPDU{
		AllocHint: allocHint,
		ContextID: contextID,
		OpNum:     opNum,
		Stub:      buf.Bytes()[RequestHeaderSize:stubEnd],
	}, nil
}

// BuildResponsePDU builds a RESPONSE PDU carrying stub as its reply body.
func BuildResponsePDU(callID uint32, contextID uint16, stub []byte) *dcebuf.Buffer {
	buf := dcebuf.NewEmpty(RequestHeaderSize + len(stub))
	buf.PutHeader(types.PDUResponse, types.PDUFlagOnlyFrag, 0, callID)
	buf.PutInt(uint32(len(stub)))
	buf.PutShort(contextID)
	buf.PutByte(0) // cancel count
	buf.PutByte(0) // reserved
	buf.PutBytes(stub)
	buf.PatchFragLength(uint16(buf.Len()))
	return buf
}

// BuildFaultPDU builds a FAULT PDU carrying status as its NT_STATUS.
func BuildFaultPDU(callID, status uint32) *dcebuf.Buffer {
	buf := dcebuf.NewEmpty(RequestHeaderSize + 4)
	buf.PutHeader(types.PDUFault, types.PDUFlagOnlyFrag, 0, callID)
	buf.PutInt(0) // alloc hint
	buf.PutShort(0)
	buf.PutByte(0) // cancel count
	buf.PutByte(0) // reserved
	buf.PutInt(status)
	buf.PatchFragLength(uint16(buf.Len()))
	return buf
}
