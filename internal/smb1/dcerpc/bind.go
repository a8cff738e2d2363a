package dcerpc

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/opencifs/smb1ipc/internal/smb1/dcebuf"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// PresentationContext is one negotiated (abstract syntax, transfer syntax)
// pair from a BIND PDU's context list [C706 12.6.4.3].
type PresentationContext struct {
	ContextID       uint16
	AbstractSyntax  uuid.UUID
	AbstractVersion uint32
	TransferSyntax  uuid.UUID
	TransferVersion uint32
}

// BindRequest is a parsed BIND PDU.
type BindRequest struct {
	MaxXmitFrag  uint16
	MaxRecvFrag  uint16
	AssocGroupID uint32
	Contexts     []PresentationContext
}

// ParseBindRequest parses the body of a BIND PDU. buf's read cursor must be
// positioned at the start of the PDU (offset 0); ParseBindRequest seeks
// past the 16-byte common header itself.
func ParseBindRequest(buf *dcebuf.Buffer) (*BindRequest, error) {
	if buf.PacketType() != types.PDUBind {
		return nil, fmt.Errorf("dcerpc: not a bind PDU: type %d: %w", buf.PacketType(), types.ErrMalformedFrame)
	}

	buf.Seek(dcebuf.HeaderSize)
	maxXmit, err := buf.GetShort()
	if err != nil {
		return nil, fmt.Errorf("dcerpc: bind max_xmit_frag: %w", err)
	}
	maxRecv, err := buf.GetShort()
	if err != nil {
		return nil, fmt.Errorf("dcerpc: bind max_recv_frag: %w", err)
	}
	assocGroup, err := buf.GetInt()
	if err != nil {
		return nil, fmt.Errorf("dcerpc: bind assoc_group_id: %w", err)
	}
	numContexts, err := buf.GetByte(1)
	if err != nil {
		return nil, fmt.Errorf("dcerpc: bind num_contexts: %w", err)
	}
	if _, err := buf.GetBytes(3); err != nil { // alignment padding
		return nil, fmt.Errorf("dcerpc: bind context padding: %w", err)
	}

	req := &BindRequest{MaxXmitFrag: maxXmit, MaxRecvFrag: maxRecv, AssocGroupID: assocGroup}

	for i := 0; i < int(numContexts); i++ {
		ctxID, err := buf.GetShort()
		if err != nil {
			return nil, fmt.Errorf("dcerpc: bind context[%d] id: %w", i, err)
		}
		numTransfer, err := buf.GetByte(1)
		if err != nil {
			return nil, fmt.Errorf("dcerpc: bind context[%d] num_transfer_syntax: %w", i, err)
		}
		if _, err := buf.GetBytes(1); err != nil { // reserved
			return nil, fmt.Errorf("dcerpc: bind context[%d] reserved: %w", i, err)
		}
		abstractSyntax, err := buf.GetUUID(false)
		if err != nil {
			return nil, fmt.Errorf("dcerpc: bind context[%d] abstract syntax: %w", i, err)
		}
		abstractVersion, err := buf.GetInt()
		if err != nil {
			return nil, fmt.Errorf("dcerpc: bind context[%d] abstract version: %w", i, err)
		}

		ctx := PresentationContext{ContextID: ctxID, AbstractSyntax: abstractSyntax, AbstractVersion: abstractVersion}
		for j := 0; j < int(numTransfer); j++ {
			transferSyntax, err := buf.GetUUID(false)
			if err != nil {
				return nil, fmt.Errorf("dcerpc: bind context[%d] transfer syntax[%d]: %w", i, j, err)
			}
			transferVersion, err := buf.GetInt()
			if err != nil {
				return nil, fmt.Errorf("dcerpc: bind context[%d] transfer version[%d]: %w", i, j, err)
			}
			if j == 0 {
				ctx.TransferSyntax = transferSyntax
				ctx.TransferVersion = transferVersion
			}
		}
		req.Contexts = append(req.Contexts, ctx)
	}

	return req, nil
}

// BuildBindAck builds a BIND_ACK PDU accepting every context in contexts
// (echoing each one's transfer syntax back, per this server's
// always-accept binding policy), with secAddr as the secondary address
// (e.g. "\PIPE\srvsvc").
func BuildBindAck(callID uint32, negotiatedXmit, negotiatedRecv uint16, assocGroupID uint32, secAddr string, contexts []PresentationContext) *dcebuf.Buffer {
	buf := dcebuf.NewEmpty(64 + len(contexts)*24)
	buf.PutBindAckHeader(callID)
	buf.PutShort(negotiatedXmit)
	buf.PutShort(negotiatedRecv)
	buf.PutInt(assocGroupID)
	buf.PutShort(uint16(len(secAddr) + 1))
	buf.PutASCIIZ(secAddr)
	buf.AlignWrite(4)

	buf.PutByte(byte(len(contexts)))
	buf.PutBytes([]byte{0, 0, 0}) // reserved, pads num_results to 4 bytes

	for _, ctx := range contexts {
		buf.PutShort(0) // acceptance
		buf.PutShort(0) // reason (unused on acceptance)
		buf.PutUUID(ctx.TransferSyntax, false)
		buf.PutInt(ctx.TransferVersion)
	}

	buf.PatchFragLength(uint16(buf.Len()))
	return buf
}
