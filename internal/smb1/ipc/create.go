package ipc

import (
	"fmt"

	"github.com/opencifs/smb1ipc/internal/smb1/frame"
	"github.com/opencifs/smb1ipc/internal/smb1/pipe"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
	"github.com/opencifs/smb1ipc/internal/smb1/wire"
)

// NTCreateAndX fixed request parameter offsets (within the 48-byte block).
const (
	ntCreateOffNameLength     = 5
	ntCreateOffDesiredAccess  = 15
	ntCreateRequestParamBytes = 48
)

// NTCreateAndX fixed response parameter layout (34-word / 68-byte block).
const (
	ntCreateRespWordCount      = 34
	ntCreateRespOffOplockLevel = 4
	ntCreateRespOffFID         = 5
	ntCreateRespOffResource    = 63
	ntCreateRespOffNMPipe      = 65
)

// fileTypeMessageModePipe is the NTCreateAndX ResourceType value for a
// named-pipe handle operating in message mode.
const fileTypeMessageModePipe uint16 = 2

// fileCreated is the NTCreateAndX CreateAction value signaling the handle
// refers to a freshly created (rather than pre-existing) object. Named
// pipes are always "created" fresh from the server's point of view.
const fileCreated uint32 = 2

func (d *Dispatcher) handleNTCreateAndX(sess Session, req *frame.Frame) (*frame.Frame, error) {
	tree, ok := sess.TreeByID(req.TreeID())
	if !ok || !tree.IsIPCShare() {
		return d.errorResponse(req, types.ErrInvalidData), nil
	}

	params := req.ParameterBytes()
	if len(params) < ntCreateRequestParamBytes {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	nameLength, err := wire.ReadU16(params, ntCreateOffNameLength)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	desiredAccess, err := wire.ReadU32(params, ntCreateOffDesiredAccess)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	filename, err := readCreateFilename(req, int(nameLength))
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	kind := pipeNameFromCreate(filename)
	if kind == types.PipeInvalid {
		return d.errorResponse(req, types.NewProtocolError(types.KindInvalidData, types.StatusObjectNameNotFound)), nil
	}

	pf := pipe.New(kind, desiredAccess)
	fileID, err := sess.OpenPipe(req.TreeID(), pf)
	if err != nil {
		return d.errorResponse(req, fmt.Errorf("ipc: open pipe %s: %w", kind, err)), nil
	}
	d.trackPipeOpened()

	resp := frame.NewResponse(req, ntCreateRespWordCount, 0)
	respParams := resp.ParameterBytes()
	respParams[ntCreateRespOffOplockLevel] = 0
	_ = wire.PutU16(respParams, ntCreateRespOffFID, fileID)
	putCreateAction(respParams, fileCreated)
	_ = wire.PutU16(respParams, ntCreateRespOffResource, fileTypeMessageModePipe)
	_ = wire.PutU16(respParams, ntCreateRespOffNMPipe, pf.StateBits())

	return resp, nil
}

// putCreateAction writes the 4-byte CreateAction field of an NTCreateAndX
// response, which sits immediately after OplockLevel and FID.
func putCreateAction(respParams []byte, action uint32) {
	const off = ntCreateRespOffFID + 2
	_ = wire.PutU32(respParams, off, action)
}

// readCreateFilename reads the NTCreateAndX/OpenAndX filename from the
// byte region, honoring the frame's Unicode flag.
func readCreateFilename(req *frame.Frame, nameLength int) (string, error) {
	region := req.ByteRegion()
	if req.IsUnicode() {
		start := 0
		if req.ByteOffset()%2 != 0 {
			start = 1 // 1-byte alignment pad before a Unicode name
		}
		if start+nameLength > len(region) {
			return "", types.ErrMalformedFrame
		}
		return wire.ReadUnicodeN(region, start, nameLength)
	}
	if nameLength > len(region) {
		return "", types.ErrMalformedFrame
	}
	return string(region[:nameLength]), nil
}

// OpenAndX fixed request parameter offsets (within the 28-byte block).
const (
	openAndXOffAccessMode = 6
	openAndXRequestBytes  = 28
)

func (d *Dispatcher) handleOpenAndX(sess Session, req *frame.Frame) (*frame.Frame, error) {
	tree, ok := sess.TreeByID(req.TreeID())
	if !ok || !tree.IsIPCShare() {
		return d.errorResponse(req, types.ErrInvalidData), nil
	}

	params := req.ParameterBytes()
	if len(params) < openAndXRequestBytes {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	accessMode, err := wire.ReadU16(params, openAndXOffAccessMode)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	filename, _, err := readOpenFilename(req)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	kind := pipeNameFromCreate(filename)
	if kind == types.PipeInvalid {
		return d.errorResponse(req, types.NewProtocolError(types.KindInvalidData, types.StatusObjectNameNotFound)), nil
	}

	pf := pipe.New(kind, uint32(accessMode))
	fileID, err := sess.OpenPipe(req.TreeID(), pf)
	if err != nil {
		return d.errorResponse(req, fmt.Errorf("ipc: open pipe %s: %w", kind, err)), nil
	}
	d.trackPipeOpened()

	// OPEN_ANDX response: 15 words, no data.
	resp := frame.NewResponse(req, 15, 0)
	respParams := resp.ParameterBytes()
	respParams[0] = 0xFF // AndXCommand: no further chained command
	_ = wire.PutU16(respParams, 2, fileID)
	return resp, nil
}

func (d *Dispatcher) handleOpen(sess Session, req *frame.Frame) (*frame.Frame, error) {
	tree, ok := sess.TreeByID(req.TreeID())
	if !ok || !tree.IsIPCShare() {
		return d.errorResponse(req, types.ErrInvalidData), nil
	}

	filename, _, err := readOpenFilename(req)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	kind := pipeNameFromCreate(filename)
	if kind == types.PipeInvalid {
		return d.errorResponse(req, types.NewProtocolError(types.KindInvalidData, types.StatusObjectNameNotFound)), nil
	}

	pf := pipe.New(kind, 0)
	fileID, err := sess.OpenPipe(req.TreeID(), pf)
	if err != nil {
		return d.errorResponse(req, fmt.Errorf("ipc: open pipe %s: %w", kind, err)), nil
	}
	d.trackPipeOpened()

	// SMB_COM_OPEN response: 7 words, no data.
	resp := frame.NewResponse(req, 7, 0)
	_ = wire.PutU16(resp.ParameterBytes(), 0, fileID)
	return resp, nil
}

// readOpenFilename reads a NUL-terminated filename from the byte region of
// an OPEN/OPEN_ANDX request (which, unlike NTCreateAndX, doesn't carry an
// explicit length), honoring the Unicode flag. It returns the filename and
// the offset immediately past its terminator.
func readOpenFilename(req *frame.Frame) (string, int, error) {
	region := req.ByteRegion()
	start := 0
	if req.IsUnicode() {
		if req.ByteOffset()%2 != 0 {
			start = 1
		}
		s, next, err := wire.ReadUnicodeZ(region, start)
		return s, next, err
	}
	s, next, err := wire.ReadASCIIZ(region, start)
	return s, next, err
}
