package ipc

import (
	"fmt"

	"github.com/opencifs/smb1ipc/internal/smb1/frame"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
	"github.com/opencifs/smb1ipc/internal/smb1/wire"
)

func (d *Dispatcher) handleClose(sess Session, req *frame.Frame) (*frame.Frame, error) {
	params := req.ParameterBytes()
	if len(params) < 2 {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}
	fileID, err := wire.ReadU16(params, 0)
	if err != nil {
		return d.errorResponse(req, types.ErrMalformedFrame), nil
	}

	if err := sess.ClosePipe(req.TreeID(), fileID); err != nil {
		return d.errorResponse(req, fmt.Errorf("ipc: close pipe: %w", err)), nil
	}
	d.trackPipeClosed()

	return frame.NewResponse(req, 0, 0), nil
}
