package frame

import (
	"encoding/binary"

	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// NewResponse allocates a fresh Frame sized for wordCount parameter words
// and byteCount data bytes, with the SMB1 header fields copied from req
// (TreeID, ProcessID, UID, MultiplexID) and the response flag bit set.
// The caller fills in the command, parameter words, and byte region.
func NewResponse(req *Frame, wordCount, byteCount int) *Frame {
	size := paramsOffset + 1 + wordCount*2 + 2 + byteCount
	data := make([]byte, size)

	binary.LittleEndian.PutUint32(data[offProtocolID:], types.SMB1ProtocolID)
	data[offCommand] = uint8(req.Command())
	data[paramsOffset] = byte(wordCount)

	resp := &Frame{data: data}
	resp.SetResponse(true)
	resp.SetFlags2(req.Flags2())
	resp.SetTreeID(req.TreeID())
	resp.SetByteCount(byteCount)

	// ProcessID, UID, and MultiplexID sit outside the accessor set Frame
	// exposes for mutation (they're request-supplied, echoed verbatim);
	// copy them directly.
	copy(data[offProcessID:offProcessID+2], req.data[offProcessID:offProcessID+2])
	copy(data[offUID:offUID+2], req.data[offUID:offUID+2])
	copy(data[offMultiplexID:offMultiplexID+2], req.data[offMultiplexID:offMultiplexID+2])

	return resp
}

// Encode returns the Frame's backing bytes, ready to be prefixed with the
// 4-byte NBT header and sent.
func (f *Frame) Encode() []byte {
	return f.data
}
