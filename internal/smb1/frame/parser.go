package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// Parse validates and wraps data (the SMB1 header onward, NBT prefix
// already stripped) as a Frame.
func Parse(data []byte) (*Frame, error) {
	if len(data) < types.HeaderSize+3 {
		return nil, fmt.Errorf("frame: message too short for SMB1 header: %w", types.ErrMalformedFrame)
	}

	protocolID := binary.LittleEndian.Uint32(data[offProtocolID:])
	if protocolID != types.SMB1ProtocolID {
		return nil, fmt.Errorf("frame: invalid SMB1 protocol id 0x%08X: %w", protocolID, types.ErrMalformedFrame)
	}

	f := &Frame{data: data}

	wordCount := f.WordCount()
	needed := paramsOffset + 1 + wordCount*2 + 2
	if len(data) < needed {
		return nil, fmt.Errorf("frame: message too short for %d parameter words: %w", wordCount, types.ErrMalformedFrame)
	}

	byteCount := f.ByteCount()
	if f.ByteOffset()+byteCount > len(data) {
		return nil, fmt.Errorf("frame: declared byte count %d exceeds message: %w", byteCount, types.ErrMalformedFrame)
	}

	return f, nil
}

// IsSMB1Message reports whether data begins with the SMB1 protocol id.
func IsSMB1Message(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return binary.LittleEndian.Uint32(data) == types.SMB1ProtocolID
}
