package frame

import (
	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// Header field offsets, relative to the start of the 32-byte SMB1 header
// (i.e. past the 4-byte NBT prefix).
const (
	offProtocolID  = 0
	offCommand     = 4
	offStatus      = 5
	offFlags       = 9
	offFlags2      = 10
	offTreeID      = 24
	offProcessID   = 26
	offUID         = 28
	offMultiplexID = 30

	paramsOffset = types.HeaderSize
)

// Frame is a view over a single, already-defragmented SMB1 message: the NBT
// prefix is not included — data begins at the SMB1 header. Frame never
// copies; all accessors index into the backing slice.
type Frame struct {
	data []byte
}

// New wraps data as a Frame without validating it. Use Parse to validate
// and construct in one step.
func New(data []byte) *Frame {
	return &Frame{data: data}
}

// Bytes returns the raw backing slice.
func (f *Frame) Bytes() []byte {
	return f.data
}

// Command returns the SMB1 command code.
func (f *Frame) Command() types.Command {
	return types.Command(f.data[offCommand])
}

// SetCommand overwrites the command code.
func (f *Frame) SetCommand(cmd types.Command) {
	f.data[offCommand] = uint8(cmd)
}

// IsResponse reports whether the response flag bit is set.
func (f *Frame) IsResponse() bool {
	return f.data[offFlags]&types.FlagResponse != 0
}

// SetResponse sets or clears the response flag bit.
func (f *Frame) SetResponse(v bool) {
	if v {
		f.data[offFlags] |= types.FlagResponse
	} else {
		f.data[offFlags] &^= types.FlagResponse
	}
}

// Flags2 returns the flags2 field.
func (f *Frame) Flags2() uint16 {
	return uint16(f.data[offFlags2]) | uint16(f.data[offFlags2+1])<<8
}

// SetFlags2 overwrites the flags2 field.
func (f *Frame) SetFlags2(v uint16) {
	f.data[offFlags2] = byte(v)
	f.data[offFlags2+1] = byte(v >> 8)
}

// IsUnicode reports whether the Unicode flags2 bit is set, i.e. whether the
// byte-count region uses UTF-16LE strings rather than ASCII.
func (f *Frame) IsUnicode() bool {
	return f.Flags2()&types.Flags2Unicode != 0
}

// TreeID returns the tree connection identifier.
func (f *Frame) TreeID() uint16 {
	return uint16(f.data[offTreeID]) | uint16(f.data[offTreeID+1])<<8
}

// SetTreeID overwrites the tree connection identifier.
func (f *Frame) SetTreeID(v uint16) {
	f.data[offTreeID] = byte(v)
	f.data[offTreeID+1] = byte(v >> 8)
}

// ProcessID returns the client process id.
func (f *Frame) ProcessID() uint16 {
	return uint16(f.data[offProcessID]) | uint16(f.data[offProcessID+1])<<8
}

// UID returns the session/user id.
func (f *Frame) UID() uint16 {
	return uint16(f.data[offUID]) | uint16(f.data[offUID+1])<<8
}

// MultiplexID returns the per-request sequencing id (MID), echoed back
// unchanged in responses.
func (f *Frame) MultiplexID() uint16 {
	return uint16(f.data[offMultiplexID]) | uint16(f.data[offMultiplexID+1])<<8
}

// WordCount returns the parameter word count (the byte at paramsOffset).
func (f *Frame) WordCount() int {
	return int(f.data[paramsOffset])
}

// ParameterWord returns the i-th 16-bit parameter word (0-indexed).
func (f *Frame) ParameterWord(i int) uint16 {
	off := paramsOffset + 1 + i*2
	return uint16(f.data[off]) | uint16(f.data[off+1])<<8
}

// SetParameterWord overwrites the i-th 16-bit parameter word.
func (f *Frame) SetParameterWord(i int, v uint16) {
	off := paramsOffset + 1 + i*2
	f.data[off] = byte(v)
	f.data[off+1] = byte(v >> 8)
}

// ParameterBytes returns the raw parameter-word region as a byte slice, for
// commands (like NTCreateAndX) whose fixed parameter block mixes field
// widths in a way the word-at-a-time accessors don't fit.
func (f *Frame) ParameterBytes() []byte {
	start := paramsOffset + 1
	return f.data[start : start+f.WordCount()*2]
}

// ParameterLong reads two consecutive parameter words at i and i+1 as a
// single little-endian 32-bit value (low word first).
func (f *Frame) ParameterLong(i int) uint32 {
	return uint32(f.ParameterWord(i)) | uint32(f.ParameterWord(i+1))<<16
}

// SetParameterLong writes a 32-bit value across parameter words i and i+1.
func (f *Frame) SetParameterLong(i int, v uint32) {
	f.SetParameterWord(i, uint16(v))
	f.SetParameterWord(i+1, uint16(v>>16))
}

// byteCountOffset returns the offset of the 2-byte ByteCount field, which
// immediately follows the parameter-word region.
func (f *Frame) byteCountOffset() int {
	return paramsOffset + 1 + f.WordCount()*2
}

// ByteCount returns the declared length of the byte region.
func (f *Frame) ByteCount() int {
	off := f.byteCountOffset()
	return int(f.data[off]) | int(f.data[off+1])<<8
}

// SetByteCount overwrites the ByteCount field.
func (f *Frame) SetByteCount(n int) {
	off := f.byteCountOffset()
	f.data[off] = byte(n)
	f.data[off+1] = byte(n >> 8)
}

// ByteOffset returns the offset of the first byte of the byte region,
// relative to the start of the SMB1 header.
func (f *Frame) ByteOffset() int {
	return f.byteCountOffset() + 2
}

// ByteRegion returns the byte region as declared by ByteCount.
func (f *Frame) ByteRegion() []byte {
	start := f.ByteOffset()
	end := start + f.ByteCount()
	if end > len(f.data) {
		end = len(f.data)
	}
	return f.data[start:end]
}

// SetLongErrorCode sets flags2.LONG_ERROR_CODE and writes status as a raw
// NT_STATUS code into the 4-byte Status field.
func (f *Frame) SetLongErrorCode(status uint32) {
	f.SetFlags2(f.Flags2() | types.Flags2LongErrorCode)
	f.data[offStatus] = byte(status)
	f.data[offStatus+1] = byte(status >> 8)
	f.data[offStatus+2] = byte(status >> 16)
	f.data[offStatus+3] = byte(status >> 24)
}

// SetLegacyErrorCode writes a legacy (class, code) pair into the Status
// field and clears flags2.LONG_ERROR_CODE.
func (f *Frame) SetLegacyErrorCode(lc types.LegacyCode) {
	f.SetFlags2(f.Flags2() &^ types.Flags2LongErrorCode)
	f.data[offStatus] = lc.Class
	f.data[offStatus+1] = 0
	f.data[offStatus+2] = byte(lc.Code)
	f.data[offStatus+3] = byte(lc.Code >> 8)
}
