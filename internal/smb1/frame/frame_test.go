package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

func rawNTCreateAndXRequest() []byte {
	// Minimal SMB1 header (32 bytes) + 1 word count (0, no params here for
	// simplicity) + 2-byte byte count + a short data region.
	data := make([]byte, types.HeaderSize+1+2+4)
	data[offProtocolID] = 0xFF
	data[offProtocolID+1] = 'S'
	data[offProtocolID+2] = 'M'
	data[offProtocolID+3] = 'B'
	data[offCommand] = byte(types.CommandNTCreateAndX)
	data[offTreeID] = 0x01
	data[offMultiplexID] = 0x2A
	data[paramsOffset] = 0 // word count
	bcOff := paramsOffset + 1
	data[bcOff] = 4
	data[bcOff+1] = 0
	copy(data[bcOff+2:], []byte{'a', 'b', 'c', 'd'})
	return data
}

func TestParseValid(t *testing.T) {
	data := rawNTCreateAndXRequest()
	f, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, types.CommandNTCreateAndX, f.Command())
	assert.Equal(t, uint16(1), f.TreeID())
	assert.Equal(t, uint16(0x2A), f.MultiplexID())
	assert.Equal(t, 4, f.ByteCount())
	assert.Equal(t, []byte("abcd"), f.ByteRegion())
	assert.False(t, f.IsResponse())
}

func TestParseTooShort(t *testing.T) {
	_, err := Parse(make([]byte, types.HeaderSize))
	assert.ErrorIs(t, err, types.ErrMalformedFrame)
}

func TestParseInvalidProtocolID(t *testing.T) {
	data := rawNTCreateAndXRequest()
	data[offProtocolID] = 0x00
	_, err := Parse(data)
	assert.ErrorIs(t, err, types.ErrMalformedFrame)
}

func TestParseByteCountOverrunsMessage(t *testing.T) {
	data := rawNTCreateAndXRequest()
	bcOff := paramsOffset + 1
	data[bcOff] = 0xFF
	data[bcOff+1] = 0xFF
	_, err := Parse(data)
	assert.ErrorIs(t, err, types.ErrMalformedFrame)
}

func TestParameterWordsAndLong(t *testing.T) {
	data := make([]byte, types.HeaderSize+1+6+2)
	data[offProtocolID] = 0xFF
	data[offProtocolID+1] = 'S'
	data[offProtocolID+2] = 'M'
	data[offProtocolID+3] = 'B'
	data[paramsOffset] = 3 // 3 parameter words
	f := New(data)
	f.SetParameterWord(0, 0x1234)
	f.SetParameterLong(1, 0xCAFEBABE)

	assert.Equal(t, uint16(0x1234), f.ParameterWord(0))
	assert.Equal(t, uint32(0xCAFEBABE), f.ParameterLong(1))
}

func TestSetResponseFlag(t *testing.T) {
	data := rawNTCreateAndXRequest()
	f := New(data)
	assert.False(t, f.IsResponse())
	f.SetResponse(true)
	assert.True(t, f.IsResponse())
	f.SetResponse(false)
	assert.False(t, f.IsResponse())
}

func TestUnicodeFlag(t *testing.T) {
	data := rawNTCreateAndXRequest()
	f := New(data)
	assert.False(t, f.IsUnicode())
	f.SetFlags2(types.Flags2Unicode)
	assert.True(t, f.IsUnicode())
}

func TestSetLongErrorCode(t *testing.T) {
	data := rawNTCreateAndXRequest()
	f := New(data)
	f.SetLongErrorCode(types.StatusAccessDenied)
	assert.True(t, f.Flags2()&types.Flags2LongErrorCode != 0)
}

func TestSetLegacyErrorCode(t *testing.T) {
	data := rawNTCreateAndXRequest()
	f := New(data)
	f.SetFlags2(types.Flags2LongErrorCode)
	f.SetLegacyErrorCode(types.LegacyCode{Class: types.ErrClassDOS, Code: 0x0006})
	assert.False(t, f.Flags2()&types.Flags2LongErrorCode != 0)
}

func TestNewResponseCopiesHeaderFields(t *testing.T) {
	reqData := rawNTCreateAndXRequest()
	req, err := Parse(reqData)
	require.NoError(t, err)

	resp := NewResponse(req, 2, 0)
	assert.True(t, resp.IsResponse())
	assert.Equal(t, req.TreeID(), resp.TreeID())
	assert.Equal(t, req.ProcessID(), resp.ProcessID())
	assert.Equal(t, req.UID(), resp.UID())
	assert.Equal(t, req.MultiplexID(), resp.MultiplexID())
	assert.Equal(t, req.Command(), resp.Command())
	assert.Equal(t, 2, resp.WordCount())
	assert.Equal(t, 0, resp.ByteCount())
}
