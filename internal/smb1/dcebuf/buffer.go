package dcebuf

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/opencifs/smb1ipc/internal/smb1/types"
	"github.com/opencifs/smb1ipc/internal/smb1/wire"
)

// HeaderSize is the size of the common DCE/RPC PDU header.
const HeaderSize = 16

// Header field offsets within the first 16 bytes.
const (
	offVersionMajor = 0
	offVersionMinor = 1
	offPacketType   = 2
	offFlags        = 3
	offDataRep      = 4
	offFragLength   = 8
	offAuthLength   = 10
	offCallID       = 12
)

// Buffer is a growable byte container with independent read and write
// cursors, used to parse and build DCE/RPC PDUs. A Buffer constructed over
// an incoming PDU (New) is read-only in practice but the write cursor is
// still usable for in-place field patches; a Buffer constructed for
// building a reply (NewEmpty) grows its backing slice as data is written.
type Buffer struct {
	data     []byte
	readPos  int
	writePos int
}

// New wraps an existing PDU for reading. The read cursor starts at 0.
func New(data []byte) *Buffer {
	return &Buffer{data: data}
}

// NewEmpty returns a Buffer with capacity reserved for building a PDU from
// scratch. Its backing slice starts empty and grows on Put*.
func NewEmpty(capacityHint int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacityHint)}
}

// Bytes returns the buffer's current backing slice.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Pos returns the current read cursor position.
func (b *Buffer) Pos() int {
	return b.readPos
}

// Seek repositions the read cursor.
func (b *Buffer) Seek(pos int) {
	b.readPos = pos
}

// Remaining returns the number of unread bytes from the read cursor.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.readPos
}

// AlignRead advances the read cursor up to the next n-byte boundary
// (n must be a power of two), matching NDR's alignment rules for
// multi-byte fields embedded in stub data.
func (b *Buffer) AlignRead(n int) {
	switch n {
	case 2:
		b.readPos = wire.WordAlign(b.readPos)
	case 4:
		b.readPos = wire.LongwordAlign(b.readPos)
	default:
		rem := b.readPos % n
		if rem != 0 {
			b.readPos += n - rem
		}
	}
}

// GetByte reads one byte at the current read cursor and advances it,
// aligning first to align bytes if align > 1.
func (b *Buffer) GetByte(align int) (byte, error) {
	if align > 1 {
		b.AlignRead(align)
	}
	v, err := wire.ReadU8(b.data, b.readPos)
	if err != nil {
		return 0, fmt.Errorf("dcebuf: get_byte at %d: %w", b.readPos, err)
	}
	b.readPos++
	return v, nil
}

// GetShort reads a 2-byte aligned little-endian uint16 and advances the
// cursor.
func (b *Buffer) GetShort() (uint16, error) {
	b.AlignRead(2)
	v, err := wire.ReadU16(b.data, b.readPos)
	if err != nil {
		return 0, fmt.Errorf("dcebuf: get_short at %d: %w", b.readPos, err)
	}
	b.readPos += 2
	return v, nil
}

// GetInt reads a 4-byte aligned little-endian uint32 and advances the
// cursor.
func (b *Buffer) GetInt() (uint32, error) {
	b.AlignRead(4)
	v, err := wire.ReadU32(b.data, b.readPos)
	if err != nil {
		return 0, fmt.Errorf("dcebuf: get_int at %d: %w", b.readPos, err)
	}
	b.readPos += 4
	return v, nil
}

// GetLong reads an 8-byte aligned little-endian uint64 (NDR "hyper") and
// advances the cursor.
func (b *Buffer) GetLong() (uint64, error) {
	b.AlignRead(8)
	v, err := wire.ReadU64(b.data, b.readPos)
	if err != nil {
		return 0, fmt.Errorf("dcebuf: get_long at %d: %w", b.readPos, err)
	}
	b.readPos += 8
	return v, nil
}

// GetUUID reads a 16-byte DCE UUID, aligned to 4 bytes, optionally preceded
// by a 4-byte referent-present marker. It advances the cursor past what it
// consumed.
func (b *Buffer) GetUUID(withReferent bool) (uuid.UUID, error) {
	b.AlignRead(4)
	id, next, err := wire.ReadUUID(b.data, b.readPos, withReferent)
	if err != nil {
		return uuid.Nil, fmt.Errorf("dcebuf: get_uuid at %d: %w", b.readPos, err)
	}
	b.readPos = next
	return id, nil
}

// GetBytes reads n raw bytes at the current cursor without alignment and
// advances it.
func (b *Buffer) GetBytes(n int) ([]byte, error) {
	if b.readPos < 0 || b.readPos+n > len(b.data) {
		return nil, fmt.Errorf("dcebuf: get_bytes[%d] at %d: %w", n, b.readPos, types.ErrShortBuffer)
	}
	v := b.data[b.readPos : b.readPos+n]
	b.readPos += n
	return v, nil
}

// ensure grows the backing slice so it has at least n bytes.
func (b *Buffer) ensure(n int) {
	if len(b.data) >= n {
		return
	}
	grown := make([]byte, n)
	copy(grown, b.data)
	b.data = grown
}

// PutByte writes a byte at the current write cursor and advances it.
func (b *Buffer) PutByte(v byte) {
	b.ensure(b.writePos + 1)
	b.data[b.writePos] = v
	b.writePos++
}

// PutShort writes a little-endian uint16 at the current write cursor and
// advances it.
func (b *Buffer) PutShort(v uint16) {
	b.ensure(b.writePos + 2)
	_ = wire.PutU16(b.data, b.writePos, v)
	b.writePos += 2
}

// PutInt writes a little-endian uint32 at the current write cursor and
// advances it.
func (b *Buffer) PutInt(v uint32) {
	b.ensure(b.writePos + 4)
	_ = wire.PutU32(b.data, b.writePos, v)
	b.writePos += 4
}

// PutLong writes a little-endian uint64 at the current write cursor and
// advances it.
func (b *Buffer) PutLong(v uint64) {
	b.ensure(b.writePos + 8)
	_ = wire.PutU64(b.data, b.writePos, v)
	b.writePos += 8
}

// PutUUID writes a 16-byte DCE UUID at the current write cursor, optionally
// preceded by a referent-present marker, and advances the cursor.
func (b *Buffer) PutUUID(id uuid.UUID, withReferent bool) {
	need := 16
	if withReferent {
		need += 4
	}
	b.ensure(b.writePos + need)
	next, _ := wire.PutUUID(b.data, b.writePos, id, withReferent)
	b.writePos = next
}

// PutBytes appends raw bytes at the current write cursor and advances it.
func (b *Buffer) PutBytes(v []byte) {
	b.ensure(b.writePos + len(v))
	copy(b.data[b.writePos:], v)
	b.writePos += len(v)
}

// PutASCIIZ writes a NUL-terminated ASCII string at the current write
// cursor and advances it.
func (b *Buffer) PutASCIIZ(s string) {
	b.ensure(b.writePos + len(s) + 1)
	next, _ := wire.PutASCIIZ(b.data, b.writePos, s)
	b.writePos = next
}

// WritePos returns the current write cursor position.
func (b *Buffer) WritePos() int {
	return b.writePos
}

// AlignWrite pads the write cursor up to the next n-byte boundary
// (n must be a power of two) with zero bytes.
func (b *Buffer) AlignWrite(n int) {
	var target int
	switch n {
	case 2:
		target = wire.WordAlign(b.writePos)
	case 4:
		target = wire.LongwordAlign(b.writePos)
	default:
		rem := b.writePos % n
		target = b.writePos
		if rem != 0 {
			target += n - rem
		}
	}
	if pad := target - b.writePos; pad > 0 {
		b.PutBytes(make([]byte, pad))
	}
}

// CopyData copies length bytes from the buffer's backing slice starting at
// offset into dst, returning the number of bytes copied. It does not touch
// either cursor.
func (b *Buffer) CopyData(dst []byte, offset, length int) (int, error) {
	if offset < 0 || offset+length > len(b.data) {
		return 0, fmt.Errorf("dcebuf: copy_data[%d] at %d: %w", length, offset, types.ErrShortBuffer)
	}
	return copy(dst, b.data[offset:offset+length]), nil
}

// ---------------------------------------------------------------------------
// Common PDU header accessors — fixed offsets, independent of the cursors.
// ---------------------------------------------------------------------------

// VersionMajor returns the RPC major version from the header.
func (b *Buffer) VersionMajor() byte { return b.data[offVersionMajor] }

// VersionMinor returns the RPC minor version from the header.
func (b *Buffer) VersionMinor() byte { return b.data[offVersionMinor] }

// PacketType returns the PDU type from the header.
func (b *Buffer) PacketType() byte { return b.data[offPacketType] }

// Flags returns the PDU flags from the header.
func (b *Buffer) Flags() byte { return b.data[offFlags] }

// FragLength returns the declared fragment length from the header.
func (b *Buffer) FragLength() uint16 {
	v, _ := wire.ReadU16(b.data, offFragLength)
	return v
}

// AuthLength returns the authentication verifier length from the header.
func (b *Buffer) AuthLength() uint16 {
	v, _ := wire.ReadU16(b.data, offAuthLength)
	return v
}

// CallID returns the call identifier from the header.
func (b *Buffer) CallID() uint32 {
	v, _ := wire.ReadU32(b.data, offCallID)
	return v
}

// PutHeader writes the 16-byte common PDU header at the start of the
// buffer (RPC version 5.0, the given PDU type, flags, the standard little
// endian/ASCII/IEEE data representation, fragLen, zero auth length, and
// callID), positioning the write cursor just past it.
func (b *Buffer) PutHeader(pduType, flags uint8, fragLen uint16, callID uint32) {
	b.ensure(HeaderSize)
	b.data[offVersionMajor] = 5
	b.data[offVersionMinor] = 0
	b.data[offPacketType] = pduType
	b.data[offFlags] = flags
	copy(b.data[offDataRep:offDataRep+4], types.DataRepLEASCIIIEEE[:])
	_ = wire.PutU16(b.data, offFragLength, fragLen)
	_ = wire.PutU16(b.data, offAuthLength, 0)
	_ = wire.PutU32(b.data, offCallID, callID)
	b.writePos = HeaderSize
}

// PatchFragLength overwrites the header's FragLength field after the body
// has been built and its final size is known, without disturbing either
// cursor.
func (b *Buffer) PatchFragLength(fragLen uint16) {
	_ = wire.PutU16(b.data, offFragLength, fragLen)
}

// PutBindAckHeader writes a BIND_ACK PDU's common header: single-fragment
// flags, the standard data representation, and the given call id. fragLen
// should be patched via PatchFragLength once the full body size is known.
func (b *Buffer) PutBindAckHeader(callID uint32) {
	b.PutHeader(types.PDUBindAck, types.PDUFlagOnlyFrag, 0, callID)
}
