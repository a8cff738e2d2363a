package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// WordAlign rounds p up to the next 2-byte boundary: (p+1) &^ 1.
func WordAlign(p int) int {
	return (p + 1) &^ 1
}

// LongwordAlign rounds p up to the next 4-byte boundary: (p+3) &^ 3.
func LongwordAlign(p int) int {
	return (p + 3) &^ 3
}

// utf16LE is the shared UTF-16LE codec used for Unicode string fields. Using
// golang.org/x/text here (rather than a hand-rolled surrogate-pair loop)
// matches the rest of the corpus's preference for x/text over ad-hoc
// encoding code.
var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ReadU8 reads a single byte at offset off.
func ReadU8(buf []byte, off int) (uint8, error) {
	if off < 0 || off+1 > len(buf) {
		return 0, fmt.Errorf("read u8 at %d: %w", off, types.ErrShortBuffer)
	}
	return buf[off], nil
}

// ReadU16 reads a little-endian uint16 at offset off.
func ReadU16(buf []byte, off int) (uint16, error) {
	if off < 0 || off+2 > len(buf) {
		return 0, fmt.Errorf("read u16 at %d: %w", off, types.ErrShortBuffer)
	}
	return binary.LittleEndian.Uint16(buf[off:]), nil
}

// ReadU32 reads a little-endian uint32 at offset off.
func ReadU32(buf []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(buf) {
		return 0, fmt.Errorf("read u32 at %d: %w", off, types.ErrShortBuffer)
	}
	return binary.LittleEndian.Uint32(buf[off:]), nil
}

// ReadU64 reads a little-endian uint64 at offset off.
func ReadU64(buf []byte, off int) (uint64, error) {
	if off < 0 || off+8 > len(buf) {
		return 0, fmt.Errorf("read u64 at %d: %w", off, types.ErrShortBuffer)
	}
	return binary.LittleEndian.Uint64(buf[off:]), nil
}

// ReadLong reads two consecutive 16-bit parameter words as a single
// little-endian 32-bit integer: low word first, high word second. This is
// the classic "parameter_long(i)" word-pair accessor.
func ReadLong(lowWord, highWord uint16) uint32 {
	return uint32(lowWord) | uint32(highWord)<<16
}

// PutU8 writes a single byte at offset off.
func PutU8(buf []byte, off int, v uint8) error {
	if off < 0 || off+1 > len(buf) {
		return fmt.Errorf("write u8 at %d: %w", off, types.ErrBufferOverflow)
	}
	buf[off] = v
	return nil
}

// PutU16 writes a little-endian uint16 at offset off.
func PutU16(buf []byte, off int, v uint16) error {
	if off < 0 || off+2 > len(buf) {
		return fmt.Errorf("write u16 at %d: %w", off, types.ErrBufferOverflow)
	}
	binary.LittleEndian.PutUint16(buf[off:], v)
	return nil
}

// PutU32 writes a little-endian uint32 at offset off.
func PutU32(buf []byte, off int, v uint32) error {
	if off < 0 || off+4 > len(buf) {
		return fmt.Errorf("write u32 at %d: %w", off, types.ErrBufferOverflow)
	}
	binary.LittleEndian.PutUint32(buf[off:], v)
	return nil
}

// PutU64 writes a little-endian uint64 at offset off.
func PutU64(buf []byte, off int, v uint64) error {
	if off < 0 || off+8 > len(buf) {
		return fmt.Errorf("write u64 at %d: %w", off, types.ErrBufferOverflow)
	}
	binary.LittleEndian.PutUint64(buf[off:], v)
	return nil
}

// ReadASCIIZ reads a NUL-terminated ASCII string starting at off. It returns
// the decoded string and the offset immediately after the terminating NUL.
func ReadASCIIZ(buf []byte, off int) (string, int, error) {
	if off < 0 || off > len(buf) {
		return "", off, fmt.Errorf("read asciiz at %d: %w", off, types.ErrShortBuffer)
	}
	end := off
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	if end >= len(buf) {
		return "", off, fmt.Errorf("read asciiz at %d: %w", off, types.ErrShortBuffer)
	}
	return string(buf[off:end]), end + 1, nil
}

// PutASCIIZ writes s followed by a NUL terminator at off, returning the
// offset immediately after the NUL.
func PutASCIIZ(buf []byte, off int, s string) (int, error) {
	need := len(s) + 1
	if off < 0 || off+need > len(buf) {
		return off, fmt.Errorf("write asciiz at %d: %w", off, types.ErrBufferOverflow)
	}
	copy(buf[off:], s)
	buf[off+len(s)] = 0
	return off + need, nil
}

// ReadUnicodeZ reads a NUL-terminated UTF-16LE string starting at off
// (which must already be word-aligned by the caller, per the
// alignment rule for Unicode byte regions). Returns the decoded string and
// the offset immediately after the 2-byte NUL terminator.
func ReadUnicodeZ(buf []byte, off int) (string, int, error) {
	if off < 0 || off > len(buf) {
		return "", off, fmt.Errorf("read unicodez at %d: %w", off, types.ErrShortBuffer)
	}
	end := off
	for end+1 < len(buf) && !(buf[end] == 0 && buf[end+1] == 0) {
		end += 2
	}
	if end+1 >= len(buf) {
		return "", off, fmt.Errorf("read unicodez at %d: %w", off, types.ErrShortBuffer)
	}
	s, err := utf16LE.NewDecoder().Bytes(buf[off:end])
	if err != nil {
		return "", off, fmt.Errorf("decode utf16le at %d: %w", off, err)
	}
	return string(s), end + 2, nil
}

// ReadUnicodeN reads exactly n raw bytes of UTF-16LE text (no terminator,
// length known up front — used for NTCreateAndX's name_len-prefixed
// filename) starting at off.
func ReadUnicodeN(buf []byte, off, n int) (string, error) {
	if off < 0 || n < 0 || off+n > len(buf) {
		return "", fmt.Errorf("read unicode[%d] at %d: %w", n, off, types.ErrShortBuffer)
	}
	s, err := utf16LE.NewDecoder().Bytes(buf[off : off+n])
	if err != nil {
		return "", fmt.Errorf("decode utf16le at %d: %w", off, err)
	}
	return string(s), nil
}

// PutUnicodeZ writes s as UTF-16LE followed by a 2-byte NUL terminator at
// off, returning the offset immediately after the terminator.
func PutUnicodeZ(buf []byte, off int, s string) (int, error) {
	enc, err := utf16LE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return off, fmt.Errorf("encode utf16le: %w", err)
	}
	need := len(enc) + 2
	if off < 0 || off+need > len(buf) {
		return off, fmt.Errorf("write unicodez at %d: %w", off, types.ErrBufferOverflow)
	}
	copy(buf[off:], enc)
	buf[off+len(enc)] = 0
	buf[off+len(enc)+1] = 0
	return off + need, nil
}

// ReadUUID reads a 16-byte UUID at off, optionally preceded by a 4-byte
// referent-present marker (non-zero = pointer present) the way DCE pointer
// contexts encode embedded UUIDs. BIND and BIND_ACK carry their syntax
// UUIDs without the marker. It returns the UUID and the offset past it.
func ReadUUID(buf []byte, off int, withReferent bool) (uuid.UUID, int, error) {
	if withReferent {
		if _, err := ReadU32(buf, off); err != nil {
			return uuid.Nil, off, fmt.Errorf("read uuid referent: %w", err)
		}
		off += 4
	}
	if off < 0 || off+16 > len(buf) {
		return uuid.Nil, off, fmt.Errorf("read uuid at %d: %w", off, types.ErrShortBuffer)
	}
	// DCE UUIDs are mixed-endian on the wire: time_low/time_mid/time_hi are
	// little-endian, the clock-seq/node bytes are big-endian (as-is).
	var raw [16]byte
	copy(raw[:], buf[off:off+16])
	var be [16]byte
	binary.BigEndian.PutUint32(be[0:4], binary.LittleEndian.Uint32(raw[0:4]))
	binary.BigEndian.PutUint16(be[4:6], binary.LittleEndian.Uint16(raw[4:6]))
	binary.BigEndian.PutUint16(be[6:8], binary.LittleEndian.Uint16(raw[6:8]))
	copy(be[8:16], raw[8:16])
	id, err := uuid.FromBytes(be[:])
	if err != nil {
		return uuid.Nil, off, fmt.Errorf("parse uuid: %w", err)
	}
	return id, off + 16, nil
}

// PutUUID writes id at off in DCE mixed-endian wire form, optionally
// prefixed with a non-zero 4-byte referent-present marker. It returns the
// offset past the written bytes.
func PutUUID(buf []byte, off int, id uuid.UUID, withReferent bool) (int, error) {
	if withReferent {
		if err := PutU32(buf, off, 0x00020000); err != nil {
			return off, fmt.Errorf("write uuid referent: %w", err)
		}
		off += 4
	}
	if off < 0 || off+16 > len(buf) {
		return off, fmt.Errorf("write uuid at %d: %w", off, types.ErrBufferOverflow)
	}
	raw := [16]byte(id)
	var wire [16]byte
	binary.LittleEndian.PutUint32(wire[0:4], binary.BigEndian.Uint32(raw[0:4]))
	binary.LittleEndian.PutUint16(wire[4:6], binary.BigEndian.Uint16(raw[4:6]))
	binary.LittleEndian.PutUint16(wire[6:8], binary.BigEndian.Uint16(raw[6:8]))
	copy(wire[8:16], raw[8:16])
	copy(buf[off:off+16], wire[:])
	return off + 16, nil
}
