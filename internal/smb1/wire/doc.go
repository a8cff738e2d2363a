// Package wire provides the little-endian wire codec shared by the SMB1
// frame view and the DCE/RPC buffer: primitive integer pack/unpack, word and
// longword alignment, ASCII and UTF-16LE string encoding, and 16-byte UUID
// packing with the leading referent-present marker DCE pointer contexts use.
//
// All reads fail with an error wrapping types.ErrShortBuffer on a short
// buffer; all writes fail with an error wrapping types.ErrBufferOverflow
// when the destination has insufficient capacity. Callers above this layer
// (frame, dcebuf) translate those into the richer types.ProtocolError the
// dispatcher turns into an SMB error response. Neither direction ever
// panics on attacker-controlled input.
package wire
