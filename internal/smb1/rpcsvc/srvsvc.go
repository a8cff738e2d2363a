// Package rpcsvc implements a minimal SRVSVC (Server Service) RPC endpoint
// for the \PIPE\srvsvc named pipe: just enough of NetrShareEnum to let a
// client enumerate the shares this core knows about. It exists to give the
// RPC Endpoint Registry something real to dispatch to end-to-end; it is not
// a general SRVSVC implementation.
//
// Reference: [MS-SRVS] Server Service Remote Protocol, section 3.1.4.8
// (NetrShareEnum).
package rpcsvc

import (
	"context"
	"encoding/binary"

	"github.com/opencifs/smb1ipc/internal/smb1/rpcreg"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
	"github.com/opencifs/smb1ipc/internal/smb1/wire"
)

// OpNetrShareEnum is the only opnum this endpoint answers.
const OpNetrShareEnum uint16 = 15

// Share describes one entry NetrShareEnum level 1 reports.
type Share struct {
	Name    string
	Type    uint32
	Comment string
}

// Share type values [MS-SRVS] 2.2.2.4.
const (
	ShareTypeDiskTree uint32 = 0x00000000
	ShareTypeIPC      uint32 = 0x00000003
	ShareTypeSpecial  uint32 = 0x80000000
)

// NERRSuccess is the Win32 status NetrShareEnum returns in its stub on
// success ([MS-SRVS] return codes are Win32, not NT_STATUS).
const NERRSuccess uint32 = 0

// Endpoint services SRVSVC requests against a fixed share list. It
// implements rpcreg.Endpoint.
type Endpoint struct {
	shares []Share
}

// NewEndpoint returns an Endpoint that reports shares for NetrShareEnum.
func NewEndpoint(shares []Share) *Endpoint {
	return &Endpoint{shares: shares}
}

// ProcessRequest dispatches on req.OpNum. Any opnum other than
// NetrShareEnum is refused with ErrUnsupportedFunction, which the caller
// turns into a FAULT PDU.
func (e *Endpoint) ProcessRequest(ctx context.Context, req *rpcreg.Request) (*rpcreg.Response, error) {
	switch req.OpNum {
	case OpNetrShareEnum:
		return &rpcreg.Response{Stub: e.shareEnumLevel1()}, nil
	default:
		return nil, types.ErrUnsupportedFunction
	}
}

// shareEnumLevel1 builds the NDR-encoded NetrShareEnum response stub for
// info level 1, the only level this endpoint supports. Clients requesting
// another level get the same level-1 payload back with Level left at 1 —
// acceptable for the read-only enumeration this core exists to demonstrate.
func (e *Endpoint) shareEnumLevel1() []byte {
	n := len(e.shares)
	buf := make([]byte, 0, 256+64*n)

	buf = appendU32(buf, 1)          // Level
	buf = appendU32(buf, 1)          // SHARE_ENUM_UNION switch (level 1)
	buf = appendU32(buf, 0x00020000) // SHARE_INFO_1_CONTAINER referent
	buf = appendU32(buf, uint32(n))  // EntriesRead

	if n == 0 {
		buf = appendU32(buf, 0) // Buffer: null pointer
		buf = appendU32(buf, uint32(n))
		buf = appendU32(buf, 0) // ResumeHandle: null
		buf = appendU32(buf, NERRSuccess)
		return buf
	}

	buf = appendU32(buf, 0x00020004) // Buffer referent
	buf = appendU32(buf, uint32(n))  // conformant array max count

	ptr := uint32(0x00020008)
	for i, s := range e.shares {
		buf = appendU32(buf, ptr+uint32(i*8))   // shi1_netname referent
		buf = appendU32(buf, s.Type)            // shi1_type
		buf = appendU32(buf, ptr+uint32(i*8)+4) // shi1_remark referent
	}
	for _, s := range e.shares {
		buf = appendConformantString(buf, s.Name)
		buf = appendConformantString(buf, s.Comment)
	}

	buf = appendU32(buf, uint32(n)) // TotalEntries
	buf = appendU32(buf, 0)         // ResumeHandle: null
	buf = appendU32(buf, NERRSuccess)
	return buf
}

// appendConformantString appends an NDR conformant-and-varying UTF-16LE
// string: MaxCount/Offset/ActualCount followed by the NUL-terminated
// characters, padded to a 4-byte boundary.
func appendConformantString(buf []byte, s string) []byte {
	withNul := s + "\x00"
	count := uint32(len([]rune(withNul)))
	buf = appendU32(buf, count) // MaxCount
	buf = appendU32(buf, 0)     // Offset
	buf = appendU32(buf, count) // ActualCount

	start := len(buf)
	buf = append(buf, make([]byte, int(count)*2)...)
	if _, err := wire.PutUnicodeZ(buf[start:], 0, s); err != nil {
		// s is always representable in UTF-16LE; this can't happen for the
		// fixed share names this endpoint is configured with.
		return buf
	}
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
