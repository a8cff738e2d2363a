// Package frame provides a view over a single SMB1 message: the 32-byte
// SMB1 header, the variable-length parameter-word region, and the
// byte-count-prefixed data region. The 4-byte NBT session-service prefix
// is not part of the view; offset 0 is the first header byte.
//
// # Header Structure (32 bytes)
//
//	┌────────┬──────┬──────────────────┬────────────────────────────────────┐
//	│ Offset │ Size │ Field            │ Description                        │
//	├────────┼──────┼──────────────────┼────────────────────────────────────┤
//	│   0    │  4   │ ProtocolID       │ 0xFF 'S' 'M' 'B' (0x424D53FF LE)   │
//	│   4    │  1   │ Command          │ SMB1 command code                  │
//	│   5    │  4   │ Status           │ NT_STATUS or legacy (class, code)  │
//	│   9    │  1   │ Flags            │ Header flags                       │
//	│  10    │  2   │ Flags2           │ Extended header flags               │
//	│  12    │ 12   │ (PID high/sig/…) │ Extra, unused by this core          │
//	│  24    │  2   │ TreeID           │ Tree connection identifier          │
//	│  26    │  2   │ ProcessID        │ Client process id                   │
//	│  28    │  2   │ UID              │ Session/user id                     │
//	│  30    │  2   │ MultiplexID      │ Per-request sequencing id (MID)     │
//	└────────┴──────┴──────────────────┴────────────────────────────────────┘
//
// Following the header is the parameter-word region: a 1-byte word count
// followed by that many little-endian 16-bit words, then the byte-count
// region: a 2-byte count followed by that many bytes. Frame centralizes
// offset arithmetic over this layout so command handlers never touch raw
// byte slices directly.
//
// Reference: [MS-CIFS] Common Internet File System (CIFS) Protocol
package frame
