// Package dcebuf provides a growable, cursor-based buffer for DCE/RPC PDUs
// carried over named pipes: the 16-byte common header, the BIND/BIND_ACK
// and REQUEST/RESPONSE bodies built on top of it, and alignment-aware
// primitive accessors for NDR-encoded stub data.
//
// # Common PDU Header (16 bytes)
//
//	┌────────┬──────┬─────────────────┬─────────────────────────────────────┐
//	│ Offset │ Size │ Field           │ Description                         │
//	├────────┼──────┼─────────────────┼─────────────────────────────────────┤
//	│   0    │  1   │ VersionMajor    │ RPC major version (5)               │
//	│   1    │  1   │ VersionMinor    │ RPC minor version (0)                │
//	│   2    │  1   │ PacketType      │ PDU type (BIND, BIND_ACK, …)         │
//	│   3    │  1   │ Flags           │ first/last fragment, etc.            │
//	│   4    │  4   │ DataRep         │ NDR data representation              │
//	│   8    │  2   │ FragLength      │ Total fragment length incl. header   │
//	│  10    │  2   │ AuthLength      │ Authentication verifier length       │
//	│  12    │  4   │ CallID          │ Call identifier                      │
//	└────────┴──────┴─────────────────┴─────────────────────────────────────┘
//
// Buffer wraps wire's primitive codec with a read/write cursor so the
// dcerpc handler can walk a PDU's body (presentation contexts, transfer
// syntax UUIDs, operation stub data) without repeating offset arithmetic.
//
// Reference: [C706] DCE 1.1: Remote Procedure Call, Section 12.6
// Reference: [MS-RPCE] Remote Procedure Call Protocol Extensions
package dcebuf
