// Package types contains SMB1 (CIFS) protocol constants and type definitions
// for the IPC$/DCE-RPC core.
//
// This package provides type-safe definitions for the SMB1 elements this core
// touches: command codes, flags2 bits, the named-pipe kind enum, and the
// DCE/RPC PDU types used by the framing layer. It deliberately omits the
// rest of the SMB1 command set (file I/O on disk shares, locking, search) —
// those belong to the on-disk backend, which is out of scope here.
//
// Reference: [MS-CIFS] Common Internet File System (CIFS) Protocol
// Reference: [MS-RPCE] Remote Procedure Call Protocol Extensions
package types

// =============================================================================
// Protocol Identifiers
// =============================================================================

// SMB1ProtocolID is the SMB1 protocol identifier (little-endian: 0xFF 'S' 'M' 'B').
const SMB1ProtocolID uint32 = 0x424D53FF

// NBTHeaderSize is the fixed 4-byte NetBIOS session-service prefix in front of
// every SMB1 message: 1 byte type, 3 bytes big-endian length.
const NBTHeaderSize = 4

// HeaderSize is the fixed 32-byte SMB1 header that follows the NBT prefix.
const HeaderSize = 32

// =============================================================================
// Command Codes
// =============================================================================

// Command represents an SMB1 command code [MS-CIFS] Section 2.2.2.1.
type Command uint8

const (
	CommandOpen         Command = 0x02 // SMB_COM_OPEN
	CommandCreate       Command = 0x03 // SMB_COM_CREATE
	CommandClose        Command = 0x04 // SMB_COM_CLOSE
	CommandRead         Command = 0x0A // SMB_COM_READ
	CommandWrite        Command = 0x0B // SMB_COM_WRITE
	CommandTransaction  Command = 0x25 // SMB_COM_TRANSACTION
	CommandTransaction2 Command = 0x32 // SMB_COM_TRANSACTION2
	CommandNTTransact   Command = 0xA0 // SMB_COM_NT_TRANSACT
	CommandNTCreateAndX Command = 0xA2 // SMB_COM_NT_CREATE_ANDX
	CommandOpenAndX     Command = 0x2D // SMB_COM_OPEN_ANDX
	CommandReadAndX     Command = 0x2E // SMB_COM_READ_ANDX
	CommandWriteAndX    Command = 0x2F // SMB_COM_WRITE_ANDX
)

// String returns a human-readable command name for logging.
func (c Command) String() string {
	switch c {
	case CommandOpen:
		return "OPEN"
	case CommandCreate:
		return "CREATE"
	case CommandClose:
		return "CLOSE"
	case CommandRead:
		return "READ"
	case CommandWrite:
		return "WRITE"
	case CommandTransaction:
		return "TRANSACTION"
	case CommandTransaction2:
		return "TRANSACTION2"
	case CommandNTTransact:
		return "NT_TRANSACT"
	case CommandNTCreateAndX:
		return "NT_CREATE_ANDX"
	case CommandOpenAndX:
		return "OPEN_ANDX"
	case CommandReadAndX:
		return "READ_ANDX"
	case CommandWriteAndX:
		return "WRITE_ANDX"
	default:
		return "UNKNOWN"
	}
}

// =============================================================================
// Header Flags / Flags2
// =============================================================================

const (
	// FlagResponse marks a frame as a server response (header flags byte, bit 7).
	FlagResponse uint8 = 0x80
)

const (
	// Flags2LongNames indicates long (non-8.3) name support.
	Flags2LongNames uint16 = 0x0001
	// Flags2Unicode indicates the byte region uses UTF-16LE strings.
	Flags2Unicode uint16 = 0x8000
	// Flags2LongErrorCode indicates the 4-byte Status field carries an NT
	// status code rather than a legacy DOS (class, code) pair.
	Flags2LongErrorCode uint16 = 0x4000
	// Flags2ExtendedSecurity negotiates extended (SPNEGO) security.
	Flags2ExtendedSecurity uint16 = 0x0800
)

// =============================================================================
// Transaction sub-functions
// =============================================================================

// TransactFunction identifies the TRANSACTION/NT_TRANSACT sub-function,
// taken from setup word 0 of the transaction.
type TransactFunction uint16

const (
	// TransactNmPipe carries a DCE/RPC PDU over a named pipe
	// (TRANS_TRANSACT_NMPIPE, [MS-CIFS] 2.2.7.8).
	TransactNmPipe TransactFunction = 0x0026
	// TransactSetNmPHandState sets named-pipe handle state bits
	// (TRANS_SET_NMPIPE_STATE, [MS-CIFS] 2.2.7.6).
	TransactSetNmPHandState TransactFunction = 0x0001
	// TransactQueryNmPHandState queries named-pipe handle state bits
	// (TRANS_QUERY_NMPIPE_STATE, [MS-CIFS] 2.2.7.7).
	TransactQueryNmPHandState TransactFunction = 0x0021
	// Trans2QueryFile is the TRANSACTION2 QUERY_FILE_INFORMATION sub-function.
	Trans2QueryFile TransactFunction = 0x0007
	// TransactWaitNmPipe waits for an instance of the named pipe to become
	// available (TRANS_WAIT_NMPIPE, [MS-CIFS] 2.2.7.9). This core has no
	// queueing/back-pressure model for pipe instances, so it always
	// answers immediately with NOT_SUPPORTED.
	TransactWaitNmPipe TransactFunction = 0x0053
	// PipeLanman identifies a transaction against \PIPE\LANMAN (RAP).
	PipeLanman TransactFunction = 0xFFFF // sentinel: selected when setup[0] is 0xFFFF; the transaction name is not examined
)

// =============================================================================
// Named Pipe Kind
// =============================================================================

// PipeKind identifies which well-known RPC service a \PIPE\<name> path names.
type PipeKind int

const (
	PipeInvalid PipeKind = iota
	PipeSRVSVC
	PipeWKSSVC
	PipeSAMR
	PipeWINREG
	PipeNETLOGON
	PipeLSARPC
	PipeEVENTLOG
	PipeATSVC
	PipeSPOOLSS
)

// String returns the canonical lower-case pipe name, used both for logging
// and as the secondary address echoed back in BIND_ACK.
func (k PipeKind) String() string {
	switch k {
	case PipeSRVSVC:
		return "srvsvc"
	case PipeWKSSVC:
		return "wkssvc"
	case PipeSAMR:
		return "samr"
	case PipeWINREG:
		return "winreg"
	case PipeNETLOGON:
		return "netlogon"
	case PipeLSARPC:
		return "lsarpc"
	case PipeEVENTLOG:
		return "eventlog"
	case PipeATSVC:
		return "atsvc"
	case PipeSPOOLSS:
		return "spoolss"
	default:
		return "invalid"
	}
}

var pipeNameKind = map[string]PipeKind{
	"srvsvc":   PipeSRVSVC,
	"wkssvc":   PipeWKSSVC,
	"samr":     PipeSAMR,
	"winreg":   PipeWINREG,
	"netlogon": PipeNETLOGON,
	"lsarpc":   PipeLSARPC,
	"eventlog": PipeEVENTLOG,
	"atsvc":    PipeATSVC,
	"spoolss":  PipeSPOOLSS,
}

// LookupPipeKind resolves a \PIPE\<name> path (case-insensitive, with or
// without the leading \PIPE\ prefix) to a PipeKind. Unknown names resolve to
// PipeInvalid, never an error — the caller decides how to respond.
func LookupPipeKind(path string) PipeKind {
	name := path
	for _, prefix := range []string{`\PIPE\`, `\pipe\`, `PIPE\`, `pipe\`} {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			name = name[len(prefix):]
			break
		}
	}
	lower := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	if kind, ok := pipeNameKind[string(lower)]; ok {
		return kind
	}
	return PipeInvalid
}

// =============================================================================
// DCE/RPC PDU Types [C706 Section 12.6.4.14] / [MS-RPCE]
// =============================================================================

const (
	PDURequest  uint8 = 0x00
	PDUResponse uint8 = 0x02
	PDUFault    uint8 = 0x03
	PDUBind     uint8 = 0x0B
	PDUBindAck  uint8 = 0x0C
)

// DCE/RPC PDU flags [C706 Section 12.6.3.1].
const (
	PDUFlagFirstFrag  uint8 = 0x01
	PDUFlagLastFrag   uint8 = 0x02
	PDUFlagCancelPend uint8 = 0x04
	PDUFlagConcMpx    uint8 = 0x10
	PDUFlagDidNotExec uint8 = 0x20
	PDUFlagMaybe      uint8 = 0x40
	PDUFlagObjectUUID uint8 = 0x80

	// PDUFlagOnlyFrag is the combination this core always emits: a
	// single-fragment PDU is both the first and the last fragment.
	PDUFlagOnlyFrag = PDUFlagFirstFrag | PDUFlagLastFrag
)

// DataRepLEASCIIIEEE is the standard NDR data representation this server
// always advertises: little-endian integers, ASCII character set, IEEE
// floating point.
var DataRepLEASCIIIEEE = [4]byte{0x10, 0x00, 0x00, 0x00}

// =============================================================================
// Pipe state bits [MS-CIFS] TRANS_SET_NMPIPE_STATE
// =============================================================================

const (
	// PipeStateBlocking (bit 15) marks the pipe as operating in blocking mode.
	PipeStateBlocking uint16 = 0x8000
	// PipeStateEndpointServer (bit 14) marks the server end of the pipe.
	PipeStateEndpointServer uint16 = 0x4000
	// PipeStateMessageTypeRead (bit 10) and PipeStateMessageMode (bit 9)
	// are the message-mode bits; clear, the pipe is in byte mode.
	PipeStateMessageTypeRead uint16 = 0x0400
	PipeStateMessageMode     uint16 = 0x0200
)

// OperationDataOverhead is the size of the DCE/RPC common PDU header. The
// Transact-NmPipe overflow threshold does not use it: ipc subtracts
// dcerpc.RequestHeaderSize (24 bytes) from MaxDataCount instead.
const OperationDataOverhead = 16
