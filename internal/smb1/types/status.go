package types

import (
	"errors"
	"fmt"
)

// ErrShortBuffer is returned by wire-codec reads when the source buffer does
// not hold enough bytes for the requested field.
var ErrShortBuffer = errors.New("smb1: short buffer")

// ErrBufferOverflow is returned by wire-codec writes when the destination
// buffer lacks capacity for the value being written. This is
// distinct from the protocol-level STATUS_BUFFER_OVERFLOW a Transact reply
// may carry — that one is a normal, successful response.
var ErrBufferOverflow = errors.New("smb1: buffer overflow")

// NT_STATUS codes [MS-ERREF] 2.3 used by the IPC$/DCE-RPC core.
const (
	StatusSuccess            uint32 = 0x00000000
	StatusBufferOverflow     uint32 = 0x80000005
	StatusInvalidParameter   uint32 = 0xC000000D
	StatusNoSuchFile         uint32 = 0xC000000F
	StatusInvalidHandle      uint32 = 0xC0000008
	StatusAccessDenied       uint32 = 0xC0000022
	StatusObjectNameNotFound uint32 = 0xC0000034
	StatusNotSupported       uint32 = 0xC00000BB
	StatusUnsuccessful       uint32 = 0xC0000001
	StatusTooManyOpenedFiles uint32 = 0xC000011F
)

// StatusName returns a human-readable name for NT_STATUS codes, used in
// debug logging.
func StatusName(status uint32) string {
	switch status {
	case StatusSuccess:
		return "STATUS_SUCCESS"
	case StatusBufferOverflow:
		return "STATUS_BUFFER_OVERFLOW"
	case StatusInvalidParameter:
		return "STATUS_INVALID_PARAMETER"
	case StatusNoSuchFile:
		return "STATUS_NO_SUCH_FILE"
	case StatusInvalidHandle:
		return "STATUS_INVALID_HANDLE"
	case StatusAccessDenied:
		return "STATUS_ACCESS_DENIED"
	case StatusObjectNameNotFound:
		return "STATUS_OBJECT_NAME_NOT_FOUND"
	case StatusNotSupported:
		return "STATUS_NOT_SUPPORTED"
	case StatusUnsuccessful:
		return "STATUS_UNSUCCESSFUL"
	case StatusTooManyOpenedFiles:
		return "STATUS_TOO_MANY_OPENED_FILES"
	default:
		return fmt.Sprintf("STATUS_0x%08X", status)
	}
}

// IsSuccess returns true if the NT status indicates success (high bit clear).
func IsSuccess(status uint32) bool {
	return status == StatusSuccess || (status&0x80000000) == 0
}

// IsError returns true if the NT status indicates an error (top two bits set).
func IsError(status uint32) bool {
	return (status & 0xC0000000) == 0xC0000000
}

// IsWarning returns true if the NT status indicates a warning (bit 31 set,
// bit 30 clear) — STATUS_BUFFER_OVERFLOW is the one this core emits.
func IsWarning(status uint32) bool {
	return (status & 0xC0000000) == 0x80000000
}

// Legacy DOS error classes [MS-CIFS] 2.2.2.1.1, used in SMB1 responses when
// flags2.LONG_ERROR_CODE is not set. This core always sets LONG_ERROR_CODE
// on outgoing responses; the (class, code) pair is recorded on each
// ProtocolError but is not written to the wire.
const (
	ErrClassDOS uint8 = 0x01
	ErrClassSRV uint8 = 0x02
	ErrClassHRD uint8 = 0x03
)

// LegacyCode pairs a DOS error class with its code.
type LegacyCode struct {
	Class uint8
	Code  uint16
}

// Legacy (class, code) pairs for the NT statuses this core surfaces.
var legacyByStatus = map[uint32]LegacyCode{
	StatusNoSuchFile:         {ErrClassDOS, 0x0002}, // ERRbadfile
	StatusInvalidHandle:      {ErrClassDOS, 0x0006}, // ERRbadfid
	StatusAccessDenied:       {ErrClassSRV, 0x0005}, // ERRaccess
	StatusObjectNameNotFound: {ErrClassDOS, 0x0003}, // ERRbadpath
	StatusInvalidParameter:   {ErrClassSRV, 0x0057},
	StatusNotSupported:       {ErrClassSRV, 0x0001}, // ERRerror, used for UNRECOGNIZED_COMMAND
	StatusTooManyOpenedFiles: {ErrClassDOS, 0x0004}, // ERRnofids
}

// LegacyFor returns the legacy (class, code) pair documented for status, or
// a generic SRV/ERRerror pair if none is registered.
func LegacyFor(status uint32) LegacyCode {
	if lc, ok := legacyByStatus[status]; ok {
		return lc
	}
	return LegacyCode{ErrClassSRV, 0x0001}
}

// ProtocolErrorKind names the category of a protocol-level error. It
// exists for diagnostics/testing — the wire
// effect is fully captured by the NT status and legacy code.
type ProtocolErrorKind int

const (
	KindInvalidTreeID ProtocolErrorKind = iota
	KindInvalidHandle
	KindInvalidData
	KindMalformedFrame
	KindProtocolViolation
	KindUnsupportedFunction
	KindUnsupportedInfoLevel
	KindTooManyFiles
	KindBufferOverflow
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case KindInvalidTreeID:
		return "InvalidTreeId"
	case KindInvalidHandle:
		return "InvalidHandle"
	case KindInvalidData:
		return "InvalidData"
	case KindMalformedFrame:
		return "MalformedFrame"
	case KindProtocolViolation:
		return "ProtocolViolation"
	case KindUnsupportedFunction:
		return "UnsupportedFunction"
	case KindUnsupportedInfoLevel:
		return "UnsupportedInfoLevel"
	case KindTooManyFiles:
		return "TooManyFiles"
	case KindBufferOverflow:
		return "BufferOverflow"
	default:
		return "Unknown"
	}
}

// ProtocolError is a protocol-level failure that the IPC Dispatcher converts
// into an SMB error response rather than tearing down the session.
type ProtocolError struct {
	Kind   ProtocolErrorKind
	Status uint32
	Legacy LegacyCode
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, StatusName(e.Status))
}

// NewProtocolError builds a ProtocolError, deriving the legacy code from the
// status.
func NewProtocolError(kind ProtocolErrorKind, status uint32) *ProtocolError {
	return &ProtocolError{Kind: kind, Status: status, Legacy: LegacyFor(status)}
}

// Sentinel protocol errors for the common cases, usable with errors.As.
var (
	ErrMalformedFrame      = NewProtocolError(KindMalformedFrame, StatusNotSupported)
	ErrProtocolViolation   = NewProtocolError(KindProtocolViolation, StatusAccessDenied)
	ErrInvalidHandle       = NewProtocolError(KindInvalidHandle, StatusInvalidHandle)
	ErrInvalidData         = NewProtocolError(KindInvalidData, StatusUnsuccessful)
	ErrUnsupportedFunction = NewProtocolError(KindUnsupportedFunction, StatusNotSupported)
	ErrUnsupportedLevel    = NewProtocolError(KindUnsupportedInfoLevel, StatusInvalidParameter)
	ErrTooManyFiles        = NewProtocolError(KindTooManyFiles, StatusTooManyOpenedFiles)
)
