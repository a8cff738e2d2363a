package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// These keys are designed to be protocol-agnostic so the same aggregation
// and query tooling works across transports built on this logger.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Protocol & Operation (protocol-agnostic)
	// ========================================================================
	KeyProtocol  = "protocol"   // Protocol type: smb1, smb2, etc.
	KeyProcedure = "procedure"  // Operation/procedure name: READ, WRITE, CREATE, etc.
	KeyHandle    = "handle"     // File handle (protocol-specific opaque identifier)
	KeyShare     = "share"      // Share/export name: \\server\share, etc.
	KeyStatus    = "status"     // Operation status code (protocol-specific)
	KeyStatusMsg = "status_msg" // Human-readable status message

	// ========================================================================
	// I/O Operations
	// ========================================================================
	KeyOffset       = "offset"        // File offset for read/write operations
	KeyCount        = "count"         // Byte count requested
	KeyBytesRead    = "bytes_read"    // Actual bytes read
	KeyBytesWritten = "bytes_written" // Actual bytes written

	// ========================================================================
	// Client Identification
	// ========================================================================
	KeyClientIP = "client_ip" // Client IP address
	KeyUID      = "uid"       // User ID (mapped ID)
	KeyGID      = "gid"       // Group ID (mapped ID)

	// ========================================================================
	// Session & Connection
	// ========================================================================
	KeySessionID = "session_id" // Session identifier (SMB session, etc.)
	KeyTreeID    = "tree_id"    // Tree connection identifier
	KeyRequestID = "request_id" // Protocol-specific request ID (MID)

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code

	// ========================================================================
	// Named pipes / DCE-RPC
	// ========================================================================
	KeyPipeName = "pipe_name" // Named pipe path, e.g. \PIPE\srvsvc
	KeyPipeKind = "pipe_kind" // Resolved pipe kind enum value
	KeyFileID   = "file_id"   // SMB1 16-bit file id
	KeyCallID   = "call_id"   // DCE/RPC call identifier
	KeyPDUType  = "pdu_type"  // DCE/RPC PDU type
	KeyOpNum    = "op_num"    // DCE/RPC operation number
	KeyFragLen  = "frag_len"  // DCE/RPC fragment length
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Protocol & Operation
// ----------------------------------------------------------------------------

// Protocol returns a slog.Attr for protocol type
func Protocol(proto string) slog.Attr {
	return slog.String(KeyProtocol, proto)
}

// Procedure returns a slog.Attr for operation/procedure name
func Procedure(name string) slog.Attr {
	return slog.String(KeyProcedure, name)
}

// Handle returns a slog.Attr for a file handle (formatted as hex)
func Handle(h []byte) slog.Attr {
	return slog.String(KeyHandle, fmt.Sprintf("%x", h))
}

// Share returns a slog.Attr for share/export name
func Share(name string) slog.Attr {
	return slog.String(KeyShare, name)
}

// Status returns a slog.Attr for operation status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// StatusMsg returns a slog.Attr for human-readable status message
func StatusMsg(msg string) slog.Attr {
	return slog.String(KeyStatusMsg, msg)
}

// ----------------------------------------------------------------------------
// I/O Operations
// ----------------------------------------------------------------------------

// Offset returns a slog.Attr for file offset
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Count returns a slog.Attr for byte count requested
func Count(c uint32) slog.Attr {
	return slog.Any(KeyCount, c)
}

// BytesRead returns a slog.Attr for actual bytes read
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for actual bytes written
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// ----------------------------------------------------------------------------
// Client Identification
// ----------------------------------------------------------------------------

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// UID returns a slog.Attr for user ID
func UID(uid uint32) slog.Attr {
	return slog.Any(KeyUID, uid)
}

// GID returns a slog.Attr for group ID
func GID(gid uint32) slog.Attr {
	return slog.Any(KeyGID, gid)
}

// ----------------------------------------------------------------------------
// Session & Connection
// ----------------------------------------------------------------------------

// SessionID returns a slog.Attr for session identifier
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// TreeID returns a slog.Attr for tree connection identifier
func TreeID(id uint16) slog.Attr {
	return slog.Any(KeyTreeID, id)
}

// RequestID returns a slog.Attr for protocol-specific request ID
func RequestID(id uint32) slog.Attr {
	return slog.Any(KeyRequestID, id)
}

// ----------------------------------------------------------------------------
// Operation Metadata
// ----------------------------------------------------------------------------

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for numeric error code
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// ----------------------------------------------------------------------------
// Named pipes / DCE-RPC
// ----------------------------------------------------------------------------

// PipeName returns a slog.Attr for a named pipe path
func PipeName(name string) slog.Attr {
	return slog.String(KeyPipeName, name)
}

// PipeKind returns a slog.Attr for a resolved pipe kind
func PipeKind(kind string) slog.Attr {
	return slog.String(KeyPipeKind, kind)
}

// FileID returns a slog.Attr for an SMB1 file id
func FileID(id uint16) slog.Attr {
	return slog.Any(KeyFileID, id)
}

// CallID returns a slog.Attr for a DCE/RPC call id
func CallID(id uint32) slog.Attr {
	return slog.Any(KeyCallID, id)
}

// PDUType returns a slog.Attr for a DCE/RPC PDU type
func PDUType(t uint8) slog.Attr {
	return slog.Any(KeyPDUType, t)
}

// OpNum returns a slog.Attr for a DCE/RPC operation number
func OpNum(op uint16) slog.Attr {
	return slog.Any(KeyOpNum, op)
}

// FragLen returns a slog.Attr for a DCE/RPC fragment length
func FragLen(n uint16) slog.Attr {
	return slog.Any(KeyFragLen, n)
}
