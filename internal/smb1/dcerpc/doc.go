// Package dcerpc implements the DCE/RPC handler that sits behind a
// named-pipe file handle: parsing BIND and REQUEST PDUs, negotiating
// fragment sizes and transfer syntax on bind, dispatching REQUEST PDUs to
// the RPC Endpoint Registry, and building BIND_ACK/RESPONSE/FAULT PDUs in
// reply.
//
// ProcessPDU is the single entry point command handlers call: it accepts
// whatever a client just wrote to the pipe (via WriteX, or the data
// region of a Transact) and returns the bytes to buffer for the client's
// next READ.
//
// Reference: [C706] DCE 1.1: Remote Procedure Call, Section 12.6
// Reference: [MS-RPCE] Remote Procedure Call Protocol Extensions
package dcerpc
