// Package ipc is the IPC Dispatcher: the command-level entry point for
// every SMB1 request against the IPC$ tree. It resolves filenames to
// named-pipe kinds, opens and closes pipe.File handles through the
// Session collaborator, drives reads and writes through the dcerpc
// handler, and assembles TRANSACTION/TRANSACTION2/NT_TRANSACT sub-function
// requests through the transact Accumulator.
//
// Every failure path here becomes an SMB error response carrying the NT
// status (the legacy (class, code) pair is not written) rather than
// tearing down the connection — see types.ProtocolError.
package ipc
