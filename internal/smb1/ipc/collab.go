package ipc

import (
	"github.com/opencifs/smb1ipc/internal/smb1/pipe"
	"github.com/opencifs/smb1ipc/internal/smb1/transact"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// TreeConnection is the external collaborator representing the IPC$ tree a
// request's TreeID names. The on-disk share layer implements this
// interface for its own tree connections too; this core only cares
// whether the tree is the IPC$ share.
type TreeConnection interface {
	// IsIPCShare reports whether this tree connection is the special IPC$
	// share that this core services.
	IsIPCShare() bool
}

// Session (a.k.a. virtual circuit) owns the set of currently-open named
// pipe handles for one client connection: allocating a new handle id on
// open, resolving a handle id back to its pipe.File, and releasing it on
// close. Handle allocation and tree-connection lookup are both the
// session's responsibility; this core treats file ids as opaque.
type Session interface {
	// TreeByID resolves a TreeID to its TreeConnection, or ok=false if no
	// such tree connection exists on this session.
	TreeByID(treeID uint16) (TreeConnection, bool)

	// OpenPipe allocates a new file id for a freshly opened pipe.File and
	// tracks it against treeID.
	OpenPipe(treeID uint16, pf *pipe.File) (fileID uint16, err error)

	// LookupPipe resolves a (treeID, fileID) pair to the pipe.File opened
	// under it, or ok=false if no such handle is open.
	LookupPipe(treeID, fileID uint16) (*pipe.File, bool)

	// ClosePipe releases the handle previously returned by OpenPipe.
	ClosePipe(treeID, fileID uint16) error
}

// PipeLanmanHandler services transactions against the legacy \PIPE\LANMAN
// RAP (Remote Administration Protocol) endpoint. It is optional: a
// Dispatcher built without one answers PipeLanman transactions with
// NOT_SUPPORTED rather than attempting to interpret RAP requests itself,
// since RAP is out of this core's scope.
type PipeLanmanHandler interface {
	HandleLanman(treeID uint16, txn *transact.Transaction) (*transact.Transaction, error)
}

// pipeNameFromCreate extracts the \PIPE\-relative name from an
// NTCreateAndX/OpenAndX filename, resolving it to a PipeKind.
func pipeNameFromCreate(filename string) types.PipeKind {
	return types.LookupPipeKind(filename)
}
