package rpcsvc

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencifs/smb1ipc/internal/smb1/rpcreg"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

func TestProcessRequest_NetrShareEnum_EmptyShareList(t *testing.T) {
	ep := NewEndpoint(nil)

	resp, err := ep.ProcessRequest(context.Background(), &rpcreg.Request{OpNum: OpNetrShareEnum})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Stub)

	level := binary.LittleEndian.Uint32(resp.Stub[0:4])
	assert.Equal(t, uint32(1), level)
	entriesRead := binary.LittleEndian.Uint32(resp.Stub[12:16])
	assert.Equal(t, uint32(0), entriesRead)

	status := binary.LittleEndian.Uint32(resp.Stub[len(resp.Stub)-4:])
	assert.Equal(t, NERRSuccess, status)
}

func TestProcessRequest_NetrShareEnum_ListsConfiguredShares(t *testing.T) {
	ep := NewEndpoint([]Share{
		{Name: "IPC$", Type: ShareTypeIPC | ShareTypeSpecial, Comment: "Remote IPC"},
		{Name: "data", Type: ShareTypeDiskTree, Comment: ""},
	})

	resp, err := ep.ProcessRequest(context.Background(), &rpcreg.Request{OpNum: OpNetrShareEnum})
	require.NoError(t, err)

	entriesRead := binary.LittleEndian.Uint32(resp.Stub[12:16])
	assert.Equal(t, uint32(2), entriesRead)

	totalEntriesOffset := len(resp.Stub) - 12
	totalEntries := binary.LittleEndian.Uint32(resp.Stub[totalEntriesOffset : totalEntriesOffset+4])
	assert.Equal(t, uint32(2), totalEntries)

	status := binary.LittleEndian.Uint32(resp.Stub[len(resp.Stub)-4:])
	assert.Equal(t, NERRSuccess, status)
}

func TestProcessRequest_UnknownOpnumRefused(t *testing.T) {
	ep := NewEndpoint(nil)

	_, err := ep.ProcessRequest(context.Background(), &rpcreg.Request{OpNum: 99})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnsupportedFunction)
}
