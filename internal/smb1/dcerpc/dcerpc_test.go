package dcerpc

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencifs/smb1ipc/internal/smb1/dcebuf"
	"github.com/opencifs/smb1ipc/internal/smb1/pipe"
	"github.com/opencifs/smb1ipc/internal/smb1/rpcreg"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// srvsvcAbstractSyntax and ndrTransferSyntax are the well-known UUIDs used
// in a typical bind scenario.
var (
	srvsvcAbstractSyntax = uuid.MustParse("4b324fc8-1670-01d3-1278-5a47bf6ee188")
	ndrTransferSyntax    = uuid.MustParse("8a885d04-1ceb-11c9-9fe8-08002b104860")
)

func buildBindPDU(callID uint32, maxXmit, maxRecv uint16) *dcebuf.Buffer {
	buf := dcebuf.NewEmpty(72)
	buf.PutHeader(types.PDUBind, types.PDUFlagOnlyFrag, 0, callID)
	buf.PutShort(maxXmit)
	buf.PutShort(maxRecv)
	buf.PutInt(0) // assoc group, new
	buf.PutByte(1)
	buf.PutBytes([]byte{0, 0, 0})
	buf.PutShort(0) // context id
	buf.PutByte(1)  // num transfer syntax
	buf.PutByte(0)
	buf.PutUUID(srvsvcAbstractSyntax, false)
	buf.PutInt(3) // abstract version
	buf.PutUUID(ndrTransferSyntax, false)
	buf.PutInt(2) // transfer version
	buf.PatchFragLength(uint16(buf.Len()))
	return buf
}

func TestProcessPDUBind(t *testing.T) {
	in := buildBindPDU(1, 4280, 4280)
	pf := pipe.New(types.PipeSRVSVC, 0)
	registry := rpcreg.NewRegistry()

	out, err := ProcessPDU(context.Background(), in, pf, registry)
	require.NoError(t, err)

	assert.Equal(t, types.PDUBindAck, out.PacketType())
	assert.Equal(t, uint32(1), out.CallID())
	assert.Equal(t, uint16(4280), pf.MaxTxFragment())
	assert.Equal(t, uint16(4280), pf.MaxRxFragment())

	out.Seek(dcebuf.HeaderSize + 4) // past max_xmit_frag/max_recv_frag
	assocGroup, err := out.GetInt()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x53F0), assocGroup, "BIND_ACK must carry the fixed server assoc_group, not the client's")
}

func buildRequestPDU(callID uint32, contextID, opNum uint16, stub []byte) *dcebuf.Buffer {
	buf := dcebuf.NewEmpty(RequestHeaderSize + len(stub))
	buf.PutHeader(types.PDURequest, types.PDUFlagOnlyFrag, 0, callID)
	buf.PutInt(uint32(len(stub)))
	buf.PutShort(contextID)
	buf.PutShort(opNum)
	buf.PutBytes(stub)
	buf.PatchFragLength(uint16(buf.Len()))
	return buf
}

type echoEndpoint struct{}

func (echoEndpoint) ProcessRequest(ctx context.Context, req *rpcreg.Request) (*rpcreg.Response, error) {
	return &rpcreg.Response{Stub: append([]byte("echo:"), req.Stub...)}, nil
}

func TestProcessPDURequestDispatchesToEndpoint(t *testing.T) {
	registry := rpcreg.NewRegistry()
	registry.Register(types.PipeSRVSVC, echoEndpoint{})
	pf := pipe.New(types.PipeSRVSVC, 0)

	in := buildRequestPDU(7, 0, 15, []byte("hi"))
	out, err := ProcessPDU(context.Background(), in, pf, registry)
	require.NoError(t, err)

	assert.Equal(t, types.PDUResponse, out.PacketType())
	assert.Equal(t, uint32(7), out.CallID())

	want := []byte("echo:hi")
	got := make([]byte, len(want))
	n, cerr := out.CopyData(got, RequestHeaderSize, len(want))
	require.NoError(t, cerr)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, got)
}

func TestProcessPDURequestNoEndpointFaultsAccessDenied(t *testing.T) {
	registry := rpcreg.NewRegistry()
	pf := pipe.New(types.PipeSRVSVC, 0)

	in := buildRequestPDU(9, 0, 1, nil)
	out, err := ProcessPDU(context.Background(), in, pf, registry)
	require.NoError(t, err)

	assert.Equal(t, types.PDUFault, out.PacketType())
	statusBytes := make([]byte, 4)
	n, serr := out.CopyData(statusBytes, RequestHeaderSize, 4)
	require.NoError(t, serr)
	require.Equal(t, 4, n)
	status := uint32(statusBytes[0]) | uint32(statusBytes[1])<<8 | uint32(statusBytes[2])<<16 | uint32(statusBytes[3])<<24
	assert.Equal(t, types.StatusAccessDenied, status)
}

func TestProcessPDUUnknownTypeFaultsAccessDenied(t *testing.T) {
	buf := dcebuf.NewEmpty(16)
	buf.PutHeader(0x42, types.PDUFlagOnlyFrag, 16, 3)
	pf := pipe.New(types.PipeSRVSVC, 0)
	registry := rpcreg.NewRegistry()

	out, err := ProcessPDU(context.Background(), buf, pf, registry)
	require.NoError(t, err)
	assert.Equal(t, types.PDUFault, out.PacketType())
	assert.Equal(t, uint32(3), out.CallID())
}
