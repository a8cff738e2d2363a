package ipc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencifs/smb1ipc/internal/smb1/dcebuf"
	"github.com/opencifs/smb1ipc/internal/smb1/frame"
	"github.com/opencifs/smb1ipc/internal/smb1/pipe"
	"github.com/opencifs/smb1ipc/internal/smb1/rpcreg"
	"github.com/opencifs/smb1ipc/internal/smb1/rpcsvc"
	"github.com/opencifs/smb1ipc/internal/smb1/types"
	"github.com/opencifs/smb1ipc/internal/smb1/wire"
)

// fakeTree is the only TreeConnection this core cares about: the IPC$ share.
type fakeTree struct{ ipc bool }

func (t fakeTree) IsIPCShare() bool { return t.ipc }

// fakeSession is a minimal in-memory Session double for exercising the
// Dispatcher end to end.
type fakeSession struct {
	trees map[uint16]fakeTree
	files map[uint16]*pipe.File
	next  uint16
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		trees: map[uint16]fakeTree{1: {ipc: true}},
		files: make(map[uint16]*pipe.File),
		next:  1,
	}
}

func (s *fakeSession) TreeByID(treeID uint16) (TreeConnection, bool) {
	t, ok := s.trees[treeID]
	return t, ok
}

func (s *fakeSession) OpenPipe(treeID uint16, pf *pipe.File) (uint16, error) {
	id := s.next
	s.next++
	s.files[id] = pf
	return id, nil
}

func (s *fakeSession) LookupPipe(treeID, fileID uint16) (*pipe.File, bool) {
	pf, ok := s.files[fileID]
	return pf, ok
}

func (s *fakeSession) ClosePipe(treeID, fileID uint16) error {
	if _, ok := s.files[fileID]; !ok {
		return fmt.Errorf("no such handle")
	}
	delete(s.files, fileID)
	return nil
}

// echoEndpoint answers every opnum with "resp:"+stub, used to give srvsvc
// requests something observable to assert on.
type echoEndpoint struct{}

func (echoEndpoint) ProcessRequest(ctx context.Context, req *rpcreg.Request) (*rpcreg.Response, error) {
	return &rpcreg.Response{Stub: append([]byte("resp:"), req.Stub...)}, nil
}

func newDispatcherWithSrvsvc() *Dispatcher {
	registry := rpcreg.NewRegistry()
	registry.Register(types.PipeSRVSVC, echoEndpoint{})
	return NewDispatcher(registry, nil)
}

// buildNTCreateAndXRequest builds a raw SMB1 NTCreateAndX request frame
// opening the given \PIPE\ name (ASCII, non-Unicode).
func buildNTCreateAndXRequest(treeID uint16, path string) *frame.Frame {
	nameBytes := append([]byte(path), 0)
	wordCount := 24
	data := make([]byte, types.HeaderSize+1+wordCount*2+2+len(nameBytes))
	f := frame.New(data)
	data[0] = byte(types.SMB1ProtocolID)
	data[1] = byte(types.SMB1ProtocolID >> 8)
	data[2] = byte(types.SMB1ProtocolID >> 16)
	data[3] = byte(types.SMB1ProtocolID >> 24)
	f.SetCommand(types.CommandNTCreateAndX)
	f.SetTreeID(treeID)

	params := f.ParameterBytes()
	_ = wire.PutU16(params, ntCreateOffNameLength, uint16(len(path)))
	_ = wire.PutU32(params, ntCreateOffDesiredAccess, 0x001F01FF)

	f.SetByteCount(len(nameBytes))
	copy(f.ByteRegion(), nameBytes)
	return f
}

func TestScenarioS1BindAndRequestOnSrvsvc(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	sess := newFakeSession()

	createReq := buildNTCreateAndXRequest(1, `\PIPE\srvsvc`)
	createResp, err := d.Process(context.Background(), sess, createReq)
	require.NoError(t, err)
	require.Equal(t, 34, createResp.WordCount())

	fileID, _ := wire.ReadU16(createResp.ParameterBytes(), ntCreateRespOffFID)
	pf, ok := sess.LookupPipe(1, fileID)
	require.True(t, ok)
	assert.False(t, pf.IsBound())

	abstractSyntax := uuid.MustParse("4b324fc8-1670-01d3-1278-5a47bf6ee188")
	transferSyntax := uuid.MustParse("8a885d04-1ceb-11c9-9fe8-08002b104860")
	bindBuf := dcebuf.NewEmpty(72)
	bindBuf.PutHeader(types.PDUBind, types.PDUFlagOnlyFrag, 0, 1)
	bindBuf.PutShort(4280)
	bindBuf.PutShort(4280)
	bindBuf.PutInt(0)
	bindBuf.PutByte(1)
	bindBuf.PutBytes([]byte{0, 0, 0})
	bindBuf.PutShort(0)
	bindBuf.PutByte(1)
	bindBuf.PutByte(0)
	bindBuf.PutUUID(abstractSyntax, false)
	bindBuf.PutInt(3)
	bindBuf.PutUUID(transferSyntax, false)
	bindBuf.PutInt(2)
	bindBuf.PatchFragLength(uint16(bindBuf.Len()))

	transReq := buildTransactNmPipeRequest(1, fileID, bindBuf.Bytes(), 4280, 4280)
	transResp, err := d.Process(context.Background(), sess, transReq)
	require.NoError(t, err)

	dataCount, _ := wire.ReadU16(transResp.ParameterBytes(), 2)
	dataOffset, _ := wire.ReadU16(transResp.ParameterBytes(), 14)
	replyBytes := transResp.Bytes()[dataOffset : int(dataOffset)+int(dataCount)]

	out := dcebuf.New(replyBytes)
	assert.Equal(t, types.PDUBindAck, out.PacketType())
	assert.Equal(t, uint32(1), out.CallID())
	assert.True(t, pf.IsBound())
}

// buildTransactNmPipeRequest builds a raw SMB1 TRANSACTION request carrying
// a TRANS_NMPIPE sub-function over the given file id, with data=pduBytes.
func buildTransactNmPipeRequest(treeID, fileID uint16, pduBytes []byte, maxParamCount, maxDataCount uint16) *frame.Frame {
	paramBytes := make([]byte, 2)
	_ = wire.PutU16(paramBytes, 0, fileID)

	setupWords := []uint16{uint16(types.TransactNmPipe), fileID}
	wordCount := 14 + len(setupWords)
	paramOffset := types.HeaderSize + 1 + wordCount*2 + 2
	dataOffset := paramOffset + len(paramBytes)
	byteCount := len(paramBytes) + len(pduBytes)

	data := make([]byte, types.HeaderSize+1+wordCount*2+2+byteCount)
	f := frame.New(data)
	data[0] = byte(types.SMB1ProtocolID)
	data[1] = byte(types.SMB1ProtocolID >> 8)
	data[2] = byte(types.SMB1ProtocolID >> 16)
	data[3] = byte(types.SMB1ProtocolID >> 24)
	f.SetCommand(types.CommandTransaction)
	f.SetTreeID(treeID)

	params := f.ParameterBytes()
	_ = wire.PutU16(params, transOffTotalParamCount, uint16(len(paramBytes)))
	_ = wire.PutU16(params, transOffTotalDataCount, uint16(len(pduBytes)))
	_ = wire.PutU16(params, transOffMaxParamCount, maxParamCount)
	_ = wire.PutU16(params, transOffMaxDataCount, maxDataCount)
	_ = wire.PutU16(params, transOffParamCount, uint16(len(paramBytes)))
	_ = wire.PutU16(params, transOffParamOffset, uint16(paramOffset))
	_ = wire.PutU16(params, transOffDataCount, uint16(len(pduBytes)))
	_ = wire.PutU16(params, transOffDataOffset, uint16(dataOffset))
	params[transOffSetupCount] = byte(len(setupWords))
	for i, w := range setupWords {
		_ = wire.PutU16(params, transOffSetup+i*2, w)
	}

	f.SetByteCount(byteCount)
	region := f.ByteRegion()
	copy(region, paramBytes)
	copy(region[len(paramBytes):], pduBytes)
	return f
}

func buildReadAndXRequest(treeID, fileID uint16, maxCount uint16) *frame.Frame {
	wordCount := 12
	data := make([]byte, types.HeaderSize+1+wordCount*2+2)
	f := frame.New(data)
	data[0] = byte(types.SMB1ProtocolID)
	data[1] = byte(types.SMB1ProtocolID >> 8)
	data[2] = byte(types.SMB1ProtocolID >> 16)
	data[3] = byte(types.SMB1ProtocolID >> 24)
	f.SetCommand(types.CommandReadAndX)
	f.SetTreeID(treeID)

	params := f.ParameterBytes()
	params[0] = 0xFF
	_ = wire.PutU16(params, readAndXOffFID, fileID)
	_ = wire.PutU16(params, readAndXOffMaxCount, maxCount)
	f.SetByteCount(0)
	return f
}

func buildWriteAndXRequest(treeID, fileID uint16, payload []byte) *frame.Frame {
	wordCount := 14
	dataOffset := types.HeaderSize + 1 + wordCount*2 + 2
	data := make([]byte, dataOffset+len(payload))
	f := frame.New(data)
	data[0] = byte(types.SMB1ProtocolID)
	data[1] = byte(types.SMB1ProtocolID >> 8)
	data[2] = byte(types.SMB1ProtocolID >> 16)
	data[3] = byte(types.SMB1ProtocolID >> 24)
	f.SetCommand(types.CommandWriteAndX)
	f.SetTreeID(treeID)

	params := f.ParameterBytes()
	params[0] = 0xFF
	_ = wire.PutU16(params, writeAndXOffFID, fileID)
	_ = wire.PutU16(params, writeAndXOffDataLength, uint16(len(payload)))
	_ = wire.PutU16(params, writeAndXOffDataOffset, uint16(dataOffset))

	f.SetByteCount(len(payload))
	copy(f.ByteRegion(), payload)
	return f
}

func openSrvsvcPipe(t *testing.T, d *Dispatcher, sess *fakeSession) uint16 {
	t.Helper()
	createReq := buildNTCreateAndXRequest(1, `\PIPE\srvsvc`)
	createResp, err := d.Process(context.Background(), sess, createReq)
	require.NoError(t, err)
	fileID, _ := wire.ReadU16(createResp.ParameterBytes(), ntCreateRespOffFID)
	return fileID
}

func TestScenarioS2BufferOverflowReadChaining(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	sess := newFakeSession()
	fileID := openSrvsvcPipe(t, d, sess)
	pf, _ := sess.LookupPipe(1, fileID)
	pf.SetBound(true)

	reqStub := make([]byte, 4)
	requestBuf := dcebuf.NewEmpty(24 + len(reqStub))
	requestBuf.PutHeader(types.PDURequest, types.PDUFlagOnlyFrag, 0, 42)
	requestBuf.PutInt(0)
	requestBuf.PutShort(0)
	requestBuf.PutShort(0)
	requestBuf.PutBytes(reqStub)
	requestBuf.PatchFragLength(uint16(requestBuf.Len()))

	// Register an endpoint returning a reply whose stub is large enough
	// that the response PDU exceeds the 4280-byte fragment limit.
	registry := rpcreg.NewRegistry()
	registry.Register(types.PipeSRVSVC, bigReplyEndpoint{size: 12 * 1024})
	d.registry = registry

	transReq := buildTransactNmPipeRequest(1, fileID, requestBuf.Bytes(), 4280, 4280)
	transResp, err := d.Process(context.Background(), sess, transReq)
	require.NoError(t, err)

	status := statusOf(transResp)
	assert.Equal(t, types.StatusBufferOverflow, status)

	dataCount, _ := wire.ReadU16(transResp.ParameterBytes(), 2)
	assert.Equal(t, uint16(4280), dataCount)
	assert.True(t, pf.HasBufferedData())

	// responsePDUHeaderBytes (24) + the 12 KiB stub the test endpoint
	// returns is the total a client must read across the overflowed
	// Transact reply plus however many ReadAndX calls it takes to drain it.
	const responsePDUHeaderBytes = 24
	wantTotal := responsePDUHeaderBytes + 12*1024

	totalRead := int(dataCount)
	for totalRead < wantTotal {
		readReq := buildReadAndXRequest(1, fileID, 4096)
		readResp, err := d.Process(context.Background(), sess, readReq)
		require.NoError(t, err)
		n, _ := wire.ReadU16(readResp.ParameterBytes(), readAndXRespOffDataLen)
		require.Greater(t, n, uint16(0))
		dataOffset, _ := wire.ReadU16(readResp.ParameterBytes(), readAndXRespOffDataOff)
		assert.Zero(t, int(dataOffset)%4, "DataOffset must be longword-aligned")
		assert.Equal(t, int(dataOffset)+int(n)-readAndXBaseByteOffset, readResp.ByteCount())
		totalRead += int(n)
	}

	assert.Equal(t, wantTotal, totalRead)
	assert.False(t, pf.HasBufferedData())
}

// TestScenarioOverflowBandBelowMaxDataCount covers a reply that fits inside
// MaxDataCount but still exceeds MaxDataCount-RequestHeaderSize: the
// OPERATIONDATA-wide band the overflow threshold law carves out just under
// the client's declared limit. It must still be reported as
// STATUS_BUFFER_OVERFLOW, with nothing left pending since the whole reply
// was already returned.
func TestScenarioOverflowBandBelowMaxDataCount(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	sess := newFakeSession()
	fileID := openSrvsvcPipe(t, d, sess)
	pf, _ := sess.LookupPipe(1, fileID)
	pf.SetBound(true)

	const maxDataCount = 4280
	// requestHeaderSize(24) + stub => a reply strictly between
	// maxDataCount-RequestHeaderSize (4256) and maxDataCount (4280).
	const stubSize = 4260 - 24
	registry := rpcreg.NewRegistry()
	registry.Register(types.PipeSRVSVC, bigReplyEndpoint{size: stubSize})
	d.registry = registry

	reqStub := make([]byte, 4)
	requestBuf := dcebuf.NewEmpty(24 + len(reqStub))
	requestBuf.PutHeader(types.PDURequest, types.PDUFlagOnlyFrag, 0, 7)
	requestBuf.PutInt(0)
	requestBuf.PutShort(0)
	requestBuf.PutShort(0)
	requestBuf.PutBytes(reqStub)
	requestBuf.PatchFragLength(uint16(requestBuf.Len()))

	transReq := buildTransactNmPipeRequest(1, fileID, requestBuf.Bytes(), maxDataCount, maxDataCount)
	transResp, err := d.Process(context.Background(), sess, transReq)
	require.NoError(t, err)

	assert.Equal(t, types.StatusBufferOverflow, statusOf(transResp))
	dataCount, _ := wire.ReadU16(transResp.ParameterBytes(), 2)
	assert.Equal(t, uint16(24+stubSize), dataCount)
	assert.False(t, pf.HasBufferedData())
}

type bigReplyEndpoint struct{ size int }

func (e bigReplyEndpoint) ProcessRequest(ctx context.Context, req *rpcreg.Request) (*rpcreg.Response, error) {
	return &rpcreg.Response{Stub: make([]byte, e.size)}, nil
}

func TestScenarioS3InvalidPipeName(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	sess := newFakeSession()

	createReq := buildNTCreateAndXRequest(1, `\PIPE\unknown`)
	resp, err := d.Process(context.Background(), sess, createReq)
	require.NoError(t, err)
	assert.Equal(t, types.StatusObjectNameNotFound, statusOf(resp))
}

func TestScenarioS4SetAndQueryNmPHandState(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	sess := newFakeSession()
	fileID := openSrvsvcPipe(t, d, sess)

	setReq := buildSetNmPHandStateRequest(1, fileID, 0x4300)
	setResp, err := d.Process(context.Background(), sess, setReq)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, statusOf(setResp))

	pf, _ := sess.LookupPipe(1, fileID)
	assert.Equal(t, uint16(0x4300), pf.StateBits())

	queryReq := buildQueryNmPHandStateRequest(1, fileID)
	queryResp, err := d.Process(context.Background(), sess, queryReq)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, statusOf(queryResp))

	paramOffset, _ := wire.ReadU16(queryResp.ParameterBytes(), 8)
	state, _ := wire.ReadU16(queryResp.Bytes(), int(paramOffset))
	assert.Equal(t, uint16(0x4300), state)
}

func buildSetNmPHandStateRequest(treeID, fileID, state uint16) *frame.Frame {
	paramBytes := make([]byte, 4)
	_ = wire.PutU16(paramBytes, 0, fileID)
	_ = wire.PutU16(paramBytes, 2, state)
	return buildSimpleTransactRequest(treeID, types.TransactSetNmPHandState, paramBytes, nil)
}

func buildQueryNmPHandStateRequest(treeID, fileID uint16) *frame.Frame {
	paramBytes := make([]byte, 2)
	_ = wire.PutU16(paramBytes, 0, fileID)
	return buildSimpleTransactRequest(treeID, types.TransactQueryNmPHandState, paramBytes, nil)
}

// buildSimpleTransactRequest builds a single-fragment TRANSACTION request
// with a one-word setup (the sub-function code) and the given parameter and
// data bytes.
func buildSimpleTransactRequest(treeID uint16, function types.TransactFunction, paramBytes, dataBytes []byte) *frame.Frame {
	setupWords := []uint16{uint16(function)}
	wordCount := 14 + len(setupWords)
	paramOffset := types.HeaderSize + 1 + wordCount*2 + 2
	dataOffset := paramOffset + len(paramBytes)
	byteCount := len(paramBytes) + len(dataBytes)

	data := make([]byte, types.HeaderSize+1+wordCount*2+2+byteCount)
	f := frame.New(data)
	data[0] = byte(types.SMB1ProtocolID)
	data[1] = byte(types.SMB1ProtocolID >> 8)
	data[2] = byte(types.SMB1ProtocolID >> 16)
	data[3] = byte(types.SMB1ProtocolID >> 24)
	f.SetCommand(types.CommandTransaction)
	f.SetTreeID(treeID)

	params := f.ParameterBytes()
	_ = wire.PutU16(params, transOffTotalParamCount, uint16(len(paramBytes)))
	_ = wire.PutU16(params, transOffTotalDataCount, uint16(len(dataBytes)))
	_ = wire.PutU16(params, transOffMaxParamCount, 1024)
	_ = wire.PutU16(params, transOffMaxDataCount, 4280)
	_ = wire.PutU16(params, transOffParamCount, uint16(len(paramBytes)))
	_ = wire.PutU16(params, transOffParamOffset, uint16(paramOffset))
	_ = wire.PutU16(params, transOffDataCount, uint16(len(dataBytes)))
	_ = wire.PutU16(params, transOffDataOffset, uint16(dataOffset))
	params[transOffSetupCount] = byte(len(setupWords))
	for i, w := range setupWords {
		_ = wire.PutU16(params, transOffSetup+i*2, w)
	}

	f.SetByteCount(byteCount)
	region := f.ByteRegion()
	copy(region, paramBytes)
	copy(region[len(paramBytes):], dataBytes)
	return f
}

func TestScenarioS5WriteWithoutBindDenied(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	sess := newFakeSession()
	fileID := openSrvsvcPipe(t, d, sess)

	requestBuf := dcebuf.NewEmpty(24)
	requestBuf.PutHeader(types.PDURequest, types.PDUFlagOnlyFrag, 0, 5)
	requestBuf.PutInt(0)
	requestBuf.PutShort(0)
	requestBuf.PutShort(0)
	requestBuf.PatchFragLength(uint16(requestBuf.Len()))

	writeReq := buildWriteAndXRequest(1, fileID, requestBuf.Bytes())
	writeResp, err := d.Process(context.Background(), sess, writeReq)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAccessDenied, statusOf(writeResp))

	pf, ok := sess.LookupPipe(1, fileID)
	require.True(t, ok)
	assert.False(t, pf.IsBound())

	bindBuf := dcebuf.NewEmpty(16)
	bindBuf.PutHeader(types.PDUBind, types.PDUFlagOnlyFrag, 0, 6)
	bindBuf.PutShort(4280)
	bindBuf.PutShort(4280)
	bindBuf.PutInt(0)
	bindBuf.PutByte(0)
	bindBuf.PutBytes([]byte{0, 0, 0})
	bindBuf.PatchFragLength(uint16(bindBuf.Len()))

	bindWriteReq := buildWriteAndXRequest(1, fileID, bindBuf.Bytes())
	bindWriteResp, err := d.Process(context.Background(), sess, bindWriteReq)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, statusOf(bindWriteResp))
	assert.True(t, pf.IsBound())
}

func TestScenarioS6ReadWithNoPendingData(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	sess := newFakeSession()
	fileID := openSrvsvcPipe(t, d, sess)
	pf, _ := sess.LookupPipe(1, fileID)
	pf.SetBound(true)

	readReq := buildReadAndXRequest(1, fileID, 4096)
	readResp, err := d.Process(context.Background(), sess, readReq)
	require.NoError(t, err)

	assert.Equal(t, types.StatusSuccess, statusOf(readResp))
	assert.Equal(t, 0, readResp.ByteCount())
	assert.Equal(t, readAndXRespWordCount, readResp.WordCount())
	params := readResp.ParameterBytes()
	assert.Equal(t, byte(0xFF), params[0], "AndXCommand")
	for i := 1; i < len(params); i++ {
		assert.Equalf(t, byte(0), params[i], "parameter byte %d should be zero with no pending data", i)
	}
}

func TestScenarioCloseReleasesHandle(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	sess := newFakeSession()
	fileID := openSrvsvcPipe(t, d, sess)

	closeReq := buildCloseRequest(1, fileID)
	closeResp, err := d.Process(context.Background(), sess, closeReq)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, statusOf(closeResp))

	_, ok := sess.LookupPipe(1, fileID)
	assert.False(t, ok)
}

// TestScenarioNetrShareEnumRoundTrip binds and calls the real SRVSVC
// endpoint end-to-end (NTCreateAndX -> BIND -> REQUEST, each framed inside
// a TRANS_NMPIPE Transaction), checking that the dispatch path delivers a
// RESPONSE PDU carrying rpcsvc's NetrShareEnum stub rather than just the
// echo/bigReply test doubles the other scenarios use.
func TestScenarioNetrShareEnumRoundTrip(t *testing.T) {
	registry := rpcreg.NewRegistry()
	registry.Register(types.PipeSRVSVC, rpcsvc.NewEndpoint([]rpcsvc.Share{
		{Name: "IPC$", Type: rpcsvc.ShareTypeIPC | rpcsvc.ShareTypeSpecial, Comment: "Remote IPC"},
	}))
	d := NewDispatcher(registry, nil)
	sess := newFakeSession()
	fileID := openSrvsvcPipe(t, d, sess)
	pf, _ := sess.LookupPipe(1, fileID)
	pf.SetBound(true)

	requestBuf := dcebuf.NewEmpty(24)
	requestBuf.PutHeader(types.PDURequest, types.PDUFlagOnlyFrag, 0, 7)
	requestBuf.PutInt(0)
	requestBuf.PutShort(0)
	requestBuf.PutShort(rpcsvc.OpNetrShareEnum)
	requestBuf.PatchFragLength(uint16(requestBuf.Len()))

	transReq := buildTransactNmPipeRequest(1, fileID, requestBuf.Bytes(), 4280, 4280)
	transResp, err := d.Process(context.Background(), sess, transReq)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, statusOf(transResp))

	dataCount, _ := wire.ReadU16(transResp.ParameterBytes(), 2)
	dataOffset, _ := wire.ReadU16(transResp.ParameterBytes(), 14)
	replyBytes := transResp.Bytes()[dataOffset : int(dataOffset)+int(dataCount)]

	out := dcebuf.New(replyBytes)
	require.Equal(t, types.PDUResponse, out.PacketType())
	assert.Equal(t, uint32(7), out.CallID())

	// REQUEST/RESPONSE PDU stub data starts after the 16-byte common header
	// plus alloc_hint(4)/context_id(2)/opnum_or_cancel(2).
	const stubOffset = dcebuf.HeaderSize + 8
	stub := out.Bytes()[stubOffset:]
	entriesRead, _ := wire.ReadU32(stub, 12)
	assert.Equal(t, uint32(1), entriesRead)
	status, _ := wire.ReadU32(stub, len(stub)-4)
	assert.Equal(t, rpcsvc.NERRSuccess, status)
}

func buildCloseRequest(treeID, fileID uint16) *frame.Frame {
	wordCount := 3
	data := make([]byte, types.HeaderSize+1+wordCount*2+2)
	f := frame.New(data)
	data[0] = byte(types.SMB1ProtocolID)
	data[1] = byte(types.SMB1ProtocolID >> 8)
	data[2] = byte(types.SMB1ProtocolID >> 16)
	data[3] = byte(types.SMB1ProtocolID >> 24)
	f.SetCommand(types.CommandClose)
	f.SetTreeID(treeID)
	_ = wire.PutU16(f.ParameterBytes(), 0, fileID)
	f.SetByteCount(0)
	return f
}

// recordingMetrics captures every call made to it, used to assert the
// Dispatcher actually drives the Metrics interface rather than just holding
// a reference to it.
type recordingMetrics struct {
	requests           []string
	rpcCalls           []string
	bufferOverflows    []string
	openPipes          []int
	protocolViolations []string
}

func (m *recordingMetrics) RecordRequest(command string, status uint32, duration time.Duration) {
	m.requests = append(m.requests, command)
}

func (m *recordingMetrics) RecordRPCCall(pipeKind string, opNum uint16, duration time.Duration) {
	m.rpcCalls = append(m.rpcCalls, fmt.Sprintf("%s:%d", pipeKind, opNum))
}

func (m *recordingMetrics) RecordBufferOverflow(pipeKind string, totalBytes int) {
	m.bufferOverflows = append(m.bufferOverflows, pipeKind)
}

func (m *recordingMetrics) SetOpenPipes(count int) {
	m.openPipes = append(m.openPipes, count)
}

func (m *recordingMetrics) RecordProtocolViolation(kind string) {
	m.protocolViolations = append(m.protocolViolations, kind)
}

func TestDispatcher_MetricsWiredThroughFullLifecycle(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	rec := &recordingMetrics{}
	d.SetMetrics(rec)
	sess := newFakeSession()

	fileID := openSrvsvcPipe(t, d, sess)
	assert.Equal(t, []int{1}, rec.openPipes)

	pf, _ := sess.LookupPipe(1, fileID)
	pf.SetBound(true)

	reqStub := make([]byte, 4)
	requestBuf := dcebuf.NewEmpty(24 + len(reqStub))
	requestBuf.PutHeader(types.PDURequest, types.PDUFlagOnlyFrag, 0, 9)
	requestBuf.PutInt(0)
	requestBuf.PutShort(0)
	requestBuf.PutShort(3)
	requestBuf.PutBytes(reqStub)
	requestBuf.PatchFragLength(uint16(requestBuf.Len()))

	transReq := buildTransactNmPipeRequest(1, fileID, requestBuf.Bytes(), 4280, 4280)
	_, err := d.Process(context.Background(), sess, transReq)
	require.NoError(t, err)
	require.Len(t, rec.rpcCalls, 1)
	assert.Equal(t, "srvsvc:3", rec.rpcCalls[0])
	assert.Empty(t, rec.bufferOverflows)

	closeReq := buildCloseRequest(1, fileID)
	_, err = d.Process(context.Background(), sess, closeReq)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, rec.openPipes)

	require.NotEmpty(t, rec.requests)
	for _, cmd := range rec.requests {
		assert.NotEmpty(t, cmd)
	}
}

func TestDispatcher_MetricsRecordBufferOverflowOnTruncatedReply(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	rec := &recordingMetrics{}
	d.SetMetrics(rec)
	sess := newFakeSession()
	fileID := openSrvsvcPipe(t, d, sess)
	pf, _ := sess.LookupPipe(1, fileID)
	pf.SetBound(true)

	registry := rpcreg.NewRegistry()
	registry.Register(types.PipeSRVSVC, bigReplyEndpoint{size: 12 * 1024})
	d.registry = registry

	reqStub := make([]byte, 4)
	requestBuf := dcebuf.NewEmpty(24 + len(reqStub))
	requestBuf.PutHeader(types.PDURequest, types.PDUFlagOnlyFrag, 0, 42)
	requestBuf.PutInt(0)
	requestBuf.PutShort(0)
	requestBuf.PutShort(0)
	requestBuf.PutBytes(reqStub)
	requestBuf.PatchFragLength(uint16(requestBuf.Len()))

	transReq := buildTransactNmPipeRequest(1, fileID, requestBuf.Bytes(), 4280, 4280)
	transResp, err := d.Process(context.Background(), sess, transReq)
	require.NoError(t, err)
	assert.Equal(t, types.StatusBufferOverflow, statusOf(transResp))

	require.Len(t, rec.bufferOverflows, 1)
	assert.Equal(t, "srvsvc", rec.bufferOverflows[0])
}

func TestDispatcher_MetricsRecordProtocolViolationOnWriteWithoutBind(t *testing.T) {
	d := newDispatcherWithSrvsvc()
	rec := &recordingMetrics{}
	d.SetMetrics(rec)
	sess := newFakeSession()
	fileID := openSrvsvcPipe(t, d, sess)

	requestBuf := dcebuf.NewEmpty(24)
	requestBuf.PutHeader(types.PDURequest, types.PDUFlagOnlyFrag, 0, 5)
	requestBuf.PutInt(0)
	requestBuf.PutShort(0)
	requestBuf.PutShort(0)
	requestBuf.PatchFragLength(uint16(requestBuf.Len()))

	writeReq := buildWriteAndXRequest(1, fileID, requestBuf.Bytes())
	writeResp, err := d.Process(context.Background(), sess, writeReq)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAccessDenied, statusOf(writeResp))

	require.NotEmpty(t, rec.protocolViolations)
}
