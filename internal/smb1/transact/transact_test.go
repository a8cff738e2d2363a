package transact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

func TestSingleFragmentTransaction(t *testing.T) {
	acc := NewAccumulator(1, types.TransactNmPipe, true, 4, 8)
	acc.AddSetup([]uint16{uint16(types.TransactNmPipe), 0x0042})

	require.NoError(t, acc.AddParameterFragment(0, []byte{1, 2, 3, 4}))
	require.NoError(t, acc.AddDataFragment(0, []byte("ABCDEFGH")))

	assert.True(t, acc.Complete())
	txn := acc.Transaction()
	assert.Equal(t, []byte{1, 2, 3, 4}, txn.Parameter)
	assert.Equal(t, []byte("ABCDEFGH"), txn.Data)
	assert.Equal(t, []uint16{uint16(types.TransactNmPipe), 0x0042}, txn.Setup)
}

func TestMultiFragmentTransaction(t *testing.T) {
	acc := NewAccumulator(1, types.TransactNmPipe, false, 4, 8)

	require.NoError(t, acc.AddDataFragment(0, []byte("ABCD")))
	assert.False(t, acc.Complete())
	require.NoError(t, acc.AddDataFragment(4, []byte("EFGH")))
	require.NoError(t, acc.AddParameterFragment(0, []byte{1, 2, 3, 4}))

	assert.True(t, acc.Complete())
	assert.Equal(t, []byte("ABCDEFGH"), acc.Transaction().Data)
}

func TestNonMonotoneDisplacementRejected(t *testing.T) {
	acc := NewAccumulator(1, types.TransactNmPipe, false, 8, 0)
	require.NoError(t, acc.AddParameterFragment(0, []byte{1, 2, 3, 4}))

	err := acc.AddParameterFragment(8, []byte{5, 6})
	assert.ErrorIs(t, err, types.ErrMalformedFrame)

	err = acc.AddParameterFragment(2, []byte{5, 6})
	assert.ErrorIs(t, err, types.ErrMalformedFrame)
}

func TestFragmentOverrunsDeclaredTotal(t *testing.T) {
	acc := NewAccumulator(1, types.TransactNmPipe, false, 4, 0)
	err := acc.AddParameterFragment(0, []byte{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, types.ErrMalformedFrame)
}

func TestSetLimits(t *testing.T) {
	acc := NewAccumulator(1, types.TransactNmPipe, false, 0, 0)
	acc.SetLimits(1024, 4096)
	assert.Equal(t, uint16(1024), acc.Transaction().MaxParameterCount)
	assert.Equal(t, uint16(4096), acc.Transaction().MaxDataCount)
}
