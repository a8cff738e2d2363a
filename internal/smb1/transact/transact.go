// Package transact implements the SMB1 Transaction family
// (TRANSACTION/TRANSACTION2/NT_TRANSACT): a request/response carrying
// independent setup, parameter, and data regions, potentially spread
// across several secondary requests when the total payload exceeds one
// SMB1 message.
//
// A single Transaction in flight is assembled by an Accumulator, which
// enforces the monotone-displacement contract every secondary request must
// satisfy: each fragment declares where in the final parameter/data
// buffers its bytes land, and those offsets must never overlap or skip
// backwards relative to what has already been accepted.
package transact

import (
	"fmt"

	"github.com/opencifs/smb1ipc/internal/smb1/types"
)

// Transaction holds one TRANSACTION/TRANSACTION2/NT_TRANSACT request or
// response: the setup words, parameter bytes, and data bytes, plus the
// bookkeeping needed to route and reply to it.
type Transaction struct {
	TreeID   uint16
	Function types.TransactFunction
	Unicode  bool

	Setup     []uint16
	Parameter []byte
	Data      []byte

	// MaxParameterCount/MaxDataCount are the client-declared reply size
	// limits (TotalParameterCount/TotalDataCount mirror them on requests).
	MaxParameterCount uint16
	MaxDataCount      uint16
}

// Accumulator assembles a Transaction across one primary request and zero
// or more secondary requests, validating that each fragment's declared
// offsets are consistent with the bytes already accepted.
type Accumulator struct {
	txn *Transaction

	totalParamCount int
	totalDataCount  int

	paramReceived int
	dataReceived  int
}

// NewAccumulator starts assembling a transaction declared to eventually
// carry totalParamCount parameter bytes and totalDataCount data bytes.
func NewAccumulator(treeID uint16, function types.TransactFunction, unicode bool, totalParamCount, totalDataCount int) *Accumulator {
	return &Accumulator{
		txn: &Transaction{
			TreeID:    treeID,
			Function:  function,
			Unicode:   unicode,
			Parameter: make([]byte, totalParamCount),
			Data:      make([]byte, totalDataCount),
		},
		totalParamCount: totalParamCount,
		totalDataCount:  totalDataCount,
	}
}

// AddSetup appends the request's setup words. Only the primary request
// carries setup words in practice, but callers may call this once per
// fragment if a secondary request happens to repeat them.
func (a *Accumulator) AddSetup(words []uint16) {
	a.txn.Setup = append(a.txn.Setup, words...)
}

// AddParameterFragment places a fragment of parameter bytes at displacement
// within the final Parameter buffer. It fails with MalformedFrame if the
// fragment would overlap bytes already received or run past the declared
// total.
func (a *Accumulator) AddParameterFragment(displacement int, fragment []byte) error {
	if displacement != a.paramReceived {
		return fmt.Errorf("transact: parameter displacement %d, expected %d: %w", displacement, a.paramReceived, types.ErrMalformedFrame)
	}
	end := displacement + len(fragment)
	if end > a.totalParamCount {
		return fmt.Errorf("transact: parameter fragment overruns declared total %d: %w", a.totalParamCount, types.ErrMalformedFrame)
	}
	copy(a.txn.Parameter[displacement:end], fragment)
	a.paramReceived = end
	return nil
}

// AddDataFragment places a fragment of data bytes at displacement within
// the final Data buffer, with the same monotone-displacement contract as
// AddParameterFragment.
func (a *Accumulator) AddDataFragment(displacement int, fragment []byte) error {
	if displacement != a.dataReceived {
		return fmt.Errorf("transact: data displacement %d, expected %d: %w", displacement, a.dataReceived, types.ErrMalformedFrame)
	}
	end := displacement + len(fragment)
	if end > a.totalDataCount {
		return fmt.Errorf("transact: data fragment overruns declared total %d: %w", a.totalDataCount, types.ErrMalformedFrame)
	}
	copy(a.txn.Data[displacement:end], fragment)
	a.dataReceived = end
	return nil
}

// Complete reports whether every declared parameter and data byte has been
// received.
func (a *Accumulator) Complete() bool {
	return a.paramReceived == a.totalParamCount && a.dataReceived == a.totalDataCount
}

// Transaction returns the assembled Transaction. Callers should check
// Complete first; Transaction returns the buffers as far as they have been
// filled otherwise.
func (a *Accumulator) Transaction() *Transaction {
	return a.txn
}

// SetLimits records the reply size limits declared by the primary request.
func (a *Accumulator) SetLimits(maxParam, maxData uint16) {
	a.txn.MaxParameterCount = maxParam
	a.txn.MaxDataCount = maxData
}
