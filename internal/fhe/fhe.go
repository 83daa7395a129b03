// Package fhe defines the port through which the ledger talks to the
// external homomorphic compute engine, plus a devnet engine for local use.
//
// The ledger never inspects handles. It asks the engine for an encoded zero,
// for homomorphic sums, for decryption request ids, and to verify the proof
// that accompanies an oracle callback. Everything else is the engine's
// business.
package fhe

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// CallbackTag tells the oracle which callback entry point should receive
// the cleartexts for a request.
type CallbackTag string

const (
	TagCivilization CallbackTag = "handleCivDecryption"
	TagAction       CallbackTag = "handleActionDecryption"
	TagAggregate    CallbackTag = "handleAggregateDecryption"
)

// TagFor returns the callback tag used for a target kind.
func TagFor(kind ir.TargetKind) CallbackTag {
	switch kind {
	case ir.TargetCivilization:
		return TagCivilization
	case ir.TargetAction:
		return TagAction
	case ir.TargetAggregate:
		return TagAggregate
	}
	return ""
}

// Kind returns the target kind served by the tag.
func (t CallbackTag) Kind() ir.TargetKind {
	switch t {
	case TagCivilization:
		return ir.TargetCivilization
	case TagAction:
		return ir.TargetAction
	case TagAggregate:
		return ir.TargetAggregate
	}
	return ""
}

// Engine is the compute-engine interface consumed by the ledger.
type Engine interface {
	// EncodeZero returns a fresh handle encrypting zero.
	EncodeZero(ctx context.Context) (ir.Handle, error)

	// Combine returns a handle encrypting the sum of a and b.
	Combine(ctx context.Context, a, b ir.Handle) (ir.Handle, error)

	// RequestDecryption registers handles for asynchronous decryption and
	// returns the request id. The oracle answers later through the callback
	// named by tag.
	RequestDecryption(ctx context.Context, handles []ir.Handle, tag CallbackTag) (*uint256.Int, error)

	// VerifyProof checks that proof attests cleartexts as the decryption of
	// the handles registered under requestID. It returns an error wrapping
	// ErrInvalidProof when the attestation does not check out.
	VerifyProof(ctx context.Context, requestID *uint256.Int, cleartexts, proof []byte) error
}

// Oracle produces cleartexts and a proof for a registered request.
type Oracle interface {
	Decrypt(ctx context.Context, requestID *uint256.Int) (cleartexts, proof []byte, err error)
}

// Job is a decryption request handed to the oracle side.
type Job struct {
	RequestID *uint256.Int
	Tag       CallbackTag
	Handles   []ir.Handle
}

// Dispatcher receives jobs as soon as a request is registered.
// Implementations must not block.
type Dispatcher interface {
	Dispatch(job Job)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(Job)

// Dispatch calls f(job).
func (f DispatcherFunc) Dispatch(job Job) { f(job) }

var (
	// ErrInvalidProof is returned by VerifyProof on a failed attestation.
	ErrInvalidProof = errors.New("invalid decryption proof")

	// ErrInvalidCiphertext is returned when a handle is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrUnknownRequest is returned when the oracle has no record of a
	// request id.
	ErrUnknownRequest = errors.New("unknown decryption request")
)
