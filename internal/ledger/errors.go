package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// CodeUnauthorized: caller is not an admin or not the record owner.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeNotFound: unknown civilization, action index, aggregate key or
	// request id.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeProofVerificationFailed: the engine rejected a disclosure
	// attestation.
	CodeProofVerificationFailed ErrorCode = "PROOF_VERIFICATION_FAILED"

	// CodeInvalidState: the operation conflicts with the current state, for
	// example a repeat callback for a consumed request.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeInvalidArgument: malformed input such as an empty handle or a
	// cleartext blob of the wrong length.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Error is returned by every failing ledger operation. The whole operation
// has been rolled back by the time the caller sees it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the ledger operation that failed, e.g. "SubmitAction".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrUnauthorized            = &Error{Code: CodeUnauthorized}
	ErrNotFound                = &Error{Code: CodeNotFound}
	ErrProofVerificationFailed = &Error{Code: CodeProofVerificationFailed}
	ErrInvalidState            = &Error{Code: CodeInvalidState}
	ErrInvalidArgument         = &Error{Code: CodeInvalidArgument}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsUnauthorized reports whether err is an UNAUTHORIZED ledger error.
func IsUnauthorized(err error) bool { return CodeOf(err) == CodeUnauthorized }

// IsNotFound reports whether err is a NOT_FOUND ledger error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsProofVerificationFailed reports whether err is a
// PROOF_VERIFICATION_FAILED ledger error.
func IsProofVerificationFailed(err error) bool { return CodeOf(err) == CodeProofVerificationFailed }

// IsInvalidState reports whether err is an INVALID_STATE ledger error.
func IsInvalidState(err error) bool { return CodeOf(err) == CodeInvalidState }

// IsInvalidArgument reports whether err is an INVALID_ARGUMENT ledger error.
func IsInvalidArgument(err error) bool { return CodeOf(err) == CodeInvalidArgument }

func newError(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, op string, err error, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}
