package transfer

import (
	"errors"

	"solana-token-transfer/internal/domain"
)

// Precondition errors. Both are reported before any network call.
var (
	ErrNoIdentity  = domain.ErrNoIdentity
	ErrNoSelection = domain.ErrNoSelection
)

// Validation errors. All are reported before any network call.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDestination  = errors.New("invalid destination address")
	ErrInsufficientBalance = errors.New("amount exceeds balance")
	ErrInvalidSource       = errors.New("selected token account could not be read")
)

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDestination) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidSource)
}

// SubmissionError wraps a failure that happened while building, sending or
// confirming a transaction. Its message is the underlying error's message.
type SubmissionError struct {
	Stage     string // derive, lookup, blockhash, build, sign, send, confirm
	Signature string // set when the transaction reached the node
	Err       error
}

func (e *SubmissionError) Error() string {
	return e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
