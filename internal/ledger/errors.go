package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures.
type Kind string

const (
	// KindSubmit covers failures before the node accepted the transaction (network, params).
	KindSubmit Kind = "submit"
	// KindRejected means the node or the contract refused the transaction.
	KindRejected Kind = "rejected"
	// KindTimeout means the transaction was not confirmed within the round bound.
	// Its eventual fate is unknown.
	KindTimeout Kind = "timeout"
	// KindNotFound means a referenced asset or contract does not exist.
	KindNotFound Kind = "not_found"
	// KindInvalid means the request could not be turned into a transaction.
	KindInvalid Kind = "invalid"
)

// Error is returned by every Client and Faucet operation.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// IsError reports whether err came from a ledger operation.
func IsError(err error) bool {
	var le *Error
	return errors.As(err, &le)
}

// IsKind reports whether err is a ledger error of the given kind.
func IsKind(err error, kind Kind) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind == kind
}

// Outcome is the result class of an operation whose failure the caller may tolerate.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeRecoverable Outcome = "recoverable"
	OutcomeFatal       Outcome = "fatal"
)

// Classify maps an error from a best-effort step (funding, opt-in) to an Outcome.
// Rejections are recoverable there: the usual cause is an account that is already
// opted in or already funded. Submission failures and timeouts leave the step's effect
// unknown and are reported as fatal; the caller still decides whether to continue.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var le *Error
	if errors.As(err, &le) && le.Kind == KindRejected {
		return OutcomeRecoverable
	}
	return OutcomeFatal
}
