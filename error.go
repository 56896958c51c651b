package xrpl

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrValidation          = fmt.Errorf("invalid input")
	ErrNetwork             = fmt.Errorf("network error")
	ErrConnectionLost      = errors.Wrap(ErrNetwork, "connection lost")
	ErrConnectionClosed    = errors.Wrap(ErrNetwork, "connection closed")
	ErrAccountNotFound     = fmt.Errorf("account not found")
	ErrTransactionNotFound = fmt.Errorf("transaction not found")
	ErrSigning             = fmt.Errorf("signing failed")
	ErrSubmission          = fmt.Errorf("submission failed")
	ErrSubscriptionClosed  = fmt.Errorf("subscription closed")
)

var AllErrors = []error{
	ErrValidation,
	ErrNetwork,
	ErrAccountNotFound,
	ErrTransactionNotFound,
	ErrSigning,
	ErrSubmission,
	ErrSubscriptionClosed,
}

// IsValidation reports whether err was caused by caller input and would fail
// the same way if repeated.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrSigning)
}

func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

func validationErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// LedgerError is an error response returned by a node.
type LedgerError struct {
	Code    string `json:"error"`
	Message string `json:"error_message"`
	Command string `json:"-"`
}

func (e *LedgerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Command, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Code)
}

func (e *LedgerError) Is(target error) bool {
	switch e.Code {
	case "actNotFound":
		return target == ErrAccountNotFound
	case "txnNotFound":
		return target == ErrTransactionNotFound
	case "actMalformed", "invalidParams":
		return target == ErrValidation
	}
	return false
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeUnknown Outcome = "unknown"
)

// SubmissionError describes a payment that was rejected, failed on ledger or
// whose fate could not be confirmed.
type SubmissionError struct {
	Hash         string
	EngineResult string
	Outcome      Outcome
	Reason       string
	Cause        error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("submission %s", e.Outcome)
	if e.Hash != "" {
		msg += " for tx " + e.Hash
	}
	if e.EngineResult != "" {
		msg += " (" + e.EngineResult + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrSubmission, e.Cause}
	}
	return []error{ErrSubmission}
}
