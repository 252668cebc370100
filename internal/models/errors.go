package models

import (
	"errors"
	"fmt"
	"strings"
)

// MalformedGroupError the server returned a group whose size is not 4.
// Fatal: a malformed protocol is never guessed at.
type MalformedGroupError struct {
	Count int
}

func (e *MalformedGroupError) Error() string {
	return fmt.Sprintf("malformed transaction group: expected %d transactions, got %d", GroupSize, e.Count)
}

// SigningError the local signer failed for one slot; the whole group is
// aborted since a partially-signed group cannot be submitted
type SigningError struct {
	Index int
	Cause error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("failed to sign transaction at index %d: %v", e.Index, e.Cause)
}

func (e *SigningError) Unwrap() error { return e.Cause }

// PrepareConflictError the server signaled a uniqueness/atomicity conflict
// while creating the payment record. Not user-facing: it triggers the
// coordinator's existing-group recovery path.
type PrepareConflictError struct {
	Message string
}

func (e *PrepareConflictError) Error() string {
	return fmt.Sprintf("prepare conflict: %s", e.Message)
}

// SubmissionFailedError neither the primary nor the fallback path confirmed
// the submission. The on-chain outcome is unknown; the caller must direct
// the user to transaction history instead of retrying.
type SubmissionFailedError struct {
	PaymentID string
	Cause     error
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("submission failed for payment %s: %v", e.PaymentID, e.Cause)
}

func (e *SubmissionFailedError) Unwrap() error { return e.Cause }

// TimeoutError a phase exceeded its bounded deadline
type TimeoutError struct {
	Phase string
	Cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Phase, e.Cause)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// ErrPaymentInFlight returned when a second trigger races an attempt that is
// already running on the same coordinator (double-tap, duplicate effect)
var ErrPaymentInFlight = errors.New("payment attempt already in flight")

// ErrRecoveryExhausted conflict recovery polling used its whole budget
// without finding a complete group
var ErrRecoveryExhausted = errors.New("conflict recovery exhausted without a complete group")

// IsPrepareConflict reports whether the error is a prepare conflict
func IsPrepareConflict(err error) bool {
	var conflict *PrepareConflictError
	return errors.As(err, &conflict)
}

// conflict markers observed in server error payloads when two prepare
// attempts race on the same idempotency key
var conflictMarkers = []string{
	"unique constraint",
	"uniqueviolation",
	"duplicate key",
	"already exists",
	"idempotency conflict",
	"atomic transaction conflict",
	"transaction.atomic",
}

// ClassifyPrepareError maps a raw server error message onto the protocol
// taxonomy: conflicts become PrepareConflictError, anything else passes
// through unchanged
func ClassifyPrepareError(message string) error {
	lower := strings.ToLower(message)
	for _, marker := range conflictMarkers {
		if strings.Contains(lower, marker) {
			return &PrepareConflictError{Message: message}
		}
	}
	return fmt.Errorf("prepare failed: %s", message)
}
