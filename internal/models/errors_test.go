package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPrepareError(t *testing.T) {
	conflicts := []string{
		"duplicate key value violates unique constraint \"payments_idem_key\"",
		"Payment already exists for this invoice",
		"transaction.atomic block failed: concurrent update",
		"Idempotency conflict detected",
	}
	for _, message := range conflicts {
		err := ClassifyPrepareError(message)
		assert.True(t, IsPrepareConflict(err), "expected conflict for %q", message)
	}

	err := ClassifyPrepareError("insufficient balance")
	assert.False(t, IsPrepareConflict(err))
	assert.Contains(t, err.Error(), "insufficient balance")
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("biometric prompt dismissed")
	signErr := &SigningError{Index: 2, Cause: cause}
	require.ErrorIs(t, signErr, cause)
	assert.Contains(t, signErr.Error(), "index 2")

	subErr := &SubmissionFailedError{PaymentID: "p1", Cause: cause}
	require.ErrorIs(t, subErr, cause)

	timeoutErr := &TimeoutError{Phase: "prepare", Cause: cause}
	require.ErrorIs(t, timeoutErr, cause)
	assert.Contains(t, timeoutErr.Error(), "prepare")
}

func TestMalformedGroupError(t *testing.T) {
	err := &MalformedGroupError{Count: 3}
	assert.Contains(t, err.Error(), "expected 4")
	assert.Contains(t, err.Error(), "got 3")

	wrapped := fmt.Errorf("prepare: %w", err)
	var malformed *MalformedGroupError
	require.True(t, errors.As(wrapped, &malformed))
}
