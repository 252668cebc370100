package services

import (
	"context"
	"errors"
	"testing"

	"confio-payclient/internal/dto"
	"confio-payclient/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport scripted SubmissionTransport
type fakeTransport struct {
	name     string
	calls    int
	response *dto.SubmitResponseWire
	err      error
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Submit(ctx context.Context, request *dto.SubmitRequest) (*dto.SubmitResponseWire, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func signedSubmission() *models.SignedSubmission {
	return &models.SignedSubmission{
		PaymentID: "pay-1",
		Transactions: []models.SignedTransaction{
			{Index: 0, Transaction: "a"}, {Index: 1, Transaction: "b"},
			{Index: 2, Transaction: "c"}, {Index: 3, Transaction: "d"},
		},
	}
}

func TestSubmitPrimarySucceeds(t *testing.T) {
	primary := &fakeTransport{name: "channel", response: &dto.SubmitResponseWire{
		TransactionIDSnake: "TXOK", ConfirmedRoundSnake: 11,
	}}
	fallback := &fakeTransport{name: "graphql"}
	service := NewSubmissionService(primary, fallback, 0, testLogger())

	result, err := service.Submit(context.Background(), signedSubmission(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "TXOK", result.TransactionID)
	assert.Equal(t, uint64(11), result.ConfirmedRound)
	assert.Equal(t, "pay-1", result.PaymentID)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestSubmitPlaceholderTriggersFallback(t *testing.T) {
	primary := &fakeTransport{name: "channel", response: &dto.SubmitResponseWire{
		TransactionIDSnake: "pending_blockchain_abc",
	}}
	fallback := &fakeTransport{name: "graphql", response: &dto.SubmitResponseWire{
		TransactionIDCamel: "ABCDEF123456", ConfirmedRoundCamel: 999,
	}}
	service := NewSubmissionService(primary, fallback, 0, testLogger())

	result, err := service.Submit(context.Background(), signedSubmission(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF123456", result.TransactionID)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestSubmitErrorTriggersFallback(t *testing.T) {
	primary := &fakeTransport{name: "channel", err: errors.New("connection reset")}
	fallback := &fakeTransport{name: "graphql", response: &dto.SubmitResponseWire{
		TransactionIDSnake: "TXFB", ConfirmedRoundSnake: 5,
	}}
	service := NewSubmissionService(primary, fallback, 0, testLogger())

	result, err := service.Submit(context.Background(), signedSubmission(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "TXFB", result.TransactionID)
}

func TestSubmitBothPathsFail(t *testing.T) {
	primary := &fakeTransport{name: "channel", err: errors.New("connection reset")}
	fallback := &fakeTransport{name: "graphql", response: &dto.SubmitResponseWire{
		TransactionIDSnake: "temp_123",
	}}
	service := NewSubmissionService(primary, fallback, 0, testLogger())

	_, err := service.Submit(context.Background(), signedSubmission(), "pay-1")

	var failed *models.SubmissionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "pay-1", failed.PaymentID)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestSubmitNoFallbackConfigured(t *testing.T) {
	primary := &fakeTransport{name: "channel", err: errors.New("down")}
	service := NewSubmissionService(primary, nil, 0, testLogger())

	_, err := service.Submit(context.Background(), signedSubmission(), "pay-1")

	var failed *models.SubmissionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 1, primary.calls)
}
