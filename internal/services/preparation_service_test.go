package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"confio-payclient/internal/clients"
	"confio-payclient/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel scripted session channel
type fakeChannel struct {
	payload  json.RawMessage
	err      error
	calls    int
	lastType string
}

func (f *fakeChannel) Call(ctx context.Context, messageType string, payload interface{}) (json.RawMessage, error) {
	f.calls++
	f.lastType = messageType
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeChannel) Close() error { return nil }

func TestPrepareReturnsNormalizedGroup(t *testing.T) {
	channel := &fakeChannel{payload: json.RawMessage(`{
		"payment_id": "pay-1",
		"groupId": "grp-1",
		"transactions": [
			{"index":0,"transaction":"s0","signed":true},
			{"index":1,"transaction":"u1","needsSignature":true},
			{"index":2,"transaction":"u2","needs_signature":true},
			{"index":3,"transaction":"s3","signed":true}
		]
	}`)}
	service := NewPreparationService(channel, time.Second, testLogger())

	group, err := service.Prepare(context.Background(), sendIntent(), "send_u1_1000_CUSD_1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", group.PaymentID)
	assert.Equal(t, "grp-1", group.GroupID)
	assert.Len(t, group.Slots, 4)
	assert.Equal(t, "prepare_transactions", channel.lastType)
}

func TestPrepareRejectsWrongGroupSize(t *testing.T) {
	channel := &fakeChannel{payload: json.RawMessage(`{
		"payment_id": "pay-1",
		"transactions": [
			{"index":0,"transaction":"s0","signed":true},
			{"index":1,"transaction":"u1","needs_signature":true}
		]
	}`)}
	service := NewPreparationService(channel, time.Second, testLogger())

	_, err := service.Prepare(context.Background(), sendIntent(), "k")

	var malformed *models.MalformedGroupError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 2, malformed.Count)
}

func TestPrepareClassifiesServerConflict(t *testing.T) {
	channel := &fakeChannel{err: &clients.ServerError{
		Message: "duplicate key value violates unique constraint",
	}}
	service := NewPreparationService(channel, time.Second, testLogger())

	_, err := service.Prepare(context.Background(), sendIntent(), "k")
	assert.True(t, models.IsPrepareConflict(err))
}

func TestPrepareRequiresPaymentID(t *testing.T) {
	channel := &fakeChannel{payload: json.RawMessage(`{
		"transactions": [
			{"index":0,"transaction":"s0","signed":true},
			{"index":1,"transaction":"u1","needs_signature":true},
			{"index":2,"transaction":"u2","needs_signature":true},
			{"index":3,"transaction":"s3","signed":true}
		]
	}`)}
	service := NewPreparationService(channel, time.Second, testLogger())

	_, err := service.Prepare(context.Background(), sendIntent(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment id")
}

func TestPrepareValidatesIntentBeforeCalling(t *testing.T) {
	channel := &fakeChannel{}
	service := NewPreparationService(channel, time.Second, testLogger())

	bad := &models.PaymentIntent{Amount: "-1", AssetType: models.AssetCUSD, RecipientUserID: "u1"}
	_, err := service.Prepare(context.Background(), bad, "k")
	require.Error(t, err)
	assert.Equal(t, 0, channel.calls)
}
