package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"confio-payclient/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graphqlServer(t *testing.T, respond func(query string, variables map[string]interface{}) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var request struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(respond(request.Query, request.Variables)))
	}))
}

func TestFindExistingGroup(t *testing.T) {
	server := graphqlServer(t, func(query string, variables map[string]interface{}) string {
		assert.Equal(t, "inv-1", variables["invoiceId"])
		return `{"data":{"invoiceTransactionGroup":{
			"found": true,
			"paymentId": "pay-1",
			"transactions": [
				{"index":0,"transaction":"s0","signed":true},
				{"index":1,"transaction":"u1","needsSignature":true},
				{"index":2,"transaction":"u2","needsSignature":true},
				{"index":3,"transaction":"s3","signed":true}
			]
		}}}`
	})
	defer server.Close()

	client := NewGraphQLClient(server.URL, "tok", testLogger())
	group, err := client.FindExistingGroup(context.Background(), "inv-1")
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, "pay-1", group.PaymentID)
	assert.True(t, group.Complete())
}

func TestFindExistingGroupAbsent(t *testing.T) {
	server := graphqlServer(t, func(string, map[string]interface{}) string {
		return `{"data":{"invoiceTransactionGroup":{"found":false}}}`
	})
	defer server.Close()

	client := NewGraphQLClient(server.URL, "", testLogger())
	group, err := client.FindExistingGroup(context.Background(), "inv-x")
	require.NoError(t, err)
	assert.Nil(t, group)
}

func TestSubmitSignedGroupFallback(t *testing.T) {
	server := graphqlServer(t, func(query string, variables map[string]interface{}) string {
		assert.Equal(t, "pay-1", variables["paymentId"])
		signed, ok := variables["signedTransactions"].([]interface{})
		require.True(t, ok)
		assert.Len(t, signed, 4)
		return `{"data":{"submitSignedGroup":{"transactionId":"TXHTTP","confirmedRound":123}}}`
	})
	defer server.Close()

	client := NewGraphQLClient(server.URL, "tok", testLogger())
	response, err := client.SubmitSignedGroup(context.Background(), &dto.SubmitRequest{
		PaymentID: "pay-1",
		SignedTransactions: []dto.SignedTransactionWire{
			{Index: 0, Transaction: "a"}, {Index: 1, Transaction: "b"},
			{Index: 2, Transaction: "c"}, {Index: 3, Transaction: "d"},
		},
	})
	require.NoError(t, err)
	result := response.ToModel("pay-1")
	assert.Equal(t, "TXHTTP", result.TransactionID)
	assert.Equal(t, uint64(123), result.ConfirmedRound)
}

func TestGraphQLErrorsSurface(t *testing.T) {
	server := graphqlServer(t, func(string, map[string]interface{}) string {
		return `{"errors":[{"message":"invoice not found"}]}`
	})
	defer server.Close()

	client := NewGraphQLClient(server.URL, "", testLogger())
	_, err := client.FindExistingGroup(context.Background(), "inv-404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice not found")
}
