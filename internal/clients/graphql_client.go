package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"confio-payclient/internal/dto"
	"confio-payclient/internal/models"

	"github.com/sirupsen/logrus"
)

// GraphQLClient request/response client for the payment API. Used for the
// submission fallback path and the existing-group recovery query; the
// session channel stays the primary transport.
type GraphQLClient struct {
	Endpoint string
	Token    string
	Client   *http.Client
	logger   *logrus.Logger
}

// NewGraphQLClient creates a client with a bounded request timeout
func NewGraphQLClient(endpoint, token string, logger *logrus.Logger) *GraphQLClient {
	return &GraphQLClient{
		Endpoint: endpoint,
		Token:    token,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// Do executes one GraphQL exchange and unmarshals the data field
func (c *GraphQLClient) Do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "JWT "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read graphql response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql endpoint returned status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var parsed graphqlResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", parsed.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(parsed.Data, out); err != nil {
			return fmt.Errorf("failed to decode graphql data: %w", err)
		}
	}
	return nil
}

const invoiceGroupQuery = `
query InvoiceTransactionGroup($invoiceId: ID!) {
  invoiceTransactionGroup(invoiceId: $invoiceId) {
    found
    paymentId
    transactions {
      index
      transaction
      needsSignature
      signed
      type
    }
  }
}`

// FindExistingGroup queries whether a transaction group was already created
// for this invoice. Returns nil when no group exists yet.
func (c *GraphQLClient) FindExistingGroup(ctx context.Context, invoiceID string) (*models.TransactionGroup, error) {
	var data struct {
		InvoiceTransactionGroup *dto.ExistingGroupResponseWire `json:"invoiceTransactionGroup"`
	}
	err := c.Do(ctx, invoiceGroupQuery, map[string]interface{}{"invoiceId": invoiceID}, &data)
	if err != nil {
		return nil, err
	}
	if data.InvoiceTransactionGroup == nil {
		return nil, nil
	}
	return data.InvoiceTransactionGroup.ToModel(), nil
}

const submitSignedGroupMutation = `
mutation SubmitSignedGroup($paymentId: ID!, $signedTransactions: [SignedTransactionInput!]!) {
  submitSignedGroup(paymentId: $paymentId, signedTransactions: $signedTransactions) {
    transactionId
    confirmedRound
    error
  }
}`

// SubmitSignedGroup submits the signed group over HTTP; the server keys on
// the payment id, so re-sending the same group is idempotent server-side
func (c *GraphQLClient) SubmitSignedGroup(ctx context.Context, request *dto.SubmitRequest) (*dto.SubmitResponseWire, error) {
	signed := make([]map[string]interface{}, 0, len(request.SignedTransactions))
	for _, tx := range request.SignedTransactions {
		signed = append(signed, map[string]interface{}{
			"index":       tx.Index,
			"transaction": tx.Transaction,
		})
	}

	var data struct {
		SubmitSignedGroup *dto.SubmitResponseWire `json:"submitSignedGroup"`
	}
	err := c.Do(ctx, submitSignedGroupMutation, map[string]interface{}{
		"paymentId":          request.PaymentID,
		"signedTransactions": signed,
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.SubmitSignedGroup == nil {
		return nil, fmt.Errorf("submitSignedGroup returned no payload")
	}
	if data.SubmitSignedGroup.Error != "" {
		return nil, fmt.Errorf("submitSignedGroup rejected: %s", data.SubmitSignedGroup.Error)
	}
	return data.SubmitSignedGroup, nil
}

func truncate(raw []byte, max int) string {
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
