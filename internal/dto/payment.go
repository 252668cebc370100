// Package dto holds the wire shapes exchanged with the payment server.
// The server is inconsistent about snake_case vs camelCase field naming, so
// every inbound type normalizes both spellings here, at the transport
// boundary, into one canonical model.
package dto

import (
	"encoding/json"
	"fmt"

	"confio-payclient/internal/models"
)

// ==================== Envelope ====================

// message types on the session channel
const (
	MessageTypePrepare  = "prepare_transactions"
	MessageTypeSubmit   = "submit_transactions"
	MessageTypeError    = "error"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
	MessageTypeResponse = "response"
)

// Envelope frames every session channel message
type Envelope struct {
	Type      string          `json:"type"`
	MessageID string          `json:"message_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ==================== Prepare ====================

// PrepareRequest asks the server to build the four-transaction atomic group
type PrepareRequest struct {
	Amount              string `json:"amount"`
	AssetType           string `json:"asset_type"`
	IdempotencyKey      string `json:"idempotency_key"`
	InternalID          string `json:"internal_id,omitempty"`
	Note                string `json:"note,omitempty"`
	RecipientBusinessID string `json:"recipient_business_id,omitempty"`
	RecipientUserID     string `json:"recipient_user_id,omitempty"`
	RecipientPhone      string `json:"recipient_phone,omitempty"`
	RecipientAddress    string `json:"recipient_address,omitempty"`
}

// NewPrepareRequest maps an intent onto the wire shape
func NewPrepareRequest(intent *models.PaymentIntent, idempotencyKey string) *PrepareRequest {
	return &PrepareRequest{
		Amount:              intent.Amount,
		AssetType:           string(intent.AssetType),
		IdempotencyKey:      idempotencyKey,
		InternalID:          intent.InvoiceID,
		Note:                intent.Note,
		RecipientBusinessID: intent.RecipientBusinessID,
		RecipientUserID:     intent.RecipientUserID,
		RecipientPhone:      intent.RecipientPhone,
		RecipientAddress:    intent.RecipientAddress,
	}
}

// TransactionSlotWire one slot as the server sends it, either spelling
type TransactionSlotWire struct {
	Index       int    `json:"index"`
	Transaction string `json:"transaction"`
	Type        string `json:"type,omitempty"`

	NeedsSignatureSnake *bool `json:"needs_signature,omitempty"`
	NeedsSignatureCamel *bool `json:"needsSignature,omitempty"`
	SignedSnake         *bool `json:"signed,omitempty"`
	SignedCamel         *bool `json:"alreadySigned,omitempty"`
}

// ToModel normalizes the dual spellings into the canonical slot
func (w *TransactionSlotWire) ToModel() models.TransactionSlot {
	return models.TransactionSlot{
		Index:          w.Index,
		Transaction:    w.Transaction,
		NeedsSignature: coalesceBool(w.NeedsSignatureSnake, w.NeedsSignatureCamel),
		AlreadySigned:  coalesceBool(w.SignedSnake, w.SignedCamel),
		Type:           w.Type,
	}
}

// PrepareResponseWire the prepared group, either spelling
type PrepareResponseWire struct {
	Transactions []TransactionSlotWire `json:"transactions"`

	PaymentIDSnake string `json:"payment_id,omitempty"`
	PaymentIDCamel string `json:"paymentId,omitempty"`
	GroupIDSnake   string `json:"group_id,omitempty"`
	GroupIDCamel   string `json:"groupId,omitempty"`
}

// ToModel normalizes into a TransactionGroup. Size is validated by the
// preparation service, not here.
func (w *PrepareResponseWire) ToModel() *models.TransactionGroup {
	group := &models.TransactionGroup{
		PaymentID: coalesceString(w.PaymentIDSnake, w.PaymentIDCamel),
		GroupID:   coalesceString(w.GroupIDSnake, w.GroupIDCamel),
		Slots:     make([]models.TransactionSlot, 0, len(w.Transactions)),
	}
	for i := range w.Transactions {
		group.Slots = append(group.Slots, w.Transactions[i].ToModel())
	}
	return group
}

// ==================== Submit ====================

// SignedTransactionWire one signed (or passed-through) slot
type SignedTransactionWire struct {
	Index       int    `json:"index"`
	Transaction string `json:"transaction"`
}

// SubmitRequest sends the fully-signed group back to the server
type SubmitRequest struct {
	SignedTransactions []SignedTransactionWire `json:"signed_transactions"`
	PaymentID          string                  `json:"payment_id"`
}

// NewSubmitRequest maps a signed submission onto the wire shape
func NewSubmitRequest(signed *models.SignedSubmission, paymentID string) *SubmitRequest {
	req := &SubmitRequest{
		PaymentID:          paymentID,
		SignedTransactions: make([]SignedTransactionWire, 0, len(signed.Transactions)),
	}
	for _, tx := range signed.Transactions {
		req.SignedTransactions = append(req.SignedTransactions, SignedTransactionWire{
			Index:       tx.Index,
			Transaction: tx.Transaction,
		})
	}
	return req
}

// SubmitResponseWire the confirmation, either spelling
type SubmitResponseWire struct {
	TransactionIDSnake string `json:"transaction_id,omitempty"`
	TransactionIDCamel string `json:"transactionId,omitempty"`

	ConfirmedRoundSnake uint64 `json:"confirmed_round,omitempty"`
	ConfirmedRoundCamel uint64 `json:"confirmedRound,omitempty"`

	Error string `json:"error,omitempty"`
}

// ToModel normalizes into a SubmissionResult
func (w *SubmitResponseWire) ToModel(paymentID string) *models.SubmissionResult {
	round := w.ConfirmedRoundSnake
	if round == 0 {
		round = w.ConfirmedRoundCamel
	}
	return &models.SubmissionResult{
		TransactionID:  coalesceString(w.TransactionIDSnake, w.TransactionIDCamel),
		ConfirmedRound: round,
		PaymentID:      paymentID,
	}
}

// ==================== Existing group query ====================

// ExistingGroupResponseWire a previously-created group for an invoice,
// returned by the recovery query
type ExistingGroupResponseWire struct {
	Found        bool                  `json:"found"`
	Transactions []TransactionSlotWire `json:"transactions,omitempty"`

	PaymentIDSnake string `json:"payment_id,omitempty"`
	PaymentIDCamel string `json:"paymentId,omitempty"`
}

// ToModel returns nil when no group exists yet
func (w *ExistingGroupResponseWire) ToModel() *models.TransactionGroup {
	if !w.Found && len(w.Transactions) == 0 {
		return nil
	}
	group := &models.TransactionGroup{
		PaymentID: coalesceString(w.PaymentIDSnake, w.PaymentIDCamel),
		Slots:     make([]models.TransactionSlot, 0, len(w.Transactions)),
	}
	for i := range w.Transactions {
		group.Slots = append(group.Slots, w.Transactions[i].ToModel())
	}
	return group
}

// DecodePayload unmarshals an envelope payload into the given wire type
func DecodePayload(payload json.RawMessage, out interface{}) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

func coalesceBool(values ...*bool) bool {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return false
}

func coalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
