package models

import (
	"fmt"
	"strconv"
	"strings"
)

// AssetType supported asset symbols
type AssetType string

const (
	AssetCUSD   AssetType = "CUSD"
	AssetCONFIO AssetType = "CONFIO"
	AssetUSDC   AssetType = "USDC"
)

// IsValid checks the asset against the supported set
func (a AssetType) IsValid() bool {
	switch a {
	case AssetCUSD, AssetCONFIO, AssetUSDC:
		return true
	}
	return false
}

// PaymentIntent describes one user-initiated payment. Immutable once handed
// to the coordinator.
type PaymentIntent struct {
	Amount              string    `json:"amount"` // decimal string, must be positive
	AssetType           AssetType `json:"asset_type"`
	RecipientBusinessID string    `json:"recipient_business_id,omitempty"`
	RecipientUserID     string    `json:"recipient_user_id,omitempty"`
	RecipientPhone      string    `json:"recipient_phone,omitempty"`
	RecipientAddress    string    `json:"recipient_address,omitempty"`
	Note                string    `json:"note,omitempty"`
	InvoiceID           string    `json:"invoice_id,omitempty"` // set for merchant charge flows
}

// Validate checks the intent before preparation
func (p *PaymentIntent) Validate() error {
	amount, err := strconv.ParseFloat(p.Amount, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", p.Amount, err)
	}
	if amount <= 0 || amount != amount || amount > 1e15 {
		return fmt.Errorf("amount must be a positive finite number, got %q", p.Amount)
	}
	if !p.AssetType.IsValid() {
		return fmt.Errorf("unsupported asset type %q", p.AssetType)
	}
	if p.RecipientIdentifier() == "" {
		return fmt.Errorf("at least one recipient descriptor is required")
	}
	return nil
}

// RecipientIdentifier returns the first present recipient descriptor
func (p *PaymentIntent) RecipientIdentifier() string {
	switch {
	case p.RecipientBusinessID != "":
		return p.RecipientBusinessID
	case p.RecipientUserID != "":
		return p.RecipientUserID
	case p.RecipientPhone != "":
		return p.RecipientPhone
	case p.RecipientAddress != "":
		return p.RecipientAddress
	}
	return ""
}

// AmountDigits returns the amount with everything but digits stripped,
// used inside idempotency keys ("10.00" -> "1000")
func (p *PaymentIntent) AmountDigits() string {
	var b strings.Builder
	for _, r := range p.Amount {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GroupSize atomic groups are always four transactions: two sponsor-signed
// fee/MBR transactions and two user-signed transfer transactions
const GroupSize = 4

// TransactionSlot one entry of the atomic group
type TransactionSlot struct {
	Index          int    `json:"index"`
	Transaction    string `json:"transaction"` // base64-encoded transaction bytes
	NeedsSignature bool   `json:"needs_signature"`
	AlreadySigned  bool   `json:"signed"`
	Type           string `json:"type,omitempty"`
}

// RequiresUserSignature branch on the flags, never on the index position
func (s *TransactionSlot) RequiresUserSignature() bool {
	return s.NeedsSignature && !s.AlreadySigned
}

// TransactionGroup the server-prepared atomic group plus its anchors
type TransactionGroup struct {
	PaymentID string            `json:"payment_id"`
	GroupID   string            `json:"group_id,omitempty"`
	Slots     []TransactionSlot `json:"transactions"`
}

// Complete reports whether the group carries the full four slots
func (g *TransactionGroup) Complete() bool {
	return g != nil && len(g.Slots) == GroupSize
}

// SignedTransaction one slot after signing (or pass-through)
type SignedTransaction struct {
	Index       int    `json:"index"`
	Transaction string `json:"transaction"` // base64-encoded signed bytes
}

// SignedSubmission the fully-signed group, ready for submission.
// Never persist this: the signed bytes authorize fund movement.
type SignedSubmission struct {
	PaymentID    string              `json:"payment_id"`
	Transactions []SignedTransaction `json:"signed_transactions"`
}

// SubmissionResult on-chain confirmation of the whole group
type SubmissionResult struct {
	TransactionID  string `json:"transaction_id"`
	ConfirmedRound uint64 `json:"confirmed_round"`
	PaymentID      string `json:"payment_id"`
}

// PaymentState per-attempt state machine
type PaymentState string

const (
	PaymentStateInit       PaymentState = "INIT"
	PaymentStatePreparing  PaymentState = "PREPARING"
	PaymentStateRecovering PaymentState = "RECOVERING" // conflict recovery edge out of PREPARING
	PaymentStatePrepared   PaymentState = "PREPARED"
	PaymentStateSigning    PaymentState = "SIGNING"
	PaymentStateSubmitting PaymentState = "SUBMITTING"
	PaymentStateConfirmed  PaymentState = "CONFIRMED"
	PaymentStateFailed     PaymentState = "FAILED"
)

// Terminal reports whether the attempt is finished
func (s PaymentState) Terminal() bool {
	return s == PaymentStateConfirmed || s == PaymentStateFailed
}

// placeholder transaction ids the server returns while the group is still
// in flight; these must never be treated as confirmation
var placeholderPrefixes = []string{"pending_blockchain_", "temp_"}

// IsPlaceholderTransactionID reports whether the id is a not-yet-confirmed
// placeholder rather than a real transaction id
func IsPlaceholderTransactionID(id string) bool {
	lower := strings.ToLower(strings.TrimSpace(id))
	if lower == "" || lower == "pending" {
		return true
	}
	for _, prefix := range placeholderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Confirmed reports whether the result carries a real transaction id
func (r *SubmissionResult) Confirmed() bool {
	return r != nil && !IsPlaceholderTransactionID(r.TransactionID)
}
