package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"confio-payclient/internal/metrics"
	"confio-payclient/internal/models"
	"confio-payclient/internal/wallet"

	"github.com/sirupsen/logrus"
)

// SigningService the local signing oracle adapter. Decodes the slots that
// need the user's signature, runs them through the wallet, and passes the
// sponsor-signed slots through untouched.
type SigningService struct {
	wallet wallet.Session
	logger *logrus.Logger

	// one signing run at a time per in-memory wallet instance
	mu sync.Mutex
}

// NewSigningService creates the adapter around a wallet session
func NewSigningService(session wallet.Session, logger *logrus.Logger) *SigningService {
	return &SigningService{
		wallet: session,
		logger: logger,
	}
}

// SignGroup signs every slot flagged as needing the user's signature, in
// index order, and emits the full four-slot submission. Any single slot
// failure aborts the whole group: a partially-signed group is useless.
func (s *SigningService) SignGroup(ctx context.Context, group *models.TransactionGroup) (*models.SignedSubmission, error) {
	if group == nil || len(group.Slots) != models.GroupSize {
		count := 0
		if group != nil {
			count = len(group.Slots)
		}
		return nil, &models.MalformedGroupError{Count: count}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.PhaseDuration.WithLabelValues("sign").Observe(time.Since(start).Seconds())
	}()

	// restore before the signing loop; a restore failure is not fatal here,
	// the signer itself decides whether it can sign
	if err := s.wallet.EnsureRestored(ctx); err != nil {
		s.logger.WithError(err).Warn("⚠️ [Sign] Wallet restore failed, attempting to sign anyway")
	}

	// index order regardless of how the server ordered the array
	slots := make([]models.TransactionSlot, len(group.Slots))
	copy(slots, group.Slots)
	sort.Slice(slots, func(i, j int) bool { return slots[i].Index < slots[j].Index })

	submission := &models.SignedSubmission{
		PaymentID:    group.PaymentID,
		Transactions: make([]models.SignedTransaction, 0, len(slots)),
	}

	for i := range slots {
		slot := &slots[i]

		if !slot.RequiresUserSignature() {
			// sponsor-signed slot: byte-for-byte pass-through
			submission.Transactions = append(submission.Transactions, models.SignedTransaction{
				Index:       slot.Index,
				Transaction: slot.Transaction,
			})
			continue
		}

		raw, err := base64.StdEncoding.DecodeString(slot.Transaction)
		if err != nil {
			return nil, &models.SigningError{Index: slot.Index, Cause: fmt.Errorf("invalid transaction encoding: %w", err)}
		}

		signed, err := s.wallet.SignTransaction(ctx, raw)
		if err != nil {
			return nil, &models.SigningError{Index: slot.Index, Cause: err}
		}

		submission.Transactions = append(submission.Transactions, models.SignedTransaction{
			Index:       slot.Index,
			Transaction: base64.StdEncoding.EncodeToString(signed),
		})

		s.logger.WithFields(logrus.Fields{
			"index": slot.Index,
			"type":  slot.Type,
		}).Debug("[Sign] Slot signed")
	}

	s.logger.WithField("payment_id", group.PaymentID).Info("✅ [Sign] Group fully signed")
	return submission, nil
}
