package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"confio-payclient/internal/metrics"
	"confio-payclient/internal/models"

	"github.com/sirupsen/logrus"
)

// Preparer requests the atomic group for an intent
type Preparer interface {
	Prepare(ctx context.Context, intent *models.PaymentIntent, idempotencyKey string) (*models.TransactionGroup, error)
}

// GroupSigner signs the user-owned slots of a group
type GroupSigner interface {
	SignGroup(ctx context.Context, group *models.TransactionGroup) (*models.SignedSubmission, error)
}

// Submitter delivers the signed group and waits for confirmation
type Submitter interface {
	Submit(ctx context.Context, signed *models.SignedSubmission, paymentID string) (*models.SubmissionResult, error)
}

// GroupFinder looks up an already-created group for a payment anchor,
// used both for pre-flight detection and conflict recovery
type GroupFinder interface {
	FindExistingGroup(ctx context.Context, anchorID string) (*models.TransactionGroup, error)
}

// PaymentCoordinator drives one payment attempt end to end and owns the
// idempotency and recovery behavior around it. One coordinator per screen
// mount: the first trigger wins, later triggers are suppressed, and a fresh
// attempt means a fresh coordinator (which also lands in a fresh time
// bucket for the idempotency key).
type PaymentCoordinator struct {
	preparer  Preparer
	signer    GroupSigner
	submitter Submitter
	finder    GroupFinder
	logger    *logrus.Logger

	// RecoveryAttempts bounded polling budget after a prepare conflict
	RecoveryAttempts int
	// RecoveryBackoff fixed delay between recovery polls
	RecoveryBackoff time.Duration
	// Clock injectable time source for the idempotency minute bucket
	Clock func() time.Time
	// OnStateChange optional observer for screen progress rendering;
	// must not block
	OnStateChange func(models.PaymentState)

	started atomic.Bool

	mu    sync.Mutex
	state models.PaymentState
}

// NewPaymentCoordinator creates a coordinator with the protocol defaults
// (3 recovery polls, 250ms apart). finder may be nil when the flow has no
// recovery collaborator.
func NewPaymentCoordinator(preparer Preparer, signer GroupSigner, submitter Submitter, finder GroupFinder, logger *logrus.Logger) *PaymentCoordinator {
	return &PaymentCoordinator{
		preparer:         preparer,
		signer:           signer,
		submitter:        submitter,
		finder:           finder,
		logger:           logger,
		RecoveryAttempts: 3,
		RecoveryBackoff:  250 * time.Millisecond,
		Clock:            time.Now,
		state:            models.PaymentStateInit,
	}
}

// State returns the current attempt state
func (c *PaymentCoordinator) State() models.PaymentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *PaymentCoordinator) setState(state models.PaymentState) {
	c.mu.Lock()
	previous := c.state
	c.state = state
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"from": previous,
		"to":   state,
	}).Debug("[Coordinator] State transition")

	if c.OnStateChange != nil {
		c.OnStateChange(state)
	}
}

// DeriveIdempotencyKey computes the stable key for this logical payment.
// Invoice flows anchor on the invoice id, peer sends on recipient, amount
// digits and asset; both bucket to the minute. Two identical payments in
// the same minute deliberately collide: preventing a double spend beats
// allowing rapid identical repeats.
func (c *PaymentCoordinator) DeriveIdempotencyKey(intent *models.PaymentIntent) string {
	bucket := c.Clock().UTC().Unix() / 60
	if intent.InvoiceID != "" {
		return fmt.Sprintf("pay_%s_%d", intent.InvoiceID, bucket)
	}
	return fmt.Sprintf("send_%s_%s_%s_%d",
		intent.RecipientIdentifier(), intent.AmountDigits(), intent.AssetType, bucket)
}

// Execute runs prepare → sign → submit with recovery. The context governs
// the flow only until signing starts; after that the attempt is detached
// from caller cancellation, because a signed-but-unsubmitted group must not
// be abandoned midway.
func (c *PaymentCoordinator) Execute(ctx context.Context, intent *models.PaymentIntent) (*models.SubmissionResult, error) {
	if !c.started.CompareAndSwap(false, true) {
		// duplicate trigger (double-tap, re-fired effect): suppress
		c.logger.Debug("[Coordinator] Duplicate trigger suppressed")
		return nil, models.ErrPaymentInFlight
	}

	if err := intent.Validate(); err != nil {
		c.setState(models.PaymentStateFailed)
		metrics.PaymentAttempts.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("invalid payment intent: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// cancellation is only meaningful before preparation begins
		c.setState(models.PaymentStateFailed)
		metrics.PaymentAttempts.WithLabelValues("cancelled").Inc()
		return nil, err
	}

	idempotencyKey := c.DeriveIdempotencyKey(intent)
	c.logger.WithField("idempotency_key", idempotencyKey).Info("🚀 [Coordinator] Starting payment attempt")

	group, err := c.obtainGroup(ctx, intent, idempotencyKey)
	if err != nil {
		c.setState(models.PaymentStateFailed)
		metrics.PaymentAttempts.WithLabelValues("failed").Inc()
		return nil, err
	}
	c.setState(models.PaymentStatePrepared)

	// past this point the flow is no longer cancellable by the caller
	detached := context.WithoutCancel(ctx)

	c.setState(models.PaymentStateSigning)
	signed, err := c.signer.SignGroup(detached, group)
	if err != nil {
		c.setState(models.PaymentStateFailed)
		metrics.PaymentAttempts.WithLabelValues("failed").Inc()
		return nil, err
	}

	c.setState(models.PaymentStateSubmitting)
	result, err := c.submitter.Submit(detached, signed, group.PaymentID)
	if err != nil {
		c.setState(models.PaymentStateFailed)
		metrics.PaymentAttempts.WithLabelValues("failed").Inc()
		return nil, err
	}
	if result.PaymentID == "" {
		result.PaymentID = group.PaymentID
	}

	c.setState(models.PaymentStateConfirmed)
	metrics.PaymentAttempts.WithLabelValues("confirmed").Inc()
	c.logger.WithFields(logrus.Fields{
		"payment_id":      result.PaymentID,
		"transaction_id":  result.TransactionID,
		"confirmed_round": result.ConfirmedRound,
	}).Info("🎉 [Coordinator] Payment confirmed")
	return result, nil
}

// obtainGroup produces a complete group: pre-flight lookup first, then
// prepare, with conflict recovery when a colliding request already created
// the payment record
func (c *PaymentCoordinator) obtainGroup(ctx context.Context, intent *models.PaymentIntent, idempotencyKey string) (*models.TransactionGroup, error) {
	anchor := intent.InvoiceID
	if anchor == "" {
		anchor = idempotencyKey
	}

	// pre-flight: an invoice may already carry a prepared group from an
	// earlier interrupted attempt; resuming it avoids a duplicate payment
	// record server-side
	if intent.InvoiceID != "" && c.finder != nil {
		existing, err := c.finder.FindExistingGroup(ctx, intent.InvoiceID)
		if err != nil {
			c.logger.WithError(err).Warn("⚠️ [Coordinator] Existing-group lookup failed, preparing fresh")
		} else if existing.Complete() {
			c.logger.WithField("payment_id", existing.PaymentID).Info("♻️ [Coordinator] Resuming existing transaction group")
			return existing, nil
		}
	}

	c.setState(models.PaymentStatePreparing)
	group, err := c.preparer.Prepare(ctx, intent, idempotencyKey)
	if err == nil {
		return group, nil
	}
	if !models.IsPrepareConflict(err) {
		return nil, err
	}

	// a colliding request won the race and owns the payment record now;
	// poll for the group it created instead of surfacing an error
	c.setState(models.PaymentStateRecovering)
	c.logger.WithField("anchor", anchor).Info("🔄 [Coordinator] Prepare conflict, polling for existing group")

	recovered, recoverErr := c.recoverGroup(ctx, anchor)
	if recoverErr != nil {
		metrics.ConflictRecoveries.WithLabelValues("exhausted").Inc()
		return nil, fmt.Errorf("%w (after %v)", recoverErr, err)
	}
	metrics.ConflictRecoveries.WithLabelValues("recovered").Inc()
	c.logger.WithField("payment_id", recovered.PaymentID).Info("✅ [Coordinator] Recovered group from colliding request")
	return recovered, nil
}

// recoverGroup polls the existing-group collaborator with a fixed backoff
// until a complete group appears or the budget runs out
func (c *PaymentCoordinator) recoverGroup(ctx context.Context, anchor string) (*models.TransactionGroup, error) {
	if c.finder == nil {
		return nil, models.ErrRecoveryExhausted
	}

	for attempt := 1; attempt <= c.RecoveryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.RecoveryBackoff):
		}

		group, err := c.finder.FindExistingGroup(ctx, anchor)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"error":   err.Error(),
			}).Warn("⚠️ [Coordinator] Recovery poll failed")
			continue
		}
		if group.Complete() {
			return group, nil
		}
		c.logger.WithField("attempt", attempt).Debug("[Coordinator] Group not complete yet")
	}

	return nil, models.ErrRecoveryExhausted
}
