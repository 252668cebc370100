package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"confio-payclient/internal/clients"
	"confio-payclient/internal/dto"
	"confio-payclient/internal/metrics"
	"confio-payclient/internal/models"

	"github.com/sirupsen/logrus"
)

// PreparationService requests the four-transaction atomic group from the
// payment server over the session channel. The prepare call may create a
// durable pending-payment record server-side, so transport retries are the
// coordinator's business, never this service's.
type PreparationService struct {
	channel clients.SessionChannel
	logger  *logrus.Logger
	timeout time.Duration
}

// NewPreparationService creates the preparation client
func NewPreparationService(channel clients.SessionChannel, timeout time.Duration, logger *logrus.Logger) *PreparationService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PreparationService{
		channel: channel,
		logger:  logger,
		timeout: timeout,
	}
}

// Prepare exchanges the payment intent for a prepared TransactionGroup.
// Server uniqueness/atomicity conflicts surface as PrepareConflictError so
// the coordinator can recover instead of duplicating the payment.
func (s *PreparationService) Prepare(ctx context.Context, intent *models.PaymentIntent, idempotencyKey string) (*models.TransactionGroup, error) {
	if err := intent.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payment intent: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.PhaseDuration.WithLabelValues("prepare").Observe(time.Since(start).Seconds())
	}()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.WithFields(logrus.Fields{
		"asset":           intent.AssetType,
		"idempotency_key": idempotencyKey,
	}).Info("🔄 [Prepare] Requesting transaction group")

	request := dto.NewPrepareRequest(intent, idempotencyKey)
	payload, err := s.channel.Call(callCtx, dto.MessageTypePrepare, request)
	if err != nil {
		var serverErr *clients.ServerError
		if errors.As(err, &serverErr) {
			return nil, models.ClassifyPrepareError(serverErr.Message)
		}
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, &models.TimeoutError{Phase: "prepare", Cause: err}
		}
		return nil, fmt.Errorf("prepare call failed: %w", err)
	}

	var response dto.PrepareResponseWire
	if err := dto.DecodePayload(payload, &response); err != nil {
		return nil, fmt.Errorf("prepare response malformed: %w", err)
	}

	group := response.ToModel()
	if len(group.Slots) != models.GroupSize {
		// protocol violation, never try to partially process
		return nil, &models.MalformedGroupError{Count: len(group.Slots)}
	}
	if group.PaymentID == "" {
		return nil, fmt.Errorf("prepare response carries no payment id")
	}

	userSlots := 0
	for i := range group.Slots {
		if group.Slots[i].RequiresUserSignature() {
			userSlots++
		}
	}
	if userSlots != 2 {
		// observed protocol is 2 sponsor-signed + 2 user-signed; signing
		// branches on the flags, so deviations are tolerated but loud
		s.logger.WithFields(logrus.Fields{
			"payment_id": group.PaymentID,
			"user_slots": userSlots,
		}).Warn("⚠️ [Prepare] Unexpected user-signature slot count")
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": group.PaymentID,
		"group_id":   group.GroupID,
	}).Info("✅ [Prepare] Transaction group ready")
	return group, nil
}
