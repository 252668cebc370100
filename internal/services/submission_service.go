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

// SubmissionTransport one way of delivering the signed group to the server.
// Both implementations are idempotent server-side, keyed on the payment id.
type SubmissionTransport interface {
	Name() string
	Submit(ctx context.Context, request *dto.SubmitRequest) (*dto.SubmitResponseWire, error)
}

// ChannelTransport primary path: the same session channel preparation used
type ChannelTransport struct {
	Channel clients.SessionChannel
}

// Name transport label for logs and metrics
func (t *ChannelTransport) Name() string { return "channel" }

// Submit sends the signed group over the session channel
func (t *ChannelTransport) Submit(ctx context.Context, request *dto.SubmitRequest) (*dto.SubmitResponseWire, error) {
	payload, err := t.Channel.Call(ctx, dto.MessageTypeSubmit, request)
	if err != nil {
		return nil, err
	}
	var response dto.SubmitResponseWire
	if err := dto.DecodePayload(payload, &response); err != nil {
		return nil, fmt.Errorf("submit response malformed: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("submit rejected: %s", response.Error)
	}
	return &response, nil
}

// GraphQLTransport fallback path: the HTTP mutation
type GraphQLTransport struct {
	Client *clients.GraphQLClient
}

// Name transport label for logs and metrics
func (t *GraphQLTransport) Name() string { return "graphql" }

// Submit sends the signed group through the GraphQL mutation
func (t *GraphQLTransport) Submit(ctx context.Context, request *dto.SubmitRequest) (*dto.SubmitResponseWire, error) {
	return t.Client.SubmitSignedGroup(ctx, request)
}

// SubmissionService delivers the signed group and waits for on-chain
// confirmation. One primary attempt, one fallback attempt, nothing more:
// the group is already signed, and a lost response does not mean the chain
// rejected it, so blind retries only create ambiguity.
type SubmissionService struct {
	primary  SubmissionTransport
	fallback SubmissionTransport
	logger   *logrus.Logger
	timeout  time.Duration
}

// NewSubmissionService creates the submission client. fallback may be nil.
func NewSubmissionService(primary, fallback SubmissionTransport, timeout time.Duration, logger *logrus.Logger) *SubmissionService {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SubmissionService{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		timeout:  timeout,
	}
}

// Submit tries the primary transport, then the fallback, and only accepts a
// real (non-placeholder) transaction id as confirmation
func (s *SubmissionService) Submit(ctx context.Context, signed *models.SignedSubmission, paymentID string) (*models.SubmissionResult, error) {
	start := time.Now()
	defer func() {
		metrics.PhaseDuration.WithLabelValues("submit").Observe(time.Since(start).Seconds())
	}()

	request := dto.NewSubmitRequest(signed, paymentID)

	result, primaryErr := s.attempt(ctx, s.primary, request, paymentID)
	if primaryErr == nil {
		return result, nil
	}

	if s.fallback == nil {
		return nil, &models.SubmissionFailedError{PaymentID: paymentID, Cause: primaryErr}
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"error":      primaryErr.Error(),
	}).Warn("⚠️ [Submit] Primary path failed, trying fallback")
	metrics.FallbackSubmissions.Inc()

	result, fallbackErr := s.attempt(ctx, s.fallback, request, paymentID)
	if fallbackErr == nil {
		return result, nil
	}

	return nil, &models.SubmissionFailedError{
		PaymentID: paymentID,
		Cause:     fmt.Errorf("primary: %v; fallback: %w", primaryErr, fallbackErr),
	}
}

// attempt runs one transport with its own bounded deadline
func (s *SubmissionService) attempt(ctx context.Context, transport SubmissionTransport, request *dto.SubmitRequest, paymentID string) (*models.SubmissionResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := transport.Submit(callCtx, request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, &models.TimeoutError{Phase: "submit/" + transport.Name(), Cause: err}
		}
		return nil, err
	}

	result := response.ToModel(paymentID)
	if !result.Confirmed() {
		// placeholder or missing transaction id: still in flight, not success
		return nil, fmt.Errorf("%s path returned unconfirmed transaction id %q", transport.Name(), result.TransactionID)
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":      paymentID,
		"transaction_id":  result.TransactionID,
		"confirmed_round": result.ConfirmedRound,
		"transport":       transport.Name(),
	}).Info("✅ [Submit] Group confirmed on-chain")
	return result, nil
}
