package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/pair-notify/internal/domain"
	"github.com/kursadbilgin/pair-notify/internal/observability"
	"github.com/kursadbilgin/pair-notify/internal/provider"
	"github.com/kursadbilgin/pair-notify/internal/ratelimit"
	"github.com/kursadbilgin/pair-notify/internal/repository"
	"go.uber.org/zap"
)

const defaultSendTimeout = 10 * time.Second

// Outcome is the result of one delivery attempt.
type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomeFailed         Outcome = "failed"
	OutcomeSkippedInvalid Outcome = "skipped_invalid"
	OutcomeSkippedNoToken Outcome = "skipped_no_token"
	// OutcomeLookupFailed means the token store could not be read. Like a
	// missing token it leaves the record untouched.
	OutcomeLookupFailed Outcome = "token_lookup_failed"
)

// Delivery describes one push to one user.
type Delivery struct {
	Path           string
	RecipientUID   string
	RelationshipID string
	Type           domain.PushType
	Title          string
	Body           string
}

type DeliveryResult struct {
	Outcome   Outcome
	MessageID string
	Err       error
}

// Attempted reports whether the transport was reached or the attempt failed on the way.
func (r DeliveryResult) Attempted() bool {
	return r.Outcome == OutcomeSent || r.Outcome == OutcomeFailed
}

// PushSender runs the shared send pipeline: resolve token, wait for the rate
// limiter, send with a per-attempt timeout and classify the result. It never
// touches stored records.
type PushSender struct {
	tokens      repository.TokenResolver
	provider    provider.Provider
	rateLimiter ratelimit.RateLimiter
	sendTimeout time.Duration
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewPushSender(
	tokens repository.TokenResolver,
	pushProvider provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	sendTimeout time.Duration,
	logger *zap.Logger,
) (*PushSender, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token resolver is required")
	}
	if pushProvider == nil {
		return nil, fmt.Errorf("push provider is required")
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PushSender{
		tokens:      tokens,
		provider:    pushProvider,
		rateLimiter: rateLimiter,
		sendTimeout: sendTimeout,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (s *PushSender) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// SendRecord delivers a stored notification record over the given path.
func (s *PushSender) SendRecord(ctx context.Context, path string, record *domain.NotificationRecord) DeliveryResult {
	if !record.Deliverable() {
		s.metrics.IncRecordSkipped(path, string(OutcomeSkippedInvalid))
		return DeliveryResult{Outcome: OutcomeSkippedInvalid}
	}

	return s.Deliver(ctx, Delivery{
		Path:           path,
		RecipientUID:   record.ToUID,
		RelationshipID: record.Key.RelationshipID,
		Type:           domain.PushTypeMessage,
		Title:          record.DisplayTitle(),
		Body:           record.Text,
	})
}

// Deliver performs at most one transport call for d.
func (s *PushSender) Deliver(ctx context.Context, d Delivery) DeliveryResult {
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("path", d.Path),
		zap.String("relationshipId", d.RelationshipID),
		zap.String("toUid", d.RecipientUID),
	)

	token, err := s.tokens.LookupToken(ctx, d.RecipientUID)
	if err != nil {
		if errors.Is(err, domain.ErrTokenAbsent) {
			logger.Debug("no push token registered, skipping")
			s.metrics.IncRecordSkipped(d.Path, string(OutcomeSkippedNoToken))
			return DeliveryResult{Outcome: OutcomeSkippedNoToken}
		}

		logger.Error("failed to resolve push token", zap.Error(err))
		s.metrics.IncRecordSkipped(d.Path, string(OutcomeLookupFailed))
		return DeliveryResult{Outcome: OutcomeLookupFailed, Err: err}
	}

	msg := domain.NewPushMessage(token, d.Title, d.Body, d.Type, d.RelationshipID)
	if err := msg.Validate(); err != nil {
		logger.Warn("push message is invalid, skipping", zap.Error(err))
		s.metrics.IncRecordSkipped(d.Path, string(OutcomeSkippedInvalid))
		return DeliveryResult{Outcome: OutcomeSkippedInvalid, Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(attemptCtx, ratelimit.ScopePush); err != nil {
			return s.failed(logger, d.Path, fmt.Errorf("rate limiter wait failed: %w", err))
		}
	}

	sendStart := s.now()
	resp, err := s.provider.Send(attemptCtx, msg)
	s.metrics.ObservePushSendDuration(d.Path, s.now().Sub(sendStart))
	if err != nil {
		return s.failed(logger, d.Path, err)
	}

	result := DeliveryResult{Outcome: OutcomeSent}
	if resp != nil {
		result.MessageID = resp.MessageID
	}
	s.metrics.IncPushSent(d.Path)
	logger.Debug("push sent", zap.String("messageId", result.MessageID))
	return result
}

func (s *PushSender) failed(logger *zap.Logger, path string, err error) DeliveryResult {
	reason := provider.FailureReason(err)
	s.metrics.IncPushFailed(path, reason)
	logger.Warn("push send failed",
		zap.String("reason", reason),
		zap.Bool("transient", provider.IsTransient(err)),
		zap.Error(err),
	)
	return DeliveryResult{Outcome: OutcomeFailed, Err: err}
}
