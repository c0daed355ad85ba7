package emailqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/rdv-api/internal/email"
	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/internal/repository"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
	"github.com/jwalitptl/rdv-api/pkg/logger"
	"github.com/jwalitptl/rdv-api/pkg/metrics"
)

var errRetryLimit = errors.New("retry limit reached")

const (
	DefaultMaxRetries = 3
	DefaultBatchSize  = 50
)

// Service stores undelivered emails and resends them.
type Service struct {
	repo       repository.EmailFailureRepository
	sender     email.Sender
	maxRetries int
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewService(
	repo repository.EmailFailureRepository,
	sender email.Sender,
	maxRetries int,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New("rdv", nil)
	}
	return &Service{
		repo:       repo,
		sender:     sender,
		maxRetries: maxRetries,
		logger:     log,
		metrics:    m,
		now:        time.Now,
	}
}

// AddFailedEmail records an undelivered email as pending with no attempts.
func (s *Service) AddFailedEmail(ctx context.Context, failure *model.EmailFailure) (int64, error) {
	if strings.TrimSpace(failure.Recipient) == "" {
		return 0, apperrors.NewValidation(apperrors.CodeMissingRequiredParams, "recipient is required")
	}

	failure.Status = model.EmailFailureStatusPending
	failure.RetryCount = 0
	if failure.MaxRetries <= 0 {
		failure.MaxRetries = s.maxRetries
	}

	if err := s.repo.Create(ctx, failure); err != nil {
		s.metrics.DatabaseOperations.WithLabelValues("create_email_failure", "error").Inc()
		return 0, fmt.Errorf("failed to queue email: %w", err)
	}
	s.metrics.DatabaseOperations.WithLabelValues("create_email_failure", "success").Inc()
	s.metrics.EmailsQueued.Inc()

	s.logger.Info("email queued for retry",
		"failure_id", failure.ID,
		"recipient", failure.Recipient,
		"error_code", failure.ErrorCode)
	return failure.ID, nil
}

// ProcessQueue resends up to limit pending emails. Each record is handled on
// its own: an error or panic while sending one never stops the others.
func (s *Service) ProcessQueue(ctx context.Context, limit int) (*model.QueueResult, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	timer := prometheus.NewTimer(s.metrics.QueueDrainDuration)
	defer timer.ObserveDuration()

	failures, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		s.metrics.DatabaseOperations.WithLabelValues("list_pending_emails", "error").Inc()
		return nil, fmt.Errorf("failed to load email queue: %w", err)
	}
	s.metrics.DatabaseOperations.WithLabelValues("list_pending_emails", "success").Inc()

	result := &model.QueueResult{Details: make([]model.QueueDetail, 0, len(failures))}
	for _, failure := range failures {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Details = append(result.Details, s.processOne(ctx, failure, result))
	}

	if len(failures) > 0 {
		s.logger.Info("email queue processed",
			"success", result.Success,
			"failed", result.Failed,
			"skipped", result.Skipped)
	}
	return result, nil
}

func (s *Service) processOne(ctx context.Context, failure *model.EmailFailure, result *model.QueueResult) model.QueueDetail {
	detail := model.QueueDetail{
		ID:         failure.ID,
		Recipient:  failure.Recipient,
		Status:     failure.Status,
		RetryCount: failure.RetryCount,
	}

	if failure.Status.Terminal() {
		result.Skipped++
		return detail
	}

	// A pending row already at its cap is closed without another send.
	sendErr := errRetryLimit
	if failure.RetryCount < failure.MaxRetries {
		sendErr = s.resend(ctx, failure)
	}
	if errors.Is(sendErr, errRetryLimit) {
		failure.Status = model.EmailFailureStatusFailed
		failure.ErrorMessage = sendErr.Error()
		result.Skipped++
		s.metrics.EmailsFailed.Inc()
		detail.Error = sendErr.Error()
		s.logger.Warn("email at retry limit marked failed",
			"failure_id", failure.ID,
			"retry_count", failure.RetryCount,
			"max_retries", failure.MaxRetries)
	} else if sendErr == nil {
		failure.Status = model.EmailFailureStatusSent
		failure.ErrorMessage = ""
		result.Success++
		s.metrics.EmailsSent.Inc()
	} else {
		failure.RetryCount++
		failure.ErrorMessage = sendErr.Error()
		if failure.RetryCount >= failure.MaxRetries {
			failure.Status = model.EmailFailureStatusFailed
			s.metrics.EmailsFailed.Inc()
		}
		result.Failed++
		s.metrics.EmailRetries.Inc()
		detail.Error = sendErr.Error()
	}

	if err := s.repo.RecordAttempt(ctx, failure); err != nil {
		s.logger.Error(err, "failed to record email attempt", "failure_id", failure.ID)
		s.metrics.DatabaseOperations.WithLabelValues("record_email_attempt", "error").Inc()
		if detail.Error == "" {
			detail.Error = err.Error()
		}
	} else {
		s.metrics.DatabaseOperations.WithLabelValues("record_email_attempt", "success").Inc()
	}

	detail.Status = failure.Status
	detail.RetryCount = failure.RetryCount
	return detail
}

func (s *Service) resend(ctx context.Context, failure *model.EmailFailure) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while sending email: %v", r)
			s.logger.Error(err, "recovered from panic in email sender", "failure_id", failure.ID)
		}
	}()
	return s.sender.Send(ctx, email.Message{
		To:      failure.Recipient,
		Subject: failure.Subject,
		Body:    failure.Body,
	})
}

// CleanupOldFailures deletes records created more than days ago, whatever their status.
func (s *Service) CleanupOldFailures(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, apperrors.NewValidation(apperrors.CodeBadRequest, "days must be positive")
	}
	cutoff := s.now().AddDate(0, 0, -days)

	deleted, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.metrics.DatabaseOperations.WithLabelValues("cleanup_email_failures", "error").Inc()
		return 0, fmt.Errorf("failed to clean up email failures: %w", err)
	}
	s.metrics.DatabaseOperations.WithLabelValues("cleanup_email_failures", "success").Inc()
	s.metrics.FailuresCleanedUp.Add(float64(deleted))

	s.logger.Info("email failures cleaned up", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	return deleted, nil
}

func (s *Service) Stats(ctx context.Context) (*model.EmailFailureStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load email queue stats: %w", err)
	}
	return stats, nil
}
