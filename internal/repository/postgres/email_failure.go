package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/rdv-api/internal/model"
)

const emailFailureColumns = `
	id, recipient, subject, body, error_code, error_message, COALESCE(payload, '{}') AS payload,
	retry_count, max_retries, status, last_attempt_at, created_at, updated_at`

func (r *emailFailureRepository) Create(ctx context.Context, failure *model.EmailFailure) error {
	query := `
		INSERT INTO rdv_email_failures (
			recipient, subject, body, error_code, error_message, payload,
			retry_count, max_retries, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	now := time.Now().UTC()
	failure.CreatedAt = now
	failure.UpdatedAt = now

	payload := []byte(failure.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	err := r.db.QueryRowxContext(ctx, query,
		failure.Recipient,
		failure.Subject,
		failure.Body,
		failure.ErrorCode,
		failure.ErrorMessage,
		payload,
		failure.RetryCount,
		failure.MaxRetries,
		failure.Status,
		failure.CreatedAt,
		failure.UpdatedAt,
	).Scan(&failure.ID)
	if err != nil {
		return fmt.Errorf("failed to create email failure: %w", err)
	}
	return nil
}

func (r *emailFailureRepository) ListPending(ctx context.Context, limit int) ([]*model.EmailFailure, error) {
	query := `SELECT` + emailFailureColumns + `
		FROM rdv_email_failures
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`
	failures := []*model.EmailFailure{}
	if err := r.db.SelectContext(ctx, &failures, query, model.EmailFailureStatusPending, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending email failures: %w", err)
	}
	return failures, nil
}

func (r *emailFailureRepository) RecordAttempt(ctx context.Context, failure *model.EmailFailure) error {
	query := `
		UPDATE rdv_email_failures
		SET retry_count = $1, status = $2, error_message = $3,
			last_attempt_at = $4, updated_at = $5
		WHERE id = $6
	`
	now := time.Now().UTC()
	failure.LastAttemptAt = &now
	failure.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, query,
		failure.RetryCount,
		failure.Status,
		failure.ErrorMessage,
		failure.LastAttemptAt,
		failure.UpdatedAt,
		failure.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to record email attempt: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return fmt.Errorf("failed to record email attempt: %w", err)
	}
	return nil
}

func (r *emailFailureRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rdv_email_failures WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old email failures: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

func (r *emailFailureRepository) Stats(ctx context.Context) (*model.EmailFailureStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'sent') AS sent,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM rdv_email_failures
	`
	var stats model.EmailFailureStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get email failure stats: %w", err)
	}
	return &stats, nil
}
