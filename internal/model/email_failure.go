package model

import (
	"encoding/json"
	"time"
)

type EmailFailureStatus string

const (
	EmailFailureStatusPending EmailFailureStatus = "pending"
	EmailFailureStatusSent    EmailFailureStatus = "sent"
	EmailFailureStatusFailed  EmailFailureStatus = "failed"
)

// Terminal reports whether the drain loop must leave the record alone.
func (s EmailFailureStatus) Terminal() bool {
	return s == EmailFailureStatusSent || s == EmailFailureStatusFailed
}

// EmailFailure is an outbound email that could not be delivered and waits for a resend.
type EmailFailure struct {
	ID            int64              `db:"id" json:"id"`
	Recipient     string             `db:"recipient" json:"recipient"`
	Subject       string             `db:"subject" json:"subject"`
	Body          string             `db:"body" json:"-"`
	ErrorCode     string             `db:"error_code" json:"error_code"`
	ErrorMessage  string             `db:"error_message" json:"error_message"`
	Payload       json.RawMessage    `db:"payload" json:"payload,omitempty"`
	RetryCount    int                `db:"retry_count" json:"retry_count"`
	MaxRetries    int                `db:"max_retries" json:"max_retries"`
	Status        EmailFailureStatus `db:"status" json:"status"`
	LastAttemptAt *time.Time         `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// QueueResult summarises one drain pass.
type QueueResult struct {
	Success int           `json:"success"`
	Failed  int           `json:"failed"`
	Skipped int           `json:"skipped"`
	Details []QueueDetail `json:"details"`
}

type QueueDetail struct {
	ID         int64              `json:"id"`
	Recipient  string             `json:"recipient"`
	Status     EmailFailureStatus `json:"status"`
	RetryCount int                `json:"retry_count"`
	Error      string             `json:"error,omitempty"`
}

type EmailFailureStats struct {
	Pending int `json:"pending" db:"pending"`
	Sent    int `json:"sent" db:"sent"`
	Failed  int `json:"failed" db:"failed"`
}
