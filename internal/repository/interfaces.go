package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/rdv-api/internal/model"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file
type (
	// AppointmentRepository handles appointment persistence
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id int64) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		// Delete removes the appointment and its log rows.
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error)
		// CountOverlapping counts occupying appointments of the provider on date that
		// intersect [start, end), skipping excludeID when set.
		CountOverlapping(ctx context.Context, providerID int64, date, start, end string, excludeID *int64) (int, error)
		ListOccupying(ctx context.Context, providerID int64, date string) ([]*model.Appointment, error)
		CountByStatus(ctx context.Context, startDate, endDate string) (map[model.AppointmentStatus]int, error)
		AddLog(ctx context.Context, entry *model.AppointmentLog) error
		ListLogs(ctx context.Context, appointmentID int64) ([]*model.AppointmentLog, error)
	}

	ProviderRepository interface {
		Create(ctx context.Context, provider *model.Provider) error
		Get(ctx context.Context, id int64) (*model.Provider, error)
		Update(ctx context.Context, provider *model.Provider) error
		SetActive(ctx context.Context, id int64, active bool) error
		List(ctx context.Context, filters *model.ProviderFilters) ([]*model.Provider, error)
	}

	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, id int64) (*model.Service, error)
		Update(ctx context.Context, service *model.Service) error
		SetStatus(ctx context.Context, id int64, status string) error
		List(ctx context.Context, activeOnly bool) ([]*model.Service, error)
	}

	EmailFailureRepository interface {
		Create(ctx context.Context, failure *model.EmailFailure) error
		ListPending(ctx context.Context, limit int) ([]*model.EmailFailure, error)
		// RecordAttempt persists the outcome of one resend attempt.
		RecordAttempt(ctx context.Context, failure *model.EmailFailure) error
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
		Stats(ctx context.Context) (*model.EmailFailureStats, error)
	}
)
