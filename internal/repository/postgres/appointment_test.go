package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/internal/repository"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var appointmentRowColumns = []string{
	"id", "provider_id", "service_id", "customer_id", "customer_name", "customer_email",
	"customer_phone", "appointment_date", "start_time", "end_time", "status", "notes",
	"payment_method", "payment_reference", "created_at", "updated_at",
}

func TestAppointmentRepository_CountOverlapping(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)
	ctx := context.Background()

	t.Run("without exclusion", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM rdv_appointments`).
			WithArgs(int64(1), "2025-03-10", "10:30", "11:30").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		count, err := repo.CountOverlapping(ctx, 1, "2025-03-10", "10:30", "11:30", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("excluding own id", func(t *testing.T) {
		exclude := int64(42)
		mock.ExpectQuery(`(?s)status IN \(.pending., .confirmed.\).*AND id <> \$5`).
			WithArgs(int64(1), "2025-03-10", "10:00", "11:00", exclude).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		count, err := repo.CountOverlapping(ctx, 1, "2025-03-10", "10:00", "11:00", &exclude)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("query error propagates", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("connection reset"))

		_, err := repo.CountOverlapping(ctx, 1, "2025-03-10", "10:00", "11:00", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_CreateAndGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)
	ctx := context.Background()

	appt := &model.Appointment{
		ProviderID:    1,
		ServiceID:     2,
		CustomerName:  "Alice Martin",
		CustomerEmail: "alice@example.com",
		Date:          "2025-03-10",
		StartTime:     "10:00",
		EndTime:       "11:00",
		Status:        model.AppointmentStatusPending,
	}

	mock.ExpectQuery(`INSERT INTO rdv_appointments`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	require.NoError(t, repo.Create(ctx, appt))
	assert.Equal(t, int64(7), appt.ID)
	assert.False(t, appt.CreatedAt.IsZero())

	now := time.Now()
	mock.ExpectQuery(`FROM rdv_appointments\s+WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns).AddRow(
			7, 1, 2, nil, "Alice Martin", "alice@example.com", "",
			"2025-03-10", "10:00", "11:00", "confirmed", "", "", "", now, now,
		))

	got, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, got.Status)
	assert.Equal(t, "2025-03-10", got.Date)
	assert.Nil(t, got.CustomerID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery(`FROM rdv_appointments`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns))

	_, err := repo.Get(context.Background(), 99)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestAppointmentRepository_UpdateMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(`UPDATE rdv_appointments`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &model.Appointment{Base: model.Base{ID: 5}})
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestAppointmentRepository_Delete(t *testing.T) {
	t.Run("removes logs and row in one transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAppointmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM rdv_logs WHERE appointment_id = \$1`).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM rdv_appointments WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Delete(context.Background(), 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the row is missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAppointmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM rdv_logs`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM rdv_appointments`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.Delete(context.Background(), 3)
		assert.True(t, errors.Is(err, repository.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAppointmentRepository_ListWithFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	filters := &model.AppointmentFilters{
		ProviderID: 1,
		Status:     model.AppointmentStatusPending,
		StartDate:  "2025-03-01",
		Search:     "alice",
		Pagination: model.Pagination{Page: 2, PageSize: 10},
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rdv_appointments WHERE provider_id = \$1 AND status = \$2 AND appointment_date >= \$3 AND \(customer_name ILIKE \$4`).
		WithArgs(int64(1), "pending", "2025-03-01", "%alice%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	now := time.Now()
	mock.ExpectQuery(`ORDER BY appointment_date DESC, start_time DESC LIMIT \$5 OFFSET \$6`).
		WithArgs(int64(1), "pending", "2025-03-01", "%alice%", 10, 10).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns).AddRow(
			12, 1, 2, nil, "Alice", "alice@example.com", "", "2025-03-02",
			"09:00", "09:30", "pending", "", "", "", now, now,
		))

	list, total, err := repo.List(context.Background(), filters)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, list, 1)
	assert.Equal(t, int64(12), list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_CountByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS total FROM rdv_appointments WHERE appointment_date >= \$1 AND appointment_date <= \$2 GROUP BY status`).
		WithArgs("2025-03-01", "2025-03-31").
		WillReturnRows(sqlmock.NewRows([]string{"status", "total"}).
			AddRow("pending", 3).
			AddRow("confirmed", 5))

	counts, err := repo.CountByStatus(context.Background(), "2025-03-01", "2025-03-31")
	require.NoError(t, err)
	assert.Equal(t, 3, counts[model.AppointmentStatusPending])
	assert.Equal(t, 5, counts[model.AppointmentStatusConfirmed])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_Logs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO rdv_logs`).
		WithArgs(int64(3), model.LogActionCancel, "client indisponible", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	entry := &model.AppointmentLog{AppointmentID: 3, Action: model.LogActionCancel, Message: "client indisponible"}
	require.NoError(t, repo.AddLog(ctx, entry))
	assert.Equal(t, int64(1), entry.ID)

	mock.ExpectQuery(`FROM rdv_logs\s+WHERE appointment_id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "appointment_id", "action", "message", "created_at"}).
			AddRow(1, 3, "cancel", "client indisponible", time.Now()))

	logs, err := repo.ListLogs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.LogActionCancel, logs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
