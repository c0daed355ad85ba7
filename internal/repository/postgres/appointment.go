package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/rdv-api/internal/model"
)

const appointmentColumns = `
	id, provider_id, service_id, customer_id, customer_name, customer_email,
	customer_phone, to_char(appointment_date, 'YYYY-MM-DD') AS appointment_date,
	to_char(start_time, 'HH24:MI') AS start_time,
	CASE WHEN end_time = '24:00'::time THEN '24:00' ELSE to_char(end_time, 'HH24:MI') END AS end_time,
	status, notes, payment_method, payment_reference, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO rdv_appointments (
			provider_id, service_id, customer_id, customer_name, customer_email,
			customer_phone, appointment_date, start_time, end_time, status,
			notes, payment_method, payment_reference, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	err := r.db.QueryRowxContext(ctx, query,
		appointment.ProviderID,
		appointment.ServiceID,
		appointment.CustomerID,
		appointment.CustomerName,
		appointment.CustomerEmail,
		appointment.CustomerPhone,
		appointment.Date,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.Notes,
		appointment.PaymentMethod,
		appointment.PaymentReference,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	).Scan(&appointment.ID)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM rdv_appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFound(err))
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE rdv_appointments
		SET appointment_date = $1, start_time = $2, end_time = $3, status = $4,
			notes = $5, payment_method = $6, payment_reference = $7, updated_at = $8
		WHERE id = $9
	`
	appointment.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		appointment.Date,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.Notes,
		appointment.PaymentMethod,
		appointment.PaymentReference,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rdv_logs WHERE appointment_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete appointment logs: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM rdv_appointments WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete appointment: %w", err)
		}
		if err := expectAffected(result); err != nil {
			return fmt.Errorf("failed to delete appointment: %w", err)
		}
		return nil
	})
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	where, args := appointmentWhere(filters)

	var total int
	countQuery := `SELECT COUNT(*) FROM rdv_appointments` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	query := `SELECT` + appointmentColumns + ` FROM rdv_appointments` + where +
		` ORDER BY appointment_date DESC, start_time DESC`
	if filters.PageSize > 0 {
		args = append(args, filters.PageSize, filters.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, total, nil
}

func appointmentWhere(filters *model.AppointmentFilters) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(cond string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filters.ProviderID > 0 {
		add("provider_id = $%d", filters.ProviderID)
	}
	if filters.ServiceID > 0 {
		add("service_id = $%d", filters.ServiceID)
	}
	if filters.Status != "" {
		add("status = $%d", filters.Status)
	}
	if filters.StartDate != "" {
		add("appointment_date >= $%d", filters.StartDate)
	}
	if filters.EndDate != "" {
		add("appointment_date <= $%d", filters.EndDate)
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(customer_name ILIKE $%d OR customer_email ILIKE $%d OR customer_phone ILIKE $%d)", n, n, n))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *appointmentRepository) CountOverlapping(ctx context.Context, providerID int64, date, start, end string, excludeID *int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM rdv_appointments
		WHERE provider_id = $1
		  AND appointment_date = $2
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $4
		  AND end_time > $3
	`
	args := []interface{}{providerID, date, start, end}
	if excludeID != nil {
		query += " AND id <> $5"
		args = append(args, *excludeID)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count overlapping appointments: %w", err)
	}
	return count, nil
}

func (r *appointmentRepository) ListOccupying(ctx context.Context, providerID int64, date string) ([]*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM rdv_appointments
		WHERE provider_id = $1
		  AND appointment_date = $2
		  AND status IN ('pending', 'confirmed')
		ORDER BY start_time
	`
	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, providerID, date); err != nil {
		return nil, fmt.Errorf("failed to list occupying appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) CountByStatus(ctx context.Context, startDate, endDate string) (map[model.AppointmentStatus]int, error) {
	where, args := appointmentWhere(&model.AppointmentFilters{StartDate: startDate, EndDate: endDate})
	query := `SELECT status, COUNT(*) AS total FROM rdv_appointments` + where + ` GROUP BY status`

	var rows []struct {
		Status model.AppointmentStatus `db:"status"`
		Total  int                     `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count appointments by status: %w", err)
	}

	counts := make(map[model.AppointmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *appointmentRepository) AddLog(ctx context.Context, entry *model.AppointmentLog) error {
	query := `
		INSERT INTO rdv_logs (appointment_id, action, message, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	entry.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowxContext(ctx, query,
		entry.AppointmentID,
		entry.Action,
		entry.Message,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to add appointment log: %w", err)
	}
	return nil
}

func (r *appointmentRepository) ListLogs(ctx context.Context, appointmentID int64) ([]*model.AppointmentLog, error) {
	query := `
		SELECT id, appointment_id, action, message, created_at
		FROM rdv_logs
		WHERE appointment_id = $1
		ORDER BY created_at, id
	`
	logs := []*model.AppointmentLog{}
	if err := r.db.SelectContext(ctx, &logs, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list appointment logs: %w", err)
	}
	return logs, nil
}
