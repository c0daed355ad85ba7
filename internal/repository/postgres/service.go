package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/rdv-api/internal/model"
)

const serviceColumns = `
	s.id, s.name, s.description, s.duration, s.price, s.capacity,
	s.buffer_before, s.buffer_after, s.status, s.category, s.color,
	ARRAY(SELECT ps.provider_id FROM rdv_provider_services ps WHERE ps.service_id = s.id ORDER BY ps.provider_id) AS provider_ids,
	s.created_at, s.updated_at`

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	query := `
		INSERT INTO rdv_services (
			name, description, duration, price, capacity, buffer_before,
			buffer_after, status, category, color, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	now := time.Now().UTC()
	service.CreatedAt = now
	service.UpdatedAt = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, query,
			service.Name,
			service.Description,
			service.Duration,
			service.Price,
			service.Capacity,
			service.BufferBefore,
			service.BufferAfter,
			service.Status,
			service.Category,
			service.Color,
			service.CreatedAt,
			service.UpdatedAt,
		).Scan(&service.ID)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		return replaceProviders(ctx, tx, service.ID, service.ProviderIDs)
	})
}

func (r *serviceRepository) Get(ctx context.Context, id int64) (*model.Service, error) {
	query := `SELECT` + serviceColumns + `
		FROM rdv_services s
		WHERE s.id = $1
	`
	var service model.Service
	if err := r.db.GetContext(ctx, &service, query, id); err != nil {
		return nil, fmt.Errorf("failed to get service: %w", notFound(err))
	}
	return &service, nil
}

func (r *serviceRepository) Update(ctx context.Context, service *model.Service) error {
	query := `
		UPDATE rdv_services
		SET name = $1, description = $2, duration = $3, price = $4, capacity = $5,
			buffer_before = $6, buffer_after = $7, status = $8, category = $9,
			color = $10, updated_at = $11
		WHERE id = $12
	`
	service.UpdatedAt = time.Now().UTC()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			service.Name,
			service.Description,
			service.Duration,
			service.Price,
			service.Capacity,
			service.BufferBefore,
			service.BufferAfter,
			service.Status,
			service.Category,
			service.Color,
			service.UpdatedAt,
			service.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update service: %w", err)
		}
		if err := expectAffected(result); err != nil {
			return fmt.Errorf("failed to update service: %w", err)
		}
		return replaceProviders(ctx, tx, service.ID, service.ProviderIDs)
	})
}

func (r *serviceRepository) SetStatus(ctx context.Context, id int64, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rdv_services SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set service status: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return fmt.Errorf("failed to set service status: %w", err)
	}
	return nil
}

func (r *serviceRepository) List(ctx context.Context, activeOnly bool) ([]*model.Service, error) {
	query := `SELECT` + serviceColumns + ` FROM rdv_services s`
	var args []interface{}
	if activeOnly {
		query += ` WHERE s.status = $1`
		args = append(args, model.ServiceStatusActive)
	}
	query += ` ORDER BY s.name`

	services := []*model.Service{}
	if err := r.db.SelectContext(ctx, &services, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

// replaceProviders rewrites the service side of the provider/service join table.
func replaceProviders(ctx context.Context, tx *sqlx.Tx, serviceID int64, providerIDs pq.Int64Array) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM rdv_provider_services WHERE service_id = $1`, serviceID); err != nil {
		return fmt.Errorf("failed to clear service providers: %w", err)
	}
	if len(providerIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rdv_provider_services (provider_id, service_id)
		SELECT unnest($1::bigint[]), $2
		ON CONFLICT DO NOTHING
	`, providerIDs, serviceID)
	if err != nil {
		return fmt.Errorf("failed to assign service providers: %w", err)
	}
	return nil
}
