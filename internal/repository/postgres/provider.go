package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/rdv-api/internal/model"
)

const providerColumns = `
	p.id, p.name, p.email, p.phone, p.default_duration, p.active,
	p.working_hours, p.pauses,
	ARRAY(SELECT ps.service_id FROM rdv_provider_services ps WHERE ps.provider_id = p.id ORDER BY ps.service_id) AS service_ids,
	p.created_at, p.updated_at`

func (r *providerRepository) Create(ctx context.Context, provider *model.Provider) error {
	query := `
		INSERT INTO rdv_providers (
			name, email, phone, default_duration, active,
			working_hours, pauses, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	now := time.Now().UTC()
	provider.CreatedAt = now
	provider.UpdatedAt = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, query,
			provider.Name,
			provider.Email,
			provider.Phone,
			provider.DefaultDuration,
			provider.Active,
			provider.WorkingHours,
			provider.Pauses,
			provider.CreatedAt,
			provider.UpdatedAt,
		).Scan(&provider.ID)
		if err != nil {
			return fmt.Errorf("failed to create provider: %w", err)
		}
		return replaceAssignments(ctx, tx, provider.ID, provider.ServiceIDs)
	})
}

func (r *providerRepository) Get(ctx context.Context, id int64) (*model.Provider, error) {
	query := `SELECT` + providerColumns + `
		FROM rdv_providers p
		WHERE p.id = $1
	`
	var provider model.Provider
	if err := r.db.GetContext(ctx, &provider, query, id); err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", notFound(err))
	}
	return &provider, nil
}

func (r *providerRepository) Update(ctx context.Context, provider *model.Provider) error {
	query := `
		UPDATE rdv_providers
		SET name = $1, email = $2, phone = $3, default_duration = $4, active = $5,
			working_hours = $6, pauses = $7, updated_at = $8
		WHERE id = $9
	`
	provider.UpdatedAt = time.Now().UTC()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			provider.Name,
			provider.Email,
			provider.Phone,
			provider.DefaultDuration,
			provider.Active,
			provider.WorkingHours,
			provider.Pauses,
			provider.UpdatedAt,
			provider.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update provider: %w", err)
		}
		if err := expectAffected(result); err != nil {
			return fmt.Errorf("failed to update provider: %w", err)
		}
		return replaceAssignments(ctx, tx, provider.ID, provider.ServiceIDs)
	})
}

func (r *providerRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rdv_providers SET active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set provider active flag: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return fmt.Errorf("failed to set provider active flag: %w", err)
	}
	return nil
}

func (r *providerRepository) List(ctx context.Context, filters *model.ProviderFilters) ([]*model.Provider, error) {
	if filters == nil {
		filters = &model.ProviderFilters{}
	}
	query := `SELECT` + providerColumns + `
		FROM rdv_providers p
		WHERE ($1 = false OR p.active = true)
		  AND ($2 = 0 OR NOT EXISTS (SELECT 1 FROM rdv_provider_services x WHERE x.provider_id = p.id)
		       OR EXISTS (SELECT 1 FROM rdv_provider_services x WHERE x.provider_id = p.id AND x.service_id = $2))
		ORDER BY p.name
	`
	providers := []*model.Provider{}
	if err := r.db.SelectContext(ctx, &providers, query, filters.ActiveOnly, filters.ServiceID); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return providers, nil
}

// replaceAssignments rewrites the provider side of the provider/service join table.
func replaceAssignments(ctx context.Context, tx *sqlx.Tx, providerID int64, serviceIDs pq.Int64Array) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM rdv_provider_services WHERE provider_id = $1`, providerID); err != nil {
		return fmt.Errorf("failed to clear provider services: %w", err)
	}
	if len(serviceIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rdv_provider_services (provider_id, service_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`, providerID, serviceIDs)
	if err != nil {
		return fmt.Errorf("failed to assign provider services: %w", err)
	}
	return nil
}
