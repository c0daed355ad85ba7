package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/internal/repository/repositorytest"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
)

type forgetLog struct {
	providers []int64
	services  []int64
}

func (f *forgetLog) ForgetProvider(id int64) { f.providers = append(f.providers, id) }
func (f *forgetLog) ForgetService(id int64)  { f.services = append(f.services, id) }

func newCatalog() (*Service, *forgetLog) {
	forgotten := &forgetLog{}
	svc := NewService(
		repositorytest.NewProviders(&model.Provider{Base: model.Base{ID: 1}, Name: "Dr Durand", Email: "durand@example.com", Active: true}),
		repositorytest.NewServices(&model.Service{Base: model.Base{ID: 1}, Name: "Consultation", Duration: 30, Capacity: 1, Status: model.ServiceStatusActive}),
		forgotten,
		nil,
	)
	return svc, forgotten
}

func TestCreateService_Validation(t *testing.T) {
	svc, _ := newCatalog()
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.ServiceRequest
		code apperrors.ErrorCode
	}{
		{"missing name", model.ServiceRequest{Duration: 30}, apperrors.CodeMissingRequiredParams},
		{"zero duration", model.ServiceRequest{Name: "Massage"}, apperrors.CodeInvalidDuration},
		{"negative price", model.ServiceRequest{Name: "Massage", Duration: 30, Price: -1}, apperrors.CodeInvalidPrice},
		{"negative capacity", model.ServiceRequest{Name: "Massage", Duration: 30, Capacity: -2}, apperrors.CodeBadRequest},
		{"negative buffer", model.ServiceRequest{Name: "Massage", Duration: 30, BufferAfter: -5}, apperrors.CodeInvalidDuration},
		{"bad provider id", model.ServiceRequest{Name: "Massage", Duration: 30, ProviderIDs: []int64{0}}, apperrors.CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateService(ctx, &tt.req)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestCreateService_Defaults(t *testing.T) {
	svc, forgotten := newCatalog()

	created, err := svc.CreateService(context.Background(), &model.ServiceRequest{
		Name:        " Massage ",
		Duration:    45,
		Price:       60,
		ProviderIDs: []int64{1},
	})
	require.NoError(t, err)
	assert.Equal(t, "Massage", created.Name)
	assert.Equal(t, 1, created.Capacity)
	assert.Equal(t, model.ServiceStatusActive, created.Status)
	assert.Equal(t, []int64{1}, forgotten.providers)
}

func TestUpdateService_InvalidatesCache(t *testing.T) {
	svc, forgotten := newCatalog()
	ctx := context.Background()

	updated, err := svc.UpdateService(ctx, 1, &model.ServiceRequest{Name: "Consultation longue", Duration: 60, Price: 70})
	require.NoError(t, err)
	assert.Equal(t, 60, updated.Duration)
	assert.Contains(t, forgotten.services, int64(1))

	_, err = svc.UpdateService(ctx, 42, &model.ServiceRequest{Name: "x", Duration: 10})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDeactivateService(t *testing.T) {
	svc, forgotten := newCatalog()
	ctx := context.Background()

	require.NoError(t, svc.DeactivateService(ctx, 1))
	got, err := svc.GetService(ctx, 1)
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	assert.Equal(t, []int64{1}, forgotten.services)

	active, err := svc.ListServices(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.True(t, apperrors.HasCode(svc.DeactivateService(ctx, 9), apperrors.CodeNotFound))
}

func TestProviderLifecycle(t *testing.T) {
	svc, forgotten := newCatalog()
	ctx := context.Background()

	created, err := svc.CreateProvider(ctx, &model.ProviderRequest{
		Name:  "Dr Petit",
		Email: "petit@example.com",
		WorkingHours: model.WeeklySchedule{
			"monday": {{Start: "09:00", End: "12:00"}, {Start: "14:00", End: "18:00"}},
		},
		ServiceIDs: []int64{1},
	})
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.Equal(t, []int64{1}, forgotten.services)

	inactive := false
	updated, err := svc.UpdateProvider(ctx, created.ID, &model.ProviderRequest{
		Name:   "Dr Petit",
		Email:  "petit@example.com",
		Active: &inactive,
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Contains(t, forgotten.providers, created.ID)

	list, err := svc.ListProviders(ctx, &model.ProviderFilters{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].ID)
}

func TestProviderValidation(t *testing.T) {
	svc, _ := newCatalog()
	ctx := context.Background()

	_, err := svc.CreateProvider(ctx, &model.ProviderRequest{Name: "Dr Petit"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingRequiredParams))

	_, err = svc.CreateProvider(ctx, &model.ProviderRequest{
		Name:         "Dr Petit",
		Email:        "petit@example.com",
		WorkingHours: model.WeeklySchedule{"monday": {{Start: "18:00", End: "09:00"}}},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTimeRange))

	_, err = svc.CreateProvider(ctx, &model.ProviderRequest{
		Name:   "Dr Petit",
		Email:  "petit@example.com",
		Pauses: model.WeeklySchedule{"lundi": {{Start: "12:00", End: "13:00"}}},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTimeRange))

	err = svc.DeactivateProvider(ctx, 77)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
