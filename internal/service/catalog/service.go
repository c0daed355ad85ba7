// Package catalog manages providers and the services they offer.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/internal/repository"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
	"github.com/jwalitptl/rdv-api/pkg/logger"
)

// Invalidator drops cached lookups after a catalog change.
type Invalidator interface {
	ForgetProvider(id int64)
	ForgetService(id int64)
}

type Service struct {
	providers repository.ProviderRepository
	services  repository.ServiceRepository
	cache     Invalidator
	logger    *logger.Logger
}

func NewService(providers repository.ProviderRepository, services repository.ServiceRepository, cache Invalidator, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{providers: providers, services: services, cache: cache, logger: log}
}

func (s *Service) CreateProvider(ctx context.Context, req *model.ProviderRequest) (*model.Provider, error) {
	if err := validateProvider(req); err != nil {
		return nil, err
	}
	provider := &model.Provider{Active: true}
	applyProvider(provider, req)

	if err := s.providers.Create(ctx, provider); err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	s.forgetServices(provider.ServiceIDs)
	s.logger.Info("provider created", "provider_id", provider.ID)
	return provider, nil
}

func (s *Service) GetProvider(ctx context.Context, id int64) (*model.Provider, error) {
	provider, err := s.providers.Get(ctx, id)
	if err != nil {
		return nil, notFound("provider", err)
	}
	return provider, nil
}

func (s *Service) ListProviders(ctx context.Context, filters *model.ProviderFilters) ([]*model.Provider, error) {
	providers, err := s.providers.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return providers, nil
}

func (s *Service) UpdateProvider(ctx context.Context, id int64, req *model.ProviderRequest) (*model.Provider, error) {
	if err := validateProvider(req); err != nil {
		return nil, err
	}
	provider, err := s.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := append([]int64(nil), provider.ServiceIDs...)
	applyProvider(provider, req)

	if err := s.providers.Update(ctx, provider); err != nil {
		return nil, notFound("provider", err)
	}
	s.forgetProvider(id)
	s.forgetServices(previous)
	s.forgetServices(provider.ServiceIDs)
	return provider, nil
}

// DeactivateProvider is a soft delete; existing appointments are kept.
func (s *Service) DeactivateProvider(ctx context.Context, id int64) error {
	if err := s.providers.SetActive(ctx, id, false); err != nil {
		return notFound("provider", err)
	}
	s.forgetProvider(id)
	s.logger.Info("provider deactivated", "provider_id", id)
	return nil
}

func (s *Service) CreateService(ctx context.Context, req *model.ServiceRequest) (*model.Service, error) {
	if err := validateService(req); err != nil {
		return nil, err
	}
	service := &model.Service{Status: model.ServiceStatusActive}
	applyService(service, req)

	if err := s.services.Create(ctx, service); err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	s.forgetProviders(service.ProviderIDs)
	s.logger.Info("service created", "service_id", service.ID)
	return service, nil
}

func (s *Service) GetService(ctx context.Context, id int64) (*model.Service, error) {
	service, err := s.services.Get(ctx, id)
	if err != nil {
		return nil, notFound("service", err)
	}
	return service, nil
}

func (s *Service) ListServices(ctx context.Context, activeOnly bool) ([]*model.Service, error) {
	services, err := s.services.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (s *Service) UpdateService(ctx context.Context, id int64, req *model.ServiceRequest) (*model.Service, error) {
	if err := validateService(req); err != nil {
		return nil, err
	}
	service, err := s.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := append([]int64(nil), service.ProviderIDs...)
	applyService(service, req)

	if err := s.services.Update(ctx, service); err != nil {
		return nil, notFound("service", err)
	}
	s.forgetService(id)
	s.forgetProviders(previous)
	s.forgetProviders(service.ProviderIDs)
	return service, nil
}

func (s *Service) DeactivateService(ctx context.Context, id int64) error {
	if err := s.services.SetStatus(ctx, id, model.ServiceStatusInactive); err != nil {
		return notFound("service", err)
	}
	s.forgetService(id)
	s.logger.Info("service deactivated", "service_id", id)
	return nil
}

func validateProvider(req *model.ProviderRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return apperrors.NewValidation(apperrors.CodeMissingRequiredParams, "name and email are required")
	}
	if req.DefaultDuration < 0 {
		return apperrors.NewValidation(apperrors.CodeInvalidDuration, "default_duration must not be negative")
	}
	if err := req.WorkingHours.Validate(); err != nil {
		return apperrors.NewValidation(apperrors.CodeInvalidTimeRange, "working_hours: "+err.Error())
	}
	if err := req.Pauses.Validate(); err != nil {
		return apperrors.NewValidation(apperrors.CodeInvalidTimeRange, "pauses: "+err.Error())
	}
	return validateIDs("service_ids", req.ServiceIDs)
}

func validateService(req *model.ServiceRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidation(apperrors.CodeMissingRequiredParams, "name is required")
	}
	if req.Duration <= 0 {
		return apperrors.NewValidation(apperrors.CodeInvalidDuration, "duration must be a positive number of minutes")
	}
	if req.Price < 0 {
		return apperrors.NewValidation(apperrors.CodeInvalidPrice, "price must not be negative")
	}
	if req.Capacity < 0 {
		return apperrors.NewValidation(apperrors.CodeBadRequest, "capacity must be at least 1")
	}
	if req.BufferBefore < 0 || req.BufferAfter < 0 {
		return apperrors.NewValidation(apperrors.CodeInvalidDuration, "buffers must not be negative")
	}
	return validateIDs("provider_ids", req.ProviderIDs)
}

func validateIDs(field string, ids []int64) error {
	for _, id := range ids {
		if id <= 0 {
			return apperrors.NewValidation(apperrors.CodeBadRequest, fmt.Sprintf("%s contains an invalid id", field))
		}
	}
	return nil
}

func applyProvider(p *model.Provider, req *model.ProviderRequest) {
	p.Name = strings.TrimSpace(req.Name)
	p.Email = strings.TrimSpace(req.Email)
	p.Phone = strings.TrimSpace(req.Phone)
	p.DefaultDuration = req.DefaultDuration
	if req.Active != nil {
		p.Active = *req.Active
	}
	p.WorkingHours = req.WorkingHours
	p.Pauses = req.Pauses
	p.ServiceIDs = req.ServiceIDs
}

func applyService(s *model.Service, req *model.ServiceRequest) {
	s.Name = strings.TrimSpace(req.Name)
	s.Description = req.Description
	s.Duration = req.Duration
	s.Price = req.Price
	s.Capacity = req.Capacity
	if s.Capacity == 0 {
		s.Capacity = 1
	}
	s.BufferBefore = req.BufferBefore
	s.BufferAfter = req.BufferAfter
	if req.Status != "" {
		s.Status = req.Status
	}
	s.Category = req.Category
	s.Color = req.Color
	s.ProviderIDs = req.ProviderIDs
}

func notFound(entity string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(entity, err)
	}
	return fmt.Errorf("failed to access %s: %w", entity, err)
}

func (s *Service) forgetProvider(id int64) {
	if s.cache != nil {
		s.cache.ForgetProvider(id)
	}
}

func (s *Service) forgetService(id int64) {
	if s.cache != nil {
		s.cache.ForgetService(id)
	}
}

func (s *Service) forgetProviders(ids []int64) {
	for _, id := range ids {
		s.forgetProvider(id)
	}
}

func (s *Service) forgetServices(ids []int64) {
	for _, id := range ids {
		s.forgetService(id)
	}
}
