package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/internal/repository"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
	"github.com/jwalitptl/rdv-api/pkg/logger"
)

const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultCacheCleanup = 10 * time.Minute
)

// Service answers whether a provider can take an appointment at a given time.
// IsTimeSlotAvailable only looks at other appointments. CheckSlot and
// AvailableSlots also apply the provider's weekly windows and pauses.
type Service struct {
	appointments repository.AppointmentRepository
	providers    repository.ProviderRepository
	services     repository.ServiceRepository
	cache        *cache.Cache
	log          *logger.Logger
	now          func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	providers repository.ProviderRepository,
	services repository.ServiceRepository,
	c *cache.Cache,
	log *logger.Logger,
) *Service {
	if c == nil {
		c = cache.New(DefaultCacheTTL, DefaultCacheCleanup)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		appointments: appointments,
		providers:    providers,
		services:     services,
		cache:        c,
		log:          log,
		now:          time.Now,
	}
}

// IsTimeSlotAvailable reports whether no pending or confirmed appointment of the
// provider intersects [start, end) on date. excludeID skips one appointment,
// which lets an appointment be moved without conflicting with itself.
func (s *Service) IsTimeSlotAvailable(ctx context.Context, providerID int64, date, start, end string, excludeID *int64) (bool, error) {
	if _, _, err := validateRange(date, start, end); err != nil {
		return false, err
	}

	count, err := s.appointments.CountOverlapping(ctx, providerID, date, start, end, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check slot availability: %w", err)
	}
	return count == 0, nil
}

// CheckSlot runs the schedule filter and then the conflict query. It returns
// nil when the slot can be booked.
func (s *Service) CheckSlot(ctx context.Context, providerID int64, date, start, end string, excludeID *int64) error {
	startMin, endMin, err := validateRange(date, start, end)
	if err != nil {
		return err
	}

	provider, err := s.Provider(ctx, providerID)
	if err != nil {
		return err
	}

	day, _ := model.ParseDate(date)
	if !fitsSchedule(provider, day, startMin, endMin) {
		return apperrors.NewValidation(apperrors.CodeOutsideWorkingHours,
			fmt.Sprintf("%s-%s is outside the provider's working hours on %s", start, end, date))
	}

	available, err := s.IsTimeSlotAvailable(ctx, providerID, date, start, end, excludeID)
	if err != nil {
		return err
	}
	if !available {
		return apperrors.SlotUnavailable(fmt.Sprintf("time slot %s %s-%s is not available", date, start, end))
	}
	return nil
}

// AvailableSlots lists the bookable slots of a provider for a service on date.
func (s *Service) AvailableSlots(ctx context.Context, providerID, serviceID int64, date string) ([]model.TimeSlot, error) {
	day, err := model.ParseDate(date)
	if err != nil {
		return nil, apperrors.NewValidation(apperrors.CodeMissingRequiredParams, err.Error())
	}

	provider, err := s.Provider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !provider.OffersService(serviceID) {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidProvider, "provider does not offer this service")
	}

	service, err := s.Service(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	duration := service.Duration
	if duration <= 0 {
		duration = provider.DefaultDuration
	}
	if duration <= 0 {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidDuration, "service duration must be positive")
	}

	booked, err := s.appointments.ListOccupying(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked appointments: %w", err)
	}
	busy := make([][2]int, 0, len(booked))
	for _, a := range booked {
		start, errS := model.ParseClock(a.StartTime)
		end, errE := model.ParseEndClock(a.EndTime)
		if errS != nil || errE != nil {
			s.log.Warn("skipping appointment with unreadable times", "appointment_id", a.ID)
			continue
		}
		busy = append(busy, [2]int{start, end})
	}

	notBefore := -1
	now := s.now()
	if now.Format(model.DateLayout) == date {
		notBefore = now.Hour()*60 + now.Minute()
	}

	windows := openWindows(provider, day)
	step := duration + service.BufferBefore + service.BufferAfter
	slots := []model.TimeSlot{}
	for _, w := range windows {
		for cursor := w[0]; cursor+duration <= w[1]; cursor += step {
			end := cursor + duration
			if cursor <= notBefore {
				continue
			}
			if overlapsAny(provider.Pauses.For(day), cursor, end) {
				continue
			}
			if conflicts(busy, cursor-service.BufferBefore, end+service.BufferAfter) {
				continue
			}
			endClock, _ := model.AddMinutes("00:00", end)
			slots = append(slots, model.TimeSlot{
				Date:  date,
				Start: model.FormatClock(cursor),
				End:   endClock,
			})
		}
	}
	return slots, nil
}

// Provider returns the provider through the lookup cache. A missing or
// inactive provider is an invalid_provider validation error.
func (s *Service) Provider(ctx context.Context, id int64) (*model.Provider, error) {
	key := providerKey(id)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.Provider), nil
	}

	provider, err := s.providers.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewValidation(apperrors.CodeInvalidProvider, fmt.Sprintf("provider %d does not exist", id))
		}
		return nil, fmt.Errorf("failed to load provider: %w", err)
	}
	if !provider.Active {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidProvider, fmt.Sprintf("provider %d is inactive", id))
	}

	s.cache.SetDefault(key, provider)
	return provider, nil
}

// Service returns an active service through the lookup cache.
func (s *Service) Service(ctx context.Context, id int64) (*model.Service, error) {
	key := serviceKey(id)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.Service), nil
	}

	service, err := s.services.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewValidation(apperrors.CodeServiceNotFound, fmt.Sprintf("service %d does not exist", id))
		}
		return nil, fmt.Errorf("failed to load service: %w", err)
	}
	if !service.IsActive() {
		return nil, apperrors.NewValidation(apperrors.CodeServiceNotFound, fmt.Sprintf("service %d is inactive", id))
	}

	s.cache.SetDefault(key, service)
	return service, nil
}

// ForgetProvider drops a provider from the lookup cache after it changed.
func (s *Service) ForgetProvider(id int64) {
	s.cache.Delete(providerKey(id))
}

// ForgetService drops a service from the lookup cache after it changed.
func (s *Service) ForgetService(id int64) {
	s.cache.Delete(serviceKey(id))
}

func providerKey(id int64) string { return fmt.Sprintf("provider:%d", id) }
func serviceKey(id int64) string  { return fmt.Sprintf("service:%d", id) }

func validateRange(date, start, end string) (int, int, error) {
	if _, err := model.ParseDate(date); err != nil {
		return 0, 0, apperrors.NewValidation(apperrors.CodeInvalidTimeRange, err.Error())
	}
	startMin, err := model.ParseClock(start)
	if err != nil {
		return 0, 0, apperrors.NewValidation(apperrors.CodeInvalidTimeRange, err.Error())
	}
	endMin, err := model.ParseEndClock(end)
	if err != nil {
		return 0, 0, apperrors.NewValidation(apperrors.CodeInvalidTimeRange, err.Error())
	}
	if startMin >= endMin {
		return 0, 0, apperrors.NewValidation(apperrors.CodeInvalidTimeRange, "start time must be before end time")
	}
	return startMin, endMin, nil
}

// openWindows returns the provider's windows for the day. A provider without
// any configured window is open all day.
func openWindows(provider *model.Provider, day time.Time) [][2]int {
	if len(provider.WorkingHours) == 0 {
		return [][2]int{{0, 24 * 60}}
	}
	var out [][2]int
	for _, r := range provider.WorkingHours.For(day) {
		start, end, err := r.Minutes()
		if err != nil {
			continue
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func fitsSchedule(provider *model.Provider, day time.Time, start, end int) bool {
	inside := false
	for _, w := range openWindows(provider, day) {
		if start >= w[0] && end <= w[1] {
			inside = true
			break
		}
	}
	if !inside {
		return false
	}
	return !overlapsAny(provider.Pauses.For(day), start, end)
}

func overlapsAny(ranges []model.TimeRange, start, end int) bool {
	for _, r := range ranges {
		rs, re, err := r.Minutes()
		if err != nil {
			continue
		}
		if model.Overlaps(start, end, rs, re) {
			return true
		}
	}
	return false
}

func conflicts(busy [][2]int, start, end int) bool {
	for _, b := range busy {
		if model.Overlaps(start, end, b[0], b[1]) {
			return true
		}
	}
	return false
}
