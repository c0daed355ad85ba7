package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/internal/payment"
	"github.com/jwalitptl/rdv-api/internal/repository"
	"github.com/jwalitptl/rdv-api/internal/service/notification"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
	"github.com/jwalitptl/rdv-api/pkg/logger"
	"github.com/jwalitptl/rdv-api/pkg/metrics"
)

const MaxPageSize = 100

// Availability is the slot checking the lifecycle relies on.
type Availability interface {
	IsTimeSlotAvailable(ctx context.Context, providerID int64, date, start, end string, excludeID *int64) (bool, error)
	CheckSlot(ctx context.Context, providerID int64, date, start, end string, excludeID *int64) error
	Provider(ctx context.Context, id int64) (*model.Provider, error)
	Service(ctx context.Context, id int64) (*model.Service, error)
}

// Payments charges a booking and gives a charge back.
type Payments interface {
	Charge(ctx context.Context, req payment.Request) (payment.Result, error)
	Refund(ctx context.Context, method, reference string) error
}

// Service runs the appointment state machine.
//
// Slot checks and writes are separate statements: two concurrent bookings of
// the same slot can both pass the check. Updates are last-write-wins.
type Service struct {
	repo         repository.AppointmentRepository
	availability Availability
	payments     Payments
	notifier     notification.Notifier
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewService(
	repo repository.AppointmentRepository,
	availability Availability,
	payments Payments,
	notifier notification.Notifier,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New("rdv", nil)
	}
	return &Service{
		repo:         repo,
		availability: availability,
		payments:     payments,
		notifier:     notifier,
		logger:       log,
		metrics:      m,
	}
}

func (s *Service) Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	provider, err := s.availability.Provider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	service, err := s.availability.Service(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !provider.OffersService(service.ID) {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidProvider,
			fmt.Sprintf("provider %d does not offer service %d", provider.ID, service.ID))
	}

	duration := service.Duration
	if req.Duration != 0 {
		duration = req.Duration
	}
	if duration <= 0 {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidDuration, "duration must be positive")
	}
	end, err := model.AddMinutes(req.StartTime, duration)
	if err != nil {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidDuration, err.Error())
	}

	if err := s.checkSlot(ctx, req.ProviderID, req.Date, req.StartTime, end, nil); err != nil {
		return nil, err
	}

	appt := &model.Appointment{
		ProviderID:    req.ProviderID,
		ServiceID:     req.ServiceID,
		CustomerID:    req.CustomerID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       end,
		Status:        model.AppointmentStatusPending,
		Notes:         req.Notes,
		PaymentMethod: req.PaymentMethod,
	}

	if req.PaymentMethod != "" {
		if err := s.collectPayment(ctx, appt, service, req.PaymentToken); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		if appt.Status == model.AppointmentStatusConfirmed && appt.PaymentReference != "" {
			s.refundOrphanedCharge(ctx, appt, err)
		}
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	s.metrics.AppointmentTransitions.WithLabelValues(string(appt.Status)).Inc()
	s.audit(ctx, appt.ID, model.LogActionCreate, fmt.Sprintf("created with status %s", appt.Status))

	event := notification.EventCreated
	if appt.Status == model.AppointmentStatusConfirmed {
		event = notification.EventConfirmed
	}
	s.notify(ctx, event, appt)

	s.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
		"date", appt.Date,
		"start_time", appt.StartTime,
		"status", string(appt.Status))
	return appt, nil
}

// collectPayment charges the service price. A successful charge confirms the
// booking; anything else leaves it pending.
func (s *Service) collectPayment(ctx context.Context, appt *model.Appointment, service *model.Service, token string) error {
	if s.payments == nil {
		return apperrors.NewBadRequest("online payment is not available", nil)
	}

	res, err := s.payments.Charge(ctx, payment.Request{
		Method:         appt.PaymentMethod,
		Token:          token,
		Amount:         service.Price,
		Description:    fmt.Sprintf("%s le %s à %s", service.Name, appt.Date, appt.StartTime),
		ReceiptEmail:   appt.CustomerEmail,
		IdempotencyKey: uuid.NewString(),
	})
	if errors.Is(err, payment.ErrUnsupportedMethod) {
		return apperrors.NewBadRequest(err.Error(), err)
	}
	if err != nil {
		s.logger.Warn("payment not collected, booking stays pending",
			"provider_id", appt.ProviderID,
			"payment_method", appt.PaymentMethod,
			"error", err.Error())
		return nil
	}

	appt.PaymentReference = res.Reference
	if res.Succeeded {
		appt.Status = model.AppointmentStatusConfirmed
	}
	return nil
}

// refundOrphanedCharge gives back a charge whose booking could not be stored.
// The reference is always logged so the charge can be reconciled by hand.
func (s *Service) refundOrphanedCharge(ctx context.Context, appt *model.Appointment, cause error) {
	s.logger.Error(cause, "appointment not stored after payment was collected",
		"payment_reference", appt.PaymentReference,
		"payment_method", appt.PaymentMethod,
		"provider_id", appt.ProviderID,
		"date", appt.Date,
		"start_time", appt.StartTime,
		"customer_email", appt.CustomerEmail)

	if err := s.payments.Refund(context.WithoutCancel(ctx), appt.PaymentMethod, appt.PaymentReference); err != nil {
		s.logger.Error(err, "refund failed, charge needs manual reconciliation",
			"payment_reference", appt.PaymentReference,
			"customer_email", appt.CustomerEmail)
		return
	}
	s.logger.Warn("orphaned charge refunded", "payment_reference", appt.PaymentReference)
}

func validateCreate(req *model.CreateAppointmentRequest) error {
	var missing []string
	if req.ProviderID <= 0 {
		missing = append(missing, "provider_id")
	}
	if req.ServiceID <= 0 {
		missing = append(missing, "service_id")
	}
	if strings.TrimSpace(req.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(req.StartTime) == "" {
		missing = append(missing, "start_time")
	}
	if req.CustomerID == nil && (strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerEmail) == "") {
		missing = append(missing, "customer_name/customer_email or customer_id")
	}
	if len(missing) > 0 {
		return apperrors.NewValidation(apperrors.CodeMissingRequiredParams,
			"missing required parameters: "+strings.Join(missing, ", "))
	}

	if _, err := model.ParseDate(req.Date); err != nil {
		return apperrors.NewValidation(apperrors.CodeInvalidTimeRange, err.Error())
	}
	if _, err := model.ParseClock(req.StartTime); err != nil {
		return apperrors.NewValidation(apperrors.CodeInvalidTimeRange, err.Error())
	}
	if req.Duration < 0 {
		return apperrors.NewValidation(apperrors.CodeInvalidDuration, "duration must be positive")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	filters.Pagination = filters.Pagination.Normalize(MaxPageSize)

	appointments, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, total, nil
}

func (s *Service) History(ctx context.Context, id int64) ([]*model.AppointmentLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	logs, err := s.repo.ListLogs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment history: %w", err)
	}
	return logs, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*model.Appointment, error) {
	next, err := model.ParseStatus(status)
	if err != nil {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidStatus, err.Error())
	}

	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	current := appt.Status
	if !current.CanTransitionTo(next) {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidTransition,
			fmt.Sprintf("cannot change status from %s to %s", current, next))
	}
	if current == next {
		return appt, nil
	}

	// Leaving pending_payment makes the appointment occupy its slot again.
	if next.Occupying() && !current.Occupying() {
		available, err := s.availability.IsTimeSlotAvailable(ctx, appt.ProviderID, appt.Date, appt.StartTime, appt.EndTime, &appt.ID)
		if err != nil {
			return nil, err
		}
		if !available {
			s.metrics.SlotConflicts.Inc()
			return nil, apperrors.SlotUnavailable("")
		}
	}

	appt.Status = next
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, s.writeError("update appointment status", err)
	}
	s.metrics.AppointmentTransitions.WithLabelValues(string(next)).Inc()
	s.audit(ctx, appt.ID, model.LogActionStatusChange, fmt.Sprintf("%s -> %s", current, next))

	switch next {
	case model.AppointmentStatusConfirmed:
		s.notify(ctx, notification.EventConfirmed, appt)
	case model.AppointmentStatusCancelled:
		s.notify(ctx, notification.EventCancelled, appt)
	default:
		s.notify(ctx, notification.EventStatusChanged, appt)
	}
	return appt, nil
}

// Cancel is idempotent: cancelling a cancelled appointment writes nothing and
// sends nothing.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (*model.Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == model.AppointmentStatusCancelled {
		return appt, nil
	}
	if !appt.Status.CanTransitionTo(model.AppointmentStatusCancelled) {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidTransition,
			fmt.Sprintf("a %s appointment cannot be cancelled", appt.Status))
	}

	previous := appt.Status
	appt.Status = model.AppointmentStatusCancelled
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, s.writeError("cancel appointment", err)
	}
	s.metrics.AppointmentTransitions.WithLabelValues(string(appt.Status)).Inc()

	message := fmt.Sprintf("%s -> cancelled", previous)
	if reason = strings.TrimSpace(reason); reason != "" {
		message += ": " + reason
	}
	s.audit(ctx, appt.ID, model.LogActionCancel, message)
	s.notify(ctx, notification.EventCancelled, appt)
	return appt, nil
}

// Reschedule moves an appointment, keeping its duration and status.
func (s *Service) Reschedule(ctx context.Context, id int64, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	if strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.StartTime) == "" {
		return nil, apperrors.NewValidation(apperrors.CodeMissingRequiredParams, "date and start_time are required")
	}

	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.Occupying() {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidTransition,
			fmt.Sprintf("a %s appointment cannot be rescheduled", appt.Status))
	}

	duration, err := appt.DurationMinutes()
	if err != nil || duration <= 0 {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidDuration, "stored appointment has no valid duration")
	}
	end, err := model.AddMinutes(req.StartTime, duration)
	if err != nil {
		return nil, apperrors.NewValidation(apperrors.CodeInvalidDuration, err.Error())
	}

	if err := s.checkSlot(ctx, appt.ProviderID, req.Date, req.StartTime, end, &appt.ID); err != nil {
		return nil, err
	}

	from := fmt.Sprintf("%s %s-%s", appt.Date, appt.StartTime, appt.EndTime)
	appt.Date = req.Date
	appt.StartTime = req.StartTime
	appt.EndTime = end
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, s.writeError("reschedule appointment", err)
	}
	s.metrics.AppointmentTransitions.WithLabelValues(string(model.AppointmentStatusRescheduled)).Inc()

	message := fmt.Sprintf("%s -> %s %s-%s", from, appt.Date, appt.StartTime, appt.EndTime)
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		message += ": " + reason
	}
	s.audit(ctx, appt.ID, model.LogActionReschedule, message)
	s.notify(ctx, notification.EventRescheduled, appt)
	return appt, nil
}

// Delete removes the appointment and its history.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.writeError("delete appointment", err)
	}
	s.logger.Info("appointment deleted", "appointment_id", id)
	return nil
}

func (s *Service) Stats(ctx context.Context, startDate, endDate string) (*model.AppointmentStats, error) {
	for _, d := range []string{startDate, endDate} {
		if d == "" {
			continue
		}
		if _, err := model.ParseDate(d); err != nil {
			return nil, apperrors.NewValidation(apperrors.CodeInvalidTimeRange, err.Error())
		}
	}

	counts, err := s.repo.CountByStatus(ctx, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}
	stats := &model.AppointmentStats{ByStatus: counts}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *Service) checkSlot(ctx context.Context, providerID int64, date, start, end string, excludeID *int64) error {
	err := s.availability.CheckSlot(ctx, providerID, date, start, end, excludeID)
	if apperrors.HasCode(err, apperrors.CodeSlotUnavailable) {
		s.metrics.SlotConflicts.Inc()
	}
	return err
}

func (s *Service) writeError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("appointment", err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (s *Service) audit(ctx context.Context, id int64, action, message string) {
	entry := &model.AppointmentLog{AppointmentID: id, Action: action, Message: message}
	if err := s.repo.AddLog(ctx, entry); err != nil {
		s.logger.Error(err, "failed to write appointment log", "appointment_id", id, "action", action)
	}
}

func (s *Service) notify(ctx context.Context, event notification.Event, appt *model.Appointment) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event, appt)
}
