// Package export writes appointment reports as CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/internal/repository"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
)

const (
	TypeAppointments = "appointments"
	TypeStats        = "stats"

	FormatCSV = "csv"
)

// Request selects a report.
type Request struct {
	Type       string `form:"type"`
	Format     string `form:"format"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	ProviderID int64  `form:"id"`
}

type Service struct {
	appointments repository.AppointmentRepository
	providers    repository.ProviderRepository
	services     repository.ServiceRepository
	now          func() time.Time
}

func NewService(appointments repository.AppointmentRepository, providers repository.ProviderRepository, services repository.ServiceRepository) *Service {
	return &Service{
		appointments: appointments,
		providers:    providers,
		services:     services,
		now:          time.Now,
	}
}

// Validate fills defaults and rejects unknown types, formats and dates.
func (s *Service) Validate(req *Request) error {
	if req.Type == "" {
		req.Type = TypeAppointments
	}
	if req.Format == "" {
		req.Format = FormatCSV
	}
	if req.Format != FormatCSV {
		return apperrors.NewBadRequest(fmt.Sprintf("unsupported export format %q", req.Format), nil)
	}
	if req.Type != TypeAppointments && req.Type != TypeStats {
		return apperrors.NewBadRequest(fmt.Sprintf("unsupported export type %q", req.Type), nil)
	}
	for _, d := range []string{req.StartDate, req.EndDate} {
		if d == "" {
			continue
		}
		if _, err := model.ParseDate(d); err != nil {
			return apperrors.NewValidation(apperrors.CodeInvalidTimeRange, err.Error())
		}
	}
	if req.StartDate != "" && req.EndDate != "" && req.StartDate > req.EndDate {
		return apperrors.NewValidation(apperrors.CodeInvalidTimeRange, "start_date must not be after end_date")
	}
	return nil
}

// Filename is rapport_{type}_{date}[_prestataire_{id}].csv.
func (s *Service) Filename(req *Request) string {
	name := fmt.Sprintf("rapport_%s_%s", req.Type, s.now().Format(model.DateLayout))
	if req.ProviderID > 0 {
		name += fmt.Sprintf("_prestataire_%d", req.ProviderID)
	}
	return name + "." + FormatCSV
}

// Write streams the report to w. Call Validate first.
func (s *Service) Write(ctx context.Context, w io.Writer, req *Request) error {
	cw := csv.NewWriter(w)
	var err error
	switch req.Type {
	case TypeStats:
		err = s.writeStats(ctx, cw, req)
	default:
		err = s.writeAppointments(ctx, cw, req)
	}
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

var appointmentHeader = []string{
	"ID", "Date", "Début", "Fin", "Prestataire", "Service",
	"Client", "Email", "Téléphone", "Statut", "Paiement", "Notes",
}

func (s *Service) writeAppointments(ctx context.Context, cw *csv.Writer, req *Request) error {
	appointments, _, err := s.appointments.List(ctx, &model.AppointmentFilters{
		ProviderID: req.ProviderID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	})
	if err != nil {
		return fmt.Errorf("failed to load appointments for export: %w", err)
	}

	providerNames, serviceNames, err := s.names(ctx)
	if err != nil {
		return err
	}

	if err := cw.Write(appointmentHeader); err != nil {
		return err
	}
	for _, a := range appointments {
		date := a.Date
		if d, err := model.ParseDate(a.Date); err == nil {
			date = d.Format("02/01/2006")
		}
		record := []string{
			strconv.FormatInt(a.ID, 10),
			date,
			a.StartTime,
			a.EndTime,
			providerNames[a.ProviderID],
			serviceNames[a.ServiceID],
			a.CustomerName,
			a.CustomerEmail,
			a.CustomerPhone,
			a.Status.Label(),
			a.PaymentMethod,
			a.Notes,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) writeStats(ctx context.Context, cw *csv.Writer, req *Request) error {
	counts, err := s.appointments.CountByStatus(ctx, req.StartDate, req.EndDate)
	if err != nil {
		return fmt.Errorf("failed to count appointments for export: %w", err)
	}

	if err := cw.Write([]string{"Statut", "Nombre"}); err != nil {
		return err
	}
	total := 0
	for _, status := range model.Statuses() {
		n := counts[status]
		total += n
		if err := cw.Write([]string{status.Label(), strconv.Itoa(n)}); err != nil {
			return err
		}
	}
	return cw.Write([]string{"Total", strconv.Itoa(total)})
}

func (s *Service) names(ctx context.Context) (map[int64]string, map[int64]string, error) {
	providers, err := s.providers.List(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load providers for export: %w", err)
	}
	services, err := s.services.List(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load services for export: %w", err)
	}

	providerNames := make(map[int64]string, len(providers))
	for _, p := range providers {
		providerNames[p.ID] = p.Name
	}
	serviceNames := make(map[int64]string, len(services))
	for _, sv := range services {
		serviceNames[sv.ID] = sv.Name
	}
	return providerNames, serviceNames, nil
}
