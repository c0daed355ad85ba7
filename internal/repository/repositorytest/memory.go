// Package repositorytest provides in-memory repositories for service tests.
package repositorytest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/internal/repository"
)

// Appointments is an in-memory repository.AppointmentRepository.
// Setting Err makes every call fail with it.
type Appointments struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Appointment
	logs   []*model.AppointmentLog
	Err    error
}

func NewAppointments() *Appointments {
	return &Appointments{rows: map[int64]model.Appointment{}}
}

var _ repository.AppointmentRepository = (*Appointments)(nil)

func (r *Appointments) Create(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.rows[a.ID] = *a
	return nil
}

func (r *Appointments) Get(_ context.Context, id int64) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	a, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *Appointments) Update(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.rows[a.ID]; !ok {
		return repository.ErrNotFound
	}
	a.UpdatedAt = time.Now()
	r.rows[a.ID] = *a
	return nil
}

func (r *Appointments) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	kept := r.logs[:0]
	for _, l := range r.logs {
		if l.AppointmentID != id {
			kept = append(kept, l)
		}
	}
	r.logs = kept
	return nil
}

func (r *Appointments) List(_ context.Context, f *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, 0, r.Err
	}
	if f == nil {
		f = &model.AppointmentFilters{}
	}
	var out []*model.Appointment
	for _, a := range r.sorted() {
		if f.ProviderID > 0 && a.ProviderID != f.ProviderID {
			continue
		}
		if f.ServiceID > 0 && a.ServiceID != f.ServiceID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.StartDate != "" && a.Date < f.StartDate {
			continue
		}
		if f.EndDate != "" && a.Date > f.EndDate {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(a.CustomerName+" "+a.CustomerEmail), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, a)
	}
	total := len(out)
	if f.PageSize > 0 {
		from := f.Offset()
		if from > total {
			from = total
		}
		to := from + f.PageSize
		if to > total {
			to = total
		}
		out = out[from:to]
	}
	return out, total, nil
}

func (r *Appointments) CountOverlapping(_ context.Context, providerID int64, date, start, end string, excludeID *int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	s, _ := model.ParseClock(start)
	e, _ := model.ParseEndClock(end)
	count := 0
	for id, a := range r.rows {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if a.ProviderID != providerID || a.Date != date || !a.Status.Occupying() {
			continue
		}
		as, _ := model.ParseClock(a.StartTime)
		ae, _ := model.ParseEndClock(a.EndTime)
		if model.Overlaps(s, e, as, ae) {
			count++
		}
	}
	return count, nil
}

func (r *Appointments) ListOccupying(_ context.Context, providerID int64, date string) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*model.Appointment
	for _, a := range r.sorted() {
		if a.ProviderID == providerID && a.Date == date && a.Status.Occupying() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *Appointments) CountByStatus(_ context.Context, startDate, endDate string) (map[model.AppointmentStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	counts := map[model.AppointmentStatus]int{}
	for _, a := range r.rows {
		if (startDate != "" && a.Date < startDate) || (endDate != "" && a.Date > endDate) {
			continue
		}
		counts[a.Status]++
	}
	return counts, nil
}

func (r *Appointments) AddLog(_ context.Context, entry *model.AppointmentLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	entry.ID = int64(len(r.logs) + 1)
	entry.CreatedAt = time.Now()
	r.logs = append(r.logs, entry)
	return nil
}

func (r *Appointments) ListLogs(_ context.Context, appointmentID int64) ([]*model.AppointmentLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*model.AppointmentLog
	for _, l := range r.logs {
		if l.AppointmentID == appointmentID {
			out = append(out, l)
		}
	}
	return out, nil
}

// Count returns the number of stored appointments.
func (r *Appointments) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *Appointments) sorted() []*model.Appointment {
	out := make([]*model.Appointment, 0, len(r.rows))
	for _, a := range r.rows {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Providers is an in-memory repository.ProviderRepository.
type Providers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Provider
	Gets   int
}

func NewProviders(providers ...*model.Provider) *Providers {
	r := &Providers{rows: map[int64]model.Provider{}}
	for _, p := range providers {
		if p.ID > r.nextID {
			r.nextID = p.ID
		}
		r.rows[p.ID] = *p
	}
	return r
}

var _ repository.ProviderRepository = (*Providers)(nil)

func (r *Providers) Create(_ context.Context, p *model.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	r.rows[p.ID] = *p
	return nil
}

func (r *Providers) Get(_ context.Context, id int64) (*model.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Gets++
	p, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *Providers) Update(_ context.Context, p *model.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[p.ID]; !ok {
		return repository.ErrNotFound
	}
	r.rows[p.ID] = *p
	return nil
}

func (r *Providers) SetActive(_ context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Active = active
	r.rows[id] = p
	return nil
}

func (r *Providers) List(_ context.Context, f *model.ProviderFilters) ([]*model.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Provider
	for _, p := range r.rows {
		p := p
		if f != nil && f.ActiveOnly && !p.Active {
			continue
		}
		if f != nil && f.ServiceID > 0 && !p.OffersService(f.ServiceID) {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Services is an in-memory repository.ServiceRepository.
type Services struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Service
}

func NewServices(services ...*model.Service) *Services {
	r := &Services{rows: map[int64]model.Service{}}
	for _, s := range services {
		if s.ID > r.nextID {
			r.nextID = s.ID
		}
		r.rows[s.ID] = *s
	}
	return r
}

var _ repository.ServiceRepository = (*Services)(nil)

func (r *Services) Create(_ context.Context, s *model.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	r.rows[s.ID] = *s
	return nil
}

func (r *Services) Get(_ context.Context, id int64) (*model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *Services) Update(_ context.Context, s *model.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.ID]; !ok {
		return repository.ErrNotFound
	}
	r.rows[s.ID] = *s
	return nil
}

func (r *Services) SetStatus(_ context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.Status = status
	r.rows[id] = s
	return nil
}

func (r *Services) List(_ context.Context, activeOnly bool) ([]*model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Service
	for _, s := range r.rows {
		s := s
		if activeOnly && !s.IsActive() {
			continue
		}
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EmailFailures is an in-memory repository.EmailFailureRepository.
type EmailFailures struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.EmailFailure
}

func NewEmailFailures() *EmailFailures {
	return &EmailFailures{rows: map[int64]model.EmailFailure{}}
}

var _ repository.EmailFailureRepository = (*EmailFailures)(nil)

func (r *EmailFailures) Create(_ context.Context, f *model.EmailFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	f.ID = r.nextID
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	f.UpdatedAt = f.CreatedAt
	r.rows[f.ID] = *f
	return nil
}

// Put stores a record as is, keeping its id and timestamps.
func (r *EmailFailures) Put(f *model.EmailFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.ID > r.nextID {
		r.nextID = f.ID
	}
	r.rows[f.ID] = *f
}

func (r *EmailFailures) ListPending(_ context.Context, limit int) ([]*model.EmailFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.EmailFailure
	for _, f := range r.all() {
		if f.Status == model.EmailFailureStatusPending {
			out = append(out, f)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *EmailFailures) RecordAttempt(_ context.Context, f *model.EmailFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[f.ID]; !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	f.LastAttemptAt = &now
	f.UpdatedAt = now
	r.rows[f.ID] = *f
	return nil
}

func (r *EmailFailures) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, f := range r.rows {
		if f.CreatedAt.Before(cutoff) {
			delete(r.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *EmailFailures) Stats(_ context.Context) (*model.EmailFailureStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &model.EmailFailureStats{}
	for _, f := range r.rows {
		switch f.Status {
		case model.EmailFailureStatusPending:
			stats.Pending++
		case model.EmailFailureStatusSent:
			stats.Sent++
		case model.EmailFailureStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// Find returns a copy of a stored record.
func (r *EmailFailures) Find(id int64) (model.EmailFailure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.rows[id]
	return f, ok
}

// Len returns the number of stored records.
func (r *EmailFailures) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *EmailFailures) all() []*model.EmailFailure {
	out := make([]*model.EmailFailure, 0, len(r.rows))
	for _, f := range r.rows {
		f := f
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
