package model

import (
	"fmt"
	"strings"
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusPendingPayment AppointmentStatus = "pending_payment"
	AppointmentStatusPending        AppointmentStatus = "pending"
	AppointmentStatusConfirmed      AppointmentStatus = "confirmed"
	AppointmentStatusCompleted      AppointmentStatus = "completed"
	AppointmentStatusCancelled      AppointmentStatus = "cancelled"
	AppointmentStatusNoShow         AppointmentStatus = "no-show"
	AppointmentStatusRescheduled    AppointmentStatus = "rescheduled"
)

// OccupyingStatuses count against a provider's availability.
var OccupyingStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
}

var allStatuses = []AppointmentStatus{
	AppointmentStatusPendingPayment,
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
	AppointmentStatusNoShow,
	AppointmentStatusRescheduled,
}

// legacy French spellings still sent by older admin screens
var statusAliases = map[string]AppointmentStatus{
	"en_attente":       AppointmentStatusPending,
	"en attente":       AppointmentStatusPending,
	"attente_paiement": AppointmentStatusPendingPayment,
	"confirmé":         AppointmentStatusConfirmed,
	"confirme":         AppointmentStatusConfirmed,
	"annulé":           AppointmentStatusCancelled,
	"annule":           AppointmentStatusCancelled,
	"canceled":         AppointmentStatusCancelled,
	"terminé":          AppointmentStatusCompleted,
	"termine":          AppointmentStatusCompleted,
	"absent":           AppointmentStatusNoShow,
	"no_show":          AppointmentStatusNoShow,
	"noshow":           AppointmentStatusNoShow,
	"reporté":          AppointmentStatusRescheduled,
	"reporte":          AppointmentStatusRescheduled,
}

var transitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPendingPayment: {AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCancelled},
	AppointmentStatusPending:        {AppointmentStatusConfirmed, AppointmentStatusCancelled, AppointmentStatusRescheduled},
	AppointmentStatusConfirmed:      {AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow, AppointmentStatusRescheduled},
}

var statusLabels = map[AppointmentStatus]string{
	AppointmentStatusPendingPayment: "en attente de paiement",
	AppointmentStatusPending:        "en attente",
	AppointmentStatusConfirmed:      "confirmé",
	AppointmentStatusCompleted:      "terminé",
	AppointmentStatusCancelled:      "annulé",
	AppointmentStatusNoShow:         "absent",
	AppointmentStatusRescheduled:    "reporté",
}

// Statuses returns the canonical statuses in lifecycle order.
func Statuses() []AppointmentStatus {
	return append([]AppointmentStatus(nil), allStatuses...)
}

// Label is the French wording shown to customers and in reports.
func (s AppointmentStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseStatus normalises a status string to the canonical enumeration.
func ParseStatus(s string) (AppointmentStatus, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, st := range allStatuses {
		if string(st) == key {
			return st, nil
		}
	}
	if st, ok := statusAliases[key]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// Occupying reports whether the status blocks the slot.
func (s AppointmentStatus) Occupying() bool {
	for _, st := range OccupyingStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Setting the current status again is always allowed.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s == next {
		return true
	}
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

type Appointment struct {
	Base
	ProviderID       int64             `db:"provider_id" json:"provider_id"`
	ServiceID        int64             `db:"service_id" json:"service_id"`
	CustomerID       *int64            `db:"customer_id" json:"customer_id,omitempty"`
	CustomerName     string            `db:"customer_name" json:"customer_name"`
	CustomerEmail    string            `db:"customer_email" json:"customer_email"`
	CustomerPhone    string            `db:"customer_phone" json:"customer_phone,omitempty"`
	Date             string            `db:"appointment_date" json:"date"`
	StartTime        string            `db:"start_time" json:"start_time"`
	EndTime          string            `db:"end_time" json:"end_time"`
	Status           AppointmentStatus `db:"status" json:"status"`
	Notes            string            `db:"notes" json:"notes,omitempty"`
	PaymentMethod    string            `db:"payment_method" json:"payment_method,omitempty"`
	PaymentReference string            `db:"payment_reference" json:"payment_reference,omitempty"`
}

// DurationMinutes returns end minus start.
func (a *Appointment) DurationMinutes() (int, error) {
	start, err := ParseClock(a.StartTime)
	if err != nil {
		return 0, err
	}
	end, err := ParseEndClock(a.EndTime)
	if err != nil {
		return 0, err
	}
	return end - start, nil
}

type CreateAppointmentRequest struct {
	ProviderID    int64  `json:"provider_id" binding:"required,gt=0"`
	ServiceID     int64  `json:"service_id" binding:"required,gt=0"`
	CustomerID    *int64 `json:"customer_id"`
	CustomerName  string `json:"customer_name" binding:"max=200"`
	CustomerEmail string `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone string `json:"customer_phone" binding:"max=40"`
	Date          string `json:"date" binding:"required,rdvdate"`
	StartTime     string `json:"start_time" binding:"required,hhmm"`
	Duration      int    `json:"duration"`
	Notes         string `json:"notes" binding:"max=2000"`
	PaymentMethod string `json:"payment_method"`
	PaymentToken  string `json:"payment_token"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

type RescheduleAppointmentRequest struct {
	Date      string `json:"date" binding:"required,rdvdate"`
	StartTime string `json:"start_time" binding:"required,hhmm"`
	Reason    string `json:"reason" binding:"max=1000"`
}

type TimeSlot struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type AppointmentFilters struct {
	ProviderID int64
	ServiceID  int64
	Status     AppointmentStatus
	StartDate  string
	EndDate    string
	Search     string
	Pagination
}

// AppointmentStats counts appointments per status over a period.
type AppointmentStats struct {
	Total    int                       `json:"total"`
	ByStatus map[AppointmentStatus]int `json:"by_status"`
}

// AppointmentLog is one audit row of an appointment's history.
type AppointmentLog struct {
	ID            int64     `db:"id" json:"id"`
	AppointmentID int64     `db:"appointment_id" json:"appointment_id"`
	Action        string    `db:"action" json:"action"`
	Message       string    `db:"message" json:"message"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

const (
	LogActionCreate       = "create"
	LogActionStatusChange = "status_change"
	LogActionCancel       = "cancel"
	LogActionReschedule   = "reschedule"
)
