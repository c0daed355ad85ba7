package model

import (
	"github.com/lib/pq"
)

type Provider struct {
	Base
	Name            string         `db:"name" json:"name"`
	Email           string         `db:"email" json:"email"`
	Phone           string         `db:"phone" json:"phone,omitempty"`
	DefaultDuration int            `db:"default_duration" json:"default_duration"`
	Active          bool           `db:"active" json:"active"`
	WorkingHours    WeeklySchedule `db:"working_hours" json:"working_hours"`
	Pauses          WeeklySchedule `db:"pauses" json:"pauses"`
	ServiceIDs      pq.Int64Array  `db:"service_ids" json:"service_ids"`
}

// OffersService reports whether the provider is assigned the service.
// A provider with no assignments offers every service.
func (p *Provider) OffersService(serviceID int64) bool {
	if len(p.ServiceIDs) == 0 {
		return true
	}
	for _, id := range p.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

type ProviderRequest struct {
	Name            string         `json:"name" binding:"required,max=200"`
	Email           string         `json:"email" binding:"required,email"`
	Phone           string         `json:"phone" binding:"max=40"`
	DefaultDuration int            `json:"default_duration" binding:"gte=0"`
	Active          *bool          `json:"active"`
	WorkingHours    WeeklySchedule `json:"working_hours"`
	Pauses          WeeklySchedule `json:"pauses"`
	ServiceIDs      []int64        `json:"service_ids"`
}

type ProviderFilters struct {
	ActiveOnly bool
	ServiceID  int64
}
