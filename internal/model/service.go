package model

import (
	"github.com/lib/pq"
)

const (
	ServiceStatusActive   = "active"
	ServiceStatusInactive = "inactive"
)

type Service struct {
	Base
	Name         string        `db:"name" json:"name"`
	Description  string        `db:"description" json:"description,omitempty"`
	Duration     int           `db:"duration" json:"duration"` // in minutes
	Price        float64       `db:"price" json:"price"`
	Capacity     int           `db:"capacity" json:"capacity"`
	BufferBefore int           `db:"buffer_before" json:"buffer_before"`
	BufferAfter  int           `db:"buffer_after" json:"buffer_after"`
	Status       string        `db:"status" json:"status"`
	Category     string        `db:"category" json:"category,omitempty"`
	Color        string        `db:"color" json:"color,omitempty"`
	ProviderIDs  pq.Int64Array `db:"provider_ids" json:"provider_ids"`
}

func (s *Service) IsActive() bool {
	return s.Status == ServiceStatusActive
}

type ServiceRequest struct {
	Name         string  `json:"name" binding:"required,max=200"`
	Description  string  `json:"description" binding:"max=2000"`
	Duration     int     `json:"duration"`
	Price        float64 `json:"price"`
	Capacity     int     `json:"capacity"`
	BufferBefore int     `json:"buffer_before" binding:"gte=0"`
	BufferAfter  int     `json:"buffer_after" binding:"gte=0"`
	Status       string  `json:"status" binding:"omitempty,oneof=active inactive"`
	Category     string  `json:"category" binding:"max=100"`
	Color        string  `json:"color" binding:"omitempty,hexcolor"`
	ProviderIDs  []int64 `json:"provider_ids"`
}
