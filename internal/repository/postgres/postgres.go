package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/rdv-api/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

type providerRepository struct {
	BaseRepository
}

type serviceRepository struct {
	BaseRepository
}

type emailFailureRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func NewProviderRepository(db *sqlx.DB) repository.ProviderRepository {
	return &providerRepository{NewBaseRepository(db)}
}

func NewServiceRepository(db *sqlx.DB) repository.ServiceRepository {
	return &serviceRepository{NewBaseRepository(db)}
}

func NewEmailFailureRepository(db *sqlx.DB) repository.EmailFailureRepository {
	return &emailFailureRepository{NewBaseRepository(db)}
}
