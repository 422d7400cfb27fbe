package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateExclusive inserts a new scheduled appointment, relying on the
	// store's uniqueness enforcement on (doctor, date, startTime, scheduled).
	// A losing concurrent insert returns ErrSlotTaken. This is the single
	// authoritative exclusivity check; availability filtering is only an
	// optimistic pre-check.
	CreateExclusive(ctx context.Context, a *Appointment) error

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// GetForDay returns a doctor's appointments on a date, ordered by start
	// time. Cancelled appointments are skipped unless includeCancelled is set.
	GetForDay(ctx context.Context, doctorID uuid.UUID, date time.Time, includeCancelled bool) ([]Appointment, error)

	List(ctx context.Context, q *ListAppointmentsQuery) ([]Appointment, error)

	// UpdateStatus persists a status transition with compare-and-set
	// semantics: the row is only written when its stored status still equals
	// expected. A raced transition returns ErrInvalidStatusTransition.
	UpdateStatus(ctx context.Context, a *Appointment, expected Status) error
}
