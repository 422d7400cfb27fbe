package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/bluelught/doctor-apt/internal/domain"
)

// State transitions:
//
//	scheduled → completed (doctor)
//	scheduled → cancelled (patient or doctor)
//
// completed and cancelled are terminal.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	DoctorID  uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index"`
	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`

	Date      time.Time        `gorm:"column:date;type:date;not null;index"`
	StartTime domain.TimeOfDay `gorm:"column:start_time;type:smallint;not null"`
	// Copied from the covering rule at booking time and frozen; later rule
	// edits never reshape an existing booking.
	DurationMins int    `gorm:"column:duration_mins;not null"`
	Reason       string `gorm:"column:reason;type:text;not null"`

	Status Status `gorm:"column:status;type:varchar(20);not null;default:'scheduled';index"`

	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CancelledBy *uuid.UUID `gorm:"column:cancelled_by;type:uuid"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

func (Appointment) TableName() string {
	return "booking.appointments"
}

// StartsAt anchors the appointment on the timeline of the canonical clock.
func (a *Appointment) StartsAt() time.Time {
	return a.StartTime.At(a.Date)
}

func (a *Appointment) EndsAt() time.Time {
	return a.StartsAt().Add(time.Duration(a.DurationMins) * time.Minute)
}

func (a *Appointment) CanTransitionTo(next Status) bool {
	allowed := map[Status][]Status{
		StatusScheduled: {StatusCompleted, StatusCancelled},
		StatusCompleted: {},
		StatusCancelled: {},
	}

	for _, s := range allowed[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

func (a *Appointment) Cancel(cancelledBy uuid.UUID, now time.Time) error {
	if !a.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.CancelledBy = &cancelledBy
	return nil
}

// Complete marks the appointment done. Completion before the slot has ended is
// allowed as a manual override; the returned flag tells callers to warn.
func (a *Appointment) Complete(now time.Time) (early bool, err error) {
	if !a.CanTransitionTo(StatusCompleted) {
		return false, ErrInvalidStatusTransition
	}
	a.Status = StatusCompleted
	a.CompletedAt = &now
	return now.Before(a.EndsAt()), nil
}

// BookAppointmentCommand names a slot to reserve. The patient is always the
// caller; booking on someone else's behalf is not supported.
type BookAppointmentCommand struct {
	DoctorID  uuid.UUID
	Date      time.Time
	StartTime domain.TimeOfDay
	Reason    string
}

type ListAppointmentsQuery struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Date      *time.Time
	Status    *Status
}
