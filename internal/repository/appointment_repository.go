package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bluelught/doctor-apt/internal/domain/appointment"
)

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

var _ appointment.Repository = (*AppointmentRepository)(nil)

// CreateExclusive inserts the appointment, letting the partial unique index
// on (doctor_id, date, start_time) WHERE status = 'scheduled' arbitrate
// concurrent attempts. Exactly one of N racing inserts for a slot commits;
// the rest observe a duplicate key and get ErrSlotTaken.
func (r *AppointmentRepository) CreateExclusive(ctx context.Context, a *appointment.Appointment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return appointment.ErrSlotTaken
		}
		return wrapDBErr("inserting appointment", err)
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appointment.ErrAppointmentNotFound
		}
		return nil, wrapDBErr("fetching appointment", err)
	}
	return &a, nil
}

func (r *AppointmentRepository) GetForDay(ctx context.Context, doctorID uuid.UUID, date time.Time, includeCancelled bool) ([]appointment.Appointment, error) {
	q := r.db.WithContext(ctx).
		Where("doctor_id = ? AND date = ?", doctorID, date.Format("2006-01-02"))
	if !includeCancelled {
		q = q.Where("status <> ?", appointment.StatusCancelled)
	}

	var appts []appointment.Appointment
	if err := q.Order("start_time ASC").Find(&appts).Error; err != nil {
		return nil, wrapDBErr("listing appointments for day", err)
	}
	return appts, nil
}

func (r *AppointmentRepository) List(ctx context.Context, query *appointment.ListAppointmentsQuery) ([]appointment.Appointment, error) {
	q := r.db.WithContext(ctx).Model(&appointment.Appointment{})
	if query.DoctorID != nil {
		q = q.Where("doctor_id = ?", *query.DoctorID)
	}
	if query.PatientID != nil {
		q = q.Where("patient_id = ?", *query.PatientID)
	}
	if query.Date != nil {
		q = q.Where("date = ?", query.Date.Format("2006-01-02"))
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}

	var appts []appointment.Appointment
	if err := q.Order("date ASC, start_time ASC").Find(&appts).Error; err != nil {
		return nil, wrapDBErr("listing appointments", err)
	}
	return appts, nil
}

// UpdateStatus writes the transition only if the stored status still matches
// expected, so two racing transitions cannot both win.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, a *appointment.Appointment, expected appointment.Status) error {
	res := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND status = ?", a.ID, expected).
		Updates(map[string]any{
			"status":       a.Status,
			"cancelled_at": a.CancelledAt,
			"cancelled_by": a.CancelledBy,
			"completed_at": a.CompletedAt,
		})
	if res.Error != nil {
		return wrapDBErr("updating appointment status", res.Error)
	}
	if res.RowsAffected == 0 {
		return appointment.ErrInvalidStatusTransition
	}
	return nil
}
