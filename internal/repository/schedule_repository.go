package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bluelught/doctor-apt/internal/domain/appointment"
	"github.com/bluelught/doctor-apt/internal/domain/schedule"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

var _ schedule.Repository = (*ScheduleRepository)(nil)

func (r *ScheduleRepository) Create(ctx context.Context, rule *schedule.Rule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return schedule.ErrDuplicateRule
		}
		return wrapDBErr("inserting schedule rule", err)
	}
	return nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*schedule.Rule, error) {
	var rule schedule.Rule
	err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, schedule.ErrRuleNotFound
		}
		return nil, wrapDBErr("fetching schedule rule", err)
	}
	return &rule, nil
}

func (r *ScheduleRepository) Update(ctx context.Context, rule *schedule.Rule) error {
	err := r.db.WithContext(ctx).
		Model(rule).
		Select("day_of_week", "start_time", "end_time", "slot_duration_mins", "is_active").
		Updates(rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return schedule.ErrDuplicateRule
		}
		return wrapDBErr("updating schedule rule", err)
	}
	return nil
}

func (r *ScheduleRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]schedule.Rule, error) {
	q := r.db.WithContext(ctx).Where("doctor_id = ?", doctorID)
	if activeOnly {
		q = q.Where("is_active")
	}

	var rules []schedule.Rule
	if err := q.Order("day_of_week ASC, start_time ASC").Find(&rules).Error; err != nil {
		return nil, wrapDBErr("listing schedule rules", err)
	}
	return rules, nil
}

func (r *ScheduleRepository) GetActiveRules(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.Rule, error) {
	var rules []schedule.Rule
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND day_of_week = ? AND is_active", doctorID, schedule.WeekdayIndex(date)).
		Order("start_time ASC").
		Find(&rules).Error
	if err != nil {
		return nil, wrapDBErr("fetching active rules", err)
	}
	return rules, nil
}

// CountAppointmentsInRuleWindow counts appointments whose slot the rule
// generates: same doctor, the rule's weekday (ISODOW is Monday=1), and a
// start time inside the rule's window. A bounded query counts only scheduled
// appointments from the given date on; the full-history query also counts
// completed ones, since they too anchor the rule's past.
func (r *ScheduleRepository) CountAppointmentsInRuleWindow(ctx context.Context, rule *schedule.Rule, from time.Time) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("doctor_id = ?", rule.DoctorID).
		Where("(EXTRACT(ISODOW FROM date)::int - 1) = ?", rule.DayOfWeek).
		Where("start_time >= ? AND start_time < ?", int(rule.StartTime), int(rule.EndTime))
	if from.IsZero() {
		q = q.Where("status <> ?", appointment.StatusCancelled)
	} else {
		q = q.Where("status = ? AND date >= ?", appointment.StatusScheduled, from.Format("2006-01-02"))
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, wrapDBErr("counting appointments in rule window", err)
	}
	return count, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&schedule.Rule{}, "id = ?", id).Error; err != nil {
		return wrapDBErr("deleting schedule rule", err)
	}
	return nil
}
