package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/bluelught/doctor-apt/internal/domain"
)

// Weekday indexing follows ISO-8601 ordering: 0=Monday through 6=Sunday.
const (
	MinWeekday = 0
	MaxWeekday = 6
)

// WeekdayIndex maps a calendar date onto the rule weekday index.
func WeekdayIndex(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// Rule is a doctor's recurring weekly availability window. Concrete bookable
// slots are derived from it per date; the rule itself is the only persisted
// representation of availability.
type Rule struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	DoctorID uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index;uniqueIndex:uniq_doctor_rule_window"`

	DayOfWeek        int              `gorm:"column:day_of_week;not null;uniqueIndex:uniq_doctor_rule_window"`
	StartTime        domain.TimeOfDay `gorm:"column:start_time;type:smallint;not null;uniqueIndex:uniq_doctor_rule_window"`
	EndTime          domain.TimeOfDay `gorm:"column:end_time;type:smallint;not null;uniqueIndex:uniq_doctor_rule_window"`
	SlotDurationMins int              `gorm:"column:slot_duration_mins;not null;default:30"`

	// Deactivated rules stay on file once appointments were booked against
	// their slots; they are never hard-deleted after that point.
	IsActive bool `gorm:"column:is_active;default:true;index"`
}

func (Rule) TableName() string {
	return "booking.schedule_rules"
}

func (r *Rule) Validate() error {
	if r.DayOfWeek < MinWeekday || r.DayOfWeek > MaxWeekday {
		return ErrInvalidDayOfWeek
	}
	if !r.StartTime.Valid() || !r.EndTime.Valid() || r.StartTime >= r.EndTime {
		return ErrInvalidTimeRange
	}
	if r.SlotDurationMins <= 0 {
		return ErrInvalidSlotDuration
	}
	return nil
}

// Covers reports whether start names a slot this rule generates: it must lie
// on the rule's duration grid and the whole slot must fit inside the window.
func (r *Rule) Covers(start domain.TimeOfDay) bool {
	if start < r.StartTime {
		return false
	}
	offset := int(start - r.StartTime)
	if offset%r.SlotDurationMins != 0 {
		return false
	}
	return start.Add(r.SlotDurationMins) <= r.EndTime
}

// AppliesOn reports whether the rule is active for the given date's weekday.
func (r *Rule) AppliesOn(date time.Time) bool {
	return r.IsActive && r.DayOfWeek == WeekdayIndex(date)
}

type CreateRuleCommand struct {
	DoctorID         uuid.UUID
	DayOfWeek        int
	StartTime        domain.TimeOfDay
	EndTime          domain.TimeOfDay
	SlotDurationMins int
}

// UpdateRuleCommand carries the mutable fields of a rule; nil means unchanged.
type UpdateRuleCommand struct {
	DayOfWeek        *int
	StartTime        *domain.TimeOfDay
	EndTime          *domain.TimeOfDay
	SlotDurationMins *int
	IsActive         *bool
}

// ReshapesWindow reports whether the update would change which slots the rule
// generates, which is what the mutation guard protects against.
func (c *UpdateRuleCommand) ReshapesWindow(r *Rule) bool {
	if c.DayOfWeek != nil && *c.DayOfWeek != r.DayOfWeek {
		return true
	}
	if c.StartTime != nil && *c.StartTime != r.StartTime {
		return true
	}
	if c.EndTime != nil && *c.EndTime != r.EndTime {
		return true
	}
	if c.SlotDurationMins != nil && *c.SlotDurationMins != r.SlotDurationMins {
		return true
	}
	if c.IsActive != nil && !*c.IsActive && r.IsActive {
		return true
	}
	return false
}

func (c *UpdateRuleCommand) ApplyTo(r *Rule) {
	if c.DayOfWeek != nil {
		r.DayOfWeek = *c.DayOfWeek
	}
	if c.StartTime != nil {
		r.StartTime = *c.StartTime
	}
	if c.EndTime != nil {
		r.EndTime = *c.EndTime
	}
	if c.SlotDurationMins != nil {
		r.SlotDurationMins = *c.SlotDurationMins
	}
	if c.IsActive != nil {
		r.IsActive = *c.IsActive
	}
}
