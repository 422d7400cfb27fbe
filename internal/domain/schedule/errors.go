package schedule

import "errors"

var (
	ErrRuleNotFound        = errors.New("schedule rule not found")
	ErrDuplicateRule       = errors.New("a schedule rule already exists for this day and time window")
	ErrScheduleConflict    = errors.New("schedule rule has future scheduled appointments in its window")
	ErrInvalidDayOfWeek    = errors.New("day of week must be between 0 (Monday) and 6 (Sunday)")
	ErrInvalidTimeRange    = errors.New("start time must be before end time")
	ErrInvalidSlotDuration = errors.New("slot duration must be a positive number of minutes")
)
