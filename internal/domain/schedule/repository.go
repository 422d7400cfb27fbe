package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	Update(ctx context.Context, r *Rule) error

	// ListByDoctor returns the doctor's rules ordered by day of week and
	// start time. With activeOnly set, deactivated rules are skipped.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]Rule, error)

	// GetActiveRules returns the doctor's active rules for the date's weekday.
	GetActiveRules(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Rule, error)

	// CountAppointmentsInRuleWindow counts appointments whose (date, startTime)
	// falls inside the rule's generated window. A non-zero from counts only
	// scheduled appointments on or after that date; the zero time counts the
	// full history of scheduled and completed appointments.
	CountAppointmentsInRuleWindow(ctx context.Context, r *Rule, from time.Time) (int64, error)

	// Delete hard-deletes a rule. Callers must have established that no
	// appointment ever referenced the rule's slots.
	Delete(ctx context.Context, id uuid.UUID) error
}
