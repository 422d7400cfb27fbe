package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bluelught/doctor-apt/internal/domain"
)

// Slot is a concrete bookable opening derived from a rule for one date.
// Slots are ephemeral: they are computed on demand and never persisted.
type Slot struct {
	Date         time.Time        `json:"date"`
	StartTime    domain.TimeOfDay `json:"start_time"`
	DurationMins int              `json:"duration_mins"`
	RuleID       uuid.UUID        `json:"-"`
}

// GenerateSlots derives the candidate slots for one date from the given rules.
// Only active rules matching the date's weekday contribute. Each window is
// walked from its start in slot-duration increments; a trailing remainder that
// does not fit a whole slot is dropped. The result is sorted by start time and
// deduplicated.
//
// Overlapping active rules on the same day are a doctor configuration error,
// not something to merge silently: the duplicated start times are returned
// separately so the caller can surface a warning. The function is pure; given
// the same rules and date it always produces the same output.
func GenerateSlots(rules []Rule, date time.Time) ([]Slot, []domain.TimeOfDay) {
	var slots []Slot
	seen := make(map[domain.TimeOfDay]bool)
	var duplicates []domain.TimeOfDay

	for i := range rules {
		r := &rules[i]
		if !r.AppliesOn(date) {
			continue
		}
		for start := r.StartTime; start.Add(r.SlotDurationMins) <= r.EndTime; start = start.Add(r.SlotDurationMins) {
			if seen[start] {
				duplicates = append(duplicates, start)
				continue
			}
			seen[start] = true
			slots = append(slots, Slot{
				Date:         date,
				StartTime:    start,
				DurationMins: r.SlotDurationMins,
				RuleID:       r.ID,
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartTime < slots[j].StartTime
	})
	sort.Slice(duplicates, func(i, j int) bool {
		return duplicates[i] < duplicates[j]
	})

	return slots, duplicates
}

// CoveringRule returns the active rule whose grid contains the given start
// time on the date's weekday, or nil when the slot is not bookable.
func CoveringRule(rules []Rule, date time.Time, start domain.TimeOfDay) *Rule {
	for i := range rules {
		r := &rules[i]
		if r.AppliesOn(date) && r.Covers(start) {
			return r
		}
	}
	return nil
}
