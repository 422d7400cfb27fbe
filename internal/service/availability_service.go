package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bluelught/doctor-apt/internal/domain"
	"github.com/bluelught/doctor-apt/internal/domain/appointment"
	"github.com/bluelught/doctor-apt/internal/domain/schedule"
)

// AvailabilityService computes the bookable subset of a doctor's generated
// slots. Its reads are plain snapshot reads: a slot shown here can still be
// lost to a concurrent booking, which the booking path reports as ErrSlotTaken.
type AvailabilityService struct {
	scheduleRepo schedule.Repository
	apptRepo     appointment.Repository
	clock        Clock
	maxRangeDays int
	log          *zap.Logger
}

func NewAvailabilityService(
	scheduleRepo schedule.Repository,
	apptRepo appointment.Repository,
	clock Clock,
	maxRangeDays int,
	log *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		scheduleRepo: scheduleRepo,
		apptRepo:     apptRepo,
		clock:        clock,
		maxRangeDays: maxRangeDays,
		log:          log,
	}
}

// ResolveAvailable returns the doctor's open slots for one date, ordered by
// start time. Past dates resolve to an empty sequence; on the current date,
// slots whose start has already passed are dropped.
func (s *AvailabilityService) ResolveAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.Slot, error) {
	now := s.clock.Now()
	day := DateOnly(date)
	today := DateOnly(now)

	if day.Before(today) {
		return []schedule.Slot{}, nil
	}

	rules, err := s.scheduleRepo.GetActiveRules(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("fetching active rules: %w", err)
	}

	slots, duplicates := schedule.GenerateSlots(rules, day)
	if len(duplicates) > 0 {
		s.log.Warn("overlapping schedule rules generate duplicate slots",
			zap.String("doctor_id", doctorID.String()),
			zap.String("date", day.Format("2006-01-02")),
			zap.Int("duplicate_count", len(duplicates)),
		)
	}

	appts, err := s.apptRepo.GetForDay(ctx, doctorID, day, false)
	if err != nil {
		return nil, fmt.Errorf("fetching appointments: %w", err)
	}

	taken := make(map[domain.TimeOfDay]bool, len(appts))
	for i := range appts {
		if appts[i].Status == appointment.StatusScheduled {
			taken[appts[i].StartTime] = true
		}
	}

	available := slots[:0:0]
	for _, slot := range slots {
		if taken[slot.StartTime] {
			continue
		}
		if day.Equal(today) && !slot.StartTime.At(day).After(now) {
			continue
		}
		available = append(available, slot)
	}

	if available == nil {
		available = []schedule.Slot{}
	}
	return available, nil
}

// ResolveRange resolves availability per day over an inclusive date range.
func (s *AvailabilityService) ResolveRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]schedule.Slot, error) {
	start := DateOnly(from)
	end := DateOnly(to)

	if end.Before(start) {
		return nil, &ValidationError{Fields: []string{"end date must not be before start date"}}
	}
	if int(end.Sub(start).Hours()/24) > s.maxRangeDays {
		return nil, &ValidationError{Fields: []string{fmt.Sprintf("date range cannot exceed %d days", s.maxRangeDays)}}
	}

	all := []schedule.Slot{}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		slots, err := s.ResolveAvailable(ctx, doctorID, day)
		if err != nil {
			return nil, err
		}
		all = append(all, slots...)
	}
	return all, nil
}
