package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bluelught/doctor-apt/internal/domain"
	"github.com/bluelught/doctor-apt/internal/domain/appointment"
	"github.com/bluelught/doctor-apt/internal/domain/schedule"
	"github.com/bluelught/doctor-apt/pkg/metrics"
)

// The collector registers against the default prometheus registry, so the
// test binary builds exactly one.
var testCollector = metrics.NewCollector("doctor_apt_test")

func newTestAudit() *AuditService {
	return NewAuditService(&fakeAuditRepo{}, testCollector, zap.NewNop())
}

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

// fakeScheduleRepo keeps rules in memory and lets tests script the window
// counts the mutation guard sees.
type fakeScheduleRepo struct {
	mu    sync.Mutex
	rules map[uuid.UUID]schedule.Rule

	// Scripted results for CountAppointmentsInRuleWindow: futureCount is
	// returned for a bounded query, totalCount for the full history.
	futureCount int64
	totalCount  int64

	updated   []uuid.UUID
	deleted   []uuid.UUID
	createErr error
}

func newFakeScheduleRepo(rules ...schedule.Rule) *fakeScheduleRepo {
	f := &fakeScheduleRepo{rules: make(map[uuid.UUID]schedule.Rule)}
	for _, r := range rules {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.rules[r.ID] = r
	}
	return f
}

func (f *fakeScheduleRepo) Create(_ context.Context, r *schedule.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.rules {
		if existing.DoctorID == r.DoctorID &&
			existing.DayOfWeek == r.DayOfWeek &&
			existing.StartTime == r.StartTime &&
			existing.EndTime == r.EndTime {
			return schedule.ErrDuplicateRule
		}
	}
	r.ID = uuid.New()
	f.rules[r.ID] = *r
	return nil
}

func (f *fakeScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*schedule.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok {
		return nil, schedule.ErrRuleNotFound
	}
	return &r, nil
}

func (f *fakeScheduleRepo) Update(_ context.Context, r *schedule.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[r.ID]; !ok {
		return schedule.ErrRuleNotFound
	}
	f.rules[r.ID] = *r
	f.updated = append(f.updated, r.ID)
	return nil
}

func (f *fakeScheduleRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, activeOnly bool) ([]schedule.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []schedule.Rule
	for _, r := range f.rules {
		if r.DoctorID != doctorID {
			continue
		}
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeScheduleRepo) GetActiveRules(_ context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []schedule.Rule
	for _, r := range f.rules {
		if r.DoctorID == doctorID && r.IsActive && r.DayOfWeek == schedule.WeekdayIndex(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) CountAppointmentsInRuleWindow(_ context.Context, _ *schedule.Rule, from time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if from.IsZero() {
		return f.totalCount, nil
	}
	return f.futureCount, nil
}

func (f *fakeScheduleRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return schedule.ErrRuleNotFound
	}
	delete(f.rules, id)
	f.deleted = append(f.deleted, id)
	return nil
}

var _ schedule.Repository = (*fakeScheduleRepo)(nil)

// fakeApptRepo mirrors the store's exclusivity and compare-and-set semantics
// under a single mutex, which is what makes the concurrency tests meaningful.
type fakeApptRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]appointment.Appointment

	createErr error
}

func newFakeApptRepo() *fakeApptRepo {
	return &fakeApptRepo{appts: make(map[uuid.UUID]appointment.Appointment)}
}

func (f *fakeApptRepo) CreateExclusive(_ context.Context, a *appointment.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.appts {
		if existing.DoctorID == a.DoctorID &&
			existing.Date.Equal(a.Date) &&
			existing.StartTime == a.StartTime &&
			existing.Status == appointment.StatusScheduled {
			return appointment.ErrSlotTaken
		}
	}
	a.ID = uuid.New()
	f.appts[a.ID] = *a
	return nil
}

func (f *fakeApptRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (f *fakeApptRepo) GetForDay(_ context.Context, doctorID uuid.UUID, date time.Time, includeCancelled bool) ([]appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range f.appts {
		if a.DoctorID != doctorID || !a.Date.Equal(date) {
			continue
		}
		if !includeCancelled && a.Status == appointment.StatusCancelled {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeApptRepo) List(_ context.Context, q *appointment.ListAppointmentsQuery) ([]appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range f.appts {
		if q.DoctorID != nil && a.DoctorID != *q.DoctorID {
			continue
		}
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		if q.Status != nil && a.Status != *q.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeApptRepo) UpdateStatus(_ context.Context, a *appointment.Appointment, expected appointment.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.appts[a.ID]
	if !ok || stored.Status != expected {
		return appointment.ErrInvalidStatusTransition
	}
	f.appts[a.ID] = *a
	return nil
}

var _ appointment.Repository = (*fakeApptRepo)(nil)
