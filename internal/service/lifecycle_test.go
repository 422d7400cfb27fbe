package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bluelught/doctor-apt/internal/domain"
	"github.com/bluelught/doctor-apt/internal/domain/appointment"
)

// Walks a booking through its full life: the slot disappears from
// availability when booked, reappears on cancellation, and a completed
// appointment refuses further transitions.
func TestBookingLifecycle(t *testing.T) {
	ctx := context.Background()
	doctorID := uuid.New()
	patientID := uuid.New()

	scheduleRepo := newFakeScheduleRepo(mondayRule(doctorID))
	apptRepo := newFakeApptRepo()
	audit := newTestAudit()
	clock := fixedClock(testSunday)
	log := zap.NewNop()

	bookingSvc := NewBookingService(scheduleRepo, apptRepo, audit, clock, log)
	availabilitySvc := NewAvailabilityService(scheduleRepo, apptRepo, clock, 30, log)
	apptSvc := NewAppointmentService(apptRepo, audit, clock, log)

	slot := domain.NewTimeOfDay(10, 0)

	before, err := availabilitySvc.ResolveAvailable(ctx, doctorID, testMonday)
	require.NoError(t, err)
	require.Len(t, before, 16)

	a, err := bookingSvc.Book(ctx, &appointment.BookAppointmentCommand{
		DoctorID:  doctorID,
		Date:      testMonday,
		StartTime: slot,
		Reason:    "checkup",
	}, patientID, domain.RolePatient, "10.0.0.1")
	require.NoError(t, err)

	during, err := availabilitySvc.ResolveAvailable(ctx, doctorID, testMonday)
	require.NoError(t, err)
	require.Len(t, during, 15)
	for _, s := range during {
		assert.NotEqual(t, slot, s.StartTime)
	}

	_, err = apptSvc.Cancel(ctx, a.ID, patientID, domain.RolePatient, "")
	require.NoError(t, err)

	after, err := availabilitySvc.ResolveAvailable(ctx, doctorID, testMonday)
	require.NoError(t, err)
	assert.Len(t, after, 16)

	// The freed slot books again, then the doctor completes it after the
	// visit; the terminal state rejects a late cancellation attempt.
	rebooked, err := bookingSvc.Book(ctx, &appointment.BookAppointmentCommand{
		DoctorID:  doctorID,
		Date:      testMonday,
		StartTime: slot,
		Reason:    "follow-up",
	}, patientID, domain.RolePatient, "10.0.0.1")
	require.NoError(t, err)

	lateClock := fixedClock(time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC))
	lateSvc := NewAppointmentService(apptRepo, audit, lateClock, log)

	done, early, err := lateSvc.Complete(ctx, rebooked.ID, doctorID, domain.RoleDoctor, "")
	require.NoError(t, err)
	assert.False(t, early)
	assert.Equal(t, appointment.StatusCompleted, done.Status)

	_, err = lateSvc.Cancel(ctx, rebooked.ID, patientID, domain.RolePatient, "")
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)

	audit.Shutdown()
}
