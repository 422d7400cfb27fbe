package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bluelught/doctor-apt/internal/domain"
	"github.com/bluelught/doctor-apt/internal/domain/appointment"
	"github.com/bluelught/doctor-apt/internal/domain/schedule"
)

var bookingTracer = otel.Tracer("doctor-apt.internal.booking")

// BookingService validates and commits slot reservations. The only serialized
// boundary is the store's exclusive insert; everything before it is advisory.
type BookingService struct {
	scheduleRepo schedule.Repository
	apptRepo     appointment.Repository
	auditSvc     *AuditService
	clock        Clock
	log          *zap.Logger
}

func NewBookingService(
	scheduleRepo schedule.Repository,
	apptRepo appointment.Repository,
	auditSvc *AuditService,
	clock Clock,
	log *zap.Logger,
) *BookingService {
	return &BookingService{
		scheduleRepo: scheduleRepo,
		apptRepo:     apptRepo,
		auditSvc:     auditSvc,
		clock:        clock,
		log:          log,
	}
}

// Book reserves a slot for the calling patient. Preconditions are checked in
// order so each failure keeps its distinct reason: no covering active rule →
// ErrNotBookable; slot start not after now → ErrPastSlot; slot already held by
// a scheduled appointment → ErrSlotTaken (resolved atomically by the store, so
// N concurrent calls on one slot commit exactly once). On success the covering
// rule's slot duration is frozen into the appointment.
func (s *BookingService) Book(
	ctx context.Context,
	cmd *appointment.BookAppointmentCommand,
	callerID uuid.UUID,
	callerRole domain.Role,
	ip string,
) (*appointment.Appointment, error) {
	if callerRole != domain.RolePatient {
		return nil, ErrForbidden
	}
	if err := validateBookCommand(cmd); err != nil {
		return nil, err
	}

	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.doctor_id", cmd.DoctorID.String()),
		attribute.String("booking.start_time", cmd.StartTime.String()),
	)

	date := DateOnly(cmd.Date)

	rules, err := s.scheduleRepo.GetActiveRules(ctx, cmd.DoctorID, date)
	if err != nil {
		return nil, fmt.Errorf("fetching active rules: %w", err)
	}
	rule := schedule.CoveringRule(rules, date, cmd.StartTime)
	if rule == nil {
		return nil, appointment.ErrNotBookable
	}

	if !cmd.StartTime.At(date).After(s.clock.Now()) {
		return nil, appointment.ErrPastSlot
	}

	a := &appointment.Appointment{
		DoctorID:     cmd.DoctorID,
		PatientID:    callerID,
		Date:         date,
		StartTime:    cmd.StartTime,
		DurationMins: rule.SlotDurationMins,
		Reason:       cmd.Reason,
		Status:       appointment.StatusScheduled,
	}

	if err := s.apptRepo.CreateExclusive(ctx, a); err != nil {
		if errors.Is(err, appointment.ErrSlotTaken) {
			span.RecordError(err)
			return nil, appointment.ErrSlotTaken
		}
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", a.ID.String()),
		zap.String("doctor_id", a.DoctorID.String()),
		zap.String("patient_id", a.PatientID.String()),
		zap.String("start_time", a.StartTime.String()),
	)

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     string(callerRole),
		Action:       "create",
		ResourceType: "appointment",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
	})

	return a, nil
}

func validateBookCommand(cmd *appointment.BookAppointmentCommand) error {
	var fields []string
	if cmd.DoctorID == uuid.Nil {
		fields = append(fields, "doctor_id is required")
	}
	if cmd.Date.IsZero() {
		fields = append(fields, "date is required")
	}
	if !cmd.StartTime.Valid() {
		fields = append(fields, "start_time must be within 00:00-23:59")
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		fields = append(fields, "reason is required")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
