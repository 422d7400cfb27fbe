package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bluelught/doctor-apt/internal/domain"
	"github.com/bluelught/doctor-apt/internal/domain/appointment"
)

// AppointmentService governs the appointment lifecycle after booking:
// scheduled → completed (doctor) or scheduled → cancelled (either party),
// both terminal. Transitions are persisted compare-and-set so a raced move
// fails with ErrInvalidStatusTransition instead of clobbering state.
type AppointmentService struct {
	repo     appointment.Repository
	auditSvc *AuditService
	clock    Clock
	log      *zap.Logger
}

func NewAppointmentService(repo appointment.Repository, auditSvc *AuditService, clock Clock, log *zap.Logger) *AppointmentService {
	return &AppointmentService{repo: repo, auditSvc: auditSvc, clock: clock, log: log}
}

func (s *AppointmentService) Get(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(a, callerID, callerRole); err != nil {
		return nil, err
	}
	return a, nil
}

// ListMine returns the caller's appointments: the doctor's calendar for
// doctors, the patient's own bookings for patients.
func (s *AppointmentService) ListMine(ctx context.Context, callerID uuid.UUID, callerRole domain.Role) ([]appointment.Appointment, error) {
	q := &appointment.ListAppointmentsQuery{}
	switch callerRole {
	case domain.RoleDoctor:
		q.DoctorID = &callerID
	case domain.RolePatient:
		q.PatientID = &callerID
	default:
		return nil, ErrForbidden
	}
	return s.repo.List(ctx, q)
}

// Cancel moves a scheduled appointment to cancelled. Allowed for the booked
// patient and the appointment's doctor while the appointment is scheduled.
func (s *AppointmentService) Cancel(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole domain.Role, ip string) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(a, callerID, callerRole); err != nil {
		return nil, err
	}

	if err := a.Cancel(callerID, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, a, appointment.StatusScheduled); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     string(callerRole),
		Action:       "update",
		ResourceType: "appointment",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
		Changes:      `{"status":"cancelled"}`,
	})

	return a, nil
}

// Complete marks a scheduled appointment done. Doctor-only. Completing before
// the slot has ended is accepted as a manual override; the returned flag lets
// the caller warn rather than reject.
func (s *AppointmentService) Complete(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole domain.Role, ip string) (*appointment.Appointment, bool, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if callerRole != domain.RoleDoctor || a.DoctorID != callerID {
		return nil, false, ErrForbidden
	}

	early, err := a.Complete(s.clock.Now())
	if err != nil {
		return nil, false, err
	}
	if err := s.repo.UpdateStatus(ctx, a, appointment.StatusScheduled); err != nil {
		return nil, false, fmt.Errorf("updating appointment status: %w", err)
	}

	if early {
		s.log.Warn("appointment completed before its scheduled end",
			zap.String("appointment_id", a.ID.String()),
			zap.String("doctor_id", callerID.String()),
		)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     string(callerRole),
		Action:       "update",
		ResourceType: "appointment",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
		Changes:      `{"status":"completed"}`,
	})

	return a, early, nil
}

func checkAccess(a *appointment.Appointment, callerID uuid.UUID, callerRole domain.Role) error {
	switch callerRole {
	case domain.RolePatient:
		if a.PatientID != callerID {
			return ErrForbidden
		}
	case domain.RoleDoctor:
		if a.DoctorID != callerID {
			return ErrForbidden
		}
	default:
		return ErrForbidden
	}
	return nil
}
