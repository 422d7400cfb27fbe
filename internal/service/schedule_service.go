package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bluelught/doctor-apt/internal/domain"
	"github.com/bluelught/doctor-apt/internal/domain/schedule"
)

// ScheduleService manages a doctor's recurring availability rules and
// enforces the mutation guard: a rule whose window still holds future
// scheduled appointments cannot be reshaped or deactivated, so committed
// bookings are never silently orphaned.
type ScheduleService struct {
	repo     schedule.Repository
	auditSvc *AuditService
	clock    Clock
	log      *zap.Logger
}

func NewScheduleService(repo schedule.Repository, auditSvc *AuditService, clock Clock, log *zap.Logger) *ScheduleService {
	return &ScheduleService{repo: repo, auditSvc: auditSvc, clock: clock, log: log}
}

func (s *ScheduleService) CreateRule(
	ctx context.Context,
	cmd *schedule.CreateRuleCommand,
	callerID uuid.UUID,
	callerRole domain.Role,
	ip string,
) (*schedule.Rule, error) {
	if callerRole != domain.RoleDoctor {
		return nil, ErrForbidden
	}

	r := &schedule.Rule{
		DoctorID:         callerID,
		DayOfWeek:        cmd.DayOfWeek,
		StartTime:        cmd.StartTime,
		EndTime:          cmd.EndTime,
		SlotDurationMins: cmd.SlotDurationMins,
		IsActive:         true,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     string(callerRole),
		Action:       "create",
		ResourceType: "schedule_rule",
		ResourceID:   r.ID.String(),
		IPAddress:    ip,
	})

	return r, nil
}

// ListRules returns a doctor's own rules, deactivated ones included.
func (s *ScheduleService) ListRules(ctx context.Context, callerID uuid.UUID, callerRole domain.Role) ([]schedule.Rule, error) {
	if callerRole != domain.RoleDoctor {
		return nil, ErrForbidden
	}
	return s.repo.ListByDoctor(ctx, callerID, false)
}

// ListDoctorRules returns the active rules of any doctor, for patients
// browsing availability.
func (s *ScheduleService) ListDoctorRules(ctx context.Context, doctorID uuid.UUID) ([]schedule.Rule, error) {
	return s.repo.ListByDoctor(ctx, doctorID, true)
}

// UpdateRule applies the command after running the mutation guard. Changes
// that reshape the generated window (day, time range, slot duration, or
// deactivation) are refused with ErrScheduleConflict while any scheduled
// appointment on today or a future date falls inside the current window.
func (s *ScheduleService) UpdateRule(
	ctx context.Context,
	ruleID uuid.UUID,
	cmd *schedule.UpdateRuleCommand,
	callerID uuid.UUID,
	callerRole domain.Role,
	ip string,
) (*schedule.Rule, error) {
	r, err := s.repo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if callerRole != domain.RoleDoctor || r.DoctorID != callerID {
		return nil, ErrForbidden
	}

	if cmd.ReshapesWindow(r) {
		if err := s.guardWindow(ctx, r); err != nil {
			return nil, err
		}
	}

	cmd.ApplyTo(r)
	if err := r.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     string(callerRole),
		Action:       "update",
		ResourceType: "schedule_rule",
		ResourceID:   r.ID.String(),
		IPAddress:    ip,
	})

	return r, nil
}

// DeleteRule retires a rule. The guard blocks it while future scheduled
// appointments sit in the window; once the window only holds history the rule
// is soft-deactivated to preserve that history, and hard-deleted only when no
// appointment ever referenced its slots.
func (s *ScheduleService) DeleteRule(
	ctx context.Context,
	ruleID uuid.UUID,
	callerID uuid.UUID,
	callerRole domain.Role,
	ip string,
) error {
	r, err := s.repo.GetByID(ctx, ruleID)
	if err != nil {
		return err
	}
	if callerRole != domain.RoleDoctor || r.DoctorID != callerID {
		return ErrForbidden
	}

	if err := s.guardWindow(ctx, r); err != nil {
		return err
	}

	total, err := s.repo.CountAppointmentsInRuleWindow(ctx, r, time.Time{})
	if err != nil {
		return fmt.Errorf("counting historical appointments: %w", err)
	}

	if total > 0 {
		r.IsActive = false
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		s.log.Info("schedule rule deactivated instead of deleted",
			zap.String("rule_id", r.ID.String()),
			zap.Int64("historical_appointments", total),
		)
	} else if err := s.repo.Delete(ctx, r.ID); err != nil {
		return err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     string(callerRole),
		Action:       "update",
		ResourceType: "schedule_rule",
		ResourceID:   r.ID.String(),
		IPAddress:    ip,
		Changes:      `{"deleted":true}`,
	})

	return nil
}

func (s *ScheduleService) guardWindow(ctx context.Context, r *schedule.Rule) error {
	today := DateOnly(s.clock.Now())
	count, err := s.repo.CountAppointmentsInRuleWindow(ctx, r, today)
	if err != nil {
		return fmt.Errorf("counting appointments in rule window: %w", err)
	}
	if count > 0 {
		return schedule.ErrScheduleConflict
	}
	return nil
}
