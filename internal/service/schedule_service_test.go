package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bluelught/doctor-apt/internal/domain"
	"github.com/bluelught/doctor-apt/internal/domain/schedule"
)

func newScheduleService(repo *fakeScheduleRepo) *ScheduleService {
	return NewScheduleService(repo, newTestAudit(), fixedClock(testSunday), zap.NewNop())
}

func TestCreateRule(t *testing.T) {
	doctorID := uuid.New()
	cmd := &schedule.CreateRuleCommand{
		DayOfWeek:        0,
		StartTime:        domain.NewTimeOfDay(9, 0),
		EndTime:          domain.NewTimeOfDay(17, 0),
		SlotDurationMins: 30,
	}

	t.Run("doctor creates own rule", func(t *testing.T) {
		repo := newFakeScheduleRepo()
		svc := newScheduleService(repo)

		r, err := svc.CreateRule(context.Background(), cmd, doctorID, domain.RoleDoctor, "")
		require.NoError(t, err)
		assert.Equal(t, doctorID, r.DoctorID)
		assert.True(t, r.IsActive)
		assert.NotEqual(t, uuid.Nil, r.ID)
	})

	t.Run("patients cannot create rules", func(t *testing.T) {
		svc := newScheduleService(newFakeScheduleRepo())
		_, err := svc.CreateRule(context.Background(), cmd, uuid.New(), domain.RolePatient, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("invalid window rejected", func(t *testing.T) {
		svc := newScheduleService(newFakeScheduleRepo())
		bad := *cmd
		bad.StartTime = domain.NewTimeOfDay(17, 0)
		bad.EndTime = domain.NewTimeOfDay(9, 0)
		_, err := svc.CreateRule(context.Background(), &bad, doctorID, domain.RoleDoctor, "")
		assert.ErrorIs(t, err, schedule.ErrInvalidTimeRange)
	})

	t.Run("identical window is a duplicate", func(t *testing.T) {
		repo := newFakeScheduleRepo()
		svc := newScheduleService(repo)

		_, err := svc.CreateRule(context.Background(), cmd, doctorID, domain.RoleDoctor, "")
		require.NoError(t, err)
		_, err = svc.CreateRule(context.Background(), cmd, doctorID, domain.RoleDoctor, "")
		assert.ErrorIs(t, err, schedule.ErrDuplicateRule)
	})
}

func TestUpdateRule_MutationGuard(t *testing.T) {
	doctorID := uuid.New()
	newDay := 3

	t.Run("reshape blocked while future appointments exist", func(t *testing.T) {
		repo := newFakeScheduleRepo(mondayRule(doctorID))
		repo.futureCount = 2
		svc := newScheduleService(repo)
		ruleID := ruleIDOf(t, repo)

		_, err := svc.UpdateRule(context.Background(), ruleID, &schedule.UpdateRuleCommand{DayOfWeek: &newDay},
			doctorID, domain.RoleDoctor, "")
		assert.ErrorIs(t, err, schedule.ErrScheduleConflict)
		assert.Empty(t, repo.updated)
	})

	t.Run("reshape allowed once window is clear", func(t *testing.T) {
		repo := newFakeScheduleRepo(mondayRule(doctorID))
		svc := newScheduleService(repo)
		ruleID := ruleIDOf(t, repo)

		r, err := svc.UpdateRule(context.Background(), ruleID, &schedule.UpdateRuleCommand{DayOfWeek: &newDay},
			doctorID, domain.RoleDoctor, "")
		require.NoError(t, err)
		assert.Equal(t, newDay, r.DayOfWeek)
	})

	t.Run("non-reshaping update bypasses the guard", func(t *testing.T) {
		repo := newFakeScheduleRepo(mondayRule(doctorID))
		repo.futureCount = 5
		svc := newScheduleService(repo)
		ruleID := ruleIDOf(t, repo)

		active := true
		_, err := svc.UpdateRule(context.Background(), ruleID, &schedule.UpdateRuleCommand{IsActive: &active},
			doctorID, domain.RoleDoctor, "")
		assert.NoError(t, err)
	})

	t.Run("deactivation counts as a reshape", func(t *testing.T) {
		repo := newFakeScheduleRepo(mondayRule(doctorID))
		repo.futureCount = 1
		svc := newScheduleService(repo)
		ruleID := ruleIDOf(t, repo)

		inactive := false
		_, err := svc.UpdateRule(context.Background(), ruleID, &schedule.UpdateRuleCommand{IsActive: &inactive},
			doctorID, domain.RoleDoctor, "")
		assert.ErrorIs(t, err, schedule.ErrScheduleConflict)
	})

	t.Run("only the owning doctor may update", func(t *testing.T) {
		repo := newFakeScheduleRepo(mondayRule(doctorID))
		svc := newScheduleService(repo)
		ruleID := ruleIDOf(t, repo)

		_, err := svc.UpdateRule(context.Background(), ruleID, &schedule.UpdateRuleCommand{DayOfWeek: &newDay},
			uuid.New(), domain.RoleDoctor, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown rule", func(t *testing.T) {
		svc := newScheduleService(newFakeScheduleRepo())
		_, err := svc.UpdateRule(context.Background(), uuid.New(), &schedule.UpdateRuleCommand{},
			doctorID, domain.RoleDoctor, "")
		assert.ErrorIs(t, err, schedule.ErrRuleNotFound)
	})
}

func TestDeleteRule(t *testing.T) {
	doctorID := uuid.New()

	t.Run("blocked while future appointments exist", func(t *testing.T) {
		repo := newFakeScheduleRepo(mondayRule(doctorID))
		repo.futureCount = 1
		svc := newScheduleService(repo)
		ruleID := ruleIDOf(t, repo)

		err := svc.DeleteRule(context.Background(), ruleID, doctorID, domain.RoleDoctor, "")
		assert.ErrorIs(t, err, schedule.ErrScheduleConflict)
		assert.Empty(t, repo.deleted)
	})

	t.Run("historical appointments force soft deactivation", func(t *testing.T) {
		repo := newFakeScheduleRepo(mondayRule(doctorID))
		repo.totalCount = 7
		svc := newScheduleService(repo)
		ruleID := ruleIDOf(t, repo)

		require.NoError(t, svc.DeleteRule(context.Background(), ruleID, doctorID, domain.RoleDoctor, ""))

		assert.Empty(t, repo.deleted)
		r, err := repo.GetByID(context.Background(), ruleID)
		require.NoError(t, err)
		assert.False(t, r.IsActive)
	})

	t.Run("never-used rule is hard deleted", func(t *testing.T) {
		repo := newFakeScheduleRepo(mondayRule(doctorID))
		svc := newScheduleService(repo)
		ruleID := ruleIDOf(t, repo)

		require.NoError(t, svc.DeleteRule(context.Background(), ruleID, doctorID, domain.RoleDoctor, ""))

		assert.Equal(t, []uuid.UUID{ruleID}, repo.deleted)
		_, err := repo.GetByID(context.Background(), ruleID)
		assert.ErrorIs(t, err, schedule.ErrRuleNotFound)
	})

	t.Run("only the owning doctor may delete", func(t *testing.T) {
		repo := newFakeScheduleRepo(mondayRule(doctorID))
		svc := newScheduleService(repo)
		ruleID := ruleIDOf(t, repo)

		err := svc.DeleteRule(context.Background(), ruleID, uuid.New(), domain.RoleDoctor, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestListRules(t *testing.T) {
	doctorID := uuid.New()
	active := mondayRule(doctorID)
	retired := mondayRule(doctorID)
	retired.StartTime = domain.NewTimeOfDay(18, 0)
	retired.EndTime = domain.NewTimeOfDay(20, 0)
	retired.IsActive = false

	repo := newFakeScheduleRepo(active, retired)
	svc := newScheduleService(repo)

	t.Run("owner sees deactivated rules too", func(t *testing.T) {
		rules, err := svc.ListRules(context.Background(), doctorID, domain.RoleDoctor)
		require.NoError(t, err)
		assert.Len(t, rules, 2)
	})

	t.Run("patients are refused the owner listing", func(t *testing.T) {
		_, err := svc.ListRules(context.Background(), doctorID, domain.RolePatient)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("public listing is active only", func(t *testing.T) {
		rules, err := svc.ListDoctorRules(context.Background(), doctorID)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.True(t, rules[0].IsActive)
	})
}

func ruleIDOf(t *testing.T, repo *fakeScheduleRepo) uuid.UUID {
	t.Helper()
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for id := range repo.rules {
		return id
	}
	t.Fatal("fake repository holds no rules")
	return uuid.Nil
}
