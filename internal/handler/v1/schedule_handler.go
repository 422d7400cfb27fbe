package v1

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/bluelught/doctor-apt/internal/domain"
	"github.com/bluelught/doctor-apt/internal/domain/schedule"
	"github.com/bluelught/doctor-apt/internal/service"
	"github.com/bluelught/doctor-apt/pkg/metrics"
)

type ScheduleHandler struct {
	scheduleSvc     *service.ScheduleService
	availabilitySvc *service.AvailabilityService
	collector       *metrics.Collector
}

func NewScheduleHandler(
	scheduleSvc *service.ScheduleService,
	availabilitySvc *service.AvailabilityService,
	collector *metrics.Collector,
) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleSvc:     scheduleSvc,
		availabilitySvc: availabilitySvc,
		collector:       collector,
	}
}

type createRuleRequest struct {
	DayOfWeek        int    `json:"day_of_week"`
	StartTime        string `json:"start_time" binding:"required"`
	EndTime          string `json:"end_time" binding:"required"`
	SlotDurationMins int    `json:"slot_duration_mins"`
}

func (h *ScheduleHandler) CreateRule(c *gin.Context) {
	var req createRuleRequest
	if !bindJSON(c, &req) {
		return
	}

	start, err := domain.ParseTimeOfDay(req.StartTime)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	end, err := domain.ParseTimeOfDay(req.EndTime)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if req.SlotDurationMins == 0 {
		req.SlotDurationMins = 30
	}

	claims := currentClaims(c)
	rule, err := h.scheduleSvc.CreateRule(c.Request.Context(), &schedule.CreateRuleCommand{
		DayOfWeek:        req.DayOfWeek,
		StartTime:        start,
		EndTime:          end,
		SlotDurationMins: req.SlotDurationMins,
	}, claims.UserID, claims.Role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, rule)
}

func (h *ScheduleHandler) ListMyRules(c *gin.Context) {
	claims := currentClaims(c)
	rules, err := h.scheduleSvc.ListRules(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, rules)
}

func (h *ScheduleHandler) ListDoctorRules(c *gin.Context) {
	doctorID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	rules, err := h.scheduleSvc.ListDoctorRules(c.Request.Context(), doctorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, rules)
}

// AvailableSlots resolves a doctor's open slots over a date range.
func (h *ScheduleHandler) AvailableSlots(c *gin.Context) {
	doctorID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	from, ok := parseDateQuery(c, "start_date")
	if !ok {
		return
	}
	to, ok := parseDateQuery(c, "end_date")
	if !ok {
		return
	}

	slots, err := h.availabilitySvc.ResolveRange(c.Request.Context(), doctorID, from, to)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.collector.SlotQueriesTotal.Inc()
	respondOK(c, slots)
}

type updateRuleRequest struct {
	DayOfWeek        *int    `json:"day_of_week"`
	StartTime        *string `json:"start_time"`
	EndTime          *string `json:"end_time"`
	SlotDurationMins *int    `json:"slot_duration_mins"`
	IsActive         *bool   `json:"is_active"`
}

func (h *ScheduleHandler) UpdateRule(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req updateRuleRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &schedule.UpdateRuleCommand{
		DayOfWeek:        req.DayOfWeek,
		SlotDurationMins: req.SlotDurationMins,
		IsActive:         req.IsActive,
	}
	if req.StartTime != nil {
		start, err := domain.ParseTimeOfDay(*req.StartTime)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		cmd.StartTime = &start
	}
	if req.EndTime != nil {
		end, err := domain.ParseTimeOfDay(*req.EndTime)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		cmd.EndTime = &end
	}

	claims := currentClaims(c)
	rule, err := h.scheduleSvc.UpdateRule(c.Request.Context(), id, cmd, claims.UserID, claims.Role, c.ClientIP())
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleConflict) {
			h.collector.ScheduleConflictsTotal.Inc()
		}
		respondServiceError(c, err)
		return
	}
	respondOK(c, rule)
}

func (h *ScheduleHandler) DeleteRule(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	claims := currentClaims(c)
	if err := h.scheduleSvc.DeleteRule(c.Request.Context(), id, claims.UserID, claims.Role, c.ClientIP()); err != nil {
		if errors.Is(err, schedule.ErrScheduleConflict) {
			h.collector.ScheduleConflictsTotal.Inc()
		}
		respondServiceError(c, err)
		return
	}
	respondOKWithMessage(c, nil, "schedule rule removed")
}
