package v1

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bluelught/doctor-apt/internal/domain"
	"github.com/bluelught/doctor-apt/internal/domain/appointment"
	"github.com/bluelught/doctor-apt/internal/repository"
	"github.com/bluelught/doctor-apt/internal/service"
	"github.com/bluelught/doctor-apt/pkg/metrics"
)

type AppointmentHandler struct {
	bookingSvc *service.BookingService
	apptSvc    *service.AppointmentService
	collector  *metrics.Collector
	// Bounded retry budget for transient store failures. Logical conflicts
	// like a taken slot are never retried here; that is the caller's call.
	transientRetries int
}

func NewAppointmentHandler(
	bookingSvc *service.BookingService,
	apptSvc *service.AppointmentService,
	collector *metrics.Collector,
	transientRetries int,
) *AppointmentHandler {
	return &AppointmentHandler{
		bookingSvc:       bookingSvc,
		apptSvc:          apptSvc,
		collector:        collector,
		transientRetries: transientRetries,
	}
}

type bookAppointmentRequest struct {
	DoctorID  string `json:"doctor_id" binding:"required"`
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

func (h *AppointmentHandler) Book(c *gin.Context) {
	var req bookAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		respondServiceError(c, &service.ValidationError{Fields: []string{"doctor_id must be a valid UUID"}})
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		respondServiceError(c, &service.ValidationError{Fields: []string{"date must be YYYY-MM-DD"}})
		return
	}
	start, err := domain.ParseTimeOfDay(req.StartTime)
	if err != nil {
		respondServiceError(c, &service.ValidationError{Fields: []string{"start_time must be HH:MM"}})
		return
	}

	claims := currentClaims(c)
	cmd := &appointment.BookAppointmentCommand{
		DoctorID:  doctorID,
		Date:      date,
		StartTime: start,
		Reason:    req.Reason,
	}

	var a *appointment.Appointment
	for attempt := 0; ; attempt++ {
		a, err = h.bookingSvc.Book(c.Request.Context(), cmd, claims.UserID, claims.Role, c.ClientIP())
		if err == nil || !errors.Is(err, repository.ErrUnavailable) || attempt >= h.transientRetries {
			break
		}
	}
	if err != nil {
		h.collector.BookingsTotal.WithLabelValues(bookingOutcome(err)).Inc()
		respondServiceError(c, err)
		return
	}

	h.collector.BookingsTotal.WithLabelValues("booked").Inc()
	respondCreated(c, a)
}

func (h *AppointmentHandler) ListMine(c *gin.Context) {
	claims := currentClaims(c)
	appts, err := h.apptSvc.ListMine(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, appts)
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	claims := currentClaims(c)
	a, err := h.apptSvc.Get(c.Request.Context(), id, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	claims := currentClaims(c)
	a, err := h.apptSvc.Cancel(c.Request.Context(), id, claims.UserID, claims.Role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.collector.AppointmentTransitions.WithLabelValues(string(appointment.StatusCancelled)).Inc()
	respondOK(c, a)
}

func (h *AppointmentHandler) Complete(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	claims := currentClaims(c)
	a, early, err := h.apptSvc.Complete(c.Request.Context(), id, claims.UserID, claims.Role, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.collector.AppointmentTransitions.WithLabelValues(string(appointment.StatusCompleted)).Inc()
	if early {
		respondOKWithMessage(c, a, "appointment completed before its scheduled end time")
		return
	}
	respondOK(c, a)
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, appointment.ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, appointment.ErrNotBookable):
		return "not_bookable"
	case errors.Is(err, appointment.ErrPastSlot):
		return "past_slot"
	default:
		return "error"
	}
}
