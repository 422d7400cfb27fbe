package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrSlotTaken               = errors.New("time slot is already booked")
	ErrPastSlot                = errors.New("time slot is in the past")
	ErrNotBookable             = errors.New("no active schedule rule covers this time slot")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
)
