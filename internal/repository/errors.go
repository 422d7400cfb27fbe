package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
)

// ErrUnavailable marks a transient store failure (lost connection, timed-out
// query) as opposed to a logical conflict. Callers may retry a bounded number
// of times before reporting service-unavailable; the services never retry.
var ErrUnavailable = errors.New("store temporarily unavailable")

func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
