package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors shared by repositories, services and handlers. Handlers
// map them to HTTP statuses with errors.Is.
var (
	ErrShowtimeNotFound         = errors.New("showtime not found")
	ErrSeatNotFound             = errors.New("seat not found")
	ErrSeatHeldByOther          = errors.New("seat held by another session")
	ErrHoldNotOwnedBySession    = errors.New("seat hold not owned by session")
	ErrSeatAlreadyBooked        = errors.New("seat already booked")
	ErrBookingNotFound          = errors.New("booking not found")
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrInsufficientCustomerInfo = errors.New("insufficient customer info")
	ErrInventoryExhausted       = errors.New("showtime has not enough available seats")
	ErrValidation               = errors.New("validation failed")
)

// SeatConflictError names the exact seats behind a seat-scoped failure so
// the client can re-prompt selection for those seats only.
type SeatConflictError struct {
	Err     error
	SeatIDs []int64
}

func NewSeatConflict(err error, seatIDs []int64) *SeatConflictError {
	return &SeatConflictError{Err: err, SeatIDs: seatIDs}
}

func (e *SeatConflictError) Error() string {
	ids := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%s: seats [%s]", e.Err, strings.Join(ids, ","))
}

func (e *SeatConflictError) Unwrap() error { return e.Err }

// ConflictingSeats extracts the seat list from err, if any.
func ConflictingSeats(err error) []int64 {
	var conflict *SeatConflictError
	if errors.As(err, &conflict) {
		return conflict.SeatIDs
	}
	return nil
}
