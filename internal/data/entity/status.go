package entity

import "fmt"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusPaid      BookingStatus = "PAID"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusRefunded  BookingStatus = "REFUNDED"
)

// bookingTransitions lists every legal move. A status missing from the map
// (or mapped to nothing) is terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusPaid, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusPaid, BookingStatusCancelled},
	BookingStatusPaid:      {BookingStatusCompleted, BookingStatusRefunded},
}

// ParseBookingStatus rejects anything that is not a known status.
func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	switch st {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusPaid,
		BookingStatusCancelled, BookingStatusCompleted, BookingStatusRefunded:
		return st, nil
	}
	return "", fmt.Errorf("unknown booking status %q: %w", s, ErrValidation)
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TicketStatus returns the ticket status that mirrors a booking status.
func (s BookingStatus) TicketStatus() TicketStatus {
	switch s {
	case BookingStatusPaid:
		return TicketStatusPaid
	case BookingStatusCompleted:
		return TicketStatusUsed
	case BookingStatusCancelled:
		return TicketStatusCancelled
	case BookingStatusRefunded:
		return TicketStatusRefunded
	default:
		return TicketStatusBooked
	}
}

type TicketStatus string

const (
	TicketStatusBooked    TicketStatus = "BOOKED"
	TicketStatusPaid      TicketStatus = "PAID"
	TicketStatusUsed      TicketStatus = "USED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
	TicketStatusRefunded  TicketStatus = "REFUNDED"
)

// OccupyingTicketStatuses are the statuses that hold a seat in inventory.
var OccupyingTicketStatuses = []TicketStatus{TicketStatusBooked, TicketStatusPaid, TicketStatusUsed}

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusBooked: {TicketStatusPaid, TicketStatusCancelled, TicketStatusRefunded},
	TicketStatusPaid:   {TicketStatusUsed, TicketStatusCancelled, TicketStatusRefunded},
}

// IsActive reports BOOKED or PAID: the ticket can still change state.
func (s TicketStatus) IsActive() bool {
	return len(ticketTransitions[s]) > 0
}

// Occupies reports whether the seat counts against showtime inventory.
func (s TicketStatus) Occupies() bool {
	return s == TicketStatusBooked || s == TicketStatusPaid || s == TicketStatusUsed
}

func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTicketMove rejects moving tickets in the current statuses to next.
// A ticket already at next stays put.
func CheckTicketMove(current []TicketStatus, next TicketStatus) error {
	for _, st := range current {
		if st != next && !st.CanTransitionTo(next) {
			return fmt.Errorf("ticket %s -> %s: %w", st, next, ErrInvalidStateTransition)
		}
	}
	return nil
}
