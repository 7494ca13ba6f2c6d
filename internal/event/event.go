// Package event publishes booking lifecycle events to the message broker.
package event

import (
	"context"
	"time"

	"cinema-reservation/internal/data/entity"
)

const (
	BookingCreated   = "booking.created"
	BookingCancelled = "booking.cancelled"
	BookingExpired   = "booking.expired"
	BookingUpdated   = "booking.updated"
)

// BookingEvent carries enough for consumers to notify or report without
// reading the primary database.
type BookingEvent struct {
	BookingID   string               `json:"booking_id"`
	BookingCode string               `json:"booking_code"`
	ShowtimeID  int64                `json:"showtime_id"`
	SessionID   string               `json:"session_id"`
	Status      entity.BookingStatus `json:"status"`
	SeatIDs     []int64              `json:"seat_ids"`
	TotalAmount float64              `json:"total_amount"`
	OccurredAt  time.Time            `json:"occurred_at"`
}

func NewBookingEvent(b *entity.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		BookingID:   b.ID.String(),
		BookingCode: b.Code,
		ShowtimeID:  b.ShowtimeID,
		SessionID:   b.SessionID,
		Status:      b.Status,
		SeatIDs:     b.SeatIDs,
		TotalAmount: b.TotalAmount,
		OccurredAt:  at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, evt BookingEvent) error
	Close() error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, BookingEvent) error { return nil }

func (Nop) Close() error { return nil }
