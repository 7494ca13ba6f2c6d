package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard    PaymentMethod = "DEBIT_CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodEWallet      PaymentMethod = "E_WALLET"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodPoints       PaymentMethod = "POINTS"
	PaymentMethodVoucher      PaymentMethod = "VOUCHER"
)

type Booking struct {
	Base
	Code             string        `db:"booking_code"`
	ShowtimeID       int64         `db:"showtime_id"`
	SessionID        string        `db:"session_id"`
	UserID           *int64        `db:"user_id"`
	CustomerName     string        `db:"customer_name"`
	CustomerEmail    string        `db:"customer_email"`
	CustomerPhone    string        `db:"customer_phone"`
	PaymentMethod    PaymentMethod `db:"payment_method"`
	PaymentReference *string       `db:"payment_reference"`
	Status           BookingStatus `db:"status"`
	Subtotal         float64       `db:"subtotal"`
	ServiceFee       float64       `db:"service_fee"`
	TaxAmount        float64       `db:"tax_amount"`
	TotalAmount      float64       `db:"total_amount"`
	HoldExpiresAt    time.Time     `db:"hold_expires_at"`
	PaidAt           *time.Time    `db:"paid_at"`

	// SeatIDs is filled from the booking's tickets
	SeatIDs []int64 `db:"-"`
	// Tickets is only loaded for single-booking reads
	Tickets []*Ticket `db:"-"`
}

// TransitionTo moves the booking along the status table and stamps the
// timestamps that go with the move.
func (b *Booking) TransitionTo(next BookingStatus, now time.Time) error {
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("booking %s: %s -> %s: %w", b.Code, b.Status, next, ErrInvalidStateTransition)
	}
	b.Status = next
	b.UpdatedAt = now
	if next == BookingStatusPaid {
		paidAt := now
		b.PaidAt = &paidAt
	}
	return nil
}

// IsExpired reports a PENDING booking whose durable hold window elapsed.
func (b *Booking) IsExpired(now time.Time) bool {
	return b.Status == BookingStatusPending && b.HoldExpiresAt.Before(now)
}

type Ticket struct {
	Base
	BookingID  uuid.UUID    `db:"booking_id"`
	ShowtimeID int64        `db:"showtime_id"`
	SeatID     int64        `db:"seat_id"`
	Code       string       `db:"ticket_code"`
	Price      float64      `db:"price"`
	Status     TicketStatus `db:"status"`
}
