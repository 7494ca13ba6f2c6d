package response

import (
	"time"

	"cinema-reservation/internal/data/entity"
)

type BookingResponse struct {
	ID               string               `json:"id"`
	BookingCode      string               `json:"booking_code"`
	ShowtimeID       int64                `json:"showtime_id"`
	SessionID        string               `json:"session_id"`
	UserID           *int64               `json:"user_id,omitempty"`
	CustomerName     string               `json:"customer_name,omitempty"`
	CustomerEmail    string               `json:"customer_email,omitempty"`
	CustomerPhone    string               `json:"customer_phone,omitempty"`
	SeatIDs          []int64              `json:"seat_ids"`
	Tickets          []TicketResponse     `json:"tickets,omitempty"`
	Status           entity.BookingStatus `json:"status"`
	PaymentMethod    entity.PaymentMethod `json:"payment_method"`
	PaymentReference *string              `json:"payment_reference,omitempty"`
	Subtotal         float64              `json:"subtotal"`
	ServiceFee       float64              `json:"service_fee"`
	TaxAmount        float64              `json:"tax_amount"`
	TotalAmount      float64              `json:"total_amount"`
	HoldExpiresAt    time.Time            `json:"hold_expires_at"`
	PaidAt           *time.Time           `json:"paid_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type TicketResponse struct {
	ID         string              `json:"id"`
	TicketCode string              `json:"ticket_code"`
	SeatID     int64               `json:"seat_id"`
	Price      float64             `json:"price"`
	Status     entity.TicketStatus `json:"status"`
}

type SweepResponse struct {
	Scanned   int `json:"scanned"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:               b.ID.String(),
		BookingCode:      b.Code,
		ShowtimeID:       b.ShowtimeID,
		SessionID:        b.SessionID,
		UserID:           b.UserID,
		CustomerName:     b.CustomerName,
		CustomerEmail:    b.CustomerEmail,
		CustomerPhone:    b.CustomerPhone,
		SeatIDs:          nonNil(b.SeatIDs),
		Tickets:          ticketsToResponse(b.Tickets),
		Status:           b.Status,
		PaymentMethod:    b.PaymentMethod,
		PaymentReference: b.PaymentReference,
		Subtotal:         b.Subtotal,
		ServiceFee:       b.ServiceFee,
		TaxAmount:        b.TaxAmount,
		TotalAmount:      b.TotalAmount,
		HoldExpiresAt:    b.HoldExpiresAt,
		PaidAt:           b.PaidAt,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func BookingsToResponse(bookings []*entity.Booking) []BookingResponse {
	out := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		out[i] = BookingToResponse(b)
	}
	return out
}

func ticketsToResponse(tickets []*entity.Ticket) []TicketResponse {
	if len(tickets) == 0 {
		return nil
	}
	out := make([]TicketResponse, len(tickets))
	for i, t := range tickets {
		out[i] = TicketResponse{
			ID:         t.ID.String(),
			TicketCode: t.Code,
			SeatID:     t.SeatID,
			Price:      t.Price,
			Status:     t.Status,
		}
	}
	return out
}
