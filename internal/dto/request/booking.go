package request

// Customer fields are only mandatory for guests (no UserID); the service
// enforces that, the tags only check format.
type CreateBookingRequest struct {
	ShowtimeID    int64   `json:"showtime_id" validate:"required,gt=0"`
	SeatIDs       []int64 `json:"seat_ids" validate:"required,min=1,unique,dive,gt=0"`
	SessionID     string  `json:"session_id" validate:"required,max=128"`
	UserID        *int64  `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	CustomerName  string  `json:"customer_name" validate:"omitempty,max=100"`
	CustomerEmail string  `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone string  `json:"customer_phone" validate:"omitempty,numeric,min=10,max=20"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=CREDIT_CARD DEBIT_CARD BANK_TRANSFER E_WALLET CASH POINTS VOUCHER"`
}

// UpdateBookingRequest only touches the fields that are set.
type UpdateBookingRequest struct {
	Status           *string `json:"status,omitempty" validate:"omitempty,oneof=PENDING CONFIRMED PAID CANCELLED COMPLETED REFUNDED"`
	PaymentReference *string `json:"payment_reference,omitempty" validate:"omitempty,max=255"`
	CustomerName     *string `json:"customer_name,omitempty" validate:"omitempty,max=100"`
	CustomerEmail    *string `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerPhone    *string `json:"customer_phone,omitempty" validate:"omitempty,numeric,min=10,max=20"`
}
