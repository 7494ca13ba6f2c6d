package request

// SessionID may be left empty in the body when the client sends the
// X-Session-ID header; the handler fills it in before validation.
type HoldSeatsRequest struct {
	ShowtimeID    int64   `json:"showtime_id" validate:"required,gt=0"`
	SeatIDs       []int64 `json:"seat_ids" validate:"required,min=1,unique,dive,gt=0"`
	SessionID     string  `json:"session_id" validate:"required,max=128"`
	CustomerEmail string  `json:"customer_email" validate:"omitempty,email"`
}

type ReleaseSeatsRequest struct {
	ShowtimeID int64   `json:"showtime_id" validate:"required,gt=0"`
	SeatIDs    []int64 `json:"seat_ids" validate:"required,min=1,dive,gt=0"`
	SessionID  string  `json:"session_id" validate:"required,max=128"`
}

type ReleaseSessionHoldsRequest struct {
	ShowtimeID int64  `json:"showtime_id" validate:"required,gt=0"`
	SessionID  string `json:"session_id" validate:"required,max=128"`
}

type ExtendHoldRequest struct {
	ShowtimeID        int64   `json:"showtime_id" validate:"required,gt=0"`
	SeatIDs           []int64 `json:"seat_ids" validate:"required,min=1,dive,gt=0"`
	SessionID         string  `json:"session_id" validate:"required,max=128"`
	AdditionalSeconds int     `json:"additional_seconds" validate:"required,gt=0,max=900"`
}
