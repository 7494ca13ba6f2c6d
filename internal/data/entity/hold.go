package entity

import "time"

// Hold is an ephemeral claim on one seat of one showtime by a session.
type Hold struct {
	ShowtimeID    int64     `json:"showtime_id"`
	SeatID        int64     `json:"seat_id"`
	SessionID     string    `json:"session_id"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (h *Hold) OwnedBy(sessionID string) bool {
	return h != nil && h.SessionID == sessionID
}

// ActiveAt reports whether the hold is still usable at now.
func (h *Hold) ActiveAt(now time.Time) bool {
	return h != nil && now.Before(h.ExpiresAt)
}

// HoldSet is the outcome of a hold request: the seats now held by the
// session and the ones another session already claimed.
type HoldSet struct {
	ShowtimeID int64     `json:"showtime_id"`
	SessionID  string    `json:"session_id"`
	SeatIDs    []int64   `json:"seat_ids"`
	Conflicts  []int64   `json:"conflicts,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Availability classifies every seat of a showtime's hall for one session.
type Availability struct {
	ShowtimeID  int64   `json:"showtime_id"`
	HallID      int64   `json:"hall_id"`
	Free        []int64 `json:"free"`
	HeldBySelf  []int64 `json:"held_by_self"`
	HeldByOther []int64 `json:"held_by_other"`
	Booked      []int64 `json:"booked"`
}
