package response

import (
	"time"

	"cinema-reservation/internal/data/entity"
)

type HoldResponse struct {
	ShowtimeID int64     `json:"showtime_id"`
	SessionID  string    `json:"session_id"`
	SeatIDs    []int64   `json:"seat_ids"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type HoldConflictResponse struct {
	Conflicts []int64       `json:"conflicts"`
	Held      *HoldResponse `json:"held,omitempty"`
}

type AvailabilityResponse struct {
	ShowtimeID  int64   `json:"showtime_id"`
	Free        []int64 `json:"free"`
	HeldBySelf  []int64 `json:"held_by_self"`
	HeldByOther []int64 `json:"held_by_other"`
	Booked      []int64 `json:"booked"`
}

func HoldToResponse(h *entity.HoldSet) HoldResponse {
	return HoldResponse{
		ShowtimeID: h.ShowtimeID,
		SessionID:  h.SessionID,
		SeatIDs:    nonNil(h.SeatIDs),
		ExpiresAt:  h.ExpiresAt,
	}
}

func AvailabilityToResponse(a *entity.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		ShowtimeID:  a.ShowtimeID,
		Free:        nonNil(a.Free),
		HeldBySelf:  nonNil(a.HeldBySelf),
		HeldByOther: nonNil(a.HeldByOther),
		Booked:      nonNil(a.Booked),
	}
}

// nonNil keeps empty lists as [] in JSON.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
