package entity

import "time"

type Seat struct {
	ID         int64  `db:"id"`
	HallID     int64  `db:"hall_id"`
	SeatRow    string `db:"seat_row"`    // A, B, C, etc.
	SeatNumber int    `db:"seat_number"` // 1, 2, 3, etc.
	SeatType   string `db:"seat_type"`   // STANDARD, VIP, COUPLE
}

type Showtime struct {
	ID             int64     `db:"id"`
	HallID         int64     `db:"hall_id"`
	BasePrice      float64   `db:"base_price"`
	AvailableSeats int       `db:"available_seats"`
	TotalSeats     int       `db:"total_seats"` // hall capacity
	StartsAt       time.Time `db:"starts_at"`
}
