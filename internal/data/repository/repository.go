package repository

import (
	"cinema-reservation/pkg/database"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Repository struct {
	Showtime     ShowtimeRepository
	Seat         SeatRepository
	Ticket       TicketRepository
	Booking      BookingRepository
	Ledger       Ledger
	Holds        HoldStore
	SessionHolds SessionHoldIndex
}

func NewRepository(db database.PgxIface, rdb redis.UniversalClient, log *zap.Logger) *Repository {
	return &Repository{
		Showtime:     NewShowtimeRepository(db, log),
		Seat:         NewSeatRepository(db, log),
		Ticket:       NewTicketRepository(db, log),
		Booking:      NewBookingRepository(db, log),
		Ledger:       NewLedger(db, log),
		Holds:        NewHoldStore(rdb, log),
		SessionHolds: NewSessionHoldIndex(rdb, log),
	}
}
