package repository

import (
	"context"
	"fmt"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TicketRepository interface {
	// FindOccupiedSeatIDs returns the subset of seatIDs that already have an
	// occupying ticket for the showtime. A nil seatIDs checks the whole hall.
	FindOccupiedSeatIDs(ctx context.Context, showtimeID int64, seatIDs []int64) ([]int64, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Ticket, error)
}

type ticketRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewTicketRepository(db database.PgxIface, log *zap.Logger) TicketRepository {
	return &ticketRepository{
		db:  db,
		log: log.With(zap.String("repository", "ticket")),
	}
}

func occupyingStatuses() []string {
	out := make([]string, len(entity.OccupyingTicketStatuses))
	for i, st := range entity.OccupyingTicketStatuses {
		out[i] = string(st)
	}
	return out
}

func (r *ticketRepository) FindOccupiedSeatIDs(ctx context.Context, showtimeID int64, seatIDs []int64) ([]int64, error) {
	return findOccupiedSeatIDs(ctx, r.db, showtimeID, seatIDs, r.log)
}

// querier lets the ledger reuse the same query inside its transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func findOccupiedSeatIDs(ctx context.Context, q querier, showtimeID int64, seatIDs []int64, log *zap.Logger) ([]int64, error) {
	query := `
		SELECT seat_id
		FROM tickets
		WHERE showtime_id = $1
		  AND status = ANY($2)
		  AND ($3::bigint[] IS NULL OR seat_id = ANY($3))
		ORDER BY seat_id
	`

	rows, err := q.Query(ctx, query, showtimeID, occupyingStatuses(), seatIDs)
	if err != nil {
		log.Error("Failed to find occupied seats",
			zap.Error(err),
			zap.Int64("showtime_id", showtimeID),
		)
		return nil, fmt.Errorf("find occupied seats of showtime %d: %w", showtimeID, err)
	}

	occupied, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan occupied seats of showtime %d: %w", showtimeID, err)
	}
	return occupied, nil
}

func (r *ticketRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Ticket, error) {
	query := `
		SELECT id, booking_id, showtime_id, seat_id, ticket_code, price, status, created_at, updated_at
		FROM tickets
		WHERE booking_id = $1
		ORDER BY seat_id
	`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find tickets by booking ID",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find tickets of booking %s: %w", bookingID.String(), err)
	}

	tickets, err := pgx.CollectRows(rows, scanTicket)
	if err != nil {
		r.log.Error("Failed to scan ticket row", zap.Error(err))
		return nil, fmt.Errorf("scan tickets of booking %s: %w", bookingID.String(), err)
	}
	return tickets, nil
}

func scanTicket(row pgx.CollectableRow) (*entity.Ticket, error) {
	var ticket entity.Ticket
	err := row.Scan(
		&ticket.ID,
		&ticket.BookingID,
		&ticket.ShowtimeID,
		&ticket.SeatID,
		&ticket.Code,
		&ticket.Price,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	return &ticket, err
}
