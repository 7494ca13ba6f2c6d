package repository

import (
	"context"
	"fmt"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type SeatRepository interface {
	FindByHallID(ctx context.Context, hallID int64) ([]*entity.Seat, error)
	// FindByIDs returns only the seats that exist in the hall; callers
	// diff against the requested IDs to report missing seats.
	FindByIDs(ctx context.Context, hallID int64, seatIDs []int64) ([]*entity.Seat, error)
}

type seatRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSeatRepository(db database.PgxIface, log *zap.Logger) SeatRepository {
	return &seatRepository{
		db:  db,
		log: log.With(zap.String("repository", "seat")),
	}
}

func (r *seatRepository) FindByHallID(ctx context.Context, hallID int64) ([]*entity.Seat, error) {
	query := `
		SELECT id, hall_id, seat_row, seat_number, seat_type
		FROM seats
		WHERE hall_id = $1
		ORDER BY seat_row, seat_number
	`

	rows, err := r.db.Query(ctx, query, hallID)
	if err != nil {
		r.log.Error("Failed to find seats by hall ID",
			zap.Error(err),
			zap.Int64("hall_id", hallID),
		)
		return nil, fmt.Errorf("find seats of hall %d: %w", hallID, err)
	}

	seats, err := pgx.CollectRows(rows, scanSeat)
	if err != nil {
		r.log.Error("Failed to scan seat row", zap.Error(err))
		return nil, fmt.Errorf("scan seats of hall %d: %w", hallID, err)
	}
	return seats, nil
}

func (r *seatRepository) FindByIDs(ctx context.Context, hallID int64, seatIDs []int64) ([]*entity.Seat, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, hall_id, seat_row, seat_number, seat_type
		FROM seats
		WHERE hall_id = $1 AND id = ANY($2)
		ORDER BY seat_row, seat_number
	`

	rows, err := r.db.Query(ctx, query, hallID, seatIDs)
	if err != nil {
		r.log.Error("Failed to find seats for booking",
			zap.Error(err),
			zap.Int64("hall_id", hallID),
			zap.Int64s("seat_ids", seatIDs),
		)
		return nil, fmt.Errorf("find seats %v of hall %d: %w", seatIDs, hallID, err)
	}

	seats, err := pgx.CollectRows(rows, scanSeat)
	if err != nil {
		r.log.Error("Failed to scan seat row", zap.Error(err))
		return nil, fmt.Errorf("scan seats of hall %d: %w", hallID, err)
	}
	return seats, nil
}

func scanSeat(row pgx.CollectableRow) (*entity.Seat, error) {
	var seat entity.Seat
	err := row.Scan(
		&seat.ID,
		&seat.HallID,
		&seat.SeatRow,
		&seat.SeatNumber,
		&seat.SeatType,
	)
	return &seat, err
}
