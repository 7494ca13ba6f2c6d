package repository

import (
	"context"
	"errors"
	"fmt"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ShowtimeRepository interface {
	FindByID(ctx context.Context, id int64) (*entity.Showtime, error)
}

type showtimeRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewShowtimeRepository(db database.PgxIface, log *zap.Logger) ShowtimeRepository {
	return &showtimeRepository{
		db:  db,
		log: log.With(zap.String("repository", "showtime")),
	}
}

func (r *showtimeRepository) FindByID(ctx context.Context, id int64) (*entity.Showtime, error) {
	query := `
		SELECT s.id, s.hall_id, s.base_price, s.available_seats, h.total_seats, s.starts_at
		FROM showtimes s
		JOIN halls h ON h.id = s.hall_id
		WHERE s.id = $1
	`

	var showtime entity.Showtime
	err := r.db.QueryRow(ctx, query, id).Scan(
		&showtime.ID,
		&showtime.HallID,
		&showtime.BasePrice,
		&showtime.AvailableSeats,
		&showtime.TotalSeats,
		&showtime.StartsAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find showtime by ID",
			zap.Error(err),
			zap.Int64("showtime_id", id),
		)
		return nil, fmt.Errorf("find showtime by ID %d: %w", id, err)
	}

	return &showtime, nil
}
