package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// BookingRepository covers reads and plain field updates. Anything that
// touches tickets or the seat counter goes through Ledger.
type BookingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByCode(ctx context.Context, code string) (*entity.Booking, error)
	FindByShowtimeID(ctx context.Context, showtimeID int64, limit, offset int) ([]*entity.Booking, error)
	CountByShowtimeID(ctx context.Context, showtimeID int64) (int64, error)
	Update(ctx context.Context, booking *entity.Booking) error

	// Sweeper queries page by keyset: rows strictly after the cursor,
	// ordered by (time, id).
	FindExpiredPending(ctx context.Context, now time.Time, after ScanCursor, limit int) ([]*entity.Booking, error)
	FindCancelledBefore(ctx context.Context, cutoff time.Time, after ScanCursor, limit int) ([]*entity.Booking, error)
}

// ScanCursor is the (time, id) key of the last row of a sweeper page.
// The zero value starts before every row.
type ScanCursor struct {
	At time.Time
	ID uuid.UUID
}

// Compare orders cursors the way Postgres orders (timestamptz, uuid) rows.
func (c ScanCursor) Compare(o ScanCursor) int {
	if n := c.At.Compare(o.At); n != 0 {
		return n
	}
	return bytes.Compare(c.ID[:], o.ID[:])
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `
	b.id, b.booking_code, b.showtime_id, b.session_id, b.user_id,
	b.customer_name, b.customer_email, b.customer_phone,
	b.payment_method, b.payment_reference, b.status,
	b.subtotal, b.service_fee, b.tax_amount, b.total_amount,
	b.hold_expires_at, b.paid_at, b.created_at, b.updated_at,
	ARRAY(SELECT t.seat_id FROM tickets t WHERE t.booking_id = b.id ORDER BY t.seat_id) AS seat_ids
`

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var booking entity.Booking
	err := row.Scan(
		&booking.ID,
		&booking.Code,
		&booking.ShowtimeID,
		&booking.SessionID,
		&booking.UserID,
		&booking.CustomerName,
		&booking.CustomerEmail,
		&booking.CustomerPhone,
		&booking.PaymentMethod,
		&booking.PaymentReference,
		&booking.Status,
		&booking.Subtotal,
		&booking.ServiceFee,
		&booking.TaxAmount,
		&booking.TotalAmount,
		&booking.HoldExpiresAt,
		&booking.PaidAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&booking.SeatIDs,
	)
	return &booking, err
}

func collectBooking(row pgx.CollectableRow) (*entity.Booking, error) {
	return scanBooking(row)
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByCode(ctx context.Context, code string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.booking_code = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by code",
			zap.Error(err),
			zap.String("booking_code", code),
		)
		return nil, fmt.Errorf("find booking by code %s: %w", code, err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByShowtimeID(ctx context.Context, showtimeID int64, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.showtime_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, showtimeID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by showtime ID",
			zap.Error(err),
			zap.Int64("showtime_id", showtimeID),
		)
		return nil, fmt.Errorf("find bookings of showtime %d: %w", showtimeID, err)
	}

	bookings, err := pgx.CollectRows(rows, collectBooking)
	if err != nil {
		r.log.Error("Failed to scan booking row", zap.Error(err))
		return nil, fmt.Errorf("scan bookings of showtime %d: %w", showtimeID, err)
	}
	return bookings, nil
}

func (r *bookingRepository) CountByShowtimeID(ctx context.Context, showtimeID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE showtime_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, showtimeID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by showtime ID",
			zap.Error(err),
			zap.Int64("showtime_id", showtimeID),
		)
		return 0, fmt.Errorf("count bookings of showtime %d: %w", showtimeID, err)
	}

	return count, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	query := `
		UPDATE bookings
		SET customer_name = $1, customer_email = $2, customer_phone = $3,
		    payment_reference = $4, updated_at = $5
		WHERE id = $6
	`

	tag, err := r.db.Exec(ctx, query,
		booking.CustomerName,
		booking.CustomerEmail,
		booking.CustomerPhone,
		booking.PaymentReference,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		r.log.Error("Failed to update booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), entity.ErrBookingNotFound)
	}

	return nil
}

func (r *bookingRepository) FindExpiredPending(ctx context.Context, now time.Time, after ScanCursor, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.status = $1 AND b.hold_expires_at < $2
		  AND (b.hold_expires_at, b.id) > ($3, $4)
		ORDER BY b.hold_expires_at, b.id
		LIMIT $5
	`

	rows, err := r.db.Query(ctx, query, entity.BookingStatusPending, now, after.At, after.ID, limit)
	if err != nil {
		r.log.Error("Failed to find expired pending bookings", zap.Error(err))
		return nil, fmt.Errorf("find expired pending bookings: %w", err)
	}

	bookings, err := pgx.CollectRows(rows, collectBooking)
	if err != nil {
		return nil, fmt.Errorf("scan expired pending bookings: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepository) FindCancelledBefore(ctx context.Context, cutoff time.Time, after ScanCursor, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.status = $1 AND b.updated_at < $2
		  AND (b.updated_at, b.id) > ($3, $4)
		ORDER BY b.updated_at, b.id
		LIMIT $5
	`

	rows, err := r.db.Query(ctx, query, entity.BookingStatusCancelled, cutoff, after.At, after.ID, limit)
	if err != nil {
		r.log.Error("Failed to find cancelled bookings", zap.Error(err))
		return nil, fmt.Errorf("find cancelled bookings before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	bookings, err := pgx.CollectRows(rows, collectBooking)
	if err != nil {
		return nil, fmt.Errorf("scan cancelled bookings: %w", err)
	}
	return bookings, nil
}
