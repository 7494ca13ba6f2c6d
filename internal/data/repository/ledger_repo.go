package repository

import (
	"context"
	"errors"
	"fmt"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Ledger is the durable side of a reservation: bookings, their tickets and
// the showtime seat counter. Each method is one transaction, so
// available_seats + occupying tickets stays equal to the hall capacity.
type Ledger interface {
	Reserve(ctx context.Context, booking *entity.Booking, tickets []*entity.Ticket) error
	// Transition locks the booking, lets apply mutate it and then persists
	// the booking together with the mirrored ticket status and counter.
	Transition(ctx context.Context, bookingID uuid.UUID, apply func(*entity.Booking) error) (*entity.Booking, error)
	Delete(ctx context.Context, bookingID uuid.UUID) (int, error)
	PurgeCancelled(ctx context.Context, bookingID uuid.UUID) error
}

// ErrCodeCollision reports a generated booking or ticket code that is
// already stored. The caller can rebuild the booking and try again.
var ErrCodeCollision = errors.New("generated code already in use")

const uniqueViolation = "23505"

// Unique constraints named in migrations/001_init.sql
const (
	occupyingSeatIndex    = "uq_tickets_occupying"
	bookingCodeConstraint = "uq_bookings_code"
	ticketCodeConstraint  = "uq_tickets_code"
)

// uniqueConstraint returns the constraint behind a unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

type ledger struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewLedger(db database.PgxIface, log *zap.Logger) Ledger {
	return &ledger{
		db:  db,
		log: log.With(zap.String("repository", "ledger")),
	}
}

func (l *ledger) Reserve(ctx context.Context, booking *entity.Booking, tickets []*entity.Ticket) error {
	seatIDs := make([]int64, len(tickets))
	for i, t := range tickets {
		seatIDs[i] = t.SeatID
	}

	err := pgx.BeginFunc(ctx, l.db, func(tx pgx.Tx) error {
		var available int
		err := tx.QueryRow(ctx,
			`SELECT available_seats FROM showtimes WHERE id = $1 FOR UPDATE`,
			booking.ShowtimeID,
		).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.ErrShowtimeNotFound
		}
		if err != nil {
			return fmt.Errorf("lock showtime %d: %w", booking.ShowtimeID, err)
		}

		occupied, err := findOccupiedSeatIDs(ctx, tx, booking.ShowtimeID, seatIDs, l.log)
		if err != nil {
			return err
		}
		if len(occupied) > 0 {
			return entity.NewSeatConflict(entity.ErrSeatAlreadyBooked, occupied)
		}
		if available < len(tickets) {
			return entity.ErrInventoryExhausted
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO bookings (
				id, booking_code, showtime_id, session_id, user_id,
				customer_name, customer_email, customer_phone,
				payment_method, payment_reference, status,
				subtotal, service_fee, tax_amount, total_amount,
				hold_expires_at, paid_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`,
			booking.ID,
			booking.Code,
			booking.ShowtimeID,
			booking.SessionID,
			booking.UserID,
			booking.CustomerName,
			booking.CustomerEmail,
			booking.CustomerPhone,
			booking.PaymentMethod,
			booking.PaymentReference,
			booking.Status,
			booking.Subtotal,
			booking.ServiceFee,
			booking.TaxAmount,
			booking.TotalAmount,
			booking.HoldExpiresAt,
			booking.PaidAt,
			booking.CreatedAt,
			booking.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert booking %s: %w", booking.Code, err)
		}

		batch := &pgx.Batch{}
		for _, t := range tickets {
			batch.Queue(`
				INSERT INTO tickets (id, booking_id, showtime_id, seat_id, ticket_code, price, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, t.ID, t.BookingID, t.ShowtimeID, t.SeatID, t.Code, t.Price, t.Status, t.CreatedAt, t.UpdatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert tickets for booking %s: %w", booking.Code, err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE showtimes
			SET available_seats = available_seats - $1
			WHERE id = $2 AND available_seats >= $1
		`, len(tickets), booking.ShowtimeID)
		if err != nil {
			return fmt.Errorf("decrement seats of showtime %d: %w", booking.ShowtimeID, err)
		}
		if tag.RowsAffected() == 0 {
			return entity.ErrInventoryExhausted
		}
		return nil
	})

	if constraint, ok := uniqueConstraint(err); ok {
		err = l.mapUniqueViolation(ctx, err, constraint, booking.ShowtimeID, seatIDs)
	}
	if err != nil {
		l.log.Warn("Reserve rolled back",
			zap.Error(err),
			zap.String("booking_code", booking.Code),
			zap.Int64("showtime_id", booking.ShowtimeID),
			zap.Int64s("seat_ids", seatIDs),
		)
		return fmt.Errorf("reserve booking %s: %w", booking.Code, err)
	}

	return nil
}

// mapUniqueViolation turns a unique violation from Reserve into a domain
// error. Only the occupancy index means the seats are taken.
func (l *ledger) mapUniqueViolation(ctx context.Context, err error, constraint string, showtimeID int64, seatIDs []int64) error {
	switch constraint {
	case occupyingSeatIndex:
		taken, lookupErr := findOccupiedSeatIDs(ctx, l.db, showtimeID, seatIDs, l.log)
		if lookupErr != nil || len(taken) == 0 {
			// the winner may have been cancelled already; report the request
			taken = seatIDs
		}
		return entity.NewSeatConflict(entity.ErrSeatAlreadyBooked, taken)
	case bookingCodeConstraint, ticketCodeConstraint:
		return fmt.Errorf("%s: %w", constraint, errors.Join(ErrCodeCollision, err))
	default:
		return err
	}
}

func (l *ledger) Transition(ctx context.Context, bookingID uuid.UUID, apply func(*entity.Booking) error) (*entity.Booking, error) {
	var booking *entity.Booking

	err := pgx.BeginFunc(ctx, l.db, func(tx pgx.Tx) error {
		var err error
		booking, err = lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		prev := booking.Status
		if err := apply(booking); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET status = $1, customer_name = $2, customer_email = $3, customer_phone = $4,
			    payment_reference = $5, paid_at = $6, updated_at = $7
			WHERE id = $8
		`,
			booking.Status,
			booking.CustomerName,
			booking.CustomerEmail,
			booking.CustomerPhone,
			booking.PaymentReference,
			booking.PaidAt,
			booking.UpdatedAt,
			booking.ID,
		)
		if err != nil {
			return fmt.Errorf("update booking %s: %w", booking.Code, err)
		}

		if booking.Status == prev {
			return nil
		}

		ticketStatus := booking.Status.TicketStatus()
		current, err := activeTicketStatuses(ctx, tx, booking.ID)
		if err != nil {
			return err
		}
		if err := entity.CheckTicketMove(current, ticketStatus); err != nil {
			return fmt.Errorf("booking %s: %w", booking.Code, err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE tickets
			SET status = $1, updated_at = $2
			WHERE booking_id = $3 AND status = ANY($4) AND status <> $1
		`, ticketStatus, booking.UpdatedAt, booking.ID, activeStatuses())
		if err != nil {
			return fmt.Errorf("move tickets of booking %s to %s: %w", booking.Code, ticketStatus, err)
		}

		if ticketStatus.Occupies() || tag.RowsAffected() == 0 {
			return nil
		}
		return restoreSeats(ctx, tx, booking.ShowtimeID, int(tag.RowsAffected()))
	})
	if err != nil {
		return nil, fmt.Errorf("transition booking %s: %w", bookingID.String(), err)
	}

	return booking, nil
}

func (l *ledger) Delete(ctx context.Context, bookingID uuid.UUID) (int, error) {
	restored, err := l.remove(ctx, bookingID, nil)
	if err != nil {
		return 0, fmt.Errorf("delete booking %s: %w", bookingID.String(), err)
	}
	return restored, nil
}

func (l *ledger) PurgeCancelled(ctx context.Context, bookingID uuid.UUID) error {
	_, err := l.remove(ctx, bookingID, func(b *entity.Booking) error {
		if b.Status != entity.BookingStatusCancelled {
			return fmt.Errorf("booking %s is %s: %w", b.Code, b.Status, entity.ErrInvalidStateTransition)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("purge booking %s: %w", bookingID.String(), err)
	}
	return nil
}

// remove deletes a booking with its tickets and hands back the seats its
// occupying tickets held.
func (l *ledger) remove(ctx context.Context, bookingID uuid.UUID, guard func(*entity.Booking) error) (int, error) {
	var restored int

	err := pgx.BeginFunc(ctx, l.db, func(tx pgx.Tx) error {
		booking, err := lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(booking); err != nil {
				return err
			}
		}

		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM tickets WHERE booking_id = $1 AND status = ANY($2)`,
			bookingID, occupyingStatuses(),
		).Scan(&restored)
		if err != nil {
			return fmt.Errorf("count occupying tickets: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM tickets WHERE booking_id = $1`, bookingID); err != nil {
			return fmt.Errorf("delete tickets: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID); err != nil {
			return fmt.Errorf("delete booking row: %w", err)
		}

		if restored == 0 {
			return nil
		}
		return restoreSeats(ctx, tx, booking.ShowtimeID, restored)
	})
	if err != nil {
		l.log.Error("Failed to remove booking",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return 0, err
	}

	return restored, nil
}

func lockBooking(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1 FOR UPDATE OF b`

	booking, err := scanBooking(tx.QueryRow(ctx, query, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	return booking, nil
}

func activeStatuses() []string {
	return []string{string(entity.TicketStatusBooked), string(entity.TicketStatusPaid)}
}

// activeTicketStatuses lists the distinct statuses of a booking's tickets
// that can still move.
func activeTicketStatuses(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) ([]entity.TicketStatus, error) {
	rows, err := tx.Query(ctx,
		`SELECT DISTINCT status FROM tickets WHERE booking_id = $1 AND status = ANY($2)`,
		bookingID, activeStatuses(),
	)
	if err != nil {
		return nil, fmt.Errorf("read ticket statuses: %w", err)
	}
	statuses, err := pgx.CollectRows(rows, pgx.RowTo[entity.TicketStatus])
	if err != nil {
		return nil, fmt.Errorf("scan ticket statuses: %w", err)
	}
	return statuses, nil
}

func restoreSeats(ctx context.Context, tx pgx.Tx, showtimeID int64, n int) error {
	_, err := tx.Exec(ctx,
		`UPDATE showtimes SET available_seats = available_seats + $1 WHERE id = $2`,
		n, showtimeID,
	)
	if err != nil {
		return fmt.Errorf("restore %d seats of showtime %d: %w", n, showtimeID, err)
	}
	return nil
}
