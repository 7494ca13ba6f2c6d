package usecase

import (
	"context"
	"errors"
	"fmt"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/internal/data/repository"
	"cinema-reservation/internal/dto/request"
	"cinema-reservation/internal/dto/response"
	"cinema-reservation/internal/event"
	"cinema-reservation/pkg/clock"
	"cinema-reservation/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	// Public endpoints
	CreateBooking(ctx context.Context, req *request.CreateBookingRequest) (*entity.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*entity.Booking, error)
	GetBookingByCode(ctx context.Context, code string) (*entity.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) (*entity.Booking, error)

	// Admin endpoints
	ListShowtimeBookings(ctx context.Context, showtimeID int64, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	UpdateBooking(ctx context.Context, bookingID string, req *request.UpdateBookingRequest) (*entity.Booking, error)
	DeleteBooking(ctx context.Context, bookingID string) error
}

type bookingService struct {
	repo      *repository.Repository
	holds     SeatHoldService
	publisher event.Publisher
	clock     clock.Clock
	holdCfg   utils.HoldConfig
	cfg       utils.BookingConfig
	log       *zap.Logger
}

func NewBookingService(repo *repository.Repository, holds SeatHoldService, publisher event.Publisher, clk clock.Clock, config *utils.Config, log *zap.Logger) BookingService {
	return &bookingService{
		repo:      repo,
		holds:     holds,
		publisher: publisher,
		clock:     clk,
		holdCfg:   config.Hold,
		cfg:       config.Booking,
		log:       log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, req *request.CreateBookingRequest) (*entity.Booking, error) {
	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", entity.ErrValidation, utils.FormatValidationErrors(errs))
	}

	// Guests must leave full contact details
	if req.UserID == nil && (req.CustomerName == "" || req.CustomerEmail == "" || req.CustomerPhone == "") {
		return nil, fmt.Errorf("guest booking needs name, email and phone: %w", entity.ErrInsufficientCustomerInfo)
	}

	showtime, err := s.repo.Showtime.FindByID(ctx, req.ShowtimeID)
	if err != nil {
		return nil, fmt.Errorf("find showtime %d: %w", req.ShowtimeID, err)
	}
	if showtime == nil {
		return nil, fmt.Errorf("showtime %d: %w", req.ShowtimeID, entity.ErrShowtimeNotFound)
	}

	// Only seats this session still holds can be promoted to a booking
	notHeld, err := s.holds.NotHeldBy(ctx, showtime.ID, req.SeatIDs, req.SessionID)
	if err != nil {
		return nil, err
	}
	if len(notHeld) > 0 {
		s.log.Info("Booking rejected, seats not held by session",
			zap.Int64("showtime_id", showtime.ID),
			zap.String("session_id", req.SessionID),
			zap.Int64s("seat_ids", notHeld),
		)
		return nil, entity.NewSeatConflict(entity.ErrHoldNotOwnedBySession, notHeld)
	}

	// Keep the holds alive while the booking is written. The durable hold
	// window takes over once Reserve commits, so a failure here is logged only.
	if err := s.holds.ExtendHold(ctx, &request.ExtendHoldRequest{
		ShowtimeID:        showtime.ID,
		SeatIDs:           req.SeatIDs,
		SessionID:         req.SessionID,
		AdditionalSeconds: int(s.holdCfg.BookingExtension.Seconds()),
	}); err != nil {
		s.log.Warn("Failed to extend holds before booking",
			zap.Error(err),
			zap.Int64("showtime_id", showtime.ID),
			zap.String("session_id", req.SessionID),
		)
	}

	occupied, err := s.repo.Ticket.FindOccupiedSeatIDs(ctx, showtime.ID, req.SeatIDs)
	if err != nil {
		return nil, fmt.Errorf("check booked seats of showtime %d: %w", showtime.ID, err)
	}
	if len(occupied) > 0 {
		s.log.Warn("Hold store and ledger disagree, seats already booked",
			zap.Int64("showtime_id", showtime.ID),
			zap.Int64s("seat_ids", occupied),
		)
		return nil, entity.NewSeatConflict(entity.ErrSeatAlreadyBooked, occupied)
	}

	booking, err := s.reserve(ctx, showtime, req)
	if err != nil {
		return nil, err
	}

	// The tickets are the authority now; stale holds would only expire anyway
	if err := s.holds.ConfirmBooking(ctx, showtime.ID, req.SessionID, req.SeatIDs); err != nil {
		s.log.Warn("Failed to clear holds after booking", zap.Error(err), zap.String("booking_code", booking.Code))
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("booking_code", booking.Code),
		zap.Int64("showtime_id", showtime.ID),
		zap.String("session_id", req.SessionID),
		zap.Int("seat_count", len(booking.SeatIDs)),
		zap.Float64("total_amount", booking.TotalAmount),
	)

	s.publish(ctx, event.BookingCreated, booking)
	return booking, nil
}

// maxReserveAttempts bounds how often a booking is rebuilt with fresh
// codes after a booking or ticket code collision.
const maxReserveAttempts = 3

func (s *bookingService) reserve(ctx context.Context, showtime *entity.Showtime, req *request.CreateBookingRequest) (*entity.Booking, error) {
	for attempt := 1; ; attempt++ {
		booking, tickets := s.newBooking(showtime, req)
		err := s.repo.Ledger.Reserve(ctx, booking, tickets)
		if err == nil {
			return booking, nil
		}
		if errors.Is(err, repository.ErrCodeCollision) && attempt < maxReserveAttempts {
			s.log.Warn("Generated code already taken, retrying",
				zap.Error(err),
				zap.String("booking_code", booking.Code),
				zap.Int("attempt", attempt),
			)
			continue
		}
		s.log.Error("Failed to reserve booking",
			zap.Error(err),
			zap.String("booking_code", booking.Code),
			zap.Int64("showtime_id", showtime.ID),
			zap.Int("attempt", attempt),
		)
		return nil, err
	}
}

// newBooking prices the request and builds the PENDING booking with one
// BOOKED ticket per seat.
func (s *bookingService) newBooking(showtime *entity.Showtime, req *request.CreateBookingRequest) (*entity.Booking, []*entity.Ticket) {
	now := s.clock.Now()
	n := float64(len(req.SeatIDs))

	subtotal := showtime.BasePrice * n
	serviceFee := s.cfg.ServiceFee * n
	tax := subtotal * s.cfg.TaxRate

	booking := &entity.Booking{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Code:          utils.GenerateBookingCode(now),
		ShowtimeID:    showtime.ID,
		SessionID:     req.SessionID,
		UserID:        req.UserID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		PaymentMethod: entity.PaymentMethod(req.PaymentMethod),
		Status:        entity.BookingStatusPending,
		Subtotal:      subtotal,
		ServiceFee:    serviceFee,
		TaxAmount:     tax,
		TotalAmount:   subtotal + serviceFee + tax,
		HoldExpiresAt: now.Add(s.cfg.HoldWindow),
		SeatIDs:       req.SeatIDs,
	}

	ticketPrice := showtime.BasePrice + s.cfg.ServiceFee + showtime.BasePrice*s.cfg.TaxRate
	tickets := make([]*entity.Ticket, len(req.SeatIDs))
	for i, seatID := range req.SeatIDs {
		tickets[i] = &entity.Ticket{
			Base: entity.Base{
				ID:        uuid.New(),
				CreatedAt: now,
				UpdatedAt: now,
			},
			BookingID:  booking.ID,
			ShowtimeID: showtime.ID,
			SeatID:     seatID,
			Code:       utils.GenerateTicketCode(),
			Price:      ticketPrice,
			Status:     entity.TicketStatusBooked,
		}
	}

	return booking, tickets
}

func (s *bookingService) GetBooking(ctx context.Context, bookingID string) (*entity.Booking, error) {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, entity.ErrBookingNotFound)
	}
	return s.withTickets(ctx, booking)
}

func (s *bookingService) GetBookingByCode(ctx context.Context, code string) (*entity.Booking, error) {
	booking, err := s.repo.Booking.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", code, err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", code, entity.ErrBookingNotFound)
	}
	return s.withTickets(ctx, booking)
}

func (s *bookingService) withTickets(ctx context.Context, booking *entity.Booking) (*entity.Booking, error) {
	tickets, err := s.repo.Ticket.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("load tickets of booking %s: %w", booking.Code, err)
	}
	booking.Tickets = tickets
	return booking, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, bookingID string) (*entity.Booking, error) {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	booking, err := s.repo.Ledger.Transition(ctx, id, func(b *entity.Booking) error {
		if b.Status == entity.BookingStatusPaid {
			return fmt.Errorf("paid booking %s needs a refund: %w", b.Code, entity.ErrInvalidStateTransition)
		}
		return b.TransitionTo(entity.BookingStatusCancelled, now)
	})
	if err != nil {
		s.log.Warn("Failed to cancel booking", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, err
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", bookingID),
		zap.String("booking_code", booking.Code),
		zap.Int("seats_released", len(booking.SeatIDs)),
	)

	s.publish(ctx, event.BookingCancelled, booking)
	return booking, nil
}

func (s *bookingService) ListShowtimeBookings(ctx context.Context, showtimeID int64, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	limit := req.Limit()
	offset := req.Offset()

	bookings, err := s.repo.Booking.FindByShowtimeID(ctx, showtimeID, limit, offset)
	if err != nil {
		s.log.Error("Failed to list showtime bookings", zap.Error(err), zap.Int64("showtime_id", showtimeID))
		return nil, fmt.Errorf("list bookings of showtime %d: %w", showtimeID, err)
	}

	total, err := s.repo.Booking.CountByShowtimeID(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("count bookings of showtime %d: %w", showtimeID, err)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	return response.NewPaginatedResponse(response.BookingsToResponse(bookings), page, limit, total), nil
}

func (s *bookingService) UpdateBooking(ctx context.Context, bookingID string, req *request.UpdateBookingRequest) (*entity.Booking, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", entity.ErrValidation, utils.FormatValidationErrors(errs))
	}

	id, err := parseBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	// Plain field edits do not need the ledger
	if req.Status == nil {
		booking, err := s.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		applyBookingFields(booking, req)
		booking.UpdatedAt = now
		if err := s.repo.Booking.Update(ctx, booking); err != nil {
			return nil, err
		}
		s.publish(ctx, event.BookingUpdated, booking)
		return booking, nil
	}

	next, err := entity.ParseBookingStatus(*req.Status)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.Ledger.Transition(ctx, id, func(b *entity.Booking) error {
		if b.Status != next {
			if err := b.TransitionTo(next, now); err != nil {
				return err
			}
		}
		applyBookingFields(b, req)
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.log.Warn("Failed to update booking", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, err
	}

	s.log.Info("Booking updated",
		zap.String("booking_id", bookingID),
		zap.String("status", string(booking.Status)),
	)

	routingKey := event.BookingUpdated
	if booking.Status == entity.BookingStatusCancelled {
		routingKey = event.BookingCancelled
	}
	s.publish(ctx, routingKey, booking)
	return booking, nil
}

func (s *bookingService) DeleteBooking(ctx context.Context, bookingID string) error {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return err
	}

	restored, err := s.repo.Ledger.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.log.Info("Booking deleted",
		zap.String("booking_id", bookingID),
		zap.Int("seats_restored", restored),
	)
	return nil
}

// publish never fails the caller; the booking is already committed.
func (s *bookingService) publish(ctx context.Context, routingKey string, booking *entity.Booking) {
	if err := s.publisher.Publish(ctx, routingKey, event.NewBookingEvent(booking, s.clock.Now())); err != nil {
		s.log.Warn("Failed to publish booking event",
			zap.Error(err),
			zap.String("routing_key", routingKey),
			zap.String("booking_code", booking.Code),
		)
	}
}

func applyBookingFields(b *entity.Booking, req *request.UpdateBookingRequest) {
	if req.PaymentReference != nil {
		b.PaymentReference = req.PaymentReference
	}
	if req.CustomerName != nil {
		b.CustomerName = *req.CustomerName
	}
	if req.CustomerEmail != nil {
		b.CustomerEmail = *req.CustomerEmail
	}
	if req.CustomerPhone != nil {
		b.CustomerPhone = *req.CustomerPhone
	}
}

func parseBookingID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid booking ID %q: %w", raw, errors.Join(entity.ErrValidation, err))
	}
	return id, nil
}
