package usecase

import (
	"context"
	"fmt"
	"slices"
	"time"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/internal/data/repository"
	"cinema-reservation/internal/dto/request"
	"cinema-reservation/pkg/clock"
	"cinema-reservation/pkg/utils"

	"go.uber.org/zap"
)

type SeatHoldService interface {
	// HoldSeats holds every free requested seat. When some seats belong to
	// another session, or were booked while the hold was taken, it returns
	// the partial HoldSet together with a *entity.SeatConflictError listing
	// those seats.
	HoldSeats(ctx context.Context, req *request.HoldSeatsRequest) (*entity.HoldSet, error)
	ReleaseSeats(ctx context.Context, req *request.ReleaseSeatsRequest) error
	ReleaseSessionHolds(ctx context.Context, req *request.ReleaseSessionHoldsRequest) error
	ExtendHold(ctx context.Context, req *request.ExtendHoldRequest) error
	GetAvailability(ctx context.Context, showtimeID int64, sessionID string) (*entity.Availability, error)

	// Used by the booking flow
	AreHeldBySession(ctx context.Context, showtimeID int64, seatIDs []int64, sessionID string) (bool, error)
	NotHeldBy(ctx context.Context, showtimeID int64, seatIDs []int64, sessionID string) ([]int64, error)
	// ConfirmBooking clears the holds of booked seats and drops only those
	// seats from the session index; other seats the session holds stay held.
	ConfirmBooking(ctx context.Context, showtimeID int64, sessionID string, seatIDs []int64) error
}

type seatHoldService struct {
	repo  *repository.Repository
	clock clock.Clock
	cfg   utils.HoldConfig
	log   *zap.Logger
}

func NewSeatHoldService(repo *repository.Repository, clk clock.Clock, cfg utils.HoldConfig, log *zap.Logger) SeatHoldService {
	return &seatHoldService{
		repo:  repo,
		clock: clk,
		cfg:   cfg,
		log:   log.With(zap.String("service", "seat_hold")),
	}
}

func (s *seatHoldService) HoldSeats(ctx context.Context, req *request.HoldSeatsRequest) (*entity.HoldSet, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Hold seats validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", entity.ErrValidation, utils.FormatValidationErrors(errs))
	}

	showtime, err := s.findShowtime(ctx, req.ShowtimeID)
	if err != nil {
		return nil, err
	}

	// Durable checks first: the seats must exist in the hall and must not
	// be sold already.
	if err := s.checkSeatsExist(ctx, showtime, req.SeatIDs); err != nil {
		return nil, err
	}

	occupied, err := s.repo.Ticket.FindOccupiedSeatIDs(ctx, showtime.ID, req.SeatIDs)
	if err != nil {
		return nil, fmt.Errorf("check booked seats of showtime %d: %w", showtime.ID, err)
	}
	if len(occupied) > 0 {
		return nil, entity.NewSeatConflict(entity.ErrSeatAlreadyBooked, occupied)
	}

	// One seat-set per session and showtime: drop what the session held
	// before and did not ask for again.
	previous, err := s.repo.SessionHolds.Get(ctx, req.SessionID, showtime.ID)
	if err != nil {
		s.log.Warn("Session index unavailable, previous holds kept until TTL",
			zap.Error(err),
			zap.String("session_id", req.SessionID),
		)
	}
	if stale := difference(previous, req.SeatIDs); len(stale) > 0 {
		if _, err := s.repo.Holds.Release(ctx, showtime.ID, stale, req.SessionID); err != nil {
			return nil, fmt.Errorf("release previous holds of session %s: %w", req.SessionID, err)
		}
	}

	now := s.clock.Now()
	conflicts, err := s.repo.Holds.Acquire(ctx, showtime.ID, req.SeatIDs, req.SessionID, req.CustomerEmail, now, s.cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("hold seats for showtime %d: %w", showtime.ID, err)
	}

	held := difference(req.SeatIDs, conflicts)

	// A booking may have committed between the durable check and Acquire.
	// Holds never sit on a ticketed seat, so give those back.
	raced, err := s.releaseBooked(ctx, showtime.ID, held, req.SessionID)
	if err != nil {
		return nil, err
	}
	held = difference(held, raced)

	if err := s.repo.SessionHolds.Put(ctx, req.SessionID, showtime.ID, held, s.cfg.TTL); err != nil {
		s.log.Warn("Failed to index session holds", zap.Error(err), zap.String("session_id", req.SessionID))
	}

	set := &entity.HoldSet{
		ShowtimeID: showtime.ID,
		SessionID:  req.SessionID,
		SeatIDs:    held,
		Conflicts:  union(conflicts, raced),
		ExpiresAt:  now.Add(s.cfg.TTL),
	}

	if len(raced) > 0 {
		s.log.Info("Seats booked while being held",
			zap.Int64("showtime_id", showtime.ID),
			zap.String("session_id", req.SessionID),
			zap.Int64s("seat_ids", raced),
		)
		return set, entity.NewSeatConflict(entity.ErrSeatAlreadyBooked, raced)
	}

	if len(conflicts) > 0 {
		s.log.Info("Seats held with conflicts",
			zap.Int64("showtime_id", showtime.ID),
			zap.String("session_id", req.SessionID),
			zap.Int64s("held", held),
			zap.Int64s("conflicts", conflicts),
		)
		return set, entity.NewSeatConflict(entity.ErrSeatHeldByOther, conflicts)
	}

	s.log.Info("Seats held",
		zap.Int64("showtime_id", showtime.ID),
		zap.String("session_id", req.SessionID),
		zap.Int64s("seat_ids", held),
		zap.Time("expires_at", set.ExpiresAt),
	)
	return set, nil
}

func (s *seatHoldService) ReleaseSeats(ctx context.Context, req *request.ReleaseSeatsRequest) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return fmt.Errorf("%w: %s", entity.ErrValidation, utils.FormatValidationErrors(errs))
	}

	released, err := s.repo.Holds.Release(ctx, req.ShowtimeID, req.SeatIDs, req.SessionID)
	if err != nil {
		return fmt.Errorf("release seats of showtime %d: %w", req.ShowtimeID, err)
	}
	s.forgetSeats(ctx, req.SessionID, req.ShowtimeID, req.SeatIDs)

	s.log.Debug("Seats released",
		zap.Int64("showtime_id", req.ShowtimeID),
		zap.String("session_id", req.SessionID),
		zap.Int("released", released),
	)
	return nil
}

func (s *seatHoldService) ReleaseSessionHolds(ctx context.Context, req *request.ReleaseSessionHoldsRequest) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return fmt.Errorf("%w: %s", entity.ErrValidation, utils.FormatValidationErrors(errs))
	}

	seatIDs, err := s.repo.SessionHolds.Get(ctx, req.SessionID, req.ShowtimeID)
	if err != nil {
		return fmt.Errorf("read holds of session %s: %w", req.SessionID, err)
	}
	if len(seatIDs) == 0 {
		return nil
	}

	released, err := s.repo.Holds.Release(ctx, req.ShowtimeID, seatIDs, req.SessionID)
	if err != nil {
		return fmt.Errorf("release holds of session %s: %w", req.SessionID, err)
	}
	if err := s.repo.SessionHolds.Remove(ctx, req.SessionID, req.ShowtimeID); err != nil {
		s.log.Warn("Failed to clear session index", zap.Error(err), zap.String("session_id", req.SessionID))
	}

	s.log.Info("Session holds released",
		zap.Int64("showtime_id", req.ShowtimeID),
		zap.String("session_id", req.SessionID),
		zap.Int("released", released),
	)
	return nil
}

func (s *seatHoldService) ExtendHold(ctx context.Context, req *request.ExtendHoldRequest) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return fmt.Errorf("%w: %s", entity.ErrValidation, utils.FormatValidationErrors(errs))
	}

	extra := time.Duration(req.AdditionalSeconds) * time.Second
	extended, err := s.repo.Holds.Extend(ctx, req.ShowtimeID, req.SeatIDs, req.SessionID, extra, s.clock.Now())
	if err != nil {
		return fmt.Errorf("extend holds of showtime %d: %w", req.ShowtimeID, err)
	}
	if extended == 0 {
		return nil
	}

	if err := s.repo.SessionHolds.Extend(ctx, req.SessionID, extra); err != nil {
		s.log.Warn("Failed to extend session index", zap.Error(err), zap.String("session_id", req.SessionID))
	}
	return nil
}

func (s *seatHoldService) GetAvailability(ctx context.Context, showtimeID int64, sessionID string) (*entity.Availability, error) {
	showtime, err := s.findShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	seats, err := s.repo.Seat.FindByHallID(ctx, showtime.HallID)
	if err != nil {
		return nil, fmt.Errorf("list seats of hall %d: %w", showtime.HallID, err)
	}

	seatIDs := make([]int64, len(seats))
	for i, seat := range seats {
		seatIDs[i] = seat.ID
	}

	occupied, err := s.repo.Ticket.FindOccupiedSeatIDs(ctx, showtime.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("list booked seats of showtime %d: %w", showtime.ID, err)
	}
	booked := make(map[int64]struct{}, len(occupied))
	for _, id := range occupied {
		booked[id] = struct{}{}
	}

	holds, err := s.repo.Holds.Get(ctx, showtime.ID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("list holds of showtime %d: %w", showtime.ID, err)
	}

	now := s.clock.Now()
	availability := &entity.Availability{ShowtimeID: showtime.ID, HallID: showtime.HallID}
	for _, id := range seatIDs {
		if _, ok := booked[id]; ok {
			availability.Booked = append(availability.Booked, id)
			continue
		}

		hold := holds[id]
		switch {
		case !hold.ActiveAt(now):
			availability.Free = append(availability.Free, id)
		case hold.OwnedBy(sessionID):
			availability.HeldBySelf = append(availability.HeldBySelf, id)
		default:
			availability.HeldByOther = append(availability.HeldByOther, id)
		}
	}

	return availability, nil
}

func (s *seatHoldService) AreHeldBySession(ctx context.Context, showtimeID int64, seatIDs []int64, sessionID string) (bool, error) {
	missing, err := s.NotHeldBy(ctx, showtimeID, seatIDs, sessionID)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// NotHeldBy lists the seats without a live hold owned by sessionID.
func (s *seatHoldService) NotHeldBy(ctx context.Context, showtimeID int64, seatIDs []int64, sessionID string) ([]int64, error) {
	holds, err := s.repo.Holds.Get(ctx, showtimeID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("check holds of showtime %d: %w", showtimeID, err)
	}

	now := s.clock.Now()
	var missing []int64
	for _, id := range seatIDs {
		hold := holds[id]
		if !hold.OwnedBy(sessionID) || !hold.ActiveAt(now) {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *seatHoldService) ConfirmBooking(ctx context.Context, showtimeID int64, sessionID string, seatIDs []int64) error {
	if err := s.repo.Holds.Delete(ctx, showtimeID, seatIDs); err != nil {
		return fmt.Errorf("clear holds of showtime %d: %w", showtimeID, err)
	}
	s.forgetSeats(ctx, sessionID, showtimeID, seatIDs)
	return nil
}

// releaseBooked releases the session's fresh holds on seats that have an
// occupying ticket and returns those seats.
func (s *seatHoldService) releaseBooked(ctx context.Context, showtimeID int64, held []int64, sessionID string) ([]int64, error) {
	if len(held) == 0 {
		return nil, nil
	}

	occupied, err := s.repo.Ticket.FindOccupiedSeatIDs(ctx, showtimeID, held)
	if err != nil {
		if _, relErr := s.repo.Holds.Release(ctx, showtimeID, held, sessionID); relErr != nil {
			s.log.Warn("Failed to release holds after occupancy check failed", zap.Error(relErr))
		}
		return nil, fmt.Errorf("recheck booked seats of showtime %d: %w", showtimeID, err)
	}
	if len(occupied) == 0 {
		return nil, nil
	}

	if _, err := s.repo.Holds.Release(ctx, showtimeID, occupied, sessionID); err != nil {
		return nil, fmt.Errorf("release holds on booked seats of showtime %d: %w", showtimeID, err)
	}
	return occupied, nil
}

// forgetSeats drops seatIDs from the session index. Errors are logged only.
func (s *seatHoldService) forgetSeats(ctx context.Context, sessionID string, showtimeID int64, seatIDs []int64) {
	previous, err := s.repo.SessionHolds.Get(ctx, sessionID, showtimeID)
	if err == nil && len(previous) > 0 {
		err = s.repo.SessionHolds.Put(ctx, sessionID, showtimeID, difference(previous, seatIDs), s.cfg.TTL)
	}
	if err != nil {
		s.log.Warn("Failed to update session index", zap.Error(err), zap.String("session_id", sessionID))
	}
}

func (s *seatHoldService) findShowtime(ctx context.Context, showtimeID int64) (*entity.Showtime, error) {
	showtime, err := s.repo.Showtime.FindByID(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("find showtime %d: %w", showtimeID, err)
	}
	if showtime == nil {
		return nil, fmt.Errorf("showtime %d: %w", showtimeID, entity.ErrShowtimeNotFound)
	}
	return showtime, nil
}

func (s *seatHoldService) checkSeatsExist(ctx context.Context, showtime *entity.Showtime, seatIDs []int64) error {
	seats, err := s.repo.Seat.FindByIDs(ctx, showtime.HallID, seatIDs)
	if err != nil {
		return fmt.Errorf("find seats of hall %d: %w", showtime.HallID, err)
	}

	found := make([]int64, len(seats))
	for i, seat := range seats {
		found[i] = seat.ID
	}
	if missing := difference(seatIDs, found); len(missing) > 0 {
		return entity.NewSeatConflict(entity.ErrSeatNotFound, missing)
	}
	return nil
}

// difference returns the IDs of a that are not in b, keeping a's order.
func difference(a, b []int64) []int64 {
	var out []int64
	for _, id := range a {
		if !slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	return out
}

// union returns the sorted seats of a and b.
func union(a, b []int64) []int64 {
	if len(b) == 0 {
		return a
	}
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}
