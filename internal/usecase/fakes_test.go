package usecase

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/internal/data/repository"
	"cinema-reservation/internal/event"
	"cinema-reservation/pkg/clock"
	"cinema-reservation/pkg/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memDB is an in-memory stand-in for the Postgres side. Every ledger
// method runs under one mutex, which gives the same all-or-nothing
// behaviour as a transaction.
type memDB struct {
	mu        sync.Mutex
	showtimes map[int64]*entity.Showtime
	seats     map[int64]*entity.Seat
	bookings  map[uuid.UUID]*entity.Booking
	tickets   map[uuid.UUID]*entity.Ticket

	// failTransition makes Transition fail for the given booking
	failTransition map[uuid.UUID]error
	// failReserve is consumed one error per Reserve call
	failReserve []error
	// beforeOccupiedCheck runs ahead of every FindOccupiedSeatIDs call
	beforeOccupiedCheck func()
}

func newMemDB() *memDB {
	return &memDB{
		showtimes:      map[int64]*entity.Showtime{},
		seats:          map[int64]*entity.Seat{},
		bookings:       map[uuid.UUID]*entity.Booking{},
		tickets:        map[uuid.UUID]*entity.Ticket{},
		failTransition: map[uuid.UUID]error{},
	}
}

// addShowtime creates a hall with seats 1..capacity and a showtime on it.
func (db *memDB) addShowtime(id, hallID int64, capacity int, basePrice float64) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := 1; i <= capacity; i++ {
		seatID := hallID*1000 + int64(i)
		if hallID == 1 {
			seatID = int64(i)
		}
		db.seats[seatID] = &entity.Seat{ID: seatID, HallID: hallID, SeatRow: "A", SeatNumber: i, SeatType: "STANDARD"}
	}
	db.showtimes[id] = &entity.Showtime{
		ID:             id,
		HallID:         hallID,
		BasePrice:      basePrice,
		AvailableSeats: capacity,
		TotalSeats:     capacity,
	}
}

// addTicket plants an occupying ticket outside the booking flow, the way
// a diverged store would look.
func (db *memDB) addTicket(showtimeID, seatID int64, status entity.TicketStatus) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id := uuid.New()
	db.tickets[id] = &entity.Ticket{
		Base:       entity.Base{ID: id},
		BookingID:  uuid.New(),
		ShowtimeID: showtimeID,
		SeatID:     seatID,
		Status:     status,
	}
	if status.Occupies() {
		db.showtimes[showtimeID].AvailableSeats--
	}
}

// setTicketStatus rewrites every ticket of a booking without going
// through the ledger.
func (db *memDB) setTicketStatus(bookingID uuid.UUID, status entity.TicketStatus) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, t := range db.tickets {
		if t.BookingID == bookingID {
			t.Status = status
		}
	}
}

func (db *memDB) showtime(id int64) entity.Showtime {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.showtimes[id]
}

func (db *memDB) booking(id uuid.UUID) *entity.Booking {
	db.mu.Lock()
	defer db.mu.Unlock()
	b, ok := db.bookings[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (db *memDB) bookingIDs() []uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()
	var ids []uuid.UUID
	for id := range db.bookings {
		ids = append(ids, id)
	}
	return ids
}

func (db *memDB) ticketsOf(bookingID uuid.UUID) []entity.Ticket {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []entity.Ticket
	for _, t := range db.tickets {
		if t.BookingID == bookingID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })
	return out
}

// requireInventoryInvariant checks available + occupying == capacity and
// that no seat has two occupying tickets.
func (db *memDB) requireInventoryInvariant(t *testing.T, showtimeID int64) {
	t.Helper()
	db.mu.Lock()
	defer db.mu.Unlock()

	st := db.showtimes[showtimeID]
	occupying := 0
	seen := map[int64]bool{}
	for _, tk := range db.tickets {
		if tk.ShowtimeID != showtimeID || !tk.Status.Occupies() {
			continue
		}
		require.False(t, seen[tk.SeatID], "seat %d has two occupying tickets", tk.SeatID)
		seen[tk.SeatID] = true
		occupying++
	}
	require.Equal(t, st.TotalSeats, st.AvailableSeats+occupying)
}

func (db *memDB) seatIDsOf(bookingID uuid.UUID) []int64 {
	var ids []int64
	for _, t := range db.tickets {
		if t.BookingID == bookingID {
			ids = append(ids, t.SeatID)
		}
	}
	slices.Sort(ids)
	return ids
}

func (db *memDB) occupied(showtimeID int64, seatIDs []int64) []int64 {
	var out []int64
	for _, t := range db.tickets {
		if t.ShowtimeID != showtimeID || !t.Status.Occupies() {
			continue
		}
		if seatIDs == nil || slices.Contains(seatIDs, t.SeatID) {
			out = append(out, t.SeatID)
		}
	}
	slices.Sort(out)
	return out
}

type memShowtimes struct{ db *memDB }

func (r memShowtimes) FindByID(_ context.Context, id int64) (*entity.Showtime, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	st, ok := r.db.showtimes[id]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

type memSeats struct{ db *memDB }

func (r memSeats) FindByHallID(_ context.Context, hallID int64) ([]*entity.Seat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Seat
	for _, s := range r.db.seats {
		if s.HallID == hallID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memSeats) FindByIDs(_ context.Context, hallID int64, seatIDs []int64) ([]*entity.Seat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Seat
	for _, id := range seatIDs {
		if s, ok := r.db.seats[id]; ok && s.HallID == hallID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memTickets struct{ db *memDB }

func (r memTickets) FindOccupiedSeatIDs(_ context.Context, showtimeID int64, seatIDs []int64) ([]int64, error) {
	if hook := r.db.beforeOccupiedCheck; hook != nil {
		hook()
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.occupied(showtimeID, seatIDs), nil
}

func (r memTickets) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*entity.Ticket, error) {
	var out []*entity.Ticket
	for _, t := range r.db.ticketsOf(bookingID) {
		cp := t
		out = append(out, &cp)
	}
	return out, nil
}

type memBookings struct{ db *memDB }

func (r memBookings) copyOf(b *entity.Booking) *entity.Booking {
	cp := *b
	cp.SeatIDs = r.db.seatIDsOf(b.ID)
	return &cp
}

func (r memBookings) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.bookings[id]
	if !ok {
		return nil, nil
	}
	return r.copyOf(b), nil
}

func (r memBookings) FindByCode(_ context.Context, code string) (*entity.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, b := range r.db.bookings {
		if b.Code == code {
			return r.copyOf(b), nil
		}
	}
	return nil, nil
}

func (r memBookings) FindByShowtimeID(_ context.Context, showtimeID int64, limit, offset int) ([]*entity.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []*entity.Booking
	for _, b := range r.db.bookings {
		if b.ShowtimeID == showtimeID {
			all = append(all, r.copyOf(b))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (r memBookings) CountByShowtimeID(_ context.Context, showtimeID int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, b := range r.db.bookings {
		if b.ShowtimeID == showtimeID {
			n++
		}
	}
	return n, nil
}

func (r memBookings) Update(_ context.Context, booking *entity.Booking) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.bookings[booking.ID]
	if !ok {
		return entity.ErrBookingNotFound
	}
	b.CustomerName = booking.CustomerName
	b.CustomerEmail = booking.CustomerEmail
	b.CustomerPhone = booking.CustomerPhone
	b.PaymentReference = booking.PaymentReference
	b.UpdatedAt = booking.UpdatedAt
	return nil
}

func (r memBookings) FindExpiredPending(_ context.Context, now time.Time, after repository.ScanCursor, limit int) ([]*entity.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.db.bookings {
		if b.IsExpired(now) {
			out = append(out, r.copyOf(b))
		}
	}
	return pageAfter(out, func(b *entity.Booking) time.Time { return b.HoldExpiresAt }, after, limit), nil
}

func (r memBookings) FindCancelledBefore(_ context.Context, cutoff time.Time, after repository.ScanCursor, limit int) ([]*entity.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.db.bookings {
		if b.Status == entity.BookingStatusCancelled && b.UpdatedAt.Before(cutoff) {
			out = append(out, r.copyOf(b))
		}
	}
	return pageAfter(out, func(b *entity.Booking) time.Time { return b.UpdatedAt }, after, limit), nil
}

// pageAfter orders by (at, id) and returns up to limit rows past the
// cursor, the same keyset the SQL queries use.
func pageAfter(bookings []*entity.Booking, at func(*entity.Booking) time.Time, after repository.ScanCursor, limit int) []*entity.Booking {
	key := func(b *entity.Booking) repository.ScanCursor {
		return repository.ScanCursor{At: at(b), ID: b.ID}
	}
	slices.SortFunc(bookings, func(a, b *entity.Booking) int {
		return key(a).Compare(key(b))
	})
	var out []*entity.Booking
	for _, b := range bookings {
		if len(out) == limit {
			break
		}
		if key(b).Compare(after) > 0 {
			out = append(out, b)
		}
	}
	return out
}

type memLedger struct{ db *memDB }

func (l memLedger) Reserve(_ context.Context, booking *entity.Booking, tickets []*entity.Ticket) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()

	if len(l.db.failReserve) > 0 {
		err := l.db.failReserve[0]
		l.db.failReserve = l.db.failReserve[1:]
		return err
	}

	st, ok := l.db.showtimes[booking.ShowtimeID]
	if !ok {
		return entity.ErrShowtimeNotFound
	}
	seatIDs := make([]int64, len(tickets))
	for i, t := range tickets {
		seatIDs[i] = t.SeatID
	}
	if occupied := l.db.occupied(booking.ShowtimeID, seatIDs); len(occupied) > 0 {
		return entity.NewSeatConflict(entity.ErrSeatAlreadyBooked, occupied)
	}
	if st.AvailableSeats < len(tickets) {
		return entity.ErrInventoryExhausted
	}

	cp := *booking
	l.db.bookings[booking.ID] = &cp
	for _, t := range tickets {
		tc := *t
		l.db.tickets[t.ID] = &tc
	}
	st.AvailableSeats -= len(tickets)
	return nil
}

func (l memLedger) Transition(_ context.Context, bookingID uuid.UUID, apply func(*entity.Booking) error) (*entity.Booking, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()

	if err := l.db.failTransition[bookingID]; err != nil {
		return nil, err
	}
	stored, ok := l.db.bookings[bookingID]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}

	working := *stored
	working.SeatIDs = l.db.seatIDsOf(bookingID)
	prev := working.Status
	if err := apply(&working); err != nil {
		return nil, err
	}

	if working.Status != prev {
		var current []entity.TicketStatus
		for _, t := range l.db.tickets {
			if t.BookingID == bookingID && t.Status.IsActive() {
				current = append(current, t.Status)
			}
		}
		if err := entity.CheckTicketMove(current, working.Status.TicketStatus()); err != nil {
			return nil, err
		}
	}
	*stored = working

	if working.Status != prev {
		next := working.Status.TicketStatus()
		released := 0
		for _, t := range l.db.tickets {
			if t.BookingID != bookingID || !t.Status.IsActive() {
				continue
			}
			t.Status = next
			if !next.Occupies() {
				released++
			}
		}
		l.db.showtimes[working.ShowtimeID].AvailableSeats += released
	}

	out := working
	return &out, nil
}

func (l memLedger) Delete(_ context.Context, bookingID uuid.UUID) (int, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	return l.remove(bookingID)
}

func (l memLedger) PurgeCancelled(_ context.Context, bookingID uuid.UUID) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	b, ok := l.db.bookings[bookingID]
	if !ok {
		return entity.ErrBookingNotFound
	}
	if b.Status != entity.BookingStatusCancelled {
		return entity.ErrInvalidStateTransition
	}
	_, err := l.remove(bookingID)
	return err
}

func (l memLedger) remove(bookingID uuid.UUID) (int, error) {
	b, ok := l.db.bookings[bookingID]
	if !ok {
		return 0, entity.ErrBookingNotFound
	}
	restored := 0
	for id, t := range l.db.tickets {
		if t.BookingID != bookingID {
			continue
		}
		if t.Status.Occupies() {
			restored++
		}
		delete(l.db.tickets, id)
	}
	l.db.showtimes[b.ShowtimeID].AvailableSeats += restored
	delete(l.db.bookings, bookingID)
	return restored, nil
}

// recordingPublisher keeps every published event for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ event.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

var errBoom = errors.New("boom")

var testStart = time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC)

func testConfig() *utils.Config {
	return &utils.Config{
		Hold: utils.HoldConfig{
			TTL:              120 * time.Second,
			BookingExtension: 120 * time.Second,
		},
		Booking: utils.BookingConfig{
			HoldWindow: 15 * time.Minute,
			ServiceFee: 5000,
			TaxRate:    0.10,
		},
		Sweeper: utils.SweeperConfig{
			Interval:       time.Minute,
			BatchSize:      100,
			PurgeRetention: 720 * time.Hour,
		},
	}
}

type testEnv struct {
	db        *memDB
	mr        *miniredis.Miniredis
	clock     *clock.Fake
	repo      *repository.Repository
	publisher *recordingPublisher
	svc       *Service
}

// newTestEnv wires the real Redis-backed hold store (on miniredis) with
// the in-memory ledger. Showtime 10 sits in hall 1 with seats 1..10.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := newMemDB()
	db.addShowtime(10, 1, 10, 50000)

	log := zap.NewNop()
	repo := &repository.Repository{
		Showtime:     memShowtimes{db},
		Seat:         memSeats{db},
		Ticket:       memTickets{db},
		Booking:      memBookings{db},
		Ledger:       memLedger{db},
		Holds:        repository.NewHoldStore(rdb, log),
		SessionHolds: repository.NewSessionHoldIndex(rdb, log),
	}

	clk := clock.NewFake(testStart)
	pub := &recordingPublisher{}

	return &testEnv{
		db:        db,
		mr:        mr,
		clock:     clk,
		repo:      repo,
		publisher: pub,
		svc:       NewService(repo, pub, clk, testConfig(), log),
	}
}
