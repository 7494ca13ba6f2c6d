package wire

import (
	"cinema-reservation/internal/adaptor"
	"cinema-reservation/pkg/middleware"
	"cinema-reservation/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireSeatHold(r chi.Router, h *adaptor.SeatHoldHandler) {
	r.Route("/api/seat-holds", func(r chi.Router) {
		r.Post("/", h.HoldSeats)
		r.Post("/release", h.ReleaseSeats)
		r.Post("/release-all", h.ReleaseSessionHolds)
		r.Post("/extend", h.ExtendHold)
	})

	r.Get("/api/showtimes/{id}/availability", h.GetAvailability)
}

func wireBooking(r chi.Router, h *adaptor.BookingHandler) {
	r.Route("/api/bookings", func(r chi.Router) {
		r.Post("/", h.CreateBooking)
		r.Get("/code/{code}", h.GetBookingByCode)
		r.Get("/{id}", h.GetBooking)
		r.Post("/{id}/cancel", h.CancelBooking)
	})
}

func wireAdmin(r chi.Router, h *adaptor.AdminHandler, config *utils.Config, log *zap.Logger) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.AdminToken(config.Admin.Token, log))

		r.Get("/showtimes/{id}/bookings", h.ListShowtimeBookings)
		r.Patch("/bookings/{id}", h.UpdateBooking)
		r.Delete("/bookings/{id}", h.DeleteBooking)

		r.Post("/sweeps/expired", h.SweepExpired)
		r.Post("/sweeps/purge", h.PurgeCancelled)
	})
}
