package adaptor

import (
	"encoding/json"
	"net/http"

	"cinema-reservation/internal/dto/request"
	"cinema-reservation/internal/dto/response"
	"cinema-reservation/internal/usecase"
	"cinema-reservation/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AdminHandler struct {
	bookings usecase.BookingService
	sweeper  usecase.ExpirySweeper
	log      *zap.Logger
}

func NewAdminHandler(bookings usecase.BookingService, sweeper usecase.ExpirySweeper, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		bookings: bookings,
		sweeper:  sweeper,
		log:      log.With(zap.String("handler", "admin")),
	}
}

// ListShowtimeBookings handles GET /api/admin/showtimes/{id}/bookings
func (h *AdminHandler) ListShowtimeBookings(w http.ResponseWriter, r *http.Request) {
	showtimeID, ok := utils.ParseID(chi.URLParam(r, "id"))
	if !ok {
		utils.ResponseBadRequest(w, "Invalid showtime ID", nil)
		return
	}

	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	bookings, err := h.bookings.ListShowtimeBookings(r.Context(), showtimeID, req)
	if err != nil {
		handleServiceError(w, h.log, err, "list showtime bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// UpdateBooking handles PATCH /api/admin/bookings/{id}
func (h *AdminHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")

	var req request.UpdateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	booking, err := h.bookings.UpdateBooking(r.Context(), bookingID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "update booking")
		return
	}

	utils.ResponseSuccess(w, "success", response.BookingToResponse(booking))
}

// DeleteBooking handles DELETE /api/admin/bookings/{id}
func (h *AdminHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.DeleteBooking(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.log, err, "delete booking")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// SweepExpired handles POST /api/admin/sweeps/expired
func (h *AdminHandler) SweepExpired(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.SweepExpired(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "sweep expired bookings")
		return
	}

	utils.ResponseSuccess(w, "success", sweepResponse(report))
}

// PurgeCancelled handles POST /api/admin/sweeps/purge
func (h *AdminHandler) PurgeCancelled(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.PurgeCancelled(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "purge cancelled bookings")
		return
	}

	utils.ResponseSuccess(w, "success", sweepResponse(report))
}

func sweepResponse(r usecase.SweepReport) response.SweepResponse {
	return response.SweepResponse{
		Scanned:   r.Scanned,
		Processed: r.Processed,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
	}
}
