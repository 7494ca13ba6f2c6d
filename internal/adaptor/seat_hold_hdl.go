package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/internal/dto/request"
	"cinema-reservation/internal/dto/response"
	"cinema-reservation/internal/usecase"
	"cinema-reservation/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SeatHoldHandler struct {
	service usecase.SeatHoldService
	log     *zap.Logger
}

func NewSeatHoldHandler(service usecase.SeatHoldService, log *zap.Logger) *SeatHoldHandler {
	return &SeatHoldHandler{
		service: service,
		log:     log.With(zap.String("handler", "seat_hold")),
	}
}

// HoldSeats handles POST /api/seat-holds
func (h *SeatHoldHandler) HoldSeats(w http.ResponseWriter, r *http.Request) {
	var req request.HoldSeatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}
	req.SessionID = sessionOf(r, req.SessionID)

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	set, err := h.service.HoldSeats(r.Context(), &req)
	if err != nil {
		if set != nil && (errors.Is(err, entity.ErrSeatHeldByOther) || errors.Is(err, entity.ErrSeatAlreadyBooked)) {
			conflict := response.HoldConflictResponse{Conflicts: set.Conflicts}
			if len(set.SeatIDs) > 0 {
				held := response.HoldToResponse(set)
				conflict.Held = &held
			}
			h.log.Info("Seats unavailable for hold",
				zap.Int64("showtime_id", req.ShowtimeID),
				zap.Int64s("conflicts", set.Conflicts),
			)
			utils.ResponseConflict(w, err.Error(), conflict)
			return
		}
		handleServiceError(w, h.log, err, "hold seats")
		return
	}

	utils.ResponseCreated(w, "success", response.HoldToResponse(set))
}

// ReleaseSeats handles POST /api/seat-holds/release
func (h *SeatHoldHandler) ReleaseSeats(w http.ResponseWriter, r *http.Request) {
	var req request.ReleaseSeatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}
	req.SessionID = sessionOf(r, req.SessionID)

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	if err := h.service.ReleaseSeats(r.Context(), &req); err != nil {
		handleServiceError(w, h.log, err, "release seats")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// ReleaseSessionHolds handles POST /api/seat-holds/release-all
func (h *SeatHoldHandler) ReleaseSessionHolds(w http.ResponseWriter, r *http.Request) {
	var req request.ReleaseSessionHoldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}
	req.SessionID = sessionOf(r, req.SessionID)

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	if err := h.service.ReleaseSessionHolds(r.Context(), &req); err != nil {
		handleServiceError(w, h.log, err, "release session holds")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// ExtendHold handles POST /api/seat-holds/extend
func (h *SeatHoldHandler) ExtendHold(w http.ResponseWriter, r *http.Request) {
	var req request.ExtendHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}
	req.SessionID = sessionOf(r, req.SessionID)

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	if err := h.service.ExtendHold(r.Context(), &req); err != nil {
		handleServiceError(w, h.log, err, "extend hold")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// GetAvailability handles GET /api/showtimes/{id}/availability
func (h *SeatHoldHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	showtimeID, ok := utils.ParseID(chi.URLParam(r, "id"))
	if !ok {
		utils.ResponseBadRequest(w, "Invalid showtime ID", nil)
		return
	}

	availability, err := h.service.GetAvailability(r.Context(), showtimeID, sessionOf(r, ""))
	if err != nil {
		handleServiceError(w, h.log, err, "get availability")
		return
	}

	utils.ResponseSuccess(w, "success", response.AvailabilityToResponse(availability))
}

// sessionOf prefers the body value, then whatever the Session middleware
// picked up from the header or query string.
func sessionOf(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if sessionID, ok := utils.GetSessionIDFromContext(r.Context()); ok {
		return sessionID
	}
	return utils.SessionIDFromRequest(r)
}
