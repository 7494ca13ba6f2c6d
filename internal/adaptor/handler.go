package adaptor

import (
	"errors"
	"net/http"

	"cinema-reservation/internal/data/entity"
	"cinema-reservation/internal/dto/response"
	"cinema-reservation/internal/usecase"
	"cinema-reservation/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	SeatHold *SeatHoldHandler
	Booking  *BookingHandler
	Admin    *AdminHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		SeatHold: NewSeatHoldHandler(service.SeatHold, log),
		Booking:  NewBookingHandler(service.Booking, log),
		Admin:    NewAdminHandler(service.Booking, service.Sweeper, log),
	}
}

// handleServiceError maps service errors onto HTTP statuses
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	errMsg := err.Error()

	switch {
	case errors.Is(err, entity.ErrShowtimeNotFound),
		errors.Is(err, entity.ErrBookingNotFound):
		log.Warn(operation+" failed - not found",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseNotFound(w, errMsg)

	case errors.Is(err, entity.ErrSeatNotFound):
		log.Warn(operation+" failed - unknown seat",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseNotFound(w, errMsg)

	case errors.Is(err, entity.ErrValidation),
		errors.Is(err, entity.ErrInsufficientCustomerInfo):
		log.Warn(operation+" validation failed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, errMsg, nil)

	case errors.Is(err, entity.ErrSeatHeldByOther),
		errors.Is(err, entity.ErrSeatAlreadyBooked),
		errors.Is(err, entity.ErrHoldNotOwnedBySession),
		errors.Is(err, entity.ErrInventoryExhausted),
		errors.Is(err, entity.ErrInvalidStateTransition):
		log.Warn(operation+" failed - conflict",
			zap.Error(err),
			zap.String("operation", operation))
		var details any
		if seats := entity.ConflictingSeats(err); seats != nil {
			details = response.HoldConflictResponse{Conflicts: seats}
		}
		utils.ResponseConflict(w, errMsg, details)

	default:
		log.Error("Failed to "+operation,
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
