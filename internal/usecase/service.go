package usecase

import (
	"cinema-reservation/internal/data/repository"
	"cinema-reservation/internal/event"
	"cinema-reservation/pkg/clock"
	"cinema-reservation/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	SeatHold SeatHoldService
	Booking  BookingService
	Sweeper  ExpirySweeper
}

func NewService(repo *repository.Repository, publisher event.Publisher, clk clock.Clock, config *utils.Config, log *zap.Logger) *Service {
	holds := NewSeatHoldService(repo, clk, config.Hold, log)
	return &Service{
		SeatHold: holds,
		Booking:  NewBookingService(repo, holds, publisher, clk, config, log),
		Sweeper:  NewExpirySweeper(repo, publisher, clk, config.Sweeper, log),
	}
}
