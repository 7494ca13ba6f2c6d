package wire

import (
	"context"
	"net/http"
	"time"

	"cinema-reservation/internal/adaptor"
	"cinema-reservation/internal/data/repository"
	"cinema-reservation/internal/event"
	"cinema-reservation/internal/usecase"
	"cinema-reservation/pkg/clock"
	"cinema-reservation/pkg/middleware"
	"cinema-reservation/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HealthCheck pings one backing store
type HealthCheck func(ctx context.Context) error

// App holds the wired router and services
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and routes
func Wiring(
	repo *repository.Repository,
	publisher event.Publisher,
	clk clock.Clock,
	checks map[string]HealthCheck,
	config *utils.Config,
	logger *zap.Logger,
) *App {
	service := usecase.NewService(repo, publisher, clk, config, logger)
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router:  setupRouter(handler, checks, config, logger),
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	checks map[string]HealthCheck,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Session())

	// Apply routes
	wireSeatHold(r, handler.SeatHold)
	wireBooking(r, handler.Booking)
	wireAdmin(r, handler.Admin, config, logger)

	r.Get("/health", health(checks, logger))

	return r
}

// health reports 503 with the failing store names when any ping fails
func health(checks map[string]HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("Health check failed", zap.String("store", name), zap.Error(err))
				failed[name] = err.Error()
			}
		}

		if len(failed) > 0 {
			utils.ResponseJSON(w, http.StatusServiceUnavailable, false, "unhealthy", nil, failed)
			return
		}
		utils.ResponseSuccess(w, "OK", nil)
	}
}
