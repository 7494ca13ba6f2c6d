package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cinema-reservation/cmd"
	"cinema-reservation/internal/data/repository"
	"cinema-reservation/internal/event"
	"cinema-reservation/internal/scheduler"
	"cinema-reservation/internal/wire"
	"cinema-reservation/pkg/clock"
	"cinema-reservation/pkg/database"
	"cinema-reservation/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.Name, config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.Duration("hold_ttl", config.Hold.TTL),
		zap.Duration("booking_hold_window", config.Booking.HoldWindow),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected successfully")

	// Connect to the hold store
	rdb, err := database.InitRedis(config.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()
	logger.Info("Redis connected successfully", zap.String("addr", config.Redis.Addr))

	// Event publishing is optional
	var publisher event.Publisher = event.Nop{}
	if config.Broker.URL != "" {
		publisher, err = event.NewAMQPPublisher(config.Broker.URL, config.Broker.Exchange, logger)
		if err != nil {
			logger.Fatal("Failed to connect to broker", zap.Error(err))
		}
	} else {
		logger.Warn("AMQP_URL not set, booking events are not published")
	}
	defer publisher.Close()

	// Initialize all repositories
	repos := repository.NewRepository(db, rdb, logger)

	// Wire all dependencies
	app := wire.Wiring(repos, publisher, clock.Real(), map[string]wire.HealthCheck{
		"postgres": db.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, config, logger)

	// Start background jobs
	jobs, err := scheduler.New(app.Service.Sweeper, config.Sweeper, logger)
	if err != nil {
		logger.Fatal("Failed to schedule jobs", zap.Error(err))
	}
	jobs.Start()

	// Start server
	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger); err != nil {
		logger.Error("HTTP server stopped", zap.Error(err))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := jobs.Stop(stopCtx); err != nil {
		logger.Warn("Scheduler did not stop cleanly", zap.Error(err))
	}

	logger.Info("Application stopped")
}
