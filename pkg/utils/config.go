package utils

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Hold     HoldConfig
	Booking  BookingConfig
	Sweeper  SweeperConfig
	Broker   BrokerConfig
	Admin    AdminConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// HoldConfig controls the ephemeral seat hold kept in Redis.
type HoldConfig struct {
	TTL              time.Duration // lifetime of a fresh hold
	BookingExtension time.Duration // extra time granted while a booking is written
}

// BookingConfig controls the durable booking. HoldWindow is how long a
// PENDING booking keeps its seats before the sweeper cancels it; it is
// independent from HoldConfig.TTL.
type BookingConfig struct {
	HoldWindow time.Duration
	ServiceFee float64 // flat, per seat
	TaxRate    float64
}

type SweeperConfig struct {
	Interval       time.Duration
	BatchSize      int
	PurgeSchedule  string // cron spec
	PurgeRetention time.Duration
}

type BrokerConfig struct {
	URL      string // empty disables event publishing
	Exchange string
}

type AdminConfig struct {
	Token string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "cinema-reservation")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("HOLD_TTL", "2m")
	viper.SetDefault("HOLD_BOOKING_EXTENSION", "2m")
	viper.SetDefault("BOOKING_HOLD_WINDOW", "15m")
	viper.SetDefault("BOOKING_SERVICE_FEE", 5000)
	viper.SetDefault("BOOKING_TAX_RATE", 0.10)
	viper.SetDefault("SWEEP_INTERVAL", "60s")
	viper.SetDefault("SWEEP_BATCH_SIZE", 100)
	viper.SetDefault("PURGE_SCHEDULE", "0 3 * * *")
	viper.SetDefault("PURGE_RETENTION", "720h")
	viper.SetDefault("AMQP_EXCHANGE", "booking.events")

	// .env is optional; plain environment variables are enough in containers
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Hold: HoldConfig{
			TTL:              viper.GetDuration("HOLD_TTL"),
			BookingExtension: viper.GetDuration("HOLD_BOOKING_EXTENSION"),
		},
		Booking: BookingConfig{
			HoldWindow: viper.GetDuration("BOOKING_HOLD_WINDOW"),
			ServiceFee: viper.GetFloat64("BOOKING_SERVICE_FEE"),
			TaxRate:    viper.GetFloat64("BOOKING_TAX_RATE"),
		},
		Sweeper: SweeperConfig{
			Interval:       viper.GetDuration("SWEEP_INTERVAL"),
			BatchSize:      viper.GetInt("SWEEP_BATCH_SIZE"),
			PurgeSchedule:  viper.GetString("PURGE_SCHEDULE"),
			PurgeRetention: viper.GetDuration("PURGE_RETENTION"),
		},
		Broker: BrokerConfig{
			URL:      viper.GetString("AMQP_URL"),
			Exchange: viper.GetString("AMQP_EXCHANGE"),
		},
		Admin: AdminConfig{
			Token: viper.GetString("ADMIN_TOKEN"),
		},
	}

	return config, nil
}
