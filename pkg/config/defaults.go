package config

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "househunt"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "5000"
	DefaultLogLevel = "info"

	DefaultCORSAllowedOrigins = "*"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultStoreRetryAttempts = 3
	DefaultStoreRetryBackoff  = 100 * time.Millisecond

	DefaultBcryptCost = bcrypt.DefaultCost

	DefaultRedisDB = 0

	DefaultKafkaBookingTopic = "househunt.bookings"

	MaxPaginationLimit = 500
)
