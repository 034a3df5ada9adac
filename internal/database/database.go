package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/animdrive/backend/internal/config"
	"github.com/animdrive/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// DB backs the best-effort file mirror. Nil when no relational store is
	// configured; callers must treat it as optional.
	DB *gorm.DB

	// Redis backs the API rate limiter. Nil when not configured.
	Redis *redis.Client
)

// Connect wires the optional Postgres mirror and the optional Redis backend.
// Both are non-authoritative, so a missing configuration is not an error;
// only a configured store that cannot be reached is.
func Connect(cfg *config.Config) error {
	if cfg.DatabaseURL != "" {
		var err error
		DB, err = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		sqlDB, err := DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get database instance: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)

		if err := models.AutoMigrate(DB); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		log.Println("Database connected successfully")
	} else {
		log.Println("DATABASE_URL not set - file mirror disabled")
	}

	if cfg.RedisAddr != "" {
		Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := Redis.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}

		log.Println("Redis connected successfully")
	} else {
		log.Println("REDIS_ADDR not set - rate limiter falls back to in-memory counters")
	}

	return nil
}

// Close releases both connections.
func Close() {
	if DB != nil {
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if Redis != nil {
		Redis.Close()
	}
}
