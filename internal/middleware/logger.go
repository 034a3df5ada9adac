package middleware

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/animdrive/backend/internal/database"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Logger middleware for request logging
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		reqID := uuid.NewString()
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		log.Printf(
			"%s | %3d | %13v | %15s | %-7s %s | %s",
			time.Now().Format("2006/01/02 - 15:04:05"),
			c.Response().StatusCode(),
			time.Since(start),
			c.IP(),
			c.Method(),
			c.Path(),
			reqID,
		)

		return err
	}
}

// CORS middleware
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		c.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, Stripe-Signature")
		c.Set("Access-Control-Max-Age", "86400")

		if c.Method() == "OPTIONS" {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}

// RateLimitEntry tracks request count per IP for the in-memory fallback.
type RateLimitEntry struct {
	Count     int
	ResetTime time.Time
}

var (
	rateLimitMap   = make(map[string]*RateLimitEntry)
	rateLimitMutex sync.Mutex
)

// RateLimiter applies a fixed window per client IP. When Redis is
// configured the window lives there and survives restarts; otherwise the
// in-memory counters apply.
func RateLimiter(maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()

		if database.Redis != nil {
			allowed, retryAfter, err := redisAllow(c.Context(), ip, maxRequests, window)
			if err == nil {
				if !allowed {
					return limitExceeded(c, retryAfter)
				}
				return c.Next()
			}
			log.Printf("Rate limiter Redis error, using in-memory counters: %v", err)
		}

		rateLimitMutex.Lock()

		entry, exists := rateLimitMap[ip]
		now := time.Now()

		if !exists || now.After(entry.ResetTime) {
			rateLimitMap[ip] = &RateLimitEntry{
				Count:     1,
				ResetTime: now.Add(window),
			}
			rateLimitMutex.Unlock()
			return c.Next()
		}

		if entry.Count >= maxRequests {
			rateLimitMutex.Unlock()
			return limitExceeded(c, int(entry.ResetTime.Sub(now).Seconds()))
		}

		entry.Count++
		rateLimitMutex.Unlock()
		return c.Next()
	}
}

func redisAllow(ctx context.Context, ip string, maxRequests int, window time.Duration) (bool, int, error) {
	key := "animdrive:ratelimit:" + ip

	count, err := database.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		database.Redis.Expire(ctx, key, window)
	}
	if count > int64(maxRequests) {
		ttl, err := database.Redis.TTL(ctx, key).Result()
		if err != nil {
			return false, int(window.Seconds()), nil
		}
		return false, int(ttl.Seconds()), nil
	}
	return true, 0, nil
}

func limitExceeded(c *fiber.Ctx, retryAfter int) error {
	if retryAfter < 1 {
		retryAfter = 1
	}
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": "Rate limit exceeded. Try again in " + strconv.Itoa(retryAfter) + " seconds",
	})
}
