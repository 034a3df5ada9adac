package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	// API
	APIPort int

	// Identity provider (Clerk)
	ClerkSecretKey    string
	ClerkPEMPublicKey string

	// Billing provider (Stripe)
	StripeSecretKey     string
	StripeWebhookSecret string

	// Stripe price ids for the paid plans
	WizardPriceID   string
	SorcererPriceID string

	// Optional relational mirror (Postgres)
	DatabaseURL string

	// Optional Redis (rate limiter backend)
	RedisAddr     string
	RedisPassword string

	// Rate limiting
	RateLimitPerMinute int
}

func Load() *Config {
	clerkSecret := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecret == "" {
		log.Println("WARNING: CLERK_SECRET_KEY not set - identity provider calls will fail!")
	}

	clerkPEM := os.Getenv("CLERK_PEM_PUBLIC_KEY")
	if clerkPEM == "" {
		log.Println("WARNING: CLERK_PEM_PUBLIC_KEY not set - session verification will fail!")
	}

	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Println("WARNING: STRIPE_WEBHOOK_SECRET not set - billing webhooks will be rejected!")
	}

	return &Config{
		APIPort: getEnvInt("API_PORT", 8080),

		ClerkSecretKey:    clerkSecret,
		ClerkPEMPublicKey: clerkPEM,

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: webhookSecret,

		WizardPriceID:   getEnv("STRIPE_WIZARD_PRICE_ID", ""),
		SorcererPriceID: getEnv("STRIPE_SORCERER_PRICE_ID", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		RateLimitPerMinute: getEnvInt("API_RATE_LIMIT", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
