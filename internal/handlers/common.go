package handlers

import (
	"context"

	"github.com/animdrive/backend/internal/gdrive"
	"github.com/gofiber/fiber/v2"
)

// DriveFactory builds a per-request Drive client from an access token.
// Injected so tests can point the client at a fake provider.
type DriveFactory func(ctx context.Context, accessToken string) (*gdrive.Client, error)

func defaultDriveFactory(ctx context.Context, accessToken string) (*gdrive.Client, error) {
	return gdrive.NewClient(ctx, accessToken)
}

// upstreamError converts a storage-provider failure into the 500 shape,
// passing the provider's message through where available.
func upstreamError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": gdrive.ErrorMessage(err),
	})
}

// notConnected is the structured "Drive not linked" condition: the frontend
// keys a reconnect prompt off needsGoogleAuth rather than showing a generic
// error.
func notConnected(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error":           message,
		"needsGoogleAuth": true,
	})
}
