package handlers

import (
	"math"
	"time"

	"github.com/animdrive/backend/internal/identity"
	"github.com/animdrive/backend/internal/middleware"
	"github.com/animdrive/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	ids identity.Client
}

func NewUserHandler(ids identity.Client) *UserHandler {
	return &UserHandler{ids: ids}
}

// GetStorage renders the quota view cached in identity metadata. The cache
// is refreshed opportunistically after uploads and deletes and can be stale
// in between; the dashboard tolerates that.
func (h *UserHandler) GetStorage(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	user, err := h.ids.User(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to fetch storage information",
			"details": err.Error(),
		})
	}

	limit := user.Meta.StorageLimit
	if limit == 0 {
		limit = 10 // legacy GB default for accounts that never synced
	}
	used := user.Meta.StorageUsed

	percentage := 0
	if limit > 0 {
		percentage = int(math.Round(float64(used) / float64(limit) * 100))
	}

	role := user.Meta.Role
	if role == "" {
		role = "user"
	}

	available := limit - used
	if available < 0 {
		available = 0
	}

	return c.JSON(fiber.Map{
		"success": true,
		"storage": fiber.Map{
			"used":       used,
			"limit":      limit,
			"percentage": percentage,
			"plan":       models.ParsePlan(user.Meta.Plan),
			"role":       role,
			"available":  available,
		},
	})
}

// UpdateStorage overwrites the cached usage counter. The value is
// self-reported and not validated against the provider.
func (h *UserHandler) UpdateStorage(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	var req struct {
		StorageUsed *float64 `json:"storageUsed"`
	}
	if err := c.BodyParser(&req); err != nil || req.StorageUsed == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid storage value",
		})
	}

	if err := h.ids.PatchMetadata(c.Context(), userID, map[string]any{
		"storageUsed": *req.StorageUsed,
		"lastUpdated": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to update storage",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"storageUsed": *req.StorageUsed,
	})
}
