package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/animdrive/backend/internal/identity"
	"github.com/animdrive/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// webhookScanLimit caps the user-list scan used to resolve a billing
// customer id back to a user. O(n) over a single page; breaks past one
// page of users.
const webhookScanLimit = 100

// WebhookHandler receives billing-provider events. Handling is
// idempotent-by-overwrite: replaying an event re-applies the same metadata
// write, and there is no dedup ledger.
type WebhookHandler struct {
	ids    identity.Client
	plans  *models.PlanTable
	secret string
}

func NewWebhookHandler(ids identity.Client, plans *models.PlanTable, secret string) *WebhookHandler {
	return &WebhookHandler{ids: ids, plans: plans, secret: secret}
}

func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	event, err := webhook.ConstructEvent(c.Body(), c.Get("Stripe-Signature"), h.secret)
	if err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid signature",
		})
	}

	switch event.Type {
	case "checkout.session.completed":
		return h.checkoutCompleted(c, event)
	case "customer.subscription.updated":
		return h.subscriptionUpdated(c, event)
	case "customer.subscription.deleted":
		return h.subscriptionDeleted(c, event)
	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
	}

	return c.JSON(fiber.Map{"received": true})
}

func (h *WebhookHandler) checkoutCompleted(c *fiber.Ctx, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}

	userID := session.Metadata["userId"]
	if userID == "" {
		log.Printf("No userId in session metadata (event %s)", event.ID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No userId",
		})
	}

	priceID := ""
	if session.LineItems != nil && len(session.LineItems.Data) > 0 && session.LineItems.Data[0].Price != nil {
		priceID = session.LineItems.Data[0].Price.ID
	}
	if priceID == "" {
		priceID = session.Metadata["priceId"]
	}
	if priceID == "" {
		log.Printf("No priceId in session (event %s)", event.ID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No priceId",
		})
	}

	plan, ok := h.plans.FromPriceID(priceID)
	if !ok {
		log.Printf("Unknown price id %s (event %s)", priceID, event.ID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown plan",
		})
	}

	patch := map[string]any{
		"plan":               plan,
		"subscriptionStatus": "active",
		"updatedAt":          time.Now().UTC().Format(time.RFC3339),
	}
	if session.Customer != nil {
		patch["stripeCustomerId"] = session.Customer.ID
	}
	if session.Subscription != nil {
		patch["subscriptionId"] = session.Subscription.ID
	}

	if err := h.ids.PatchMetadata(c.Context(), userID, patch); err != nil {
		log.Printf("Failed to update user metadata: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update user",
		})
	}

	log.Printf("Updated user %s to %s plan", userID, plan)
	return c.JSON(fiber.Map{"received": true})
}

func (h *WebhookHandler) subscriptionUpdated(c *fiber.Ctx, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}
	if priceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No priceId",
		})
	}

	plan, ok := h.plans.FromPriceID(priceID)
	if !ok {
		log.Printf("Unknown price id %s (event %s)", priceID, event.ID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown plan",
		})
	}

	user, err := h.userByCustomerID(c.Context(), customerID(sub.Customer))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update subscription",
		})
	}
	if user == nil {
		log.Printf("User not found for customer (event %s)", event.ID)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if err := h.ids.PatchMetadata(c.Context(), user.ID, map[string]any{
		"plan":               plan,
		"subscriptionStatus": string(sub.Status),
		"updatedAt":          time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		log.Printf("Failed to update subscription: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update subscription",
		})
	}

	log.Printf("Updated subscription for user %s to %s plan", user.ID, plan)
	return c.JSON(fiber.Map{"received": true})
}

func (h *WebhookHandler) subscriptionDeleted(c *fiber.Ctx, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}

	user, err := h.userByCustomerID(c.Context(), customerID(sub.Customer))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to downgrade user",
		})
	}
	if user == nil {
		log.Printf("User not found for customer (event %s)", event.ID)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if err := h.ids.PatchMetadata(c.Context(), user.ID, map[string]any{
		"plan":               models.PlanNovice,
		"subscriptionStatus": "canceled",
		"updatedAt":          time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		log.Printf("Failed to downgrade user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to downgrade user",
		})
	}

	log.Printf("Downgraded user %s to free plan", user.ID)
	return c.JSON(fiber.Map{"received": true})
}

// userByCustomerID scans one page of users for a matching stored billing
// customer id. Nil without error means no match.
func (h *WebhookHandler) userByCustomerID(ctx context.Context, custID string) (*identity.User, error) {
	if custID == "" {
		return nil, nil
	}
	users, err := h.ids.Users(ctx, webhookScanLimit)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Meta.StripeCustomerID == custID {
			return u, nil
		}
	}
	return nil, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
