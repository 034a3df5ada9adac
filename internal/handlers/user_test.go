package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/animdrive/backend/internal/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserEnv(t *testing.T, ids *fakeIdentity) *sessionEnv {
	t.Helper()

	env := newSessionEnv(t)
	h := NewUserHandler(ids)
	env.app.Get("/api/user/storage", env.gate(), h.GetStorage)
	env.app.Post("/api/user/storage", env.gate(), h.UpdateStorage)
	return env
}

func TestGetStorageRendersQuotaView(t *testing.T) {
	ids := newFakeIdentity()
	ids.addUser(&identity.User{
		ID: "user_1",
		Meta: identity.Metadata{
			Role:         "pro",
			Plan:         "wizard",
			StorageUsed:  25,
			StorageLimit: 50,
		},
	})
	env := newUserEnv(t, ids)

	req := httptest.NewRequest("GET", "/api/user/storage", nil)
	req.Header.Set("Authorization", env.bearer(t, "user_1"))
	status, body := doJSON(t, env.app, req)

	require.Equal(t, fiber.StatusOK, status)
	storage := body["storage"].(map[string]any)
	assert.Equal(t, float64(25), storage["used"])
	assert.Equal(t, float64(50), storage["limit"])
	assert.Equal(t, float64(50), storage["percentage"])
	assert.Equal(t, float64(25), storage["available"])
	assert.Equal(t, "wizard", storage["plan"])
	assert.Equal(t, "pro", storage["role"])
}

func TestGetStorageDefaultsForUnsyncedAccount(t *testing.T) {
	ids := newFakeIdentity()
	ids.addUser(&identity.User{ID: "user_1"})
	env := newUserEnv(t, ids)

	req := httptest.NewRequest("GET", "/api/user/storage", nil)
	req.Header.Set("Authorization", env.bearer(t, "user_1"))
	status, body := doJSON(t, env.app, req)

	require.Equal(t, fiber.StatusOK, status)
	storage := body["storage"].(map[string]any)
	assert.Equal(t, float64(10), storage["limit"])
	assert.Equal(t, float64(0), storage["used"])
	assert.Equal(t, "novice", storage["plan"])
	assert.Equal(t, "user", storage["role"])
}

func TestGetStorageClampsOverage(t *testing.T) {
	ids := newFakeIdentity()
	ids.addUser(&identity.User{
		ID:   "user_1",
		Meta: identity.Metadata{StorageUsed: 70, StorageLimit: 50},
	})
	env := newUserEnv(t, ids)

	req := httptest.NewRequest("GET", "/api/user/storage", nil)
	req.Header.Set("Authorization", env.bearer(t, "user_1"))
	status, body := doJSON(t, env.app, req)

	require.Equal(t, fiber.StatusOK, status)
	storage := body["storage"].(map[string]any)
	assert.Equal(t, float64(140), storage["percentage"])
	assert.Equal(t, float64(0), storage["available"])
}

func TestUpdateStorageRequiresValue(t *testing.T) {
	ids := newFakeIdentity()
	ids.addUser(&identity.User{ID: "user_1"})
	env := newUserEnv(t, ids)

	req := httptest.NewRequest("POST", "/api/user/storage", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", env.bearer(t, "user_1"))
	status, body := doJSON(t, env.app, req)

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid storage value", body["error"])
	assert.Zero(t, ids.patchCount())
}

func TestUpdateStorageAcceptsZero(t *testing.T) {
	ids := newFakeIdentity()
	ids.addUser(&identity.User{ID: "user_1", Meta: identity.Metadata{StorageUsed: 42}})
	env := newUserEnv(t, ids)

	req := httptest.NewRequest("POST", "/api/user/storage",
		strings.NewReader(`{"storageUsed": 0}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", env.bearer(t, "user_1"))
	status, body := doJSON(t, env.app, req)

	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])

	userID, patch := ids.lastPatch()
	assert.Equal(t, "user_1", userID)
	assert.EqualValues(t, 0, patch["storageUsed"])
	assert.NotEmpty(t, patch["lastUpdated"])
}
