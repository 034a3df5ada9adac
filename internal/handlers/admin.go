package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/animdrive/backend/internal/gdrive"
	"github.com/animdrive/backend/internal/identity"
	"github.com/animdrive/backend/internal/middleware"
	"github.com/animdrive/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"google.golang.org/api/drive/v3"
)

// adminListLimit caps the admin console's user listing.
const adminListLimit = 500

type AdminHandler struct {
	ids      identity.Client
	newDrive DriveFactory
}

func NewAdminHandler(ids identity.Client) *AdminHandler {
	return &AdminHandler{
		ids:      ids,
		newDrive: defaultDriveFactory,
	}
}

// requireAdmin re-reads the caller's role from the identity provider and
// writes the failure response itself when it isn't "admin". It is invoked
// at the top of every admin-scoped handler rather than installed as route
// middleware, so each endpoint carries its own gate. A false return means
// the response has been written and the handler must stop.
func (h *AdminHandler) requireAdmin(c *fiber.Ctx) (*identity.User, bool) {
	userID := middleware.CurrentUserID(c)

	user, err := h.ids.User(c.Context(), userID)
	if err != nil {
		_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to verify admin role",
		})
		return nil, false
	}
	if user.Meta.Role != "admin" {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden: Admin access required",
		})
		return nil, false
	}
	return user, true
}

// CheckRole reports the caller's role for frontend routing. Not a security
// boundary - admin endpoints re-check on their own.
func (h *AdminHandler) CheckRole(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	user, err := h.ids.User(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"isAdmin": false,
			"error":   "Server error",
		})
	}

	role := user.Meta.Role
	if role == "" {
		role = "user"
	}

	return c.JSON(fiber.Map{
		"isAdmin": role == "admin",
		"role":    role,
		"userId":  user.ID,
		"email":   user.Email,
	})
}

// ListUsers returns every provider user mapped to the admin console's view
// model.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}

	users, err := h.ids.Users(c.Context(), adminListLimit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to fetch users",
			"details": err.Error(),
		})
	}

	views := make([]models.UserView, 0, len(users))
	for _, u := range users {
		fullName := models.FullName(u.FirstName, u.LastName)

		email := u.Email
		if email == "" {
			email = "No email"
		}

		limit := u.Meta.StorageLimit
		if limit == 0 {
			limit = 10
		}

		status := u.Meta.Status
		if status == "" {
			status = "active"
		}

		views = append(views, models.UserView{
			ID:           u.ID,
			FullName:     fullName,
			Email:        email,
			Role:         models.DisplayRole(u.Meta.Role),
			Plan:         models.ParsePlan(u.Meta.Plan),
			StorageUsed:  u.Meta.StorageUsed,
			StorageLimit: limit,
			Status:       models.DisplayStatus(status),
			CreatedAt:    models.FormatCreatedAt(u.CreatedAt),
			Avatar:       models.Initials(fullName),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"users":   views,
		"total":   len(views),
	})
}

// CreateUser provisions a user directly in the identity provider. The plan
// is derived from the role label, not chosen independently.
func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}

	var req struct {
		FullName     string `json:"fullName"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		Role         string `json:"role"`
		StorageLimit int64  `json:"storageLimit"`
		Status       string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.FullName == "" || req.Email == "" || req.Password == "" || req.Role == "" || req.StorageLimit == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required fields",
		})
	}

	status := req.Status
	if status == "" {
		status = "Active"
	}

	first, last := models.SplitName(req.FullName)
	user, err := h.ids.CreateUser(c.Context(), identity.CreateUserParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: first,
		LastName:  last,
		Meta: map[string]any{
			"role":         strings.ToLower(req.Role),
			"plan":         models.PlanForRole(req.Role),
			"storageLimit": req.StorageLimit,
			"storageUsed":  0,
			"status":       status,
			"createdBy":    "admin",
			"createdAt":    time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Email already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to create user",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":           user.ID,
			"email":        user.Email,
			"fullName":     models.FullName(user.FirstName, user.LastName),
			"role":         req.Role,
			"storageLimit": req.StorageLimit,
			"status":       status,
		},
	})
}

// UpdateUser applies an admin edit. The metadata write replaces the whole
// blob (provider semantics for a full user update); any quota counters not
// resent are clobbered. Last write wins, as everywhere else.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}

	var req struct {
		ClerkUserID  string `json:"clerkUserId"`
		FullName     string `json:"fullName"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		Role         string `json:"role"`
		StorageLimit int64  `json:"storageLimit"`
		Status       string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ClerkUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User ID required",
		})
	}

	params := identity.UpdateUserParams{
		Meta: map[string]any{
			"role":         strings.ToLower(req.Role),
			"plan":         models.PlanForRole(req.Role),
			"storageLimit": req.StorageLimit,
			"status":       req.Status,
			"updatedAt":    time.Now().UTC().Format(time.RFC3339),
		},
	}
	if req.FullName != "" {
		first, last := models.SplitName(req.FullName)
		params.FirstName = &first
		params.LastName = &last
	}
	if req.Email != "" {
		params.Email = &req.Email
	}
	if strings.TrimSpace(req.Password) != "" {
		params.Password = &req.Password
	}

	user, err := h.ids.UpdateUser(c.Context(), req.ClerkUserID, params)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to update user",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":           user.ID,
			"email":        user.Email,
			"fullName":     models.FullName(user.FirstName, user.LastName),
			"role":         req.Role,
			"storageLimit": req.StorageLimit,
			"status":       req.Status,
		},
	})
}

// DeleteUser deprovisions an account at the identity provider. Files stay
// in the user's own Drive; this app has nothing else to clean up.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}

	targetID := c.Params("id")
	if targetID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User ID required",
		})
	}

	if err := h.ids.DeleteUser(c.Context(), targetID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to delete user",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListSecretFiles lists the admin vault folder, newest first.
func (h *AdminHandler) ListSecretFiles(c *fiber.Ctx) error {
	admin, ok := h.requireAdmin(c)
	if !ok {
		return nil
	}

	token, err := h.ids.GoogleAccessToken(c.Context(), admin.ID)
	if err != nil {
		log.Printf("OAuth token error for %s: %v", admin.ID, err)
		return notConnected(c, "Please connect your Google account")
	}

	dc, err := h.newDrive(c.Context(), token)
	if err != nil {
		return upstreamError(c, err)
	}

	folderID, err := dc.FindFolder(c.Context(), gdrive.AdminFolderName)
	if err != nil {
		return upstreamError(c, err)
	}
	if folderID == "" {
		return c.JSON(fiber.Map{"files": []*drive.File{}})
	}

	files, err := dc.ListFolder(c.Context(), folderID, gdrive.VaultListFields, 0, "createdTime desc")
	if err != nil {
		return upstreamError(c, err)
	}
	if files == nil {
		files = []*drive.File{}
	}

	return c.JSON(fiber.Map{"files": files})
}

// UploadSecretFile opens a resumable upload session into the admin vault,
// creating the vault folder on first use.
func (h *AdminHandler) UploadSecretFile(c *fiber.Ctx) error {
	admin, ok := h.requireAdmin(c)
	if !ok {
		return nil
	}

	var req struct {
		Filename string `json:"filename"`
		MimeType string `json:"mimeType"`
		Size     int64  `json:"size"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	token, err := h.ids.GoogleAccessToken(c.Context(), admin.ID)
	if err != nil {
		log.Printf("OAuth token error for %s: %v", admin.ID, err)
		return notConnected(c, "Please connect your Google account to upload files")
	}

	dc, err := h.newDrive(c.Context(), token)
	if err != nil {
		return upstreamError(c, err)
	}

	folderID, err := dc.EnsureFolder(c.Context(), gdrive.AdminFolderName)
	if err != nil {
		return upstreamError(c, err)
	}

	uploadURL, err := dc.StartResumableUpload(c.Context(), folderID, req.Filename, req.MimeType, req.Size)
	if err != nil {
		return upstreamError(c, err)
	}

	return c.JSON(fiber.Map{"uploadUrl": uploadURL})
}

// DownloadSecretFile streams vault file bytes through the server with
// attachment headers. The one place this app sits in the data path, and it
// is admin-only.
func (h *AdminHandler) DownloadSecretFile(c *fiber.Ctx) error {
	admin, ok := h.requireAdmin(c)
	if !ok {
		return nil
	}

	fileID := c.Params("fileId")
	if fileID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File ID required",
		})
	}

	token, err := h.ids.GoogleAccessToken(c.Context(), admin.ID)
	if err != nil {
		return notConnected(c, "Please connect your Google account")
	}

	dc, err := h.newDrive(c.Context(), token)
	if err != nil {
		return upstreamError(c, err)
	}

	meta, err := dc.FileMeta(c.Context(), fileID)
	if err != nil {
		return upstreamError(c, err)
	}

	resp, err := dc.Download(c.Context(), fileID)
	if err != nil {
		return upstreamError(c, err)
	}

	contentType := meta.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", meta.Name))

	// The size hint only fits when int is wide enough for it; otherwise
	// stream without a length and let transfer-encoding handle it.
	if size := meta.Size; size > 0 && int64(int(size)) == size {
		return c.SendStream(resp.Body, int(size))
	}
	return c.SendStream(resp.Body)
}
