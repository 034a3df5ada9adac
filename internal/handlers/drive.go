package handlers

import (
	"log"

	"github.com/animdrive/backend/internal/gdrive"
	"github.com/animdrive/backend/internal/identity"
	"github.com/animdrive/backend/internal/middleware"
	"github.com/animdrive/backend/internal/models"
	"github.com/animdrive/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"google.golang.org/api/drive/v3"
)

type DriveHandler struct {
	ids      identity.Client
	syncer   *services.StorageSyncer
	mirror   *services.FileMirror
	newDrive DriveFactory
}

func NewDriveHandler(ids identity.Client, syncer *services.StorageSyncer, mirror *services.FileMirror) *DriveHandler {
	return &DriveHandler{
		ids:      ids,
		syncer:   syncer,
		mirror:   mirror,
		newDrive: defaultDriveFactory,
	}
}

// List returns the contents of the user's AnimDrive folder. A missing
// folder means the user has no files yet, not an error.
func (h *DriveHandler) List(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	token, err := h.ids.GoogleAccessToken(c.Context(), userID)
	if err != nil {
		log.Printf("OAuth token error for %s: %v", userID, err)
		return notConnected(c, "Please connect your Google account to access Drive files")
	}

	dc, err := h.newDrive(c.Context(), token)
	if err != nil {
		return upstreamError(c, err)
	}

	folderID, err := dc.FindFolder(c.Context(), gdrive.UserFolderName)
	if err != nil {
		return upstreamError(c, err)
	}
	if folderID == "" {
		return c.JSON(fiber.Map{"files": []*drive.File{}})
	}

	files, err := dc.ListFolder(c.Context(), folderID, gdrive.UserListFields, gdrive.UserListPageSize, "")
	if err != nil {
		return upstreamError(c, err)
	}
	if files == nil {
		files = []*drive.File{}
	}

	return c.JSON(fiber.Map{"files": files})
}

// InitUpload ensures the AnimDrive folder exists and opens a resumable
// upload session. The returned URL is where the browser pushes the bytes;
// this server never sees them.
func (h *DriveHandler) InitUpload(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

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

	token, err := h.ids.GoogleAccessToken(c.Context(), userID)
	if err != nil {
		log.Printf("OAuth token error for %s: %v", userID, err)
		return notConnected(c, "Please connect your Google account to upload files")
	}

	dc, err := h.newDrive(c.Context(), token)
	if err != nil {
		return upstreamError(c, err)
	}

	folderID, err := dc.EnsureFolder(c.Context(), gdrive.UserFolderName)
	if err != nil {
		return upstreamError(c, err)
	}

	uploadURL, err := dc.StartResumableUpload(c.Context(), folderID, req.Filename, req.MimeType, req.Size)
	if err != nil {
		return upstreamError(c, err)
	}

	return c.JSON(fiber.Map{"uploadUrl": uploadURL})
}

// Delete removes a file by id, then re-syncs the quota cache. The sync is
// secondary: its failure is logged and the delete still reports success.
func (h *DriveHandler) Delete(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	var req struct {
		FileID string `json:"fileId"`
	}
	if err := c.BodyParser(&req); err != nil || req.FileID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File ID required",
		})
	}

	token, err := h.ids.GoogleAccessToken(c.Context(), userID)
	if err != nil {
		return notConnected(c, "Google Drive not connected")
	}

	dc, err := h.newDrive(c.Context(), token)
	if err != nil {
		return upstreamError(c, err)
	}

	if err := dc.DeleteFile(c.Context(), req.FileID); err != nil {
		log.Printf("Drive delete error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete file from Drive",
		})
	}

	if err := h.syncer.Sync(c.Context(), userID, dc); err != nil {
		log.Printf("Failed to sync storage quota for %s: %v", userID, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// Storage returns the provider's raw quota report.
func (h *DriveHandler) Storage(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	token, err := h.ids.GoogleAccessToken(c.Context(), userID)
	if err != nil {
		return notConnected(c, "Google Drive not connected")
	}

	dc, err := h.newDrive(c.Context(), token)
	if err != nil {
		return upstreamError(c, err)
	}

	quota, err := dc.Quota(c.Context())
	if err != nil {
		return upstreamError(c, err)
	}

	return c.JSON(fiber.Map{
		"usage":        quota.Usage,
		"limit":        quota.Limit,
		"usageInDrive": quota.UsageInDrive,
		"usageInTrash": quota.UsageInTrash,
	})
}

// Sync records an uploaded file in the best-effort mirror and refreshes the
// quota cache. Both side effects are non-critical; only malformed input or
// a failed user lookup fail the request.
func (h *DriveHandler) Sync(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	var req struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		MimeType    string `json:"mimeType"`
		Size        int64  `json:"size"`
		WebViewLink string `json:"webViewLink"`
		IconLink    string `json:"iconLink"`
	}
	if err := c.BodyParser(&req); err != nil || req.ID == "" || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid file data",
		})
	}

	user, err := h.ids.User(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.mirror.Upsert(c.Context(), &models.FileRecord{
		ID:         req.ID,
		Name:       req.Name,
		Type:       req.MimeType,
		Size:       req.Size,
		URL:        req.WebViewLink,
		OwnerID:    userID,
		OwnerEmail: user.Email,
	}); err != nil {
		log.Printf("File mirror error for %s: %v", req.ID, err)
	}

	if token, err := h.ids.GoogleAccessToken(c.Context(), userID); err != nil {
		log.Printf("Failed to sync storage quota for %s: %v", userID, err)
	} else if dc, err := h.newDrive(c.Context(), token); err != nil {
		log.Printf("Failed to sync storage quota for %s: %v", userID, err)
	} else if err := h.syncer.Sync(c.Context(), userID, dc); err != nil {
		log.Printf("Failed to sync storage quota for %s: %v", userID, err)
	}

	return c.JSON(fiber.Map{"success": true})
}
