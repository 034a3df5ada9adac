// Package gdrive is the thin proxy over the storage provider. Every client
// is built per request from the caller's own OAuth access token; the server
// never holds Drive credentials of its own and is never in the data path
// for upload bytes.
package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// Well-known folder names. Lookups are exact-name matches against
	// non-trashed folders.
	UserFolderName  = "AnimDrive"
	AdminFolderName = "Admin-Secret-Files"

	folderMimeType = "application/vnd.google-apps.folder"

	// UserListFields is the projection for the user dashboard.
	UserListFields = "files(id, name, mimeType, size, webViewLink, thumbnailLink, createdTime)"

	// VaultListFields is the projection for the admin vault.
	VaultListFields = "files(id, name, mimeType, size, createdTime, webViewLink, webContentLink)"

	// UserListPageSize caps the dashboard listing.
	UserListPageSize = 100

	resumableUploadEndpoint = "https://www.googleapis.com/upload/drive/v3/files?uploadType=resumable"
)

// FallbackStorageLimit substitutes a zero/absent provider limit (an
// "unlimited" account) so percentage math never divides by zero.
const FallbackStorageLimit int64 = 15 * 1024 * 1024 * 1024

// StorageQuota is the provider's account-level quota report.
type StorageQuota struct {
	Usage        int64
	Limit        int64
	UsageInDrive int64
	UsageInTrash int64
}

// Client issues Drive calls on behalf of one user.
type Client struct {
	svc         *drive.Service
	accessToken string
	http        *http.Client

	// UploadEndpoint is the resumable-upload session endpoint, overridable
	// in tests.
	UploadEndpoint string
}

// NewClient builds a per-request client from an access token. Extra options
// are passed through to the SDK (tests use option.WithEndpoint).
func NewClient(ctx context.Context, accessToken string, opts ...option.ClientOption) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	all := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	return &Client{
		svc:            svc,
		accessToken:    accessToken,
		http:           &http.Client{Timeout: 30 * time.Second},
		UploadEndpoint: resumableUploadEndpoint,
	}, nil
}

// escapeQueryTerm escapes a literal for interpolation into a Drive search
// query, which delimits strings with single quotes.
func escapeQueryTerm(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// FindFolder resolves a folder by exact name. Returns "" when it does not
// exist.
func (c *Client) FindFolder(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQueryTerm(name), folderMimeType)
	r, err := c.svc.Files.List().Context(ctx).Q(q).Fields("files(id)").Do()
	if err != nil {
		return "", fmt.Errorf("search folder %q: %w", name, err)
	}
	if len(r.Files) == 0 {
		return "", nil
	}
	return r.Files[0].Id, nil
}

// EnsureFolder is a lazy get-or-create with no locking: two concurrent
// first uploads from the same user can race and create duplicate folders.
func (c *Client) EnsureFolder(ctx context.Context, name string) (string, error) {
	id, err := c.FindFolder(ctx, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	f, err := c.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}).Context(ctx).Fields("id").Do()
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return f.Id, nil
}

// ListFolder returns the non-trashed children of a folder with the given
// projection. pageSize and orderBy are applied when non-zero.
func (c *Client) ListFolder(ctx context.Context, folderID, fields string, pageSize int64, orderBy string) ([]*drive.File, error) {
	call := c.svc.Files.List().Context(ctx).
		Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
		Fields(googleapi.Field(fields))
	if pageSize > 0 {
		call = call.PageSize(pageSize)
	}
	if orderBy != "" {
		call = call.OrderBy(orderBy)
	}
	r, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}
	return r.Files, nil
}

// DeleteFile deletes by id. Irrecoverable from this app's perspective; the
// provider's trash semantics apply.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	return nil
}

// Quota fetches the account-level quota report.
func (c *Client) Quota(ctx context.Context) (*StorageQuota, error) {
	about, err := c.svc.About.Get().Context(ctx).Fields("storageQuota").Do()
	if err != nil {
		return nil, fmt.Errorf("fetch storage quota: %w", err)
	}
	q := about.StorageQuota
	if q == nil {
		return &StorageQuota{}, nil
	}
	return &StorageQuota{
		Usage:        q.Usage,
		Limit:        q.Limit,
		UsageInDrive: q.UsageInDrive,
		UsageInTrash: q.UsageInDriveTrash,
	}, nil
}

// StartResumableUpload opens a resumable upload session and returns the
// provider-issued session URL. The browser pushes the bytes directly to
// that URL. The SDK performs resumable uploads internally but never exposes
// the session URL, so this talks to the upload endpoint directly.
func (c *Client) StartResumableUpload(ctx context.Context, folderID, name, mimeType string, size int64) (string, error) {
	meta := map[string]any{
		"name":     name,
		"mimeType": mimeType,
		"parents":  []string{folderID},
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal upload metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Upload-Content-Type", mimeType)
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("initiate upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("failed to initiate upload: %s", string(msg))
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", errors.New("upload session URL missing from provider response")
	}
	return loc, nil
}

// FileMeta fetches the metadata needed to stream a download.
func (c *Client) FileMeta(ctx context.Context, fileID string) (*drive.File, error) {
	f, err := c.svc.Files.Get(fileID).Context(ctx).Fields("id, name, mimeType, size").Do()
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}
	return f, nil
}

// Download fetches file content. The caller owns the response body.
func (c *Client) Download(ctx context.Context, fileID string) (*http.Response, error) {
	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	return resp, nil
}

// ErrorMessage extracts the provider's message where safely disclosable,
// falling back to the Go error text.
func ErrorMessage(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}
	return err.Error()
}
