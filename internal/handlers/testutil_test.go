package handlers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/animdrive/backend/internal/gdrive"
	"github.com/animdrive/backend/internal/identity"
	"github.com/animdrive/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// fakeIdentity is an in-memory identity.Client. Metadata patches merge into
// the stored record the way the provider's metadata endpoint does.
type fakeIdentity struct {
	mu      sync.Mutex
	users   map[string]*identity.User
	tokens  map[string]string
	patches []patchCall
	created []identity.CreateUserParams
	updated []string
	deleted []string

	usersErr  error
	patchErr  error
	createErr error
}

type patchCall struct {
	userID string
	patch  map[string]any
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		users:  make(map[string]*identity.User),
		tokens: make(map[string]string),
	}
}

func (f *fakeIdentity) addUser(u *identity.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeIdentity) User(ctx context.Context, id string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeIdentity) Users(ctx context.Context, limit int64) ([]*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	out := make([]*identity.User, 0, len(f.users))
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
		if int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeIdentity) PatchMetadata(ctx context.Context, id string, patch map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patches = append(f.patches, patchCall{userID: id, patch: patch})
	if u, ok := f.users[id]; ok {
		// Shallow merge via JSON round-trip, mirroring provider semantics.
		raw, err := json.Marshal(patch)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &u.Meta); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeIdentity) CreateUser(ctx context.Context, p identity.CreateUserParams) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, p)
	u := &identity.User{
		ID:        fmt.Sprintf("user_%d", len(f.created)),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		CreatedAt: time.Now().UTC(),
	}
	raw, _ := json.Marshal(p.Meta)
	json.Unmarshal(raw, &u.Meta)
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeIdentity) UpdateUser(ctx context.Context, id string, p identity.UpdateUserParams) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	f.updated = append(f.updated, id)
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Meta != nil {
		u.Meta = identity.Metadata{}
		raw, _ := json.Marshal(p.Meta)
		json.Unmarshal(raw, &u.Meta)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeIdentity) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	delete(f.users, id)
	return nil
}

func (f *fakeIdentity) GoogleAccessToken(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[id]
	if !ok {
		return "", identity.ErrNotConnected
	}
	return tok, nil
}

func (f *fakeIdentity) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

func (f *fakeIdentity) lastPatch() (string, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.patches) == 0 {
		return "", nil
	}
	p := f.patches[len(f.patches)-1]
	return p.userID, p.patch
}

// sessionEnv is a test app plus the means to mint valid session tokens.
type sessionEnv struct {
	app  *fiber.App
	priv *rsa.PrivateKey
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &sessionEnv{app: fiber.New(), priv: priv}
}

func (e *sessionEnv) gate() fiber.Handler {
	return middleware.SessionAuth(&e.priv.PublicKey)
}

func (e *sessionEnv) bearer(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(e.priv)
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &out), "body: %s", body)
	}
	return resp.StatusCode, out
}

// driveServerState drives the fake storage provider used by handler tests.
type driveServerState struct {
	folders     map[string]string
	quotaUsage  int64
	quotaLimit  int64
	quotaFails  bool
	deleted     []string
	deleteFails bool

	fileName    string
	fileMime    string
	fileContent string
}

func newDriveFactory(t *testing.T, state *driveServerState) DriveFactory {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query().Get("q")
			for name, id := range state.folders {
				if containsAll(q, "name = '"+name+"'", "application/vnd.google-apps.folder") {
					json.NewEncoder(w).Encode(map[string]any{
						"files": []map[string]string{{"id": id}},
					})
					return
				}
			}
			if containsAll(q, "in parents") {
				json.NewEncoder(w).Encode(map[string]any{
					"files": []map[string]string{
						{"id": "file-1", "name": "cat.png", "mimeType": "image/png", "size": "2048"},
					},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"files": []any{}})
		case http.MethodPost:
			var body struct {
				Name string `json:"name"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			id := "created-" + body.Name
			state.folders[body.Name] = id
			json.NewEncoder(w).Encode(map[string]string{"id": id})
		}
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			if state.deleteFails {
				http.Error(w, `{"error": {"message": "delete failed"}}`, http.StatusInternalServerError)
				return
			}
			state.deleted = append(state.deleted, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			if r.URL.Query().Get("alt") == "media" {
				w.Header().Set("Content-Type", state.fileMime)
				w.Write([]byte(state.fileContent))
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"id":       strings.TrimPrefix(r.URL.Path, "/files/"),
				"name":     state.fileName,
				"mimeType": state.fileMime,
				"size":     fmt.Sprintf("%d", len(state.fileContent)),
			})
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		if state.quotaFails {
			http.Error(w, `{"error": {"message": "quota unavailable"}}`, http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"storageQuota": map[string]string{
				"usage": fmt.Sprintf("%d", state.quotaUsage),
				"limit": fmt.Sprintf("%d", state.quotaLimit),
			},
		})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://upload.example.com/session/xyz")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return func(ctx context.Context, accessToken string) (*gdrive.Client, error) {
		c, err := gdrive.NewClient(ctx, accessToken, option.WithEndpoint(srv.URL))
		if err != nil {
			return nil, err
		}
		c.UploadEndpoint = srv.URL + "/upload"
		return c, nil
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
