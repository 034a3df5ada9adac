package gdrive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// fakeDrive emulates the handful of provider endpoints the proxy touches.
type fakeDrive struct {
	folders map[string]string // name -> id
	created int
}

func (f *fakeDrive) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query().Get("q")
			if strings.Contains(q, "mimeType = 'application/vnd.google-apps.folder'") {
				for name, id := range f.folders {
					if strings.Contains(q, "name = '"+name+"'") {
						json.NewEncoder(w).Encode(map[string]any{
							"files": []map[string]string{{"id": id}},
						})
						return
					}
				}
				json.NewEncoder(w).Encode(map[string]any{"files": []any{}})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"files": []map[string]string{
					{"id": "file-1", "name": "a.png", "mimeType": "image/png", "size": "1024"},
				},
			})
		case http.MethodPost:
			var body struct {
				Name string `json:"name"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			f.created++
			id := "created-" + body.Name
			f.folders[body.Name] = id
			json.NewEncoder(w).Encode(map[string]string{"id": id})
		}
	})

	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://upload.example.com/session/abc")
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func newTestClient(t *testing.T, f *fakeDrive) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "test-token", option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	c.UploadEndpoint = srv.URL + "/upload"
	return c, srv
}

func TestFindFolderAbsent(t *testing.T) {
	c, _ := newTestClient(t, &fakeDrive{folders: map[string]string{}})

	id, err := c.FindFolder(context.Background(), UserFolderName)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestFindFolderPresent(t *testing.T) {
	c, _ := newTestClient(t, &fakeDrive{folders: map[string]string{UserFolderName: "folder-9"}})

	id, err := c.FindFolder(context.Background(), UserFolderName)
	require.NoError(t, err)
	assert.Equal(t, "folder-9", id)
}

func TestFindFolderEscapesName(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		json.NewEncoder(w).Encode(map[string]any{"files": []any{}})
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "test-token", option.WithEndpoint(srv.URL))
	require.NoError(t, err)

	_, err = c.FindFolder(context.Background(), `Bob's \Files`)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, `name = 'Bob\'s \\Files'`)
}

func TestEnsureFolderCreatesOnce(t *testing.T) {
	f := &fakeDrive{folders: map[string]string{}}
	c, _ := newTestClient(t, f)

	id, err := c.EnsureFolder(context.Background(), AdminFolderName)
	require.NoError(t, err)
	assert.Equal(t, "created-"+AdminFolderName, id)
	assert.Equal(t, 1, f.created)

	// Second call finds the existing folder.
	id2, err := c.EnsureFolder(context.Background(), AdminFolderName)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.Equal(t, 1, f.created)
}

func TestListFolder(t *testing.T) {
	c, _ := newTestClient(t, &fakeDrive{folders: map[string]string{}})

	files, err := c.ListFolder(context.Background(), "folder-9", UserListFields, UserListPageSize, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "file-1", files[0].Id)
	assert.Equal(t, int64(1024), files[0].Size)
}

func TestStartResumableUploadReturnsSessionURL(t *testing.T) {
	c, _ := newTestClient(t, &fakeDrive{folders: map[string]string{}})

	url, err := c.StartResumableUpload(context.Background(), "folder-9", "cat.png", "image/png", 2048)
	require.NoError(t, err)
	assert.Equal(t, "https://upload.example.com/session/abc", url)
}

func TestStartResumableUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "test-token", option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	c.UploadEndpoint = srv.URL

	_, err = c.StartResumableUpload(context.Background(), "folder-9", "cat.png", "image/png", 2048)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initiate upload")
}
