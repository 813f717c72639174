package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	memcontent "github.com/marmos91/mozaichub/pkg/content/memory"
	"github.com/marmos91/mozaichub/pkg/gc"
	"github.com/marmos91/mozaichub/pkg/identity"
	"github.com/marmos91/mozaichub/pkg/library"
	"github.com/marmos91/mozaichub/pkg/metadata/memory"
	"github.com/marmos91/mozaichub/pkg/registry"
)

const (
	testSecret        = "0123456789abcdef0123456789abcdef"
	testAdminPassword = "administrator-password"
	testMaxUpload     = 64 << 10
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	t       *testing.T
	adapter *HTTPAdapter
	reg     *registry.Registry
}

type session struct {
	ID    string
	Token string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()

	contentStore, err := memcontent.NewMemoryContentStore(ctx)
	require.NoError(t, err)

	reg, err := registry.New(memory.NewMemoryMetadataStore(), contentStore, nil, registry.Options{
		Hasher: identity.NewBcryptHasher(4),
		Identity: identity.Config{
			DefaultQuota: 1 << 20,
			FirstAdmin: identity.AdminSeed{
				Username: "admin",
				Password: testAdminPassword,
			},
		},
		Library:  library.Config{MaxUploadSize: testMaxUpload},
		Deletion: gc.Config{Grace: time.Hour},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	_, _, err = reg.Identity.EnsureFirstAdmin(ctx)
	require.NoError(t, err)

	a, err := New(Config{}, TokenConfig{Secret: []byte(testSecret)}, nil)
	require.NoError(t, err)
	a.SetRegistry(reg)

	return &testAPI{t: t, adapter: a, reg: reg}
}

// do sends a JSON request. body may be nil.
func (api *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	api.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(api.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return api.serve(req, token)
}

func (api *testAPI) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.adapter.Handler().ServeHTTP(rec, req)
	return rec
}

// upload posts a multipart file with the given form fields.
func (api *testAPI) upload(token, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	api.t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(api.t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", filename)
	require.NoError(api.t, err)
	_, err = part.Write(data)
	require.NoError(api.t, err)
	require.NoError(api.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return api.serve(req, token)
}

// signup registers a user and returns their session.
func (api *testAPI) signup(username string) session {
	api.t.Helper()

	rec := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password-" + username,
	})
	require.Equal(api.t, http.StatusCreated, rec.Code, rec.Body.String())

	var tok struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(api.t, rec, &tok)
	return session{ID: tok.User.ID, Token: tok.Token}
}

func (api *testAPI) loginAdmin() session {
	api.t.Helper()

	rec := api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": testAdminPassword,
	})
	require.Equal(api.t, http.StatusOK, rec.Code, rec.Body.String())

	var tok struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(api.t, rec, &tok)
	return session{ID: tok.User.ID, Token: tok.Token}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decode(t, rec, &body)
	return body.Error.Code
}
