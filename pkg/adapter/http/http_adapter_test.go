package httpadapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

func TestNew_Defaults(t *testing.T) {
	a, err := New(Config{Port: 8080}, TokenConfig{Secret: []byte(testSecret)}, nil)
	require.NoError(t, err)

	assert.Equal(t, "HTTP", a.Protocol())
	assert.Equal(t, 8080, a.Port())
	assert.Equal(t, 5*time.Minute, a.config.ReadTimeout)
	assert.Equal(t, 30*time.Second, a.config.ShutdownTimeout)
	assert.Equal(t, 24*time.Hour, a.tokens.ttl)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Port: 70000}, TokenConfig{Secret: []byte(testSecret)}, nil)
	assert.Error(t, err)

	_, err = New(Config{}, TokenConfig{Secret: []byte("short")}, nil)
	assert.ErrorContains(t, err, "at least")
}

func TestServe_RequiresRegistry(t *testing.T) {
	a, err := New(Config{}, TokenConfig{Secret: []byte(testSecret)}, nil)
	require.NoError(t, err)

	assert.Error(t, a.Serve(context.Background()))
}

func TestServe_Lifecycle(t *testing.T) {
	api := newTestAPI(t)
	a := api.adapter

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	select {
	case <-a.Ready():
	case err := <-done:
		t.Fatalf("Serve returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener not ready")
	}
	require.NotZero(t, a.Port())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", a.Port()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	// Stop after shutdown is a no-op
	assert.NoError(t, a.Stop(context.Background()))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code metadata.ErrorCode
		want int
	}{
		{metadata.ErrNotFound, http.StatusNotFound},
		{metadata.ErrForbidden, http.StatusForbidden},
		{metadata.ErrBlocked, http.StatusForbidden},
		{metadata.ErrValidation, http.StatusBadRequest},
		{metadata.ErrSelfReference, http.StatusBadRequest},
		{metadata.ErrQuotaExceeded, http.StatusRequestEntityTooLarge},
		{metadata.ErrAlreadyExists, http.StatusConflict},
		{metadata.ErrAlreadyFriends, http.StatusConflict},
		{metadata.ErrDuplicateRequest, http.StatusConflict},
		{metadata.ErrUnauthenticated, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.code))
		})
	}
}

func TestAbortWithError_HidesInfrastructureErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	abortWithError(c, fmt.Errorf("disk on fire: %w", context.DeadlineExceeded))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

type recordingHTTPMetrics struct {
	routes []string
}

func (m *recordingHTTPMetrics) RecordRequest(method, route string, status int, _ time.Duration) {
	m.routes = append(m.routes, fmt.Sprintf("%s %s %d", method, route, status))
}
func (m *recordingHTTPMetrics) RecordRequestStart() {}
func (m *recordingHTTPMetrics) RecordRequestEnd()   {}

func TestMetricsUseRoutePatterns(t *testing.T) {
	api := newTestAPI(t)
	m := &recordingHTTPMetrics{}
	a, err := New(Config{}, TokenConfig{Secret: []byte(testSecret)}, m)
	require.NoError(t, err)
	a.SetRegistry(api.reg)
	api.adapter = a

	alice := api.signup("alice")
	api.do(http.MethodGet, "/api/v1/files/does-not-exist", alice.Token, nil)

	assert.Contains(t, m.routes, "GET /api/v1/files/:id 404")
}

func TestAuthRateLimit(t *testing.T) {
	api := newTestAPI(t)
	a, err := New(Config{AuthRateLimit: RateLimitConfig{RequestsPerMinute: 1, Burst: 2}},
		TokenConfig{Secret: []byte(testSecret)}, nil)
	require.NoError(t, err)
	a.SetRegistry(api.reg)
	api.adapter = a

	login := map[string]string{"username": "admin", "password": "wrong-password"}
	for i := 0; i < 2; i++ {
		rec := api.do(http.MethodPost, "/api/v1/auth/login", "", login)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := api.do(http.MethodPost, "/api/v1/auth/login", "", login)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other routes are not throttled
	rec = api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
