package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventattendance/backend/foundation/web"
	"eventattendance/backend/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newApp(t *testing.T, logs io.Writer) (*web.App, *auth.Auth) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a, err := auth.New(testKey, time.Hour)
	require.NoError(t, err)

	logger := log.New(logs, "", 0)
	app := web.NewApp(logger, Logger(logger), Panics(logger))

	whoami := func(c *web.Context) error {
		claims, _ := auth.FromContext(c.Ctx)
		return c.Respond(map[string]interface{}{"user_id": claims.UserId}, http.StatusOK)
	}

	app.Get("/any", whoami, Authenticate(a))
	app.Get("/staff", whoami, Authenticate(a, auth.RoleAdmin, auth.RoleReader))
	app.Get("/panic", func(c *web.Context) error { panic("boom") })

	return app, a
}

func get(app *web.App, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	app, a := newApp(t, io.Discard)
	now := time.Now()

	member, err := a.GenerateToken(7, auth.RoleMember, now)
	require.NoError(t, err)
	reader, err := a.GenerateToken(2, auth.RoleReader, now)
	require.NoError(t, err)
	expired, err := a.GenerateToken(2, auth.RoleReader, now.Add(-2*time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"no header", "/any", "", http.StatusUnauthorized},
		{"garbage", "/any", "not-a-token", http.StatusUnauthorized},
		{"expired", "/any", expired, http.StatusUnauthorized},
		{"any role", "/any", member, http.StatusOK},
		{"wrong role", "/staff", member, http.StatusForbidden},
		{"right role", "/staff", reader, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(app, tt.path, tt.token)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := get(app, "/any", member)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(7), body["user_id"])
}

func TestPanics(t *testing.T) {
	var logs bytes.Buffer
	app, _ := newApp(t, &logs)

	rec := get(app, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal", body["kind"])
	assert.Contains(t, logs.String(), "PANIC : boom")
	assert.Contains(t, logs.String(), "GET /panic -> 500")
}

func TestCorsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	app := web.NewApp(log.New(io.Discard, "", 0))
	app.Use(CorsMiddleware([]string{"https://reader.example.com"}))
	app.Get("/ping", func(c *web.Context) error {
		return c.Respond(map[string]interface{}{"status": true}, http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://reader.example.com")
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	assert.Equal(t, "https://reader.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
