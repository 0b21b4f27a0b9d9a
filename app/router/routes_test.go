package router

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/raiot-portal/app/middleware"
	"github.com/amirphl/raiot-portal/app/services"
	"github.com/amirphl/raiot-portal/config"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

type stubHandlers struct{}

func (stubHandlers) ok(name string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"handler": name, "id": c.Params("id")})
	}
}

func (s stubHandlers) Register(c fiber.Ctx) error       { return s.ok("register")(c) }
func (s stubHandlers) GetProfile(c fiber.Ctx) error     { return s.ok("get_profile")(c) }
func (s stubHandlers) UpdateProfile(c fiber.Ctx) error  { return s.ok("update_profile")(c) }
func (s stubHandlers) Status(c fiber.Ctx) error         { return s.ok("status")(c) }
func (s stubHandlers) Reconcile(c fiber.Ctx) error      { return s.ok("reconcile")(c) }
func (s stubHandlers) AssignUniqueID(c fiber.Ctx) error { return s.ok("assign")(c) }
func (s stubHandlers) ExportMembers(c fiber.Ctx) error  { return s.ok("export")(c) }

func newTestRouter(t *testing.T) *fiber.App {
	t.Helper()
	tokens, err := services.NewTokenService("raiot-auth", "raiot-portal", false, "", testSecret)
	require.NoError(t, err)

	cfg := &config.Config{
		Server:     config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Metrics:    config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Deployment: config.DeploymentConfig{Version: "test"},
	}
	stub := stubHandlers{}
	r := NewFiberRouter(Handlers{
		Profile:        stub,
		UniqueIDAdmin:  stub,
		MemberExport:   stub,
		AuthMiddleware: middleware.NewAuthMiddleware(tokens),
	}, cfg, log.New(io.Discard, "", 0))
	r.SetupRoutes()
	return r.GetApp()
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "9",
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
		"iss":  "raiot-auth",
		"aud":  "raiot-portal",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRoutes(t *testing.T) {
	app := newTestRouter(t)

	tests := []struct {
		name        string
		method      string
		path        string
		auth        string
		wantStatus  int
		wantHandler string
	}{
		{"health", "GET", "/health", "", fiber.StatusOK, ""},
		{"api health", "GET", "/api/v1/health", "", fiber.StatusOK, ""},
		{"register is public", "POST", "/api/v1/members", "", fiber.StatusOK, "register"},
		{"profile needs a token", "GET", "/api/v1/members/4/profile", "", fiber.StatusUnauthorized, ""},
		{"own profile", "GET", "/api/v1/members/9/profile", "member", fiber.StatusOK, "get_profile"},
		{"update own profile", "PUT", "/api/v1/members/9/profile", "member", fiber.StatusOK, "update_profile"},
		{"another member's profile", "GET", "/api/v1/members/4/profile", "member", fiber.StatusForbidden, ""},
		{"update another member's profile", "PUT", "/api/v1/members/4/profile", "member", fiber.StatusForbidden, ""},
		{"admin reads any profile", "GET", "/api/v1/members/4/profile", "admin", fiber.StatusOK, "get_profile"},
		{"admin status without token", "GET", "/api/v1/admin/unique-id/status", "", fiber.StatusUnauthorized, ""},
		{"admin status with member token", "GET", "/api/v1/admin/unique-id/status", "member", fiber.StatusForbidden, ""},
		{"admin status", "GET", "/api/v1/admin/unique-id/status", "admin", fiber.StatusOK, "status"},
		{"admin reconcile", "POST", "/api/v1/admin/unique-id/reconcile", "admin", fiber.StatusOK, "reconcile"},
		{"admin assign", "POST", "/api/v1/admin/members/4/unique-id", "admin", fiber.StatusOK, "assign"},
		{"admin export", "GET", "/api/v1/admin/members/export", "admin", fiber.StatusOK, "export"},
		{"unknown route", "GET", "/api/v1/nope", "", fiber.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", bearer(t, tt.auth))
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

			if tt.wantHandler == "" {
				return
			}
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantHandler, body["handler"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestRouter(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/health", nil))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "raiot_http_requests_total"))
}
