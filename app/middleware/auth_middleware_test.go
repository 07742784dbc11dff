package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/safelink/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hash(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newAuthApp(t *testing.T) *fiber.App {
	t.Helper()
	m := NewAuthMiddleware([]string{hash(t, "bot-key"), " "}, []string{hash(t, "admin-key")})

	app := fiber.New()
	ok := func(c fiber.Ctx) error {
		return c.SendString(c.Locals("api_key_role").(string))
	}
	app.Get("/bot", m.BotAuthenticate(), ok)
	app.Get("/admin", m.AdminAuthenticate(), ok)
	return app
}

func TestAuthMiddleware(t *testing.T) {
	app := newAuthApp(t)

	tests := []struct {
		name       string
		path       string
		key        string
		wantStatus int
		wantBody   string
	}{
		{name: "bot key on bot route", path: "/bot", key: "bot-key", wantStatus: fiber.StatusOK, wantBody: RoleBot},
		{name: "admin key on admin route", path: "/admin", key: "admin-key", wantStatus: fiber.StatusOK, wantBody: RoleAdmin},
		{name: "bot key on admin route", path: "/admin", key: "bot-key", wantStatus: fiber.StatusUnauthorized, wantBody: "INVALID_API_KEY"},
		{name: "missing key", path: "/bot", wantStatus: fiber.StatusUnauthorized, wantBody: "MISSING_API_KEY"},
		{name: "wrong key", path: "/bot", key: "nope", wantStatus: fiber.StatusUnauthorized, wantBody: "INVALID_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set(utils.APIKeyHeader, tt.key)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}

func TestAuthMiddleware_NoConfiguredKeys(t *testing.T) {
	m := NewAuthMiddleware(nil, nil)
	app := fiber.New()
	app.Get("/admin", m.AdminAuthenticate(), func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(utils.APIKeyHeader, "anything")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
