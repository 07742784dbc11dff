// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"strings"

	"github.com/amirphl/safelink/app/dto"
	"github.com/amirphl/safelink/utils"
	"github.com/gofiber/fiber/v3"
	"golang.org/x/crypto/bcrypt"
)

// API key roles stored in c.Locals("api_key_role")
const (
	RoleBot   = "bot"
	RoleAdmin = "admin"
)

// AuthMiddleware checks the X-API-Key header against bcrypt hashes from the configuration
type AuthMiddleware struct {
	botHashes   [][]byte
	adminHashes [][]byte
}

// NewAuthMiddleware creates a new authentication middleware. Empty hashes are ignored.
func NewAuthMiddleware(botHashes, adminHashes []string) *AuthMiddleware {
	return &AuthMiddleware{
		botHashes:   toHashes(botHashes),
		adminHashes: toHashes(adminHashes),
	}
}

// BotAuthenticate protects the endpoints used by the issuing bot
func (m *AuthMiddleware) BotAuthenticate() fiber.Handler {
	return m.authenticate(RoleBot, m.botHashes)
}

// AdminAuthenticate protects the admin endpoints
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return m.authenticate(RoleAdmin, m.adminHashes)
}

func (m *AuthMiddleware) authenticate(role string, hashes [][]byte) fiber.Handler {
	return func(c fiber.Ctx) error {
		key := strings.TrimSpace(c.Get(utils.APIKeyHeader))
		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "API key is required",
				Error:   dto.ErrorDetail{Code: "MISSING_API_KEY"},
			})
		}

		if !matchesAny(hashes, key) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid API key",
				Error:   dto.ErrorDetail{Code: "INVALID_API_KEY"},
			})
		}

		c.Locals("api_key_role", role)
		return c.Next()
	}
}

func matchesAny(hashes [][]byte, key string) bool {
	for _, h := range hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return true
		}
	}
	return false
}

func toHashes(values []string) [][]byte {
	hashes := make([][]byte, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			hashes = append(hashes, []byte(v))
		}
	}
	return hashes
}
