// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/amirphl/raiot-portal/app/dto"
	"github.com/amirphl/raiot-portal/app/services"
	"github.com/gofiber/fiber/v3"
)

// Locals keys set by the auth middleware
const (
	LocalsTokenClaims = "token_claims"
	LocalsSubject     = "subject"
	LocalsRequestID   = "request_id"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate accepts any valid bearer token
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return m.authenticate(m.tokenService.ValidateToken)
}

// AdminAuthenticate accepts only bearer tokens carrying role=admin
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return m.authenticate(m.tokenService.ValidateAdminToken)
}

func (m *AuthMiddleware) authenticate(validate func(string) (*services.TokenClaims, error)) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, fiber.StatusUnauthorized, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, fiber.StatusUnauthorized, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, fiber.StatusUnauthorized, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		claims, err := validate(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, fiber.StatusUnauthorized, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenForbidden):
				return unauthorized(c, fiber.StatusForbidden, "Admin role is required", "ADMIN_ROLE_REQUIRED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, fiber.StatusUnauthorized, "Invalid access token", "TOKEN_INVALID")
			default:
				return unauthorized(c, fiber.StatusUnauthorized, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		c.Locals(LocalsSubject, claims.Subject)
		c.Locals(LocalsTokenClaims, claims)

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals(LocalsRequestID, requestID)
		}

		return c.Next()
	}
}

// RequireMemberOwner must run after Authenticate. It lets a request through only
// when the token subject is the member named by the param route parameter, or
// when the token carries role=admin.
func (m *AuthMiddleware) RequireMemberOwner(param string) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := GetTokenClaimsFromContext(c)
		if !ok {
			return unauthorized(c, fiber.StatusUnauthorized, "Authentication is required", "MISSING_ACCESS_TOKEN")
		}
		if claims.Role == services.RoleAdmin {
			return c.Next()
		}

		target, err := strconv.ParseUint(c.Params(param), 10, 64)
		if err != nil {
			// malformed ids are rejected by the handler
			return c.Next()
		}
		subject, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || subject != target {
			return unauthorized(c, fiber.StatusForbidden, "You can only access your own profile", "MEMBER_ACCESS_DENIED")
		}
		return c.Next()
	}
}

func unauthorized(c fiber.Ctx, status int, message, code string) error {
	return c.Status(status).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(LocalsTokenClaims).(*services.TokenClaims)
	return claims, ok
}
