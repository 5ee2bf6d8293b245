package middleware

import (
	"strings"

	"quiztube/internal/domain"
	"quiztube/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	AuthorizationHeader = "Authorization"
	BearerSchema        = "Bearer "
	UserIDKey           = "userID" // Key for storing UserID in fiber.Ctx locals
)

// Protected requires a valid bearer token and stores the caller's user id in the context.
func Protected(authService service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(AuthorizationHeader)
		if authHeader == "" {
			return domain.NewUnauthorizedError("Authorization header is missing")
		}
		if !strings.HasPrefix(authHeader, BearerSchema) {
			return domain.NewUnauthorizedError("Authorization scheme is not Bearer")
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerSchema))
		if tokenString == "" {
			return domain.NewUnauthorizedError("Token is empty")
		}

		claims, err := authService.ValidateJWT(c.UserContext(), tokenString)
		if err != nil {
			return domain.NewError(domain.ErrUnauthorized, "Invalid or expired token", err)
		}

		c.Locals(UserIDKey, claims.UserIDFromClaims())
		return c.Next()
	}
}

// UserID returns the authenticated user id set by Protected.
func UserID(c *fiber.Ctx) (string, error) {
	userID, ok := c.Locals(UserIDKey).(string)
	if !ok || userID == "" {
		return "", domain.NewUnauthorizedError("User not authenticated")
	}
	return userID, nil
}
