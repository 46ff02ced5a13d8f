package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/devstudio/internal/config"
	"github.com/example/devstudio/internal/models"
	"github.com/example/devstudio/internal/utils"
)

const (
	// SessionCookie is the name of the HTTP-only session cookie.
	SessionCookie = "token"

	userContextKey = "currentUserID"
)

// AuthMiddleware validates the session token and loads the authenticated
// user ID into the request context. The token is read from the session
// cookie, with an Authorization bearer header as fallback for API clients.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(SessionCookie)
		if tokenString == "" {
			authHeader := c.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "not authorized, please login")
		}

		userID, err := utils.ParseToken(cfg.JWTSecret, tokenString)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "not authorized, please login again")
		}

		c.Locals(userContextKey, userID)
		return c.Next()
	}
}

// AdminOnly allows only users holding the admin role past it. It must run
// after AuthMiddleware.
func AdminOnly(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := GetCurrentUserID(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "not authorized, please login")
		}

		var user models.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "not authorized, please login")
			}
			return err
		}

		if !user.IsAdmin() {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}

		return c.Next()
	}
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return uuid.Nil, false
	}

	if id, ok := value.(uuid.UUID); ok {
		return id, true
	}

	return uuid.Nil, false
}
