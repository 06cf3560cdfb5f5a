package middleware

import (
	"strings"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/config"
	"treasury-lghub/internal/pkg/jwt"
	"treasury-lghub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware creates authentication middleware
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var accessToken string

		// Cookie first, Authorization header second
		accessToken = c.Cookies("access_token")
		if accessToken == "" {
			authHeader := c.Get("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				accessToken = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		claims, err := jwt.ValidateAccessToken(accessToken, cfg.JWT.Secret)
		if err != nil {
			if err == jwt.ErrTokenExpired {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("customerID", claims.CustomerID)
		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(string)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// CheckerOnly allows CHECKER or CORPORATE_ADMIN roles
func CheckerOnly() fiber.Handler {
	return RoleMiddleware(models.RoleChecker, models.RoleCorporateAdmin)
}

// AdminOnly allows only the CORPORATE_ADMIN role
func AdminOnly() fiber.Handler {
	return RoleMiddleware(models.RoleCorporateAdmin)
}

// UserID extracts the authenticated user id from the request context.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// CustomerID extracts the authenticated user's customer id.
func CustomerID(c *fiber.Ctx) uint {
	id, _ := c.Locals("customerID").(uint)
	return id
}
