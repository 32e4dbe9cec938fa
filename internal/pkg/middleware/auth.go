package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/controllers"
	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/internal/pkg/usercontext"
)

// Authenticator resolves an access token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// UserContext resolves the bearer token of every request. Requests without
// a token continue anonymously; a bad token is rejected right away so
// clients know to refresh.
func UserContext(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		user, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return controllers.Fail(c, fiber.StatusUnauthorized, "unknown user", nil)
			}
			return controllers.HandleError(c, err)
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:     user.ID,
			Email:      user.Email,
			IsLoggedIn: true,
			IsAdmin:    user.IsAdmin(),
			CIVerified: user.IsCIVerified(),
		})
		return c.Next()
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return controllers.Fail(c, fiber.StatusUnauthorized, "login required", nil)
	}
	return c.Next()
}

// RequireAdmin rejects anonymous requests with 401 and non admins with 403.
func RequireAdmin(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return controllers.Fail(c, fiber.StatusUnauthorized, "login required", nil)
	}
	if !uc.IsAdmin {
		return controllers.Fail(c, fiber.StatusForbidden, "admin only", nil)
	}
	return c.Next()
}

// RequireCIVerified lets only identity verified users file requests.
func RequireCIVerified(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return controllers.Fail(c, fiber.StatusUnauthorized, "login required", nil)
	}
	if !uc.CIVerified {
		return controllers.Fail(c, fiber.StatusForbidden, "identity verification required", nil)
	}
	return c.Next()
}

// extractBearerToken copies the token out of the header; fiber reuses the
// request buffer once the handler returns.
func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return utils.CopyString(strings.TrimSpace(auth[7:]))
	}
	return ""
}
