package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/internal/pkg/security"
	"github.com/ManuelReschke/Vahana/internal/pkg/usercontext"
)

type fakeAuth map[string]*models.User

func (f fakeAuth) Authenticate(ctx context.Context, token string) (*models.User, error) {
	switch token {
	case "expired":
		return nil, security.ErrTokenExpired
	case "deleted":
		return nil, gorm.ErrRecordNotFound
	}
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, security.ErrInvalidToken
}

func newApp() *fiber.App {
	auth := fakeAuth{
		"user":     {ID: 1, Email: "user@example.com", Role: models.ROLE_USER},
		"admin":    {ID: 2, Email: "admin@example.com", Role: models.ROLE_ADMIN},
		"verified": {ID: 3, Email: "ci@example.com", Role: models.ROLE_USER, CIHash: "abc"},
	}
	app := fiber.New()
	app.Use(UserContext(auth))
	app.Get("/public", func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	app.Get("/private", RequireAuth, func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	app.Get("/requests", RequireCIVerified, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/admin", RequireAdmin, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func call(t *testing.T, app *fiber.App, path, token string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func TestUserContext(t *testing.T) {
	app := newApp()

	status, body := call(t, app, "/public", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["is_logged_in"])

	status, body = call(t, app, "/public", "user")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["is_logged_in"])
	assert.Equal(t, "user@example.com", body["email"])

	status, body = call(t, app, "/public", "expired")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.EqualValues(t, 1, body["code"])

	status, _ = call(t, app, "/public", "deleted")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestRequireAuthAndAdmin(t *testing.T) {
	app := newApp()

	status, _ := call(t, app, "/private", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := call(t, app, "/private", "user")
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["user_id"])

	status, _ = call(t, app, "/admin", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = call(t, app, "/admin", "user")
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = call(t, app, "/admin", "admin")
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestRequireCIVerified(t *testing.T) {
	app := newApp()

	status, _ := call(t, app, "/requests", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = call(t, app, "/requests", "user")
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = call(t, app, "/requests", "verified")
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestExtractBearerTokenOutlivesRequest(t *testing.T) {
	app := fiber.New()
	var got []string
	app.Get("/", func(c *fiber.Ctx) error {
		got = append(got, extractBearerToken(c))
		return nil
	})
	for _, h := range []string{"Bearer abc", "bearer  abc ", "Basic abc", ""} {
		req := httptest.NewRequest("GET", "/", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		_, err := app.Test(req)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"abc", "abc", "", ""}, got)
}
