package usercontext

import "github.com/gofiber/fiber/v2"

// Key is the Locals key the auth middleware stores the context under.
const Key = "USER_CONTEXT"

// UserContext represents the authenticated caller of a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	CIVerified bool   `json:"ci_verified"`
}

// GetUserContext retrieves the user context from fiber context
// Returns an anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(Key).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// Set stores the user context for the rest of the request
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(Key, uc)
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// IsCIVerified reports whether the caller finished identity verification
func IsCIVerified(c *fiber.Ctx) bool {
	return GetUserContext(c).CIVerified
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
