package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/Vahana/internal/pkg/accounts"
	"github.com/ManuelReschke/Vahana/internal/pkg/oauth"
)

// OAuthController runs the social login redirect flow.
type OAuthController struct {
	accounts *accounts.Service
}

func NewOAuthController(s *Services) *OAuthController {
	return &OAuthController{accounts: s.Accounts}
}

// HandleBegin redirects to the provider named in the :provider param
func (oc *OAuthController) HandleBegin(c *fiber.Ctx) error {
	if err := gothfiber.BeginAuthHandler(c); err != nil {
		return Fail(c, fiber.StatusBadRequest, "unsupported provider", nil)
	}
	return nil
}

// HandleCallback completes the provider flow and answers with app tokens
func (oc *OAuthController) HandleCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warnf("[OAuth] %s callback failed: %v", c.Params("provider"), err)
		return Fail(c, fiber.StatusBadRequest, "oauth failed", nil)
	}

	profile, err := oauth.FromGothUser(u)
	if err != nil {
		return HandleError(c, err)
	}
	sess, err := oc.accounts.LoginWithProfile(c.UserContext(), profile)
	if err != nil {
		return HandleError(c, err)
	}

	status := fiber.StatusOK
	if sess.IsCreated {
		status = fiber.StatusCreated
	}
	return Success(c, status, "logged in with "+profile.Provider, sess)
}
