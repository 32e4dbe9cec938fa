package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Vahana/internal/pkg/accounts"
)

// AccountController serves sign up, login and the account of the caller.
type AccountController struct {
	accounts *accounts.Service
}

func NewAccountController(s *Services) *AccountController {
	return &AccountController{accounts: s.Accounts}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type sendCodeRequest struct {
	Type        string `json:"type" validate:"required,oneof=email mobile"`
	Target      string `json:"target" validate:"required"`
	CheckUnique bool   `json:"check_unique"`
}

type verifyCodeRequest struct {
	Type   string `json:"type" validate:"required,oneof=email mobile"`
	Target string `json:"target" validate:"required"`
	Code   string `json:"verification_code" validate:"required"`
}

type identityRequest struct {
	IdentityCode string `json:"identity_code" validate:"required"`
}

func (ac *AccountController) HandleSignUp(c *fiber.Ctx) error {
	var in accounts.SignUpInput
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	sess, err := ac.accounts.SignUp(c.UserContext(), in)
	if err != nil {
		return HandleError(c, err)
	}
	log.Infof("[Accounts] Signed up user %d", sess.User.ID)
	return Success(c, fiber.StatusCreated, "signed up", sess)
}

func (ac *AccountController) HandleLogin(c *fiber.Ctx) error {
	var in loginRequest
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	sess, err := ac.accounts.Login(c.UserContext(), in.Email, in.Password)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "logged in", sess)
}

func (ac *AccountController) HandleRefresh(c *fiber.Ctx) error {
	var in refreshRequest
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	sess, err := ac.accounts.Refresh(c.UserContext(), in.RefreshToken)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "token refreshed", sess)
}

func (ac *AccountController) HandleGet(c *fiber.Ctx) error {
	sess, err := ac.accounts.Get(c.UserContext(), currentUserID(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "account", sess)
}

func (ac *AccountController) HandleUpdate(c *fiber.Ctx) error {
	var in accounts.UpdateInput
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	u, err := ac.accounts.Update(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "account updated", fiber.Map{"user": u})
}

func (ac *AccountController) HandleWithdraw(c *fiber.Ctx) error {
	if err := ac.accounts.Withdraw(c.UserContext(), currentUserID(c)); err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "account deleted", nil)
}

func (ac *AccountController) HandleCheckEmail(c *fiber.Ctx) error {
	var in emailRequest
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	if err := ac.accounts.CheckEmail(c.UserContext(), in.Email); err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "email available", nil)
}

func (ac *AccountController) HandleSendCode(c *fiber.Ctx) error {
	var in sendCodeRequest
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	if err := ac.accounts.SendVerification(c.UserContext(), in.Type, in.Target, in.CheckUnique); err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "verification code sent", nil)
}

func (ac *AccountController) HandleVerifyCode(c *fiber.Ctx) error {
	var in verifyCodeRequest
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	if err := ac.accounts.CheckVerification(c.UserContext(), in.Type, in.Target, in.Code); err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "verified", nil)
}

func (ac *AccountController) HandleResetPassword(c *fiber.Ctx) error {
	var in accounts.ResetInput
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	sess, err := ac.accounts.ResetPassword(c.UserContext(), in)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "password reset", sess)
}

// HandleVerifyIdentity attaches a PortOne identity verification to the caller.
func (ac *AccountController) HandleVerifyIdentity(c *fiber.Ctx) error {
	var in identityRequest
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	sess, err := ac.accounts.VerifyIdentity(c.UserContext(), currentUserID(c), in.IdentityCode)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "identity verified", sess)
}
