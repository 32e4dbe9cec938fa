package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Vahana/app/controllers"
	"github.com/ManuelReschke/Vahana/internal/pkg/hcaptcha"
)

// CaptchaHeader carries the token the client widget produced.
const CaptchaHeader = "X-Captcha-Token"

type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// RequireCaptcha checks the captcha token before the handler runs. A nil
// verifier turns the check off.
func RequireCaptcha(v CaptchaVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if v == nil {
			return c.Next()
		}
		err := v.Verify(c.UserContext(), c.Get(CaptchaHeader), controllers.ClientIP(c))
		switch {
		case err == nil:
			return c.Next()
		case errors.Is(err, hcaptcha.ErrMissingToken), errors.Is(err, hcaptcha.ErrRejected):
			return controllers.Fail(c, fiber.StatusBadRequest, "captcha validation failed", nil)
		default:
			log.Errorf("[Captcha] %v", err)
			return controllers.Fail(c, fiber.StatusServiceUnavailable, "captcha service unavailable", nil)
		}
	}
}
