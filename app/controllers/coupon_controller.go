package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Vahana/internal/pkg/coupon"
)

// CouponController lets users look up and redeem the coupons of one service.
type CouponController struct {
	service string
	coupon  *coupon.Service
}

func NewCouponController(s *Services, service string) *CouponController {
	return &CouponController{service: service, coupon: s.Coupon}
}

func couponCode(c *fiber.Ctx) string {
	return strings.ToUpper(strings.TrimSpace(c.Params("code")))
}

// HandleList returns the coupons the caller holds for the service
func (cc *CouponController) HandleList(c *fiber.Ctx) error {
	list, err := cc.coupon.List(c.UserContext(), currentUserID(c), cc.service)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "coupons", fiber.Map{"coupons": list})
}

func (cc *CouponController) HandleLookup(c *fiber.Ctx) error {
	cp, err := cc.coupon.Lookup(c.UserContext(), couponCode(c), cc.service)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "coupon", fiber.Map{
		"coupon":         cp,
		"discount_label": cp.DiscountLabel(),
	})
}

func (cc *CouponController) HandleRedeem(c *fiber.Ctx) error {
	uc, err := cc.coupon.Redeem(c.UserContext(), currentUserID(c), couponCode(c), cc.service)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusCreated, "coupon redeemed", fiber.Map{"user_coupon": uc})
}
