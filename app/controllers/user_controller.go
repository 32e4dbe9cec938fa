package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Vahana/internal/pkg/points"
	"github.com/ManuelReschke/Vahana/internal/pkg/referral"
)

// UserController serves the point ledger and referrals of the caller.
type UserController struct {
	points   *points.Service
	referral *referral.Service
}

func NewUserController(s *Services) *UserController {
	return &UserController{points: s.Points, referral: s.Referral}
}

type referralRequest struct {
	ReferralCode string `json:"referral_code" validate:"required,max=20"`
}

// HandlePoints returns the balance and a page of ledger entries
func (uc *UserController) HandlePoints(c *fiber.Ctx) error {
	userID := currentUserID(c)
	balance, err := uc.points.Balance(c.UserContext(), userID)
	if err != nil {
		return HandleError(c, err)
	}
	offset, limit := pagination(c)
	list, total, err := uc.points.List(c.UserContext(), userID, offset, limit)
	if err != nil {
		return HandleError(c, err)
	}
	data := pageData("transactions", list, total, c)
	data["point"] = balance
	return Success(c, fiber.StatusOK, "points", data)
}

func (uc *UserController) HandleRedeemPointCoupon(c *fiber.Ctx) error {
	code := strings.ToUpper(strings.TrimSpace(c.Params("code")))
	tx, err := uc.points.RedeemPointCoupon(c.UserContext(), currentUserID(c), code)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusCreated, "point coupon redeemed", fiber.Map{"transaction": tx})
}

func (uc *UserController) HandleReferrals(c *fiber.Ctx) error {
	list, err := uc.referral.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "referrals", fiber.Map{"referrals": list})
}

func (uc *UserController) HandleCreateReferral(c *fiber.Ctx) error {
	var in referralRequest
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	ref, err := uc.referral.Create(c.UserContext(), currentUserID(c), in.ReferralCode)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusCreated, "referral registered", fiber.Map{"referral": ref})
}
