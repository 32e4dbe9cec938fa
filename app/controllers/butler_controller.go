package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
	"github.com/ManuelReschke/Vahana/internal/pkg/butler"
)

// ButlerController serves butler reservations and contracts of the caller.
type ButlerController struct {
	butler *butler.Service
}

func NewButlerController(s *Services) *ButlerController {
	return &ButlerController{butler: s.Butler}
}

type butlerRequestBody struct {
	StartAt       *time.Time             `json:"start_at"`
	EndAt         *time.Time             `json:"end_at"`
	StartLocation string                 `json:"start_location" validate:"required,max=255"`
	EndLocation   string                 `json:"end_location" validate:"required,max=255"`
	WayPoints     []butler.WayPointInput `json:"way_points" validate:"max=10"`
	UserCouponID  *uint                  `json:"user_coupon_id"`
	PointAmount   int64                  `json:"point_amount" validate:"gte=0"`
	BillingID     *uint                  `json:"billing_id"`
	Vendor        string                 `json:"vendor" validate:"omitempty,oneof=TOSS PORTONE"`
	Credentials   *billing.Credentials   `json:"credentials"`
}

type butlerUpdateBody struct {
	StartAt       *time.Time              `json:"start_at"`
	EndAt         *time.Time              `json:"end_at"`
	StartLocation *string                 `json:"start_location" validate:"omitempty,max=255"`
	EndLocation   *string                 `json:"end_location" validate:"omitempty,max=255"`
	WayPoints     *[]butler.WayPointInput `json:"way_points"`
	UserCouponID  *uint                   `json:"user_coupon_id"`
	RemoveCoupon  bool                    `json:"remove_coupon"`
	PointAmount   *int64                  `json:"point_amount" validate:"omitempty,gte=0"`
	BillingID     *uint                   `json:"billing_id"`
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// HandleCreateRequest reserves the car in :id. Missing times default to now
// and a ten hour window.
func (bc *ButlerController) HandleCreateRequest(c *fiber.Ctx) error {
	carID, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	var body butlerRequestBody
	if err := parseBody(c, &body); err != nil {
		return HandleError(c, err)
	}

	req, err := bc.butler.CreateRequest(c.UserContext(), currentUserID(c), butler.RequestInput{
		CarID:         carID,
		StartAt:       deref(body.StartAt),
		EndAt:         deref(body.EndAt),
		StartLocation: body.StartLocation,
		EndLocation:   body.EndLocation,
		WayPoints:     body.WayPoints,
		UserCouponID:  body.UserCouponID,
		PointAmount:   body.PointAmount,
		BillingID:     body.BillingID,
		Vendor:        body.Vendor,
		Credentials:   body.Credentials,
	})
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusCreated, "butler request received", fiber.Map{"request": req})
}

func (bc *ButlerController) HandleListRequests(c *fiber.Ctx) error {
	list, err := bc.butler.ListRequests(c.UserContext(), currentUserID(c), c.QueryBool("active", false))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "butler requests", fiber.Map{"requests": list})
}

func (bc *ButlerController) HandleGetRequest(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	req, err := bc.butler.GetRequest(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "butler request", fiber.Map{"request": req})
}

func (bc *ButlerController) HandleUpdateRequest(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	var body butlerUpdateBody
	if err := parseBody(c, &body); err != nil {
		return HandleError(c, err)
	}
	req, err := bc.butler.UpdateRequest(c.UserContext(), currentUserID(c), id, butler.UpdateInput{
		StartAt:       body.StartAt,
		EndAt:         body.EndAt,
		StartLocation: body.StartLocation,
		EndLocation:   body.EndLocation,
		WayPoints:     body.WayPoints,
		UserCouponID:  body.UserCouponID,
		RemoveCoupon:  body.RemoveCoupon,
		PointAmount:   body.PointAmount,
		BillingID:     body.BillingID,
	})
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "butler request updated", fiber.Map{"request": req})
}

func (bc *ButlerController) HandleDeleteRequest(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	if err := bc.butler.DeleteRequest(c.UserContext(), currentUserID(c), id); err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "butler request deleted", nil)
}

func (bc *ButlerController) HandleListContracts(c *fiber.Ctx) error {
	list, err := bc.butler.ListContracts(c.UserContext(), currentUserID(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "butlers", fiber.Map{"butlers": list})
}

func (bc *ButlerController) HandleGetContract(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	b, err := bc.butler.GetContract(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "butler", fiber.Map{"butler": b})
}
