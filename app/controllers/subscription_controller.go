package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
	"github.com/ManuelReschke/Vahana/internal/pkg/subscription"
)

// SubscriptionController serves subscription requests and contracts of the
// caller.
type SubscriptionController struct {
	subscription *subscription.Service
}

func NewSubscriptionController(s *Services) *SubscriptionController {
	return &SubscriptionController{subscription: s.Subscription}
}

type subscriptionRequestBody struct {
	Month        int                  `json:"month" validate:"required"`
	StartDate    string               `json:"start_date" validate:"required"`
	UserCouponID *uint                `json:"user_coupon_id"`
	PointAmount  int64                `json:"point_amount" validate:"gte=0"`
	BillingID    *uint                `json:"billing_id"`
	Vendor       string               `json:"vendor" validate:"omitempty,oneof=TOSS PORTONE"`
	Credentials  *billing.Credentials `json:"credentials"`
}

type subscriptionUpdateBody struct {
	Month        *int    `json:"month"`
	StartDate    *string `json:"start_date"`
	UserCouponID *uint   `json:"user_coupon_id"`
	RemoveCoupon bool    `json:"remove_coupon"`
	PointAmount  *int64  `json:"point_amount" validate:"omitempty,gte=0"`
	BillingID    *uint   `json:"billing_id"`
}

// HandleCreateRequest files a request for the car in :id
func (sc *SubscriptionController) HandleCreateRequest(c *fiber.Ctx) error {
	carID, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	var body subscriptionRequestBody
	if err := parseBody(c, &body); err != nil {
		return HandleError(c, err)
	}
	start, err := parseDate("start_date", body.StartDate)
	if err != nil {
		return HandleError(c, err)
	}

	req, err := sc.subscription.CreateRequest(c.UserContext(), currentUserID(c), subscription.RequestInput{
		CarID:        carID,
		Month:        body.Month,
		StartDate:    start,
		UserCouponID: body.UserCouponID,
		PointAmount:  body.PointAmount,
		BillingID:    body.BillingID,
		Vendor:       body.Vendor,
		Credentials:  body.Credentials,
	})
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusCreated, "subscription request received", fiber.Map{"request": req})
}

func (sc *SubscriptionController) HandleListRequests(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)
	list, err := sc.subscription.ListRequests(c.UserContext(), currentUserID(c), activeOnly)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "subscription requests", fiber.Map{"requests": list})
}

func (sc *SubscriptionController) HandleGetRequest(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	req, err := sc.subscription.GetRequest(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "subscription request", fiber.Map{"request": req})
}

func (sc *SubscriptionController) HandleUpdateRequest(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	var body subscriptionUpdateBody
	if err := parseBody(c, &body); err != nil {
		return HandleError(c, err)
	}
	in := subscription.UpdateInput{
		Month:        body.Month,
		UserCouponID: body.UserCouponID,
		RemoveCoupon: body.RemoveCoupon,
		PointAmount:  body.PointAmount,
		BillingID:    body.BillingID,
	}
	if body.StartDate != nil {
		var start time.Time
		if start, err = parseDate("start_date", *body.StartDate); err != nil {
			return HandleError(c, err)
		}
		in.StartDate = &start
	}

	req, err := sc.subscription.UpdateRequest(c.UserContext(), currentUserID(c), id, in)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "subscription request updated", fiber.Map{"request": req})
}

func (sc *SubscriptionController) HandleDeleteRequest(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	if err := sc.subscription.DeleteRequest(c.UserContext(), currentUserID(c), id); err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "subscription request deleted", nil)
}

func (sc *SubscriptionController) HandleListContracts(c *fiber.Ctx) error {
	list, err := sc.subscription.ListContracts(c.UserContext(), currentUserID(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "subscriptions", fiber.Map{"subscriptions": list})
}

func (sc *SubscriptionController) HandleGetContract(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	sub, err := sc.subscription.GetContract(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "subscription", fiber.Map{"subscription": sub})
}
