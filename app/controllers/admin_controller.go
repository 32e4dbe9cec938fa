package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/internal/pkg/butler"
	"github.com/ManuelReschke/Vahana/internal/pkg/subscription"
	"github.com/ManuelReschke/Vahana/internal/pkg/usercontext"
)

// AdminController handles the staff operations: campaigns, point grants,
// contracts and the billing sweep.
type AdminController struct {
	svc *Services
}

// NewAdminController creates a new admin controller with service dependencies
func NewAdminController(s *Services) *AdminController {
	return &AdminController{svc: s}
}

type pointGrantBody struct {
	UserID          uint   `json:"user_id" validate:"required"`
	Amount          int64  `json:"amount" validate:"required"`
	TransactionType string `json:"transaction_type" validate:"required"`
	Description     string `json:"description" validate:"max=500"`
}

type contractBody struct {
	RequestID uint `json:"request_id" validate:"required"`
}

type subscriptionContractBody struct {
	RequestID *uint   `json:"request_id"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type butlerContractBody struct {
	RequestID *uint `json:"request_id"`
	IsActive  *bool `json:"is_active"`
}

func (ac *AdminController) audit(c *fiber.Ctx, action string, id uint) {
	log.Infof("[Admin] %s: %s %d", usercontext.GetUserContext(c).Email, action, id)
}

func (ac *AdminController) HandleCreateCoupon(c *fiber.Ctx) error {
	var cp models.Coupon
	if err := c.BodyParser(&cp); err != nil {
		return Fail(c, fiber.StatusBadRequest, "malformed request body", nil)
	}
	cp.ID = 0
	cp.Code = ""
	if err := ac.svc.Coupon.Create(c.UserContext(), &cp); err != nil {
		return HandleError(c, err)
	}
	ac.audit(c, "created coupon", cp.ID)
	return Success(c, fiber.StatusCreated, "coupon created", fiber.Map{"coupon": cp})
}

func (ac *AdminController) HandleCreatePointCoupon(c *fiber.Ctx) error {
	var pc models.PointCoupon
	if err := c.BodyParser(&pc); err != nil {
		return Fail(c, fiber.StatusBadRequest, "malformed request body", nil)
	}
	pc.ID = 0
	pc.Code = ""
	if err := ac.svc.Points.CreatePointCoupon(c.UserContext(), &pc); err != nil {
		return HandleError(c, err)
	}
	ac.audit(c, "created point coupon", pc.ID)
	return Success(c, fiber.StatusCreated, "point coupon created", fiber.Map{"point_coupon": pc})
}

// HandleGrantPoints books a deposit, or a withdrawal for negative amounts
func (ac *AdminController) HandleGrantPoints(c *fiber.Ctx) error {
	var body pointGrantBody
	if err := parseBody(c, &body); err != nil {
		return HandleError(c, err)
	}
	tx, err := ac.svc.Points.Grant(c.UserContext(), body.UserID, body.Amount, body.TransactionType, body.Description)
	if err != nil {
		return HandleError(c, err)
	}
	ac.audit(c, "booked points for user", body.UserID)
	return Success(c, fiber.StatusCreated, "points booked", fiber.Map{"transaction": tx})
}

func (ac *AdminController) HandleCreateSubscription(c *fiber.Ctx) error {
	var body contractBody
	if err := parseBody(c, &body); err != nil {
		return HandleError(c, err)
	}
	sub, err := ac.svc.Subscription.CreateContract(c.UserContext(), body.RequestID)
	if err != nil {
		return HandleError(c, err)
	}
	ac.audit(c, "created subscription", sub.ID)
	return Success(c, fiber.StatusCreated, "subscription created", fiber.Map{"subscription": sub})
}

func (ac *AdminController) HandleUpdateSubscription(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	var body subscriptionContractBody
	if err := parseBody(c, &body); err != nil {
		return HandleError(c, err)
	}
	in := subscription.ContractInput{RequestID: body.RequestID}
	if body.StartDate != nil {
		var t time.Time
		if t, err = parseDate("start_date", *body.StartDate); err != nil {
			return HandleError(c, err)
		}
		in.StartDate = &t
	}
	if body.EndDate != nil {
		var t time.Time
		if t, err = parseDate("end_date", *body.EndDate); err != nil {
			return HandleError(c, err)
		}
		in.EndDate = &t
	}

	sub, err := ac.svc.Subscription.UpdateContract(c.UserContext(), id, in)
	if err != nil {
		return HandleError(c, err)
	}
	ac.audit(c, "updated subscription", id)
	return Success(c, fiber.StatusOK, "subscription updated", fiber.Map{"subscription": sub})
}

func (ac *AdminController) HandleDeleteSubscription(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	if err := ac.svc.Subscription.DeleteContract(c.UserContext(), id); err != nil {
		return HandleError(c, err)
	}
	ac.audit(c, "deleted subscription", id)
	return Success(c, fiber.StatusOK, "subscription deleted", nil)
}

// HandleCreateButler fulfils a butler request and charges it right away
func (ac *AdminController) HandleCreateButler(c *fiber.Ctx) error {
	var body contractBody
	if err := parseBody(c, &body); err != nil {
		return HandleError(c, err)
	}
	b, err := ac.svc.Butler.CreateContract(c.UserContext(), body.RequestID)
	if err != nil {
		return HandleError(c, err)
	}
	ac.audit(c, "created butler", b.ID)
	return Success(c, fiber.StatusCreated, "butler created", fiber.Map{"butler": b})
}

func (ac *AdminController) HandleUpdateButler(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	var body butlerContractBody
	if err := parseBody(c, &body); err != nil {
		return HandleError(c, err)
	}
	b, err := ac.svc.Butler.UpdateContract(c.UserContext(), id, butler.ContractInput{
		RequestID: body.RequestID,
		IsActive:  body.IsActive,
	})
	if err != nil {
		return HandleError(c, err)
	}
	ac.audit(c, "updated butler", id)
	return Success(c, fiber.StatusOK, "butler updated", fiber.Map{"butler": b})
}

func (ac *AdminController) HandleDeleteButler(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	if err := ac.svc.Butler.DeleteContract(c.UserContext(), id); err != nil {
		return HandleError(c, err)
	}
	ac.audit(c, "deleted butler", id)
	return Success(c, fiber.StatusOK, "butler deleted", nil)
}

// HandleRunBilling runs the renewal sweep now. A sweep already running on
// another instance is reported as locked.
func (ac *AdminController) HandleRunBilling(c *fiber.Ctx) error {
	report, err := ac.svc.Subscription.RunBilling(c.UserContext(), ac.svc.now())
	if err != nil {
		return HandleError(c, err)
	}
	data := fiber.Map{"report": report}
	if ac.svc.Scheduler != nil {
		if next := ac.svc.Scheduler.Next(); !next.IsZero() {
			data["next_run"] = next
		}
	}
	return Success(c, fiber.StatusOK, "billing sweep finished", data)
}
