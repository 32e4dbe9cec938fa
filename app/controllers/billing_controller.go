package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
)

// BillingController manages stored cards, the payment history and the
// PortOne webhook.
type BillingController struct {
	billing *billing.Service
}

func NewBillingController(s *Services) *BillingController {
	return &BillingController{billing: s.Billing}
}

type billingBody struct {
	Vendor      string `json:"vendor" validate:"required,oneof=TOSS PORTONE"`
	AuthKey     string `json:"auth_key"`
	CustomerKey string `json:"customer_key"`
	BillingKey  string `json:"billing_key"`
}

func (bc *BillingController) HandleListBillings(c *fiber.Ctx) error {
	list, err := bc.billing.ListBillings(c.UserContext(), currentUserID(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "billings", fiber.Map{"billings": list})
}

// HandleRegisterBilling confirms a card authorization at the vendor
func (bc *BillingController) HandleRegisterBilling(c *fiber.Ctx) error {
	var body billingBody
	if err := parseBody(c, &body); err != nil {
		return HandleError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), 15*time.Second)
	defer cancel()

	b, err := bc.billing.RegisterBilling(ctx, currentUserID(c), body.Vendor, billing.Credentials{
		AuthKey:     body.AuthKey,
		CustomerKey: body.CustomerKey,
		BillingKey:  body.BillingKey,
	})
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusCreated, "billing registered", fiber.Map{"billing": b})
}

func (bc *BillingController) HandleDeactivateBilling(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), 15*time.Second)
	defer cancel()

	if err := bc.billing.DeactivateBilling(ctx, currentUserID(c), id); err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "billing removed", nil)
}

func (bc *BillingController) HandleListPayments(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	list, total, err := bc.billing.ListPayments(c.UserContext(), currentUserID(c), offset, limit)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "payments", pageData("payments", list, total, c))
}

// HandlePortOneWebhook syncs a payment status change. Bad signatures are
// answered with 401 so PortOne shows the failure in its console.
func (bc *BillingController) HandlePortOneWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	headers := billing.WebhookHeaders{
		ID:        firstHeaderValue(c, "webhook-id", "X-PortOne-Webhook-Id"),
		Timestamp: firstHeaderValue(c, "webhook-timestamp", "X-PortOne-Webhook-Timestamp"),
		Signature: firstHeaderValue(c, "webhook-signature", "X-PortOne-Webhook-Signature"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := bc.billing.HandlePortOneWebhook(ctx, rawBody, headers)
	switch {
	case err == nil:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	case errors.Is(err, billing.ErrInvalidSignature):
		log.Warnf("[Billing] Rejected PortOne webhook %s: invalid signature", headers.ID)
		return Fail(c, fiber.StatusUnauthorized, "invalid signature", nil)
	default:
		return HandleError(c, err)
	}
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}
