package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Vahana/app/repository"
)

// ContentController serves the public notices, events, ads, FAQs and legal
// texts. Every list takes an optional ?service= filter.
type ContentController struct {
	content repository.ContentRepository
	svc     *Services
}

func NewContentController(s *Services) *ContentController {
	return &ContentController{content: s.Repos.Content, svc: s}
}

func serviceQuery(c *fiber.Ctx) string {
	return strings.ToUpper(strings.TrimSpace(c.Query("service")))
}

func (cc *ContentController) HandleNotices(c *fiber.Ctx) error {
	list, err := cc.content.ListNotices(serviceQuery(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "notices", fiber.Map{"notices": list})
}

func (cc *ContentController) HandleNotice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	n, err := cc.content.GetNotice(id)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "notice", fiber.Map{"notice": n})
}

func (cc *ContentController) HandleEvents(c *fiber.Ctx) error {
	list, err := cc.content.ListEvents(serviceQuery(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "events", fiber.Map{"events": list})
}

func (cc *ContentController) HandleEvent(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	e, err := cc.content.GetEvent(id)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "event", fiber.Map{"event": e})
}

// HandleAds lists the ads running right now
func (cc *ContentController) HandleAds(c *fiber.Ctx) error {
	list, err := cc.content.ListAds(serviceQuery(c), cc.svc.now())
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "ads", fiber.Map{"ads": list})
}

func (cc *ContentController) HandleFAQs(c *fiber.Ctx) error {
	list, err := cc.content.ListFAQs(serviceQuery(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "faqs", fiber.Map{"faqs": list})
}

func (cc *ContentController) HandleTerms(c *fiber.Ctx) error {
	list, err := cc.content.ListTerms(serviceQuery(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "terms", fiber.Map{"terms": list})
}

func (cc *ContentController) HandlePrivacyPolicies(c *fiber.Ctx) error {
	list, err := cc.content.ListPrivacyPolicies(serviceQuery(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "privacy policies", fiber.Map{"privacy_policies": list})
}
