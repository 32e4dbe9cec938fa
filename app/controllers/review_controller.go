package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Vahana/internal/pkg/review"
)

// ReviewController serves model reviews, likes and model requests of one
// service.
type ReviewController struct {
	service string
	review  *review.Service
}

func NewReviewController(s *Services, service string) *ReviewController {
	return &ReviewController{service: service, review: s.Review}
}

type reviewForm struct {
	Content     *string `json:"content" form:"content" validate:"omitempty,max=5000"`
	RemoveImage bool    `json:"remove_image" form:"remove_image"`
}

type modelRequestForm struct {
	Model string `json:"model" validate:"required,max=100"`
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// readReview parses a JSON or multipart body. The returned closer releases
// the uploaded image and is never nil.
func readReview(c *fiber.Ctx) (*reviewForm, *review.Image, func(), error) {
	noop := func() {}
	var form reviewForm
	if err := parseBody(c, &form); err != nil {
		return nil, nil, noop, err
	}
	if !isMultipart(c) {
		return &form, nil, noop, nil
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return &form, nil, noop, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, noop, err
	}
	img := &review.Image{Filename: fh.Filename, Size: fh.Size, Body: f}
	return &form, img, func() { _ = f.Close() }, nil
}

func (rc *ReviewController) HandleList(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	modelID := uint(c.QueryInt("model_id", 0))
	if c.Params("id") != "" {
		id, err := paramID(c, "id")
		if err != nil {
			return HandleError(c, err)
		}
		modelID = id
	}
	list, total, err := rc.review.List(c.UserContext(), rc.service, modelID, offset, limit)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "reviews", pageData("reviews", list, total, c))
}

func (rc *ReviewController) HandleGet(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	d, err := rc.review.Get(c.UserContext(), rc.service, id, currentUserID(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "review", fiber.Map{"review": d})
}

// HandleCreate stores a review for the model in :id. The body is JSON or a
// multipart form with an optional image file.
func (rc *ReviewController) HandleCreate(c *fiber.Ctx) error {
	modelID, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	form, img, done, err := readReview(c)
	defer done()
	if err != nil {
		return HandleError(c, err)
	}
	content := ""
	if form.Content != nil {
		content = *form.Content
	}
	rv, err := rc.review.Create(c.UserContext(), currentUserID(c), rc.service, modelID, content, img)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusCreated, "review created", fiber.Map{"review": rv})
}

func (rc *ReviewController) HandleUpdate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	form, img, done, err := readReview(c)
	defer done()
	if err != nil {
		return HandleError(c, err)
	}
	rv, err := rc.review.Update(c.UserContext(), currentUserID(c), rc.service, id, review.UpdateInput{
		Content:     form.Content,
		Image:       img,
		RemoveImage: form.RemoveImage,
	})
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "review updated", fiber.Map{"review": rv})
}

func (rc *ReviewController) HandleDelete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	if err := rc.review.Delete(c.UserContext(), currentUserID(c), rc.service, id); err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "review deleted", nil)
}

func (rc *ReviewController) HandleReviewLiked(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	liked, err := rc.review.IsReviewLiked(c.UserContext(), currentUserID(c), rc.service, id)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "review like", fiber.Map{"is_liked": liked})
}

// HandleLikeReview likes on POST and unlikes on DELETE
func (rc *ReviewController) HandleLikeReview(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	liked := c.Method() == fiber.MethodPost
	if err := rc.review.LikeReview(c.UserContext(), currentUserID(c), rc.service, id, liked); err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "review like updated", fiber.Map{"is_liked": liked})
}

func (rc *ReviewController) HandleModelLiked(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	liked, err := rc.review.IsModelLiked(c.UserContext(), currentUserID(c), rc.service, id)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "model like", fiber.Map{"is_liked": liked})
}

// HandleLikeModel likes on POST and unlikes on DELETE
func (rc *ReviewController) HandleLikeModel(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	liked := c.Method() == fiber.MethodPost
	if err := rc.review.LikeModel(c.UserContext(), currentUserID(c), rc.service, id, liked); err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "model like updated", fiber.Map{"is_liked": liked})
}

func (rc *ReviewController) HandleRequestModel(c *fiber.Ctx) error {
	var in modelRequestForm
	if err := parseBody(c, &in); err != nil {
		return HandleError(c, err)
	}
	m, err := rc.review.RequestModel(c.UserContext(), currentUserID(c), rc.service, in.Model)
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusCreated, "model requested", fiber.Map{"model_request": m})
}
