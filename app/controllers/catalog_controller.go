package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/review"
)

// CatalogController lists the cars and models bookable for one service.
type CatalogController struct {
	service string
	repos   *repository.Repositories
	review  *review.Service
	svc     *Services
}

func NewCatalogController(s *Services, service string) *CatalogController {
	return &CatalogController{service: service, repos: s.Repos, review: s.Review, svc: s}
}

type garageModel struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
}

type garage struct {
	Name      string        `json:"name"`
	Slug      string        `json:"slug"`
	ModelList []garageModel `json:"model_list"`
}

type modelSummary struct {
	models.CarModel
	CarCount      int   `json:"car_count"`
	MinimumFee    int64 `json:"minimum_fee"`
	AvailableCars int   `json:"available_cars"`
}

func queryList(c *fiber.Ctx, key string) []string {
	var out []string
	for _, raw := range c.Context().QueryArgs().PeekMulti(key) {
		for _, v := range strings.Split(string(raw), ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func queryBool(c *fiber.Ctx, key string) *bool {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

// filter reads the listing query: brand, model, month and date repeat,
// sort with order=desc picks the ordering.
func (cc *CatalogController) filter(c *fiber.Ctx) repository.CarFilter {
	offset, limit := pagination(c)
	f := repository.CarFilter{
		Service:    cc.service,
		BrandSlugs: queryList(c, "brand"),
		ModelSlugs: queryList(c, "model"),
		IsNew:      queryBool(c, "is_new"),
		IsHot:      queryBool(c, "is_hot"),
		Today:      cc.svc.now(),
		Sort:       c.Query("sort"),
		Desc:       strings.EqualFold(c.Query("order"), "desc"),
		Offset:     offset,
		Limit:      limit,
	}
	if only := queryBool(c, "available_only"); only != nil {
		f.AvailableOnly = *only
	}
	if up := queryBool(c, "upcoming"); up != nil && *up {
		today := f.Today
		f.UpcomingAfter = &today
	}

	switch cc.service {
	case models.SERVICE_SUBSCRIPTION:
		for _, m := range queryList(c, "month") {
			if n, err := strconv.Atoi(m); err == nil && models.IsSubscriptionMonth(n) {
				f.Months = append(f.Months, n)
			}
		}
	case models.SERVICE_BUTLER:
		f.FreeOn = queryList(c, "date")
		if f.Sort == "" {
			f.Sort = "butler_fee"
		}
	}
	return f
}

func (cc *CatalogController) garages() ([]garage, error) {
	list, err := cc.repos.Car.ListModels()
	if err != nil {
		return nil, err
	}
	var out []garage
	index := map[uint]int{}
	for _, m := range list {
		i, ok := index[m.BrandID]
		if !ok {
			out = append(out, garage{Name: m.Brand.Name, Slug: m.Brand.Slug})
			i = len(out) - 1
			index[m.BrandID] = i
		}
		out[i].ModelList = append(out[i].ModelList, garageModel{ID: m.ID, Name: m.Name, Slug: m.Slug, Image: m.Image})
	}
	return out, nil
}

// HandleGarages returns brands with their models next to a filtered car page
func (cc *CatalogController) HandleGarages(c *fiber.Ctx) error {
	garages, err := cc.garages()
	if err != nil {
		return HandleError(c, err)
	}
	cars, total, err := cc.repos.Car.Search(cc.filter(c))
	if err != nil {
		return HandleError(c, err)
	}
	data := pageData("cars", cars, total, c)
	data["garage_list"] = garages
	return Success(c, fiber.StatusOK, "garages", data)
}

func (cc *CatalogController) HandleCars(c *fiber.Ctx) error {
	cars, total, err := cc.repos.Car.Search(cc.filter(c))
	if err != nil {
		return HandleError(c, err)
	}
	return Success(c, fiber.StatusOK, "cars", pageData("cars", cars, total, c))
}

func (cc *CatalogController) offered(car *models.Car) bool {
	if !car.IsActive {
		return false
	}
	if cc.service == models.SERVICE_BUTLER {
		return car.IsButler
	}
	return car.IsSubscriptable
}

func (cc *CatalogController) HandleCar(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	car, err := cc.repos.Car.GetByID(id)
	if err != nil {
		return HandleError(c, err)
	}
	if !cc.offered(car) {
		return HandleError(c, gorm.ErrRecordNotFound)
	}
	return Success(c, fiber.StatusOK, "car", fiber.Map{"car": car})
}

// HandleModels lists models that have at least one bookable car
func (cc *CatalogController) HandleModels(c *fiber.Ctx) error {
	today := cc.svc.now()
	cars, _, err := cc.repos.Car.Search(repository.CarFilter{Service: cc.service, Today: today})
	if err != nil {
		return HandleError(c, err)
	}

	var out []*modelSummary
	index := map[uint]*modelSummary{}
	for i := range cars {
		car := &cars[i]
		sum, ok := index[car.CarModelID]
		if !ok {
			sum = &modelSummary{CarModel: car.CarModel}
			index[car.CarModelID] = sum
			out = append(out, sum)
		}
		sum.CarCount++
		fee := cc.fee(car)
		if fee > 0 && (sum.MinimumFee == 0 || fee < sum.MinimumFee) {
			sum.MinimumFee = fee
		}
		if cc.availableOn(car, today) {
			sum.AvailableCars++
		}
	}
	return Success(c, fiber.StatusOK, "models", fiber.Map{"models": out})
}

func (cc *CatalogController) fee(car *models.Car) int64 {
	if cc.service == models.SERVICE_BUTLER {
		if car.ButlerFee == nil {
			return 0
		}
		return *car.ButlerFee
	}
	return car.SubscriptionFeeMinimum
}

func (cc *CatalogController) availableOn(car *models.Car, today time.Time) bool {
	from := car.SubscriptionAvailableFrom
	if cc.service == models.SERVICE_BUTLER {
		from = car.ButlerAvailableFrom
	}
	return from == nil || !from.After(models.DateOf(today))
}

// HandleModel returns one model with its bookable cars. Models without
// such cars are reported as missing.
func (cc *CatalogController) HandleModel(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}
	model, err := cc.repos.Car.GetModel(id)
	if err != nil {
		return HandleError(c, err)
	}
	cars, _, err := cc.repos.Car.Search(repository.CarFilter{Service: cc.service, ModelID: id, Today: cc.svc.now()})
	if err != nil {
		return HandleError(c, err)
	}
	if len(cars) == 0 {
		return HandleError(c, gorm.ErrRecordNotFound)
	}

	liked := false
	if userID := currentUserID(c); userID != 0 {
		if liked, err = cc.review.IsModelLiked(c.UserContext(), userID, cc.service, id); err != nil {
			return HandleError(c, err)
		}
	}
	return Success(c, fiber.StatusOK, "model", fiber.Map{"model": model, "cars": cars, "is_liked": liked})
}
