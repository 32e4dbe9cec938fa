package repository

import (
	"fmt"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
)

var carSortFields = map[string]string{
	"subscription_available_from": "subscription_available_from",
	"butler_available_from":       "butler_available_from",
	"subscription_fee_minimum":    "subscription_fee_minimum",
	"butler_fee":                  "butler_fee",
	"mileage":                     "mileage",
	"release_date":                "release_date",
	"created_at":                  "created_at",
}

type carRepository struct {
	db *gorm.DB
}

// NewCarRepository creates a new car repository instance
func NewCarRepository(db *gorm.DB) CarRepository {
	return &carRepository{db: db}
}

func (r *carRepository) CreateBrand(brand *models.Brand) error {
	return r.db.Create(brand).Error
}

func (r *carRepository) CreateModel(model *models.CarModel) error {
	return r.db.Create(model).Error
}

func (r *carRepository) Create(car *models.Car) error {
	return r.db.Create(car).Error
}

func (r *carRepository) GetByID(id uint) (*models.Car, error) {
	var car models.Car
	err := r.db.Preload("CarModel.Brand").First(&car, id).Error
	if err != nil {
		return nil, err
	}
	return &car, nil
}

func (r *carRepository) GetModel(id uint) (*models.CarModel, error) {
	var m models.CarModel
	err := r.db.Preload("Brand").First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *carRepository) ListModels() ([]models.CarModel, error) {
	var list []models.CarModel
	err := r.db.Preload("Brand").
		Joins("JOIN brands ON brands.id = car_models.brand_id").
		Order("brands.name ASC, car_models.name ASC").
		Find(&list).Error
	return list, err
}

func (r *carRepository) Search(f CarFilter) ([]models.Car, int64, error) {
	q := r.db.Model(&models.Car{}).Where("cars.is_active = ?", true)

	switch f.Service {
	case models.SERVICE_SUBSCRIPTION:
		q = q.Where("cars.is_subscriptable = ?", true)
	case models.SERVICE_BUTLER:
		q = q.Where("cars.is_butler = ?", true)
	}

	if len(f.BrandSlugs) > 0 || len(f.ModelSlugs) > 0 {
		q = q.Joins("JOIN car_models ON car_models.id = cars.car_model_id").
			Joins("JOIN brands ON brands.id = car_models.brand_id")
		switch {
		case len(f.BrandSlugs) > 0 && len(f.ModelSlugs) > 0:
			q = q.Where("brands.slug IN ? OR car_models.slug IN ?", f.BrandSlugs, f.ModelSlugs)
		case len(f.BrandSlugs) > 0:
			q = q.Where("brands.slug IN ?", f.BrandSlugs)
		default:
			q = q.Where("car_models.slug IN ?", f.ModelSlugs)
		}
	}
	if f.ModelID != 0 {
		q = q.Where("cars.car_model_id = ?", f.ModelID)
	}

	if len(f.Months) > 0 {
		cond := r.db.Where("1 = 0")
		for _, m := range f.Months {
			if models.IsSubscriptionMonth(m) {
				cond = cond.Or(fmt.Sprintf("cars.subscription_fee_%d IS NOT NULL", m))
			}
		}
		q = q.Where(cond)
	}

	availableCol := "cars.subscription_available_from"
	if f.Service == models.SERVICE_BUTLER {
		availableCol = "cars.butler_available_from"
	}
	if f.AvailableOnly {
		q = q.Where(availableCol+" IS NULL OR "+availableCol+" <= ?", models.DateOf(f.Today))
	}
	if f.UpcomingAfter != nil {
		q = q.Where(availableCol+" IS NOT NULL AND "+availableCol+" > ?", models.DateOf(*f.UpcomingAfter))
	}
	if f.IsNew != nil {
		q = q.Where("cars.is_new = ?", *f.IsNew)
	}
	if f.IsHot != nil {
		q = q.Where("cars.is_hot = ?", *f.IsHot)
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where("cars.id NOT IN ?", f.ExcludeIDs)
	}
	for _, day := range f.FreeOn {
		q = q.Where("NOT JSON_CONTAINS(COALESCE(cars.butler_reservated_dates, JSON_ARRAY()), JSON_QUOTE(?))", day)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "cars.created_at DESC"
	if col, ok := carSortFields[f.Sort]; ok {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		order = "cars." + col + " " + dir
	}
	q = q.Order(order)
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}

	var cars []models.Car
	err := q.Preload("CarModel.Brand").Find(&cars).Error
	return cars, total, err
}

func (r *carRepository) Update(car *models.Car) error {
	return r.db.Omit("CarModel").Save(car).Error
}

// UpdateAvailability writes only the derived availability columns
func (r *carRepository) UpdateAvailability(carID uint, subscriptionFrom, butlerFrom *time.Time, reservedDates []string) error {
	if reservedDates == nil {
		reservedDates = []string{}
	}
	return r.db.Model(&models.Car{ID: carID}).Select(
		"SubscriptionAvailableFrom", "ButlerAvailableFrom", "ButlerReservatedDates",
	).Updates(&models.Car{
		SubscriptionAvailableFrom: subscriptionFrom,
		ButlerAvailableFrom:       butlerFrom,
		ButlerReservatedDates:     reservedDates,
	}).Error
}
