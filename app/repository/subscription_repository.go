package repository

import (
	"database/sql"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) withRequestAssociations(q *gorm.DB) *gorm.DB {
	return q.Preload("Car.CarModel.Brand").Preload("UserCoupon.Coupon").Preload("PointTransaction")
}

func (r *subscriptionRepository) withContractAssociations(q *gorm.DB) *gorm.DB {
	return q.Preload("Request.Car.CarModel.Brand").
		Preload("Request.UserCoupon.Coupon").
		Preload("Request.PointTransaction")
}

func (r *subscriptionRepository) CreateRequest(req *models.SubscriptionRequest) error {
	return r.db.Omit(clause.Associations).Create(req).Error
}

func (r *subscriptionRepository) GetRequest(id uint) (*models.SubscriptionRequest, error) {
	var req models.SubscriptionRequest
	if err := r.withRequestAssociations(r.db).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *subscriptionRepository) GetRequestForUpdate(id uint) (*models.SubscriptionRequest, error) {
	var req models.SubscriptionRequest
	if err := forUpdate(r.db).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *subscriptionRepository) UpdateRequest(req *models.SubscriptionRequest) error {
	return r.db.Omit(clause.Associations).Save(req).Error
}

func (r *subscriptionRepository) SetRequestActive(id uint, active bool) error {
	return r.db.Model(&models.SubscriptionRequest{}).Where("id = ?", id).Update("is_active", active).Error
}

func (r *subscriptionRepository) DeleteRequest(id uint) error {
	return r.db.Delete(&models.SubscriptionRequest{}, id).Error
}

func (r *subscriptionRepository) ListRequestsByUser(userID uint, activeOnly bool) ([]models.SubscriptionRequest, error) {
	q := r.withRequestAssociations(r.db).Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var list []models.SubscriptionRequest
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *subscriptionRepository) CreateContract(sub *models.Subscription) error {
	return r.db.Omit(clause.Associations).Create(sub).Error
}

func (r *subscriptionRepository) GetContract(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.withContractAssociations(r.db).First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetContractForUpdate(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := forUpdate(r.db).First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetContractByRequest(requestID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("request_id = ?", requestID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) UpdateContract(sub *models.Subscription) error {
	return r.db.Omit(clause.Associations).Save(sub).Error
}

func (r *subscriptionRepository) DeleteContract(id uint) error {
	return r.db.Delete(&models.Subscription{}, id).Error
}

func (r *subscriptionRepository) ListContractsByUser(userID uint) ([]models.Subscription, error) {
	var list []models.Subscription
	err := r.withContractAssociations(r.db).
		Joins("JOIN subscription_requests ON subscription_requests.id = subscriptions.request_id").
		Where("subscription_requests.user_id = ?", userID).
		Order("subscriptions.created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *subscriptionRepository) ListDueIDs(today time.Time) ([]uint, error) {
	d := models.DateOf(today)
	var ids []uint
	err := r.db.Model(&models.Subscription{}).
		Where("is_active = ? AND start_date IS NOT NULL AND end_date >= ? AND schedule_payment_date <= ?", true, d, d).
		Order("schedule_payment_date ASC, id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *subscriptionRepository) LatestEndDate(carID uint, today time.Time) (*time.Time, error) {
	d := models.DateOf(today)

	var contractMax sql.NullTime
	err := r.db.Model(&models.Subscription{}).
		Joins("JOIN subscription_requests ON subscription_requests.id = subscriptions.request_id").
		Where("subscription_requests.car_id = ? AND subscriptions.is_active = ? AND subscriptions.end_date >= ?", carID, true, d).
		Select("MAX(subscriptions.end_date)").
		Row().Scan(&contractMax)
	if err != nil {
		return nil, err
	}

	var requestMax sql.NullTime
	err = r.db.Model(&models.SubscriptionRequest{}).
		Where("car_id = ? AND is_active = ? AND end_date >= ?", carID, true, d).
		Select("MAX(end_date)").
		Row().Scan(&requestMax)
	if err != nil {
		return nil, err
	}

	var latest *time.Time
	for _, v := range []sql.NullTime{contractMax, requestMax} {
		if v.Valid && (latest == nil || v.Time.After(*latest)) {
			t := v.Time
			latest = &t
		}
	}
	return latest, nil
}
