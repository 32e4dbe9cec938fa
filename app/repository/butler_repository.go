package repository

import (
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type butlerRepository struct {
	db *gorm.DB
}

// NewButlerRepository creates a new butler repository instance
func NewButlerRepository(db *gorm.DB) ButlerRepository {
	return &butlerRepository{db: db}
}

func (r *butlerRepository) withRequestAssociations(q *gorm.DB) *gorm.DB {
	return q.Preload("Car.CarModel.Brand").
		Preload("UserCoupon.Coupon").
		Preload("PointTransaction").
		Preload("WayPoints", func(db *gorm.DB) *gorm.DB { return db.Order("scheduled_time ASC") })
}

// CreateRequest stores the request together with its way points
func (r *butlerRepository) CreateRequest(req *models.ButlerRequest) error {
	return r.db.Omit("Car", "UserCoupon", "PointTransaction").Create(req).Error
}

func (r *butlerRepository) GetRequest(id uint) (*models.ButlerRequest, error) {
	var req models.ButlerRequest
	if err := r.withRequestAssociations(r.db).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *butlerRepository) GetRequestForUpdate(id uint) (*models.ButlerRequest, error) {
	var req models.ButlerRequest
	if err := forUpdate(r.db).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *butlerRepository) UpdateRequest(req *models.ButlerRequest) error {
	return r.db.Omit(clause.Associations).Save(req).Error
}

func (r *butlerRepository) ReplaceWayPoints(requestID uint, points []models.ButlerWayPoint) error {
	if err := r.db.Where("butler_request_id = ?", requestID).Delete(&models.ButlerWayPoint{}).Error; err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	for i := range points {
		points[i].ID = 0
		points[i].ButlerRequestID = requestID
	}
	return r.db.Create(&points).Error
}

func (r *butlerRepository) SetRequestActive(id uint, active bool) error {
	return r.db.Model(&models.ButlerRequest{}).Where("id = ?", id).Update("is_active", active).Error
}

func (r *butlerRepository) DeleteRequest(id uint) error {
	if err := r.db.Where("butler_request_id = ?", id).Delete(&models.ButlerWayPoint{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.ButlerRequest{}, id).Error
}

func (r *butlerRepository) ListRequestsByUser(userID uint, activeOnly bool) ([]models.ButlerRequest, error) {
	q := r.withRequestAssociations(r.db).Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var list []models.ButlerRequest
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *butlerRepository) CreateContract(b *models.Butler) error {
	return r.db.Omit(clause.Associations).Create(b).Error
}

func (r *butlerRepository) GetContract(id uint) (*models.Butler, error) {
	var b models.Butler
	err := r.db.Preload("Request.Car.CarModel.Brand").
		Preload("Request.UserCoupon.Coupon").
		Preload("Request.PointTransaction").
		Preload("Request.WayPoints").
		First(&b, id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *butlerRepository) GetContractForUpdate(id uint) (*models.Butler, error) {
	var b models.Butler
	if err := forUpdate(r.db).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *butlerRepository) GetContractByRequest(requestID uint) (*models.Butler, error) {
	var b models.Butler
	if err := r.db.Where("request_id = ?", requestID).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *butlerRepository) UpdateContract(b *models.Butler) error {
	return r.db.Omit(clause.Associations).Save(b).Error
}

func (r *butlerRepository) DeleteContract(id uint) error {
	return r.db.Delete(&models.Butler{}, id).Error
}

func (r *butlerRepository) ListContractsByUser(userID uint) ([]models.Butler, error) {
	var list []models.Butler
	err := r.db.Preload("Request.Car.CarModel.Brand").
		Preload("Request.WayPoints").
		Joins("JOIN butler_requests ON butler_requests.id = butlers.request_id").
		Where("butler_requests.user_id = ?", userID).
		Order("butlers.created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *butlerRepository) ListLiveWindows(carID uint, today time.Time) ([]models.ButlerRequest, error) {
	d := models.DateOf(today)
	var list []models.ButlerRequest
	err := r.db.Where("car_id = ? AND end_at > ?", carID, d).
		Where(r.db.Where("is_active = ?", true).
			Or("id IN (?)", r.db.Model(&models.Butler{}).Select("request_id").Where("is_active = ?", true))).
		Order("start_at ASC").
		Find(&list).Error
	return list, err
}
