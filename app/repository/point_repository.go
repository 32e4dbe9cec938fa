package repository

import (
	"strings"

	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
)

type pointRepository struct {
	db *gorm.DB
}

// NewPointRepository creates a new point ledger repository instance
func NewPointRepository(db *gorm.DB) PointRepository {
	return &pointRepository{db: db}
}

func (r *pointRepository) Create(tx *models.PointTransaction) error {
	return r.db.Create(tx).Error
}

func (r *pointRepository) GetByID(id uint) (*models.PointTransaction, error) {
	var p models.PointTransaction
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pointRepository) Update(tx *models.PointTransaction) error {
	return r.db.Save(tx).Error
}

func (r *pointRepository) Delete(id uint) error {
	return r.db.Delete(&models.PointTransaction{}, id).Error
}

func (r *pointRepository) SumActive(userID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.PointTransaction{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *pointRepository) ListByUser(userID uint, offset, limit int) ([]models.PointTransaction, int64, error) {
	q := r.db.Model(&models.PointTransaction{}).Where("user_id = ? AND is_active = ?", userID, true)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.PointTransaction
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *pointRepository) CountByReference(txType string, refID, userID uint) (int64, error) {
	q := r.db.Model(&models.PointTransaction{}).
		Where("transaction_type = ? AND transaction_id = ?", txType, refID)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

func (r *pointRepository) CreateCoupon(coupon *models.PointCoupon) error {
	return r.db.Create(coupon).Error
}

func (r *pointRepository) GetCouponByCode(code string) (*models.PointCoupon, error) {
	var pc models.PointCoupon
	err := r.db.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&pc).Error
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pointRepository) GetCouponForUpdate(id uint) (*models.PointCoupon, error) {
	var pc models.PointCoupon
	if err := forUpdate(r.db).First(&pc, id).Error; err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pointRepository) CouponCodeExists(code string) (bool, error) {
	var count int64
	err := r.db.Model(&models.PointCoupon{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}
