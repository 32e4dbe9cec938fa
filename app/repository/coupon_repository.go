package repository

import (
	"strings"

	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
)

type couponRepository struct {
	db *gorm.DB
}

// NewCouponRepository creates a new coupon repository instance
func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) Create(coupon *models.Coupon) error {
	return r.db.Create(coupon).Error
}

func (r *couponRepository) GetByID(id uint) (*models.Coupon, error) {
	var c models.Coupon
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *couponRepository) GetByIDForUpdate(id uint) (*models.Coupon, error) {
	var c models.Coupon
	if err := forUpdate(r.db).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *couponRepository) GetByCode(code string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *couponRepository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Coupon{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// Update only ever persists is_active; campaigns are otherwise immutable
func (r *couponRepository) Update(coupon *models.Coupon) error {
	return r.db.Model(coupon).Update("is_active", coupon.IsActive).Error
}

func (r *couponRepository) CreateUserCoupon(uc *models.UserCoupon) error {
	return r.db.Omit("Coupon").Create(uc).Error
}

func (r *couponRepository) GetUserCoupon(id uint) (*models.UserCoupon, error) {
	var uc models.UserCoupon
	if err := r.db.Preload("Coupon").First(&uc, id).Error; err != nil {
		return nil, err
	}
	return &uc, nil
}

func (r *couponRepository) GetUserCouponForUpdate(id uint) (*models.UserCoupon, error) {
	var uc models.UserCoupon
	if err := forUpdate(r.db).First(&uc, id).Error; err != nil {
		return nil, err
	}
	c, err := r.GetByID(uc.CouponID)
	if err != nil {
		return nil, err
	}
	uc.Coupon = *c
	return &uc, nil
}

func (r *couponRepository) UpdateUserCoupon(uc *models.UserCoupon) error {
	return r.db.Model(&models.UserCoupon{ID: uc.ID}).
		Select("UsedAt", "IsActive").
		Updates(&models.UserCoupon{UsedAt: uc.UsedAt, IsActive: uc.IsActive}).Error
}

func (r *couponRepository) ListUserCoupons(userID uint, service string) ([]models.UserCoupon, error) {
	var list []models.UserCoupon
	q := r.db.Preload("Coupon").
		Joins("JOIN coupons ON coupons.id = user_coupons.coupon_id").
		Where("user_coupons.user_id = ?", userID)
	if service != "" {
		q = q.Where("coupons.service = ?", service)
	}
	err := q.Order("user_coupons.created_at DESC").Find(&list).Error
	return list, err
}

func (r *couponRepository) CountUserCoupons(couponID, userID uint) (int64, error) {
	q := r.db.Model(&models.UserCoupon{}).Where("coupon_id = ?", couponID)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

func (r *couponRepository) HasUnusedUserCoupon(userID, couponID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserCoupon{}).
		Where("user_id = ? AND coupon_id = ? AND used_at IS NULL", userID, couponID).
		Count(&count).Error
	return count > 0, err
}
