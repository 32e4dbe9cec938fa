package repository

import (
	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
)

type referralRepository struct {
	db *gorm.DB
}

// NewReferralRepository creates a new referral repository instance
func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepository{db: db}
}

func (r *referralRepository) Create(ref *models.Referral) error {
	return r.db.Omit("Coupon").Create(ref).Error
}

func (r *referralRepository) GetByReferee(refereeID uint) (*models.Referral, error) {
	var ref models.Referral
	if err := r.db.Preload("Coupon").Where("referee_id = ?", refereeID).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *referralRepository) ListByReferrer(referrerID uint) ([]models.Referral, error) {
	var list []models.Referral
	err := r.db.Preload("Coupon").
		Where("referrer_id = ? AND is_active = ?", referrerID, true).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *referralRepository) GetRule(userID uint) (*models.ReferralRule, error) {
	var rule models.ReferralRule
	if err := r.db.Where("user_id = ?", userID).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *referralRepository) SaveRule(rule *models.ReferralRule) error {
	return r.db.Save(rule).Error
}
