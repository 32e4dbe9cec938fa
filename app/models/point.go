package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	POINT_COUPON       = "COUPON"
	POINT_REFERRAL     = "REFERRAL"
	POINT_WITHDRAW     = "WITHDRAW"
	POINT_DEPOSIT      = "DEPOSIT"
	POINT_REVIEW       = "REVIEW"
	POINT_COMMENT      = "COMMENT"
	POINT_ACTIVITY     = "ACTIVITY"
	POINT_CANCEL       = "CANCEL"
	POINT_SERVICE      = "SERVICE"
	POINT_OTHER        = "OTHER"
	POINT_SUBSCRIPTION = "SUBSCRIPTION"
	POINT_BUTLER       = "BUTLER"
)

var ErrPointAmountZero = errors.New("point amount must not be zero")

// PointTransaction is one signed entry of a user's point ledger. The sum of
// active entries is mirrored in users.point.
type PointTransaction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	Amount          int64     `gorm:"not null" json:"amount"`
	Description     string    `gorm:"type:text" json:"description"`
	TransactionType string    `gorm:"type:varchar(20);index:idx_point_ref;not null" json:"transaction_type" validate:"oneof=COUPON REFERRAL WITHDRAW DEPOSIT REVIEW COMMENT ACTIVITY CANCEL SERVICE OTHER SUBSCRIPTION BUTLER"`
	TransactionID   *uint     `gorm:"index:idx_point_ref" json:"transaction_id"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PointTransaction) Validate() error {
	if p.Amount == 0 {
		return ErrPointAmountZero
	}
	return validator.New().Struct(p)
}

// PointCoupon is a redeemable code that deposits points.
type PointCoupon struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Code              string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	Name              string    `gorm:"type:varchar(50);not null" json:"name" validate:"required,max=50"`
	Description       string    `gorm:"type:text" json:"description"`
	Amount            int64     `gorm:"default:0" json:"amount" validate:"gt=0"`
	UsageLimit        int       `gorm:"default:1" json:"usage_limit"`
	UsageLimitPerUser int       `gorm:"default:1" json:"usage_limit_per_user"`
	ValidFrom         time.Time `gorm:"not null" json:"valid_from"`
	ValidTo           time.Time `gorm:"not null" json:"valid_to"`
	IsActive          bool      `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (pc *PointCoupon) Validate() error {
	if err := validator.New().Struct(pc); err != nil {
		return err
	}
	if pc.ValidFrom.IsZero() || pc.ValidTo.IsZero() || !pc.ValidFrom.Before(pc.ValidTo) {
		return ErrValidityWindow
	}
	if pc.UsageLimit <= 0 || pc.UsageLimitPerUser <= 0 {
		return ErrUsageLimit
	}
	return nil
}

func (pc *PointCoupon) IsValidAt(t time.Time) bool {
	if pc.ValidFrom.IsZero() || pc.ValidTo.IsZero() {
		return false
	}
	return pc.IsActive && !t.Before(pc.ValidFrom) && !t.After(pc.ValidTo)
}

// Referral records that RefereeID signed up with ReferrerID's referral code.
type Referral struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReferrerID uint      `gorm:"index;not null" json:"referrer_id"`
	RefereeID  uint      `gorm:"uniqueIndex;not null" json:"referee_id"`
	CouponID   *uint     `json:"coupon_id"`
	Coupon     *Coupon   `gorm:"foreignKey:CouponID" json:"coupon,omitempty"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReferralRule overrides the default referral reward for one code owner.
type ReferralRule struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Name              string    `gorm:"type:varchar(50);not null" json:"name"`
	Description       string    `gorm:"type:text" json:"description"`
	DiscountType      string    `gorm:"type:varchar(20);default:'PERCENTAGE'" json:"discount_type"`
	DiscountRate      *int      `json:"discount_rate"`
	MaxDiscount       int64     `gorm:"default:1000000000" json:"max_discount"`
	Discount          *int64    `json:"discount"`
	MinPrice          int64     `gorm:"default:0" json:"min_price"`
	MaxPrice          int64     `gorm:"default:1000000000" json:"max_price"`
	MinMonth          *int      `json:"min_month"`
	MaxMonth          *int      `json:"max_month"`
	UsageLimit        int       `gorm:"default:1" json:"usage_limit"`
	UsageLimitPerUser int       `gorm:"default:1" json:"usage_limit_per_user"`
	ValidFrom         time.Time `json:"valid_from"`
	ValidTo           time.Time `json:"valid_to"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ToCoupon copies the rule into a fresh, not yet persisted subscription coupon.
func (r *ReferralRule) ToCoupon() *Coupon {
	return &Coupon{
		Service:           SERVICE_SUBSCRIPTION,
		Name:              r.Name,
		Description:       r.Description,
		DiscountType:      r.DiscountType,
		DiscountRate:      r.DiscountRate,
		MaxDiscount:       r.MaxDiscount,
		Discount:          r.Discount,
		MinPrice:          r.MinPrice,
		MaxPrice:          r.MaxPrice,
		MinMonth:          r.MinMonth,
		MaxMonth:          r.MaxMonth,
		UsageLimit:        r.UsageLimit,
		UsageLimitPerUser: r.UsageLimitPerUser,
		ValidFrom:         r.ValidFrom,
		ValidTo:           r.ValidTo,
		IsActive:          true,
	}
}
