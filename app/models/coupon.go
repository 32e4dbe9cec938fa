package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	SERVICE_SUBSCRIPTION = "SUBSCRIPTION"
	SERVICE_BUTLER       = "BUTLER"
)

const (
	DISCOUNT_PERCENTAGE = "PERCENTAGE"
	DISCOUNT_FIXED      = "FIXED"
	DISCOUNT_FREE       = "FREE"
)

const (
	DefaultMaxDiscount int64 = 1000000000
	DefaultMaxPrice    int64 = 1000000000
)

var (
	ErrDiscountRateRequired = errors.New("percentage coupon requires a discount rate between 1 and 100")
	ErrDiscountRequired     = errors.New("fixed coupon requires a discount greater than 0")
	ErrValidityWindow       = errors.New("valid_from must be before valid_to")
	ErrUsageLimit           = errors.New("usage limits must be at least 1")
	ErrPriceRange           = errors.New("min_price must be >= 0 and below max_price")
	ErrMonthRange           = errors.New("min_month must not exceed max_month")
	ErrCouponNotUsable      = errors.New("coupon is not valid")
)

// IsValidService reports whether s names one of the two product lines.
func IsValidService(s string) bool {
	return s == SERVICE_SUBSCRIPTION || s == SERVICE_BUTLER
}

// Coupon is a discount campaign. It is never edited after creation except
// for IsActive.
type Coupon struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Service           string    `gorm:"type:varchar(20);index;not null" json:"service" validate:"oneof=SUBSCRIPTION BUTLER"`
	Code              string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	Name              string    `gorm:"type:varchar(50);not null" json:"name" validate:"required,max=50"`
	Description       string    `gorm:"type:text" json:"description"`
	BrandIDs          []uint    `gorm:"serializer:json;type:json" json:"brand_ids"`
	ModelIDs          []uint    `gorm:"serializer:json;type:json" json:"model_ids"`
	CarIDs            []uint    `gorm:"serializer:json;type:json" json:"car_ids"`
	DiscountType      string    `gorm:"type:varchar(20);default:'PERCENTAGE'" json:"discount_type" validate:"oneof=PERCENTAGE FIXED FREE"`
	DiscountRate      *int      `json:"discount_rate"`
	MaxDiscount       int64     `gorm:"default:1000000000" json:"max_discount"`
	Discount          *int64    `json:"discount"`
	MinPrice          int64     `gorm:"default:0" json:"min_price"`
	MaxPrice          int64     `gorm:"default:1000000000" json:"max_price"`
	MinMonth          *int      `json:"min_month"`
	MaxMonth          *int      `json:"max_month"`
	UsageLimit        int       `gorm:"default:1" json:"usage_limit"`
	UsageLimitPerUser int       `gorm:"default:1" json:"usage_limit_per_user"`
	ValidFrom         time.Time `gorm:"not null" json:"valid_from"`
	ValidTo           time.Time `gorm:"not null" json:"valid_to"`
	IsActive          bool      `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ApplyDefaults fills zero values the way a freshly created campaign expects.
func (c *Coupon) ApplyDefaults(now time.Time) {
	if c.DiscountType == "" {
		c.DiscountType = DISCOUNT_PERCENTAGE
	}
	if c.MaxDiscount == 0 {
		c.MaxDiscount = DefaultMaxDiscount
	}
	if c.MaxPrice == 0 {
		c.MaxPrice = DefaultMaxPrice
	}
	if c.UsageLimit == 0 {
		c.UsageLimit = 1
	}
	if c.UsageLimitPerUser == 0 {
		c.UsageLimitPerUser = 1
	}
	if c.ValidFrom.IsZero() {
		c.ValidFrom = now
	}
	c.IsActive = true
}

func (c *Coupon) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.DiscountType {
	case DISCOUNT_PERCENTAGE:
		if c.DiscountRate == nil || *c.DiscountRate <= 0 || *c.DiscountRate > 100 {
			return ErrDiscountRateRequired
		}
	case DISCOUNT_FIXED:
		if c.Discount == nil || *c.Discount <= 0 {
			return ErrDiscountRequired
		}
	}

	if c.ValidFrom.IsZero() || c.ValidTo.IsZero() || !c.ValidFrom.Before(c.ValidTo) {
		return ErrValidityWindow
	}
	if c.UsageLimit <= 0 || c.UsageLimitPerUser <= 0 {
		return ErrUsageLimit
	}
	if c.MinPrice < 0 || c.MaxPrice <= c.MinPrice {
		return ErrPriceRange
	}
	if c.MinMonth != nil && c.MaxMonth != nil && *c.MinMonth > *c.MaxMonth {
		return ErrMonthRange
	}
	return nil
}

// IsValidAt is inclusive on both ends of the validity window.
func (c *Coupon) IsValidAt(t time.Time) bool {
	if c.ValidFrom.IsZero() || c.ValidTo.IsZero() {
		return false
	}
	return c.IsActive && !t.Before(c.ValidFrom) && !t.After(c.ValidTo)
}

// IsSpecific reports whether the coupon is restricted to certain brands, models or cars.
func (c *Coupon) IsSpecific() bool {
	return len(c.BrandIDs) > 0 || len(c.ModelIDs) > 0 || len(c.CarIDs) > 0
}

// AppliesTo checks scope, price range and, for subscriptions, the month range.
// months <= 0 skips the month check.
func (c *Coupon) AppliesTo(car *Car, price int64, months int) bool {
	if c.IsSpecific() {
		if !containsID(c.CarIDs, car.ID) &&
			!containsID(c.ModelIDs, car.CarModelID) &&
			!containsID(c.BrandIDs, car.CarModel.BrandID) {
			return false
		}
	}
	if price < c.MinPrice || price > c.MaxPrice {
		return false
	}
	if months > 0 {
		if c.MinMonth != nil && months < *c.MinMonth {
			return false
		}
		if c.MaxMonth != nil && months > *c.MaxMonth {
			return false
		}
	}
	return true
}

// DiscountFor returns the discount applied to price, never more than price.
func (c *Coupon) DiscountFor(price int64) int64 {
	var d int64
	switch c.DiscountType {
	case DISCOUNT_PERCENTAGE:
		if c.DiscountRate != nil {
			d = price * int64(*c.DiscountRate) / 100
		}
		if c.MaxDiscount > 0 && d > c.MaxDiscount {
			d = c.MaxDiscount
		}
	case DISCOUNT_FIXED:
		if c.Discount != nil {
			d = *c.Discount
		}
	case DISCOUNT_FREE:
		d = price
	}
	if d > price {
		d = price
	}
	if d < 0 {
		d = 0
	}
	return d
}

// DiscountLabel is the short human readable discount, e.g. "5%" or "10,000 KRW".
func (c *Coupon) DiscountLabel() string {
	switch c.DiscountType {
	case DISCOUNT_PERCENTAGE:
		if c.DiscountRate != nil {
			return fmt.Sprintf("%d%%", *c.DiscountRate)
		}
	case DISCOUNT_FIXED:
		if c.Discount != nil {
			return FormatAmount(*c.Discount) + " KRW"
		}
	case DISCOUNT_FREE:
		return "FREE"
	}
	return "NO DISCOUNT"
}

// UserCoupon binds a coupon to a user. UsedAt == nil means unused.
type UserCoupon struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	CouponID  uint       `gorm:"index;not null" json:"coupon_id"`
	Coupon    Coupon     `gorm:"foreignKey:CouponID" json:"coupon" validate:"-"`
	UsedAt    *time.Time `json:"used_at"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (uc *UserCoupon) IsUsed() bool {
	return uc.UsedAt != nil
}

// IsValidAt needs the Coupon association loaded.
func (uc *UserCoupon) IsValidAt(t time.Time) bool {
	return uc.IsActive && !uc.IsUsed() && uc.Coupon.IsValidAt(t)
}

// Use stamps UsedAt. It fails without changes when the binding is not valid at t.
func (uc *UserCoupon) Use(t time.Time) error {
	if !uc.IsValidAt(t) {
		return ErrCouponNotUsable
	}
	uc.UsedAt = &t
	return nil
}

// Return clears UsedAt. Calling it on an unused coupon is a no-op.
func (uc *UserCoupon) Return() {
	uc.UsedAt = nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// FormatAmount renders n with thousands separators.
func FormatAmount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if n < 0 {
		neg = true
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
