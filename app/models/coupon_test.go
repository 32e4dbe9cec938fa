package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func validCoupon(now time.Time) *Coupon {
	c := &Coupon{
		Service:      SERVICE_SUBSCRIPTION,
		Code:         "ABCD1234",
		Name:         "Welcome",
		DiscountType: DISCOUNT_PERCENTAGE,
		DiscountRate: intPtr(10),
		ValidTo:      now.Add(24 * time.Hour),
	}
	c.ApplyDefaults(now)
	return c
}

func TestCouponValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(c *Coupon)
		err    error
	}{
		{"valid percentage", func(c *Coupon) {}, nil},
		{"percentage without rate", func(c *Coupon) { c.DiscountRate = nil }, ErrDiscountRateRequired},
		{"percentage over 100", func(c *Coupon) { c.DiscountRate = intPtr(101) }, ErrDiscountRateRequired},
		{"fixed without amount", func(c *Coupon) { c.DiscountType = DISCOUNT_FIXED }, ErrDiscountRequired},
		{"fixed with amount", func(c *Coupon) { c.DiscountType = DISCOUNT_FIXED; c.Discount = int64Ptr(5000) }, nil},
		{"free needs nothing", func(c *Coupon) { c.DiscountType = DISCOUNT_FREE; c.DiscountRate = nil }, nil},
		{"equal bounds rejected", func(c *Coupon) { c.ValidTo = c.ValidFrom }, ErrValidityWindow},
		{"reversed bounds rejected", func(c *Coupon) { c.ValidTo = c.ValidFrom.Add(-time.Hour) }, ErrValidityWindow},
		{"zero usage limit", func(c *Coupon) { c.UsageLimit = -1 }, ErrUsageLimit},
		{"max price not above min", func(c *Coupon) { c.MinPrice = 100; c.MaxPrice = 100 }, ErrPriceRange},
		{"month range reversed", func(c *Coupon) { c.MinMonth = intPtr(12); c.MaxMonth = intPtr(6) }, ErrMonthRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCoupon(now)
			tt.mutate(c)
			err := c.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCouponValidate_RejectsUnknownService(t *testing.T) {
	c := validCoupon(time.Now())
	c.Service = "SALE"
	assert.Error(t, c.Validate())
}

func TestCouponIsValidAt_InclusiveBounds(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(48 * time.Hour)
	c := &Coupon{IsActive: true, ValidFrom: from, ValidTo: to}

	assert.True(t, c.IsValidAt(from))
	assert.True(t, c.IsValidAt(to))
	assert.False(t, c.IsValidAt(from.Add(-time.Nanosecond)))
	assert.False(t, c.IsValidAt(to.Add(time.Nanosecond)))

	c.IsActive = false
	assert.False(t, c.IsValidAt(from.Add(time.Hour)))
}

func TestCouponIsValidAt_EqualBoundsOnlyAtInstant(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	c := &Coupon{IsActive: true, ValidFrom: at, ValidTo: at}

	assert.True(t, c.IsValidAt(at))
	assert.False(t, c.IsValidAt(at.Add(time.Second)))
	assert.False(t, c.IsValidAt(at.Add(-time.Second)))
	assert.ErrorIs(t, (&Coupon{
		Service: SERVICE_BUTLER, Name: "x", DiscountType: DISCOUNT_FREE,
		ValidFrom: at, ValidTo: at, UsageLimit: 1, UsageLimitPerUser: 1, MaxPrice: 10,
	}).Validate(), ErrValidityWindow)
}

func TestCouponDiscountFor(t *testing.T) {
	pct := &Coupon{DiscountType: DISCOUNT_PERCENTAGE, DiscountRate: intPtr(5), MaxDiscount: 700000}
	assert.Equal(t, int64(50000), pct.DiscountFor(1000000))
	assert.Equal(t, int64(700000), pct.DiscountFor(100000000))

	fixed := &Coupon{DiscountType: DISCOUNT_FIXED, Discount: int64Ptr(30000)}
	assert.Equal(t, int64(30000), fixed.DiscountFor(100000))
	assert.Equal(t, int64(20000), fixed.DiscountFor(20000))

	free := &Coupon{DiscountType: DISCOUNT_FREE}
	assert.Equal(t, int64(123456), free.DiscountFor(123456))
}

func TestCouponDiscountLabel(t *testing.T) {
	assert.Equal(t, "5%", (&Coupon{DiscountType: DISCOUNT_PERCENTAGE, DiscountRate: intPtr(5)}).DiscountLabel())
	assert.Equal(t, "10,000 KRW", (&Coupon{DiscountType: DISCOUNT_FIXED, Discount: int64Ptr(10000)}).DiscountLabel())
	assert.Equal(t, "FREE", (&Coupon{DiscountType: DISCOUNT_FREE}).DiscountLabel())
}

func TestCouponAppliesTo(t *testing.T) {
	car := &Car{ID: 7, CarModelID: 3, CarModel: CarModel{ID: 3, BrandID: 2}}

	open := &Coupon{MaxPrice: DefaultMaxPrice}
	assert.False(t, open.IsSpecific())
	assert.True(t, open.AppliesTo(car, 500000, 12))

	byBrand := &Coupon{BrandIDs: []uint{2}, MaxPrice: DefaultMaxPrice}
	assert.True(t, byBrand.IsSpecific())
	assert.True(t, byBrand.AppliesTo(car, 500000, 12))

	otherCar := &Coupon{CarIDs: []uint{8}, MaxPrice: DefaultMaxPrice}
	assert.False(t, otherCar.AppliesTo(car, 500000, 12))

	priced := &Coupon{MinPrice: 600000, MaxPrice: DefaultMaxPrice}
	assert.False(t, priced.AppliesTo(car, 500000, 12))

	months := &Coupon{MaxPrice: DefaultMaxPrice, MinMonth: intPtr(12), MaxMonth: intPtr(24)}
	assert.False(t, months.AppliesTo(car, 500000, 6))
	assert.True(t, months.AppliesTo(car, 500000, 24))
	assert.True(t, months.AppliesTo(car, 500000, 0))
}

func TestUserCouponUseAndReturn(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := &UserCoupon{IsActive: true, Coupon: *validCoupon(now)}

	require.NoError(t, uc.Use(now))
	assert.True(t, uc.IsUsed())
	assert.ErrorIs(t, uc.Use(now), ErrCouponNotUsable)

	uc.Return()
	assert.Nil(t, uc.UsedAt)
	uc.Return()
	assert.Nil(t, uc.UsedAt)
	assert.True(t, uc.IsValidAt(now))
}

func TestUserCouponUse_ExpiredCoupon(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := &UserCoupon{IsActive: true, Coupon: *validCoupon(now)}

	err := uc.Use(now.Add(72 * time.Hour))
	assert.ErrorIs(t, err, ErrCouponNotUsable)
	assert.Nil(t, uc.UsedAt)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(0))
	assert.Equal(t, "999", FormatAmount(999))
	assert.Equal(t, "1,000", FormatAmount(1000))
	assert.Equal(t, "1,234,567", FormatAmount(1234567))
	assert.Equal(t, "-12,000", FormatAmount(-12000))
}
