package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func baseCar() *Car {
	return &Car{
		EngineSize:       2000,
		FuelType:         FUEL_GASOLINE,
		TransmissionType: TRANSMISSION_AUTOMATIC,
		DriveType:        DRIVE_FWD,
		RetailPrice:      30000000,
	}
}

func TestCarAgeAt(t *testing.T) {
	c := baseCar()
	assert.Equal(t, 1, c.AgeAt(date(2026, 1, 1)))

	released := date(2020, 6, 15)
	c.ReleaseDate = &released
	assert.Equal(t, 5, c.AgeAt(date(2026, 6, 14)))
	assert.Equal(t, 6, c.AgeAt(date(2026, 6, 15)))

	fresh := date(2026, 5, 1)
	c.ReleaseDate = &fresh
	assert.Equal(t, 1, c.AgeAt(date(2026, 6, 1)))
}

func TestCarCalculateTax(t *testing.T) {
	now := date(2026, 1, 1)

	electric := baseCar()
	electric.FuelType = FUEL_ELECTRIC
	assert.Equal(t, int64(ElectricCarTax), electric.CalculateTax(now))

	small := baseCar()
	small.EngineSize = 1000
	assert.InDelta(t, 104000, small.CalculateTax(now), 1)

	mid := baseCar()
	mid.EngineSize = 1600
	assert.InDelta(t, 291200, mid.CalculateTax(now), 1)

	old := baseCar()
	released := date(2000, 1, 1)
	old.ReleaseDate = &released
	assert.InDelta(t, 260000, old.CalculateTax(now), 1)
}

func TestCarCalculateAcquisitionTax(t *testing.T) {
	now := date(2026, 1, 1)
	c := baseCar()
	c.RetailPrice = 10000000

	assert.InDelta(t, 10000000*0.725*0.07, c.CalculateAcquisitionTax(now, false), 1)
	assert.InDelta(t, 10000000*0.729*0.07, c.CalculateAcquisitionTax(now, true), 1)

	ancient := date(1990, 1, 1)
	c.ReleaseDate = &ancient
	assert.InDelta(t, 10000000*0.04*0.07, c.CalculateAcquisitionTax(now, true), 1)
}

func TestCarUpdateSubscriptionFeeMinimum(t *testing.T) {
	c := baseCar()
	c.UpdateSubscriptionFeeMinimum()
	assert.Equal(t, int64(0), c.SubscriptionFeeMinimum)

	c.SetSubscriptionFee(1, 900000)
	c.SetSubscriptionFee(12, 700000)
	c.SetSubscriptionFee(96, 0)
	c.UpdateSubscriptionFeeMinimum()
	assert.Equal(t, int64(700000), c.SubscriptionFeeMinimum)
	assert.Equal(t, int64(0), c.SubscriptionFee(5))
}

func TestCarValidate(t *testing.T) {
	c := baseCar()
	assert.NoError(t, c.Validate())

	c.IsSellable = true
	assert.ErrorIs(t, c.Validate(), ErrSellPriceRequired)
	price := int64(25000000)
	c.SellPrice = &price
	assert.NoError(t, c.Validate())

	c.IsButler = true
	assert.ErrorIs(t, c.Validate(), ErrButlerFeeRequired)
	fee := int64(150000)
	c.ButlerFee = &fee
	assert.NoError(t, c.Validate())

	c.IsSubscriptable = true
	assert.ErrorIs(t, c.Validate(), ErrSubscriptionFeeMissing)
	c.SetSubscriptionFee(36, 650000)
	assert.NoError(t, c.Validate())
	assert.Equal(t, int64(650000), c.SubscriptionFeeMinimum)
}

func TestButlerRequestDefaultsAndDays(t *testing.T) {
	now := time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC)
	r := &ButlerRequest{}
	r.ApplyDefaults(now)

	assert.Equal(t, now, r.StartAt)
	assert.Equal(t, now.Add(10*time.Hour), r.EndAt)
	assert.Equal(t, []string{"2026-04-01", "2026-04-02"}, r.ReservedDays(time.UTC))
}

func TestSubscriptionRequestDefaults(t *testing.T) {
	r := &SubscriptionRequest{Month: 3, StartDate: time.Date(2026, 1, 31, 15, 0, 0, 0, time.UTC)}
	r.ApplyDefaults()

	assert.Equal(t, date(2026, 1, 31), r.StartDate)
	assert.Equal(t, date(2026, 5, 1), r.EndDate)
	assert.NoError(t, r.Validate())

	r.Month = 2
	assert.ErrorIs(t, r.Validate(), ErrInvalidMonth)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hyundai-grandeur-gn7", Slugify("  Hyundai Grandeur (GN7) "))
}
