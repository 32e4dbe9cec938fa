package models

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	FUEL_GASOLINE = "GASOLINE"
	FUEL_DIESEL   = "DIESEL"
	FUEL_ELECTRIC = "ELECTRIC"
	FUEL_HYBRID   = "HYBRID"
	FUEL_LPG      = "LPG"

	TRANSMISSION_MANUAL    = "MANUAL"
	TRANSMISSION_AUTOMATIC = "AUTOMATIC"

	DRIVE_FWD = "FWD"
	DRIVE_RWD = "RWD"
	DRIVE_AWD = "AWD"
)

// ElectricCarTax is the flat yearly tax for electric cars.
const ElectricCarTax = 260000

// SubscriptionMonths lists the contract lengths a car can be priced for.
var SubscriptionMonths = []int{1, 3, 6, 12, 24, 36, 48, 60, 72, 84, 96}

var (
	ErrSellPriceRequired      = errors.New("sellable car requires a sell price")
	ErrButlerFeeRequired      = errors.New("butler car requires a butler fee")
	ErrSubscriptionFeeMissing = errors.New("subscriptable car requires at least one subscription fee")
)

var taxAgeDiscount = map[int]float64{
	1: 1.0, 2: 1.0, 3: 0.95, 4: 0.90, 5: 0.85, 6: 0.80,
	7: 0.75, 8: 0.70, 9: 0.65, 10: 0.60, 11: 0.55, 12: 0.50,
}

var acquisitionTaxImported = [20]float64{
	0.729, 0.605, 0.5, 0.412, 0.34, 0.281, 0.232, 0.172, 0.142, 0.117,
	0.097, 0.08, 0.066, 0.054, 0.05, 0.048, 0.046, 0.044, 0.042, 0.04,
}

var acquisitionTaxDomestic = [20]float64{
	0.725, 0.614, 0.518, 0.437, 0.368, 0.311, 0.262, 0.221, 0.186, 0.157,
	0.132, 0.112, 0.094, 0.079, 0.067, 0.063, 0.06, 0.057, 0.053, 0.05,
}

type Brand struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name" validate:"required,max=100"`
	Slug        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	Image       string    `gorm:"type:varchar(255)" json:"image"`
	IsImported  bool      `gorm:"default:false" json:"is_imported"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b *Brand) Validate() error {
	if b.Slug == "" {
		b.Slug = Slugify(b.Name)
	}
	return validator.New().Struct(b)
}

type CarModel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BrandID     uint      `gorm:"index;not null" json:"brand_id"`
	Brand       Brand     `gorm:"foreignKey:BrandID" json:"brand" validate:"-"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name" validate:"required,max=100"`
	Slug        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Code        string    `gorm:"type:varchar(100)" json:"code"`
	Description string    `gorm:"type:text" json:"description"`
	Image       string    `gorm:"type:varchar(255)" json:"image"`
	FrontImage  string    `gorm:"type:varchar(255)" json:"front_image"`
	RearImage   string    `gorm:"type:varchar(255)" json:"rear_image"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CarModel) TableName() string {
	return "car_models"
}

// BuildSlug derives the model slug from brand slug, name and optional code.
func (m *CarModel) BuildSlug(brandSlug string) {
	parts := []string{brandSlug, m.Name}
	if m.Code != "" {
		parts = append(parts, m.Code)
	}
	m.Slug = Slugify(strings.Join(parts, " "))
}

type Car struct {
	ID               uint     `gorm:"primaryKey" json:"id"`
	CarModelID       uint     `gorm:"index;not null" json:"model_id"`
	CarModel         CarModel `gorm:"foreignKey:CarModelID" json:"model" validate:"-"`
	SubModel         string   `gorm:"type:varchar(100)" json:"sub_model"`
	EngineSize       int      `gorm:"default:2000" json:"engine_size" validate:"gte=0"`
	FuelType         string   `gorm:"type:varchar(20);default:'GASOLINE'" json:"fuel_type" validate:"oneof=GASOLINE DIESEL ELECTRIC HYBRID LPG"`
	TransmissionType string   `gorm:"type:varchar(20);default:'AUTOMATIC'" json:"transmission_type" validate:"oneof=MANUAL AUTOMATIC"`
	DriveType        string   `gorm:"type:varchar(10);default:'FWD'" json:"drive_type" validate:"oneof=FWD RWD AWD"`
	PassengerCount   int      `gorm:"default:5" json:"passenger_count"`
	Trim             string   `gorm:"type:varchar(100)" json:"trim"`
	Color            string   `gorm:"type:varchar(50)" json:"color"`
	VINNumber        *string  `gorm:"type:varchar(36);uniqueIndex" json:"vin_number"`
	LicensePlate     string   `gorm:"type:varchar(16)" json:"license_plate"`
	Description      string   `gorm:"type:text" json:"description"`
	Images           []string `gorm:"serializer:json;type:json" json:"images"`
	InspectionReport string   `gorm:"type:varchar(255)" json:"inspection_report"`

	RetailPrice    int64      `gorm:"not null" json:"retail_price" validate:"gte=0"`
	ReleaseDate    *time.Time `gorm:"type:date" json:"release_date"`
	Tax            int64      `json:"tax"`
	AcquisitionTax int64      `json:"acquisition_tax"`
	Mileage        int        `gorm:"default:0" json:"mileage"`

	IsSellable bool   `gorm:"default:false" json:"is_sellable"`
	SellPrice  *int64 `json:"sell_price"`

	IsSubscriptable            bool       `gorm:"default:false;index" json:"is_subscriptable"`
	SubscriptionFee1           *int64     `gorm:"column:subscription_fee_1" json:"subscription_fee_1"`
	SubscriptionFee3           *int64     `gorm:"column:subscription_fee_3" json:"subscription_fee_3"`
	SubscriptionFee6           *int64     `gorm:"column:subscription_fee_6" json:"subscription_fee_6"`
	SubscriptionFee12          *int64     `gorm:"column:subscription_fee_12" json:"subscription_fee_12"`
	SubscriptionFee24          *int64     `gorm:"column:subscription_fee_24" json:"subscription_fee_24"`
	SubscriptionFee36          *int64     `gorm:"column:subscription_fee_36" json:"subscription_fee_36"`
	SubscriptionFee48          *int64     `gorm:"column:subscription_fee_48" json:"subscription_fee_48"`
	SubscriptionFee60          *int64     `gorm:"column:subscription_fee_60" json:"subscription_fee_60"`
	SubscriptionFee72          *int64     `gorm:"column:subscription_fee_72" json:"subscription_fee_72"`
	SubscriptionFee84          *int64     `gorm:"column:subscription_fee_84" json:"subscription_fee_84"`
	SubscriptionFee96          *int64     `gorm:"column:subscription_fee_96" json:"subscription_fee_96"`
	SubscriptionOvermileageFee *int64     `json:"subscription_overmileage_fee"`
	SubscriptionFeeMinimum     int64      `gorm:"default:0" json:"subscription_fee_minimum"`
	SubscriptionAvailableFrom  *time.Time `gorm:"type:date" json:"subscription_available_from"`

	IsButler              bool       `gorm:"default:false;index" json:"is_butler"`
	ButlerFee             *int64     `json:"butler_fee"`
	ButlerOvertimeFee     *int64     `json:"butler_overtime_fee"`
	ButlerReservatedDates []string   `gorm:"serializer:json;type:json" json:"butler_reservated_dates"`
	ButlerAvailableFrom   *time.Time `gorm:"type:date" json:"butler_available_from"`

	IsNew     bool      `gorm:"default:true" json:"is_new"`
	IsHot     bool      `gorm:"default:false" json:"is_hot"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Validate runs the struct tags and the product line rules. It refreshes the
// fee minimum first so subscriptable cars are judged on current fees.
func (c *Car) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.IsSellable && (c.SellPrice == nil || *c.SellPrice == 0) {
		return ErrSellPriceRequired
	}
	if c.IsButler && (c.ButlerFee == nil || *c.ButlerFee == 0) {
		return ErrButlerFeeRequired
	}
	if c.IsSubscriptable {
		c.UpdateSubscriptionFeeMinimum()
		if c.SubscriptionFeeMinimum == 0 {
			return ErrSubscriptionFeeMissing
		}
	}
	return nil
}

func (c *Car) feeSlot(months int) **int64 {
	switch months {
	case 1:
		return &c.SubscriptionFee1
	case 3:
		return &c.SubscriptionFee3
	case 6:
		return &c.SubscriptionFee6
	case 12:
		return &c.SubscriptionFee12
	case 24:
		return &c.SubscriptionFee24
	case 36:
		return &c.SubscriptionFee36
	case 48:
		return &c.SubscriptionFee48
	case 60:
		return &c.SubscriptionFee60
	case 72:
		return &c.SubscriptionFee72
	case 84:
		return &c.SubscriptionFee84
	case 96:
		return &c.SubscriptionFee96
	}
	return nil
}

// SubscriptionFee returns the monthly fee for a contract length, 0 when unpriced.
func (c *Car) SubscriptionFee(months int) int64 {
	slot := c.feeSlot(months)
	if slot == nil || *slot == nil {
		return 0
	}
	return **slot
}

// SetSubscriptionFee prices the given contract length. Unknown lengths are ignored.
func (c *Car) SetSubscriptionFee(months int, fee int64) {
	if slot := c.feeSlot(months); slot != nil {
		*slot = &fee
	}
}

// UpdateSubscriptionFeeMinimum picks the fee of the longest priced contract,
// which is the cheapest monthly rate shown in listings.
func (c *Car) UpdateSubscriptionFeeMinimum() {
	for i := len(SubscriptionMonths) - 1; i >= 0; i-- {
		if fee := c.SubscriptionFee(SubscriptionMonths[i]); fee > 0 {
			c.SubscriptionFeeMinimum = fee
			return
		}
	}
	c.SubscriptionFeeMinimum = 0
}

// AgeAt returns the car age in full years at t, never less than 1.
func (c *Car) AgeAt(t time.Time) int {
	if c.ReleaseDate == nil {
		return 1
	}
	r := *c.ReleaseDate
	age := t.Year() - r.Year()
	if t.Month() < r.Month() || (t.Month() == r.Month() && t.Day() < r.Day()) {
		age--
	}
	if age < 1 {
		return 1
	}
	return age
}

// CalculateTax returns the yearly car tax at t.
func (c *Car) CalculateTax(t time.Time) int64 {
	if c.FuelType == FUEL_ELECTRIC {
		return ElectricCarTax
	}

	var rate float64
	switch {
	case c.EngineSize <= 1000:
		rate = 80
	case c.EngineSize <= 1600:
		rate = 140
	default:
		rate = 200
	}
	base := float64(c.EngineSize) * rate * 1.3

	age := c.AgeAt(t)
	if age > 12 {
		age = 12
	}
	return int64(base * taxAgeDiscount[age])
}

// CalculateAcquisitionTax returns the acquisition tax at t, which depends on
// whether the brand is imported.
func (c *Car) CalculateAcquisitionTax(t time.Time, imported bool) int64 {
	age := c.AgeAt(t)
	if age > 20 {
		age = 20
	}
	table := acquisitionTaxDomestic
	if imported {
		table = acquisitionTaxImported
	}
	return int64(float64(c.RetailPrice) * table[age-1] * 0.07)
}

// PrepareForSave refreshes every derived price field and validates the car.
func (c *Car) PrepareForSave(t time.Time) error {
	c.UpdateSubscriptionFeeMinimum()
	c.Tax = c.CalculateTax(t)
	c.AcquisitionTax = c.CalculateAcquisitionTax(t, c.CarModel.Brand.IsImported)
	return c.Validate()
}

// IsReservedOn reports whether day (YYYY-MM-DD) is in the butler reservation list.
func (c *Car) IsReservedOn(day string) bool {
	for _, d := range c.ButlerReservatedDates {
		if d == day {
			return true
		}
	}
	return false
}

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugNonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
