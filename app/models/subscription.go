package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidMonth     = errors.New("month must be one of 1, 3, 6, 12, 24, 36, 48, 60, 72, 84, 96")
	ErrDateOrder        = errors.New("start date must be before end date")
	ErrCouponOwner      = errors.New("coupon belongs to another user")
	ErrCarNotAvailable  = errors.New("car is not available for this service")
	ErrMonthNotPriced   = errors.New("car has no fee for the requested month count")
	ErrStartDateMissing = errors.New("start date is required")
)

// SubscriptionRequest is a pending application to subscribe to a car.
// IsActive stays true until a Subscription fulfils it.
type SubscriptionRequest struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	UserID             uint              `gorm:"index;uniqueIndex:uniq_sub_req_user_coupon;uniqueIndex:uniq_sub_req_user_point;not null" json:"user_id"`
	CarID              uint              `gorm:"index;not null" json:"car_id"`
	Car                Car               `gorm:"foreignKey:CarID" json:"car" validate:"-"`
	Month              int               `gorm:"not null" json:"month" validate:"required"`
	StartDate          time.Time         `gorm:"type:date;not null" json:"start_date"`
	EndDate            time.Time         `gorm:"type:date;not null;index" json:"end_date"`
	UserCouponID       *uint             `gorm:"uniqueIndex:uniq_sub_req_user_coupon" json:"coupon_id"`
	UserCoupon         *UserCoupon       `gorm:"foreignKey:UserCouponID" json:"coupon,omitempty" validate:"-"`
	PointTransactionID *uint             `gorm:"uniqueIndex:uniq_sub_req_user_point" json:"-"`
	PointTransaction   *PointTransaction `gorm:"foreignKey:PointTransactionID" json:"-" validate:"-"`
	BillingID          *uint             `gorm:"index" json:"billing_id"`
	MonthlyFee         int64             `gorm:"default:0" json:"monthly_fee"`
	DiscountAmount     int64             `gorm:"default:0" json:"discount_amount"`
	IsActive           bool              `gorm:"default:true;index" json:"is_active"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// PointUsed is the number of points spent on the request.
func (r *SubscriptionRequest) PointUsed() int64 {
	if r.PointTransaction == nil {
		return 0
	}
	return -r.PointTransaction.Amount
}

// ApplyDefaults normalizes the dates and derives EndDate from Month.
func (r *SubscriptionRequest) ApplyDefaults() {
	r.StartDate = DateOf(r.StartDate)
	r.EndDate = r.StartDate.AddDate(0, r.Month, 0)
}

func (r *SubscriptionRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return err
	}
	if !IsSubscriptionMonth(r.Month) {
		return ErrInvalidMonth
	}
	if r.StartDate.IsZero() {
		return ErrStartDateMissing
	}
	if !r.StartDate.Before(r.EndDate) {
		return ErrDateOrder
	}
	return nil
}

// ChargeAmount is what one billing period costs after the coupon discount.
func (r *SubscriptionRequest) ChargeAmount() int64 {
	amount := r.MonthlyFee - r.DiscountAmount
	if amount < 0 {
		return 0
	}
	return amount
}

// Subscription is the contract fulfilling a SubscriptionRequest.
type Subscription struct {
	ID                  uint                `gorm:"primaryKey" json:"id"`
	RequestID           uint                `gorm:"uniqueIndex;not null" json:"request_id"`
	Request             SubscriptionRequest `gorm:"foreignKey:RequestID" json:"request"`
	StartDate           time.Time           `gorm:"type:date;not null" json:"start_date"`
	EndDate             time.Time           `gorm:"type:date;not null;index" json:"end_date"`
	LastPaymentDate     *time.Time          `gorm:"type:date" json:"last_payment_date"`
	SchedulePaymentDate *time.Time          `gorm:"type:date;index" json:"schedule_payment_date"`
	IsActive            bool                `gorm:"default:true;index" json:"is_active"`
	CreatedAt           time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) Validate() error {
	if s.StartDate.IsZero() {
		return ErrStartDateMissing
	}
	if !s.StartDate.Before(s.EndDate) {
		return ErrDateOrder
	}
	return nil
}

// IsCurrent reports whether today lies inside the contract period.
func (s *Subscription) IsCurrent(today time.Time) bool {
	d := DateOf(today)
	return s.IsActive && !d.Before(DateOf(s.StartDate)) && !d.After(DateOf(s.EndDate))
}

// IsDue reports whether the renewal sweep should bill the contract on today.
func (s *Subscription) IsDue(today time.Time) bool {
	d := DateOf(today)
	if !s.IsActive || s.StartDate.IsZero() || s.SchedulePaymentDate == nil {
		return false
	}
	return !DateOf(s.EndDate).Before(d) && !DateOf(*s.SchedulePaymentDate).After(d)
}

func IsSubscriptionMonth(m int) bool {
	for _, v := range SubscriptionMonths {
		if v == m {
			return true
		}
	}
	return false
}

// DateOf truncates t to midnight in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
