package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultButlerWindow is the reservation length when no end time is given.
const DefaultButlerWindow = 10 * time.Hour

// ButlerRequest is a pending chauffeur reservation for one car.
type ButlerRequest struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	UserID             uint              `gorm:"index;uniqueIndex:uniq_butler_req_user_coupon;uniqueIndex:uniq_butler_req_user_point;not null" json:"user_id"`
	CarID              uint              `gorm:"index;not null" json:"car_id"`
	Car                Car               `gorm:"foreignKey:CarID" json:"car" validate:"-"`
	StartAt            time.Time         `gorm:"not null" json:"start_at"`
	StartLocation      string            `gorm:"type:varchar(255);not null" json:"start_location" validate:"required,max=255"`
	EndAt              time.Time         `gorm:"not null;index" json:"end_at"`
	EndLocation        string            `gorm:"type:varchar(255);not null" json:"end_location" validate:"required,max=255"`
	UserCouponID       *uint             `gorm:"uniqueIndex:uniq_butler_req_user_coupon" json:"coupon_id"`
	UserCoupon         *UserCoupon       `gorm:"foreignKey:UserCouponID" json:"coupon,omitempty" validate:"-"`
	PointTransactionID *uint             `gorm:"uniqueIndex:uniq_butler_req_user_point" json:"-"`
	PointTransaction   *PointTransaction `gorm:"foreignKey:PointTransactionID" json:"-" validate:"-"`
	BillingID          *uint             `gorm:"index" json:"billing_id"`
	Fee                int64             `gorm:"default:0" json:"fee"`
	DiscountAmount     int64             `gorm:"default:0" json:"discount_amount"`
	PaymentID          *uint             `json:"payment_id"`
	WayPoints          []ButlerWayPoint  `gorm:"foreignKey:ButlerRequestID;constraint:OnDelete:CASCADE" json:"way_points" validate:"-"`
	IsActive           bool              `gorm:"default:true;index" json:"is_active"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// ApplyDefaults sets StartAt to now and EndAt to StartAt plus the default
// window when they are missing.
func (r *ButlerRequest) ApplyDefaults(now time.Time) {
	if r.StartAt.IsZero() {
		r.StartAt = now
	}
	if r.EndAt.IsZero() {
		r.EndAt = r.StartAt.Add(DefaultButlerWindow)
	}
}

func (r *ButlerRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return err
	}
	if !r.StartAt.Before(r.EndAt) {
		return ErrDateOrder
	}
	return nil
}

func (r *ButlerRequest) PointUsed() int64 {
	if r.PointTransaction == nil {
		return 0
	}
	return -r.PointTransaction.Amount
}

// ChargeAmount is the butler fee after coupon discount and spent points.
func (r *ButlerRequest) ChargeAmount() int64 {
	amount := r.Fee - r.DiscountAmount - r.PointUsed()
	if amount < 0 {
		return 0
	}
	return amount
}

// ReservedDays lists every calendar day the window touches, inclusive.
func (r *ButlerRequest) ReservedDays(loc *time.Location) []string {
	if r.StartAt.IsZero() || r.EndAt.IsZero() {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	var days []string
	end := DateOf(r.EndAt.In(loc))
	for d := DateOf(r.StartAt.In(loc)); !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, FormatDate(d))
	}
	return days
}

type ButlerWayPoint struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ButlerRequestID uint      `gorm:"index;not null" json:"-"`
	Address         string    `gorm:"type:varchar(255);not null" json:"address" validate:"required,max=255"`
	ScheduledTime   time.Time `gorm:"not null" json:"scheduled_time"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Butler is the contract fulfilling a ButlerRequest.
type Butler struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	RequestID uint          `gorm:"uniqueIndex;not null" json:"request_id"`
	Request   ButlerRequest `gorm:"foreignKey:RequestID" json:"request"`
	PaymentID *uint         `json:"payment_id"`
	IsActive  bool          `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}
