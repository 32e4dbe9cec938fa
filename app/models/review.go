package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// DeletedReviewContent replaces the body of a soft deleted review.
const DeletedReviewContent = "This review has been deleted."

// Review is a user review of a car model, scoped to one product line.
type Review struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Service    string    `gorm:"type:varchar(20);index;not null" json:"service" validate:"oneof=SUBSCRIPTION BUTLER"`
	CarModelID uint      `gorm:"index;not null" json:"model_id"`
	CarModel   CarModel  `gorm:"foreignKey:CarModelID" json:"-" validate:"-"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID" json:"-" validate:"-"`
	Content    string    `gorm:"type:text;not null" json:"content" validate:"required,max=5000"`
	Image      string    `gorm:"type:varchar(255)" json:"image"`
	IsVerified bool      `gorm:"default:false" json:"is_verified"`
	IsActive   bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Review) Validate() error {
	return validator.New().Struct(r)
}

// SoftDelete hides the review but keeps the row for its likes.
func (r *Review) SoftDelete() {
	r.IsActive = false
	r.Content = DeletedReviewContent
}

// ModelLike is one user liking one car model in a product line.
type ModelLike struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Service    string    `gorm:"type:varchar(20);uniqueIndex:uniq_model_like;not null" json:"service"`
	CarModelID uint      `gorm:"uniqueIndex:uniq_model_like;not null" json:"model_id"`
	UserID     uint      `gorm:"uniqueIndex:uniq_model_like;not null" json:"user_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type ReviewLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReviewID  uint      `gorm:"uniqueIndex:uniq_review_like;not null" json:"review_id"`
	UserID    uint      `gorm:"uniqueIndex:uniq_review_like;not null" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ModelRequest is a free text wish for a model not yet offered.
type ModelRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Service   string    `gorm:"type:varchar(20);index;not null" json:"service"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Model     string    `gorm:"type:text;not null" json:"model" validate:"required,max=500"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *ModelRequest) Validate() error {
	return validator.New().Struct(m)
}
