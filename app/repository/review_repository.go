package repository

import (
	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new review repository instance
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(review *models.Review) error {
	return r.db.Omit(clause.Associations).Create(review).Error
}

func (r *reviewRepository) GetByID(id uint) (*models.Review, error) {
	var review models.Review
	if err := r.db.Preload("CarModel.Brand").Preload("User").First(&review, id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) Update(review *models.Review) error {
	return r.db.Omit(clause.Associations).Save(review).Error
}

func (r *reviewRepository) List(service string, modelID uint, offset, limit int) ([]models.Review, int64, error) {
	q := r.db.Model(&models.Review{}).Where("is_active = ?", true)
	if service != "" {
		q = q.Where("service = ?", service)
	}
	if modelID != 0 {
		q = q.Where("car_model_id = ?", modelID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Review
	err := q.Preload("CarModel.Brand").Preload("User").
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *reviewRepository) CountLikes(reviewID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ReviewLike{}).Where("review_id = ?", reviewID).Count(&count).Error
	return count, err
}

// SetReviewLike is idempotent in both directions
func (r *reviewRepository) SetReviewLike(reviewID, userID uint, liked bool) error {
	if !liked {
		return r.db.Where("review_id = ? AND user_id = ?", reviewID, userID).Delete(&models.ReviewLike{}).Error
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ReviewLike{ReviewID: reviewID, UserID: userID}).Error
}

func (r *reviewRepository) IsReviewLiked(reviewID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.ReviewLike{}).
		Where("review_id = ? AND user_id = ?", reviewID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *reviewRepository) SetModelLike(service string, modelID, userID uint, liked bool) error {
	if !liked {
		return r.db.Where("service = ? AND car_model_id = ? AND user_id = ?", service, modelID, userID).
			Delete(&models.ModelLike{}).Error
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ModelLike{Service: service, CarModelID: modelID, UserID: userID}).Error
}

func (r *reviewRepository) IsModelLiked(service string, modelID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.ModelLike{}).
		Where("service = ? AND car_model_id = ? AND user_id = ?", service, modelID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *reviewRepository) CreateModelRequest(m *models.ModelRequest) error {
	return r.db.Create(m).Error
}
