package repository

import (
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
)

type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new content repository instance
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) active(service string) *gorm.DB {
	q := r.db.Where("is_active = ?", true)
	if service != "" {
		q = q.Where("service = ?", service)
	}
	return q
}

func (r *contentRepository) ListNotices(service string) ([]models.Notice, error) {
	var list []models.Notice
	err := r.active(service).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *contentRepository) GetNotice(id uint) (*models.Notice, error) {
	var n models.Notice
	if err := r.db.Where("is_active = ?", true).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *contentRepository) ListEvents(service string) ([]models.Event, error) {
	var list []models.Event
	err := r.active(service).Order("start_date DESC").Find(&list).Error
	return list, err
}

func (r *contentRepository) GetEvent(id uint) (*models.Event, error) {
	var e models.Event
	if err := r.db.Where("is_active = ?", true).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListAds returns the ads whose display window contains now
func (r *contentRepository) ListAds(service string, now time.Time) ([]models.Ad, error) {
	var list []models.Ad
	err := r.active(service).
		Where("start_date <= ? AND end_date >= ?", now, now).
		Order("start_date DESC").
		Find(&list).Error
	return list, err
}

func (r *contentRepository) ListFAQs(service string) ([]models.FAQ, error) {
	var list []models.FAQ
	err := r.active(service).Order("sort_order ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *contentRepository) ListTerms(service string) ([]models.Term, error) {
	var list []models.Term
	err := r.active(service).Order("sort_order ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *contentRepository) ListPrivacyPolicies(service string) ([]models.PrivacyPolicy, error) {
	var list []models.PrivacyPolicy
	err := r.active(service).Order("sort_order ASC, id ASC").Find(&list).Error
	return list, err
}
