package repository

import (
	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreateBilling(b *models.Billing) error {
	return r.db.Create(b).Error
}

func (r *paymentRepository) GetBilling(id uint) (*models.Billing, error) {
	var b models.Billing
	if err := r.db.First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *paymentRepository) UpdateBilling(b *models.Billing) error {
	return r.db.Save(b).Error
}

func (r *paymentRepository) ListBillings(userID uint) ([]models.Billing, error) {
	var list []models.Billing
	err := r.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *paymentRepository) CreatePayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *paymentRepository) UpdatePayment(p *models.Payment) error {
	return r.db.Save(p).Error
}

func (r *paymentRepository) GetPaymentByOrderID(orderID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) ListPayments(userID uint, offset, limit int) ([]models.Payment, int64, error) {
	q := r.db.Model(&models.Payment{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Payment
	err := q.Order("requested_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
