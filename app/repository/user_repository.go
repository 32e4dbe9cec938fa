package repository

import (
	"strings"

	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDForUpdate(id uint) (*models.User, error) {
	var user models.User
	err := forUpdate(r.db).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByReferralCode(code string) (*models.User, error) {
	var user models.User
	err := r.db.Where("referral_code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByCIHash(hash string) (*models.User, error) {
	var user models.User
	err := r.db.Where("ci_hash = ?", hash).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByMobile(mobile string) (*models.User, error) {
	var user models.User
	err := r.db.Where("mobile = ?", strings.TrimSpace(mobile)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	return count > 0, err
}

// Update updates an existing user
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// UpdatePoint writes only the cached point balance
func (r *userRepository) UpdatePoint(id uint, point int64) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("point", point).Error
}

// Delete soft-deletes a user by ID
func (r *userRepository) Delete(id uint) error {
	return r.db.Delete(&models.User{}, id).Error
}

func (r *userRepository) GetProviderAccount(provider, providerUserID string) (*models.ProviderAccount, error) {
	var pa models.ProviderAccount
	err := r.db.Where("provider = ? AND provider_user_id = ?", provider, providerUserID).First(&pa).Error
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

// SaveProviderAccount inserts or refreshes the tokens of a linked account
func (r *userRepository) SaveProviderAccount(account *models.ProviderAccount) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "access_token", "refresh_token", "expires_at", "updated_at"}),
	}).Create(account).Error
}
