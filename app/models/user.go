package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

const (
	GENDER_MALE   = "M"
	GENDER_FEMALE = "F"
)

// UsernamePrefix is used for generated usernames of fresh accounts.
const UsernamePrefix = "vahana"

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Mobile       string         `gorm:"type:varchar(20);index" json:"mobile" validate:"omitempty,max=20"`
	Name         string         `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	Username     string         `gorm:"uniqueIndex;type:varchar(50)" json:"username" validate:"required,min=3,max=50"`
	Password     string         `gorm:"type:text" json:"-"`
	CI           string         `gorm:"type:text" json:"-"`
	CIHash       string         `gorm:"type:char(64);index" json:"-"`
	ProfileImage string         `gorm:"type:varchar(255);default:null" json:"profile_image"`
	Birthday     *time.Time     `gorm:"type:date;default:null" json:"birthday"`
	Gender       string         `gorm:"type:varchar(1);default:null" json:"gender" validate:"omitempty,oneof=M F"`
	ReferralCode string         `gorm:"uniqueIndex;type:varchar(16)" json:"referral_code"`
	Point        int64          `gorm:"not null;default:0" json:"point"`
	Role         string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status       string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	LastLoginAt  *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// CreateUser builds an active user with generated username and referral code.
// An empty password leaves the account usable through social login only.
func CreateUser(email string, password string) (*User, error) {
	u := &User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Username:     GenerateUsername(),
		ReferralCode: GenerateReferralCode(),
		Role:         ROLE_USER,
		Status:       STATUS_ACTIVE,
	}

	if password != "" {
		if err := u.SetPassword(password); err != nil {
			return nil, err
		}
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

func GenerateUsername() string {
	return UsernamePrefix + uuid.NewString()[:8]
}

func GenerateReferralCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	if u.Password == "" {
		return false
	}
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// HashCI stores the CI and its sha256 digest; lookups only ever use the digest.
func (u *User) HashCI(ci string) {
	u.CI = ci
	u.CIHash = HashCI(ci)
}

// HashCI returns the hex sha256 of a CI value, empty for empty input.
func HashCI(ci string) string {
	if ci == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ci))
	return hex.EncodeToString(sum[:])
}

// IsCIVerified reports whether identity verification was completed.
func (u *User) IsCIVerified() bool {
	return u.CIHash != ""
}
