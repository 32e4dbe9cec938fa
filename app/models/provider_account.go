package models

import "time"

const (
	PROVIDER_GOOGLE = "google"
	PROVIDER_KAKAO  = "kakao"
	PROVIDER_NAVER  = "naver"
	PROVIDER_APPLE  = "apple"
)

// ProviderAccount links a social login identity to a user. A provider user id
// can only ever belong to one account.
type ProviderAccount struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index" json:"user_id"`
	Provider       string     `gorm:"index:provider_uid,unique;type:varchar(50)" json:"provider" validate:"oneof=google kakao naver apple"`
	ProviderUserID string     `gorm:"index:provider_uid,unique;type:varchar(191)" json:"provider_user_id"`
	Email          string     `gorm:"type:varchar(200)" json:"email"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsSupportedProvider reports whether name is one of the configured social providers.
func IsSupportedProvider(name string) bool {
	switch name {
	case PROVIDER_GOOGLE, PROVIDER_KAKAO, PROVIDER_NAVER, PROVIDER_APPLE:
		return true
	}
	return false
}
