package models

import "time"

// SERVICE_SALE only scopes content; coupons and requests exist for the other two.
const SERVICE_SALE = "SALE"

// Banner holds the fields shared by notices, events and ads.
type Banner struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Service     string    `gorm:"type:varchar(20);index;not null" json:"service" validate:"oneof=SUBSCRIPTION BUTLER SALE"`
	Title       string    `gorm:"type:varchar(100);not null" json:"title" validate:"required,max=100"`
	Subtitle    string    `gorm:"type:varchar(200)" json:"subtitle"`
	MobileImg   string    `gorm:"type:varchar(500)" json:"mobile_img"`
	DesktopImg  string    `gorm:"type:varchar(500)" json:"desktop_img"`
	DetailImg   string    `gorm:"type:varchar(500)" json:"detail_img"`
	Description string    `gorm:"type:text" json:"description"`
	Link        string    `gorm:"type:varchar(500)" json:"link"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Notice struct {
	Banner `gorm:"embedded"`
}

type Event struct {
	Banner `gorm:"embedded"`
}

type Ad struct {
	Banner `gorm:"embedded"`
}

type FAQ struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Service   string    `gorm:"type:varchar(20);index;not null" json:"service"`
	Order     int       `gorm:"column:sort_order;default:1" json:"order"`
	Question  string    `gorm:"type:varchar(200);not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FAQ) TableName() string {
	return "faqs"
}

// Clause is one ordered section of a legal document.
type Clause struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Service   string    `gorm:"type:varchar(20);index;not null" json:"service"`
	Order     int       `gorm:"column:sort_order;default:1" json:"order"`
	Subject   string    `gorm:"type:varchar(200);not null" json:"subject"`
	Detail    string    `gorm:"type:text;not null" json:"detail"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Term struct {
	Clause `gorm:"embedded"`
}

type PrivacyPolicy struct {
	Clause `gorm:"embedded"`
}

func (PrivacyPolicy) TableName() string {
	return "privacy_policies"
}
