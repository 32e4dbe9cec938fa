package models

import "time"

const (
	VENDOR_TOSS    = "TOSS"
	VENDOR_PORTONE = "PORTONE"
)

const (
	PAYMENT_READY               = "READY"
	PAYMENT_IN_PROGRESS         = "IN_PROGRESS"
	PAYMENT_WAITING_FOR_DEPOSIT = "WAITING_FOR_DEPOSIT"
	PAYMENT_DONE                = "DONE"
	PAYMENT_CANCELED            = "CANCELED"
	PAYMENT_PARTIAL_CANCELED    = "PARTIAL_CANCELED"
	PAYMENT_ABORTED             = "ABORTED"
	PAYMENT_EXPIRED             = "EXPIRED"
)

const (
	PAYMENT_TYPE_NORMAL   = "NORMAL"
	PAYMENT_TYPE_BILLING  = "BILLING"
	PAYMENT_TYPE_BRANDPAY = "BRANDPAY"
)

// Billing is a stored card authorization (billing key) at a payment vendor.
type Billing struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"index;not null" json:"user_id"`
	Vendor           string    `gorm:"type:varchar(20);not null" json:"vendor" validate:"oneof=TOSS PORTONE"`
	CustomerKey      string    `gorm:"type:varchar(255)" json:"customer_key"`
	BillingKey       string    `gorm:"type:varchar(255);not null" json:"-"`
	CardCompany      string    `gorm:"type:varchar(50)" json:"card_company"`
	CardNumber       string    `gorm:"type:varchar(20)" json:"card_number"`
	CardType         string    `gorm:"type:varchar(10)" json:"card_type"`
	CardOwnerType    string    `gorm:"type:varchar(10)" json:"card_owner_type"`
	CardIssuerCode   string    `gorm:"type:varchar(2)" json:"card_issuer_code"`
	CardAcquirerCode string    `gorm:"type:varchar(2)" json:"card_acquirer_code"`
	IsActive         bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Payment records one charge attempt, successful or not.
type Payment struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         *uint      `gorm:"index" json:"user_id"`
	BillingID      *uint      `gorm:"index" json:"billing_id"`
	ButlerID       *uint      `gorm:"index" json:"butler_id"`
	SubscriptionID *uint      `gorm:"index" json:"subscription_id"`
	Vendor         string     `gorm:"type:varchar(20);not null" json:"vendor"`
	PaymentKey     string     `gorm:"type:varchar(200)" json:"payment_key"`
	Status         string     `gorm:"type:varchar(20);not null;index" json:"status"`
	Type           string     `gorm:"type:varchar(20);not null" json:"type"`
	OrderID        string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_id"`
	OrderName      string     `gorm:"type:varchar(100)" json:"order_name"`
	Currency       string     `gorm:"type:varchar(20);default:'KRW'" json:"currency"`
	Method         string     `gorm:"type:varchar(20)" json:"method"`
	TotalAmount    int64      `json:"total_amount"`
	CardNumber     string     `gorm:"type:varchar(20)" json:"card_number"`
	CardApproveNo  string     `gorm:"type:varchar(8)" json:"card_approve_no"`
	ReceiptURL     string     `gorm:"type:varchar(255)" json:"receipt_url"`
	FailureCode    string     `gorm:"type:varchar(64)" json:"failure_code,omitempty"`
	FailureMessage string     `gorm:"type:text" json:"failure_message,omitempty"`
	RequestedAt    time.Time  `json:"requested_at"`
	ApprovedAt     *time.Time `json:"approved_at"`
	CancelledAt    *time.Time `json:"cancelled_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) IsDone() bool {
	return p.Status == PAYMENT_DONE
}
