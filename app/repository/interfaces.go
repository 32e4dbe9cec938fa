package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	// GetByIDForUpdate locks the user row; the point ledger serializes on it.
	GetByIDForUpdate(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByReferralCode(code string) (*models.User, error)
	GetByCIHash(hash string) (*models.User, error)
	GetByMobile(mobile string) (*models.User, error)
	ExistsByEmail(email string) (bool, error)
	Update(user *models.User) error
	UpdatePoint(id uint, point int64) error
	Delete(id uint) error
	GetProviderAccount(provider, providerUserID string) (*models.ProviderAccount, error)
	SaveProviderAccount(account *models.ProviderAccount) error
}

// CarFilter narrows a car listing. Zero values disable a criterion.
type CarFilter struct {
	Service       string
	BrandSlugs    []string
	ModelSlugs    []string
	ModelID       uint
	Months        []int
	AvailableOnly bool
	UpcomingAfter *time.Time
	IsNew         *bool
	IsHot         *bool
	ExcludeIDs    []uint
	FreeOn        []string
	Today         time.Time
	Sort          string
	Desc          bool
	Offset        int
	Limit         int
}

// CarRepository defines the interface for the vehicle catalog
type CarRepository interface {
	CreateBrand(brand *models.Brand) error
	CreateModel(model *models.CarModel) error
	Create(car *models.Car) error
	GetByID(id uint) (*models.Car, error)
	GetModel(id uint) (*models.CarModel, error)
	ListModels() ([]models.CarModel, error)
	Search(filter CarFilter) ([]models.Car, int64, error)
	Update(car *models.Car) error
	UpdateAvailability(carID uint, subscriptionFrom, butlerFrom *time.Time, reservedDates []string) error
}

// CouponRepository covers coupon campaigns and their per-user bindings
type CouponRepository interface {
	Create(coupon *models.Coupon) error
	GetByID(id uint) (*models.Coupon, error)
	GetByIDForUpdate(id uint) (*models.Coupon, error)
	GetByCode(code string) (*models.Coupon, error)
	CodeExists(code string) (bool, error)
	Update(coupon *models.Coupon) error

	CreateUserCoupon(uc *models.UserCoupon) error
	GetUserCoupon(id uint) (*models.UserCoupon, error)
	GetUserCouponForUpdate(id uint) (*models.UserCoupon, error)
	UpdateUserCoupon(uc *models.UserCoupon) error
	ListUserCoupons(userID uint, service string) ([]models.UserCoupon, error)
	// CountUserCoupons counts every binding of a coupon, userID 0 meaning all users.
	CountUserCoupons(couponID, userID uint) (int64, error)
	HasUnusedUserCoupon(userID, couponID uint) (bool, error)
}

// PointRepository covers the point ledger and point coupons
type PointRepository interface {
	Create(tx *models.PointTransaction) error
	GetByID(id uint) (*models.PointTransaction, error)
	Update(tx *models.PointTransaction) error
	Delete(id uint) error
	SumActive(userID uint) (int64, error)
	ListByUser(userID uint, offset, limit int) ([]models.PointTransaction, int64, error)
	// CountByReference counts ledger rows of a type pointing at refID, userID 0 meaning all users.
	CountByReference(txType string, refID, userID uint) (int64, error)

	CreateCoupon(coupon *models.PointCoupon) error
	GetCouponByCode(code string) (*models.PointCoupon, error)
	GetCouponForUpdate(id uint) (*models.PointCoupon, error)
	CouponCodeExists(code string) (bool, error)
}

// SubscriptionRepository covers subscription requests and contracts
type SubscriptionRepository interface {
	CreateRequest(req *models.SubscriptionRequest) error
	GetRequest(id uint) (*models.SubscriptionRequest, error)
	GetRequestForUpdate(id uint) (*models.SubscriptionRequest, error)
	UpdateRequest(req *models.SubscriptionRequest) error
	SetRequestActive(id uint, active bool) error
	DeleteRequest(id uint) error
	ListRequestsByUser(userID uint, activeOnly bool) ([]models.SubscriptionRequest, error)

	CreateContract(sub *models.Subscription) error
	GetContract(id uint) (*models.Subscription, error)
	GetContractForUpdate(id uint) (*models.Subscription, error)
	GetContractByRequest(requestID uint) (*models.Subscription, error)
	UpdateContract(sub *models.Subscription) error
	DeleteContract(id uint) error
	ListContractsByUser(userID uint) ([]models.Subscription, error)
	ListDueIDs(today time.Time) ([]uint, error)
	// LatestEndDate is the max end date over live contracts and active requests
	// of a car that end on or after today, nil when there are none.
	LatestEndDate(carID uint, today time.Time) (*time.Time, error)
}

// ButlerRepository covers butler requests, way points and contracts
type ButlerRepository interface {
	CreateRequest(req *models.ButlerRequest) error
	GetRequest(id uint) (*models.ButlerRequest, error)
	GetRequestForUpdate(id uint) (*models.ButlerRequest, error)
	UpdateRequest(req *models.ButlerRequest) error
	ReplaceWayPoints(requestID uint, points []models.ButlerWayPoint) error
	SetRequestActive(id uint, active bool) error
	DeleteRequest(id uint) error
	ListRequestsByUser(userID uint, activeOnly bool) ([]models.ButlerRequest, error)

	CreateContract(b *models.Butler) error
	GetContract(id uint) (*models.Butler, error)
	GetContractForUpdate(id uint) (*models.Butler, error)
	GetContractByRequest(requestID uint) (*models.Butler, error)
	UpdateContract(b *models.Butler) error
	DeleteContract(id uint) error
	ListContractsByUser(userID uint) ([]models.Butler, error)
	// ListLiveWindows returns the requests of a car that still occupy days after
	// today: active requests plus requests behind an active contract.
	ListLiveWindows(carID uint, today time.Time) ([]models.ButlerRequest, error)
}

// PaymentRepository covers stored billing keys and payment records
type PaymentRepository interface {
	CreateBilling(b *models.Billing) error
	GetBilling(id uint) (*models.Billing, error)
	UpdateBilling(b *models.Billing) error
	ListBillings(userID uint) ([]models.Billing, error)

	CreatePayment(p *models.Payment) error
	UpdatePayment(p *models.Payment) error
	GetPaymentByOrderID(orderID string) (*models.Payment, error)
	ListPayments(userID uint, offset, limit int) ([]models.Payment, int64, error)
}

// ReferralRepository covers referrals and per-user referral rules
type ReferralRepository interface {
	Create(r *models.Referral) error
	GetByReferee(refereeID uint) (*models.Referral, error)
	ListByReferrer(referrerID uint) ([]models.Referral, error)
	GetRule(userID uint) (*models.ReferralRule, error)
	SaveRule(rule *models.ReferralRule) error
}

// ContentRepository serves the read-only service content
type ContentRepository interface {
	ListNotices(service string) ([]models.Notice, error)
	GetNotice(id uint) (*models.Notice, error)
	ListEvents(service string) ([]models.Event, error)
	GetEvent(id uint) (*models.Event, error)
	ListAds(service string, now time.Time) ([]models.Ad, error)
	ListFAQs(service string) ([]models.FAQ, error)
	ListTerms(service string) ([]models.Term, error)
	ListPrivacyPolicies(service string) ([]models.PrivacyPolicy, error)
}

// ReviewRepository covers reviews, likes and model wishes
type ReviewRepository interface {
	Create(r *models.Review) error
	GetByID(id uint) (*models.Review, error)
	Update(r *models.Review) error
	List(service string, modelID uint, offset, limit int) ([]models.Review, int64, error)
	CountLikes(reviewID uint) (int64, error)
	SetReviewLike(reviewID, userID uint, liked bool) error
	IsReviewLiked(reviewID, userID uint) (bool, error)
	SetModelLike(service string, modelID, userID uint, liked bool) error
	IsModelLiked(service string, modelID, userID uint) (bool, error)
	CreateModelRequest(m *models.ModelRequest) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Car          CarRepository
	Coupon       CouponRepository
	Point        PointRepository
	Subscription SubscriptionRepository
	Butler       ButlerRepository
	Payment      PaymentRepository
	Referral     ReferralRepository
	Content      ContentRepository
	Review       ReviewRepository
}

// UnitOfWork runs fn against repositories bound to one database transaction.
// A non-nil error from fn rolls everything back.
type UnitOfWork interface {
	Transaction(ctx context.Context, fn func(repos *Repositories) error) error
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Car:          NewCarRepository(db),
		Coupon:       NewCouponRepository(db),
		Point:        NewPointRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Butler:       NewButlerRepository(db),
		Payment:      NewPaymentRepository(db),
		Referral:     NewReferralRepository(db),
		Content:      NewContentRepository(db),
		Review:       NewReviewRepository(db),
	}
}
