// Package coupon issues coupons to users and tracks their use by requests.
//
// The package level helpers take a *repository.Repositories bound to an open
// transaction so request services can bind and use a coupon atomically with
// their own writes.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/codegen"
	"github.com/ManuelReschke/Vahana/internal/pkg/metrics"
)

const CodeLength = 8

var (
	ErrInvalidCoupon    = errors.New("coupon is not valid")
	ErrWrongService     = errors.New("coupon belongs to another service")
	ErrAlreadyHeld      = errors.New("an unused copy of this coupon is already held")
	ErrUsageLimit       = errors.New("coupon usage limit reached")
	ErrUserUsageLimit   = errors.New("coupon usage limit per user reached")
	ErrNotOwner         = errors.New("coupon belongs to another user")
	ErrNotApplicable    = errors.New("coupon does not apply to this car or price")
	ErrUnsupportedScope = errors.New("unknown service")
)

type Service struct {
	uow     repository.UnitOfWork
	repos   *repository.Repositories
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(uow repository.UnitOfWork, repos *repository.Repositories) *Service {
	return &Service{uow: uow, repos: repos, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// Create stores a new campaign under a freshly generated code.
func (s *Service) Create(ctx context.Context, c *models.Coupon) error {
	c.ApplyDefaults(s.now())
	code, err := codegen.Unique(CodeLength, s.repos.Coupon.CodeExists)
	if err != nil {
		return err
	}
	c.Code = code
	if err := c.Validate(); err != nil {
		return err
	}
	return s.repos.Coupon.Create(c)
}

// Lookup returns an active campaign of service by code.
func (s *Service) Lookup(ctx context.Context, code, service string) (*models.Coupon, error) {
	c, err := s.repos.Coupon.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if service != "" && c.Service != service {
		return nil, gorm.ErrRecordNotFound
	}
	if !c.IsValidAt(s.now()) {
		return nil, ErrInvalidCoupon
	}
	return c, nil
}

// Redeem binds the coupon behind code to userID.
func (s *Service) Redeem(ctx context.Context, userID uint, code, service string) (*models.UserCoupon, error) {
	if !models.IsValidService(service) {
		return nil, ErrUnsupportedScope
	}
	now := s.now()

	var uc *models.UserCoupon
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		found, err := repos.Coupon.GetByCode(code)
		if err != nil {
			return err
		}
		if found.Service != service {
			return ErrWrongService
		}
		// Lock the campaign so concurrent redemptions count each other.
		c, err := repos.Coupon.GetByIDForUpdate(found.ID)
		if err != nil {
			return err
		}
		uc, err = Issue(repos, userID, c, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CouponRedeemed(service)
	return uc, nil
}

// List returns the coupons a user holds, optionally limited to one service.
func (s *Service) List(ctx context.Context, userID uint, service string) ([]models.UserCoupon, error) {
	return s.repos.Coupon.ListUserCoupons(userID, strings.ToUpper(service))
}

// Issue creates a binding after checking the usage limits. The caller holds
// the lock on c.
func Issue(repos *repository.Repositories, userID uint, c *models.Coupon, now time.Time) (*models.UserCoupon, error) {
	if !c.IsValidAt(now) {
		return nil, ErrInvalidCoupon
	}

	held, err := repos.Coupon.HasUnusedUserCoupon(userID, c.ID)
	if err != nil {
		return nil, err
	}
	if held {
		return nil, ErrAlreadyHeld
	}

	total, err := repos.Coupon.CountUserCoupons(c.ID, 0)
	if err != nil {
		return nil, err
	}
	if total >= int64(c.UsageLimit) {
		return nil, ErrUsageLimit
	}

	perUser, err := repos.Coupon.CountUserCoupons(c.ID, userID)
	if err != nil {
		return nil, err
	}
	if perUser >= int64(c.UsageLimitPerUser) {
		return nil, ErrUserUsageLimit
	}

	uc := &models.UserCoupon{UserID: userID, CouponID: c.ID, IsActive: true}
	if err := repos.Coupon.CreateUserCoupon(uc); err != nil {
		return nil, err
	}
	uc.Coupon = *c
	return uc, nil
}

// Bind checks that userCouponID may pay for price on car and returns the
// locked binding with the discount it grants. months <= 0 skips the month range.
func Bind(repos *repository.Repositories, userID, userCouponID uint, service string, car *models.Car, price int64, months int, now time.Time) (*models.UserCoupon, int64, error) {
	uc, err := repos.Coupon.GetUserCouponForUpdate(userCouponID)
	if err != nil {
		return nil, 0, err
	}
	if uc.UserID != userID {
		return nil, 0, ErrNotOwner
	}
	if uc.Coupon.Service != service {
		return nil, 0, ErrWrongService
	}
	if !uc.IsValidAt(now) {
		return nil, 0, ErrInvalidCoupon
	}
	if !uc.Coupon.AppliesTo(car, price, months) {
		return nil, 0, ErrNotApplicable
	}
	return uc, uc.Coupon.DiscountFor(price), nil
}

// MarkUsed stamps the binding as used.
func MarkUsed(repos *repository.Repositories, userCouponID uint, now time.Time) error {
	uc, err := repos.Coupon.GetUserCouponForUpdate(userCouponID)
	if err != nil {
		return err
	}
	if err := uc.Use(now); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoupon, err)
	}
	return repos.Coupon.UpdateUserCoupon(uc)
}

// Release returns a used binding. Releasing twice is harmless.
func Release(repos *repository.Repositories, userCouponID uint) error {
	uc, err := repos.Coupon.GetUserCouponForUpdate(userCouponID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !uc.IsUsed() {
		return nil
	}
	uc.Return()
	return repos.Coupon.UpdateUserCoupon(uc)
}

// Rebind moves a request from its current coupon to next. Both may be nil.
// It returns the discount for price under next, zero without a coupon.
func Rebind(repos *repository.Repositories, userID uint, current, next *uint, service string, car *models.Car, price int64, months int, now time.Time) (int64, error) {
	if sameID(current, next) {
		if next == nil {
			return 0, nil
		}
		uc, err := repos.Coupon.GetUserCoupon(*next)
		if err != nil {
			return 0, err
		}
		if !uc.Coupon.AppliesTo(car, price, months) {
			return 0, ErrNotApplicable
		}
		return uc.Coupon.DiscountFor(price), nil
	}

	if current != nil {
		if err := Release(repos, *current); err != nil {
			return 0, err
		}
	}
	if next == nil {
		return 0, nil
	}
	uc, discount, err := Bind(repos, userID, *next, service, car, price, months, now)
	if err != nil {
		return 0, err
	}
	if err := MarkUsed(repos, uc.ID, now); err != nil {
		return 0, err
	}
	return discount, nil
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
