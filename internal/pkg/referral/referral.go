// Package referral rewards sign-ups that came in through another user's
// referral code.
package referral

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/codegen"
	"github.com/ManuelReschke/Vahana/internal/pkg/coupon"
)

var (
	ErrUnknownCode      = errors.New("referral code does not exist")
	ErrSelfReferral     = errors.New("own referral code cannot be used")
	ErrAlreadyReferred  = errors.New("user was already referred")
	ErrReferrerInactive = errors.New("referrer account is not active")
)

// Default reward when the code owner has no rule: one shared coupon for both.
const (
	DefaultName        = "Referral coupon"
	DefaultRate        = 5
	DefaultMaxDiscount = 700000
	DefaultUsageLimit  = 2
	DefaultValidity    = 30 * 24 * time.Hour
)

type Service struct {
	uow   repository.UnitOfWork
	repos *repository.Repositories
	now   func() time.Time
}

func NewService(uow repository.UnitOfWork, repos *repository.Repositories) *Service {
	return &Service{uow: uow, repos: repos, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Create links inviteeID to the owner of referralCode and issues the reward
// coupon. A referral rule of the owner is cloned for the invitee alone.
func (s *Service) Create(ctx context.Context, inviteeID uint, referralCode string) (*models.Referral, error) {
	code := strings.ToUpper(strings.TrimSpace(referralCode))
	now := s.now()

	var ref *models.Referral
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		referrer, err := repos.User.GetByReferralCode(code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownCode
		}
		if err != nil {
			return err
		}
		if referrer.ID == inviteeID {
			return ErrSelfReferral
		}
		if !referrer.IsActive() {
			return ErrReferrerInactive
		}
		if _, err := repos.Referral.GetByReferee(inviteeID); err == nil {
			return ErrAlreadyReferred
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		c, shared, err := rewardCoupon(repos, referrer.ID, now)
		if err != nil {
			return err
		}
		if _, err := coupon.Issue(repos, inviteeID, c, now); err != nil {
			return err
		}
		if shared {
			if _, err := coupon.Issue(repos, referrer.ID, c, now); err != nil {
				return err
			}
		}

		ref = &models.Referral{ReferrerID: referrer.ID, RefereeID: inviteeID, CouponID: &c.ID, IsActive: true}
		return repos.Referral.Create(ref)
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Referral] User %d referred by %d, coupon %d", inviteeID, ref.ReferrerID, *ref.CouponID)
	ref.Coupon = nil
	return ref, nil
}

// rewardCoupon persists the coupon handed out for a referral and reports
// whether the code owner gets a copy too.
func rewardCoupon(repos *repository.Repositories, referrerID uint, now time.Time) (*models.Coupon, bool, error) {
	var c *models.Coupon
	shared := false
	rule, err := repos.Referral.GetRule(referrerID)
	switch {
	case err == nil:
		c = rule.ToCoupon()
	case errors.Is(err, gorm.ErrRecordNotFound):
		rate := DefaultRate
		c = &models.Coupon{
			Service:      models.SERVICE_SUBSCRIPTION,
			Name:         DefaultName,
			Description:  DefaultName,
			DiscountType: models.DISCOUNT_PERCENTAGE,
			DiscountRate: &rate,
			MaxDiscount:  DefaultMaxDiscount,
			UsageLimit:   DefaultUsageLimit,
			ValidFrom:    now,
			ValidTo:      now.Add(DefaultValidity),
		}
		shared = true
	default:
		return nil, false, err
	}

	c.ApplyDefaults(now)
	code, err := codegen.Unique(coupon.CodeLength, repos.Coupon.CodeExists)
	if err != nil {
		return nil, false, err
	}
	c.Code = code
	if err := c.Validate(); err != nil {
		return nil, false, err
	}
	if err := repos.Coupon.Create(c); err != nil {
		return nil, false, err
	}
	return c, shared, nil
}

// List returns the referrals made with userID's code.
func (s *Service) List(ctx context.Context, userID uint) ([]models.Referral, error) {
	return s.repos.Referral.ListByReferrer(userID)
}
