package controllers

import (
	"time"

	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/accounts"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
	"github.com/ManuelReschke/Vahana/internal/pkg/butler"
	"github.com/ManuelReschke/Vahana/internal/pkg/coupon"
	"github.com/ManuelReschke/Vahana/internal/pkg/points"
	"github.com/ManuelReschke/Vahana/internal/pkg/referral"
	"github.com/ManuelReschke/Vahana/internal/pkg/review"
	"github.com/ManuelReschke/Vahana/internal/pkg/scheduler"
	"github.com/ManuelReschke/Vahana/internal/pkg/subscription"
)

// Services bundles everything the handlers depend on. It is built once at
// startup and shared by all controllers.
type Services struct {
	Repos        *repository.Repositories
	Accounts     *accounts.Service
	Referral     *referral.Service
	Coupon       *coupon.Service
	Points       *points.Service
	Subscription *subscription.Service
	Butler       *butler.Service
	Billing      *billing.Service
	Review       *review.Service
	Scheduler    *scheduler.Scheduler
	Now          func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
