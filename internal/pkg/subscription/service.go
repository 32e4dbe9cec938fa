// Package subscription runs the subscription request and contract
// lifecycle and the recurring billing sweep.
//
// Every mutation is one transaction: coupon use, point spending and the
// request flag flip commit together with the row they belong to.
// Availability and notifications follow once the transaction committed.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/availability"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
	"github.com/ManuelReschke/Vahana/internal/pkg/cache"
	"github.com/ManuelReschke/Vahana/internal/pkg/coupon"
	"github.com/ManuelReschke/Vahana/internal/pkg/env"
	"github.com/ManuelReschke/Vahana/internal/pkg/metrics"
	"github.com/ManuelReschke/Vahana/internal/pkg/points"
)

// DefaultIntervalDays is the billing cadence unless BILLING_INTERVAL_DAYS says otherwise.
const DefaultIntervalDays = 30

var (
	ErrRequestClosed      = errors.New("request is already fulfilled")
	ErrHasContract        = errors.New("request already has a contract")
	ErrBillingRequired    = errors.New("a payment method is required")
	ErrInvalidPointAmount = errors.New("point amount must not be negative")
	ErrStartInPast        = errors.New("start date must not be in the past")
)

// Notifier delivers best-effort notifications.
type Notifier interface {
	SendEmail(to, subject, body string)
	SendSMS(to, message string)
}

// Locker takes a distributed lock and returns its release func.
type Locker func(ctx context.Context, key string, ttl time.Duration) (func(), error)

type Service struct {
	uow          repository.UnitOfWork
	repos        *repository.Repositories
	billing      *billing.Service
	availability *availability.Service
	notifier     Notifier
	metrics      *metrics.Metrics
	lock         Locker
	intervalDays int
	adminEmail   string
	now          func() time.Time
}

func NewService(uow repository.UnitOfWork, repos *repository.Repositories, billingSvc *billing.Service) *Service {
	return &Service{
		uow:          uow,
		repos:        repos,
		billing:      billingSvc,
		availability: availability.NewService(uow),
		lock:         cache.AcquireLock,
		intervalDays: env.GetEnvInt("BILLING_INTERVAL_DAYS", DefaultIntervalDays),
		adminEmail:   env.GetEnv("ADMIN_NOTIFY_EMAIL", ""),
		now:          time.Now,
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) SetLocker(l Locker) { s.lock = l }

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) SetIntervalDays(days int) {
	if days > 0 {
		s.intervalDays = days
	}
}

// RequestInput describes a new subscription request. A billing is either an
// existing BillingID or Credentials to register one with Vendor.
type RequestInput struct {
	CarID        uint
	Month        int
	StartDate    time.Time
	UserCouponID *uint
	PointAmount  int64
	BillingID    *uint
	Vendor       string
	Credentials  *billing.Credentials
}

// UpdateInput changes a pending request. Nil fields keep their value;
// RemoveCoupon drops the bound coupon and a zero PointAmount refunds points.
type UpdateInput struct {
	Month        *int
	StartDate    *time.Time
	UserCouponID *uint
	RemoveCoupon bool
	PointAmount  *int64
	BillingID    *uint
}

func (s *Service) resolveBilling(ctx context.Context, userID uint, id *uint, vendor string, creds *billing.Credentials) (*uint, error) {
	switch {
	case id != nil:
		b, err := s.billing.ActiveBilling(ctx, userID, *id)
		if err != nil {
			return nil, err
		}
		return &b.ID, nil
	case creds != nil:
		b, err := s.billing.RegisterBilling(ctx, userID, vendor, *creds)
		if err != nil {
			return nil, err
		}
		return &b.ID, nil
	}
	return nil, nil
}

func loadSubscribableCar(repos *repository.Repositories, carID uint) (*models.Car, error) {
	car, err := repos.Car.GetByID(carID)
	if err != nil {
		return nil, err
	}
	if !car.IsActive || !car.IsSubscriptable {
		return nil, models.ErrCarNotAvailable
	}
	return car, nil
}

func price(car *models.Car, month int) (int64, error) {
	if !models.IsSubscriptionMonth(month) {
		return 0, models.ErrInvalidMonth
	}
	fee := car.SubscriptionFee(month)
	if fee <= 0 {
		return 0, models.ErrMonthNotPriced
	}
	return fee, nil
}

// spendPoints books amount points against the user. Zero spends nothing.
func spendPoints(repos *repository.Repositories, userID uint, amount int64) (*uint, error) {
	if amount < 0 {
		return nil, ErrInvalidPointAmount
	}
	if amount == 0 {
		return nil, nil
	}
	tx := &models.PointTransaction{
		UserID:          userID,
		Amount:          -amount,
		TransactionType: models.POINT_SUBSCRIPTION,
		Description:     "subscription request",
	}
	if err := points.Append(repos, tx); err != nil {
		return nil, err
	}
	return &tx.ID, nil
}

// CreateRequest applies for a subscription. A coupon is bound and marked
// used and points are spent in the same transaction as the insert.
func (s *Service) CreateRequest(ctx context.Context, userID uint, in RequestInput) (*models.SubscriptionRequest, error) {
	billingID, err := s.resolveBilling(ctx, userID, in.BillingID, in.Vendor, in.Credentials)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := models.DateOf(now)
	req := &models.SubscriptionRequest{
		UserID:       userID,
		CarID:        in.CarID,
		Month:        in.Month,
		StartDate:    in.StartDate,
		UserCouponID: in.UserCouponID,
		BillingID:    billingID,
		IsActive:     true,
	}

	err = s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		car, err := loadSubscribableCar(repos, in.CarID)
		if err != nil {
			return err
		}
		fee, err := price(car, in.Month)
		if err != nil {
			return err
		}
		req.MonthlyFee = fee
		req.ApplyDefaults()
		if err := req.Validate(); err != nil {
			return err
		}
		if req.StartDate.Before(today) {
			return ErrStartInPast
		}
		if from := car.SubscriptionAvailableFrom; from != nil && req.StartDate.Before(models.DateOf(*from)) {
			return models.ErrCarNotAvailable
		}

		if in.UserCouponID != nil {
			uc, discount, err := coupon.Bind(repos, userID, *in.UserCouponID, models.SERVICE_SUBSCRIPTION, car, fee, in.Month, now)
			if err != nil {
				return err
			}
			if err := coupon.MarkUsed(repos, uc.ID, now); err != nil {
				return err
			}
			req.DiscountAmount = discount
		}

		req.PointTransactionID, err = spendPoints(repos, userID, in.PointAmount)
		if err != nil {
			return err
		}
		if err := repos.Subscription.CreateRequest(req); err != nil {
			return err
		}
		if req.PointTransactionID != nil {
			return points.Finalize(repos, *req.PointTransactionID, models.POINT_SUBSCRIPTION, req.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.PointAmount > 0 {
		s.metrics.PointEntry(models.POINT_SUBSCRIPTION)
	}
	_ = s.availability.Recompute(ctx, req.CarID, today)
	s.notifyRequestReceived(req)
	log.Infof("[Subscription] User %d requested car %d for %d months", userID, req.CarID, req.Month)
	return s.repos.Subscription.GetRequest(req.ID)
}

// UpdateRequest changes a pending request owned by userID.
func (s *Service) UpdateRequest(ctx context.Context, userID, requestID uint, in UpdateInput) (*models.SubscriptionRequest, error) {
	billingID, err := s.resolveBilling(ctx, userID, in.BillingID, "", nil)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := models.DateOf(now)
	var carID uint
	err = s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		req, err := repos.Subscription.GetRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		if req.UserID != userID {
			return gorm.ErrRecordNotFound
		}
		if !req.IsActive {
			return ErrRequestClosed
		}
		carID = req.CarID

		car, err := loadSubscribableCar(repos, req.CarID)
		if err != nil {
			return err
		}
		if in.Month != nil {
			req.Month = *in.Month
		}
		if in.StartDate != nil {
			req.StartDate = *in.StartDate
		}
		if billingID != nil {
			req.BillingID = billingID
		}
		fee, err := price(car, req.Month)
		if err != nil {
			return err
		}
		req.MonthlyFee = fee
		req.ApplyDefaults()
		if err := req.Validate(); err != nil {
			return err
		}
		if in.StartDate != nil && req.StartDate.Before(today) {
			return ErrStartInPast
		}

		next := req.UserCouponID
		if in.RemoveCoupon {
			next = nil
		}
		if in.UserCouponID != nil {
			next = in.UserCouponID
		}
		discount, err := coupon.Rebind(repos, userID, req.UserCouponID, next, models.SERVICE_SUBSCRIPTION, car, fee, req.Month, now)
		if err != nil {
			return err
		}
		req.UserCouponID = next
		req.DiscountAmount = discount

		if in.PointAmount != nil {
			if err := s.rebookPoints(repos, req, *in.PointAmount); err != nil {
				return err
			}
		}
		return repos.Subscription.UpdateRequest(req)
	})
	if err != nil {
		return nil, err
	}

	_ = s.availability.Recompute(ctx, carID, today)
	return s.repos.Subscription.GetRequest(requestID)
}

// rebookPoints replaces the points spent on req. The old entry is refunded
// first so the balance check sees the freed points.
func (s *Service) rebookPoints(repos *repository.Repositories, req *models.SubscriptionRequest, amount int64) error {
	if amount < 0 {
		return ErrInvalidPointAmount
	}
	if old := req.PointTransactionID; old != nil {
		current, err := repos.Point.GetByID(*old)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if current != nil && -current.Amount == amount {
			return nil
		}
		// Detach before deleting, the request references the entry.
		req.PointTransactionID = nil
		if err := repos.Subscription.UpdateRequest(req); err != nil {
			return err
		}
		if err := points.Remove(repos, *old); err != nil {
			return err
		}
	}

	id, err := spendPoints(repos, req.UserID, amount)
	if err != nil {
		return err
	}
	req.PointTransactionID = id
	if id != nil {
		return points.Finalize(repos, *id, models.POINT_SUBSCRIPTION, req.ID)
	}
	return nil
}

// DeleteRequest withdraws a pending request, refunding its points and
// returning its coupon.
func (s *Service) DeleteRequest(ctx context.Context, userID, requestID uint) error {
	var carID uint
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		req, err := repos.Subscription.GetRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		if req.UserID != userID {
			return gorm.ErrRecordNotFound
		}
		if _, err := repos.Subscription.GetContractByRequest(req.ID); err == nil {
			return ErrHasContract
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		carID = req.CarID

		if err := repos.Subscription.DeleteRequest(req.ID); err != nil {
			return err
		}
		if req.PointTransactionID != nil {
			if err := points.Remove(repos, *req.PointTransactionID); err != nil {
				return err
			}
		}
		if req.UserCouponID != nil {
			return coupon.Release(repos, *req.UserCouponID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	_ = s.availability.Recompute(ctx, carID, models.DateOf(s.now()))
	return nil
}

// GetRequest returns a request owned by userID.
func (s *Service) GetRequest(ctx context.Context, userID, requestID uint) (*models.SubscriptionRequest, error) {
	req, err := s.repos.Subscription.GetRequest(requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return req, nil
}

func (s *Service) ListRequests(ctx context.Context, userID uint, activeOnly bool) ([]models.SubscriptionRequest, error) {
	return s.repos.Subscription.ListRequestsByUser(userID, activeOnly)
}

// ContractInput changes a contract. Nil fields keep their value.
type ContractInput struct {
	RequestID *uint
	StartDate *time.Time
	EndDate   *time.Time
}

// CreateContract fulfils a pending request. The first charge happens in
// the billing sweep on or after the start date.
func (s *Service) CreateContract(ctx context.Context, requestID uint) (*models.Subscription, error) {
	var (
		sub *models.Subscription
		req *models.SubscriptionRequest
	)
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		var err error
		req, err = repos.Subscription.GetRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		if err := ensureFree(repos, req); err != nil {
			return err
		}
		if req.BillingID == nil && req.ChargeAmount() > 0 {
			return ErrBillingRequired
		}

		start := models.DateOf(req.StartDate)
		sub = &models.Subscription{
			RequestID:           req.ID,
			StartDate:           start,
			EndDate:             models.DateOf(req.EndDate),
			SchedulePaymentDate: &start,
			IsActive:            true,
		}
		if err := sub.Validate(); err != nil {
			return err
		}
		if err := repos.Subscription.CreateContract(sub); err != nil {
			return err
		}
		return repos.Subscription.SetRequestActive(req.ID, false)
	})
	if err != nil {
		return nil, err
	}

	_ = s.availability.Recompute(ctx, req.CarID, models.DateOf(s.now()))
	s.notifyUser(req.UserID, "Your subscription is confirmed",
		fmt.Sprintf("Your subscription runs from %s to %s.", models.FormatDate(sub.StartDate), models.FormatDate(sub.EndDate)))
	log.Infof("[Subscription] Contract %d created for request %d", sub.ID, req.ID)
	return s.repos.Subscription.GetContract(sub.ID)
}

// ensureFree checks that req can take a contract.
func ensureFree(repos *repository.Repositories, req *models.SubscriptionRequest) error {
	if !req.IsActive {
		return ErrRequestClosed
	}
	_, err := repos.Subscription.GetContractByRequest(req.ID)
	if err == nil {
		return ErrHasContract
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

// UpdateContract edits a contract. Moving it to another request reactivates
// the old request and fulfils the new one.
func (s *Service) UpdateContract(ctx context.Context, id uint, in ContractInput) (*models.Subscription, error) {
	var cars []uint
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		sub, err := repos.Subscription.GetContractForUpdate(id)
		if err != nil {
			return err
		}
		oldReq, err := repos.Subscription.GetRequestForUpdate(sub.RequestID)
		if err != nil {
			return err
		}
		cars = append(cars, oldReq.CarID)

		if in.RequestID != nil && *in.RequestID != sub.RequestID {
			next, err := repos.Subscription.GetRequestForUpdate(*in.RequestID)
			if err != nil {
				return err
			}
			if err := ensureFree(repos, next); err != nil {
				return err
			}
			if err := repos.Subscription.SetRequestActive(oldReq.ID, true); err != nil {
				return err
			}
			if err := repos.Subscription.SetRequestActive(next.ID, false); err != nil {
				return err
			}
			sub.RequestID = next.ID
			cars = append(cars, next.CarID)
		}
		if in.StartDate != nil {
			sub.StartDate = models.DateOf(*in.StartDate)
		}
		if in.EndDate != nil {
			sub.EndDate = models.DateOf(*in.EndDate)
		}
		if err := sub.Validate(); err != nil {
			return err
		}
		return repos.Subscription.UpdateContract(sub)
	})
	if err != nil {
		return nil, err
	}

	today := models.DateOf(s.now())
	for _, carID := range uniqueIDs(cars) {
		_ = s.availability.Recompute(ctx, carID, today)
	}
	return s.repos.Subscription.GetContract(id)
}

// DeleteContract removes a contract and puts its request back to pending.
func (s *Service) DeleteContract(ctx context.Context, id uint) error {
	var carID uint
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		sub, err := repos.Subscription.GetContractForUpdate(id)
		if err != nil {
			return err
		}
		req, err := repos.Subscription.GetRequestForUpdate(sub.RequestID)
		if err != nil {
			return err
		}
		carID = req.CarID
		if err := repos.Subscription.DeleteContract(sub.ID); err != nil {
			return err
		}
		return repos.Subscription.SetRequestActive(req.ID, true)
	})
	if err != nil {
		return err
	}
	_ = s.availability.Recompute(ctx, carID, models.DateOf(s.now()))
	log.Infof("[Subscription] Contract %d deleted", id)
	return nil
}

// GetContract returns a contract whose request belongs to userID.
func (s *Service) GetContract(ctx context.Context, userID, id uint) (*models.Subscription, error) {
	sub, err := s.repos.Subscription.GetContract(id)
	if err != nil {
		return nil, err
	}
	if sub.Request.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return sub, nil
}

func (s *Service) ListContracts(ctx context.Context, userID uint) ([]models.Subscription, error) {
	return s.repos.Subscription.ListContractsByUser(userID)
}

func (s *Service) notifyRequestReceived(req *models.SubscriptionRequest) {
	body := fmt.Sprintf("We received your subscription request for %d months starting %s.", req.Month, models.FormatDate(req.StartDate))
	s.notifyUser(req.UserID, "Subscription request received", body)
	if s.notifier != nil && s.adminEmail != "" {
		s.notifier.SendEmail(s.adminEmail, "New subscription request",
			fmt.Sprintf("Request %d by user %d for car %d (%d months).", req.ID, req.UserID, req.CarID, req.Month))
	}
}

func (s *Service) notifyUser(userID uint, subject, body string) {
	if s.notifier == nil {
		return
	}
	u, err := s.repos.User.GetByID(userID)
	if err != nil {
		log.Warnf("[Subscription] Cannot notify user %d: %v", userID, err)
		return
	}
	s.notifier.SendEmail(u.Email, subject, body)
	s.notifier.SendSMS(u.Mobile, subject)
}

func uniqueIDs(ids []uint) []uint {
	seen := map[uint]bool{}
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
