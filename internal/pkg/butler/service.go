// Package butler runs the chauffeur reservation lifecycle. Unlike
// subscriptions a butler contract is charged once, right after it is
// created.
package butler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/availability"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
	"github.com/ManuelReschke/Vahana/internal/pkg/coupon"
	"github.com/ManuelReschke/Vahana/internal/pkg/env"
	"github.com/ManuelReschke/Vahana/internal/pkg/metrics"
	"github.com/ManuelReschke/Vahana/internal/pkg/points"
)

var (
	ErrRequestClosed      = errors.New("request is already fulfilled")
	ErrHasContract        = errors.New("request already has a contract")
	ErrBillingRequired    = errors.New("a payment method is required")
	ErrInvalidPointAmount = errors.New("point amount must not be negative")
	ErrStartInPast        = errors.New("start time must not be in the past")
	ErrOverlap            = errors.New("car is already reserved in this time window")
)

type Notifier interface {
	SendEmail(to, subject, body string)
	SendSMS(to, message string)
}

type Service struct {
	uow          repository.UnitOfWork
	repos        *repository.Repositories
	billing      *billing.Service
	availability *availability.Service
	notifier     Notifier
	metrics      *metrics.Metrics
	adminEmail   string
	now          func() time.Time
}

func NewService(uow repository.UnitOfWork, repos *repository.Repositories, billingSvc *billing.Service) *Service {
	return &Service{
		uow:          uow,
		repos:        repos,
		billing:      billingSvc,
		availability: availability.NewService(uow),
		adminEmail:   env.GetEnv("ADMIN_NOTIFY_EMAIL", ""),
		now:          time.Now,
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) SetClock(now func() time.Time) { s.now = now }

type WayPointInput struct {
	Address       string    `json:"address"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

// RequestInput describes a reservation. A zero StartAt means now and a
// zero EndAt means StartAt plus the default window.
type RequestInput struct {
	CarID         uint
	StartAt       time.Time
	EndAt         time.Time
	StartLocation string
	EndLocation   string
	WayPoints     []WayPointInput
	UserCouponID  *uint
	PointAmount   int64
	BillingID     *uint
	Vendor        string
	Credentials   *billing.Credentials
}

// UpdateInput changes a pending reservation. Nil fields keep their value.
// A new StartAt without EndAt moves the end along with the default window.
type UpdateInput struct {
	StartAt       *time.Time
	EndAt         *time.Time
	StartLocation *string
	EndLocation   *string
	WayPoints     *[]WayPointInput
	UserCouponID  *uint
	RemoveCoupon  bool
	PointAmount   *int64
	BillingID     *uint
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

func loadButlerCar(repos *repository.Repositories, carID uint) (*models.Car, int64, error) {
	car, err := repos.Car.GetByID(carID)
	if err != nil {
		return nil, 0, err
	}
	if !car.IsActive || !car.IsButler || car.ButlerFee == nil || *car.ButlerFee <= 0 {
		return nil, 0, models.ErrCarNotAvailable
	}
	return car, *car.ButlerFee, nil
}

func toWayPoints(in []WayPointInput) ([]models.ButlerWayPoint, error) {
	v := validator.New()
	out := make([]models.ButlerWayPoint, 0, len(in))
	for _, wp := range in {
		p := models.ButlerWayPoint{Address: wp.Address, ScheduledTime: wp.ScheduledTime}
		if err := v.Struct(p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// checkWindow rejects windows that collide with a subscription or another
// live reservation of the same car.
func checkWindow(repos *repository.Repositories, req *models.ButlerRequest, today time.Time) error {
	latest, err := repos.Subscription.LatestEndDate(req.CarID, today)
	if err != nil {
		return err
	}
	if latest != nil && !models.DateOf(req.StartAt).After(models.DateOf(*latest)) {
		return models.ErrCarNotAvailable
	}

	windows, err := repos.Butler.ListLiveWindows(req.CarID, today)
	if err != nil {
		return err
	}
	for _, w := range windows {
		if w.ID == req.ID {
			continue
		}
		if req.StartAt.Before(w.EndAt) && w.StartAt.Before(req.EndAt) {
			return ErrOverlap
		}
	}
	return nil
}

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
		TransactionType: models.POINT_BUTLER,
		Description:     "butler reservation",
	}
	if err := points.Append(repos, tx); err != nil {
		return nil, err
	}
	return &tx.ID, nil
}

// CreateRequest reserves a car. Coupon use and point spending commit with
// the reservation.
func (s *Service) CreateRequest(ctx context.Context, userID uint, in RequestInput) (*models.ButlerRequest, error) {
	billingID, err := s.resolveBilling(ctx, userID, in.BillingID, in.Vendor, in.Credentials)
	if err != nil {
		return nil, err
	}
	wayPoints, err := toWayPoints(in.WayPoints)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := models.DateOf(now)
	req := &models.ButlerRequest{
		UserID:        userID,
		CarID:         in.CarID,
		StartAt:       in.StartAt,
		EndAt:         in.EndAt,
		StartLocation: in.StartLocation,
		EndLocation:   in.EndLocation,
		UserCouponID:  in.UserCouponID,
		BillingID:     billingID,
		WayPoints:     wayPoints,
		IsActive:      true,
	}
	req.ApplyDefaults(now)

	err = s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		car, fee, err := loadButlerCar(repos, in.CarID)
		if err != nil {
			return err
		}
		req.Fee = fee
		if err := req.Validate(); err != nil {
			return err
		}
		if models.DateOf(req.StartAt).Before(today) {
			return ErrStartInPast
		}
		if err := checkWindow(repos, req, today); err != nil {
			return err
		}

		if in.UserCouponID != nil {
			uc, discount, err := coupon.Bind(repos, userID, *in.UserCouponID, models.SERVICE_BUTLER, car, fee, 0, now)
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
		if err := repos.Butler.CreateRequest(req); err != nil {
			return err
		}
		if req.PointTransactionID != nil {
			return points.Finalize(repos, *req.PointTransactionID, models.POINT_BUTLER, req.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.PointAmount > 0 {
		s.metrics.PointEntry(models.POINT_BUTLER)
	}
	_ = s.availability.Recompute(ctx, req.CarID, today)
	s.notifyUser(req.UserID, "Butler reservation received",
		fmt.Sprintf("We received your butler reservation from %s at %s.", req.StartAt.Format("2006-01-02 15:04"), req.StartLocation))
	if s.notifier != nil && s.adminEmail != "" {
		s.notifier.SendEmail(s.adminEmail, "New butler request",
			fmt.Sprintf("Request %d by user %d for car %d.", req.ID, req.UserID, req.CarID))
	}
	log.Infof("[Butler] User %d reserved car %d from %s", userID, req.CarID, req.StartAt.Format(time.RFC3339))
	return s.repos.Butler.GetRequest(req.ID)
}

// UpdateRequest changes a pending reservation owned by userID.
func (s *Service) UpdateRequest(ctx context.Context, userID, requestID uint, in UpdateInput) (*models.ButlerRequest, error) {
	billingID, err := s.resolveBilling(ctx, userID, in.BillingID, "", nil)
	if err != nil {
		return nil, err
	}
	var wayPoints []models.ButlerWayPoint
	if in.WayPoints != nil {
		if wayPoints, err = toWayPoints(*in.WayPoints); err != nil {
			return nil, err
		}
	}

	now := s.now()
	today := models.DateOf(now)
	var carID uint
	err = s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		req, err := repos.Butler.GetRequestForUpdate(requestID)
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

		car, fee, err := loadButlerCar(repos, req.CarID)
		if err != nil {
			return err
		}
		if in.StartAt != nil {
			req.StartAt = *in.StartAt
			if in.EndAt == nil {
				req.EndAt = req.StartAt.Add(models.DefaultButlerWindow)
			}
		}
		if in.EndAt != nil {
			req.EndAt = *in.EndAt
		}
		if in.StartLocation != nil {
			req.StartLocation = *in.StartLocation
		}
		if in.EndLocation != nil {
			req.EndLocation = *in.EndLocation
		}
		if billingID != nil {
			req.BillingID = billingID
		}
		req.Fee = fee
		if err := req.Validate(); err != nil {
			return err
		}
		if in.StartAt != nil && models.DateOf(req.StartAt).Before(today) {
			return ErrStartInPast
		}
		if err := checkWindow(repos, req, today); err != nil {
			return err
		}

		next := req.UserCouponID
		if in.RemoveCoupon {
			next = nil
		}
		if in.UserCouponID != nil {
			next = in.UserCouponID
		}
		discount, err := coupon.Rebind(repos, userID, req.UserCouponID, next, models.SERVICE_BUTLER, car, fee, 0, now)
		if err != nil {
			return err
		}
		req.UserCouponID = next
		req.DiscountAmount = discount

		if in.PointAmount != nil {
			if err := rebookPoints(repos, req, *in.PointAmount); err != nil {
				return err
			}
		}
		if in.WayPoints != nil {
			if err := repos.Butler.ReplaceWayPoints(req.ID, wayPoints); err != nil {
				return err
			}
		}
		return repos.Butler.UpdateRequest(req)
	})
	if err != nil {
		return nil, err
	}

	_ = s.availability.Recompute(ctx, carID, today)
	return s.repos.Butler.GetRequest(requestID)
}

func rebookPoints(repos *repository.Repositories, req *models.ButlerRequest, amount int64) error {
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
		req.PointTransactionID = nil
		if err := repos.Butler.UpdateRequest(req); err != nil {
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
		return points.Finalize(repos, *id, models.POINT_BUTLER, req.ID)
	}
	return nil
}

// DeleteRequest cancels a pending reservation, refunding points and
// returning the coupon.
func (s *Service) DeleteRequest(ctx context.Context, userID, requestID uint) error {
	var carID uint
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		req, err := repos.Butler.GetRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		if req.UserID != userID {
			return gorm.ErrRecordNotFound
		}
		if _, err := repos.Butler.GetContractByRequest(req.ID); err == nil {
			return ErrHasContract
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		carID = req.CarID

		if err := repos.Butler.DeleteRequest(req.ID); err != nil {
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

func (s *Service) GetRequest(ctx context.Context, userID, requestID uint) (*models.ButlerRequest, error) {
	req, err := s.repos.Butler.GetRequest(requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return req, nil
}

func (s *Service) ListRequests(ctx context.Context, userID uint, activeOnly bool) ([]models.ButlerRequest, error) {
	return s.repos.Butler.ListRequestsByUser(userID, activeOnly)
}

// attachPoints loads the spent point entry. The locking loaders skip
// preloads, and ChargeAmount needs it.
func attachPoints(repos *repository.Repositories, req *models.ButlerRequest) error {
	req.PointTransaction = nil
	if req.PointTransactionID == nil {
		return nil
	}
	pt, err := repos.Point.GetByID(*req.PointTransactionID)
	if err != nil {
		return err
	}
	req.PointTransaction = pt
	return nil
}

func ensureFree(repos *repository.Repositories, req *models.ButlerRequest) error {
	if !req.IsActive {
		return ErrRequestClosed
	}
	_, err := repos.Butler.GetContractByRequest(req.ID)
	if err == nil {
		return ErrHasContract
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

// CreateContract confirms a reservation and charges it. When the charge
// fails the contract is removed again and the request is pending as before.
func (s *Service) CreateContract(ctx context.Context, requestID uint) (*models.Butler, error) {
	var contract *models.Butler
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		req, err := repos.Butler.GetRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		if err := ensureFree(repos, req); err != nil {
			return err
		}
		if err := attachPoints(repos, req); err != nil {
			return err
		}
		if req.BillingID == nil && req.ChargeAmount() > 0 {
			return ErrBillingRequired
		}
		contract = &models.Butler{RequestID: req.ID, IsActive: true}
		if err := repos.Butler.CreateContract(contract); err != nil {
			return err
		}
		return repos.Butler.SetRequestActive(req.ID, false)
	})
	if err != nil {
		return nil, err
	}

	req, err := s.repos.Butler.GetRequest(requestID)
	if err != nil {
		return nil, err
	}
	payment, err := s.charge(ctx, contract, req)
	if err != nil {
		if derr := s.DeleteContract(ctx, contract.ID); derr != nil {
			log.Errorf("[Butler] Failed to roll back contract %d after payment error: %v", contract.ID, derr)
		}
		return nil, err
	}

	err = s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		b, err := repos.Butler.GetContractForUpdate(contract.ID)
		if err != nil {
			return err
		}
		b.PaymentID = &payment.ID
		if err := repos.Butler.UpdateContract(b); err != nil {
			return err
		}
		r, err := repos.Butler.GetRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		r.PaymentID = &payment.ID
		return repos.Butler.UpdateRequest(r)
	})
	if err != nil {
		log.Errorf("[Butler] Contract %d paid with payment %d but linking failed: %v", contract.ID, payment.ID, err)
	}

	_ = s.availability.Recompute(ctx, req.CarID, models.DateOf(s.now()))
	s.notifyUser(req.UserID, "Your butler reservation is confirmed",
		fmt.Sprintf("Your butler reservation on %s is confirmed. Charged %s KRW.", req.StartAt.Format("2006-01-02 15:04"), models.FormatAmount(payment.TotalAmount)))
	log.Infof("[Butler] Contract %d created for request %d", contract.ID, requestID)
	return s.repos.Butler.GetContract(contract.ID)
}

func (s *Service) charge(ctx context.Context, contract *models.Butler, req *models.ButlerRequest) (*models.Payment, error) {
	amount := req.ChargeAmount()
	var b *models.Billing
	if req.BillingID != nil {
		var err error
		b, err = s.billing.ActiveBilling(ctx, req.UserID, *req.BillingID)
		if err != nil && amount > 0 {
			return nil, err
		}
	}

	order := billing.Order{
		ID:       fmt.Sprintf("butler-%d", contract.ID),
		Name:     fmt.Sprintf("Butler %s", req.StartAt.Format("2006-01-02")),
		UserID:   req.UserID,
		ButlerID: &contract.ID,
	}
	if u, err := s.repos.User.GetByID(req.UserID); err == nil {
		order.CustomerEmail = u.Email
		order.CustomerName = u.Name
	}
	return s.billing.Charge(ctx, b, amount, order)
}

// ContractInput changes a contract. Nil fields keep their value.
type ContractInput struct {
	RequestID *uint
	IsActive  *bool
}

// UpdateContract edits a contract. Moving it to another request reactivates
// the old request and fulfils the new one.
func (s *Service) UpdateContract(ctx context.Context, id uint, in ContractInput) (*models.Butler, error) {
	var cars []uint
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		b, err := repos.Butler.GetContractForUpdate(id)
		if err != nil {
			return err
		}
		oldReq, err := repos.Butler.GetRequestForUpdate(b.RequestID)
		if err != nil {
			return err
		}
		cars = append(cars, oldReq.CarID)

		if in.RequestID != nil && *in.RequestID != b.RequestID {
			next, err := repos.Butler.GetRequestForUpdate(*in.RequestID)
			if err != nil {
				return err
			}
			if err := ensureFree(repos, next); err != nil {
				return err
			}
			if err := repos.Butler.SetRequestActive(oldReq.ID, true); err != nil {
				return err
			}
			if err := repos.Butler.SetRequestActive(next.ID, false); err != nil {
				return err
			}
			b.RequestID = next.ID
			cars = append(cars, next.CarID)
		}
		if in.IsActive != nil {
			b.IsActive = *in.IsActive
		}
		return repos.Butler.UpdateContract(b)
	})
	if err != nil {
		return nil, err
	}

	today := models.DateOf(s.now())
	seen := map[uint]bool{}
	for _, carID := range cars {
		if !seen[carID] {
			seen[carID] = true
			_ = s.availability.Recompute(ctx, carID, today)
		}
	}
	return s.repos.Butler.GetContract(id)
}

// DeleteContract removes a contract and puts its request back to pending.
func (s *Service) DeleteContract(ctx context.Context, id uint) error {
	var carID uint
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		b, err := repos.Butler.GetContractForUpdate(id)
		if err != nil {
			return err
		}
		req, err := repos.Butler.GetRequestForUpdate(b.RequestID)
		if err != nil {
			return err
		}
		carID = req.CarID
		if err := repos.Butler.DeleteContract(b.ID); err != nil {
			return err
		}
		return repos.Butler.SetRequestActive(req.ID, true)
	})
	if err != nil {
		return err
	}
	_ = s.availability.Recompute(ctx, carID, models.DateOf(s.now()))
	return nil
}

func (s *Service) GetContract(ctx context.Context, userID, id uint) (*models.Butler, error) {
	b, err := s.repos.Butler.GetContract(id)
	if err != nil {
		return nil, err
	}
	if b.Request.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return b, nil
}

func (s *Service) ListContracts(ctx context.Context, userID uint) ([]models.Butler, error) {
	return s.repos.Butler.ListContractsByUser(userID)
}

func (s *Service) notifyUser(userID uint, subject, body string) {
	if s.notifier == nil {
		return
	}
	u, err := s.repos.User.GetByID(userID)
	if err != nil {
		log.Warnf("[Butler] Cannot notify user %d: %v", userID, err)
		return
	}
	s.notifier.SendEmail(u.Email, subject, body)
	s.notifier.SendSMS(u.Mobile, subject)
}
