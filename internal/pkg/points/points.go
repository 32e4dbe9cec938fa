// Package points keeps the point ledger and the cached users.point balance
// in step. Every write locks the owning user row, recomputes the sum of
// active entries and stores it on the user.
package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/codegen"
	"github.com/ManuelReschke/Vahana/internal/pkg/metrics"
)

const CouponCodeLength = 8

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidCoupon      = errors.New("point coupon is not valid")
	ErrUsageLimit         = errors.New("point coupon usage limit reached")
	ErrUserUsageLimit     = errors.New("point coupon usage limit per user reached")
	ErrInvalidType        = errors.New("unsupported point transaction type")
)

// Append inserts tx and refreshes the owner's balance. It rejects the entry
// without writing anything when the balance would drop below zero.
func Append(repos *repository.Repositories, tx *models.PointTransaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if _, err := repos.User.GetByIDForUpdate(tx.UserID); err != nil {
		return err
	}
	balance, err := repos.Point.SumActive(tx.UserID)
	if err != nil {
		return err
	}
	if balance+tx.Amount < 0 {
		return fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientPoints, balance, -tx.Amount)
	}

	tx.IsActive = true
	if err := repos.Point.Create(tx); err != nil {
		return err
	}
	return refresh(repos, tx.UserID)
}

// Remove deletes a ledger entry and refreshes the owner's balance. Removing
// a missing entry is not an error.
func Remove(repos *repository.Repositories, id uint) error {
	tx, err := repos.Point.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if _, err := repos.User.GetByIDForUpdate(tx.UserID); err != nil {
		return err
	}
	if tx.IsActive {
		balance, err := repos.Point.SumActive(tx.UserID)
		if err != nil {
			return err
		}
		if balance-tx.Amount < 0 {
			return fmt.Errorf("%w: removing entry %d would leave %d", ErrInsufficientPoints, id, balance-tx.Amount)
		}
	}
	if err := repos.Point.Delete(id); err != nil {
		return err
	}
	return refresh(repos, tx.UserID)
}

// Finalize points an entry at the row that spent or granted it.
func Finalize(repos *repository.Repositories, id uint, txType string, refID uint) error {
	tx, err := repos.Point.GetByID(id)
	if err != nil {
		return err
	}
	tx.TransactionType = txType
	tx.TransactionID = &refID
	return repos.Point.Update(tx)
}

func refresh(repos *repository.Repositories, userID uint) error {
	sum, err := repos.Point.SumActive(userID)
	if err != nil {
		return err
	}
	return repos.User.UpdatePoint(userID, sum)
}

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

// Balance returns the cached balance of a user.
func (s *Service) Balance(ctx context.Context, userID uint) (int64, error) {
	u, err := s.repos.User.GetByID(userID)
	if err != nil {
		return 0, err
	}
	return u.Point, nil
}

// List returns a page of active ledger entries, newest first.
func (s *Service) List(ctx context.Context, userID uint, offset, limit int) ([]models.PointTransaction, int64, error) {
	return s.repos.Point.ListByUser(userID, offset, limit)
}

// Grant books an admin deposit or withdrawal. Withdrawals pass a negative amount.
func (s *Service) Grant(ctx context.Context, userID uint, amount int64, txType, description string) (*models.PointTransaction, error) {
	switch txType {
	case models.POINT_SUBSCRIPTION, models.POINT_BUTLER, models.POINT_COUPON:
		return nil, ErrInvalidType
	}
	tx := &models.PointTransaction{
		UserID:          userID,
		Amount:          amount,
		TransactionType: txType,
		Description:     description,
	}
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		return Append(repos, tx)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.PointEntry(txType)
	return tx, nil
}

// CreatePointCoupon stores a new point coupon under a generated code.
func (s *Service) CreatePointCoupon(ctx context.Context, pc *models.PointCoupon) error {
	if pc.UsageLimit == 0 {
		pc.UsageLimit = 1
	}
	if pc.UsageLimitPerUser == 0 {
		pc.UsageLimitPerUser = 1
	}
	if pc.ValidFrom.IsZero() {
		pc.ValidFrom = s.now()
	}
	pc.IsActive = true

	code, err := codegen.Unique(CouponCodeLength, s.repos.Point.CouponCodeExists)
	if err != nil {
		return err
	}
	pc.Code = code
	if err := pc.Validate(); err != nil {
		return err
	}
	return s.repos.Point.CreateCoupon(pc)
}

// RedeemPointCoupon deposits the coupon amount for userID. Usage is counted
// by the COUPON entries that point at the coupon.
func (s *Service) RedeemPointCoupon(ctx context.Context, userID uint, code string) (*models.PointTransaction, error) {
	now := s.now()
	var tx *models.PointTransaction
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		found, err := repos.Point.GetCouponByCode(code)
		if err != nil {
			return err
		}
		pc, err := repos.Point.GetCouponForUpdate(found.ID)
		if err != nil {
			return err
		}
		if !pc.IsValidAt(now) {
			return ErrInvalidCoupon
		}

		total, err := repos.Point.CountByReference(models.POINT_COUPON, pc.ID, 0)
		if err != nil {
			return err
		}
		if total >= int64(pc.UsageLimit) {
			return ErrUsageLimit
		}
		mine, err := repos.Point.CountByReference(models.POINT_COUPON, pc.ID, userID)
		if err != nil {
			return err
		}
		if mine >= int64(pc.UsageLimitPerUser) {
			return ErrUserUsageLimit
		}

		ref := pc.ID
		tx = &models.PointTransaction{
			UserID:          userID,
			Amount:          pc.Amount,
			TransactionType: models.POINT_COUPON,
			TransactionID:   &ref,
			Description:     pc.Name,
		}
		return Append(repos, tx)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.PointEntry(models.POINT_COUPON)
	return tx, nil
}
