package subscription

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
	"github.com/ManuelReschke/Vahana/internal/pkg/cache"
)

const (
	sweepLockKey = "vahana:lock:subscription-billing"
	sweepLockTTL = 30 * time.Minute
)

const (
	RenewalCharged = "charged"
	RenewalFailed  = "failed"
	RenewalSkipped = "skipped"
)

var (
	errNotDue   = errors.New("subscription is not due")
	errFinished = errors.New("subscription has no periods left to bill")
)

// RunReport summarizes one billing sweep.
type RunReport struct {
	Due     int      `json:"due"`
	Charged int      `json:"charged"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Locked  bool     `json:"locked"`
	Errors  []string `json:"errors,omitempty"`
}

type claim struct {
	sub      models.Subscription
	req      *models.SubscriptionRequest
	due      time.Time
	next     time.Time
	prevLast *time.Time
	first    bool
	finished bool
}

// RunBilling charges every subscription due on now. Each subscription is
// claimed in a locked transaction that advances its schedule before the
// vendor call, so a second sweep on the same day finds nothing to charge.
// A failed charge rolls the claim back and is retried on the next sweep.
func (s *Service) RunBilling(ctx context.Context, now time.Time) (*RunReport, error) {
	report := &RunReport{}
	release, err := s.lock(ctx, sweepLockKey, sweepLockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		log.Infof("[Renewal] Another sweep is running, skipping")
		report.Locked = true
		return report, nil
	}
	if err != nil {
		return nil, err
	}
	defer release()

	started := time.Now()
	defer func() { s.metrics.RenewalSweep(time.Since(started)) }()

	today := models.DateOf(now)
	ids, err := s.repos.Subscription.ListDueIDs(today)
	if err != nil {
		return nil, err
	}
	report.Due = len(ids)
	log.Infof("[Renewal] %d subscriptions due on %s", len(ids), models.FormatDate(today))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch err := s.renew(ctx, id, today); {
		case err == nil:
			report.Charged++
			s.metrics.Renewal(RenewalCharged)
		case errors.Is(err, errNotDue), errors.Is(err, errFinished):
			report.Skipped++
			s.metrics.Renewal(RenewalSkipped)
		default:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("subscription %d: %v", id, err))
			s.metrics.Renewal(RenewalFailed)
			log.Warnf("[Renewal] Subscription %d failed: %v", id, err)
		}
	}
	log.Infof("[Renewal] Done: %d charged, %d failed, %d skipped", report.Charged, report.Failed, report.Skipped)
	return report, nil
}

func (s *Service) renew(ctx context.Context, id uint, today time.Time) error {
	c, err := s.claim(ctx, id, today)
	if err != nil {
		return err
	}
	if c.finished {
		log.Infof("[Renewal] Subscription %d billed for all %d months", id, c.req.Month)
		return errFinished
	}

	amount := c.req.ChargeAmount()
	if c.first {
		amount -= c.req.PointUsed()
	}
	if amount < 0 {
		amount = 0
	}

	payErr := s.charge(ctx, c, amount)
	if payErr == nil {
		return nil
	}
	if err := s.revert(ctx, c); err != nil {
		log.Errorf("[Renewal] Failed to revert claim of subscription %d: %v", id, err)
	}
	s.notifyUser(c.req.UserID, "Subscription payment failed",
		fmt.Sprintf("We could not charge %s KRW for your subscription. We will try again tomorrow.", models.FormatAmount(amount)))
	return payErr
}

func (s *Service) claim(ctx context.Context, id uint, today time.Time) (*claim, error) {
	var c *claim
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		sub, err := repos.Subscription.GetContractForUpdate(id)
		if err != nil {
			return err
		}
		if !sub.IsDue(today) {
			return errNotDue
		}
		req, err := repos.Subscription.GetRequest(sub.RequestID)
		if err != nil {
			return err
		}

		due := models.DateOf(*sub.SchedulePaymentDate)
		if s.period(sub.StartDate, due) >= req.Month {
			// every month of the contract is paid; stop scheduling
			c = &claim{sub: *sub, req: req, finished: true}
			sub.SchedulePaymentDate = nil
			return repos.Subscription.UpdateContract(sub)
		}
		c = &claim{
			req:      req,
			due:      due,
			next:     due.AddDate(0, 0, s.intervalDays),
			prevLast: sub.LastPaymentDate,
			first:    sub.LastPaymentDate == nil,
		}
		sub.SchedulePaymentDate = &c.next
		sub.LastPaymentDate = &today
		c.sub = *sub
		return repos.Subscription.UpdateContract(sub)
	})
	return c, err
}

func (s *Service) charge(ctx context.Context, c *claim, amount int64) error {
	var b *models.Billing
	if c.req.BillingID != nil {
		var err error
		b, err = s.billing.ActiveBilling(ctx, c.req.UserID, *c.req.BillingID)
		if err != nil && amount > 0 {
			return err
		}
	} else if amount > 0 {
		return ErrBillingRequired
	}

	order := billing.Order{
		ID:             fmt.Sprintf("sub-%d-%s", c.sub.ID, c.due.Format("20060102")),
		Name:           fmt.Sprintf("Subscription %d (%s)", c.sub.ID, models.FormatDate(c.due)),
		UserID:         c.req.UserID,
		SubscriptionID: &c.sub.ID,
	}
	if u, err := s.repos.User.GetByID(c.req.UserID); err == nil {
		order.CustomerEmail = u.Email
		order.CustomerName = u.Name
	}

	payment, err := s.billing.Charge(ctx, b, amount, order)
	if err != nil {
		return err
	}
	log.Infof("[Renewal] Subscription %d charged %d KRW (payment %d, order %s)", c.sub.ID, amount, payment.ID, payment.OrderID)
	return nil
}

// period is the zero based billing period that starts on due.
func (s *Service) period(start, due time.Time) int {
	days := int(math.Round(models.DateOf(due).Sub(models.DateOf(start)).Hours() / 24))
	if days < 0 || s.intervalDays <= 0 {
		return 0
	}
	return days / s.intervalDays
}

// revert restores the schedule of a claimed subscription unless someone
// else moved it meanwhile.
func (s *Service) revert(ctx context.Context, c *claim) error {
	return s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		sub, err := repos.Subscription.GetContractForUpdate(c.sub.ID)
		if err != nil {
			return err
		}
		if sub.SchedulePaymentDate == nil || !models.DateOf(*sub.SchedulePaymentDate).Equal(c.next) {
			return nil
		}
		due := c.due
		sub.SchedulePaymentDate = &due
		sub.LastPaymentDate = c.prevLast
		return repos.Subscription.UpdateContract(sub)
	})
}
