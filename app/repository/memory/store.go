// Package memory is an in-process implementation of the repository
// interfaces. Transactions serialize on one lock and roll back by restoring
// a snapshot, which is enough to exercise the services without MySQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"gorm.io/gorm"
)

type table[T any] map[uint]T

func (t table[T]) clone() table[T] {
	out := make(table[T], len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func (t table[T]) ids() []uint {
	ids := make([]uint, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type state struct {
	seq uint

	users            table[models.User]
	providerAccounts table[models.ProviderAccount]

	brands    table[models.Brand]
	carModels table[models.CarModel]
	cars      table[models.Car]

	coupons      table[models.Coupon]
	userCoupons  table[models.UserCoupon]
	points       table[models.PointTransaction]
	pointCoupons table[models.PointCoupon]

	subRequests    table[models.SubscriptionRequest]
	subscriptions  table[models.Subscription]
	butlerRequests table[models.ButlerRequest]
	wayPoints      table[models.ButlerWayPoint]
	butlers        table[models.Butler]

	billings table[models.Billing]
	payments table[models.Payment]

	referrals     table[models.Referral]
	referralRules table[models.ReferralRule]

	notices  table[models.Notice]
	events   table[models.Event]
	ads      table[models.Ad]
	faqs     table[models.FAQ]
	terms    table[models.Term]
	policies table[models.PrivacyPolicy]

	reviews       table[models.Review]
	reviewLikes   table[models.ReviewLike]
	modelLikes    table[models.ModelLike]
	modelRequests table[models.ModelRequest]
}

func newState() *state {
	return &state{
		users:            table[models.User]{},
		providerAccounts: table[models.ProviderAccount]{},
		brands:           table[models.Brand]{},
		carModels:        table[models.CarModel]{},
		cars:             table[models.Car]{},
		coupons:          table[models.Coupon]{},
		userCoupons:      table[models.UserCoupon]{},
		points:           table[models.PointTransaction]{},
		pointCoupons:     table[models.PointCoupon]{},
		subRequests:      table[models.SubscriptionRequest]{},
		subscriptions:    table[models.Subscription]{},
		butlerRequests:   table[models.ButlerRequest]{},
		wayPoints:        table[models.ButlerWayPoint]{},
		butlers:          table[models.Butler]{},
		billings:         table[models.Billing]{},
		payments:         table[models.Payment]{},
		referrals:        table[models.Referral]{},
		referralRules:    table[models.ReferralRule]{},
		notices:          table[models.Notice]{},
		events:           table[models.Event]{},
		ads:              table[models.Ad]{},
		faqs:             table[models.FAQ]{},
		terms:            table[models.Term]{},
		policies:         table[models.PrivacyPolicy]{},
		reviews:          table[models.Review]{},
		reviewLikes:      table[models.ReviewLike]{},
		modelLikes:       table[models.ModelLike]{},
		modelRequests:    table[models.ModelRequest]{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:              s.seq,
		users:            s.users.clone(),
		providerAccounts: s.providerAccounts.clone(),
		brands:           s.brands.clone(),
		carModels:        s.carModels.clone(),
		cars:             s.cars.clone(),
		coupons:          s.coupons.clone(),
		userCoupons:      s.userCoupons.clone(),
		points:           s.points.clone(),
		pointCoupons:     s.pointCoupons.clone(),
		subRequests:      s.subRequests.clone(),
		subscriptions:    s.subscriptions.clone(),
		butlerRequests:   s.butlerRequests.clone(),
		wayPoints:        s.wayPoints.clone(),
		butlers:          s.butlers.clone(),
		billings:         s.billings.clone(),
		payments:         s.payments.clone(),
		referrals:        s.referrals.clone(),
		referralRules:    s.referralRules.clone(),
		notices:          s.notices.clone(),
		events:           s.events.clone(),
		ads:              s.ads.clone(),
		faqs:             s.faqs.clone(),
		terms:            s.terms.clone(),
		policies:         s.policies.clone(),
		reviews:          s.reviews.clone(),
		reviewLikes:      s.reviewLikes.clone(),
		modelLikes:       s.modelLikes.clone(),
		modelRequests:    s.modelRequests.clone(),
	}
}

// Store holds every table. The zero value is not usable, call NewStore.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   *state

	// Now stamps CreatedAt and UpdatedAt. Tests may replace it.
	Now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), Now: time.Now}
}

func (s *Store) nextID() uint {
	s.st.seq++
	return s.st.seq
}

// Repositories returns repositories that write straight to the store.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:         &userRepo{s},
		Car:          &carRepo{s},
		Coupon:       &couponRepo{s},
		Point:        &pointRepo{s},
		Subscription: &subscriptionRepo{s},
		Butler:       &butlerRepo{s},
		Payment:      &paymentRepo{s},
		Referral:     &referralRepo{s},
		Content:      &contentRepo{s},
		Review:       &reviewRepo{s},
	}
}

// Transaction implements repository.UnitOfWork. Transactions never overlap,
// which stands in for the row locks the SQL repositories take.
func (s *Store) Transaction(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(s.Repositories()); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

var _ repository.UnitOfWork = (*Store)(nil)

func notFound() error {
	return gorm.ErrRecordNotFound
}

func duplicate() error {
	return gorm.ErrDuplicatedKey
}

func stamp(created, updated *time.Time, now time.Time) {
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

func window[T any](list []T, offset, limit int) []T {
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
