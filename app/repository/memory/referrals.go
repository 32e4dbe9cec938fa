package memory

import (
	"sort"

	"github.com/ManuelReschke/Vahana/app/models"
)

type referralRepo struct{ s *Store }

func (s *Store) loadReferral(ref models.Referral) models.Referral {
	ref.Coupon = nil
	if ref.CouponID != nil {
		if c, ok := s.st.coupons[*ref.CouponID]; ok {
			ref.Coupon = &c
		}
	}
	return ref
}

func (r *referralRepo) Create(ref *models.Referral) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.st.referrals {
		if other.RefereeID == ref.RefereeID {
			return duplicate()
		}
	}
	ref.ID = r.s.nextID()
	stamp(&ref.CreatedAt, &ref.UpdatedAt, r.s.Now())
	stored := *ref
	stored.Coupon = nil
	r.s.st.referrals[ref.ID] = stored
	return nil
}

func (r *referralRepo) GetByReferee(refereeID uint) (*models.Referral, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ref := range r.s.st.referrals {
		if ref.RefereeID == refereeID {
			ref = r.s.loadReferral(ref)
			return &ref, nil
		}
	}
	return nil, notFound()
}

func (r *referralRepo) ListByReferrer(referrerID uint) ([]models.Referral, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.Referral
	for _, id := range r.s.st.referrals.ids() {
		if ref := r.s.st.referrals[id]; ref.ReferrerID == referrerID && ref.IsActive {
			list = append(list, r.s.loadReferral(ref))
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *referralRepo) GetRule(userID uint) (*models.ReferralRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rule := range r.s.st.referralRules {
		if rule.UserID == userID {
			return &rule, nil
		}
	}
	return nil, notFound()
}

func (r *referralRepo) SaveRule(rule *models.ReferralRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rule.ID == 0 {
		for _, other := range r.s.st.referralRules {
			if other.UserID == rule.UserID {
				return duplicate()
			}
		}
		rule.ID = r.s.nextID()
	}
	stamp(&rule.CreatedAt, &rule.UpdatedAt, r.s.Now())
	r.s.st.referralRules[rule.ID] = *rule
	return nil
}
