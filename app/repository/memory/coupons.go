package memory

import (
	"sort"
	"strings"

	"github.com/ManuelReschke/Vahana/app/models"
)

type couponRepo struct{ s *Store }

func (s *Store) loadUserCoupon(uc models.UserCoupon) models.UserCoupon {
	uc.Coupon = s.st.coupons[uc.CouponID]
	return uc
}

func (r *couponRepo) Create(coupon *models.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.st.coupons {
		if c.Code == coupon.Code {
			return duplicate()
		}
	}
	coupon.ID = r.s.nextID()
	stamp(&coupon.CreatedAt, &coupon.UpdatedAt, r.s.Now())
	r.s.st.coupons[coupon.ID] = *coupon
	return nil
}

func (r *couponRepo) GetByID(id uint) (*models.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.coupons[id]
	if !ok {
		return nil, notFound()
	}
	return &c, nil
}

func (r *couponRepo) GetByIDForUpdate(id uint) (*models.Coupon, error) {
	return r.GetByID(id)
}

func (r *couponRepo) GetByCode(code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.st.coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, notFound()
}

func (r *couponRepo) CodeExists(code string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.st.coupons {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *couponRepo) Update(coupon *models.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.coupons[coupon.ID]
	if !ok {
		return notFound()
	}
	c.IsActive = coupon.IsActive
	c.UpdatedAt = r.s.Now()
	r.s.st.coupons[c.ID] = c
	return nil
}

func (r *couponRepo) CreateUserCoupon(uc *models.UserCoupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	uc.ID = r.s.nextID()
	stamp(&uc.CreatedAt, &uc.UpdatedAt, r.s.Now())
	stored := *uc
	stored.Coupon = models.Coupon{}
	r.s.st.userCoupons[uc.ID] = stored
	return nil
}

func (r *couponRepo) GetUserCoupon(id uint) (*models.UserCoupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	uc, ok := r.s.st.userCoupons[id]
	if !ok {
		return nil, notFound()
	}
	uc = r.s.loadUserCoupon(uc)
	return &uc, nil
}

func (r *couponRepo) GetUserCouponForUpdate(id uint) (*models.UserCoupon, error) {
	return r.GetUserCoupon(id)
}

func (r *couponRepo) UpdateUserCoupon(uc *models.UserCoupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.st.userCoupons[uc.ID]
	if !ok {
		return notFound()
	}
	stored.UsedAt = uc.UsedAt
	stored.IsActive = uc.IsActive
	stored.UpdatedAt = r.s.Now()
	r.s.st.userCoupons[uc.ID] = stored
	return nil
}

func (r *couponRepo) ListUserCoupons(userID uint, service string) ([]models.UserCoupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.UserCoupon
	for _, id := range r.s.st.userCoupons.ids() {
		uc := r.s.loadUserCoupon(r.s.st.userCoupons[id])
		if uc.UserID != userID {
			continue
		}
		if service != "" && uc.Coupon.Service != service {
			continue
		}
		list = append(list, uc)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *couponRepo) CountUserCoupons(couponID, userID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, uc := range r.s.st.userCoupons {
		if uc.CouponID != couponID {
			continue
		}
		if userID != 0 && uc.UserID != userID {
			continue
		}
		n++
	}
	return n, nil
}

func (r *couponRepo) HasUnusedUserCoupon(userID, couponID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, uc := range r.s.st.userCoupons {
		if uc.UserID == userID && uc.CouponID == couponID && uc.UsedAt == nil {
			return true, nil
		}
	}
	return false, nil
}
