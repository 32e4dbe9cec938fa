package memory

import (
	"sort"
	"strings"

	"github.com/ManuelReschke/Vahana/app/models"
)

type pointRepo struct{ s *Store }

func (r *pointRepo) Create(tx *models.PointTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx.ID = r.s.nextID()
	stamp(&tx.CreatedAt, &tx.UpdatedAt, r.s.Now())
	r.s.st.points[tx.ID] = *tx
	return nil
}

func (r *pointRepo) GetByID(id uint) (*models.PointTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.points[id]
	if !ok {
		return nil, notFound()
	}
	return &p, nil
}

func (r *pointRepo) Update(tx *models.PointTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.points[tx.ID]; !ok {
		return notFound()
	}
	stamp(nil, &tx.UpdatedAt, r.s.Now())
	r.s.st.points[tx.ID] = *tx
	return nil
}

func (r *pointRepo) Delete(id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.st.points, id)
	return nil
}

func (r *pointRepo) SumActive(userID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum int64
	for _, p := range r.s.st.points {
		if p.UserID == userID && p.IsActive {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (r *pointRepo) ListByUser(userID uint, offset, limit int) ([]models.PointTransaction, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.PointTransaction
	for _, id := range r.s.st.points.ids() {
		p := r.s.st.points[id]
		if p.UserID == userID && p.IsActive {
			list = append(list, p)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return window(list, offset, limit), int64(len(list)), nil
}

func (r *pointRepo) CountByReference(txType string, refID, userID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, p := range r.s.st.points {
		if p.TransactionType != txType || p.TransactionID == nil || *p.TransactionID != refID {
			continue
		}
		if userID != 0 && p.UserID != userID {
			continue
		}
		n++
	}
	return n, nil
}

func (r *pointRepo) CreateCoupon(coupon *models.PointCoupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.st.pointCoupons {
		if c.Code == coupon.Code {
			return duplicate()
		}
	}
	coupon.ID = r.s.nextID()
	stamp(&coupon.CreatedAt, &coupon.UpdatedAt, r.s.Now())
	r.s.st.pointCoupons[coupon.ID] = *coupon
	return nil
}

func (r *pointRepo) GetCouponByCode(code string) (*models.PointCoupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.st.pointCoupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, notFound()
}

func (r *pointRepo) GetCouponForUpdate(id uint) (*models.PointCoupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.pointCoupons[id]
	if !ok {
		return nil, notFound()
	}
	return &c, nil
}

func (r *pointRepo) CouponCodeExists(code string) (bool, error) {
	_, err := r.GetCouponByCode(code)
	return err == nil, nil
}
