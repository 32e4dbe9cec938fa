package memory

import (
	"sort"

	"github.com/ManuelReschke/Vahana/app/models"
)

type paymentRepo struct{ s *Store }

func (r *paymentRepo) CreateBilling(b *models.Billing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b.ID = r.s.nextID()
	stamp(&b.CreatedAt, &b.UpdatedAt, r.s.Now())
	r.s.st.billings[b.ID] = *b
	return nil
}

func (r *paymentRepo) GetBilling(id uint) (*models.Billing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.st.billings[id]
	if !ok {
		return nil, notFound()
	}
	return &b, nil
}

func (r *paymentRepo) UpdateBilling(b *models.Billing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.billings[b.ID]; !ok {
		return notFound()
	}
	stamp(nil, &b.UpdatedAt, r.s.Now())
	r.s.st.billings[b.ID] = *b
	return nil
}

func (r *paymentRepo) ListBillings(userID uint) ([]models.Billing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.Billing
	for _, id := range r.s.st.billings.ids() {
		if b := r.s.st.billings[id]; b.UserID == userID && b.IsActive {
			list = append(list, b)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *paymentRepo) CreatePayment(p *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.st.payments {
		if other.OrderID == p.OrderID {
			return duplicate()
		}
	}
	p.ID = r.s.nextID()
	stamp(&p.CreatedAt, &p.UpdatedAt, r.s.Now())
	r.s.st.payments[p.ID] = *p
	return nil
}

func (r *paymentRepo) UpdatePayment(p *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.payments[p.ID]; !ok {
		return notFound()
	}
	stamp(nil, &p.UpdatedAt, r.s.Now())
	r.s.st.payments[p.ID] = *p
	return nil
}

func (r *paymentRepo) GetPaymentByOrderID(orderID string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.st.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, notFound()
}

func (r *paymentRepo) ListPayments(userID uint, offset, limit int) ([]models.Payment, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.Payment
	for _, id := range r.s.st.payments.ids() {
		if p := r.s.st.payments[id]; p.UserID != nil && *p.UserID == userID {
			list = append(list, p)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return window(list, offset, limit), int64(len(list)), nil
}
