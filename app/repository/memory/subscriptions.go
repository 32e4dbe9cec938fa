package memory

import (
	"sort"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
)

type subscriptionRepo struct{ s *Store }

func (s *Store) loadSubscriptionRequest(req models.SubscriptionRequest) models.SubscriptionRequest {
	if c, ok := s.st.cars[req.CarID]; ok {
		req.Car = s.loadCar(c)
	}
	req.UserCoupon = nil
	if req.UserCouponID != nil {
		if uc, ok := s.st.userCoupons[*req.UserCouponID]; ok {
			uc = s.loadUserCoupon(uc)
			req.UserCoupon = &uc
		}
	}
	req.PointTransaction = nil
	if req.PointTransactionID != nil {
		if p, ok := s.st.points[*req.PointTransactionID]; ok {
			req.PointTransaction = &p
		}
	}
	return req
}

func stripSubscriptionRequest(req models.SubscriptionRequest) models.SubscriptionRequest {
	req.Car = models.Car{}
	req.UserCoupon = nil
	req.PointTransaction = nil
	return req
}

func (r *subscriptionRepo) checkUnique(req *models.SubscriptionRequest) error {
	for _, other := range r.s.st.subRequests {
		if other.ID == req.ID || other.UserID != req.UserID {
			continue
		}
		if req.UserCouponID != nil && other.UserCouponID != nil && *req.UserCouponID == *other.UserCouponID {
			return duplicate()
		}
		if req.PointTransactionID != nil && other.PointTransactionID != nil && *req.PointTransactionID == *other.PointTransactionID {
			return duplicate()
		}
	}
	return nil
}

func (r *subscriptionRepo) CreateRequest(req *models.SubscriptionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkUnique(req); err != nil {
		return err
	}
	req.ID = r.s.nextID()
	stamp(&req.CreatedAt, &req.UpdatedAt, r.s.Now())
	r.s.st.subRequests[req.ID] = stripSubscriptionRequest(*req)
	return nil
}

func (r *subscriptionRepo) GetRequest(id uint) (*models.SubscriptionRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.st.subRequests[id]
	if !ok {
		return nil, notFound()
	}
	req = r.s.loadSubscriptionRequest(req)
	return &req, nil
}

func (r *subscriptionRepo) GetRequestForUpdate(id uint) (*models.SubscriptionRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.st.subRequests[id]
	if !ok {
		return nil, notFound()
	}
	return &req, nil
}

func (r *subscriptionRepo) UpdateRequest(req *models.SubscriptionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.subRequests[req.ID]; !ok {
		return notFound()
	}
	if err := r.checkUnique(req); err != nil {
		return err
	}
	stamp(nil, &req.UpdatedAt, r.s.Now())
	r.s.st.subRequests[req.ID] = stripSubscriptionRequest(*req)
	return nil
}

func (r *subscriptionRepo) SetRequestActive(id uint, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.st.subRequests[id]
	if !ok {
		return nil
	}
	req.IsActive = active
	r.s.st.subRequests[id] = req
	return nil
}

func (r *subscriptionRepo) DeleteRequest(id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.st.subRequests, id)
	return nil
}

func (r *subscriptionRepo) ListRequestsByUser(userID uint, activeOnly bool) ([]models.SubscriptionRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.SubscriptionRequest
	for _, id := range r.s.st.subRequests.ids() {
		req := r.s.st.subRequests[id]
		if req.UserID != userID || (activeOnly && !req.IsActive) {
			continue
		}
		list = append(list, r.s.loadSubscriptionRequest(req))
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *subscriptionRepo) CreateContract(sub *models.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.st.subscriptions {
		if other.RequestID == sub.RequestID {
			return duplicate()
		}
	}
	sub.ID = r.s.nextID()
	stamp(&sub.CreatedAt, &sub.UpdatedAt, r.s.Now())
	stored := *sub
	stored.Request = models.SubscriptionRequest{}
	r.s.st.subscriptions[sub.ID] = stored
	return nil
}

func (r *subscriptionRepo) loadContract(sub models.Subscription) models.Subscription {
	if req, ok := r.s.st.subRequests[sub.RequestID]; ok {
		sub.Request = r.s.loadSubscriptionRequest(req)
	}
	return sub
}

func (r *subscriptionRepo) GetContract(id uint) (*models.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.st.subscriptions[id]
	if !ok {
		return nil, notFound()
	}
	sub = r.loadContract(sub)
	return &sub, nil
}

func (r *subscriptionRepo) GetContractForUpdate(id uint) (*models.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.st.subscriptions[id]
	if !ok {
		return nil, notFound()
	}
	return &sub, nil
}

func (r *subscriptionRepo) GetContractByRequest(requestID uint) (*models.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.st.subscriptions {
		if sub.RequestID == requestID {
			return &sub, nil
		}
	}
	return nil, notFound()
}

func (r *subscriptionRepo) UpdateContract(sub *models.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.subscriptions[sub.ID]; !ok {
		return notFound()
	}
	stamp(nil, &sub.UpdatedAt, r.s.Now())
	stored := *sub
	stored.Request = models.SubscriptionRequest{}
	r.s.st.subscriptions[sub.ID] = stored
	return nil
}

func (r *subscriptionRepo) DeleteContract(id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.st.subscriptions, id)
	return nil
}

func (r *subscriptionRepo) ListContractsByUser(userID uint) ([]models.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.Subscription
	for _, id := range r.s.st.subscriptions.ids() {
		sub := r.loadContract(r.s.st.subscriptions[id])
		if sub.Request.UserID == userID {
			list = append(list, sub)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *subscriptionRepo) ListDueIDs(today time.Time) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []models.Subscription
	for _, sub := range r.s.st.subscriptions {
		if sub.IsDue(today) {
			due = append(due, sub)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := *due[i].SchedulePaymentDate, *due[j].SchedulePaymentDate
		if !a.Equal(b) {
			return a.Before(b)
		}
		return due[i].ID < due[j].ID
	})
	ids := make([]uint, 0, len(due))
	for _, sub := range due {
		ids = append(ids, sub.ID)
	}
	return ids, nil
}

func (r *subscriptionRepo) LatestEndDate(carID uint, today time.Time) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := models.DateOf(today)
	var latest *time.Time
	consider := func(end time.Time) {
		if end.Before(d) {
			return
		}
		if latest == nil || end.After(*latest) {
			e := end
			latest = &e
		}
	}
	for _, sub := range r.s.st.subscriptions {
		req, ok := r.s.st.subRequests[sub.RequestID]
		if ok && sub.IsActive && req.CarID == carID {
			consider(sub.EndDate)
		}
	}
	for _, req := range r.s.st.subRequests {
		if req.IsActive && req.CarID == carID {
			consider(req.EndDate)
		}
	}
	return latest, nil
}
