package memory

import (
	"sort"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
)

type butlerRepo struct{ s *Store }

func (s *Store) loadButlerRequest(req models.ButlerRequest) models.ButlerRequest {
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
	req.WayPoints = nil
	for _, id := range s.st.wayPoints.ids() {
		if wp := s.st.wayPoints[id]; wp.ButlerRequestID == req.ID {
			req.WayPoints = append(req.WayPoints, wp)
		}
	}
	sort.SliceStable(req.WayPoints, func(i, j int) bool {
		return req.WayPoints[i].ScheduledTime.Before(req.WayPoints[j].ScheduledTime)
	})
	return req
}

func stripButlerRequest(req models.ButlerRequest) models.ButlerRequest {
	req.Car = models.Car{}
	req.UserCoupon = nil
	req.PointTransaction = nil
	req.WayPoints = nil
	return req
}

func (r *butlerRepo) checkUnique(req *models.ButlerRequest) error {
	for _, other := range r.s.st.butlerRequests {
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

// insertWayPoints stores points for a request. Callers hold the store lock.
func (r *butlerRepo) insertWayPoints(requestID uint, points []models.ButlerWayPoint) {
	now := r.s.Now()
	for i := range points {
		points[i].ID = r.s.nextID()
		points[i].ButlerRequestID = requestID
		stamp(&points[i].CreatedAt, nil, now)
		r.s.st.wayPoints[points[i].ID] = points[i]
	}
}

func (r *butlerRepo) deleteWayPoints(requestID uint) {
	for id, wp := range r.s.st.wayPoints {
		if wp.ButlerRequestID == requestID {
			delete(r.s.st.wayPoints, id)
		}
	}
}

func (r *butlerRepo) CreateRequest(req *models.ButlerRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkUnique(req); err != nil {
		return err
	}
	req.ID = r.s.nextID()
	stamp(&req.CreatedAt, &req.UpdatedAt, r.s.Now())
	r.insertWayPoints(req.ID, req.WayPoints)
	r.s.st.butlerRequests[req.ID] = stripButlerRequest(*req)
	return nil
}

func (r *butlerRepo) GetRequest(id uint) (*models.ButlerRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.st.butlerRequests[id]
	if !ok {
		return nil, notFound()
	}
	req = r.s.loadButlerRequest(req)
	return &req, nil
}

func (r *butlerRepo) GetRequestForUpdate(id uint) (*models.ButlerRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.st.butlerRequests[id]
	if !ok {
		return nil, notFound()
	}
	return &req, nil
}

func (r *butlerRepo) UpdateRequest(req *models.ButlerRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.butlerRequests[req.ID]; !ok {
		return notFound()
	}
	if err := r.checkUnique(req); err != nil {
		return err
	}
	stamp(nil, &req.UpdatedAt, r.s.Now())
	r.s.st.butlerRequests[req.ID] = stripButlerRequest(*req)
	return nil
}

func (r *butlerRepo) ReplaceWayPoints(requestID uint, points []models.ButlerWayPoint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.deleteWayPoints(requestID)
	r.insertWayPoints(requestID, points)
	return nil
}

func (r *butlerRepo) SetRequestActive(id uint, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.st.butlerRequests[id]
	if !ok {
		return nil
	}
	req.IsActive = active
	r.s.st.butlerRequests[id] = req
	return nil
}

func (r *butlerRepo) DeleteRequest(id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.deleteWayPoints(id)
	delete(r.s.st.butlerRequests, id)
	return nil
}

func (r *butlerRepo) ListRequestsByUser(userID uint, activeOnly bool) ([]models.ButlerRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.ButlerRequest
	for _, id := range r.s.st.butlerRequests.ids() {
		req := r.s.st.butlerRequests[id]
		if req.UserID != userID || (activeOnly && !req.IsActive) {
			continue
		}
		list = append(list, r.s.loadButlerRequest(req))
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *butlerRepo) CreateContract(b *models.Butler) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.st.butlers {
		if other.RequestID == b.RequestID {
			return duplicate()
		}
	}
	b.ID = r.s.nextID()
	stamp(&b.CreatedAt, &b.UpdatedAt, r.s.Now())
	stored := *b
	stored.Request = models.ButlerRequest{}
	r.s.st.butlers[b.ID] = stored
	return nil
}

func (r *butlerRepo) loadContract(b models.Butler) models.Butler {
	if req, ok := r.s.st.butlerRequests[b.RequestID]; ok {
		b.Request = r.s.loadButlerRequest(req)
	}
	return b
}

func (r *butlerRepo) GetContract(id uint) (*models.Butler, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.st.butlers[id]
	if !ok {
		return nil, notFound()
	}
	b = r.loadContract(b)
	return &b, nil
}

func (r *butlerRepo) GetContractForUpdate(id uint) (*models.Butler, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.st.butlers[id]
	if !ok {
		return nil, notFound()
	}
	return &b, nil
}

func (r *butlerRepo) GetContractByRequest(requestID uint) (*models.Butler, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.st.butlers {
		if b.RequestID == requestID {
			return &b, nil
		}
	}
	return nil, notFound()
}

func (r *butlerRepo) UpdateContract(b *models.Butler) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.butlers[b.ID]; !ok {
		return notFound()
	}
	stamp(nil, &b.UpdatedAt, r.s.Now())
	stored := *b
	stored.Request = models.ButlerRequest{}
	r.s.st.butlers[b.ID] = stored
	return nil
}

func (r *butlerRepo) DeleteContract(id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.st.butlers, id)
	return nil
}

func (r *butlerRepo) ListContractsByUser(userID uint) ([]models.Butler, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.Butler
	for _, id := range r.s.st.butlers.ids() {
		b := r.loadContract(r.s.st.butlers[id])
		if b.Request.UserID == userID {
			list = append(list, b)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *butlerRepo) ListLiveWindows(carID uint, today time.Time) ([]models.ButlerRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := models.DateOf(today)
	contracted := map[uint]bool{}
	for _, b := range r.s.st.butlers {
		if b.IsActive {
			contracted[b.RequestID] = true
		}
	}
	var list []models.ButlerRequest
	for _, id := range r.s.st.butlerRequests.ids() {
		req := r.s.st.butlerRequests[id]
		if req.CarID != carID || !req.EndAt.After(d) {
			continue
		}
		if req.IsActive || contracted[req.ID] {
			list = append(list, req)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartAt.Before(list[j].StartAt) })
	return list, nil
}
