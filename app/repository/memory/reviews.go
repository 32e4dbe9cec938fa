package memory

import (
	"sort"

	"github.com/ManuelReschke/Vahana/app/models"
)

type reviewRepo struct{ s *Store }

func (s *Store) loadReview(rv models.Review) models.Review {
	if m, ok := s.st.carModels[rv.CarModelID]; ok {
		m.Brand = s.st.brands[m.BrandID]
		rv.CarModel = m
	}
	rv.User = s.st.users[rv.UserID]
	return rv
}

func (r *reviewRepo) Create(rv *models.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rv.ID = r.s.nextID()
	stamp(&rv.CreatedAt, &rv.UpdatedAt, r.s.Now())
	stored := *rv
	stored.CarModel = models.CarModel{}
	stored.User = models.User{}
	r.s.st.reviews[rv.ID] = stored
	return nil
}

func (r *reviewRepo) GetByID(id uint) (*models.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rv, ok := r.s.st.reviews[id]
	if !ok {
		return nil, notFound()
	}
	rv = r.s.loadReview(rv)
	return &rv, nil
}

func (r *reviewRepo) Update(rv *models.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.reviews[rv.ID]; !ok {
		return notFound()
	}
	stamp(nil, &rv.UpdatedAt, r.s.Now())
	stored := *rv
	stored.CarModel = models.CarModel{}
	stored.User = models.User{}
	r.s.st.reviews[rv.ID] = stored
	return nil
}

func (r *reviewRepo) List(service string, modelID uint, offset, limit int) ([]models.Review, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.Review
	for _, id := range r.s.st.reviews.ids() {
		rv := r.s.st.reviews[id]
		if !rv.IsActive || (service != "" && rv.Service != service) || (modelID != 0 && rv.CarModelID != modelID) {
			continue
		}
		list = append(list, r.s.loadReview(rv))
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return window(list, offset, limit), int64(len(list)), nil
}

func (r *reviewRepo) CountLikes(reviewID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, l := range r.s.st.reviewLikes {
		if l.ReviewID == reviewID {
			n++
		}
	}
	return n, nil
}

func (r *reviewRepo) SetReviewLike(reviewID, userID uint, liked bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, l := range r.s.st.reviewLikes {
		if l.ReviewID == reviewID && l.UserID == userID {
			if !liked {
				delete(r.s.st.reviewLikes, id)
			}
			return nil
		}
	}
	if liked {
		l := models.ReviewLike{ID: r.s.nextID(), ReviewID: reviewID, UserID: userID, CreatedAt: r.s.Now()}
		r.s.st.reviewLikes[l.ID] = l
	}
	return nil
}

func (r *reviewRepo) IsReviewLiked(reviewID, userID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.st.reviewLikes {
		if l.ReviewID == reviewID && l.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *reviewRepo) SetModelLike(service string, modelID, userID uint, liked bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, l := range r.s.st.modelLikes {
		if l.Service == service && l.CarModelID == modelID && l.UserID == userID {
			if !liked {
				delete(r.s.st.modelLikes, id)
			}
			return nil
		}
	}
	if liked {
		l := models.ModelLike{ID: r.s.nextID(), Service: service, CarModelID: modelID, UserID: userID, CreatedAt: r.s.Now()}
		r.s.st.modelLikes[l.ID] = l
	}
	return nil
}

func (r *reviewRepo) IsModelLiked(service string, modelID, userID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.st.modelLikes {
		if l.Service == service && l.CarModelID == modelID && l.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *reviewRepo) CreateModelRequest(m *models.ModelRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = r.s.nextID()
	stamp(&m.CreatedAt, &m.UpdatedAt, r.s.Now())
	r.s.st.modelRequests[m.ID] = *m
	return nil
}
