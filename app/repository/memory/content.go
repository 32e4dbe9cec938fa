package memory

import (
	"sort"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
)

type contentRepo struct{ s *Store }

// AddNotice and its siblings seed the read-only content tables.
func (s *Store) AddNotice(n *models.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.nextID()
	stamp(&n.CreatedAt, &n.UpdatedAt, s.Now())
	s.st.notices[n.ID] = *n
}

func (s *Store) AddEvent(e *models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID()
	stamp(&e.CreatedAt, &e.UpdatedAt, s.Now())
	s.st.events[e.ID] = *e
}

func (s *Store) AddAd(a *models.Ad) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.nextID()
	stamp(&a.CreatedAt, &a.UpdatedAt, s.Now())
	s.st.ads[a.ID] = *a
}

func (s *Store) AddFAQ(f *models.FAQ) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = s.nextID()
	stamp(&f.CreatedAt, &f.UpdatedAt, s.Now())
	s.st.faqs[f.ID] = *f
}

func (s *Store) AddTerm(t *models.Term) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID()
	stamp(&t.CreatedAt, &t.UpdatedAt, s.Now())
	s.st.terms[t.ID] = *t
}

func (s *Store) AddPrivacyPolicy(p *models.PrivacyPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID()
	stamp(&p.CreatedAt, &p.UpdatedAt, s.Now())
	s.st.policies[p.ID] = *p
}

func banners[T any](t table[T], banner func(T) models.Banner, service string) []T {
	var list []T
	for _, id := range t.ids() {
		v := t[id]
		b := banner(v)
		if b.IsActive && (service == "" || b.Service == service) {
			list = append(list, v)
		}
	}
	return list
}

func clauses[T any](t table[T], clause func(T) models.Clause, service string) []T {
	var list []T
	for _, id := range t.ids() {
		v := t[id]
		c := clause(v)
		if c.IsActive && (service == "" || c.Service == service) {
			list = append(list, v)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return clause(list[i]).Order < clause(list[j]).Order })
	return list
}

func (r *contentRepo) ListNotices(service string) ([]models.Notice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := banners(r.s.st.notices, func(n models.Notice) models.Banner { return n.Banner }, service)
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *contentRepo) GetNotice(id uint) (*models.Notice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.st.notices[id]
	if !ok || !n.IsActive {
		return nil, notFound()
	}
	return &n, nil
}

func (r *contentRepo) ListEvents(service string) ([]models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := banners(r.s.st.events, func(e models.Event) models.Banner { return e.Banner }, service)
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartDate.After(list[j].StartDate) })
	return list, nil
}

func (r *contentRepo) GetEvent(id uint) (*models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.st.events[id]
	if !ok || !e.IsActive {
		return nil, notFound()
	}
	return &e, nil
}

func (r *contentRepo) ListAds(service string, now time.Time) ([]models.Ad, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.Ad
	for _, a := range banners(r.s.st.ads, func(a models.Ad) models.Banner { return a.Banner }, service) {
		if !a.StartDate.After(now) && !a.EndDate.Before(now) {
			list = append(list, a)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartDate.After(list[j].StartDate) })
	return list, nil
}

func (r *contentRepo) ListFAQs(service string) ([]models.FAQ, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []models.FAQ
	for _, id := range r.s.st.faqs.ids() {
		f := r.s.st.faqs[id]
		if f.IsActive && (service == "" || f.Service == service) {
			list = append(list, f)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Order < list[j].Order })
	return list, nil
}

func (r *contentRepo) ListTerms(service string) ([]models.Term, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return clauses(r.s.st.terms, func(t models.Term) models.Clause { return t.Clause }, service), nil
}

func (r *contentRepo) ListPrivacyPolicies(service string) ([]models.PrivacyPolicy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return clauses(r.s.st.policies, func(p models.PrivacyPolicy) models.Clause { return p.Clause }, service), nil
}
