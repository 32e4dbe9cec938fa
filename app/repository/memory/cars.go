package memory

import (
	"sort"
	"time"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
)

type carRepo struct{ s *Store }

// loadCar attaches model and brand. Callers hold the store lock.
func (s *Store) loadCar(car models.Car) models.Car {
	if m, ok := s.st.carModels[car.CarModelID]; ok {
		m.Brand = s.st.brands[m.BrandID]
		car.CarModel = m
	}
	return car
}

func (r *carRepo) CreateBrand(brand *models.Brand) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.st.brands {
		if b.Slug == brand.Slug {
			return duplicate()
		}
	}
	brand.ID = r.s.nextID()
	stamp(&brand.CreatedAt, &brand.UpdatedAt, r.s.Now())
	r.s.st.brands[brand.ID] = *brand
	return nil
}

func (r *carRepo) CreateModel(model *models.CarModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.st.carModels {
		if m.Slug == model.Slug {
			return duplicate()
		}
	}
	model.ID = r.s.nextID()
	stamp(&model.CreatedAt, &model.UpdatedAt, r.s.Now())
	stored := *model
	stored.Brand = models.Brand{}
	r.s.st.carModels[model.ID] = stored
	return nil
}

func (r *carRepo) Create(car *models.Car) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	car.ID = r.s.nextID()
	stamp(&car.CreatedAt, &car.UpdatedAt, r.s.Now())
	stored := *car
	stored.CarModel = models.CarModel{}
	r.s.st.cars[car.ID] = stored
	return nil
}

func (r *carRepo) GetByID(id uint) (*models.Car, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.cars[id]
	if !ok {
		return nil, notFound()
	}
	c = r.s.loadCar(c)
	return &c, nil
}

func (r *carRepo) GetModel(id uint) (*models.CarModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.carModels[id]
	if !ok {
		return nil, notFound()
	}
	m.Brand = r.s.st.brands[m.BrandID]
	return &m, nil
}

func (r *carRepo) ListModels() ([]models.CarModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := make([]models.CarModel, 0, len(r.s.st.carModels))
	for _, id := range r.s.st.carModels.ids() {
		m := r.s.st.carModels[id]
		m.Brand = r.s.st.brands[m.BrandID]
		list = append(list, m)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Brand.Name != list[j].Brand.Name {
			return list[i].Brand.Name < list[j].Brand.Name
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsUint(list []uint, v uint) bool {
	for _, id := range list {
		if id == v {
			return true
		}
	}
	return false
}

func (r *carRepo) matches(c models.Car, f repository.CarFilter) bool {
	if !c.IsActive {
		return false
	}
	switch f.Service {
	case models.SERVICE_SUBSCRIPTION:
		if !c.IsSubscriptable {
			return false
		}
	case models.SERVICE_BUTLER:
		if !c.IsButler {
			return false
		}
	}
	if len(f.BrandSlugs) > 0 || len(f.ModelSlugs) > 0 {
		brand := containsString(f.BrandSlugs, c.CarModel.Brand.Slug)
		model := containsString(f.ModelSlugs, c.CarModel.Slug)
		if !brand && !model {
			return false
		}
	}
	if f.ModelID != 0 && c.CarModelID != f.ModelID {
		return false
	}
	if len(f.Months) > 0 {
		priced := false
		for _, m := range f.Months {
			if models.IsSubscriptionMonth(m) && c.SubscriptionFee(m) > 0 {
				priced = true
				break
			}
		}
		if !priced {
			return false
		}
	}
	available := c.SubscriptionAvailableFrom
	if f.Service == models.SERVICE_BUTLER {
		available = c.ButlerAvailableFrom
	}
	if f.AvailableOnly && available != nil && available.After(models.DateOf(f.Today)) {
		return false
	}
	if f.UpcomingAfter != nil && (available == nil || !available.After(models.DateOf(*f.UpcomingAfter))) {
		return false
	}
	if f.IsNew != nil && c.IsNew != *f.IsNew {
		return false
	}
	for _, day := range f.FreeOn {
		if c.IsReservedOn(day) {
			return false
		}
	}
	if f.IsHot != nil && c.IsHot != *f.IsHot {
		return false
	}
	return !containsUint(f.ExcludeIDs, c.ID)
}

func timeKey(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

func int64Key(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func sortKey(c models.Car, field string) (int64, bool) {
	switch field {
	case "subscription_available_from":
		return timeKey(c.SubscriptionAvailableFrom), true
	case "butler_available_from":
		return timeKey(c.ButlerAvailableFrom), true
	case "subscription_fee_minimum":
		return c.SubscriptionFeeMinimum, true
	case "butler_fee":
		return int64Key(c.ButlerFee), true
	case "mileage":
		return int64(c.Mileage), true
	case "release_date":
		return timeKey(c.ReleaseDate), true
	case "created_at":
		return c.CreatedAt.UnixNano(), true
	}
	return 0, false
}

func (r *carRepo) Search(f repository.CarFilter) ([]models.Car, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var list []models.Car
	for _, id := range r.s.st.cars.ids() {
		c := r.s.loadCar(r.s.st.cars[id])
		if r.matches(c, f) {
			list = append(list, c)
		}
	}

	if _, ok := sortKey(models.Car{}, f.Sort); ok {
		sort.SliceStable(list, func(i, j int) bool {
			a, _ := sortKey(list[i], f.Sort)
			b, _ := sortKey(list[j], f.Sort)
			if f.Desc {
				return a > b
			}
			return a < b
		})
	} else {
		sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	}

	total := int64(len(list))
	if f.Limit > 0 {
		list = window(list, f.Offset, f.Limit)
	}
	return list, total, nil
}

func (r *carRepo) Update(car *models.Car) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.cars[car.ID]; !ok {
		return notFound()
	}
	stamp(nil, &car.UpdatedAt, r.s.Now())
	stored := *car
	stored.CarModel = models.CarModel{}
	r.s.st.cars[car.ID] = stored
	return nil
}

func (r *carRepo) UpdateAvailability(carID uint, subscriptionFrom, butlerFrom *time.Time, reservedDates []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.cars[carID]
	if !ok {
		return notFound()
	}
	if reservedDates == nil {
		reservedDates = []string{}
	}
	c.SubscriptionAvailableFrom = subscriptionFrom
	c.ButlerAvailableFrom = butlerFrom
	c.ButlerReservatedDates = reservedDates
	r.s.st.cars[carID] = c
	return nil
}
