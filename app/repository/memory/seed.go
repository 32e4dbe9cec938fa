package memory

import (
	"fmt"
	"strings"

	"github.com/ManuelReschke/Vahana/app/models"
)

// SeedUser stores an active user for email. It panics on failure and is
// meant for tests.
func (s *Store) SeedUser(email string) models.User {
	u := models.User{
		Email:        email,
		Username:     strings.SplitN(email, "@", 2)[0],
		ReferralCode: strings.ToUpper(fmt.Sprintf("REF%05d", s.peekID()+1)),
		Role:         models.ROLE_USER,
		Status:       models.STATUS_ACTIVE,
	}
	if err := s.Repositories().User.Create(&u); err != nil {
		panic(err)
	}
	return u
}

// SeedCar stores a brand, a model and a car offered for subscription with
// monthFees and, when butlerFee > 0, for butler service. It panics on
// failure and is meant for tests.
func (s *Store) SeedCar(name string, monthFees map[int]int64, butlerFee int64) models.Car {
	repos := s.Repositories()
	brand := models.Brand{Name: name + " Motors", Slug: models.Slugify(name + " motors")}
	if err := repos.Car.CreateBrand(&brand); err != nil {
		panic(err)
	}
	model := models.CarModel{BrandID: brand.ID, Name: name}
	model.BuildSlug(brand.Slug)
	if err := repos.Car.CreateModel(&model); err != nil {
		panic(err)
	}

	car := models.Car{
		CarModelID:       model.ID,
		EngineSize:       2000,
		FuelType:         models.FUEL_GASOLINE,
		TransmissionType: models.TRANSMISSION_AUTOMATIC,
		DriveType:        models.DRIVE_FWD,
		RetailPrice:      30000000,
		IsSubscriptable:  len(monthFees) > 0,
		IsActive:         true,
	}
	for m, fee := range monthFees {
		car.SetSubscriptionFee(m, fee)
	}
	car.UpdateSubscriptionFeeMinimum()
	if butlerFee > 0 {
		car.IsButler = true
		car.ButlerFee = &butlerFee
	}
	if err := repos.Car.Create(&car); err != nil {
		panic(err)
	}
	loaded, err := repos.Car.GetByID(car.ID)
	if err != nil {
		panic(err)
	}
	return *loaded
}

func (s *Store) peekID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.seq
}
