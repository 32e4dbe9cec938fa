// Package availability rebuilds the derived availability fields of a car
// from its live requests and contracts.
package availability

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
)

// Window is the result of a recompute.
type Window struct {
	AvailableFrom *time.Time
	ReservedDates []string
}

// Compute derives the availability of carID on today. The car is free from
// the day after the later of the last subscription end and the last
// reserved butler day, nil when nothing holds it.
func Compute(repos *repository.Repositories, carID uint, today time.Time) (*Window, error) {
	d := models.DateOf(today)

	latest, err := repos.Subscription.LatestEndDate(carID, d)
	if err != nil {
		return nil, err
	}

	windows, err := repos.Butler.ListLiveWindows(carID, d)
	if err != nil {
		return nil, err
	}
	first := models.FormatDate(d)
	seen := map[string]bool{}
	reserved := []string{}
	for _, w := range windows {
		for _, day := range w.ReservedDays(d.Location()) {
			if day < first || seen[day] {
				continue
			}
			seen[day] = true
			reserved = append(reserved, day)
		}
	}
	sort.Strings(reserved)

	var cutoff *time.Time
	if latest != nil {
		next := models.DateOf(*latest).AddDate(0, 0, 1)
		cutoff = &next
	}
	if n := len(reserved); n > 0 {
		last, err := time.ParseInLocation("2006-01-02", reserved[n-1], d.Location())
		if err != nil {
			return nil, err
		}
		next := last.AddDate(0, 0, 1)
		if cutoff == nil || next.After(*cutoff) {
			cutoff = &next
		}
	}
	return &Window{AvailableFrom: cutoff, ReservedDates: reserved}, nil
}

// Recompute computes and stores the availability of carID.
func Recompute(repos *repository.Repositories, carID uint, today time.Time) error {
	w, err := Compute(repos, carID, today)
	if err != nil {
		return err
	}
	return repos.Car.UpdateAvailability(carID, w.AvailableFrom, w.AvailableFrom, w.ReservedDates)
}

type Service struct {
	uow repository.UnitOfWork
}

func NewService(uow repository.UnitOfWork) *Service {
	return &Service{uow: uow}
}

// Recompute runs in its own transaction. Callers use it after their write
// committed, so a failure is logged and returned without undoing that write.
func (s *Service) Recompute(ctx context.Context, carID uint, today time.Time) error {
	err := s.uow.Transaction(ctx, func(repos *repository.Repositories) error {
		return Recompute(repos, carID, today)
	})
	if err != nil {
		log.Errorf("[Availability] Failed to recompute car %d: %v", carID, err)
	}
	return err
}
