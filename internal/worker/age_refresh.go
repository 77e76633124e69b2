package worker

// age_refresh.go
// Car age is days-since-inventoried, so every stored value goes stale at
// midnight. This job recomputes age for the whole fleet on a cron schedule
// and stamps age_last_updated, then bumps the snapshot version so cached
// analytics tables are not served with yesterday's ages.

import (
	"context"
	"time"

	"carledger/internal/infra"
	"carledger/internal/repository"
	"carledger/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// AgeRefresher owns the scheduled age recompute.
type AgeRefresher struct {
	cron *cron.Cron
	cars repository.CarRepository
	rdb  *redis.Client
	spec string
}

func NewAgeRefresher(cars repository.CarRepository, rdb *redis.Client, spec string) *AgeRefresher {
	return &AgeRefresher{
		cron: cron.New(),
		cars: cars,
		rdb:  rdb,
		spec: spec,
	}
}

// Start schedules the refresh and launches the cron loop.
func (a *AgeRefresher) Start() error {
	if _, err := a.cron.AddFunc(a.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		a.RefreshAges(ctx)
	}); err != nil {
		return err
	}
	a.cron.Start()
	log.Info().Str("spec", a.spec).Msg("age_refresh: scheduled")
	return nil
}

// Stop halts the scheduler; a refresh already in flight finishes.
func (a *AgeRefresher) Stop() {
	a.cron.Stop()
	log.Info().Msg("age_refresh: stopped")
}

// RefreshAges recomputes age for every car with a known inventoried date.
// Exposed so the refresh can also be triggered manually.
func (a *AgeRefresher) RefreshAges(ctx context.Context) {
	cars, err := a.cars.ListAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("age_refresh: list cars failed")
		return
	}

	now := time.Now()
	updated := 0
	for i := range cars {
		car := &cars[i]
		if car.Inventoried == nil {
			continue
		}
		age := service.CalculateAge(car.Inventoried, now)
		if car.Age != nil && age != nil && *car.Age == *age {
			continue
		}
		car.Age = age
		car.AgeLastUpdated = &now
		if err := a.cars.Save(ctx, car); err != nil {
			log.Error().Err(err).Int("stockn", car.StockN).Msg("age_refresh: save failed")
			continue
		}
		updated++
	}

	if updated > 0 && a.rdb != nil {
		if _, err := infra.BumpSnapshotVersion(ctx, a.rdb); err != nil {
			log.Warn().Err(err).Msg("age_refresh: snapshot version bump failed")
		}
	}
	log.Info().Int("updated", updated).Msg("age_refresh: done")
}
