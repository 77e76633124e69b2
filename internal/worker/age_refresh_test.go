package worker

import (
	"context"
	"sort"
	"testing"
	"time"

	"carledger/internal/dto"
	"carledger/internal/model"
	"carledger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubCarRepo struct {
	cars map[int]*model.Car
}

func (r *stubCarRepo) DB() *gorm.DB { return nil }

func (r *stubCarRepo) FindByStockN(_ context.Context, stockN int) (*model.Car, error) {
	c, ok := r.cars[stockN]
	if !ok {
		return nil, repository.ErrCarNotFound
	}
	return c, nil
}

func (r *stubCarRepo) FindByStockNTx(_ *gorm.DB, stockN int) (*model.Car, error) {
	return r.FindByStockN(context.Background(), stockN)
}

func (r *stubCarRepo) List(_ context.Context, _ dto.CarFilter) ([]model.Car, error) {
	return r.ListAll(context.Background())
}

func (r *stubCarRepo) ListAll(_ context.Context) ([]model.Car, error) {
	var out []model.Car
	for _, c := range r.cars {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockN < out[j].StockN })
	return out, nil
}

func (r *stubCarRepo) CreateTx(_ *gorm.DB, car *model.Car) error {
	cp := *car
	r.cars[car.StockN] = &cp
	return nil
}

func (r *stubCarRepo) SaveTx(_ *gorm.DB, car *model.Car) error {
	return r.CreateTx(nil, car)
}

func (r *stubCarRepo) Save(_ context.Context, car *model.Car) error {
	return r.CreateTx(nil, car)
}

func TestRefreshAges(t *testing.T) {
	staleAge := 5
	oldInv := time.Now().UTC().AddDate(0, 0, -90).Truncate(24 * time.Hour)

	repo := &stubCarRepo{cars: map[int]*model.Car{
		10401: {StockN: 10401, Status: model.StatusActive, Inventoried: &oldInv, Age: &staleAge},
		10402: {StockN: 10402, Status: model.StatusActive}, // never inventoried
	}}

	refresher := NewAgeRefresher(repo, nil, "0 3 * * *")
	refresher.RefreshAges(context.Background())

	refreshed := repo.cars[10401]
	require.NotNil(t, refreshed.Age)
	assert.InDelta(t, 90, *refreshed.Age, 1)
	assert.NotNil(t, refreshed.AgeLastUpdated)

	untouched := repo.cars[10402]
	assert.Nil(t, untouched.Age)
	assert.Nil(t, untouched.AgeLastUpdated)
}

func TestRefreshAgesSkipsCurrentValues(t *testing.T) {
	inv := time.Now().UTC().AddDate(0, 0, -10).Truncate(24 * time.Hour)
	currentAge := 10

	repo := &stubCarRepo{cars: map[int]*model.Car{
		10401: {StockN: 10401, Status: model.StatusActive, Inventoried: &inv, Age: &currentAge},
	}}

	refresher := NewAgeRefresher(repo, nil, "0 3 * * *")
	refresher.RefreshAges(context.Background())

	// Age already correct: no save, no timestamp
	assert.Nil(t, repo.cars[10401].AgeLastUpdated)
}
