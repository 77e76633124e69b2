package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"carledger/internal/config"
	"carledger/internal/dto"
	"carledger/internal/model"
	"carledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory repository stubs ───────────────────────────────────────────────
// DB() returns nil, so runTx executes the transaction body directly.

type stubCarRepo struct {
	cars     map[int]*model.Car
	failSave bool
}

func newStubCarRepo() *stubCarRepo {
	return &stubCarRepo{cars: make(map[int]*model.Car)}
}

func (r *stubCarRepo) DB() *gorm.DB { return nil }

func (r *stubCarRepo) FindByStockN(_ context.Context, stockN int) (*model.Car, error) {
	return r.FindByStockNTx(nil, stockN)
}

func (r *stubCarRepo) FindByStockNTx(_ *gorm.DB, stockN int) (*model.Car, error) {
	c, ok := r.cars[stockN]
	if !ok {
		return nil, repository.ErrCarNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *stubCarRepo) List(_ context.Context, filter dto.CarFilter) ([]model.Car, error) {
	var out []model.Car
	for _, c := range r.cars {
		switch filter.Status {
		case "scrap":
			if c.Status != model.StatusScrap {
				continue
			}
		case "all":
		default:
			if c.Status != model.StatusActive {
				continue
			}
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockN < out[j].StockN })
	return out, nil
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
	if r.failSave {
		return errors.New("create failed")
	}
	cp := *car
	r.cars[car.StockN] = &cp
	return nil
}

func (r *stubCarRepo) SaveTx(_ *gorm.DB, car *model.Car) error {
	if r.failSave {
		return errors.New("save failed")
	}
	cp := *car
	r.cars[car.StockN] = &cp
	return nil
}

func (r *stubCarRepo) Save(_ context.Context, car *model.Car) error {
	return r.SaveTx(nil, car)
}

type stubLedgerRepo struct {
	entries []model.LedgerEntry
}

func newStubLedgerRepo() *stubLedgerRepo { return &stubLedgerRepo{} }

func (r *stubLedgerRepo) DB() *gorm.DB { return nil }

func (r *stubLedgerRepo) ExistsTx(_ *gorm.DB, stockN int, date time.Time) (bool, error) {
	for _, e := range r.entries {
		if e.StockN == stockN && e.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubLedgerRepo) LatestKnownBeforeTx(_ *gorm.DB, stockN int, before time.Time) (*model.LedgerEntry, error) {
	var latest *model.LedgerEntry
	for i := range r.entries {
		e := &r.entries[i]
		if e.StockN != stockN || !e.Date.Before(before) || e.CumulativeAmount == nil {
			continue
		}
		if latest == nil || e.Date.After(latest.Date) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *stubLedgerRepo) LatestTx(_ *gorm.DB, stockN int) (*model.LedgerEntry, error) {
	var latest *model.LedgerEntry
	for i := range r.entries {
		e := &r.entries[i]
		if e.StockN != stockN {
			continue
		}
		if latest == nil || e.Date.After(latest.Date) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *stubLedgerRepo) CreateTx(_ *gorm.DB, entry *model.LedgerEntry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *stubLedgerRepo) ListByStockNs(_ context.Context, stockNs []int) ([]model.LedgerEntry, error) {
	wanted := make(map[int]bool, len(stockNs))
	for _, n := range stockNs {
		wanted[n] = true
	}
	var out []model.LedgerEntry
	for _, e := range r.entries {
		if wanted[e.StockN] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubLedgerRepo) ListAll(_ context.Context) ([]model.LedgerEntry, error) {
	out := make([]model.LedgerEntry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}

// ── fixtures ─────────────────────────────────────────────────────────────────

func testConfig() *config.Config {
	return &config.Config{
		CarStockFloor:       10300,
		LedgerStockFloor:    10400,
		LowSalesThreshold:   200,
		AgingDaysThreshold:  60,
		AgingXsThreshold:    1.5,
		BestXsThreshold:     2,
		BestProfitThreshold: 5000,
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
