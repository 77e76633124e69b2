package repository

import (
	"context"
	"errors"
	"time"

	"carledger/internal/model"

	"gorm.io/gorm"
)

// LedgerRepository is the data access contract for the append-only ledger.
// Entries are only ever inserted; there is no update or delete path.
type LedgerRepository interface {
	// ExistsTx reports whether an entry for (stockN, date) is already
	// recorded — the idempotence check for re-imports.
	ExistsTx(tx *gorm.DB, stockN int, date time.Time) (bool, error)

	// LatestKnownBeforeTx returns the entry with maximal date strictly before
	// the given date whose cumulative amount is recorded, or nil when the car
	// has no such earlier entry. Zero-change placeholders written for missing
	// cumulatives are skipped so deltas stay anchored to real readings. Date
	// uniqueness per car is enforced at the schema level, so there is no tie
	// to break.
	LatestKnownBeforeTx(tx *gorm.DB, stockN int, before time.Time) (*model.LedgerEntry, error)

	// LatestTx returns the car's most recent entry overall, or nil.
	LatestTx(tx *gorm.DB, stockN int) (*model.LedgerEntry, error)

	CreateTx(tx *gorm.DB, entry *model.LedgerEntry) error

	ListByStockNs(ctx context.Context, stockNs []int) ([]model.LedgerEntry, error)
	ListAll(ctx context.Context) ([]model.LedgerEntry, error)

	DB() *gorm.DB
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) DB() *gorm.DB { return r.db }

func (r *ledgerRepo) dbOr(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ledgerRepo) ExistsTx(tx *gorm.DB, stockN int, date time.Time) (bool, error) {
	var count int64
	err := r.dbOr(tx).Model(&model.LedgerEntry{}).
		Where("stock_n = ? AND date = ?", stockN, date).
		Count(&count).Error
	return count > 0, err
}

func (r *ledgerRepo) LatestKnownBeforeTx(tx *gorm.DB, stockN int, before time.Time) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := r.dbOr(tx).
		Where("stock_n = ? AND date < ? AND cumulative_amount IS NOT NULL", stockN, before).
		Order("date DESC").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ledgerRepo) LatestTx(tx *gorm.DB, stockN int) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := r.dbOr(tx).
		Where("stock_n = ?", stockN).
		Order("date DESC").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ledgerRepo) CreateTx(tx *gorm.DB, entry *model.LedgerEntry) error {
	return r.dbOr(tx).Create(entry).Error
}

func (r *ledgerRepo) ListByStockNs(ctx context.Context, stockNs []int) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("stock_n IN ?", stockNs).
		Order("stock_n ASC, date DESC").
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepo) ListAll(ctx context.Context) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	err := r.db.WithContext(ctx).Order("stock_n ASC, date ASC").Find(&entries).Error
	return entries, err
}
