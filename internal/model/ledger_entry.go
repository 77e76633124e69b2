package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one dated snapshot of a car's cumulative sale proceeds plus
// the delta against the previous snapshot. Append-only: entries are created by
// the reconcile service and never updated or deleted. The composite unique
// index enforces at most one entry per (car, date), which is what makes
// re-imports idempotent and "latest entry before date" unambiguous.
type LedgerEntry struct {
	ID               uint             `gorm:"primaryKey"`
	StockN           int              `gorm:"not null;uniqueIndex:idx_ledger_stockn_date,priority:1;index"`
	Date             time.Time        `gorm:"type:date;not null;uniqueIndex:idx_ledger_stockn_date,priority:2;index"`
	CumulativeAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ChangeAmount     decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	ImportID         string           `gorm:"not null"`
	CreatedAt        time.Time
}
