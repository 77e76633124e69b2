package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Car statuses. A car is "scrap" exactly when its Dismantled date is set;
// the reconcile service maintains this invariant on every import.
const (
	StatusActive = "active"
	StatusScrap  = "scrap"
)

// Car is one physical unit, keyed by its externally assigned stock number.
// Cars are never deleted — retirement is the status flip to "scrap".
//
// Age, Payback, Profit and Xs are derived columns: age/payback are recomputed
// whenever the date fields change, profit/xs whenever cost or the latest
// ledger cumulative amount changes. They are persisted so that analytics and
// table views never need per-row recomputation.
type Car struct {
	ID       uint `gorm:"primaryKey"`
	StockN   int  `gorm:"uniqueIndex;not null"`
	Make     *string
	Model    *string
	Year     *int
	Color    *string
	Mileage  *string // digits only — cleaned at the ingest boundary
	Engine   *string
	Location *string          // "bin.xcoord"
	Cost     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Status   string           `gorm:"not null;default:'active';index"`

	Inventoried   *time.Time `gorm:"type:date"`
	PurchaseDate  *time.Time `gorm:"type:date"`
	BreakevenDate *time.Time `gorm:"type:date"`
	Dismantled    *time.Time `gorm:"type:date"`

	// Derived
	Age     *int
	Payback *int
	Profit  *int64
	Xs      *float64

	ImportID       string `gorm:"not null"`
	AgeLastUpdated *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPaidBack reports whether the car has earned back its cost: a positive
// payback figure with a recorded breakeven date.
func (c *Car) IsPaidBack() bool {
	return c.Payback != nil && *c.Payback > 0 && c.BreakevenDate != nil
}
