package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind distinguishes the two snapshot report layouts.
type SourceKind string

const (
	// SourceKindFull is the complete inventory export: all attributes plus
	// the cumulative sales column. Only this kind can create cars and
	// ledger entries.
	SourceKindFull SourceKind = "full"
	// SourceKindPartial is the color/mileage/engine-only export. Rows for
	// unknown stock numbers are skipped.
	SourceKindPartial SourceKind = "partial"
)

// NormalizedRow is one import row after the row mapper has translated the
// source-specific column names. The reconcile service never sees spreadsheet
// column names — only this shape. Nil means the source cell was empty.
type NormalizedRow struct {
	StockN  int     `json:"stockn" validate:"required"`
	Make    *string `json:"make"`
	Model   *string `json:"model"`
	Year    *int    `json:"year"`
	Color   *string `json:"color"`
	Mileage *string `json:"mileage"` // pre-stripped to digits
	Engine  *string `json:"engine"`
	Bin     *string `json:"bin"`
	XCoord  *string `json:"xcoord"`

	Cost             *decimal.Decimal `json:"cost"`
	CumulativeAmount *decimal.Decimal `json:"cumulative_amount"`

	Inventoried   *time.Time `json:"inventoried"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	BreakevenDate *time.Time `json:"breakeven_date"`
	Dismantled    *time.Time `json:"dismantled"`
}

// ReconcileResult is the structured outcome of one import batch. On a
// batch-fatal error all counts are zero and Error carries the diagnostic —
// the reconcile service never surfaces the error past its own boundary.
type ReconcileResult struct {
	ImportID     string `json:"import_id"`
	CarsAdded    int    `json:"cars_added"`
	CarsUpdated  int    `json:"cars_updated"`
	EntriesAdded int    `json:"entries_added"`
	RowsSkipped  int    `json:"rows_skipped"`
	Error        string `json:"error,omitempty"`
}

// ReconcileRowsRequest is the JSON body for the pre-normalized import endpoint.
type ReconcileRowsRequest struct {
	Date time.Time       `json:"date" validate:"required"`
	Kind SourceKind      `json:"kind" validate:"required,oneof=full partial"`
	Rows []NormalizedRow `json:"rows" validate:"required"`
}
