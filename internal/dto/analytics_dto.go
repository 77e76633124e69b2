package dto

import "github.com/shopspring/decimal"

// CarRow is one row of a screening table, in presentation column order.
type CarRow struct {
	StockN   int              `json:"stockn"`
	Make     string           `json:"make"`
	Model    string           `json:"model"`
	Year     *int             `json:"year"`
	Color    string           `json:"color"`
	Cost     *decimal.Decimal `json:"cost"`
	Profit   *int64           `json:"profit"`
	Xs       *float64         `json:"xs"`
	Dynamics string           `json:"dynamics"`
	Age      *int             `json:"age"`
}

// SummaryStats accompanies every screening table. Income is profit + cost by
// definition, not an independent field. All money values are rounded to whole
// currency units for display.
type SummaryStats struct {
	Count       int   `json:"count"`
	TotalCost   int64 `json:"total_cost"`
	TotalProfit int64 `json:"total_profit"`
	TotalIncome int64 `json:"total_income"`
}

// ScreenResponse is a screening table plus its summary block.
type ScreenResponse struct {
	Rows    []CarRow     `json:"rows"`
	Summary SummaryStats `json:"summary"`
}

// ScreenReportResponse is the composed dashboard payload: the aging screen is
// computed first and its stock numbers feed the exclusion set of the
// low-recent-sales screen.
type ScreenReportResponse struct {
	LowRecentSales    ScreenResponse `json:"low_recent_sales"`
	UnprofitableAging ScreenResponse `json:"unprofitable_aging"`
	BestPurchases     ScreenResponse `json:"best_purchases"`
}

// MonthlyIncomeRow is one month's summed change amount. Month is "MM/YY".
type MonthlyIncomeRow struct {
	Month  string          `json:"month"`
	Income decimal.Decimal `json:"income"`
}

// MonthlyIncomeResponse carries rows sorted by month descending plus the
// explicit chronological axis order for charting. The category order must not
// be rederived from the row order downstream.
type MonthlyIncomeResponse struct {
	Rows          []MonthlyIncomeRow `json:"rows"`
	CategoryOrder []string           `json:"category_order"`
}

// MonthlyActivityRow joins purchase and inventory counts for one month.
// Months with only one kind of activity appear with the other count zero.
type MonthlyActivityRow struct {
	Month       string `json:"month"`
	Purchased   int    `json:"purchased"`
	Inventoried int    `json:"inventoried"`
}

// MetricRange is the [min, max] span of one metric over the active fleet,
// used to scale the per-car gauges.
type MetricRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ChangePoint is one date on a car's change-amount series with the same-date
// averages across all cars / the car's make / the car's model.
type ChangePoint struct {
	Date         string          `json:"date"`
	Change       decimal.Decimal `json:"change"`
	AvgAll       *float64        `json:"avg_all"`
	AvgSameMake  *float64        `json:"avg_same_make"`
	AvgSameModel *float64        `json:"avg_same_model"`
}

// Comparison is a car's value of one metric next to fleet / make / model means
// over active cars.
type Comparison struct {
	Car      float64 `json:"car"`
	AvgAll   float64 `json:"avg_all"`
	AvgMake  float64 `json:"avg_make"`
	AvgModel float64 `json:"avg_model"`
}

// CarStatsResponse is the per-car statistics payload (gauges, change series,
// metric comparisons).
type CarStatsResponse struct {
	StockN    int              `json:"stockn"`
	Title     string           `json:"title"` // "Make Model Year (Color)"
	PaidBack  bool             `json:"paid_back"`
	Breakeven *string          `json:"breakeven_date,omitempty"`
	Cost      *decimal.Decimal `json:"cost"`
	Profit    *int64           `json:"profit"`
	Xs        *float64         `json:"xs"`
	Age       *int             `json:"age"`
	Payback   *int             `json:"payback"`

	GaugeRanges map[string]MetricRange `json:"gauge_ranges"`
	Changes     []ChangePoint          `json:"changes"`
	XsVs        Comparison             `json:"xs_vs"`
	PaybackVs   Comparison             `json:"payback_vs"`
}

// AggregateLine is min/max/avg/sum of one metric.
type AggregateLine struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
	Avg *float64 `json:"avg"`
	Sum *float64 `json:"sum"`
}

// AggregatesResponse holds fleet aggregates, optionally filtered by
// make/model and including scrapped cars.
type AggregatesResponse struct {
	Age       AggregateLine `json:"age"`
	Payback   AggregateLine `json:"payback"`
	Profit    AggregateLine `json:"profit"`
	Xs        AggregateLine `json:"xs"`
	CostSum   float64       `json:"cost_sum"`
	ProfitSum float64       `json:"profit_sum"`
}

// CarFilter narrows the car list endpoint.
type CarFilter struct {
	Status string // "active" | "scrap" | "all"
	Make   string
	Model  string
}
