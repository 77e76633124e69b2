package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"carledger/internal/config"
	"carledger/internal/dto"
	"carledger/internal/infra"
	"carledger/internal/model"
	"carledger/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// NoDataSentinel is rendered for cars without any ledger entries.
const NoDataSentinel = "No data"

// Snapshot is a point-in-time view of the full car and ledger state. Every
// analytics query is a pure function over one snapshot: nothing here mutates
// it, and no query retains a reference across calls. Version ties the
// snapshot to the redis cache-invalidation counter.
type Snapshot struct {
	Cars    []model.Car
	Entries []model.LedgerEntry
	Version int64
}

// AnalyticsService answers the read-only screening / rollup queries.
type AnalyticsService interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	LowRecentSales(snap *Snapshot, exclude map[int]bool) dto.ScreenResponse
	UnprofitableAging(snap *Snapshot, exclude map[int]bool) dto.ScreenResponse
	BestPurchases(snap *Snapshot) dto.ScreenResponse
	ScreenReport(snap *Snapshot) dto.ScreenReportResponse

	DynamicsStrings(snap *Snapshot, stockNs []int) map[int]string
	MonthlyIncome(snap *Snapshot, start time.Time) dto.MonthlyIncomeResponse
	MonthlyActivity(snap *Snapshot, purchaseStart, inventoriedStart time.Time) []dto.MonthlyActivityRow
	Summarize(rows []dto.CarRow) dto.SummaryStats

	CarStats(snap *Snapshot, stockN int) (*dto.CarStatsResponse, error)
	Aggregates(snap *Snapshot, make, carModel string, includeScrap bool) dto.AggregatesResponse
}

type analyticsService struct {
	cars   repository.CarRepository
	ledger repository.LedgerRepository
	rdb    *redis.Client
	cfg    *config.Config
	now    func() time.Time
}

func NewAnalyticsService(
	cars repository.CarRepository,
	ledger repository.LedgerRepository,
	rdb *redis.Client,
	cfg *config.Config,
) AnalyticsService {
	return &analyticsService{
		cars:   cars,
		ledger: ledger,
		rdb:    rdb,
		cfg:    cfg,
		now:    time.Now,
	}
}

// LoadSnapshot pulls the full current state. Callers must fetch a fresh
// snapshot after a successful reconcile — the version counter tells cached
// readers when theirs went stale.
func (s *analyticsService) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	cars, err := s.cars.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot cars: %w", err)
	}
	entries, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot ledger: %w", err)
	}
	var version int64
	if s.rdb != nil {
		version = infra.SnapshotVersion(ctx, s.rdb)
	}
	return &Snapshot{Cars: cars, Entries: entries, Version: version}, nil
}

// ── Screens ──────────────────────────────────────────────────────────────────

// LowRecentSales returns cars whose summed change amount over the 4 most
// recent distinct ledger dates is at or below the threshold. The date window
// is global across all cars, matching the source reports' cadence where every
// car appears on every report date.
func (s *analyticsService) LowRecentSales(snap *Snapshot, exclude map[int]bool) dto.ScreenResponse {
	window := recentDates(snap.Entries, 4)
	if len(window) == 0 {
		return dto.ScreenResponse{Rows: []dto.CarRow{}}
	}

	sums := make(map[int]decimal.Decimal)
	for _, e := range snap.Entries {
		if !window[dateKey(e.Date)] {
			continue
		}
		sums[e.StockN] = sums[e.StockN].Add(e.ChangeAmount)
	}

	threshold := decimal.NewFromFloat(s.cfg.LowSalesThreshold)
	var stockNs []int
	for stockN, sum := range sums {
		if sum.LessThanOrEqual(threshold) && !exclude[stockN] {
			stockNs = append(stockNs, stockN)
		}
	}
	return s.screenOf(snap, stockNs)
}

// UnprofitableAging returns cars older than the day threshold whose return
// multiple is below the xs threshold. Cars never inventoried are out of
// scope; a missing xs counts as zero, not as unknown — a car that earned
// nothing back belongs on this screen.
func (s *analyticsService) UnprofitableAging(snap *Snapshot, exclude map[int]bool) dto.ScreenResponse {
	today := s.now()
	var stockNs []int
	for i := range snap.Cars {
		car := &snap.Cars[i]
		if car.Inventoried == nil || exclude[car.StockN] {
			continue
		}
		age := CalculateAge(car.Inventoried, today)
		xs := 0.0
		if car.Xs != nil {
			xs = *car.Xs
		}
		if *age > s.cfg.AgingDaysThreshold && xs < s.cfg.AgingXsThreshold {
			stockNs = append(stockNs, car.StockN)
		}
	}
	return s.screenOf(snap, stockNs)
}

// BestPurchases returns cars with a return multiple above the xs threshold OR
// a profit above the profit threshold. No exclusion coupling with the other
// screens.
func (s *analyticsService) BestPurchases(snap *Snapshot) dto.ScreenResponse {
	var stockNs []int
	for i := range snap.Cars {
		car := &snap.Cars[i]
		xs, profit := 0.0, int64(0)
		if car.Xs != nil {
			xs = *car.Xs
		}
		if car.Profit != nil {
			profit = *car.Profit
		}
		if xs > s.cfg.BestXsThreshold || float64(profit) > s.cfg.BestProfitThreshold {
			stockNs = append(stockNs, car.StockN)
		}
	}
	return s.screenOf(snap, stockNs)
}

// ScreenReport composes the dashboard: the aging screen runs first and its
// stock numbers become the exclusion set of the low-recent-sales screen, so a
// car never appears on both.
func (s *analyticsService) ScreenReport(snap *Snapshot) dto.ScreenReportResponse {
	aging := s.UnprofitableAging(snap, nil)

	exclude := make(map[int]bool, len(aging.Rows))
	for _, row := range aging.Rows {
		exclude[row.StockN] = true
	}

	return dto.ScreenReportResponse{
		LowRecentSales:    s.LowRecentSales(snap, exclude),
		UnprofitableAging: aging,
		BestPurchases:     s.BestPurchases(snap),
	}
}

// screenOf materializes rows (with dynamics strings) and the summary block
// for a set of stock numbers, ordered by stock number.
func (s *analyticsService) screenOf(snap *Snapshot, stockNs []int) dto.ScreenResponse {
	sort.Ints(stockNs)
	dynamics := s.DynamicsStrings(snap, stockNs)

	byStockN := make(map[int]*model.Car, len(snap.Cars))
	for i := range snap.Cars {
		byStockN[snap.Cars[i].StockN] = &snap.Cars[i]
	}

	rows := make([]dto.CarRow, 0, len(stockNs))
	for _, stockN := range stockNs {
		car, ok := byStockN[stockN]
		if !ok {
			continue // ledger rows for a car the asset table never saw
		}
		rows = append(rows, dto.CarRow{
			StockN:   car.StockN,
			Make:     deref(car.Make),
			Model:    deref(car.Model),
			Year:     car.Year,
			Color:    deref(car.Color),
			Cost:     car.Cost,
			Profit:   car.Profit,
			Xs:       car.Xs,
			Dynamics: dynamics[stockN],
			Age:      car.Age,
		})
	}
	return dto.ScreenResponse{Rows: rows, Summary: s.Summarize(rows)}
}

// ── Dynamics strings ─────────────────────────────────────────────────────────

// DynamicsStrings renders each car's change history most-recent-first, e.g.
// "⬆️ (+25) / ⬇️ (-10) / 0". Cars without entries map to the no-data sentinel.
func (s *analyticsService) DynamicsStrings(snap *Snapshot, stockNs []int) map[int]string {
	wanted := make(map[int]bool, len(stockNs))
	for _, n := range stockNs {
		wanted[n] = true
	}

	perCar := make(map[int][]model.LedgerEntry)
	for _, e := range snap.Entries {
		if wanted[e.StockN] {
			perCar[e.StockN] = append(perCar[e.StockN], e)
		}
	}

	out := make(map[int]string, len(stockNs))
	for _, stockN := range stockNs {
		entries := perCar[stockN]
		if len(entries) == 0 {
			out[stockN] = NoDataSentinel
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
		parts := make([]string, len(entries))
		for i, e := range entries {
			parts[i] = formatChange(e.ChangeAmount)
		}
		out[stockN] = strings.Join(parts, " / ")
	}
	return out
}

func formatChange(change decimal.Decimal) string {
	n := change.IntPart()
	switch {
	case change.IsPositive():
		return fmt.Sprintf("⬆️ (+%d)", n)
	case change.IsNegative():
		return fmt.Sprintf("⬇️ (%d)", n)
	default:
		return "0"
	}
}

// ── Monthly rollups ──────────────────────────────────────────────────────────

// MonthlyIncome sums change amounts per calendar month from the start date.
// Rows are sorted by month descending (table order), while CategoryOrder
// carries the chronological ascending labels the chart axis must use — the
// axis order is an explicit output, never rederived from row order.
func (s *analyticsService) MonthlyIncome(snap *Snapshot, start time.Time) dto.MonthlyIncomeResponse {
	sums := make(map[string]decimal.Decimal)
	for _, e := range snap.Entries {
		if e.Date.Before(start) {
			continue
		}
		m := monthKey(e.Date)
		sums[m] = sums[m].Add(e.ChangeAmount)
	}

	months := sortedKeysDesc(sums)
	rows := make([]dto.MonthlyIncomeRow, 0, len(months))
	for _, m := range months {
		rows = append(rows, dto.MonthlyIncomeRow{Month: monthLabel(m), Income: sums[m]})
	}

	order := make([]string, 0, len(months))
	for i := len(months) - 1; i >= 0; i-- {
		order = append(order, monthLabel(months[i]))
	}
	return dto.MonthlyIncomeResponse{Rows: rows, CategoryOrder: order}
}

// MonthlyActivity counts purchases and inventory intakes per month and
// outer-joins the two: a month with only one kind of activity still appears,
// with the other count zero. Rows are sorted by month descending.
func (s *analyticsService) MonthlyActivity(snap *Snapshot, purchaseStart, inventoriedStart time.Time) []dto.MonthlyActivityRow {
	purchased := make(map[string]int)
	inventoried := make(map[string]int)
	for i := range snap.Cars {
		car := &snap.Cars[i]
		if car.PurchaseDate != nil && !car.PurchaseDate.Before(purchaseStart) {
			purchased[monthKey(*car.PurchaseDate)]++
		}
		if car.Inventoried != nil && !car.Inventoried.Before(inventoriedStart) {
			inventoried[monthKey(*car.Inventoried)]++
		}
	}

	union := make(map[string]bool)
	for m := range purchased {
		union[m] = true
	}
	for m := range inventoried {
		union[m] = true
	}
	months := make([]string, 0, len(union))
	for m := range union {
		months = append(months, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	rows := make([]dto.MonthlyActivityRow, 0, len(months))
	for _, m := range months {
		rows = append(rows, dto.MonthlyActivityRow{
			Month:       monthLabel(m),
			Purchased:   purchased[m],
			Inventoried: inventoried[m],
		})
	}
	return rows
}

// Summarize computes the table footer: count, total cost, total profit, and
// income = profit + cost by definition. Missing values contribute nothing.
func (s *analyticsService) Summarize(rows []dto.CarRow) dto.SummaryStats {
	stats := dto.SummaryStats{Count: len(rows)}
	cost := decimal.Zero
	for _, row := range rows {
		if row.Cost != nil {
			cost = cost.Add(*row.Cost)
		}
		if row.Profit != nil {
			stats.TotalProfit += *row.Profit
		}
	}
	stats.TotalCost = cost.Round(0).IntPart()
	stats.TotalIncome = stats.TotalProfit + stats.TotalCost
	return stats
}

// ── helpers ──────────────────────────────────────────────────────────────────

// recentDates returns the n most recent distinct ledger dates as a set.
func recentDates(entries []model.LedgerEntry, n int) map[string]bool {
	distinct := make(map[string]bool)
	for _, e := range entries {
		distinct[dateKey(e.Date)] = true
	}
	keys := make([]string, 0, len(distinct))
	for k := range distinct {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if len(keys) > n {
		keys = keys[:n]
	}
	window := make(map[string]bool, len(keys))
	for _, k := range keys {
		window[k] = true
	}
	return window
}

func dateKey(t time.Time) string  { return t.Format("2006-01-02") }
func monthKey(t time.Time) string { return t.Format("2006-01") }

// monthLabel converts a sortable "2006-01" key into the "01/06" display label.
func monthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("01/06")
}

func sortedKeysDesc(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
