package service

// car_stats.go
// Per-car statistics and fleet aggregates backing the single-car dashboard:
// gauge ranges scaled to the active fleet, the change series with same-date
// averages, and xs / payback comparisons against fleet, make and model means.

import (
	"fmt"
	"sort"
	"strings"

	"carledger/internal/dto"
	"carledger/internal/model"

	"github.com/shopspring/decimal"
)

// ErrUnknownCar is wrapped when a stats request names a stock number the
// asset table has never seen.
var ErrUnknownCar = fmt.Errorf("unknown stock number")

func (s *analyticsService) CarStats(snap *Snapshot, stockN int) (*dto.CarStatsResponse, error) {
	var car *model.Car
	for i := range snap.Cars {
		if snap.Cars[i].StockN == stockN {
			car = &snap.Cars[i]
			break
		}
	}
	if car == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCar, stockN)
	}

	active := activeCars(snap)

	resp := &dto.CarStatsResponse{
		StockN:   car.StockN,
		Title:    carTitle(car),
		PaidBack: car.IsPaidBack(),
		Cost:     car.Cost,
		Profit:   car.Profit,
		Xs:       car.Xs,
		Age:      car.Age,
		Payback:  car.Payback,
		GaugeRanges: map[string]dto.MetricRange{
			"cost":    rangeOf(active, func(c *model.Car) *float64 { return decimalValue(c.Cost) }),
			"profit":  rangeOf(active, func(c *model.Car) *float64 { return int64Value(c.Profit) }),
			"xs":      rangeOf(active, func(c *model.Car) *float64 { return c.Xs }),
			"age":     rangeOf(active, func(c *model.Car) *float64 { return intValue(c.Age) }),
			"payback": rangeOf(active, func(c *model.Car) *float64 { return intValue(c.Payback) }),
		},
		Changes: s.changeSeries(snap, car),
		XsVs: comparisonOf(active, car,
			func(c *model.Car) *float64 { return c.Xs }),
		PaybackVs: comparisonOf(active, car,
			func(c *model.Car) *float64 { return intValue(c.Payback) }),
	}
	if car.BreakevenDate != nil {
		b := car.BreakevenDate.Format("02.01.2006")
		resp.Breakeven = &b
	}
	return resp, nil
}

// changeSeries is the car's per-date change amounts in chronological order,
// each annotated with the same-date average across all cars, cars of the same
// make, and cars of the same model.
func (s *analyticsService) changeSeries(snap *Snapshot, car *model.Car) []dto.ChangePoint {
	makeOf := make(map[int]string, len(snap.Cars))
	modelOf := make(map[int]string, len(snap.Cars))
	for i := range snap.Cars {
		c := &snap.Cars[i]
		makeOf[c.StockN] = deref(c.Make)
		modelOf[c.StockN] = deref(c.Model)
	}

	type bucket struct {
		sum   decimal.Decimal
		count int
	}
	all := make(map[string]*bucket)
	sameMake := make(map[string]*bucket)
	sameModel := make(map[string]*bucket)
	add := func(m map[string]*bucket, key string, v decimal.Decimal) {
		b := m[key]
		if b == nil {
			b = &bucket{}
			m[key] = b
		}
		b.sum = b.sum.Add(v)
		b.count++
	}

	var own []model.LedgerEntry
	for _, e := range snap.Entries {
		key := dateKey(e.Date)
		add(all, key, e.ChangeAmount)
		if makeOf[e.StockN] != "" && makeOf[e.StockN] == deref(car.Make) {
			add(sameMake, key, e.ChangeAmount)
		}
		if modelOf[e.StockN] != "" && modelOf[e.StockN] == deref(car.Model) {
			add(sameModel, key, e.ChangeAmount)
		}
		if e.StockN == car.StockN {
			own = append(own, e)
		}
	}
	sort.Slice(own, func(i, j int) bool { return own[i].Date.Before(own[j].Date) })

	avg := func(m map[string]*bucket, key string) *float64 {
		b := m[key]
		if b == nil || b.count == 0 {
			return nil
		}
		v, _ := b.sum.Div(decimal.NewFromInt(int64(b.count))).Float64()
		return &v
	}

	points := make([]dto.ChangePoint, 0, len(own))
	for _, e := range own {
		key := dateKey(e.Date)
		points = append(points, dto.ChangePoint{
			Date:         key,
			Change:       e.ChangeAmount,
			AvgAll:       avg(all, key),
			AvgSameMake:  avg(sameMake, key),
			AvgSameModel: avg(sameModel, key),
		})
	}
	return points
}

func (s *analyticsService) Aggregates(snap *Snapshot, carMake, carModel string, includeScrap bool) dto.AggregatesResponse {
	var pool []*model.Car
	for i := range snap.Cars {
		c := &snap.Cars[i]
		if c.Status == model.StatusScrap && !includeScrap {
			continue
		}
		if carMake != "" && deref(c.Make) != carMake {
			continue
		}
		if carModel != "" && deref(c.Model) != carModel {
			continue
		}
		pool = append(pool, c)
	}

	age := aggregateOf(pool, func(c *model.Car) *float64 { return intValue(c.Age) })
	payback := aggregateOf(pool, func(c *model.Car) *float64 { return intValue(c.Payback) })
	profit := aggregateOf(pool, func(c *model.Car) *float64 { return int64Value(c.Profit) })
	xs := aggregateOf(pool, func(c *model.Car) *float64 { return c.Xs })
	cost := aggregateOf(pool, func(c *model.Car) *float64 { return decimalValue(c.Cost) })

	resp := dto.AggregatesResponse{Age: age, Payback: payback, Profit: profit, Xs: xs}
	if cost.Sum != nil {
		resp.CostSum = *cost.Sum
	}
	if profit.Sum != nil {
		resp.ProfitSum = *profit.Sum
	}
	return resp
}

// ── helpers ──────────────────────────────────────────────────────────────────

func activeCars(snap *Snapshot) []*model.Car {
	var out []*model.Car
	for i := range snap.Cars {
		if snap.Cars[i].Status == model.StatusActive {
			out = append(out, &snap.Cars[i])
		}
	}
	return out
}

func carTitle(car *model.Car) string {
	parts := []string{deref(car.Make), deref(car.Model)}
	if car.Year != nil {
		parts = append(parts, fmt.Sprintf("%d", *car.Year))
	}
	title := strings.TrimSpace(strings.Join(parts, " "))
	if color := deref(car.Color); color != "" {
		title += " (" + color + ")"
	}
	return title
}

// rangeOf computes the [min, max] of a metric over cars with a known value.
// An empty pool yields [0, 1] so gauge scaling never divides by zero.
func rangeOf(pool []*model.Car, value func(*model.Car) *float64) dto.MetricRange {
	var vals []float64
	for _, c := range pool {
		if v := value(c); v != nil {
			vals = append(vals, *v)
		}
	}
	if len(vals) == 0 {
		return dto.MetricRange{Min: 0, Max: 1}
	}
	r := dto.MetricRange{Min: vals[0], Max: vals[0]}
	for _, v := range vals[1:] {
		if v < r.Min {
			r.Min = v
		}
		if v > r.Max {
			r.Max = v
		}
	}
	return r
}

// comparisonOf lines a car's metric up against the mean over all active cars
// and the means over its make and model. The car's own missing value shows as
// zero, matching how the gauges render unknowns.
func comparisonOf(active []*model.Car, car *model.Car, value func(*model.Car) *float64) dto.Comparison {
	cmp := dto.Comparison{}
	if v := value(car); v != nil {
		cmp.Car = *v
	}
	cmp.AvgAll = meanOf(active, value, func(*model.Car) bool { return true })
	cmp.AvgMake = meanOf(active, value, func(c *model.Car) bool { return deref(c.Make) == deref(car.Make) })
	cmp.AvgModel = meanOf(active, value, func(c *model.Car) bool { return deref(c.Model) == deref(car.Model) })
	return cmp
}

func meanOf(pool []*model.Car, value func(*model.Car) *float64, match func(*model.Car) bool) float64 {
	sum, count := 0.0, 0
	for _, c := range pool {
		if !match(c) {
			continue
		}
		if v := value(c); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func aggregateOf(pool []*model.Car, value func(*model.Car) *float64) dto.AggregateLine {
	var vals []float64
	for _, c := range pool {
		if v := value(c); v != nil {
			vals = append(vals, *v)
		}
	}
	if len(vals) == 0 {
		return dto.AggregateLine{}
	}
	min, max, sum := vals[0], vals[0], 0.0
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	avg := sum / float64(len(vals))
	return dto.AggregateLine{Min: &min, Max: &max, Avg: &avg, Sum: &sum}
}

func decimalValue(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v, _ := d.Float64()
	return &v
}

func intValue(i *int) *float64 {
	if i == nil {
		return nil
	}
	v := float64(*i)
	return &v
}

func int64Value(i *int64) *float64 {
	if i == nil {
		return nil
	}
	v := float64(*i)
	return &v
}
