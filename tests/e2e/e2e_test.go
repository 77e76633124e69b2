//go:build integration

package e2e

// e2e_test.go
// End-to-end integration tests using real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./tests/e2e/... -v
//
// These tests:
//   T-E2E-1: Import cycle (full report → cars + ledger → derived metrics)
//   T-E2E-2: Re-import idempotency (same snapshot date adds nothing)
//   T-E2E-3: Delta chain across snapshot dates + screening report
//   T-E2E-4: Per-car stats and unknown stock number handling

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carledger/internal/config"
	"carledger/internal/dto"
	"carledger/internal/infra"
	"carledger/internal/router"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func importRows(t *testing.T, srv *httptest.Server, date string, kind string, rows []map[string]any) dto.ReconcileResult {
	t.Helper()
	payload := map[string]any{"date": date + "T00:00:00Z", "kind": kind, "rows": rows}
	resp := do(t, srv, http.MethodPost, "/v1/imports/rows", jsonBody(t, payload))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result dto.ReconcileResult
	decodeJSON(t, resp, &result)
	require.Empty(t, result.Error)
	return result
}

func fullRow(stockN int, cumulative string) map[string]any {
	return map[string]any{
		"stockn":            stockN,
		"make":              "Toyota",
		"model":             "Corolla",
		"year":              2015,
		"color":             "Silver",
		"cost":              "5000",
		"cumulative_amount": cumulative,
		"inventoried":       "2024-01-01T00:00:00Z",
	}
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

func setupTestEnv(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("carledger_test"),
		tcPostgres.WithUsername("carledger"),
		tcPostgres.WithPassword("carledger"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:                8000,
		Env:                 "test",
		DatabaseURL:         pgURL,
		RedisURL:            rdURL,
		CarStockFloor:       10300,
		LedgerStockFloor:    10400,
		LowSalesThreshold:   200,
		AgingDaysThreshold:  60,
		AgingXsThreshold:    1.5,
		BestXsThreshold:     2,
		BestProfitThreshold: 5000,
		IncomeStartDate:     "2024-01-01",
		ActivityStartDate:   "2022-05-01",
		AnalyticsCacheTTL:   time.Hour,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(db))

	rdb, err := infra.NewRedis(context.Background(), cfg.RedisURL)
	require.NoError(t, err)

	srv := httptest.NewServer(router.New(cfg, db, rdb))
	t.Cleanup(srv.Close)
	return srv
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestImportCycleAndDerivedMetrics(t *testing.T) {
	srv := setupTestEnv(t)

	result := importRows(t, srv, "2024-05-01", "full", []map[string]any{
		fullRow(10500, "8000"),
		fullRow(10350, "100"), // above car floor, below ledger floor
	})
	assert.Equal(t, 2, result.CarsAdded)
	assert.Equal(t, 1, result.EntriesAdded)

	resp := do(t, srv, http.MethodGet, "/v1/cars", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Count int `json:"count"`
		Cars  []struct {
			StockN int      `json:"StockN"`
			Profit *int64   `json:"Profit"`
			Xs     *float64 `json:"Xs"`
		} `json:"cars"`
	}
	decodeJSON(t, resp, &listing)
	require.Equal(t, 2, listing.Count)

	for _, car := range listing.Cars {
		if car.StockN != 10500 {
			continue
		}
		require.NotNil(t, car.Profit)
		assert.Equal(t, int64(3000), *car.Profit)
		require.NotNil(t, car.Xs)
		assert.Equal(t, 1.6, *car.Xs)
	}

	// Health stays green with both stores up
	health := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, health.StatusCode)
	health.Body.Close()
}

func TestReimportIsIdempotent(t *testing.T) {
	srv := setupTestEnv(t)

	rows := []map[string]any{fullRow(10500, "8000")}
	first := importRows(t, srv, "2024-05-01", "full", rows)
	require.Equal(t, 1, first.EntriesAdded)

	second := importRows(t, srv, "2024-05-01", "full", rows)
	assert.Equal(t, 0, second.CarsAdded)
	assert.Equal(t, 0, second.EntriesAdded)
	assert.Equal(t, 1, second.CarsUpdated)
}

func TestDeltaChainAndScreens(t *testing.T) {
	srv := setupTestEnv(t)

	importRows(t, srv, "2024-05-01", "full", []map[string]any{fullRow(10500, "100")})
	importRows(t, srv, "2024-05-02", "full", []map[string]any{fullRow(10500, "150")})
	importRows(t, srv, "2024-05-03", "full", []map[string]any{fullRow(10500, "130")})

	// Sum of deltas within the recent window is 130 ≤ 200: low sales.
	// The car is also >60 days old with xs ≈ 0.03 < 1.5, so the aging screen
	// claims it first and the low-sales screen must not repeat it.
	resp := do(t, srv, http.MethodGet, "/v1/screens/report", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report dto.ScreenReportResponse
	decodeJSON(t, resp, &report)

	require.Len(t, report.UnprofitableAging.Rows, 1)
	assert.Equal(t, 10500, report.UnprofitableAging.Rows[0].StockN)
	assert.Empty(t, report.LowRecentSales.Rows)

	row := report.UnprofitableAging.Rows[0]
	assert.Contains(t, row.Dynamics, "⬇️ (-20)")

	income := do(t, srv, http.MethodGet, "/v1/rollups/monthly-income", nil)
	require.Equal(t, http.StatusOK, income.StatusCode)
	var incomeResp dto.MonthlyIncomeResponse
	decodeJSON(t, income, &incomeResp)
	require.Len(t, incomeResp.Rows, 1)
	assert.Equal(t, "05/24", incomeResp.Rows[0].Month)
	assert.True(t, incomeResp.Rows[0].Income.Equal(decimal.RequireFromString("130")))
}

func TestCarStatsEndpoint(t *testing.T) {
	srv := setupTestEnv(t)

	importRows(t, srv, "2024-05-01", "full", []map[string]any{fullRow(10500, "8000")})

	resp := do(t, srv, http.MethodGet, "/v1/cars/10500/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats dto.CarStatsResponse
	decodeJSON(t, resp, &stats)
	assert.Equal(t, "Toyota Corolla 2015 (Silver)", stats.Title)
	require.Len(t, stats.Changes, 1)

	missing := do(t, srv, http.MethodGet, "/v1/cars/99999/stats", nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	missing.Body.Close()
}
