package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carledger/internal/apierror"
	"carledger/internal/config"
	"carledger/internal/infra"
	"carledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// AnalyticsHandler serves the screening tables and rollups. Responses are
// cached in Redis under keys scoped by the snapshot version, so a successful
// import invalidates every cached payload at once without key scans.
type AnalyticsHandler struct {
	svc service.AnalyticsService
	rdb *redis.Client
	cfg *config.Config
}

func NewAnalyticsHandler(svc service.AnalyticsService, rdb *redis.Client, cfg *config.Config) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, rdb: rdb, cfg: cfg}
}

// cached serves the payload from Redis when present, otherwise runs produce
// and stores the result. Caching is best effort: Redis trouble means every
// request recomputes, never an error to the client.
func (h *AnalyticsHandler) cached(c *gin.Context, name string, produce func() (interface{}, error)) {
	ctx := c.Request.Context()
	version := infra.SnapshotVersion(ctx, h.rdb)
	cacheKey := fmt.Sprintf("analytics:v%d:%s", version, name)

	if cachedBody, err := h.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", cachedBody)
		return
	}

	payload, err := produce()
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
		return
	}

	if b, jsonErr := json.Marshal(payload); jsonErr == nil {
		_ = h.rdb.Set(context.Background(), cacheKey, b, h.cfg.AnalyticsCacheTTL).Err()
		c.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// parseExclude reads the optional ?exclude=10401,10402 query parameter into
// the stock-number exclusion set applied before the screen's threshold test.
func parseExclude(c *gin.Context) (map[int]bool, string, error) {
	raw := strings.TrimSpace(c.Query("exclude"))
	if raw == "" {
		return nil, "", nil
	}
	exclude := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, "", fmt.Errorf("exclude must be a comma-separated list of stock numbers")
		}
		exclude[n] = true
	}
	return exclude, raw, nil
}

func (h *AnalyticsHandler) LowRecentSales(c *gin.Context) {
	exclude, rawExclude, err := parseExclude(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	h.cached(c, "low-recent-sales:"+rawExclude, func() (interface{}, error) {
		snap, err := h.svc.LoadSnapshot(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return h.svc.LowRecentSales(snap, exclude), nil
	})
}

func (h *AnalyticsHandler) UnprofitableAging(c *gin.Context) {
	exclude, rawExclude, err := parseExclude(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	h.cached(c, "unprofitable-aging:"+rawExclude, func() (interface{}, error) {
		snap, err := h.svc.LoadSnapshot(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return h.svc.UnprofitableAging(snap, exclude), nil
	})
}

func (h *AnalyticsHandler) BestPurchases(c *gin.Context) {
	h.cached(c, "best-purchases", func() (interface{}, error) {
		snap, err := h.svc.LoadSnapshot(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return h.svc.BestPurchases(snap), nil
	})
}

func (h *AnalyticsHandler) ScreenReport(c *gin.Context) {
	h.cached(c, "report", func() (interface{}, error) {
		snap, err := h.svc.LoadSnapshot(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return h.svc.ScreenReport(snap), nil
	})
}

func (h *AnalyticsHandler) MonthlyIncome(c *gin.Context) {
	start, err := h.windowStart(c, h.cfg.IncomeStartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	h.cached(c, "monthly-income:"+start.Format("2006-01-02"), func() (interface{}, error) {
		snap, err := h.svc.LoadSnapshot(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return h.svc.MonthlyIncome(snap, start), nil
	})
}

func (h *AnalyticsHandler) MonthlyActivity(c *gin.Context) {
	purchaseStart, err := parseDateParam(c.Query("purchase_start"), h.cfg.ActivityStartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("purchase_start must be YYYY-MM-DD"))
		return
	}
	inventoriedStart, err := parseDateParam(c.Query("inventoried_start"), h.cfg.ActivityStartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("inventoried_start must be YYYY-MM-DD"))
		return
	}
	name := fmt.Sprintf("monthly-activity:%s:%s",
		purchaseStart.Format("2006-01-02"), inventoriedStart.Format("2006-01-02"))
	h.cached(c, name, func() (interface{}, error) {
		snap, err := h.svc.LoadSnapshot(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return h.svc.MonthlyActivity(snap, purchaseStart, inventoriedStart), nil
	})
}

// windowStart resolves the rollup window start: ?start=YYYY-MM-DD when given,
// otherwise the configured default.
func (h *AnalyticsHandler) windowStart(c *gin.Context, fallback string) (time.Time, error) {
	start, err := parseDateParam(c.Query("start"), fallback)
	if err != nil {
		return time.Time{}, fmt.Errorf("start must be YYYY-MM-DD")
	}
	return start, nil
}

func parseDateParam(raw, fallback string) (time.Time, error) {
	if raw == "" {
		raw = fallback
	}
	return time.Parse("2006-01-02", raw)
}
