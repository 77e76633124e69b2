package handler

import (
	"errors"
	"net/http"
	"strconv"

	"carledger/internal/apierror"
	"carledger/internal/dto"
	"carledger/internal/repository"
	"carledger/internal/service"

	"github.com/gin-gonic/gin"
)

// CarsHandler serves the fleet listing, per-car statistics and aggregates.
type CarsHandler struct {
	repo repository.CarRepository
	svc  service.AnalyticsService
}

func NewCarsHandler(repo repository.CarRepository, svc service.AnalyticsService) *CarsHandler {
	return &CarsHandler{repo: repo, svc: svc}
}

// List returns cars filtered by ?status=active|scrap|all (default active),
// ?make= and ?model=.
func (h *CarsHandler) List(c *gin.Context) {
	filter := dto.CarFilter{
		Status: c.DefaultQuery("status", "active"),
		Make:   c.Query("make"),
		Model:  c.Query("model"),
	}
	switch filter.Status {
	case "active", "scrap", "all":
	default:
		c.JSON(http.StatusBadRequest, apierror.New("status must be active, scrap or all"))
		return
	}

	cars, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"cars": cars, "count": len(cars)})
}

// Stats returns the per-car statistics payload for one stock number.
func (h *CarsHandler) Stats(c *gin.Context) {
	stockN, err := strconv.Atoi(c.Param("stockn"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("stockn must be an integer"))
		return
	}

	snap, err := h.svc.LoadSnapshot(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
		return
	}

	stats, err := h.svc.CarStats(snap, stockN)
	if err != nil {
		if errors.Is(err, service.ErrUnknownCar) {
			c.JSON(http.StatusNotFound, apierror.New("unknown stock number"))
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Aggregates returns fleet-wide min/max/avg/sum lines, filtered by ?make=,
// ?model= and ?include_scrap=true.
func (h *CarsHandler) Aggregates(c *gin.Context) {
	includeScrap := c.Query("include_scrap") == "true"

	snap, err := h.svc.LoadSnapshot(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
		return
	}

	c.JSON(http.StatusOK, h.svc.Aggregates(snap, c.Query("make"), c.Query("model"), includeScrap))
}
