package handlers

import (
	"net/http"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
}

func NewAnalyticsHandler(service *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// periodAndScope parses the common month/year/manager query parameters.
func (h *AnalyticsHandler) periodAndScope(c *gin.Context) (domain.Period, domain.Scope, bool) {
	p, err := parsePeriod(c, "")
	if err != nil {
		errorResponse(c, err, "invalid period")
		return domain.Period{}, domain.Scope{}, false
	}
	scope, err := parseScope(c, h.service)
	if err != nil {
		errorResponse(c, err, "failed to resolve manager scope")
		return domain.Period{}, domain.Scope{}, false
	}
	return p, scope, true
}

// GetStats returns the period statistics of the results dataset
func (h *AnalyticsHandler) GetStats(c *gin.Context) {
	p, scope, ok := h.periodAndScope(c)
	if !ok {
		return
	}
	stats, err := h.service.PeriodStats(c.Request.Context(), p, scope)
	if err != nil {
		errorResponse(c, err, "failed to fetch period stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetRanking returns stores ordered by one metric, best first
func (h *AnalyticsHandler) GetRanking(c *gin.Context) {
	p, scope, ok := h.periodAndScope(c)
	if !ok {
		return
	}
	metric := domain.RankingMetric(strings.TrimSpace(c.DefaultQuery("metric", string(domain.MetricTotalServices))))
	limit := parseNonNegativeInt(c.Query("limit"))

	ranking, err := h.service.Ranking(c.Request.Context(), metric, p, limit, scope)
	if err != nil {
		errorResponse(c, err, "failed to fetch ranking")
		return
	}
	c.JSON(http.StatusOK, gin.H{"metric": metric, "period": p, "entries": ranking})
}

func (h *AnalyticsHandler) GetZones(c *gin.Context) {
	p, scope, ok := h.periodAndScope(c)
	if !ok {
		return
	}
	zones, err := h.service.ZoneRollup(c.Request.Context(), p, scope)
	if err != nil {
		errorResponse(c, err, "failed to fetch zone rollup")
		return
	}
	c.JSON(http.StatusOK, zones)
}

// GetStoreEvolution returns one store's results for the last N months
func (h *AnalyticsHandler) GetStoreEvolution(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	months := parsePositiveIntWithDefault(c.Query("months"), defaultMonthsBack)

	series, err := h.service.StoreEvolution(c.Request.Context(), id, months)
	if err != nil {
		errorResponse(c, err, "failed to fetch store evolution")
		return
	}
	c.JSON(http.StatusOK, series)
}

// GetGroupEvolution returns monthly sums over the manager's stores (or all stores)
func (h *AnalyticsHandler) GetGroupEvolution(c *gin.Context) {
	scope, err := parseScope(c, h.service)
	if err != nil {
		errorResponse(c, err, "failed to resolve manager scope")
		return
	}
	months := parsePositiveIntWithDefault(c.Query("months"), defaultMonthsBack)

	points, err := h.service.GroupEvolution(c.Request.Context(), scope, months)
	if err != nil {
		errorResponse(c, err, "failed to fetch group evolution")
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *AnalyticsHandler) GetStoreHistory(c *gin.Context) {
	dataset, err := domain.ParseDatasetType(c.Param("dataset"))
	if err != nil {
		errorResponse(c, err, "invalid dataset")
		return
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	months := parsePositiveIntWithDefault(c.Query("months"), defaultMonthsBack)

	history, err := h.service.StoreHistory(c.Request.Context(), dataset, id, months)
	if err != nil {
		errorResponse(c, err, "failed to fetch store history")
		return
	}
	c.JSON(http.StatusOK, history)
}

// CompareStores puts two stores side by side for one period
func (h *AnalyticsHandler) CompareStores(c *gin.Context) {
	p, err := parsePeriod(c, "")
	if err != nil {
		errorResponse(c, err, "invalid period")
		return
	}
	storeA, errA := parseID(c.Query("store_a"))
	storeB, errB := parseID(c.Query("store_b"))
	if errA != nil || errB != nil {
		badRequest(c, "store_a and store_b must be store ids")
		return
	}

	comparison, err := h.service.Compare(c.Request.Context(), storeA, storeB, p)
	if err != nil {
		errorResponse(c, err, "failed to compare stores")
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// ComparePeriods compares a period with prev_month/prev_year, defaulting to the month before
func (h *AnalyticsHandler) ComparePeriods(c *gin.Context) {
	current, scope, ok := h.periodAndScope(c)
	if !ok {
		return
	}
	previous := current.AddMonths(-1)
	if c.Query("prev_month") != "" || c.Query("prev_year") != "" {
		p, err := parsePeriod(c, "prev_")
		if err != nil {
			errorResponse(c, err, "invalid previous period")
			return
		}
		previous = p
	}

	comparison, err := h.service.ComparePeriods(c.Request.Context(), current, previous, scope)
	if err != nil {
		errorResponse(c, err, "failed to compare periods")
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// GetNetworkTotals returns the totals row imported with the results export
func (h *AnalyticsHandler) GetNetworkTotals(c *gin.Context) {
	p, err := parsePeriod(c, "")
	if err != nil {
		errorResponse(c, err, "invalid period")
		return
	}
	totals, err := h.service.NetworkTotals(c.Request.Context(), p)
	if err != nil {
		errorResponse(c, err, "failed to fetch network totals")
		return
	}
	if totals == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no network totals for " + p.String()})
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (h *AnalyticsHandler) GetNetworkTotalsSeries(c *gin.Context) {
	months := parsePositiveIntWithDefault(c.Query("months"), defaultMonthsBack)
	series, err := h.service.NetworkTotalsSeries(c.Request.Context(), months)
	if err != nil {
		errorResponse(c, err, "failed to fetch network totals series")
		return
	}
	c.JSON(http.StatusOK, series)
}

// GetAvailablePeriods lists the months that have data for a dataset, newest first
func (h *AnalyticsHandler) GetAvailablePeriods(c *gin.Context) {
	dataset, err := domain.ParseDatasetType(c.DefaultQuery("dataset", string(domain.DatasetResults)))
	if err != nil {
		errorResponse(c, err, "invalid dataset")
		return
	}
	periods, err := h.service.AvailablePeriods(c.Request.Context(), dataset)
	if err != nil {
		errorResponse(c, err, "failed to fetch available periods")
		return
	}
	c.JSON(http.StatusOK, periods)
}

func (h *AnalyticsHandler) GetComplementaryStats(c *gin.Context) {
	p, scope, ok := h.periodAndScope(c)
	if !ok {
		return
	}
	stats, err := h.service.ComplementaryStats(c.Request.Context(), p, scope)
	if err != nil {
		errorResponse(c, err, "failed to fetch complementary stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
