package handlers

import (
	"net/http"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type AlertHandler struct {
	alerts *service.AlertService
	scopes ScopeResolver
}

func NewAlertHandler(alerts *service.AlertService, scopes ScopeResolver) *AlertHandler {
	return &AlertHandler{alerts: alerts, scopes: scopes}
}

type scanRequest struct {
	Month     int      `json:"month" binding:"required,min=1,max=12"`
	Year      int      `json:"year" binding:"required,min=2000,max=2200"`
	Threshold *float64 `json:"threshold"`
}

type resolveRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// ScanAlerts raises pending low-performance alerts for a period
func (h *AlertHandler) ScanAlerts(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := domain.NewPeriod(req.Month, req.Year)
	if err != nil {
		errorResponse(c, err, "invalid period")
		return
	}

	result, err := h.alerts.Scan(c.Request.Context(), req.Threshold, p)
	if err != nil {
		errorResponse(c, err, "failed to scan alerts")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListAlerts filters by status, store_id and type; newest first
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	var filter domain.AlertFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, ok := domain.ParseAlertStatus(raw)
		if !ok {
			badRequest(c, "unknown alert status "+raw)
			return
		}
		filter.Status = status
	}
	if raw := c.Query("store_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter.StoreID = id
	}
	filter.Type = domain.AlertType(strings.TrimSpace(c.Query("type")))
	filter.Limit = parseNonNegativeInt(c.Query("limit"))

	alerts, err := h.alerts.List(c.Request.Context(), filter)
	if err != nil {
		errorResponse(c, err, "failed to fetch alerts")
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *AlertHandler) GetAlert(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	alert, err := h.alerts.Get(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err, "failed to fetch alert")
		return
	}
	c.JSON(http.StatusOK, alert)
}

// ResolveAlert closes a pending alert with optional notes
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var req resolveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	alert, err := h.alerts.Resolve(c.Request.Context(), id, strings.TrimSpace(req.Notes))
	if err != nil {
		errorResponse(c, err, "failed to resolve alert")
		return
	}
	c.JSON(http.StatusOK, alert)
}

// GetLowPerformers lists stores below the threshold without raising alerts
func (h *AlertHandler) GetLowPerformers(c *gin.Context) {
	p, err := parsePeriod(c, "")
	if err != nil {
		errorResponse(c, err, "invalid period")
		return
	}
	threshold, err := parseOptionalFloat(c.Query("threshold"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	scope, err := parseScope(c, h.scopes)
	if err != nil {
		errorResponse(c, err, "failed to resolve manager scope")
		return
	}

	stores, err := h.alerts.LowPerformers(c.Request.Context(), threshold, p, scope)
	if err != nil {
		errorResponse(c, err, "failed to fetch low performers")
		return
	}
	c.JSON(http.StatusOK, stores)
}
