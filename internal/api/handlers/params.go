package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const defaultMonthsBack = 12

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrUnknownDataset),
		errors.Is(err, domain.ErrUnknownMetric),
		errors.Is(err, domain.ErrInvalidStore),
		errors.Is(err, domain.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSheetNotFound),
		errors.Is(err, domain.ErrUnreadableFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStoreNotFound),
		errors.Is(err, domain.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlertAlreadyClosed),
		errors.Is(err, domain.ErrStoreInUse):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse writes err as {"error": ...}. Internal failures are logged and
// answered with the generic message instead of the error text.
func errorResponse(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		c.JSON(status, gin.H{"error": message})
		return
	}
	log.Warn().Err(err).Str("path", c.FullPath()).Int("status", status).Msg(message)
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if fallback <= 0 {
		fallback = defaultMonthsBack
	}
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func parseNonNegativeInt(value string) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v >= 0 {
		return v
	}
	return 0
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// parsePeriod reads month and year query values under the given prefix
// ("" for month/year, "prev_" for prev_month/prev_year).
func parsePeriod(c *gin.Context, prefix string) (domain.Period, error) {
	monthRaw := strings.TrimSpace(c.Query(prefix + "month"))
	yearRaw := strings.TrimSpace(c.Query(prefix + "year"))
	if monthRaw == "" || yearRaw == "" {
		return domain.Period{}, fmt.Errorf("%w: %smonth and %syear are required", domain.ErrInvalidPeriod, prefix, prefix)
	}
	month, err := strconv.Atoi(monthRaw)
	if err != nil {
		return domain.Period{}, fmt.Errorf("%w: month %q", domain.ErrInvalidPeriod, monthRaw)
	}
	year, err := strconv.Atoi(yearRaw)
	if err != nil {
		return domain.Period{}, fmt.Errorf("%w: year %q", domain.ErrInvalidPeriod, yearRaw)
	}
	return domain.NewPeriod(month, year)
}

func parseOptionalFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", raw)
	}
	return &v, nil
}

// ScopeResolver turns the optional manager query parameter into a store scope.
type ScopeResolver interface {
	Scope(ctx context.Context, managerID string) (domain.Scope, error)
}

func parseScope(c *gin.Context, resolver ScopeResolver) (domain.Scope, error) {
	return resolver.Scope(c.Request.Context(), strings.TrimSpace(c.Query("manager")))
}
