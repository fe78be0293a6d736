package api

import (
	"strings"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/api/handlers"
	"github.com/andresuchdata/storeresults/backend-go/internal/api/middleware"
	"github.com/andresuchdata/storeresults/backend-go/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Analytics *service.AnalyticsService
	Imports   *service.ImportService
	Alerts    *service.AlertService
	Stores    *service.StoreService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")
	if services == nil {
		return router
	}

	if services.Imports != nil {
		importHandler := handlers.NewImportHandler(services.Imports)
		apiGroup.POST("/imports", importHandler.UploadResults)
		apiGroup.POST("/stores/import", importHandler.UploadStores)
	}

	if services.Stores != nil {
		storeHandler := handlers.NewStoreHandler(services.Stores)
		storeGroup := apiGroup.Group("/stores")
		{
			storeGroup.GET("", storeHandler.GetStores)
			storeGroup.POST("", storeHandler.SaveStore)
			storeGroup.GET("/:id", storeHandler.GetStore)
			storeGroup.DELETE("/:id", storeHandler.DeleteStore)
			storeGroup.POST("/resolve", storeHandler.ResolveLabels)
		}
		apiGroup.GET("/managers/:manager/stores", storeHandler.GetManagerStores)
		apiGroup.PUT("/managers/:manager/stores", storeHandler.AssignManagerStores)
	}

	if services.Analytics != nil {
		analyticsHandler := handlers.NewAnalyticsHandler(services.Analytics)
		analyticsGroup := apiGroup.Group("/analytics")
		{
			analyticsGroup.GET("/stats", analyticsHandler.GetStats)
			analyticsGroup.GET("/ranking", analyticsHandler.GetRanking)
			analyticsGroup.GET("/zones", analyticsHandler.GetZones)
			analyticsGroup.GET("/evolution/group", analyticsHandler.GetGroupEvolution)
			analyticsGroup.GET("/evolution/stores/:id", analyticsHandler.GetStoreEvolution)
			analyticsGroup.GET("/history/:dataset/:id", analyticsHandler.GetStoreHistory)
			analyticsGroup.GET("/compare", analyticsHandler.CompareStores)
			analyticsGroup.GET("/compare/periods", analyticsHandler.ComparePeriods)
			analyticsGroup.GET("/totals", analyticsHandler.GetNetworkTotals)
			analyticsGroup.GET("/totals/series", analyticsHandler.GetNetworkTotalsSeries)
			analyticsGroup.GET("/periods", analyticsHandler.GetAvailablePeriods)
			analyticsGroup.GET("/complementary/stats", analyticsHandler.GetComplementaryStats)
		}
	}

	if services.Alerts != nil && services.Analytics != nil {
		alertHandler := handlers.NewAlertHandler(services.Alerts, services.Analytics)
		alertGroup := apiGroup.Group("/alerts")
		{
			alertGroup.GET("", alertHandler.ListAlerts)
			alertGroup.POST("/scan", alertHandler.ScanAlerts)
			alertGroup.GET("/low-performers", alertHandler.GetLowPerformers)
			alertGroup.GET("/:id", alertHandler.GetAlert)
			alertGroup.POST("/:id/resolve", alertHandler.ResolveAlert)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
