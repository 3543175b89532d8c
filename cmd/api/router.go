package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"circulation-backend/internal/shared/middleware"
	"circulation-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Tracing(c.Config.Tracing.ServiceName),
		middleware.Logger(),
	)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupLoanRoutes(v1, c)
		setupItemRoutes(v1, c)
		setupBorrowerRoutes(v1, c)
		setupAdminRoutes(v1, c)
	}

	return router
}

// ========================================
// LOAN ROUTES
// ========================================
func setupLoanRoutes(v1 *gin.RouterGroup, c *container.Container) {
	h := c.CirculationHandler

	loans := v1.Group("/loans")
	{
		loans.POST("", middleware.Idempotency(c.Cache, c.Config.Circulation.IdempotencyTTL), h.Borrow)
		loans.GET("", h.ListLoans)
		loans.GET("/overdue", h.ListOverdue)
		loans.GET("/statistics", h.Statistics)
		loans.GET("/:id", h.GetLoan)
		loans.POST("/:id/return", h.Return)
		loans.POST("/:id/renew", h.Renew)
	}
}

// ========================================
// ITEM ROUTES
// ========================================
func setupItemRoutes(v1 *gin.RouterGroup, c *container.Container) {
	h := c.CirculationHandler

	items := v1.Group("/items")
	{
		items.GET("", h.ListItems)
		items.GET("/:id", h.GetItem)
		items.GET("/:id/availability", h.GetAvailability)
	}
}

// ========================================
// BORROWER ROUTES
// ========================================
func setupBorrowerRoutes(v1 *gin.RouterGroup, c *container.Container) {
	borrowers := v1.Group("/borrowers")
	{
		borrowers.GET("/:id", c.DirectoryHandler.GetBorrower)
		borrowers.PUT("/:id", c.DirectoryHandler.UpsertBorrower)
		borrowers.GET("/:id/eligibility", c.CirculationHandler.CheckEligibility)
	}
}

// ========================================
// ADMIN ROUTES
// ========================================
// Authentication is expected in front of the service (gateway); these
// routes are only grouped here.
func setupAdminRoutes(v1 *gin.RouterGroup, c *container.Container) {
	h := c.CirculationHandler

	admin := v1.Group("/admin")
	{
		admin.POST("/items", h.RegisterItem)
		admin.PUT("/items/:id/copies", h.ResizeItem)
		admin.POST("/loans/:id/force-close", h.ForceClose)
		admin.DELETE("/loans/:id", h.DeleteLoan)
		admin.POST("/reconcile", h.Reconcile)
	}
}

// ========================================
// HEALTH CHECK
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := appCtx.Store.Ping(ctx); err != nil {
			dbStatus = fmt.Sprintf("error: %v", err)
			health["status"] = "degraded"
		}

		cacheStatus := "ok"
		if err := appCtx.Cache.Ping(ctx); err != nil {
			cacheStatus = fmt.Sprintf("error: %v", err)
		}

		services := gin.H{
			"database": gin.H{"driver": appCtx.Store.Driver(), "status": dbStatus},
			"cache":    cacheStatus,
			"queue":    appCtx.AsynqClient != nil,
		}
		if appCtx.DB != nil {
			if stats, err := appCtx.DB.Stats(); err == nil {
				services["pool"] = stats
			}
		}
		health["services"] = services

		statusCode := http.StatusOK
		if dbStatus != "ok" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}
