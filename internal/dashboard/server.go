// Package dashboard serves the operator API: catalog state, recent orders,
// and a manual refresh trigger. It is read-mostly JSON over HTTP, meant for
// the shop operator, not for customers.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/msaseller/storefront/internal/catalog"
	"github.com/msaseller/storefront/internal/orders"
)

// Refresher forces a catalog rebuild past the source cache. Satisfied by
// refresh.Job.
type Refresher interface {
	RunOnce(ctx context.Context) error
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Index     *catalog.Index
	DB        *gorm.DB  // optional; order endpoints 404 without it
	Refresher Refresher // optional; refresh endpoint 404s without it
	Port      int
	Out       io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Index == nil {
		return fmt.Errorf("dashboard: index is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/api/health", handleHealth())
	router.GET("/api/catalog", handleCatalog(opts.Index))
	router.GET("/api/catalog/categories", handleCategories(opts.Index))
	if opts.Refresher != nil {
		router.POST("/api/catalog/refresh", handleRefresh(opts.Refresher))
	}
	if opts.DB != nil {
		router.GET("/api/orders", handleOrders(opts.DB))
		router.GET("/api/orders/count", handleOrderCount(opts.DB))
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleCatalog(index *catalog.Index) gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, products := index.Stats()
		resp := gin.H{
			"categories": categories,
			"products":   products,
		}
		if builtAt := index.BuiltAt(); !builtAt.IsZero() {
			resp["built_at"] = builtAt.Format(time.RFC3339)
			resp["age_seconds"] = int(time.Since(builtAt).Seconds())
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleCategories(index *catalog.Index) gin.HandlerFunc {
	type categoryInfo struct {
		Name   string `json:"name"`
		Blocks int    `json:"blocks"`
		Items  int    `json:"items"`
	}
	return func(c *gin.Context) {
		var out []categoryInfo
		for _, name := range index.Categories() {
			info := categoryInfo{Name: name}
			for _, v := range index.ViewsFor(name) {
				info.Blocks++
				info.Items += v.ItemCount()
			}
			out = append(out, info)
		}
		c.JSON(http.StatusOK, gin.H{"categories": out})
	}
}

func handleRefresh(refresher Refresher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := refresher.RunOnce(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
	}
}

func handleOrders(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		recent, err := orders.Recent(db, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": recent})
	}
}

func handleOrderCount(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := orders.Count(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}
