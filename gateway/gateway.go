package gateway

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Gateway serves the storefront pages and the JSON API.
type Gateway struct {
	config   *config.Config
	orders   *service.OrderService
	store    *repository.Store
	logger   *zap.Logger
	router   *gin.Engine
	metrics  *Metrics
	registry *prometheus.Registry
	server   *http.Server
}

func NewGateway(cfg *config.Config, logger *zap.Logger, store *repository.Store, orders *service.OrderService) (*Gateway, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	g := &Gateway{
		config:   cfg,
		orders:   orders,
		store:    store,
		logger:   logger,
		router:   router,
		metrics:  metrics,
		registry: registry,
	}

	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(logger))
	router.Use(metrics.Middleware())

	g.setupRoutes()

	g.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g, nil
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", g.health)
	g.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{})))

	shop := g.router.Group("", seedMiddleware(g.store, g.logger))
	{
		shop.GET("/", g.index)
		shop.GET("/product/:sku", g.productPage)
		shop.GET("/checkout", g.checkoutForm)
		shop.POST("/checkout", g.checkout)
		shop.GET("/order/:id", g.orderPage)

		api := shop.Group("/api")
		if g.config.Server.RateLimit > 0 {
			api.Use(NewRateLimiter(g.config.Server.RateLimit, g.config.Server.RateBurst, g.logger).Middleware())
		}
		{
			api.GET("/products", g.apiListProducts)
			api.POST("/orders", g.apiCreateOrder)
			api.GET("/orders/:id", g.apiGetOrder)
		}
	}
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))

	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

func (g *Gateway) health(c *gin.Context) {
	if err := g.store.Ping(c.Request.Context()); err != nil {
		g.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "db": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
