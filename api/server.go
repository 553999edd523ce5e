package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"property-valuation/metrics"
	"property-valuation/models"
	"property-valuation/utils"
)

// PricingAPI is the pipeline surface exposed over HTTP.
type PricingAPI interface {
	GetPricingData(ctx context.Context, postcode string) (*models.PricingResult, error)
	GetRecommendedPrice(series models.PricingSeries) *models.PriceRecommendation
	GetLocalAverageValue(ctx context.Context, postcode string, floorAreaSqFt float64) (float64, bool)
}

// Server is the HTTP front end for the pricing pipeline.
type Server struct {
	svc     PricingAPI
	metrics *metrics.Metrics
	logger  *utils.Logger
	engine  *gin.Engine
	server  *http.Server
}

// NewServer creates a Server with all routes registered. m may be nil, in
// which case /metrics is not served.
func NewServer(addr string, svc PricingAPI, m *metrics.Metrics, logger *utils.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger, "/healthz", "/metrics"))

	s := &Server{
		svc:     svc,
		metrics: m,
		logger:  logger,
		engine:  engine,
		server: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.engine.Group("/api/v1")
	v1.GET("/pricing/:postcode", s.handlePricing)
	v1.GET("/pricing/:postcode/recommendation", s.handleRecommendation)
	v1.GET("/valuation", s.handleValuation)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("[api] Listening on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestLogger logs one line per request. 5xx responses log at error level
// and 4xx at warn.
func requestLogger(logger *utils.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			return
		}

		status := c.Writer.Status()
		elapsed := time.Since(start).Round(time.Millisecond)
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("[api] %s %s %d %s", c.Request.Method, path, status, elapsed)
		case status >= http.StatusBadRequest:
			logger.Warn("[api] %s %s %d %s", c.Request.Method, path, status, elapsed)
		default:
			logger.Debug("[api] %s %s %d %s", c.Request.Method, path, status, elapsed)
		}
	}
}
