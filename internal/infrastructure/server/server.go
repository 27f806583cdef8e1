package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/monitoring"
)

// Pool is the region registry the inspector reads from
type Pool interface {
	Region(kind string, descriptor any) (*region.Region, error)
	Regions() []*region.Region
}

// Options carries the optional collaborators
type Options struct {
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
	Gatherer prometheus.Gatherer
	// Connected reports the push channel state for /health
	Connected func() bool
	// SyncTimeout bounds POST /regions/:kind/sync
	SyncTimeout time.Duration
}

// Server wraps the router and its dependencies
type Server struct {
	router *gin.Engine
	pool   Pool
	cfg    config.ServerConfig
	opts   Options
	logger *zap.Logger
	http   *http.Server
}

// New builds the router
func New(cfg config.ServerConfig, pool Pool, opts Options) *Server {
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = time.Minute
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		pool:   pool,
		cfg:    cfg,
		opts:   opts,
		logger: logging.Component(opts.Logger, "inspector"),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID(s.logger))
	router.Use(monitoring.Middleware(opts.Metrics))
	router.Use(CORS(cfg.AllowOrigins))
	if cfg.RateLimit > 0 {
		router.Use(RateLimit(cfg.RateLimit, cfg.RateLimit*2))
	}

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	router.GET("/regions", s.listRegions)
	router.GET("/regions/:kind", s.getRegion)
	router.POST("/regions/:kind/sync", s.syncRegion)
	router.GET("/regions/:kind/events", s.streamEvents)

	s.router = router
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting inspector", zap.String("addr", s.cfg.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("Shutting down inspector")
	return s.http.Shutdown(shutdownCtx)
}
