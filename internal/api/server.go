package api

import (
	"context"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/maxaizer/car-tracker/internal/config"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/maxaizer/car-tracker/internal/metrics"
	"github.com/maxaizer/car-tracker/internal/services"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"io"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

type searchRegistry interface {
	SaveSearch(ctx context.Context, userID int64, platform models.Platform, params models.Params,
		rawAds []models.RawAd, notifications bool) (string, bool, error)
	ListSearches(ctx context.Context, userID int64) (models.UserSearches, error)
	GetSearch(ctx context.Context, userID int64, searchID string) (*models.Search, error)
	GetResults(ctx context.Context, userID int64, searchID string) ([]models.AdRecord, error)
	ToggleNotifications(ctx context.Context, userID int64, searchID string) (bool, bool, error)
	DeleteSearch(ctx context.Context, userID int64, searchID string) (bool, error)
	Stats(ctx context.Context) (services.RegistryStats, error)
	UniqueBrandsAndModels(ctx context.Context, userID int64) (map[string][]string, error)
	AdsByModel(ctx context.Context, userID int64, brand string, model string, platform models.Platform) ([]services.PricedAd, error)
}

type comparisonEngine interface {
	CompareByModel(ctx context.Context, userID int64, brand string, model string) (services.ModelSummary, error)
	ComparePlatforms(ctx context.Context, userID int64, platformA models.Platform, platformB models.Platform) (services.PlatformsComparison, error)
	CompareSearches(ctx context.Context, userID int64, searchA string, searchB string) (services.SearchesComparison, bool, error)
}

type exporter interface {
	ExportJSON(ctx context.Context, userID int64, w io.Writer) error
	ExportSearchesCSV(ctx context.Context, userID int64, w io.Writer) error
	ExportResultsCSV(ctx context.Context, userID int64, searchID string, w io.Writer) (bool, error)
	ImportJSON(ctx context.Context, userID int64, r io.Reader) (int, error)
}

type BrandsCatalog interface {
	FetchBrands(ctx context.Context) ([]string, error)
}

type Dependencies struct {
	Registry   searchRegistry
	Comparison comparisonEngine
	Exporter   exporter
	Fetchers   map[models.Platform]services.AdsFetcher
	Catalogs   map[models.Platform]BrandsCatalog
}

// Server exposes the registry to export tools and dashboards over HTTP.
type Server struct {
	deps   Dependencies
	router *gin.Engine
	srv    *http.Server
}

func NewServer(cfg config.APIConfig, deps Dependencies) (*Server, error) {

	if deps.Registry == nil {
		return nil, errors.New("registry is nil")
	}
	if deps.Comparison == nil {
		return nil, errors.New("comparison engine is nil")
	}
	if deps.Exporter == nil {
		return nil, errors.New("exporter is nil")
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{deps: deps, router: gin.New()}
	s.router.Use(gin.Recovery(), requestLogger())
	s.router.Use(cors.New(corsConfig(cfg.CorsOrigins)))
	s.registerRoutes()

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "car-tracker"})
	})
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.router.GET("/stats", s.getStats)
	s.router.GET("/platforms/:platform/brands", s.listPlatformBrands)

	users := s.router.Group("/users/:user", parseUser)
	users.GET("/searches", s.listSearches)
	users.POST("/searches", s.saveSearch)
	users.GET("/searches/:id", s.getSearch)
	users.GET("/searches/:id/results", s.getResults)
	users.GET("/searches/:id/results.csv", s.exportResultsCSV)
	users.POST("/searches/:id/notifications", s.toggleNotifications)
	users.DELETE("/searches/:id", s.deleteSearch)

	users.GET("/brands", s.listBrands)
	users.GET("/ads", s.adsByModel)
	users.GET("/compare/model", s.compareByModel)
	users.GET("/compare/platforms", s.comparePlatforms)
	users.GET("/compare/searches", s.compareSearches)

	users.GET("/export.json", s.exportJSON)
	users.GET("/export.csv", s.exportSearchesCSV)
	users.POST("/import", s.importJSON)
}

// Handler is the router without the listener, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done and then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting API server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("API server exited")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"status":   c.Writer.Status(),
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"duration": time.Since(start),
		}).Debug("api request")
	}
}
