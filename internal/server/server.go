package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"catalog-core/internal/config"
	custommiddleware "catalog-core/internal/middleware"
	"catalog-core/internal/persistence"
	"catalog-core/internal/service"
	"catalog-core/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the long lived resources the server is built from. Closers are
// closed in order by Close.
type Deps struct {
	Factory *persistence.Factory
	Runner  service.Runner
	Redis   *redis.Client
	Closers []io.Closer
}

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	closers []io.Closer
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))

	router.Get("/health", healthHandler(deps.Factory, logger))

	serviceDeps := service.Deps{Factory: deps.Factory, Runner: deps.Runner, Logger: logger}
	categories := service.NewCategoryService(serviceDeps)
	products := service.NewProductService(serviceDeps)
	tags := service.NewTagService(serviceDeps)

	guard := adminGuard(cfg, deps.Redis, logger)
	transport.NewCategoryHandler(categories, logger).RegisterRoutes(router, guard)
	transport.NewProductHandler(products, tags, logger).RegisterRoutes(router, guard)
	transport.NewTagHandler(tags, logger).RegisterRoutes(router, guard)

	closers := deps.Closers
	if deps.Redis != nil {
		closers = append(closers, deps.Redis)
	}

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		closers: closers,
	}
}

// adminGuard authenticates admin requests, requires the admin role and, when
// a Redis client is configured, rate limits them per token subject.
func adminGuard(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	chain := chi.Chain(
		custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger),
		custommiddleware.RequireAdmin(logger),
	)
	if rdb != nil && cfg.RateLimit.Enabled {
		chain = append(chain, custommiddleware.RateLimitMiddleware(rdb, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "catalog_admin_rate",
		}, logger))
	}
	return func(next http.Handler) http.Handler {
		return chain.Handler(next)
	}
}

func healthHandler(factory *persistence.Factory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		driver := factory.Driver()
		body := map[string]string{"status": "ok", "storage": driver.Name()}
		if err := driver.Ping(ctx); err != nil {
			logger.Warn("Health check failed", zap.String("storage", driver.Name()), zap.Error(err))
			body["status"] = "unavailable"
			custommiddleware.RespondWithJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		custommiddleware.RespondWithJSON(w, http.StatusOK, body)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Error("Failed to close resource", zap.String("resource", fmt.Sprintf("%T", c)), zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
