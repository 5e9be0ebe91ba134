package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"resume-pricing-api/internal/cache"
	"resume-pricing-api/internal/config"
	"resume-pricing-api/internal/database"
	"resume-pricing-api/internal/events"
	"resume-pricing-api/internal/features"
	"resume-pricing-api/internal/handler"
	"resume-pricing-api/internal/middleware"
	"resume-pricing-api/internal/models"
	"resume-pricing-api/internal/refresh"
	"resume-pricing-api/internal/service"
	"resume-pricing-api/internal/tracing"
	"resume-pricing-api/internal/upstream"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "", "Config file path (.json, .yaml or .yml)")
	port := flag.String("port", "", "Server port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
		SampleRatio: cfg.Tracing.SampleRatio,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	flags := features.NewDefaultManager(cfg.Features)
	eventManager := events.NewManager(true)

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize response cache
	responseCache := newCache(ctx, cfg.Cache)
	defer responseCache.Close()

	// Upstream client and refresh controller
	client := upstream.NewClient(cfg.Upstream.BaseURL, upstream.ClientOptions{
		Path:    cfg.Upstream.Path,
		Timeout: time.Duration(cfg.Upstream.Timeout) * time.Second,
	})
	fetcher := upstream.NewCachedFetcher(client, responseCache, time.Duration(cfg.Cache.TTL)*time.Second, flags)

	ctrl := refresh.New(fetcher, refresh.Options{
		Currency: models.Currency(cfg.Refresh.DefaultCurrency),
		Interval: time.Duration(cfg.Refresh.Interval) * time.Second,
		Timeout:  time.Duration(cfg.Upstream.Timeout) * time.Second,
		Events:   eventManager,
		VisibilityRefresh: func() bool {
			return flags.IsEnabled(features.FeatureVisibilityRefresh)
		},
	})

	// Initialize service and handlers
	svc := service.NewService(ctrl, service.Options{
		History: db,
		Flags:   flags,
		Events:  eventManager,
	})
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	ctrl.Start(ctx)

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware(cfg.Tracing.ServiceName))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Manual refreshes hit the upstream directly, so only they are throttled.
	var refreshMW []func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		refreshMW = append(refreshMW, middleware.RateLimitMiddleware(rateLimiter))
	}
	h.Routes(r, refreshMW...)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting HTTP server on %s", addr)
	log.Printf("Upstream: %s%s (refresh every %ds)", cfg.Upstream.BaseURL, cfg.Upstream.Path, cfg.Refresh.Interval)
	log.Printf("Database: %s", cfg.Database.Path)
	if cfg.RateLimit.Enabled {
		log.Printf("Refresh rate limit: %d requests per %d seconds", cfg.RateLimit.Rate, cfg.RateLimit.Window)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error closing server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}

	ctrl.Stop()
	eventManager.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down tracing: %v", err)
	}
}

// newCache prefers Redis when configured and falls back to the in-process
// cache if it is unreachable.
func newCache(ctx context.Context, cfg config.CacheConfig) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewInMemoryCache()
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rc, err := cache.NewRedisCache(pingCtx, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.Prefix,
	})
	if err != nil {
		log.Printf("WARNING: %v, using in-memory cache", err)
		return cache.NewInMemoryCache()
	}
	log.Printf("Cache: redis at %s", cfg.RedisAddr)
	return rc
}
