package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/pizzaguard/internal/account"
	"github.com/richxcame/pizzaguard/internal/catalog"
	"github.com/richxcame/pizzaguard/internal/fraud"
	"github.com/richxcame/pizzaguard/internal/otp"
	"github.com/richxcame/pizzaguard/internal/pricing"
	"github.com/richxcame/pizzaguard/internal/risk"
	"github.com/richxcame/pizzaguard/internal/session"
	"github.com/richxcame/pizzaguard/pkg/cache"
	"github.com/richxcame/pizzaguard/pkg/common"
	"github.com/richxcame/pizzaguard/pkg/config"
	"github.com/richxcame/pizzaguard/pkg/database"
	"github.com/richxcame/pizzaguard/pkg/errors"
	"github.com/richxcame/pizzaguard/pkg/eventbus"
	"github.com/richxcame/pizzaguard/pkg/health"
	"github.com/richxcame/pizzaguard/pkg/httpclient"
	"github.com/richxcame/pizzaguard/pkg/logger"
	"github.com/richxcame/pizzaguard/pkg/middleware"
	"github.com/richxcame/pizzaguard/pkg/ratelimit"
	redisclient "github.com/richxcame/pizzaguard/pkg/redis"
	"github.com/richxcame/pizzaguard/pkg/resilience"
	"github.com/richxcame/pizzaguard/pkg/tracing"
	"github.com/richxcame/pizzaguard/pkg/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	serviceName = "riskgate"
	version     = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting risk gate", zap.String("version", version))

	decimal.MarshalJSONWithoutQuotes = true

	if cfg.Sentry.DSN != "" {
		if err := errors.InitSentry(errors.SentryConfigFrom(cfg)); err != nil {
			log.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
		} else {
			defer errors.Flush(2 * time.Second)
		}
	}

	if _, err := tracing.InitTracer(tracing.ConfigFrom(cfg), log); err != nil {
		log.Warn("Failed to initialize tracing, continuing without it", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Redis holds sessions, OTP hashes, cached products and rate limit buckets.
	redis, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()
	cacheManager := cache.NewManager(redis)

	checks := map[string]func() error{
		"redis": health.PingChecker("redis", redis, health.DefaultTimeout),
	}

	deps := risk.Deps{Source: serviceName}

	var (
		db     *pgxpool.Pool
		alerts *fraud.Repository
	)
	if cfg.Database.Enabled {
		db, err = database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(db)
		log.Info("Connected to database")

		deps.Accounts = account.NewService(account.NewRepository(db), account.PolicyFromConfig(cfg.Risk))
		alerts = fraud.NewRepository(db)
		deps.Alerts = alerts
		checks["postgres"] = health.PingChecker("postgres", db, health.DefaultTimeout)
	} else {
		log.Warn("Database disabled, account checks fall back to request hints and review alerts are not stored")
	}

	if cfg.NATS.Enabled {
		bus, err := eventbus.New(eventbus.Config{URL: cfg.NATS.URL, Name: serviceName, StreamName: cfg.NATS.StreamName})
		if err != nil {
			log.Warn("Failed to connect to NATS, security events disabled", zap.Error(err))
		} else {
			defer bus.Close()
			deps.Events = bus
			checks["nats"] = health.ConnectedChecker("nats", bus.Connected)
		}
	}

	products, err := buildCatalog(cfg, cacheManager, checks)
	if err != nil {
		log.Fatal("Failed to load product catalog", zap.Error(err))
	}
	deps.Orders = pricing.NewValidator(products, pricing.PolicyFromConfig(cfg.Catalog, cfg.Risk))

	engine := risk.NewEngine(cfg.Risk, deps)

	janitor := risk.NewJanitor(engine, log, cfg.Risk.SweepInterval)
	go janitor.Start(ctx)
	defer janitor.Stop()

	var otpService risk.OTPService
	if cfg.OTP.Enabled {
		otpService = otp.NewService(redis, buildSender(cfg), otp.SettingsFromConfig(cfg.OTP))
	}

	handler := risk.NewHandler(engine, otpService)
	if alerts != nil {
		handler.WithReviewQueue(alerts)
	}
	sessions := session.Middleware(session.NewStore(cacheManager, cfg.Risk.SessionTTL), engine)

	if err := validation.RegisterWithGin(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	// Setup Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.ErrorHandler())

	// Health and metrics stay outside the throttle.
	router.GET("/healthz", common.LivenessProbe(serviceName, version))
	router.GET("/readyz", common.ReadinessProbe(serviceName, version, checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.Use(handler.ThrottleMiddleware())
	router.Use(middleware.RateLimit(ratelimit.NewLimiter(redis.Client, cfg.RateLimit), cfg.RateLimit))

	handler.RegisterRoutes(router, sessions, middleware.AdminChain(cfg.JWT.Secret)...)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}

	log.Info("Server stopped")
}

// buildCatalog reads products from the remote menu service when one is
// configured, cached in Redis, and from the seed file otherwise.
func buildCatalog(cfg *config.Config, c *cache.Manager, checks map[string]func() error) (catalog.Repository, error) {
	if cfg.Catalog.RemoteURL == "" {
		repo, err := catalog.LoadFile(cfg.Catalog.SeedFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded product catalog", zap.String("file", cfg.Catalog.SeedFile), zap.Int("products", repo.Len()))
		return repo, nil
	}

	breaker := resilience.NewCircuitBreaker(resilience.SettingsFromConfig("catalog", cfg.Resilience.CircuitBreaker), nil)
	client := httpclient.NewClient(cfg.Catalog.RemoteURL, 3*time.Second,
		httpclient.WithDefaultRetry(),
		httpclient.WithBreaker(breaker),
	)
	checks["catalog"] = health.NewCachedChecker(health.WithTimeout(
		health.HTTPEndpointChecker(cfg.Catalog.RemoteURL+"/healthz", health.DefaultTimeout),
		health.DefaultTimeout,
	), 10*time.Second).Check
	checks["catalog_breaker"] = health.BreakerChecker(breaker)

	ttl := time.Duration(cfg.Catalog.CacheTTLSeconds) * time.Second
	return catalog.NewCachedRepository(catalog.NewRemoteRepository(client), c, ttl), nil
}

func buildSender(cfg *config.Config) otp.Sender {
	if cfg.OTP.TwilioAccountSID == "" || cfg.OTP.TwilioAuthToken == "" {
		logger.Warn("Twilio not configured, OTP codes are only logged")
		return otp.LogSender{}
	}
	breaker := resilience.NewCircuitBreaker(resilience.SettingsFromConfig("twilio", cfg.Resilience.CircuitBreaker), nil)
	return otp.NewTwilioSender(cfg.OTP.TwilioAccountSID, cfg.OTP.TwilioAuthToken, cfg.OTP.TwilioFromNumber, cfg.OTP.TTL, breaker)
}
