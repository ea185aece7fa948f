package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	NATS       NATSConfig
	Sentry     SentryConfig
	Tracing    TracingConfig
	Catalog    CatalogConfig
	OTP        OTPConfig
	RateLimit  RateLimitConfig
	Resilience ResilienceConfig
	Risk       RiskConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	Version      string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration for the operator endpoints
type JWTConfig struct {
	Secret string
}

// NATSConfig holds the security event bus configuration
type NATSConfig struct {
	Enabled    bool
	URL        string
	StreamName string
}

// SentryConfig holds error tracking configuration
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64
}

// TracingConfig holds OpenTelemetry exporter configuration
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
}

// CatalogConfig selects where product prices are read from.
// With RemoteURL set the menu service is queried over HTTP, otherwise SeedFile is loaded.
type CatalogConfig struct {
	SeedFile        string
	RemoteURL       string
	CacheTTLSeconds int

	// Delivery fee policy, in the menu's currency units.
	DeliveryFee           float64
	FreeDeliveryThreshold float64
}

// OTPConfig holds login second-factor settings
type OTPConfig struct {
	Enabled          bool
	Length           int
	TTL              time.Duration
	MaxAttempts      int
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// RateLimitConfig holds Redis-backed API rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	WindowSeconds     int
	DefaultLimit      int
	DefaultBurst      int
	AnonymousLimit    int
	AnonymousBurst    int
	RedisPrefix       string
	EndpointOverrides map[string]EndpointRateLimitConfig
}

// EndpointRateLimitConfig allows customizing limits per endpoint
type EndpointRateLimitConfig struct {
	AuthenticatedLimit int `json:"authenticated_limit"`
	AuthenticatedBurst int `json:"authenticated_burst"`
	AnonymousLimit     int `json:"anonymous_limit"`
	AnonymousBurst     int `json:"anonymous_burst"`
	WindowSeconds      int `json:"window_seconds"`
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-service breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream service
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// WindowLimit is a sliding-window cap.
type WindowLimit struct {
	Window time.Duration `json:"window"`
	Cap    int           `json:"cap"`
}

// FraudWeights are the additive signal weights of the fraud score.
type FraudWeights struct {
	SuspiciousIP     int `json:"suspicious_ip"`
	AutomatedClient  int `json:"automated_client"`
	VelocityExceeded int `json:"velocity_exceeded"`
	HighAmount       int `json:"high_amount"`
	NewAccount       int `json:"new_account"`
}

// RiskConfig holds every window, cap, weight and threshold of the risk layer.
type RiskConfig struct {
	ThrottleWindow   time.Duration
	ThrottleMax      int
	ThrottleBlock    time.Duration
	LoginVelocity    WindowLimit
	Registration     WindowLimit
	PaymentVelocity  WindowLimit
	// Payment amount limits below are on the payment gateway's dollar scale,
	// not the menu's rupee scale. Set RISK_PAYMENT_AMOUNT_CAP,
	// RISK_HIGH_AMOUNT and RISK_MAX_TRANSACTION when payments carry menu totals.
	PaymentAmountCap float64
	CardTesting      WindowLimit
	PromoUsers       WindowLimit
	PromoIPsPerCode  int

	SuspicionThreshold int
	SuspicionBlock     time.Duration

	DuplicateTTL    time.Duration
	DuplicateBucket time.Duration

	Weights         FraudWeights
	HighAmount      float64
	MediumThreshold int
	HighThreshold   int
	MaxTransaction  float64
	AmountTolerance float64
	NewAccountAge   time.Duration

	LockoutAttempts int
	LockoutDuration time.Duration

	SessionIdleTimeout time.Duration
	SessionTTL         time.Duration
	SweepInterval      time.Duration
}

// DefaultRiskConfig returns the production defaults of the risk layer.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		ThrottleWindow:   time.Second,
		ThrottleMax:      10,
		ThrottleBlock:    time.Minute,
		LoginVelocity:    WindowLimit{Window: 15 * time.Minute, Cap: 5},
		Registration:     WindowLimit{Window: 24 * time.Hour, Cap: 5},
		PaymentVelocity:  WindowLimit{Window: 5 * time.Minute, Cap: 5},
		PaymentAmountCap: 500,
		CardTesting:      WindowLimit{Window: 10 * time.Minute, Cap: 3},
		PromoUsers:       WindowLimit{Window: 24 * time.Hour, Cap: 3},
		PromoIPsPerCode:  3,

		SuspicionThreshold: 3,
		SuspicionBlock:     time.Hour,

		DuplicateTTL:    10 * time.Minute,
		DuplicateBucket: time.Minute,

		Weights: FraudWeights{
			SuspiciousIP:     30,
			AutomatedClient:  20,
			VelocityExceeded: 25,
			HighAmount:       10,
			NewAccount:       10,
		},
		HighAmount:      200,
		MediumThreshold: 25,
		HighThreshold:   50,
		MaxTransaction:  1000,
		AmountTolerance: 0.01,
		NewAccountAge:   24 * time.Hour,

		LockoutAttempts: 5,
		LockoutDuration: 2 * time.Hour,

		SessionIdleTimeout: 30 * time.Minute,
		SessionTTL:         24 * time.Hour,
		SweepInterval:      10 * time.Minute,
	}
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	risk := DefaultRiskConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			Version:      getEnv("SERVICE_VERSION", "dev"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "pizzeria"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		},
		NATS: NATSConfig{
			Enabled:    getEnvAsBool("NATS_ENABLED", false),
			URL:        getEnv("NATS_URL", "nats://localhost:4222"),
			StreamName: getEnv("NATS_STREAM", "SECURITY"),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			TracesSampleRate: getEnvAsFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("TRACING_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Catalog: CatalogConfig{
			SeedFile:        getEnv("CATALOG_SEED_FILE", "configs/menu.yaml"),
			RemoteURL:       getEnv("CATALOG_REMOTE_URL", ""),
			CacheTTLSeconds: getEnvAsInt("CATALOG_CACHE_TTL_SECONDS", 300),

			DeliveryFee:           getEnvAsFloat("CATALOG_DELIVERY_FEE", 300),
			FreeDeliveryThreshold: getEnvAsFloat("CATALOG_FREE_DELIVERY_THRESHOLD", 3000),
		},
		OTP: OTPConfig{
			Enabled:          getEnvAsBool("OTP_ENABLED", false),
			Length:           getEnvAsInt("OTP_LENGTH", 6),
			TTL:              getEnvAsDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts:      getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", false),
			WindowSeconds:  getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 300),
			DefaultLimit:   getEnvAsInt("RATE_LIMIT_DEFAULT_LIMIT", 100),
			DefaultBurst:   getEnvAsInt("RATE_LIMIT_DEFAULT_BURST", 20),
			AnonymousLimit: getEnvAsInt("RATE_LIMIT_ANON_LIMIT", 50),
			AnonymousBurst: getEnvAsInt("RATE_LIMIT_ANON_BURST", 10),
			RedisPrefix:    getEnv("RATE_LIMIT_REDIS_PREFIX", "rate-limit"),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
		Risk: RiskConfig{
			ThrottleWindow:   getEnvAsDuration("RISK_THROTTLE_WINDOW", risk.ThrottleWindow),
			ThrottleMax:      getEnvAsInt("RISK_THROTTLE_MAX", risk.ThrottleMax),
			ThrottleBlock:    getEnvAsDuration("RISK_THROTTLE_BLOCK", risk.ThrottleBlock),
			LoginVelocity:    getEnvAsWindow("RISK_LOGIN", risk.LoginVelocity),
			Registration:     getEnvAsWindow("RISK_REGISTRATION", risk.Registration),
			PaymentVelocity:  getEnvAsWindow("RISK_PAYMENT_VELOCITY", risk.PaymentVelocity),
			PaymentAmountCap: getEnvAsFloat("RISK_PAYMENT_AMOUNT_CAP", risk.PaymentAmountCap),
			CardTesting:      getEnvAsWindow("RISK_CARD_TESTING", risk.CardTesting),
			PromoUsers:       getEnvAsWindow("RISK_PROMO_USERS", risk.PromoUsers),
			PromoIPsPerCode:  getEnvAsInt("RISK_PROMO_IPS_PER_CODE", risk.PromoIPsPerCode),

			SuspicionThreshold: getEnvAsInt("RISK_SUSPICION_THRESHOLD", risk.SuspicionThreshold),
			SuspicionBlock:     getEnvAsDuration("RISK_SUSPICION_BLOCK", risk.SuspicionBlock),

			DuplicateTTL:    getEnvAsDuration("RISK_DUPLICATE_TTL", risk.DuplicateTTL),
			DuplicateBucket: getEnvAsDuration("RISK_DUPLICATE_BUCKET", risk.DuplicateBucket),

			Weights:         risk.Weights,
			HighAmount:      getEnvAsFloat("RISK_HIGH_AMOUNT", risk.HighAmount),
			MediumThreshold: getEnvAsInt("RISK_MEDIUM_THRESHOLD", risk.MediumThreshold),
			HighThreshold:   getEnvAsInt("RISK_HIGH_THRESHOLD", risk.HighThreshold),
			MaxTransaction:  getEnvAsFloat("RISK_MAX_TRANSACTION", risk.MaxTransaction),
			AmountTolerance: getEnvAsFloat("RISK_AMOUNT_TOLERANCE", risk.AmountTolerance),
			NewAccountAge:   getEnvAsDuration("RISK_NEW_ACCOUNT_AGE", risk.NewAccountAge),

			LockoutAttempts: getEnvAsInt("RISK_LOCKOUT_ATTEMPTS", risk.LockoutAttempts),
			LockoutDuration: getEnvAsDuration("RISK_LOCKOUT_DURATION", risk.LockoutDuration),

			SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", risk.SessionIdleTimeout),
			SessionTTL:         getEnvAsDuration("SESSION_TTL", risk.SessionTTL),
			SweepInterval:      getEnvAsDuration("RISK_SWEEP_INTERVAL", risk.SweepInterval),
		},
	}

	if overrides := getEnv("RATE_LIMIT_ENDPOINTS", ""); overrides != "" {
		var endpointConfig map[string]EndpointRateLimitConfig
		if err := json.Unmarshal([]byte(overrides), &endpointConfig); err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_ENDPOINTS value: %w", err)
		}
		cfg.RateLimit.EndpointOverrides = endpointConfig
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if weights := getEnv("RISK_WEIGHTS", ""); weights != "" {
		if err := json.Unmarshal([]byte(weights), &cfg.Risk.Weights); err != nil {
			return nil, fmt.Errorf("invalid RISK_WEIGHTS value: %w", err)
		}
	}

	if err := cfg.Risk.Validate(); err != nil {
		return nil, err
	}

	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = int((5 * time.Minute).Seconds())
	}

	if cfg.Resilience.CircuitBreaker.TimeoutSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.TimeoutSeconds = 30
	}

	if cfg.Resilience.CircuitBreaker.IntervalSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.IntervalSeconds = 60
	}

	if cfg.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.FailureThreshold = 5
	}

	if cfg.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.SuccessThreshold = 1
	}

	return cfg, nil
}

// Validate rejects settings that would disable a guard by accident.
func (r RiskConfig) Validate() error {
	limits := map[string]WindowLimit{
		"RISK_LOGIN":            r.LoginVelocity,
		"RISK_REGISTRATION":     r.Registration,
		"RISK_PAYMENT_VELOCITY": r.PaymentVelocity,
		"RISK_CARD_TESTING":     r.CardTesting,
		"RISK_PROMO_USERS":      r.PromoUsers,
	}
	for name, l := range limits {
		if l.Window <= 0 || l.Cap <= 0 {
			return fmt.Errorf("%s must have a positive window and cap", name)
		}
	}
	if r.ThrottleWindow <= 0 || r.ThrottleMax <= 0 || r.ThrottleBlock <= 0 {
		return fmt.Errorf("RISK_THROTTLE_* must be positive")
	}
	if r.MediumThreshold <= 0 || r.HighThreshold <= r.MediumThreshold {
		return fmt.Errorf("RISK_HIGH_THRESHOLD (%d) must exceed RISK_MEDIUM_THRESHOLD (%d)", r.HighThreshold, r.MediumThreshold)
	}
	if r.DuplicateBucket <= 0 || r.DuplicateTTL <= 0 {
		return fmt.Errorf("RISK_DUPLICATE_TTL and RISK_DUPLICATE_BUCKET must be positive")
	}
	return nil
}

// SettingsFor returns effective breaker settings for a specific upstream service name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	return settings
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Window returns the configured rate limit window duration
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// CacheTTL returns the catalog cache lifetime
func (c CatalogConfig) CacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// AllowedOrigins splits the CORS origin list.
func (c ServerConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// IsProduction reports whether the service runs in production.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsWindow reads <prefix>_WINDOW and <prefix>_CAP.
func getEnvAsWindow(prefix string, defaultValue WindowLimit) WindowLimit {
	return WindowLimit{
		Window: getEnvAsDuration(prefix+"_WINDOW", defaultValue.Window),
		Cap:    getEnvAsInt(prefix+"_CAP", defaultValue.Cap),
	}
}
