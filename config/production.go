// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Blogger    BloggerConfig    `json:"blogger"`
	Gate       GateConfig       `json:"gate"`
	ShortLink  ShortLinkConfig  `json:"short_link"`
	Content    ContentConfig    `json:"content"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	APIRateLimit    int           `json:"api_rate_limit"`    // requests per minute
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy      string `json:"csp_policy"`
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`

	// API keys, stored as bcrypt hashes
	BotAPIKeyHashes   []string `json:"-"`
	AdminAPIKeyHashes []string `json:"-"`
}

type LoggingConfig struct {
	Level            string `json:"level"`  // debug, info, warn, error
	Format           string `json:"format"` // json, console
	Output           string `json:"output"` // stdout, file, both
	FilePath         string `json:"file_path"`
	MaxSize          int    `json:"max_size"` // MB
	MaxBackups       int    `json:"max_backups"`
	MaxAge           int    `json:"max_age"` // days
	Compress         bool   `json:"compress"`
	EnableCaller     bool   `json:"enable_caller"`
	EnableStacktrace bool   `json:"enable_stacktrace"`
	EnableAccessLog  bool   `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
	PostTTL     time.Duration `json:"post_ttl"`
}

// BloggerConfig configures the upstream content API
type BloggerConfig struct {
	BaseURL         string        `json:"base_url"`
	BlogID          string        `json:"blog_id"`
	APIKey          string        `json:"-"`
	Timeout         time.Duration `json:"timeout"`
	RandomPoolPages int           `json:"random_pool_pages"`
}

// GateConfig configures the link gate timings and proofs
type GateConfig struct {
	VerifyDwell      time.Duration `json:"verify_dwell"`
	ProcessingDelay  time.Duration `json:"processing_delay"`
	CountdownSeconds int           `json:"countdown_seconds"`
	TicketSecret     string        `json:"-"`
	TicketTTL        time.Duration `json:"ticket_ttl"`
	CaptchaEnabled   bool          `json:"captcha_enabled"`
	CaptchaTTL       time.Duration `json:"captcha_ttl"`
}

type ShortLinkConfig struct {
	PublicBaseURL string `json:"public_base_url"`
	CodeLength    int    `json:"code_length"`
}

type ContentConfig struct {
	SiteTitle     string `json:"site_title"`
	Sanitize      bool   `json:"sanitize"`
	AdsenseClient string `json:"adsense_client"`
	ContactEmail  string `json:"contact_email"`
}

type DeploymentConfig struct {
	Domain      string `json:"domain"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "safelink"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:    getEnvDuration("SERVER_REQUEST_TIMEOUT", 15*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:    getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://safelink.example.com"}),
			AllowedMethods:    getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:    getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Requested-With", "X-API-Key"}),
			AllowCredentials:  getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:        getEnvInt("CORS_MAX_AGE", 86400),
			APIRateLimit:      getEnvInt("API_RATE_LIMIT", 60),
			GlobalRateLimit:   getEnvInt("GLOBAL_RATE_LIMIT", 600),
			RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:         getEnvString("CSP_POLICY", "default-src 'self' https:; script-src 'self' 'unsafe-inline' https://pagead2.googlesyndication.com; style-src 'self' 'unsafe-inline'; img-src * data:"),
			XFrameOptions:     getEnvString("X_FRAME_OPTIONS", "SAMEORIGIN"),
			ReferrerPolicy:    getEnvString("REFERRER_POLICY", "no-referrer"),
			BotAPIKeyHashes:   getEnvStringSlice("BOT_API_KEY_HASHES", []string{}),
			AdminAPIKeyHashes: getEnvStringSlice("ADMIN_API_KEY_HASHES", []string{}),
		},
		Logging: LoggingConfig{
			Level:            getEnvString("LOG_LEVEL", "info"),
			Format:           getEnvString("LOG_FORMAT", "json"),
			Output:           getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:         getEnvString("LOG_FILE_PATH", "/var/log/safelink/app.log"),
			MaxSize:          getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:           getEnvInt("LOG_MAX_AGE", 30),
			Compress:         getEnvBool("LOG_COMPRESS", true),
			EnableCaller:     getEnvBool("LOG_ENABLE_CALLER", true),
			EnableStacktrace: getEnvBool("LOG_ENABLE_STACKTRACE", false),
			EnableAccessLog:  getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "safelink:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
			PostTTL:     getEnvDuration("CACHE_POST_TTL", 30*time.Minute),
		},
		Blogger: BloggerConfig{
			BaseURL:         getEnvString("BLOGGER_BASE_URL", "https://www.googleapis.com/blogger/v3"),
			BlogID:          getEnvString("BLOGGER_BLOG_ID", ""),
			APIKey:          getEnvString("BLOGGER_API_KEY", ""),
			Timeout:         getEnvDuration("BLOGGER_TIMEOUT", 10*time.Second),
			RandomPoolPages: getEnvInt("BLOGGER_RANDOM_POOL_PAGES", 1),
		},
		Gate: GateConfig{
			VerifyDwell:      getEnvDuration("GATE_VERIFY_DWELL", 5*time.Second),
			ProcessingDelay:  getEnvDuration("GATE_PROCESSING_DELAY", 1500*time.Millisecond),
			CountdownSeconds: getEnvInt("GATE_COUNTDOWN_SECONDS", 15),
			TicketSecret:     getEnvString("GATE_TICKET_SECRET", ""),
			TicketTTL:        getEnvDuration("GATE_TICKET_TTL", 30*time.Minute),
			CaptchaEnabled:   getEnvBool("GATE_CAPTCHA_ENABLED", false),
			CaptchaTTL:       getEnvDuration("GATE_CAPTCHA_TTL", 2*time.Minute),
		},
		ShortLink: ShortLinkConfig{
			PublicBaseURL: getEnvString("SHORT_LINK_PUBLIC_BASE_URL", "https://safelink.example.com"),
			CodeLength:    getEnvInt("SHORT_LINK_CODE_LENGTH", 8),
		},
		Content: ContentConfig{
			SiteTitle:     getEnvString("SITE_TITLE", "Safelink Blog"),
			Sanitize:      getEnvBool("CONTENT_SANITIZE", true),
			AdsenseClient: getEnvString("ADSENSE_CLIENT", ""),
			ContactEmail:  getEnvString("CONTACT_EMAIL", ""),
		},
		Deployment: DeploymentConfig{
			Domain:      getEnvString("DOMAIN", "safelink.example.com"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from the given file if it exists
func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`))) {
			value = value[1 : len(value)-1]
		}

		// Real environment wins over the file
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for item := range strings.SplitSeq(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.RequestTimeout <= 0 {
		errors = append(errors, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	// Validate content source configuration
	if cfg.Blogger.BlogID == "" {
		errors = append(errors, "BLOGGER_BLOG_ID is required")
	}
	if cfg.Blogger.APIKey == "" {
		errors = append(errors, "BLOGGER_API_KEY is required")
	}
	if cfg.Blogger.RandomPoolPages < 1 {
		errors = append(errors, "BLOGGER_RANDOM_POOL_PAGES must be at least 1")
	}

	// Validate gate configuration
	if len(cfg.Gate.TicketSecret) < 32 {
		errors = append(errors, "GATE_TICKET_SECRET must be at least 32 characters long")
	}
	if cfg.Gate.VerifyDwell < 0 {
		errors = append(errors, "GATE_VERIFY_DWELL must not be negative")
	}
	if cfg.Gate.ProcessingDelay < 0 {
		errors = append(errors, "GATE_PROCESSING_DELAY must not be negative")
	}
	if cfg.Gate.CountdownSeconds <= 0 {
		errors = append(errors, "GATE_COUNTDOWN_SECONDS must be positive")
	}
	if cfg.Gate.TicketTTL <= cfg.Gate.VerifyDwell+time.Duration(cfg.Gate.CountdownSeconds)*time.Second {
		errors = append(errors, "GATE_TICKET_TTL must exceed the verify dwell plus countdown")
	}

	// Validate short link configuration
	if cfg.ShortLink.PublicBaseURL == "" {
		errors = append(errors, "SHORT_LINK_PUBLIC_BASE_URL is required")
	}
	if cfg.ShortLink.CodeLength < 4 || cfg.ShortLink.CodeLength > 32 {
		errors = append(errors, "SHORT_LINK_CODE_LENGTH must be between 4 and 32")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !slices.Contains(validLevels, cfg.Logging.Level) {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.Output != "file" && cfg.Logging.Output != "both" {
		errors = append(errors, "LOG_OUTPUT must be one of: stdout, file, both")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
