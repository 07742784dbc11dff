// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/safelink/app/dto"
	"github.com/amirphl/safelink/app/handlers"
	"github.com/amirphl/safelink/app/middleware"
	"github.com/amirphl/safelink/config"
	"github.com/amirphl/safelink/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthPath = "/api/v1/health"

// StaticPages are the fixed informational pages served at /<slug>
var StaticPages = []string{"about", "contact", "privacy", "disclaimer", "terms"}

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(ctx context.Context) error
	GetApp() *fiber.App
}

// Handlers groups the handlers mounted by the router
type Handlers struct {
	Gate           handlers.GateHandlerInterface
	ShortLink      handlers.ShortLinkHandlerInterface
	ShortLinkBot   handlers.ShortLinkBotHandlerInterface
	ShortLinkAdmin handlers.ShortLinkAdminHandlerInterface
	Blog           handlers.BlogHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	cfg      *config.ProductionConfig
	handlers Handlers
	auth     *middleware.AuthMiddleware
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewFiberRouter creates a new Fiber router. gatherer may be nil to use the default registry.
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers, auth *middleware.AuthMiddleware, views fiber.Views, gatherer prometheus.Gatherer, log *zap.Logger) Router {
	if log == nil {
		log = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := &FiberRouter{
		cfg:      cfg,
		handlers: h,
		auth:     auth,
		gatherer: gatherer,
		logger:   log,
	}

	fiberCfg := fiber.Config{
		AppName:      "Safelink",
		ServerHeader: "Safelink",
		ErrorHandler: r.errorHandler,
		Views:        views,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ProxyHeader:  cfg.Server.ProxyHeader,
	}
	if len(cfg.Server.TrustedProxies) > 0 {
		fiberCfg.TrustProxy = true
		fiberCfg.TrustProxyConfig = fiber.TrustProxyConfig{Proxies: cfg.Server.TrustedProxies}
	}
	r.app = fiber.New(fiberCfg)

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	// Blog pages
	r.app.Get("/", r.handlers.Blog.Home)
	r.app.Get("/category/:label", r.handlers.Blog.Category)
	r.app.Get("/post/:id", r.handlers.Blog.Post)
	for _, slug := range StaticPages {
		r.app.Get("/"+slug, r.handlers.Blog.StaticPage(slug))
	}

	// Gate entry points and transitions
	limit := r.rateLimiter(r.cfg.Security.GlobalRateLimit)
	r.app.Get("/safe-link", limit, r.handlers.Gate.SafeLink)
	r.app.Get("/verify/*", limit, r.handlers.Gate.VerifyLink)
	r.app.Get("/s/:code", limit, r.handlers.ShortLink.Visit)
	r.app.Post("/gate/verify", limit, r.handlers.Gate.Verify)
	r.app.Post("/gate/release", limit, r.handlers.Gate.Release)
	r.app.Get("/gate/events", limit, r.handlers.Gate.Events)

	// Short link lookup
	r.app.Get("/api/resolve", limit, r.handlers.ShortLink.Resolve)

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	api.Use(r.rateLimiter(r.cfg.Security.APIRateLimit))

	bot := api.Group("/bot", r.auth.BotAuthenticate())
	bot.Post("/short-links", r.handlers.ShortLinkBot.CreateShortLink)

	admin := api.Group("/admin", r.auth.AdminAuthenticate())
	admin.Post("/short-links/upload-csv", r.handlers.ShortLinkAdmin.UploadCSV)
	admin.Get("/short-links/report", r.handlers.ShortLinkAdmin.DownloadClickReport)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics(r.cfg.Metrics.Path))
	}

	// Security headers middleware. Ads need to be framed by and load from third parties.
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "0",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                31536000, // 1 year
		HSTSExcludeSubdomains:     false,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginEmbedderPolicy: "unsafe-none",
		CrossOriginOpenerPolicy:   "same-origin-allow-popups",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	// Compression middleware for performance. Event streams must reach the browser unbuffered.
	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/gate/events" ||
					strings.HasPrefix(c.Path(), "/api/v1/admin/short-links/report")
			},
		}))
	}

	// Static pages are the same for every visitor
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet || !slices.Contains(StaticPages, strings.TrimPrefix(c.Path(), "/"))
		},
		Expiration:          10 * time.Minute,
		DisableCacheControl: false,
	}))

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Stream:     os.Stdout,
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				zap.Any("request_id", c.Locals("requestid")),
				zap.Any("error", e),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.String("ip", c.IP()),
				zap.Stack("stack"),
			)
		},
	}))
}

func (r *FiberRouter) rateLimiter(max int) fiber.Handler {
	if max <= 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", zap.String("address", address))
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting connections and waits for in-flight requests
func (r *FiberRouter) Shutdown(ctx context.Context) error {
	return r.app.ShutdownWithContext(ctx)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"commit":    r.cfg.Deployment.CommitHash,
			"service":   "safelink",
		},
	})
}

// Not found handler. Browsers get the error page, API clients get JSON.
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
			Success: false,
			Message: "The requested resource was not found",
			Error: dto.ErrorDetail{
				Code: "NOT_FOUND",
				Details: fiber.Map{
					"path":       c.Path(),
					"method":     c.Method(),
					"request_id": requestID,
				},
			},
		})
	}

	return c.Status(fiber.StatusNotFound).Render("error", dto.ErrorPage{
		Site:    dto.SiteInfo{Title: r.cfg.Content.SiteTitle, Year: utils.UTCNow().Year()},
		Status:  fiber.StatusNotFound,
		Title:   "Not Found",
		Message: "The page you are looking for does not exist.",
	})
}

// errorHandler is the global error handler
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a fiber.*Error
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	r.logger.Error("request failed",
		zap.Int("status", code),
		zap.Any("request_id", c.Locals("requestid")),
		zap.String("path", c.Path()),
		zap.Error(err),
	)

	message := "An internal server error occurred"
	if code < fiber.StatusInternalServerError && fe != nil {
		message = fe.Message
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: "HTTP_" + strconv.Itoa(code),
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
