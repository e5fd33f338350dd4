package http

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/llm"
	"scribe/internal/metrics"
	"scribe/internal/session"
	"scribe/internal/uploads"
)

// Deps bundles the collaborators the HTTP layer needs.
type Deps struct {
	Config   *config.Config
	Store    *jobs.Store
	Runner   *jobs.Runner
	Sessions *session.Manager
	Uploads  *uploads.Store
	LLM      llm.Client // optional; built from config per request when nil
	Logger   *slog.Logger
}

type Server struct {
	app    *fiber.App
	config *config.Config
}

func NewServer(deps Deps) *Server {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		BodyLimit: int(bodyLimit(deps.Uploads)),
	})

	// Inject collaborators into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("store", deps.Store)
		c.Locals("runner", deps.Runner)
		c.Locals("sessions", deps.Sessions)
		c.Locals("uploads", deps.Uploads)
		if deps.LLM != nil {
			c.Locals("llm", deps.LLM)
		}
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		if deps.Logger != nil {
			c.Locals("logger", deps.Logger)
		}

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if deps.Logger != nil {
			deps.Logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	// Redis client for rate limiting and deep health checks
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			rdb = redis.NewClient(opt)
		}
	}

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		redisStatus := "disabled"
		if rdb != nil {
			if err := rdb.Ping(c.Context()).Err(); err != nil {
				redisStatus = "error"
			} else {
				redisStatus = "ok"
			}
		}

		ffmpegBin := cfg.Engine.FfmpegBin
		if ffmpegBin == "" {
			ffmpegBin = "ffmpeg"
		}
		ffmpegStatus := "ok"
		if _, err := exec.LookPath(ffmpegBin); err != nil {
			ffmpegStatus = "missing"
		}

		status := "ok"
		if redisStatus == "error" || ffmpegStatus == "missing" {
			status = "error"
		}

		return c.JSON(fiber.Map{
			"status": status,
			"redis":  redisStatus,
			"ffmpeg": ffmpegStatus,
			"jobs":   deps.Store.Len(),
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	var rateMw fiber.Handler
	if rdb != nil {
		rateMw = rateLimitMiddleware(cfg, rdb)
	} else {
		rateMw = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api", rateMw)
	registerAPIRoutes(api)

	return &Server{
		app:    app,
		config: cfg,
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown drains the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerAPIRoutes(group fiber.Router) {
	group.Post("/upload", uploadHandler)
	group.Get("/jobs/:id", jobStatusHandler)
	group.Get("/jobs/:id/stream", jobStreamHandler)
	group.Get("/jobs/:id/result", jobResultHandler)
	group.Get("/jobs/:id/download", jobDownloadHandler)
	group.Post("/jobs/:id/summarize", summarizeHandler)
	group.Post("/jobs/:id/minutes", minutesHandler)
	group.Post("/session/end", sessionEndHandler)
	group.Get("/uploads/size", uploadsSizeHandler)
}

func bodyLimit(u *uploads.Store) int64 {
	if u == nil {
		return 4 * 1024 * 1024
	}
	// Headroom for multipart framing around the media payload.
	return u.MaxSize() + 1024*1024
}
