package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"scribe/internal/config"
	"scribe/internal/session"
)

// getOrCreateSession resolves the caller's session from its cookie,
// creating a new session (and setting the cookie) when none exists.
func getOrCreateSession(c *fiber.Ctx, cfg *config.Config, sessions *session.Manager) string {
	cookieName := cfg.Session.CookieName
	if cookieName == "" {
		cookieName = "scribe_session"
	}

	if id := c.Cookies(cookieName); id != "" && sessions.Exists(id) {
		return id
	}

	id := sessions.Create()

	maxAge := cfg.Session.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = 3600
	}
	c.Cookie(&fiber.Cookie{
		Name:     cookieName,
		Value:    id,
		MaxAge:   maxAge,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return id
}

// rateLimitMiddleware enforces a simple per-minute fixed-window rate
// limit per client (session cookie when present, source IP otherwise)
// using Redis.
func rateLimitMiddleware(cfg *config.Config, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.RateLimit.DefaultPerMinute <= 0 {
			return c.Next()
		}

		cookieName := cfg.Session.CookieName
		if cookieName == "" {
			cookieName = "scribe_session"
		}
		client := c.Cookies(cookieName)
		if client == "" {
			client = c.IP()
		}

		now := time.Now().UTC()
		window := now.Format("200601021504") // YYYYMMDDHHMM minute window
		key := fmt.Sprintf("scribe:rl:%s:%s", client, window)

		ctx := c.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis being down should not take uploads down with it.
			return c.Next()
		}
		if count == 1 {
			// First hit in this window; set TTL
			_ = rdb.Expire(ctx, key, time.Minute)
		}

		if count > int64(cfg.RateLimit.DefaultPerMinute) {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Success: false,
				Code:    "RATE_LIMIT_EXCEEDED",
				Error:   "Rate limit exceeded, try again later",
			})
		}

		return c.Next()
	}
}
