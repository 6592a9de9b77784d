package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fibercors "github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/seu-repo/terra-assistant/pkg/config"
)

const (
	defaultAllowedMethods = "GET,POST,OPTIONS"
	defaultAllowedHeaders = "Origin,Content-Type,Accept,X-Session-ID,X-Request-ID"
)

// NewCORS creates a CORS middleware from application config
func NewCORS(cfg config.CORSConfig) fiber.Handler {
	join := func(values []string, fallback string) string {
		if len(values) == 0 {
			return fallback
		}
		return strings.Join(values, ",")
	}

	maxAge := 86400
	if cfg.MaxAge > 0 {
		maxAge = cfg.MaxAge
	}

	origins := join(cfg.AllowedOrigins, "*")
	return fibercors.New(fibercors.Config{
		AllowOrigins:  origins,
		AllowMethods:  join(cfg.AllowedMethods, defaultAllowedMethods),
		AllowHeaders:  join(cfg.AllowedHeaders, defaultAllowedHeaders),
		ExposeHeaders: join(cfg.ExposeHeaders, "Content-Length"),
		// fiber refuses credentials with a wildcard origin
		AllowCredentials: cfg.Credentials && origins != "*",
		MaxAge:           maxAge,
	})
}
