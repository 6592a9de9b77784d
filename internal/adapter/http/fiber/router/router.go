package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/terra-assistant/internal/adapter/http/fiber/middleware"
	wsAdapter "github.com/seu-repo/terra-assistant/internal/adapter/websocket"
	"github.com/seu-repo/terra-assistant/internal/ports"
	"github.com/seu-repo/terra-assistant/internal/service/health"
	"github.com/seu-repo/terra-assistant/pkg/config"
)

// Deps are the collaborators of the HTTP surface. Tasks is nil when no
// command store is configured, and the task routes are then not mounted.
type Deps struct {
	Assistant ports.VoiceAssistant
	Tasks     ports.TaskRepository
	Health    *health.Service
	Hub       *wsAdapter.Hub
	Config    *config.Config
	Log       *zap.Logger
}

// New builds the fiber app with every HTTP and WebSocket route.
func New(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ServerHeader:          cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(d.Log),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(d.Log))
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	}

	// Health and metrics stay outside the breaker
	health.NewFiberHandler(d.Health).RegisterRoutes(app)
	if cfg.Prometheus.Enabled {
		metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metrics(c.Context())
			return nil
		})
	}

	// API v1 Routes
	v1 := app.Group("/api/v1")
	if cfg.CircuitBreaker.Enabled {
		v1.Use(middleware.CircuitBreaker(cfg.CircuitBreaker, d.Log))
	}

	voiceHandler := handlers.NewVoiceHandler(d.Assistant, d.Log)
	v1.Post("/voice/command", voiceHandler.ProcessCommand)
	v1.Post("/voice/audio", voiceHandler.ProcessAudio)
	v1.Get("/voice/history", voiceHandler.GetHistory)
	v1.Get("/sessions/:id/context", voiceHandler.GetContext)

	if d.Tasks != nil {
		taskHandler := handlers.NewTaskHandler(d.Tasks, d.Log)
		v1.Get("/tasks", taskHandler.ListTasks)
		v1.Get("/tasks/:id", taskHandler.GetTask)
	}

	// WebSocket routes
	wsAdapter.RegisterRoutes(app, wsAdapter.NewVoiceStreamHandler(d.Assistant, d.Log), d.Hub)

	return app
}
