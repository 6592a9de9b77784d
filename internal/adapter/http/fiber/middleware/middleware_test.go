package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/pkg/config"
)

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var out map[string]string
	data, _ := io.ReadAll(body)
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", data, err)
	}
	return out["error"]
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Get("/bad", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("connection string leaked")
	})

	resp, _ := app.Test(httptest.NewRequest("GET", "/bad", nil))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if msg := decodeError(t, resp.Body); msg != "text is required" {
		t.Errorf("expected fiber error message, got %q", msg)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/boom", nil))
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
	if msg := decodeError(t, resp.Body); msg != "internal server error" {
		t.Errorf("expected generic message, got %q", msg)
	}
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	// Arrange
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Use(CircuitBreaker(config.CircuitBreakerConfig{
		MaxRequests:      2,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
	}, zap.NewNop()))
	app.Get("/fail", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusInternalServerError).SendString("x")
	})

	// Act
	for i := 0; i < 2; i++ {
		_, _ = app.Test(httptest.NewRequest("GET", "/fail", nil))
	}
	resp, _ := app.Test(httptest.NewRequest("GET", "/fail", nil))

	// Assert
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("expected 503 once open, got %d", resp.StatusCode)
	}
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Use(CircuitBreaker(config.CircuitBreakerConfig{MaxRequests: 2, Timeout: time.Minute, FailureThreshold: 0.5}, zap.NewNop()))
	app.Get("/bad", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "bad")
	})

	for i := 0; i < 5; i++ {
		resp, _ := app.Test(httptest.NewRequest("GET", "/bad", nil))
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("request %d: expected 400, got %d", i, resp.StatusCode)
		}
	}
}

func TestNewCORS(t *testing.T) {
	app := fiber.New()
	app.Use(NewCORS(config.CORSConfig{AllowedOrigins: []string{"https://terra.example"}}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://terra.example")
	resp, _ := app.Test(req)

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://terra.example" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}
