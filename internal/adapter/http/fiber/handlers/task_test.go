package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/mocks"
)

func newTaskApp(tasks *mocks.MockTaskRepository) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(zap.NewNop())})
	h := NewTaskHandler(tasks, zap.NewNop())
	app.Get("/api/v1/tasks", h.ListTasks)
	app.Get("/api/v1/tasks/:id", h.GetTask)
	return app
}

func TestListTasks(t *testing.T) {
	repo := &mocks.MockTaskRepository{}
	_ = repo.Save(context.Background(), &domain.Task{ID: "t1", SessionID: "s1", Title: "позвонить поставщику"})
	_ = repo.Save(context.Background(), &domain.Task{ID: "t2", SessionID: "s2", Title: "отчет"})
	app := newTaskApp(repo)

	tests := []struct {
		name   string
		path   string
		header map[string]string
		status int
		count  int
	}{
		{"by query", "/api/v1/tasks?session_id=s1", nil, http.StatusOK, 1},
		{"by header", "/api/v1/tasks", map[string]string{SessionHeader: "s2"}, http.StatusOK, 1},
		{"unknown session", "/api/v1/tasks?session_id=s9", nil, http.StatusOK, 0},
		{"missing session", "/api/v1/tasks", nil, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, app, http.MethodGet, tt.path, "", tt.header)
			if status != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, status)
			}
			if status != http.StatusOK {
				return
			}
			tasks, ok := body["tasks"].([]interface{})
			if !ok {
				t.Fatalf("expected tasks array, got %v", body["tasks"])
			}
			if len(tasks) != tt.count {
				t.Errorf("expected %d tasks, got %d", tt.count, len(tasks))
			}
		})
	}
}

func TestListTasks_Limit(t *testing.T) {
	var gotLimit int
	repo := &mocks.MockTaskRepository{
		FindBySessionFunc: func(ctx context.Context, sessionID string, limit int) ([]domain.Task, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	app := newTaskApp(repo)

	doJSON(t, app, http.MethodGet, "/api/v1/tasks?session_id=s1&limit=1000", "", nil)

	if gotLimit != maxTaskLimit {
		t.Errorf("expected limit %d, got %d", maxTaskLimit, gotLimit)
	}
}

func TestGetTask(t *testing.T) {
	repo := &mocks.MockTaskRepository{}
	_ = repo.Save(context.Background(), &domain.Task{ID: "t1", SessionID: "s1", Title: "позвонить поставщику"})
	app := newTaskApp(repo)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/tasks/t1", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["title"] != "позвонить поставщику" {
		t.Errorf("expected title, got %v", body["title"])
	}

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/tasks/nope", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestGetTask_StoreDown(t *testing.T) {
	repo := &mocks.MockTaskRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*domain.Task, error) {
			return nil, errors.New("connection refused")
		},
	}
	app := newTaskApp(repo)

	status, _ := doJSON(t, app, http.MethodGet, "/api/v1/tasks/t1", "", nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", status)
	}
}
