package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/ports"
)

const maxTaskLimit = 100

// TaskHandler exposes the tasks created by task_creation commands.
type TaskHandler struct {
	tasks ports.TaskRepository
	log   *zap.Logger
}

func NewTaskHandler(tasks ports.TaskRepository, log *zap.Logger) *TaskHandler {
	return &TaskHandler{
		tasks: tasks,
		log:   log,
	}
}

// ListTasks handles GET /api/v1/tasks?session_id=&limit=.
func (h *TaskHandler) ListTasks(c *fiber.Ctx) error {
	sid := sessionID(c, c.Query("session_id"))
	if sid == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxTaskLimit {
		limit = maxTaskLimit
	}

	tasks, err := h.tasks.FindBySession(c.UserContext(), sid, limit)
	if err != nil {
		h.log.Error("Failed to list tasks", zap.String("session_id", sid), zap.Error(err))
		return fiber.NewError(fiber.StatusServiceUnavailable, "tasks unavailable")
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}

	return c.JSON(fiber.Map{
		"session_id": sid,
		"tasks":      tasks,
	})
}

// GetTask handles GET /api/v1/tasks/:id.
func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	id := c.Params("id")
	task, err := h.tasks.FindByID(c.UserContext(), id)
	if err != nil {
		h.log.Error("Failed to load task", zap.String("task_id", id), zap.Error(err))
		return fiber.NewError(fiber.StatusServiceUnavailable, "tasks unavailable")
	}
	if task == nil {
		return fiber.NewError(fiber.StatusNotFound, "task not found")
	}
	return c.JSON(task)
}
