package handlers

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/ports"
	"github.com/seu-repo/terra-assistant/internal/service/voice"
)

const (
	SessionHeader = "X-Session-ID"

	defaultHistoryLimit = voice.DefaultHistoryLimit
)

type VoiceHandler struct {
	assistant ports.VoiceAssistant
	log       *zap.Logger
}

func NewVoiceHandler(assistant ports.VoiceAssistant, log *zap.Logger) *VoiceHandler {
	return &VoiceHandler{
		assistant: assistant,
		log:       log,
	}
}

type TextCommandRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type AudioCommandRequest struct {
	Audio     string `json:"audio"` // Base64
	SessionID string `json:"session_id"`
}

// sessionID prefers the body value and falls back to the X-Session-ID
// header.
func sessionID(c *fiber.Ctx, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.Get(SessionHeader)
}

// ProcessCommand handles POST /api/v1/voice/command.
func (h *VoiceHandler) ProcessCommand(c *fiber.Ctx) error {
	var req TextCommandRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid body")
	}

	sid := sessionID(c, req.SessionID)
	if sid == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	return c.JSON(h.assistant.ProcessUtterance(c.UserContext(), sid, req.Text))
}

// ProcessAudio handles POST /api/v1/voice/audio. Transcription failures
// answer 200 with a retry prompt so clients can show it like any reply.
func (h *VoiceHandler) ProcessAudio(c *fiber.Ctx) error {
	var req AudioCommandRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid body")
	}

	sid := sessionID(c, req.SessionID)
	if sid == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}

	audioBytes, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid base64 audio")
	}

	resp, err := h.assistant.ProcessAudio(c.UserContext(), sid, audioBytes)
	if err != nil {
		if errors.Is(err, voice.ErrEmptyAudio) {
			return fiber.NewError(fiber.StatusBadRequest, "audio is required")
		}
		h.log.Warn("Failed to process voice command", zap.String("session_id", sid), zap.Error(err))
		return c.JSON(fiber.Map{
			"session_id": sid,
			"result":     voice.AudioNotRecognized,
		})
	}

	return c.JSON(resp)
}

// GetHistory handles GET /api/v1/voice/history.
func (h *VoiceHandler) GetHistory(c *fiber.Ctx) error {
	sid := sessionID(c, c.Query("session_id"))
	if sid == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}
	limit := c.QueryInt("limit", defaultHistoryLimit)

	records, err := h.assistant.History(c.UserContext(), sid, limit)
	if err != nil {
		h.log.Error("Failed to load command history", zap.String("session_id", sid), zap.Error(err))
		return fiber.NewError(fiber.StatusServiceUnavailable, "history unavailable")
	}

	return c.JSON(fiber.Map{
		"session_id": sid,
		"commands":   records,
	})
}

// GetContext handles GET /api/v1/sessions/:id/context.
func (h *VoiceHandler) GetContext(c *fiber.Ctx) error {
	sid := c.Params("id")
	snap, ok := h.assistant.Snapshot(c.UserContext(), sid)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return c.JSON(snap)
}
