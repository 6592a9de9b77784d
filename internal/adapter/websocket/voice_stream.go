package websocket

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/observability/telemetry"
	"github.com/seu-repo/terra-assistant/internal/ports"
	"github.com/seu-repo/terra-assistant/internal/service/voice"
)

type VoiceStreamHandler struct {
	assistant ports.VoiceAssistant
	logger    *zap.Logger
}

func NewVoiceStreamHandler(assistant ports.VoiceAssistant, logger *zap.Logger) *VoiceStreamHandler {
	return &VoiceStreamHandler{
		assistant: assistant,
		logger:    logger,
	}
}

type streamError struct {
	Error string `json:"error"`
}

type audioFailure struct {
	SessionID string `json:"session_id"`
	Result    string `json:"result"`
}

// HandleVoiceStream answers every frame with one JSON message: text frames
// are utterances, binary frames are audio to transcribe.
func (h *VoiceStreamHandler) HandleVoiceStream(c *websocket.Conn) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		_ = c.WriteJSON(streamError{Error: "session_id is required"})
		_ = c.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gauge := telemetry.WebSocketConnections.WithLabelValues("voice")
	gauge.Inc()
	defer gauge.Dec()

	h.logger.Debug("Voice stream opened", zap.String("session_id", sessionID))
	for {
		messageType, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Voice stream read failed", zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}

		var reply interface{}
		switch messageType {
		case websocket.TextMessage:
			text := strings.TrimSpace(string(data))
			if text == "" {
				continue
			}
			reply = h.assistant.ProcessUtterance(ctx, sessionID, text)
		case websocket.BinaryMessage:
			resp, err := h.assistant.ProcessAudio(ctx, sessionID, data)
			if err != nil {
				h.logger.Warn("Failed to process voice command", zap.String("session_id", sessionID), zap.Error(err))
				reply = audioFailure{SessionID: sessionID, Result: voice.AudioNotRecognized}
			} else {
				reply = resp
			}
		default:
			continue
		}

		payload, err := json.Marshal(reply)
		if err != nil {
			h.logger.Error("Failed to encode voice reply", zap.Error(err))
			continue
		}
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("Failed to send voice reply", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
	}
}

// RegisterRoutes mounts /ws/voice and /ws/updates on app.
func RegisterRoutes(app fiber.Router, stream *VoiceStreamHandler, hub *Hub) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/voice", websocket.New(stream.HandleVoiceStream))
	app.Get("/ws/updates", websocket.New(func(c *websocket.Conn) {
		hub.ServeClient(c, c.Query("session_id"))
	}))
}
