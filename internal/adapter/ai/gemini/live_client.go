package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/seu-repo/terra-assistant/internal/ports"
)

const (
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"
	DefaultModel    = "gemini-2.0-flash-exp"
)

const transcribeInstruction = "Ты модуль распознавания речи. Запиши дословно, что сказал пользователь, " +
	"на русском языке. Верни только текст реплики, без пояснений."

var ErrEmptyTranscript = errors.New("gemini: empty transcript")

type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	// MimeType of the uploaded audio, "audio/pcm;rate=16000" by default.
	MimeType string
	Timeout  time.Duration
}

// LiveClient transcribes audio over the Gemini Live websocket API with text
// as the only response modality. Each call opens its own session.
type LiveClient struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewLiveClient(cfg Config, logger *zap.Logger) ports.Transcriber {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MimeType == "" {
		cfg.MimeType = "audio/pcm;rate=16000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &LiveClient{
		cfg: cfg,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "gemini-live",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		logger: logger,
	}
}

// Transcribe sends audio and returns the concatenated text of the model turn.
func (c *LiveClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.transcribe(ctx, audio)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *LiveClient) transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.cfg.Endpoint+"?key="+c.cfg.APIKey, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 20)

	if err := send(ctx, conn, c.setupMessage()); err != nil {
		return "", err
	}
	if err := awaitSetup(ctx, conn); err != nil {
		return "", err
	}

	if err := send(ctx, conn, map[string]interface{}{
		"realtime_input": map[string]interface{}{
			"media_chunks": []map[string]string{
				{
					"mime_type": c.cfg.MimeType,
					"data":      base64.StdEncoding.EncodeToString(audio),
				},
			},
		},
	}); err != nil {
		return "", err
	}
	if err := send(ctx, conn, map[string]interface{}{
		"client_content": map[string]interface{}{"turn_complete": true},
	}); err != nil {
		return "", err
	}

	var sb strings.Builder
	for {
		msg, err := receive(ctx, conn)
		if err != nil {
			return "", err
		}
		for _, part := range msg.ServerContent.ModelTurn.Parts {
			sb.WriteString(part.Text)
		}
		if msg.ServerContent.TurnComplete {
			break
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyTranscript
	}
	c.logger.Debug("Audio transcribed", zap.Int("audio_bytes", len(audio)), zap.Int("text_len", len(text)))
	return text, nil
}

func (c *LiveClient) setupMessage() map[string]interface{} {
	return map[string]interface{}{
		"setup": map[string]interface{}{
			"model": "models/" + c.cfg.Model,
			"generation_config": map[string]interface{}{
				"response_modalities": []string{"TEXT"},
			},
			"system_instruction": map[string]interface{}{
				"parts": []map[string]string{
					{"text": transcribeInstruction},
				},
			},
		},
	}
}

func awaitSetup(ctx context.Context, conn *websocket.Conn) error {
	msg, err := receive(ctx, conn)
	if err != nil {
		return err
	}
	if msg.SetupComplete == nil {
		return errors.New("gemini: setup was not acknowledged")
	}
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("gemini: write: %w", err)
	}
	return nil
}

func receive(ctx context.Context, conn *websocket.Conn) (*serverMessage, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini: read: %w", err)
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("gemini: decode: %w", err)
	}
	return &msg, nil
}

type serverMessage struct {
	SetupComplete *struct{} `json:"setupComplete,omitempty"`
	ServerContent struct {
		ModelTurn struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"modelTurn"`
		TurnComplete bool `json:"turnComplete"`
	} `json:"serverContent"`
}
