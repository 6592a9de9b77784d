package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SimulatorConfig holds the simulator configuration
type SimulatorConfig struct {
	ServerURL    string
	SessionID    string
	ReplyTimeout time.Duration
}

// Reply is the part of the assistant response the simulator prints.
type Reply struct {
	Intent           string   `json:"intent"`
	Confidence       float64  `json:"confidence"`
	Result           string   `json:"result"`
	DialogState      string   `json:"dialog_state"`
	PendingQuestions []string `json:"pending_questions"`
	Error            string   `json:"error"`
}

// Simulator replays a scripted dialog against /ws/voice, one utterance per
// line, and prints every reply.
type Simulator struct {
	config *SimulatorConfig
	conn   *websocket.Conn
	log    *zap.Logger
}

func NewSimulator(config *SimulatorConfig, log *zap.Logger) *Simulator {
	if config.ReplyTimeout <= 0 {
		config.ReplyTimeout = 10 * time.Second
	}
	return &Simulator{config: config, log: log}
}

// Connect opens the voice stream for the configured session.
func (s *Simulator) Connect() error {
	u, err := url.Parse(s.config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	q := u.Query()
	q.Set("session_id", s.config.SessionID)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", u.Redacted(), err)
	}
	s.conn = conn
	s.log.Info("Connected to voice stream",
		zap.String("url", u.Redacted()),
		zap.String("session_id", s.config.SessionID),
	)
	return nil
}

// Stop closes the connection with a normal closure frame.
func (s *Simulator) Stop() {
	if s.conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = s.conn.Close()
}

// Send delivers one utterance and waits for its reply.
func (s *Simulator) Send(text string) (*Reply, error) {
	if s.conn == nil {
		return nil, errors.New("simulator is not connected")
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(s.config.ReplyTimeout)); err != nil {
		return nil, err
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("invalid reply %q: %w", data, err)
	}
	return &reply, nil
}

// Replay sends every non-blank, non-comment line of script and writes a
// transcript to out. prompt, when set, is printed before each line is read.
func (s *Simulator) Replay(script io.Reader, out io.Writer, prompt string) error {
	scanner := bufio.NewScanner(script)
	for {
		if prompt != "" {
			fmt.Fprint(out, prompt)
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}

		reply, err := s.Send(line)
		if err != nil {
			return err
		}
		printReply(out, line, reply)
	}
	return scanner.Err()
}

func printReply(out io.Writer, text string, r *Reply) {
	fmt.Fprintf(out, "> %s\n", text)
	if r.Error != "" {
		fmt.Fprintf(out, "! %s\n", r.Error)
		return
	}
	fmt.Fprintf(out, "< %s\n", r.Result)
	fmt.Fprintf(out, "  [%s %.2f %s]\n", r.Intent, r.Confidence, r.DialogState)
	for _, q := range r.PendingQuestions {
		fmt.Fprintf(out, "  ? %s\n", q)
	}
}
