package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	serverURL   = flag.String("server", "ws://localhost:8080/ws/voice", "Voice stream WebSocket URL")
	sessionID   = flag.String("session", "", "Session ID (random when empty)")
	scriptPath  = flag.String("script", "-", "Dialog script, one utterance per line (- for stdin)")
	timeout     = flag.Duration("timeout", 10*time.Second, "Time to wait for each reply")
	interactive = flag.Bool("interactive", false, "Prompt for each utterance")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	// Setup logger
	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}

	var script io.Reader = os.Stdin
	if *scriptPath != "-" {
		f, err := os.Open(*scriptPath)
		if err != nil {
			logger.Fatal("Failed to open script", zap.Error(err))
		}
		defer f.Close()
		script = f
	}

	simulator := NewSimulator(&SimulatorConfig{
		ServerURL:    *serverURL,
		SessionID:    *sessionID,
		ReplyTimeout: *timeout,
	}, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down simulator...")
		simulator.Stop()
		os.Exit(0)
	}()

	if err := simulator.Connect(); err != nil {
		logger.Fatal("Failed to connect to server", zap.Error(err))
	}
	defer simulator.Stop()

	prompt := ""
	if *interactive {
		fmt.Printf("TERRA dialog simulator, session %s\n", *sessionID)
		fmt.Println("Type an utterance, or quit to exit")
		prompt = "terra> "
	}

	if err := simulator.Replay(script, os.Stdout, prompt); err != nil {
		logger.Error("Replay failed", zap.Error(err))
		simulator.Stop()
		os.Exit(1)
	}
}
