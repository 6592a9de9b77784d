package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/ports"
)

type Config struct {
	Address string
	Token   string
	// Mount is the KV v2 mount path, "secret" by default.
	Mount        string
	DatabasePath string
	GeminiPath   string
}

// SecretManager reads the service's secrets from a Vault KV v2 engine.
type SecretManager struct {
	kv  *api.KVv2
	cfg Config
	log *zap.Logger
}

func NewSecretManager(cfg Config, log *zap.Logger) (ports.SecretProvider, error) {
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "terra/database"
	}
	if cfg.GeminiPath == "" {
		cfg.GeminiPath = "terra/gemini"
	}

	config := api.DefaultConfig()
	config.Address = cfg.Address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	log.Info("Vault client initialized", zap.String("address", cfg.Address), zap.String("mount", cfg.Mount))
	return &SecretManager{
		kv:  client.KVv2(cfg.Mount),
		cfg: cfg,
		log: log,
	}, nil
}

func (sm *SecretManager) GetDatabaseURL(ctx context.Context) (string, error) {
	return sm.read(ctx, sm.cfg.DatabasePath, "connection_string")
}

func (sm *SecretManager) GetTranscriptionAPIKey(ctx context.Context) (string, error) {
	return sm.read(ctx, sm.cfg.GeminiPath, "api_key")
}

func (sm *SecretManager) read(ctx context.Context, path, field string) (string, error) {
	secret, err := sm.kv.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("vault: read %s: %w", path, err)
	}
	value, ok := secret.Data[field].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("vault: %s has no %q field", path, field)
	}
	return value, nil
}
