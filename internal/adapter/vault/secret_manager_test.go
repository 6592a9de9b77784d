package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFakeVault(t *testing.T, secrets map[string]map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		data, ok := secrets[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data":     data,
				"metadata": map[string]interface{}{"version": 1},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSecretManager_ReadsKVv2(t *testing.T) {
	srv := newFakeVault(t, map[string]map[string]interface{}{
		"/v1/secret/data/terra/database": {"connection_string": "postgres://terra@db/terra"},
		"/v1/secret/data/terra/gemini":   {"api_key": "g-key"},
	})
	sm, err := NewSecretManager(Config{Address: srv.URL, Token: "test-token"}, zap.NewNop())
	require.NoError(t, err)

	url, err := sm.GetDatabaseURL(context.Background())
	require.NoError(t, err)
	require.Equal(t, "postgres://terra@db/terra", url)

	key, err := sm.GetTranscriptionAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "g-key", key)
}

func TestSecretManager_MissingField(t *testing.T) {
	srv := newFakeVault(t, map[string]map[string]interface{}{
		"/v1/secret/data/terra/database": {"user": "terra"},
	})
	sm, err := NewSecretManager(Config{Address: srv.URL, Token: "test-token"}, zap.NewNop())
	require.NoError(t, err)

	_, err = sm.GetDatabaseURL(context.Background())
	require.Error(t, err)

	_, err = sm.GetTranscriptionAPIKey(context.Background())
	require.Error(t, err)
}
