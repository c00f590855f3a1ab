package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/logger"
)

func testLogger(t *testing.T) logger.StyledLogger {
	t.Helper()
	log, _, err := logger.New(&logger.Config{Level: "error"})
	require.NoError(t, err)
	return logger.NewPlainStyledLogger(log)
}

func startApp(t *testing.T, backends ...config.BackendConfig) *Application {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.RequestLogging = false
	cfg.Backends = backends
	require.NoError(t, cfg.Validate())
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	application, err := New(time.Now(), cfg, nil, testLogger(t))
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))
	t.Cleanup(func() {
		assert.NoError(t, application.Stop(context.Background()))
	})
	return application
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestApplication_ProxiesToBackend(t *testing.T) {
	var seenAuth atomic.Value
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"hi"}}]}`)
	}))
	defer upstream.Close()

	application := startApp(t, config.BackendConfig{
		Name: "cloud", URL: upstream.URL + "/v1/chat/completions", APIKey: "sk-test",
		Type: constants.TypeAliasOpenAI, MaxConcurrent: 2, Weight: 1,
	})
	assert.Equal(t, 2, application.ExpectedWorkers())

	resp := post(t, "http://"+application.Addr()+constants.PathV1ChatCompletions, `{"messages":[{"role":"user","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cloud", resp.Header.Get(constants.HeaderCorralBackend))
	assert.NotEmpty(t, resp.Header.Get(constants.HeaderCorralRequestID))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"choices":[{"message":{"content":"hi"}}]}`, string(body))
	assert.Equal(t, "Bearer sk-test", seenAuth.Load())
}

func TestApplication_FailsOverFromBrokenBackend(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer working.Close()

	application := startApp(t,
		config.BackendConfig{Name: "broken", URL: broken.URL, Type: constants.TypeAliasOpenAI, MaxConcurrent: 1, Weight: 1},
		config.BackendConfig{Name: "working", URL: working.URL, Type: constants.TypeAliasOpenAI, MaxConcurrent: 1, Weight: 1},
	)

	for i := 0; i < 4; i++ {
		resp := post(t, "http://"+application.Addr()+constants.PathChatCompletions, `{}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "working", resp.Header.Get(constants.HeaderCorralBackend))
	}
}

func TestApplication_NoBackendsAnswers503(t *testing.T) {
	application := startApp(t)

	resp := post(t, "http://"+application.Addr()+constants.PathV1ChatCompletions, `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	health, err := http.Get("http://" + application.Addr() + constants.DefaultHealthCheckEndpoint)
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(health.Body).Decode(&body))
	assert.Equal(t, "0/0", body["backends"])
}

func TestApplication_ApplyConfigChangesLogLevel(t *testing.T) {
	levelVar := new(slog.LevelVar)
	cfg := config.DefaultConfig()
	application, err := New(time.Now(), cfg, levelVar, testLogger(t))
	require.NoError(t, err)

	updated := config.DefaultConfig()
	updated.Logging.Level = "debug"
	application.applyConfig(updated, nil)
	assert.Equal(t, slog.LevelDebug, levelVar.Level())

	application.applyConfig(nil, assert.AnError)
	assert.Equal(t, slog.LevelDebug, levelVar.Level(), "a broken reload changes nothing")
}
