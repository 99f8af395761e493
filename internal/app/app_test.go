package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vocalhost/vocalhost/internal/config"
	llmmock "github.com/vocalhost/vocalhost/pkg/provider/llm/mock"
	sttmock "github.com/vocalhost/vocalhost/pkg/provider/stt/mock"
	"github.com/vocalhost/vocalhost/pkg/provider/tts"
	ttsmock "github.com/vocalhost/vocalhost/pkg/provider/tts/mock"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: "127.0.0.1:0",
			LogLevel:   config.LogInfo,
		},
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "groq"},
			STT: config.ProviderEntry{Name: "deepgram"},
			TTS: config.TTSConfig{
				Default:  "openai",
				Backends: []config.ProviderEntry{{Name: "openai"}},
			},
		},
	}
}

func testProviders() *Providers {
	bank := tts.NewBank("openai")
	bank.Register("openai", &ttsmock.Provider{Audio: []byte("mp3")})
	return &Providers{
		LLM:        &llmmock.Provider{CompleteResponse: "hi"},
		LLMBackend: "groq",
		STT:        &sttmock.Provider{Transcript: "hello"},
		STTBackend: "deepgram",
		TTS:        bank,
	}
}

func newTestApp(t *testing.T, providers *Providers) *App {
	t.Helper()
	a, err := New(context.Background(), testConfig(), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_FallsBackToMemoryStore(t *testing.T) {
	a := newTestApp(t, testProviders())
	if a.store == nil {
		t.Fatal("store not initialised")
	}
	if _, err := a.store.CreateUser(context.Background(), "ada", "ada@example.com"); err != nil {
		t.Errorf("CreateUser on fallback store: %v", err)
	}
}

func TestHandler_Probes(t *testing.T) {
	a := newTestApp(t, testProviders())
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode readyz body: %v", err)
	}
	for _, check := range []string{"llm", "stt", "tts"} {
		if body.Checks[check] != "ok" {
			t.Errorf("check %q = %q, want ok", check, body.Checks[check])
		}
	}
}

func TestHandler_ReadyzFailsWithoutSTT(t *testing.T) {
	providers := testProviders()
	providers.STT = nil

	a := newTestApp(t, providers)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want 503", resp.StatusCode)
	}
}

func TestHandler_RESTMounted(t *testing.T) {
	a := newTestApp(t, testProviders())
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	body := bytes.NewBufferString(`{"name":"ada","email":"ada@example.com"}`)
	resp, err := http.Post(srv.URL+"/api/users", "application/json", body)
	if err != nil {
		t.Fatalf("POST /api/users: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("/api/users status = %d, want 201", resp.StatusCode)
	}
}

func TestHandler_MetricsMounted(t *testing.T) {
	a := newTestApp(t, testProviders())
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", resp.StatusCode)
	}
}

func TestApplyConfig_LogLevel(t *testing.T) {
	lv := &slog.LevelVar{}
	lv.Set(slog.LevelInfo)

	providers := testProviders()
	a, err := New(context.Background(), testConfig(), providers, WithLogLevelVar(lv))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	old := testConfig()
	updated := testConfig()
	updated.Server.LogLevel = config.LogDebug

	a.ApplyConfig(old, updated)
	if lv.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", lv.Level())
	}
}

func TestApplyConfig_TTSDefault(t *testing.T) {
	providers := testProviders()
	providers.TTS.Register("deepgram", &ttsmock.Provider{Audio: []byte("wav")})

	a := newTestApp(t, providers)

	old := testConfig()
	updated := testConfig()
	updated.Providers.TTS.Default = "deepgram"

	a.ApplyConfig(old, updated)
	if got := providers.TTS.ActiveProvider(); got != "deepgram" {
		t.Errorf("active TTS backend = %q, want %q", got, "deepgram")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	a := newTestApp(t, testProviders())

	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
