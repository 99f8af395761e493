package config_test

import (
	"testing"

	"github.com/vocalhost/vocalhost/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   config.LogInfo,
		},
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "groq"},
			STT: config.ProviderEntry{Name: "deepgram"},
			TTS: config.TTSConfig{
				Default: "openai",
				Backends: []config.ProviderEntry{
					{Name: "openai"},
					{Name: "deepgram"},
				},
			},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	old, new := baseConfig(), baseConfig()
	d := config.Diff(old, new)

	if d.LogLevelChanged {
		t.Error("LogLevelChanged should be false for identical configs")
	}
	if d.TTSDefaultChanged {
		t.Error("TTSDefaultChanged should be false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()

	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged should be true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, config.LogDebug)
	}
}

func TestDiff_TTSDefaultChanged(t *testing.T) {
	t.Parallel()

	old, new := baseConfig(), baseConfig()
	new.Providers.TTS.Default = "deepgram"

	d := config.Diff(old, new)
	if !d.TTSDefaultChanged {
		t.Fatal("TTSDefaultChanged should be true")
	}
	if d.NewTTSDefault != "deepgram" {
		t.Errorf("NewTTSDefault = %q, want %q", d.NewTTSDefault, "deepgram")
	}
}

func TestDiff_ProviderSwapNotTracked(t *testing.T) {
	t.Parallel()

	// Swapping the LLM backend requires a restart; the diff must not claim it
	// is hot-reloadable.
	old, new := baseConfig(), baseConfig()
	new.Providers.LLM.Name = "openai"

	d := config.Diff(old, new)
	if d.LogLevelChanged || d.TTSDefaultChanged {
		t.Errorf("diff = %+v, want no tracked changes", d)
	}
}
