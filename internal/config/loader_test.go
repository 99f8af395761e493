package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/vocalhost/vocalhost/internal/config"
)

func TestValidate_DuplicateTTSBackends(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  tts:
    backends:
      - name: openai
      - name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate TTS backends, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_TTSBackendMissingName(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  tts:
    backends:
      - api_key: sk-test
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unnamed TTS backend, got nil")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error should mention the missing name, got: %v", err)
	}
}

func TestValidate_TTSDefaultNotConfigured(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  tts:
    default: deepgram
    backends:
      - name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for default naming an unconfigured backend, got nil")
	}
	if !strings.Contains(err.Error(), "default") {
		t.Errorf("error should mention the default, got: %v", err)
	}
}

func TestValidate_TTSDefaultConfiguredIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: openai
  stt:
    name: whisper
  tts:
    default: openai
    backends:
      - name: openai
      - name: groq
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: chatty
providers:
  tts:
    default: ghost
    backends:
      - name: openai
      - name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
	if !strings.Contains(errStr, "default") {
		t.Errorf("error should mention the default, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	if !slices.Contains(config.ValidProviderNames["llm"], "groq") {
		t.Error(`ValidProviderNames["llm"] should contain "groq"`)
	}
	if !slices.Contains(config.ValidProviderNames["stt"], "whisper") {
		t.Error(`ValidProviderNames["stt"] should contain "whisper"`)
	}
	if !slices.Contains(config.ValidProviderNames["tts"], "deepgram") {
		t.Error(`ValidProviderNames["tts"] should contain "deepgram"`)
	}
}
