package main

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/vocalhost/vocalhost/internal/app"
	"github.com/vocalhost/vocalhost/internal/config"
	"github.com/vocalhost/vocalhost/pkg/provider/llm"
	"github.com/vocalhost/vocalhost/pkg/provider/llm/anyllm"
	oaillm "github.com/vocalhost/vocalhost/pkg/provider/llm/openai"
	"github.com/vocalhost/vocalhost/pkg/provider/stt"
	sttdeepgram "github.com/vocalhost/vocalhost/pkg/provider/stt/deepgram"
	"github.com/vocalhost/vocalhost/pkg/provider/stt/whisper"
	"github.com/vocalhost/vocalhost/pkg/provider/tts"
	ttsdeepgram "github.com/vocalhost/vocalhost/pkg/provider/tts/deepgram"
	ttsgroq "github.com/vocalhost/vocalhost/pkg/provider/tts/groq"
	ttsopenai "github.com/vocalhost/vocalhost/pkg/provider/tts/openai"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// groq, mistral, anthropic, deepseek all go through any-llm-go and share
	// the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{"groq", "mistral", "anthropic", "deepseek"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		if entry.BaseURL != "" {
			opts = append(opts, whisper.WithBaseURL(entry.BaseURL))
		}
		return whisper.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttdeepgram.Option
		if entry.Model != "" {
			opts = append(opts, sttdeepgram.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, sttdeepgram.WithLanguage(entry.Language))
		}
		return sttdeepgram.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		if entry.Voice != "" {
			opts = append(opts, ttsopenai.WithVoice(entry.Voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		return ttsopenai.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("groq", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsgroq.Option
		if entry.Model != "" {
			opts = append(opts, ttsgroq.WithModel(entry.Model))
		}
		if entry.Voice != "" {
			opts = append(opts, ttsgroq.WithVoice(entry.Voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, ttsgroq.WithBaseURL(entry.BaseURL))
		}
		return ttsgroq.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("deepgram", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsdeepgram.Option
		if entry.Model != "" {
			opts = append(opts, ttsdeepgram.WithModel(entry.Model))
		}
		return ttsdeepgram.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		ps.LLMBackend = name
		slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = p
		ps.STTBackend = name
		slog.Info("provider created", "kind", "stt", "name", name, "model", cfg.Providers.STT.Model)
	}

	// TTS backends are best-effort: a backend that fails to initialise (for
	// example a missing credential) is skipped with a warning so the rest of
	// the bank still serves.
	bank := tts.NewBank(cfg.Providers.TTS.Default)
	for _, entry := range cfg.Providers.TTS.Backends {
		p, err := reg.CreateTTS(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown tts backend — skipping", "name", entry.Name)
			continue
		}
		if err != nil {
			slog.Warn("tts backend failed to initialise — skipping", "name", entry.Name, "err", err)
			continue
		}
		bank.Register(entry.Name, p)
		slog.Info("provider created", "kind", "tts", "name", entry.Name, "model", entry.Model)
	}
	ps.TTS = bank

	return ps, nil
}
