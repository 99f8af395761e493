// Package groq provides a TTS provider backed by Groq's OpenAI-compatible
// audio speech endpoint. It implements the tts.Provider interface.
package groq

import (
	"context"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vocalhost/vocalhost/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "playai-tts"
	defaultVoice   = "Fritz-PlayAI"

	// Groq's speech endpoint returns MP3 by default.
	outputMIMEType = "audio/mpeg"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the speech model (e.g., "playai-tts").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithVoice sets the voice preset (e.g., "Fritz-PlayAI", "Celeste-PlayAI").
func WithVoice(voice string) Option {
	return func(p *Provider) {
		p.voice = voice
	}
}

// WithBaseURL overrides the Groq endpoint. Useful for tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// Provider implements tts.Provider against Groq's OpenAI-compatible API.
// The OpenAI SDK carries the request; only the base URL and model names
// differ from the openai backend.
type Provider struct {
	client  oai.Client
	model   string
	voice   string
	baseURL string
}

// New creates a new Groq TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq: apiKey must not be empty")
	}
	p := &Provider{
		model:   defaultModel,
		voice:   defaultVoice,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}

	p.client = oai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(p.baseURL),
	)
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("groq: empty input text: %w", tts.ErrNoAudio)
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model: oai.SpeechModel(p.model),
		Input: text,
		Voice: oai.AudioSpeechNewParamsVoice(p.voice),
	})
	if err != nil {
		return nil, fmt.Errorf("groq: speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("groq: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("groq: %w", tts.ErrNoAudio)
	}
	return audio, nil
}

// MIMEType implements tts.Provider.
func (p *Provider) MIMEType() string {
	return outputMIMEType
}
