// Package whisper provides an STT provider backed by the OpenAI audio
// transcriptions API (Whisper).
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vocalhost/vocalhost/pkg/provider/stt"
)

const (
	defaultModel    = "whisper-1"
	defaultLanguage = "en"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the transcription model (e.g., "whisper-1").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the ISO-639-1 language code sent with each request.
// An empty string lets the backend auto-detect.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithBaseURL overrides the default API base URL. Useful for tests and for
// Whisper-compatible endpoints.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// Provider implements stt.Provider backed by the OpenAI transcription API.
type Provider struct {
	client   oai.Client
	model    string
	language string
	baseURL  string
}

// New creates a new Whisper Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisper: apiKey must not be empty")
	}
	p := &Provider{
		model:    defaultModel,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Transcribe implements stt.Provider. The audio buffer is submitted as a
// multipart file upload named after the MIME hint so the backend can pick the
// right decoder.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("whisper: empty audio buffer: %w", stt.ErrNoTranscript)
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio), filename(mimeType), mimeType),
		Model: oai.AudioModel(p.model),
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("whisper: transcribe: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("whisper: %w", stt.ErrNoTranscript)
	}
	return text, nil
}

// filename derives an upload filename from the MIME hint; the transcription
// endpoint infers the container format from the extension.
func filename(mimeType string) string {
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return "audio" + exts[0]
	}
	// Browser MediaRecorder default.
	return "audio.webm"
}
