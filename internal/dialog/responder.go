// Package dialog turns persisted conversation history into completion requests
// and streams the model's reply back as fragments.
//
// It owns everything prompt-shaped: the per-mode persona, the per-backend
// sampling profiles, and the mapping from stored turns to request messages.
// The session layer above never sees a raw llm.CompletionRequest.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vocalhost/vocalhost/pkg/provider/llm"
	"github.com/vocalhost/vocalhost/pkg/transcript"
)

// ErrUnavailable is returned when no completion backend is configured.
var ErrUnavailable = errors.New("dialog: no completion backend available")

// ErrGenerationFailed is returned when the backend accepts the request but
// produces no usable reply, including a stream that ends with zero fragments.
var ErrGenerationFailed = errors.New("dialog: generation failed")

// Fragment is one streamed piece of an assistant reply. A Fragment with a
// non-nil Err terminates the stream; its Text is empty.
type Fragment struct {
	Text string
	Err  error
}

// samplingProfile holds the generation parameters for one backend and mode.
type samplingProfile struct {
	temperature float64
	maxTokens   int
}

// samplingProfiles keys generation parameters by backend name and mode.
// Groq runs a fast small model, so outputs are kept short for voice latency;
// OpenAI gets more headroom, especially in interview mode where questions
// carry more structure.
var samplingProfiles = map[string]map[transcript.Mode]samplingProfile{
	"groq": {
		transcript.ModeCasual:    {temperature: 0.5, maxTokens: 256},
		transcript.ModeInterview: {temperature: 0.5, maxTokens: 320},
	},
	"openai": {
		transcript.ModeCasual:    {temperature: 0.7, maxTokens: 512},
		transcript.ModeInterview: {temperature: 0.7, maxTokens: 1024},
	},
}

// defaultProfile covers backends without a dedicated entry (ollama, mistral,
// anthropic reached through any-llm-go).
var defaultProfile = samplingProfile{temperature: 0.7, maxTokens: 512}

// profileFor resolves the sampling profile for a backend and mode.
func profileFor(backend string, mode transcript.Mode) samplingProfile {
	if modes, ok := samplingProfiles[backend]; ok {
		if p, ok := modes[mode]; ok {
			return p
		}
	}
	return defaultProfile
}

// Responder wraps a completion backend with the conversation-shaped API the
// session layer consumes.
type Responder struct {
	provider llm.Provider
	backend  string
}

// NewResponder creates a Responder over provider. backend is the provider's
// registry name ("groq", "openai", …) and selects the sampling profile.
// provider may be nil, in which case every call returns ErrUnavailable.
func NewResponder(provider llm.Provider, backend string) *Responder {
	return &Responder{provider: provider, backend: backend}
}

// Backend returns the registry name of the wrapped provider.
func (r *Responder) Backend() string {
	return r.backend
}

// Available reports whether a completion backend is configured.
func (r *Responder) Available() bool {
	return r != nil && r.provider != nil
}

// buildRequest maps stored turns to a completion request. Stored system turns
// are never forwarded; the request carries exactly one system prompt, the one
// synthesized from mode.
func (r *Responder) buildRequest(history []transcript.Turn, mode transcript.Mode) llm.CompletionRequest {
	profile := profileFor(r.backend, mode)

	messages := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		if turn.Role == transcript.RoleSystem {
			continue
		}
		messages = append(messages, llm.Message{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	return llm.CompletionRequest{
		Messages:     messages,
		SystemPrompt: SystemPrompt(mode),
		Temperature:  profile.temperature,
		MaxTokens:    profile.maxTokens,
	}
}

// Stream generates a streamed assistant reply for history under mode's
// persona. The returned channel is closed when generation ends; a terminal
// error is delivered as the final Fragment's Err. A stream that ends with no
// fragments and no backend error yields ErrGenerationFailed.
func (r *Responder) Stream(ctx context.Context, history []transcript.Turn, mode transcript.Mode) (<-chan Fragment, error) {
	if !r.Available() {
		return nil, ErrUnavailable
	}

	chunks, err := r.provider.StreamCompletion(ctx, r.buildRequest(history, mode))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	out := make(chan Fragment, 32)
	go func() {
		defer close(out)

		emitted := false
		for chunk := range chunks {
			if chunk.FinishReason == llm.FinishReasonError {
				out <- Fragment{Err: fmt.Errorf("%w: %s", ErrGenerationFailed, chunk.Text)}
				return
			}
			if chunk.Text == "" {
				continue
			}
			emitted = true
			select {
			case out <- Fragment{Text: chunk.Text}:
			case <-ctx.Done():
				out <- Fragment{Err: ctx.Err()}
				return
			}
		}
		if !emitted {
			out <- Fragment{Err: fmt.Errorf("%w: backend produced no output", ErrGenerationFailed)}
		}
	}()
	return out, nil
}

// Complete generates a full assistant reply in one call. Used by the REST
// fallback path where streaming adds nothing.
func (r *Responder) Complete(ctx context.Context, history []transcript.Turn, mode transcript.Mode) (string, error) {
	if !r.Available() {
		return "", ErrUnavailable
	}

	text, err := r.provider.Complete(ctx, r.buildRequest(history, mode))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: backend produced no output", ErrGenerationFailed)
	}
	return text, nil
}
