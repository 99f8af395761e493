package dialog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vocalhost/vocalhost/pkg/provider/llm"
	"github.com/vocalhost/vocalhost/pkg/provider/llm/mock"
	"github.com/vocalhost/vocalhost/pkg/transcript"
)

func collect(t *testing.T, fragments <-chan Fragment) (string, error) {
	t.Helper()
	var b strings.Builder
	for f := range fragments {
		if f.Err != nil {
			return b.String(), f.Err
		}
		b.WriteString(f.Text)
	}
	return b.String(), nil
}

func TestStreamConcatenatesFragments(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "Hi "},
			{Text: "there"},
			{Text: "!"},
			{FinishReason: "stop"},
		},
	}
	r := NewResponder(p, "groq")

	history := []transcript.Turn{
		{Role: transcript.RoleUser, Content: "hello"},
	}
	fragments, err := r.Stream(context.Background(), history, transcript.ModeCasual)
	if err != nil {
		t.Fatalf("Stream() unexpected error: %v", err)
	}

	got, err := collect(t, fragments)
	if err != nil {
		t.Fatalf("stream fragment error: %v", err)
	}
	if got != "Hi there!" {
		t.Errorf("streamed text = %q, want %q", got, "Hi there!")
	}
}

func TestStreamSingleSystemPrompt(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		StreamChunks: []llm.Chunk{{Text: "ok"}, {FinishReason: "stop"}},
	}
	r := NewResponder(p, "groq")

	// A stored system turn must not reach the backend; only the synthesized
	// persona travels, in the request's dedicated slot.
	history := []transcript.Turn{
		{Role: transcript.RoleSystem, Content: "stale persisted persona"},
		{Role: transcript.RoleUser, Content: "first"},
		{Role: transcript.RoleAssistant, Content: "reply"},
		{Role: transcript.RoleUser, Content: "second"},
	}
	fragments, err := r.Stream(context.Background(), history, transcript.ModeInterview)
	if err != nil {
		t.Fatalf("Stream() unexpected error: %v", err)
	}
	if _, err := collect(t, fragments); err != nil {
		t.Fatalf("stream fragment error: %v", err)
	}

	req := p.LastStreamRequest()
	if req.SystemPrompt != SystemPrompt(transcript.ModeInterview) {
		t.Errorf("SystemPrompt does not match the interview persona")
	}
	if len(req.Messages) != 3 {
		t.Fatalf("len(Messages) = %d, want 3 (system turn filtered)", len(req.Messages))
	}
	for i, m := range req.Messages {
		if m.Role == "system" {
			t.Errorf("Messages[%d] has role system; stored system turns must be filtered", i)
		}
	}
	if req.Messages[2].Content != "second" {
		t.Errorf("Messages[2].Content = %q, want %q", req.Messages[2].Content, "second")
	}
}

func TestSamplingProfiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend  string
		mode     transcript.Mode
		wantTemp float64
		wantMax  int
	}{
		{"groq", transcript.ModeCasual, 0.5, 256},
		{"groq", transcript.ModeInterview, 0.5, 320},
		{"openai", transcript.ModeCasual, 0.7, 512},
		{"openai", transcript.ModeInterview, 0.7, 1024},
		{"ollama", transcript.ModeCasual, 0.7, 512},
		{"mistral", transcript.ModeInterview, 0.7, 512},
	}

	for _, tt := range tests {
		t.Run(tt.backend+"/"+string(tt.mode), func(t *testing.T) {
			t.Parallel()

			p := &mock.Provider{
				StreamChunks: []llm.Chunk{{Text: "x"}, {FinishReason: "stop"}},
			}
			r := NewResponder(p, tt.backend)

			fragments, err := r.Stream(context.Background(), []transcript.Turn{
				{Role: transcript.RoleUser, Content: "hi"},
			}, tt.mode)
			if err != nil {
				t.Fatalf("Stream() unexpected error: %v", err)
			}
			if _, err := collect(t, fragments); err != nil {
				t.Fatalf("stream fragment error: %v", err)
			}

			req := p.LastStreamRequest()
			if req.Temperature != tt.wantTemp {
				t.Errorf("Temperature = %v, want %v", req.Temperature, tt.wantTemp)
			}
			if req.MaxTokens != tt.wantMax {
				t.Errorf("MaxTokens = %d, want %d", req.MaxTokens, tt.wantMax)
			}
		})
	}
}

func TestStreamMidStreamError(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "partial "},
			{Text: "rate limit exceeded", FinishReason: llm.FinishReasonError},
		},
	}
	r := NewResponder(p, "openai")

	fragments, err := r.Stream(context.Background(), []transcript.Turn{
		{Role: transcript.RoleUser, Content: "hi"},
	}, transcript.ModeCasual)
	if err != nil {
		t.Fatalf("Stream() unexpected error: %v", err)
	}

	got, err := collect(t, fragments)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("fragment error = %v, want %v", err, ErrGenerationFailed)
	}
	if got != "partial " {
		t.Errorf("text before failure = %q, want %q", got, "partial ")
	}
}

func TestStreamEmptyIsGenerationFailed(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		StreamChunks: []llm.Chunk{{FinishReason: "stop"}},
	}
	r := NewResponder(p, "groq")

	fragments, err := r.Stream(context.Background(), []transcript.Turn{
		{Role: transcript.RoleUser, Content: "hi"},
	}, transcript.ModeCasual)
	if err != nil {
		t.Fatalf("Stream() unexpected error: %v", err)
	}

	if _, err := collect(t, fragments); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("empty stream error = %v, want %v", err, ErrGenerationFailed)
	}
}

func TestStreamStartFailure(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{StreamErr: errors.New("connection refused")}
	r := NewResponder(p, "groq")

	_, err := r.Stream(context.Background(), nil, transcript.ModeCasual)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Stream() error = %v, want %v", err, ErrGenerationFailed)
	}
}

func TestStreamNoBackend(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, "")
	if _, err := r.Stream(context.Background(), nil, transcript.ModeCasual); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Stream() error = %v, want %v", err, ErrUnavailable)
	}
	if _, err := r.Complete(context.Background(), nil, transcript.ModeCasual); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Complete() error = %v, want %v", err, ErrUnavailable)
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteResponse: "full reply"}
	r := NewResponder(p, "openai")

	got, err := r.Complete(context.Background(), []transcript.Turn{
		{Role: transcript.RoleUser, Content: "hi"},
	}, transcript.ModeCasual)
	if err != nil {
		t.Fatalf("Complete() unexpected error: %v", err)
	}
	if got != "full reply" {
		t.Errorf("Complete() = %q, want %q", got, "full reply")
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteResponse: "  "}
	r := NewResponder(p, "openai")

	_, err := r.Complete(context.Background(), []transcript.Turn{
		{Role: transcript.RoleUser, Content: "hi"},
	}, transcript.ModeCasual)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Complete() error = %v, want %v", err, ErrGenerationFailed)
	}
}

func TestSystemPromptUnknownModeFallsBack(t *testing.T) {
	t.Parallel()

	if got := SystemPrompt(transcript.Mode("debate")); got != SystemPrompt(transcript.ModeCasual) {
		t.Error("unknown mode should fall back to the casual persona")
	}
}
