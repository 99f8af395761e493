// Package llm defines the Provider interface for chat-completion backends.
//
// A provider wraps a remote model API (OpenAI, or anything reachable through
// any-llm-go: Groq, Ollama, Mistral, Anthropic, …) behind a uniform streaming
// interface so the dialog layer never couples to a specific SDK.
//
// Implementations must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import "context"

// Message is a single message in a completion request's history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the backend needs to produce a reply.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is injected ahead of the history. Providers that do not
	// natively support a dedicated system slot prepend it as a "system"-role
	// message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0].
	Temperature float64

	// MaxTokens caps completion length. Zero means the provider default.
	MaxTokens int
}

// Chunk is a single fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text content. May be empty on a final chunk
	// that only carries a FinishReason.
	Text string

	// FinishReason is set on the final chunk: "stop", "length", or "error".
	// An "error" chunk carries the error message in Text.
	FinishReason string
}

// FinishReasonError marks a chunk that reports a mid-stream backend failure.
const FinishReasonError = "error"

// Provider is the abstraction over any chat-completion backend.
//
// Implementations must propagate context cancellation promptly: when ctx is
// cancelled a method must return (or close its channel) as soon as possible.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values as tokens arrive. The channel is closed by the
	// implementation when generation finishes or ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors after
	// the stream has started are surfaced as a Chunk with FinishReason
	// [FinishReasonError]; the error return is non-nil only for failures that
	// prevent the stream from starting.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req and waits for the full response text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
