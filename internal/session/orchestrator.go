// Package session implements the turn state machine that multiplexes
// speech-to-text, streamed completion, and text-to-speech into the realtime
// event protocol.
//
// One turn per conversation is processed at a time; turns for different
// conversations run fully concurrently. A turn walks
// Transcribing (voice only) → Generating → Persisting → Synthesizing →
// Delivered, with Failed reachable from every non-terminal stage.
// Transcription and generation failures abort the turn; synthesis failure
// only suppresses the voice augmentation.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vocalhost/vocalhost/internal/dialog"
	"github.com/vocalhost/vocalhost/internal/observe"
	"github.com/vocalhost/vocalhost/pkg/provider/stt"
	"github.com/vocalhost/vocalhost/pkg/provider/tts"
	"github.com/vocalhost/vocalhost/pkg/transcript"
)

// Orchestrator drives turns end to end against the transcript store and the
// configured providers. Construct with [New]; all dependencies are fixed at
// startup except the per-call Notifier.
type Orchestrator struct {
	store      transcript.Store
	responder  *dialog.Responder
	stt        stt.Provider
	sttBackend string
	tts        *tts.Bank
	rooms      Publisher
	metrics    *observe.Metrics
	locks      *turnLocks
}

// New creates an Orchestrator. sttProvider may be nil when no STT backend is
// configured; voice turns then fail with a provider-unavailable error.
// sttBackend is the configured backend name, used as the provider label on
// transcription metrics. metrics may be nil to disable instrumentation (tests).
func New(store transcript.Store, responder *dialog.Responder, sttProvider stt.Provider, sttBackend string, ttsBank *tts.Bank, rooms Publisher, metrics *observe.Metrics) *Orchestrator {
	return &Orchestrator{
		store:      store,
		responder:  responder,
		stt:        sttProvider,
		sttBackend: sttBackend,
		tts:        ttsBank,
		rooms:      rooms,
		metrics:    metrics,
		locks:      newTurnLocks(),
	}
}

// Join validates that a conversation exists and returns it. Joining never
// creates; an unknown id surfaces transcript.ErrNotFound.
func (o *Orchestrator) Join(ctx context.Context, conversationID string) (*transcript.Conversation, error) {
	conv, err := o.store.Conversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("session: join %s: %w", conversationID, err)
	}
	return conv, nil
}

// TextTurn processes one text turn for conversationID. Events are fanned out
// to the conversation's room; failures before the user turn is recorded go
// only to caller.
func (o *Orchestrator) TextTurn(ctx context.Context, conversationID, message string, caller Notifier) error {
	ctx, span := observe.StartSpan(ctx, "turn.text")
	defer span.End()

	o.locks.acquire(conversationID)
	defer o.locks.release(conversationID)

	start := time.Now()
	o.turnStarted(ctx)
	defer o.turnEnded(ctx)

	conv, err := o.store.Conversation(ctx, conversationID)
	if err != nil {
		caller.Notify(EventError, ErrorPayload{Message: "conversation not found"})
		o.recordTurn(ctx, "", "text", "error", start)
		return fmt.Errorf("session: text turn: %w", err)
	}

	err = o.exchange(ctx, conv, message, nil, caller)
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.recordTurn(ctx, string(conv.Mode), "text", status, start)
	return err
}

// VoiceTurn processes one voice turn: transcribe, then continue as a text
// turn with voice metadata. Transcription failure is fatal and leaves the
// transcript untouched.
func (o *Orchestrator) VoiceTurn(ctx context.Context, conversationID string, audio []byte, mimeType string, caller Notifier) error {
	ctx, span := observe.StartSpan(ctx, "turn.voice")
	defer span.End()

	o.locks.acquire(conversationID)
	defer o.locks.release(conversationID)

	start := time.Now()
	o.turnStarted(ctx)
	defer o.turnEnded(ctx)

	conv, err := o.store.Conversation(ctx, conversationID)
	if err != nil {
		caller.Notify(EventError, ErrorPayload{Message: "conversation not found"})
		o.recordTurn(ctx, "", "voice", "error", start)
		return fmt.Errorf("session: voice turn: %w", err)
	}

	caller.Notify(EventVoiceProcessing, ProcessingPayload{Status: StatusTranscribing})

	text, err := o.transcribe(ctx, audio, mimeType)
	if err != nil {
		observe.Logger(ctx).Error("transcription failed",
			"conversation_id", conversationID, "stage", "transcribing", "error", err)
		caller.Notify(EventError, ErrorPayload{Message: "could not transcribe audio"})
		o.recordTurn(ctx, string(conv.Mode), "voice", "error", start)
		return fmt.Errorf("session: voice turn: %w", err)
	}
	caller.Notify(EventVoiceTranscribed, TranscribedPayload{Transcript: text})

	md := &transcript.TurnMetadata{IsVoice: true}
	err = o.exchange(ctx, conv, text, md, caller)
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.recordTurn(ctx, string(conv.Mode), "voice", status, start)
	return err
}

// Exchange runs a non-streamed text turn for clients without a duplex
// channel. Room events still fire so realtime subscribers of the same
// conversation observe the turn; the assistant turn is returned directly.
func (o *Orchestrator) Exchange(ctx context.Context, conversationID, message string) (*transcript.Turn, error) {
	ctx, span := observe.StartSpan(ctx, "turn.exchange")
	defer span.End()

	o.locks.acquire(conversationID)
	defer o.locks.release(conversationID)

	start := time.Now()
	o.turnStarted(ctx)
	defer o.turnEnded(ctx)

	conv, err := o.store.Conversation(ctx, conversationID)
	if err != nil {
		o.recordTurn(ctx, "", "text", "error", start)
		return nil, fmt.Errorf("session: exchange: %w", err)
	}

	userTurn, err := o.store.AppendTurn(ctx, conv.ID, transcript.RoleUser, message, nil)
	if err != nil {
		o.recordTurn(ctx, string(conv.Mode), "text", "error", start)
		return nil, fmt.Errorf("session: exchange: append user turn: %w", err)
	}
	o.rooms.Publish(conv.ID, EventMessageReceived, MessagePayload{
		Role:      userTurn.Role,
		Content:   userTurn.Content,
		Timestamp: userTurn.Timestamp,
	})

	history, err := o.store.RecentTurns(ctx, conv.ID, transcript.DefaultContextWindow)
	if err != nil {
		o.recordTurn(ctx, string(conv.Mode), "text", "error", start)
		return nil, fmt.Errorf("session: exchange: fetch context: %w", err)
	}

	llmStart := time.Now()
	reply, err := o.responder.Complete(ctx, history, conv.Mode)
	o.recordProvider(ctx, o.responder.Backend(), "llm", llmStart, err)
	if err != nil {
		o.rooms.Publish(conv.ID, EventError, ErrorPayload{Message: "could not generate a response"})
		o.recordTurn(ctx, string(conv.Mode), "text", "error", start)
		return nil, fmt.Errorf("session: exchange: %w", err)
	}

	assistantTurn, err := o.store.AppendTurn(ctx, conv.ID, transcript.RoleAssistant, reply, nil)
	if err != nil {
		o.recordTurn(ctx, string(conv.Mode), "text", "error", start)
		return nil, fmt.Errorf("session: exchange: append assistant turn: %w", err)
	}
	o.rooms.Publish(conv.ID, EventMessageComplete, MessagePayload{
		Role:      assistantTurn.Role,
		Content:   assistantTurn.Content,
		Timestamp: assistantTurn.Timestamp,
	})

	o.synthesize(ctx, conv, reply)
	o.recordTurn(ctx, string(conv.Mode), "text", "ok", start)
	return assistantTurn, nil
}

// Transcribe exposes the STT stage directly for the REST fallback.
func (o *Orchestrator) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return o.transcribe(ctx, audio, mimeType)
}

func (o *Orchestrator) transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if o.stt == nil {
		return "", fmt.Errorf("session: transcribe: %w", stt.ErrUnavailable)
	}

	sttStart := time.Now()
	text, err := o.stt.Transcribe(ctx, audio, mimeType)
	o.recordProvider(ctx, o.sttBackend, "stt", sttStart, err)
	if err != nil {
		return "", err
	}
	// Whitespace-only output is a transcription failure, not an empty turn.
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("session: transcribe: %w", stt.ErrNoTranscript)
	}
	return text, nil
}

// exchange runs the shared streamed pipeline from user turn persistence to
// delivery. The conversation lock must already be held.
func (o *Orchestrator) exchange(ctx context.Context, conv *transcript.Conversation, content string, md *transcript.TurnMetadata, caller Notifier) error {
	userTurn, err := o.store.AppendTurn(ctx, conv.ID, transcript.RoleUser, content, md)
	if err != nil {
		caller.Notify(EventError, ErrorPayload{Message: "could not record message"})
		return fmt.Errorf("session: append user turn: %w", err)
	}
	o.rooms.Publish(conv.ID, EventMessageReceived, MessagePayload{
		Role:      userTurn.Role,
		Content:   userTurn.Content,
		Timestamp: userTurn.Timestamp,
		Metadata:  userTurn.Metadata,
	})

	if md != nil && md.IsVoice {
		caller.Notify(EventVoiceProcessing, ProcessingPayload{Status: StatusGeneratingResponse})
	}

	history, err := o.store.RecentTurns(ctx, conv.ID, transcript.DefaultContextWindow)
	if err != nil {
		o.rooms.Publish(conv.ID, EventError, ErrorPayload{Message: "could not load conversation history"})
		return fmt.Errorf("session: fetch context: %w", err)
	}

	llmStart := time.Now()
	fragments, err := o.responder.Stream(ctx, history, conv.Mode)
	if err != nil {
		o.recordProvider(ctx, o.responder.Backend(), "llm", llmStart, err)
		o.rooms.Publish(conv.ID, EventError, ErrorPayload{Message: "could not generate a response"})
		return fmt.Errorf("session: open stream: %w", err)
	}

	// Each fragment is forwarded the moment it arrives; first-chunk latency
	// is the UX metric this path exists for.
	var reply strings.Builder
	var streamErr error
	for f := range fragments {
		if f.Err != nil {
			streamErr = f.Err
			break
		}
		reply.WriteString(f.Text)
		o.rooms.Publish(conv.ID, EventMessageChunk, ChunkPayload{Chunk: f.Text})
	}
	o.recordProvider(ctx, o.responder.Backend(), "llm", llmStart, streamErr)
	if streamErr != nil {
		// Chunks already broadcast are not retracted; the absence of
		// message_complete marks the turn as failed. The user turn stays.
		observe.Logger(ctx).Error("generation failed",
			"conversation_id", conv.ID, "stage", "generating", "error", streamErr)
		o.rooms.Publish(conv.ID, EventError, ErrorPayload{Message: "could not generate a response"})
		return fmt.Errorf("session: %w", streamErr)
	}

	assistantTurn, err := o.store.AppendTurn(ctx, conv.ID, transcript.RoleAssistant, reply.String(), nil)
	if err != nil {
		o.rooms.Publish(conv.ID, EventError, ErrorPayload{Message: "could not record response"})
		return fmt.Errorf("session: append assistant turn: %w", err)
	}
	o.rooms.Publish(conv.ID, EventMessageComplete, MessagePayload{
		Role:      assistantTurn.Role,
		Content:   assistantTurn.Content,
		Timestamp: assistantTurn.Timestamp,
	})

	o.synthesize(ctx, conv, reply.String())
	return nil
}

// synthesize attempts the voice augmentation. Failure is logged and swallowed:
// the text turn has already completed.
func (o *Orchestrator) synthesize(ctx context.Context, conv *transcript.Conversation, text string) {
	if o.tts == nil || !o.tts.Available() {
		return
	}

	ttsStart := time.Now()
	audio, mimeType, backend, err := o.tts.Synthesize(ctx, text, "", conv.TTSProvider)
	o.recordProvider(ctx, backend, "tts", ttsStart, err)
	if err != nil {
		observe.Logger(ctx).Error("synthesis failed",
			"conversation_id", conv.ID, "stage", "synthesizing", "backend", backend, "error", err)
		return
	}

	o.rooms.Publish(conv.ID, EventAIVoiceResponse, VoicePayload{
		Audio:    base64.StdEncoding.EncodeToString(audio),
		MIMEType: mimeType,
	})
}

func (o *Orchestrator) turnStarted(ctx context.Context) {
	if o.metrics != nil {
		o.metrics.ActiveTurns.Add(ctx, 1)
	}
}

func (o *Orchestrator) turnEnded(ctx context.Context) {
	if o.metrics != nil {
		o.metrics.ActiveTurns.Add(ctx, -1)
	}
}

func (o *Orchestrator) recordTurn(ctx context.Context, mode, kind, status string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordTurn(ctx, mode, kind, status)
	o.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
}

func (o *Orchestrator) recordProvider(ctx context.Context, provider, kind string, start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		o.metrics.RecordProviderError(ctx, provider, kind)
	}
	o.metrics.RecordProviderRequest(ctx, provider, kind, status)

	d := time.Since(start).Seconds()
	switch kind {
	case "stt":
		o.metrics.STTDuration.Record(ctx, d)
	case "llm":
		o.metrics.LLMDuration.Record(ctx, d)
	case "tts":
		o.metrics.TTSDuration.Record(ctx, d)
	}
}

// IsNotFound reports whether err stems from a missing conversation or user.
func IsNotFound(err error) bool {
	return errors.Is(err, transcript.ErrNotFound)
}
