package session

import (
	"time"

	"github.com/vocalhost/vocalhost/pkg/transcript"
)

// Event names on the realtime channel. Inbound names are matched by the
// transport layer; outbound names are emitted by the orchestrator.
const (
	// Inbound.
	EventJoinConversation = "join_conversation"
	EventSendMessage      = "send_message"
	EventVoiceInput       = "voice_input"

	// Outbound, caller-scoped.
	EventJoinedConversation = "joined_conversation"
	EventVoiceProcessing    = "voice_processing"
	EventVoiceTranscribed   = "voice_transcribed"
	EventError              = "error"

	// Outbound, room-scoped.
	EventMessageReceived = "message_received"
	EventMessageChunk    = "message_chunk"
	EventMessageComplete = "message_complete"
	EventAIVoiceResponse = "ai_voice_response"
)

// Voice processing statuses delivered via [EventVoiceProcessing].
const (
	StatusTranscribing       = "transcribing"
	StatusGeneratingResponse = "generating_response"
)

// JoinedPayload confirms a successful room subscription.
type JoinedPayload struct {
	ConversationID string          `json:"conversationId"`
	Mode           transcript.Mode `json:"mode"`
}

// MessagePayload carries a persisted turn: message_received for user turns,
// message_complete for assistant turns.
type MessagePayload struct {
	Role      transcript.Role          `json:"role"`
	Content   string                   `json:"content"`
	Timestamp time.Time                `json:"timestamp"`
	Metadata  *transcript.TurnMetadata `json:"metadata,omitempty"`
}

// ChunkPayload carries one streamed fragment of an assistant reply.
type ChunkPayload struct {
	Chunk string `json:"chunk"`
}

// VoicePayload carries synthesized reply audio. Audio is base64-encoded.
type VoicePayload struct {
	Audio    string `json:"audio"`
	MIMEType string `json:"mimeType"`
}

// ProcessingPayload reports voice turn progress to the calling client.
type ProcessingPayload struct {
	Status string `json:"status"`
}

// TranscribedPayload delivers the STT result of a voice turn to the caller.
type TranscribedPayload struct {
	Transcript string `json:"transcript"`
}

// ErrorPayload carries a human-readable failure message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Notifier delivers caller-scoped events to the client that initiated a turn.
type Notifier interface {
	Notify(event string, data any)
}

// Publisher fans an event out to every subscriber of a conversation's room.
type Publisher interface {
	Publish(conversationID, event string, data any)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(event string, data any)

// Notify calls f.
func (f NotifierFunc) Notify(event string, data any) { f(event, data) }

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(conversationID, event string, data any)

// Publish calls f.
func (f PublisherFunc) Publish(conversationID, event string, data any) {
	f(conversationID, event, data)
}
