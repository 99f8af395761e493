package realtime

import "encoding/json"

// Envelope is the wire frame for every realtime message, inbound and
// outbound: a JSON text frame {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is the data of an inbound join_conversation event.
type JoinPayload struct {
	ConversationID string `json:"conversationId"`
}

// SendMessagePayload is the data of an inbound send_message event.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// VoiceInputPayload is the data of an inbound voice_input event. AudioBuffer
// carries the captured audio as base64; MIMEType defaults to audio/webm, the
// browser MediaRecorder default.
type VoiceInputPayload struct {
	ConversationID string `json:"conversationId"`
	AudioBuffer    string `json:"audioBuffer"`
	MIMEType       string `json:"mimeType,omitempty"`
}
