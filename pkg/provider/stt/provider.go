// Package stt defines the Provider interface for speech-to-text backends.
//
// A provider converts one recorded audio buffer into text in a single call.
// Clients deliver finished utterances (the capture pipeline segments speech on
// their side), so the adapter surface is deliberately batch-shaped rather than
// streaming: one buffer in, one transcript out.
//
// Implementations must be safe for concurrent use and perform no internal
// retries; a failed transcription surfaces to the caller as a terminal error
// for that turn.
package stt

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no STT backend is configured or credentialed.
var ErrUnavailable = errors.New("stt: no provider configured")

// ErrNoTranscript is returned when the backend call succeeds but yields an
// empty or missing transcript. An empty result is a transcription failure,
// never an empty-content turn.
var ErrNoTranscript = errors.New("stt: backend returned no transcript")

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe converts audio to text. mimeType hints the container/codec of
	// the buffer (e.g., "audio/webm", "audio/wav"); providers that do not need
	// the hint may ignore it.
	//
	// Returns ErrNoTranscript (possibly wrapped) when the backend produces no
	// usable text.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}
