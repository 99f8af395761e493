// Package tts defines the Provider interface for text-to-speech backends and
// the Bank, which holds every successfully initialised backend so a
// per-conversation preference can select a non-default one without
// reinitialising anything.
//
// Implementations must be safe for concurrent use and perform no internal
// retries.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable is returned when the resolved backend was never initialised
// (e.g., missing credential) or no backend is registered at all.
var ErrUnavailable = errors.New("tts: provider not available")

// ErrNoAudio is returned when the backend call succeeds but yields an empty
// audio stream.
var ErrNoAudio = errors.New("tts: backend returned no audio")

// Provider is the abstraction over any text-to-speech backend.
type Provider interface {
	// Synthesize converts text into a complete audio buffer in the backend's
	// native output encoding.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// MIMEType reports the MIME type of the audio Synthesize produces
	// (e.g., "audio/mpeg", "audio/wav").
	MIMEType() string
}

// Bank holds all initialised TTS backends keyed by name.
//
// Resolution order for which backend serves a call:
// explicit override > conversation preference > process default > first
// registered backend. A name that resolves to an unregistered backend yields
// ErrUnavailable rather than falling through.
//
// Bank is safe for concurrent use; registration normally finishes before
// serving begins.
type Bank struct {
	mu          sync.RWMutex
	backends    map[string]Provider
	order       []string
	defaultName string
}

// NewBank returns an empty Bank whose process default is defaultName.
// defaultName may be empty when no default is configured.
func NewBank(defaultName string) *Bank {
	return &Bank{
		backends:    make(map[string]Provider),
		defaultName: defaultName,
	}
}

// SetDefault replaces the process default backend name. Used when the
// configuration is hot-reloaded.
func (b *Bank) SetDefault(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaultName = name
}

// Register adds an initialised backend under name. Registering the same name
// twice overwrites the previous backend but keeps its position in the
// first-registered fallback order.
func (b *Bank) Register(name string, p Provider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.backends[name]; !exists {
		b.order = append(b.order, name)
	}
	b.backends[name] = p
}

// Available reports whether at least one backend is registered.
func (b *Bank) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.backends) > 0
}

// ActiveProvider returns the name the Bank would resolve with no override and
// no preference, or "" when no backend is registered.
func (b *Bank) ActiveProvider() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	name, _ := b.resolveLocked("", "")
	return name
}

// Resolve picks the backend for a call. override is the explicit per-call
// argument, preference the conversation's stored ttsProvider. Either may be
// empty.
func (b *Bank) Resolve(override, preference string) (Provider, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	name, ok := b.resolveLocked(override, preference)
	if !ok {
		return nil, name, fmt.Errorf("tts: backend %q: %w", name, ErrUnavailable)
	}
	if name == "" {
		return nil, "", ErrUnavailable
	}
	return b.backends[name], name, nil
}

// Synthesize resolves a backend and synthesises text with it, returning the
// audio buffer, the MIME type of the backend's native encoding, and the name
// of the backend that served the call.
func (b *Bank) Synthesize(ctx context.Context, text, override, preference string) (audio []byte, mimeType, backend string, err error) {
	p, name, err := b.Resolve(override, preference)
	if err != nil {
		return nil, "", name, err
	}

	audio, err = p.Synthesize(ctx, text)
	if err != nil {
		return nil, "", name, fmt.Errorf("tts: %s: %w", name, err)
	}
	if len(audio) == 0 {
		return nil, "", name, fmt.Errorf("tts: %s: %w", name, ErrNoAudio)
	}
	return audio, p.MIMEType(), name, nil
}

// resolveLocked returns the resolved name and whether it is registered.
// An explicit override or conversation preference naming an uninitialised
// backend is an error, not a fall-through; only an absent or uninitialised
// process default falls back to the first registered backend. An empty name
// with ok=false means nothing is registered at all.
func (b *Bank) resolveLocked(override, preference string) (string, bool) {
	for _, name := range []string{override, preference} {
		if name == "" {
			continue
		}
		_, ok := b.backends[name]
		return name, ok
	}
	if b.defaultName != "" {
		if _, ok := b.backends[b.defaultName]; ok {
			return b.defaultName, true
		}
	}
	if len(b.order) > 0 {
		return b.order[0], true
	}
	return "", false
}
