// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Audio: []byte("mp3-bytes"), MIME: "audio/mpeg"}
//	bank := tts.NewBank("stub")
//	bank.Register("stub", p)
package mock

import (
	"context"
	"sync"

	"github.com/vocalhost/vocalhost/pkg/provider/tts"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by Synthesize when Err is nil.
	Audio []byte

	// MIME is returned by MIMEType. Defaults to "audio/mpeg" when empty.
	MIME string

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// SynthesizeCalls records the text of every Synthesize call in order.
	SynthesizeCalls []string
}

// Synthesize records the call and returns Audio, Err.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Audio, nil
}

// MIMEType returns MIME, defaulting to "audio/mpeg".
func (p *Provider) MIMEType() string {
	if p.MIME == "" {
		return "audio/mpeg"
	}
	return p.MIME
}

// CallCount returns the number of recorded Synthesize calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}
