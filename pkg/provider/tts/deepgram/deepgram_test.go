package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vocalhost/vocalhost/pkg/provider/tts"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") expected error, got nil")
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("Authorization = %q, want %q", got, "Token test-key")
		}
		q := r.URL.Query()
		if got := q.Get("model"); got != "aura-2-thalia-en" {
			t.Errorf("model = %q, want %q", got, "aura-2-thalia-en")
		}
		if got := q.Get("encoding"); got != "linear16" {
			t.Errorf("encoding = %q, want %q", got, "linear16")
		}
		if got := q.Get("container"); got != "wav" {
			t.Errorf("container = %q, want %q", got, "wav")
		}

		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body.Text != "good morning" {
			t.Errorf("text = %q, want %q", body.Text, "good morning")
		}

		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFF-fake-wav"))
	}))
	defer srv.Close()

	p, err := New("test-key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	audio, err := p.Synthesize(context.Background(), "good morning")
	if err != nil {
		t.Fatalf("Synthesize() unexpected error: %v", err)
	}
	if string(audio) != "RIFF-fake-wav" {
		t.Errorf("Synthesize() = %q, want %q", audio, "RIFF-fake-wav")
	}
	if got := p.MIMEType(); got != "audio/wav" {
		t.Errorf("MIMEType() = %q, want %q", got, "audio/wav")
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	t.Parallel()

	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	_, err = p.Synthesize(context.Background(), "")
	if !errors.Is(err, tts.ErrNoAudio) {
		t.Errorf("Synthesize() error = %v, want %v", err, tts.ErrNoAudio)
	}
}

func TestSynthesizeEmptyBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := New("test-key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	_, err = p.Synthesize(context.Background(), "hello")
	if !errors.Is(err, tts.ErrNoAudio) {
		t.Errorf("Synthesize() error = %v, want %v", err, tts.ErrNoAudio)
	}
}

func TestSynthesizeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := New("test-key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	if _, err := p.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("Synthesize() expected error on 429, got nil")
	}
}
