package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vocalhost/vocalhost/pkg/provider/stt"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") expected error, got nil")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("Authorization = %q, want %q", got, "Token test-key")
		}
		if got := r.Header.Get("Content-Type"); got != "audio/webm" {
			t.Errorf("Content-Type = %q, want %q", got, "audio/webm")
		}
		q := r.URL.Query()
		if got := q.Get("model"); got != "nova-2" {
			t.Errorf("model = %q, want %q", got, "nova-2")
		}
		if got := q.Get("smart_format"); got != "true" {
			t.Errorf("smart_format = %q, want %q", got, "true")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"hello there"}]}]}}`))
	}))
	defer srv.Close()

	p, err := New("test-key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	text, err := p.Transcribe(context.Background(), []byte("fake-audio"), "audio/webm")
	if err != nil {
		t.Fatalf("Transcribe() unexpected error: %v", err)
	}
	if text != "hello there" {
		t.Errorf("Transcribe() = %q, want %q", text, "hello there")
	}
}

func TestTranscribeEmptyTranscript(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"  "}]}]}}`))
	}))
	defer srv.Close()

	p, err := New("test-key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	_, err = p.Transcribe(context.Background(), []byte("fake-audio"), "audio/webm")
	if !errors.Is(err, stt.ErrNoTranscript) {
		t.Errorf("Transcribe() error = %v, want %v", err, stt.ErrNoTranscript)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	t.Parallel()

	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	_, err = p.Transcribe(context.Background(), nil, "audio/webm")
	if !errors.Is(err, stt.ErrNoTranscript) {
		t.Errorf("Transcribe() error = %v, want %v", err, stt.ErrNoTranscript)
	}
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New("bad-key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	if _, err := p.Transcribe(context.Background(), []byte("fake-audio"), "audio/webm"); err == nil {
		t.Fatal("Transcribe() expected error on 401, got nil")
	}
}
