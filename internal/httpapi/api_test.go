package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vocalhost/vocalhost/internal/dialog"
	"github.com/vocalhost/vocalhost/internal/session"
	llmmock "github.com/vocalhost/vocalhost/pkg/provider/llm/mock"
	"github.com/vocalhost/vocalhost/pkg/provider/stt"
	sttmock "github.com/vocalhost/vocalhost/pkg/provider/stt/mock"
	"github.com/vocalhost/vocalhost/pkg/transcript"
	"github.com/vocalhost/vocalhost/pkg/transcript/memstore"
)

// discardPublisher drops room events; REST tests do not assert fan-out.
type discardPublisher struct{}

func (discardPublisher) Publish(string, string, any) {}

type apiFixture struct {
	store *memstore.Store
	srv   *httptest.Server
}

func newAPIFixture(t *testing.T, sttProvider *sttmock.Provider) *apiFixture {
	t.Helper()

	store := memstore.New()
	provider := &llmmock.Provider{CompleteResponse: "Sure, happy to help!"}

	// Avoid the typed-nil interface trap when no STT backend is wanted.
	var orchSTT stt.Provider
	if sttProvider != nil {
		orchSTT = sttProvider
	}

	orch := session.New(store, dialog.NewResponder(provider, "openai"),
		orchSTT, "whisper", nil, discardPublisher{}, nil)

	mux := http.NewServeMux()
	New(store, store, orch).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &apiFixture{store: store, srv: srv}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, parsed
}

func (f *apiFixture) createUser(t *testing.T) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, f.srv.URL+"/api/users",
		map[string]string{"name": "ada", "email": "ada@example.com"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user status = %d", resp.StatusCode)
	}
	var u transcript.User
	if err := json.Unmarshal(body.Data, &u); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}
	return u.ID
}

func (f *apiFixture) createConversation(t *testing.T, userID string) transcript.Conversation {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, f.srv.URL+"/api/conversations",
		map[string]string{"userId": userID, "mode": "casual"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create conversation status = %d, body %s", resp.StatusCode, body.Message)
	}
	var c transcript.Conversation
	if err := json.Unmarshal(body.Data, &c); err != nil {
		t.Fatalf("unmarshal conversation: %v", err)
	}
	return c
}

func TestUserLifecycle(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	id := f.createUser(t)

	resp, body := doJSON(t, http.MethodGet, f.srv.URL+"/api/users/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get user status = %d", resp.StatusCode)
	}
	var u transcript.User
	if err := json.Unmarshal(body.Data, &u); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}
	if u.Name != "ada" || u.Email != "ada@example.com" {
		t.Errorf("user = %+v", u)
	}

	resp, _ = doJSON(t, http.MethodGet, f.srv.URL+"/api/users/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateUserValidation(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)

	// Email is optional.
	resp, _ := doJSON(t, http.MethodPost, f.srv.URL+"/api/users", map[string]string{"name": "ada"})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("name-only status = %d, want 201", resp.StatusCode)
	}

	// Name is not.
	resp, _ = doJSON(t, http.MethodPost, f.srv.URL+"/api/users", map[string]string{"email": "ada@example.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing-name status = %d, want 400", resp.StatusCode)
	}
}

func TestConversationLifecycle(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	userID := f.createUser(t)
	conv := f.createConversation(t, userID)

	if conv.Mode != transcript.ModeCasual || !conv.IsActive {
		t.Errorf("created conversation = %+v", conv)
	}

	// Fetch by id.
	resp, _ := doJSON(t, http.MethodGet, f.srv.URL+"/api/conversations/"+conv.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get conversation status = %d", resp.StatusCode)
	}

	// List by user.
	resp, body := doJSON(t, http.MethodGet, f.srv.URL+"/api/conversations/user/"+userID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var convs []transcript.Conversation
	if err := json.Unmarshal(body.Data, &convs); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != conv.ID {
		t.Errorf("list = %+v", convs)
	}

	// Deactivate.
	resp, body = doJSON(t, http.MethodPatch, f.srv.URL+"/api/conversations/"+conv.ID,
		map[string]bool{"isActive": false})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	var updated transcript.Conversation
	if err := json.Unmarshal(body.Data, &updated); err != nil {
		t.Fatalf("unmarshal updated: %v", err)
	}
	if updated.IsActive {
		t.Error("conversation still active after patch")
	}

	// Delete, then confirm gone.
	resp, _ = doJSON(t, http.MethodDelete, f.srv.URL+"/api/conversations/"+conv.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, f.srv.URL+"/api/conversations/"+conv.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted conversation status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateConversationValidation(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	userID := f.createUser(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"unknown user", map[string]string{"userId": "ghost", "mode": "casual"}, http.StatusNotFound},
		{"missing mode", map[string]string{"userId": userID}, http.StatusBadRequest},
		{"bad mode", map[string]string{"userId": userID, "mode": "debate"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, http.MethodPost, f.srv.URL+"/api/conversations", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestAgentMessage(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	userID := f.createUser(t)
	conv := f.createConversation(t, userID)

	resp, body := doJSON(t, http.MethodPost, f.srv.URL+"/api/agent/message",
		map[string]string{"conversationId": conv.ID, "message": "Hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, message %q", resp.StatusCode, body.Message)
	}

	var data map[string]string
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data["userMessage"] != "Hi" || data["aiResponse"] != "Sure, happy to help!" {
		t.Errorf("data = %v", data)
	}

	// Both turns persisted.
	turns, err := f.store.RecentTurns(context.Background(), conv.ID, 0)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Errorf("persisted turns = %d, want 2", len(turns))
	}
}

func TestAgentMessageUnknownConversation(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	resp, _ := doJSON(t, http.MethodPost, f.srv.URL+"/api/agent/message",
		map[string]string{"conversationId": "ghost", "message": "Hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAgentTranscribe(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, &sttmock.Provider{Transcript: "hello from audio"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "clip.webm")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fmt.Fprint(part, "fake-audio-bytes")
	mw.Close()

	resp, err := http.Post(f.srv.URL+"/api/agent/transcribe", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var data map[string]string
	if err := json.Unmarshal(parsed.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data["transcript"] != "hello from audio" {
		t.Errorf("transcript = %q", data["transcript"])
	}
}

func TestAgentTranscribeNoProvider(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("audio", "clip.webm")
	fmt.Fprint(part, "fake-audio-bytes")
	mw.Close()

	resp, err := http.Post(f.srv.URL+"/api/agent/transcribe", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestAgentTranscribeMissingFile(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, &sttmock.Provider{Transcript: "x"})

	resp, err := http.Post(f.srv.URL+"/api/agent/transcribe", "application/json",
		strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
