// Package httpapi exposes the request/response surface: user and conversation
// CRUD plus the non-streamed agent fallbacks for clients without a duplex
// channel. Realtime turn processing lives in internal/realtime; everything
// here is a thin layer over the transcript store and the orchestrator.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vocalhost/vocalhost/internal/dialog"
	"github.com/vocalhost/vocalhost/internal/observe"
	"github.com/vocalhost/vocalhost/internal/session"
	"github.com/vocalhost/vocalhost/pkg/provider/stt"
	"github.com/vocalhost/vocalhost/pkg/transcript"
)

// maxAudioUpload caps the accepted size of a transcription upload.
const maxAudioUpload = 25 << 20 // 25 MiB

// Handler serves the REST API.
type Handler struct {
	store transcript.Store
	users transcript.UserStore
	orch  *session.Orchestrator
}

// New creates a Handler over the given store and orchestrator.
func New(store transcript.Store, users transcript.UserStore, orch *session.Orchestrator) *Handler {
	return &Handler{store: store, users: users, orch: orch}
}

// Register attaches all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users", h.createUser)
	mux.HandleFunc("GET /api/users/{id}", h.getUser)

	mux.HandleFunc("POST /api/conversations", h.createConversation)
	mux.HandleFunc("GET /api/conversations/user/{userId}", h.listUserConversations)
	mux.HandleFunc("GET /api/conversations/{id}", h.getConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", h.updateConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.deleteConversation)

	mux.HandleFunc("POST /api/agent/transcribe", h.transcribe)
	mux.HandleFunc("POST /api/agent/message", h.sendMessage)
}

// response is the uniform JSON envelope for every API reply.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Message: message})
}

// writeStoreError maps store and provider errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, transcript.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, transcript.ErrEmptyName):
		writeError(w, http.StatusBadRequest, "name is required")
	case errors.Is(err, stt.ErrUnavailable), errors.Is(err, dialog.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "no provider configured for this capability")
	default:
		observe.Logger(r.Context()).Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		writeStoreError(w, r, err, "failed to create user")
		return
	}
	writeData(w, http.StatusCreated, user)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.User(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err, "failed to fetch user")
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *Handler) createConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string          `json:"userId"`
		Mode        transcript.Mode `json:"mode"`
		TTSProvider string          `json:"ttsProvider"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.Mode == "" {
		writeError(w, http.StatusBadRequest, "userId and mode are required")
		return
	}
	if !req.Mode.IsValid() {
		writeError(w, http.StatusBadRequest, "mode must be casual or interview")
		return
	}

	conv, err := h.store.CreateConversation(r.Context(), req.UserID, req.Mode, req.TTSProvider)
	if err != nil {
		writeStoreError(w, r, err, "failed to create conversation")
		return
	}
	observe.Logger(r.Context()).Info("conversation created",
		"conversation_id", conv.ID, "user_id", conv.UserID, "mode", conv.Mode)
	writeData(w, http.StatusCreated, conv)
}

func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Conversation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err, "failed to fetch conversation")
		return
	}
	writeData(w, http.StatusOK, conv)
}

func (h *Handler) listUserConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.store.ConversationsByUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeStoreError(w, r, err, "failed to fetch conversations")
		return
	}
	if convs == nil {
		convs = []*transcript.Conversation{}
	}
	writeData(w, http.StatusOK, convs)
}

func (h *Handler) updateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive *bool `json:"isActive"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "isActive is required")
		return
	}

	id := r.PathValue("id")
	if err := h.store.SetActive(r.Context(), id, *req.IsActive); err != nil {
		writeStoreError(w, r, err, "failed to update conversation")
		return
	}
	conv, err := h.store.Conversation(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err, "failed to fetch conversation")
		return
	}
	writeData(w, http.StatusOK, conv)
}

func (h *Handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteConversation(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, err, "failed to delete conversation")
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "conversation deleted"})
}

// transcribe accepts a multipart upload with an "audio" part and returns the
// transcript. The MIME type is taken from the part header.
func (h *Handler) transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with an audio part")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no audio file provided")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil || len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "could not read audio file")
		return
	}

	text, err := h.orch.Transcribe(r.Context(), audio, header.Header.Get("Content-Type"))
	if err != nil {
		writeStoreError(w, r, err, "failed to transcribe audio")
		return
	}

	writeData(w, http.StatusOK, map[string]string{"transcript": text})
}

// sendMessage is the non-streamed REST fallback for a text turn. Realtime
// subscribers of the conversation still observe the turn via room events.
func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string `json:"conversationId"`
		Message        string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ConversationID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "conversationId and message are required")
		return
	}

	turn, err := h.orch.Exchange(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		writeStoreError(w, r, err, "failed to process message")
		return
	}

	writeData(w, http.StatusOK, map[string]string{
		"userMessage": req.Message,
		"aiResponse":  turn.Content,
	})
}
