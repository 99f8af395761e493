// Package realtime carries the bidirectional event protocol over WebSocket:
// JSON text frames holding an [Envelope], fan-out per conversation room via
// [Hub], and turn processing delegated to the session orchestrator.
package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/vocalhost/vocalhost/internal/observe"
	"github.com/vocalhost/vocalhost/internal/session"
)

// defaultAudioMIME is assumed when a voice_input frame omits mimeType.
const defaultAudioMIME = "audio/webm"

// Server upgrades HTTP requests to WebSocket connections and speaks the
// realtime protocol on them.
type Server struct {
	hub     *Hub
	orch    *session.Orchestrator
	metrics *observe.Metrics
}

// NewServer creates a realtime Server over hub and orch. metrics may be nil.
func NewServer(hub *Hub, orch *session.Orchestrator, metrics *observe.Metrics) *Server {
	return &Server{hub: hub, orch: orch, metrics: metrics}
}

// ServeHTTP implements http.Handler by upgrading to WebSocket and running the
// connection's read loop until the client goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The browser client is served from another origin in development.
		InsecureSkipVerify: true,
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}

	ctx := r.Context()
	c := &wsClient{ws: ws, ctx: ctx}

	if s.metrics != nil {
		s.metrics.ActiveConnections.Add(ctx, 1)
		defer s.metrics.ActiveConnections.Add(ctx, -1)
	}
	defer s.hub.UnsubscribeAll(c)
	defer ws.Close(websocket.StatusNormalClosure, "")

	s.readLoop(ctx, c)
}

// readLoop consumes frames until the connection closes. Turn events run in
// their own goroutines so a long-running turn does not stall frames for other
// conversations on the same connection; per-conversation ordering is enforced
// by the orchestrator's turn locks.
func (s *Server) readLoop(ctx context.Context, c *wsClient) {
	var turns sync.WaitGroup
	defer turns.Wait()

	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.Send(session.EventError, session.ErrorPayload{Message: "malformed frame"})
			continue
		}

		switch env.Event {
		case session.EventJoinConversation:
			s.handleJoin(ctx, c, env.Data)
		case session.EventSendMessage, session.EventVoiceInput:
			turns.Add(1)
			go func(env Envelope) {
				defer turns.Done()
				s.handleTurn(ctx, c, env)
			}(env)
		default:
			c.Send(session.EventError, session.ErrorPayload{Message: "unknown event: " + env.Event})
		}
	}
}

func (s *Server) handleJoin(ctx context.Context, c *wsClient, data json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		c.Send(session.EventError, session.ErrorPayload{Message: "invalid join_conversation payload"})
		return
	}

	conv, err := s.orch.Join(ctx, p.ConversationID)
	if err != nil {
		observe.Logger(ctx).Warn("join rejected", "conversation_id", p.ConversationID, "error", err)
		c.Send(session.EventError, session.ErrorPayload{Message: "conversation not found"})
		return
	}

	s.hub.Subscribe(conv.ID, c)
	c.Send(session.EventJoinedConversation, session.JoinedPayload{
		ConversationID: conv.ID,
		Mode:           conv.Mode,
	})
}

func (s *Server) handleTurn(ctx context.Context, c *wsClient, env Envelope) {
	switch env.Event {
	case session.EventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == "" || p.Message == "" {
			c.Send(session.EventError, session.ErrorPayload{Message: "invalid send_message payload"})
			return
		}
		if err := s.orch.TextTurn(ctx, p.ConversationID, p.Message, c); err != nil {
			observe.Logger(ctx).Error("text turn failed", "conversation_id", p.ConversationID, "error", err)
		}

	case session.EventVoiceInput:
		var p VoiceInputPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == "" || p.AudioBuffer == "" {
			c.Send(session.EventError, session.ErrorPayload{Message: "invalid voice_input payload"})
			return
		}
		audio, err := base64.StdEncoding.DecodeString(p.AudioBuffer)
		if err != nil || len(audio) == 0 {
			c.Send(session.EventError, session.ErrorPayload{Message: "audio buffer is not valid base64"})
			return
		}
		mime := p.MIMEType
		if mime == "" {
			mime = defaultAudioMIME
		}
		if err := s.orch.VoiceTurn(ctx, p.ConversationID, audio, mime, c); err != nil {
			observe.Logger(ctx).Error("voice turn failed", "conversation_id", p.ConversationID, "error", err)
		}
	}
}

// wsClient wraps one WebSocket connection. It implements both [Subscriber]
// for room fan-out and session.Notifier for caller-scoped events. Writes are
// serialized by a mutex since turns and fan-out run on different goroutines.
type wsClient struct {
	ws  *websocket.Conn
	ctx context.Context

	writeMu sync.Mutex
}

var (
	_ Subscriber       = (*wsClient)(nil)
	_ session.Notifier = (*wsClient)(nil)
)

// Send marshals an [Envelope] and writes it as a text frame. Errors are
// swallowed: a dead connection is detected by the read loop, and delivery to
// the remaining room subscribers must not be disturbed.
func (c *wsClient) Send(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.Write(c.ctx, websocket.MessageText, frame)
}

// Notify implements session.Notifier.
func (c *wsClient) Notify(event string, data any) {
	c.Send(event, data)
}
