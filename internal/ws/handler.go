// Package ws pushes chat lifecycle events to connected clients over
// WebSocket so sidebars update in real time without polling.
package ws

import (
	"context"
	"net/http"

	"github.com/akgaur12/converse/internal/auth"
	"github.com/akgaur12/converse/internal/chat"
	"github.com/akgaur12/converse/pkg/plugin"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Handler provides the WebSocket endpoint for real-time chat events.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenService
	bus    plugin.EventBus
	logger *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to chat events.
func NewHandler(tokens *auth.TokenService, bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		tokens: tokens,
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/events", h.handleEventStream)
}

// handleEventStream upgrades the connection to WebSocket and streams the
// caller's chat events.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	// Validate JWT from query parameter (browser WS API doesn't support headers).
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token parameter", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	// Accept WebSocket upgrade.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Allow any origin since we validate via JWT token.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		userID: claims.UserID,
		send:   make(chan Message, 256),
		logger: h.logger,
	}

	h.hub.Register(client)

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	// Client disconnected -- stop write pump and unregister.
	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents forwards chat lifecycle events to the owning user's
// connected clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.bus.Subscribe(chat.TopicConversationCreated, func(_ context.Context, event plugin.Event) {
		ev, ok := event.Payload.(chat.ConversationCreatedEvent)
		if !ok {
			return
		}
		h.hub.BroadcastToUser(ev.UserID, Message{
			Type:           MessageConversationCreated,
			ConversationID: ev.ConversationID,
			Timestamp:      event.Timestamp,
			Data: ConversationCreatedData{
				Title: ev.Title,
			},
		})
	})

	h.bus.Subscribe(chat.TopicTurnAppended, func(_ context.Context, event plugin.Event) {
		ev, ok := event.Payload.(chat.TurnAppendedEvent)
		if !ok {
			return
		}
		h.hub.BroadcastToUser(ev.UserID, Message{
			Type:           MessageTurnAppended,
			ConversationID: ev.ConversationID,
			Timestamp:      event.Timestamp,
			Data: TurnAppendedData{
				Seq:     ev.Seq,
				Service: ev.Service,
			},
		})
	})

	h.logger.Info("subscribed to chat events for WebSocket broadcasting")
}
