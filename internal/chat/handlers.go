package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akgaur12/converse/internal/auth"
	"github.com/akgaur12/converse/internal/chat/pipeline"
	"github.com/akgaur12/converse/pkg/llm"
	"github.com/akgaur12/converse/pkg/plugin"
	"github.com/akgaur12/converse/pkg/roles"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExecuteQueryRequest is the request body for POST /execute_user_query.
type ExecuteQueryRequest struct {
	Query          string `json:"user_query" example:"What's the weather in Delhi today?"`
	Service        string `json:"service_name,omitempty" example:"chat"`
	ConversationID string `json:"conversation_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// ExecuteQueryResponse is the response for POST /execute_user_query.
type ExecuteQueryResponse struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// ConversationDetail is a conversation with its full turn list.
type ConversationDetail struct {
	*Conversation
	Turns []*Turn `json:"turns"`
}

// CreateConversationRequest is the request body for POST /conversations.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty" example:"Trip Planning"`
}

// RenameConversationRequest is the request body for the rename endpoints.
type RenameConversationRequest struct {
	Title string `json:"title" example:"Go Concurrency Basics"`
}

// handleExecuteQuery runs a query through the pipeline and persists the turn.
//
//	@Summary		Execute user query
//	@Description	Routes the query through the response pipeline, persists the turn, and returns the reply.
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request body ExecuteQueryRequest true "Query"
//	@Success		201 {object} ExecuteQueryResponse
//	@Failure		400 {object} map[string]any
//	@Failure		404 {object} map[string]any
//	@Failure		502 {object} map[string]any
//	@Router			/chat/execute_user_query [post]
func (m *Module) handleExecuteQuery(w http.ResponseWriter, r *http.Request) {
	claims, req, ok := m.parseExecuteRequest(w, r)
	if !ok {
		return
	}

	st, convID, ok := m.prepareState(w, r, claims, req)
	if !ok {
		return
	}

	p, err := m.newPipeline()
	if err != nil {
		m.logger.Error("pipeline construction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query execution is not available")
		return
	}

	out, err := p.Run(r.Context(), st)
	if err != nil {
		m.logger.Error("pipeline failed",
			zap.String("service", st.Service),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "the model backend failed to produce a response")
		return
	}

	convID, err = m.persistTurn(r, claims, req, convID, out)
	if err != nil {
		m.logger.Error("persist turn failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save the conversation turn")
		return
	}

	writeJSON(w, http.StatusCreated, ExecuteQueryResponse{
		ConversationID: convID,
		Message:        out.Response,
	})
}

// streamEvent is one SSE payload on the query stream.
type streamEvent struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

// handleExecuteQueryStream is the SSE variant of handleExecuteQuery.
// Content fragments stream as they arrive; the turn is persisted after
// the last fragment and acknowledged with a single metadata event.
//
//	@Summary		Execute user query (streaming)
//	@Description	Streams the reply as server-sent events, then a metadata event with the conversation ID.
//	@Tags			chat
//	@Accept			json
//	@Produce		text/event-stream
//	@Security		BearerAuth
//	@Param			request body ExecuteQueryRequest true "Query"
//	@Success		200 {string} string "event stream"
//	@Failure		400 {object} map[string]any
//	@Failure		404 {object} map[string]any
//	@Router			/chat/execute_user_query/stream [post]
func (m *Module) handleExecuteQueryStream(w http.ResponseWriter, r *http.Request) {
	claims, req, ok := m.parseExecuteRequest(w, r)
	if !ok {
		return
	}

	st, convID, ok := m.prepareState(w, r, claims, req)
	if !ok {
		return
	}

	p, err := m.newPipeline()
	if err != nil {
		m.logger.Error("pipeline construction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query execution is not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Generation can outlive the server's write deadline; clear it for
	// the lifetime of this stream so slow models are not cut off.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(ev streamEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	out, err := p.RunStream(r.Context(), st, func(fragment string) error {
		return emit(streamEvent{Type: "content", Content: fragment})
	})
	if err != nil {
		m.logger.Error("pipeline stream failed",
			zap.String("service", st.Service),
			zap.Error(err),
		)
		_ = emit(streamEvent{Type: "error", Detail: "the model backend failed to produce a response"})
		return
	}

	convID, err = m.persistTurn(r, claims, req, convID, out)
	if err != nil {
		m.logger.Error("persist turn failed", zap.Error(err))
		_ = emit(streamEvent{Type: "error", Detail: "failed to save the conversation turn"})
		return
	}

	_ = emit(streamEvent{Type: "metadata", ConversationID: convID})
}

// parseExecuteRequest decodes and validates the shared execute-query input.
func (m *Module) parseExecuteRequest(w http.ResponseWriter, r *http.Request) (*auth.Claims, ExecuteQueryRequest, bool) {
	claims := auth.UserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, ExecuteQueryRequest{}, false
	}

	var req ExecuteQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, req, false
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return nil, req, false
	}
	if !m.serviceAllowed(req.Service) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Service '%s' not supported", req.Service))
		return nil, req, false
	}
	return claims, req, true
}

// prepareState validates the conversation reference and loads recent
// history into a pipeline state.
func (m *Module) prepareState(w http.ResponseWriter, r *http.Request, claims *auth.Claims, req ExecuteQueryRequest) (pipeline.State, string, bool) {
	st := pipeline.State{
		Service:   req.Service,
		UserInput: req.Query,
	}

	history := []*Turn{}
	if req.ConversationID != "" {
		if _, err := uuid.Parse(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid conversation ID")
			return st, "", false
		}

		turns, err := m.store.RecentTurns(r.Context(), claims.UserID, req.ConversationID, m.cfg.HistoryLimit)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return st, "", false
		}
		if err != nil {
			m.logger.Error("load history failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load conversation history")
			return st, "", false
		}
		history = turns
	}

	st.Messages = buildMessages(m.cfg.AssistantName, history, req.Query)
	return st, req.ConversationID, true
}

// persistTurn creates the conversation on first use and appends the turn,
// publishing lifecycle events on the bus.
func (m *Module) persistTurn(r *http.Request, claims *auth.Claims, req ExecuteQueryRequest, convID string, out pipeline.State) (string, error) {
	if convID == "" {
		title := generateTitle(r.Context(), m.titleProvider(), req.Query, m.cfg.TitleMaxLen)
		conv, err := m.store.CreateConversation(r.Context(), claims.UserID, title)
		if err != nil {
			return "", err
		}
		convID = conv.ID

		m.publish(TopicConversationCreated, ConversationCreatedEvent{
			UserID:         claims.UserID,
			ConversationID: conv.ID,
			Title:          conv.Title,
		})
	}

	turn := &Turn{
		ChatID:        convID,
		UserText:      req.Query,
		AssistantText: out.Response,
		InputTokens:   out.InputTokens,
		OutputTokens:  out.OutputTokens,
		ResponseTime:  out.ResponseTime,
	}
	if err := m.store.AppendTurn(r.Context(), claims.UserID, turn); err != nil {
		return "", err
	}

	m.publish(TopicTurnAppended, TurnAppendedEvent{
		UserID:         claims.UserID,
		ConversationID: convID,
		Seq:            turn.Seq,
		Service:        out.Service,
	})
	return convID, nil
}

// titleProvider returns the active LLM provider, or nil when none is
// registered; title generation degrades to the query prefix.
func (m *Module) titleProvider() llm.Provider {
	for _, p := range m.plugins.ResolveByRole(roles.RoleLLM) {
		if lp, ok := p.(roles.LLMProvider); ok {
			return lp.Provider()
		}
	}
	return nil
}

func (m *Module) publish(topic string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(context.Background(), plugin.Event{
		Topic:     topic,
		Source:    "chat",
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// buildMessages assembles the provider message list: system prompt,
// historical turn pairs in order, then the current query.
func buildMessages(assistantName string, history []*Turn, query string) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(history)+2)
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf("You are %s, a helpful AI assistant. Answer clearly and concisely.", assistantName),
	})
	for _, t := range history {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.UserText},
			llm.Message{Role: llm.RoleAssistant, Content: t.AssistantText},
		)
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: query})
}

// handleCreateConversation creates an empty conversation.
//
//	@Summary		Create conversation
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request body CreateConversationRequest false "Optional title"
//	@Success		201 {object} Conversation
//	@Router			/chat/conversations [post]
func (m *Module) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	claims := auth.UserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateConversationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	conv, err := m.store.CreateConversation(r.Context(), claims.UserID, truncate(req.Title, m.cfg.TitleMaxLen))
	if err != nil {
		m.logger.Error("create conversation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	m.publish(TopicConversationCreated, ConversationCreatedEvent{
		UserID:         claims.UserID,
		ConversationID: conv.ID,
		Title:          conv.Title,
	})

	writeJSON(w, http.StatusCreated, conv)
}

// handleListConversations lists the caller's conversations.
//
//	@Summary		List conversations
//	@Tags			chat
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {array} Conversation
//	@Router			/chat/conversations [get]
func (m *Module) handleListConversations(w http.ResponseWriter, r *http.Request) {
	claims := auth.UserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convs, err := m.store.ListConversations(r.Context(), claims.UserID)
	if err != nil {
		m.logger.Error("list conversations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// handleGetConversation returns a conversation with its full turn list.
//
//	@Summary		Get conversation
//	@Tags			chat
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id path string true "Conversation ID"
//	@Success		200 {object} ConversationDetail
//	@Failure		400 {object} map[string]any
//	@Failure		404 {object} map[string]any
//	@Router			/chat/conversations/{id} [get]
func (m *Module) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	claims, id, ok := m.conversationRef(w, r)
	if !ok {
		return
	}

	conv, err := m.store.GetConversation(r.Context(), claims.UserID, id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		m.logger.Error("get conversation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	turns, err := m.store.ListTurns(r.Context(), claims.UserID, id)
	if err != nil {
		m.logger.Error("list turns failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	writeJSON(w, http.StatusOK, ConversationDetail{Conversation: conv, Turns: turns})
}

// handleRenameConversation sets a conversation title.
//
//	@Summary		Rename conversation
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id path string true "Conversation ID"
//	@Param			request body RenameConversationRequest true "New title"
//	@Success		200 {object} Conversation
//	@Failure		400 {object} map[string]any
//	@Failure		404 {object} map[string]any
//	@Router			/chat/conversations/{id}/rename [put]
func (m *Module) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	claims, id, ok := m.conversationRef(w, r)
	if !ok {
		return
	}

	var req RenameConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}

	title := truncate(req.Title, m.cfg.TitleMaxLen)
	err := m.store.RenameConversation(r.Context(), claims.UserID, id, title)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		m.logger.Error("rename conversation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to rename conversation")
		return
	}

	conv, err := m.store.GetConversation(r.Context(), claims.UserID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// handleDeleteConversation deletes a conversation and its turns.
//
//	@Summary		Delete conversation
//	@Tags			chat
//	@Security		BearerAuth
//	@Param			id path string true "Conversation ID"
//	@Success		204
//	@Failure		400 {object} map[string]any
//	@Failure		404 {object} map[string]any
//	@Router			/chat/conversations/{id} [delete]
func (m *Module) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	claims, id, ok := m.conversationRef(w, r)
	if !ok {
		return
	}

	err := m.store.DeleteConversation(r.Context(), claims.UserID, id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		m.logger.Error("delete conversation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// conversationRef extracts the caller and a validated conversation ID
// from the request.
func (m *Module) conversationRef(w http.ResponseWriter, r *http.Request) (*auth.Claims, string, bool) {
	claims := auth.UserFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, "", false
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return nil, "", false
	}
	return claims, id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://converse.dev/problems/" + problemSlug(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

func problemSlug(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "-")
}
