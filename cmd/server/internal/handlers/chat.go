package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/cmd/server/internal/middleware"
	"github.com/taskbuddy/backend/internal/agent"
	"github.com/taskbuddy/backend/internal/config"
	"github.com/taskbuddy/backend/internal/db"
	"github.com/taskbuddy/backend/internal/llm"
	"github.com/taskbuddy/backend/internal/session"
)

const maxChatMessageLen = 2000

// ChatHandler runs the task agent over incoming chat messages and persists
// both sides of the exchange.
type ChatHandler struct {
	engine   *agent.Engine
	sessions *session.Manager
	chats    *db.ChatStore
	cfg      *config.Manager
	logger   *zap.Logger
}

func NewChatHandler(engine *agent.Engine, sessions *session.Manager, chats *db.ChatStore, cfg *config.Manager, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, sessions: sessions, chats: chats, cfg: cfg, logger: logger}
}

type chatRequest struct {
	Message        string `json:"message"`
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id"`
}

type chatResponse struct {
	Response       string         `json:"response"`
	Metadata       map[string]any `json:"metadata"`
	SessionID      string         `json:"session_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())

	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(req.Message) > maxChatMessageLen {
		writeError(w, http.StatusBadRequest, "message too long")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess, err := h.sessions.GetOrCreate(r.Context(), sessionID, caller.UserID.String())
	if err != nil {
		h.logger.Error("Session load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}

	conversationID, ok := h.resolveConversation(w, r, caller.UserID, req)
	if !ok {
		return
	}
	h.persistMessage(r, conversationID, "user", req.Message)

	history := historyTurns(sess.RecentHistory(h.cfg.Agent().HistoryTurnLimit))

	result, err := h.engine.ProcessMessage(r.Context(), caller.UserID, req.Message, history)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not process message")
		return
	}

	now := time.Now().UTC()
	if err := h.sessions.AddTurn(r.Context(), sess.ID, session.Message{Role: "user", Content: req.Message, Timestamp: now}); err != nil {
		h.logger.Warn("Session turn write failed", zap.Error(err))
	}
	if err := h.sessions.AddTurn(r.Context(), sess.ID, session.Message{Role: "assistant", Content: result.Response, Timestamp: now}); err != nil {
		h.logger.Warn("Session turn write failed", zap.Error(err))
	}
	h.persistMessage(r, conversationID, "assistant", result.Response)

	resp := chatResponse{
		Response:  result.Response,
		Metadata:  result.Metadata,
		SessionID: sess.ID,
	}
	if conversationID != uuid.Nil {
		resp.ConversationID = conversationID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveConversation finds or creates the durable conversation record. A
// conversation that cannot be resolved degrades to session-only history
// rather than failing the chat.
func (h *ChatHandler) resolveConversation(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, req chatRequest) (uuid.UUID, bool) {
	if req.ConversationID != "" {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid conversation_id")
			return uuid.Nil, false
		}
		if _, err := h.chats.GetConversation(r.Context(), id, ownerID); err != nil {
			if errors.Is(err, db.ErrConversationNotFound) {
				writeError(w, http.StatusNotFound, "conversation not found")
				return uuid.Nil, false
			}
			h.logger.Warn("Conversation lookup failed", zap.Error(err))
			return uuid.Nil, true
		}
		return id, true
	}

	title := truncateRunes(req.Message, 60)
	conv, err := h.chats.CreateConversation(r.Context(), ownerID, title)
	if err != nil {
		h.logger.Warn("Conversation create failed", zap.Error(err))
		return uuid.Nil, true
	}
	return conv.ID, true
}

func (h *ChatHandler) persistMessage(r *http.Request, conversationID uuid.UUID, role, content string) {
	if conversationID == uuid.Nil {
		return
	}
	if _, err := h.chats.AppendMessage(r.Context(), conversationID, role, content); err != nil {
		h.logger.Warn("Chat message write failed", zap.String("role", role), zap.Error(err))
	}
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())

	conversations, err := h.chats.ListConversations(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("Conversation list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list conversations")
		return
	}
	if conversations == nil {
		conversations = []db.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.chats.GetConversation(r.Context(), id, caller.UserID); err != nil {
		if errors.Is(err, db.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("Conversation lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not fetch conversation")
		return
	}

	messages, err := h.chats.ListMessages(r.Context(), id, 0)
	if err != nil {
		h.logger.Error("Message list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list messages")
		return
	}
	if messages == nil {
		messages = []db.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func historyTurns(msgs []session.Message) []llm.Turn {
	turns := make([]llm.Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = llm.Turn{Role: m.Role, Content: m.Content}
	}
	return turns
}
