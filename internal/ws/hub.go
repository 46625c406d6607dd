// Package ws fans task sync events out to a user's connected clients.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/internal/metrics"
)

// Event types pushed to clients.
const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"
)

// Event is one sync message pushed over the socket.
type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // secured via proxy in prod
}

// Hub provides in-memory per-user pub/sub for sync events.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	logger      *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe adds a subscriber channel for a user; caller must drain and call
// Unsubscribe.
func (h *Hub) Subscribe(userID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[userID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		h.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	metrics.WebSocketClients.Inc()
	return ch
}

// Unsubscribe removes the subscriber channel and closes it.
func (h *Hub) Unsubscribe(userID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[userID]; ok {
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		metrics.WebSocketClients.Dec()
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
}

// Broadcast sends an event to all of one user's connections, never to other
// users. Non-blocking: slow subscribers drop events.
func (h *Hub) Broadcast(ctx context.Context, eventType string, payload map[string]any, userID string) error {
	evt := Event{
		Type:      eventType,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}

	// Send while holding the read lock so Unsubscribe cannot close a channel
	// mid-send. The sends never block, so the lock is held only briefly.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[userID] {
		select {
		case ch <- evt:
			metrics.BroadcastsSent.WithLabelValues(eventType).Inc()
		default:
			metrics.BroadcastsDropped.Inc()
		}
	}
	return nil
}

// ServeClient upgrades the request and pumps events for userID until the
// client goes away.
func (h *Hub) ServeClient(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := h.Subscribe(userID, 256)
	defer h.Unsubscribe(userID, ch)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	// Reader pump (discard client messages)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Writer pump
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
