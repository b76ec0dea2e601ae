package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
)

type SSEEvent string

const (
	SSEEventIdeaPhaseChanged    SSEEvent = "IdeaPhaseChanged"
	SSEEventGenerationProgress  SSEEvent = "GenerationProgress"
	SSEEventGenerationFailed    SSEEvent = "GenerationFailed"
	SSEEventGenerationCompleted SSEEvent = "GenerationCompleted"
	SSEEventNotification        SSEEvent = "Notification"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Outbound chan SSEMessage
	done     chan struct{}
}

// SSEHub fans messages out to connected clients, keyed by channel (the user
// id string). It is the in-process end of the notification boundary.
type SSEHub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*SSEClient]bool
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		log:           log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*SSEClient]bool),
	}
}

func (hub *SSEHub) NewSSEClient(userID uuid.UUID) *SSEClient {
	client := &SSEClient{
		ID:       uuid.New(),
		UserID:   userID,
		Outbound: make(chan SSEMessage, 16),
		done:     make(chan struct{}),
	}
	hub.subscribe(client, userID.String())
	return client
}

func (hub *SSEHub) subscribe(client *SSEClient, channel string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	clients, ok := hub.subscriptions[channel]
	if !ok {
		clients = make(map[*SSEClient]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true
	hub.log.Debug("SSE client subscribed", "client_id", client.ID, "channel", channel)
}

func (hub *SSEHub) Broadcast(msg SSEMessage) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if msg.Channel == "" {
		return
	}
	clients, ok := hub.subscriptions[msg.Channel]
	if !ok {
		return
	}
	for c := range clients {
		select {
		case c.Outbound <- msg:
		default:
			hub.log.Warn("Dropping SSE message; outbound buffer full", "client_id", c.ID)
		}
	}
}

func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			jsonBytes, err := json.Marshal(msg)
			if err != nil {
				hub.log.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", string(jsonBytes))
			flusher.Flush()
		}
	}
}

func (hub *SSEHub) CloseClient(client *SSEClient) {
	hub.mu.Lock()
	for ch, clients := range hub.subscriptions {
		delete(clients, client)
		if len(clients) == 0 {
			delete(hub.subscriptions, ch)
		}
	}
	hub.mu.Unlock()
	close(client.done)
	close(client.Outbound)
}
