package services

import (
	"context"

	"github.com/google/uuid"

	redisclient "github.com/ideaforge/ideaforge-backend/internal/clients/redis"
	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/sse"
)

// Notifier pushes progress events to connected clients. With a redis bus
// configured, events go through the bus and every instance's forwarder
// delivers them locally; otherwise they go straight to the local hub.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event sse.SSEEvent, data map[string]any)
}

type sseNotifier struct {
	log *logger.Logger
	hub *sse.SSEHub
	bus redisclient.SSEBus
}

func NewNotifier(log *logger.Logger, hub *sse.SSEHub, bus redisclient.SSEBus) Notifier {
	return &sseNotifier{
		log: log.With("service", "Notifier"),
		hub: hub,
		bus: bus,
	}
}

func (n *sseNotifier) Notify(ctx context.Context, userID uuid.UUID, event sse.SSEEvent, data map[string]any) {
	msg := sse.SSEMessage{
		Channel: userID.String(),
		Event:   event,
		Data:    data,
	}
	if n.bus != nil {
		if err := n.bus.Publish(ctx, msg); err != nil {
			n.log.Warn("failed to publish sse event to bus", "event", event, "error", err)
			n.hub.Broadcast(msg)
		}
		return
	}
	n.hub.Broadcast(msg)
}
