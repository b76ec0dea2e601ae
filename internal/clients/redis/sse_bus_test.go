package redis

import (
	"testing"

	"github.com/ideaforge/ideaforge-backend/internal/sse"
)

func TestDecodeMessage(t *testing.T) {
	msg, err := decodeMessage(`{"channel":"user-1","event":"GenerationCompleted","data":{"idea_id":"abc"}}`)
	if err != nil {
		t.Fatalf("decodeMessage: %v", err)
	}
	if msg.Channel != "user-1" || msg.Event != sse.SSEEventGenerationCompleted {
		t.Fatalf("decoded message: %+v", msg)
	}

	if _, err := decodeMessage(`not json`); err == nil {
		t.Fatalf("malformed payload must be rejected")
	}
	// A message without a channel cannot be delivered by the hub.
	if _, err := decodeMessage(`{"event":"GenerationCompleted"}`); err == nil {
		t.Fatalf("channel-less payload must be rejected")
	}
}
