package services

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/ideaforge/ideaforge-backend/internal/sse"
)

// fakeAI scripts model responses per call site. Unscripted calls fail loudly
// so a test never silently leans on generation it did not set up.
type fakeAI struct {
	mu        sync.Mutex
	textFn    func(system, user string) (string, error)
	jsonFn    func(system, user, schemaName string) (map[string]any, error)
	textCalls int
	jsonCalls int
}

func (f *fakeAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.textCalls++
	fn := f.textFn
	f.mu.Unlock()
	if fn == nil {
		return "", fmt.Errorf("unscripted GenerateText call")
	}
	return fn(system, user)
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.jsonCalls++
	fn := f.jsonFn
	f.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("unscripted GenerateJSON call for schema %q", schemaName)
	}
	return fn(system, user, schemaName)
}

// memBucket keeps uploads in memory and hands out predictable URLs.
type memBucket struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	failUploads  bool
}

func newMemBucket() *memBucket {
	return &memBucket{
		objects:      map[string][]byte{},
		contentTypes: map[string]string{},
	}
}

func (b *memBucket) UploadFile(ctx context.Context, key string, file io.Reader, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failUploads {
		return fmt.Errorf("upload refused")
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.objects[key] = data
	b.contentTypes[key] = contentType
	return nil
}

func (b *memBucket) DeleteFile(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	delete(b.contentTypes, key)
	return nil
}

func (b *memBucket) SignedURL(ctx context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return "", fmt.Errorf("no object at %s", key)
	}
	return "https://signed.test/" + key, nil
}

func (b *memBucket) GetPublicURL(key string) string {
	return "https://public.test/" + key
}

func (b *memBucket) object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

func (b *memBucket) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// recordingNotifier captures events instead of broadcasting them.
type recordingNotifier struct {
	mu     sync.Mutex
	events []sse.SSEEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, userID uuid.UUID, event sse.SSEEvent, data map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) sawEvent(event sse.SSEEvent) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}
