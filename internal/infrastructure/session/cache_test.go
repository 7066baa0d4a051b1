package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
)

type scriptedConversation struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	replies []string
}

func (s *scriptedConversation) Send(context.Context, string) (string, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	s.mu.Lock()
	s.active--
	reply := "ok"
	s.replies = append(s.replies, reply)
	s.mu.Unlock()
	return reply, nil
}

func TestCachePutGetInvalidate(t *testing.T) {
	cache := NewCache()
	entry := ports.NewChatSession(&scriptedConversation{}, nil)

	if _, ok := cache.Get("doc-1"); ok {
		t.Fatalf("expected empty cache")
	}
	cache.Put("doc-1", entry)
	got, ok := cache.Get("doc-1")
	if !ok || got != entry {
		t.Fatalf("expected stored session back")
	}
	cache.Invalidate("doc-1")
	if _, ok := cache.Get("doc-1"); ok {
		t.Fatalf("expected session invalidated")
	}
}

func TestSessionSerializesSends(t *testing.T) {
	conv := &scriptedConversation{}
	entry := ports.NewChatSession(conv, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := entry.Send(context.Background(), "turn"); err != nil {
				t.Errorf("Send() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if conv.maxSeen != 1 {
		t.Fatalf("expected serialized sends, saw %d concurrent", conv.maxSeen)
	}
	if len(conv.replies) != 16 {
		t.Fatalf("expected 16 replies, got %d", len(conv.replies))
	}
}
