package ports

import (
	"context"
	"sync"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

// ChatSession is one live conversation bound to a set of resolved remote
// files. Sends within one session are serialized so transcript order
// matches send order.
type ChatSession struct {
	Conversation Conversation
	Files        []domain.RemoteFile

	mu sync.Mutex
}

func NewChatSession(conversation Conversation, files []domain.RemoteFile) *ChatSession {
	return &ChatSession{Conversation: conversation, Files: files}
}

func (s *ChatSession) Send(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conversation.Send(ctx, message)
}

// SessionCache holds live chat sessions keyed by document or comparison
// id. Entries never expire on their own; invalidation is explicit.
type SessionCache interface {
	Get(key string) (*ChatSession, bool)
	Put(key string, session *ChatSession)
	Invalidate(key string)
}
