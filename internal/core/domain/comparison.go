package domain

import "time"

// MinComparisonDocuments is the floor on comparison membership. Removal
// that would drop a comparison below this is rejected.
const MinComparisonDocuments = 2

type Comparison struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DocumentIDs []string  `json:"document_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	ID        int64     `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatReply is the persisted assistant turn returned from a chat send.
type ChatReply struct {
	Reply     string `json:"reply"`
	MessageID int64  `json:"message_id"`
}

// ComparisonEntry pairs a document with its extracted report for
// cross-document comparison prompts.
type ComparisonEntry struct {
	DocumentID string
	Filename   string
	Result     *AnalysisResult
}
