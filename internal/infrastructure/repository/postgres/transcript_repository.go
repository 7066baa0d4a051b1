package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

// TranscriptRepository persists chat history for single documents and
// for comparison groups in two parallel tables.
type TranscriptRepository struct {
	db *sql.DB
}

func NewTranscriptRepository(db *sql.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

func (r *TranscriptRepository) AppendDocumentMessage(ctx context.Context, documentID string, role domain.ChatRole, content string) (int64, error) {
	return r.append(ctx, `
INSERT INTO document_messages (document_id, role, content, created_at)
VALUES ($1,$2,$3,$4)
RETURNING id
`, documentID, role, content)
}

func (r *TranscriptRepository) ListDocumentMessages(ctx context.Context, documentID string) ([]domain.ChatMessage, error) {
	return r.list(ctx, `
SELECT id, role, content, created_at
FROM document_messages
WHERE document_id = $1
ORDER BY id
`, documentID)
}

func (r *TranscriptRepository) ClearDocumentMessages(ctx context.Context, documentID string) (int64, error) {
	return r.clear(ctx, `DELETE FROM document_messages WHERE document_id = $1`, documentID)
}

func (r *TranscriptRepository) AppendComparisonMessage(ctx context.Context, comparisonID string, role domain.ChatRole, content string) (int64, error) {
	return r.append(ctx, `
INSERT INTO comparison_messages (comparison_id, role, content, created_at)
VALUES ($1,$2,$3,$4)
RETURNING id
`, comparisonID, role, content)
}

func (r *TranscriptRepository) ListComparisonMessages(ctx context.Context, comparisonID string) ([]domain.ChatMessage, error) {
	return r.list(ctx, `
SELECT id, role, content, created_at
FROM comparison_messages
WHERE comparison_id = $1
ORDER BY id
`, comparisonID)
}

func (r *TranscriptRepository) ClearComparisonMessages(ctx context.Context, comparisonID string) (int64, error) {
	return r.clear(ctx, `DELETE FROM comparison_messages WHERE comparison_id = $1`, comparisonID)
}

func (r *TranscriptRepository) append(ctx context.Context, query, ownerID string, role domain.ChatRole, content string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, query, ownerID, string(role), content, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	return id, nil
}

func (r *TranscriptRepository) list(ctx context.Context, query, ownerID string) ([]domain.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var role string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Role = domain.ChatRole(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return messages, nil
}

func (r *TranscriptRepository) clear(ctx context.Context, query, ownerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, fmt.Errorf("clear messages: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear messages rows affected: %w", err)
	}
	return deleted, nil
}
