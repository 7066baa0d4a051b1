package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

type ComparisonRepository struct {
	db *sql.DB
}

func NewComparisonRepository(db *sql.DB) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

func (r *ComparisonRepository) Create(ctx context.Context, cmp *domain.Comparison) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO comparisons (id, name, created_at)
VALUES ($1,$2,$3)
`, cmp.ID, cmp.Name, cmp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comparison: %w", err)
	}

	for pos, docID := range cmp.DocumentIDs {
		_, err = tx.ExecContext(ctx, `
INSERT INTO comparison_documents (comparison_id, document_id, position)
VALUES ($1,$2,$3)
`, cmp.ID, docID, pos)
		if err != nil {
			return fmt.Errorf("insert comparison member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

func (r *ComparisonRepository) GetByID(ctx context.Context, id string) (*domain.Comparison, error) {
	var cmp domain.Comparison
	err := r.db.QueryRowContext(ctx, `
SELECT id, name, created_at
FROM comparisons
WHERE id = $1
`, id).Scan(&cmp.ID, &cmp.Name, &cmp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrComparisonNotFound, "get comparison", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan comparison: %w", err)
	}

	cmp.DocumentIDs, err = r.memberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return &cmp, nil
}

func (r *ComparisonRepository) List(ctx context.Context) ([]domain.Comparison, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, created_at
FROM comparisons
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list comparisons: %w", err)
	}
	defer rows.Close()

	var cmps []domain.Comparison
	for rows.Next() {
		var cmp domain.Comparison
		if err := rows.Scan(&cmp.ID, &cmp.Name, &cmp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comparison row: %w", err)
		}
		cmps = append(cmps, cmp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparison rows: %w", err)
	}

	for i := range cmps {
		cmps[i].DocumentIDs, err = r.memberIDs(ctx, cmps[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return cmps, nil
}

func (r *ComparisonRepository) AddDocument(ctx context.Context, comparisonID, documentID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO comparison_documents (comparison_id, document_id, position)
SELECT $1, $2, COALESCE(MAX(position), -1) + 1
FROM comparison_documents
WHERE comparison_id = $1
`, comparisonID, documentID)
	if err != nil {
		return fmt.Errorf("add comparison member: %w", err)
	}
	return nil
}

// RemoveDocument rejects removals that would leave the comparison with
// fewer than the minimum member count. The count check and the delete
// run in one transaction.
func (r *ComparisonRepository) RemoveDocument(ctx context.Context, comparisonID, documentID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var count int
	err = tx.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM comparison_documents
WHERE comparison_id = $1
`, comparisonID).Scan(&count)
	if err != nil {
		return fmt.Errorf("count comparison members: %w", err)
	}
	if count <= domain.MinComparisonDocuments {
		return domain.WrapError(domain.ErrInvalidInput, "remove comparison member",
			fmt.Errorf("comparison must keep at least %d documents", domain.MinComparisonDocuments))
	}

	res, err := tx.ExecContext(ctx, `
DELETE FROM comparison_documents
WHERE comparison_id = $1 AND document_id = $2
`, comparisonID, documentID)
	if err != nil {
		return fmt.Errorf("remove comparison member: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "remove comparison member",
			fmt.Errorf("document %s not in comparison %s", documentID, comparisonID))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove tx: %w", err)
	}
	return nil
}

func (r *ComparisonRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comparisons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comparison: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrComparisonNotFound, "delete comparison", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *ComparisonRepository) memberIDs(ctx context.Context, comparisonID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT document_id
FROM comparison_documents
WHERE comparison_id = $1
ORDER BY position
`, comparisonID)
	if err != nil {
		return nil, fmt.Errorf("list comparison members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan comparison member: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparison members: %w", err)
	}
	return ids, nil
}
