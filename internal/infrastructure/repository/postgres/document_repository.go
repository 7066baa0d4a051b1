package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, filename, original_filename, storage_path, remote_handle, status, result, validation_flags, project_id, uploader_id, page_count, error_message, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	resultJSON, flagsJSON, err := marshalDocumentPayloads(doc)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, original_filename, storage_path, remote_handle, status, result, validation_flags, project_id, uploader_id, page_count, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		doc.ID, doc.Filename, doc.OriginalFilename, doc.StoragePath, doc.RemoteHandle, string(doc.Status),
		resultJSON, flagsJSON, nullableString(doc.ProjectID), nullableString(doc.UploaderID),
		doc.PageCount, doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) GetByOriginalFilename(ctx context.Context, originalFilename string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE original_filename = $1
`, originalFilename)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("filename %s", originalFilename))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (r *DocumentRepository) ListByProject(ctx context.Context, projectID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE project_id = $1
ORDER BY created_at DESC
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// ListInterrupted returns documents whose analysis never produced a
// result, for the boot-time recovery sweep.
func (r *DocumentRepository) ListInterrupted(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE result IS NULL AND status IN ($1, $2)
ORDER BY created_at
`, string(domain.StatusPending), string(domain.StatusAnalyzing))
	if err != nil {
		return nil, fmt.Errorf("list interrupted documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireDocumentRow(res, "update document status", id)
}

func (r *DocumentRepository) UpdateRemoteHandle(ctx context.Context, id, handle string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET remote_handle = $2, updated_at = $3
WHERE id = $1
`, id, handle, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update remote handle: %w", err)
	}
	return requireDocumentRow(res, "update remote handle", id)
}

func (r *DocumentRepository) UpdateProject(ctx context.Context, id, projectID string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET project_id = $2, updated_at = $3
WHERE id = $1
`, id, nullableString(projectID), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document project: %w", err)
	}
	return requireDocumentRow(res, "update document project", id)
}

func (r *DocumentRepository) SaveResult(ctx context.Context, id string, result *domain.AnalysisResult, flags []domain.ValidationFlag) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("marshal validation flags: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET result = $2, validation_flags = $3, status = $4, error_message = '', updated_at = $5
WHERE id = $1
`, id, resultJSON, flagsJSON, string(domain.StatusCompleted), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save analysis result: %w", err)
	}
	return requireDocumentRow(res, "save analysis result", id)
}

// SaveRescoredResult rewrites only the result payload; status, flags
// and error stay as they were.
func (r *DocumentRepository) SaveRescoredResult(ctx context.Context, id string, result *domain.AnalysisResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET result = $2, updated_at = $3
WHERE id = $1
`, id, resultJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save rescored result: %w", err)
	}
	return requireDocumentRow(res, "save rescored result", id)
}

// Delete removes the document together with its transcript and its
// comparison memberships, returning the storage path for file cleanup
// and the ids of the comparisons the document belonged to.
func (r *DocumentRepository) Delete(ctx context.Context, id string) (string, []string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_messages WHERE document_id = $1`, id); err != nil {
		return "", nil, fmt.Errorf("delete document messages: %w", err)
	}

	memberships, err := deleteMemberships(ctx, tx, id)
	if err != nil {
		return "", nil, err
	}

	var storagePath string
	err = tx.QueryRowContext(ctx, `DELETE FROM documents WHERE id = $1 RETURNING storage_path`, id).Scan(&storagePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id %s", id))
		}
		return "", nil, fmt.Errorf("delete document row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("commit delete tx: %w", err)
	}
	return storagePath, memberships, nil
}

func deleteMemberships(ctx context.Context, tx *sql.Tx, documentID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
DELETE FROM comparison_documents
WHERE document_id = $1
RETURNING comparison_id
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("delete comparison memberships: %w", err)
	}
	defer rows.Close()

	var comparisonIDs []string
	for rows.Next() {
		var comparisonID string
		if err := rows.Scan(&comparisonID); err != nil {
			return nil, fmt.Errorf("scan deleted membership: %w", err)
		}
		comparisonIDs = append(comparisonIDs, comparisonID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted memberships: %w", err)
	}
	return comparisonIDs, nil
}

func requireDocumentRow(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id %s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var resultRaw, flagsRaw []byte
	var projectID, uploaderID sql.NullString

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.OriginalFilename, &doc.StoragePath, &doc.RemoteHandle, &status,
		&resultRaw, &flagsRaw, &projectID, &uploaderID, &doc.PageCount, &doc.Error,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Status = domain.DocumentStatus(status)
	doc.ProjectID = projectID.String
	doc.UploaderID = uploaderID.String
	if len(resultRaw) > 0 {
		var result domain.AnalysisResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		doc.Result = &result
	}
	if len(flagsRaw) > 0 {
		if err := json.Unmarshal(flagsRaw, &doc.ValidationFlags); err != nil {
			return nil, fmt.Errorf("unmarshal validation flags: %w", err)
		}
	}
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}

func marshalDocumentPayloads(doc *domain.Document) (any, any, error) {
	var resultJSON any
	if doc.Result != nil {
		raw, err := json.Marshal(doc.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = raw
	}
	var flagsJSON any
	if doc.ValidationFlags != nil {
		raw, err := json.Marshal(doc.ValidationFlags)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal validation flags: %w", err)
		}
		flagsJSON = raw
	}
	return resultJSON, flagsJSON, nil
}
