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

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, name, state, scheme, sector, compliance_weights, comparison_result, comparison_generated_at, created_at`

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	weightsJSON, err := marshalWeights(project.Weights)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO projects (id, name, state, scheme, sector, compliance_weights, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, project.ID, project.Name, project.State, project.Scheme, project.Sector, weightsJSON, project.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+projectColumns+`
FROM projects
WHERE id = $1
`, id)

	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrProjectNotFound, "get project", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return project, nil
}

func (r *ProjectRepository) List(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+projectColumns+`
FROM projects
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		projects = append(projects, *project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project rows: %w", err)
	}
	return projects, nil
}

func (r *ProjectRepository) UpdateWeights(ctx context.Context, id string, weights map[string]float64) error {
	weightsJSON, err := marshalWeights(weights)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE projects
SET compliance_weights = $2
WHERE id = $1
`, id, weightsJSON)
	if err != nil {
		return fmt.Errorf("update project weights: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrProjectNotFound, "update project weights", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *ProjectRepository) SaveComparison(ctx context.Context, id string, result json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE projects
SET comparison_result = $2, comparison_generated_at = $3
WHERE id = $1
`, id, []byte(result), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save project comparison: %w", err)
	}
	return nil
}

func (r *ProjectRepository) ClearComparison(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE projects
SET comparison_result = NULL, comparison_generated_at = NULL
WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("clear project comparison: %w", err)
	}
	return nil
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var project domain.Project
	var weightsRaw, comparisonRaw []byte
	var generatedAt sql.NullTime

	err := row.Scan(
		&project.ID, &project.Name, &project.State, &project.Scheme, &project.Sector,
		&weightsRaw, &comparisonRaw, &generatedAt, &project.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(weightsRaw) > 0 {
		if err := json.Unmarshal(weightsRaw, &project.Weights); err != nil {
			return nil, fmt.Errorf("unmarshal compliance weights: %w", err)
		}
	}
	if len(comparisonRaw) > 0 {
		project.ComparisonResult = json.RawMessage(comparisonRaw)
	}
	if generatedAt.Valid {
		t := generatedAt.Time
		project.ComparisonGeneratedAt = &t
	}
	return &project, nil
}

func marshalWeights(weights map[string]float64) (any, error) {
	if weights == nil {
		return nil, nil
	}
	raw, err := json.Marshal(weights)
	if err != nil {
		return nil, fmt.Errorf("marshal compliance weights: %w", err)
	}
	return raw, nil
}
