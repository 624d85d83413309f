package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/equipreg/internal/domain"
)

type importRunRepository struct {
	pool *pgxpool.Pool
}

// NewImportRunRepository wires a run ledger store backed by pgxpool.
func NewImportRunRepository(pool *pgxpool.Pool) ImportRunRepository {
	return &importRunRepository{pool: pool}
}

func (r *importRunRepository) Create(ctx context.Context, run domain.ImportRun) (domain.ImportRun, error) {
	optionsJSON, err := run.OptionsToJSON()
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("failed to marshal run options: %w", err)
	}
	errorsJSON, err := run.ErrorsToJSON()
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("failed to marshal run errors: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO import_runs (id, user_id, file_name, options, status, total_rows, successful_rows, failed_rows,
		                          created_sites, created_cells, created_equipment, created_controllers, errors,
		                          created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		run.ID,
		run.UserID,
		run.FileName,
		optionsJSON,
		run.Status,
		run.TotalRows,
		run.SuccessfulRows,
		run.FailedRows,
		run.Created.Sites,
		run.Created.Cells,
		run.Created.Equipment,
		run.Created.Controllers,
		errorsJSON,
		run.CreatedAt,
	)
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("failed to create import run: %w", err)
	}
	return run, nil
}

const importRunColumns = `id, user_id, file_name, options, status, total_rows, successful_rows, failed_rows,
       created_sites, created_cells, created_equipment, created_controllers, errors,
       started_at, completed_at, created_at, updated_at`

func (r *importRunRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportRun, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+importRunColumns+` FROM import_runs WHERE id = $1`, id)
	run, err := scanImportRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportRun{}, ErrNotFound
		}
		return domain.ImportRun{}, fmt.Errorf("failed to get import run: %w", err)
	}
	return run, nil
}

func (r *importRunRepository) List(ctx context.Context, limit, offset int) ([]domain.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+importRunColumns+` FROM import_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.ImportRun{}
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import runs: %w", err)
	}
	return runs, nil
}

func (r *importRunRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_runs
		 SET status = $2, started_at = now(), updated_at = now()
		 WHERE id = $1 AND status = $3`,
		id, domain.ImportRunStatusProcessing, domain.ImportRunStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark import run processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *importRunRepository) MarkCompleted(ctx context.Context, id uuid.UUID, result ImportRunResult) error {
	errorsJSON, err := json.Marshal(result.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal run errors: %w", err)
	}
	if result.Errors == nil {
		errorsJSON = []byte("[]")
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_runs
		 SET status = $2,
		     total_rows = $3,
		     successful_rows = $4,
		     failed_rows = $5,
		     created_sites = $6,
		     created_cells = $7,
		     created_equipment = $8,
		     created_controllers = $9,
		     errors = $10,
		     completed_at = now(),
		     updated_at = now()
		 WHERE id = $1`,
		id,
		domain.ImportRunStatusCompleted,
		result.TotalRows,
		result.SuccessfulRows,
		result.FailedRows,
		result.Created.Sites,
		result.Created.Cells,
		result.Created.Equipment,
		result.Created.Controllers,
		errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to mark import run completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *importRunRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_runs
		 SET status = $2,
		     errors = errors || $3::jsonb,
		     completed_at = now(),
		     updated_at = now()
		 WHERE id = $1`,
		id,
		domain.ImportRunStatusFailed,
		mustJSONArray(domain.RowError{Message: message, Severity: domain.SeverityError}),
	)
	if err != nil {
		return fmt.Errorf("failed to mark import run failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mustJSONArray(rowErr domain.RowError) []byte {
	data, err := json.Marshal([]domain.RowError{rowErr})
	if err != nil {
		return []byte("[]")
	}
	return data
}

func scanImportRun(row pgx.Row) (domain.ImportRun, error) {
	var (
		run         domain.ImportRun
		optionsJSON []byte
		errorsJSON  []byte
		startedAt   pgtype.Timestamptz
		completedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&run.ID,
		&run.UserID,
		&run.FileName,
		&optionsJSON,
		&run.Status,
		&run.TotalRows,
		&run.SuccessfulRows,
		&run.FailedRows,
		&run.Created.Sites,
		&run.Created.Cells,
		&run.Created.Equipment,
		&run.Created.Controllers,
		&errorsJSON,
		&startedAt,
		&completedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		return domain.ImportRun{}, err
	}

	options, err := domain.ImportRunOptionsFromJSON(optionsJSON)
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("failed to decode run options: %w", err)
	}
	run.Options = options

	rowErrors, err := domain.ImportRunErrorsFromJSON(errorsJSON)
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("failed to decode run errors: %w", err)
	}
	run.Errors = rowErrors

	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}
