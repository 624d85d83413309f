package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/equipreg/internal/domain"
	"github.com/rpattn/equipreg/internal/repository"
)

// Service drives one end-to-end import: validation, a single transaction,
// per-row resolution and reconciliation, and the run ledger lifecycle.
type Service struct {
	uow       repository.UnitOfWork
	runs      repository.ImportRunRepository
	validator *Validator
	logger    *zap.Logger
}

// NewService creates the import orchestrator.
func NewService(uow repository.UnitOfWork, runs repository.ImportRunRepository, logger *zap.Logger) *Service {
	return &Service{
		uow:       uow,
		runs:      runs,
		validator: NewValidator(),
		logger:    logger,
	}
}

// Template returns the file template for human-authored uploads.
func (s *Service) Template() []byte {
	return s.validator.Template()
}

// Validate runs the bounded validation pass without touching storage.
func (s *Service) Validate(payload []byte) (ValidationResult, error) {
	return s.validator.Validate(payload)
}

// CountRows returns the data-row count for progress and threshold decisions.
func (s *Service) CountRows(payload []byte) (int, error) {
	return s.validator.CountRows(payload)
}

// Import ingests the payload under the given options. Expected row-level
// business failures are collected and reported; anything else aborts the run,
// rolls the whole batch back, marks the ledger entry failed, and is returned
// as an error.
func (s *Service) Import(ctx context.Context, fileName string, payload []byte, options domain.ImportOptions, userID string) (domain.ImportResult, error) {
	validation, err := s.validator.Validate(payload)
	if err != nil {
		return domain.ImportResult{}, err
	}

	totalRows := validation.TotalRows
	result := domain.ImportResult{
		TotalRows:    totalRows,
		Errors:       []domain.RowError{},
		IsBackground: totalRows > options.BackgroundThreshold,
	}

	if !validation.IsValid {
		result.HeaderErrors = validation.HeaderErrors
		return result, nil
	}

	if options.ValidateOnly {
		invalid := distinctErrorRows(validation.RowErrors)
		result.Success = true
		result.SuccessfulRows = totalRows - invalid
		result.FailedRows = invalid
		result.Errors = blockingErrors(validation.RowErrors)
		return result, nil
	}

	table, err := parseTable(payload)
	if err != nil {
		return domain.ImportResult{}, err
	}

	run, err := s.runs.Create(ctx, domain.NewImportRun(userID, fileName, options, totalRows))
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("create import run: %w", err)
	}
	result.RunID = &run.ID

	s.logger.Info("import run started",
		zap.String("run_id", run.ID.String()),
		zap.String("file", fileName),
		zap.Int("rows", totalRows),
		zap.String("user", userID),
	)

	resolver := NewHierarchyResolver(options.CreateMissing)
	reconciler := NewReconciler(options.DuplicateHandling, userID)

	txErr := s.uow.WithTx(ctx, func(tx repository.Tx) error {
		if err := s.runs.MarkProcessing(ctx, run.ID); err != nil {
			return fmt.Errorf("mark import run processing: %w", err)
		}

		for idx, record := range table.rows {
			rowNumber := idx + 2

			if rowErr := firstBlockingError(checkRow(table, record, rowNumber)); rowErr != nil {
				result.FailedRows++
				result.Errors = append(result.Errors, *rowErr)
				continue
			}
			row := rowFromRecord(table, record, rowNumber)

			var rowResult domain.RowResult
			err := tx.Savepoint(ctx, func(store repository.Store) error {
				equipment, created, err := resolver.Resolve(ctx, store, row)
				if err != nil {
					return err
				}
				res, err := reconciler.Reconcile(ctx, store, row, equipment)
				if err != nil {
					return err
				}
				res.Created.Add(created)
				rowResult = res
				return nil
			})
			if err != nil {
				resolver.DiscardRow()
				var rowErr *domain.RowError
				if errors.As(err, &rowErr) {
					result.FailedRows++
					result.Errors = append(result.Errors, *rowErr)
					continue
				}
				// Unanticipated failure: abort the loop and roll back the batch.
				return err
			}
			resolver.CommitRow()

			result.SuccessfulRows++
			result.Created.Add(rowResult.Created)
		}
		return nil
	})
	if txErr != nil {
		if markErr := s.runs.MarkFailed(ctx, run.ID, txErr.Error()); markErr != nil {
			s.logger.Error("failed to mark import run failed",
				zap.String("run_id", run.ID.String()), zap.Error(markErr))
		}
		s.logger.Error("import run failed",
			zap.String("run_id", run.ID.String()), zap.Error(txErr))
		return result, txErr
	}

	if err := s.runs.MarkCompleted(ctx, run.ID, repository.ImportRunResult{
		TotalRows:      result.TotalRows,
		SuccessfulRows: result.SuccessfulRows,
		FailedRows:     result.FailedRows,
		Created:        result.Created,
		Errors:         result.Errors,
	}); err != nil {
		return result, fmt.Errorf("mark import run completed: %w", err)
	}

	result.Success = true
	s.logger.Info("import run completed",
		zap.String("run_id", run.ID.String()),
		zap.Int("successful", result.SuccessfulRows),
		zap.Int("failed", result.FailedRows),
		zap.Int("created", result.Created.Total()),
	)
	return result, nil
}

// Run returns one ledger entry.
func (s *Service) Run(ctx context.Context, id uuid.UUID) (domain.ImportRun, error) {
	return s.runs.GetByID(ctx, id)
}

// ListRuns returns ledger entries, newest first.
func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]domain.ImportRun, error) {
	return s.runs.List(ctx, limit, offset)
}

// rowFromRecord maps a parsed record into a Row. Call only after the record
// passed the blocking checks for its row.
func rowFromRecord(table tableData, record []string, rowNumber int) domain.Row {
	field := func(column string) string {
		idx, ok := table.columns[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	lineNumber, _ := strconv.Atoi(field(domain.ColumnLineNumber))
	return domain.Row{
		Number:          rowNumber,
		SiteName:        field(domain.ColumnSiteName),
		CellName:        field(domain.ColumnCellName),
		LineNumber:      lineNumber,
		EquipmentName:   field(domain.ColumnEquipmentName),
		EquipmentType:   field(domain.ColumnEquipmentType),
		TagID:           field(domain.ColumnTagID),
		Description:     field(domain.ColumnDescription),
		Make:            field(domain.ColumnMake),
		Model:           field(domain.ColumnModel),
		IPAddress:       field(domain.ColumnIPAddress),
		FirmwareVersion: field(domain.ColumnFirmwareVersion),
	}
}

func firstBlockingError(findings []domain.RowError) *domain.RowError {
	for i := range findings {
		if findings[i].Severity == domain.SeverityError {
			return &findings[i]
		}
	}
	return nil
}

func blockingErrors(findings []domain.RowError) []domain.RowError {
	blocking := []domain.RowError{}
	for _, finding := range findings {
		if finding.Severity == domain.SeverityError {
			blocking = append(blocking, finding)
		}
	}
	return blocking
}

func distinctErrorRows(findings []domain.RowError) int {
	rows := make(map[int]bool)
	for _, finding := range findings {
		if finding.Severity == domain.SeverityError {
			rows[finding.Row] = true
		}
	}
	return len(rows)
}
