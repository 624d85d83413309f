package repository

import (
	"context"
	"errors"

	"github.com/rpattn/equipreg/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches no row. Callers use it to
// decide between create-missing and fail-the-row paths.
var ErrNotFound = errors.New("record not found")

// SiteRepository defines the interface for site operations
type SiteRepository interface {
	GetByName(ctx context.Context, name string) (domain.Site, error)
	Create(ctx context.Context, site domain.Site) (domain.Site, error)
}

// CellRepository defines the interface for cell operations
type CellRepository interface {
	GetBySiteAndLine(ctx context.Context, siteID uuid.UUID, lineNumber int) (domain.Cell, error)
	Create(ctx context.Context, cell domain.Cell) (domain.Cell, error)
}

// EquipmentRepository defines the interface for equipment operations
type EquipmentRepository interface {
	GetByCellAndName(ctx context.Context, cellID uuid.UUID, name string) (domain.Equipment, error)
	Create(ctx context.Context, equipment domain.Equipment) (domain.Equipment, error)
}

// ControllerRepository defines the interface for controller operations
type ControllerRepository interface {
	GetByTagID(ctx context.Context, tagID string) (domain.Controller, error)
	GetByIPAddress(ctx context.Context, ipAddress string) (domain.Controller, error)
	Create(ctx context.Context, controller domain.Controller) (domain.Controller, error)
	Save(ctx context.Context, controller domain.Controller) (domain.Controller, error)
	ListForExport(ctx context.Context, filter domain.ControllerFilter, limit int) ([]domain.ExportRow, error)
}

// ImportRunResult carries the final aggregate counts written to a completed
// ledger entry.
type ImportRunResult struct {
	TotalRows      int
	SuccessfulRows int
	FailedRows     int
	Created        domain.CreatedEntities
	Errors         []domain.RowError
}

// ImportRunRepository stores the run ledger. It always writes through the
// pool, never through the import transaction, so status transitions survive
// a rollback.
type ImportRunRepository interface {
	Create(ctx context.Context, run domain.ImportRun) (domain.ImportRun, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportRun, error)
	List(ctx context.Context, limit, offset int) ([]domain.ImportRun, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, result ImportRunResult) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

// Store groups the hierarchy repositories bound to one execution scope
// (pool, transaction, or savepoint).
type Store interface {
	Sites() SiteRepository
	Cells() CellRepository
	Equipment() EquipmentRepository
	Controllers() ControllerRepository
}

// Tx is a Store bound to an open transaction. Savepoint runs fn inside a
// nested scope whose writes are discarded when fn returns an error.
type Tx interface {
	Store
	Savepoint(ctx context.Context, fn func(Store) error) error
}

// UnitOfWork exposes the persistence boundary the import orchestrator and
// export engine run against.
type UnitOfWork interface {
	Store() Store
	WithTx(ctx context.Context, fn func(Tx) error) error
}
