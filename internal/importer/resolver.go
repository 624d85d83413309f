package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/equipreg/internal/domain"
	"github.com/rpattn/equipreg/internal/repository"
)

type cellKey struct {
	siteID     uuid.UUID
	lineNumber int
}

type equipmentKey struct {
	cellID uuid.UUID
	name   string
}

// HierarchyResolver looks up or creates the site/cell/equipment chain a row
// references. Lookups and in-run creations are memoized under their natural
// keys so later rows in the same file see earlier rows' effects without
// re-querying.
type HierarchyResolver struct {
	createMissing bool

	sites     map[string]domain.Site
	cells     map[cellKey]domain.Cell
	equipment map[equipmentKey]domain.Equipment

	// Natural keys cached by creations in the current row. Evicted when the
	// row's savepoint rolls back, kept once it commits.
	pendingSites     []string
	pendingCells     []cellKey
	pendingEquipment []equipmentKey
}

// NewHierarchyResolver creates a resolver scoped to one import run.
func NewHierarchyResolver(createMissing bool) *HierarchyResolver {
	return &HierarchyResolver{
		createMissing: createMissing,
		sites:         make(map[string]domain.Site),
		cells:         make(map[cellKey]domain.Cell),
		equipment:     make(map[equipmentKey]domain.Equipment),
	}
}

// Resolve returns the equipment the row's controller belongs to, creating
// missing ancestors when enabled. A missing ancestor with creation disabled
// is reported as a *domain.RowError; storage failures propagate as-is.
func (r *HierarchyResolver) Resolve(ctx context.Context, store repository.Store, row domain.Row) (domain.Equipment, domain.CreatedEntities, error) {
	var created domain.CreatedEntities

	site, ok := r.sites[row.SiteName]
	if !ok {
		found, err := store.Sites().GetByName(ctx, row.SiteName)
		switch {
		case err == nil:
			site = found
		case errors.Is(err, repository.ErrNotFound):
			if !r.createMissing {
				return domain.Equipment{}, created, domain.NewRowError(
					row.Number, domain.ColumnSiteName, row.SiteName,
					fmt.Sprintf("Site '%s' not found", row.SiteName),
				)
			}
			site, err = store.Sites().Create(ctx, domain.NewSite(row.SiteName))
			if err != nil {
				return domain.Equipment{}, created, fmt.Errorf("create site %q: %w", row.SiteName, err)
			}
			created.Sites++
			r.pendingSites = append(r.pendingSites, row.SiteName)
		default:
			return domain.Equipment{}, created, fmt.Errorf("look up site %q: %w", row.SiteName, err)
		}
		r.sites[row.SiteName] = site
	}

	ck := cellKey{siteID: site.ID, lineNumber: row.LineNumber}
	cell, ok := r.cells[ck]
	if !ok {
		found, err := store.Cells().GetBySiteAndLine(ctx, site.ID, row.LineNumber)
		switch {
		case err == nil:
			cell = found
		case errors.Is(err, repository.ErrNotFound):
			if !r.createMissing {
				return domain.Equipment{}, created, domain.NewRowError(
					row.Number, domain.ColumnCellName, row.CellName,
					fmt.Sprintf("Cell '%s' (line %d) not found in site '%s'", row.CellName, row.LineNumber, row.SiteName),
				)
			}
			cell, err = store.Cells().Create(ctx, domain.NewCell(site.ID, row.CellName, row.LineNumber))
			if err != nil {
				return domain.Equipment{}, created, fmt.Errorf("create cell %q in site %q: %w", row.CellName, row.SiteName, err)
			}
			created.Cells++
			r.pendingCells = append(r.pendingCells, ck)
		default:
			return domain.Equipment{}, created, fmt.Errorf("look up cell line %d in site %q: %w", row.LineNumber, row.SiteName, err)
		}
		r.cells[ck] = cell
	}

	ek := equipmentKey{cellID: cell.ID, name: row.EquipmentName}
	equipment, ok := r.equipment[ek]
	if !ok {
		found, err := store.Equipment().GetByCellAndName(ctx, cell.ID, row.EquipmentName)
		switch {
		case err == nil:
			equipment = found
		case errors.Is(err, repository.ErrNotFound):
			if !r.createMissing {
				return domain.Equipment{}, created, domain.NewRowError(
					row.Number, domain.ColumnEquipmentName, row.EquipmentName,
					fmt.Sprintf("Equipment '%s' not found in cell '%s'", row.EquipmentName, row.CellName),
				)
			}
			equipment, err = store.Equipment().Create(ctx, domain.NewEquipment(cell.ID, row.EquipmentName, domain.EquipmentType(row.EquipmentType)))
			if err != nil {
				return domain.Equipment{}, created, fmt.Errorf("create equipment %q in cell %q: %w", row.EquipmentName, row.CellName, err)
			}
			created.Equipment++
			r.pendingEquipment = append(r.pendingEquipment, ek)
		default:
			return domain.Equipment{}, created, fmt.Errorf("look up equipment %q in cell %q: %w", row.EquipmentName, row.CellName, err)
		}
		r.equipment[ek] = equipment
	}

	return equipment, created, nil
}

// CommitRow keeps the current row's creations in the cache.
func (r *HierarchyResolver) CommitRow() {
	r.pendingSites = nil
	r.pendingCells = nil
	r.pendingEquipment = nil
}

// DiscardRow evicts entities created by the current row. Called when the
// row's savepoint rolls back so a later row recreates them instead of
// reusing ids the database no longer knows.
func (r *HierarchyResolver) DiscardRow() {
	for _, name := range r.pendingSites {
		delete(r.sites, name)
	}
	for _, key := range r.pendingCells {
		delete(r.cells, key)
	}
	for _, key := range r.pendingEquipment {
		delete(r.equipment, key)
	}
	r.CommitRow()
}
