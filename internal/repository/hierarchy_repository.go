package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/equipreg/internal/db"
	"github.com/rpattn/equipreg/internal/domain"
)

type siteRepository struct {
	q db.Querier
}

// NewSiteRepository wires a repository over a pool or transaction.
func NewSiteRepository(q db.Querier) SiteRepository {
	return &siteRepository{q: q}
}

func (r *siteRepository) GetByName(ctx context.Context, name string) (domain.Site, error) {
	var site domain.Site
	err := r.q.QueryRow(
		ctx,
		`SELECT id, name, created_at, updated_at FROM sites WHERE name = $1`,
		name,
	).Scan(&site.ID, &site.Name, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Site{}, ErrNotFound
		}
		return domain.Site{}, fmt.Errorf("failed to get site by name: %w", err)
	}
	return site, nil
}

func (r *siteRepository) Create(ctx context.Context, site domain.Site) (domain.Site, error) {
	err := r.q.QueryRow(
		ctx,
		`INSERT INTO sites (id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, created_at, updated_at`,
		site.ID, site.Name, site.CreatedAt, site.UpdatedAt,
	).Scan(&site.ID, &site.Name, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return domain.Site{}, fmt.Errorf("failed to create site: %w", err)
	}
	return site, nil
}

type cellRepository struct {
	q db.Querier
}

// NewCellRepository wires a repository over a pool or transaction.
func NewCellRepository(q db.Querier) CellRepository {
	return &cellRepository{q: q}
}

func (r *cellRepository) GetBySiteAndLine(ctx context.Context, siteID uuid.UUID, lineNumber int) (domain.Cell, error) {
	var cell domain.Cell
	err := r.q.QueryRow(
		ctx,
		`SELECT id, site_id, name, line_number, created_at, updated_at
		 FROM cells WHERE site_id = $1 AND line_number = $2`,
		siteID, lineNumber,
	).Scan(&cell.ID, &cell.SiteID, &cell.Name, &cell.LineNumber, &cell.CreatedAt, &cell.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cell{}, ErrNotFound
		}
		return domain.Cell{}, fmt.Errorf("failed to get cell by site and line: %w", err)
	}
	return cell, nil
}

func (r *cellRepository) Create(ctx context.Context, cell domain.Cell) (domain.Cell, error) {
	err := r.q.QueryRow(
		ctx,
		`INSERT INTO cells (id, site_id, name, line_number, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, site_id, name, line_number, created_at, updated_at`,
		cell.ID, cell.SiteID, cell.Name, cell.LineNumber, cell.CreatedAt, cell.UpdatedAt,
	).Scan(&cell.ID, &cell.SiteID, &cell.Name, &cell.LineNumber, &cell.CreatedAt, &cell.UpdatedAt)
	if err != nil {
		return domain.Cell{}, fmt.Errorf("failed to create cell: %w", err)
	}
	return cell, nil
}

type equipmentRepository struct {
	q db.Querier
}

// NewEquipmentRepository wires a repository over a pool or transaction.
func NewEquipmentRepository(q db.Querier) EquipmentRepository {
	return &equipmentRepository{q: q}
}

func (r *equipmentRepository) GetByCellAndName(ctx context.Context, cellID uuid.UUID, name string) (domain.Equipment, error) {
	var equipment domain.Equipment
	err := r.q.QueryRow(
		ctx,
		`SELECT id, cell_id, name, equipment_type, created_at, updated_at
		 FROM equipment WHERE cell_id = $1 AND name = $2`,
		cellID, name,
	).Scan(&equipment.ID, &equipment.CellID, &equipment.Name, &equipment.EquipmentType, &equipment.CreatedAt, &equipment.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Equipment{}, ErrNotFound
		}
		return domain.Equipment{}, fmt.Errorf("failed to get equipment by cell and name: %w", err)
	}
	return equipment, nil
}

func (r *equipmentRepository) Create(ctx context.Context, equipment domain.Equipment) (domain.Equipment, error) {
	err := r.q.QueryRow(
		ctx,
		`INSERT INTO equipment (id, cell_id, name, equipment_type, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, cell_id, name, equipment_type, created_at, updated_at`,
		equipment.ID, equipment.CellID, equipment.Name, equipment.EquipmentType, equipment.CreatedAt, equipment.UpdatedAt,
	).Scan(&equipment.ID, &equipment.CellID, &equipment.Name, &equipment.EquipmentType, &equipment.CreatedAt, &equipment.UpdatedAt)
	if err != nil {
		return domain.Equipment{}, fmt.Errorf("failed to create equipment: %w", err)
	}
	return equipment, nil
}
