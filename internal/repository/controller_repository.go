package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/equipreg/internal/db"
	"github.com/rpattn/equipreg/internal/domain"
)

type controllerRepository struct {
	q db.Querier
}

// NewControllerRepository wires a repository over a pool or transaction.
func NewControllerRepository(q db.Querier) ControllerRepository {
	return &controllerRepository{q: q}
}

const controllerColumns = `id, equipment_id, tag_id, description, make, model, ip_address, firmware_version, created_by, updated_by, created_at, updated_at`

func (r *controllerRepository) GetByTagID(ctx context.Context, tagID string) (domain.Controller, error) {
	row := r.q.QueryRow(
		ctx,
		`SELECT `+controllerColumns+` FROM controllers WHERE tag_id = $1`,
		tagID,
	)
	controller, err := scanController(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Controller{}, ErrNotFound
		}
		return domain.Controller{}, fmt.Errorf("failed to get controller by tag: %w", err)
	}
	return controller, nil
}

func (r *controllerRepository) GetByIPAddress(ctx context.Context, ipAddress string) (domain.Controller, error) {
	row := r.q.QueryRow(
		ctx,
		`SELECT `+controllerColumns+` FROM controllers WHERE ip_address = $1`,
		ipAddress,
	)
	controller, err := scanController(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Controller{}, ErrNotFound
		}
		return domain.Controller{}, fmt.Errorf("failed to get controller by address: %w", err)
	}
	return controller, nil
}

func (r *controllerRepository) Create(ctx context.Context, controller domain.Controller) (domain.Controller, error) {
	row := r.q.QueryRow(
		ctx,
		`INSERT INTO controllers (id, equipment_id, tag_id, description, make, model, ip_address, firmware_version, created_by, updated_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+controllerColumns,
		controller.ID,
		controller.EquipmentID,
		controller.TagID,
		controller.Description,
		controller.Make,
		controller.Model,
		nullableText(controller.IPAddress),
		controller.FirmwareVersion,
		controller.CreatedBy,
		controller.UpdatedBy,
		controller.CreatedAt,
		controller.UpdatedAt,
	)
	created, err := scanController(row)
	if err != nil {
		return domain.Controller{}, fmt.Errorf("failed to create controller: %w", err)
	}
	return created, nil
}

// Save persists the mutable controller fields plus the updating-user stamp.
func (r *controllerRepository) Save(ctx context.Context, controller domain.Controller) (domain.Controller, error) {
	row := r.q.QueryRow(
		ctx,
		`UPDATE controllers
		 SET description = $2,
		     make = $3,
		     model = $4,
		     ip_address = $5,
		     firmware_version = $6,
		     updated_by = $7,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+controllerColumns,
		controller.ID,
		controller.Description,
		controller.Make,
		controller.Model,
		nullableText(controller.IPAddress),
		controller.FirmwareVersion,
		controller.UpdatedBy,
	)
	saved, err := scanController(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Controller{}, ErrNotFound
		}
		return domain.Controller{}, fmt.Errorf("failed to save controller: %w", err)
	}
	return saved, nil
}

// ListForExport issues the single read query behind an export: controllers
// joined with their ancestors, filtered conjunctively, ordered so repeated
// exports of unchanged data are byte-identical.
func (r *controllerRepository) ListForExport(ctx context.Context, filter domain.ControllerFilter, limit int) ([]domain.ExportRow, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT s.name, c.name, c.line_number, e.name, e.equipment_type,
	       k.tag_id, k.description, k.make, k.model, k.ip_address, k.firmware_version
	FROM controllers k
	JOIN equipment e ON e.id = k.equipment_id
	JOIN cells c ON c.id = e.cell_id
	JOIN sites s ON s.id = c.site_id`)

	var (
		conditions []string
		args       []any
	)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.SiteNames) > 0 {
		conditions = append(conditions, "s.name = ANY("+arg(filter.SiteNames)+")")
	}
	if len(filter.CellNames) > 0 {
		conditions = append(conditions, "c.name = ANY("+arg(filter.CellNames)+")")
	}
	if len(filter.EquipmentTypes) > 0 {
		types := make([]string, len(filter.EquipmentTypes))
		for i, t := range filter.EquipmentTypes {
			types[i] = string(t)
		}
		conditions = append(conditions, "e.equipment_type = ANY("+arg(types)+")")
	}
	if len(filter.Makes) > 0 {
		conditions = append(conditions, "k.make = ANY("+arg(filter.Makes)+")")
	}
	if len(filter.Models) > 0 {
		conditions = append(conditions, "k.model = ANY("+arg(filter.Models)+")")
	}
	if filter.CreatedAfter != nil {
		conditions = append(conditions, "k.created_at >= "+arg(*filter.CreatedAfter))
	}
	if filter.CreatedBefore != nil {
		conditions = append(conditions, "k.created_at <= "+arg(*filter.CreatedBefore))
	}
	if search := strings.TrimSpace(filter.TextSearch); search != "" {
		pattern := "%" + search + "%"
		placeholder := arg(pattern)
		conditions = append(conditions, fmt.Sprintf(
			"(k.description ILIKE %[1]s OR k.make ILIKE %[1]s OR k.model ILIKE %[1]s OR k.tag_id ILIKE %[1]s)",
			placeholder,
		))
	}

	if len(conditions) > 0 {
		query.WriteString("\n\tWHERE " + strings.Join(conditions, " AND "))
	}
	query.WriteString("\n\tORDER BY s.name, c.name, e.name, k.tag_id")
	if limit > 0 {
		query.WriteString("\n\tLIMIT " + arg(limit))
	}

	rows, err := r.q.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query export rows: %w", err)
	}
	defer rows.Close()

	exportRows := []domain.ExportRow{}
	for rows.Next() {
		var (
			row       domain.ExportRow
			ipAddress pgtype.Text
		)
		if err := rows.Scan(
			&row.SiteName,
			&row.CellName,
			&row.LineNumber,
			&row.EquipmentName,
			&row.EquipmentType,
			&row.TagID,
			&row.Description,
			&row.Make,
			&row.Model,
			&ipAddress,
			&row.FirmwareVersion,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		if ipAddress.Valid {
			row.IPAddress = ipAddress.String
		}
		exportRows = append(exportRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate export rows: %w", err)
	}

	return exportRows, nil
}

func scanController(row pgx.Row) (domain.Controller, error) {
	var (
		controller domain.Controller
		ipAddress  pgtype.Text
	)
	if err := row.Scan(
		&controller.ID,
		&controller.EquipmentID,
		&controller.TagID,
		&controller.Description,
		&controller.Make,
		&controller.Model,
		&ipAddress,
		&controller.FirmwareVersion,
		&controller.CreatedBy,
		&controller.UpdatedBy,
		&controller.CreatedAt,
		&controller.UpdatedAt,
	); err != nil {
		return domain.Controller{}, err
	}
	if ipAddress.Valid {
		controller.IPAddress = ipAddress.String
	}
	return controller, nil
}

func nullableText(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
