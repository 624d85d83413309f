package domain

import "time"

// ControllerFilter represents filtering options for exporting the hierarchy.
// All criteria are optional and conjunctive.
type ControllerFilter struct {
	SiteNames      []string
	CellNames      []string
	EquipmentTypes []EquipmentType
	Makes          []string
	Models         []string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	TextSearch     string
}

// ExportRow is one serialized line of an export: a controller joined with its
// ancestors, already flattened into the file schema.
type ExportRow struct {
	SiteName        string
	CellName        string
	LineNumber      int
	EquipmentName   string
	EquipmentType   EquipmentType
	TagID           string
	Description     string
	Make            string
	Model           string
	IPAddress       string
	FirmwareVersion string
}
