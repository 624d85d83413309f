package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Column names of the delimited file schema, in serialization order.
const (
	ColumnSiteName        = "site_name"
	ColumnCellName        = "cell_name"
	ColumnLineNumber      = "line_number"
	ColumnEquipmentName   = "equipment_name"
	ColumnEquipmentType   = "equipment_type"
	ColumnTagID           = "tag_id"
	ColumnDescription     = "description"
	ColumnMake            = "make"
	ColumnModel           = "model"
	ColumnIPAddress       = "ip_address"
	ColumnFirmwareVersion = "firmware_version"
)

// RequiredColumns returns the columns every file must carry.
func RequiredColumns() []string {
	return []string{
		ColumnSiteName,
		ColumnCellName,
		ColumnLineNumber,
		ColumnEquipmentName,
		ColumnEquipmentType,
		ColumnTagID,
		ColumnDescription,
		ColumnMake,
		ColumnModel,
	}
}

// OptionalColumns returns the columns a file may omit.
func OptionalColumns() []string {
	return []string{ColumnIPAddress, ColumnFirmwareVersion}
}

// AllColumns returns the full header in serialization order.
func AllColumns() []string {
	return append(RequiredColumns(), OptionalColumns()...)
}

// Row is the ephemeral per-line representation of an imported record.
type Row struct {
	Number          int    `json:"row_number"`
	SiteName        string `json:"site_name"`
	CellName        string `json:"cell_name"`
	LineNumber      int    `json:"line_number"`
	EquipmentName   string `json:"equipment_name"`
	EquipmentType   string `json:"equipment_type"`
	TagID           string `json:"tag_id"`
	Description     string `json:"description"`
	Make            string `json:"make"`
	Model           string `json:"model"`
	IPAddress       string `json:"ip_address,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// DuplicatePolicy selects how a row matching an existing controller is applied.
type DuplicatePolicy string

const (
	DuplicateSkip      DuplicatePolicy = "skip"
	DuplicateOverwrite DuplicatePolicy = "overwrite"
	DuplicateMerge     DuplicatePolicy = "merge"
)

// ParseDuplicatePolicy validates a policy value from caller input.
func ParseDuplicatePolicy(value string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(value) {
	case DuplicateSkip, DuplicateOverwrite, DuplicateMerge:
		return DuplicatePolicy(value), nil
	case "":
		return DuplicateSkip, nil
	default:
		return "", fmt.Errorf("unknown duplicate handling policy %q", value)
	}
}

// ImportOptions carries the caller-selected behavior for one import run.
type ImportOptions struct {
	CreateMissing       bool            `json:"create_missing"`
	DuplicateHandling   DuplicatePolicy `json:"duplicate_handling"`
	BackgroundThreshold int             `json:"background_threshold"`
	ValidateOnly        bool            `json:"validate_only"`
}

// RowErrorSeverity distinguishes blocking findings from advisories.
type RowErrorSeverity string

const (
	SeverityError   RowErrorSeverity = "error"
	SeverityWarning RowErrorSeverity = "warning"
)

// RowError describes a business-rule failure scoped to one row. It is the
// expected error type during an import: the orchestrator records it and
// continues, while any other error aborts the run.
type RowError struct {
	Row      int              `json:"row"`
	Field    string           `json:"field,omitempty"`
	Value    string           `json:"value,omitempty"`
	Message  string           `json:"message"`
	Severity RowErrorSeverity `json:"severity"`
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d, %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// NewRowError builds a blocking row error.
func NewRowError(row int, field, value, message string) *RowError {
	return &RowError{Row: row, Field: field, Value: value, Message: message, Severity: SeverityError}
}

// HeaderError describes a header-level validation finding. Fatal findings
// (missing required columns) block the import; the rest are informational.
type HeaderError struct {
	Column  string `json:"column"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// CreatedEntities counts entities created during a run (or a single row).
type CreatedEntities struct {
	Sites       int `json:"sites"`
	Cells       int `json:"cells"`
	Equipment   int `json:"equipment"`
	Controllers int `json:"controllers"`
}

// Add accumulates counts from another set.
func (c *CreatedEntities) Add(other CreatedEntities) {
	c.Sites += other.Sites
	c.Cells += other.Cells
	c.Equipment += other.Equipment
	c.Controllers += other.Controllers
}

// Total returns the number of entities created across all levels.
func (c CreatedEntities) Total() int {
	return c.Sites + c.Cells + c.Equipment + c.Controllers
}

// RowOutcome is the closed set of per-row results.
type RowOutcome string

const (
	RowCreated RowOutcome = "created"
	RowUpdated RowOutcome = "updated"
	RowSkipped RowOutcome = "skipped"
	RowFailed  RowOutcome = "failed"
)

// RowResult reports what a single row did. The orchestrator folds the
// sequence of results into the aggregate counts; nothing below it mutates
// shared counters.
type RowResult struct {
	Outcome RowOutcome
	Created CreatedEntities
	Err     *RowError
}

// FailedRow wraps a row error into a failed result.
func FailedRow(err *RowError) RowResult {
	return RowResult{Outcome: RowFailed, Err: err}
}

// ImportResult is the structured outcome returned to the caller.
type ImportResult struct {
	Success        bool            `json:"success"`
	RunID          *uuid.UUID      `json:"run_id,omitempty"`
	TotalRows      int             `json:"total_rows"`
	SuccessfulRows int             `json:"successful_rows"`
	FailedRows     int             `json:"failed_rows"`
	HeaderErrors   []HeaderError   `json:"header_errors,omitempty"`
	Errors         []RowError      `json:"errors"`
	Created        CreatedEntities `json:"created_entities"`
	IsBackground   bool            `json:"is_background"`
}
