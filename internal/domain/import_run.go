package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ImportRunStatus captures lifecycle state for an import run.
type ImportRunStatus string

const (
	ImportRunStatusPending    ImportRunStatus = "pending"
	ImportRunStatusProcessing ImportRunStatus = "processing"
	ImportRunStatusCompleted  ImportRunStatus = "completed"
	ImportRunStatusFailed     ImportRunStatus = "failed"
)

// ImportRun is the persisted ledger entry for one import attempt. The
// orchestrator exclusively owns its lifecycle; status and rollback UIs only
// read it.
type ImportRun struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	FileName       string          `json:"file_name"`
	Options        ImportOptions   `json:"options"`
	Status         ImportRunStatus `json:"status"`
	TotalRows      int             `json:"total_rows"`
	SuccessfulRows int             `json:"successful_rows"`
	FailedRows     int             `json:"failed_rows"`
	Created        CreatedEntities `json:"created_entities"`
	Errors         []RowError      `json:"errors"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewImportRun creates a pending ledger entry for an import that is about to
// start.
func NewImportRun(userID, fileName string, options ImportOptions, totalRows int) ImportRun {
	now := time.Now()
	return ImportRun{
		ID:        uuid.New(),
		UserID:    userID,
		FileName:  fileName,
		Options:   options,
		Status:    ImportRunStatusPending,
		TotalRows: totalRows,
		Errors:    []RowError{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OptionsToJSON marshals the option set into the JSONB layout stored in
// Postgres.
func (r ImportRun) OptionsToJSON() (json.RawMessage, error) {
	return json.Marshal(r.Options)
}

// ErrorsToJSON marshals the row error list for persistence.
func (r ImportRun) ErrorsToJSON() (json.RawMessage, error) {
	errs := r.Errors
	if errs == nil {
		errs = []RowError{}
	}
	return json.Marshal(errs)
}

// ImportRunErrorsFromJSON hydrates a persisted error list.
func ImportRunErrorsFromJSON(data []byte) ([]RowError, error) {
	if len(data) == 0 {
		return []RowError{}, nil
	}
	var errs []RowError
	if err := json.Unmarshal(data, &errs); err != nil {
		return nil, err
	}
	if errs == nil {
		errs = []RowError{}
	}
	return errs, nil
}

// ImportRunOptionsFromJSON hydrates a persisted option set.
func ImportRunOptionsFromJSON(data []byte) (ImportOptions, error) {
	var options ImportOptions
	if len(data) == 0 {
		return options, nil
	}
	if err := json.Unmarshal(data, &options); err != nil {
		return ImportOptions{}, err
	}
	return options, nil
}
