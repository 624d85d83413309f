package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/rpattn/equipreg/internal/domain"
)

func serviceFixture() (*Service, *memoryStore, *memoryUnitOfWork, *stubRunRepo) {
	store := newMemoryStore()
	uow := newMemoryUnitOfWork(store)
	runs := newStubRunRepo()
	return NewService(uow, runs, zap.NewNop()), store, uow, runs
}

func importFile(rows ...string) []byte {
	return []byte(sampleHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

// dataRow builds a fully populated line; every field the schema requires is
// non-empty so the row clears validation.
func dataRow(site, cell string, line int, equipment, equipmentType, tag, description, ip string) string {
	return fmt.Sprintf("%s,%s,%d,%s,%s,%s,%s,Allen-Bradley,ControlLogix,%s,32.011",
		site, cell, line, equipment, equipmentType, tag, description, ip)
}

func TestImportCreatesHierarchyAndControllers(t *testing.T) {
	service, store, _, runs := serviceFixture()

	data := importFile(
		dataRow("Springfield", "Body Shop", 1, "Robot 01", "robot", "PLC-001", "Weld controller", "10.0.0.1"),
		dataRow("Springfield", "Body Shop", 1, "Robot 01", "robot", "PLC-002", "Weld controller", "10.0.0.2"),
		dataRow("Springfield", "Body Shop", 1, "Robot 01", "robot", "PLC-003", "Weld controller", ""),
	)

	result, err := service.Import(context.Background(), "fleet.csv", data, domain.ImportOptions{
		CreateMissing:       true,
		DuplicateHandling:   domain.DuplicateSkip,
		BackgroundThreshold: 500,
	}, "operator-7")
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.TotalRows != 3 || result.SuccessfulRows != 3 || result.FailedRows != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Created.Sites != 1 || result.Created.Cells != 1 || result.Created.Equipment != 1 || result.Created.Controllers != 3 {
		t.Fatalf("unexpected creation counts: %+v", result.Created)
	}
	if result.IsBackground {
		t.Fatalf("3 rows under a 500 row threshold is not a background run")
	}

	if result.RunID == nil {
		t.Fatalf("expected a ledger entry")
	}
	run := runs.runs[*result.RunID]
	if run.Status != domain.ImportRunStatusCompleted {
		t.Fatalf("expected completed run, got %s", run.Status)
	}
	if completed := runs.completed[*result.RunID]; completed.SuccessfulRows != 3 {
		t.Fatalf("ledger counts diverge from result: %+v", completed)
	}

	if len(store.controllers) != 3 {
		t.Fatalf("expected 3 controllers persisted, got %d", len(store.controllers))
	}
}

func TestImportValidateOnlyWritesNothing(t *testing.T) {
	service, store, _, runs := serviceFixture()

	data := importFile(
		dataRow("Springfield", "Body Shop", 1, "Robot 01", "robot", "PLC-001", "Weld controller", ""),
		"Springfield,Body Shop,abc,Robot 02,robot,PLC-002,Weld controller,Allen-Bradley,ControlLogix,,",
	)

	result, err := service.Import(context.Background(), "fleet.csv", data, domain.ImportOptions{
		CreateMissing: true,
		ValidateOnly:  true,
	}, "operator-7")
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	if !result.Success {
		t.Fatalf("validate-only with no fatal header findings should succeed: %+v", result)
	}
	if result.SuccessfulRows != 1 || result.FailedRows != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(runs.order) != 0 {
		t.Fatalf("validate-only must not open a ledger entry")
	}
	if store.siteCreates != 0 || store.controllerCreates != 0 {
		t.Fatalf("validate-only must not write")
	}
}

func TestImportFatalHeaderReturnsEarly(t *testing.T) {
	service, store, _, runs := serviceFixture()

	data := []byte("site_name,cell_name\nSpringfield,Body Shop\n")

	result, err := service.Import(context.Background(), "fleet.csv", data, domain.ImportOptions{CreateMissing: true}, "operator-7")
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	if result.Success {
		t.Fatalf("fatal header findings must fail the import")
	}
	if len(result.HeaderErrors) == 0 {
		t.Fatalf("expected header findings")
	}
	if len(runs.order) != 0 || store.siteCreates != 0 {
		t.Fatalf("a rejected file must leave no trace")
	}
}

func TestImportRecordsExpectedRowFailuresAndContinues(t *testing.T) {
	service, store, uow, runs := serviceFixture()

	site := domain.NewSite("Springfield")
	cell := domain.NewCell(site.ID, "Body Shop", 1)
	equipment := domain.NewEquipment(cell.ID, "Robot 01", domain.EquipmentTypeRobot)
	store.sites[site.Name] = site
	store.cells[cellKey{siteID: site.ID, lineNumber: 1}] = cell
	store.equipment[equipmentKey{cellID: cell.ID, name: equipment.Name}] = equipment

	data := importFile(
		dataRow("Shelbyville", "Body Shop", 1, "Robot 01", "robot", "PLC-001", "Weld controller", ""),
		dataRow("Springfield", "Body Shop", 1, "Robot 01", "robot", "PLC-002", "Weld controller", ""),
	)

	result, err := service.Import(context.Background(), "fleet.csv", data, domain.ImportOptions{
		CreateMissing:     false,
		DuplicateHandling: domain.DuplicateSkip,
	}, "operator-7")
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	if !result.Success {
		t.Fatalf("expected success with partial failures, got %+v", result)
	}
	if result.SuccessfulRows != 1 || result.FailedRows != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Message != "Site 'Shelbyville' not found" {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if result.Errors[0].Row != 2 {
		t.Fatalf("expected failure on row 2, got %d", result.Errors[0].Row)
	}
	if uow.rolledBack {
		t.Fatalf("expected row failures must not roll the batch back")
	}
	if run := runs.runs[*result.RunID]; run.Status != domain.ImportRunStatusCompleted {
		t.Fatalf("expected completed run, got %s", run.Status)
	}
	if _, ok := store.controllers["PLC-002"]; !ok {
		t.Fatalf("surviving row should be persisted")
	}
}

func TestImportFatalErrorRollsBackAndMarksFailed(t *testing.T) {
	service, store, uow, runs := serviceFixture()
	store.controllerCreateErr = errors.New("connection reset by peer")

	data := importFile(dataRow("Springfield", "Body Shop", 1, "Robot 01", "robot", "PLC-001", "Weld controller", ""))

	result, err := service.Import(context.Background(), "fleet.csv", data, domain.ImportOptions{
		CreateMissing:     true,
		DuplicateHandling: domain.DuplicateSkip,
	}, "operator-7")
	if err == nil {
		t.Fatalf("expected the storage failure to surface")
	}
	if !uow.rolledBack {
		t.Fatalf("fatal failure must roll the batch back")
	}
	if len(store.sites) != 0 {
		t.Fatalf("rolled back hierarchy writes must not persist")
	}
	if result.RunID == nil {
		t.Fatalf("the ledger entry must outlive the rollback")
	}
	if run := runs.runs[*result.RunID]; run.Status != domain.ImportRunStatusFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
	if msg := runs.failed[*result.RunID]; !strings.Contains(msg, "connection reset") {
		t.Fatalf("failure message should carry the cause, got %q", msg)
	}
}

func TestImportDuplicateWithinFileIsReconciled(t *testing.T) {
	service, store, _, _ := serviceFixture()

	data := importFile(
		dataRow("Springfield", "Body Shop", 1, "Robot 01", "robot", "PLC-001", "First", ""),
		dataRow("Springfield", "Body Shop", 1, "Robot 01", "robot", "PLC-001", "Second", ""),
	)

	result, err := service.Import(context.Background(), "fleet.csv", data, domain.ImportOptions{
		CreateMissing:     true,
		DuplicateHandling: domain.DuplicateSkip,
	}, "operator-7")
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}

	if result.SuccessfulRows != 2 || result.FailedRows != 0 {
		t.Fatalf("skip policy treats the duplicate as handled: %+v", result)
	}
	if result.Created.Controllers != 1 {
		t.Fatalf("expected one controller, got %+v", result.Created)
	}
	if store.controllers["PLC-001"].Description != "First" {
		t.Fatalf("skip must keep the first occurrence")
	}
}

func TestImportFlagsBackgroundSizedRuns(t *testing.T) {
	service, _, _, _ := serviceFixture()

	data := importFile(
		dataRow("Springfield", "Body Shop", 1, "Robot 01", "robot", "PLC-001", "Weld controller", ""),
		dataRow("Springfield", "Body Shop", 1, "Robot 02", "robot", "PLC-002", "Weld controller", ""),
		dataRow("Springfield", "Body Shop", 1, "Robot 03", "robot", "PLC-003", "Weld controller", ""),
	)

	result, err := service.Import(context.Background(), "fleet.csv", data, domain.ImportOptions{
		CreateMissing:       true,
		DuplicateHandling:   domain.DuplicateSkip,
		BackgroundThreshold: 2,
	}, "operator-7")
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	if !result.IsBackground {
		t.Fatalf("3 rows over a 2 row threshold should flag as background")
	}
}
