package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/rpattn/equipreg/internal/domain"
	"github.com/rpattn/equipreg/internal/repository"
)

type stubControllerRepo struct {
	rows       []domain.ExportRow
	listErr    error
	lastFilter domain.ControllerFilter
	lastLimit  int
}

var _ repository.ControllerRepository = (*stubControllerRepo)(nil)

func (s *stubControllerRepo) GetByTagID(context.Context, string) (domain.Controller, error) {
	return domain.Controller{}, repository.ErrNotFound
}

func (s *stubControllerRepo) GetByIPAddress(context.Context, string) (domain.Controller, error) {
	return domain.Controller{}, repository.ErrNotFound
}

func (s *stubControllerRepo) Create(_ context.Context, controller domain.Controller) (domain.Controller, error) {
	return controller, nil
}

func (s *stubControllerRepo) Save(_ context.Context, controller domain.Controller) (domain.Controller, error) {
	return controller, nil
}

func (s *stubControllerRepo) ListForExport(_ context.Context, filter domain.ControllerFilter, limit int) ([]domain.ExportRow, error) {
	s.lastFilter = filter
	s.lastLimit = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.rows, nil
}

func exportRow(tag string) domain.ExportRow {
	return domain.ExportRow{
		SiteName:        "Springfield",
		CellName:        "Body Shop",
		LineNumber:      1,
		EquipmentName:   "Robot 01",
		EquipmentType:   domain.EquipmentTypeRobot,
		TagID:           tag,
		Description:     "Primary controller",
		Make:            "Allen-Bradley",
		Model:           "ControlLogix",
		IPAddress:       "10.0.0.5",
		FirmwareVersion: "32.011",
	}
}

func TestExportWritesHeaderAndRows(t *testing.T) {
	repo := &stubControllerRepo{rows: []domain.ExportRow{exportRow("PLC-001"), exportRow("PLC-002")}}
	service := NewService(repo, zap.NewNop())

	buf := &bytes.Buffer{}
	rowCount, byteCount, err := service.Export(context.Background(), buf, domain.ControllerFilter{}, 0)
	if err != nil {
		t.Fatalf("export returned error: %v", err)
	}
	if rowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", rowCount)
	}
	if byteCount != int64(buf.Len()) {
		t.Fatalf("byte count %d does not match output length %d", byteCount, buf.Len())
	}

	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d records", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(domain.AllColumns(), ",") {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][5] != "PLC-001" || records[2][5] != "PLC-002" {
		t.Fatalf("rows out of order: %v", records[1:])
	}
}

func TestExportIsDeterministic(t *testing.T) {
	repo := &stubControllerRepo{rows: []domain.ExportRow{exportRow("PLC-001")}}
	service := NewService(repo, zap.NewNop())

	first := &bytes.Buffer{}
	second := &bytes.Buffer{}
	if _, _, err := service.Export(context.Background(), first, domain.ControllerFilter{}, 0); err != nil {
		t.Fatalf("first export: %v", err)
	}
	if _, _, err := service.Export(context.Background(), second, domain.ControllerFilter{}, 0); err != nil {
		t.Fatalf("second export: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("identical inputs must produce identical output")
	}
}

func TestExportPassesFilterAndLimitThrough(t *testing.T) {
	repo := &stubControllerRepo{}
	service := NewService(repo, zap.NewNop())

	filter := domain.ControllerFilter{
		SiteNames:  []string{"Springfield"},
		TextSearch: "weld",
	}
	if _, _, err := service.Export(context.Background(), &bytes.Buffer{}, filter, 50); err != nil {
		t.Fatalf("export returned error: %v", err)
	}
	if len(repo.lastFilter.SiteNames) != 1 || repo.lastFilter.SiteNames[0] != "Springfield" {
		t.Fatalf("filter not passed through: %+v", repo.lastFilter)
	}
	if repo.lastLimit != 50 {
		t.Fatalf("limit not passed through: %d", repo.lastLimit)
	}
}

func TestExportSurfacesQueryFailureBeforeWriting(t *testing.T) {
	repo := &stubControllerRepo{listErr: errors.New("connection reset by peer")}
	service := NewService(repo, zap.NewNop())

	buf := &bytes.Buffer{}
	_, _, err := service.Export(context.Background(), buf, domain.ControllerFilter{}, 0)
	if err == nil {
		t.Fatalf("expected query failure to surface")
	}
	if buf.Len() != 0 {
		t.Fatalf("no bytes should be written when the query fails")
	}
}

func TestSanitizeCellDefusesFormulaTriggers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"=2+2", "'=2+2"},
		{"+SUM(A1)", "'+SUM(A1)"},
		{"-1", "'-1"},
		{"@cmd", "'@cmd"},
		{"plain value", "plain value"},
		{"middle=sign", "middle=sign"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sanitizeCell(tc.in); got != tc.want {
			t.Errorf("sanitizeCell(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExportSanitizesFormulaTriggers(t *testing.T) {
	row := exportRow("PLC-001")
	row.Description = "=HYPERLINK(\"http://evil\")"
	repo := &stubControllerRepo{rows: []domain.ExportRow{row}}
	service := NewService(repo, zap.NewNop())

	buf := &bytes.Buffer{}
	if _, _, err := service.Export(context.Background(), buf, domain.ControllerFilter{}, 0); err != nil {
		t.Fatalf("export returned error: %v", err)
	}
	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if records[1][6] != "'=HYPERLINK(\"http://evil\")" {
		t.Fatalf("description was not defused: %q", records[1][6])
	}
}
