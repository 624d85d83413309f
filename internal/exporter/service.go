package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rpattn/equipreg/internal/domain"
	"github.com/rpattn/equipreg/internal/repository"
)

// Service streams filtered controller rows as a delimited file. Row order is
// fixed by the query (site, cell, equipment, tag) so identical filters always
// produce byte-identical output.
type Service struct {
	controllers repository.ControllerRepository
	logger      *zap.Logger
}

// NewService creates the export service.
func NewService(controllers repository.ControllerRepository, logger *zap.Logger) *Service {
	return &Service{controllers: controllers, logger: logger}
}

// Export writes the header and the filtered rows to w and returns the row and
// byte counts. A limit of zero exports everything the filter matches.
func (s *Service) Export(ctx context.Context, w io.Writer, filter domain.ControllerFilter, limit int) (int, int64, error) {
	rows, err := s.controllers.ListForExport(ctx, filter, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("list controllers for export: %w", err)
	}

	counter := &countingWriter{writer: w}
	csvWriter := csv.NewWriter(counter)

	if err := csvWriter.Write(domain.AllColumns()); err != nil {
		return 0, counter.count, fmt.Errorf("write header: %w", err)
	}

	for _, row := range rows {
		if err := csvWriter.Write(recordFor(row)); err != nil {
			return 0, counter.count, fmt.Errorf("write row for %q: %w", row.TagID, err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return 0, counter.count, fmt.Errorf("flush export: %w", err)
	}

	s.logger.Info("export completed",
		zap.Int("rows", len(rows)),
		zap.Int64("bytes", counter.count),
	)
	return len(rows), counter.count, nil
}

func recordFor(row domain.ExportRow) []string {
	return []string{
		sanitizeCell(row.SiteName),
		sanitizeCell(row.CellName),
		strconv.Itoa(row.LineNumber),
		sanitizeCell(row.EquipmentName),
		sanitizeCell(string(row.EquipmentType)),
		sanitizeCell(row.TagID),
		sanitizeCell(row.Description),
		sanitizeCell(row.Make),
		sanitizeCell(row.Model),
		sanitizeCell(row.IPAddress),
		sanitizeCell(row.FirmwareVersion),
	}
}

// sanitizeCell defuses spreadsheet formula injection: values starting with a
// formula trigger character are prefixed with a single quote.
func sanitizeCell(value string) string {
	if value == "" {
		return value
	}
	if strings.ContainsRune("=+-@", rune(value[0])) {
		return "'" + value
	}
	return value
}

type countingWriter struct {
	writer io.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}
