package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rpattn/equipreg/internal/domain"
)

var (
	// ErrEmptyFile is returned when an upload carries no bytes.
	ErrEmptyFile = errors.New("file is empty")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

const (
	// previewRowLimit caps how many parsed rows a validation result carries
	// for UI display.
	previewRowLimit = 10
	// ruleCheckRowLimit bounds the per-field rule pass so interactive
	// validation stays cheap on large files.
	ruleCheckRowLimit = 100

	tagIDMinLength = 3
	tagIDMaxLength = 100
)

// ValidationResult reports header findings, bounded row findings, and a
// preview of the parsed data.
type ValidationResult struct {
	IsValid      bool                 `json:"is_valid"`
	HeaderErrors []domain.HeaderError `json:"header_errors"`
	RowErrors    []domain.RowError    `json:"row_errors"`
	Preview      []map[string]string  `json:"preview"`
	TotalRows    int                  `json:"total_rows"`
}

// Validator parses and checks uploaded files against the fixed column schema.
type Validator struct{}

// NewValidator creates a validator for the delimited file schema.
func NewValidator() *Validator {
	return &Validator{}
}

// Template returns a header row plus one illustrative data row so operators
// can author files by hand.
func (v *Validator) Template() []byte {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	_ = writer.Write(domain.AllColumns())
	_ = writer.Write([]string{
		"Springfield Plant",
		"Body Shop",
		"1",
		"Weld Robot 01",
		string(domain.EquipmentTypeRobot),
		"PLC-001",
		"Primary weld controller",
		"Allen-Bradley",
		"ControlLogix 5580",
		"192.168.10.21",
		"32.011",
	})
	writer.Flush()
	return buf.Bytes()
}

// Validate parses the payload, checks the header, runs the per-field rule
// pass over the first 100 data rows, and captures a 10 row preview.
func (v *Validator) Validate(payload []byte) (ValidationResult, error) {
	result := ValidationResult{
		HeaderErrors: []domain.HeaderError{},
		RowErrors:    []domain.RowError{},
		Preview:      []map[string]string{},
	}

	table, err := parseTable(payload)
	if err != nil {
		return result, err
	}

	result.TotalRows = len(table.rows)
	result.HeaderErrors = checkHeader(table.headers)
	result.IsValid = true
	for _, headerErr := range result.HeaderErrors {
		if headerErr.Fatal {
			result.IsValid = false
		}
	}

	for idx, record := range table.rows {
		if idx < previewRowLimit {
			result.Preview = append(result.Preview, previewRow(table.headers, record))
		}
		if idx >= ruleCheckRowLimit {
			break
		}
		rowNumber := idx + 2 // header occupies line 1
		result.RowErrors = append(result.RowErrors, checkRow(table, record, rowNumber)...)
	}

	return result, nil
}

// CountRows returns the number of data rows in the payload, header excluded.
func (v *Validator) CountRows(payload []byte) (int, error) {
	table, err := parseTable(payload)
	if err != nil {
		return 0, err
	}
	return len(table.rows), nil
}

type tableData struct {
	headers []string
	columns map[string]int
	rows    [][]string
}

func parseTable(payload []byte) (tableData, error) {
	if len(payload) == 0 {
		return tableData{}, ErrEmptyFile
	}

	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}

	var headerRow []string
	var dataRows [][]string
	for _, record := range records {
		if emptyRecord(record) {
			continue
		}
		if headerRow == nil {
			headerRow = record
			continue
		}
		dataRows = append(dataRows, record)
	}
	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := make([]string, len(headerRow))
	columns := make(map[string]int, len(headerRow))
	for i, value := range headerRow {
		name := strings.ToLower(strings.TrimSpace(value))
		headers[i] = name
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}

	return tableData{headers: headers, columns: columns, rows: dataRows}, nil
}

func emptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func checkHeader(headers []string) []domain.HeaderError {
	findings := []domain.HeaderError{}

	present := make(map[string]bool, len(headers))
	for _, header := range headers {
		present[header] = true
	}
	for _, required := range domain.RequiredColumns() {
		if !present[required] {
			findings = append(findings, domain.HeaderError{
				Column:  required,
				Message: fmt.Sprintf("required column %q is missing", required),
				Fatal:   true,
			})
		}
	}

	known := make(map[string]bool)
	for _, column := range domain.AllColumns() {
		known[column] = true
	}
	for _, header := range headers {
		if !known[header] {
			findings = append(findings, domain.HeaderError{
				Column:  header,
				Message: fmt.Sprintf("column %q is not recognized and will be ignored", header),
			})
		}
	}

	return findings
}

func previewRow(headers []string, record []string) map[string]string {
	values := make(map[string]string, len(headers))
	for i, header := range headers {
		if i < len(record) {
			values[header] = strings.TrimSpace(record[i])
		} else {
			values[header] = ""
		}
	}
	return values
}

func checkRow(table tableData, record []string, rowNumber int) []domain.RowError {
	var findings []domain.RowError

	field := func(column string) string {
		idx, ok := table.columns[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	for _, column := range domain.RequiredColumns() {
		if _, ok := table.columns[column]; !ok {
			continue // already a fatal header finding
		}
		if field(column) == "" {
			findings = append(findings, *domain.NewRowError(rowNumber, column, "", "required field is empty"))
		}
	}

	if value := field(domain.ColumnLineNumber); value != "" {
		if _, err := strconv.Atoi(value); err != nil {
			findings = append(findings, *domain.NewRowError(rowNumber, domain.ColumnLineNumber, value, "must be an integer"))
		}
	}

	if value := field(domain.ColumnEquipmentType); value != "" && !domain.ValidEquipmentType(value) {
		findings = append(findings, *domain.NewRowError(
			rowNumber, domain.ColumnEquipmentType, value,
			fmt.Sprintf("must be one of: %s", joinEquipmentTypes()),
		))
	}

	if value := field(domain.ColumnTagID); value != "" {
		if len(value) < tagIDMinLength || len(value) > tagIDMaxLength {
			findings = append(findings, *domain.NewRowError(
				rowNumber, domain.ColumnTagID, value,
				fmt.Sprintf("length must be between %d and %d characters", tagIDMinLength, tagIDMaxLength),
			))
		}
	}

	if value := field(domain.ColumnIPAddress); value != "" && !validAddress(value) {
		findings = append(findings, *domain.NewRowError(rowNumber, domain.ColumnIPAddress, value, "must be a valid IPv4 or IPv6 address"))
	}

	if len(record) > len(table.headers) {
		findings = append(findings, domain.RowError{
			Row:      rowNumber,
			Message:  fmt.Sprintf("row has %d values but the header declares %d columns", len(record), len(table.headers)),
			Severity: domain.SeverityWarning,
		})
	}

	return findings
}

func joinEquipmentTypes() string {
	types := domain.EquipmentTypes()
	values := make([]string, len(types))
	for i, t := range types {
		values[i] = string(t)
	}
	return strings.Join(values, ", ")
}

// validAddress accepts dotted-quad IPv4 with each octet 0-255, and IPv6 in
// full 8-group form or with a single "::" compression where the split halves
// together carry fewer than 8 groups.
func validAddress(value string) bool {
	return validIPv4(value) || validIPv6(value)
}

func validIPv4(value string) bool {
	octets := strings.Split(value, ".")
	if len(octets) != 4 {
		return false
	}
	for _, octet := range octets {
		if octet == "" || len(octet) > 3 {
			return false
		}
		for _, r := range octet {
			if r < '0' || r > '9' {
				return false
			}
		}
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

func validIPv6(value string) bool {
	if !strings.Contains(value, ":") {
		return false
	}
	compressions := strings.Count(value, "::")
	switch compressions {
	case 0:
		groups := strings.Split(value, ":")
		if len(groups) != 8 {
			return false
		}
		return validHexGroups(groups)
	case 1:
		halves := strings.SplitN(value, "::", 2)
		groups := splitGroups(halves[0])
		groups = append(groups, splitGroups(halves[1])...)
		if len(groups) >= 8 {
			return false
		}
		return validHexGroups(groups)
	default:
		return false
	}
}

func splitGroups(half string) []string {
	if half == "" {
		return nil
	}
	return strings.Split(half, ":")
}

func validHexGroups(groups []string) bool {
	for _, group := range groups {
		if len(group) < 1 || len(group) > 4 {
			return false
		}
		for _, r := range group {
			switch {
			case r >= '0' && r <= '9':
			case r >= 'a' && r <= 'f':
			case r >= 'A' && r <= 'F':
			default:
				return false
			}
		}
	}
	return true
}
