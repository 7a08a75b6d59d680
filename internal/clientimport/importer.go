package clientimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"apartment-locator/internal/config"
	"apartment-locator/internal/fields"
)

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv
var ErrUnsupportedFormat = errors.New("unsupported import format")

// RowResult is the outcome for one spreadsheet row.
// Row is the 1-based sheet row number, so the header is row 1.
type RowResult struct {
	Row         int                     `json:"row"`
	Values      map[string]fields.Value `json:"values"`
	Errors      []string                `json:"errors,omitempty"`
	DuplicateOf int                     `json:"duplicate_of,omitempty"`
}

// Valid reports whether the row can be imported as a new client
func (r RowResult) Valid() bool {
	return len(r.Errors) == 0 && r.DuplicateOf == 0
}

// Result summarizes a parsed import file
type Result struct {
	Total            int               `json:"total"`
	ValidCount       int               `json:"valid_count"`
	InvalidCount     int               `json:"invalid_count"`
	DuplicateCount   int               `json:"duplicate_count"`
	Columns          map[string]string `json:"columns"`
	UnmatchedHeaders []string          `json:"unmatched_headers,omitempty"`
	Rows             []RowResult       `json:"rows"`
}

// Importer parses client spreadsheets into validated client field values
type Importer struct {
	maxRows       int
	fuzzyDistance int
	logger        *zap.Logger
}

// NewImporter creates an importer using the import settings
func NewImporter(cfg config.ImportConfig, logger *zap.Logger) *Importer {
	return &Importer{
		maxRows:       cfg.MaxRows,
		fuzzyDistance: cfg.FuzzyDistance,
		logger:        logger,
	}
}

// Parse reads an .xlsx or .csv file, chosen by filename extension
func (im *Importer) Parse(r io.Reader, filename string) (*Result, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		rows, err = readXLSX(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}
	return im.parseRows(rows)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, &fields.ValidationError{Field: "file", Message: "Excel file has no sheets"}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	return rows, nil
}

func (im *Importer) parseRows(rows [][]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, &fields.ValidationError{Field: "file", Message: "file has no header row"}
	}

	columns, unmatched := MatchHeaders(rows[0], im.fuzzyDistance)
	if len(columns) == 0 {
		return nil, &fields.ValidationError{Field: "file", Message: "no column matches a client field"}
	}

	data := rows[1:]
	if im.maxRows > 0 && len(data) > im.maxRows {
		return nil, &fields.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file has %d rows, limit is %d", len(data), im.maxRows),
		}
	}

	result := &Result{
		Columns:          make(map[string]string, len(columns)),
		UnmatchedHeaders: unmatched,
	}
	for idx, f := range columns {
		result.Columns[strings.TrimSpace(rows[0][idx])] = f.Name()
	}

	seenEmail := map[string]int{}
	seenPhone := map[string]int{}

	for i, row := range data {
		if blank(row) {
			continue
		}
		res := parseRow(i+2, row, columns)

		if email, ok := res.Values[fields.ClientEmail.Name()].Str(); ok {
			key := strings.ToLower(email)
			if first, dup := seenEmail[key]; dup {
				res.DuplicateOf = first
			} else {
				seenEmail[key] = res.Row
			}
		}
		if phone, ok := res.Values[fields.ClientPhone.Name()].Str(); ok && res.DuplicateOf == 0 {
			key := phoneKey(phone)
			if first, dup := seenPhone[key]; dup {
				res.DuplicateOf = first
			} else if key != "" {
				seenPhone[key] = res.Row
			}
		}

		result.Total++
		switch {
		case len(res.Errors) > 0:
			result.InvalidCount++
		case res.DuplicateOf != 0:
			result.DuplicateCount++
		default:
			result.ValidCount++
		}
		result.Rows = append(result.Rows, res)
	}

	im.logger.Info("client import parsed",
		zap.Int("rows", result.Total),
		zap.Int("valid", result.ValidCount),
		zap.Int("invalid", result.InvalidCount),
		zap.Int("duplicates", result.DuplicateCount),
		zap.Strings("unmatched_headers", unmatched))
	return result, nil
}

func parseRow(rowNum int, row []string, columns map[int]fields.ClientField) RowResult {
	res := RowResult{Row: rowNum, Values: map[string]fields.Value{}}

	idxs := make([]int, 0, len(columns))
	for idx := range columns {
		idxs = append(idxs, idx)
	}
	slices.Sort(idxs)
	for _, idx := range idxs {
		f := columns[idx]
		if idx >= len(row) {
			continue
		}
		raw := strings.TrimSpace(row[idx])
		if raw == "" {
			continue
		}
		v, err := parseCell(f, raw)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", f.Name(), err))
			continue
		}
		res.Values[f.Name()] = v
	}

	_, hasFirst := res.Values[fields.ClientFirstName.Name()]
	_, hasLast := res.Values[fields.ClientLastName.Name()]
	_, hasEmail := res.Values[fields.ClientEmail.Name()]
	_, hasPhone := res.Values[fields.ClientPhone.Name()]
	if !hasFirst && !hasLast {
		res.Errors = append(res.Errors, "name: first or last name is required")
	}
	if !hasEmail && !hasPhone {
		res.Errors = append(res.Errors, "contact: email or phone is required")
	}

	if lo, ok := res.Values[fields.ClientBudgetMin.Name()].Num(); ok {
		if hi, ok := res.Values[fields.ClientBudgetMax.Name()].Num(); ok && lo > hi {
			res.Errors = append(res.Errors, "budget: minimum exceeds maximum")
		}
	}
	return res
}

// parseCell converts a raw cell into a value of the field's data type
func parseCell(f fields.ClientField, raw string) (fields.Value, error) {
	switch f.Spec().DataType {
	case fields.DataTypeNumber:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return fields.Null, fmt.Errorf("%q is not a number", raw)
		}
		if n < 0 {
			return fields.Null, fmt.Errorf("%q must not be negative", raw)
		}
		return fields.Number(n), nil

	case fields.DataTypeBoolean:
		switch strings.ToLower(raw) {
		case "yes", "y", "true", "1", "x":
			return fields.Bool(true), nil
		case "no", "n", "false", "0":
			return fields.Bool(false), nil
		}
		return fields.Null, fmt.Errorf("%q is not yes/no", raw)

	case fields.DataTypeList:
		var items []string
		for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' || r == '|' }) {
			if s := strings.TrimSpace(part); s != "" {
				items = append(items, s)
			}
		}
		return fields.List(items...), nil
	}

	switch f {
	case fields.ClientEmail:
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return fields.Null, fmt.Errorf("%q is not an email address", raw)
		}
		return fields.Text(strings.ToLower(addr.Address)), nil
	case fields.ClientPhone:
		if len(phoneKey(raw)) < 7 {
			return fields.Null, fmt.Errorf("%q is not a phone number", raw)
		}
	}
	return fields.Text(raw), nil
}

// phoneKey keeps the last ten digits so "+1 (555) 010-2000" and
// "555.010.2000" compare equal.
func phoneKey(phone string) string {
	var digits []byte
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return string(digits)
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
