package normalization

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

// Row is one source record with normalized (lower-cased, trimmed) keys.
// Tabular values are strings; JSON values keep their decoded types.
type Row map[string]any

// ErrUnsupportedFormat is returned for files that are not CSV, TXT, XLSX or
// JSON.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// SupportedExtensions lists the file extensions ReadFile accepts.
var SupportedExtensions = []string{".csv", ".txt", ".xlsx", ".json"}

// IsSupported reports whether path has a supported extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ReadFile reads a source file into rows, choosing the reader by extension.
func ReadFile(path string) ([]Row, error) {
	if !IsSupported(path) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(bytes.NewReader(data))
	case ".txt":
		return ReadDelimited(data)
	case ".xlsx":
		return ReadExcel(bytes.NewReader(data))
	default:
		return ReadJSON(data)
	}
}

// ReadCSV reads a comma-separated table with a header row. Records shorter
// than the header leave the trailing columns unset instead of failing the
// file; the normalizer then skips such a row for its missing fields.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := gocsv.LazyCSVReader(r)
	if cr, ok := reader.(*csv.Reader); ok {
		cr.FieldsPerRecord = -1
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return tableRows(records), nil
}

// delimiters are tried in this order when their header counts tie.
var delimiters = []rune{'\t', '|', ',', ';'}

// ReadDelimited reads a table whose delimiter is not known in advance.
// Candidates are ranked by how often they occur in the header line. The first
// one yielding at least two header columns and rows as wide as the header
// wins; when none is consistent, the first with two header columns is used.
func ReadDelimited(data []byte) ([]Row, error) {
	header := string(data)
	if i := strings.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}

	candidates := append([]rune(nil), delimiters...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return strings.Count(header, string(candidates[i])) > strings.Count(header, string(candidates[j]))
	})

	var (
		fallback [][]string
		lastErr  error
	)
	for _, delim := range candidates {
		records, err := readWithDelimiter(data, delim)
		if err != nil {
			lastErr = err
			continue
		}
		if consistentWidths(records) {
			return tableRows(records), nil
		}
		if fallback == nil {
			fallback = records
		}
	}
	if fallback != nil {
		return tableRows(fallback), nil
	}
	if lastErr == nil {
		lastErr = errors.New("no delimiter matched")
	}
	return nil, fmt.Errorf("read delimited text: %w", lastErr)
}

func readWithDelimiter(data []byte, delim rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || len(records[0]) < 2 {
		return nil, fmt.Errorf("delimiter %q: header has fewer than two columns", delim)
	}
	return records, nil
}

func consistentWidths(records [][]string) bool {
	for _, rec := range records[1:] {
		if len(rec) != len(records[0]) {
			return false
		}
	}
	return true
}

// ReadExcel reads the first sheet of a workbook whose first row is the
// header.
func ReadExcel(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("read excel: workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read excel sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return tableRows(records), nil
}

// tableRows keys every record after the first by the normalized header.
// Short records leave the trailing columns unset.
func tableRows(records [][]string) []Row {
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = normalizeKey(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, key := range header {
			if i < len(rec) {
				row[key] = rec[i]
			}
		}
		if !emptyRow(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

// ReadJSON reads a single object or an array of objects. A nested "data"
// object is merged into its parent, nested keys taking precedence.
func ReadJSON(data []byte) ([]Row, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, fmt.Errorf("read json: top-level value must be an object or array, got %T", doc)
	}

	rows := make([]Row, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, flattenJSON(obj))
	}
	return rows, nil
}

func flattenJSON(obj map[string]any) Row {
	row := make(Row, len(obj))
	for k, v := range obj {
		if strings.EqualFold(k, "data") {
			if _, nested := v.(map[string]any); nested {
				continue
			}
		}
		row[normalizeKey(k)] = v
	}
	for k, v := range obj {
		if !strings.EqualFold(k, "data") {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range nested {
				row[normalizeKey(nk)] = nv
			}
		}
	}
	return row
}

func emptyRow(row Row) bool {
	for _, v := range row {
		if !isBlank(v) {
			return false
		}
	}
	return true
}
