package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	apperr "projecthub/internal/pkg/errors"
)

// readRows returns every row of the file including the header. The format
// is picked by extension.
func readRows(filename string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return readCSV(r)
	case ".xlsx":
		return readXLSX(r)
	default:
		return nil, apperr.Validation("unsupported file type %q, expected .csv or .xlsx", filepath.Ext(filename))
	}
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, apperr.Validation("invalid CSV: %v", err)
		}
		rows = append(rows, rec)
	}
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("invalid XLSX: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

type column int

const (
	colTitle column = iota
	colDescription
	colStatus
	colPriority
	colAssignee
	colDueDate
	colTags
	numColumns
)

var headerAliases = map[string]column{
	"title":          colTitle,
	"name":           colTitle,
	"description":    colDescription,
	"status":         colStatus,
	"priority":       colPriority,
	"assignee":       colAssignee,
	"assignee_email": colAssignee,
	"due_date":       colDueDate,
	"due":            colDueDate,
	"tags":           colTags,
}

// columnIndex maps each known column to its position in the header, or -1.
type columnIndex [numColumns]int

func parseHeader(header []string) (columnIndex, error) {
	var idx columnIndex
	for i := range idx {
		idx[i] = -1
	}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if c, ok := headerAliases[key]; ok && idx[c] == -1 {
			idx[c] = i
		}
	}
	if idx[colTitle] == -1 {
		return idx, apperr.Validation("header row must contain a title column")
	}
	return idx, nil
}

func (idx columnIndex) get(row []string, c column) string {
	i := idx[c]
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
