package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is a parsed spreadsheet: the header row and the data rows below it.
type Sheet struct {
	Headers []string
	Rows    [][]string
}

// Parse reads spreadsheet bytes into a Sheet. The format is chosen by file
// extension: .xlsx/.xls via excelize, .csv via encoding/csv. The first
// non-empty row is the header; everything below it is data. Fully empty
// trailing rows are dropped, but empty rows between data rows are kept so
// row indexes stay traceable to the uploaded file.
func Parse(fileName string, data []byte) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xls":
		return parseExcel(data)
	case ".csv":
		return parseCSV(data)
	default:
		return nil, fmt.Errorf("unsupported spreadsheet format: %s", filepath.Ext(fileName))
	}
}

func parseExcel(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	return buildSheet(rows)
}

func parseCSV(data []byte) (*Sheet, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	return buildSheet(records)
}

func buildSheet(rows [][]string) (*Sheet, error) {
	headerIdx := -1
	for i, row := range rows {
		if !isEmptyRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("spreadsheet is empty")
	}

	data := rows[headerIdx+1:]
	for len(data) > 0 && isEmptyRow(data[len(data)-1]) {
		data = data[:len(data)-1]
	}

	return &Sheet{Headers: rows[headerIdx], Rows: data}, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
