package pipeline

import (
	"strings"

	"mediascore/internal/indicator"
)

// RawRow is one extracted spreadsheet row: mapped canonical fields plus all
// unmapped original columns preserved under their original header. RowIndex
// is the 1-based position in the sheet's data section, for error messages.
type RawRow struct {
	RowIndex int               `json:"row_index"`
	Fields   map[string]string `json:"fields"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// MapColumns maps heterogeneous header names onto the indicator's canonical
// fields. For each canonical field the headers are scanned for an exact
// case-insensitive alias match first, then for case-insensitive substring
// containment in either direction. First match wins; alias order is the
// tie-break. Returns canonical field -> header column index.
func MapColumns(headers []string, cfg indicator.Config) map[string]int {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	claimed := make(map[int]bool)
	mapping := make(map[string]int)

	for _, field := range cfg.Fields {
		idx := -1

		for _, alias := range field.Aliases {
			a := strings.ToLower(alias)
			for i, h := range normalized {
				if claimed[i] || h == "" {
					continue
				}
				if h == a {
					idx = i
					break
				}
			}
			if idx >= 0 {
				break
			}
		}

		if idx < 0 {
			for _, alias := range field.Aliases {
				a := strings.ToLower(alias)
				for i, h := range normalized {
					if claimed[i] || h == "" {
						continue
					}
					if strings.Contains(h, a) || strings.Contains(a, h) {
						idx = i
						break
					}
				}
				if idx >= 0 {
					break
				}
			}
		}

		if idx >= 0 {
			mapping[field.Canonical] = idx
			claimed[idx] = true
		}
	}

	return mapping
}

// Extract yields one RawRow per data row, mapped through the indicator's
// column configuration. It fails with a SchemaError when fewer canonical
// fields than the indicator's minimum are found, or when the sheet has no
// header or no data rows. The whole report fails fast here rather than
// silently scoring incomplete data.
func Extract(headers []string, dataRows [][]string, cfg indicator.Config) ([]RawRow, error) {
	expected := make([]string, 0, len(cfg.Fields))
	for _, f := range cfg.Fields {
		expected = append(expected, f.Canonical)
	}

	if len(headers) == 0 || len(dataRows) == 0 {
		return nil, &SchemaError{
			IndicatorType: cfg.Key,
			Found:         nil,
			Expected:      expected,
			MinRequired:   cfg.MinFields,
		}
	}

	mapping := MapColumns(headers, cfg)
	if len(mapping) < cfg.MinFields {
		found := make([]string, 0, len(mapping))
		for name := range mapping {
			found = append(found, name)
		}
		return nil, &SchemaError{
			IndicatorType: cfg.Key,
			Found:         found,
			Expected:      expected,
			MinRequired:   cfg.MinFields,
		}
	}

	mappedCols := make(map[int]bool, len(mapping))
	for _, idx := range mapping {
		mappedCols[idx] = true
	}

	rows := make([]RawRow, 0, len(dataRows))
	for i, data := range dataRows {
		row := RawRow{
			RowIndex: i + 1,
			Fields:   make(map[string]string, len(mapping)),
		}

		for canonical, idx := range mapping {
			if idx < len(data) {
				row.Fields[canonical] = strings.TrimSpace(data[idx])
			} else {
				row.Fields[canonical] = ""
			}
		}

		for idx, header := range headers {
			if mappedCols[idx] || strings.TrimSpace(header) == "" {
				continue
			}
			if idx < len(data) && strings.TrimSpace(data[idx]) != "" {
				if row.Extra == nil {
					row.Extra = make(map[string]string)
				}
				row.Extra[strings.TrimSpace(header)] = strings.TrimSpace(data[idx])
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}
