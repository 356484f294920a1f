package pipeline

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"mediascore/internal/indicator"
	"mediascore/internal/models"
)

var absoluteURLPattern = regexp.MustCompile(`^https?://\S+$`)

// MediaLink is one link-bearing cell discovered in a media-family row.
type MediaLink struct {
	Field     string `json:"field"`
	MediaType string `json:"media_type"`
	URL       string `json:"url"`
}

// MediaRow is a transformed media-family row: its links in column order plus
// any unrecognized columns carried along as additional data.
type MediaRow struct {
	RowIndex   int               `json:"row_index"`
	Links      []MediaLink       `json:"links"`
	Additional map[string]string `json:"additional,omitempty"`
}

// TargetRow is a transformed target/realization row.
type TargetRow struct {
	RowIndex    int               `json:"row_index"`
	Indicator   string            `json:"indicator"`
	Target      float64           `json:"target"`
	Realization float64           `json:"realization"`
	Unit        string            `json:"unit"`
	Percent     float64           `json:"percent"`
	Additional  map[string]string `json:"additional,omitempty"`
}

// Transformed is the tagged output of the transform stage; exactly one of
// MediaRows/TargetRows is populated depending on the indicator family.
type Transformed struct {
	Family     string      `json:"family"`
	MediaRows  []MediaRow  `json:"media_rows,omitempty"`
	TargetRows []TargetRow `json:"target_rows,omitempty"`
}

// Links returns every discovered link across all rows, preserving row order
// and, within a row, field configuration order.
func (t *Transformed) Links() []MediaLink {
	var all []MediaLink
	for _, row := range t.MediaRows {
		all = append(all, row.Links...)
	}
	return all
}

// Transform converts extracted rows into typed domain records for the
// indicator family. Row order is preserved; it is significant for display
// and per-media-type grouping downstream.
func Transform(rows []RawRow, cfg indicator.Config) *Transformed {
	if cfg.Family == models.FamilyTargetRealization {
		return transformTarget(rows)
	}
	return transformMedia(rows, cfg)
}

func transformMedia(rows []RawRow, cfg indicator.Config) *Transformed {
	out := &Transformed{Family: models.FamilyMedia}
	linkFields := cfg.LinkFields()

	for _, row := range rows {
		mr := MediaRow{RowIndex: row.RowIndex, Additional: row.Extra}

		for _, field := range linkFields {
			value := strings.TrimSpace(row.Fields[field.Canonical])
			if value == "" {
				continue
			}
			// Format heuristics are not authoritative; actual HTTP
			// resolution is the real arbiter, so odd-looking links are
			// logged and kept.
			if !looksLikeLink(value) {
				slog.Warn("link does not match a recognized URL pattern",
					"row", row.RowIndex, "field", field.Canonical, "value", value)
			}
			mr.Links = append(mr.Links, MediaLink{
				Field:     field.Canonical,
				MediaType: field.MediaType,
				URL:       value,
			})
		}

		out.MediaRows = append(out.MediaRows, mr)
	}

	return out
}

func transformTarget(rows []RawRow) *Transformed {
	out := &Transformed{Family: models.FamilyTargetRealization}

	for _, row := range rows {
		target := parseNumber(row.Fields["target"])
		realization := parseNumber(row.Fields["realization"])

		tr := TargetRow{
			RowIndex:    row.RowIndex,
			Indicator:   row.Fields["indicator"],
			Target:      target,
			Realization: realization,
			Unit:        row.Fields["unit"],
			Additional:  row.Extra,
		}
		// An undefined target yields 0% achievement, not an error.
		if target > 0 {
			tr.Percent = realization / target * 100
		}

		out.TargetRows = append(out.TargetRows, tr)
	}

	return out
}

// looksLikeLink checks for an absolute URL or a known cloud-storage pattern.
func looksLikeLink(value string) bool {
	if absoluteURLPattern.MatchString(value) {
		return true
	}
	return strings.Contains(value, "drive.google.com") || strings.Contains(value, "dropbox.com")
}

// parseNumber parses a numeric cell; non-numeric or missing values become 0.
func parseNumber(value string) float64 {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return n
}
