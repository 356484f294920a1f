package pipeline

import "sort"

// Fingerprint identifies one link of the report being processed, in link
// list order.
type Fingerprint struct {
	NormalizedURL string
	ContentHash   string
}

// StoredFingerprint is one fingerprint from a previously stored report.
type StoredFingerprint struct {
	ReportID      string
	NormalizedURL string
	ContentHash   string
}

// DuplicateFinding flags one link of the current report as a duplicate,
// with the axes that triggered and the other reports involved.
type DuplicateFinding struct {
	Index              int      `json:"index"`
	NormalizedURL      string   `json:"normalized_url"`
	Reasons            []string `json:"reasons"`
	OffendingReportIDs []string `json:"offending_report_ids,omitempty"`
}

// Duplicate reasons recorded per finding
const (
	ReasonURLIntra     = "url_duplicate_within_report"
	ReasonURLCross     = "url_duplicate_across_reports"
	ReasonContentIntra = "content_duplicate_within_report"
	ReasonContentCross = "content_duplicate_across_reports"
)

// DuplicateResult is the outcome of duplicate detection for one report.
type DuplicateResult struct {
	Findings           []DuplicateFinding `json:"findings,omitempty"`
	OffendingReportIDs []string           `json:"offending_report_ids,omitempty"`
}

// HasCrossReport reports whether any link reuses another report's material.
func (r *DuplicateResult) HasCrossReport() bool {
	return len(r.OffendingReportIDs) > 0
}

// IsDuplicate reports whether the link at the given index was flagged.
func (r *DuplicateResult) IsDuplicate(index int) bool {
	for _, f := range r.Findings {
		if f.Index == index {
			return true
		}
	}
	return false
}

// DetectDuplicates compares the current report's fingerprints against its
// own link list and against every other stored report. A link is flagged
// when either axis triggers: URL-level (normalized final URL repeated within
// the report, or present in any other report) or content-level (non-empty
// hash seen earlier in the report's own list, or in another report's stored
// fingerprints). The first intra-report occurrence is not flagged; later
// ones are. The caller is responsible for excluding the report being
// processed from the stored set.
func DetectDuplicates(current []Fingerprint, existing []StoredFingerprint) DuplicateResult {
	urlOwners := make(map[string][]string)
	hashOwners := make(map[string][]string)
	for _, sf := range existing {
		if sf.NormalizedURL != "" {
			urlOwners[sf.NormalizedURL] = append(urlOwners[sf.NormalizedURL], sf.ReportID)
		}
		if sf.ContentHash != "" {
			hashOwners[sf.ContentHash] = append(hashOwners[sf.ContentHash], sf.ReportID)
		}
	}

	seenURLs := make(map[string]bool)
	seenHashes := make(map[string]bool)
	offending := make(map[string]bool)

	var result DuplicateResult

	for i, fp := range current {
		var reasons []string
		var owners []string

		if fp.NormalizedURL != "" {
			if seenURLs[fp.NormalizedURL] {
				reasons = append(reasons, ReasonURLIntra)
			}
			if ids := urlOwners[fp.NormalizedURL]; len(ids) > 0 {
				reasons = append(reasons, ReasonURLCross)
				owners = append(owners, ids...)
			}
			seenURLs[fp.NormalizedURL] = true
		}

		if fp.ContentHash != "" {
			if seenHashes[fp.ContentHash] {
				reasons = append(reasons, ReasonContentIntra)
			}
			if ids := hashOwners[fp.ContentHash]; len(ids) > 0 {
				reasons = append(reasons, ReasonContentCross)
				owners = append(owners, ids...)
			}
			seenHashes[fp.ContentHash] = true
		}

		if len(reasons) == 0 {
			continue
		}

		owners = distinct(owners)
		for _, id := range owners {
			offending[id] = true
		}

		result.Findings = append(result.Findings, DuplicateFinding{
			Index:              i,
			NormalizedURL:      fp.NormalizedURL,
			Reasons:            reasons,
			OffendingReportIDs: owners,
		})
	}

	for id := range offending {
		result.OffendingReportIDs = append(result.OffendingReportIDs, id)
	}
	sort.Strings(result.OffendingReportIDs)

	return result
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
