package pipeline

import (
	"fmt"
	"strings"
)

// SchemaError signals that a spreadsheet does not satisfy the indicator's
// minimum-column requirement. Terminal for the report; never retried.
type SchemaError struct {
	IndicatorType string
	Found         []string
	Expected      []string
	MinRequired   int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf(
		"spreadsheet schema invalid for indicator %q: found columns [%s], expected at least %d of [%s]",
		e.IndicatorType,
		strings.Join(e.Found, ", "),
		e.MinRequired,
		strings.Join(e.Expected, ", "),
	)
}

// DuplicateViolation signals report-level reuse of another report's links or
// content. Terminal; the report transitions to system_rejected.
type DuplicateViolation struct {
	ReportID           string
	OffendingReportIDs []string
}

func (e *DuplicateViolation) Error() string {
	return fmt.Sprintf(
		"report %s duplicates content already submitted in report(s): %s",
		e.ReportID,
		strings.Join(e.OffendingReportIDs, ", "),
	)
}

// ScoringConfigError signals that the configured scoring ranges do not cover
// a computed achievement percentage. This is a configuration bug, not a data
// quality problem, and is surfaced distinctly so administrators fix the KPI
// setup instead of resubmitting data.
type ScoringConfigError struct {
	KPICode string
	Percent float64
}

func (e *ScoringConfigError) Error() string {
	return fmt.Sprintf(
		"no scoring range covers achievement %.2f%% for KPI %q; check the KPI's range configuration",
		e.Percent, e.KPICode,
	)
}

// StoreError wraps a persistence failure during the pipeline. Terminal,
// because skipping a store read could silently disable duplicate detection.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("report store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// InvalidStateError signals an admin decision attempted on a report that is
// not awaiting approval. Rejected synchronously; no state change.
type InvalidStateError struct {
	ReportID string
	Status   string
	Action   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf(
		"cannot %s report %s in status %q: report must be pending_approval",
		e.Action, e.ReportID, e.Status,
	)
}
