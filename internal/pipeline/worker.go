package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediascore/internal/indicator"
	"mediascore/internal/models"
	sentryutil "mediascore/internal/sentry"
	"mediascore/internal/spreadsheet"
)

// ProcessedPayload is the post-transform, post-scoring structured payload
// persisted on the report.
type ProcessedPayload struct {
	Family     string           `json:"family"`
	MediaRows  []MediaRow       `json:"media_rows,omitempty"`
	TargetRows []TargetRow      `json:"target_rows,omitempty"`
	Duplicates *DuplicateResult `json:"duplicates,omitempty"`
	Score      *ScoreResult     `json:"score,omitempty"`
}

// WorkerConfig holds the worker's tunables.
type WorkerConfig struct {
	BatchSize       int
	LinkTimeout     time.Duration
	MaxFetchBytes   int64
	StaleClaimAfter time.Duration
}

// Worker owns the report lifecycle: it claims queued reports, sequences the
// extraction, transform, link-resolution, duplicate-detection and scoring
// stages, persists intermediate and final results, and emits a notification
// on every status transition. No other component mutates report status
// except the admin approval boundary.
type Worker struct {
	store      ReportStore
	notifier   NotificationSink
	kpis       KPISource
	files      FileSource
	indicators *indicator.Registry
	resolver   *LinkResolver
	cfg        WorkerConfig
}

// NewWorker wires a pipeline worker from its collaborators.
func NewWorker(
	store ReportStore,
	notifier NotificationSink,
	kpis KPISource,
	files FileSource,
	indicators *indicator.Registry,
	cfg WorkerConfig,
) *Worker {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 5
	}
	if cfg.LinkTimeout <= 0 {
		cfg.LinkTimeout = 15 * time.Second
	}
	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = 8 << 20
	}
	if cfg.StaleClaimAfter <= 0 {
		cfg.StaleClaimAfter = 15 * time.Minute
	}

	return &Worker{
		store:      store,
		notifier:   notifier,
		kpis:       kpis,
		files:      files,
		indicators: indicators,
		resolver:   NewLinkResolver(cfg.LinkTimeout, cfg.MaxFetchBytes),
		cfg:        cfg,
	}
}

// ProcessQueued claims a batch of eligible reports and processes them one at
// a time. Claiming is an atomic conditional update, so concurrent
// invocations never double-process a report. Returns how many reports were
// processed.
func (w *Worker) ProcessQueued(ctx context.Context) (int, error) {
	reports, err := w.store.ClaimQueued(ctx, w.cfg.BatchSize, w.cfg.StaleClaimAfter)
	if err != nil {
		return 0, &StoreError{Op: "claim queued reports", Err: err}
	}

	for i := range reports {
		w.processReport(ctx, &reports[i])
	}

	return len(reports), nil
}

// ProcessByID claims and processes a single report.
func (w *Worker) ProcessByID(ctx context.Context, id string) error {
	report, err := w.store.ClaimByID(ctx, id, w.cfg.StaleClaimAfter)
	if err != nil {
		return &StoreError{Op: "claim report", Err: err}
	}
	if report == nil {
		return fmt.Errorf("report %s is not eligible for processing", id)
	}

	w.processReport(ctx, report)
	return nil
}

// processReport drives one report from processing to a terminal-or-gated
// state. Every exit path persists a status and emits a notification.
func (w *Worker) processReport(ctx context.Context, report *models.Report) {
	slog.Info("processing report",
		"report_id", report.ID, "indicator", report.IndicatorType, "user_id", report.UserID)

	w.notify(ctx, report, models.NotifyProcessingStarted,
		"Report processing started",
		fmt.Sprintf("Your report %s is being processed.", report.FileName))

	cfg, ok := w.indicators.Get(report.IndicatorType)
	if !ok {
		w.fail(ctx, report, fmt.Errorf("unknown indicator type %q", report.IndicatorType))
		return
	}

	data, err := w.files.Read(ctx, report.StoragePath)
	if err != nil {
		w.fail(ctx, report, fmt.Errorf("read uploaded file: %w", err))
		return
	}

	sheet, err := spreadsheet.Parse(report.FileName, data)
	if err != nil {
		w.fail(ctx, report, err)
		return
	}

	rows, err := Extract(sheet.Headers, sheet.Rows, cfg)
	if err != nil {
		w.fail(ctx, report, err)
		return
	}

	rawJSON, err := json.Marshal(rows)
	if err != nil {
		w.fail(ctx, report, fmt.Errorf("encode raw rows: %w", err))
		return
	}
	if err := w.store.SaveRawData(ctx, report.ID, rawJSON); err != nil {
		w.fail(ctx, report, &StoreError{Op: "save raw data", Err: err})
		return
	}

	transformed := Transform(rows, cfg)
	payload := &ProcessedPayload{
		Family:     transformed.Family,
		MediaRows:  transformed.MediaRows,
		TargetRows: transformed.TargetRows,
	}

	var items []models.ProcessedMediaItem
	var hashes []string

	if transformed.Family == models.FamilyMedia {
		items = w.resolveLinks(ctx, report.ID, transformed.Links())

		fingerprints := make([]Fingerprint, len(items))
		for i, item := range items {
			fingerprints[i] = Fingerprint{
				NormalizedURL: item.NormalizedURL,
				ContentHash:   item.ContentHash,
			}
			if item.ContentHash != "" {
				hashes = append(hashes, item.ContentHash)
			}
		}

		// Read the cross-report fingerprint set only after all of this
		// report's links are fingerprinted, so the comparison sees a
		// consistent snapshot.
		existing, err := w.store.FingerprintsExcluding(ctx, report.ID)
		if err != nil {
			w.fail(ctx, report, &StoreError{Op: "load fingerprints", Err: err})
			return
		}

		duplicates := DetectDuplicates(fingerprints, existing)
		payload.Duplicates = &duplicates

		for i := range items {
			if duplicates.IsDuplicate(i) {
				items[i].IsDuplicate = true
			}
		}

		// Item-level flags stay persisted for audit even when the
		// whole-report policy is rejection.
		if err := w.store.ReplaceItems(ctx, report.ID, items); err != nil {
			w.fail(ctx, report, &StoreError{Op: "save media items", Err: err})
			return
		}

		if duplicates.HasCrossReport() {
			violation := &DuplicateViolation{
				ReportID:           report.ID,
				OffendingReportIDs: duplicates.OffendingReportIDs,
			}
			w.systemReject(ctx, report, violation)
			return
		}
	}

	kpis, err := w.kpis.ActiveKPIs(ctx, report.IndicatorType)
	if err != nil {
		w.fail(ctx, report, &StoreError{Op: "load KPI config", Err: err})
		return
	}

	var score *ScoreResult
	if transformed.Family == models.FamilyMedia {
		score, err = ScoreMediaItems(items, kpis)
	} else {
		score, err = ScoreTargetRows(transformed.TargetRows, kpis)
	}
	if err != nil {
		w.fail(ctx, report, err)
		return
	}
	payload.Score = score

	processedJSON, err := json.Marshal(payload)
	if err != nil {
		w.fail(ctx, report, fmt.Errorf("encode processed payload: %w", err))
		return
	}

	if err := w.store.MarkPendingApproval(ctx, report.ID, processedJSON, score.Total, hashes); err != nil {
		w.fail(ctx, report, &StoreError{Op: "persist pipeline result", Err: err})
		return
	}

	report.Status = models.StatusPendingApproval
	w.notify(ctx, report, models.NotifyAwaitingApproval,
		"Report awaiting approval",
		fmt.Sprintf("Your report %s scored %.2f and is awaiting admin approval.", report.FileName, score.Total))

	slog.Info("report pending approval",
		"report_id", report.ID, "score", score.Total, "items", len(items))
}

// resolveLinks fetches and fingerprints every link sequentially. A failed
// fetch is recorded on the item, never raised: one unreachable host must not
// abort the batch.
func (w *Worker) resolveLinks(ctx context.Context, reportID string, links []MediaLink) []models.ProcessedMediaItem {
	items := make([]models.ProcessedMediaItem, 0, len(links))

	for _, link := range links {
		res := w.resolver.Resolve(ctx, link.URL)

		item := models.ProcessedMediaItem{
			ReportID:      reportID,
			OriginalURL:   link.URL,
			FinalURL:      res.FinalURL,
			NormalizedURL: NormalizeURL(res.FinalURL),
			MediaType:     link.MediaType,
			ContentHash:   HashContent(res.Content),
			IsValid:       res.OK(),
		}

		if !res.OK() {
			msg := res.Err
			if msg == "" {
				msg = fmt.Sprintf("HTTP status %d", res.StatusCode)
			}
			item.ValidationError = &msg
		}

		meta := map[string]any{"status_code": res.StatusCode}
		if res.PageTitle != "" {
			meta["page_title"] = res.PageTitle
		}
		if metaJSON, err := json.Marshal(meta); err == nil {
			item.Metadata = metaJSON
		}

		items = append(items, item)
	}

	return items
}

// FinalizeApproved re-enters the scoring stage for an approved report and
// completes it. Called by the approval boundary after an admin approves.
func (w *Worker) FinalizeApproved(ctx context.Context, id string) error {
	report, err := w.store.GetByID(ctx, id)
	if err != nil {
		return &StoreError{Op: "load report", Err: err}
	}
	if report == nil {
		return fmt.Errorf("report %s not found", id)
	}
	if report.Status != models.StatusApproved {
		return &InvalidStateError{ReportID: id, Status: report.Status, Action: "finalize"}
	}

	var payload ProcessedPayload
	if err := json.Unmarshal(report.ProcessedData, &payload); err != nil {
		return fmt.Errorf("decode processed payload for report %s: %w", id, err)
	}

	kpis, err := w.kpis.ActiveKPIs(ctx, report.IndicatorType)
	if err != nil {
		return &StoreError{Op: "load KPI config", Err: err}
	}

	var score *ScoreResult
	if payload.Family == models.FamilyMedia {
		items, err := w.store.ItemsByReport(ctx, id)
		if err != nil {
			return &StoreError{Op: "load media items", Err: err}
		}
		score, err = ScoreMediaItems(items, kpis)
		if err != nil {
			return err
		}
	} else {
		score, err = ScoreTargetRows(payload.TargetRows, kpis)
		if err != nil {
			return err
		}
	}

	if err := w.store.MarkCompleted(ctx, id, score.Total); err != nil {
		return &StoreError{Op: "mark completed", Err: err}
	}

	report.Status = models.StatusCompleted
	w.notify(ctx, report, models.NotifyCompleted,
		"Report completed",
		fmt.Sprintf("Your report %s has been finalized with score %.2f.", report.FileName, score.Total))

	slog.Info("report completed", "report_id", id, "score", score.Total)
	return nil
}

// systemReject moves a report to system_rejected over a duplicate violation.
func (w *Worker) systemReject(ctx context.Context, report *models.Report, violation *DuplicateViolation) {
	if err := w.store.MarkSystemRejected(ctx, report.ID, violation.Error()); err != nil {
		w.fail(ctx, report, &StoreError{Op: "mark system_rejected", Err: err})
		return
	}

	report.Status = models.StatusSystemRejected
	w.notify(ctx, report, models.NotifySystemRejected,
		"Report rejected by system", violation.Error())

	slog.Warn("report system-rejected",
		"report_id", report.ID, "offending_reports", violation.OffendingReportIDs)
}

// fail moves a report to failed and records the reason for both the
// submitter and the admin.
func (w *Worker) fail(ctx context.Context, report *models.Report, cause error) {
	slog.Error("pipeline failed", "report_id", report.ID, "error", cause)
	sentryutil.CaptureError(cause, map[string]string{
		"report_id": report.ID,
		"indicator": report.IndicatorType,
	})

	if err := w.store.MarkFailed(ctx, report.ID, cause.Error()); err != nil {
		slog.Error("failed to persist failure status", "report_id", report.ID, "error", err)
		return
	}

	report.Status = models.StatusFailed
	w.notify(ctx, report, models.NotifyFailed,
		"Report processing failed", cause.Error())
}

// notify writes to the sink in transition order; a sink failure is logged
// and never aborts the pipeline.
func (w *Worker) notify(ctx context.Context, report *models.Report, ntype, title, message string) {
	n := models.Notification{
		UserID:          report.UserID,
		Type:            ntype,
		Title:           title,
		Message:         message,
		RelatedReportID: &report.ID,
	}
	if err := w.notifier.Notify(ctx, n); err != nil {
		slog.Error("notification write failed",
			"report_id", report.ID, "type", ntype, "error", err)
	}
}

// IsTerminalFailure reports whether an error belongs to the terminal part of
// the taxonomy (schema, duplicate, scoring config, store).
func IsTerminalFailure(err error) bool {
	var schemaErr *SchemaError
	var dupErr *DuplicateViolation
	var cfgErr *ScoringConfigError
	var storeErr *StoreError
	return errors.As(err, &schemaErr) ||
		errors.As(err, &dupErr) ||
		errors.As(err, &cfgErr) ||
		errors.As(err, &storeErr)
}
