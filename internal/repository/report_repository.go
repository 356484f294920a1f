package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"mediascore/internal/models"
	"mediascore/internal/pipeline"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ReportRepository persists the report aggregate: the report row, its
// processed media items, and the fingerprint set used for cross-report
// duplicate detection.
type ReportRepository struct {
	db *sql.DB
}

var _ pipeline.ReportStore = (*ReportRepository)(nil)

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `
	id, user_id, file_name, storage_path, indicator_type, status,
	raw_data, processed_data, calculated_score, rejection_reason,
	video_hashes, approved_by, approval_note, processing_started_at,
	approved_at, created_at, updated_at
`

// Create inserts a new report in queued status
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, user_id, file_name, storage_path, indicator_type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		report.ID,
		report.UserID,
		report.FileName,
		report.StoragePath,
		report.IndicatorType,
		models.StatusQueued,
	).Scan(&report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	report.Status = models.StatusQueued
	return nil
}

// GetByID returns a report by id, or nil when it does not exist
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	report, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}

// ReportFilter narrows a report listing
type ReportFilter struct {
	UserID *uint
	Status string
	Limit  uint64
	Offset uint64
}

// List returns reports newest-first, optionally filtered by user and status
func (r *ReportRepository) List(ctx context.Context, filter ReportFilter) ([]models.Report, error) {
	builder := psql.
		Select(reportColumns).
		From("reports").
		OrderBy("created_at DESC")

	if filter.UserID != nil {
		builder = builder.Where(sq.Eq{"user_id": *filter.UserID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		builder = builder.Offset(filter.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *report)
	}

	return reports, rows.Err()
}

// ClaimQueued atomically claims up to limit eligible reports oldest-first.
// Eligible are queued reports and reports whose processing lease expired.
// FOR UPDATE SKIP LOCKED keeps racing workers off the same rows.
func (r *ReportRepository) ClaimQueued(ctx context.Context, limit int, staleAfter time.Duration) ([]models.Report, error) {
	query := `
		UPDATE reports SET
			status = 'processing',
			processing_started_at = NOW(),
			updated_at = NOW()
		WHERE id IN (
			SELECT id FROM reports
			WHERE status = 'queued'
			   OR (status = 'processing' AND processing_started_at < NOW() - make_interval(secs => $2))
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + reportColumns

	rows, err := r.db.QueryContext(ctx, query, limit, staleAfter.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim queued reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed report: %w", err)
		}
		reports = append(reports, *report)
	}

	return reports, rows.Err()
}

// ClaimByID atomically claims one report. Returns nil when the report is not
// eligible (already claimed elsewhere, terminal, or missing).
func (r *ReportRepository) ClaimByID(ctx context.Context, id string, staleAfter time.Duration) (*models.Report, error) {
	query := `
		UPDATE reports SET
			status = 'processing',
			processing_started_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		  AND (status = 'queued'
		   OR (status = 'processing' AND processing_started_at < NOW() - make_interval(secs => $2)))
		RETURNING ` + reportColumns

	report, err := scanReport(r.db.QueryRowContext(ctx, query, id, staleAfter.Seconds()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim report: %w", err)
	}
	return report, nil
}

// SaveRawData persists the extracted pre-transform rows
func (r *ReportRepository) SaveRawData(ctx context.Context, id string, raw json.RawMessage) error {
	query := `UPDATE reports SET raw_data = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, []byte(raw))
	if err != nil {
		return fmt.Errorf("save raw data: %w", err)
	}
	return nil
}

// MarkPendingApproval persists the pipeline result and gates the report for
// admin review
func (r *ReportRepository) MarkPendingApproval(ctx context.Context, id string, processed json.RawMessage, score float64, hashes []string) error {
	if hashes == nil {
		hashes = []string{}
	}
	query := `
		UPDATE reports SET
			status = 'pending_approval',
			processed_data = $2,
			calculated_score = $3,
			video_hashes = $4,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	return r.transition(ctx, "pending_approval", query, id, []byte(processed), score, pq.Array(hashes))
}

// MarkSystemRejected records a duplicate-policy rejection
func (r *ReportRepository) MarkSystemRejected(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE reports SET
			status = 'system_rejected',
			rejection_reason = $2,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	return r.transition(ctx, "system_rejected", query, id, reason)
}

// MarkFailed records a terminal pipeline failure
func (r *ReportRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE reports SET
			status = 'failed',
			rejection_reason = $2,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	return r.transition(ctx, "failed", query, id, reason)
}

// MarkCompleted finalizes an approved report with its re-scored total
func (r *ReportRepository) MarkCompleted(ctx context.Context, id string, score float64) error {
	query := `
		UPDATE reports SET
			status = 'completed',
			calculated_score = $2,
			updated_at = NOW()
		WHERE id = $1 AND status = 'approved'
	`
	return r.transition(ctx, "completed", query, id, score)
}

// Approve conditionally moves a pending_approval report to approved.
// Returns false when the report was not in pending_approval.
func (r *ReportRepository) Approve(ctx context.Context, id string, adminID uint, note *string) (bool, error) {
	query := `
		UPDATE reports SET
			status = 'approved',
			approved_by = $2,
			approval_note = $3,
			approved_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending_approval'
	`
	result, err := r.db.ExecContext(ctx, query, id, adminID, note)
	if err != nil {
		return false, fmt.Errorf("approve report: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Reject conditionally moves a pending_approval report to rejected.
// Returns false when the report was not in pending_approval.
func (r *ReportRepository) Reject(ctx context.Context, id string, adminID uint, reason string) (bool, error) {
	query := `
		UPDATE reports SET
			status = 'rejected',
			approved_by = $2,
			rejection_reason = $3,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending_approval'
	`
	result, err := r.db.ExecContext(ctx, query, id, adminID, reason)
	if err != nil {
		return false, fmt.Errorf("reject report: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReplaceItems replaces the report's processed media items with a fresh set
func (r *ReportRepository) ReplaceItems(ctx context.Context, reportID string, items []models.ProcessedMediaItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace items: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM processed_media_items WHERE report_id = $1`, reportID); err != nil {
		return fmt.Errorf("delete old items: %w", err)
	}

	query := `
		INSERT INTO processed_media_items
			(report_id, original_url, final_url, normalized_url, media_type,
			 content_hash, is_valid, is_duplicate, validation_error, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, item := range items {
		var metadata any
		if len(item.Metadata) > 0 {
			metadata = []byte(item.Metadata)
		}
		_, err := tx.ExecContext(ctx, query,
			reportID,
			item.OriginalURL,
			item.FinalURL,
			item.NormalizedURL,
			item.MediaType,
			item.ContentHash,
			item.IsValid,
			item.IsDuplicate,
			item.ValidationError,
			metadata,
		)
		if err != nil {
			return fmt.Errorf("insert media item: %w", err)
		}
	}

	return tx.Commit()
}

// ItemsByReport returns a report's media items in insertion order
func (r *ReportRepository) ItemsByReport(ctx context.Context, reportID string) ([]models.ProcessedMediaItem, error) {
	query := `
		SELECT id, report_id, original_url, final_url, normalized_url, media_type,
		       content_hash, is_valid, is_duplicate, validation_error, metadata, created_at
		FROM processed_media_items
		WHERE report_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	defer rows.Close()

	var items []models.ProcessedMediaItem
	for rows.Next() {
		var item models.ProcessedMediaItem
		var validationError sql.NullString
		var metadata []byte
		err := rows.Scan(
			&item.ID,
			&item.ReportID,
			&item.OriginalURL,
			&item.FinalURL,
			&item.NormalizedURL,
			&item.MediaType,
			&item.ContentHash,
			&item.IsValid,
			&item.IsDuplicate,
			&validationError,
			&metadata,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan media item: %w", err)
		}
		if validationError.Valid {
			item.ValidationError = &validationError.String
		}
		item.Metadata = metadata
		items = append(items, item)
	}

	return items, rows.Err()
}

// FingerprintsExcluding returns the fingerprints of every report except the
// one being processed, for cross-report duplicate comparison.
func (r *ReportRepository) FingerprintsExcluding(ctx context.Context, reportID string) ([]pipeline.StoredFingerprint, error) {
	query := `
		SELECT report_id, normalized_url, content_hash
		FROM processed_media_items
		WHERE report_id <> $1
	`
	rows, err := r.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}
	defer rows.Close()

	var fingerprints []pipeline.StoredFingerprint
	for rows.Next() {
		var fp pipeline.StoredFingerprint
		if err := rows.Scan(&fp.ReportID, &fp.NormalizedURL, &fp.ContentHash); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		fingerprints = append(fingerprints, fp)
	}

	return fingerprints, rows.Err()
}

// transition runs a conditional status update and fails when the precondition
// status no longer holds.
func (r *ReportRepository) transition(ctx context.Context, target, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark %s: %w", target, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("mark %s: report not in expected status", target)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var report models.Report
	var rawData, processedData []byte
	var calculatedScore sql.NullFloat64
	var rejectionReason, approvalNote sql.NullString
	var approvedBy sql.NullInt64
	var processingStartedAt, approvedAt sql.NullTime

	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.FileName,
		&report.StoragePath,
		&report.IndicatorType,
		&report.Status,
		&rawData,
		&processedData,
		&calculatedScore,
		&rejectionReason,
		pq.Array(&report.VideoHashes),
		&approvedBy,
		&approvalNote,
		&processingStartedAt,
		&approvedAt,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.RawData = rawData
	report.ProcessedData = processedData
	if calculatedScore.Valid {
		report.CalculatedScore = &calculatedScore.Float64
	}
	if rejectionReason.Valid {
		report.RejectionReason = &rejectionReason.String
	}
	if approvedBy.Valid {
		v := uint(approvedBy.Int64)
		report.ApprovedBy = &v
	}
	if approvalNote.Valid {
		report.ApprovalNote = &approvalNote.String
	}
	if processingStartedAt.Valid {
		report.ProcessingStartedAt = &processingStartedAt.Time
	}
	if approvedAt.Valid {
		report.ApprovedAt = &approvedAt.Time
	}

	return &report, nil
}
