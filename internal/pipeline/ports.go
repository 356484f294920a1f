package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"mediascore/internal/models"
)

// ReportStore is the pipeline's view of the durable report store. All stage
// transitions are single-row conditional updates keyed by report id.
type ReportStore interface {
	// ClaimQueued atomically moves up to limit reports into processing,
	// oldest first. Eligible are reports in queued status and reports stuck
	// in processing longer than staleAfter (a crashed worker's lease).
	ClaimQueued(ctx context.Context, limit int, staleAfter time.Duration) ([]models.Report, error)

	// ClaimByID atomically claims a single report, with the same
	// eligibility rules as ClaimQueued. Returns nil when the report exists
	// but cannot be claimed.
	ClaimByID(ctx context.Context, id string, staleAfter time.Duration) (*models.Report, error)

	GetByID(ctx context.Context, id string) (*models.Report, error)

	// SaveRawData persists the extracted pre-transform rows.
	SaveRawData(ctx context.Context, id string, raw json.RawMessage) error

	// ReplaceItems replaces the report's processed media items with a fresh
	// set. Items are immutable once written; reprocessing writes anew.
	ReplaceItems(ctx context.Context, reportID string, items []models.ProcessedMediaItem) error

	ItemsByReport(ctx context.Context, reportID string) ([]models.ProcessedMediaItem, error)

	// FingerprintsExcluding returns the fingerprints of every stored report
	// except the one being processed.
	FingerprintsExcluding(ctx context.Context, reportID string) ([]StoredFingerprint, error)

	MarkPendingApproval(ctx context.Context, id string, processed json.RawMessage, score float64, hashes []string) error
	MarkSystemRejected(ctx context.Context, id string, reason string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	MarkCompleted(ctx context.Context, id string, score float64) error
}

// NotificationSink receives fire-and-forget notification writes. Delivery
// and display belong to the collaborator behind the sink.
type NotificationSink interface {
	Notify(ctx context.Context, n models.Notification) error
}

// KPISource provides the active, validated KPI configuration for an
// indicator type.
type KPISource interface {
	ActiveKPIs(ctx context.Context, indicatorType string) ([]models.KPIWithRanges, error)
}

// FileSource reads back the originally uploaded bytes by storage path.
type FileSource interface {
	Read(ctx context.Context, path string) ([]byte, error)
}
