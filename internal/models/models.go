package models

import (
	"encoding/json"
	"time"
)

// Report statuses. Transitions are owned by the pipeline worker and the
// approval service; nothing else writes the status column.
const (
	StatusQueued          = "queued"
	StatusProcessing      = "processing"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusCompleted       = "completed"
	StatusRejected        = "rejected"
	StatusSystemRejected  = "system_rejected"
	StatusFailed          = "failed"
)

// Indicator families
const (
	FamilyMedia             = "media"
	FamilyTargetRealization = "target_realization"
)

// Media types recognized for link-bearing columns
const (
	MediaOnlineNews  = "online_news"
	MediaSocialMedia = "social_media"
	MediaRadio       = "radio"
	MediaPrint       = "print_media"
	MediaRunningText = "running_text"
	MediaTV          = "tv"
)

// Report represents one spreadsheet upload and its journey through the
// scoring pipeline.
type Report struct {
	ID                  string          `json:"id" db:"id"`
	UserID              uint            `json:"user_id" db:"user_id"`
	FileName            string          `json:"file_name" db:"file_name"`
	StoragePath         string          `json:"storage_path" db:"storage_path"`
	IndicatorType       string          `json:"indicator_type" db:"indicator_type"`
	Status              string          `json:"status" db:"status"`
	RawData             json.RawMessage `json:"raw_data,omitempty" db:"raw_data"`
	ProcessedData       json.RawMessage `json:"processed_data,omitempty" db:"processed_data"`
	CalculatedScore     *float64        `json:"calculated_score,omitempty" db:"calculated_score"`
	RejectionReason     *string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	VideoHashes         []string        `json:"video_hashes,omitempty" db:"video_hashes"`
	ApprovedBy          *uint           `json:"approved_by,omitempty" db:"approved_by"`
	ApprovalNote        *string         `json:"approval_note,omitempty" db:"approval_note"`
	ProcessingStartedAt *time.Time      `json:"processing_started_at,omitempty" db:"processing_started_at"`
	ApprovedAt          *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether no further pipeline-automated transition can occur.
func (r *Report) IsTerminal() bool {
	switch r.Status {
	case StatusCompleted, StatusRejected, StatusSystemRejected, StatusFailed:
		return true
	}
	return false
}

// ReportWithItems extends Report with its processed media items
type ReportWithItems struct {
	Report
	Items []ProcessedMediaItem `json:"items"`
}

// ProcessedMediaItem represents one link extracted from one report row.
// Items are immutable after creation; a reprocess writes a fresh set.
type ProcessedMediaItem struct {
	ID              uint            `json:"id" db:"id"`
	ReportID        string          `json:"report_id" db:"report_id"`
	OriginalURL     string          `json:"original_url" db:"original_url"`
	FinalURL        string          `json:"final_url" db:"final_url"`
	NormalizedURL   string          `json:"normalized_url" db:"normalized_url"`
	MediaType       string          `json:"media_type" db:"media_type"`
	ContentHash     string          `json:"content_hash,omitempty" db:"content_hash"`
	IsValid         bool            `json:"is_valid" db:"is_valid"`
	IsDuplicate     bool            `json:"is_duplicate" db:"is_duplicate"`
	ValidationError *string         `json:"validation_error,omitempty" db:"validation_error"`
	Metadata        json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// KPIDefinition represents one scoring dimension managed by administrators.
// Reports never reference a KPI directly; they store computed results so
// historical scores stay stable under later KPI edits.
type KPIDefinition struct {
	ID              uint      `json:"id" db:"id"`
	Code            string    `json:"code" db:"code"`
	Name            string    `json:"name" db:"name"`
	Description     *string   `json:"description,omitempty" db:"description"`
	IndicatorType   string    `json:"indicator_type" db:"indicator_type"`
	MediaType       *string   `json:"media_type,omitempty" db:"media_type"`
	CalculationType string    `json:"calculation_type" db:"calculation_type"` // count, sum, percentage
	TargetMonthly   float64   `json:"target_monthly" db:"target_monthly"`
	TargetSemester  float64   `json:"target_semester" db:"target_semester"`
	WeightPercent   float64   `json:"weight_percent" db:"weight_percent"`
	Unit            string    `json:"unit" db:"unit"`
	ScoringPeriod   string    `json:"scoring_period" db:"scoring_period"` // monthly, semester
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Target returns the target value for the KPI's scoring period.
func (k *KPIDefinition) Target() float64 {
	if k.ScoringPeriod == "semester" {
		return k.TargetSemester
	}
	return k.TargetMonthly
}

// ScoringRange represents one achievement-percentage band for a KPI.
// A nil MaxPercent marks the unbounded top band (percentage >= MinPercent).
type ScoringRange struct {
	ID         uint     `json:"id" db:"id"`
	KPIID      uint     `json:"kpi_id" db:"kpi_id"`
	MinPercent float64  `json:"min_percent" db:"min_percent"`
	MaxPercent *float64 `json:"max_percent,omitempty" db:"max_percent"`
	ScoreValue float64  `json:"score_value" db:"score_value"`
}

// Contains reports whether the achievement percentage falls in this band.
// Bands are inclusive-low, exclusive-high; the unbounded top band is
// inclusive of everything at or above its minimum.
func (s *ScoringRange) Contains(percent float64) bool {
	if percent < s.MinPercent {
		return false
	}
	return s.MaxPercent == nil || percent < *s.MaxPercent
}

// KPIWithRanges bundles a KPI definition with its configured scoring bands
type KPIWithRanges struct {
	KPIDefinition
	Ranges []ScoringRange `json:"ranges"`
}

// Notification represents an outbound event record for a user
type Notification struct {
	ID              uint      `json:"id" db:"id"`
	UserID          uint      `json:"user_id" db:"user_id"`
	Type            string    `json:"type" db:"type"`
	Title           string    `json:"title" db:"title"`
	Message         string    `json:"message" db:"message"`
	RelatedReportID *string   `json:"related_report_id,omitempty" db:"related_report_id"`
	IsRead          bool      `json:"is_read" db:"is_read"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Notification types
const (
	NotifyProcessingStarted = "processing_started"
	NotifyAwaitingApproval  = "awaiting_approval"
	NotifyApproved          = "approved"
	NotifyCompleted         = "completed"
	NotifyRejected          = "rejected"
	NotifySystemRejected    = "system_rejected"
	NotifyFailed            = "failed"
)
