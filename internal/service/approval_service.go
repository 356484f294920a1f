package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mediascore/internal/models"
	"mediascore/internal/pipeline"
)

// ApprovalStore is the slice of the report store the approval boundary needs.
type ApprovalStore interface {
	GetByID(ctx context.Context, id string) (*models.Report, error)
	Approve(ctx context.Context, id string, adminID uint, note *string) (bool, error)
	Reject(ctx context.Context, id string, adminID uint, reason string) (bool, error)
}

// Finalizer re-enters the scoring stage after an admin approval.
type Finalizer interface {
	FinalizeApproved(ctx context.Context, id string) error
}

// ApprovalService is the admin decision boundary. Both operations require
// the report to currently be pending_approval; every other state fails with
// InvalidStateError and changes nothing. Caller authorization happens
// upstream (middleware); this service only enforces state legality.
type ApprovalService struct {
	store     ApprovalStore
	notifier  pipeline.NotificationSink
	finalizer Finalizer
}

// NewApprovalService creates a new approval service
func NewApprovalService(store ApprovalStore, notifier pipeline.NotificationSink, finalizer Finalizer) *ApprovalService {
	return &ApprovalService{store: store, notifier: notifier, finalizer: finalizer}
}

// Approve accepts a pending report and triggers the finalization stage that
// completes it.
func (s *ApprovalService) Approve(ctx context.Context, reportID string, adminID uint, note string) error {
	var notePtr *string
	if trimmed := strings.TrimSpace(note); trimmed != "" {
		notePtr = &trimmed
	}

	ok, err := s.store.Approve(ctx, reportID, adminID, notePtr)
	if err != nil {
		return &pipeline.StoreError{Op: "approve report", Err: err}
	}
	if !ok {
		return s.invalidState(ctx, reportID, "approve")
	}

	report, err := s.store.GetByID(ctx, reportID)
	if err != nil {
		return &pipeline.StoreError{Op: "load approved report", Err: err}
	}

	s.notify(ctx, report, models.NotifyApproved,
		"Report approved",
		fmt.Sprintf("Your report %s was approved by an administrator.", report.FileName))

	slog.Info("report approved", "report_id", reportID, "admin_id", adminID)

	if err := s.finalizer.FinalizeApproved(ctx, reportID); err != nil {
		return fmt.Errorf("finalize approved report %s: %w", reportID, err)
	}
	return nil
}

// Reject declines a pending report with a mandatory reason.
func (s *ApprovalService) Reject(ctx context.Context, reportID string, adminID uint, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("rejection reason is required")
	}

	ok, err := s.store.Reject(ctx, reportID, adminID, reason)
	if err != nil {
		return &pipeline.StoreError{Op: "reject report", Err: err}
	}
	if !ok {
		return s.invalidState(ctx, reportID, "reject")
	}

	report, err := s.store.GetByID(ctx, reportID)
	if err != nil {
		return &pipeline.StoreError{Op: "load rejected report", Err: err}
	}

	s.notify(ctx, report, models.NotifyRejected,
		"Report rejected",
		fmt.Sprintf("Your report %s was rejected: %s", report.FileName, reason))

	slog.Info("report rejected", "report_id", reportID, "admin_id", adminID)
	return nil
}

// invalidState builds the InvalidStateError for a conditional update that
// matched no row.
func (s *ApprovalService) invalidState(ctx context.Context, reportID, action string) error {
	report, err := s.store.GetByID(ctx, reportID)
	if err != nil {
		return &pipeline.StoreError{Op: "load report", Err: err}
	}
	if report == nil {
		return fmt.Errorf("report %s not found", reportID)
	}
	return &pipeline.InvalidStateError{ReportID: reportID, Status: report.Status, Action: action}
}

func (s *ApprovalService) notify(ctx context.Context, report *models.Report, ntype, title, message string) {
	if report == nil {
		return
	}
	n := models.Notification{
		UserID:          report.UserID,
		Type:            ntype,
		Title:           title,
		Message:         message,
		RelatedReportID: &report.ID,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.Error("notification write failed", "report_id", report.ID, "type", ntype, "error", err)
	}
}
