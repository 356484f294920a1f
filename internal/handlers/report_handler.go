package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"mediascore/internal/middleware"
	"mediascore/internal/models"
	"mediascore/internal/pipeline"
	"mediascore/internal/repository"
	"mediascore/internal/service"
)

// ReportHandler exposes the report listing and admin decision endpoints
type ReportHandler struct {
	reports   *repository.ReportRepository
	approvals *service.ApprovalService
	worker    *pipeline.Worker
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *repository.ReportRepository, approvals *service.ApprovalService, worker *pipeline.Worker) *ReportHandler {
	return &ReportHandler{reports: reports, approvals: approvals, worker: worker}
}

// List returns reports visible to the caller
// @Summary List reports
// @Description Admins see all reports and may filter by user_id; regular users only see their own
// @Tags reports
// @Produce json
// @Param status query string false "Filter by status"
// @Param user_id query int false "Filter by owner (admin only)"
// @Param limit query int false "Page size (default 50)"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.Report
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /reports [get]
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	role, _ := r.Context().Value(middleware.RoleKey).(string)

	filter := repository.ReportFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  parseUint(r.URL.Query().Get("limit"), 50),
		Offset: parseUint(r.URL.Query().Get("offset"), 0),
	}

	if role == "admin" {
		if raw := r.URL.Query().Get("user_id"); raw != "" {
			if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
				owner := uint(id)
				filter.UserID = &owner
			}
		}
	} else {
		filter.UserID = &userID
	}

	reports, err := h.reports.List(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list reports", "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	JSONResponse(w, http.StatusOK, reports)
}

// Get returns one report with its processed items
// @Summary Get a report
// @Description Returns a report and its processed media items; regular users only see their own reports
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} models.ReportWithItems
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	role, _ := r.Context().Value(middleware.RoleKey).(string)

	report, err := h.reports.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("failed to load report", "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if report == nil || (role != "admin" && report.UserID != userID) {
		JSONError(w, http.StatusNotFound, "report not found")
		return
	}

	items, err := h.reports.ItemsByReport(r.Context(), report.ID)
	if err != nil {
		slog.Error("failed to load report items", "report_id", report.ID, "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to load report items")
		return
	}

	JSONResponse(w, http.StatusOK, models.ReportWithItems{Report: *report, Items: items})
}

type decisionRequest struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

// Approve accepts a pending report
// @Summary Approve a report
// @Description Moves a pending_approval report to approved and finalizes it to completed
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param request body decisionRequest false "Optional approval note"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /reports/{id}/approve [post]
func (h *ReportHandler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req decisionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	reportID := r.PathValue("id")
	if err := h.approvals.Approve(r.Context(), reportID, adminID, req.Note); err != nil {
		h.writeDecisionError(w, reportID, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]string{"message": "report approved"})
}

// Reject declines a pending report
// @Summary Reject a report
// @Description Moves a pending_approval report to rejected with a mandatory reason
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param request body decisionRequest true "Rejection reason"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /reports/{id}/reject [post]
func (h *ReportHandler) Reject(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		JSONError(w, http.StatusBadRequest, "reason is required")
		return
	}

	reportID := r.PathValue("id")
	if err := h.approvals.Reject(r.Context(), reportID, adminID, req.Reason); err != nil {
		h.writeDecisionError(w, reportID, err)
		return
	}
	JSONResponse(w, http.StatusOK, map[string]string{"message": "report rejected"})
}

// Process runs the pipeline for one report immediately
// @Summary Process a report now
// @Description Claims a queued report and runs the processing pipeline without waiting for the scheduler
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 202 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /reports/{id}/process [post]
func (h *ReportHandler) Process(w http.ResponseWriter, r *http.Request) {
	reportID := r.PathValue("id")
	if err := h.worker.ProcessByID(r.Context(), reportID); err != nil {
		var stateErr *pipeline.InvalidStateError
		if errors.As(err, &stateErr) {
			JSONError(w, http.StatusConflict, stateErr.Error())
			return
		}
		slog.Error("manual processing failed", "report_id", reportID, "error", err)
		JSONError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	JSONResponse(w, http.StatusAccepted, map[string]string{"message": "report processed"})
}

// ProcessQueued drains the queue once
// @Summary Process all queued reports
// @Description Claims and processes every currently queued report
// @Tags reports
// @Produce json
// @Success 200 {object} map[string]int
// @Security BearerAuth
// @Router /reports/process [post]
func (h *ReportHandler) ProcessQueued(w http.ResponseWriter, r *http.Request) {
	n, err := h.worker.ProcessQueued(r.Context())
	if err != nil {
		slog.Error("queue processing failed", "error", err)
		JSONError(w, http.StatusInternalServerError, "queue processing failed")
		return
	}
	JSONResponse(w, http.StatusOK, map[string]int{"processed": n})
}

func (h *ReportHandler) writeDecisionError(w http.ResponseWriter, reportID string, err error) {
	var stateErr *pipeline.InvalidStateError
	switch {
	case errors.As(err, &stateErr):
		JSONError(w, http.StatusConflict, stateErr.Error())
	case strings.Contains(err.Error(), "not found"):
		JSONError(w, http.StatusNotFound, "report not found")
	case strings.Contains(err.Error(), "required"):
		JSONError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("decision failed", "report_id", reportID, "error", err)
		JSONError(w, http.StatusInternalServerError, "decision failed")
	}
}

func parseUint(raw string, fallback uint64) uint64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
