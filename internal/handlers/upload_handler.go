package handlers

import (
	"io"
	"net/http"

	"mediascore/internal/middleware"
	"mediascore/internal/service"
)

// UploadHandler exposes the report upload boundary
type UploadHandler struct {
	uploads *service.UploadService
	maxSize int64
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploads *service.UploadService, maxSize int64) *UploadHandler {
	return &UploadHandler{uploads: uploads, maxSize: maxSize}
}

// Upload handles report spreadsheet uploads
// @Summary Upload a media report spreadsheet
// @Description Accepts a spreadsheet file and an indicator type, stores the file and queues the report for processing
// @Tags reports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Spreadsheet file (.xlsx, .xls, .csv)"
// @Param indicator_type formData string true "Indicator type key"
// @Success 201 {object} models.Report
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /reports/upload [post]
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		JSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+1<<20)
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		JSONError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	indicatorType := r.FormValue("indicator_type")
	if indicatorType == "" {
		JSONError(w, http.StatusBadRequest, "indicator_type is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		JSONError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		JSONError(w, http.StatusBadRequest, "failed to read file: "+err.Error())
		return
	}

	report, err := h.uploads.Upload(r.Context(), userID, header.Filename, indicatorType, data)
	if err != nil {
		JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	JSONResponse(w, http.StatusCreated, report)
}
