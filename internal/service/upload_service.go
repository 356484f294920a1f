package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mediascore/internal/config"
	"mediascore/internal/indicator"
	"mediascore/internal/models"
	"mediascore/internal/repository"
	"mediascore/internal/storage"
)

// UploadService is the upload boundary: it validates the file, stores the
// original bytes, and creates the report in queued status. Extraction and
// scoring happen later in the pipeline worker.
type UploadService struct {
	reportRepo *repository.ReportRepository
	files      *storage.FileStore
	indicators *indicator.Registry
	cfg        *config.UploadConfig
}

// NewUploadService creates a new upload service
func NewUploadService(
	reportRepo *repository.ReportRepository,
	files *storage.FileStore,
	indicators *indicator.Registry,
	cfg *config.UploadConfig,
) *UploadService {
	return &UploadService{
		reportRepo: reportRepo,
		files:      files,
		indicators: indicators,
		cfg:        cfg,
	}
}

// Upload accepts spreadsheet bytes for an indicator type and returns the
// created report in queued status.
func (s *UploadService) Upload(ctx context.Context, userID uint, fileName, indicatorType string, data []byte) (*models.Report, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("uploaded file is empty")
	}
	if int64(len(data)) > s.cfg.MaxSizeBytes {
		return nil, fmt.Errorf("uploaded file exceeds the %d byte limit", s.cfg.MaxSizeBytes)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if !s.extensionAllowed(ext) {
		return nil, fmt.Errorf("unsupported file type %q: allowed types are %s", ext, strings.Join(s.cfg.AllowedExtensions, ", "))
	}

	if _, ok := s.indicators.Get(indicatorType); !ok {
		return nil, fmt.Errorf("unknown indicator type %q", indicatorType)
	}

	path, err := s.files.Save(ctx, userID, fileName, data)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	report := &models.Report{
		ID:            uuid.NewString(),
		UserID:        userID,
		FileName:      fileName,
		StoragePath:   path,
		IndicatorType: indicatorType,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	slog.Info("report uploaded",
		"report_id", report.ID, "user_id", userID, "indicator", indicatorType, "size", len(data))

	return report, nil
}

func (s *UploadService) extensionAllowed(ext string) bool {
	for _, allowed := range s.cfg.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
