package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"mediascore/internal/models"
)

// Fixtures holds test data
type Fixtures struct {
	DB *sql.DB
}

// SetupFixtures wraps a database connection with fixture helpers
func SetupFixtures(t *testing.T, db *sql.DB) *Fixtures {
	t.Helper()
	return &Fixtures{DB: db}
}

// CreateReport creates a report with the given status
func (f *Fixtures) CreateReport(t *testing.T, userID uint, indicatorType, status string) *models.Report {
	t.Helper()

	report := &models.Report{
		ID:            uuid.NewString(),
		UserID:        userID,
		FileName:      "report.xlsx",
		StoragePath:   "uploads/test/report.xlsx",
		IndicatorType: indicatorType,
		Status:        status,
	}

	err := f.DB.QueryRow(`
		INSERT INTO reports (id, user_id, file_name, storage_path, indicator_type, status, video_hashes)
		VALUES ($1, $2, $3, $4, $5, $6, '{}')
		RETURNING created_at, updated_at
	`, report.ID, report.UserID, report.FileName, report.StoragePath, report.IndicatorType, report.Status).Scan(
		&report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to create report: %v", err)
	}

	return report
}

// CreateMediaItem creates a processed media item attached to a report
func (f *Fixtures) CreateMediaItem(t *testing.T, reportID, normalizedURL, contentHash string) *models.ProcessedMediaItem {
	t.Helper()

	item := &models.ProcessedMediaItem{
		ReportID:      reportID,
		OriginalURL:   normalizedURL,
		FinalURL:      normalizedURL,
		NormalizedURL: normalizedURL,
		MediaType:     models.MediaOnlineNews,
		ContentHash:   contentHash,
		IsValid:       true,
	}

	err := f.DB.QueryRow(`
		INSERT INTO processed_media_items
			(report_id, original_url, final_url, normalized_url, media_type, content_hash, is_valid)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, created_at
	`, item.ReportID, item.OriginalURL, item.FinalURL, item.NormalizedURL, item.MediaType, item.ContentHash).Scan(
		&item.ID, &item.CreatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to create media item: %v", err)
	}

	return item
}

// CreateKPI creates a KPI definition with a standard five-band scoring ladder
func (f *Fixtures) CreateKPI(t *testing.T, code, indicatorType string, mediaType *string, calculationType string, targetMonthly, weight float64) *models.KPIDefinition {
	t.Helper()

	kpi := &models.KPIDefinition{
		Code:            code,
		Name:            code,
		IndicatorType:   indicatorType,
		MediaType:       mediaType,
		CalculationType: calculationType,
		TargetMonthly:   targetMonthly,
		TargetSemester:  targetMonthly * 6,
		WeightPercent:   weight,
		ScoringPeriod:   "monthly",
		IsActive:        true,
	}

	err := f.DB.QueryRow(`
		INSERT INTO kpi_definitions
			(code, name, indicator_type, media_type, calculation_type, target_monthly, target_semester, weight_percent, scoring_period, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'monthly', TRUE)
		RETURNING id, created_at, updated_at
	`, kpi.Code, kpi.Name, kpi.IndicatorType, kpi.MediaType, kpi.CalculationType,
		kpi.TargetMonthly, kpi.TargetSemester, kpi.WeightPercent).Scan(
		&kpi.ID, &kpi.CreatedAt, &kpi.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to create KPI %s: %v", code, err)
	}

	bands := []struct {
		min   float64
		max   *float64
		score float64
	}{
		{0, f64(25), 1},
		{25, f64(50), 2},
		{50, f64(75), 3},
		{75, f64(100), 4},
		{100, nil, 5},
	}
	for _, band := range bands {
		if _, err := f.DB.Exec(`
			INSERT INTO scoring_ranges (kpi_id, min_percent, max_percent, score_value)
			VALUES ($1, $2, $3, $4)
		`, kpi.ID, band.min, band.max, band.score); err != nil {
			t.Fatalf("Failed to create scoring range for %s: %v", code, err)
		}
	}

	return kpi
}

// ReportStatus reads the current status and video hashes of a report
func (f *Fixtures) ReportStatus(t *testing.T, reportID string) (string, []string) {
	t.Helper()

	var status string
	var hashes []string
	err := f.DB.QueryRow(
		"SELECT status, video_hashes FROM reports WHERE id = $1", reportID,
	).Scan(&status, pq.Array(&hashes))
	if err != nil {
		t.Fatalf("Failed to read report status: %v", err)
	}
	return status, hashes
}

func f64(v float64) *float64 {
	return &v
}
