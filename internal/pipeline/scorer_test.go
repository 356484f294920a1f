package pipeline

import (
	"errors"
	"math"
	"testing"

	"mediascore/internal/models"
)

func ptr[T any](v T) *T { return &v }

func standardRanges() []models.ScoringRange {
	return []models.ScoringRange{
		{MinPercent: 0, MaxPercent: ptr(25.0), ScoreValue: 1},
		{MinPercent: 25, MaxPercent: ptr(50.0), ScoreValue: 2},
		{MinPercent: 50, MaxPercent: ptr(75.0), ScoreValue: 3},
		{MinPercent: 75, MaxPercent: ptr(100.0), ScoreValue: 4},
		{MinPercent: 100, MaxPercent: nil, ScoreValue: 5},
	}
}

func testKPI(code string, mediaType *string, target, weight float64) models.KPIWithRanges {
	return models.KPIWithRanges{
		KPIDefinition: models.KPIDefinition{
			Code:            code,
			Name:            code,
			MediaType:       mediaType,
			CalculationType: "count",
			TargetMonthly:   target,
			WeightPercent:   weight,
			ScoringPeriod:   "monthly",
		},
		Ranges: standardRanges(),
	}
}

func validItem(mediaType string) models.ProcessedMediaItem {
	return models.ProcessedMediaItem{MediaType: mediaType, IsValid: true}
}

func TestScoreMediaItemsBandBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		actual   int
		expected float64
	}{
		{"just below band edge", 749, 3},  // 74.9%
		{"exactly at band edge", 750, 4},  // 75.0% -> inclusive-low
		{"exactly at target", 1000, 5},    // 100.0% -> unbounded top band
		{"well above target", 1500, 5},    // 150.0%
	}

	kpi := testKPI("media_online", ptr(models.MediaOnlineNews), 1000, 100)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]models.ProcessedMediaItem, tt.actual)
			for i := range items {
				items[i] = validItem(models.MediaOnlineNews)
			}

			result, err := ScoreMediaItems(items, []models.KPIWithRanges{kpi})
			if err != nil {
				t.Fatalf("Scoring failed: %v", err)
			}
			if result.Breakdown[0].ScoreValue != tt.expected {
				t.Errorf("Expected score %.0f, got %.0f (%.1f%%)",
					tt.expected, result.Breakdown[0].ScoreValue, result.Breakdown[0].AchievementPercent)
			}
		})
	}
}

func TestScoreMediaItemsFiltersInvalidAndDuplicates(t *testing.T) {
	kpi := testKPI("media_online", ptr(models.MediaOnlineNews), 4, 100)
	items := []models.ProcessedMediaItem{
		validItem(models.MediaOnlineNews),
		validItem(models.MediaOnlineNews),
		{MediaType: models.MediaOnlineNews, IsValid: false},
		{MediaType: models.MediaOnlineNews, IsValid: true, IsDuplicate: true},
	}

	result, err := ScoreMediaItems(items, []models.KPIWithRanges{kpi})
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}
	if result.Breakdown[0].Actual != 2 {
		t.Errorf("Expected 2 usable items, got %.0f", result.Breakdown[0].Actual)
	}
	if result.Breakdown[0].AchievementPercent != 50 {
		t.Errorf("Expected 50%% achievement, got %.2f", result.Breakdown[0].AchievementPercent)
	}
}

func TestScoreMediaItemsNoUsableItems(t *testing.T) {
	kpi := testKPI("media_online", ptr(models.MediaOnlineNews), 4, 100)
	items := []models.ProcessedMediaItem{
		{MediaType: models.MediaOnlineNews, IsValid: false},
	}

	result, err := ScoreMediaItems(items, []models.KPIWithRanges{kpi})
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}
	// All-invalid reports score 0, not the lowest band value
	if result.Total != 0 {
		t.Errorf("Report with no usable items should score 0, got %.2f", result.Total)
	}
	if len(result.Breakdown) != 1 {
		t.Errorf("Breakdown should still carry every KPI, got %d entries", len(result.Breakdown))
	}
}

func TestScoreMediaItemsMediaTypeScoping(t *testing.T) {
	kpis := []models.KPIWithRanges{
		testKPI("media_online", ptr(models.MediaOnlineNews), 2, 60),
		testKPI("media_tv", ptr(models.MediaTV), 2, 40),
	}
	items := []models.ProcessedMediaItem{
		validItem(models.MediaOnlineNews),
		validItem(models.MediaOnlineNews),
		validItem(models.MediaTV),
	}

	result, err := ScoreMediaItems(items, kpis)
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}

	// online_news: 2/2 = 100% -> score 5, weighted 5*60/100 = 3.0
	// tv: 1/2 = 50% -> score 3, weighted 3*40/100 = 1.2
	if result.Breakdown[0].WeightedScore != 3.0 {
		t.Errorf("Expected weighted 3.0 for online news, got %.2f", result.Breakdown[0].WeightedScore)
	}
	if math.Abs(result.Breakdown[1].WeightedScore-1.2) > 1e-9 {
		t.Errorf("Expected weighted 1.2 for tv, got %.2f", result.Breakdown[1].WeightedScore)
	}
	if math.Abs(result.Total-4.2) > 1e-9 {
		t.Errorf("Expected total 4.2, got %.2f", result.Total)
	}
}

func TestScoreMediaItemsNilMediaTypeCountsAll(t *testing.T) {
	kpi := testKPI("all_media", nil, 3, 100)
	items := []models.ProcessedMediaItem{
		validItem(models.MediaOnlineNews),
		validItem(models.MediaTV),
		validItem(models.MediaRadio),
	}

	result, err := ScoreMediaItems(items, []models.KPIWithRanges{kpi})
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}
	if result.Breakdown[0].Actual != 3 {
		t.Errorf("KPI without media type should count all items, got %.0f", result.Breakdown[0].Actual)
	}
}

func TestScoreRangeGapIsConfigError(t *testing.T) {
	kpi := models.KPIWithRanges{
		KPIDefinition: models.KPIDefinition{
			Code: "broken", CalculationType: "count",
			TargetMonthly: 10, WeightPercent: 100, ScoringPeriod: "monthly",
		},
		Ranges: []models.ScoringRange{
			{MinPercent: 0, MaxPercent: ptr(50.0), ScoreValue: 1},
			// gap between 50 and 80
			{MinPercent: 80, MaxPercent: nil, ScoreValue: 5},
		},
	}

	items := []models.ProcessedMediaItem{ // 6/10 = 60%, inside the gap
		validItem(models.MediaOnlineNews), validItem(models.MediaOnlineNews),
		validItem(models.MediaOnlineNews), validItem(models.MediaOnlineNews),
		validItem(models.MediaOnlineNews), validItem(models.MediaOnlineNews),
	}
	kpi.MediaType = nil

	_, err := ScoreMediaItems(items, []models.KPIWithRanges{kpi})
	var cfgErr *ScoringConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected *ScoringConfigError, got %v", err)
	}
	if cfgErr.KPICode != "broken" {
		t.Errorf("Expected KPI code 'broken', got %s", cfgErr.KPICode)
	}
}

func TestScoreTargetRowsPercentage(t *testing.T) {
	kpi := testKPI("realisasi", nil, 0, 100)
	kpi.CalculationType = "percentage"

	rows := []TargetRow{
		{Target: 10, Realization: 8},
		{Target: 10, Realization: 7},
	}

	result, err := ScoreTargetRows(rows, []models.KPIWithRanges{kpi})
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}
	// 15/20 = 75% -> band [75,100) -> score 4
	if result.Breakdown[0].AchievementPercent != 75 {
		t.Errorf("Expected 75%%, got %.2f", result.Breakdown[0].AchievementPercent)
	}
	if result.Breakdown[0].ScoreValue != 4 {
		t.Errorf("Expected score 4, got %.0f", result.Breakdown[0].ScoreValue)
	}
}

func TestScoreTargetRowsSum(t *testing.T) {
	kpi := testKPI("total_realisasi", nil, 20, 100)
	kpi.CalculationType = "sum"

	rows := []TargetRow{
		{Target: 10, Realization: 8},
		{Target: 10, Realization: 12},
	}

	result, err := ScoreTargetRows(rows, []models.KPIWithRanges{kpi})
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}
	// sum realization 20 against target 20 = 100% -> score 5
	if result.Breakdown[0].Actual != 20 {
		t.Errorf("Expected actual 20, got %.0f", result.Breakdown[0].Actual)
	}
	if result.Breakdown[0].ScoreValue != 5 {
		t.Errorf("Expected score 5, got %.0f", result.Breakdown[0].ScoreValue)
	}
}

func TestScoreTargetRowsEmpty(t *testing.T) {
	kpi := testKPI("anything", nil, 10, 100)
	result, err := ScoreTargetRows(nil, []models.KPIWithRanges{kpi})
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("No rows should score 0, got %.2f", result.Total)
	}
}

func TestValidateRanges(t *testing.T) {
	base := models.KPIDefinition{Code: "k"}

	tests := []struct {
		name    string
		ranges  []models.ScoringRange
		wantErr bool
	}{
		{
			name:    "valid ladder",
			ranges:  standardRanges(),
			wantErr: false,
		},
		{
			name:    "no ranges",
			ranges:  nil,
			wantErr: true,
		},
		{
			name: "does not start at zero",
			ranges: []models.ScoringRange{
				{MinPercent: 10, MaxPercent: nil, ScoreValue: 1},
			},
			wantErr: true,
		},
		{
			name: "gap between bands",
			ranges: []models.ScoringRange{
				{MinPercent: 0, MaxPercent: ptr(50.0), ScoreValue: 1},
				{MinPercent: 60, MaxPercent: nil, ScoreValue: 2},
			},
			wantErr: true,
		},
		{
			name: "bounded top band",
			ranges: []models.ScoringRange{
				{MinPercent: 0, MaxPercent: ptr(100.0), ScoreValue: 1},
			},
			wantErr: true,
		},
		{
			name: "unbounded band not last",
			ranges: []models.ScoringRange{
				{MinPercent: 0, MaxPercent: nil, ScoreValue: 1},
				{MinPercent: 50, MaxPercent: ptr(100.0), ScoreValue: 2},
			},
			wantErr: true,
		},
		{
			name: "empty band",
			ranges: []models.ScoringRange{
				{MinPercent: 0, MaxPercent: ptr(0.0), ScoreValue: 1},
				{MinPercent: 0, MaxPercent: nil, ScoreValue: 2},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRanges(models.KPIWithRanges{KPIDefinition: base, Ranges: tt.ranges})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRanges() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
