package repository

import (
	"context"
	"database/sql"
	"fmt"

	"mediascore/internal/models"
	"mediascore/internal/pipeline"
)

// KPIRepository loads the administrator-managed KPI configuration.
type KPIRepository struct {
	db *sql.DB
}

var _ pipeline.KPISource = (*KPIRepository)(nil)

// NewKPIRepository creates a new KPI repository
func NewKPIRepository(db *sql.DB) *KPIRepository {
	return &KPIRepository{db: db}
}

// ActiveKPIs returns the active KPI definitions for an indicator type with
// their scoring ranges, validated so the scorer can never hit a band gap.
func (r *KPIRepository) ActiveKPIs(ctx context.Context, indicatorType string) ([]models.KPIWithRanges, error) {
	query := `
		SELECT id, code, name, description, indicator_type, media_type,
		       calculation_type, target_monthly, target_semester, weight_percent,
		       unit, scoring_period, is_active, created_at, updated_at
		FROM kpi_definitions
		WHERE indicator_type = $1 AND is_active
		ORDER BY weight_percent DESC, code ASC
	`
	rows, err := r.db.QueryContext(ctx, query, indicatorType)
	if err != nil {
		return nil, fmt.Errorf("load KPIs: %w", err)
	}
	defer rows.Close()

	var kpis []models.KPIWithRanges
	totalWeight := 0.0
	for rows.Next() {
		var kpi models.KPIWithRanges
		var description, mediaType sql.NullString
		err := rows.Scan(
			&kpi.ID,
			&kpi.Code,
			&kpi.Name,
			&description,
			&kpi.IndicatorType,
			&mediaType,
			&kpi.CalculationType,
			&kpi.TargetMonthly,
			&kpi.TargetSemester,
			&kpi.WeightPercent,
			&kpi.Unit,
			&kpi.ScoringPeriod,
			&kpi.IsActive,
			&kpi.CreatedAt,
			&kpi.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan KPI: %w", err)
		}
		if description.Valid {
			kpi.Description = &description.String
		}
		if mediaType.Valid {
			kpi.MediaType = &mediaType.String
		}
		totalWeight += kpi.WeightPercent
		kpis = append(kpis, kpi)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if totalWeight > 100 {
		return nil, fmt.Errorf("active KPI weights for indicator %q sum to %.2f%%, must not exceed 100%%", indicatorType, totalWeight)
	}

	for i := range kpis {
		ranges, err := r.rangesForKPI(ctx, kpis[i].ID)
		if err != nil {
			return nil, err
		}
		kpis[i].Ranges = ranges

		if err := pipeline.ValidateRanges(kpis[i]); err != nil {
			return nil, err
		}
	}

	return kpis, nil
}

func (r *KPIRepository) rangesForKPI(ctx context.Context, kpiID uint) ([]models.ScoringRange, error) {
	query := `
		SELECT id, kpi_id, min_percent, max_percent, score_value
		FROM scoring_ranges
		WHERE kpi_id = $1
		ORDER BY min_percent ASC
	`
	rows, err := r.db.QueryContext(ctx, query, kpiID)
	if err != nil {
		return nil, fmt.Errorf("load scoring ranges: %w", err)
	}
	defer rows.Close()

	var ranges []models.ScoringRange
	for rows.Next() {
		var sr models.ScoringRange
		var maxPercent sql.NullFloat64
		if err := rows.Scan(&sr.ID, &sr.KPIID, &sr.MinPercent, &maxPercent, &sr.ScoreValue); err != nil {
			return nil, fmt.Errorf("scan scoring range: %w", err)
		}
		if maxPercent.Valid {
			sr.MaxPercent = &maxPercent.Float64
		}
		ranges = append(ranges, sr)
	}

	return ranges, rows.Err()
}
