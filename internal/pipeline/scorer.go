package pipeline

import (
	"fmt"
	"sort"

	"mediascore/internal/models"
)

// KPIScore is the computed result for one scoring dimension.
type KPIScore struct {
	KPICode            string  `json:"kpi_code"`
	KPIName            string  `json:"kpi_name"`
	Actual             float64 `json:"actual"`
	Target             float64 `json:"target"`
	AchievementPercent float64 `json:"achievement_percent"`
	ScoreValue         float64 `json:"score_value"`
	WeightPercent      float64 `json:"weight_percent"`
	WeightedScore      float64 `json:"weighted_score"`
}

// ScoreResult is the per-KPI breakdown and the aggregate weighted score.
type ScoreResult struct {
	Breakdown []KPIScore `json:"breakdown"`
	Total     float64    `json:"total"`
}

// ScoreMediaItems scores a media-family report. The actual value of each
// KPI dimension is the count of valid, non-duplicate items matching the
// KPI's media type (all items when the KPI has no media type). A report
// with no usable items at all scores 0 and still reaches admin review.
func ScoreMediaItems(items []models.ProcessedMediaItem, kpis []models.KPIWithRanges) (*ScoreResult, error) {
	var usable []models.ProcessedMediaItem
	for _, item := range items {
		if item.IsValid && !item.IsDuplicate {
			usable = append(usable, item)
		}
	}

	if len(usable) == 0 {
		return zeroResult(kpis), nil
	}

	result := &ScoreResult{}
	for _, kpi := range kpis {
		actual := 0.0
		for _, item := range usable {
			if kpi.MediaType == nil || item.MediaType == *kpi.MediaType {
				actual++
			}
		}

		ks, err := scoreDimension(kpi, actual)
		if err != nil {
			return nil, err
		}
		result.Breakdown = append(result.Breakdown, ks)
		result.Total += ks.WeightedScore
	}

	return result, nil
}

// ScoreTargetRows scores a target/realization-family report. The actual
// value per KPI follows its calculation type: count of rows, sum of
// realizations, or overall percentage (sum realization / sum target).
func ScoreTargetRows(rows []TargetRow, kpis []models.KPIWithRanges) (*ScoreResult, error) {
	if len(rows) == 0 {
		return zeroResult(kpis), nil
	}

	var sumTarget, sumRealization float64
	for _, row := range rows {
		sumTarget += row.Target
		sumRealization += row.Realization
	}

	result := &ScoreResult{}
	for _, kpi := range kpis {
		var ks KPIScore
		var err error

		switch kpi.CalculationType {
		case "percentage":
			percent := 0.0
			if sumTarget > 0 {
				percent = sumRealization / sumTarget * 100
			}
			ks, err = scoreDimensionPercent(kpi, sumRealization, percent)
		case "sum":
			ks, err = scoreDimension(kpi, sumRealization)
		default: // count
			ks, err = scoreDimension(kpi, float64(len(rows)))
		}
		if err != nil {
			return nil, err
		}

		result.Breakdown = append(result.Breakdown, ks)
		result.Total += ks.WeightedScore
	}

	return result, nil
}

func scoreDimension(kpi models.KPIWithRanges, actual float64) (KPIScore, error) {
	target := kpi.Target()
	percent := 0.0
	if target > 0 {
		percent = actual / target * 100
	}
	return scoreDimensionPercent(kpi, actual, percent)
}

func scoreDimensionPercent(kpi models.KPIWithRanges, actual, percent float64) (KPIScore, error) {
	scoreValue, err := lookupRange(kpi, percent)
	if err != nil {
		return KPIScore{}, err
	}

	return KPIScore{
		KPICode:            kpi.Code,
		KPIName:            kpi.Name,
		Actual:             actual,
		Target:             kpi.Target(),
		AchievementPercent: percent,
		ScoreValue:         scoreValue,
		WeightPercent:      kpi.WeightPercent,
		WeightedScore:      scoreValue * kpi.WeightPercent / 100,
	}, nil
}

// lookupRange finds the band containing the achievement percentage. A gap
// in the configured ranges is a configuration bug, never clamped over.
func lookupRange(kpi models.KPIWithRanges, percent float64) (float64, error) {
	for _, r := range kpi.Ranges {
		if r.Contains(percent) {
			return r.ScoreValue, nil
		}
	}
	return 0, &ScoringConfigError{KPICode: kpi.Code, Percent: percent}
}

func zeroResult(kpis []models.KPIWithRanges) *ScoreResult {
	result := &ScoreResult{}
	for _, kpi := range kpis {
		result.Breakdown = append(result.Breakdown, KPIScore{
			KPICode:       kpi.Code,
			KPIName:       kpi.Name,
			Target:        kpi.Target(),
			WeightPercent: kpi.WeightPercent,
		})
	}
	return result
}

// ValidateRanges checks a KPI's scoring bands at configuration time: bands
// must be well-formed (min < max), non-overlapping, contiguous from 0, and
// closed off by an unbounded top band, so the scorer can never hit a gap in
// production.
func ValidateRanges(kpi models.KPIWithRanges) error {
	if len(kpi.Ranges) == 0 {
		return fmt.Errorf("KPI %q has no scoring ranges", kpi.Code)
	}

	ranges := make([]models.ScoringRange, len(kpi.Ranges))
	copy(ranges, kpi.Ranges)
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].MinPercent < ranges[j].MinPercent
	})

	if ranges[0].MinPercent != 0 {
		return fmt.Errorf("KPI %q: scoring ranges must start at 0%%, got %.2f%%", kpi.Code, ranges[0].MinPercent)
	}

	for i, r := range ranges {
		isLast := i == len(ranges)-1

		if r.MaxPercent == nil {
			if !isLast {
				return fmt.Errorf("KPI %q: unbounded range at %.2f%% is not the top band", kpi.Code, r.MinPercent)
			}
			continue
		}
		if *r.MaxPercent <= r.MinPercent {
			return fmt.Errorf("KPI %q: range [%.2f, %.2f) is empty", kpi.Code, r.MinPercent, *r.MaxPercent)
		}
		if isLast {
			return fmt.Errorf("KPI %q: top band must be unbounded (max NULL), got max %.2f%%", kpi.Code, *r.MaxPercent)
		}
		if next := ranges[i+1]; next.MinPercent != *r.MaxPercent {
			return fmt.Errorf("KPI %q: gap or overlap between %.2f%% and %.2f%%", kpi.Code, *r.MaxPercent, next.MinPercent)
		}
	}

	return nil
}
