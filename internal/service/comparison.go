package service

import (
	"fmt"

	"github.com/cardio-risk-server/internal/domain"
)

// comparableMetric defines one metric the comparison routine diffs, with its
// accessor and improvement polarity.
type comparableMetric struct {
	name        string
	value       func(m *domain.Metrics) *float64
	lowerBetter bool
}

// The defined comparison metrics and their polarity table.
var comparableMetrics = []comparableMetric{
	{"systolic_bp", func(m *domain.Metrics) *float64 { return m.SystolicBP }, true},
	{"diastolic_bp", func(m *domain.Metrics) *float64 { return m.DiastolicBP }, true},
	{"ejection_fraction", func(m *domain.Metrics) *float64 { return m.EjectionFraction }, false},
	{"ldl", func(m *domain.Metrics) *float64 { return m.LDL }, true},
	{"hdl", func(m *domain.Metrics) *float64 { return m.HDL }, false},
	{"fasting_glucose", func(m *domain.Metrics) *float64 { return m.FastingGlucose }, true},
	{"bmi", func(m *domain.Metrics) *float64 { return m.BMI }, true},
	{"pasp", func(m *domain.Metrics) *float64 { return m.PASP }, true},
}

// Compare diffs a follow-up analysis against a baseline over the defined
// metrics, classifying each change by the per-metric polarity. Metrics
// absent from either side are skipped rather than treated as change.
func Compare(baseline, followup *domain.Analysis) (*domain.ComparisonResult, error) {
	if baseline == nil || followup == nil {
		return nil, domain.NewAnalysisError(domain.ErrInvalidInput, "both baseline and followup analyses are required", "", "")
	}

	result := &domain.ComparisonResult{
		ScoreChange:       round1(followup.Scoring.Score - baseline.Scoring.Score),
		RiskPercentChange: round1(followup.RiskPercent - baseline.RiskPercent),
		BaselineCategory:  baseline.Category,
		FollowupCategory:  followup.Category,
	}

	for _, cm := range comparableMetrics {
		base := cm.value(baseline.Metrics)
		next := cm.value(followup.Metrics)
		if base == nil || next == nil {
			continue
		}

		delta := *next - *base
		direction := domain.ChangeUnchanged
		if delta != 0 {
			improved := (delta < 0) == cm.lowerBetter
			if improved {
				direction = domain.ChangeImproved
				result.Improvements = append(result.Improvements,
					fmt.Sprintf("%s improved from %.1f to %.1f", cm.name, *base, *next))
			} else {
				direction = domain.ChangeWorsened
				result.Deteriorations = append(result.Deteriorations,
					fmt.Sprintf("%s worsened from %.1f to %.1f", cm.name, *base, *next))
			}
		}

		result.MetricChanges = append(result.MetricChanges, domain.MetricChange{
			Metric:    cm.name,
			Baseline:  *base,
			Followup:  *next,
			Delta:     round1(delta),
			Direction: direction,
		})
	}

	result.Summary = comparisonSummary(result)
	return result, nil
}

func comparisonSummary(r *domain.ComparisonResult) string {
	trend := "unchanged"
	switch {
	case r.RiskPercentChange < 0:
		trend = "improved"
	case r.RiskPercentChange > 0:
		trend = "worsened"
	}
	return fmt.Sprintf("Overall risk %s by %.1f percentage points (%s to %s); %d metric(s) improved, %d worsened",
		trend, abs(r.RiskPercentChange), r.BaselineCategory, r.FollowupCategory,
		len(r.Improvements), len(r.Deteriorations))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
