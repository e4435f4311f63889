package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-risk-server/internal/domain"
)

func analyze(t *testing.T, m *domain.Metrics) *domain.Analysis {
	t.Helper()
	analysis, err := newTestAnalyzer().AnalyzeMetrics(context.Background(), m, "")
	require.NoError(t, err)
	return analysis
}

func TestCompare_TreatmentResponse(t *testing.T) {
	baseline := analyze(t, &domain.Metrics{
		Age:              domain.Float(62),
		SystolicBP:       domain.Float(165),
		DiastolicBP:      domain.Float(100),
		LDL:              domain.Float(180),
		EjectionFraction: domain.Float(42),
	})
	followup := analyze(t, &domain.Metrics{
		Age:              domain.Float(62),
		SystolicBP:       domain.Float(138),
		DiastolicBP:      domain.Float(86),
		LDL:              domain.Float(120),
		EjectionFraction: domain.Float(50),
	})

	result, err := Compare(baseline, followup)
	require.NoError(t, err)

	assert.Negative(t, result.RiskPercentChange)
	assert.Contains(t, result.Improvements, "systolic_bp improved from 165.0 to 138.0")
	assert.Contains(t, result.Improvements, "ldl improved from 180.0 to 120.0")
	assert.Contains(t, result.Improvements, "ejection_fraction improved from 42.0 to 50.0")
	assert.Empty(t, result.Deteriorations)
	assert.Contains(t, result.Summary, "improved")
}

func TestCompare_PolarityPerMetric(t *testing.T) {
	// A raised HDL is an improvement while a raised LDL is a deterioration;
	// polarity is per metric, not global.
	baseline := analyze(t, &domain.Metrics{
		HDL: domain.Float(38),
		LDL: domain.Float(120),
	})
	followup := analyze(t, &domain.Metrics{
		HDL: domain.Float(52),
		LDL: domain.Float(150),
	})

	result, err := Compare(baseline, followup)
	require.NoError(t, err)

	directions := make(map[string]string)
	for _, change := range result.MetricChanges {
		directions[change.Metric] = change.Direction
	}
	assert.Equal(t, domain.ChangeImproved, directions["hdl"])
	assert.Equal(t, domain.ChangeWorsened, directions["ldl"])
}

func TestCompare_MissingMetricsAreSkipped(t *testing.T) {
	baseline := analyze(t, &domain.Metrics{SystolicBP: domain.Float(150), DiastolicBP: domain.Float(95)})
	followup := analyze(t, &domain.Metrics{LDL: domain.Float(120)})

	result, err := Compare(baseline, followup)
	require.NoError(t, err)
	assert.Empty(t, result.MetricChanges, "metrics absent from either side carry no change")
}

func TestCompare_UnchangedMetrics(t *testing.T) {
	m := &domain.Metrics{SystolicBP: domain.Float(140), DiastolicBP: domain.Float(90)}
	result, err := Compare(analyze(t, m), analyze(t, m))
	require.NoError(t, err)

	for _, change := range result.MetricChanges {
		assert.Equal(t, domain.ChangeUnchanged, change.Direction)
		assert.Zero(t, change.Delta)
	}
	assert.Zero(t, result.RiskPercentChange)
	assert.Empty(t, result.Improvements)
	assert.Empty(t, result.Deteriorations)
}

func TestCompare_NilArguments(t *testing.T) {
	valid := analyze(t, &domain.Metrics{Age: domain.Float(50)})

	_, err := Compare(nil, valid)
	assert.Error(t, err)
	_, err = Compare(valid, nil)
	assert.Error(t, err)
}
