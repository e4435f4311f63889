package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-risk-server/internal/domain"
)

var testInstant = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestAnalyzer() *AnalyzerService {
	return NewAnalyzerService(newTestLogger(), domain.DefaultRuleConfig(), domain.FixedClock{Instant: testInstant})
}

func TestAnalyzerService_AnalyzeDocument_HealthyYoungAdult(t *testing.T) {
	analyzer := newTestAnalyzer()

	text := `Checkup report. 35 year old female patient.
Blood pressure: 110/70 mmHg. LDL: 90 mg/dL, HDL: 65 mg/dL.
Non-smoker, no diabetes, no family history of cardiac disease.`

	analysis, err := analyzer.AnalyzeDocument(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, 5.0, analysis.RiskPercent)
	assert.Equal(t, domain.NORMAL, analysis.Category)
	assert.Equal(t, domain.NONURGENT, analysis.Triage.Priority)
	assert.NotEmpty(t, analysis.ID)
	assert.Equal(t, testInstant, analysis.AnalyzedAt)
	assert.Equal(t, domain.AnalysisVersion, analysis.Version)
}

func TestAnalyzerService_AnalyzeMetrics_HighRiskElderlyPatient(t *testing.T) {
	analyzer := newTestAnalyzer()

	m := &domain.Metrics{
		Age:              domain.Float(70),
		Sex:              domain.SexOf(domain.MALE),
		SystolicBP:       domain.Float(190),
		DiastolicBP:      domain.Float(115),
		LDL:              domain.Float(200),
		BMI:              domain.Float(34),
		EjectionFraction: domain.Float(25),
		PASP:             domain.Float(68),
		Smoker:           domain.Bool(true),
		Diabetes:         domain.Bool(true),
		FamilyHistory:    domain.Bool(true),
	}

	analysis, err := analyzer.AnalyzeMetrics(context.Background(), m, "")
	require.NoError(t, err)

	assert.Equal(t, 83.6, analysis.RiskPercent)
	assert.Equal(t, domain.HIGH, analysis.Category)
	assert.Equal(t, domain.IMMEDIATE, analysis.Triage.Priority)
	assert.Equal(t, "critical_ejection_fraction", analysis.Triage.MatchedRule)
	assert.Greater(t, analysis.Confidence, 0.7)
	assert.NotEmpty(t, analysis.Scoring.Reasons)
	assert.NotEmpty(t, analysis.Recommendations.Priority)
}

func TestAnalyzerService_AnalyzeMetrics_NilMetrics(t *testing.T) {
	analyzer := newTestAnalyzer()

	_, err := analyzer.AnalyzeMetrics(context.Background(), nil, "")
	require.Error(t, err)

	var analysisErr *domain.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, domain.ErrMissingMetrics, analysisErr.Code)
}

func TestAnalyzerService_AnalyzeMetrics_CancelledContext(t *testing.T) {
	analyzer := newTestAnalyzer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzer.AnalyzeMetrics(ctx, &domain.Metrics{}, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzerService_AnalyzeMetrics_RoundsReportedNumbers(t *testing.T) {
	analyzer := newTestAnalyzer()

	m := &domain.Metrics{
		Age:      domain.Float(70),
		Diabetes: domain.Bool(true),
		Smoker:   domain.Bool(true),
	}

	analysis, err := analyzer.AnalyzeMetrics(context.Background(), m, "")
	require.NoError(t, err)

	// 26/73*100 = 35.616..., reported to one decimal.
	assert.Equal(t, 35.6, analysis.RiskPercent)
	assert.Equal(t, analysis.RiskPercent, analysis.CategoryDetail.RiskPercent)
}

func TestAnalyzerService_AnalyzeDocument_UnreadableTextStillAnalyzes(t *testing.T) {
	analyzer := newTestAnalyzer()

	analysis, err := analyzer.AnalyzeDocument(context.Background(), "completely unrelated text with no clinical content")
	require.NoError(t, err)

	assert.Equal(t, 5.0, analysis.RiskPercent)
	assert.Equal(t, domain.NORMAL, analysis.Category)
	assert.Equal(t, 0.05, analysis.Confidence)
	assert.NotEmpty(t, analysis.ConfidenceMeta.MissingParameters)
}

func TestAnalyzerService_AnalyzeBatch(t *testing.T) {
	analyzer := newTestAnalyzer()

	records := []*domain.Metrics{
		{Age: domain.Float(35)},
		{Age: domain.Float(70), Diabetes: domain.Bool(true)},
	}

	analyses, err := analyzer.AnalyzeBatch(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, analyses, 2)
	assert.Less(t, analyses[0].RiskPercent, analyses[1].RiskPercent)
}

func TestAnalyzerService_AnalyzeBatch_OneBadRecordFailsTheBatch(t *testing.T) {
	analyzer := newTestAnalyzer()

	_, err := analyzer.AnalyzeBatch(context.Background(), []*domain.Metrics{
		{Age: domain.Float(35)},
		nil,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch item 1")
}

func TestAnalyzerService_QuickAssessment(t *testing.T) {
	analyzer := newTestAnalyzer()

	quick, err := analyzer.QuickAssessment(&domain.Metrics{
		Age:      domain.Float(70),
		Diabetes: domain.Bool(true),
		Smoker:   domain.Bool(true),
	})
	require.NoError(t, err)

	assert.Equal(t, 35.6, quick.RiskPercent)
	assert.Equal(t, domain.LOW, quick.Category)

	_, err = analyzer.QuickAssessment(nil)
	assert.Error(t, err)
}

func TestAnalyzerService_ProviderSummary(t *testing.T) {
	analyzer := newTestAnalyzer()

	m := &domain.Metrics{
		Age:              domain.Float(70),
		EjectionFraction: domain.Float(25),
		Smoker:           domain.Bool(true),
	}
	analysis, err := analyzer.AnalyzeMetrics(context.Background(), m, "")
	require.NoError(t, err)

	summary := analyzer.ProviderSummary(analysis)

	assert.Contains(t, summary, "Cardiovascular risk assessment")
	assert.Contains(t, summary, "Triage: IMMEDIATE")
	assert.Contains(t, summary, "Contributing factors:")
	assert.Contains(t, summary, "Missing parameters:")
	assert.Contains(t, summary, Disclaimer)

	assert.Empty(t, analyzer.ProviderSummary(nil))
}

func TestAnalyzerService_TextPreviewIsCapped(t *testing.T) {
	analyzer := newTestAnalyzer()

	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'a'
	}

	analysis, err := analyzer.AnalyzeDocument(context.Background(), string(long))
	require.NoError(t, err)
	assert.Len(t, analysis.TextPreview, textPreviewLimit)
}

func TestAnalyzerService_TextPreviewKeepsValidUTF8(t *testing.T) {
	analyzer := newTestAnalyzer()

	// 499 ASCII bytes followed by multi-byte runes puts a rune across the
	// preview cutoff.
	text := strings.Repeat("a", textPreviewLimit-1) + strings.Repeat("°", 20)

	analysis, err := analyzer.AnalyzeDocument(context.Background(), text)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(analysis.TextPreview))
	assert.LessOrEqual(t, len(analysis.TextPreview), textPreviewLimit)
	assert.Equal(t, textPreviewLimit-1, len(analysis.TextPreview))
}
