package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cardio-risk-server/internal/domain"
)

// textPreviewLimit caps the stored document excerpt.
const textPreviewLimit = 500

// AnalyzerService orchestrates the full pipeline in fixed order (extract,
// score, categorize, confidence, triage, recommendations) and assembles the
// immutable analysis record. Every stage is pure; the only non-pure element,
// the analysis timestamp, comes from the injected clock.
type AnalyzerService struct {
	logger *logrus.Logger
	cfg    *domain.RuleConfig
	clock  domain.Clock

	extractor       *ExtractorService
	scorer          *ScorerService
	confidence      *ConfidenceService
	triage          *TriageService
	recommendations *RecommendationService
}

// NewAnalyzerService creates the composer with all pipeline stages.
func NewAnalyzerService(logger *logrus.Logger, cfg *domain.RuleConfig, clock domain.Clock) *AnalyzerService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &AnalyzerService{
		logger:          logger,
		cfg:             cfg,
		clock:           clock,
		extractor:       NewExtractorService(logger, cfg),
		scorer:          NewScorerService(logger, cfg),
		confidence:      NewConfidenceService(logger, cfg),
		triage:          NewTriageService(logger, cfg),
		recommendations: NewRecommendationService(logger, cfg),
	}
}

// AnalyzeDocument runs extraction over the raw report text and analyzes the
// recovered metrics.
func (a *AnalyzerService) AnalyzeDocument(ctx context.Context, text string) (*domain.Analysis, error) {
	start := time.Now()

	metrics := a.extractor.Extract(text)
	analysis, err := a.AnalyzeMetrics(ctx, metrics, previewOf(text))
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"analysis_id":     analysis.ID,
		"category":        analysis.Category,
		"risk_percent":    analysis.RiskPercent,
		"confidence":      analysis.Confidence,
		"processing_time": time.Since(start),
	}).Info("Document analysis completed")

	return analysis, nil
}

// AnalyzeMetrics runs stages 2-6 over an already-structured metrics record.
// A nil metrics argument is the one fatal condition of the pipeline.
func (a *AnalyzerService) AnalyzeMetrics(ctx context.Context, metrics *domain.Metrics, textPreview string) (*domain.Analysis, error) {
	if metrics == nil {
		return nil, domain.NewAnalysisError(domain.ErrMissingMetrics, "metrics record is required", "", "")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scoring := a.scorer.Score(metrics)
	categoryDetail := Categorize(scoring.Score, a.cfg)
	confidenceMeta := a.confidence.Estimate(metrics, scoring)

	meta := domain.AnalysisMeta{
		Score:       scoring.Score,
		RiskPercent: categoryDetail.RiskPercent,
		Category:    categoryDetail.Category,
		Confidence:  confidenceMeta.Confidence,
		Reasons:     scoring.Reasons,
	}

	triage := a.triage.Resolve(metrics, meta)
	recommendations := a.recommendations.Generate(metrics, meta)

	return &domain.Analysis{
		ID:              uuid.New().String(),
		RiskPercent:     round1(categoryDetail.RiskPercent),
		Category:        categoryDetail.Category,
		Confidence:      round2(confidenceMeta.Confidence),
		Metrics:         metrics,
		TextPreview:     textPreview,
		Scoring:         roundScore(scoring),
		CategoryDetail:  roundCategory(categoryDetail),
		ConfidenceMeta:  roundConfidence(confidenceMeta),
		Triage:          triage,
		Recommendations: recommendations,
		AnalyzedAt:      a.clock.Now(),
		Version:         domain.AnalysisVersion,
	}, nil
}

// AnalyzeBatch composes an analysis per metrics record, preserving input
// order. One bad record fails the batch; callers wanting partial results
// should analyze individually.
func (a *AnalyzerService) AnalyzeBatch(ctx context.Context, records []*domain.Metrics) ([]*domain.Analysis, error) {
	analyses := make([]*domain.Analysis, 0, len(records))
	for i, m := range records {
		analysis, err := a.AnalyzeMetrics(ctx, m, "")
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		analyses = append(analyses, analysis)
	}
	return analyses, nil
}

// QuickAssessment returns only the headline numbers without triage,
// confidence, or recommendations.
func (a *AnalyzerService) QuickAssessment(metrics *domain.Metrics) (*domain.QuickAssessment, error) {
	if metrics == nil {
		return nil, domain.NewAnalysisError(domain.ErrMissingMetrics, "metrics record is required", "", "")
	}
	scoring := a.scorer.Score(metrics)
	categoryDetail := Categorize(scoring.Score, a.cfg)
	return &domain.QuickAssessment{
		Score:       round1(scoring.Score),
		Category:    categoryDetail.Category,
		RiskPercent: round1(categoryDetail.RiskPercent),
	}, nil
}

// RuleConfig exposes the active rule configuration.
func (a *AnalyzerService) RuleConfig() *domain.RuleConfig {
	return a.cfg
}

// ProviderSummary renders a compact human-readable summary for a clinician.
func (a *AnalyzerService) ProviderSummary(analysis *domain.Analysis) string {
	if analysis == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cardiovascular risk assessment (%s, v%s)\n", analysis.AnalyzedAt.Format("2006-01-02 15:04 MST"), analysis.Version)
	fmt.Fprintf(&b, "Risk: %.1f%% (%s), confidence %.2f\n", analysis.RiskPercent, analysis.Category, analysis.Confidence)
	fmt.Fprintf(&b, "Triage: %s - %s (%s)\n", analysis.Triage.Priority, analysis.Triage.Reason, analysis.Triage.TimeWindow)

	if len(analysis.Scoring.Reasons) > 0 {
		b.WriteString("Contributing factors:\n")
		for _, reason := range analysis.Scoring.Reasons {
			fmt.Fprintf(&b, "  - %s\n", reason)
		}
	}
	if len(analysis.ConfidenceMeta.MissingParameters) > 0 {
		fmt.Fprintf(&b, "Missing parameters: %s\n", strings.Join(analysis.ConfidenceMeta.MissingParameters, ", "))
	}
	if len(analysis.Recommendations.Priority) > 0 {
		b.WriteString("Priority recommendations:\n")
		for _, rec := range analysis.Recommendations.Priority {
			fmt.Fprintf(&b, "  - %s\n", rec.Text)
		}
	}
	fmt.Fprintf(&b, "%s\n", analysis.Recommendations.Disclaimer)

	return b.String()
}

func previewOf(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= textPreviewLimit {
		return text
	}
	// Back off to a rune boundary so the preview stays valid UTF-8.
	cut := textPreviewLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func roundScore(s domain.ScoreResult) domain.ScoreResult {
	s.Score = round1(s.Score)
	return s
}

func roundCategory(c domain.CategoryResult) domain.CategoryResult {
	c.RiskPercent = round1(c.RiskPercent)
	return c
}

func roundConfidence(c domain.ConfidenceResult) domain.ConfidenceResult {
	c.Confidence = round2(c.Confidence)
	c.Breakdown.DataCompleteness = round2(c.Breakdown.DataCompleteness)
	c.Breakdown.KeyMarkerQuality = round2(c.Breakdown.KeyMarkerQuality)
	c.Breakdown.ClinicalContext = round2(c.Breakdown.ClinicalContext)
	return c
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
