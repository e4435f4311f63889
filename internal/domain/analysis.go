package domain

import (
	"time"
)

// AnalysisVersion stamps every produced analysis record.
const AnalysisVersion = "1.0.0"

// RiskCategory represents the clinical risk category of an assessment
type RiskCategory string

const (
	NORMAL   RiskCategory = "NORMAL"
	LOW      RiskCategory = "LOW"
	MODERATE RiskCategory = "MODERATE"
	HIGH     RiskCategory = "HIGH"
)

// Severity returns the ordinal position of the category, used to verify that
// category is a non-decreasing function of the normalized risk percent.
func (c RiskCategory) Severity() int {
	switch c {
	case NORMAL:
		return 0
	case LOW:
		return 1
	case MODERATE:
		return 2
	case HIGH:
		return 3
	}
	return -1
}

// TriagePriority represents the urgency classification of an assessment
type TriagePriority string

const (
	IMMEDIATE  TriagePriority = "IMMEDIATE"
	URGENT     TriagePriority = "URGENT"
	SEMIURGENT TriagePriority = "SEMI_URGENT"
	NONURGENT  TriagePriority = "NON_URGENT"
)

// ScoreResult is the output of the risk scorer.
type ScoreResult struct {
	// Score is the normalized 0-100 risk percent before category clamping.
	Score float64 `json:"score"`
	// RawScore is the unnormalized point total across all factors.
	RawScore float64 `json:"raw_score"`
	// MaxScore is the maximum attainable point total under the active rule set.
	MaxScore float64 `json:"max_score"`
	// Reasons lists one human-readable entry per contributing factor,
	// annotated with its point delta.
	Reasons []string `json:"reasons"`
}

// CategoryResult is the output of the categorizer.
type CategoryResult struct {
	Category    RiskCategory `json:"category"`
	RiskPercent float64      `json:"risk_percent"`
}

// ConfidenceBreakdown exposes the three weighted sub-scores behind a
// confidence value so the verdict can be explained.
type ConfidenceBreakdown struct {
	DataCompleteness float64 `json:"data_completeness"`
	KeyMarkerQuality float64 `json:"key_marker_quality"`
	ClinicalContext  float64 `json:"clinical_context"`
}

// ConfidenceResult is the output of the confidence estimator.
type ConfidenceResult struct {
	Confidence        float64             `json:"confidence"`
	Description       string              `json:"description"`
	Breakdown         ConfidenceBreakdown `json:"breakdown"`
	MissingParameters []string            `json:"missing_parameters,omitempty"`
	Suggestions       []string            `json:"suggestions,omitempty"`
}

// TriageResult is the output of the triage resolver. Exactly one priority is
// assigned per analysis by a first-match-wins rule list.
type TriageResult struct {
	Priority     TriagePriority `json:"priority"`
	Level        string         `json:"level"`
	TimeWindow   string         `json:"time_window"`
	Reason       string         `json:"reason"`
	Action       string         `json:"action"`
	MatchedRule  string         `json:"matched_rule"`
	WarningSigns []string       `json:"warning_signs,omitempty"`
	Checklist    []string       `json:"checklist,omitempty"`
}

// Recommendation is a single categorized, prioritized action item.
type Recommendation struct {
	Text      string `json:"text"`
	Category  string `json:"category"`
	Priority  string `json:"priority"`
	Rationale string `json:"rationale,omitempty"`
}

// Recommendation priority labels.
const (
	RecPriorityHigh     = "PRIORITY"
	RecPriorityStandard = "STANDARD"
)

// RecommendationSet is the output of the recommendation generator.
type RecommendationSet struct {
	Items      []Recommendation            `json:"items"`
	Priority   []Recommendation            `json:"priority,omitempty"`
	ByCategory map[string][]Recommendation `json:"by_category,omitempty"`
	Disclaimer string                      `json:"disclaimer"`
}

// AnalysisMeta aggregates the outputs of the earlier pipeline stages for
// consumption by the triage resolver and the recommendation generator.
type AnalysisMeta struct {
	Score       float64
	RiskPercent float64
	Category    RiskCategory
	Confidence  float64
	Reasons     []string
}

// Analysis is the immutable root aggregate produced by the composer. It owns
// no mutable state after construction and is JSON-serializable.
type Analysis struct {
	ID              string            `json:"id"`
	RiskPercent     float64           `json:"risk_percent"`
	Category        RiskCategory      `json:"category"`
	Confidence      float64           `json:"confidence"`
	Metrics         *Metrics          `json:"metrics"`
	TextPreview     string            `json:"text_preview,omitempty"`
	Scoring         ScoreResult       `json:"scoring"`
	CategoryDetail  CategoryResult    `json:"category_detail"`
	ConfidenceMeta  ConfidenceResult  `json:"confidence_meta"`
	Triage          TriageResult      `json:"triage"`
	Recommendations RecommendationSet `json:"recommendations"`
	AnalyzedAt      time.Time         `json:"analyzed_at"`
	Version         string            `json:"version"`
}

// QuickAssessment is a lightweight result carrying only the headline numbers.
type QuickAssessment struct {
	Score       float64      `json:"score"`
	Category    RiskCategory `json:"category"`
	RiskPercent float64      `json:"risk_percent"`
}

// ValidationIssue describes one problem found by the pre-flight validator.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ValidationReport is the result of the non-blocking pre-flight check.
// Warnings never render the report invalid.
type ValidationReport struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Change directions used by the comparison routine.
const (
	ChangeImproved  = "IMPROVED"
	ChangeWorsened  = "WORSENED"
	ChangeUnchanged = "UNCHANGED"
)

// MetricChange records the movement of a single defined metric between a
// baseline and a follow-up analysis.
type MetricChange struct {
	Metric    string  `json:"metric"`
	Baseline  float64 `json:"baseline"`
	Followup  float64 `json:"followup"`
	Delta     float64 `json:"delta"`
	Direction string  `json:"direction"`
}

// ComparisonResult diffs two analyses of the same patient.
type ComparisonResult struct {
	ScoreChange       float64        `json:"score_change"`
	RiskPercentChange float64        `json:"risk_percent_change"`
	BaselineCategory  RiskCategory   `json:"baseline_category"`
	FollowupCategory  RiskCategory   `json:"followup_category"`
	MetricChanges     []MetricChange `json:"metric_changes"`
	Improvements      []string       `json:"improvements,omitempty"`
	Deteriorations    []string       `json:"deteriorations,omitempty"`
	Summary           string         `json:"summary"`
}
