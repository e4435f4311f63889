package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cardio-risk-server/internal/domain"
)

// ConfidenceService estimates how much the pipeline's own verdict can be
// trusted. Confidence is never a probability of disease: it is a weighted
// composite of data completeness, key-marker quality, and clinical context,
// hard-capped below certainty.
type ConfidenceService struct {
	logger *logrus.Logger
	cfg    *domain.RuleConfig
}

// NewConfidenceService creates a new confidence estimator.
func NewConfidenceService(logger *logrus.Logger, cfg *domain.RuleConfig) *ConfidenceService {
	return &ConfidenceService{logger: logger, cfg: cfg}
}

// importantField pairs a parameter name with its presence check and the test
// that would close the gap when it is missing.
type importantField struct {
	name       string
	present    func(m *domain.Metrics) bool
	suggestion string
}

// The 13 fields that drive data completeness.
var importantFields = []importantField{
	{"age", func(m *domain.Metrics) bool { return m.Age != nil }, "Record patient age"},
	{"sex", func(m *domain.Metrics) bool { return m.Sex != nil }, "Record patient sex"},
	{"systolic_bp", func(m *domain.Metrics) bool { return m.SystolicBP != nil }, "Blood pressure measurement"},
	{"diastolic_bp", func(m *domain.Metrics) bool { return m.DiastolicBP != nil }, "Blood pressure measurement"},
	{"total_cholesterol", func(m *domain.Metrics) bool { return m.TotalCholesterol != nil }, "Lipid panel (total cholesterol)"},
	{"ldl", func(m *domain.Metrics) bool { return m.LDL != nil }, "Lipid panel (LDL cholesterol)"},
	{"hdl", func(m *domain.Metrics) bool { return m.HDL != nil }, "Lipid panel (HDL cholesterol)"},
	{"fasting_glucose", func(m *domain.Metrics) bool { return m.FastingGlucose != nil }, "Fasting glucose or HbA1c"},
	{"bmi", func(m *domain.Metrics) bool { return m.BMI != nil }, "Height and weight for BMI"},
	{"smoker", func(m *domain.Metrics) bool { return m.Smoker != nil }, "Smoking status"},
	{"diabetes", func(m *domain.Metrics) bool { return m.Diabetes != nil }, "Diabetes status"},
	{"family_history", func(m *domain.Metrics) bool { return m.FamilyHistory != nil }, "Family cardiovascular history"},
	{"ejection_fraction", func(m *domain.Metrics) bool { return m.EjectionFraction != nil }, "Echocardiogram to measure ejection fraction"},
}

// Estimate computes the confidence value and its explainable breakdown for
// a metrics record and the score it produced.
func (c *ConfidenceService) Estimate(m *domain.Metrics, score domain.ScoreResult) domain.ConfidenceResult {
	cc := &c.cfg.Confidence

	if m == nil || m.IsEmpty() {
		return domain.ConfidenceResult{
			Confidence:  cc.FloorEmpty,
			Description: describeConfidence(cc.FloorEmpty),
			MissingParameters: allImportantNames(),
			Suggestions: []string{"Provide a medical report with clinical measurements"},
		}
	}

	presentCount := 0
	missing := make([]string, 0)
	suggestions := make([]string, 0)
	seenSuggestion := make(map[string]bool)
	for _, f := range importantFields {
		if f.present(m) {
			presentCount++
			continue
		}
		missing = append(missing, f.name)
		if !seenSuggestion[f.suggestion] {
			seenSuggestion[f.suggestion] = true
			suggestions = append(suggestions, f.suggestion)
		}
	}

	completeness := float64(presentCount) / float64(len(importantFields))

	keyMarkers := 0.0
	if m.EjectionFraction != nil {
		keyMarkers += cc.EFMarkerWeight
	}
	if m.HasBloodPressure() {
		keyMarkers += cc.BPMarkerWeight
	}
	if m.HasLipids() {
		keyMarkers += cc.LipidMarkerWeight
	}

	// Severe findings backed by adequate data are easier to trust than
	// borderline ones.
	context := 0.4
	switch {
	case score.Score >= 60 && presentCount >= 6:
		context = 1.0
	case score.Score >= 40 && presentCount >= 4:
		context = 0.7
	}

	confidence := cc.CompletenessWeight*completeness +
		cc.KeyMarkerWeight*keyMarkers +
		cc.ContextWeight*context

	switch {
	case m.EjectionFraction == nil && !m.HasBloodPressure():
		confidence *= cc.PenaltyNoEFNoBP
	case m.EjectionFraction == nil:
		confidence *= cc.PenaltyNoEF
	case !m.HasBloodPressure():
		confidence *= cc.PenaltyNoBP
	}
	if m.Age == nil && m.Sex == nil {
		confidence *= cc.PenaltyNoDemographics
	}

	confidence = math.Min(confidence, cc.Cap)
	confidence = math.Max(confidence, cc.FloorWithData)

	c.logger.WithFields(logrus.Fields{
		"confidence":     confidence,
		"completeness":   completeness,
		"key_markers":    keyMarkers,
		"missing_fields": len(missing),
	}).Debug("Confidence estimation completed")

	return domain.ConfidenceResult{
		Confidence:  confidence,
		Description: describeConfidence(confidence),
		Breakdown: domain.ConfidenceBreakdown{
			DataCompleteness: completeness,
			KeyMarkerQuality: keyMarkers,
			ClinicalContext:  context,
		},
		MissingParameters: missing,
		Suggestions:       suggestions,
	}
}

// describeConfidence maps the numeric value onto the four confidence bands.
func describeConfidence(confidence float64) string {
	switch {
	case confidence >= 0.75:
		return "High confidence: the assessment is backed by most key clinical markers"
	case confidence >= 0.55:
		return "Moderate confidence: the main markers are present but some data is missing"
	case confidence >= 0.35:
		return "Limited confidence: several important parameters could not be recovered"
	default:
		return "Low confidence: too little clinical data was found to support a reliable assessment"
	}
}

func allImportantNames() []string {
	names := make([]string, 0, len(importantFields))
	for _, f := range importantFields {
		names = append(names, f.name)
	}
	return names
}
