package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cardio-risk-server/internal/domain"
)

// Recommendation categories.
const (
	RecCardiology    = "CARDIOLOGY"
	RecBloodPressure = "BLOOD_PRESSURE"
	RecLipids        = "LIPIDS"
	RecGlycemic      = "GLYCEMIC"
	RecLifestyle     = "LIFESTYLE"
	RecWeight        = "WEIGHT"
	RecSmoking       = "SMOKING"
	RecMonitoring    = "MONITORING"
	RecMentalHealth  = "MENTAL_HEALTH"
	RecEmergency     = "EMERGENCY"
	RecScreening     = "SCREENING"
	RecGeneral       = "GENERAL"
)

// Disclaimer closes every recommendation list.
const Disclaimer = "This assessment is advisory and generated from document text; it is not a diagnosis. Discuss all findings and recommendations with a qualified clinician."

// RecommendationService generates the categorized, prioritized action list.
type RecommendationService struct {
	logger *logrus.Logger
	cfg    *domain.RuleConfig
}

// NewRecommendationService creates a new recommendation generator.
func NewRecommendationService(logger *logrus.Logger, cfg *domain.RuleConfig) *RecommendationService {
	return &RecommendationService{logger: logger, cfg: cfg}
}

// Generate appends recommendation blocks conditionally from the metrics and
// the aggregated meta, de-duplicates by text preserving first occurrence,
// and always closes with the disclaimer.
func (r *RecommendationService) Generate(m *domain.Metrics, meta domain.AnalysisMeta) domain.RecommendationSet {
	tc := &r.cfg.Triage
	sc := &r.cfg.Scoring

	items := make([]domain.Recommendation, 0, 16)
	std := func(text, category string) {
		items = append(items, domain.Recommendation{Text: text, Category: category, Priority: domain.RecPriorityStandard})
	}
	pri := func(text, category, rationale string) {
		items = append(items, domain.Recommendation{Text: text, Category: category, Priority: domain.RecPriorityHigh, Rationale: rationale})
	}

	if m.EjectionFraction != nil && *m.EjectionFraction < tc.CriticalEF {
		pri("Seek immediate cardiology assessment for severely reduced heart function", RecCardiology,
			fmt.Sprintf("Ejection fraction %.0f%% is below %.0f%%", *m.EjectionFraction, tc.CriticalEF))
		std("Limit fluid and salt intake until reviewed by a cardiologist", RecCardiology)
	}

	if m.HasBloodPressure() && (*m.SystolicBP >= tc.CrisisSystolic || *m.DiastolicBP >= tc.CrisisDiastolic) {
		pri("Seek emergency care for blood pressure in the crisis range", RecBloodPressure,
			fmt.Sprintf("Reading of %.0f/%.0f mmHg", *m.SystolicBP, *m.DiastolicBP))
	}

	if m.PASP != nil && *m.PASP >= tc.SeverePASP {
		pri("Seek urgent evaluation for severe pulmonary hypertension", RecCardiology,
			fmt.Sprintf("PASP %.0f mmHg", *m.PASP))
	}

	if m.HasBloodPressure() && (*m.SystolicBP >= tc.Stage1Systolic || *m.DiastolicBP >= tc.Stage1Diastolic) {
		std("Monitor blood pressure at home and keep a log for your clinician", RecBloodPressure)
		std("Reduce dietary sodium to under 2g per day", RecBloodPressure)
	}

	if m.EjectionFraction != nil && *m.EjectionFraction >= tc.CriticalEF && *m.EjectionFraction < tc.MildEFHigh {
		std("Schedule a follow-up echocardiogram to track ventricular function", RecCardiology)
	}

	if (m.LDL != nil && *m.LDL >= sc.LDLThresholds[1]) ||
		(m.TotalCholesterol != nil && *m.TotalCholesterol >= 200) {
		std("Discuss lipid-lowering therapy and dietary changes with your clinician", RecLipids)
		std("Repeat a fasting lipid panel in 3 months", RecLipids)
	}

	diabetic := m.Diabetes != nil && *m.Diabetes
	prediabetic := m.FastingGlucose != nil && *m.FastingGlucose >= sc.GlucoseImpaired && *m.FastingGlucose < sc.GlucoseDiabetic
	if diabetic {
		std("Keep glycemic control on target and review HbA1c quarterly", RecGlycemic)
	} else if prediabetic || (m.FastingGlucose != nil && *m.FastingGlucose >= sc.GlucoseDiabetic) {
		std("Arrange formal diabetes testing (fasting glucose and HbA1c)", RecGlycemic)
	}

	if meta.Category != domain.NORMAL {
		std("Aim for at least 150 minutes of moderate aerobic activity per week", RecLifestyle)
		std("Adopt a heart-healthy diet rich in vegetables, whole grains and fish", RecLifestyle)
	}

	if m.BMI != nil && *m.BMI >= sc.BMIOverweight {
		std(fmt.Sprintf("Work toward gradual weight reduction from BMI %.1f toward the healthy range", *m.BMI), RecWeight)
	}

	if m.Smoker != nil && *m.Smoker {
		pri("Stop smoking; ask your clinician about cessation support and therapy", RecSmoking,
			"Smoking cessation is the single most effective risk reduction available")
	}

	if meta.RiskPercent >= r.cfg.Category.ModerateCutoff {
		std("Manage stress with regular sleep and relaxation practice", RecLifestyle)
		std("Limit alcohol consumption", RecLifestyle)
	}

	if meta.Category == domain.HIGH || meta.Category == domain.MODERATE {
		std("Take prescribed medications consistently and report side effects rather than stopping", RecMonitoring)
		std("Keep preventive screening appointments (blood pressure, lipids, glucose)", RecScreening)
		std("Consider speaking with a professional about the emotional impact of cardiac findings", RecMentalHealth)
		std("Keep emergency contact numbers accessible and know your nearest emergency department", RecEmergency)
	}

	if m.FamilyHistory != nil && *m.FamilyHistory {
		std("Encourage first-degree relatives to have their cardiovascular risk assessed", RecScreening)
	}

	deduped := dedupeRecommendations(items)

	priority := make([]domain.Recommendation, 0)
	byCategory := make(map[string][]domain.Recommendation)
	for _, item := range deduped {
		if item.Priority == domain.RecPriorityHigh {
			priority = append(priority, item)
		}
		byCategory[item.Category] = append(byCategory[item.Category], item)
	}

	r.logger.WithFields(logrus.Fields{
		"recommendations": len(deduped),
		"priority":        len(priority),
	}).Debug("Recommendations generated")

	return domain.RecommendationSet{
		Items:      deduped,
		Priority:   priority,
		ByCategory: byCategory,
		Disclaimer: Disclaimer,
	}
}

// dedupeRecommendations removes duplicate texts preserving first-occurrence
// order.
func dedupeRecommendations(items []domain.Recommendation) []domain.Recommendation {
	seen := make(map[string]bool, len(items))
	out := make([]domain.Recommendation, 0, len(items))
	for _, item := range items {
		if seen[item.Text] {
			continue
		}
		seen[item.Text] = true
		out = append(out, item)
	}
	return out
}
