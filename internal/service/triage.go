package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cardio-risk-server/internal/domain"
)

// TriageService assigns exactly one priority per analysis by evaluating a
// fixed, severity-ordered rule list top to bottom and returning on the first
// match. The rule list is data, not control flow, so order and coverage can
// be tested independently of the driver.
type TriageService struct {
	logger *logrus.Logger
	cfg    *domain.RuleConfig
	rules  []triageRule
}

// triageRule pairs a predicate with the result it builds when it fires.
type triageRule struct {
	name    string
	matches func(m *domain.Metrics, meta domain.AnalysisMeta) bool
	build   func(m *domain.Metrics, meta domain.AnalysisMeta) domain.TriageResult
}

// NewTriageService creates a new triage resolver with the canonical rule
// order.
func NewTriageService(logger *logrus.Logger, cfg *domain.RuleConfig) *TriageService {
	t := &TriageService{logger: logger, cfg: cfg}
	t.rules = t.buildRules()
	return t
}

// Resolve runs the first-match-wins driver. Identical inputs always resolve
// to the identical matched rule; the default routine fallback guarantees a
// terminal for every invocation.
func (t *TriageService) Resolve(m *domain.Metrics, meta domain.AnalysisMeta) domain.TriageResult {
	for _, rule := range t.rules {
		if !rule.matches(m, meta) {
			continue
		}
		result := rule.build(m, meta)
		result.MatchedRule = rule.name
		result.WarningSigns = warningSigns(m, meta, &t.cfg.Triage)
		result.Checklist = nextStepsChecklist(meta.Category)

		t.logger.WithFields(logrus.Fields{
			"matched_rule": rule.name,
			"priority":     result.Priority,
		}).Debug("Triage resolved")
		return result
	}

	// Unreachable: the final rule always matches.
	return domain.TriageResult{}
}

// RuleNames returns the rule identifiers in evaluation order.
func (t *TriageService) RuleNames() []string {
	names := make([]string, 0, len(t.rules))
	for _, r := range t.rules {
		names = append(names, r.name)
	}
	return names
}

func immediate(reason, action string) domain.TriageResult {
	return domain.TriageResult{
		Priority:   domain.IMMEDIATE,
		Level:      "Level 1 - Emergency",
		TimeWindow: "Same day, emergency department",
		Reason:     reason,
		Action:     action,
	}
}

func urgent(window, reason, action string) domain.TriageResult {
	return domain.TriageResult{
		Priority:   domain.URGENT,
		Level:      "Level 2 - Urgent",
		TimeWindow: window,
		Reason:     reason,
		Action:     action,
	}
}

func semiUrgent(window, reason, action string) domain.TriageResult {
	return domain.TriageResult{
		Priority:   domain.SEMIURGENT,
		Level:      "Level 3 - Semi-urgent",
		TimeWindow: window,
		Reason:     reason,
		Action:     action,
	}
}

func nonUrgent(window, reason, action string) domain.TriageResult {
	return domain.TriageResult{
		Priority:   domain.NONURGENT,
		Level:      "Level 4 - Non-urgent",
		TimeWindow: window,
		Reason:     reason,
		Action:     action,
	}
}

// buildRules assembles the severity-ordered decision list. Each builder
// references the specific triggering values in its justification.
func (t *TriageService) buildRules() []triageRule {
	tc := &t.cfg.Triage

	hasEF := func(m *domain.Metrics) bool { return m.EjectionFraction != nil }
	hasBP := func(m *domain.Metrics) bool { return m.HasBloodPressure() }

	return []triageRule{
		{
			name: "critical_ejection_fraction",
			matches: func(m *domain.Metrics, _ domain.AnalysisMeta) bool {
				return hasEF(m) && *m.EjectionFraction < tc.CriticalEF
			},
			build: func(m *domain.Metrics, _ domain.AnalysisMeta) domain.TriageResult {
				return immediate(
					fmt.Sprintf("Ejection fraction %.0f%% indicates severely reduced cardiac function (threshold %.0f%%)", *m.EjectionFraction, tc.CriticalEF),
					"Immediate cardiology evaluation for heart failure management",
				)
			},
		},
		{
			name: "hypertensive_crisis",
			matches: func(m *domain.Metrics, _ domain.AnalysisMeta) bool {
				return hasBP(m) && (*m.SystolicBP >= tc.CrisisSystolic || *m.DiastolicBP >= tc.CrisisDiastolic)
			},
			build: func(m *domain.Metrics, _ domain.AnalysisMeta) domain.TriageResult {
				return immediate(
					fmt.Sprintf("Blood pressure %.0f/%.0f mmHg is in hypertensive crisis range (>=%.0f/%.0f)", *m.SystolicBP, *m.DiastolicBP, tc.CrisisSystolic, tc.CrisisDiastolic),
					"Emergency blood pressure management",
				)
			},
		},
		{
			name: "severe_pulmonary_hypertension",
			matches: func(m *domain.Metrics, _ domain.AnalysisMeta) bool {
				return m.PASP != nil && *m.PASP >= tc.SeverePASP
			},
			build: func(m *domain.Metrics, _ domain.AnalysisMeta) domain.TriageResult {
				return immediate(
					fmt.Sprintf("PASP %.0f mmHg indicates severe pulmonary hypertension (>=%.0f)", *m.PASP, tc.SeverePASP),
					"Immediate evaluation for pulmonary hypertension",
				)
			},
		},
		{
			name: "very_high_risk_score",
			matches: func(_ *domain.Metrics, meta domain.AnalysisMeta) bool {
				return meta.RiskPercent >= tc.VeryHighRisk
			},
			build: func(_ *domain.Metrics, meta domain.AnalysisMeta) domain.TriageResult {
				return urgent("Within 24-48 hours",
					fmt.Sprintf("Overall risk %.0f%% is in the very high range (>=%.0f%%)", meta.RiskPercent, tc.VeryHighRisk),
					"Urgent cardiology consultation",
				)
			},
		},
		{
			name: "high_risk_score",
			matches: func(_ *domain.Metrics, meta domain.AnalysisMeta) bool {
				return meta.RiskPercent >= tc.HighRisk
			},
			build: func(_ *domain.Metrics, meta domain.AnalysisMeta) domain.TriageResult {
				return urgent("Within 1 week",
					fmt.Sprintf("Overall risk %.0f%% is in the high range (%.0f-%.0f%%)", meta.RiskPercent, tc.HighRisk, tc.VeryHighRisk-1),
					"Cardiology consultation within the week",
				)
			},
		},
		{
			name: "moderate_pulmonary_hypertension",
			matches: func(m *domain.Metrics, _ domain.AnalysisMeta) bool {
				return m.PASP != nil && *m.PASP >= tc.ModeratePASP
			},
			build: func(m *domain.Metrics, _ domain.AnalysisMeta) domain.TriageResult {
				return urgent("Within 1 week",
					fmt.Sprintf("PASP %.0f mmHg indicates moderate pulmonary hypertension (%.0f-%.0f)", *m.PASP, tc.ModeratePASP, tc.SeverePASP-1),
					"Cardiology review of pulmonary pressures",
				)
			},
		},
		{
			name: "moderately_reduced_ejection_fraction",
			matches: func(m *domain.Metrics, _ domain.AnalysisMeta) bool {
				return hasEF(m) && *m.EjectionFraction >= tc.ModerateEFLow && *m.EjectionFraction < tc.ModerateEFHigh
			},
			build: func(m *domain.Metrics, _ domain.AnalysisMeta) domain.TriageResult {
				return urgent("Within 1-2 weeks",
					fmt.Sprintf("Ejection fraction %.0f%% is moderately reduced (%.0f-%.0f%%)", *m.EjectionFraction, tc.ModerateEFLow, tc.ModerateEFHigh),
					"Cardiology evaluation of ventricular function",
				)
			},
		},
		{
			name: "stage2_hypertension",
			matches: func(m *domain.Metrics, _ domain.AnalysisMeta) bool {
				return hasBP(m) && (*m.SystolicBP >= tc.Stage2Systolic || *m.DiastolicBP >= tc.Stage2Diastolic)
			},
			build: func(m *domain.Metrics, _ domain.AnalysisMeta) domain.TriageResult {
				return semiUrgent("Within 2 weeks",
					fmt.Sprintf("Blood pressure %.0f/%.0f mmHg meets stage 2 hypertension criteria (>=%.0f/%.0f)", *m.SystolicBP, *m.DiastolicBP, tc.Stage2Systolic, tc.Stage2Diastolic),
					"Primary care visit for blood pressure management",
				)
			},
		},
		{
			name: "moderate_risk_score",
			matches: func(_ *domain.Metrics, meta domain.AnalysisMeta) bool {
				return meta.RiskPercent >= tc.ModerateRisk
			},
			build: func(_ *domain.Metrics, meta domain.AnalysisMeta) domain.TriageResult {
				return semiUrgent("Within 2-4 weeks",
					fmt.Sprintf("Overall risk %.0f%% is in the moderate range (%.0f-%.0f%%)", meta.RiskPercent, tc.ModerateRisk, tc.HighRisk-1),
					"Primary care review of cardiovascular risk factors",
				)
			},
		},
		{
			name: "mildly_reduced_ejection_fraction",
			matches: func(m *domain.Metrics, _ domain.AnalysisMeta) bool {
				return hasEF(m) && *m.EjectionFraction >= tc.ModerateEFHigh && *m.EjectionFraction < tc.MildEFHigh
			},
			build: func(m *domain.Metrics, _ domain.AnalysisMeta) domain.TriageResult {
				return semiUrgent("Within 4 weeks",
					fmt.Sprintf("Ejection fraction %.0f%% is mildly reduced (%.0f-%.0f%%)", *m.EjectionFraction, tc.ModerateEFHigh, tc.MildEFHigh),
					"Follow-up echocardiogram and cardiology review",
				)
			},
		},
		{
			name: "stage1_hypertension",
			matches: func(m *domain.Metrics, _ domain.AnalysisMeta) bool {
				return hasBP(m) && (*m.SystolicBP >= tc.Stage1Systolic || *m.DiastolicBP >= tc.Stage1Diastolic)
			},
			build: func(m *domain.Metrics, _ domain.AnalysisMeta) domain.TriageResult {
				return semiUrgent("Within 4 weeks",
					fmt.Sprintf("Blood pressure %.0f/%.0f mmHg meets stage 1 hypertension criteria (>=%.0f/%.0f)", *m.SystolicBP, *m.DiastolicBP, tc.Stage1Systolic, tc.Stage1Diastolic),
					"Primary care visit for blood pressure confirmation",
				)
			},
		},
		{
			name: "severe_metabolic_markers",
			matches: func(m *domain.Metrics, _ domain.AnalysisMeta) bool {
				veryHighLDL := m.LDL != nil && *m.LDL >= tc.VeryHighLDL
				diabeticGlucose := m.FastingGlucose != nil && *m.FastingGlucose >= tc.DiabeticGlucose
				return veryHighLDL || diabeticGlucose
			},
			build: func(m *domain.Metrics, _ domain.AnalysisMeta) domain.TriageResult {
				reason := ""
				switch {
				case m.LDL != nil && *m.LDL >= tc.VeryHighLDL:
					reason = fmt.Sprintf("LDL cholesterol %.0f mg/dL is very high (>=%.0f)", *m.LDL, tc.VeryHighLDL)
				default:
					reason = fmt.Sprintf("Fasting glucose %.0f mg/dL is in the diabetic range (>=%.0f)", *m.FastingGlucose, tc.DiabeticGlucose)
				}
				return semiUrgent("Within 4 weeks", reason, "Primary care visit for metabolic workup")
			},
		},
		{
			name: "low_risk_score",
			matches: func(_ *domain.Metrics, meta domain.AnalysisMeta) bool {
				return meta.RiskPercent >= tc.LowRisk
			},
			build: func(_ *domain.Metrics, meta domain.AnalysisMeta) domain.TriageResult {
				return nonUrgent("Within 3 months",
					fmt.Sprintf("Overall risk %.0f%% is in the low range (%.0f-%.0f%%)", meta.RiskPercent, tc.LowRisk, tc.ModerateRisk-1),
					"Routine follow-up with primary care",
				)
			},
		},
		{
			name: "minimal_risk",
			matches: func(_ *domain.Metrics, meta domain.AnalysisMeta) bool {
				return meta.Category == domain.NORMAL
			},
			build: func(_ *domain.Metrics, meta domain.AnalysisMeta) domain.TriageResult {
				return nonUrgent("Routine annual check-up",
					fmt.Sprintf("Overall risk %.0f%% is in the normal range", meta.RiskPercent),
					"Maintain current lifestyle; routine screening",
				)
			},
		},
		{
			name: "default_routine",
			matches: func(_ *domain.Metrics, _ domain.AnalysisMeta) bool {
				return true
			},
			build: func(_ *domain.Metrics, _ domain.AnalysisMeta) domain.TriageResult {
				return nonUrgent("Routine follow-up",
					"No specific triage criteria were met",
					"Discuss findings at the next scheduled visit",
				)
			},
		},
	}
}

// warningSigns derives the warning-sign list from the metrics and category,
// independently of which rule fired: two conditions at the same priority can
// still carry different warning sets.
func warningSigns(m *domain.Metrics, meta domain.AnalysisMeta, tc *domain.TriageConfig) []string {
	signs := []string{
		"Chest pain or pressure lasting more than a few minutes",
		"Sudden shortness of breath",
		"Fainting or near-fainting",
	}

	if m.EjectionFraction != nil && *m.EjectionFraction < tc.MildEFHigh {
		signs = append(signs,
			"Swelling of the legs or rapid weight gain",
			"Needing extra pillows to breathe at night",
		)
	}
	if m.HasBloodPressure() && (*m.SystolicBP >= tc.Stage1Systolic || *m.DiastolicBP >= tc.Stage1Diastolic) {
		signs = append(signs,
			"Severe headache with blurred vision",
			"Nosebleeds with very high blood pressure readings",
		)
	}
	if m.PASP != nil && *m.PASP >= tc.ModeratePASP {
		signs = append(signs,
			"Dizziness or fainting during exertion",
			"Worsening breathlessness with everyday activity",
		)
	}
	if meta.Category == domain.HIGH {
		signs = append(signs, "Irregular or racing heartbeat at rest")
	}

	return signs
}

// nextStepsChecklist derives the ordered checklist from the category alone.
func nextStepsChecklist(category domain.RiskCategory) []string {
	checklist := []string{
		"Bring this report and any prior ECG or echo reports to your appointment",
		"Bring a current list of medications and doses",
	}

	switch category {
	case domain.HIGH:
		checklist = append(checklist,
			"Arrange the recommended specialist appointment before leaving the clinic",
			"Record blood pressure twice daily until seen",
			"Identify the nearest emergency department",
		)
	case domain.MODERATE:
		checklist = append(checklist,
			"Schedule the recommended follow-up within the stated time window",
			"Record blood pressure several times per week",
		)
	case domain.LOW:
		checklist = append(checklist,
			"Schedule a routine follow-up visit",
			"Review diet and activity habits with your clinician",
		)
	default:
		checklist = append(checklist,
			"Continue routine annual screening",
		)
	}

	return checklist
}
