package service

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cardio-risk-server/internal/domain"
)

// ScorerService computes the additive multi-factor risk score. The score is
// a pure function of the metrics record: missing factors contribute zero
// points and zero reasons, and absence is never penalized here (the
// confidence estimator accounts for it instead).
type ScorerService struct {
	logger *logrus.Logger
	cfg    *domain.RuleConfig
}

// NewScorerService creates a new risk scorer.
func NewScorerService(logger *logrus.Logger, cfg *domain.RuleConfig) *ScorerService {
	return &ScorerService{logger: logger, cfg: cfg}
}

// Score evaluates every factor against the metrics record and returns the
// normalized 0-100 score together with one reason per contributing factor.
func (s *ScorerService) Score(m *domain.Metrics) domain.ScoreResult {
	sc := &s.cfg.Scoring

	total := 0.0
	reasons := make([]string, 0, 12)
	add := func(points float64, reason string) {
		total += points
		reasons = append(reasons, fmt.Sprintf("%s (%+.0f)", reason, points))
	}

	if m.Age != nil {
		pts := s.agePoints(*m.Age)
		add(pts, fmt.Sprintf("Age %.0f years", *m.Age))
	}
	if m.Diabetes != nil {
		if *m.Diabetes {
			add(sc.DiabetesPoints, "Diabetes mellitus")
		} else {
			add(0, "No diabetes")
		}
	}
	if m.Smoker != nil {
		if *m.Smoker {
			add(sc.SmokingPoints, "Current smoker")
		} else {
			add(0, "Non-smoker")
		}
	}
	if m.LDL != nil {
		add(s.ldlPoints(*m.LDL), fmt.Sprintf("LDL cholesterol %.0f mg/dL", *m.LDL))
	}
	if m.HDL != nil {
		add(s.hdlPoints(*m.HDL, m.Sex), fmt.Sprintf("HDL cholesterol %.0f mg/dL", *m.HDL))
	}
	if m.BMI != nil {
		add(s.bmiPoints(m), fmt.Sprintf("BMI %.1f", *m.BMI))
	}
	if m.EjectionFraction != nil {
		add(s.efPoints(*m.EjectionFraction), fmt.Sprintf("Ejection fraction %.0f%%", *m.EjectionFraction))
	}
	if m.HasBloodPressure() {
		pts, label := s.bpPoints(*m.SystolicBP, *m.DiastolicBP)
		add(pts, fmt.Sprintf("Blood pressure %.0f/%.0f mmHg, %s", *m.SystolicBP, *m.DiastolicBP, label))
	}
	if m.FamilyHistory != nil {
		if *m.FamilyHistory {
			add(sc.FamilyHistoryPoints, "Family history of cardiovascular disease")
		} else {
			add(0, "No family history of cardiovascular disease")
		}
	}
	// Glucose only scores for non-diabetics: the diabetes factor already
	// carries the glycemic burden.
	if m.FastingGlucose != nil && (m.Diabetes == nil || !*m.Diabetes) {
		add(s.glucosePoints(*m.FastingGlucose), fmt.Sprintf("Fasting glucose %.0f mg/dL", *m.FastingGlucose))
	}
	if m.PASP != nil {
		add(s.paspPoints(*m.PASP), fmt.Sprintf("Pulmonary artery systolic pressure %.0f mmHg", *m.PASP))
	}

	maxPoints := sc.MaxAttainablePoints()
	normalized := total / maxPoints * 100

	// Compound early-onset correction: diabetes or smoking before 25
	// carries outsized lifetime risk that the age band alone understates.
	if m.Age != nil && *m.Age < sc.EarlyOnsetAge {
		diabetic := m.Diabetes != nil && *m.Diabetes
		smoking := m.Smoker != nil && *m.Smoker
		if diabetic || smoking {
			normalized += sc.EarlyOnsetBonus
			reasons = append(reasons, fmt.Sprintf("Early-onset risk factor before age %.0f (+%.0f%% adjustment)", sc.EarlyOnsetAge, sc.EarlyOnsetBonus))
		}
	}

	score := clamp(normalized, sc.PercentFloor, sc.PercentCeiling)

	s.logger.WithFields(logrus.Fields{
		"raw_score":    total,
		"score":        score,
		"factor_count": len(reasons),
	}).Debug("Risk scoring completed")

	return domain.ScoreResult{
		Score:    score,
		RawScore: total,
		MaxScore: maxPoints,
		Reasons:  reasons,
	}
}

// agePoints bands age in 10-year steps from the most protective band below
// the floor age up to the maximum.
func (s *ScorerService) agePoints(age float64) float64 {
	sc := &s.cfg.Scoring
	if age < sc.AgeBandFloor {
		return sc.AgeMinPoints
	}
	band := math.Floor((age-sc.AgeBandFloor)/sc.AgeBandStep) + 1
	return clamp(sc.AgeMinPoints+band*sc.AgeBandPoints, sc.AgeMinPoints, sc.AgeMaxPoints)
}

func (s *ScorerService) ldlPoints(ldl float64) float64 {
	sc := &s.cfg.Scoring
	points := sc.LDLPoints[0]
	for i, th := range sc.LDLThresholds {
		if ldl >= th {
			points = sc.LDLPoints[i+1]
		}
	}
	return points
}

// hdlPoints applies the sex-adjusted low threshold; high HDL is protective.
func (s *ScorerService) hdlPoints(hdl float64, sex *domain.Sex) float64 {
	sc := &s.cfg.Scoring

	low := sc.HDLLowUnknown
	if sex != nil {
		switch *sex {
		case domain.MALE:
			low = sc.HDLLowMale
		case domain.FEMALE:
			low = sc.HDLLowFemale
		}
	}

	switch {
	case hdl < low:
		return sc.HDLLowPoints
	case hdl >= sc.HDLHighCutoff:
		return sc.HDLHighPoints
	default:
		return 0
	}
}

// bmiPoints bands BMI, adds the sex-specific abdominal-obesity surcharge,
// and the interaction surcharges with diabetes and smoking, capped at the
// factor maximum.
func (s *ScorerService) bmiPoints(m *domain.Metrics) float64 {
	sc := &s.cfg.Scoring
	bmi := *m.BMI

	points := 0.0
	switch {
	case bmi >= sc.BMISevere:
		points = sc.BMISeverePoints
	case bmi >= sc.BMIObese:
		points = sc.BMIObesePoints
	case bmi >= sc.BMIOverweight:
		points = sc.BMIOverweightPoints
	}

	if m.WaistCM != nil {
		threshold := sc.WaistMale
		if m.Sex != nil && *m.Sex == domain.FEMALE {
			threshold = sc.WaistFemale
		}
		if *m.WaistCM > threshold {
			points += sc.WaistPoints
		}
	}

	if bmi >= sc.BMIObese {
		if m.Diabetes != nil && *m.Diabetes {
			points += sc.BMIInteractionBonus
		}
		if m.Smoker != nil && *m.Smoker {
			points += sc.BMIInteractionBonus
		}
	}

	return math.Min(points, sc.BMIMaxPoints)
}

func (s *ScorerService) efPoints(ef float64) float64 {
	sc := &s.cfg.Scoring
	for i, th := range sc.EFThresholds {
		if ef < th {
			return sc.EFPoints[i]
		}
	}
	return sc.EFPoints[len(sc.EFPoints)-1]
}

// bpPoints walks the bands from worst down; the worst band either reading
// qualifies for wins.
func (s *ScorerService) bpPoints(sys, dia float64) (float64, string) {
	for _, band := range s.cfg.Scoring.BPBands {
		if sys >= band.Systolic || dia >= band.Diastolic {
			return band.Points, band.Label
		}
	}
	return 0, "normal range"
}

func (s *ScorerService) glucosePoints(glucose float64) float64 {
	sc := &s.cfg.Scoring
	switch {
	case glucose >= sc.GlucoseDiabetic:
		return sc.GlucoseDiabeticPoints
	case glucose >= sc.GlucoseImpaired:
		return sc.GlucoseImpairedPoints
	default:
		return 0
	}
}

func (s *ScorerService) paspPoints(pasp float64) float64 {
	sc := &s.cfg.Scoring
	points := sc.PASPPoints[0]
	for i, th := range sc.PASPThresholds {
		if pasp >= th {
			points = sc.PASPPoints[i+1]
		}
	}
	return points
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
