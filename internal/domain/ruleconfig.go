package domain

// Range is an inclusive plausibility interval for a numeric field. Matches
// outside the range are discarded even when the pattern matched syntactically.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v falls inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// ExtractionConfig holds the plausibility ranges and fallback thresholds of
// the metrics extractor.
type ExtractionConfig struct {
	Age              Range
	SystolicBP       Range
	DiastolicBP      Range
	HeartRate        Range
	TotalCholesterol Range
	LDL              Range
	HDL              Range
	Triglycerides    Range
	FastingGlucose   Range
	HbA1c            Range
	HeightCM         Range
	WeightKG         Range
	BMI              Range
	WaistCM          Range
	EjectionFraction Range
	PASP             Range
	TRVelocity       Range

	// Values inside this sub-range win when competing ejection fraction
	// patterns disagree; normal-range readings are least likely to be OCR
	// artifacts.
	EFTypical Range

	// Minimum context score for the percent-token fallback scan to accept
	// an ejection fraction candidate.
	EFFallbackMinScore int

	// Below this recovered-field count the extractor runs the last-resort
	// bare-number inference pass.
	InferenceFieldThreshold int

	// Narrowed ranges used only by the last-resort inference pass, in its
	// fixed scan order: systolic, age, total cholesterol, heart rate.
	InferSystolic    Range
	InferAge         Range
	InferCholesterol Range
	InferHeartRate   Range
}

// ScoringConfig holds the point bands of the additive risk model. Each factor
// has a fixed, documented point range; the magnitude and direction of the
// bands are part of the scoring contract.
type ScoringConfig struct {
	// Age bands in 10-year steps, youngest protective.
	AgeBandFloor   float64 // age below which the most protective band applies
	AgeBandStep    float64 // width of one band in years
	AgeBandPoints  float64 // points added per band above the floor band
	AgeMinPoints   float64
	AgeMaxPoints   float64

	DiabetesPoints      float64
	SmokingPoints       float64
	FamilyHistoryPoints float64

	// LDL thresholds (mg/dL) mapped to ascending points.
	LDLThresholds [4]float64 // 100/130/160/190
	LDLPoints     [5]float64 // <100, >=100, >=130, >=160, >=190

	HDLLowMale      float64
	HDLLowFemale    float64
	HDLLowUnknown   float64
	HDLLowPoints    float64
	HDLHighCutoff   float64
	HDLHighPoints   float64 // negative, protective

	BMIOverweight       float64
	BMIObese            float64
	BMISevere           float64
	BMIOverweightPoints float64
	BMIObesePoints      float64
	BMISeverePoints     float64
	WaistMale           float64
	WaistFemale         float64
	WaistPoints         float64
	BMIInteractionBonus float64 // per co-present diabetes/smoking when obese
	BMIMaxPoints        float64

	EFThresholds [4]float64 // 35/45/50/55
	EFPoints     [5]float64 // <35, <45, <50, <55, >=55

	// Blood pressure bands, worst of systolic/diastolic wins.
	BPBands []BPBand

	GlucoseImpaired       float64
	GlucoseDiabetic       float64
	GlucoseImpairedPoints float64
	GlucoseDiabeticPoints float64

	PASPThresholds [3]float64 // 40/50/60
	PASPPoints     [4]float64 // <40, >=40, >=50, >=60

	// Compound early-onset correction: added percentage points when age is
	// below EarlyOnsetAge and diabetes or smoking is present.
	EarlyOnsetAge    float64
	EarlyOnsetBonus  float64

	PercentFloor   float64
	PercentCeiling float64
}

// BPBand maps a systolic/diastolic threshold pair to points.
type BPBand struct {
	Systolic  float64
	Diastolic float64
	Points    float64
	Label     string
}

// CategoryConfig holds the step-function cut points over the normalized
// risk percent.
type CategoryConfig struct {
	LowCutoff      float64
	ModerateCutoff float64
	HighCutoff     float64
}

// ConfidenceConfig holds the weights and penalties of the confidence model.
type ConfidenceConfig struct {
	CompletenessWeight float64
	KeyMarkerWeight    float64
	ContextWeight      float64

	EFMarkerWeight    float64
	BPMarkerWeight    float64
	LipidMarkerWeight float64

	PenaltyNoEFNoBP     float64
	PenaltyNoEF         float64
	PenaltyNoBP         float64
	PenaltyNoDemographics float64

	Cap           float64
	FloorWithData float64
	FloorEmpty    float64
}

// TriageConfig holds the thresholds referenced by the triage rule list.
type TriageConfig struct {
	CriticalEF        float64
	ModerateEFLow     float64
	ModerateEFHigh    float64
	MildEFHigh        float64
	CrisisSystolic    float64
	CrisisDiastolic   float64
	Stage2Systolic    float64
	Stage2Diastolic   float64
	Stage1Systolic    float64
	Stage1Diastolic   float64
	SeverePASP        float64
	ModeratePASP      float64
	VeryHighRisk      float64
	HighRisk          float64
	ModerateRisk      float64
	LowRisk           float64
	VeryHighLDL       float64
	DiabeticGlucose   float64
}

// RuleConfig is the immutable configuration object behind every pipeline
// stage. It is constructed once at startup and passed explicitly into each
// pure stage function, never held as ambient state, so alternate rule sets
// (per guideline version) can be swapped by injection.
type RuleConfig struct {
	Extraction ExtractionConfig
	Scoring    ScoringConfig
	Category   CategoryConfig
	Confidence ConfidenceConfig
	Triage     TriageConfig
}

// DefaultRuleConfig returns the canonical rule set.
func DefaultRuleConfig() *RuleConfig {
	return &RuleConfig{
		Extraction: ExtractionConfig{
			Age:              Range{1, 120},
			SystolicBP:       Range{70, 250},
			DiastolicBP:      Range{40, 150},
			HeartRate:        Range{30, 220},
			TotalCholesterol: Range{80, 500},
			LDL:              Range{30, 400},
			HDL:              Range{10, 120},
			Triglycerides:    Range{30, 1000},
			FastingGlucose:   Range{40, 600},
			HbA1c:            Range{3, 20},
			HeightCM:         Range{100, 230},
			WeightKG:         Range{25, 300},
			BMI:              Range{10, 70},
			WaistCM:          Range{40, 200},
			EjectionFraction: Range{10, 85},
			PASP:             Range{10, 120},
			TRVelocity:       Range{0.5, 6},

			EFTypical:          Range{45, 75},
			EFFallbackMinScore: 2,

			InferenceFieldThreshold: 3,
			InferSystolic:           Range{90, 250},
			InferAge:                Range{18, 100},
			InferCholesterol:        Range{130, 320},
			InferHeartRate:          Range{40, 120},
		},
		Scoring: ScoringConfig{
			AgeBandFloor:  25,
			AgeBandStep:   10,
			AgeBandPoints: 2,
			AgeMinPoints:  -6,
			AgeMaxPoints:  6,

			DiabetesPoints:      12,
			SmokingPoints:       10,
			FamilyHistoryPoints: 3,

			LDLThresholds: [4]float64{100, 130, 160, 190},
			LDLPoints:     [5]float64{0, 2, 4, 6, 8},

			HDLLowMale:    40,
			HDLLowFemale:  50,
			HDLLowUnknown: 45,
			HDLLowPoints:  4,
			HDLHighCutoff: 60,
			HDLHighPoints: -2,

			BMIOverweight:       25,
			BMIObese:            30,
			BMISevere:           35,
			BMIOverweightPoints: 2,
			BMIObesePoints:      4,
			BMISeverePoints:     6,
			WaistMale:           102,
			WaistFemale:         88,
			WaistPoints:         2,
			BMIInteractionBonus: 1,
			BMIMaxPoints:        8,

			EFThresholds: [4]float64{35, 45, 50, 55},
			EFPoints:     [5]float64{8, 6, 4, 2, 0},

			BPBands: []BPBand{
				{Systolic: 180, Diastolic: 110, Points: 6, Label: "hypertensive crisis range"},
				{Systolic: 160, Diastolic: 100, Points: 5, Label: "stage 2 hypertension"},
				{Systolic: 140, Diastolic: 90, Points: 4, Label: "stage 1 hypertension"},
				{Systolic: 130, Diastolic: 85, Points: 2, Label: "elevated"},
				{Systolic: 120, Diastolic: 80, Points: 1, Label: "high-normal"},
			},

			GlucoseImpaired:       100,
			GlucoseDiabetic:       126,
			GlucoseImpairedPoints: 2,
			GlucoseDiabeticPoints: 4,

			PASPThresholds: [3]float64{40, 50, 60},
			PASPPoints:     [4]float64{0, 2, 3, 4},

			EarlyOnsetAge:   25,
			EarlyOnsetBonus: 10,

			PercentFloor:   5,
			PercentCeiling: 100,
		},
		Category: CategoryConfig{
			LowCutoff:      20,
			ModerateCutoff: 50,
			HighCutoff:     80,
		},
		Confidence: ConfidenceConfig{
			CompletenessWeight: 0.40,
			KeyMarkerWeight:    0.40,
			ContextWeight:      0.20,

			EFMarkerWeight:    0.40,
			BPMarkerWeight:    0.30,
			LipidMarkerWeight: 0.30,

			PenaltyNoEFNoBP:       0.85,
			PenaltyNoEF:           0.95,
			PenaltyNoBP:           0.98,
			PenaltyNoDemographics: 0.90,

			Cap:           0.90,
			FloorWithData: 0.15,
			FloorEmpty:    0.05,
		},
		Triage: TriageConfig{
			CriticalEF:      35,
			ModerateEFLow:   35,
			ModerateEFHigh:  45,
			MildEFHigh:      50,
			CrisisSystolic:  180,
			CrisisDiastolic: 110,
			Stage2Systolic:  160,
			Stage2Diastolic: 100,
			Stage1Systolic:  140,
			Stage1Diastolic: 90,
			SeverePASP:      60,
			ModeratePASP:    50,
			VeryHighRisk:    85,
			HighRisk:        65,
			ModerateRisk:    40,
			LowRisk:         20,
			VeryHighLDL:     190,
			DiabeticGlucose: 126,
		},
	}
}

// MaxAttainablePoints sums the maxima of every factor, the denominator of
// score normalization.
func (s *ScoringConfig) MaxAttainablePoints() float64 {
	max := s.AgeMaxPoints +
		s.DiabetesPoints +
		s.SmokingPoints +
		s.FamilyHistoryPoints +
		s.LDLPoints[len(s.LDLPoints)-1] +
		s.HDLLowPoints +
		s.BMIMaxPoints +
		s.EFPoints[0] +
		s.GlucoseDiabeticPoints +
		s.PASPPoints[len(s.PASPPoints)-1]
	if len(s.BPBands) > 0 {
		max += s.BPBands[0].Points
	}
	return max
}
