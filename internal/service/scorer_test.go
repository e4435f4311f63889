package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cardio-risk-server/internal/domain"
)

func newTestScorer() *ScorerService {
	return NewScorerService(newTestLogger(), domain.DefaultRuleConfig())
}

func TestScorerService_Score_HealthyYoungAdult(t *testing.T) {
	scorer := newTestScorer()

	m := &domain.Metrics{
		Age:            domain.Float(35),
		Sex:            domain.SexOf(domain.FEMALE),
		SystolicBP:     domain.Float(110),
		DiastolicBP:    domain.Float(70),
		LDL:            domain.Float(90),
		HDL:            domain.Float(65),
		Smoker:         domain.Bool(false),
		Diabetes:       domain.Bool(false),
	}

	result := scorer.Score(m)

	// Age band -2, protective HDL -2, everything else zero.
	assert.Equal(t, -4.0, result.RawScore)
	assert.Equal(t, 5.0, result.Score, "negative raw scores clamp to the floor")
	assert.NotEmpty(t, result.Reasons)
}

func TestScorerService_Score_HighRiskElderlyPatient(t *testing.T) {
	scorer := newTestScorer()

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

	result := scorer.Score(m)

	// 4 (age) + 12 (diabetes) + 10 (smoking) + 8 (LDL) + 6 (BMI with
	// interactions) + 8 (EF) + 6 (BP) + 3 (family history) + 4 (PASP) = 61.
	assert.Equal(t, 61.0, result.RawScore)
	assert.Equal(t, 73.0, result.MaxScore)
	assert.InDelta(t, 83.56, result.Score, 0.01)
}

func TestScorerService_Score_EmptyMetrics(t *testing.T) {
	scorer := newTestScorer()

	result := scorer.Score(&domain.Metrics{})

	assert.Equal(t, 0.0, result.RawScore)
	assert.Equal(t, 5.0, result.Score)
	assert.Empty(t, result.Reasons)
}

func TestScorerService_Score_PresentButBenignFactorsStillExplain(t *testing.T) {
	scorer := newTestScorer()

	result := scorer.Score(&domain.Metrics{Diabetes: domain.Bool(false)})

	assert.Len(t, result.Reasons, 1)
	assert.Contains(t, result.Reasons[0], "No diabetes")
}

func TestScorerService_Score_EarlyOnsetAdjustment(t *testing.T) {
	scorer := newTestScorer()

	m := &domain.Metrics{
		Age:    domain.Float(22),
		Smoker: domain.Bool(true),
	}

	result := scorer.Score(m)

	// Raw -6 + 10 = 4; normalized 4/73*100 = 5.48, plus the 10-point
	// early-onset adjustment.
	assert.InDelta(t, 15.48, result.Score, 0.01)
	assert.Contains(t, result.Reasons[len(result.Reasons)-1], "Early-onset")
}

func TestScorerService_Score_GlucoseSkippedForDiabetics(t *testing.T) {
	scorer := newTestScorer()

	diabetic := scorer.Score(&domain.Metrics{
		Diabetes:       domain.Bool(true),
		FastingGlucose: domain.Float(140),
	})
	nonDiabetic := scorer.Score(&domain.Metrics{
		FastingGlucose: domain.Float(140),
	})

	assert.Equal(t, 12.0, diabetic.RawScore, "glycemic burden carried by the diabetes factor alone")
	assert.Equal(t, 4.0, nonDiabetic.RawScore)
	for _, reason := range diabetic.Reasons {
		assert.NotContains(t, reason, "glucose")
	}
}

func TestScorerService_AgeBands(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		age  float64
		want float64
	}{
		{18, -6},
		{24, -6},
		{25, -4},
		{34, -4},
		{35, -2},
		{45, 0},
		{55, 2},
		{65, 4},
		{75, 6},
		{95, 6}, // capped
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, scorer.agePoints(tt.age), "age %.0f", tt.age)
	}
}

func TestScorerService_LDLBands(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		ldl  float64
		want float64
	}{
		{99, 0},
		{100, 2},
		{129, 2},
		{130, 4},
		{160, 6},
		{190, 8},
		{250, 8},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, scorer.ldlPoints(tt.ldl), "ldl %.0f", tt.ldl)
	}
}

func TestScorerService_HDLSexAdjustedThresholds(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		name string
		hdl  float64
		sex  *domain.Sex
		want float64
	}{
		{"45 is adequate for a male", 45, domain.SexOf(domain.MALE), 0},
		{"45 is low for a female", 45, domain.SexOf(domain.FEMALE), 4},
		{"45 is adequate when sex is unknown", 45, nil, 0},
		{"38 is low for anyone", 38, nil, 4},
		{"60 is protective", 60, domain.SexOf(domain.MALE), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scorer.hdlPoints(tt.hdl, tt.sex))
		})
	}
}

func TestScorerService_BMIInteractionsAreCapped(t *testing.T) {
	scorer := newTestScorer()

	m := &domain.Metrics{
		BMI:      domain.Float(36),
		WaistCM:  domain.Float(110),
		Sex:      domain.SexOf(domain.MALE),
		Diabetes: domain.Bool(true),
		Smoker:   domain.Bool(true),
	}

	// 6 (severe) + 2 (waist) + 1 + 1 (interactions) = 10, capped at 8.
	assert.Equal(t, 8.0, scorer.bmiPoints(m))
}

func TestScorerService_EFBands(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		ef   float64
		want float64
	}{
		{25, 8},
		{34, 8},
		{35, 6},
		{44, 6},
		{45, 4},
		{49, 4},
		{50, 2},
		{54, 2},
		{55, 0},
		{65, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, scorer.efPoints(tt.ef), "ef %.0f", tt.ef)
	}
}

func TestScorerService_BPWorstBandWins(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		name      string
		sys, dia  float64
		want      float64
		wantLabel string
	}{
		{"crisis by systolic alone", 185, 70, 6, "hypertensive crisis range"},
		{"stage 1 by diastolic alone", 120, 95, 4, "stage 1 hypertension"},
		{"stage 2", 165, 88, 5, "stage 2 hypertension"},
		{"elevated", 132, 82, 2, "elevated"},
		{"high-normal", 122, 78, 1, "high-normal"},
		{"normal", 118, 76, 0, "normal range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts, label := scorer.bpPoints(tt.sys, tt.dia)
			assert.Equal(t, tt.want, pts)
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestScorerService_PASPBands(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		pasp float64
		want float64
	}{
		{35, 0},
		{40, 2},
		{50, 3},
		{60, 4},
		{80, 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, scorer.paspPoints(tt.pasp), "pasp %.0f", tt.pasp)
	}
}
