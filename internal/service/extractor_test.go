package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-risk-server/internal/domain"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestExtractor() *ExtractorService {
	return NewExtractorService(newTestLogger(), domain.DefaultRuleConfig())
}

func TestExtractorService_Extract_WellLabeledReport(t *testing.T) {
	extractor := newTestExtractor()

	text := `ECHOCARDIOGRAPHY REPORT
Patient: 58 year old male. Known hypertension, diabetic, current smoker.
Blood Pressure: 152/94 mmHg, Heart Rate: 78 bpm
Height: 175 cm, Weight: 92 kg, Waist circumference: 108 cm
Ejection Fraction: 48%
PASP: 42 mmHg, TR velocity: 2.9 m/s
LDL: 162 mg/dL, HDL: 38 mg/dL, Total Cholesterol: 238 mg/dL
Fasting glucose: 134 mg/dL, HbA1c: 7.2%
Mild mitral regurgitation. Family history of premature coronary disease.`

	m := extractor.Extract(text)

	require.NotNil(t, m.Age)
	assert.Equal(t, 58.0, *m.Age)
	require.NotNil(t, m.Sex)
	assert.Equal(t, domain.MALE, *m.Sex)
	require.NotNil(t, m.SystolicBP)
	assert.Equal(t, 152.0, *m.SystolicBP)
	require.NotNil(t, m.DiastolicBP)
	assert.Equal(t, 94.0, *m.DiastolicBP)
	require.NotNil(t, m.HeartRate)
	assert.Equal(t, 78.0, *m.HeartRate)
	require.NotNil(t, m.EjectionFraction)
	assert.Equal(t, 48.0, *m.EjectionFraction)
	require.NotNil(t, m.PASP)
	assert.Equal(t, 42.0, *m.PASP)
	require.NotNil(t, m.TRVelocity)
	assert.Equal(t, 2.9, *m.TRVelocity)
	require.NotNil(t, m.LDL)
	assert.Equal(t, 162.0, *m.LDL)
	require.NotNil(t, m.HDL)
	assert.Equal(t, 38.0, *m.HDL)
	require.NotNil(t, m.FastingGlucose)
	assert.Equal(t, 134.0, *m.FastingGlucose)
	require.NotNil(t, m.HbA1c)
	assert.Equal(t, 7.2, *m.HbA1c)
	require.NotNil(t, m.WaistCM)
	assert.Equal(t, 108.0, *m.WaistCM)

	require.NotNil(t, m.Smoker)
	assert.True(t, *m.Smoker)
	require.NotNil(t, m.Diabetes)
	assert.True(t, *m.Diabetes)
	require.NotNil(t, m.FamilyHistory)
	assert.True(t, *m.FamilyHistory)
	require.NotNil(t, m.Hypertension)
	assert.True(t, *m.Hypertension)
	require.NotNil(t, m.ValveAbnormality)
	assert.True(t, *m.ValveAbnormality)

	// BMI derived from height and weight: 92 / 1.75^2
	require.NotNil(t, m.BMI)
	assert.InDelta(t, 30.0, *m.BMI, 0.1)
}

func TestExtractorService_Extract_OCRRepairs(t *testing.T) {
	extractor := newTestExtractor()

	t.Run("leading Z in age token", func(t *testing.T) {
		m := extractor.Extract("Patient is Z8 years old")
		require.NotNil(t, m.Age)
		assert.Equal(t, 28.0, *m.Age)
	})

	t.Run("three digit ejection fraction collapses", func(t *testing.T) {
		m := extractor.Extract("Ejection fraction: 512%")
		require.NotNil(t, m.EjectionFraction)
		assert.Equal(t, 51.0, *m.EjectionFraction)
	})
}

func TestExtractorService_Extract_PlausibilityGating(t *testing.T) {
	extractor := newTestExtractor()

	tests := []struct {
		name string
		text string
		get  func(m *domain.Metrics) *float64
	}{
		{"implausible age", "age: 450", func(m *domain.Metrics) *float64 { return m.Age }},
		{"implausible heart rate", "heart rate: 999 bpm", func(m *domain.Metrics) *float64 { return m.HeartRate }},
		{"implausible PASP", "PASP: 500 mmHg", func(m *domain.Metrics) *float64 { return m.PASP }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := extractor.Extract(tt.text)
			assert.Nil(t, tt.get(m), "out-of-range match must be discarded")
		})
	}
}

func TestExtractorService_Extract_EFCompetingPatterns(t *testing.T) {
	extractor := newTestExtractor()

	// Two plausible candidates; the one inside the typical 45-75 sub-range
	// wins over the outlier.
	m := extractor.Extract("FF: 22% noted. LVEF is 58%.")
	require.NotNil(t, m.EjectionFraction)
	assert.Equal(t, 58.0, *m.EjectionFraction)
}

func TestExtractorService_Extract_EFFallbackScan(t *testing.T) {
	extractor := newTestExtractor()

	t.Run("accepts percent token near echo context", func(t *testing.T) {
		m := extractor.Extract("2D echo study, normal chamber dimensions, ejection estimated 55 % by Simpson")
		require.NotNil(t, m.EjectionFraction)
		assert.Equal(t, 55.0, *m.EjectionFraction)
	})

	t.Run("rejects fractional shortening token", func(t *testing.T) {
		m := extractor.Extract("FS 34% measured on m-mode")
		assert.Nil(t, m.EjectionFraction)
	})

	t.Run("rejects percent token without context", func(t *testing.T) {
		m := extractor.Extract("report completeness 60% at upload time")
		assert.Nil(t, m.EjectionFraction)
	})
}

func TestExtractorService_Extract_NegationOverride(t *testing.T) {
	extractor := newTestExtractor()

	tests := []struct {
		name string
		text string
		get  func(m *domain.Metrics) *bool
		want bool
	}{
		{"non-smoker suppresses smoker", "patient is a non-smoker", func(m *domain.Metrics) *bool { return m.Smoker }, false},
		{"never smoked", "never smoked, no alcohol", func(m *domain.Metrics) *bool { return m.Smoker }, false},
		{"smoker positive", "active smoker for 20 years", func(m *domain.Metrics) *bool { return m.Smoker }, true},
		{"non-diabetic", "non-diabetic patient", func(m *domain.Metrics) *bool { return m.Diabetes }, false},
		{"diabetes positive", "type 2 dm on metformin", func(m *domain.Metrics) *bool { return m.Diabetes }, true},
		{"no family history", "no family history of cardiac disease", func(m *domain.Metrics) *bool { return m.FamilyHistory }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := extractor.Extract(tt.text)
			flag := tt.get(m)
			require.NotNil(t, flag)
			assert.Equal(t, tt.want, *flag)
		})
	}
}

func TestExtractorService_Extract_LastResortInference(t *testing.T) {
	extractor := newTestExtractor()

	// A barren document with bare numbers: first range match per field in
	// the fixed scan order systolic, age, cholesterol, heart rate.
	m := extractor.Extract("145 62 240 88")

	require.NotNil(t, m.SystolicBP)
	assert.Equal(t, 145.0, *m.SystolicBP)
	require.NotNil(t, m.Age)
	assert.Equal(t, 62.0, *m.Age)
	require.NotNil(t, m.TotalCholesterol)
	assert.Equal(t, 240.0, *m.TotalCholesterol)
	require.NotNil(t, m.HeartRate)
	assert.Equal(t, 88.0, *m.HeartRate)
}

func TestExtractorService_Extract_NoInferenceWhenEnoughFields(t *testing.T) {
	extractor := newTestExtractor()

	// Three labeled fields recovered; the stray bare number must not be
	// force-assigned.
	m := extractor.Extract("age: 44, blood pressure 128/82, reference 199")
	assert.Nil(t, m.TotalCholesterol)
}

func TestExtractorService_Extract_EmptyAndGarbageInput(t *testing.T) {
	extractor := newTestExtractor()

	for _, text := range []string{"", "   ", "lorem ipsum dolor sit amet"} {
		m := extractor.Extract(text)
		require.NotNil(t, m)
		assert.True(t, m.IsEmpty())
	}
}

func TestExtractorService_Extract_BloodPressureRejectsInvertedReading(t *testing.T) {
	extractor := newTestExtractor()

	m := extractor.Extract("bp: 80/120 then corrected to 120/80 mm hg")
	require.NotNil(t, m.SystolicBP)
	assert.Equal(t, 120.0, *m.SystolicBP)
	require.NotNil(t, m.DiastolicBP)
	assert.Equal(t, 80.0, *m.DiastolicBP)
}
