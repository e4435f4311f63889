package service

import (
	"fmt"

	"github.com/cardio-risk-server/internal/domain"
)

// ValidateMetrics is the optional, non-blocking pre-flight check. It flags
// out-of-range or contradictory values as hard errors and
// unusual-but-possible values as warnings, but never prevents analysis from
// proceeding on the same data.
func ValidateMetrics(m *domain.Metrics, cfg *domain.RuleConfig) domain.ValidationReport {
	report := domain.ValidationReport{IsValid: true}
	if m == nil {
		report.IsValid = false
		report.Errors = append(report.Errors, domain.ValidationIssue{
			Field:   "metrics",
			Message: "metrics record is required",
		})
		return report
	}

	ext := &cfg.Extraction

	checkRange := func(field string, value *float64, r domain.Range) {
		if value == nil {
			return
		}
		if !r.Contains(*value) {
			report.IsValid = false
			report.Errors = append(report.Errors, domain.ValidationIssue{
				Field:   field,
				Message: fmt.Sprintf("%s value %.1f is outside the plausible range %.0f-%.0f", field, *value, r.Min, r.Max),
				Value:   fmt.Sprintf("%.1f", *value),
			})
		}
	}

	warn := func(field, message string, value float64) {
		report.Warnings = append(report.Warnings, domain.ValidationIssue{
			Field:   field,
			Message: message,
			Value:   fmt.Sprintf("%.1f", value),
		})
	}

	checkRange("age", m.Age, ext.Age)
	checkRange("systolic_bp", m.SystolicBP, ext.SystolicBP)
	checkRange("diastolic_bp", m.DiastolicBP, ext.DiastolicBP)
	checkRange("heart_rate", m.HeartRate, ext.HeartRate)
	checkRange("total_cholesterol", m.TotalCholesterol, ext.TotalCholesterol)
	checkRange("ldl", m.LDL, ext.LDL)
	checkRange("hdl", m.HDL, ext.HDL)
	checkRange("triglycerides", m.Triglycerides, ext.Triglycerides)
	checkRange("fasting_glucose", m.FastingGlucose, ext.FastingGlucose)
	checkRange("hba1c", m.HbA1c, ext.HbA1c)
	checkRange("height_cm", m.HeightCM, ext.HeightCM)
	checkRange("weight_kg", m.WeightKG, ext.WeightKG)
	checkRange("bmi", m.BMI, ext.BMI)
	checkRange("waist_cm", m.WaistCM, ext.WaistCM)
	checkRange("ejection_fraction", m.EjectionFraction, ext.EjectionFraction)
	checkRange("pasp", m.PASP, ext.PASP)
	checkRange("tr_velocity", m.TRVelocity, ext.TRVelocity)

	// Contradiction: a systolic at or below the diastolic is physically
	// impossible, not merely unusual.
	if m.HasBloodPressure() && *m.SystolicBP <= *m.DiastolicBP {
		report.IsValid = false
		report.Errors = append(report.Errors, domain.ValidationIssue{
			Field:   "systolic_bp",
			Message: fmt.Sprintf("systolic %.0f must exceed diastolic %.0f", *m.SystolicBP, *m.DiastolicBP),
			Value:   fmt.Sprintf("%.0f/%.0f", *m.SystolicBP, *m.DiastolicBP),
		})
	}

	// Unusual-but-possible values.
	if m.Age != nil && ext.Age.Contains(*m.Age) && *m.Age > 100 {
		warn("age", "age above 100 is unusual; verify against the source document", *m.Age)
	}
	if m.SystolicBP != nil && ext.SystolicBP.Contains(*m.SystolicBP) && *m.SystolicBP > 200 {
		warn("systolic_bp", "systolic pressure above 200 is unusual; verify the reading", *m.SystolicBP)
	}
	if m.EjectionFraction != nil && ext.EjectionFraction.Contains(*m.EjectionFraction) && *m.EjectionFraction < 20 {
		warn("ejection_fraction", "ejection fraction below 20% is unusual; verify against the echo report", *m.EjectionFraction)
	}
	if m.FastingGlucose != nil && ext.FastingGlucose.Contains(*m.FastingGlucose) && *m.FastingGlucose > 400 {
		warn("fasting_glucose", "glucose above 400 is unusual; verify the reading", *m.FastingGlucose)
	}
	if m.BMI != nil && ext.BMI.Contains(*m.BMI) && *m.BMI > 50 {
		warn("bmi", "BMI above 50 is unusual; verify height and weight", *m.BMI)
	}

	return report
}
