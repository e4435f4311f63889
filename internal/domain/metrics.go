package domain

// Sex is a patient's biological sex as recovered from the report
type Sex string

const (
	MALE   Sex = "MALE"
	FEMALE Sex = "FEMALE"
)

// Metrics is the structured record of clinical parameters recovered from a
// single document. Every field is optional: a nil pointer means the value was
// not found in the text, which is meaningful to every downstream stage and is
// never defaulted to zero. The record is constructed once by the extractor
// and must not be mutated afterwards.
type Metrics struct {
	// Demographics
	Age *float64 `json:"age,omitempty"`
	Sex *Sex     `json:"sex,omitempty"`

	// Vitals
	SystolicBP  *float64 `json:"systolic_bp,omitempty"`
	DiastolicBP *float64 `json:"diastolic_bp,omitempty"`
	HeartRate   *float64 `json:"heart_rate,omitempty"`

	// Lipid panel (mg/dL)
	TotalCholesterol *float64 `json:"total_cholesterol,omitempty"`
	LDL              *float64 `json:"ldl,omitempty"`
	HDL              *float64 `json:"hdl,omitempty"`
	Triglycerides    *float64 `json:"triglycerides,omitempty"`

	// Metabolic markers
	FastingGlucose *float64 `json:"fasting_glucose,omitempty"`
	HbA1c          *float64 `json:"hba1c,omitempty"`

	// Anthropometrics
	HeightCM *float64 `json:"height_cm,omitempty"`
	WeightKG *float64 `json:"weight_kg,omitempty"`
	BMI      *float64 `json:"bmi,omitempty"`
	WaistCM  *float64 `json:"waist_cm,omitempty"`

	// Boolean risk factors
	Smoker        *bool `json:"smoker,omitempty"`
	Diabetes      *bool `json:"diabetes,omitempty"`
	FamilyHistory *bool `json:"family_history,omitempty"`
	Hypertension  *bool `json:"hypertension,omitempty"`

	// Echocardiographic findings
	EjectionFraction *float64 `json:"ejection_fraction,omitempty"`
	PASP             *float64 `json:"pasp,omitempty"`
	TRVelocity       *float64 `json:"tr_velocity,omitempty"`

	// Qualitative abnormality tags from the echo narrative
	LVHypertrophy         *bool `json:"lv_hypertrophy,omitempty"`
	WallMotionAbnormality *bool `json:"wall_motion_abnormality,omitempty"`
	ValveAbnormality      *bool `json:"valve_abnormality,omitempty"`
	PericardialEffusion   *bool `json:"pericardial_effusion,omitempty"`
}

// FieldCount returns the number of populated fields.
func (m *Metrics) FieldCount() int {
	if m == nil {
		return 0
	}
	count := 0
	for _, p := range []interface{}{
		ptrOrNil(m.Age), sexOrNil(m.Sex),
		ptrOrNil(m.SystolicBP), ptrOrNil(m.DiastolicBP), ptrOrNil(m.HeartRate),
		ptrOrNil(m.TotalCholesterol), ptrOrNil(m.LDL), ptrOrNil(m.HDL), ptrOrNil(m.Triglycerides),
		ptrOrNil(m.FastingGlucose), ptrOrNil(m.HbA1c),
		ptrOrNil(m.HeightCM), ptrOrNil(m.WeightKG), ptrOrNil(m.BMI), ptrOrNil(m.WaistCM),
		boolOrNil(m.Smoker), boolOrNil(m.Diabetes), boolOrNil(m.FamilyHistory), boolOrNil(m.Hypertension),
		ptrOrNil(m.EjectionFraction), ptrOrNil(m.PASP), ptrOrNil(m.TRVelocity),
		boolOrNil(m.LVHypertrophy), boolOrNil(m.WallMotionAbnormality),
		boolOrNil(m.ValveAbnormality), boolOrNil(m.PericardialEffusion),
	} {
		if p != nil {
			count++
		}
	}
	return count
}

// IsEmpty reports whether no field at all was recovered.
func (m *Metrics) IsEmpty() bool {
	return m.FieldCount() == 0
}

// HasBloodPressure reports whether both systolic and diastolic values are present.
func (m *Metrics) HasBloodPressure() bool {
	return m != nil && m.SystolicBP != nil && m.DiastolicBP != nil
}

// HasLipids reports whether any lipid panel value is present.
func (m *Metrics) HasLipids() bool {
	return m != nil && (m.LDL != nil || m.HDL != nil || m.TotalCholesterol != nil)
}

func ptrOrNil(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return p
}

func boolOrNil(p *bool) interface{} {
	if p == nil {
		return nil
	}
	return p
}

func sexOrNil(p *Sex) interface{} {
	if p == nil {
		return nil
	}
	return p
}

// Pointer helpers used throughout construction and tests.

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// SexOf returns a pointer to s.
func SexOf(s Sex) *Sex { return &s }
