package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cardio-risk-server/internal/domain"
)

// ExtractorService recovers a structured metrics record from free-form
// report text. Extraction never fails: a field whose value cannot be
// recovered is simply left unset, and it is the caller's responsibility to
// treat a sparse record as low-confidence evidence.
type ExtractorService struct {
	logger *logrus.Logger
	cfg    *domain.RuleConfig
	pats   *compiledPatterns
}

// compiledPatterns holds every regular expression compiled once at
// construction. Candidates per field are ordered from most to least specific
// so a well-labeled value wins over a loosely-contextual one.
type compiledPatterns struct {
	age       []*regexp.Regexp
	sex       []*regexp.Regexp
	bp        []*regexp.Regexp
	heartRate []*regexp.Regexp

	totalCholesterol []*regexp.Regexp
	ldl              []*regexp.Regexp
	hdl              []*regexp.Regexp
	triglycerides    []*regexp.Regexp

	glucose []*regexp.Regexp
	hba1c   []*regexp.Regexp

	height []*regexp.Regexp
	weight []*regexp.Regexp
	bmi    []*regexp.Regexp
	waist  []*regexp.Regexp

	ef         []*regexp.Regexp
	pasp       []*regexp.Regexp
	trVelocity []*regexp.Regexp

	percentToken *regexp.Regexp
	bareNumber   *regexp.Regexp
	fsToken      *regexp.Regexp
}

// NewExtractorService creates a new metrics extractor.
func NewExtractorService(logger *logrus.Logger, cfg *domain.RuleConfig) *ExtractorService {
	return &ExtractorService{
		logger: logger,
		cfg:    cfg,
		pats:   compilePatterns(),
	}
}

func compilePatterns() *compiledPatterns {
	c := func(exprs ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(exprs))
		for _, e := range exprs {
			out = append(out, regexp.MustCompile(e))
		}
		return out
	}

	return &compiledPatterns{
		age: c(
			`age[:\s]+([z\d]{1,3})\b`,
			`\b([z\d]{1,3})\s*(?:years?\s*old|y/?o\b|yrs?\s*old)`,
			`\b([z\d]{1,3})\s*(?:year|yr)s?\s*(?:of\s*age|old)`,
		),
		sex: c(
			`(?:sex|gender)[:\s]+(male|female|m\b|f\b)`,
			`\b(\d{1,3})?\s*(?:year|yr)s?\s*old\s+(male|female|man|woman)\b`,
			`\b(male|female)\s+patient\b`,
		),
		bp: c(
			`(?:blood\s*pressure|bp|b\.p\.)[:\s]*(\d{2,3})\s*/\s*(\d{2,3})`,
			`\b(\d{2,3})\s*/\s*(\d{2,3})\s*mm\s*hg`,
			`\b(\d{2,3})\s*/\s*(\d{2,3})\b`,
		),
		heartRate: c(
			`(?:heart\s*rate|pulse\s*rate|pulse|hr)[:\s]*(\d{2,3})\s*(?:bpm|/min|beats)?`,
			`\b(\d{2,3})\s*bpm\b`,
		),
		totalCholesterol: c(
			`(?:total\s*cholesterol|cholesterol,?\s*total|tc)[:\s]*(\d{2,3})`,
			`\bcholesterol[:\s]*(\d{2,3})`,
		),
		ldl: c(
			`(?:ldl[\s-]*(?:c|cholesterol)?)[:\s]*(\d{2,3})`,
			`low[\s-]*density\s*lipoprotein[:\s]*(\d{2,3})`,
		),
		hdl: c(
			`(?:hdl[\s-]*(?:c|cholesterol)?)[:\s]*(\d{2,3})`,
			`high[\s-]*density\s*lipoprotein[:\s]*(\d{2,3})`,
		),
		triglycerides: c(
			`(?:triglycerides?|tg)[:\s]*(\d{2,4})`,
		),
		glucose: c(
			`(?:fasting\s*(?:blood\s*)?glucose|fasting\s*sugar|fbs|fbg|fpg)[:\s]*(\d{2,3})`,
			`(?:blood\s*)?glucose[:\s]*(\d{2,3})`,
			`(?:blood\s*sugar)[:\s]*(\d{2,3})`,
		),
		hba1c: c(
			`(?:hba1c|hb\s*a1c|a1c|glycated\s*hemoglobin)[:\s]*(\d{1,2}(?:\.\d{1,2})?)\s*%?`,
		),
		height: c(
			`height[:\s]*(\d{2,3}(?:\.\d)?)\s*cm`,
			`height[:\s]*(\d\.\d{1,2})\s*m\b`,
		),
		weight: c(
			`weight[:\s]*(\d{2,3}(?:\.\d)?)\s*kg`,
			`\b(\d{2,3}(?:\.\d)?)\s*kg\b`,
		),
		bmi: c(
			`(?:bmi|body\s*mass\s*index)[:\s]*(\d{1,2}(?:\.\d{1,2})?)`,
		),
		waist: c(
			`(?:waist(?:\s*circumference)?)[:\s]*(\d{2,3}(?:\.\d)?)\s*cm`,
			`(?:waist(?:\s*circumference)?)[:\s]*(\d{2,3}(?:\.\d)?)`,
		),
		// Ejection fraction synonyms and OCR variants. "ff" is a frequent
		// misread of "EF"; "aac" qualified values appear in some echo
		// templates.
		ef: c(
			`(?:lvef|left\s*ventricular\s*ejection\s*fraction)[\s:]*(?:is|of|=)?\s*(\d{2,3})\s*%?`,
			`ejection\s*fraction[\s:]*(?:is|of|=)?\s*(\d{2,3})\s*%?`,
			`\bef[\s:]*(?:is|of|=)?\s*(\d{2,3})\s*%`,
			`\bef[\s:]+(\d{2,3})\b`,
			`\bff[\s:]*(?:is|of|=)?\s*(\d{2,3})\s*%`,
			`\baac[\s:]*(\d{2,3})\s*%`,
		),
		pasp: c(
			`(?:pasp|pa\s*systolic\s*pressure|pulmonary\s*artery\s*systolic\s*pressure|rvsp)[\s:]*(?:is|of|=)?\s*(\d{2,3})`,
			`pulmonary\s*pressure[\s:]*(\d{2,3})`,
		),
		trVelocity: c(
			`(?:tr\s*velocity|tricuspid\s*regurgitation\s*velocity|tr\s*vmax)[\s:]*(?:is|of|=)?\s*(\d(?:\.\d{1,2})?)`,
		),
		percentToken: regexp.MustCompile(`(\d{1,3})\s*%`),
		bareNumber:   regexp.MustCompile(`\b(\d{2,3}(?:\.\d)?)\b`),
		fsToken:      regexp.MustCompile(`\bfs\b`),
	}
}

// Extract turns raw document text into a metrics record. A nil result is
// never returned; an unreadable document yields an empty record.
func (e *ExtractorService) Extract(rawText string) *domain.Metrics {
	m := &domain.Metrics{}
	if strings.TrimSpace(rawText) == "" {
		return m
	}

	text := strings.ToLower(rawText)
	ext := &e.cfg.Extraction

	e.extractAge(text, m)
	e.extractSex(text, m)
	e.extractBloodPressure(text, m)
	m.HeartRate = e.firstPlausible(e.pats.heartRate, text, ext.HeartRate)
	m.TotalCholesterol = e.firstPlausible(e.pats.totalCholesterol, text, ext.TotalCholesterol)
	m.LDL = e.firstPlausible(e.pats.ldl, text, ext.LDL)
	m.HDL = e.firstPlausible(e.pats.hdl, text, ext.HDL)
	m.Triglycerides = e.firstPlausible(e.pats.triglycerides, text, ext.Triglycerides)
	m.FastingGlucose = e.firstPlausible(e.pats.glucose, text, ext.FastingGlucose)
	m.HbA1c = e.firstPlausible(e.pats.hba1c, text, ext.HbA1c)
	e.extractAnthropometrics(text, m)
	e.extractEjectionFraction(text, m)
	m.PASP = e.firstPlausible(e.pats.pasp, text, ext.PASP)
	m.TRVelocity = e.firstPlausible(e.pats.trVelocity, text, ext.TRVelocity)
	e.extractBooleanFlags(text, m)
	e.extractEchoTags(text, m)
	e.deriveBMI(m)

	if m.FieldCount() < ext.InferenceFieldThreshold {
		e.inferFromBareNumbers(text, m)
	}

	e.logger.WithFields(logrus.Fields{
		"fields_recovered": m.FieldCount(),
		"text_length":      len(rawText),
	}).Info("Metrics extraction completed")

	return m
}

// firstPlausible tries the ordered candidate patterns and returns the first
// numeric match inside the plausibility range.
func (e *ExtractorService) firstPlausible(pats []*regexp.Regexp, text string, r domain.Range) *float64 {
	for _, p := range pats {
		for _, match := range p.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(match[len(match)-1], 64)
			if err != nil {
				continue
			}
			if r.Contains(v) {
				return domain.Float(v)
			}
		}
	}
	return nil
}

func (e *ExtractorService) extractAge(text string, m *domain.Metrics) {
	for _, p := range e.pats.age {
		for _, match := range p.FindAllStringSubmatch(text, -1) {
			token := match[1]
			// OCR confusion: a leading "Z" is a misread "2" in age tokens
			// ("Z8 years old" -> 28).
			if strings.HasPrefix(token, "z") {
				token = "2" + token[1:]
			}
			v, err := strconv.ParseFloat(token, 64)
			if err != nil {
				continue
			}
			if e.cfg.Extraction.Age.Contains(v) {
				m.Age = domain.Float(v)
				return
			}
		}
	}
}

func (e *ExtractorService) extractSex(text string, m *domain.Metrics) {
	for _, p := range e.pats.sex {
		match := p.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		token := strings.TrimSpace(match[len(match)-1])
		switch token {
		case "male", "man", "m":
			m.Sex = domain.SexOf(domain.MALE)
			return
		case "female", "woman", "f":
			m.Sex = domain.SexOf(domain.FEMALE)
			return
		}
	}
}

func (e *ExtractorService) extractBloodPressure(text string, m *domain.Metrics) {
	ext := &e.cfg.Extraction
	for _, p := range e.pats.bp {
		for _, match := range p.FindAllStringSubmatch(text, -1) {
			sys, err1 := strconv.ParseFloat(match[1], 64)
			dia, err2 := strconv.ParseFloat(match[2], 64)
			if err1 != nil || err2 != nil {
				continue
			}
			// Systolic must exceed diastolic; a reading that fails that is
			// a date or a fraction, not a blood pressure.
			if sys <= dia {
				continue
			}
			if ext.SystolicBP.Contains(sys) && ext.DiastolicBP.Contains(dia) {
				m.SystolicBP = domain.Float(sys)
				m.DiastolicBP = domain.Float(dia)
				return
			}
		}
	}
}

func (e *ExtractorService) extractAnthropometrics(text string, m *domain.Metrics) {
	ext := &e.cfg.Extraction

	for _, p := range e.pats.height {
		match := p.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		v, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		if v < 3 { // meters notation
			v *= 100
		}
		if ext.HeightCM.Contains(v) {
			m.HeightCM = domain.Float(v)
			break
		}
	}

	m.WeightKG = e.firstPlausible(e.pats.weight, text, ext.WeightKG)
	m.BMI = e.firstPlausible(e.pats.bmi, text, ext.BMI)
	m.WaistCM = e.firstPlausible(e.pats.waist, text, ext.WaistCM)
}

// extractEjectionFraction resolves the EF value from competing synonym
// patterns, then falls back to a context-scored scan over every percent
// token in the document.
func (e *ExtractorService) extractEjectionFraction(text string, m *domain.Metrics) {
	ext := &e.cfg.Extraction

	candidates := make([]float64, 0, 4)
	for _, p := range e.pats.ef {
		for _, match := range p.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(match[1], 64)
			if err != nil {
				continue
			}
			v = repairEFDigits(v, ext.EjectionFraction)
			if ext.EjectionFraction.Contains(v) {
				candidates = append(candidates, v)
			}
		}
	}

	if len(candidates) > 0 {
		// When patterns disagree, a value inside the typical sub-range wins
		// over any other plausible value: normal-range readings are the
		// least likely to be OCR artifacts.
		chosen := candidates[0]
		for _, v := range candidates {
			if ext.EFTypical.Contains(v) {
				chosen = v
				break
			}
		}
		m.EjectionFraction = domain.Float(chosen)
		return
	}

	if v, ok := e.fallbackEFScan(text); ok {
		m.EjectionFraction = domain.Float(v)
	}
}

// repairEFDigits collapses a 3-digit percentage to its first two digits when
// the full reading is implausible ("512%" -> 51): a stray digit appended by
// the OCR pass is far more common than a genuine 3-digit fraction.
func repairEFDigits(v float64, valid domain.Range) float64 {
	if v >= 100 && v < 1000 && !valid.Contains(v) {
		return float64(int(v) / 10)
	}
	return v
}

// fallbackEFScan scores every "NN%" token by nearby-context keywords and
// accepts the best candidate above the minimum score.
func (e *ExtractorService) fallbackEFScan(text string) (float64, bool) {
	ext := &e.cfg.Extraction

	bestScore := 0
	bestValue := 0.0
	found := false

	for _, loc := range e.pats.percentToken.FindAllStringSubmatchIndex(text, -1) {
		token := text[loc[2]:loc[3]]
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			continue
		}
		v = repairEFDigits(v, ext.EjectionFraction)
		if !ext.EjectionFraction.Contains(v) {
			continue
		}

		window := contextWindow(text, loc[0], loc[1], 40)
		score := 0
		if strings.Contains(window, "ejection") {
			score += 3
		}
		if strings.Contains(window, "lvef") {
			score += 2
		} else if strings.Contains(window, "ef") {
			score += 3
		}
		for _, kw := range []string{"echo", "simpson", "2d", "ventricular"} {
			if strings.Contains(window, kw) {
				score += 2
				break
			}
		}
		// Fractional shortening competes for the same token shape.
		if strings.Contains(window, "fractional shortening") || e.pats.fsToken.MatchString(window) {
			score -= 3
		}

		if score > bestScore {
			bestScore = score
			bestValue = v
			found = true
		}
	}

	if found && bestScore >= ext.EFFallbackMinScore {
		e.logger.WithFields(logrus.Fields{
			"value": bestValue,
			"score": bestScore,
		}).Debug("Ejection fraction recovered by fallback percent scan")
		return bestValue, true
	}
	return 0, false
}

func contextWindow(text string, start, end, radius int) string {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

// extractBooleanFlags derives risk-factor flags from keyword presence, with
// explicit negation phrases overriding the positive keyword match.
func (e *ExtractorService) extractBooleanFlags(text string, m *domain.Metrics) {
	m.Smoker = keywordFlag(text,
		[]string{"smoker", "smoking", "tobacco use", "cigarette"},
		[]string{"non-smoker", "nonsmoker", "non smoker", "no smoking", "denies smoking", "never smoked", "ex-smoker", "former smoker", "quit smoking"},
	)
	m.Diabetes = keywordFlag(text,
		[]string{"diabetes", "diabetic", "t2dm", "type 2 dm", "type ii dm", "dm type"},
		[]string{"no diabetes", "non-diabetic", "nondiabetic", "non diabetic", "denies diabetes", "no history of diabetes"},
	)
	m.FamilyHistory = keywordFlag(text,
		[]string{"family history of heart", "family history of cardiac", "family history of cad", "family history of coronary", "family history of premature", "fh of cad", "positive family history"},
		[]string{"no family history", "negative family history", "denies family history"},
	)
	m.Hypertension = keywordFlag(text,
		[]string{"hypertension", "hypertensive", "htn"},
		[]string{"no hypertension", "denies hypertension", "no history of hypertension", "normotensive"},
	)
}

// keywordFlag returns true when a positive keyword is present, false when a
// negation phrase is present (negation wins: "non-smoker" contains "smoker"),
// and nil when neither appears.
func keywordFlag(text string, positives, negations []string) *bool {
	for _, n := range negations {
		if strings.Contains(text, n) {
			return domain.Bool(false)
		}
	}
	for _, p := range positives {
		if strings.Contains(text, p) {
			return domain.Bool(true)
		}
	}
	return nil
}

func (e *ExtractorService) extractEchoTags(text string, m *domain.Metrics) {
	m.LVHypertrophy = keywordFlag(text,
		[]string{"left ventricular hypertrophy", "lv hypertrophy", "lvh"},
		[]string{"no left ventricular hypertrophy", "no lvh"},
	)
	m.WallMotionAbnormality = keywordFlag(text,
		[]string{"wall motion abnormality", "hypokinesis", "hypokinesia", "akinesis", "akinesia", "dyskinesis"},
		[]string{"no wall motion abnormality", "normal wall motion"},
	)
	m.ValveAbnormality = keywordFlag(text,
		[]string{"mitral regurgitation", "aortic regurgitation", "mitral stenosis", "aortic stenosis", "valve disease", "valvular disease"},
		[]string{"no valvular disease", "valves are normal", "normal valves"},
	)
	m.PericardialEffusion = keywordFlag(text,
		[]string{"pericardial effusion"},
		[]string{"no pericardial effusion"},
	)
}

// deriveBMI computes BMI from height and weight when it is not explicitly
// stated in the document.
func (e *ExtractorService) deriveBMI(m *domain.Metrics) {
	if m.BMI != nil || m.HeightCM == nil || m.WeightKG == nil {
		return
	}
	hm := *m.HeightCM / 100
	if hm <= 0 {
		return
	}
	bmi := *m.WeightKG / (hm * hm)
	if e.cfg.Extraction.BMI.Contains(bmi) {
		m.BMI = domain.Float(bmi)
	}
}

// inferFromBareNumbers is the last-resort pass for documents where almost
// nothing matched: every bare number is offered, in document order, to each
// still-unset field in a fixed scan order, and the first range match per
// field is accepted. Overlapping ranges make this a known false-positive
// source (a glucose reading can be taken for a cholesterol), which is why it
// only runs on otherwise-barren documents.
func (e *ExtractorService) inferFromBareNumbers(text string, m *domain.Metrics) {
	ext := &e.cfg.Extraction
	inferred := 0

	for _, match := range e.pats.bareNumber.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}

		switch {
		case m.SystolicBP == nil && ext.InferSystolic.Contains(v):
			m.SystolicBP = domain.Float(v)
			inferred++
		case m.Age == nil && ext.InferAge.Contains(v):
			m.Age = domain.Float(v)
			inferred++
		case m.TotalCholesterol == nil && ext.InferCholesterol.Contains(v):
			m.TotalCholesterol = domain.Float(v)
			inferred++
		case m.HeartRate == nil && ext.InferHeartRate.Contains(v):
			m.HeartRate = domain.Float(v)
			inferred++
		}
	}

	if inferred > 0 {
		e.logger.WithField("inferred_fields", inferred).Warn("Metrics inferred from bare numbers; treat with low confidence")
	}
}
