package service

import (
	"github.com/cardio-risk-server/internal/domain"
)

// Categorize maps an already-normalized score onto the clinical risk
// category. It is a pure step function: category severity is non-decreasing
// in the normalized percent, and the floor/ceiling clamp guarantees every
// analysis reports a non-zero baseline risk.
func Categorize(score float64, cfg *domain.RuleConfig) domain.CategoryResult {
	percent := clamp(score, cfg.Scoring.PercentFloor, cfg.Scoring.PercentCeiling)

	var category domain.RiskCategory
	switch {
	case percent >= cfg.Category.HighCutoff:
		category = domain.HIGH
	case percent >= cfg.Category.ModerateCutoff:
		category = domain.MODERATE
	case percent >= cfg.Category.LowCutoff:
		category = domain.LOW
	default:
		category = domain.NORMAL
	}

	return domain.CategoryResult{
		Category:    category,
		RiskPercent: percent,
	}
}
