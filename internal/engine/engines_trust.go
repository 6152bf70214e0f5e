package engine

import (
	"fmt"
	"math"
)

// blockingObligationCodes restrict the maximum grade a quote can receive
// regardless of its computed score.
var blockingObligationCodes = map[string]bool{
	"ELEC_NFC15100":    true,
	"ELEC_DECLARATION": true,
	"ASBESTOS":         true,
}

// TrustCappingEngine lowers an otherwise-computed grade when high-risk
// obligations are present, and publishes the final professional grade.
type TrustCappingEngine struct{}

func (TrustCappingEngine) Name() string { return "trust-capping" }

func (TrustCappingEngine) Execute(ctx *ExecutionContext) error {
	if ctx.GlobalScore == nil {
		return fmt.Errorf("trust-capping: %w", ErrMissingUpstream)
	}

	originalGrade := ctx.GlobalScore.Grade

	var blocking []Obligation
	if ctx.Rules != nil {
		for _, o := range ctx.Rules.UniqueObligations {
			if blockingObligationCodes[o.Code] {
				blocking = append(blocking, o)
			}
		}
	}

	maxAllowed := "A"
	switch {
	case len(blocking) >= 2:
		maxAllowed = "D"
	case len(blocking) == 1:
		maxAllowed = "C"
	}

	finalGrade := minGrade(originalGrade, maxAllowed)

	ctx.TrustCapping = &TrustCappingResult{
		OriginalGrade:       originalGrade,
		MaxAllowedGrade:     maxAllowed,
		FinalGrade:          finalGrade,
		CappingApplied:      finalGrade != originalGrade,
		BlockingObligations: blocking,
	}
	ctx.FinalProfessionalGrade = finalGrade
	return nil
}

// StructuralConsistencyEngine detects imbalances between the evaluation
// pillars. A quote whose pillar scores diverge wildly is suspect even when
// the weighted average looks fine.
type StructuralConsistencyEngine struct{}

func (StructuralConsistencyEngine) Name() string { return "structural-consistency" }

func (StructuralConsistencyEngine) Execute(ctx *ExecutionContext) error {
	pillars := map[string]*float64{}
	if ctx.Enterprise != nil {
		pillars["enterprise"] = &ctx.Enterprise.Score
	}
	if ctx.Pricing != nil {
		pillars["pricing"] = &ctx.Pricing.Score
	}
	if ctx.Quality != nil {
		pillars["quality"] = &ctx.Quality.Score
	}
	if ctx.Geography != nil {
		pillars["geography"] = &ctx.Geography.Score
	}

	names := []string{"enterprise", "pricing", "quality", "geography"}
	var flags []string
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, okA := pillars[names[i]]
			b, okB := pillars[names[j]]
			if !okA || !okB {
				continue
			}
			gap := math.Abs(*a - *b)
			if gap > 40 {
				flags = append(flags, fmt.Sprintf("%s/%s imbalance: gap %.1f points", names[i], names[j], gap))
			}
		}
	}

	score := clampScore(100 - float64(15*len(flags)))

	ctx.StructuralConsistency = &StructuralConsistencyResult{
		ConsistencyScore:  score,
		ImbalanceDetected: score < 80,
		FlagsDetected:     flags,
	}
	return nil
}

// AdaptiveScoringEngine adjusts the global score for sector complexity,
// enterprise risk and detected penalties. Runs after the fixed scoring
// chain; its output is explanatory context, never the official grade.
type AdaptiveScoringEngine struct{}

func (AdaptiveScoringEngine) Name() string { return "adaptive-scoring" }

func (AdaptiveScoringEngine) Execute(ctx *ExecutionContext) error {
	if ctx.GlobalScore == nil {
		return fmt.Errorf("adaptive-scoring: %w", ErrMissingUpstream)
	}

	base := ctx.GlobalScore.Score

	sector := 1.0
	if ctx.Lots != nil {
		if ctx.Lots.ComplexityScore >= 80 {
			sector = 1.10
		} else if ctx.Lots.ComplexityScore >= 60 {
			sector = 1.05
		}
	}

	risk := 1.0
	if ctx.Enterprise != nil {
		if ctx.Enterprise.Score < 40 {
			risk *= 0.85
		} else if ctx.Enterprise.Score < 55 {
			risk *= 0.92
		}
	}
	if urgent, _ := ctx.ProjectData["urgent"].(bool); urgent {
		risk *= 0.95
	}
	if ctx.Geography == nil || ctx.Geography.Score == 0 {
		risk *= 0.97
	}
	if risk < 0.5 {
		risk = 0.5
	}

	var normative float64
	if ctx.Rules != nil {
		normative = float64(5*ctx.Rules.SeverityBreakdown["critical"] + 2*ctx.Rules.SeverityBreakdown["high"])
		if normative > 20 {
			normative = 20
		}
	}

	var pricingPenalty float64
	if ctx.Pricing != nil {
		pricingPenalty = float64(4 * ctx.Pricing.AnomalyCount)
		if pricingPenalty > 12 {
			pricingPenalty = 12
		}
	}

	adjusted := clampScore(base*sector*risk - normative - pricingPenalty)

	ctx.AdaptiveScore = &AdaptiveScoreResult{
		BaseScore:        base,
		AdjustedScore:    adjusted,
		SectorMultiplier: sector,
		RiskMultiplier:   risk,
		NormativePenalty: normative,
		PricingPenalty:   pricingPenalty,
	}
	return nil
}

// FraudDetectionEngine accumulates fraud signals across the finished
// analysis. It reads every pillar but writes only its own namespace.
type FraudDetectionEngine struct{}

func (FraudDetectionEngine) Name() string { return "fraud-detection" }

func (FraudDetectionEngine) Execute(ctx *ExecutionContext) error {
	var score float64
	var patterns []string
	var indicators RiskIndicators

	if ctx.Pricing != nil && ctx.Pricing.AnomalyCount > 0 {
		score += 25
		indicators.PricingRisk = true
		patterns = append(patterns, fmt.Sprintf("pricing: %d anomaly signal(s) in quoted amounts", ctx.Pricing.AnomalyCount))
	}
	if ctx.Rules != nil && ctx.Rules.SeverityBreakdown["critical"] > 0 {
		score += 30
		indicators.ComplianceRisk = true
		patterns = append(patterns, fmt.Sprintf("compliance: %d critical obligation(s) unresolved", ctx.Rules.SeverityBreakdown["critical"]))
	}
	if ctx.Enterprise != nil && ctx.Enterprise.Score < 35 {
		score += 20
		indicators.EnterpriseRisk = true
		patterns = append(patterns, "enterprise: weak company profile for the quoted scope")
	}
	if ctx.StructuralConsistency != nil && ctx.StructuralConsistency.ImbalanceDetected {
		score += 15
		indicators.StructuralRisk = true
		patterns = append(patterns, "structure: pillar scores are inconsistent with each other")
	}
	if ctx.Quality != nil && ctx.Quality.Score < 30 {
		score += 10
		patterns = append(patterns, "quality: quote documentation is unusually thin")
	}

	score = clampScore(score)

	var level string
	switch {
	case score >= 75:
		level = "critical"
	case score >= 50:
		level = "high"
	case score >= 25:
		level = "moderate"
	default:
		level = "low"
	}

	ctx.FraudDetection = &FraudDetectionResult{
		FraudScore:       score,
		FraudLevel:       level,
		DetectedPatterns: patterns,
		RiskIndicators:   indicators,
	}
	return nil
}
