package engine

import "fmt"

// EnterpriseEngine refines the reputation-seeded enterprise score with
// company facts from the extracted quote data.
type EnterpriseEngine struct{}

func (EnterpriseEngine) Name() string { return "enterprise" }

func (EnterpriseEngine) Execute(ctx *ExecutionContext) error {
	if ctx.Enterprise == nil {
		return fmt.Errorf("enterprise: %w", ErrMissingUpstream)
	}

	score := ctx.Enterprise.Score
	years := 0
	employees := 0
	hasInsurance := false

	if company, ok := ctx.ProjectData["company"].(map[string]interface{}); ok {
		if v, ok := toFloat(company["years_in_business"]); ok {
			years = int(v)
		}
		if v, ok := toFloat(company["employees"]); ok {
			employees = int(v)
		}
		hasInsurance, _ = company["has_insurance"].(bool)
	}

	if years > 15 {
		score += 15
	} else {
		score += float64(years)
	}
	if hasInsurance {
		score += 10
	}
	if employees >= 10 {
		score += 5
	} else if employees >= 3 {
		score += 3
	}

	ctx.Enterprise = &EnterpriseResult{
		Score:           clampScore(score),
		YearsInBusiness: years,
		HasInsurance:    hasInsurance,
		Employees:       employees,
	}
	return nil
}

// PricingEngine assesses the quoted amount against the lot structure and
// flags pricing anomalies.
type PricingEngine struct{}

func (PricingEngine) Name() string { return "pricing" }

func (PricingEngine) Execute(ctx *ExecutionContext) error {
	if ctx.Pricing == nil || ctx.Lots == nil {
		return fmt.Errorf("pricing: %w", ErrMissingUpstream)
	}

	total := ctx.Pricing.TotalAmount
	lotCount := len(ctx.Lots.NormalizedLots)

	score := 70.0
	anomalies := 0
	avgPerLot := 0.0

	if total <= 0 {
		score = 0
		anomalies++
	} else if lotCount > 0 {
		avgPerLot = total / float64(lotCount)
		switch {
		case avgPerLot < 500:
			// Suspiciously cheap work packages are a known underquoting signal.
			score -= 25
			anomalies++
		case avgPerLot > 100000:
			score -= 15
			anomalies++
		default:
			score += 15
		}
		if ctx.Lots.ComplexityScore >= 60 && avgPerLot < 2000 {
			score -= 10
			anomalies++
		}
	}

	ctx.Pricing = &PricingResult{
		Score:        clampScore(score),
		TotalAmount:  total,
		AvgPerLot:    avgPerLot,
		AnomalyCount: anomalies,
	}
	return nil
}

// QualityEngine scores the descriptive completeness of the quote document.
type QualityEngine struct{}

func (QualityEngine) Name() string { return "quality" }

func (QualityEngine) Execute(ctx *ExecutionContext) error {
	description, _ := ctx.ProjectData["description"].(string)
	hasLegal, _ := ctx.ProjectData["legal_mentions"].(bool)

	score := float64(len(description)) / 20
	if score > 60 {
		score = 60
	}
	if hasLegal {
		score += 25
	}
	if ctx.Lots != nil && len(ctx.Lots.NormalizedLots) > 0 {
		score += 15
	}

	ctx.Quality = &QualityResult{
		Score:             clampScore(score),
		DescriptionLength: len(description),
		HasLegalMentions:  hasLegal,
	}
	return nil
}

// Pillar weights for the global score. Missing pillars contribute zero,
// which keeps a partially degraded run conservative rather than optimistic.
const (
	weightEnterprise = 0.30
	weightPricing    = 0.25
	weightQuality    = 0.20
	weightAudit      = 0.15
	weightGeography  = 0.10
)

// GlobalScoringEngine combines the evaluation pillars into the global
// score and its letter grade.
type GlobalScoringEngine struct{}

func (GlobalScoringEngine) Name() string { return "global-scoring" }

func (GlobalScoringEngine) Execute(ctx *ExecutionContext) error {
	var score float64
	if ctx.Enterprise != nil {
		score += ctx.Enterprise.Score * weightEnterprise
	}
	if ctx.Pricing != nil {
		score += ctx.Pricing.Score * weightPricing
	}
	if ctx.Quality != nil {
		score += ctx.Quality.Score * weightQuality
	}
	if ctx.Audit != nil {
		score += ctx.Audit.GlobalScore * weightAudit
	}
	if ctx.Geography != nil {
		score += ctx.Geography.Score * weightGeography
	}

	score = clampScore(score)
	ctx.GlobalScore = &GlobalScoreResult{Score: score, Grade: GradeFromScore(score)}
	return nil
}
