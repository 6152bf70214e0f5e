package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectData() map[string]interface{} {
	return map[string]interface{}{
		"lots": []interface{}{
			map[string]interface{}{"name": "electrical refit", "category": "Electrical", "amount": 12000.0},
			map[string]interface{}{"name": "bathroom plumbing", "category": "plumbing", "amount": 8000.0},
		},
		"description":    strings.Repeat("detailed scope ", 30),
		"legal_mentions": true,
		"company": map[string]interface{}{
			"years_in_business": 10.0,
			"employees":         5.0,
			"has_insurance":     true,
		},
	}
}

func seededContext() *ExecutionContext {
	return &ExecutionContext{
		ProjectID:   "proj-1",
		QuoteID:     "quote-1",
		ProjectData: projectData(),
		Context:     &ContextResult{DetectedLots: []string{}},
		Enterprise:  &EnterpriseResult{Score: 50},
		Pricing:     &PricingResult{TotalAmount: 20000},
		Geography:   &GeographyResult{Score: 60, Region: "Bretagne"},
	}
}

func TestGradeFromScore(t *testing.T) {
	cases := []struct {
		score float64
		grade string
	}{
		{90, "A"}, {89.99, "B"}, {75, "B"}, {74.99, "C"},
		{60, "C"}, {59.99, "D"}, {40, "D"}, {39.99, "E"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.grade, GradeFromScore(tc.score), "score %v", tc.score)
	}
}

func TestMinGrade(t *testing.T) {
	assert.Equal(t, "C", minGrade("A", "C"))
	assert.Equal(t, "C", minGrade("C", "A"))
	assert.Equal(t, "D", minGrade("D", "D"))
	assert.Equal(t, "E", minGrade("A", "X"), "unknown grades fall to E")
}

func TestContextAndLotEngines(t *testing.T) {
	ctx := seededContext()

	require.NoError(t, ContextEngine{}.Execute(ctx))
	assert.Equal(t, []string{"electrical refit", "bathroom plumbing"}, ctx.Context.DetectedLots)

	require.NoError(t, LotEngine{}.Execute(ctx))
	require.Len(t, ctx.Lots.NormalizedLots, 2)
	assert.Equal(t, "electrical", ctx.Lots.NormalizedLots[0].Category, "categories are lowercased")
	assert.Equal(t, []string{"electrical refit", "bathroom plumbing"}, ctx.Lots.PrimaryLots, "ordered by amount")
	// 2 categories and 2 lots.
	assert.Equal(t, 40.0, ctx.Lots.ComplexityScore)
}

func TestRuleEngine(t *testing.T) {
	ctx := seededContext()
	require.NoError(t, ContextEngine{}.Execute(ctx))
	require.NoError(t, LotEngine{}.Execute(ctx))
	require.NoError(t, RuleEngine{}.Execute(ctx))

	codes := make([]string, 0, len(ctx.Rules.UniqueObligations))
	for _, o := range ctx.Rules.UniqueObligations {
		codes = append(codes, o.Code)
	}
	assert.Equal(t, []string{"CONTRACT_TERMS", "DECENNIAL_WARRANTY", "ELEC_DECLARATION", "ELEC_NFC15100", "WATER_NETWORK_DECL"}, codes)

	assert.Equal(t, map[string]int{"regulatory": 2, "legal": 2, "commercial": 1}, ctx.Rules.TypeBreakdown)
	assert.Equal(t, map[string]int{"critical": 1, "high": 1, "medium": 2, "low": 1}, ctx.Rules.SeverityBreakdown)

	t.Run("asbestos flag adds a blocking obligation", func(t *testing.T) {
		flagged := seededContext()
		flagged.ProjectData["asbestos_risk"] = true
		require.NoError(t, ContextEngine{}.Execute(flagged))
		require.NoError(t, LotEngine{}.Execute(flagged))
		require.NoError(t, RuleEngine{}.Execute(flagged))

		found := false
		for _, o := range flagged.Rules.UniqueObligations {
			if o.Code == "ASBESTOS" {
				found = true
				assert.Equal(t, "critical", o.Severity)
			}
		}
		assert.True(t, found)
	})

	t.Run("missing upstream lots", func(t *testing.T) {
		err := RuleEngine{}.Execute(&ExecutionContext{})
		assert.ErrorIs(t, err, ErrMissingUpstream)
	})
}

func TestScoringAndAuditEngines(t *testing.T) {
	ctx := seededContext()
	require.NoError(t, ContextEngine{}.Execute(ctx))
	require.NoError(t, LotEngine{}.Execute(ctx))
	require.NoError(t, RuleEngine{}.Execute(ctx))
	require.NoError(t, ScoringEngine{}.Execute(ctx))

	// critical 25 + high 15 + medium 2x8 + low 3 = 59.
	assert.Equal(t, 59.0, ctx.Scoring.TotalWeight)
	assert.Equal(t, 41.0, ctx.Scoring.ComplianceScore)

	require.NoError(t, AuditEngine{}.Execute(ctx))
	assert.Equal(t, 41.0, ctx.Audit.GlobalScore)
	assert.Equal(t, 59.0, ctx.Audit.RiskScore)
	assert.Equal(t, "high", ctx.Audit.RiskLevel)
}

func TestEnterpriseEngine(t *testing.T) {
	ctx := seededContext()
	require.NoError(t, EnterpriseEngine{}.Execute(ctx))

	// 50 reputation + 10 years + 10 insurance + 3 small team.
	assert.Equal(t, 73.0, ctx.Enterprise.Score)
	assert.Equal(t, 10, ctx.Enterprise.YearsInBusiness)
	assert.True(t, ctx.Enterprise.HasInsurance)

	t.Run("years bonus is capped at 15", func(t *testing.T) {
		capped := seededContext()
		capped.ProjectData["company"] = map[string]interface{}{"years_in_business": 40.0}
		require.NoError(t, EnterpriseEngine{}.Execute(capped))
		assert.Equal(t, 65.0, capped.Enterprise.Score)
	})
}

func TestPricingEngine(t *testing.T) {
	t.Run("coherent pricing earns the bonus", func(t *testing.T) {
		ctx := seededContext()
		require.NoError(t, ContextEngine{}.Execute(ctx))
		require.NoError(t, LotEngine{}.Execute(ctx))
		require.NoError(t, PricingEngine{}.Execute(ctx))

		assert.Equal(t, 85.0, ctx.Pricing.Score)
		assert.Equal(t, 10000.0, ctx.Pricing.AvgPerLot)
		assert.Zero(t, ctx.Pricing.AnomalyCount)
	})

	t.Run("zero amount is an anomaly", func(t *testing.T) {
		ctx := seededContext()
		ctx.Pricing.TotalAmount = 0
		require.NoError(t, ContextEngine{}.Execute(ctx))
		require.NoError(t, LotEngine{}.Execute(ctx))
		require.NoError(t, PricingEngine{}.Execute(ctx))

		assert.Equal(t, 0.0, ctx.Pricing.Score)
		assert.Equal(t, 1, ctx.Pricing.AnomalyCount)
	})

	t.Run("underquoted lots are an anomaly", func(t *testing.T) {
		ctx := seededContext()
		ctx.Pricing.TotalAmount = 800
		require.NoError(t, ContextEngine{}.Execute(ctx))
		require.NoError(t, LotEngine{}.Execute(ctx))
		require.NoError(t, PricingEngine{}.Execute(ctx))

		assert.Equal(t, 45.0, ctx.Pricing.Score)
		assert.Equal(t, 1, ctx.Pricing.AnomalyCount)
	})
}

func TestGlobalScoringEngine(t *testing.T) {
	ctx := &ExecutionContext{
		Enterprise: &EnterpriseResult{Score: 73},
		Pricing:    &PricingResult{Score: 85},
		Quality:    &QualityResult{Score: 60},
		Audit:      &AuditResult{GlobalScore: 41},
		Geography:  &GeographyResult{Score: 60},
	}
	require.NoError(t, GlobalScoringEngine{}.Execute(ctx))

	// .30*73 + .25*85 + .20*60 + .15*41 + .10*60 = 67.3
	assert.InDelta(t, 67.3, ctx.GlobalScore.Score, 0.001)
	assert.Equal(t, "C", ctx.GlobalScore.Grade)

	t.Run("missing pillars contribute zero", func(t *testing.T) {
		sparse := &ExecutionContext{Enterprise: &EnterpriseResult{Score: 100}}
		require.NoError(t, GlobalScoringEngine{}.Execute(sparse))
		assert.InDelta(t, 30.0, sparse.GlobalScore.Score, 0.001)
		assert.Equal(t, "E", sparse.GlobalScore.Grade)
	})
}

func TestTrustCappingEngine(t *testing.T) {
	baseRules := func(blocking ...string) *RulesResult {
		rules := &RulesResult{}
		for _, code := range blocking {
			rules.UniqueObligations = append(rules.UniqueObligations, Obligation{Code: code, Severity: "critical"})
		}
		return rules
	}

	t.Run("no blocking obligations leaves the grade intact", func(t *testing.T) {
		ctx := &ExecutionContext{GlobalScore: &GlobalScoreResult{Score: 92, Grade: "A"}, Rules: baseRules()}
		require.NoError(t, TrustCappingEngine{}.Execute(ctx))
		assert.Equal(t, "A", ctx.TrustCapping.FinalGrade)
		assert.False(t, ctx.TrustCapping.CappingApplied)
		assert.Equal(t, "A", ctx.FinalProfessionalGrade)
	})

	t.Run("one blocking obligation caps at C", func(t *testing.T) {
		ctx := &ExecutionContext{GlobalScore: &GlobalScoreResult{Score: 92, Grade: "A"}, Rules: baseRules("ASBESTOS")}
		require.NoError(t, TrustCappingEngine{}.Execute(ctx))
		assert.Equal(t, "C", ctx.TrustCapping.FinalGrade)
		assert.True(t, ctx.TrustCapping.CappingApplied)
	})

	t.Run("two blocking obligations cap at D", func(t *testing.T) {
		ctx := &ExecutionContext{GlobalScore: &GlobalScoreResult{Score: 92, Grade: "A"}, Rules: baseRules("ELEC_NFC15100", "ELEC_DECLARATION")}
		require.NoError(t, TrustCappingEngine{}.Execute(ctx))
		assert.Equal(t, "D", ctx.TrustCapping.FinalGrade)
	})

	t.Run("capping never raises a low grade", func(t *testing.T) {
		ctx := &ExecutionContext{GlobalScore: &GlobalScoreResult{Score: 30, Grade: "E"}, Rules: baseRules("ASBESTOS")}
		require.NoError(t, TrustCappingEngine{}.Execute(ctx))
		assert.Equal(t, "E", ctx.TrustCapping.FinalGrade)
		assert.False(t, ctx.TrustCapping.CappingApplied)
	})
}

func TestStructuralConsistencyEngine(t *testing.T) {
	t.Run("balanced pillars", func(t *testing.T) {
		ctx := &ExecutionContext{
			Enterprise: &EnterpriseResult{Score: 70},
			Pricing:    &PricingResult{Score: 75},
			Quality:    &QualityResult{Score: 65},
			Geography:  &GeographyResult{Score: 60},
		}
		require.NoError(t, StructuralConsistencyEngine{}.Execute(ctx))
		assert.Equal(t, 100.0, ctx.StructuralConsistency.ConsistencyScore)
		assert.False(t, ctx.StructuralConsistency.ImbalanceDetected)
	})

	t.Run("wide gaps are flagged", func(t *testing.T) {
		ctx := &ExecutionContext{
			Enterprise: &EnterpriseResult{Score: 95},
			Pricing:    &PricingResult{Score: 20},
			Quality:    &QualityResult{Score: 90},
			Geography:  &GeographyResult{Score: 15},
		}
		require.NoError(t, StructuralConsistencyEngine{}.Execute(ctx))
		assert.True(t, ctx.StructuralConsistency.ImbalanceDetected)
		assert.NotEmpty(t, ctx.StructuralConsistency.FlagsDetected)
	})
}

func TestFraudDetectionEngine(t *testing.T) {
	t.Run("clean analysis is low", func(t *testing.T) {
		ctx := &ExecutionContext{
			Pricing:    &PricingResult{Score: 80},
			Enterprise: &EnterpriseResult{Score: 70},
			Quality:    &QualityResult{Score: 60},
			Rules:      &RulesResult{SeverityBreakdown: map[string]int{}},
		}
		require.NoError(t, FraudDetectionEngine{}.Execute(ctx))
		assert.Equal(t, "low", ctx.FraudDetection.FraudLevel)
		assert.Empty(t, ctx.FraudDetection.DetectedPatterns)
	})

	t.Run("stacked signals escalate to critical", func(t *testing.T) {
		ctx := &ExecutionContext{
			Pricing:               &PricingResult{AnomalyCount: 2},
			Enterprise:            &EnterpriseResult{Score: 20},
			Quality:               &QualityResult{Score: 10},
			Rules:                 &RulesResult{SeverityBreakdown: map[string]int{"critical": 2}},
			StructuralConsistency: &StructuralConsistencyResult{ImbalanceDetected: true},
		}
		require.NoError(t, FraudDetectionEngine{}.Execute(ctx))
		// 25 + 30 + 20 + 15 + 10 = 100.
		assert.Equal(t, 100.0, ctx.FraudDetection.FraudScore)
		assert.Equal(t, "critical", ctx.FraudDetection.FraudLevel)
		assert.True(t, ctx.FraudDetection.RiskIndicators.PricingRisk)
		assert.True(t, ctx.FraudDetection.RiskIndicators.ComplianceRisk)
	})
}

func TestAdaptiveScoringEngine(t *testing.T) {
	ctx := &ExecutionContext{
		ProjectData: map[string]interface{}{"urgent": true},
		GlobalScore: &GlobalScoreResult{Score: 80},
		Lots:        &LotsResult{ComplexityScore: 65},
		Enterprise:  &EnterpriseResult{Score: 50},
		Geography:   &GeographyResult{Score: 70},
		Rules:       &RulesResult{SeverityBreakdown: map[string]int{"critical": 1, "high": 2}},
		Pricing:     &PricingResult{AnomalyCount: 1},
	}
	require.NoError(t, AdaptiveScoringEngine{}.Execute(ctx))

	adaptive := ctx.AdaptiveScore
	assert.Equal(t, 80.0, adaptive.BaseScore)
	assert.Equal(t, 1.05, adaptive.SectorMultiplier)
	assert.InDelta(t, 0.92*0.95, adaptive.RiskMultiplier, 0.0001)
	assert.Equal(t, 9.0, adaptive.NormativePenalty)
	assert.Equal(t, 4.0, adaptive.PricingPenalty)
	// 80*1.05*0.874 - 9 - 4
	assert.InDelta(t, 60.416, adaptive.AdjustedScore, 0.01)

	t.Run("requires a global score", func(t *testing.T) {
		assert.ErrorIs(t, AdaptiveScoringEngine{}.Execute(&ExecutionContext{}), ErrMissingUpstream)
	})
}
