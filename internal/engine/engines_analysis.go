package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingUpstream is returned by an engine whose required upstream
// namespace was never written. The pipeline records the stage as skipped.
var ErrMissingUpstream = errors.New("required upstream result missing")

// severityWeights drive compliance scoring and risk classification.
var severityWeights = map[string]float64{
	"critical": 25,
	"high":     15,
	"medium":   8,
	"low":      3,
}

// ContextEngine reads the raw extracted quote data and detects the work
// packages the rest of the pipeline reasons about.
type ContextEngine struct{}

func (ContextEngine) Name() string { return "context" }

func (ContextEngine) Execute(ctx *ExecutionContext) error {
	detected := make([]string, 0)
	for _, raw := range rawLots(ctx.ProjectData) {
		if name, _ := raw["name"].(string); name != "" {
			detected = append(detected, name)
		}
	}

	summary := "No work packages detected in quote data."
	if len(detected) > 0 {
		summary = fmt.Sprintf("Detected %d work package(s): %s.", len(detected), strings.Join(detected, ", "))
	}

	ctx.Context = &ContextResult{DetectedLots: detected, Summary: summary}
	return nil
}

// LotEngine normalizes detected work packages into categorized lots.
type LotEngine struct{}

func (LotEngine) Name() string { return "lots" }

func (LotEngine) Execute(ctx *ExecutionContext) error {
	if ctx.Context == nil {
		return fmt.Errorf("lots: %w", ErrMissingUpstream)
	}

	normalized := make([]Lot, 0)
	categories := make(map[string]int)
	for _, raw := range rawLots(ctx.ProjectData) {
		name, _ := raw["name"].(string)
		if name == "" {
			continue
		}
		category, _ := raw["category"].(string)
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" {
			category = "general"
		}
		amount, _ := toFloat(raw["amount"])

		normalized = append(normalized, Lot{Name: name, Category: category, Amount: amount})
		categories[category]++
	}

	// Primary lots: top three by amount.
	byAmount := append([]Lot(nil), normalized...)
	sort.SliceStable(byAmount, func(i, j int) bool { return byAmount[i].Amount > byAmount[j].Amount })
	primary := make([]string, 0, 3)
	for i, lot := range byAmount {
		if i == 3 {
			break
		}
		primary = append(primary, lot.Name)
	}

	complexity := clampScore(float64(15*len(categories) + 5*len(normalized)))

	ctx.Lots = &LotsResult{
		NormalizedLots:  normalized,
		PrimaryLots:     primary,
		ComplexityScore: complexity,
		CategorySummary: categories,
	}
	return nil
}

// categoryObligations maps lot categories to the obligations they trigger.
var categoryObligations = map[string][]Obligation{
	"electrical": {
		{Code: "ELEC_NFC15100", Kind: "regulatory", Severity: "critical", Description: "Electrical installation must comply with NF C 15-100"},
		{Code: "ELEC_DECLARATION", Kind: "legal", Severity: "high", Description: "Electrical work requires a conformity declaration (Consuel)"},
	},
	"plumbing": {
		{Code: "WATER_NETWORK_DECL", Kind: "regulatory", Severity: "medium", Description: "Connection to the water network must be declared"},
	},
	"heating": {
		{Code: "GAS_SAFETY_CERT", Kind: "regulatory", Severity: "high", Description: "Gas appliance installation requires a safety certificate"},
	},
	"roofing": {
		{Code: "ROOF_DTU", Kind: "regulatory", Severity: "medium", Description: "Roofing work must follow the applicable DTU series"},
	},
}

// RuleEngine derives regulatory, legal, commercial and advisory obligations
// from the normalized lots and quote flags.
type RuleEngine struct{}

func (RuleEngine) Name() string { return "rules" }

func (RuleEngine) Execute(ctx *ExecutionContext) error {
	if ctx.Lots == nil {
		return fmt.Errorf("rules: %w", ErrMissingUpstream)
	}

	obligations := make([]Obligation, 0)
	for category := range ctx.Lots.CategorySummary {
		obligations = append(obligations, categoryObligations[category]...)
	}

	if flag, _ := ctx.ProjectData["asbestos_risk"].(bool); flag {
		obligations = append(obligations, Obligation{
			Code: "ASBESTOS", Kind: "regulatory", Severity: "critical",
			Description: "Asbestos diagnostic and certified removal plan required",
		})
	}

	if len(ctx.Lots.NormalizedLots) > 0 {
		obligations = append(obligations,
			Obligation{Code: "CONTRACT_TERMS", Kind: "commercial", Severity: "low",
				Description: "Quote must state binding contractual terms and payment schedule"},
			Obligation{Code: "DECENNIAL_WARRANTY", Kind: "legal", Severity: "medium",
				Description: "Ten-year structural warranty coverage must be evidenced"},
		)
	}
	if len(ctx.Lots.CategorySummary) >= 3 {
		obligations = append(obligations, Obligation{
			Code: "COORDINATION_ADVICE", Kind: "advisory", Severity: "low",
			Description: "Multi-trade coordination plan is advisable for this scope",
		})
	}

	unique := dedupeObligations(obligations)
	typeBreakdown := make(map[string]int)
	severityBreakdown := make(map[string]int)
	for _, o := range unique {
		typeBreakdown[o.Kind]++
		severityBreakdown[o.Severity]++
	}

	sort.SliceStable(unique, func(i, j int) bool { return unique[i].Code < unique[j].Code })

	ctx.Rules = &RulesResult{
		Obligations:       obligations,
		UniqueObligations: unique,
		TypeBreakdown:     typeBreakdown,
		SeverityBreakdown: severityBreakdown,
	}
	return nil
}

// ScoringEngine turns the obligation set into a compliance score that the
// audit engine consumes.
type ScoringEngine struct{}

func (ScoringEngine) Name() string { return "scoring" }

func (ScoringEngine) Execute(ctx *ExecutionContext) error {
	if ctx.Rules == nil {
		return fmt.Errorf("scoring: %w", ErrMissingUpstream)
	}

	var totalWeight float64
	for _, o := range ctx.Rules.UniqueObligations {
		totalWeight += severityWeights[o.Severity]
	}

	ctx.Scoring = &ScoringResult{
		ComplianceScore: clampScore(100 - totalWeight),
		TotalWeight:     totalWeight,
	}
	return nil
}

// EnrichmentEngine attaches actionable recommendations to the detected
// obligations without altering any score.
type EnrichmentEngine struct{}

func (EnrichmentEngine) Name() string { return "enrichment" }

func (EnrichmentEngine) Execute(ctx *ExecutionContext) error {
	if ctx.Rules == nil {
		return fmt.Errorf("enrichment: %w", ErrMissingUpstream)
	}

	recommendations := make([]string, 0, len(ctx.Rules.UniqueObligations))
	for _, o := range ctx.Rules.UniqueObligations {
		switch o.Severity {
		case "critical":
			recommendations = append(recommendations, fmt.Sprintf("Resolve %s before any work starts: %s", o.Code, o.Description))
		case "high":
			recommendations = append(recommendations, fmt.Sprintf("Schedule %s remediation within the contract timeline", o.Code))
		default:
			recommendations = append(recommendations, fmt.Sprintf("Track %s during project review", o.Code))
		}
	}

	ctx.Enrichment = &EnrichmentResult{
		Recommendations: recommendations,
		AppliedRules:    len(ctx.Rules.UniqueObligations),
	}
	return nil
}

// AuditEngine consolidates compliance scoring into a risk assessment.
type AuditEngine struct{}

func (AuditEngine) Name() string { return "audit" }

func (AuditEngine) Execute(ctx *ExecutionContext) error {
	if ctx.Scoring == nil {
		return fmt.Errorf("audit: %w", ErrMissingUpstream)
	}

	globalScore := ctx.Scoring.ComplianceScore
	riskScore := clampScore(100 - globalScore)

	var riskLevel string
	switch {
	case riskScore >= 70:
		riskLevel = "critical"
	case riskScore >= 45:
		riskLevel = "high"
	case riskScore >= 25:
		riskLevel = "medium"
	default:
		riskLevel = "low"
	}

	ctx.Audit = &AuditResult{
		RiskScore:   riskScore,
		GlobalScore: globalScore,
		RiskLevel:   riskLevel,
	}
	return nil
}

func rawLots(data map[string]interface{}) []map[string]interface{} {
	raw, _ := data["lots"].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func dedupeObligations(in []Obligation) []Obligation {
	seen := make(map[string]bool, len(in))
	out := make([]Obligation, 0, len(in))
	for _, o := range in {
		if seen[o.Code] {
			continue
		}
		seen[o.Code] = true
		out = append(out, o)
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
