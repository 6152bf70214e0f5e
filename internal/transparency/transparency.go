package transparency

import (
	"fmt"
	"strings"
	"time"

	"quoteaudit/internal/engine"
)

// Fallback sentences emitted when an upstream namespace is missing. Each
// generator degrades independently so one absent result never empties the
// whole report.
const (
	fallbackScore       = "Score details are unavailable for this analysis."
	fallbackAdaptive    = "No adaptive adjustment was computed for this analysis."
	fallbackGrade       = "The grade could not be fully explained for this analysis."
	fallbackCapping     = "No trust capping information is available."
	fallbackConsistency = "Structural consistency was not evaluated."
	fallbackFraud       = "Fraud screening results are unavailable."
)

// Engine derives the explainability report from the finished context. It
// runs last, reads every namespace and writes only its own. It never
// returns an error: transparency must not degrade the analysis it explains.
type Engine struct{}

func (Engine) Name() string { return "trust-transparency" }

func (Engine) Execute(ctx *engine.ExecutionContext) error {
	ctx.TrustTransparency = Generate(ctx)
	return nil
}

// Generate builds the full transparency report without mutating the context.
func Generate(ctx *engine.ExecutionContext) *engine.TrustTransparencyResult {
	return &engine.TrustTransparencyResult{
		ScoreExplanation:       explainScore(ctx),
		AdaptiveExplanation:    explainAdaptive(ctx),
		GradeExplanation:       explainGrade(ctx),
		CappingExplanation:     explainCapping(ctx),
		ConsistencyExplanation: explainConsistency(ctx),
		FraudExplanation:       explainFraud(ctx),
		DecisionSummary:        decisionSummary(ctx),
		AuditTrail:             buildAuditTrail(ctx),
		GeneratedAt:            time.Now(),
	}
}

func explainScore(ctx *engine.ExecutionContext) []string {
	if ctx.GlobalScore == nil {
		return []string{fallbackScore}
	}

	lines := []string{
		fmt.Sprintf("The global score of %.1f/100 is a weighted average of the evaluation pillars.", ctx.GlobalScore.Score),
	}
	if ctx.Enterprise != nil {
		lines = append(lines, fmt.Sprintf("Enterprise profile contributed %.1f points (weight 30%%).", ctx.Enterprise.Score))
	}
	if ctx.Pricing != nil {
		lines = append(lines, fmt.Sprintf("Pricing coherence contributed %.1f points (weight 25%%).", ctx.Pricing.Score))
	}
	if ctx.Quality != nil {
		lines = append(lines, fmt.Sprintf("Documentation quality contributed %.1f points (weight 20%%).", ctx.Quality.Score))
	}
	if ctx.Audit != nil {
		lines = append(lines, fmt.Sprintf("Regulatory audit contributed %.1f points (weight 15%%).", ctx.Audit.GlobalScore))
	}
	if ctx.Geography != nil && ctx.Geography.Score > 0 {
		lines = append(lines, fmt.Sprintf("Geographic context contributed %.1f points (weight 10%%).", ctx.Geography.Score))
	}
	return lines
}

func explainAdaptive(ctx *engine.ExecutionContext) []string {
	adaptive := ctx.AdaptiveScore
	if adaptive == nil {
		return []string{fallbackAdaptive}
	}

	lines := []string{
		fmt.Sprintf("The base score of %.1f was adjusted to %.1f.", adaptive.BaseScore, adaptive.AdjustedScore),
	}
	if adaptive.SectorMultiplier != 1.0 {
		lines = append(lines, fmt.Sprintf("A sector complexity multiplier of %.2f was applied.", adaptive.SectorMultiplier))
	}
	if adaptive.RiskMultiplier != 1.0 {
		lines = append(lines, fmt.Sprintf("A risk multiplier of %.2f was applied for the enterprise and project profile.", adaptive.RiskMultiplier))
	}
	if adaptive.NormativePenalty > 0 {
		lines = append(lines, fmt.Sprintf("A penalty of %.1f points was deducted for unresolved regulatory obligations.", adaptive.NormativePenalty))
	}
	if adaptive.PricingPenalty > 0 {
		lines = append(lines, fmt.Sprintf("A penalty of %.1f points was deducted for pricing anomalies.", adaptive.PricingPenalty))
	}
	if len(lines) == 1 {
		lines = append(lines, "No adjustment factors applied; the adjusted score equals the base score.")
	}
	return lines
}

func explainGrade(ctx *engine.ExecutionContext) []string {
	grade := engine.OfficialGrade(ctx)
	if grade == "" {
		return []string{fallbackGrade}
	}

	lines := []string{
		fmt.Sprintf("The final professional grade is %s.", grade),
		gradeScaleSentence(grade),
	}
	if ctx.GlobalScore != nil {
		lines = append(lines, fmt.Sprintf("It derives from a global score of %.1f/100 on fixed thresholds (A from 90, B from 75, C from 60, D from 40).", ctx.GlobalScore.Score))
	}
	return lines
}

func gradeScaleSentence(grade string) string {
	switch grade {
	case "A":
		return "Grade A indicates excellent compliance with minimal identified risk."
	case "B":
		return "Grade B indicates strong compliance with manageable risk."
	case "C":
		return "Grade C indicates adequate compliance with moderate risk."
	case "D":
		return "Grade D indicates concerning compliance with elevated risk."
	default:
		return "Grade E indicates serious non-compliance or insufficient information."
	}
}

func explainCapping(ctx *engine.ExecutionContext) []string {
	capping := ctx.TrustCapping
	if capping == nil {
		return []string{fallbackCapping}
	}

	if !capping.CappingApplied {
		return []string{fmt.Sprintf("No trust capping was applied; the computed grade %s stands.", capping.OriginalGrade)}
	}

	lines := []string{
		fmt.Sprintf("The computed grade %s was capped to %s.", capping.OriginalGrade, capping.FinalGrade),
		fmt.Sprintf("%d blocking obligation(s) limit the maximum grade to %s.", len(capping.BlockingObligations), capping.MaxAllowedGrade),
	}
	for _, o := range capping.BlockingObligations {
		lines = append(lines, fmt.Sprintf("Blocking: %s (%s severity).", o.Code, o.Severity))
	}
	return lines
}

func explainConsistency(ctx *engine.ExecutionContext) []string {
	consistency := ctx.StructuralConsistency
	if consistency == nil {
		return []string{fallbackConsistency}
	}

	lines := []string{
		fmt.Sprintf("Structural consistency score: %.1f/100.", consistency.ConsistencyScore),
	}
	if !consistency.ImbalanceDetected {
		lines = append(lines, "The evaluation pillars are mutually consistent.")
		return lines
	}
	lines = append(lines, "Significant imbalances were detected between evaluation pillars.")
	lines = append(lines, consistency.FlagsDetected...)
	return lines
}

func explainFraud(ctx *engine.ExecutionContext) []string {
	fraud := ctx.FraudDetection
	if fraud == nil {
		return []string{fallbackFraud}
	}

	lines := []string{
		fmt.Sprintf("Fraud screening level: %s (score %.1f/100).", fraud.FraudLevel, fraud.FraudScore),
	}
	if len(fraud.DetectedPatterns) == 0 {
		lines = append(lines, "No suspicious patterns were detected.")
		return lines
	}
	for _, p := range fraud.DetectedPatterns {
		lines = append(lines, "Pattern: "+p)
	}
	return lines
}

func decisionSummary(ctx *engine.ExecutionContext) string {
	grade := engine.OfficialGrade(ctx)
	score := engine.OfficialScore(ctx)

	var qualifiers []string
	if ctx.TrustCapping != nil && ctx.TrustCapping.CappingApplied {
		qualifiers = append(qualifiers, "after trust capping")
	}
	if ctx.FraudDetection != nil && ctx.FraudDetection.FraudLevel != "low" {
		qualifiers = append(qualifiers, fmt.Sprintf("with %s fraud risk", ctx.FraudDetection.FraudLevel))
	}

	summary := fmt.Sprintf("Final decision: grade %s with a global score of %.1f/100", grade, score)
	if len(qualifiers) > 0 {
		summary += " " + strings.Join(qualifiers, ", ")
	}
	return summary + "."
}

func buildAuditTrail(ctx *engine.ExecutionContext) engine.AuditTrail {
	trail := engine.AuditTrail{FinalGrade: engine.OfficialGrade(ctx)}

	if ctx.AdaptiveScore != nil {
		base := ctx.AdaptiveScore.BaseScore
		adjusted := ctx.AdaptiveScore.AdjustedScore
		trail.BaseScore = &base
		trail.AdjustedScore = &adjusted
	} else if ctx.GlobalScore != nil {
		base := ctx.GlobalScore.Score
		trail.BaseScore = &base
	}
	if ctx.FraudDetection != nil {
		v := ctx.FraudDetection.FraudScore
		trail.FraudScore = &v
	}
	if ctx.StructuralConsistency != nil {
		v := ctx.StructuralConsistency.ConsistencyScore
		trail.ConsistencyScore = &v
	}
	if ctx.TrustCapping != nil {
		v := ctx.TrustCapping.CappingApplied
		trail.CappingApplied = &v
		trail.OriginalGrade = ctx.TrustCapping.OriginalGrade
	}
	return trail
}

// FormatAsText renders the report as a fixed-section plain text document
// suitable for audit archives and email bodies.
func FormatAsText(report *engine.TrustTransparencyResult) string {
	if report == nil {
		return "No transparency report available.\n"
	}

	var b strings.Builder
	b.WriteString("TRUST TRANSPARENCY REPORT\n")
	b.WriteString("=========================\n\n")

	writeSection(&b, "SCORE BREAKDOWN", report.ScoreExplanation)
	writeSection(&b, "ADAPTIVE ADJUSTMENTS", report.AdaptiveExplanation)
	writeSection(&b, "GRADE EXPLANATION", report.GradeExplanation)
	writeSection(&b, "TRUST CAPPING", report.CappingExplanation)
	writeSection(&b, "STRUCTURAL CONSISTENCY", report.ConsistencyExplanation)
	writeSection(&b, "FRAUD SCREENING", report.FraudExplanation)

	b.WriteString("DECISION\n--------\n")
	b.WriteString(report.DecisionSummary)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Generated at: %s\n", report.GeneratedAt.Format(time.RFC3339)))
	return b.String()
}

func writeSection(b *strings.Builder, title string, lines []string) {
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", len(title)))
	b.WriteString("\n")
	for _, line := range lines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
