package narrative

import (
	"fmt"
	"strings"
	"time"

	"quoteaudit/internal/certification"
	"quoteaudit/internal/engine"
)

// TransparencyLevel is the confidence band attached to a public narrative.
type TransparencyLevel string

const (
	TransparencyVeryHigh TransparencyLevel = "very_high"
	TransparencyHigh     TransparencyLevel = "high"
	TransparencyModerate TransparencyLevel = "moderate"
	TransparencyLow      TransparencyLevel = "low"
	TransparencyCritical TransparencyLevel = "critical"
)

// PublicNarrative is the external-facing summary of an analysis. It is
// fully deterministic: assembled from conditional rule tables, no
// randomness and no external calls.
type PublicNarrative struct {
	Strengths         []string          `json:"strengths"`
	VigilancePoints   []string          `json:"vigilance_points"`
	SummaryText       string            `json:"summary_text"`
	TransparencyLevel TransparencyLevel `json:"transparency_level"`
}

// Metadata records the inputs a narrative was generated from.
type Metadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	GradeUsed        string    `json:"grade_used"`
	RiskLevelUsed    string    `json:"risk_level_used"`
	LotsCount        int       `json:"lots_count"`
	ObligationsCount int       `json:"obligations_count"`
	DataCompleteness int       `json:"data_completeness"`
}

// Result bundles the narrative with its generation metadata.
type Result struct {
	Narrative PublicNarrative `json:"narrative"`
	Metadata  Metadata        `json:"metadata"`
}

// Generate builds the public narrative from the finished execution context
// and the certificate issued for it. It never fails its caller: any
// internal problem yields the conservative fallback narrative instead.
func Generate(ctx *engine.ExecutionContext, cert *certification.Record) Result {
	if ctx == nil {
		return Fallback()
	}

	grade := ctx.FinalProfessionalGrade
	if grade == "" && cert != nil {
		grade = cert.Grade
	}
	if grade == "" {
		grade = "C"
	}

	riskLevel := "medium"
	if cert != nil && cert.RiskLevel != "" {
		riskLevel = cert.RiskLevel
	}

	typeBreakdown := map[string]int{}
	severityBreakdown := map[string]int{}
	var obligationsCount int
	if ctx.Rules != nil {
		typeBreakdown = ctx.Rules.TypeBreakdown
		severityBreakdown = ctx.Rules.SeverityBreakdown
		obligationsCount = len(ctx.Rules.UniqueObligations)
	}
	var lotsCount int
	if ctx.Lots != nil {
		lotsCount = len(ctx.Lots.NormalizedLots)
	}

	completeness := dataCompleteness(typeBreakdown, severityBreakdown, lotsCount, obligationsCount)

	return Result{
		Narrative: PublicNarrative{
			Strengths:         extractStrengths(grade, typeBreakdown, severityBreakdown),
			VigilancePoints:   extractVigilancePoints(riskLevel, typeBreakdown, severityBreakdown, grade),
			SummaryText:       summaryText(grade, riskLevel, lotsCount, obligationsCount, typeBreakdown, severityBreakdown),
			TransparencyLevel: transparencyLevel(grade, riskLevel, completeness),
		},
		Metadata: Metadata{
			GeneratedAt:      time.Now(),
			GradeUsed:        grade,
			RiskLevelUsed:    riskLevel,
			LotsCount:        lotsCount,
			ObligationsCount: obligationsCount,
			DataCompleteness: completeness,
		},
	}
}

// Fallback is the conservative narrative used when generation cannot run.
func Fallback() Result {
	return Result{
		Narrative: PublicNarrative{
			Strengths:         []string{"Assessment framework in place"},
			VigilancePoints:   []string{"Manual review and professional assessment recommended"},
			SummaryText:       "A compliance assessment has been conducted. Professional review is recommended to determine specific compliance status.",
			TransparencyLevel: TransparencyLow,
		},
		Metadata: Metadata{GeneratedAt: time.Now(), GradeUsed: "Unknown", RiskLevelUsed: "Unknown"},
	}
}

func extractStrengths(grade string, typeBreakdown, severityBreakdown map[string]int) []string {
	var strengths []string

	switch grade {
	case "A":
		strengths = append(strengths,
			"Exceptional compliance standard with minimal identified risks",
			"Comprehensive regulatory framework implementation",
			"Proactive risk management across all obligation types")
	case "B":
		strengths = append(strengths,
			"Strong compliance foundation with effective risk controls",
			"Good adherence to regulatory requirements",
			"Systematic approach to obligation management")
	case "C":
		strengths = append(strengths,
			"Foundational compliance framework in place",
			"Basic regulatory controls implemented")
	case "D":
		strengths = append(strengths, "Partial compliance measures identified")
	case "E":
		strengths = append(strengths, "Serious non-compliance conditions require immediate attention")
	}

	if regulatory := typeBreakdown["regulatory"]; regulatory >= 5 {
		strengths = append(strengths, "Comprehensive regulatory obligation tracking system")
	} else if regulatory >= 3 {
		strengths = append(strengths, "Multiple regulatory frameworks addressed")
	}
	if typeBreakdown["legal"] > 0 {
		strengths = append(strengths, "Legal compliance framework established")
	}
	if typeBreakdown["commercial"] > 0 {
		strengths = append(strengths, "Commercial agreement management in place")
	}

	if severityBreakdown["critical"] == 0 && severityBreakdown["high"] <= 2 {
		strengths = append(strengths, "No critical compliance gaps identified")
	}

	if len(strengths) == 0 {
		return []string{"Assessment framework documented"}
	}
	return strengths
}

func extractVigilancePoints(riskLevel string, typeBreakdown, severityBreakdown map[string]int, grade string) []string {
	var points []string

	switch riskLevel {
	case "critical":
		points = append(points,
			"Critical risk assessment identifies urgent compliance gaps",
			"Immediate remediation plan required for identified risks",
			"Escalated monitoring and reporting essential")
	case "high":
		points = append(points,
			"High-risk areas require enhanced compliance focus",
			"Structured remediation timeline recommended",
			"Regular progress review and verification recommended")
	case "medium":
		points = append(points,
			"Moderate-risk areas identified requiring attention",
			"Systematic risk mitigation approach recommended",
			"Periodic compliance review suggested")
	case "low":
		points = append(points,
			"Low-risk profile with stable compliance baseline",
			"Maintenance compliance activities recommended")
	}

	if critical := severityBreakdown["critical"]; critical > 0 {
		points = append(points, fmt.Sprintf("%d critical obligation(s) identified requiring immediate action", critical))
	}
	if high := severityBreakdown["high"]; high > 2 {
		points = append(points, fmt.Sprintf("%d high-severity obligations require structured attention", high))
	}
	if advisory := typeBreakdown["advisory"]; advisory > 0 {
		points = append(points, fmt.Sprintf("%d advisory guidance item(s) require review", advisory))
	}

	if grade == "D" || grade == "E" {
		points = append(points,
			"Significant compliance gaps require comprehensive remediation",
			"Professional compliance assessment and support recommended")
	}

	if len(points) == 0 {
		return []string{"Standard compliance monitoring recommended"}
	}
	return points
}

// transparencyLevel is a first-match-wins decision table. The precedence
// order is part of the contract: critical risk always wins, regardless of
// data completeness.
func transparencyLevel(grade, riskLevel string, completeness int) TransparencyLevel {
	switch {
	case riskLevel == "critical":
		return TransparencyCritical
	case riskLevel == "low" && completeness >= 90:
		return TransparencyVeryHigh
	case riskLevel == "medium" && completeness >= 80:
		return TransparencyHigh
	case riskLevel == "medium":
		return TransparencyModerate
	case riskLevel == "high" && completeness >= 85:
		return TransparencyHigh
	case riskLevel == "high":
		return TransparencyModerate
	case grade == "A" || grade == "B":
		return TransparencyHigh
	case grade == "C":
		return TransparencyModerate
	default:
		return TransparencyLow
	}
}

func summaryText(grade, riskLevel string, lotsCount, obligationsCount int, typeBreakdown, severityBreakdown map[string]int) string {
	gradeDescriptions := map[string]string{"A": "exceptional", "B": "strong", "C": "satisfactory", "D": "concerning", "E": "critical"}
	riskDescriptions := map[string]string{"low": "low-risk", "medium": "moderate-risk", "high": "high-risk", "critical": "critical-risk"}

	gradeDesc, ok := gradeDescriptions[grade]
	if !ok {
		gradeDesc = "assessed"
	}
	riskDesc, ok := riskDescriptions[riskLevel]
	if !ok {
		riskDesc = "complex"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "This project demonstrates a %s compliance profile with %s characteristics.", gradeDesc, riskDesc)

	if lotsCount > 0 {
		fmt.Fprintf(&b, " The assessment covers %d distinct project lot%s.", lotsCount, plural(lotsCount))
	}
	if obligationsCount > 0 {
		fmt.Fprintf(&b, " A total of %d compliance obligation%s have been identified and evaluated.", obligationsCount, plural(obligationsCount))
	}

	var types []string
	if n := typeBreakdown["legal"]; n > 0 {
		types = append(types, fmt.Sprintf("legal (%d)", n))
	}
	if n := typeBreakdown["regulatory"]; n > 0 {
		types = append(types, fmt.Sprintf("regulatory (%d)", n))
	}
	if n := typeBreakdown["commercial"]; n > 0 {
		types = append(types, fmt.Sprintf("commercial (%d)", n))
	}
	if len(types) > 0 {
		fmt.Fprintf(&b, " Key obligation types include %s.", strings.Join(types, ", "))
	}

	if n := severityBreakdown["critical"]; n > 0 {
		fmt.Fprintf(&b, " Critical attention is required for %d critical obligation%s.", n, plural(n))
	} else if n := severityBreakdown["high"]; n > 0 {
		fmt.Fprintf(&b, " Enhanced monitoring is needed for %d high-severity obligation%s.", n, plural(n))
	} else if n := severityBreakdown["medium"]; n > 0 {
		fmt.Fprintf(&b, " Standard oversight is recommended for %d moderate-severity obligation%s.", n, plural(n))
	}

	switch riskLevel {
	case "critical":
		b.WriteString(" Urgent remediation action is required to address identified gaps.")
	case "high":
		b.WriteString(" Structured remediation plan development is strongly recommended.")
	case "medium":
		b.WriteString(" Continued compliance efforts and periodic review are essential.")
	case "low":
		b.WriteString(" Maintenance of current compliance framework is recommended.")
	}

	return b.String()
}

// dataCompleteness is a capped point accumulator over the breadth of the
// available analysis data. Breadth counts distinct keys present, not the
// magnitude of their counts.
func dataCompleteness(typeBreakdown, severityBreakdown map[string]int, lotsCount, obligationsCount int) int {
	completeness := 50

	if len(typeBreakdown) >= 2 {
		completeness += 10
	}
	if len(typeBreakdown) >= 3 {
		completeness += 5
	}
	if len(severityBreakdown) >= 2 {
		completeness += 10
	}
	if len(severityBreakdown) >= 3 {
		completeness += 5
	}
	if lotsCount > 0 {
		completeness += 5
	}
	if lotsCount >= 2 {
		completeness += 5
	}
	if obligationsCount > 0 {
		completeness += 5
	}
	if obligationsCount >= 5 {
		completeness += 5
	}

	if completeness > 100 {
		return 100
	}
	return completeness
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// FormatAsMarkdown renders the narrative for public display.
func FormatAsMarkdown(narrative PublicNarrative) string {
	levelDescriptions := map[TransparencyLevel]string{
		TransparencyVeryHigh: "Very High - Comprehensive data with minimal uncertainty",
		TransparencyHigh:     "High - Complete assessment with good data coverage",
		TransparencyModerate: "Moderate - Standard assessment with acceptable data coverage",
		TransparencyLow:      "Low - Limited data availability affecting confidence",
		TransparencyCritical: "Critical - Urgent issues requiring immediate attention",
	}

	var b strings.Builder
	b.WriteString("# Compliance Assessment Summary\n\n")
	b.WriteString("## Overview\n\n")
	b.WriteString(narrative.SummaryText)
	b.WriteString("\n\n## Strengths\n\n")
	for _, s := range narrative.Strengths {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\n## Areas Requiring Attention\n\n")
	for _, p := range narrative.VigilancePoints {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	b.WriteString("\n## Transparency Level\n\n")

	desc, ok := levelDescriptions[narrative.TransparencyLevel]
	if !ok {
		desc = "Assessment transparency"
	}
	fmt.Fprintf(&b, "**%s**: %s\n", strings.ToUpper(string(narrative.TransparencyLevel)), desc)
	return b.String()
}

// Validate checks a narrative satisfies the public output contract.
func Validate(narrative PublicNarrative) []string {
	var errs []string

	if len(narrative.Strengths) == 0 {
		errs = append(errs, "strengths list is missing or empty")
	}
	if len(narrative.VigilancePoints) == 0 {
		errs = append(errs, "vigilance points list is missing or empty")
	}
	if narrative.SummaryText == "" {
		errs = append(errs, "summary text is missing or empty")
	}
	switch narrative.TransparencyLevel {
	case TransparencyVeryHigh, TransparencyHigh, TransparencyModerate, TransparencyLow, TransparencyCritical:
	default:
		errs = append(errs, fmt.Sprintf("invalid transparency level: %s", narrative.TransparencyLevel))
	}

	return errs
}
