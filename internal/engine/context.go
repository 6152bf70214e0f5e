package engine

import "time"

// ExecutionContext is the shared record passed through the scoring pipeline.
// One is created per analysis run and discarded after persistence.
//
// Each engine owns exactly one namespace (a pointer field below) and may add
// or overwrite it, but must never remove what another engine already wrote.
// A nil namespace means "not yet computed" and every reader must tolerate it.
type ExecutionContext struct {
	ProjectID   string
	QuoteID     string
	ProjectData map[string]interface{}
	StartedAt   time.Time

	// Per-engine namespaces, in pipeline order.
	Context    *ContextResult
	Lots       *LotsResult
	Rules      *RulesResult
	Scoring    *ScoringResult
	Enrichment *EnrichmentResult
	Audit      *AuditResult
	Enterprise *EnterpriseResult
	Pricing    *PricingResult
	Quality    *QualityResult
	Geography  *GeographyResult

	// Late-bound derived fields.
	GlobalScore            *GlobalScoreResult
	TrustCapping           *TrustCappingResult
	FinalProfessionalGrade string
	StructuralConsistency  *StructuralConsistencyResult
	AdaptiveScore          *AdaptiveScoreResult
	FraudDetection         *FraudDetectionResult
	TrustTransparency      *TrustTransparencyResult
}

// ContextResult is written by the context engine.
type ContextResult struct {
	DetectedLots []string
	Summary      string
}

// Lot is a normalized work package within a quote.
type Lot struct {
	Name     string
	Category string
	Amount   float64
}

// LotsResult is written by the lot engine.
type LotsResult struct {
	NormalizedLots  []Lot
	PrimaryLots     []string
	ComplexityScore float64
	CategorySummary map[string]int
}

// Obligation is a detected regulatory, legal, commercial or advisory
// requirement tied to the quote. Code identifies the specific rule,
// Kind the obligation family, Severity one of critical/high/medium/low.
type Obligation struct {
	Code        string
	Kind        string
	Severity    string
	Description string
}

// RulesResult is written by the rule engine.
type RulesResult struct {
	Obligations       []Obligation
	UniqueObligations []Obligation
	TypeBreakdown     map[string]int
	SeverityBreakdown map[string]int
}

// ScoringResult is written by the scoring engine and feeds the audit engine.
type ScoringResult struct {
	ComplianceScore float64
	TotalWeight     float64
}

// EnrichmentResult is written by the enrichment engine.
type EnrichmentResult struct {
	Recommendations []string
	AppliedRules    int
}

// AuditResult is written by the audit engine.
type AuditResult struct {
	RiskScore   float64
	GlobalScore float64
	RiskLevel   string
}

// EnterpriseResult is written by the enterprise engine. Score is seeded
// from the quote's pre-existing reputation score at context build time.
type EnterpriseResult struct {
	Score           float64
	YearsInBusiness int
	HasInsurance    bool
	Employees       int
}

// PricingResult is written by the pricing engine.
type PricingResult struct {
	Score        float64
	TotalAmount  float64
	AvgPerLot    float64
	AnomalyCount int
}

// QualityResult is written by the quality engine.
type QualityResult struct {
	Score             float64
	DescriptionLength int
	HasLegalMentions  bool
}

// GeographyResult is seeded from fields already known on the quote.
type GeographyResult struct {
	Score      float64
	Region     string
	Department string
}

// GlobalScoreResult is written by the global scoring engine.
type GlobalScoreResult struct {
	Score float64
	Grade string
}

// TrustCappingResult is written by the trust capping engine.
// FinalGrade is min(OriginalGrade, MaxAllowedGrade).
type TrustCappingResult struct {
	OriginalGrade       string
	MaxAllowedGrade     string
	FinalGrade          string
	CappingApplied      bool
	BlockingObligations []Obligation
}

// StructuralConsistencyResult is written by the structural consistency engine.
type StructuralConsistencyResult struct {
	ConsistencyScore  float64
	ImbalanceDetected bool
	FlagsDetected     []string
}

// AdaptiveScoreResult is written by the adaptive scoring engine.
type AdaptiveScoreResult struct {
	BaseScore        float64
	AdjustedScore    float64
	SectorMultiplier float64
	RiskMultiplier   float64
	NormativePenalty float64
	PricingPenalty   float64
}

// RiskIndicators flags the independent risk dimensions examined by fraud detection.
type RiskIndicators struct {
	PricingRisk    bool
	ComplianceRisk bool
	EnterpriseRisk bool
	StructuralRisk bool
}

// FraudDetectionResult is written by the fraud detection engine.
type FraudDetectionResult struct {
	FraudScore       float64
	FraudLevel       string
	DetectedPatterns []string
	RiskIndicators   RiskIndicators
}

// AuditTrail is the structured decision trail captured by the
// trust transparency engine. Pointer fields are absent when the
// corresponding upstream engine produced nothing.
type AuditTrail struct {
	BaseScore        *float64
	AdjustedScore    *float64
	FinalGrade       string
	FraudScore       *float64
	ConsistencyScore *float64
	CappingApplied   *bool
	OriginalGrade    string
}

// TrustTransparencyResult is the read-only explainability report derived
// from the finished context. It lives in the engine package so the
// transparency layer can enrich the context without an import cycle.
type TrustTransparencyResult struct {
	ScoreExplanation       []string
	AdaptiveExplanation    []string
	GradeExplanation       []string
	CappingExplanation     []string
	ConsistencyExplanation []string
	FraudExplanation       []string
	DecisionSummary        string
	AuditTrail             AuditTrail
	GeneratedAt            time.Time
}

// Clone returns a deep copy of the context. The pipeline snapshots the
// context before each engine runs so a failing engine leaves no trace.
func (c *ExecutionContext) Clone() *ExecutionContext {
	out := *c

	out.ProjectData = copyMap(c.ProjectData)

	if c.Context != nil {
		v := *c.Context
		v.DetectedLots = append([]string(nil), c.Context.DetectedLots...)
		out.Context = &v
	}
	if c.Lots != nil {
		v := *c.Lots
		v.NormalizedLots = append([]Lot(nil), c.Lots.NormalizedLots...)
		v.PrimaryLots = append([]string(nil), c.Lots.PrimaryLots...)
		v.CategorySummary = copyIntMap(c.Lots.CategorySummary)
		out.Lots = &v
	}
	if c.Rules != nil {
		v := *c.Rules
		v.Obligations = append([]Obligation(nil), c.Rules.Obligations...)
		v.UniqueObligations = append([]Obligation(nil), c.Rules.UniqueObligations...)
		v.TypeBreakdown = copyIntMap(c.Rules.TypeBreakdown)
		v.SeverityBreakdown = copyIntMap(c.Rules.SeverityBreakdown)
		out.Rules = &v
	}
	if c.Scoring != nil {
		v := *c.Scoring
		out.Scoring = &v
	}
	if c.Enrichment != nil {
		v := *c.Enrichment
		v.Recommendations = append([]string(nil), c.Enrichment.Recommendations...)
		out.Enrichment = &v
	}
	if c.Audit != nil {
		v := *c.Audit
		out.Audit = &v
	}
	if c.Enterprise != nil {
		v := *c.Enterprise
		out.Enterprise = &v
	}
	if c.Pricing != nil {
		v := *c.Pricing
		out.Pricing = &v
	}
	if c.Quality != nil {
		v := *c.Quality
		out.Quality = &v
	}
	if c.Geography != nil {
		v := *c.Geography
		out.Geography = &v
	}
	if c.GlobalScore != nil {
		v := *c.GlobalScore
		out.GlobalScore = &v
	}
	if c.TrustCapping != nil {
		v := *c.TrustCapping
		v.BlockingObligations = append([]Obligation(nil), c.TrustCapping.BlockingObligations...)
		out.TrustCapping = &v
	}
	if c.StructuralConsistency != nil {
		v := *c.StructuralConsistency
		v.FlagsDetected = append([]string(nil), c.StructuralConsistency.FlagsDetected...)
		out.StructuralConsistency = &v
	}
	if c.AdaptiveScore != nil {
		v := *c.AdaptiveScore
		out.AdaptiveScore = &v
	}
	if c.FraudDetection != nil {
		v := *c.FraudDetection
		v.DetectedPatterns = append([]string(nil), c.FraudDetection.DetectedPatterns...)
		out.FraudDetection = &v
	}
	if c.TrustTransparency != nil {
		v := *c.TrustTransparency
		out.TrustTransparency = &v
	}

	return &out
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue deep-copies the nested maps and slices json.Unmarshal produces,
// so a restored snapshot shares no mutable state with the discarded clone.
func copyValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		return copyMap(typed)
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func copyIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
