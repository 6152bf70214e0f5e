package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"quoteaudit/internal/models"
	"quoteaudit/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PersistenceStatus is the tri-state outcome of the three independent
// persistence writes. A failed write never rolls back a successful one.
type PersistenceStatus string

const (
	PersistenceSuccess PersistenceStatus = "success"
	PersistencePartial PersistenceStatus = "partial"
	PersistenceFailed  PersistenceStatus = "failed"
)

// AnalysisOutcome is the result of one full pipeline run for a quote.
type AnalysisOutcome struct {
	Success           bool              `json:"success"`
	QuoteID           string            `json:"quote_id"`
	FinalGrade        string            `json:"final_grade"`
	FinalScore        float64           `json:"final_score"`
	SnapshotID        string            `json:"snapshot_id,omitempty"`
	AnalysisResultID  string            `json:"analysis_result_id,omitempty"`
	Report            PipelineReport    `json:"report"`
	PersistenceStatus PersistenceStatus `json:"persistence_status"`
	Errors            []string          `json:"errors,omitempty"`
	ExecutedAt        time.Time         `json:"executed_at"`
	DurationMs        int64             `json:"duration_ms"`
	Context           *ExecutionContext `json:"-"`
}

// Runner orchestrates the scoring pipeline: it loads a quote, builds the
// initial context, runs the ordered engine list with per-engine fault
// isolation, extracts the official grade and persists the results.
type Runner struct {
	repo    repository.QuoteRepository
	engines []Engine
	logger  *zap.Logger
}

func NewRunner(repo repository.QuoteRepository, logger *zap.Logger) *Runner {
	return &Runner{repo: repo, engines: DefaultEngines(), logger: logger}
}

// NewRunnerWithEngines builds a runner with an explicit engine list, for
// callers that append enrichment stages defined outside this package.
func NewRunnerWithEngines(repo repository.QuoteRepository, engines []Engine, logger *zap.Logger) *Runner {
	return &Runner{repo: repo, engines: engines, logger: logger}
}

// DefaultEngines returns the fixed, statically ordered engine list.
// Ordering is a correctness requirement: later engines read fields earlier
// engines are expected to have written.
func DefaultEngines() []Engine {
	return []Engine{
		ContextEngine{},
		LotEngine{},
		RuleEngine{},
		ScoringEngine{},
		EnrichmentEngine{},
		AuditEngine{},
		EnterpriseEngine{},
		PricingEngine{},
		QualityEngine{},
		GlobalScoringEngine{},
		TrustCappingEngine{},
		StructuralConsistencyEngine{},
		AdaptiveScoringEngine{},
		FraudDetectionEngine{},
	}
}

// BuildContext produces an execution context with every per-engine
// namespace initialized to a non-nil zero value, seeded with the fields
// already known on the quote.
func BuildContext(quote *models.Quote) *ExecutionContext {
	projectData := map[string]interface{}{}
	if len(quote.ExtractedData) > 0 {
		// A quote with unreadable extracted data still gets analyzed; the
		// engines treat the empty map as "nothing detected".
		_ = json.Unmarshal(quote.ExtractedData, &projectData)
	}

	return &ExecutionContext{
		ProjectID:   quote.ProjectID,
		QuoteID:     quote.ID,
		ProjectData: projectData,
		StartedAt:   time.Now(),

		Context:    &ContextResult{DetectedLots: []string{}},
		Lots:       &LotsResult{NormalizedLots: []Lot{}, PrimaryLots: []string{}, CategorySummary: map[string]int{}},
		Rules:      &RulesResult{Obligations: []Obligation{}, UniqueObligations: []Obligation{}, TypeBreakdown: map[string]int{}, SeverityBreakdown: map[string]int{}},
		Scoring:    &ScoringResult{},
		Enrichment: &EnrichmentResult{Recommendations: []string{}},
		Audit:      &AuditResult{RiskLevel: "unknown"},
		Enterprise: &EnterpriseResult{Score: quote.ReputationScore},
		Pricing:    &PricingResult{TotalAmount: quote.TotalAmount},
		Quality:    &QualityResult{},
		Geography: &GeographyResult{
			Score:      quote.LocationScore,
			Region:     quote.RegionName,
			Department: quote.DepartmentName,
		},
	}
}

// RunPipeline invokes every engine in order. Each invocation is
// independently guarded: on failure the context is restored to exactly
// what it was before that engine ran and execution proceeds.
func (r *Runner) RunPipeline(ctx *ExecutionContext) (*ExecutionContext, PipelineReport) {
	report := PipelineReport{Stages: make([]StageResult, 0, len(r.engines))}

	for _, eng := range r.engines {
		snapshot := ctx.Clone()
		if err := eng.Execute(ctx); err != nil {
			r.logger.Warn("Engine degraded, continuing pipeline",
				zap.String("engine", eng.Name()),
				zap.Error(err))
			ctx = snapshot
			report.Stages = append(report.Stages, StageResult{Engine: eng.Name(), Status: StageSkipped, Reason: err.Error()})
			continue
		}
		report.Stages = append(report.Stages, StageResult{Engine: eng.Name(), Status: StageOK})
	}

	return ctx, report
}

// OfficialGrade extracts the final grade using the explicit precedence
// chain. The fallback is conservative: a partially failed run yields E,
// never an optimistic grade.
func OfficialGrade(ctx *ExecutionContext) string {
	if ctx.FinalProfessionalGrade != "" {
		return ctx.FinalProfessionalGrade
	}
	if ctx.GlobalScore != nil && ctx.GlobalScore.Grade != "" {
		return ctx.GlobalScore.Grade
	}
	if ctx.TrustCapping != nil && ctx.TrustCapping.FinalGrade != "" {
		return ctx.TrustCapping.FinalGrade
	}
	return "E"
}

// OfficialScore extracts the final score with the same conservative
// fallback policy as OfficialGrade.
func OfficialScore(ctx *ExecutionContext) float64 {
	if ctx.GlobalScore != nil {
		return ctx.GlobalScore.Score
	}
	if ctx.Audit != nil {
		return ctx.Audit.GlobalScore
	}
	return 0
}

// Analyze runs the complete flow for one quote. Retries re-run the whole
// pipeline and overwrite prior results; there is no cancellation mid-flight.
func (r *Runner) Analyze(quoteID string) (*AnalysisOutcome, error) {
	start := time.Now()

	quote, err := r.repo.GetQuoteByID(quoteID)
	if err != nil {
		return nil, fmt.Errorf("load quote %s: %w", quoteID, err)
	}

	ctx := BuildContext(quote)
	ctx, report := r.RunPipeline(ctx)

	finalGrade := OfficialGrade(ctx)
	finalScore := OfficialScore(ctx)

	r.logger.Info("Pipeline complete",
		zap.String("quote_id", quoteID),
		zap.String("grade", finalGrade),
		zap.Float64("score", finalScore),
		zap.Strings("degraded", report.Degraded()))

	persistence := r.persistResults(quoteID, ctx, finalGrade, finalScore)

	outcome := &AnalysisOutcome{
		Success:           persistence.Status == PersistenceSuccess,
		QuoteID:           quoteID,
		FinalGrade:        finalGrade,
		FinalScore:        finalScore,
		SnapshotID:        persistence.SnapshotID,
		AnalysisResultID:  persistence.AnalysisResultID,
		Report:            report,
		PersistenceStatus: persistence.Status,
		Errors:            persistence.Errors,
		ExecutedAt:        start,
		DurationMs:        time.Since(start).Milliseconds(),
		Context:           ctx,
	}
	return outcome, nil
}

type persistenceOutcome struct {
	Status           PersistenceStatus
	AnalysisResultID string
	SnapshotID       string
	Errors           []string
}

// persistResults issues the three independent writes. Each failure is
// recorded separately; a failed write never rolls back a prior success.
func (r *Runner) persistResults(quoteID string, ctx *ExecutionContext, finalGrade string, finalScore float64) persistenceOutcome {
	var errs []string

	breakdown := map[string]float64{
		"enterprise": pillarScore(ctx.Enterprise != nil, func() float64 { return ctx.Enterprise.Score }),
		"pricing":    pillarScore(ctx.Pricing != nil, func() float64 { return ctx.Pricing.Score }),
		"quality":    pillarScore(ctx.Quality != nil, func() float64 { return ctx.Quality.Score }),
		"geography":  pillarScore(ctx.Geography != nil, func() float64 { return ctx.Geography.Score }),
		"audit":      pillarScore(ctx.Audit != nil, func() float64 { return ctx.Audit.GlobalScore }),
	}
	breakdownJSON, _ := json.Marshal(breakdown)

	if err := r.repo.UpdateQuoteScores(quoteID, finalScore, finalGrade, breakdownJSON); err != nil {
		r.logger.Error("Failed to update quote row", zap.String("quote_id", quoteID), zap.Error(err))
		errs = append(errs, fmt.Sprintf("quote update: %v", err))
	}

	result := &models.AnalysisResult{
		ID:              uuid.NewString(),
		QuoteID:         quoteID,
		TotalScore:      finalScore,
		FinalGrade:      finalGrade,
		EnterpriseScore: breakdown["enterprise"],
		PriceScore:      breakdown["pricing"],
		QualityScore:    breakdown["quality"],
		AuditScore:      breakdown["audit"],
		Summary:         fmt.Sprintf("Quote analysis - final grade %s, score %.1f", finalGrade, finalScore),
		CreatedBy:       "system",
	}
	if err := r.repo.InsertAnalysisResult(result); err != nil {
		r.logger.Error("Failed to insert analysis result", zap.String("quote_id", quoteID), zap.Error(err))
		errs = append(errs, fmt.Sprintf("analysis insert: %v", err))
		result.ID = ""
	}

	snapshot := &models.ScoreSnapshot{
		ID:                 uuid.NewString(),
		QuoteID:            quoteID,
		ExecutionContextID: fmt.Sprintf("ctx_%s", uuid.NewString()),
		GlobalScore:        finalScore,
		Grade:              finalGrade,
		ScoresByAxis:       breakdownJSON,
		SnapshotType:       "runtime",
	}
	if err := r.repo.InsertScoreSnapshot(snapshot); err != nil {
		r.logger.Error("Failed to insert score snapshot", zap.String("quote_id", quoteID), zap.Error(err))
		errs = append(errs, fmt.Sprintf("snapshot insert: %v", err))
		snapshot.ID = ""
	}

	status := PersistenceSuccess
	switch len(errs) {
	case 0:
	case 3:
		status = PersistenceFailed
	default:
		status = PersistencePartial
	}

	return persistenceOutcome{
		Status:           status,
		AnalysisResultID: result.ID,
		SnapshotID:       snapshot.ID,
		Errors:           errs,
	}
}

func pillarScore(present bool, get func() float64) float64 {
	if !present {
		return 0
	}
	return get()
}
