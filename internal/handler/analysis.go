package handler

import (
	"errors"
	"net/http"

	"quoteaudit/internal/alert"
	"quoteaudit/internal/certification"
	"quoteaudit/internal/engine"
	"quoteaudit/internal/narrative"
	"quoteaudit/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AnalysisHandler interface {
	AnalyzeQuote(c *gin.Context)
}

type analysisHandler struct {
	runner   *engine.Runner
	certs    *certification.Manager
	notifier *alert.Notifier
	logger   *zap.Logger
}

func NewAnalysisHandler(runner *engine.Runner, certs *certification.Manager, notifier *alert.Notifier, logger *zap.Logger) AnalysisHandler {
	return &analysisHandler{
		runner:   runner,
		certs:    certs,
		notifier: notifier,
		logger:   logger,
	}
}

// analyzeRequest is the optional body of an analysis run. When QuoteHash
// is present a certification is minted from the resulting snapshot.
type analyzeRequest struct {
	QuoteHash string `json:"quote_hash"`
}

// analyzeResponse bundles the pipeline outcome with the optional
// certification and public narrative.
type analyzeResponse struct {
	Outcome       *engine.AnalysisOutcome `json:"outcome"`
	Certification *certification.Record   `json:"certification,omitempty"`
	Narrative     *narrative.Result       `json:"narrative,omitempty"`
}

// AnalyzeQuote handles POST /api/quotes/:id/analyze
func (h *analysisHandler) AnalyzeQuote(c *gin.Context) {
	quoteID := c.Param("id")

	var req analyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	outcome, err := h.runner.Analyze(quoteID)
	if err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		h.logger.Error("Failed to analyze quote", zap.String("quote_id", quoteID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to analyze quote"})
		return
	}

	response := analyzeResponse{Outcome: outcome}

	if req.QuoteHash != "" {
		snapshot := &certification.Snapshot{
			ID:          outcome.SnapshotID,
			Version:     1,
			GlobalScore: outcome.FinalScore,
			RiskLevel:   riskLevel(outcome.Context),
		}
		if outcome.Context != nil && outcome.Context.Rules != nil {
			snapshot.TypeBreakdown = outcome.Context.Rules.TypeBreakdown
			snapshot.SeverityBreakdown = outcome.Context.Rules.SeverityBreakdown
			snapshot.ObligationCount = len(outcome.Context.Rules.UniqueObligations)
		}

		record, err := h.certs.CreateCertification(outcome.Context.ProjectID, snapshot, req.QuoteHash)
		if err != nil {
			h.logger.Error("Failed to create certification", zap.String("quote_id", quoteID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis succeeded but certification failed"})
			return
		}
		response.Certification = record
		h.notifier.CertificationIssued(record)

		result := narrative.Generate(outcome.Context, record)
		response.Narrative = &result
	}

	status := http.StatusOK
	if outcome.PersistenceStatus == engine.PersistencePartial {
		status = http.StatusMultiStatus
	}
	c.JSON(status, response)
}

func riskLevel(ctx *engine.ExecutionContext) string {
	if ctx == nil || ctx.Audit == nil {
		return "medium"
	}
	return ctx.Audit.RiskLevel
}
