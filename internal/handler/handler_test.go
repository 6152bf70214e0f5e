package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quoteaudit/internal/certification"
	"quoteaudit/internal/engine"
	"quoteaudit/internal/ingestion"
	"quoteaudit/internal/models"
	"quoteaudit/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQuoteRepo struct {
	quote *models.Quote
}

func (r *fakeQuoteRepo) GetQuoteByID(id string) (*models.Quote, error) {
	if r.quote == nil || r.quote.ID != id {
		return nil, repository.ErrQuoteNotFound
	}
	copied := *r.quote
	return &copied, nil
}

func (r *fakeQuoteRepo) UpdateQuoteScores(id string, totalScore float64, grade string, breakdown []byte) error {
	return nil
}

func (r *fakeQuoteRepo) InsertAnalysisResult(result *models.AnalysisResult) error { return nil }

func (r *fakeQuoteRepo) InsertScoreSnapshot(snapshot *models.ScoreSnapshot) error { return nil }

type fakeDocumentRepo struct {
	doc *models.KnowledgeDocument
}

func (r *fakeDocumentRepo) GetDocumentByID(id string) (*models.KnowledgeDocument, error) {
	if r.doc == nil || r.doc.ID != id {
		return nil, repository.ErrDocumentNotFound
	}
	copied := *r.doc
	return &copied, nil
}

func (r *fakeDocumentRepo) UpdateIngestionState(id, state, step string, progress int, startedAt, completedAt *time.Time) error {
	if r.doc == nil || r.doc.ID != id {
		return repository.ErrDocumentNotFound
	}
	r.doc.IngestionStatus = state
	r.doc.LastIngestionStep = step
	r.doc.IngestionProgress = progress
	return nil
}

func (r *fakeDocumentRepo) MarkIngestionFailed(id string, errorDetails string) error {
	if r.doc == nil || r.doc.ID != id {
		return repository.ErrDocumentNotFound
	}
	r.doc.IngestionStatus = "FAILED"
	r.doc.LastIngestionError = &errorDetails
	r.doc.IngestionProgress = 0
	return nil
}

func testQuote() *models.Quote {
	extracted, _ := json.Marshal(map[string]interface{}{
		"lots": []map[string]interface{}{
			{"name": "electrical refit", "category": "electrical", "amount": 12000},
			{"name": "bathroom plumbing", "category": "plumbing", "amount": 8000},
		},
		"legal_mentions": true,
	})
	return &models.Quote{
		ID:              "quote-1",
		ProjectID:       "proj-1",
		ExtractedData:   extracted,
		TotalAmount:     20000,
		ReputationScore: 50,
		LocationScore:   60,
	}
}

func newCertManager() *certification.Manager {
	signer := certification.NewSigner("test-key", "quoteaudit-test")
	return certification.NewManager(certification.NewMemoryStore(), signer, zap.NewNop())
}

func newTestRouter(t *testing.T) (*gin.Engine, *certification.Manager) {
	t.Helper()

	logger := zap.NewNop()
	certs := newCertManager()
	runner := engine.NewRunner(&fakeQuoteRepo{quote: testQuote()}, logger)
	tracker := ingestion.NewTracker(&fakeDocumentRepo{doc: &models.KnowledgeDocument{
		ID:              "doc-1",
		Title:           "NF C 15-100 summary",
		IngestionStatus: string(ingestion.StateUploaded),
	}}, logger)

	analysisHandler := NewAnalysisHandler(runner, certs, nil, logger)
	certificationHandler := NewCertificationHandler(certs, nil, logger)
	publicHandler := NewPublicHandler(certs, logger)
	documentHandler := NewDocumentHandler(tracker, logger)

	router := gin.New()
	router.GET("/api/public/verify/:token", publicHandler.VerifyToken)
	router.POST("/api/quotes/:id/analyze", analysisHandler.AnalyzeQuote)
	router.GET("/api/certifications/status", certificationHandler.GetManagerStatus)
	router.GET("/api/projects/:projectId/certifications", certificationHandler.GetHistory)
	router.GET("/api/projects/:projectId/certifications/statistics", certificationHandler.GetStatistics)
	router.GET("/api/projects/:projectId/certifications/report", certificationHandler.GetReport)
	router.GET("/api/projects/:projectId/certifications/export", certificationHandler.ExportProject)
	router.GET("/api/projects/:projectId/certifications/:certId/export", certificationHandler.ExportCertification)
	router.POST("/api/projects/:projectId/certifications/:certId/revoke", certificationHandler.RevokeCertification)
	router.POST("/api/projects/:projectId/certifications/:certId/integrity", certificationHandler.VerifyIntegrity)
	router.GET("/api/documents/:id/ingestion", documentHandler.GetStatus)
	router.POST("/api/documents/:id/ingestion/transition", documentHandler.Transition)
	router.POST("/api/documents/:id/ingestion/advance", documentHandler.Advance)
	router.POST("/api/documents/:id/ingestion/fail", documentHandler.Fail)

	return router, certs
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyzeQuote(t *testing.T) {
	t.Run("analysis without hash returns outcome only", func(t *testing.T) {
		router, _ := newTestRouter(t)

		w := doRequest(router, http.MethodPost, "/api/quotes/quote-1/analyze", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Outcome       *engine.AnalysisOutcome `json:"outcome"`
			Certification *certification.Record   `json:"certification"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.NotNil(t, response.Outcome)
		assert.NotEmpty(t, response.Outcome.FinalGrade)
		assert.Nil(t, response.Certification)
	})

	t.Run("analysis with hash mints a certification", func(t *testing.T) {
		router, certs := newTestRouter(t)

		w := doRequest(router, http.MethodPost, "/api/quotes/quote-1/analyze", gin.H{"quote_hash": "sha256:abc"})
		require.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Certification *certification.Record `json:"certification"`
			Narrative     *struct {
				Narrative struct {
					TransparencyLevel string `json:"transparency_level"`
				} `json:"narrative"`
			} `json:"narrative"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.NotNil(t, response.Certification)
		assert.Equal(t, "proj-1", response.Certification.ProjectID)
		assert.Equal(t, "sha256:abc", response.Certification.QuoteHash)
		require.NotNil(t, response.Narrative)
		assert.NotEmpty(t, response.Narrative.Narrative.TransparencyLevel)

		history := certs.History("proj-1")
		assert.Equal(t, 1, history.TotalCertifications)
	})

	t.Run("unknown quote", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doRequest(router, http.MethodPost, "/api/quotes/quote-missing/analyze", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPublicVerify(t *testing.T) {
	router, certs := newTestRouter(t)

	record, err := certs.CreateCertification("proj-1", &certification.Snapshot{
		ID: "snap-1", Version: 1, GlobalScore: 91, RiskLevel: "low",
	}, "hash")
	require.NoError(t, err)

	t.Run("valid token exposes the public view only", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/public/verify/"+record.PublicToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, true, response["valid"])

		view, ok := response["certification"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "A", view["grade"])
		assert.Equal(t, "gold", view["badge"])
		assert.NotContains(t, view, "quote_hash")
		assert.NotContains(t, view, "issuer_signature")
	})

	t.Run("unknown token", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/public/verify/PUB-missing", nil)
		require.Equal(t, http.StatusNotFound, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, false, response["valid"])
		assert.Equal(t, "Token not found in registry", response["reason"])
	})

	t.Run("revoked certificate reports gone", func(t *testing.T) {
		require.True(t, certs.RevokeCertification("proj-1", record.ID))
		w := doRequest(router, http.MethodGet, "/api/public/verify/"+record.PublicToken, nil)
		assert.Equal(t, http.StatusGone, w.Code)
	})
}

func TestCertificationAdminRoutes(t *testing.T) {
	router, certs := newTestRouter(t)
	record, err := certs.CreateCertification("proj-1", &certification.Snapshot{
		ID: "snap-1", Version: 1, GlobalScore: 82, RiskLevel: "medium",
	}, "hash")
	require.NoError(t, err)

	t.Run("history", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/projects/proj-1/certifications", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var history certification.History
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
		assert.Equal(t, 1, history.TotalCertifications)
	})

	t.Run("statistics for unknown project", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/projects/proj-unknown/certifications/statistics", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("report", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/projects/proj-1/certifications/report", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var report certification.VerificationReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		require.Len(t, report.VerificationStatus, 1)
		assert.Equal(t, "active", report.VerificationStatus[0].Status)
	})

	t.Run("registry status totals", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/certifications/status", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var status certification.ManagerStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, 1, status.TotalProjects)
		assert.Equal(t, 1, status.TotalCertifications)
		assert.Equal(t, 30, status.ValidityWindowDays)
	})

	t.Run("project export includes history and summary", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/projects/proj-1/certifications/export", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var exported struct {
			Project        string                 `json:"project"`
			Certifications []certification.Record `json:"certifications"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exported))
		assert.Equal(t, "proj-1", exported.Project)
		require.Len(t, exported.Certifications, 1)
		assert.Equal(t, record.ID, exported.Certifications[0].ID)
	})

	t.Run("export round-trips the certificate id", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/projects/proj-1/certifications/"+record.ID+"/export", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var exported struct {
			Certification certification.Record `json:"certification"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exported))
		assert.Equal(t, record.ID, exported.Certification.ID)
	})

	t.Run("integrity check", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/projects/proj-1/certifications/"+record.ID+"/integrity", gin.H{"quote_hash": "hash"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"integrity_valid":true`)

		w = doRequest(router, http.MethodPost, "/api/projects/proj-1/certifications/"+record.ID+"/integrity", gin.H{"quote_hash": "tampered"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"integrity_valid":false`)
	})

	t.Run("revoke then revoke again", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/projects/proj-1/certifications/"+record.ID+"/revoke", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doRequest(router, http.MethodPost, "/api/projects/proj-1/certifications/"+record.ID+"/revoke", nil)
		assert.Equal(t, http.StatusOK, w.Code, "revocation is idempotent")

		w = doRequest(router, http.MethodPost, "/api/projects/proj-1/certifications/CERT-missing/revoke", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDocumentRoutes(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doRequest(router, http.MethodGet, "/api/documents/doc-1/ingestion", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"state":"UPLOADED"`)
	})

	t.Run("advance walks the linear flow", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doRequest(router, http.MethodPost, "/api/documents/doc-1/ingestion/advance", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"state":"EXTRACTING"`)
	})

	t.Run("illegal transition conflicts", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doRequest(router, http.MethodPost, "/api/documents/doc-1/ingestion/transition", gin.H{"state": "EMBEDDING"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("fail records the reason", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doRequest(router, http.MethodPost, "/api/documents/doc-1/ingestion/fail", gin.H{"reason": "extraction crashed"})
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(router, http.MethodPost, "/api/documents/doc-1/ingestion/advance", nil)
		assert.Equal(t, http.StatusConflict, w.Code, "FAILED is absorbing")
	})

	t.Run("unknown document", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doRequest(router, http.MethodGet, "/api/documents/doc-missing/ingestion", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
