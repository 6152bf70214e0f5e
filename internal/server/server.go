package server

import (
	"net/http"

	"quoteaudit/internal/alert"
	"quoteaudit/internal/certification"
	"quoteaudit/internal/config"
	"quoteaudit/internal/engine"
	"quoteaudit/internal/handler"
	"quoteaudit/internal/ingestion"
	"quoteaudit/internal/middleware"
	"quoteaudit/internal/repository"
	"quoteaudit/internal/transparency"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Server struct {
	router   *gin.Engine
	db       *sqlx.DB
	cfg      *config.Config
	notifier *alert.Notifier
	logger   *zap.Logger
}

func NewServer(db *sqlx.DB, cfg *config.Config, notifier *alert.Notifier, logger *zap.Logger) *Server {
	router := gin.Default()
	router.Use(middleware.RequestLogger(logger))

	s := &Server{
		router:   router,
		db:       db,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	quoteRepo := repository.NewQuoteRepository(s.db, s.logger)
	documentRepo := repository.NewDocumentRepository(s.db, s.logger)

	// The transparency engine runs last so it sees the finished context.
	engines := append(engine.DefaultEngines(), transparency.Engine{})
	runner := engine.NewRunnerWithEngines(quoteRepo, engines, s.logger)
	signer := certification.NewSigner(s.cfg.Certification.IssuerKey, s.cfg.Certification.IssuerName)
	certs := certification.NewManager(certification.NewMemoryStore(), signer, s.logger)
	tracker := ingestion.NewTracker(documentRepo, s.logger)

	analysisHandler := handler.NewAnalysisHandler(runner, certs, s.notifier, s.logger)
	certificationHandler := handler.NewCertificationHandler(certs, s.notifier, s.logger)
	publicHandler := handler.NewPublicHandler(certs, s.logger)
	documentHandler := handler.NewDocumentHandler(tracker, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Public verification surface, deliberately unauthenticated.
	s.router.GET("/api/public/verify/:token", publicHandler.VerifyToken)

	// Privileged routes
	api := s.router.Group("/api")
	api.Use(middleware.AdminAuth(s.cfg.Server.AdminSecret, s.logger))
	{
		api.POST("/quotes/:id/analyze", analysisHandler.AnalyzeQuote)
		api.GET("/certifications/status", certificationHandler.GetManagerStatus)

		projects := api.Group("/projects/:projectId/certifications")
		projects.GET("", certificationHandler.GetHistory)
		projects.GET("/statistics", certificationHandler.GetStatistics)
		projects.GET("/report", certificationHandler.GetReport)
		projects.GET("/export", certificationHandler.ExportProject)
		projects.GET("/:certId/export", certificationHandler.ExportCertification)
		projects.POST("/:certId/revoke", certificationHandler.RevokeCertification)
		projects.POST("/:certId/integrity", certificationHandler.VerifyIntegrity)

		documents := api.Group("/documents/:id/ingestion")
		documents.GET("", documentHandler.GetStatus)
		documents.POST("/transition", documentHandler.Transition)
		documents.POST("/advance", documentHandler.Advance)
		documents.POST("/fail", documentHandler.Fail)
	}
}

func (s *Server) Run(addr string) error {
	s.logger.Info("Server starting", zap.String("addr", addr))
	return s.router.Run(addr)
}
