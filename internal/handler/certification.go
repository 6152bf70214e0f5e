package handler

import (
	"net/http"

	"quoteaudit/internal/alert"
	"quoteaudit/internal/certification"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CertificationHandler interface {
	GetHistory(c *gin.Context)
	GetStatistics(c *gin.Context)
	GetReport(c *gin.Context)
	GetManagerStatus(c *gin.Context)
	ExportCertification(c *gin.Context)
	ExportProject(c *gin.Context)
	RevokeCertification(c *gin.Context)
	VerifyIntegrity(c *gin.Context)
}

type certificationHandler struct {
	certs    *certification.Manager
	notifier *alert.Notifier
	logger   *zap.Logger
}

func NewCertificationHandler(certs *certification.Manager, notifier *alert.Notifier, logger *zap.Logger) CertificationHandler {
	return &certificationHandler{certs: certs, notifier: notifier, logger: logger}
}

// GetHistory handles GET /api/projects/:projectId/certifications
func (h *certificationHandler) GetHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.certs.History(c.Param("projectId")))
}

// GetStatistics handles GET /api/projects/:projectId/certifications/statistics
func (h *certificationHandler) GetStatistics(c *gin.Context) {
	stats := h.certs.Statistics(c.Param("projectId"))
	if stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No certifications for project"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetReport handles GET /api/projects/:projectId/certifications/report
func (h *certificationHandler) GetReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.certs.Report(c.Param("projectId")))
}

// GetManagerStatus handles GET /api/certifications/status
func (h *certificationHandler) GetManagerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.certs.Status())
}

// ExportProject handles GET /api/projects/:projectId/certifications/export
func (h *certificationHandler) ExportProject(c *gin.Context) {
	raw, err := h.certs.ExportProjectAsJSON(c.Param("projectId"))
	if err != nil {
		h.logger.Error("Failed to export project certifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export project"})
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// ExportCertification handles GET /api/projects/:projectId/certifications/:certId/export
func (h *certificationHandler) ExportCertification(c *gin.Context) {
	raw, err := h.certs.ExportCertificationAsJSON(c.Param("projectId"), c.Param("certId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Certification not found"})
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// RevokeCertification handles POST /api/projects/:projectId/certifications/:certId/revoke
func (h *certificationHandler) RevokeCertification(c *gin.Context) {
	projectID := c.Param("projectId")
	certID := c.Param("certId")

	if !h.certs.RevokeCertification(projectID, certID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Certification not found"})
		return
	}

	h.notifier.CertificationRevoked(projectID, certID)
	c.JSON(http.StatusOK, gin.H{"revoked": true, "certification_id": certID})
}

type integrityRequest struct {
	QuoteHash string `json:"quote_hash" binding:"required"`
}

// VerifyIntegrity handles POST /api/projects/:projectId/certifications/:certId/integrity
func (h *certificationHandler) VerifyIntegrity(c *gin.Context) {
	var req integrityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quote_hash is required"})
		return
	}

	projectID := c.Param("projectId")
	certID := c.Param("certId")

	if h.certs.GetCertificationByID(projectID, certID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Certification not found"})
		return
	}

	valid := h.certs.VerifyCertificationIntegrity(projectID, certID, req.QuoteHash)
	c.JSON(http.StatusOK, gin.H{"certification_id": certID, "integrity_valid": valid})
}
