package handler

import (
	"errors"
	"net/http"

	"quoteaudit/internal/ingestion"
	"quoteaudit/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DocumentHandler interface {
	GetStatus(c *gin.Context)
	Transition(c *gin.Context)
	Advance(c *gin.Context)
	Fail(c *gin.Context)
}

type documentHandler struct {
	tracker *ingestion.Tracker
	logger  *zap.Logger
}

func NewDocumentHandler(tracker *ingestion.Tracker, logger *zap.Logger) DocumentHandler {
	return &documentHandler{tracker: tracker, logger: logger}
}

// GetStatus handles GET /api/documents/:id/ingestion
func (h *documentHandler) GetStatus(c *gin.Context) {
	status, err := h.tracker.Status(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type transitionRequest struct {
	State string `json:"state" binding:"required"`
}

// Transition handles POST /api/documents/:id/ingestion/transition
func (h *documentHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
		return
	}

	if err := h.tracker.Transition(c.Param("id"), ingestion.State(req.State)); err != nil {
		h.respondError(c, err)
		return
	}

	status, err := h.tracker.Status(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Advance handles POST /api/documents/:id/ingestion/advance
func (h *documentHandler) Advance(c *gin.Context) {
	next, err := h.tracker.Advance(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": next, "progress": next.Progress()})
}

type failRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Fail handles POST /api/documents/:id/ingestion/fail
func (h *documentHandler) Fail(c *gin.Context) {
	var req failRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	if err := h.tracker.Fail(c.Param("id"), req.Reason); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": ingestion.StateFailed})
}

func (h *documentHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
	case errors.Is(err, ingestion.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Document ingestion request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
