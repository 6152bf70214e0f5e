package handler

import (
	"net/http"
	"time"

	"quoteaudit/internal/certification"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PublicHandler serves the token-based verification surface. This is the
// only endpoint meant for non-privileged external consumption; it exposes
// a reduced view of the certificate and never an internal error.
type PublicHandler interface {
	VerifyToken(c *gin.Context)
}

type publicHandler struct {
	certs  *certification.Manager
	logger *zap.Logger
}

func NewPublicHandler(certs *certification.Manager, logger *zap.Logger) PublicHandler {
	return &publicHandler{certs: certs, logger: logger}
}

// publicCertificationView is the externally visible subset of a
// certificate. Internal fields (snapshot linkage, quote hash, signature)
// stay private.
type publicCertificationView struct {
	CertificationID string    `json:"certification_id"`
	Grade           string    `json:"grade"`
	GradeMeaning    string    `json:"grade_meaning"`
	Badge           string    `json:"badge"`
	RiskLevel       string    `json:"risk_level"`
	IssuedAt        time.Time `json:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	Issuer          string    `json:"issuer,omitempty"`
}

type publicVerifyResponse struct {
	Valid         bool                     `json:"valid"`
	Reason        string                   `json:"reason,omitempty"`
	Certification *publicCertificationView `json:"certification,omitempty"`
	RemainingDays *int                     `json:"remaining_days,omitempty"`
	VerifiedAt    time.Time                `json:"verified_at"`
}

// badgeForGrade maps a grade to the display badge of the public widget.
func badgeForGrade(grade string) string {
	switch grade {
	case "A":
		return "gold"
	case "B":
		return "silver"
	case "C":
		return "bronze"
	default:
		return "none"
	}
}

// VerifyToken handles GET /api/public/verify/:token
func (h *publicHandler) VerifyToken(c *gin.Context) {
	token := c.Param("token")

	result := h.certs.VerifyCertification(token)

	response := publicVerifyResponse{
		Valid:         result.Valid,
		Reason:        result.Reason,
		RemainingDays: result.RemainingDays,
		VerifiedAt:    result.VerifiedAt,
	}
	if result.Valid && result.Certification != nil {
		rec := result.Certification
		response.Certification = &publicCertificationView{
			CertificationID: rec.ID,
			Grade:           rec.Grade,
			GradeMeaning:    certification.GradeDescription(rec.Grade),
			Badge:           badgeForGrade(rec.Grade),
			RiskLevel:       rec.RiskLevel,
			IssuedAt:        rec.IssuedAt,
			ExpiresAt:       rec.ExpiresAt,
		}
	}

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusNotFound
		if result.Reason == "Certification has expired" {
			status = http.StatusGone
		}
	}
	c.JSON(status, response)
}
