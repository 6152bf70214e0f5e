package certification

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// ValidityWindow is the fixed certificate lifetime. Not configurable per
// call: every certificate expires exactly 30 days after issuance.
const ValidityWindow = 30 * 24 * time.Hour

// Input-contract violations on certificate creation. These are
// programmer-error class and are expected to be prevented by callers.
var (
	ErrProjectIDRequired = errors.New("projectId is required for certification")
	ErrSnapshotRequired  = errors.New("snapshot is required to create certification")
	ErrHashRequired      = errors.New("quote hash is required for certification integrity")
)

// scoreThresholds are the fixed, non-overlapping grade boundaries.
var scoreThresholds = map[string]int{"A": 90, "B": 75, "C": 60, "D": 40, "E": 0}

// gradeValues back the average-grade computation, A highest.
var gradeValues = map[string]float64{"A": 5, "B": 4, "C": 3, "D": 2, "E": 1}

var gradeLetters = []string{"E", "D", "C", "B", "A"}

// Snapshot is the scoring snapshot a certificate is minted from.
type Snapshot struct {
	ID                string         `json:"id"`
	Version           int            `json:"version"`
	GlobalScore       float64        `json:"global_score"`
	RiskLevel         string         `json:"risk_level"`
	TypeBreakdown     map[string]int `json:"type_breakdown,omitempty"`
	SeverityBreakdown map[string]int `json:"severity_breakdown,omitempty"`
	ObligationCount   int            `json:"obligation_count"`
}

// VerificationResult is the public verification surface payload.
type VerificationResult struct {
	Valid         bool      `json:"valid"`
	Certification *Record   `json:"certification,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	VerifiedAt    time.Time `json:"verified_at"`
	RemainingDays *int      `json:"remaining_days,omitempty"`
}

// History is the complete certification history for a project.
type History struct {
	ProjectID            string     `json:"project_id"`
	Certifications       []Record   `json:"certifications"`
	TotalCertifications  int        `json:"total_certifications"`
	ActiveCertifications int        `json:"active_certifications"`
	ExpiredCertification int        `json:"expired_certifications"`
	AverageGrade         string     `json:"average_grade,omitempty"`
	LastIssuedAt         *time.Time `json:"last_issued_at,omitempty"`
}

// GradeStatistics aggregates scores and grades across a project's history.
type GradeStatistics struct {
	ProjectID            string         `json:"project_id"`
	TotalCertifications  int            `json:"total_certifications"`
	ActiveCertifications int            `json:"active_certifications"`
	GradeDistribution    map[string]int `json:"grade_distribution"`
	AverageScore         float64        `json:"average_score"`
	AverageGrade         string         `json:"average_grade"`
	ScoreMin             float64        `json:"score_min"`
	ScoreMax             float64        `json:"score_max"`
}

// VerificationReportEntry is one certificate's line in a project report.
type VerificationReportEntry struct {
	CertificationID string    `json:"certification_id"`
	Grade           string    `json:"grade"`
	Status          string    `json:"status"`
	IssuedAt        time.Time `json:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	RemainingDays   *int      `json:"remaining_days,omitempty"`
}

// VerificationReport lists the validity of every certificate of a project.
type VerificationReport struct {
	ProjectID            string                    `json:"project_id"`
	TotalCertifications  int                       `json:"total_certifications"`
	ActiveCertifications int                       `json:"active_certifications"`
	ExpiredCertification int                       `json:"expired_certifications"`
	VerificationStatus   []VerificationReportEntry `json:"verification_status"`
}

// MapScoreToGrade maps a numeric score to a letter grade. A non-numeric
// score maps to E, the conservative floor.
func MapScoreToGrade(score float64) string {
	if math.IsNaN(score) {
		return "E"
	}
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "E"
	}
}

// GradeDescription returns the human-readable meaning of a grade.
func GradeDescription(grade string) string {
	switch grade {
	case "A":
		return "Excellent - Full compliance, minimal risk"
	case "B":
		return "Good - Strong compliance, manageable risk"
	case "C":
		return "Satisfactory - Adequate compliance, moderate risk"
	case "D":
		return "Poor - Concerning compliance, elevated risk"
	case "E":
		return "Critical - Serious non-compliance, critical risk"
	}
	return "Unknown grade"
}

// Manager mints, verifies and revokes certifications. The store is
// injected so a durable implementation can replace the in-memory one
// without touching call sites; the clock is injected for expiry tests.
type Manager struct {
	store  Store
	signer *Signer
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(store Store, signer *Signer, logger *zap.Logger) *Manager {
	return &Manager{store: store, signer: signer, logger: logger, now: time.Now}
}

// WithClock overrides the manager's clock. Test lifecycle only.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CreateCertification mints an immutable certificate from a scoring
// snapshot and appends it to the project's history. Prior certificates
// for the same project are retained, never replaced.
func (m *Manager) CreateCertification(projectID string, snapshot *Snapshot, quoteHash string) (*Record, error) {
	if projectID == "" {
		return nil, ErrProjectIDRequired
	}
	if snapshot == nil {
		return nil, ErrSnapshotRequired
	}
	if quoteHash == "" {
		return nil, ErrHashRequired
	}

	now := m.now()
	grade := MapScoreToGrade(snapshot.GlobalScore)
	certID := newCertID(now)

	signature, err := m.signer.Sign(certID, projectID, grade, quoteHash, now)
	if err != nil {
		return nil, err
	}

	record := Record{
		ID:              certID,
		ProjectID:       projectID,
		SnapshotID:      snapshot.ID,
		SnapshotVersion: snapshot.Version,
		FinalScore:      snapshot.GlobalScore,
		Grade:           grade,
		RiskLevel:       snapshot.RiskLevel,
		QuoteHash:       quoteHash,
		IssuedAt:        now,
		ExpiresAt:       now.Add(ValidityWindow),
		Status:          "active",
		PublicToken:     newPublicToken(),
		IssuerSignature: signature,
		GradesMetadata:  map[string]string{"source": "score_snapshot"},
		ScoreThresholds: scoreThresholds,
	}

	m.store.Append(record)

	m.logger.Info("Certification created",
		zap.String("project_id", projectID),
		zap.String("certification_id", record.ID),
		zap.String("grade", grade),
		zap.Float64("score", snapshot.GlobalScore),
		zap.Time("expires_at", record.ExpiresAt))

	return &record, nil
}

// VerifyCertification answers the public token-based verification query.
// It never fails its caller: every outcome is a result with a reason.
func (m *Manager) VerifyCertification(token string) VerificationResult {
	now := m.now()

	if token == "" {
		return VerificationResult{Valid: false, Reason: "Token is required", VerifiedAt: now}
	}

	ref, ok := m.store.Lookup(token)
	if !ok {
		return VerificationResult{Valid: false, Reason: "Token not found in registry", VerifiedAt: now}
	}

	record, ok := m.store.Get(ref.ProjectID, ref.CertID)
	if !ok {
		return VerificationResult{Valid: false, Reason: "Certification not found", VerifiedAt: now}
	}

	if !now.Before(record.ExpiresAt) {
		return VerificationResult{Valid: false, Reason: "Certification has expired", Certification: &record, VerifiedAt: now}
	}

	remaining := remainingDays(record.ExpiresAt, now)
	return VerificationResult{Valid: true, Certification: &record, VerifiedAt: now, RemainingDays: &remaining}
}

// GetCertificationByID returns a certificate or nil when absent.
func (m *Manager) GetCertificationByID(projectID, certID string) *Record {
	if projectID == "" || certID == "" {
		return nil
	}
	record, ok := m.store.Get(projectID, certID)
	if !ok {
		return nil
	}
	return &record
}

// GetLatestActiveCertification returns the most recent still-valid
// certificate for a project, or nil.
func (m *Manager) GetLatestActiveCertification(projectID string) *Record {
	records := m.store.Project(projectID)
	now := m.now()
	for i := len(records) - 1; i >= 0; i-- {
		if now.Before(records[i].ExpiresAt) {
			rec := records[i]
			return &rec
		}
	}
	return nil
}

// RevokeCertification marks a certificate expired immediately. The record
// is never deleted and all other fields stay untouched. Idempotent.
func (m *Manager) RevokeCertification(projectID, certID string) bool {
	if projectID == "" || certID == "" {
		return false
	}

	now := m.now()
	ok := m.store.Mutate(projectID, certID, func(rec *Record) {
		rec.Status = "expired"
		rec.ExpiresAt = now
	})
	if !ok {
		m.logger.Warn("Certification not found for revocation",
			zap.String("project_id", projectID),
			zap.String("certification_id", certID))
		return false
	}

	m.logger.Info("Certification revoked",
		zap.String("project_id", projectID),
		zap.String("certification_id", certID))
	return true
}

// VerifyCertificationIntegrity compares the stored quote hash byte-exactly
// against the supplied one. A mismatch means the underlying quote changed
// after certification; the certificate should be treated as untrustworthy
// even if still time-valid.
func (m *Manager) VerifyCertificationIntegrity(projectID, certID, quoteHash string) bool {
	record := m.GetCertificationByID(projectID, certID)
	if record == nil {
		return false
	}
	valid := record.QuoteHash == quoteHash
	m.logger.Info("Integrity check",
		zap.String("project_id", projectID),
		zap.String("certification_id", certID),
		zap.Bool("valid", valid))
	return valid
}

// History returns the full certification history for a project.
func (m *Manager) History(projectID string) History {
	if projectID == "" {
		return History{Certifications: []Record{}}
	}

	records := m.store.Project(projectID)
	now := m.now()

	history := History{ProjectID: projectID, Certifications: records, TotalCertifications: len(records)}
	var gradeSum float64
	for _, rec := range records {
		if now.Before(rec.ExpiresAt) {
			history.ActiveCertifications++
		} else {
			history.ExpiredCertification++
		}
		gradeSum += gradeValues[rec.Grade]
	}

	if len(records) > 0 {
		avg := gradeSum / float64(len(records))
		idx := int(math.Round(avg)) - 1
		if idx >= 0 && idx < len(gradeLetters) {
			history.AverageGrade = gradeLetters[idx]
		} else {
			history.AverageGrade = "N/A"
		}
		last := records[len(records)-1].IssuedAt
		history.LastIssuedAt = &last
	}

	return history
}

// Statistics aggregates grade and score distribution for a project.
// Returns nil when the project has no certificates.
func (m *Manager) Statistics(projectID string) *GradeStatistics {
	if projectID == "" {
		return nil
	}
	records := m.store.Project(projectID)
	if len(records) == 0 {
		return nil
	}

	now := m.now()
	stats := &GradeStatistics{
		ProjectID:           projectID,
		TotalCertifications: len(records),
		GradeDistribution:   map[string]int{"A": 0, "B": 0, "C": 0, "D": 0, "E": 0},
		ScoreMin:            records[0].FinalScore,
		ScoreMax:            records[0].FinalScore,
	}

	var sum float64
	for _, rec := range records {
		sum += rec.FinalScore
		stats.GradeDistribution[rec.Grade]++
		if rec.FinalScore < stats.ScoreMin {
			stats.ScoreMin = rec.FinalScore
		}
		if rec.FinalScore > stats.ScoreMax {
			stats.ScoreMax = rec.FinalScore
		}
		if now.Before(rec.ExpiresAt) {
			stats.ActiveCertifications++
		}
	}

	stats.AverageScore = sum / float64(len(records))
	stats.AverageGrade = MapScoreToGrade(stats.AverageScore)
	return stats
}

// Report builds the per-certificate validity report for a project.
func (m *Manager) Report(projectID string) VerificationReport {
	history := m.History(projectID)
	now := m.now()

	entries := make([]VerificationReportEntry, 0, len(history.Certifications))
	for _, rec := range history.Certifications {
		entry := VerificationReportEntry{
			CertificationID: rec.ID,
			Grade:           rec.Grade,
			Status:          "active",
			IssuedAt:        rec.IssuedAt,
			ExpiresAt:       rec.ExpiresAt,
		}
		if now.Before(rec.ExpiresAt) {
			remaining := remainingDays(rec.ExpiresAt, now)
			entry.RemainingDays = &remaining
		} else {
			entry.Status = "expired"
		}
		entries = append(entries, entry)
	}

	return VerificationReport{
		ProjectID:            projectID,
		TotalCertifications:  history.TotalCertifications,
		ActiveCertifications: history.ActiveCertifications,
		ExpiredCertification: history.ExpiredCertification,
		VerificationStatus:   entries,
	}
}

// ManagerStatus summarizes the registry across every project.
type ManagerStatus struct {
	TotalProjects        int `json:"total_projects"`
	TotalCertifications  int `json:"total_certifications"`
	ActiveCertifications int `json:"active_certifications"`
	ExpiredCertification int `json:"expired_certifications"`
	ValidityWindowDays   int `json:"validity_window_days"`
}

// Status reports registry-wide totals and the fixed validity window.
func (m *Manager) Status() ManagerStatus {
	now := m.now()
	status := ManagerStatus{ValidityWindowDays: int(ValidityWindow / (24 * time.Hour))}

	for _, projectID := range m.store.Projects() {
		status.TotalProjects++
		for _, rec := range m.store.Project(projectID) {
			status.TotalCertifications++
			if now.Before(rec.ExpiresAt) {
				status.ActiveCertifications++
			} else {
				status.ExpiredCertification++
			}
		}
	}

	return status
}

// ExportCertificationAsJSON serializes one certificate for audit export.
func (m *Manager) ExportCertificationAsJSON(projectID, certID string) ([]byte, error) {
	record := m.GetCertificationByID(projectID, certID)
	if record == nil {
		return nil, errors.New("certification not found")
	}
	return json.MarshalIndent(map[string]interface{}{
		"certification": record,
		"exported_at":   m.now(),
	}, "", "  ")
}

// ExportProjectAsJSON serializes a project's full certification history.
func (m *Manager) ExportProjectAsJSON(projectID string) ([]byte, error) {
	history := m.History(projectID)
	return json.MarshalIndent(map[string]interface{}{
		"project":        projectID,
		"certifications": history.Certifications,
		"summary": map[string]int{
			"total":   history.TotalCertifications,
			"active":  history.ActiveCertifications,
			"expired": history.ExpiredCertification,
		},
		"exported_at": m.now(),
	}, "", "  ")
}

func remainingDays(expiresAt, now time.Time) int {
	return int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
}
