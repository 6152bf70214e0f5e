package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Quote represents a commercial construction quote stored in the 'quotes' table.
// It is the aggregate the scoring pipeline loads and enriches.
type Quote struct {
	ID             string         `db:"id" json:"id"`
	ProjectID      string         `db:"project_id" json:"project_id"`
	CompanyID      *string        `db:"company_id" json:"company_id,omitempty"`
	ExtractedData  types.JSONText `db:"extracted_data" json:"extracted_data"`
	TotalAmount    float64        `db:"total_amount" json:"total_amount"`
	RegionName     string         `db:"region_name" json:"region_name"`
	DepartmentName string         `db:"department_name" json:"department_name"`

	// Pre-existing sub-scores supplied by upstream collaborators.
	ReputationScore float64 `db:"reputation_score" json:"reputation_score"`
	LocationScore   float64 `db:"location_score" json:"location_score"`

	// Fields written back by the pipeline.
	TotalScore       *float64       `db:"total_score" json:"total_score,omitempty"`
	Grade            *string        `db:"grade" json:"grade,omitempty"`
	ScoringBreakdown types.JSONText `db:"scoring_breakdown" json:"scoring_breakdown,omitempty"`

	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AnalysisResult is one row per pipeline run in the 'analysis_results' table.
type AnalysisResult struct {
	ID              string    `db:"id" json:"id"`
	QuoteID         string    `db:"quote_id" json:"quote_id"`
	TotalScore      float64   `db:"total_score" json:"total_score"`
	FinalGrade      string    `db:"final_grade" json:"final_grade"`
	EnterpriseScore float64   `db:"enterprise_score" json:"enterprise_score"`
	PriceScore      float64   `db:"price_score" json:"price_score"`
	QualityScore    float64   `db:"quality_score" json:"quality_score"`
	AuditScore      float64   `db:"audit_score" json:"audit_score"`
	Summary         string    `db:"summary" json:"summary"`
	CreatedBy       string    `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ScoreSnapshot is a versioned point-in-time capture of computed scores,
// one row per run in the 'score_snapshots' table. The snapshot, not the
// certificate, is the durable system of record for a grade.
type ScoreSnapshot struct {
	ID                 string         `db:"id" json:"id"`
	QuoteID            string         `db:"quote_id" json:"quote_id"`
	ExecutionContextID string         `db:"execution_context_id" json:"execution_context_id"`
	GlobalScore        float64        `db:"global_score" json:"global_score"`
	Grade              string         `db:"grade" json:"grade"`
	ScoresByAxis       types.JSONText `db:"scores_by_axis" json:"scores_by_axis"`
	SnapshotType       string         `db:"snapshot_type" json:"snapshot_type"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

// KnowledgeDocument is a document feeding the knowledge base the rule
// engines consult, stored in the 'knowledge_documents' table. Its lifecycle
// is governed by the ingestion state machine.
type KnowledgeDocument struct {
	ID                 string     `db:"id" json:"id"`
	Title              string     `db:"title" json:"title"`
	IngestionStatus    string     `db:"ingestion_status" json:"ingestion_status"`
	IngestionProgress  int        `db:"ingestion_progress" json:"ingestion_progress"`
	LastIngestionStep  string     `db:"last_ingestion_step" json:"last_ingestion_step"`
	LastIngestionError *string    `db:"last_ingestion_error" json:"last_ingestion_error,omitempty"`
	IngestionStartedAt *time.Time `db:"ingestion_started_at" json:"ingestion_started_at,omitempty"`
	IngestionDoneAt    *time.Time `db:"ingestion_completed_at" json:"ingestion_completed_at,omitempty"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
