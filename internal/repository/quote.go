package repository

import (
	"database/sql"
	"errors"

	"quoteaudit/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrQuoteNotFound is returned when the requested quote does not exist.
var ErrQuoteNotFound = errors.New("quote not found")

type QuoteRepository interface {
	GetQuoteByID(id string) (*models.Quote, error)
	UpdateQuoteScores(id string, totalScore float64, grade string, breakdown []byte) error
	InsertAnalysisResult(result *models.AnalysisResult) error
	InsertScoreSnapshot(snapshot *models.ScoreSnapshot) error
}

type quoteRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewQuoteRepository(db *sqlx.DB, logger *zap.Logger) QuoteRepository {
	return &quoteRepository{db: db, logger: logger}
}

func (r *quoteRepository) GetQuoteByID(id string) (*models.Quote, error) {
	var quote models.Quote
	query := `SELECT id, project_id, company_id, extracted_data, total_amount, region_name, department_name,
	                 reputation_score, location_score, total_score, grade, scoring_breakdown,
	                 created_by, created_at, updated_at
	          FROM quotes WHERE id = $1`
	err := r.db.Get(&quote, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	return &quote, nil
}

func (r *quoteRepository) UpdateQuoteScores(id string, totalScore float64, grade string, breakdown []byte) error {
	query := `UPDATE quotes SET total_score = $1, grade = $2, scoring_breakdown = $3, updated_at = NOW() WHERE id = $4`
	res, err := r.db.Exec(query, totalScore, grade, breakdown, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

func (r *quoteRepository) InsertAnalysisResult(result *models.AnalysisResult) error {
	query := `INSERT INTO analysis_results (id, quote_id, total_score, final_grade, enterprise_score, price_score,
	                                        quality_score, audit_score, summary, created_by, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()) RETURNING created_at`
	return r.db.QueryRowx(query, result.ID, result.QuoteID, result.TotalScore, result.FinalGrade,
		result.EnterpriseScore, result.PriceScore, result.QualityScore, result.AuditScore,
		result.Summary, result.CreatedBy).Scan(&result.CreatedAt)
}

func (r *quoteRepository) InsertScoreSnapshot(snapshot *models.ScoreSnapshot) error {
	query := `INSERT INTO score_snapshots (id, quote_id, execution_context_id, global_score, grade, scores_by_axis,
	                                       snapshot_type, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING created_at`
	return r.db.QueryRowx(query, snapshot.ID, snapshot.QuoteID, snapshot.ExecutionContextID,
		snapshot.GlobalScore, snapshot.Grade, snapshot.ScoresByAxis, snapshot.SnapshotType).Scan(&snapshot.CreatedAt)
}
