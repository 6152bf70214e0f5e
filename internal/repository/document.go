package repository

import (
	"database/sql"
	"errors"
	"time"

	"quoteaudit/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrDocumentNotFound is returned when the requested knowledge document does not exist.
var ErrDocumentNotFound = errors.New("knowledge document not found")

type DocumentRepository interface {
	GetDocumentByID(id string) (*models.KnowledgeDocument, error)
	UpdateIngestionState(id, state, step string, progress int, startedAt, completedAt *time.Time) error
	MarkIngestionFailed(id string, errorDetails string) error
}

type documentRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewDocumentRepository(db *sqlx.DB, logger *zap.Logger) DocumentRepository {
	return &documentRepository{db: db, logger: logger}
}

func (r *documentRepository) GetDocumentByID(id string) (*models.KnowledgeDocument, error) {
	var doc models.KnowledgeDocument
	query := `SELECT id, title, ingestion_status, ingestion_progress, last_ingestion_step, last_ingestion_error,
	                 ingestion_started_at, ingestion_completed_at, updated_at
	          FROM knowledge_documents WHERE id = $1`
	err := r.db.Get(&doc, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) UpdateIngestionState(id, state, step string, progress int, startedAt, completedAt *time.Time) error {
	query := `UPDATE knowledge_documents
	          SET ingestion_status = $1, last_ingestion_step = $2, ingestion_progress = $3,
	              ingestion_started_at = COALESCE($4, ingestion_started_at),
	              ingestion_completed_at = COALESCE($5, ingestion_completed_at),
	              updated_at = NOW()
	          WHERE id = $6`
	res, err := r.db.Exec(query, state, step, progress, startedAt, completedAt, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepository) MarkIngestionFailed(id string, errorDetails string) error {
	query := `UPDATE knowledge_documents
	          SET ingestion_status = 'FAILED', last_ingestion_error = $1, ingestion_progress = 0, updated_at = NOW()
	          WHERE id = $2`
	res, err := r.db.Exec(query, errorDetails, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
