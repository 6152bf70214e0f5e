package ingestion

import (
	"fmt"
	"time"

	"quoteaudit/internal/repository"

	"go.uber.org/zap"
)

// Tracker drives the ingestion state machine against the document store.
// Every transition is validated before the row is touched, so the stored
// status can never reach a state the adjacency table forbids.
type Tracker struct {
	repo   repository.DocumentRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewTracker(repo repository.DocumentRepository, logger *zap.Logger) *Tracker {
	return &Tracker{repo: repo, logger: logger, now: time.Now}
}

// Transition moves a document to the requested state after validating the
// move against its current stored state.
func (t *Tracker) Transition(documentID string, to State) error {
	doc, err := t.repo.GetDocumentByID(documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	from := State(doc.IngestionStatus)
	if err := Validate(from, to); err != nil {
		return err
	}

	var startedAt, completedAt *time.Time
	if to == StateExtracting {
		now := t.now()
		startedAt = &now
	}
	if to == StateCompleted {
		now := t.now()
		completedAt = &now
	}

	if err := t.repo.UpdateIngestionState(documentID, string(to), to.StepLabel(), to.Progress(), startedAt, completedAt); err != nil {
		return fmt.Errorf("persist ingestion state: %w", err)
	}

	t.logger.Info("Document ingestion state changed",
		zap.String("document_id", documentID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("progress", to.Progress()))
	return nil
}

// Advance moves a document one step forward along the linear flow.
func (t *Tracker) Advance(documentID string) (State, error) {
	doc, err := t.repo.GetDocumentByID(documentID)
	if err != nil {
		return "", fmt.Errorf("load document %s: %w", documentID, err)
	}

	from := State(doc.IngestionStatus)
	next := from.Next()
	if next == "" {
		return "", fmt.Errorf("%s is terminal: %w", from, ErrInvalidTransition)
	}
	if err := t.Transition(documentID, next); err != nil {
		return "", err
	}
	return next, nil
}

// Fail moves a document to FAILED with a failure reason. A document
// already in a terminal state is left untouched.
func (t *Tracker) Fail(documentID, reason string) error {
	doc, err := t.repo.GetDocumentByID(documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	from := State(doc.IngestionStatus)
	if err := Validate(from, StateFailed); err != nil {
		return err
	}

	if err := t.repo.MarkIngestionFailed(documentID, reason); err != nil {
		return fmt.Errorf("persist ingestion failure: %w", err)
	}

	t.logger.Warn("Document ingestion failed",
		zap.String("document_id", documentID),
		zap.String("from", string(from)),
		zap.String("reason", reason))
	return nil
}

// Status is the reporting view of a document's ingestion progress.
type Status struct {
	DocumentID  string     `json:"document_id"`
	State       State      `json:"state"`
	Step        string     `json:"step"`
	Progress    int        `json:"progress"`
	Terminal    bool       `json:"terminal"`
	LastError   string     `json:"last_error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Status returns the current ingestion status of a document.
func (t *Tracker) Status(documentID string) (*Status, error) {
	doc, err := t.repo.GetDocumentByID(documentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}

	state := State(doc.IngestionStatus)
	status := &Status{
		DocumentID:  doc.ID,
		State:       state,
		Step:        doc.LastIngestionStep,
		Progress:    doc.IngestionProgress,
		Terminal:    state.IsTerminal(),
		StartedAt:   doc.IngestionStartedAt,
		CompletedAt: doc.IngestionDoneAt,
	}
	if doc.LastIngestionError != nil {
		status.LastError = *doc.LastIngestionError
	}
	return status, nil
}
