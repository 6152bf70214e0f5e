package ingestion

import (
	"errors"
	"fmt"
)

// State is a document ingestion stage. The flow is linear: each state
// advances to exactly one successor, plus FAILED from any non-terminal
// state. FAILED is absorbing: nothing leaves it.
type State string

const (
	StateUploaded   State = "UPLOADED"
	StateExtracting State = "EXTRACTING"
	StateChunking   State = "CHUNKING"
	StateEmbedding  State = "EMBEDDING"
	StateFinalizing State = "FINALIZING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// ErrInvalidTransition is returned when a transition is not in the
// adjacency table. Programmer-error class: callers drive the machine
// through Advance and should never construct illegal jumps.
var ErrInvalidTransition = errors.New("invalid ingestion state transition")

// transitions is the static adjacency table. Every attempted transition
// is validated against it before being applied.
var transitions = map[State][]State{
	StateUploaded:   {StateExtracting, StateFailed},
	StateExtracting: {StateChunking, StateFailed},
	StateChunking:   {StateEmbedding, StateFailed},
	StateEmbedding:  {StateFinalizing, StateFailed},
	StateFinalizing: {StateCompleted, StateFailed},
	StateCompleted:  {},
	StateFailed:     {},
}

// progressByState is the fixed reporting percentage per state.
var progressByState = map[State]int{
	StateUploaded:   0,
	StateExtracting: 20,
	StateChunking:   40,
	StateEmbedding:  60,
	StateFinalizing: 80,
	StateCompleted:  100,
	StateFailed:     0,
}

// stepLabels name the processing step a state represents, for status
// reporting on the document row.
var stepLabels = map[State]string{
	StateUploaded:   "upload received",
	StateExtracting: "extracting text",
	StateChunking:   "chunking content",
	StateEmbedding:  "computing embeddings",
	StateFinalizing: "finalizing index",
	StateCompleted:  "ingestion complete",
	StateFailed:     "ingestion failed",
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Progress returns the fixed progress percentage for s.
func (s State) Progress() int {
	return progressByState[s]
}

// StepLabel returns the human-readable step name for s.
func (s State) StepLabel() string {
	return stepLabels[s]
}

// Next returns the single forward successor of s, or "" for terminal
// states. FAILED is never the forward successor.
func (s State) Next() State {
	for _, candidate := range transitions[s] {
		if candidate != StateFailed {
			return candidate
		}
	}
	return ""
}

// CanTransition reports whether from → to is in the adjacency table.
// Any transition out of FAILED is rejected, including FAILED → FAILED.
func CanTransition(from, to State) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Validate returns ErrInvalidTransition unless from → to is legal.
func Validate(from, to State) error {
	if !from.IsValid() {
		return fmt.Errorf("unknown state %q: %w", from, ErrInvalidTransition)
	}
	if !to.IsValid() {
		return fmt.Errorf("unknown state %q: %w", to, ErrInvalidTransition)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}
