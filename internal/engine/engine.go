package engine

// Engine is a single deterministic scoring stage. Execute reads fields
// earlier engines are expected to have written, falling back gracefully
// when those fields are missing, and writes only its own namespace.
type Engine interface {
	Name() string
	Execute(ctx *ExecutionContext) error
}

// StageStatus reports how a single engine invocation ended. A degraded
// engine is not an exceptional condition; the pipeline always continues.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageSkipped StageStatus = "skipped"
)

// StageResult is the per-engine outcome aggregated into a PipelineReport.
type StageResult struct {
	Engine string      `json:"engine"`
	Status StageStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// PipelineReport collects the outcome of every stage of one run.
type PipelineReport struct {
	Stages []StageResult `json:"stages"`
}

// Degraded returns the names of engines that were skipped.
func (r *PipelineReport) Degraded() []string {
	var names []string
	for _, s := range r.Stages {
		if s.Status == StageSkipped {
			names = append(names, s.Engine)
		}
	}
	return names
}
