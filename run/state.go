package run

import (
	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/plan"
	"github.com/hexlight/docuflow/session"
)

// Status tracks one step or document through a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// DocState is the outcome of one document request.
type DocState struct {
	Type        constraint.DocType `json:"type"`
	Status      Status             `json:"status"`
	ArtifactID  string             `json:"artifactId,omitempty"`
	StoragePath string             `json:"storagePath,omitempty"`
	Reason      string             `json:"reason,omitempty"`
}

// StepState is the outcome of one step.
type StepState struct {
	Status Status     `json:"status"`
	Docs   []DocState `json:"docs"`
}

// RunState is the executor's record of a run. It is session-scoped and
// owned by the executing goroutine; callers read it only after Execute
// returns.
type RunState struct {
	ProjectID int                  `json:"projectId"`
	Steps     []StepState          `json:"steps"`
	Generated []constraint.DocType `json:"generated"`
	Terminal  session.EventType    `json:"terminal,omitempty"`
}

// newRunState seeds a pending state mirroring the plan's shape.
func newRunState(p *plan.Plan) *RunState {
	s := &RunState{ProjectID: p.ProjectID, Steps: make([]StepState, len(p.Steps))}
	for i, step := range p.Steps {
		docs := make([]DocState, len(step.Docs))
		for j, d := range step.Docs {
			docs[j] = DocState{Type: d.Type, Status: StatusPending}
		}
		s.Steps[i] = StepState{Status: StatusPending, Docs: docs}
	}
	return s
}

// docState finds the tracked doc within a step.
func (s *RunState) docState(stepIdx int, docType constraint.DocType) *DocState {
	for j := range s.Steps[stepIdx].Docs {
		if s.Steps[stepIdx].Docs[j].Type == docType {
			return &s.Steps[stepIdx].Docs[j]
		}
	}
	return nil
}
