package engine

import (
	"sync"
	"time"

	"github.com/leadscope/prospect-cli/internal/model"
)

// StepName identifies one checkpoint in an item's analysis.
type StepName string

const (
	StepValidation    StepName = "validation"
	StepCustomerCheck StepName = "customer_check"
	StepFinancialDocs StepName = "financial_documents"
	StepEvidence      StepName = "evidence_validation"
	StepScore         StepName = "icp_score"
	StepPersist       StepName = "persist"
)

// stepOrder fixes the checkpoint sequence for every item.
var stepOrder = [...]StepName{
	StepValidation,
	StepCustomerCheck,
	StepFinancialDocs,
	StepEvidence,
	StepScore,
	StepPersist,
}

// StepStatus is a checkpoint's lifecycle state. Done, skipped and failed
// are terminal.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

func (s StepStatus) terminal() bool {
	return s == StepDone || s == StepSkipped || s == StepFailed
}

// Step is one checkpoint's progress within an item.
type Step struct {
	Name      StepName   `json:"name"`
	Status    StepStatus `json:"status"`
	Detail    string     `json:"detail,omitempty"`
	StartedAt time.Time  `json:"started_at,omitempty"`
	EndedAt   time.Time  `json:"ended_at,omitempty"`
}

// Item is one company moving through the batch. Steps transition forward
// only; a terminal step never reverts.
type Item struct {
	Company model.Company

	mu     sync.Mutex
	steps  [len(stepOrder)]Step
	result *model.AnalysisResult
}

func newItem(c model.Company) *Item {
	it := &Item{Company: c}
	for i, name := range stepOrder {
		it.steps[i] = Step{Name: name, Status: StepPending}
	}
	return it
}

// Steps returns a snapshot of the item's checkpoints.
func (it *Item) Steps() []Step {
	it.mu.Lock()
	defer it.mu.Unlock()
	out := make([]Step, len(it.steps))
	copy(out, it.steps[:])
	return out
}

// Result returns the terminal result, or nil while the item is in flight.
func (it *Item) Result() *model.AnalysisResult {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.result
}

func (it *Item) setResult(r *model.AnalysisResult) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.result = r
}

func (it *Item) startStep(name StepName) {
	it.mu.Lock()
	defer it.mu.Unlock()
	s := it.step(name)
	if s == nil || s.Status.terminal() {
		return
	}
	s.Status = StepRunning
	s.StartedAt = time.Now()
}

func (it *Item) finishStep(name StepName, status StepStatus, detail string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	s := it.step(name)
	if s == nil || s.Status.terminal() {
		return
	}
	s.Status = status
	s.Detail = detail
	s.EndedAt = time.Now()
}

// skipRemaining marks every non-terminal step from name onward as skipped.
func (it *Item) skipRemaining(from StepName, detail string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	started := false
	for i := range it.steps {
		if it.steps[i].Name == from {
			started = true
		}
		if started && !it.steps[i].Status.terminal() {
			it.steps[i].Status = StepSkipped
			it.steps[i].Detail = detail
			it.steps[i].EndedAt = time.Now()
		}
	}
}

func (it *Item) step(name StepName) *Step {
	for i := range it.steps {
		if it.steps[i].Name == name {
			return &it.steps[i]
		}
	}
	return nil
}
